package domain

import "encoding/json"

// Realtime event names.
const (
	EventUserJoined     = "user joined"
	EventRequestHistory = "request previous messages"
	EventChatMessage    = "chat message"
	EventChatMessages   = "chat messages"
	EventUpdateUsers    = "update users"
	EventConnect        = "connect"
	EventDisconnect     = "disconnect"
)

// Envelope is one websocket text frame.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope marshals data into a frame. A nil data yields no data field.
func NewEnvelope(event string, data any) ([]byte, error) {
	env := Envelope{Event: event}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		env.Data = raw
	}
	return json.Marshal(env)
}
