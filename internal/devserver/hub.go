package devserver

import (
	"encoding/json"
	"sync"
	"time"

	"leafchat/internal/domain"
	"leafchat/internal/pkg/logx"
)

// Hub is the single chat channel: connected clients, history and presence.
type Hub struct {
	register   chan *conn
	unregister chan *conn
	broadcast  chan []byte
	done       chan struct{}
	closeOnce  sync.Once

	mutex   sync.RWMutex
	clients map[*conn]bool

	historyMu sync.Mutex
	history   []domain.Message
	limit     int

	presence *Presence
	metrics  *Metrics
}

func NewHub(historyLimit int, metrics *Metrics) *Hub {
	h := &Hub{
		register:   make(chan *conn),
		unregister: make(chan *conn),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
		clients:    make(map[*conn]bool),
		limit:      historyLimit,
		presence:   NewPresence(),
		metrics:    metrics,
	}
	go h.run()
	return h
}

// Online lists connected usernames.
func (h *Hub) Online() []string {
	return h.presence.Online()
}

// History returns a copy of the stored messages.
func (h *Hub) History() []domain.Message {
	h.historyMu.Lock()
	defer h.historyMu.Unlock()
	return append([]domain.Message{}, h.history...)
}

// Close stops the hub and drops every connection.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

func (h *Hub) run() {
	for {
		select {
		case <-h.done:
			h.mutex.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mutex.Unlock()
			return
		case c := <-h.register:
			h.mutex.Lock()
			h.clients[c] = true
			h.mutex.Unlock()
			h.metrics.IncConn()
		case c := <-h.unregister:
			h.mutex.Lock()
			if _, exists := h.clients[c]; exists {
				delete(h.clients, c)
				close(c.send)
				h.metrics.DecConn()
			}
			h.mutex.Unlock()
		case payload := <-h.broadcast:
			// a client whose buffer is full is dropped rather than blocking the channel
			h.mutex.Lock()
			for c := range h.clients {
				select {
				case c.send <- payload:
				default:
					close(c.send)
					delete(h.clients, c)
					h.metrics.DecConn()
				}
			}
			h.mutex.Unlock()
		}
	}
}

func (h *Hub) publish(event string, data any) {
	payload, err := domain.NewEnvelope(event, data)
	if err != nil {
		logx.Error(err, "devserver encode failed", "event", event)
		return
	}
	select {
	case h.broadcast <- payload:
	case <-h.done:
	}
}

func (h *Hub) enter(c *conn) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *conn) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
	if c.username != "" && h.presence.Leave(c.username) {
		h.publish(domain.EventUpdateUsers, h.presence.Online())
	}
}

// handle applies one inbound frame from c.
func (h *Hub) handle(c *conn, env domain.Envelope) {
	switch env.Event {
	case domain.EventUserJoined:
		var username string
		if err := json.Unmarshal(env.Data, &username); err != nil || username == "" {
			return
		}
		if c.username != "" {
			if c.username == username {
				return
			}
			h.presence.Leave(c.username)
		}
		c.username = username
		h.presence.Join(username)
		h.publish(domain.EventUpdateUsers, h.presence.Online())
	case domain.EventRequestHistory:
		payload, err := domain.NewEnvelope(domain.EventChatMessages, h.History())
		if err != nil {
			return
		}
		c.queue(payload)
	case domain.EventChatMessage:
		var msg domain.Message
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			return
		}
		if msg.Timestamp.IsZero() {
			msg.Timestamp = time.Now().UTC()
		}
		msg.IsSystem = false
		if msg.Username == "" {
			msg.Username = c.username
		}
		h.appendHistory(msg)
		h.metrics.IncMessage()
		h.publish(domain.EventChatMessage, msg)
	default:
		logx.Debug("devserver ignored event", "event", env.Event)
	}
}

func (h *Hub) appendHistory(msg domain.Message) {
	h.historyMu.Lock()
	defer h.historyMu.Unlock()
	h.history = append(h.history, msg)
	if over := len(h.history) - h.limit; over > 0 {
		h.history = append([]domain.Message{}, h.history[over:]...)
	}
}
