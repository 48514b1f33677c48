// Package domain holds the types shared by every layer of the client.
package domain

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// SystemUsername marks locally synthesised notices.
const SystemUsername = "System"

const (
	DefaultAvatar = "https://via.placeholder.com/50"
	RosterAvatar  = "https://via.placeholder.com/36"
)

// Status is the presence of the session user.
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// User is the logged-in session user.
type User struct {
	Username string
	Nickname string
	Avatar   string
	Status   Status
	IsAdmin  bool
}

// NewUser adopts a profile returned by the server as the session user.
func NewUser(p Profile) *User {
	avatar := p.ProfilePicture
	if avatar == "" {
		avatar = DefaultAvatar
	}
	return &User{
		Username: p.Username,
		Nickname: p.Nickname,
		Avatar:   avatar,
		Status:   StatusOnline,
		IsAdmin:  p.IsAdmin,
	}
}

// DisplayName prefers the nickname.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if strings.TrimSpace(u.Nickname) != "" {
		return u.Nickname
	}
	return u.Username
}

// Profile is a roster entry as returned by the user directory and profile lookups.
type Profile struct {
	Username       string `json:"username"`
	Nickname       string `json:"nickname,omitempty"`
	ProfilePicture string `json:"profilePicture,omitempty"`
	IsAdmin        bool   `json:"isAdmin,omitempty"`
}

// DisplayName prefers the nickname.
func (p Profile) DisplayName() string {
	if strings.TrimSpace(p.Nickname) != "" {
		return p.Nickname
	}
	return p.Username
}

// Avatar returns the picture URL or the roster placeholder.
func (p Profile) Avatar() string {
	if p.ProfilePicture == "" {
		return RosterAvatar
	}
	return p.ProfilePicture
}

// Message is one entry of the chat feed.
type Message struct {
	Message        string    `json:"message"`
	Username       string    `json:"username"`
	Nickname       string    `json:"nickname,omitempty"`
	ProfilePicture string    `json:"profilePicture,omitempty"`
	FileURL        string    `json:"fileURL,omitempty"`
	IsImage        bool      `json:"isImage,omitempty"`
	IsVideo        bool      `json:"isVideo,omitempty"`
	IsSystem       bool      `json:"isSystem,omitempty"`
	IsAdmin        bool      `json:"isAdmin,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// UnmarshalJSON accepts the timestamp as an RFC 3339 string, epoch
// milliseconds (number or numeric string), or empty. Anything else decodes to
// the zero time rather than failing the whole message.
func (m *Message) UnmarshalJSON(data []byte) error {
	type plain Message
	aux := struct {
		*plain
		Timestamp json.RawMessage `json:"timestamp"`
	}{plain: (*plain)(m)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	m.Timestamp = parseTimestamp(aux.Timestamp)
	return nil
}

func parseTimestamp(raw json.RawMessage) time.Time {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return time.Time{}
	}

	var text string
	if raw[0] == '"' {
		if err := json.Unmarshal(raw, &text); err != nil {
			return time.Time{}
		}
	} else {
		text = string(raw)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(time.RFC3339Nano, text); err == nil {
		return ts
	}
	if ms, err := strconv.ParseFloat(text, 64); err == nil {
		return time.UnixMilli(int64(ms))
	}
	return time.Time{}
}

// SystemNotice builds a local-only message. It is never emitted.
func SystemNotice(text string, now time.Time) Message {
	return Message{
		Message:   text,
		Username:  SystemUsername,
		IsSystem:  true,
		Timestamp: now,
	}
}

// Sender is the name shown next to the message.
func (m Message) Sender() string {
	if strings.TrimSpace(m.Nickname) != "" {
		return m.Nickname
	}
	return m.Username
}

// HasAttachment reports whether the message references an uploaded file.
func (m Message) HasAttachment() bool {
	return m.FileURL != ""
}

// Outgoing builds a chat message from the session user.
func Outgoing(u *User, text string, now time.Time) Message {
	msg := Message{Message: text, Timestamp: now}
	if u != nil {
		msg.Username = u.Username
		msg.Nickname = u.Nickname
		msg.ProfilePicture = u.Avatar
		msg.IsAdmin = u.IsAdmin
	}
	return msg
}
