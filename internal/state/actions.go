package state

import "leafchat/internal/domain"

// ActionType names a state transition.
type ActionType string

const (
	ActionSessionSet    ActionType = "SESSION_SET"
	ActionSessionClear  ActionType = "SESSION_CLEAR"
	ActionProfileUpdate ActionType = "PROFILE_UPDATE"
	ActionRosterSeed    ActionType = "ROSTER_SEED"
	ActionRosterUpdate  ActionType = "ROSTER_UPDATE"
	ActionMessagesReset ActionType = "MESSAGES_RESET"
	ActionMessageAppend ActionType = "MESSAGE_APPEND"
	ActionChannelStatus ActionType = "CHANNEL_STATUS"
)

// Action is anything the reducer understands.
type Action interface {
	Type() ActionType
}

// SessionSet adopts a user after login or session restore.
type SessionSet struct {
	User *domain.User
}

// SessionClear drops the session, the roster view of it and the feed.
type SessionClear struct{}

// ProfileUpdate applies an accepted nickname/avatar change.
type ProfileUpdate struct {
	Nickname string
	Avatar   string
}

// RosterSeed places the user directory into the offline list.
type RosterSeed struct {
	Directory []domain.Profile
}

// RosterUpdate applies a reconciled roster from presence snapshot Seq.
type RosterUpdate struct {
	Seq     uint64
	Online  []domain.Profile
	Offline []domain.Profile
}

// MessagesReset replaces the feed with replayed history.
type MessagesReset struct {
	Messages []domain.Message
}

// MessageAppend adds one message at the end of the feed.
type MessageAppend struct {
	Message domain.Message
}

// ChannelStatus records the realtime channel state.
type ChannelStatus struct {
	Status string
}

func (SessionSet) Type() ActionType    { return ActionSessionSet }
func (SessionClear) Type() ActionType  { return ActionSessionClear }
func (ProfileUpdate) Type() ActionType { return ActionProfileUpdate }
func (RosterSeed) Type() ActionType    { return ActionRosterSeed }
func (RosterUpdate) Type() ActionType  { return ActionRosterUpdate }
func (MessagesReset) Type() ActionType { return ActionMessagesReset }
func (MessageAppend) Type() ActionType { return ActionMessageAppend }
func (ChannelStatus) Type() ActionType { return ActionChannelStatus }
