// Package state is the client's single source of UI truth: an immutable
// State, a pure Reduce and a Store that serialises dispatch.
package state

import (
	"slices"

	"leafchat/internal/domain"
	"leafchat/internal/roster"
)

// State is replaced, never mutated, by Reduce.
type State struct {
	User     *domain.User
	Online   []domain.Profile
	Offline  []domain.Profile
	Messages []domain.Message
	Channel  string

	// RosterSeq is the snapshot sequence of the last applied RosterUpdate.
	RosterSeq uint64
}

// LoggedIn reports whether a session user is set.
func (s State) LoggedIn() bool {
	return s.User != nil
}

// Roster returns the current partition.
func (s State) Roster() roster.Roster {
	return roster.Roster{Online: s.Online, Offline: s.Offline}
}

// Reduce returns the state that results from applying a to s.
func Reduce(s State, a Action) State {
	switch act := a.(type) {
	case SessionSet:
		if act.User != nil {
			u := *act.User
			s.User = &u
		}
	case SessionClear:
		s.User = nil
		s.Messages = nil
		s.Channel = ""
		// directory stays visible, everyone becomes offline from our point of view
		s.Offline = roster.Seed(append(slices.Clone(s.Offline), s.Online...), nil)
		s.Online = nil
		s.RosterSeq = 0
	case ProfileUpdate:
		if s.User == nil {
			return s
		}
		u := *s.User
		u.Nickname = act.Nickname
		if act.Avatar != "" {
			u.Avatar = act.Avatar
		}
		s.User = &u
	case RosterSeed:
		s.Offline = roster.Seed(act.Directory, s.Online)
	case RosterUpdate:
		if act.Seq != 0 && act.Seq < s.RosterSeq {
			return s
		}
		s.Online = slices.Clone(act.Online)
		s.Offline = slices.Clone(act.Offline)
		s.RosterSeq = act.Seq
	case MessagesReset:
		s.Messages = slices.Clone(act.Messages)
	case MessageAppend:
		msgs := make([]domain.Message, len(s.Messages), len(s.Messages)+1)
		copy(msgs, s.Messages)
		s.Messages = append(msgs, act.Message)
	case ChannelStatus:
		s.Channel = act.Status
	}
	return s
}
