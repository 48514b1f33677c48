package internal

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"leafchat/internal/api"
	"leafchat/internal/command"
	"leafchat/internal/domain"
	"leafchat/internal/pkg/logx"
	"leafchat/internal/realtime"
	"leafchat/internal/roster"
)

type sessionMsg struct {
	profile *domain.Profile
	err     error
}

type directoryMsg struct {
	users []domain.Profile
	err   error
}

type loginMsg struct {
	profile domain.Profile
	err     error
}

type registerMsg struct {
	username string
	err      error
}

type logoutMsg struct{ err error }

type connectMsg struct{ err error }

type channelEventMsg realtime.Event

type channelClosedMsg struct{}

type rosterResolvedMsg struct {
	session  uint64
	seq      uint64
	online   []string
	resolved map[string]domain.Profile
	err      error
}

type sendMsg struct{ err error }

type commandMsg command.Result

type userCardMsg struct {
	profile domain.Profile
	err     error
}

type profileSavedMsg struct {
	nickname string
	avatar   string
	err      error
}

type attachMsg struct {
	name string
	err  error
}

func (model *TUIModel) requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), model.opts.RequestTimeout)
}

// bootstrapCmd restores a cookie session when there is one.
func (model *TUIModel) bootstrapCmd() tea.Cmd {
	backend := model.opts.Backend
	return func() tea.Msg {
		ctx, cancel := model.requestContext()
		defer cancel()

		username, err := backend.Session(ctx)
		if err != nil {
			return sessionMsg{err: err}
		}
		if username == "" {
			return sessionMsg{}
		}
		profile, err := backend.UserData(ctx, username)
		if err != nil {
			return sessionMsg{err: err}
		}
		return sessionMsg{profile: &profile}
	}
}

func (model *TUIModel) fetchUsersCmd() tea.Cmd {
	backend := model.opts.Backend
	return func() tea.Msg {
		ctx, cancel := model.requestContext()
		defer cancel()
		users, err := backend.Users(ctx)
		return directoryMsg{users: users, err: err}
	}
}

func (model *TUIModel) loginCmd(username, password string) tea.Cmd {
	backend := model.opts.Backend
	return func() tea.Msg {
		ctx, cancel := model.requestContext()
		defer cancel()

		name, err := backend.Login(ctx, api.LoginRequest{Username: username, Password: password})
		if err != nil {
			return loginMsg{err: err}
		}
		profile, err := backend.UserData(ctx, name)
		if err != nil {
			return loginMsg{err: err}
		}
		return loginMsg{profile: profile}
	}
}

func (model *TUIModel) registerCmd(req api.RegisterRequest) tea.Cmd {
	backend := model.opts.Backend
	return func() tea.Msg {
		ctx, cancel := model.requestContext()
		defer cancel()
		return registerMsg{username: req.Username, err: backend.Register(ctx, req)}
	}
}

// logoutCmd tears down the channel before telling the server. Local state is
// cleared by the caller whatever the outcome.
func (model *TUIModel) logoutCmd() tea.Cmd {
	backend := model.opts.Backend
	channel := model.opts.Channel
	clearSession := model.opts.ClearSession
	return func() tea.Msg {
		if channel != nil {
			channel.Disconnect()
		}
		ctx, cancel := model.requestContext()
		defer cancel()

		err := backend.Logout(ctx)
		if clearSession != nil {
			if clearErr := clearSession(ctx); clearErr != nil {
				logx.Error(clearErr, "clear stored session failed")
			}
		}
		return logoutMsg{err: err}
	}
}

func (model *TUIModel) connectCmd(username string) tea.Cmd {
	channel := model.opts.Channel
	if channel == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := model.requestContext()
		defer cancel()
		return connectMsg{err: channel.Connect(ctx, username)}
	}
}

// listenCmd reads one event from the subscription. It is re-armed after every
// event so the program keeps draining the channel.
func (model *TUIModel) listenCmd() tea.Cmd {
	events := model.opts.Events
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return channelClosedMsg{}
		}
		return channelEventMsg(ev)
	}
}

// resolveRosterCmd looks up the profiles of a presence snapshot off the UI
// loop. The result carries the login generation and seq so late answers can
// be recognised.
func (model *TUIModel) resolveRosterCmd(session, seq uint64, online []string) tea.Cmd {
	backend := model.opts.Backend
	policy := model.opts.RosterPolicy
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*model.opts.RequestTimeout)
		defer cancel()
		resolved, err := roster.Resolve(ctx, roster.ResolverFunc(backend.UserData), online, policy)
		return rosterResolvedMsg{session: session, seq: seq, online: online, resolved: resolved, err: err}
	}
}

func (model *TUIModel) sendCmd(msg domain.Message) tea.Cmd {
	channel := model.opts.Channel
	return func() tea.Msg {
		ctx, cancel := model.requestContext()
		defer cancel()
		return sendMsg{err: channel.Emit(ctx, domain.EventChatMessage, msg)}
	}
}

func (model *TUIModel) commandCmd(cmd command.Command, isAdmin bool) tea.Cmd {
	dispatcher := model.dispatcher
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 2*model.opts.RequestTimeout)
		defer cancel()
		return commandMsg(dispatcher.Dispatch(ctx, cmd, isAdmin))
	}
}

func (model *TUIModel) userCardCmd(username string) tea.Cmd {
	backend := model.opts.Backend
	return func() tea.Msg {
		ctx, cancel := model.requestContext()
		defer cancel()
		profile, err := backend.UserData(ctx, username)
		return userCardMsg{profile: profile, err: err}
	}
}

// saveProfileCmd uploads a new avatar when path is set, then submits the
// profile. The avatar is only kept when the update succeeds.
func (model *TUIModel) saveProfileCmd(username, nickname, avatar, path string) tea.Cmd {
	backend := model.opts.Backend
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 4*model.opts.RequestTimeout)
		defer cancel()

		if path != "" {
			upload, err := backend.Upload(ctx, path)
			if err != nil {
				return profileSavedMsg{err: err}
			}
			avatar = upload.URL
		}
		err := backend.UpdateProfile(ctx, api.ProfileUpdate{
			Username:       username,
			Nickname:       nickname,
			ProfilePicture: avatar,
		})
		if err != nil {
			return profileSavedMsg{err: err}
		}
		return profileSavedMsg{nickname: nickname, avatar: avatar}
	}
}

// attachCmd uploads a file and posts it as a chat message with text as the
// caption.
func (model *TUIModel) attachCmd(user *domain.User, path, text string) tea.Cmd {
	backend := model.opts.Backend
	channel := model.opts.Channel
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 4*model.opts.RequestTimeout)
		defer cancel()

		upload, err := backend.Upload(ctx, path)
		if err != nil {
			return attachMsg{name: path, err: err}
		}
		msg := domain.Outgoing(user, text, time.Now())
		msg.FileURL = upload.URL
		msg.IsImage = upload.IsImage()
		msg.IsVideo = upload.IsVideo()
		return attachMsg{name: path, err: channel.Emit(ctx, domain.EventChatMessage, msg)}
	}
}
