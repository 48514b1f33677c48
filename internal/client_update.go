package internal

import (
	"encoding/json"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"leafchat/internal/api"
	"leafchat/internal/command"
	"leafchat/internal/domain"
	"leafchat/internal/pkg/errs"
	"leafchat/internal/pkg/logx"
	"leafchat/internal/realtime"
	"leafchat/internal/roster"
	"leafchat/internal/state"
)

const (
	noticeNotConnected = "Not connected to the channel. Your message was kept."
	noticeLoggedOut    = "Logged out."
)

func (model *TUIModel) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := message.(type) {
	case tea.WindowSizeMsg:
		model.resize(typed.Width, typed.Height)
		return model, nil
	case tea.KeyMsg:
		if typed.Type == tea.KeyCtrlC {
			return model, tea.Quit
		}
		return model, model.handleKey(typed)

	case sessionMsg:
		model.loading = false
		switch {
		case typed.err != nil:
			logx.Warn("session restore failed", "error", typed.err.Error())
			model.notify("Could not reach the server: " + errs.UserMessage(typed.err))
		case typed.profile != nil:
			return model, model.adoptSession(*typed.profile)
		}
		return model, nil

	case directoryMsg:
		if typed.err != nil {
			logx.Warn("user directory unavailable", "error", typed.err.Error())
			return model, nil
		}
		model.dispatch(state.RosterSeed{Directory: typed.users})
		return model, nil

	case loginMsg:
		model.loading = false
		if typed.err != nil {
			logx.Info("login failed", "username", model.authUser, "kind", errs.KindOf(typed.err).String())
			model.showAlert("Login failed: " + errs.UserMessage(typed.err))
			return model, nil
		}
		return model, model.adoptSession(typed.profile)

	case registerMsg:
		model.loading = false
		if typed.err != nil {
			model.showAlert("Registration failed: " + errs.UserMessage(typed.err))
			return model, nil
		}
		model.notices = []string{"Registration successful. Please log in."}
		model.authIntent = authIntentLogin
		model.authUser = typed.username
		model.mode = modeAuthUsername
		return model, model.setPrompt("username> ", "Username", typed.username, false)

	case logoutMsg:
		model.loading = false
		model.dispatch(state.SessionClear{})
		model.session++
		model.card = nil
		model.rosterIndex = 0
		model.draft = ""
		model.enterAuthMenu()
		if typed.err != nil {
			logx.Error(typed.err, "logout request failed")
			model.notify("Logged out locally, the server did not confirm: " + errs.UserMessage(typed.err))
		} else {
			model.notify(noticeLoggedOut)
		}
		return model, nil

	case connectMsg:
		if typed.err != nil && model.current().LoggedIn() {
			model.dispatch(state.ChannelStatus{Status: realtime.StateDisconnected.String()})
			model.notify("Could not join the channel: " + errs.UserMessage(typed.err))
		}
		return model, nil

	case channelEventMsg:
		return model, tea.Batch(model.handleChannelEvent(realtime.Event(typed)), model.listenCmd())

	case channelClosedMsg:
		logx.Debug("channel subscription closed")
		return model, nil

	case rosterResolvedMsg:
		model.applyRoster(typed)
		return model, nil

	case sendMsg:
		if typed.err != nil {
			logx.Warn("send failed", "kind", errs.KindOf(typed.err).String())
			model.notify("Message not sent: " + errs.UserMessage(typed.err))
		}
		return model, nil

	case commandMsg:
		model.notify(typed.Notice)
		return model, nil

	case userCardMsg:
		if typed.err != nil {
			model.notify("Could not load profile: " + errs.UserMessage(typed.err))
			return model, nil
		}
		profile := typed.profile
		model.card = &profile
		model.draft = model.textInput.Value()
		model.mode = modeUserCard
		model.textInput.Blur()
		return model, nil

	case profileSavedMsg:
		model.loading = false
		if typed.err != nil {
			logx.Error(typed.err, "profile update failed", "kind", errs.KindOf(typed.err).String())
			model.notify("Profile not updated: " + errs.UserMessage(typed.err))
			return model, nil
		}
		model.dispatch(state.ProfileUpdate{Nickname: typed.nickname, Avatar: typed.avatar})
		model.notify("Profile updated.")
		return model, nil

	case attachMsg:
		model.loading = false
		if typed.err != nil {
			logx.Error(typed.err, "attachment failed", "file", typed.name, "kind", errs.KindOf(typed.err).String())
			model.notify("Upload failed: " + errs.UserMessage(typed.err))
		}
		return model, nil
	}

	if model.mode == modeChat {
		var cmd tea.Cmd
		model.viewport, cmd = model.viewport.Update(message)
		return model, cmd
	}
	return model, nil
}

// adoptSession makes p the session user and joins the channel.
func (model *TUIModel) adoptSession(p domain.Profile) tea.Cmd {
	model.notices = nil
	model.authPass = ""
	model.session++
	model.dispatch(state.SessionSet{User: domain.NewUser(p)})
	model.dispatch(state.ChannelStatus{Status: realtime.StateConnecting.String()})
	return tea.Batch(model.enterChat(), model.connectCmd(p.Username), model.fetchUsersCmd())
}

func (model *TUIModel) handleChannelEvent(ev realtime.Event) tea.Cmd {
	s := model.current()
	if !s.LoggedIn() {
		return nil
	}

	switch ev.Name {
	case domain.EventConnect:
		model.dispatch(state.ChannelStatus{Status: realtime.StateJoined.String()})
	case domain.EventDisconnect:
		model.dispatch(state.ChannelStatus{Status: realtime.StateDisconnected.String()})
	case domain.EventChatMessage:
		var msg domain.Message
		if err := ev.Decode(&msg); err != nil {
			logx.Warn("dropping chat message", "error", err.Error())
			return nil
		}
		model.dispatch(state.MessageAppend{Message: msg})
	case domain.EventChatMessages:
		var raw []json.RawMessage
		if err := ev.Decode(&raw); err != nil {
			logx.Warn("dropping history", "error", err.Error())
			return nil
		}
		history := make([]domain.Message, 0, len(raw))
		for i, item := range raw {
			var msg domain.Message
			if err := json.Unmarshal(item, &msg); err != nil {
				logx.Warn("skipping history entry", "index", i, "error", err.Error())
				continue
			}
			history = append(history, msg)
		}
		model.dispatch(state.MessagesReset{Messages: history})
	case domain.EventUpdateUsers:
		var online []string
		if err := ev.Decode(&online); err != nil {
			logx.Warn("dropping presence snapshot", "error", err.Error())
			return nil
		}
		model.rosterIssue++
		return model.resolveRosterCmd(model.session, model.rosterIssue, online)
	}
	return nil
}

// applyRoster merges a resolved snapshot unless a newer one was applied first.
func (model *TUIModel) applyRoster(res rosterResolvedMsg) {
	s := model.current()
	if !s.LoggedIn() {
		return
	}
	if res.err != nil {
		logx.Warn("roster resolution abandoned", "seq", res.seq, "error", res.err.Error())
		return
	}
	if res.session != model.session {
		logx.Debug("roster snapshot from an earlier session", "seq", res.seq)
		return
	}
	if res.seq < s.RosterSeq {
		logx.Debug("stale roster snapshot", "seq", res.seq, "applied", s.RosterSeq)
		return
	}
	next := roster.Merge(s.Roster(), res.online, res.resolved)
	model.dispatch(state.RosterUpdate{Seq: res.seq, Online: next.Online, Offline: next.Offline})
	if total := len(next.Online) + len(next.Offline); model.rosterIndex >= total {
		model.rosterIndex = max(total-1, 0)
	}
}

func (model *TUIModel) handleKey(key tea.KeyMsg) tea.Cmd {
	switch model.mode {
	case modeAuthMenu:
		return model.handleAuthMenuKey(key)
	case modeAuthUsername, modeAuthPassword, modeAuthInvite:
		return model.handleAuthPromptKey(key)
	case modeAlert:
		if key.Type == tea.KeyEnter || key.Type == tea.KeyEsc {
			model.alert = ""
			model.enterAuthMenu()
		}
		return nil
	case modeProfileEdit:
		return model.handleProfileKey(key)
	case modeFileBrowser:
		return model.handleBrowserKey(key)
	case modeUserCard:
		if key.Type == tea.KeyEsc || key.Type == tea.KeyEnter {
			model.card = nil
			return model.enterChat()
		}
		return nil
	default:
		return model.handleChatKey(key)
	}
}

func (model *TUIModel) handleAuthMenuKey(key tea.KeyMsg) tea.Cmd {
	if model.loading {
		return nil
	}
	switch key.String() {
	case "1", "l", "L":
		model.authIntent = authIntentLogin
	case "2", "r", "R":
		model.authIntent = authIntentRegister
	case "q", "Q", "esc":
		return tea.Quit
	default:
		return nil
	}
	model.mode = modeAuthUsername
	return model.setPrompt("username> ", "Username", model.authUser, false)
}

func (model *TUIModel) handleAuthPromptKey(key tea.KeyMsg) tea.Cmd {
	switch key.Type {
	case tea.KeyEsc:
		model.enterAuthMenu()
		return nil
	case tea.KeyEnter:
	default:
		var cmd tea.Cmd
		model.textInput, cmd = model.textInput.Update(key)
		return cmd
	}
	if model.loading {
		return nil
	}

	value := model.textInput.Value()
	switch model.mode {
	case modeAuthUsername:
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			model.notify("Username cannot be empty.")
			return nil
		}
		model.authUser = trimmed
		model.mode = modeAuthPassword
		return model.setPrompt("password> ", "Password", "", true)
	case modeAuthPassword:
		if value == "" {
			model.notify("Password cannot be empty.")
			return nil
		}
		if model.authIntent == authIntentLogin {
			model.loading = true
			model.textInput.Reset()
			return model.loginCmd(model.authUser, value)
		}
		model.authPass = value
		model.mode = modeAuthInvite
		return model.setPrompt("invite> ", "Invite token", "", false)
	default:
		token := strings.TrimSpace(value)
		if token == "" {
			model.notify("An invite token is required to sign up.")
			return nil
		}
		model.loading = true
		req := api.RegisterRequest{Username: model.authUser, Password: model.authPass, InviteToken: token}
		model.authPass = ""
		model.textInput.Reset()
		return model.registerCmd(req)
	}
}

func (model *TUIModel) handleChatKey(key tea.KeyMsg) tea.Cmd {
	switch key.String() {
	case "esc":
		return tea.Quit
	case "enter":
		return model.submit()
	case "up":
		if model.rosterIndex > 0 {
			model.rosterIndex--
		}
		return nil
	case "down":
		if model.rosterIndex < len(model.rosterEntries())-1 {
			model.rosterIndex++
		}
		return nil
	case "ctrl+w":
		if p, ok := model.selectedProfile(); ok {
			return model.userCardCmd(p.Username)
		}
		return nil
	case "ctrl+o":
		if model.current().Channel != realtime.StateJoined.String() {
			model.notify(noticeNotConnected)
			return nil
		}
		return model.openBrowser(pickAttachment)
	case "ctrl+e":
		return model.enterProfileEdit()
	case "ctrl+l":
		if model.loading {
			return nil
		}
		model.loading = true
		return model.logoutCmd()
	case "pgup", "pgdown":
		var cmd tea.Cmd
		model.viewport, cmd = model.viewport.Update(key)
		return cmd
	}
	var cmd tea.Cmd
	model.textInput, cmd = model.textInput.Update(key)
	return cmd
}

// submit sends the input line as a message or runs it as a command. Commands
// are refused locally for non-admins.
func (model *TUIModel) submit() tea.Cmd {
	text := model.textInput.Value()
	if strings.TrimSpace(text) == "" {
		return nil
	}
	s := model.current()
	if !s.LoggedIn() {
		model.notify("You are not logged in.")
		return nil
	}

	if command.IsCommand(text) {
		model.textInput.Reset()
		if !s.User.IsAdmin {
			model.notify(command.NoticePermissionDenied)
			return nil
		}
		cmd, ok := command.Parse(text)
		if !ok || !model.dispatcher.Known(cmd.Key()) {
			model.notify(command.NoticeInvalidCommand)
			return nil
		}
		return model.commandCmd(cmd, true)
	}

	if s.Channel != realtime.StateJoined.String() || model.opts.Channel == nil {
		model.notify(noticeNotConnected)
		return nil
	}
	model.textInput.Reset()
	return model.sendCmd(domain.Outgoing(s.User, text, time.Now()))
}

func (model *TUIModel) enterProfileEdit() tea.Cmd {
	user := model.current().User
	if user == nil {
		return nil
	}
	model.draft = model.textInput.Value()
	model.mode = modeProfileEdit
	return model.setPrompt("nickname> ", "Nickname", user.Nickname, false)
}

func (model *TUIModel) handleProfileKey(key tea.KeyMsg) tea.Cmd {
	switch key.String() {
	case "esc":
		return model.enterChat()
	case "ctrl+o":
		model.draftNick = strings.TrimSpace(model.textInput.Value())
		return model.openBrowser(pickAvatar)
	case "enter":
		user := model.current().User
		if user == nil || model.loading {
			return nil
		}
		model.loading = true
		nickname := strings.TrimSpace(model.textInput.Value())
		cmd := model.saveProfileCmd(user.Username, nickname, keptAvatar(user), "")
		return tea.Batch(model.enterChat(), cmd)
	}
	var cmd tea.Cmd
	model.textInput, cmd = model.textInput.Update(key)
	return cmd
}

// keptAvatar is the avatar to resubmit with a profile update. The local
// placeholder is never sent.
func keptAvatar(u *domain.User) string {
	if u.Avatar == domain.DefaultAvatar {
		return ""
	}
	return u.Avatar
}

func (model *TUIModel) openBrowser(purpose pickPurpose) tea.Cmd {
	if err := model.browser.load(model.browser.dir); err != nil {
		model.notify("Cannot open " + model.browser.dir + ": " + err.Error())
		return nil
	}
	if purpose == pickAttachment {
		model.draft = model.textInput.Value()
	}
	model.returnMode = model.mode
	model.pickFor = purpose
	model.mode = modeFileBrowser
	model.textInput.Blur()
	return nil
}

func (model *TUIModel) handleBrowserKey(key tea.KeyMsg) tea.Cmd {
	switch key.String() {
	case "esc":
		if model.returnMode == modeProfileEdit {
			model.mode = modeProfileEdit
			return model.setPrompt("nickname> ", "Nickname", model.draftNick, false)
		}
		return model.enterChat()
	case "up":
		model.browser.move(-1)
		return nil
	case "down":
		model.browser.move(1)
		return nil
	case "enter":
	default:
		return nil
	}

	item, ok := model.browser.selected()
	if !ok {
		return nil
	}
	if item.IsDir {
		if err := model.browser.load(item.Path); err != nil {
			model.notify("Cannot open " + item.Path + ": " + err.Error())
		}
		return nil
	}

	user := model.current().User
	if user == nil {
		return model.enterChat()
	}
	model.loading = true
	if model.pickFor == pickAvatar {
		cmd := model.saveProfileCmd(user.Username, model.draftNick, keptAvatar(user), item.Path)
		return tea.Batch(model.enterChat(), cmd)
	}
	caption := strings.TrimSpace(model.draft)
	model.draft = ""
	return tea.Batch(model.enterChat(), model.attachCmd(user, item.Path, caption))
}
