package internal

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leafchat/internal/api"
	"leafchat/internal/command"
	"leafchat/internal/domain"
	"leafchat/internal/pkg/errs"
	"leafchat/internal/pkg/logx"
	"leafchat/internal/realtime"
	"leafchat/internal/state"
)

type fakeBackend struct {
	mu       sync.Mutex
	calls    []string
	profiles map[string]domain.Profile

	loginErr  error
	logoutErr error
	tokens    []string
}

func (f *fakeBackend) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeBackend) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeBackend) Session(ctx context.Context) (string, error) {
	f.record("session")
	return "", nil
}

func (f *fakeBackend) Users(ctx context.Context) ([]domain.Profile, error) {
	f.record("users")
	return nil, nil
}

func (f *fakeBackend) UserData(ctx context.Context, username string) (domain.Profile, error) {
	f.record("userdata " + username)
	if p, ok := f.profiles[username]; ok {
		return p, nil
	}
	return domain.Profile{}, errs.NewError(errs.ErrNotFound, username)
}

func (f *fakeBackend) Login(ctx context.Context, req api.LoginRequest) (string, error) {
	f.record("login")
	if f.loginErr != nil {
		return "", f.loginErr
	}
	return req.Username, nil
}

func (f *fakeBackend) Register(ctx context.Context, req api.RegisterRequest) error {
	f.record("register " + req.Username)
	return nil
}

func (f *fakeBackend) Logout(ctx context.Context) error {
	f.record("logout")
	return f.logoutErr
}

func (f *fakeBackend) CreateInvites(ctx context.Context, amount int) (*api.InviteResult, error) {
	f.record("invite")
	return &api.InviteResult{Message: "Invites created", Tokens: f.tokens}, nil
}

func (f *fakeBackend) UpdateProfile(ctx context.Context, req api.ProfileUpdate) error {
	f.record("update " + req.Nickname)
	return nil
}

func (f *fakeBackend) Upload(ctx context.Context, path string) (*api.UploadResult, error) {
	f.record("upload")
	return &api.UploadResult{URL: "http://server/uploads/x.png", MIME: "image/png"}, nil
}

type fakeChannel struct {
	mu          sync.Mutex
	state       realtime.State
	emitted     []domain.Message
	disconnects int
}

func (c *fakeChannel) Connect(ctx context.Context, username string) error { return nil }

func (c *fakeChannel) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnects++
	c.state = realtime.StateIdle
}

func (c *fakeChannel) Emit(ctx context.Context, event string, data any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if msg, ok := data.(domain.Message); ok && event == domain.EventChatMessage {
		c.emitted = append(c.emitted, msg)
	}
	return nil
}

func (c *fakeChannel) State() realtime.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func newTestModel(t *testing.T, user *domain.User) (*TUIModel, *fakeBackend, *fakeChannel) {
	t.Helper()
	logx.Discard()
	backend := &fakeBackend{profiles: map[string]domain.Profile{
		"ivy":  {Username: "ivy", Nickname: "Ivy"},
		"fern": {Username: "fern"},
	}}
	channel := &fakeChannel{}
	store := state.NewStore(state.State{})
	model := NewTUIModel(Options{
		Backend:        backend,
		Channel:        channel,
		Store:          store,
		RequestTimeout: time.Second,
		BrowseDir:      t.TempDir(),
	})
	if user != nil {
		store.Dispatch(state.SessionSet{User: user})
		store.Dispatch(state.ChannelStatus{Status: realtime.StateJoined.String()})
		channel.state = realtime.StateJoined
		model.enterChat()
	}
	return model, backend, channel
}

func typeAndSubmit(model *TUIModel, text string) tea.Cmd {
	model.textInput.SetValue(text)
	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return cmd
}

func lastNotice(t *testing.T, model *TUIModel) string {
	t.Helper()
	msgs := model.current().Messages
	require.NotEmpty(t, msgs)
	last := msgs[len(msgs)-1]
	require.True(t, last.IsSystem)
	return last.Message
}

func TestNonAdminCommandNeverReachesTheNetwork(t *testing.T) {
	model, backend, _ := newTestModel(t, &domain.User{Username: "ivy"})

	for _, input := range []string{"/invites create 5", "/user create bob pw", "/anything"} {
		cmd := typeAndSubmit(model, input)
		assert.Nil(t, cmd, input)
		assert.Equal(t, command.NoticePermissionDenied, lastNotice(t, model))
	}
	assert.Empty(t, backend.Calls())
	assert.Empty(t, model.textInput.Value())
}

func TestAdminCommandEchoesTokens(t *testing.T) {
	model, backend, channel := newTestModel(t, &domain.User{Username: "root", IsAdmin: true})
	backend.tokens = []string{"tok-1", "tok-2"}

	cmd := typeAndSubmit(model, "/invites create 2")
	require.NotNil(t, cmd)
	model.Update(cmd())

	notice := lastNotice(t, model)
	assert.Contains(t, notice, "tok-1")
	assert.Contains(t, notice, "tok-2")
	assert.Equal(t, []string{"invite"}, backend.Calls())
	assert.Empty(t, channel.emitted)
}

func TestAdminUnknownCommand(t *testing.T) {
	model, backend, _ := newTestModel(t, &domain.User{Username: "root", IsAdmin: true})

	assert.Nil(t, typeAndSubmit(model, "/teleport now"))
	assert.Equal(t, command.NoticeInvalidCommand, lastNotice(t, model))
	assert.Empty(t, backend.Calls())
}

func TestSendRequiresJoinedChannel(t *testing.T) {
	model, _, channel := newTestModel(t, &domain.User{Username: "ivy"})
	model.dispatch(state.ChannelStatus{Status: realtime.StateDisconnected.String()})

	assert.Nil(t, typeAndSubmit(model, "hello there"))
	assert.Equal(t, "hello there", model.textInput.Value())
	assert.Equal(t, noticeNotConnected, lastNotice(t, model))
	assert.Empty(t, channel.emitted)
}

func TestSendEmitsWithSenderMetadata(t *testing.T) {
	model, _, channel := newTestModel(t, &domain.User{Username: "ivy", Nickname: "Ivy", Avatar: "http://a/ivy.png", IsAdmin: false})

	cmd := typeAndSubmit(model, "hello there")
	require.NotNil(t, cmd)
	assert.Empty(t, model.textInput.Value())

	model.Update(cmd())
	require.Len(t, channel.emitted, 1)
	sent := channel.emitted[0]
	assert.Equal(t, "hello there", sent.Message)
	assert.Equal(t, "ivy", sent.Username)
	assert.Equal(t, "Ivy", sent.Nickname)
	assert.Equal(t, "http://a/ivy.png", sent.ProfilePicture)
	assert.False(t, sent.Timestamp.IsZero())
}

func TestLogoutClearsStateEvenWhenServerFails(t *testing.T) {
	model, backend, channel := newTestModel(t, &domain.User{Username: "ivy"})
	backend.logoutErr = errs.NewError(errs.ErrNetwork, "logout")
	cleared := false
	model.opts.ClearSession = func(context.Context) error {
		cleared = true
		return nil
	}
	model.dispatch(state.MessageAppend{Message: domain.Message{Message: "hi", Username: "fern"}})
	model.dispatch(state.RosterUpdate{Seq: 1, Online: []domain.Profile{{Username: "fern"}}})

	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyCtrlL})
	require.NotNil(t, cmd)
	model.Update(cmd())

	s := model.current()
	assert.False(t, s.LoggedIn())
	assert.Empty(t, s.Messages)
	assert.Empty(t, s.Online)
	assert.Empty(t, s.Channel)
	assert.Equal(t, modeAuthMenu, model.mode)
	assert.Equal(t, 1, channel.disconnects)
	assert.True(t, cleared)
	require.NotEmpty(t, model.notices)
	assert.Contains(t, model.notices[len(model.notices)-1], "Logged out locally")
}

func TestLoginFailureShowsBlockingAlert(t *testing.T) {
	model, backend, _ := newTestModel(t, nil)
	backend.loginErr = errs.NewError(errs.ErrUnauthorized, "login", "Invalid credentials")

	model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("1")})
	require.Equal(t, modeAuthUsername, model.mode)
	typeAndSubmit(model, "ivy")
	require.Equal(t, modeAuthPassword, model.mode)
	cmd := typeAndSubmit(model, "wrong")
	require.NotNil(t, cmd)

	model.Update(cmd())
	assert.Equal(t, modeAlert, model.mode)
	assert.Contains(t, model.alert, "Invalid credentials")
	assert.Contains(t, model.View(), "Invalid credentials")

	model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("x")})
	assert.Equal(t, modeAlert, model.mode)
	model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, modeAuthMenu, model.mode)
	assert.False(t, model.current().LoggedIn())
}

func TestLoginSuccessAdoptsSession(t *testing.T) {
	model, _, _ := newTestModel(t, nil)

	cmd := model.loginCmd("ivy", "pw")
	model.Update(cmd())

	s := model.current()
	require.True(t, s.LoggedIn())
	assert.Equal(t, "Ivy", s.User.DisplayName())
	assert.Equal(t, domain.DefaultAvatar, s.User.Avatar)
	assert.Equal(t, realtime.StateConnecting.String(), s.Channel)
	assert.Equal(t, modeChat, model.mode)
}

func TestRegistrationReturnsToLogin(t *testing.T) {
	model, backend, _ := newTestModel(t, nil)

	model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("2")})
	typeAndSubmit(model, "newbie")
	typeAndSubmit(model, "pw")
	require.Equal(t, modeAuthInvite, model.mode)
	assert.Nil(t, typeAndSubmit(model, "   "))
	cmd := typeAndSubmit(model, "tok-1")
	require.NotNil(t, cmd)

	model.Update(cmd())
	assert.Equal(t, []string{"register newbie"}, backend.Calls())
	assert.Equal(t, modeAuthUsername, model.mode)
	assert.Equal(t, authIntentLogin, model.authIntent)
	assert.Equal(t, "newbie", model.textInput.Value())
	assert.Contains(t, model.notices, "Registration successful. Please log in.")
}

func TestHistoryThenLiveMessages(t *testing.T) {
	model, _, _ := newTestModel(t, &domain.User{Username: "ivy"})
	model.dispatch(state.MessageAppend{Message: domain.Message{Message: "stale"}})

	model.handleChannelEvent(realtime.Event{
		Name: domain.EventChatMessages,
		Data: []byte(`[{"message":"one","username":"fern"},{"message":"two","username":"ivy"}]`),
	})
	model.handleChannelEvent(realtime.Event{
		Name: domain.EventChatMessage,
		Data: []byte(`{"message":"three","username":"fern"}`),
	})

	var texts []string
	for _, m := range model.current().Messages {
		texts = append(texts, m.Message)
	}
	assert.Equal(t, []string{"one", "two", "three"}, texts)
}

func TestHistoryToleratesMixedTimestamps(t *testing.T) {
	model, _, _ := newTestModel(t, &domain.User{Username: "ivy"})

	model.handleChannelEvent(realtime.Event{
		Name: domain.EventChatMessages,
		Data: []byte(`[{"message":"iso","username":"fern","timestamp":"2024-01-01T00:00:00.000Z"},` +
			`{"message":"epoch","username":"ivy","timestamp":1700000000000},` +
			`"not a message",` +
			`{"message":"blank","username":"fern","timestamp":""}]`),
	})

	msgs := model.current().Messages
	require.Len(t, msgs, 3)
	assert.Equal(t, "iso", msgs[0].Message)
	assert.True(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Equal(msgs[0].Timestamp))
	assert.Equal(t, "epoch", msgs[1].Message)
	assert.True(t, time.UnixMilli(1700000000000).Equal(msgs[1].Timestamp))
	assert.Equal(t, "blank", msgs[2].Message)
	assert.True(t, msgs[2].Timestamp.IsZero())
}

func TestLiveMessageWithEmptyTimestamp(t *testing.T) {
	model, _, _ := newTestModel(t, &domain.User{Username: "ivy"})

	model.handleChannelEvent(realtime.Event{
		Name: domain.EventChatMessage,
		Data: []byte(`{"message":"hello","username":"fern","timestamp":""}`),
	})

	msgs := model.current().Messages
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0].Message)
	assert.True(t, msgs[0].Timestamp.IsZero())
}

func TestChannelEventsIgnoredWithoutSession(t *testing.T) {
	model, _, _ := newTestModel(t, nil)

	cmd := model.handleChannelEvent(realtime.Event{Name: domain.EventUpdateUsers, Data: []byte(`["ivy"]`)})
	assert.Nil(t, cmd)
	model.handleChannelEvent(realtime.Event{Name: domain.EventChatMessage, Data: []byte(`{"message":"x"}`)})
	assert.Empty(t, model.current().Messages)
}

func TestStaleRosterSnapshotIsDiscarded(t *testing.T) {
	model, _, _ := newTestModel(t, &domain.User{Username: "ivy"})
	model.dispatch(state.RosterSeed{Directory: []domain.Profile{{Username: "ivy"}, {Username: "fern"}}})

	first := model.handleChannelEvent(realtime.Event{Name: domain.EventUpdateUsers, Data: []byte(`["ivy","fern"]`)})
	second := model.handleChannelEvent(realtime.Event{Name: domain.EventUpdateUsers, Data: []byte(`["ivy"]`)})
	require.NotNil(t, first)
	require.NotNil(t, second)

	// the newer snapshot resolves first
	model.Update(second())
	model.Update(first())

	s := model.current()
	require.Len(t, s.Online, 1)
	assert.Equal(t, "ivy", s.Online[0].Username)
	assert.Equal(t, "Ivy", s.Online[0].Nickname)
	require.Len(t, s.Offline, 1)
	assert.Equal(t, "fern", s.Offline[0].Username)
	assert.Equal(t, uint64(2), s.RosterSeq)
}

func TestRosterFromPreviousLoginIsDiscarded(t *testing.T) {
	model, _, _ := newTestModel(t, &domain.User{Username: "ivy"})

	stale := model.handleChannelEvent(realtime.Event{Name: domain.EventUpdateUsers, Data: []byte(`["ivy","fern"]`)})
	require.NotNil(t, stale)

	model.Update(logoutMsg{})
	require.False(t, model.current().LoggedIn())
	model.adoptSession(domain.Profile{Username: "fern"})
	require.True(t, model.current().LoggedIn())

	model.Update(stale())
	assert.Empty(t, model.current().Online)

	fresh := model.handleChannelEvent(realtime.Event{Name: domain.EventUpdateUsers, Data: []byte(`["fern"]`)})
	require.NotNil(t, fresh)
	model.Update(fresh())

	s := model.current()
	require.Len(t, s.Online, 1)
	assert.Equal(t, "fern", s.Online[0].Username)
}

func TestRosterKeepsUnresolvedUsersOnline(t *testing.T) {
	model, _, _ := newTestModel(t, &domain.User{Username: "ivy"})

	cmd := model.handleChannelEvent(realtime.Event{Name: domain.EventUpdateUsers, Data: []byte(`["ivy","ghost"]`)})
	model.Update(cmd())

	var names []string
	for _, p := range model.current().Online {
		names = append(names, p.Username)
	}
	assert.Equal(t, []string{"ivy", "ghost"}, names)
}

func TestUserCardShowsHighlightedProfile(t *testing.T) {
	model, backend, _ := newTestModel(t, &domain.User{Username: "ivy"})
	model.dispatch(state.RosterUpdate{Seq: 1, Online: []domain.Profile{{Username: "ivy"}, {Username: "fern"}}})

	model.Update(tea.KeyMsg{Type: tea.KeyDown})
	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyCtrlW})
	require.NotNil(t, cmd)
	model.Update(cmd())

	assert.Equal(t, modeUserCard, model.mode)
	require.NotNil(t, model.card)
	assert.Equal(t, "fern", model.card.Username)
	assert.Contains(t, backend.Calls(), "userdata fern")
	assert.Contains(t, model.View(), domain.RosterAvatar)

	model.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, modeChat, model.mode)
	assert.Nil(t, model.card)
}

func TestProfileEditSubmitsNickname(t *testing.T) {
	model, backend, _ := newTestModel(t, &domain.User{Username: "ivy", Nickname: "Ivy", Avatar: domain.DefaultAvatar})

	model.Update(tea.KeyMsg{Type: tea.KeyCtrlE})
	require.Equal(t, modeProfileEdit, model.mode)
	assert.Equal(t, "Ivy", model.textInput.Value())

	cmd := model.saveProfileCmd("ivy", "Ivy Leaf", keptAvatar(model.current().User), "")
	msg := cmd()
	saved, ok := msg.(profileSavedMsg)
	require.True(t, ok)
	assert.Empty(t, saved.avatar)

	model.Update(msg)
	assert.Equal(t, "Ivy Leaf", model.current().User.Nickname)
	assert.Equal(t, domain.DefaultAvatar, model.current().User.Avatar)
	assert.Contains(t, backend.Calls(), "update Ivy Leaf")
}

func TestAttachmentCarriesTypeFlags(t *testing.T) {
	model, backend, channel := newTestModel(t, &domain.User{Username: "ivy"})

	msg := model.attachCmd(model.current().User, "/tmp/photo.bin", "look")()
	model.Update(msg)

	assert.Contains(t, backend.Calls(), "upload")
	require.Len(t, channel.emitted, 1)
	sent := channel.emitted[0]
	assert.Equal(t, "look", sent.Message)
	assert.Equal(t, "http://server/uploads/x.png", sent.FileURL)
	assert.True(t, sent.IsImage)
	assert.False(t, sent.IsVideo)
}

func TestChatViewRendersMedia(t *testing.T) {
	model, _, _ := newTestModel(t, &domain.User{Username: "ivy"})
	model.resize(120, 40)
	model.dispatch(state.MessagesReset{Messages: []domain.Message{
		{Username: "fern", Message: "see http://x/cat.PNG and http://x/clip.mp4?x=1"},
		{Username: "fern", FileURL: "http://x/upload", IsVideo: true},
	}})

	view := model.View()
	assert.Contains(t, view, "[image]")
	assert.Contains(t, view, "[video]")
	assert.Contains(t, view, "Connected")
	assert.Equal(t, 2, strings.Count(view, "Video cannot play here"))
}

func TestSessionRestoreFailureIsANotice(t *testing.T) {
	model, _, _ := newTestModel(t, nil)
	model.Update(sessionMsg{err: errors.New("dial tcp: refused")})
	assert.Equal(t, modeAuthMenu, model.mode)
	require.NotEmpty(t, model.notices)
	assert.Contains(t, model.notices[0], "Could not reach the server")
}
