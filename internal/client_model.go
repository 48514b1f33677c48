package internal

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"leafchat/internal/api"
	"leafchat/internal/command"
	"leafchat/internal/domain"
	"leafchat/internal/realtime"
	"leafchat/internal/roster"
	"leafchat/internal/state"
)

// Backend is the REST surface the client uses. *api.Client implements it.
type Backend interface {
	Session(ctx context.Context) (string, error)
	Users(ctx context.Context) ([]domain.Profile, error)
	UserData(ctx context.Context, username string) (domain.Profile, error)
	Login(ctx context.Context, req api.LoginRequest) (string, error)
	Register(ctx context.Context, req api.RegisterRequest) error
	Logout(ctx context.Context) error
	CreateInvites(ctx context.Context, amount int) (*api.InviteResult, error)
	UpdateProfile(ctx context.Context, req api.ProfileUpdate) error
	Upload(ctx context.Context, path string) (*api.UploadResult, error)
}

// Channel is the realtime connection. *realtime.Manager implements it.
type Channel interface {
	Connect(ctx context.Context, username string) error
	Disconnect()
	Emit(ctx context.Context, event string, data any) error
	State() realtime.State
}

// Options wires a TUIModel.
type Options struct {
	Backend Backend
	Channel Channel
	// Events is a subscription to the channel, opened before the program starts.
	Events <-chan realtime.Event
	Store  *state.Store

	// ChannelName is shown in the header.
	ChannelName string
	ServerURL   string
	// Username prefills the login prompt.
	Username string

	RosterPolicy   roster.Policy
	RequestTimeout time.Duration

	// ClearSession forgets persisted cookies after logout.
	ClearSession func(context.Context) error
	// BrowseDir is where the file picker starts.
	BrowseDir string
}

type appMode int

const (
	modeAuthMenu appMode = iota
	modeAuthUsername
	modeAuthPassword
	modeAuthInvite
	modeAlert
	modeChat
	modeProfileEdit
	modeFileBrowser
	modeUserCard
)

type authIntent int

const (
	authIntentLogin authIntent = iota
	authIntentRegister
)

type pickPurpose int

const (
	pickAttachment pickPurpose = iota
	pickAvatar
)

// TUIModel is the Bubble Tea model. Everything shared with other views lives
// in the state store; the fields here are screen-local.
type TUIModel struct {
	opts       Options
	store      *state.Store
	dispatcher *command.Dispatcher

	textInput textinput.Model
	viewport  viewport.Model
	width     int
	height    int

	mode       appMode
	authIntent authIntent
	authUser   string
	authPass   string
	alert      string
	notices    []string
	loading    bool

	rosterIndex int
	card        *domain.Profile

	browser     fileBrowser
	pickFor     pickPurpose
	returnMode  appMode
	draft       string
	draftNick   string
	rosterIssue uint64
	// session counts logins and logouts; roster results from another generation are ignored.
	session     uint64
}

// NewTUIModel builds the model on the auth menu.
func NewTUIModel(opts Options) *TUIModel {
	if opts.Store == nil {
		opts.Store = state.NewStore(state.State{})
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = api.DefaultTimeout
	}
	if opts.ChannelName == "" {
		opts.ChannelName = "leaf"
	}

	input := textinput.New()
	input.CharLimit = 0

	vp := viewport.New(80, 16)

	model := &TUIModel{
		opts:       opts,
		store:      opts.Store,
		dispatcher: command.NewDispatcher(opts.Backend),
		textInput:  input,
		viewport:   vp,
		mode:       modeAuthMenu,
		authUser:   opts.Username,
		browser:    newFileBrowser(opts.BrowseDir),
	}
	model.enterAuthMenu()
	return model
}

func (model *TUIModel) Init() tea.Cmd {
	model.loading = true
	return tea.Batch(
		model.bootstrapCmd(),
		model.fetchUsersCmd(),
		model.listenCmd(),
	)
}

func (model *TUIModel) current() state.State {
	return model.store.State()
}

func (model *TUIModel) dispatch(a state.Action) state.State {
	next := model.store.Dispatch(a)
	model.syncViewport()
	return next
}

// notify shows a local system notice: in the feed while chatting, on the auth
// screen otherwise.
func (model *TUIModel) notify(text string) {
	if model.current().LoggedIn() {
		model.dispatch(state.MessageAppend{Message: domain.SystemNotice(text, time.Now())})
		return
	}
	model.notices = append(model.notices, text)
	if len(model.notices) > 5 {
		model.notices = model.notices[len(model.notices)-5:]
	}
}

func (model *TUIModel) rosterEntries() []domain.Profile {
	s := model.current()
	entries := make([]domain.Profile, 0, len(s.Online)+len(s.Offline))
	entries = append(entries, s.Online...)
	return append(entries, s.Offline...)
}

func (model *TUIModel) selectedProfile() (domain.Profile, bool) {
	entries := model.rosterEntries()
	if model.rosterIndex < 0 || model.rosterIndex >= len(entries) {
		return domain.Profile{}, false
	}
	return entries[model.rosterIndex], true
}

func (model *TUIModel) setPrompt(prompt, placeholder, value string, masked bool) tea.Cmd {
	model.textInput.Reset()
	model.textInput.Prompt = prompt
	model.textInput.Placeholder = placeholder
	model.textInput.SetValue(value)
	model.textInput.CursorEnd()
	if masked {
		model.textInput.EchoMode = textinput.EchoPassword
		model.textInput.EchoCharacter = '•'
	} else {
		model.textInput.EchoMode = textinput.EchoNormal
	}
	return model.textInput.Focus()
}

func (model *TUIModel) enterAuthMenu() {
	model.mode = modeAuthMenu
	model.textInput.Reset()
	model.textInput.Blur()
	model.textInput.Prompt = ""
	model.textInput.Placeholder = ""
	model.textInput.EchoMode = textinput.EchoNormal
	model.authPass = ""
}

func (model *TUIModel) enterChat() tea.Cmd {
	model.mode = modeChat
	model.card = nil
	model.syncViewport()
	draft := model.draft
	model.draft = ""
	return model.setPrompt("> ", "Type a message…", draft, false)
}

func (model *TUIModel) showAlert(text string) {
	model.mode = modeAlert
	model.alert = text
	model.textInput.Blur()
}
