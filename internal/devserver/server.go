// Package devserver is an in-memory implementation of the chat server API.
// It backs `leafchat local` and the client's end-to-end tests.
package devserver

import (
	"errors"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/spf13/afero"
	"golang.org/x/crypto/bcrypt"

	"leafchat/internal/domain"
)

const (
	sessionName    = "leafchat"
	sessionUserKey = "username"

	defaultMaxFileSize = 10 << 20
	defaultHistory     = 200
)

var (
	ErrUserExists    = errors.New("username already taken")
	ErrInvalidInvite = errors.New("invalid or used invite token")
)

// Options configures a Server. Zero values are usable.
type Options struct {
	// AdminUsername/AdminPassword seed an admin account when both are set.
	AdminUsername string
	AdminPassword string

	// Files stores uploads. Defaults to an in-memory filesystem.
	Files afero.Fs

	// SessionKey signs the session cookie. Random when empty.
	SessionKey []byte

	BcryptCost   int
	MaxFileSize  int64
	HistoryLimit int

	// AuthRate and AuthBurst bound login/register attempts per client address.
	AuthRate  time.Duration
	AuthBurst int
}

type account struct {
	profile domain.Profile
	hash    []byte
	created time.Time
}

// Server holds all state in memory.
type Server struct {
	opts     Options
	files    afero.Fs
	sessions *sessions.CookieStore
	hub      *Hub
	limiter  *RateLimiter
	metrics  *Metrics

	mu       sync.RWMutex
	accounts map[string]*account
	invites  map[string]bool
}

// New builds a server and seeds the admin account.
func New(opts Options) (*Server, error) {
	if opts.Files == nil {
		opts.Files = afero.NewMemMapFs()
	}
	if len(opts.SessionKey) == 0 {
		opts.SessionKey = securecookie.GenerateRandomKey(32)
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = defaultMaxFileSize
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = defaultHistory
	}
	if opts.AuthRate <= 0 {
		opts.AuthRate = 200 * time.Millisecond
	}
	if opts.AuthBurst <= 0 {
		opts.AuthBurst = 10
	}

	store := sessions.NewCookieStore(opts.SessionKey)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int((24 * time.Hour).Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	s := &Server{
		opts:     opts,
		files:    opts.Files,
		sessions: store,
		limiter:  NewRateLimiter(opts.AuthRate, opts.AuthBurst),
		metrics:  NewMetrics(),
		accounts: make(map[string]*account),
		invites:  make(map[string]bool),
	}
	s.hub = NewHub(opts.HistoryLimit, s.metrics)

	if opts.AdminUsername != "" && opts.AdminPassword != "" {
		if err := s.AddUser(opts.AdminUsername, opts.AdminPassword, true); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Handler returns the routed API.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/socket", s.ServeWS)
	r.Get("/uploads/{name}", s.HandleDownload)
	r.Get("/metrics", s.metrics.ServeHTTP)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/users/session", s.HandleSession)
		r.Get("/users", s.HandleUsers)
		r.Get("/userdata/user/{username}", s.HandleUserData)
		r.Get("/logout", s.HandleLogout)

		r.Group(func(r chi.Router) {
			r.Use(s.limitAuth)
			r.Post("/login", s.HandleLogin)
			r.Post("/register", s.HandleRegister)
		})

		r.Group(func(r chi.Router) {
			r.Use(s.requireSession)
			r.Post("/invite", s.HandleInvite)
			r.Post("/users/update", s.HandleUpdate)
			r.Post("/upload", s.HandleUpload)
		})
	})
	return r
}

// Close disconnects every realtime client.
func (s *Server) Close() {
	s.hub.Close()
}

// Hub exposes the realtime hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// AddUser creates an account directly, bypassing invites.
func (s *Server) AddUser(username, password string, admin bool) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return errors.New("username and password are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.opts.BcryptCost)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[username]; exists {
		return ErrUserExists
	}
	s.accounts[username] = &account{
		profile: domain.Profile{Username: username, IsAdmin: admin},
		hash:    hash,
		created: time.Now(),
	}
	return nil
}

// CreateInvite mints one unused invite token.
func (s *Server) CreateInvite() string {
	token := uuid.NewString()
	s.mu.Lock()
	s.invites[token] = true
	s.mu.Unlock()
	return token
}

func (s *Server) register(username, password, invite string) error {
	s.mu.Lock()
	if !s.invites[invite] {
		s.mu.Unlock()
		return ErrInvalidInvite
	}
	if _, exists := s.accounts[username]; exists {
		s.mu.Unlock()
		return ErrUserExists
	}
	s.mu.Unlock()

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.opts.BcryptCost)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	// re-check, the lock was released while hashing
	if !s.invites[invite] {
		return ErrInvalidInvite
	}
	if _, exists := s.accounts[username]; exists {
		return ErrUserExists
	}
	delete(s.invites, invite)
	s.accounts[username] = &account{
		profile: domain.Profile{Username: username},
		hash:    hash,
		created: time.Now(),
	}
	return nil
}

func (s *Server) authenticate(username, password string) (domain.Profile, bool) {
	s.mu.RLock()
	acct, ok := s.accounts[username]
	s.mu.RUnlock()
	if !ok {
		return domain.Profile{}, false
	}
	if bcrypt.CompareHashAndPassword(acct.hash, []byte(password)) != nil {
		return domain.Profile{}, false
	}
	return acct.profile, true
}

func (s *Server) profile(username string) (domain.Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acct, ok := s.accounts[username]
	if !ok {
		return domain.Profile{}, false
	}
	return acct.profile, true
}

func (s *Server) directory() []domain.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Profile, 0, len(s.accounts))
	for _, acct := range s.accounts {
		out = append(out, acct.profile)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out
}

func (s *Server) updateProfile(username, nickname, picture string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[username]
	if !ok {
		return false
	}
	acct.profile.Nickname = nickname
	if picture != "" {
		acct.profile.ProfilePicture = picture
	}
	return true
}
