package app

import (
	"errors"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"leafchat/internal/api"
	"leafchat/internal/pkg/errs"
	"leafchat/internal/realtime"
	"leafchat/internal/roster"
)

const (
	DefaultSocketPath = "/socket"
	DefaultChannel    = "leaf"
)

// ClientConfig defines the parameters the TUI client needs.
type ClientConfig struct {
	ServerURL  string `validate:"required,http_url"`
	SocketPath string `validate:"required,startswith=/"`
	Channel    string `validate:"required,max=64"`
	Username   string `validate:"max=64"`

	DBPath  string `validate:"required"`
	LogPath string `validate:"required"`

	HTTPTimeout    time.Duration `validate:"gt=0"`
	AutoReconnect  bool
	ReconnectDelay time.Duration `validate:"gte=0"`
	RosterPolicy   string        `validate:"oneof=keep drop"`
	Debug          bool
}

// LocalConfig controls `leafchat local`.
type LocalConfig struct {
	Addr          string `validate:"required,listen_addr"`
	AdminUsername string `validate:"required,max=64"`
	AdminPassword string `validate:"required,min=8"`
	// UploadDir keeps uploads on disk. Empty keeps them in memory.
	UploadDir string
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// hostname_port rejects port 0, which asks the kernel for a free port
	if err := v.RegisterValidation("listen_addr", validListenAddr); err != nil {
		panic(err)
	}
	return v
}

// validListenAddr accepts host:port with an optional host and a port in 0..65535.
func validListenAddr(fl validator.FieldLevel) bool {
	_, port, err := net.SplitHostPort(fl.Field().String())
	if err != nil || port == "" {
		return false
	}
	_, err = strconv.ParseUint(port, 10, 16)
	return err == nil
}

// LoadClientConfig reads the given .env files (".env" when none) and then the
// LEAFCHAT_* environment. A missing .env file is not an error. The result is
// not validated so flags can still override it.
func LoadClientConfig(envFiles ...string) (ClientConfig, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return ClientConfig{}, errs.Wrap(errs.ErrInvalidParams, err, "load .env")
	}

	cfg := ClientConfig{
		ServerURL:      envOrDefault("LEAFCHAT_SERVER", api.DefaultBaseURL),
		SocketPath:     NormalizeSocketPath(os.Getenv("LEAFCHAT_SOCKET_PATH")),
		Channel:        envOrDefault("LEAFCHAT_CHANNEL", DefaultChannel),
		Username:       os.Getenv("LEAFCHAT_USER"),
		DBPath:         DefaultDBPath(),
		HTTPTimeout:    api.DefaultTimeout,
		AutoReconnect:  true,
		ReconnectDelay: realtime.DefaultReconnectDelay,
		RosterPolicy:   envOrDefault("LEAFCHAT_ROSTER_POLICY", "keep"),
	}
	cfg.LogPath = envOrDefault("LEAFCHAT_LOG_PATH", filepath.Join(filepath.Dir(cfg.DBPath), "leafchat.log"))

	var err error
	if cfg.HTTPTimeout, err = envDuration("LEAFCHAT_HTTP_TIMEOUT", cfg.HTTPTimeout); err != nil {
		return cfg, err
	}
	if cfg.AutoReconnect, err = envBool("LEAFCHAT_RECONNECT", cfg.AutoReconnect); err != nil {
		return cfg, err
	}
	if cfg.Debug, err = envBool("LEAFCHAT_DEBUG", false); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks the configuration after all overrides are applied.
func (c ClientConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errs.Wrap(errs.ErrInvalidParams, err, err.Error())
	}
	return nil
}

// Policy maps the configured roster policy.
func (c ClientConfig) Policy() roster.Policy {
	if c.RosterPolicy == "drop" {
		return roster.DropUnresolved
	}
	return roster.KeepUnresolved
}

// Validate checks the local-mode configuration.
func (c LocalConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errs.Wrap(errs.ErrInvalidParams, err, err.Error())
	}
	return nil
}

// DefaultDBPath returns a per-user data path for the bundled SQLite file.
func DefaultDBPath() string {
	if env := os.Getenv("LEAFCHAT_DB_PATH"); env != "" {
		return env
	}
	if env := os.Getenv("LEAFCHAT_DATA_DIR"); env != "" {
		return filepath.Join(env, "leafchat.db")
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "leafchat", "leafchat.db")
	}
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "Leafchat", "leafchat.db")
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, "Library", "Application Support", "Leafchat", "leafchat.db")
		}
		return filepath.Join(home, ".local", "share", "leafchat", "leafchat.db")
	}
	return filepath.Join(".", ".leafchat", "leafchat.db")
}

// NormalizeSocketPath guarantees the socket path starts with '/' and falls
// back to /socket when empty.
func NormalizeSocketPath(path string) string {
	if path == "" {
		return DefaultSocketPath
	}
	if path[0] != '/' {
		return "/" + path
	}
	return path
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback, errs.Wrap(errs.ErrInvalidParams, err, key)
	}
	return d, nil
}

func envBool(key string, fallback bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fallback, errs.Wrap(errs.ErrInvalidParams, err, key)
	}
	return b, nil
}
