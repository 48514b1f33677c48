package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leafchat/internal/api"
	"leafchat/internal/pkg/errs"
	"leafchat/internal/roster"
)

func clearLeafchatEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"LEAFCHAT_SERVER", "LEAFCHAT_SOCKET_PATH", "LEAFCHAT_CHANNEL", "LEAFCHAT_USER",
		"LEAFCHAT_DB_PATH", "LEAFCHAT_LOG_PATH", "LEAFCHAT_HTTP_TIMEOUT", "LEAFCHAT_RECONNECT",
		"LEAFCHAT_DEBUG", "LEAFCHAT_ROSTER_POLICY", "LEAFCHAT_DATA_DIR",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadClientConfigDefaults(t *testing.T) {
	clearLeafchatEnv(t)
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	cfg, err := LoadClientConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, api.DefaultBaseURL, cfg.ServerURL)
	assert.Equal(t, DefaultSocketPath, cfg.SocketPath)
	assert.Equal(t, DefaultChannel, cfg.Channel)
	assert.Equal(t, api.DefaultTimeout, cfg.HTTPTimeout)
	assert.True(t, cfg.AutoReconnect)
	assert.Equal(t, roster.KeepUnresolved, cfg.Policy())
	assert.Equal(t, filepath.Join(filepath.Dir(cfg.DBPath), "leafchat.log"), cfg.LogPath)
	assert.NoError(t, cfg.Validate())
}

func TestLoadClientConfigFromEnvironment(t *testing.T) {
	clearLeafchatEnv(t)
	t.Setenv("LEAFCHAT_SERVER", "https://chat.example.org")
	t.Setenv("LEAFCHAT_SOCKET_PATH", "ws")
	t.Setenv("LEAFCHAT_USER", "fern")
	t.Setenv("LEAFCHAT_DB_PATH", "/tmp/leafchat-test/chat.db")
	t.Setenv("LEAFCHAT_HTTP_TIMEOUT", "750ms")
	t.Setenv("LEAFCHAT_RECONNECT", "false")
	t.Setenv("LEAFCHAT_DEBUG", "1")
	t.Setenv("LEAFCHAT_ROSTER_POLICY", "drop")

	cfg, err := LoadClientConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "https://chat.example.org", cfg.ServerURL)
	assert.Equal(t, "/ws", cfg.SocketPath)
	assert.Equal(t, "fern", cfg.Username)
	assert.Equal(t, "/tmp/leafchat-test/chat.db", cfg.DBPath)
	assert.Equal(t, "/tmp/leafchat-test/leafchat.log", cfg.LogPath)
	assert.Equal(t, 750*time.Millisecond, cfg.HTTPTimeout)
	assert.False(t, cfg.AutoReconnect)
	assert.True(t, cfg.Debug)
	assert.Equal(t, roster.DropUnresolved, cfg.Policy())
}

func TestLoadClientConfigReadsDotEnv(t *testing.T) {
	clearLeafchatEnv(t)
	os.Unsetenv("LEAFCHAT_CHANNEL")
	t.Cleanup(func() { os.Unsetenv("LEAFCHAT_CHANNEL") })

	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("LEAFCHAT_CHANNEL=garden\n"), 0o600))

	cfg, err := LoadClientConfig(envFile)
	require.NoError(t, err)
	assert.Equal(t, "garden", cfg.Channel)
}

func TestLoadClientConfigRejectsBadDuration(t *testing.T) {
	clearLeafchatEnv(t)
	t.Setenv("LEAFCHAT_HTTP_TIMEOUT", "soon")

	_, err := LoadClientConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
	assert.Equal(t, errs.KindValidation, errs.KindOf(err))
}

func TestClientConfigValidate(t *testing.T) {
	valid := ClientConfig{
		ServerURL:    "http://127.0.0.1:3001",
		SocketPath:   "/socket",
		Channel:      "general",
		DBPath:       "chat.db",
		LogPath:      "chat.log",
		HTTPTimeout:  time.Second,
		RosterPolicy: "keep",
	}
	require.NoError(t, valid.Validate())

	cases := map[string]func(*ClientConfig){
		"not a url":      func(c *ClientConfig) { c.ServerURL = "chat server" },
		"relative path":  func(c *ClientConfig) { c.SocketPath = "socket" },
		"no channel":     func(c *ClientConfig) { c.Channel = "" },
		"zero timeout":   func(c *ClientConfig) { c.HTTPTimeout = 0 },
		"unknown policy": func(c *ClientConfig) { c.RosterPolicy = "maybe" },
		"no database":    func(c *ClientConfig) { c.DBPath = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := valid
			mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Equal(t, errs.KindValidation, errs.KindOf(err))
		})
	}
}

func TestLocalConfigValidate(t *testing.T) {
	cfg := LocalConfig{Addr: "127.0.0.1:0", AdminUsername: "admin", AdminPassword: "correct-horse"}
	require.NoError(t, cfg.Validate())

	cfg.AdminPassword = "short"
	assert.Error(t, cfg.Validate())
}

func TestLocalConfigAddr(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:0":     true,
		":0":              true,
		"localhost:8080":  true,
		"[::1]:0":         true,
		"":                false,
		"nohost":          false,
		"127.0.0.1:":      false,
		"127.0.0.1:99999": false,
		"127.0.0.1:http":  false,
	}
	for addr, ok := range cases {
		t.Run(addr, func(t *testing.T) {
			cfg := LocalConfig{Addr: addr, AdminUsername: "admin", AdminPassword: "correct-horse"}
			err := cfg.Validate()
			if ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestNormalizeSocketPath(t *testing.T) {
	assert.Equal(t, "/socket", NormalizeSocketPath(""))
	assert.Equal(t, "/ws", NormalizeSocketPath("ws"))
	assert.Equal(t, "/ws", NormalizeSocketPath("/ws"))
}

func TestDefaultDBPathPrefersExplicitEnvironment(t *testing.T) {
	clearLeafchatEnv(t)
	t.Setenv("LEAFCHAT_DB_PATH", "/data/explicit.db")
	assert.Equal(t, "/data/explicit.db", DefaultDBPath())

	t.Setenv("LEAFCHAT_DB_PATH", "")
	t.Setenv("LEAFCHAT_DATA_DIR", "/data/dir")
	assert.Equal(t, filepath.Join("/data/dir", "leafchat.db"), DefaultDBPath())

	t.Setenv("LEAFCHAT_DATA_DIR", "")
	t.Setenv("XDG_DATA_HOME", "/xdg")
	assert.Equal(t, filepath.Join("/xdg", "leafchat", "leafchat.db"), DefaultDBPath())
}
