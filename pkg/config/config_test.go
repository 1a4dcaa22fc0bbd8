package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyland-inc/wspanel/pkg/logger"
)

func TestLoadConfig_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.True(t, cfg.Socket.AutoReconnect)
	assert.Equal(t, HistoryBackendSQLite, cfg.History.Backend)
}

func TestLoadConfig_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"socket": {"url": "ws://localhost:9000", "auto_reconnect": false, "handshake_timeout": "3s", "reconnect_max_delay": 5},
		"history": {"backend": "memory"},
		"session": {"error_grace": "250ms"}
	}`), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "ws://localhost:9000", cfg.Socket.URL)
	assert.False(t, cfg.Socket.AutoReconnect)
	assert.Equal(t, 3*time.Second, cfg.Socket.HandshakeTimeout.Std())
	assert.Equal(t, 5*time.Second, cfg.Socket.ReconnectMax.Std())
	assert.Equal(t, time.Second, cfg.Socket.ReconnectMin.Std())
	assert.Equal(t, HistoryBackendMemory, cfg.History.Backend)
	assert.Equal(t, 10, cfg.History.SuggestionLimit)
	assert.Equal(t, 250*time.Millisecond, cfg.Session.ErrorGrace.Std())
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"socket": {"url": "ws://file"}}`), 0o600))

	t.Setenv("WSPANEL_SOCKET_URL", "ws://env")
	t.Setenv("WSPANEL_SOCKET_RECONNECT_MIN", "2s")
	t.Setenv("WSPANEL_HISTORY_BACKEND", "memory")
	t.Setenv("WSPANEL_SOCKET_BEARER_TOKEN", "tok")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "ws://env", cfg.Socket.URL)
	assert.Equal(t, 2*time.Second, cfg.Socket.ReconnectMin.Std())
	assert.Equal(t, HistoryBackendMemory, cfg.History.Backend)
	assert.Equal(t, "tok", cfg.Socket.BearerToken)
}

func TestLoadFileConfig_IgnoresEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"socket": {"url": "ws://file"}}`), 0o600))

	t.Setenv("WSPANEL_SOCKET_URL", "ws://env")
	t.Setenv("WSPANEL_HISTORY_BACKEND", "memory")

	cfg, err := LoadFileConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "ws://file", cfg.Socket.URL)
	assert.Equal(t, HistoryBackendSQLite, cfg.History.Backend)

	require.NoError(t, SaveConfig(path, cfg))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "ws://env")
	assert.NotContains(t, string(data), `"memory"`)
}

func TestLoadFileConfig_MissingFileYieldsDefaults(t *testing.T) {
	t.Setenv("WSPANEL_SOCKET_URL", "ws://env")

	cfg, err := LoadFileConfig(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestDefaultConfig_LogLevelIsWarn(t *testing.T) {
	assert.Equal(t, logger.WARN, logger.ParseLevel(DefaultConfig().Log.Level))
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"socket":`), 0o600))
	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfig_InvalidDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"session": {"error_grace": "soon"}}`), 0o600))
	_, err := LoadConfig(path)
	assert.ErrorContains(t, err, "invalid duration")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"unknown backend", func(c *Config) { c.History.Backend = "redis" }, "history.backend"},
		{"sqlite without path", func(c *Config) { c.History.Path = " " }, "history.path"},
		{"memory without path", func(c *Config) {
			c.History.Backend = HistoryBackendMemory
			c.History.Path = ""
		}, ""},
		{"max below min", func(c *Config) {
			c.Socket.ReconnectMax = Duration(time.Millisecond)
		}, "reconnect_max_delay"},
		{"zero min", func(c *Config) { c.Socket.ReconnectMin = 0 }, "reconnect_min_delay"},
		{"negative grace", func(c *Config) { c.Session.ErrorGrace = Duration(-time.Second) }, "error_grace"},
		{"negative queue", func(c *Config) { c.History.QueueSize = -1 }, "queue_size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	cfg := DefaultConfig()
	cfg.Socket.URL = "wss://example.test/socket"
	cfg.Session.ErrorGrace = Duration(1500 * time.Millisecond)

	require.NoError(t, SaveConfig(path, cfg))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var generic map[string]map[string]any
	require.NoError(t, json.Unmarshal(raw, &generic))
	assert.Equal(t, "1.5s", generic["session"]["error_grace"])

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, "", expandHome(""))
	assert.Equal(t, home, expandHome("~"))
	assert.Equal(t, filepath.Join(home, ".wspanel", "history.db"), expandHome("~/.wspanel/history.db"))
	assert.Equal(t, "/var/lib/x.db", expandHome("/var/lib/x.db"))

	cfg := DefaultConfig()
	assert.Equal(t, filepath.Join(home, ".wspanel", "history.db"), cfg.HistoryPath())
}
