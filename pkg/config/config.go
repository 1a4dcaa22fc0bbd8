package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// ErrDhallNotAvailable is returned when dhall-to-json is not installed.
var ErrDhallNotAvailable = errors.New("dhall-to-json not available")

// Duration is a time.Duration that reads "1.5s" style strings from JSON and
// the environment, and also accepts a bare JSON number of seconds.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return d.UnmarshalText([]byte(s))
	}
	var secs float64
	if err := json.Unmarshal(data, &secs); err != nil {
		return fmt.Errorf("duration must be a string or number of seconds: %s", data)
	}
	*d = Duration(secs * float64(time.Second))
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

type Config struct {
	Socket  SocketConfig  `json:"socket"`
	History HistoryConfig `json:"history"`
	Session SessionConfig `json:"session"`
	Log     LogConfig     `json:"log"`
}

type SocketConfig struct {
	URL              string   `env:"WSPANEL_SOCKET_URL"               json:"url,omitempty"`
	AutoReconnect    bool     `env:"WSPANEL_SOCKET_AUTO_RECONNECT"    json:"auto_reconnect"`
	HandshakeTimeout Duration `env:"WSPANEL_SOCKET_HANDSHAKE_TIMEOUT" json:"handshake_timeout"`
	WriteTimeout     Duration `env:"WSPANEL_SOCKET_WRITE_TIMEOUT"     json:"write_timeout"`
	ReconnectMin     Duration `env:"WSPANEL_SOCKET_RECONNECT_MIN"     json:"reconnect_min_delay"`
	ReconnectMax     Duration `env:"WSPANEL_SOCKET_RECONNECT_MAX"     json:"reconnect_max_delay"`
	BearerToken      string   `env:"WSPANEL_SOCKET_BEARER_TOKEN"      json:"bearer_token,omitempty"`
}

const (
	HistoryBackendSQLite = "sqlite"
	HistoryBackendMemory = "memory"
)

type HistoryConfig struct {
	Backend         string `env:"WSPANEL_HISTORY_BACKEND"          json:"backend"`
	Path            string `env:"WSPANEL_HISTORY_PATH"             json:"path"`
	SuggestionLimit int    `env:"WSPANEL_HISTORY_SUGGESTION_LIMIT" json:"suggestion_limit"`
	QueueSize       int    `env:"WSPANEL_HISTORY_QUEUE_SIZE"       json:"queue_size"`
}

type SessionConfig struct {
	SubscriberBuffer int      `env:"WSPANEL_SESSION_SUBSCRIBER_BUFFER" json:"subscriber_buffer"`
	ErrorGrace       Duration `env:"WSPANEL_SESSION_ERROR_GRACE"       json:"error_grace"`
	TrackAnalytics   bool     `env:"WSPANEL_SESSION_TRACK_ANALYTICS"   json:"track_analytics"`
}

type LogConfig struct {
	Level string `env:"WSPANEL_LOG_LEVEL" json:"level"`
	File  string `env:"WSPANEL_LOG_FILE"  json:"file,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Socket: SocketConfig{
			AutoReconnect:    true,
			HandshakeTimeout: Duration(10 * time.Second),
			WriteTimeout:     Duration(10 * time.Second),
			ReconnectMin:     Duration(time.Second),
			ReconnectMax:     Duration(30 * time.Second),
		},
		History: HistoryConfig{
			Backend:         HistoryBackendSQLite,
			Path:            "~/.wspanel/history.db",
			SuggestionLimit: 10,
			QueueSize:       16,
		},
		Session: SessionConfig{
			SubscriberBuffer: 64,
		},
		Log: LogConfig{
			Level: "warn",
		},
	}
}

// LoadDhallConfig loads configuration from a .dhall file by invoking
// dhall-to-json and parsing the resulting JSON.
func LoadDhallConfig(path string) (*Config, error) {
	dhallBin, err := exec.LookPath("dhall-to-json")
	if errors.Is(err, exec.ErrNotFound) {
		return nil, ErrDhallNotAvailable
	}
	if err != nil {
		return nil, fmt.Errorf("dhall-to-json lookup: %w", err)
	}

	cmd := exec.Command(dhallBin, "--file", path)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("dhall-to-json failed for %s: %w\n%s", path, err, stderr.String())
	}

	cfg, err := parse(out, true)
	if err != nil {
		return nil, fmt.Errorf("error parsing dhall-to-json output: %w", err)
	}
	return cfg, nil
}

// LoadConfig reads a JSON config file. A missing file yields the defaults.
// Environment variables override values from the file.
func LoadConfig(path string) (*Config, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return parse(data, true)
}

// LoadFileConfig reads a JSON config file without environment overrides.
// Use it before writing the config back with SaveConfig.
func LoadFileConfig(path string) (*Config, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}
	return parse(data, false)
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return data, nil
}

func parse(data []byte, withEnv bool) (*Config, error) {
	cfg := DefaultConfig()
	if len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}
	if withEnv {
		if err := env.Parse(cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

// Validate checks ranges and enumerations.
func (c *Config) Validate() error {
	var errs []error
	if c.Socket.HandshakeTimeout < 0 {
		errs = append(errs, errors.New("socket.handshake_timeout must not be negative"))
	}
	if c.Socket.WriteTimeout < 0 {
		errs = append(errs, errors.New("socket.write_timeout must not be negative"))
	}
	if c.Socket.ReconnectMin <= 0 {
		errs = append(errs, errors.New("socket.reconnect_min_delay must be positive"))
	}
	if c.Socket.ReconnectMax < c.Socket.ReconnectMin {
		errs = append(errs, fmt.Errorf("socket.reconnect_max_delay %s is below reconnect_min_delay %s",
			c.Socket.ReconnectMax, c.Socket.ReconnectMin))
	}
	switch c.History.Backend {
	case HistoryBackendSQLite:
		if strings.TrimSpace(c.History.Path) == "" {
			errs = append(errs, errors.New("history.path is required for the sqlite backend"))
		}
	case HistoryBackendMemory:
	default:
		errs = append(errs, fmt.Errorf("history.backend %q is not one of sqlite, memory", c.History.Backend))
	}
	if c.History.SuggestionLimit < 0 {
		errs = append(errs, errors.New("history.suggestion_limit must not be negative"))
	}
	if c.History.QueueSize < 0 {
		errs = append(errs, errors.New("history.queue_size must not be negative"))
	}
	if c.Session.SubscriberBuffer < 0 {
		errs = append(errs, errors.New("session.subscriber_buffer must not be negative"))
	}
	if c.Session.ErrorGrace < 0 {
		errs = append(errs, errors.New("session.error_grace must not be negative"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// HistoryPath is the history database path with ~ expanded.
func (c *Config) HistoryPath() string {
	return expandHome(c.History.Path)
}

// LogFilePath is the log file path with ~ expanded. Empty means stderr.
func (c *Config) LogFilePath() string {
	return expandHome(c.Log.File)
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
