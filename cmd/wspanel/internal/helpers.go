package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/oauth2"

	"github.com/tinyland-inc/wspanel/pkg/config"
	"github.com/tinyland-inc/wspanel/pkg/history"
	"github.com/tinyland-inc/wspanel/pkg/logger"
	"github.com/tinyland-inc/wspanel/pkg/socket"
)

const Logo = "🔌"

var (
	version   = "dev"
	gitCommit string
	buildTime string
	goVersion string
)

func GetConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".wspanel", "config.json")
}

func GetDhallConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".wspanel", "config.dhall")
}

func LoadConfig() (*config.Config, error) {
	// Dhall is opt-in: only if the .dhall file exists
	dhallPath := GetDhallConfigPath()
	if _, err := os.Stat(dhallPath); err == nil {
		cfg, err := config.LoadDhallConfig(dhallPath)
		if err == nil {
			return cfg, nil
		}
		if !errors.Is(err, config.ErrDhallNotAvailable) {
			return nil, fmt.Errorf("error loading dhall config: %w", err)
		}
		logger.WarnCF("cli", "dhall-to-json not installed, using JSON config", map[string]any{
			"dhall": dhallPath,
		})
	}

	return config.LoadConfig(GetConfigPath())
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// SetupLogging applies the log section of cfg. The returned closer releases
// the log file, if one was opened.
func SetupLogging(cfg *config.Config, debug bool) (io.Closer, error) {
	level := logger.ParseLevel(cfg.Log.Level)
	if debug {
		level = logger.DEBUG
	}
	logger.SetLevel(level)

	path := cfg.LogFilePath()
	if path == "" {
		return closerFunc(func() error { return nil }), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	logger.SetOutput(f)
	return f, nil
}

// OpenHistory builds the configured history store. The returned close func
// is never nil.
func OpenHistory(ctx context.Context, cfg *config.Config) (history.Store, func() error, error) {
	switch cfg.History.Backend {
	case config.HistoryBackendMemory:
		return history.NewMemoryStore(), func() error { return nil }, nil
	default:
		store, err := history.OpenSQLite(ctx, cfg.HistoryPath())
		if err != nil {
			return nil, nil, fmt.Errorf("open history: %w", err)
		}
		return store, store.Close, nil
	}
}

// NewSocket builds the websocket client from the socket section of cfg.
func NewSocket(cfg *config.Config) *socket.Client {
	opts := []socket.ClientOption{
		socket.WithHandshakeTimeout(cfg.Socket.HandshakeTimeout.Std()),
		socket.WithWriteTimeout(cfg.Socket.WriteTimeout.Std()),
		socket.WithReconnectDelay(cfg.Socket.ReconnectMin.Std(), cfg.Socket.ReconnectMax.Std()),
	}
	if cfg.Socket.BearerToken != "" {
		opts = append(opts, socket.WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: cfg.Socket.BearerToken,
			TokenType:   "Bearer",
		})))
	}
	return socket.NewClient(opts...)
}

// FormatVersion returns the version string with optional git commit
func FormatVersion() string {
	v := version
	if gitCommit != "" {
		v += fmt.Sprintf(" (git: %s)", gitCommit)
	}
	return v
}

// FormatBuildInfo returns build time and go version info
func FormatBuildInfo() (string, string) {
	build := buildTime
	goVer := goVersion
	if goVer == "" {
		goVer = runtime.Version()
	}
	return build, goVer
}

// GetVersion returns the version string
func GetVersion() string {
	return version
}
