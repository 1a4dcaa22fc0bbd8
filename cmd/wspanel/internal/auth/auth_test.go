package auth

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyland-inc/wspanel/pkg/config"
)

func TestNewAuthCommand(t *testing.T) {
	cmd := NewAuthCommand()

	require.NotNil(t, cmd)

	assert.Equal(t, "auth", cmd.Use)
	assert.True(t, cmd.HasExample())
	assert.True(t, cmd.HasSubCommands())
	assert.Nil(t, cmd.RunE)

	for _, name := range []string{"login", "logout", "status"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, sub.Name())
	}
}

func run(t *testing.T, stdin string, args ...string) string {
	t.Helper()
	cmd := NewAuthCommand()
	var out bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return out.String()
}

func TestLoginStatusLogout(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(tokenEnv, "")
	configPath := filepath.Join(home, ".wspanel", "config.json")

	assert.Contains(t, run(t, "", "status"), "(none)")

	out := run(t, "abcdefgh1234\n", "login")
	assert.Contains(t, out, "abcd****1234")

	cfg, err := config.LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, "abcdefgh1234", cfg.Socket.BearerToken)

	assert.Contains(t, run(t, "", "status"), "from config")

	assert.Contains(t, run(t, "", "logout"), "Token removed")
	cfg, err = config.LoadConfig(configPath)
	require.NoError(t, err)
	assert.Empty(t, cfg.Socket.BearerToken)

	assert.Contains(t, run(t, "", "logout"), "No token stored")
}

func TestLogin_EmptyInput(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv(tokenEnv, "")

	cmd := NewAuthCommand()
	cmd.SetIn(strings.NewReader("\n"))
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"login"})
	assert.Error(t, cmd.Execute())
}

func TestLogin_DoesNotPersistEnvOverrides(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(tokenEnv, "")
	t.Setenv("WSPANEL_SOCKET_URL", "ws://env-only.example/ws")
	t.Setenv("WSPANEL_HISTORY_BACKEND", "memory")
	configPath := filepath.Join(home, ".wspanel", "config.json")

	run(t, "abcdefgh1234\n", "login")

	data, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "env-only.example")
	assert.NotContains(t, string(data), `"memory"`)
	assert.Contains(t, string(data), "abcdefgh1234")
}

func TestLogout_EnvTokenOnly(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(tokenEnv, "from-env-token")
	configPath := filepath.Join(home, ".wspanel", "config.json")

	out := run(t, "", "logout")

	assert.NotContains(t, out, "Token removed")
	assert.Contains(t, out, "No token stored")
	assert.Contains(t, out, tokenEnv+" is still set")
	_, err := os.Stat(configPath)
	assert.True(t, os.IsNotExist(err))
}
