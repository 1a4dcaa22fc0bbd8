package auth

import (
	"fmt"
	"io"
	"os"

	"github.com/tinyland-inc/wspanel/cmd/wspanel/internal"
	"github.com/tinyland-inc/wspanel/pkg/auth"
	"github.com/tinyland-inc/wspanel/pkg/config"
)

const tokenEnv = "WSPANEL_SOCKET_BEARER_TOKEN"

func loginCmd(in io.Reader, out io.Writer) error {
	path := internal.GetConfigPath()
	cfg, err := config.LoadFileConfig(path)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	target := cfg.Socket.URL
	if env := os.Getenv("WSPANEL_SOCKET_URL"); env != "" {
		target = env
	}
	token, err := auth.PasteToken(target, in, out)
	if err != nil {
		return err
	}
	cfg.Socket.BearerToken = token
	if err := config.SaveConfig(path, cfg); err != nil {
		return fmt.Errorf("error saving config: %w", err)
	}
	fmt.Fprintf(out, "\nToken %s saved to %s\n", auth.Mask(token), path)
	if os.Getenv(tokenEnv) != "" {
		fmt.Fprintf(out, "%s is set and takes precedence.\n", tokenEnv)
	}
	return nil
}

func logoutCmd(out io.Writer) error {
	path := internal.GetConfigPath()
	cfg, err := config.LoadFileConfig(path)
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	if cfg.Socket.BearerToken == "" {
		fmt.Fprintf(out, "No token stored in %s.\n", path)
	} else {
		cfg.Socket.BearerToken = ""
		if err := config.SaveConfig(path, cfg); err != nil {
			return fmt.Errorf("error saving config: %w", err)
		}
		fmt.Fprintln(out, "Token removed.")
	}
	if os.Getenv(tokenEnv) != "" {
		fmt.Fprintf(out, "%s is still set and will be used.\n", tokenEnv)
	}
	return nil
}

func statusCmd(out io.Writer) error {
	cfg, err := internal.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}
	source := "config"
	if os.Getenv(tokenEnv) != "" {
		source = tokenEnv
	}
	if cfg.Socket.BearerToken == "" {
		fmt.Fprintln(out, "Bearer token: (none)")
		return nil
	}
	fmt.Fprintf(out, "Bearer token: %s (from %s)\n", auth.Mask(cfg.Socket.BearerToken), source)
	return nil
}
