package utils

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var ErrUnsupportedScheme = errors.New("socket address must use ws:// or wss://")

// ValidateSocketURL checks that raw is a non-empty absolute ws or wss URL
// with a host. Surrounding whitespace is ignored.
func ValidateSocketURL(raw string) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return errors.New("socket address is required and must be a non-empty string")
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return fmt.Errorf("invalid socket address: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "ws", "wss":
	default:
		return fmt.Errorf("%w: got %q", ErrUnsupportedScheme, trimmed)
	}
	if u.Host == "" {
		return fmt.Errorf("socket address %q has no host", trimmed)
	}
	return nil
}
