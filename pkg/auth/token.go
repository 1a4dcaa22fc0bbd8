// Package auth reads and displays the bearer token sent on the socket
// handshake.
package auth

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

var ErrEmptyToken = errors.New("token cannot be empty")

// PasteToken prompts on w for a token and reads one line from r.
func PasteToken(target string, r io.Reader, w io.Writer) (string, error) {
	fmt.Fprintf(w, "Paste the bearer token for %s:\n", targetDisplayName(target))
	fmt.Fprint(w, "> ")

	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("reading token: %w", err)
		}
		return "", errors.New("no input received")
	}

	token := strings.TrimSpace(scanner.Text())
	if token == "" {
		return "", ErrEmptyToken
	}
	token = strings.TrimPrefix(token, "Bearer ")
	return token, nil
}

// Mask hides all but the edges of a token for display.
func Mask(token string) string {
	switch {
	case token == "":
		return "(none)"
	case len(token) <= 8:
		return strings.Repeat("*", len(token))
	default:
		return token[:4] + strings.Repeat("*", len(token)-8) + token[len(token)-4:]
	}
}

func targetDisplayName(target string) string {
	if strings.TrimSpace(target) == "" {
		return "every socket"
	}
	return target
}
