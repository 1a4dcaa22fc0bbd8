package echo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/tinyland-inc/wspanel/cmd/wspanel/internal"
	"github.com/tinyland-inc/wspanel/pkg/logger"
	"github.com/tinyland-inc/wspanel/pkg/socket"
)

const shutdownTimeout = 5 * time.Second

func echoCmd(ctx context.Context, out io.Writer, addr, path string, allowAnyOrigin, debug bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if debug {
		logger.SetLevel(logger.DEBUG)
		fmt.Fprintln(out, "🔍 Debug mode enabled")
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	fmt.Fprintf(out, "%s Echo server on ws://%s%s (Ctrl+C to stop)\n", internal.Logo, ln.Addr(), normalizePath(path))
	return serve(ctx, ln, path, allowAnyOrigin)
}

// serve runs the echo endpoint on ln until ctx is done.
func serve(ctx context.Context, ln net.Listener, path string, allowAnyOrigin bool) error {
	mux := http.NewServeMux()
	mux.Handle(normalizePath(path), socket.NewEchoHandler(allowAnyOrigin))
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.InfoC("echo", "Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return path
}
