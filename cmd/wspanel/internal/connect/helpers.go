package connect

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/tinyland-inc/wspanel/cmd/wspanel/internal"
	"github.com/tinyland-inc/wspanel/pkg/config"
	"github.com/tinyland-inc/wspanel/pkg/history"
	"github.com/tinyland-inc/wspanel/pkg/logger"
	"github.com/tinyland-inc/wspanel/pkg/message"
	"github.com/tinyland-inc/wspanel/pkg/session"
	"github.com/tinyland-inc/wspanel/pkg/socket"
)

func connectCmd(ctx context.Context, url string, opts options) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := internal.LoadConfig()
	if err != nil {
		return fmt.Errorf("error loading config: %w", err)
	}

	logs, err := internal.SetupLogging(cfg, opts.debug)
	if err != nil {
		return err
	}
	defer logs.Close()
	if opts.debug {
		fmt.Println("🔍 Debug mode enabled")
	}

	store, closeStore, err := internal.OpenHistory(ctx, cfg)
	if err != nil {
		logger.WarnCF("cli", "History unavailable, suggestions disabled for this run", map[string]any{
			"error": err.Error(),
		})
		store, closeStore = history.NewMemoryStore(), func() error { return nil }
	}
	defer closeStore()

	if url == "" {
		url = cfg.Socket.URL
	}
	ctrl := newController(cfg, internal.NewSocket(cfg), store, url, opts)
	defer ctrl.Close()

	if opts.message != "" {
		return oneShot(ctx, ctrl, os.Stdout, opts, connectTimeout(cfg))
	}

	fmt.Printf("%s Interactive mode (Ctrl+C to exit, /help for commands)\n\n", internal.Logo)
	interactiveMode(ctx, ctrl)
	return nil
}

func newController(cfg *config.Config, sock socket.Socket, store history.Store, url string, opts options) *session.Controller {
	sopts := []session.Option{
		session.WithURL(url),
		session.WithAutoReconnect(cfg.Socket.AutoReconnect && !opts.noReconnect),
		session.WithSuggestionLimit(cfg.History.SuggestionLimit),
		session.WithSubscriberBuffer(cfg.Session.SubscriberBuffer),
		session.WithErrorGrace(cfg.Session.ErrorGrace.Std()),
	}
	if store != nil {
		sopts = append(sopts, session.WithHistory(store, cfg.History.QueueSize))
	}
	if cfg.Session.TrackAnalytics {
		sopts = append(sopts, session.WithTracker(session.LogTracker{}))
	}
	return session.NewController(sock, sopts...)
}

func connectTimeout(cfg *config.Config) time.Duration {
	return cfg.Socket.HandshakeTimeout.Std() + time.Second
}

// oneShot connects, sends opts.message, prints replies for opts.wait and
// returns.
func oneShot(ctx context.Context, ctrl *session.Controller, out io.Writer, opts options, timeout time.Duration) error {
	p := newPanel(ctrl, out)
	phases := ctrl.Subscribe(0, session.FieldPhase, session.EventError)
	defer phases.Close()

	if err := ctrl.Connect(ctx); err != nil {
		if errors.Is(err, session.ErrEmptyURL) {
			return fmt.Errorf("%w: pass a url or set socket.url in %s", err, internal.GetConfigPath())
		}
		return err
	}
	if err := waitConnected(ctx, ctrl, phases, timeout); err != nil {
		return err
	}

	replies := ctrl.Subscribe(0, session.FieldMessages)
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.watch(replies)
	}()

	sentFrom := ctrl.Messages().Len()
	ctrl.SetMessage(opts.message)
	if err := ctrl.SendText(ctx); err != nil {
		replies.Close()
		<-done
		return err
	}
	if rec, ok := firstOutbound(ctrl.Messages(), sentFrom); ok {
		p.printf("%s\n", formatRecord(rec))
	}

	select {
	case <-time.After(opts.wait):
	case <-ctx.Done():
	}
	replies.Close()
	<-done
	return ctrl.Disconnect()
}

func waitConnected(ctx context.Context, ctrl *session.Controller, sub *session.Subscription, timeout time.Duration) error {
	if ctrl.Connected() {
		return nil
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	lastErr := ""
	for {
		select {
		case ch, ok := <-sub.C:
			if !ok {
				return session.ErrClosed
			}
			if ch.Field == session.EventError {
				lastErr = ch.Text
				continue
			}
			switch ch.State.Phase {
			case session.PhaseConnected:
				return nil
			case session.PhaseDisconnected:
				if lastErr != "" {
					return fmt.Errorf("connect failed: %s", lastErr)
				}
				return errors.New("connect failed")
			}
		case <-timer.C:
			if lastErr != "" {
				return fmt.Errorf("connect timed out after %s: %s", timeout, lastErr)
			}
			return fmt.Errorf("connect timed out after %s", timeout)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// firstOutbound finds the first outbound record at or after index from.
// Replies may land in the log before Send returns.
func firstOutbound(log message.Log, from int) (message.Record, bool) {
	for i := from; i < log.Len(); i++ {
		if rec := log.At(i); rec.Direction() == message.Outbound {
			return rec, true
		}
	}
	return message.Record{}, false
}

func interactiveMode(ctx context.Context, ctrl *session.Controller) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          fmt.Sprintf("%s ", internal.Logo),
		HistoryFile:     filepath.Join(os.TempDir(), ".wspanel_history"),
		HistoryLimit:    100,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    completer(ctx, ctrl),
	})
	if err != nil {
		fmt.Printf("Error initializing readline: %v\n", err)
		fmt.Println("Falling back to simple input mode...")
		simpleInteractiveMode(ctx, ctrl)
		return
	}
	defer rl.Close()

	p := newPanel(ctrl, rl.Stdout())
	sub := ctrl.Subscribe(0)
	defer sub.Close()
	go p.watch(sub)

	if !ctrl.ConnectDisabled() {
		p.handle(ctx, "/connect")
	}

	for {
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
				fmt.Println("\nGoodbye!")
				return
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}

		if p.handle(ctx, line) {
			fmt.Println("Goodbye!")
			return
		}
	}
}

func simpleInteractiveMode(ctx context.Context, ctrl *session.Controller) {
	p := newPanel(ctrl, os.Stdout)
	sub := ctrl.Subscribe(0)
	defer sub.Close()
	go p.watch(sub)

	if !ctrl.ConnectDisabled() {
		p.handle(ctx, "/connect")
	}

	reader := bufio.NewReader(os.Stdin)
	for {
		p.printf("%s ", internal.Logo)
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Println("\nGoodbye!")
				return
			}
			fmt.Printf("Error reading input: %v\n", err)
			continue
		}

		if p.handle(ctx, strings.TrimRight(line, "\r\n")) {
			fmt.Println("Goodbye!")
			return
		}
	}
}
