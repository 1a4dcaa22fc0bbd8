package connect

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/chzyer/readline"

	"github.com/tinyland-inc/wspanel/pkg/logger"
	"github.com/tinyland-inc/wspanel/pkg/message"
	"github.com/tinyland-inc/wspanel/pkg/session"
)

const usage = `Commands:
  <text>              send a text message
  //<text>            send text starting with "/"
  /connect [url]      connect, optionally to a new address
  /disconnect         close the connection
  /file <path>        send a file as a binary message
  /reconnect on|off   toggle automatic reconnection
  /log                print the message log
  /status             print the connection state
  /help               show this help
  /quit               leave`

// panel renders a session on a terminal and turns input lines into
// controller operations.
type panel struct {
	ctrl     *session.Controller
	readFile func(string) ([]byte, error)

	mu  sync.Mutex
	out io.Writer
}

func newPanel(ctrl *session.Controller, out io.Writer) *panel {
	return &panel{ctrl: ctrl, out: out, readFile: os.ReadFile}
}

func (p *panel) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, format, args...)
}

// handle runs one input line and reports whether the user asked to leave.
func (p *panel) handle(ctx context.Context, line string) bool {
	input := strings.TrimSpace(line)
	if input == "" {
		return false
	}
	if input == "exit" || input == "quit" {
		return true
	}

	if strings.HasPrefix(input, "//") {
		p.sendText(ctx, input[1:])
		return false
	}
	if !strings.HasPrefix(input, "/") {
		p.sendText(ctx, input)
		return false
	}

	name, arg, _ := strings.Cut(input[1:], " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case "quit", "exit":
		return true
	case "help":
		p.printf("%s\n", usage)
	case "connect":
		if arg != "" {
			p.ctrl.SetURL(arg)
		}
		if err := p.ctrl.Connect(ctx); err != nil {
			if errors.Is(err, session.ErrEmptyURL) {
				p.printf("Enter an address: /connect ws://host:port/path\n")
				break
			}
			p.printf("Error: %v\n", err)
		}
	case "disconnect":
		if err := p.ctrl.Disconnect(); err != nil {
			p.printf("Error: %v\n", err)
		}
	case "file":
		p.sendFile(ctx, arg)
	case "reconnect":
		switch arg {
		case "on":
			p.ctrl.SetAutoReconnect(true)
		case "off":
			p.ctrl.SetAutoReconnect(false)
		default:
			p.printf("Usage: /reconnect on|off (currently %s)\n", onOff(p.ctrl.AutoReconnect()))
		}
	case "log":
		for _, rec := range p.ctrl.Messages().Records() {
			p.printf("%s\n", formatRecord(rec))
		}
	case "status":
		st := p.ctrl.State()
		p.printf("%s %s (auto-reconnect %s)\n", st.Phase, st.URL, onOff(st.AutoReconnect))
	default:
		p.printf("Unknown command %q\n%s\n", "/"+name, usage)
	}
	return false
}

func (p *panel) sendText(ctx context.Context, text string) {
	p.ctrl.SetMessage(text)
	if err := p.ctrl.SendText(ctx); err != nil {
		p.printf("Not sent: %v\n", err)
	}
}

func (p *panel) sendFile(ctx context.Context, path string) {
	if path == "" {
		p.printf("Usage: /file <path>\n")
		return
	}
	data, err := p.readFile(path)
	if err != nil {
		p.printf("Error reading %s: %v\n", path, err)
		return
	}
	p.ctrl.SetFile(session.File{Name: filepath.Base(path), Data: data})
	if err := p.ctrl.SendFile(ctx); err != nil {
		p.ctrl.ClearFile()
		p.printf("Not sent: %v\n", err)
	}
}

// watch prints session changes until the subscription closes.
func (p *panel) watch(sub *session.Subscription) {
	for ch := range sub.C {
		switch ch.Field {
		case session.FieldPhase:
			p.printf("* %s\n", ch.State.Phase)
		case session.FieldMessages:
			if rec, ok := ch.State.Messages.Last(); ok && rec.Direction() == message.Inbound {
				p.printf("%s\n", formatRecord(rec))
			}
		case session.EventError:
			p.printf("! %s\n", ch.Text)
		case session.EventEmptyAddress:
			logger.DebugC("cli", "Connect requested without an address")
		}
	}
}

// suggestionList marks the controller's suggestion list open while
// readline computes candidates, so a Connect racing the lookup is ignored.
// Readline has no popup lifecycle beyond a single Do call.
type suggestionList struct {
	ctrl  *session.Controller
	inner readline.AutoCompleter
}

func (s suggestionList) Do(line []rune, pos int) ([][]rune, int) {
	s.ctrl.SetSuggestionsOpen(true)
	defer s.ctrl.SetSuggestionsOpen(false)
	return s.inner.Do(line, pos)
}

// completer offers history-backed URL completion after /connect.
func completer(ctx context.Context, ctrl *session.Controller) readline.AutoCompleter {
	urls := func(line string) []string {
		_, prefix, _ := strings.Cut(strings.TrimLeft(line, " "), " ")
		return ctrl.Suggest(ctx, prefix)
	}
	return suggestionList{ctrl: ctrl, inner: readline.NewPrefixCompleter(
		readline.PcItem("/connect", readline.PcItemDynamic(urls)),
		readline.PcItem("/disconnect"),
		readline.PcItem("/file"),
		readline.PcItem("/reconnect", readline.PcItem("on"), readline.PcItem("off")),
		readline.PcItem("/log"),
		readline.PcItem("/status"),
		readline.PcItem("/help"),
		readline.PcItem("/quit"),
	)}
}

func formatRecord(rec message.Record) string {
	arrow := "→"
	if rec.Direction() == message.Inbound {
		arrow = "←"
	}
	body := rec.Payload().String()
	if rec.Payload().IsBinary() {
		body = fmt.Sprintf("[binary %d bytes]", rec.Payload().Len())
	}
	return fmt.Sprintf("%s %s %s", rec.Timestamp().Format("15:04:05"), arrow, body)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
