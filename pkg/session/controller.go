package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tinyland-inc/wspanel/pkg/history"
	"github.com/tinyland-inc/wspanel/pkg/logger"
	"github.com/tinyland-inc/wspanel/pkg/message"
	"github.com/tinyland-inc/wspanel/pkg/socket"
)

// Option is a functional option for configuring a Controller.
type Option func(*Controller)

// WithHistory records every accepted connect in store and serves
// suggestions from it. queueSize bounds pending history writes.
func WithHistory(store history.Store, queueSize int) Option {
	return func(c *Controller) {
		c.store = store
		c.historyQueue = queueSize
	}
}

// WithTracker sets the analytics sink.
func WithTracker(t Tracker) Option {
	return func(c *Controller) {
		if t != nil {
			c.tracker = t
		}
	}
}

// WithClock overrides the time source used for message timestamps and
// history entries.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithAutoReconnect sets the initial auto-reconnect flag. Default true.
func WithAutoReconnect(on bool) Option {
	return func(c *Controller) { c.autoReconnect = on }
}

// WithErrorGrace forces the phase back to disconnected when a connect attempt
// reported an error and the socket has not resolved it within d. Zero
// disables the timeout.
func WithErrorGrace(d time.Duration) Option {
	return func(c *Controller) { c.errorGrace = d }
}

// WithSuggestionLimit caps the number of suggestions per query.
func WithSuggestionLimit(n int) Option {
	return func(c *Controller) { c.suggestionLimit = n }
}

// WithSubscriberBuffer sets the default channel capacity for Subscribe.
func WithSubscriberBuffer(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.subscriberBuffer = n
		}
	}
}

// WithURL seeds the initial address.
func WithURL(url string) Option {
	return func(c *Controller) { c.url = url }
}

// Controller is the single entry point for a presentation layer. Every
// operation and every socket notification runs under one lock, so state
// never mutates in parallel. Socket calls are made outside the lock so
// adapters may notify synchronously.
type Controller struct {
	sock     socket.Socket
	store    history.Store
	recorder *history.Recorder
	tracker  Tracker
	now      func() time.Time

	historyQueue     int
	errorGrace       time.Duration
	suggestionLimit  int
	subscriberBuffer int

	mu sync.Mutex

	url           string
	phase         Phase
	stalled       bool
	attempt       string
	autoReconnect bool
	lastError     string
	graceTimer    *time.Timer

	log         message.Log
	pendingText string
	pendingFile *File

	suggestions     []string
	suggestionsOpen bool
	suggestSeq      uint64

	subs    map[uint64]*Subscription
	nextSub uint64
	closed  bool
}

var _ socket.Handler = (*Controller)(nil)

// NewController binds a controller to sock. The controller installs itself
// as the socket's handler.
func NewController(sock socket.Socket, opts ...Option) *Controller {
	c := &Controller{
		sock:             sock,
		tracker:          NopTracker{},
		now:              time.Now,
		autoReconnect:    true,
		suggestionLimit:  10,
		subscriberBuffer: 64,
		suggestions:      []string{},
		subs:             make(map[uint64]*Subscription),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.store != nil {
		c.recorder = history.NewRecorder(c.store, c.historyQueue, history.WithClock(c.now))
	}
	sock.SetHandler(c)
	sock.SetNoRetry(!c.autoReconnect)
	return c
}

// Close detaches the controller: the socket is closed, pending history
// writes are flushed and every subscription is closed.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.stopGraceLocked()
	for id, sub := range c.subs {
		delete(c.subs, id)
		close(sub.ch)
	}
	c.mu.Unlock()

	err := c.sock.Close()
	if c.recorder != nil {
		c.recorder.Close()
	}
	return err
}

func (c *Controller) snapshotLocked() State {
	var file *File
	if c.pendingFile != nil {
		f := c.pendingFile.clone()
		file = &f
	}
	return State{
		URL:                c.url,
		ConnectDisabled:    strings.TrimSpace(c.url) == "",
		Phase:              c.phase,
		Connecting:         c.phase == PhaseConnecting && !c.stalled,
		Connected:          c.phase == PhaseConnected,
		Retrying:           c.phase == PhaseRetrying,
		AutoReconnect:      c.autoReconnect,
		Messages:           c.log,
		Message:            c.pendingText,
		MessageSendEnabled: strings.TrimSpace(c.pendingText) != "",
		File:               file,
		HasFile:            c.pendingFile != nil,
		Suggestions:        append([]string(nil), c.suggestions...),
		SuggestionsOpen:    c.suggestionsOpen,
		LastError:          c.lastError,
	}
}

// commitLocked publishes one change per field that differs from before.
func (c *Controller) commitLocked(before State) {
	after := c.snapshotLocked()
	for _, f := range diff(before, after) {
		c.publishLocked(Change{Field: f, State: after})
	}
}

func (c *Controller) eventLocked(f Field, text string) {
	c.publishLocked(Change{Field: f, State: c.snapshotLocked(), Text: text})
}

// mutate runs fn under the lock and publishes the resulting changes.
func (c *Controller) mutate(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	before := c.snapshotLocked()
	fn()
	c.commitLocked(before)
}

// State returns a snapshot of the whole session.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) URL() string { return c.State().URL }
func (c *Controller) ConnectDisabled() bool { return c.State().ConnectDisabled }
func (c *Controller) Phase() Phase { return c.State().Phase }
func (c *Controller) Connecting() bool { return c.State().Connecting }
func (c *Controller) Connected() bool { return c.State().Connected }
func (c *Controller) Retrying() bool { return c.State().Retrying }
func (c *Controller) AutoReconnect() bool { return c.State().AutoReconnect }
func (c *Controller) Messages() message.Log { return c.State().Messages }
func (c *Controller) Message() string { return c.State().Message }
func (c *Controller) MessageSendEnabled() bool { return c.State().MessageSendEnabled }
func (c *Controller) HasFile() bool { return c.State().HasFile }
func (c *Controller) Suggestions() []string { return c.State().Suggestions }
func (c *Controller) SuggestionsOpen() bool { return c.State().SuggestionsOpen }

// SetURL stores the candidate address as typed.
func (c *Controller) SetURL(candidate string) {
	c.mutate(func() { c.url = candidate })
}

// SetMessage stages outgoing text.
func (c *Controller) SetMessage(text string) {
	c.mutate(func() { c.pendingText = text })
}

// SetFile stages an outgoing binary file. The data is copied.
func (c *Controller) SetFile(f File) {
	c.mutate(func() {
		staged := f.clone()
		c.pendingFile = &staged
	})
}

// ClearFile drops the staged file.
func (c *Controller) ClearFile() {
	c.mutate(func() { c.pendingFile = nil })
}

// SetSuggestionsOpen tells the controller whether an autocomplete list is
// showing. Connect is ignored while it is.
func (c *Controller) SetSuggestionsOpen(open bool) {
	c.mutate(func() { c.suggestionsOpen = open })
}

// SetAutoReconnect toggles automatic reconnection in the socket.
func (c *Controller) SetAutoReconnect(on bool) {
	c.mutate(func() { c.autoReconnect = on })
	c.sock.SetNoRetry(!on)
}

// Connect opens the socket to the current URL. It does nothing while a
// suggestion list is open or while a connection is pending or established.
// A blank URL raises EventEmptyAddress and returns ErrEmptyURL.
func (c *Controller) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.suggestionsOpen {
		c.mu.Unlock()
		return nil
	}
	url := strings.TrimSpace(c.url)
	if url == "" {
		c.eventLocked(EventEmptyAddress, ErrEmptyURL.Error())
		c.mu.Unlock()
		return ErrEmptyURL
	}
	if c.phase == PhaseConnecting || c.phase == PhaseConnected {
		c.mu.Unlock()
		return nil
	}
	before := c.snapshotLocked()
	c.phase = PhaseConnecting
	c.stalled = false
	c.lastError = ""
	c.attempt = uuid.NewString()
	attempt := c.attempt
	c.stopGraceLocked()
	c.commitLocked(before)
	c.mu.Unlock()

	logger.InfoCF("session", "Connecting", map[string]any{
		"url":     url,
		"attempt": attempt,
	})

	if err := c.sock.Open(ctx, url); err != nil {
		c.mu.Lock()
		if c.attempt == attempt && c.phase == PhaseConnecting {
			before := c.snapshotLocked()
			c.phase = PhaseDisconnected
			c.stalled = false
			c.stopGraceLocked()
			c.lastError = err.Error()
			c.commitLocked(before)
			c.eventLocked(EventError, err.Error())
		}
		c.mu.Unlock()
		logger.WarnCF("session", "Open failed", map[string]any{
			"url":   url,
			"error": err.Error(),
		})
		return fmt.Errorf("open socket: %w", err)
	}

	c.tracker.Track(TrackCategory, ActionConnect)
	if c.recorder != nil {
		if err := c.recorder.Record(url); err != nil {
			logger.WarnCF("session", "History not recorded", map[string]any{
				"url":   url,
				"error": err.Error(),
			})
		}
	}
	return nil
}

// Disconnect asks the socket to close. The phase changes only when the
// socket reports the disconnect.
func (c *Controller) Disconnect() error {
	logger.InfoC("session", "Disconnect requested")
	if err := c.sock.Close(); err != nil {
		return fmt.Errorf("close socket: %w", err)
	}
	return nil
}

// SendText sends the staged message and appends it to the log.
func (c *Controller) SendText(ctx context.Context) error {
	c.mu.Lock()
	if c.phase != PhaseConnected {
		c.mu.Unlock()
		return fmt.Errorf("send message: %w", ErrInvalidState)
	}
	if strings.TrimSpace(c.pendingText) == "" {
		c.mu.Unlock()
		return fmt.Errorf("send message: %w", ErrNothingToSend)
	}
	p := message.Text(c.pendingText)
	before := c.snapshotLocked()
	c.log = c.log.AppendOutbound(p, c.now())
	c.pendingText = ""
	c.commitLocked(before)
	c.mu.Unlock()

	if err := c.transmit(ctx, p); err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	c.tracker.Track(TrackCategory, ActionSendMessage)
	return nil
}

// SendFile sends the staged file as a binary frame and appends it to the log.
func (c *Controller) SendFile(ctx context.Context) error {
	c.mu.Lock()
	if c.phase != PhaseConnected {
		c.mu.Unlock()
		return fmt.Errorf("send file: %w", ErrInvalidState)
	}
	if c.pendingFile == nil {
		c.mu.Unlock()
		return fmt.Errorf("send file: %w", ErrNothingToSend)
	}
	p := message.Binary(c.pendingFile.Data)
	name := c.pendingFile.Name
	before := c.snapshotLocked()
	c.log = c.log.AppendOutbound(p, c.now())
	c.pendingFile = nil
	c.commitLocked(before)
	c.mu.Unlock()

	if err := c.transmit(ctx, p); err != nil {
		return fmt.Errorf("send file %q: %w", name, err)
	}
	c.tracker.Track(TrackCategory, ActionSendFile)
	return nil
}

func (c *Controller) transmit(ctx context.Context, p message.Payload) error {
	if err := c.sock.Send(ctx, p); err != nil {
		c.mu.Lock()
		c.lastError = err.Error()
		c.eventLocked(EventError, err.Error())
		c.mu.Unlock()
		return err
	}
	return nil
}

// Suggest queries the history for URLs starting with prefix. The result is
// stored as the current suggestions unless a newer query started meanwhile.
func (c *Controller) Suggest(ctx context.Context, prefix string) []string {
	c.mu.Lock()
	c.suggestSeq++
	seq := c.suggestSeq
	store := c.store
	limit := c.suggestionLimit
	c.mu.Unlock()

	urls := history.Suggest(ctx, store, prefix, limit)

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq == c.suggestSeq && !c.closed {
		before := c.snapshotLocked()
		c.suggestions = urls
		c.commitLocked(before)
	}
	return urls
}

// OnConnected implements socket.Handler.
func (c *Controller) OnConnected() {
	c.mutate(func() {
		c.phase = PhaseConnected
		c.stalled = false
		c.lastError = ""
		c.stopGraceLocked()
	})
	logger.InfoC("session", "Connected")
}

// OnDisconnected implements socket.Handler.
func (c *Controller) OnDisconnected() {
	c.mutate(func() {
		c.phase = PhaseDisconnected
		c.stalled = false
		c.stopGraceLocked()
	})
	logger.InfoC("session", "Disconnected")
}

// OnRetrying implements socket.Handler. A connected session ignores a retry
// report; a retrying session that is told retries stopped is disconnected.
func (c *Controller) OnRetrying(retrying bool) {
	c.mutate(func() {
		switch {
		case retrying && c.phase != PhaseConnected:
			c.phase = PhaseRetrying
			c.stalled = false
			c.stopGraceLocked()
		case !retrying && c.phase == PhaseRetrying:
			c.phase = PhaseDisconnected
		}
	})
}

// OnError implements socket.Handler. The phase is left alone; only the
// connecting indicator is cleared and the error text is surfaced.
func (c *Controller) OnError(err error) {
	if err == nil {
		return
	}
	text := err.Error()
	c.mu.Lock()
	defer c.mu.Unlock()
	before := c.snapshotLocked()
	c.lastError = text
	if c.phase == PhaseConnecting {
		c.stalled = true
		c.armGraceLocked()
	}
	c.commitLocked(before)
	c.eventLocked(EventError, text)
	logger.WarnCF("session", "Socket error", map[string]any{
		"phase": c.phase.String(),
		"error": text,
	})
}

// OnMessage implements socket.Handler.
func (c *Controller) OnMessage(p message.Payload) {
	c.mutate(func() {
		c.log = c.log.AppendInbound(p, c.now())
	})
}

func (c *Controller) armGraceLocked() {
	if c.errorGrace <= 0 || c.graceTimer != nil {
		return
	}
	attempt := c.attempt
	c.graceTimer = time.AfterFunc(c.errorGrace, func() { c.expireGrace(attempt) })
}

func (c *Controller) stopGraceLocked() {
	if c.graceTimer != nil {
		c.graceTimer.Stop()
		c.graceTimer = nil
	}
}

func (c *Controller) expireGrace(attempt string) {
	c.mu.Lock()
	if c.closed || c.attempt != attempt || c.phase != PhaseConnecting || !c.stalled {
		c.mu.Unlock()
		return
	}
	before := c.snapshotLocked()
	c.phase = PhaseDisconnected
	c.stalled = false
	c.graceTimer = nil
	c.commitLocked(before)
	c.mu.Unlock()

	logger.WarnCF("session", "Connect attempt unresolved after error, giving up", map[string]any{
		"attempt": attempt,
		"grace":   c.errorGrace.String(),
	})
	_ = c.sock.Close()
}
