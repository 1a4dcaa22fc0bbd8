// Package sockettest provides an in-memory Socket for exercising code that
// drives a socket without touching the network.
package sockettest

import (
	"context"
	"sync"

	"github.com/tinyland-inc/wspanel/pkg/message"
	"github.com/tinyland-inc/wspanel/pkg/socket"
)

// Fake records every call and lets tests fire handler notifications.
type Fake struct {
	mu       sync.Mutex
	handler  socket.Handler
	opened   []string
	closes   int
	sent     []message.Payload
	noRetry  bool
	openErr  error
	sendErr  error
	onOpen   func(f *Fake, url string)
	echoSend bool
}

var _ socket.Socket = (*Fake)(nil)

func New() *Fake {
	return &Fake{handler: socket.NopHandler{}}
}

func (f *Fake) SetHandler(h socket.Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = h
}

func (f *Fake) Open(_ context.Context, url string) error {
	f.mu.Lock()
	if f.openErr != nil {
		err := f.openErr
		f.mu.Unlock()
		return err
	}
	f.opened = append(f.opened, url)
	hook := f.onOpen
	f.mu.Unlock()
	if hook != nil {
		hook(f, url)
	}
	return nil
}

func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

func (f *Fake) Send(_ context.Context, p message.Payload) error {
	f.mu.Lock()
	if f.sendErr != nil {
		err := f.sendErr
		f.mu.Unlock()
		return err
	}
	f.sent = append(f.sent, p)
	echo := f.echoSend
	f.mu.Unlock()
	if echo {
		f.Receive(p)
	}
	return nil
}

func (f *Fake) SetNoRetry(noRetry bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.noRetry = noRetry
}

// FailOpen makes subsequent Open calls return err.
func (f *Fake) FailOpen(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.openErr = err
}

// FailSend makes subsequent Send calls return err.
func (f *Fake) FailSend(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sendErr = err
}

// OnOpen registers a hook run synchronously inside Open.
func (f *Fake) OnOpen(fn func(f *Fake, url string)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onOpen = fn
}

// Echo makes every successful Send deliver the same payload back inbound.
func (f *Fake) Echo(on bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.echoSend = on
}

func (f *Fake) h() socket.Handler {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handler
}

func (f *Fake) Connected() { f.h().OnConnected() }
func (f *Fake) Disconnected() { f.h().OnDisconnected() }
func (f *Fake) Error(err error) { f.h().OnError(err) }
func (f *Fake) Retrying(flag bool) { f.h().OnRetrying(flag) }
func (f *Fake) Receive(p message.Payload) { f.h().OnMessage(p) }

func (f *Fake) Opened() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.opened...)
}

func (f *Fake) Closes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

func (f *Fake) Sent() []message.Payload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]message.Payload(nil), f.sent...)
}

func (f *Fake) NoRetry() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.noRetry
}
