// Package socket defines the duplex socket capability the session core
// drives, and a gorilla/websocket implementation with automatic reconnect.
package socket

import (
	"context"
	"errors"

	"github.com/tinyland-inc/wspanel/pkg/message"
)

var (
	ErrNotConnected = errors.New("socket not connected")
	ErrEmptyURL     = errors.New("socket url is empty")
)

// Socket is the transport a session opens, writes to and closes. Open and
// Close return once the request has been issued; the outcome arrives later
// through the bound Handler.
type Socket interface {
	SetHandler(h Handler)
	Open(ctx context.Context, url string) error
	Close() error
	Send(ctx context.Context, p message.Payload) error
	// SetNoRetry disables automatic reconnection after a drop.
	SetNoRetry(noRetry bool)
}

// Handler receives lifecycle notifications and inbound payloads.
//
// After an established connection drops and a reconnect is going to be
// attempted, implementations report OnDisconnected followed by
// OnRetrying(true).
type Handler interface {
	OnConnected()
	OnDisconnected()
	OnError(err error)
	OnRetrying(retrying bool)
	OnMessage(p message.Payload)
}

// NopHandler ignores every notification.
type NopHandler struct{}

func (NopHandler) OnConnected() {}
func (NopHandler) OnDisconnected() {}
func (NopHandler) OnError(error) {}
func (NopHandler) OnRetrying(bool) {}
func (NopHandler) OnMessage(message.Payload) {}
