package socket

import (
	"net/http"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/tinyland-inc/wspanel/pkg/logger"
)

// EchoHandler upgrades every request to a WebSocket and writes each frame
// back to the sender unchanged, text as text and binary as binary.
type EchoHandler struct {
	upgrader websocket.Upgrader
	conns    atomic.Int64
}

// NewEchoHandler returns an echo endpoint. With allowAnyOrigin the browser
// Origin check is skipped.
func NewEchoHandler(allowAnyOrigin bool) *EchoHandler {
	h := &EchoHandler{}
	if allowAnyOrigin {
		h.upgrader.CheckOrigin = func(*http.Request) bool { return true }
	}
	return h
}

// Active reports the number of open connections.
func (h *EchoHandler) Active() int64 { return h.conns.Load() }

func (h *EchoHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WarnCF("echo", "Upgrade failed", map[string]any{
			"remote": r.RemoteAddr,
			"error":  err.Error(),
		})
		return
	}
	defer conn.Close()

	h.conns.Add(1)
	defer h.conns.Add(-1)
	logger.InfoCF("echo", "Client connected", map[string]any{"remote": r.RemoteAddr})

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logger.DebugCF("echo", "Read ended", map[string]any{
					"remote": r.RemoteAddr,
					"error":  err.Error(),
				})
			}
			return
		}
		logger.DebugCF("echo", "Echoing frame", map[string]any{
			"remote": r.RemoteAddr,
			"bytes":  len(data),
			"binary": mt == websocket.BinaryMessage,
		})
		if err := conn.WriteMessage(mt, data); err != nil {
			return
		}
	}
}
