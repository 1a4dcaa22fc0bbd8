package socket

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/tinyland-inc/wspanel/pkg/message"
	"github.com/tinyland-inc/wspanel/pkg/utils"
)

type event struct {
	kind    string
	flag    bool
	payload message.Payload
	err     error
}

type recordingHandler struct {
	events chan event
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{events: make(chan event, 64)}
}

func (h *recordingHandler) OnConnected() { h.events <- event{kind: "connected"} }
func (h *recordingHandler) OnDisconnected() { h.events <- event{kind: "disconnected"} }
func (h *recordingHandler) OnError(err error) {
	h.events <- event{kind: "error", err: err}
}
func (h *recordingHandler) OnRetrying(flag bool) { h.events <- event{kind: "retrying", flag: flag} }
func (h *recordingHandler) OnMessage(p message.Payload) {
	h.events <- event{kind: "message", payload: p}
}

func (h *recordingHandler) next(t *testing.T) event {
	t.Helper()
	select {
	case ev := <-h.events:
		return ev
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for socket event")
		return event{}
	}
}

// waitFor skips events until one of the given kind arrives.
func (h *recordingHandler) waitFor(t *testing.T, kind string) event {
	t.Helper()
	for {
		if ev := h.next(t); ev.kind == kind {
			return ev
		}
	}
}

type echoServer struct {
	*httptest.Server
	mu       sync.Mutex
	conns    []*websocket.Conn
	lastAuth string
	upgrader websocket.Upgrader
}

func newEchoServer(t *testing.T) *echoServer {
	t.Helper()
	s := &echoServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.lastAuth = r.Header.Get("Authorization")
		s.mu.Unlock()
		conn, err := s.upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		s.mu.Lock()
		s.conns = append(s.conns, conn)
		s.mu.Unlock()
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *echoServer) wsURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

// dropAll closes every server-side connection abruptly.
func (s *echoServer) dropAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conns {
		_ = c.Close()
	}
	s.conns = nil
}

func (s *echoServer) auth() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAuth
}

func TestClient_OpenSendReceiveClose(t *testing.T) {
	srv := newEchoServer(t)
	h := newRecordingHandler()
	c := NewClient(WithHandshakeTimeout(2 * time.Second))
	c.SetHandler(h)
	c.SetNoRetry(true)

	require.NoError(t, c.Open(context.Background(), srv.wsURL()))
	assert.Equal(t, "connected", h.next(t).kind)

	require.NoError(t, c.Send(context.Background(), message.Text("ping")))
	ev := h.next(t)
	require.Equal(t, "message", ev.kind)
	assert.Equal(t, "ping", ev.payload.String())
	assert.False(t, ev.payload.IsBinary())

	require.NoError(t, c.Send(context.Background(), message.Binary([]byte{0x01, 0x02})))
	ev = h.next(t)
	require.Equal(t, "message", ev.kind)
	assert.True(t, ev.payload.IsBinary())
	assert.Equal(t, []byte{0x01, 0x02}, ev.payload.Bytes())

	require.NoError(t, c.Close())
	assert.Equal(t, "disconnected", h.waitFor(t, "disconnected").kind)
	c.Wait()

	assert.ErrorIs(t, c.Send(context.Background(), message.Text("late")), ErrNotConnected)
}

func TestClient_OpenEmptyURL(t *testing.T) {
	c := NewClient()
	assert.ErrorIs(t, c.Open(context.Background(), "   "), ErrEmptyURL)
}

func TestClient_OpenRejectsNonSocketScheme(t *testing.T) {
	h := newRecordingHandler()
	c := NewClient()
	c.SetHandler(h)

	err := c.Open(context.Background(), "http://example.com")
	assert.ErrorIs(t, err, utils.ErrUnsupportedScheme)
	c.Wait()
	assert.Empty(t, h.events)
}

func TestClient_DialFailureWithoutRetry(t *testing.T) {
	srv := newEchoServer(t)
	url := srv.wsURL()
	srv.Close()

	h := newRecordingHandler()
	c := NewClient()
	c.SetHandler(h)
	c.SetNoRetry(true)

	require.NoError(t, c.Open(context.Background(), url))
	ev := h.next(t)
	require.Equal(t, "error", ev.kind)
	assert.Error(t, ev.err)
	assert.Equal(t, "disconnected", h.next(t).kind)
	c.Wait()
}

func TestClient_DialFailureRetriesUntilClosed(t *testing.T) {
	srv := newEchoServer(t)
	url := srv.wsURL()
	srv.Close()

	h := newRecordingHandler()
	c := NewClient(WithReconnectDelay(10*time.Millisecond, 20*time.Millisecond))
	c.SetHandler(h)

	require.NoError(t, c.Open(context.Background(), url))
	assert.Equal(t, "error", h.next(t).kind)
	ev := h.next(t)
	assert.Equal(t, "retrying", ev.kind)
	assert.True(t, ev.flag)

	require.NoError(t, c.Close())
	ev = h.waitFor(t, "retrying")
	assert.False(t, ev.flag)
	h.waitFor(t, "disconnected")
	c.Wait()
}

func TestClient_ReconnectsAfterDrop(t *testing.T) {
	srv := newEchoServer(t)
	h := newRecordingHandler()
	c := NewClient(WithReconnectDelay(10*time.Millisecond, 50*time.Millisecond))
	c.SetHandler(h)

	require.NoError(t, c.Open(context.Background(), srv.wsURL()))
	assert.Equal(t, "connected", h.next(t).kind)

	srv.dropAll()
	h.waitFor(t, "disconnected")
	ev := h.waitFor(t, "retrying")
	assert.True(t, ev.flag)
	h.waitFor(t, "connected")

	require.NoError(t, c.Close())
	h.waitFor(t, "disconnected")
	c.Wait()
}

func TestClient_SupersededLoopIsSilent(t *testing.T) {
	srv := newEchoServer(t)
	h := newRecordingHandler()
	c := NewClient()
	c.SetHandler(h)
	c.SetNoRetry(true)

	require.NoError(t, c.Open(context.Background(), srv.wsURL()))
	assert.Equal(t, "connected", h.next(t).kind)

	require.NoError(t, c.Open(context.Background(), srv.wsURL()))
	assert.Equal(t, "connected", h.next(t).kind)

	require.NoError(t, c.Close())
	assert.Equal(t, "disconnected", h.next(t).kind)
	c.Wait()

	select {
	case ev := <-h.events:
		t.Fatalf("unexpected event after close: %s", ev.kind)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestClient_TokenSourceSetsAuthorization(t *testing.T) {
	srv := newEchoServer(t)
	h := newRecordingHandler()
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "secret", TokenType: "Bearer"})
	c := NewClient(WithTokenSource(ts), WithHeader(http.Header{"X-Panel": []string{"1"}}))
	c.SetHandler(h)
	c.SetNoRetry(true)

	require.NoError(t, c.Open(context.Background(), srv.wsURL()))
	assert.Equal(t, "connected", h.next(t).kind)
	assert.Equal(t, "Bearer secret", srv.auth())

	require.NoError(t, c.Close())
	c.Wait()
}

type brokenTokens struct{}

func (brokenTokens) Token() (*oauth2.Token, error) { return nil, errors.New("expired") }

func TestClient_TokenFailureIsReported(t *testing.T) {
	srv := newEchoServer(t)
	h := newRecordingHandler()
	c := NewClient(WithTokenSource(brokenTokens{}))
	c.SetHandler(h)
	c.SetNoRetry(true)

	require.NoError(t, c.Open(context.Background(), srv.wsURL()))
	ev := h.next(t)
	require.Equal(t, "error", ev.kind)
	assert.Contains(t, ev.err.Error(), "expired")
	assert.Equal(t, "disconnected", h.next(t).kind)
	c.Wait()
}

func TestNextDelay(t *testing.T) {
	assert.Equal(t, 2*time.Second, nextDelay(time.Second, 30*time.Second))
	assert.Equal(t, 30*time.Second, nextDelay(20*time.Second, 30*time.Second))
}
