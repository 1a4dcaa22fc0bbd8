package socket

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/oauth2"

	"github.com/tinyland-inc/wspanel/pkg/logger"
	"github.com/tinyland-inc/wspanel/pkg/message"
	"github.com/tinyland-inc/wspanel/pkg/utils"
)

// ClientOption is a functional option for configuring a Client.
type ClientOption func(*Client)

// WithHandshakeTimeout bounds the opening handshake.
func WithHandshakeTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.dialer.HandshakeTimeout = d
		}
	}
}

// WithWriteTimeout bounds each outgoing frame.
func WithWriteTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.writeTimeout = d
		}
	}
}

// WithReconnectDelay sets the first and the maximum delay between reconnect
// attempts. The delay doubles after every failed attempt.
func WithReconnectDelay(minDelay, maxDelay time.Duration) ClientOption {
	return func(c *Client) {
		if minDelay > 0 {
			c.minDelay = minDelay
		}
		if maxDelay >= c.minDelay {
			c.maxDelay = maxDelay
		}
	}
}

// WithTokenSource adds an Authorization header from ts to every handshake.
func WithTokenSource(ts oauth2.TokenSource) ClientOption {
	return func(c *Client) { c.tokens = ts }
}

// WithHeader adds static handshake headers.
func WithHeader(h http.Header) ClientOption {
	return func(c *Client) { c.header = h.Clone() }
}

// WithDialer replaces the gorilla dialer, keeping any handshake timeout
// already configured when the replacement has none.
func WithDialer(d *websocket.Dialer) ClientOption {
	return func(c *Client) {
		if d == nil {
			return
		}
		if d.HandshakeTimeout == 0 {
			d.HandshakeTimeout = c.dialer.HandshakeTimeout
		}
		c.dialer = d
	}
}

// Client is a Socket backed by gorilla/websocket. Every Open starts a
// connection loop that dials, pumps inbound frames to the Handler and, unless
// retries are disabled, redials with exponential backoff after a drop.
// Notifications from a loop that has been superseded by a later Open are
// suppressed.
type Client struct {
	dialer       *websocket.Dialer
	header       http.Header
	tokens       oauth2.TokenSource
	writeTimeout time.Duration
	minDelay     time.Duration
	maxDelay     time.Duration
	noRetry      atomic.Bool

	mu      sync.Mutex
	handler Handler
	gen     uint64
	cancel  context.CancelFunc
	conn    *websocket.Conn
	done    chan struct{}

	writeMu sync.Mutex
}

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
		writeTimeout: 10 * time.Second,
		minDelay:     time.Second,
		maxDelay:     30 * time.Second,
		handler:      NopHandler{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) SetHandler(h Handler) {
	if h == nil {
		h = NopHandler{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = h
}

func (c *Client) SetNoRetry(noRetry bool) {
	c.noRetry.Store(noRetry)
}

// Open supersedes any running connection loop and starts a new one for url.
// The ctx only scopes the call; the loop lives until Close or the next Open.
func (c *Client) Open(ctx context.Context, url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return ErrEmptyURL
	}
	if err := utils.ValidateSocketURL(url); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	c.stopLocked()
	c.gen++
	gen := c.gen
	runCtx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	done := make(chan struct{})
	c.done = done
	c.mu.Unlock()

	go func() {
		defer close(done)
		c.run(runCtx, gen, url)
	}()
	return nil
}

// Close stops the current connection loop. The loop reports OnDisconnected
// once the connection is torn down.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
	return nil
}

// Wait blocks until the current connection loop has exited.
func (c *Client) Wait() {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (c *Client) stopLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.conn != nil {
		c.writeMu.Lock()
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		c.writeMu.Unlock()
		_ = c.conn.Close()
		c.conn = nil
	}
}

func (c *Client) Send(ctx context.Context, p message.Payload) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	deadline := time.Now().Add(c.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	frameType := websocket.TextMessage
	if p.IsBinary() {
		frameType = websocket.BinaryMessage
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := conn.WriteMessage(frameType, p.Bytes()); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// notify runs fn against the handler only while gen is still current.
func (c *Client) notify(gen uint64, fn func(Handler)) {
	c.mu.Lock()
	h := c.handler
	current := c.gen == gen
	c.mu.Unlock()
	if current {
		fn(h)
	}
}

func (c *Client) run(ctx context.Context, gen uint64, url string) {
	delay := c.minDelay
	retrying := false

	finish := func() {
		if retrying {
			c.notify(gen, func(h Handler) { h.OnRetrying(false) })
		}
		c.notify(gen, func(h Handler) { h.OnDisconnected() })
	}

	for {
		conn, err := c.dial(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				finish()
				return
			}
			logger.WarnCF("socket", "Dial failed", map[string]any{
				"url":   url,
				"error": err.Error(),
			})
			c.notify(gen, func(h Handler) { h.OnError(err) })
			if c.noRetry.Load() {
				finish()
				return
			}
			if !retrying {
				retrying = true
				c.notify(gen, func(h Handler) { h.OnRetrying(true) })
			}
			if !sleepCtx(ctx, delay) {
				finish()
				return
			}
			delay = nextDelay(delay, c.maxDelay)
			continue
		}

		c.mu.Lock()
		if c.gen != gen || ctx.Err() != nil {
			c.mu.Unlock()
			_ = conn.Close()
			finish()
			return
		}
		c.conn = conn
		c.mu.Unlock()

		retrying = false
		delay = c.minDelay
		logger.InfoCF("socket", "Connected", map[string]any{"url": url})
		c.notify(gen, func(h Handler) { h.OnConnected() })

		readErr := c.readLoop(gen, conn)

		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
		_ = conn.Close()

		if ctx.Err() != nil {
			c.notify(gen, func(h Handler) { h.OnDisconnected() })
			return
		}

		if !websocket.IsCloseError(readErr, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			c.notify(gen, func(h Handler) { h.OnError(readErr) })
		}
		logger.InfoCF("socket", "Connection dropped", map[string]any{
			"url":   url,
			"error": readErr.Error(),
		})
		c.notify(gen, func(h Handler) { h.OnDisconnected() })

		if c.noRetry.Load() {
			return
		}
		retrying = true
		c.notify(gen, func(h Handler) { h.OnRetrying(true) })
		if !sleepCtx(ctx, delay) {
			c.notify(gen, func(h Handler) { h.OnRetrying(false) })
			return
		}
		delay = nextDelay(delay, c.maxDelay)
	}
}

func (c *Client) dial(ctx context.Context, url string) (*websocket.Conn, error) {
	header := c.header.Clone()
	if header == nil {
		header = http.Header{}
	}
	if c.tokens != nil {
		tok, err := c.tokens.Token()
		if err != nil {
			return nil, fmt.Errorf("fetch token: %w", err)
		}
		header.Set("Authorization", tok.Type()+" "+tok.AccessToken)
	}

	conn, resp, err := c.dialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", url, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return conn, nil
}

func (c *Client) readLoop(gen uint64, conn *websocket.Conn) error {
	for {
		frameType, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var p message.Payload
		switch frameType {
		case websocket.BinaryMessage:
			p = message.Binary(data)
		default:
			p = message.Text(string(data))
		}
		c.notify(gen, func(h Handler) { h.OnMessage(p) })
	}
}

func nextDelay(cur, limit time.Duration) time.Duration {
	next := cur * 2
	if next > limit {
		return limit
	}
	return next
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
