// Package wsconn provides a WebSocket client with jittered reconnection.
package wsconn

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/fd1az/depth-compare/internal/apperror"
)

// State represents the connection state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateClosed       State = "closed"
)

// Config holds WebSocket client configuration.
type Config struct {
	URL  string
	Name string // used in error context

	Header http.Header

	HandshakeTimeout time.Duration
	ReadTimeout      time.Duration // 0 = no per-read deadline
	WriteTimeout     time.Duration
	PingInterval     time.Duration // 0 = no pings
	MaxMessageSize   int64

	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// Jitter is the fraction of the backoff added at random, 0.2 = up to +20%.
	Jitter        float64
	MaxReconnects int // 0 = infinite
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(url, name string) Config {
	return Config{
		URL:              url,
		Name:             name,
		HandshakeTimeout: 10 * time.Second,
		ReadTimeout:      60 * time.Second,
		WriteTimeout:     5 * time.Second,
		PingInterval:     20 * time.Second,
		MaxMessageSize:   4 << 20,
		InitialBackoff:   1 * time.Second,
		MaxBackoff:       30 * time.Second,
		Jitter:           0.3,
		MaxReconnects:    0,
	}
}

// MessageHandler receives every text or binary frame.
type MessageHandler func(ctx context.Context, msg []byte)

// StateHandler observes state transitions. err is set on failures.
type StateHandler func(state State, err error)

// Client is a WebSocket client that reconnects on read failures.
type Client struct {
	config Config

	mu    sync.RWMutex
	conn  *websocket.Conn
	state State

	writeMu sync.Mutex

	handlersMu     sync.RWMutex
	onMessage      MessageHandler
	onStateChange  StateHandler
	reconnectCount int

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// New creates a new WebSocket client. It does not dial.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext("websocket url is required"))
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}
	if cfg.MaxBackoff < cfg.InitialBackoff {
		cfg.MaxBackoff = cfg.InitialBackoff
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		config: cfg,
		state:  StateDisconnected,
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// OnMessage registers the message handler. Handlers run on the read
// goroutine and must not block.
func (c *Client) OnMessage(handler MessageHandler) {
	c.handlersMu.Lock()
	c.onMessage = handler
	c.handlersMu.Unlock()
}

// OnStateChange registers the state handler.
func (c *Client) OnStateChange(handler StateHandler) {
	c.handlersMu.Lock()
	c.onStateChange = handler
	c.handlersMu.Unlock()
}

// Connect dials once. A failed dial leaves the client disconnected and does
// not start a reconnect loop.
func (c *Client) Connect(ctx context.Context) error {
	if c.isClosed() {
		return apperror.New(apperror.CodeWebSocketClosed, apperror.WithContext(c.config.Name))
	}

	c.setState(StateConnecting, nil)

	conn, err := c.dial(ctx)
	if err != nil {
		c.setState(StateDisconnected, err)
		return err
	}

	c.install(conn)
	return nil
}

// ConnectWithRetry dials until it succeeds, ctx is done or MaxReconnects is
// exhausted.
func (c *Client) ConnectWithRetry(ctx context.Context) error {
	var lastErr error
	for attempt := 0; ; attempt++ {
		if c.config.MaxReconnects > 0 && attempt > c.config.MaxReconnects {
			return lastErr
		}
		if attempt > 0 {
			if err := c.sleep(ctx, c.backoff(attempt)); err != nil {
				return err
			}
		}
		if lastErr = c.Connect(ctx); lastErr == nil {
			return nil
		}
		if c.isClosed() {
			return lastErr
		}
	}
}

// Send writes a text frame.
func (c *Client) Send(ctx context.Context, msg []byte) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return apperror.New(apperror.CodeWebSocketSendError,
			apperror.WithContext(c.config.Name+": not connected"))
	}

	if c.config.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.WriteTimeout)
		defer cancel()
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := conn.Write(ctx, websocket.MessageText, msg); err != nil {
		return apperror.New(apperror.CodeWebSocketSendError,
			apperror.WithCause(err),
			apperror.WithContext(c.config.Name))
	}
	return nil
}

// SendJSON marshals v and sends it as a text frame.
func (c *Client) SendJSON(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return apperror.New(apperror.CodeWebSocketSendError,
			apperror.WithCause(err),
			apperror.WithContext(c.config.Name+": marshal"))
	}
	return c.Send(ctx, data)
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// IsConnected reports whether the client has a live connection.
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}

// Reconnects returns the number of successful reconnects.
func (c *Client) Reconnects() int {
	c.handlersMu.RLock()
	defer c.handlersMu.RUnlock()
	return c.reconnectCount
}

// Close closes the connection and stops reconnection. It is idempotent.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.cancel()

		c.mu.Lock()
		conn := c.conn
		c.conn = nil
		c.mu.Unlock()

		if conn != nil {
			_ = conn.Close(websocket.StatusNormalClosure, "client closing")
		}
		c.setState(StateClosed, nil)
	})
	return nil
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	if c.config.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.HandshakeTimeout)
		defer cancel()
	}

	conn, _, err := websocket.Dial(ctx, c.config.URL, &websocket.DialOptions{
		HTTPHeader: c.config.Header,
	})
	if err != nil {
		return nil, apperror.New(apperror.CodeWebSocketConnectionError,
			apperror.WithCause(err),
			apperror.WithContext(c.config.Name))
	}

	if c.config.MaxMessageSize > 0 {
		conn.SetReadLimit(c.config.MaxMessageSize)
	}
	return conn, nil
}

// install makes conn current and starts its goroutines.
func (c *Client) install(conn *websocket.Conn) {
	c.mu.Lock()
	if c.isClosed() {
		c.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "client closed")
		return
	}
	c.conn = conn
	c.mu.Unlock()

	c.setState(StateConnected, nil)

	go c.readLoop(conn)
	if c.config.PingInterval > 0 {
		go c.pingLoop(conn)
	}
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		ctx := c.ctx
		var cancel context.CancelFunc = func() {}
		if c.config.ReadTimeout > 0 {
			ctx, cancel = context.WithTimeout(c.ctx, c.config.ReadTimeout)
		}
		_, data, err := conn.Read(ctx)
		cancel()

		if err != nil {
			c.handleReadError(conn, err)
			return
		}

		c.handlersMu.RLock()
		handler := c.onMessage
		c.handlersMu.RUnlock()

		if handler != nil {
			handler(c.ctx, data)
		}
	}
}

func (c *Client) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if !c.isCurrent(conn) {
				return
			}
			ctx, cancel := context.WithTimeout(c.ctx, c.config.PingInterval)
			err := conn.Ping(ctx)
			cancel()
			if err != nil {
				// The read loop observes the broken connection and reconnects.
				_ = conn.Close(websocket.StatusGoingAway, "ping failed")
				return
			}
		}
	}
}

func (c *Client) handleReadError(conn *websocket.Conn, err error) {
	if c.isClosed() {
		return
	}

	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.mu.Unlock()

	_ = conn.Close(websocket.StatusGoingAway, "read failed")

	c.setState(StateReconnecting, apperror.New(apperror.CodeStreamDisconnected,
		apperror.WithCause(err),
		apperror.WithContext(c.config.Name)))

	go c.reconnectLoop()
}

func (c *Client) reconnectLoop() {
	for attempt := 1; ; attempt++ {
		if c.config.MaxReconnects > 0 && attempt > c.config.MaxReconnects {
			c.setState(StateDisconnected, apperror.New(apperror.CodeStreamDisconnected,
				apperror.WithContext(c.config.Name+": reconnect attempts exhausted")))
			return
		}

		if err := c.sleep(c.ctx, c.backoff(attempt)); err != nil {
			return
		}

		conn, err := c.dial(c.ctx)
		if err != nil {
			if c.isClosed() {
				return
			}
			c.setState(StateReconnecting, err)
			continue
		}

		c.handlersMu.Lock()
		c.reconnectCount++
		c.handlersMu.Unlock()

		c.install(conn)
		return
	}
}

// backoff returns the capped exponential delay for attempt (1-based) plus
// random jitter.
func (c *Client) backoff(attempt int) time.Duration {
	d := c.config.InitialBackoff
	for i := 1; i < attempt && d < c.config.MaxBackoff; i++ {
		d *= 2
	}
	if d > c.config.MaxBackoff {
		d = c.config.MaxBackoff
	}
	if c.config.Jitter > 0 {
		d += time.Duration(rand.Float64() * c.config.Jitter * float64(d))
	}
	return d
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.ctx.Done():
		return errors.New("wsconn: client closed")
	}
}

func (c *Client) setState(state State, err error) {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.state = state
	c.mu.Unlock()

	c.handlersMu.RLock()
	handler := c.onStateChange
	c.handlersMu.RUnlock()

	if handler != nil {
		handler(state, err)
	}
}

func (c *Client) isCurrent(conn *websocket.Conn) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn == conn
}

func (c *Client) isClosed() bool {
	return c.ctx.Err() != nil
}
