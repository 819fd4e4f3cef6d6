package feed

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/friendsofgo/errors"
	"github.com/gorilla/websocket"

	"cad-realtime/pkg/log"
)

// Default connection tuning, matching the hub's server-side expectations
const (
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultPongWait         = 60 * time.Second
	DefaultPingPeriod       = 30 * time.Second
	DefaultWriteWait        = 10 * time.Second
	DefaultMaxMessageSize   = 4096
)

// ReconnectPolicy controls automatic reconnection after the socket drops.
// The zero value disables reconnection: the client runs one session and
// stops, leaving retry policy to the caller.
type ReconnectPolicy struct {
	Enabled      bool
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// MaxAttempts caps consecutive failed sessions; zero means unlimited
	MaxAttempts int
}

// DefaultReconnectPolicy returns an enabled policy with exponential backoff
func DefaultReconnectPolicy() ReconnectPolicy {
	return ReconnectPolicy{
		Enabled:      true,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2,
	}
}

// Config holds the immutable configuration of a feed client.
// All behavior toggles are read once at construction.
type Config struct {
	// URL is the WebSocket endpoint of the feed hub
	URL string

	// Channel is the subscription channel name, "activity" when empty
	Channel string

	// InitialItems pre-seeds the buffer
	InitialItems []ActivityItem

	// MaxItems caps the buffer, DefaultMaxItems when non-positive
	MaxItems int

	// EnableNotifications fires AlertSink for error and critical items
	EnableNotifications bool

	// EnableSound fires CueSink for every accepted item
	EnableSound bool

	// AlertSink receives error/critical items when EnableNotifications is set
	AlertSink Sink

	// CueSink receives every accepted item when EnableSound is set
	CueSink Sink

	// OnItem is invoked after an item is accepted into the buffer
	OnItem func(item ActivityItem)

	// OnItemClick is invoked by Click after the item is marked read
	OnItemClick func(item ActivityItem)

	Reconnect ReconnectPolicy

	HandshakeTimeout time.Duration
	PongWait         time.Duration
	PingPeriod       time.Duration
	WriteWait        time.Duration
	MaxMessageSize   int64
}

func (c *Config) withDefaults() Config {
	cfg := *c
	if cfg.Channel == "" {
		cfg.Channel = "activity"
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = DefaultPongWait
	}
	if cfg.PingPeriod <= 0 {
		cfg.PingPeriod = DefaultPingPeriod
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = DefaultWriteWait
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = DefaultMaxMessageSize
	}
	return cfg
}

// Client owns one WebSocket connection to the feed hub and runs the
// ingestion pipeline: subscribe, demux inbound frames, buffer accepted
// items, and fire side effects.
type Client struct {
	cfg    Config
	buf    *Buffer
	logger log.Logger
	dialer *websocket.Dialer

	connected atomic.Bool

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool

	cancel context.CancelFunc
	done   chan struct{}
}

// NewClient creates a feed client. The connection is not opened until Start.
func NewClient(cfg Config, logger log.Logger) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("feed: URL is required")
	}
	cfg = cfg.withDefaults()

	return &Client{
		cfg:    cfg,
		buf:    NewBuffer(cfg.MaxItems, cfg.InitialItems),
		logger: logger,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		done: make(chan struct{}),
	}, nil
}

// Buffer exposes the client's item buffer for filtering and read-state
// operations. The buffer is owned by the client; there is no API to push
// items in from outside.
func (c *Client) Buffer() *Buffer {
	return c.buf
}

// Connected reports whether the socket is currently open and subscribed
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Click marks the item read, then invokes the configured click callback.
// It returns false when the id is not buffered.
func (c *Client) Click(id string) bool {
	if !c.buf.MarkRead(id) {
		return false
	}
	if c.cfg.OnItemClick != nil {
		for _, item := range c.buf.Items() {
			if item.ID == id {
				c.cfg.OnItemClick(item)
				break
			}
		}
	}
	return true
}

// Start opens the connection and runs the read loop in the background
// until ctx is canceled, Close is called, or the session ends without a
// reconnect policy.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	go c.run(runCtx)
	return nil
}

// Close tears the client down, closing the socket on every path
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	cancel := c.cancel
	conn := c.conn
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.Close()
	}
	if cancel != nil {
		<-c.done
	} else {
		close(c.done)
	}
	return nil
}

// Done is closed when the background loop has exited
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// run drives sessions according to the reconnect policy
func (c *Client) run(ctx context.Context) {
	defer close(c.done)

	policy := c.cfg.Reconnect
	delay := policy.InitialDelay
	if delay <= 0 {
		delay = time.Second
	}
	attempts := 0

	for {
		err := c.session(ctx)
		c.connected.Store(false)

		if ctx.Err() != nil || c.isClosed() {
			return
		}
		if err != nil {
			c.logger.Warnf(ctx, "feed: session ended: %v", err)
		}
		if !policy.Enabled {
			return
		}

		attempts++
		if policy.MaxAttempts > 0 && attempts > policy.MaxAttempts {
			c.logger.Errorf(ctx, "feed: giving up after %d reconnect attempts", policy.MaxAttempts)
			return
		}

		c.logger.Infof(ctx, "feed: reconnecting in %s (attempt %d)", delay, attempts)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		if policy.Multiplier > 1 {
			delay = time.Duration(float64(delay) * policy.Multiplier)
		}
		if policy.MaxDelay > 0 && delay > policy.MaxDelay {
			delay = policy.MaxDelay
		}
	}
}

// session dials, subscribes, and reads frames until the connection drops
func (c *Client) session(ctx context.Context) error {
	conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return errors.Wrapf(err, "failed to dial %s", c.cfg.URL)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return ErrClosed
	}
	c.conn = conn
	c.mu.Unlock()

	defer func() {
		conn.Close()
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
		}
		c.mu.Unlock()
	}()

	// Subscribe to the configured channel before anything else
	sub, err := EncodeSubscribe(c.cfg.Channel)
	if err != nil {
		return errors.Wrap(err, "failed to encode subscribe command")
	}
	conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
	if err := conn.WriteMessage(websocket.TextMessage, sub); err != nil {
		return errors.Wrap(err, "failed to send subscribe command")
	}

	c.connected.Store(true)
	c.logger.Infof(ctx, "feed: subscribed to channel %q at %s", c.cfg.Channel, c.cfg.URL)

	conn.SetReadLimit(c.cfg.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
		return nil
	})

	// Ping loop keeps the connection alive and unblocks the read loop on
	// cancellation by closing the socket. Its lifetime is tied to the read
	// loop: readDone stops it as soon as the read loop returns, so session
	// exit never waits out a ping interval.
	readDone := make(chan struct{})
	pingDone := make(chan struct{})
	go func() {
		defer close(pingDone)
		ticker := time.NewTicker(c.cfg.PingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			case <-ctx.Done():
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				conn.Close()
				return
			case <-readDone:
				return
			}
		}
	}()
	defer func() { <-pingDone }()
	defer close(readDone)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || c.isClosed() {
				return nil
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return errors.Wrap(err, "read error")
			}
			return nil
		}
		if msgType != websocket.TextMessage {
			continue
		}
		c.handleFrame(ctx, data)
	}
}

// handleFrame runs one inbound frame through decode, validation, the pause
// gate, and side-effect dispatch. Nothing here propagates an error: parse
// failures are logged and the frame dropped, the connection stays open.
func (c *Client) handleFrame(ctx context.Context, data []byte) {
	frame, err := DecodeFrame(data)
	if err != nil {
		c.logger.Warnf(ctx, "feed: dropping frame: %v", err)
		return
	}
	if frame.Kind == FrameUnknown {
		// Unrecognized frame types are ignored for forward compatibility
		c.logger.Debugf(ctx, "feed: ignoring unknown frame type")
		return
	}

	item := frame.Item
	if err := item.Validate(); err != nil {
		c.logger.Warnf(ctx, "feed: dropping item: %v", err)
		return
	}

	// Pause gate: dropped items skip buffering and all side effects
	if !c.buf.Push(*item) {
		return
	}

	if c.cfg.EnableNotifications && c.cfg.AlertSink != nil && item.Severity.IsAlerting() {
		if err := c.cfg.AlertSink.OnItem(ctx, item); err != nil {
			c.logger.Warnf(ctx, "feed: alert sink failed for item %s: %v", item.ID, err)
		}
	}
	if c.cfg.EnableSound && c.cfg.CueSink != nil {
		if err := c.cfg.CueSink.OnItem(ctx, item); err != nil {
			c.logger.Debugf(ctx, "feed: cue sink failed: %v", err)
		}
	}
	if c.cfg.OnItem != nil {
		c.cfg.OnItem(*item)
	}
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
