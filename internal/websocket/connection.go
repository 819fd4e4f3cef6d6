package websocket

import (
	"context"
	"encoding/json"
	"time"

	"cad-realtime/pkg/log"

	"github.com/gorilla/websocket"
)

// Connection represents a WebSocket connection from one feed consumer
type Connection struct {
	// Hub reference
	hub *Hub

	// WebSocket connection
	conn *websocket.Conn

	// User ID from the validated token
	userID string

	// Buffered channel of outbound messages
	send chan []byte

	// Configuration
	pongWait       time.Duration
	pingPeriod     time.Duration
	writeWait      time.Duration
	maxMessageSize int64

	// Logger
	logger log.Logger

	// Done signal
	done chan struct{}
}

// NewConnection creates a new Connection instance
func NewConnection(
	hub *Hub,
	conn *websocket.Conn,
	userID string,
	cfg ConnConfig,
	logger log.Logger,
) *Connection {
	return &Connection{
		hub:            hub,
		conn:           conn,
		userID:         userID,
		send:           make(chan []byte, 256),
		pongWait:       cfg.PongWait,
		pingPeriod:     cfg.PingPeriod,
		writeWait:      cfg.WriteWait,
		maxMessageSize: cfg.MaxMessageSize,
		logger:         logger,
		done:           make(chan struct{}),
	}
}

// ConnConfig holds per-connection tuning
type ConnConfig struct {
	PongWait       time.Duration
	PingPeriod     time.Duration
	WriteWait      time.Duration
	MaxMessageSize int64
}

// readPump pumps frames from the WebSocket connection into the hub.
//
// The application runs readPump in a per-connection goroutine. The application
// ensures that there is at most one reader on a connection by executing all
// reads from this goroutine.
func (c *Connection) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	// Set read deadline for pong messages
	c.conn.SetReadDeadline(time.Now().Add(c.pongWait))

	// Set pong handler
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
		return nil
	})

	// Set max message size
	c.conn.SetReadLimit(c.maxMessageSize)

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Errorf(context.Background(), "WebSocket read error for user %s: %v", c.userID, err)
			}
			break
		}

		c.handleCommand(message)
	}
}

// handleCommand processes one inbound frame. Feed clients only send
// subscribe and unsubscribe commands; anything else is ignored.
func (c *Connection) handleCommand(message []byte) {
	var cmd ClientCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		c.logger.Warnf(context.Background(), "Dropping malformed command from user %s: %v", c.userID, err)
		return
	}

	switch cmd.Type {
	case MessageTypeSubscribe:
		if err := ValidateChannel(cmd.Channel); err != nil {
			c.logger.Warnf(context.Background(), "Rejecting subscribe from user %s: %v", c.userID, err)
			return
		}
		c.hub.Subscribe(c, cmd.Channel)

	case MessageTypeUnsubscribe:
		if err := ValidateChannel(cmd.Channel); err != nil {
			return
		}
		c.hub.Unsubscribe(c, cmd.Channel)

	default:
		// Unknown command types are ignored for forward compatibility
		c.logger.Debugf(context.Background(), "Ignoring command type %q from user %s", cmd.Type, c.userID)
	}
}

// writePump pumps messages from the hub to the WebSocket connection
//
// A goroutine running writePump is started for each connection. The
// application ensures that there is at most one writer to a connection by
// executing all writes from this goroutine.
func (c *Connection) writePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			// Set write deadline
			c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))

			if !ok {
				// The hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			// Send ping message
			c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}

// Start starts the connection's read and write pumps
func (c *Connection) Start() {
	go c.writePump()
	go c.readPump()
}

// Close closes the connection
func (c *Connection) Close() {
	select {
	case <-c.done:
		// Already closed
		return
	default:
		close(c.done)
		if c.conn != nil {
			c.conn.Close()
		}
	}
}
