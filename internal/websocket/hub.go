package websocket

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"cad-realtime/pkg/log"
)

// subscription pairs a connection with a channel name
type subscription struct {
	conn    *Connection
	channel string
}

// Hub maintains the set of active connections and routes activity messages
// to the channels they subscribed to
type Hub struct {
	// Registered connections and the channels each subscribed to
	connections map[*Connection]map[string]struct{}

	// Channel name -> subscribed connections
	channels map[string]map[*Connection]struct{}

	mu sync.RWMutex

	// Channels for connection management
	register    chan *Connection
	unregister  chan *Connection
	subscribe   chan subscription
	unsubscribe chan subscription

	// Channel for broadcasting messages
	broadcast chan *ChannelMessage

	// Metrics
	totalMessagesReceived atomic.Int64
	totalMessagesSent     atomic.Int64
	totalMessagesFailed   atomic.Int64

	// Configuration
	maxConnections int

	// Dependencies
	logger log.Logger

	// Context for graceful shutdown
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHub creates a new Hub instance
func NewHub(logger log.Logger, maxConnections int) *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	return &Hub{
		connections:    make(map[*Connection]map[string]struct{}),
		channels:       make(map[string]map[*Connection]struct{}),
		register:       make(chan *Connection, 100),
		unregister:     make(chan *Connection, 100),
		subscribe:      make(chan subscription, 100),
		unsubscribe:    make(chan subscription, 100),
		broadcast:      make(chan *ChannelMessage, 1000),
		maxConnections: maxConnections,
		logger:         logger,
		ctx:            ctx,
		cancel:         cancel,
		done:           make(chan struct{}),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.logger.Info(context.Background(), "Hub shutting down...")
			h.closeAllConnections()
			return

		case conn := <-h.register:
			h.registerConnection(conn)

		case conn := <-h.unregister:
			h.unregisterConnection(conn)

		case sub := <-h.subscribe:
			h.subscribeConnection(sub.conn, sub.channel)

		case sub := <-h.unsubscribe:
			h.unsubscribeConnection(sub.conn, sub.channel)

		case msg := <-h.broadcast:
			h.broadcastToChannel(msg)
		}
	}
}

// Subscribe adds the connection to a channel's subscriber set
func (h *Hub) Subscribe(conn *Connection, channel string) {
	select {
	case h.subscribe <- subscription{conn: conn, channel: channel}:
	case <-h.ctx.Done():
	}
}

// Unsubscribe removes the connection from a channel's subscriber set
func (h *Hub) Unsubscribe(conn *Connection, channel string) {
	select {
	case h.unsubscribe <- subscription{conn: conn, channel: channel}:
	case <-h.ctx.Done():
	}
}

// Broadcast queues a message for every subscriber of a channel
func (h *Hub) Broadcast(channel string, message *Message) {
	select {
	case h.broadcast <- &ChannelMessage{Channel: channel, Message: message}:
	case <-time.After(time.Second):
		h.logger.Warnf(context.Background(), "Timeout broadcasting to channel %s", channel)
		h.totalMessagesFailed.Add(1)
	}
}

// registerConnection registers a new connection
func (h *Hub) registerConnection(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Check max connections limit
	if len(h.connections) >= h.maxConnections {
		h.logger.Warnf(context.Background(), "Rejecting user %s: %v", conn.userID, ErrMaxConnections)
		go conn.Close()
		return
	}

	h.connections[conn] = make(map[string]struct{})

	h.logger.Infof(context.Background(),
		"User connected: %s (total connections: %d)",
		conn.userID,
		len(h.connections),
	)
}

// unregisterConnection unregisters a connection and drops its subscriptions
func (h *Hub) unregisterConnection(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subscribed, exists := h.connections[conn]
	if !exists {
		return
	}

	for channel := range subscribed {
		h.dropFromChannelLocked(conn, channel)
	}
	delete(h.connections, conn)
	close(conn.send)

	h.logger.Infof(context.Background(),
		"User disconnected: %s (total connections: %d)",
		conn.userID,
		len(h.connections),
	)
}

// subscribeConnection adds a registered connection to a channel
func (h *Hub) subscribeConnection(conn *Connection, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subscribed, exists := h.connections[conn]
	if !exists {
		// Connection already unregistered, ignore the late subscribe
		return
	}

	subscribed[channel] = struct{}{}
	if h.channels[channel] == nil {
		h.channels[channel] = make(map[*Connection]struct{})
	}
	h.channels[channel][conn] = struct{}{}

	h.logger.Infof(context.Background(),
		"User %s subscribed to channel %s (channel subscribers: %d)",
		conn.userID,
		channel,
		len(h.channels[channel]),
	)
}

// unsubscribeConnection removes a connection from a channel
func (h *Hub) unsubscribeConnection(conn *Connection, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subscribed, exists := h.connections[conn]
	if !exists {
		return
	}
	delete(subscribed, channel)
	h.dropFromChannelLocked(conn, channel)
}

// dropFromChannelLocked removes a connection from a channel's subscriber set
// (must be called with lock held)
func (h *Hub) dropFromChannelLocked(conn *Connection, channel string) {
	subscribers, exists := h.channels[channel]
	if !exists {
		return
	}
	delete(subscribers, conn)
	if len(subscribers) == 0 {
		delete(h.channels, channel)
	}
}

// broadcastToChannel sends a message to all subscribers of a channel
func (h *Hub) broadcastToChannel(msg *ChannelMessage) {
	h.totalMessagesReceived.Add(1)

	h.mu.RLock()
	subscribers := make([]*Connection, 0, len(h.channels[msg.Channel]))
	for conn := range h.channels[msg.Channel] {
		subscribers = append(subscribers, conn)
	}
	h.mu.RUnlock()

	if len(subscribers) == 0 {
		// Nobody subscribed, skip silently
		return
	}

	// Convert message to JSON once
	data, err := msg.Message.ToJSON()
	if err != nil {
		h.logger.Errorf(context.Background(), "Failed to marshal message: %v", err)
		h.totalMessagesFailed.Add(1)
		return
	}

	sentCount := 0
	for _, conn := range subscribers {
		select {
		case conn.send <- data:
			sentCount++
		default:
			// Connection's send buffer is full, skip
			h.logger.Warnf(context.Background(), "Failed to send to user %s (buffer full)", conn.userID)
			h.totalMessagesFailed.Add(1)
		}
	}

	h.totalMessagesSent.Add(int64(sentCount))
}

// closeAllConnections closes all active connections
func (h *Hub) closeAllConnections() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.connections {
		conn.Close()
	}

	h.connections = make(map[*Connection]map[string]struct{})
	h.channels = make(map[string]map[*Connection]struct{})
}

// GetStats returns hub statistics
func (h *Hub) GetStats() HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return HubStats{
		ActiveConnections:     len(h.connections),
		ActiveChannels:        len(h.channels),
		TotalMessagesReceived: h.totalMessagesReceived.Load(),
		TotalMessagesSent:     h.totalMessagesSent.Load(),
		TotalMessagesFailed:   h.totalMessagesFailed.Load(),
	}
}

// Shutdown gracefully shuts down the hub
func (h *Hub) Shutdown(ctx context.Context) error {
	h.cancel()

	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HubStats represents hub statistics
type HubStats struct {
	ActiveConnections     int   `json:"active_connections"`
	ActiveChannels        int   `json:"active_channels"`
	TotalMessagesReceived int64 `json:"total_messages_received"`
	TotalMessagesSent     int64 `json:"total_messages_sent"`
	TotalMessagesFailed   int64 `json:"total_messages_failed"`
}
