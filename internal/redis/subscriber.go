package redis

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/friendsofgo/errors"
	"github.com/jellydator/ttlcache/v3"
	redis_client "github.com/redis/go-redis/v9"

	"cad-realtime/pkg/log"
	"cad-realtime/pkg/redis"

	ws "cad-realtime/internal/websocket"
)

const (
	// channelPrefix scopes the Redis channels carrying feed traffic.
	// A Redis channel "feed:activity" maps to the feed channel "activity".
	channelPrefix = "feed:"
	patternFeed   = channelPrefix + "*"

	// dedupTTL bounds how long delivered item ids are remembered
	dedupTTL = 5 * time.Minute
)

// Subscriber bridges Redis Pub/Sub into the WebSocket hub
type Subscriber struct {
	client *redis.Client
	hub    *ws.Hub
	logger log.Logger

	// Duplicate suppression by activity item id
	seen *ttlcache.Cache[string, struct{}]

	pubsub *redis_client.PubSub
	mu     sync.RWMutex

	// Context for shutdown
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	// Reconnection settings
	maxRetries int
	retryDelay time.Duration

	// Health tracking
	lastMessageAt time.Time
	isActive      atomic.Bool
}

// NewSubscriber creates a new Redis subscriber
func NewSubscriber(client *redis.Client, hub *ws.Hub, logger log.Logger) *Subscriber {
	ctx, cancel := context.WithCancel(context.Background())

	return &Subscriber{
		client: client,
		hub:    hub,
		logger: logger,
		seen: ttlcache.New[string, struct{}](
			ttlcache.WithTTL[string, struct{}](dedupTTL),
		),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		maxRetries: 10,
		retryDelay: 5 * time.Second,
	}
}

// setPubSub and getPubSub guard the pubsub field, which is reassigned by
// the listen goroutine on reconnect while Shutdown reads it
func (s *Subscriber) setPubSub(ps *redis_client.PubSub) {
	s.mu.Lock()
	s.pubsub = ps
	s.mu.Unlock()
}

func (s *Subscriber) getPubSub() *redis_client.PubSub {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pubsub
}

// Start starts the Redis subscriber
func (s *Subscriber) Start() error {
	s.setPubSub(s.client.PSubscribe(s.ctx, patternFeed))

	go s.seen.Start()
	s.isActive.Store(true)

	s.logger.Infof(s.ctx, "Redis subscriber started, listening on pattern: %s", patternFeed)

	go s.listen()

	return nil
}

// listen listens for messages from Redis and routes them to the Hub
func (s *Subscriber) listen() {
	defer close(s.done)

	ch := s.getPubSub().Channel()

	for {
		select {
		case <-s.ctx.Done():
			s.logger.Info(context.Background(), "Redis subscriber shutting down...")
			return

		case msg, ok := <-ch:
			if !ok {
				s.logger.Error(s.ctx, "Redis pub/sub channel closed, attempting to reconnect...")
				if err := s.reconnect(); err != nil {
					s.logger.Errorf(s.ctx, "Failed to reconnect to Redis: %v", err)
					return
				}
				ch = s.getPubSub().Channel()
				continue
			}

			s.handleMessage(msg.Channel, msg.Payload)
		}
	}
}

// feedMessage is the envelope published to Redis feed channels
type feedMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// handleMessage processes a message from Redis
func (s *Subscriber) handleMessage(redisChannel string, payload string) {
	s.mu.Lock()
	s.lastMessageAt = time.Now()
	s.mu.Unlock()

	channel := strings.TrimPrefix(redisChannel, channelPrefix)
	if channel == redisChannel || channel == "" {
		s.logger.Warnf(s.ctx, "Invalid channel format: %s", redisChannel)
		return
	}

	var msg feedMessage
	if err := json.Unmarshal([]byte(payload), &msg); err != nil {
		s.logger.Errorf(s.ctx, "Failed to unmarshal feed message: %v", err)
		return
	}

	// Redis pub/sub delivers at-most-once per subscriber, but upstream
	// publishers have been seen re-emitting on retry. Suppress recently
	// delivered item ids.
	if id := itemID(msg.Payload); id != "" {
		if s.seen.Has(id) {
			s.logger.Debugf(s.ctx, "Suppressing duplicate item %s on channel %s", id, channel)
			return
		}
		s.seen.Set(id, struct{}{}, ttlcache.DefaultTTL)
	}

	wsMsg := &ws.Message{
		Type:      ws.MessageType(msg.Type),
		Payload:   msg.Payload,
		Timestamp: time.Now(),
	}

	s.hub.Broadcast(channel, wsMsg)

	s.logger.Debugf(s.ctx, "Routed message to channel %s (type: %s)", channel, msg.Type)
}

// itemID extracts the activity item id from a payload, if present
func itemID(payload json.RawMessage) string {
	var probe struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return ""
	}
	return probe.ID
}

// reconnect attempts to reconnect to Redis
func (s *Subscriber) reconnect() error {
	for i := 0; i < s.maxRetries; i++ {
		s.logger.Infof(s.ctx, "Reconnecting to Redis (attempt %d/%d)...", i+1, s.maxRetries)

		// Close old pubsub
		if old := s.getPubSub(); old != nil {
			old.Close()
		}

		// Create new pubsub
		ps := s.client.PSubscribe(s.ctx, patternFeed)
		s.setPubSub(ps)

		// Test the connection
		if _, err := ps.Receive(s.ctx); err == nil {
			s.logger.Info(s.ctx, "Successfully reconnected to Redis")
			return nil
		}

		time.Sleep(s.retryDelay)
	}

	return errors.Errorf("failed to reconnect to Redis after %d attempts", s.maxRetries)
}

// GetHealthInfo returns the current health info of the subscriber
func (s *Subscriber) GetHealthInfo() (active bool, lastMessageAt time.Time, pattern string) {
	s.mu.RLock()
	lastMsg := s.lastMessageAt
	s.mu.RUnlock()

	return s.isActive.Load(), lastMsg, patternFeed
}

// Shutdown gracefully shuts down the subscriber
func (s *Subscriber) Shutdown(ctx context.Context) error {
	s.isActive.Store(false)

	s.cancel()
	s.seen.Stop()

	if ps := s.getPubSub(); ps != nil {
		if err := ps.Close(); err != nil {
			s.logger.Errorf(context.Background(), "Error closing pub/sub: %v", err)
		}
	}

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
