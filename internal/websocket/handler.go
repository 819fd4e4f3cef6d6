package websocket

import (
	"context"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"cad-realtime/pkg/jwt"
	"cad-realtime/pkg/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow all origins for now (configure in production)
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler handles WebSocket connections
type Handler struct {
	hub          *Hub
	jwtValidator *jwt.Validator
	logger       log.Logger
	connConfig   ConnConfig

	// Per-IP connection rate limiting
	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter
	limit     rate.Limit
	burst     int
}

// NewHandler creates a new WebSocket handler. connectsPerMinute caps new
// connections per client IP.
func NewHandler(
	hub *Hub,
	jwtValidator *jwt.Validator,
	logger log.Logger,
	connConfig ConnConfig,
	connectsPerMinute int,
) *Handler {
	if connectsPerMinute <= 0 {
		connectsPerMinute = 20
	}
	return &Handler{
		hub:          hub,
		jwtValidator: jwtValidator,
		logger:       logger,
		connConfig:   connConfig,
		limiters:     make(map[string]*rate.Limiter),
		limit:        rate.Limit(float64(connectsPerMinute) / 60.0),
		burst:        connectsPerMinute,
	}
}

// limiterFor returns the rate limiter for a client IP, creating it on first use
func (h *Handler) limiterFor(ip string) *rate.Limiter {
	h.limiterMu.Lock()
	defer h.limiterMu.Unlock()

	limiter, exists := h.limiters[ip]
	if !exists {
		limiter = rate.NewLimiter(h.limit, h.burst)
		h.limiters[ip] = limiter
	}
	return limiter
}

// extractToken pulls the bearer token from the Authorization header or the
// token query parameter (browsers cannot set headers on WebSocket upgrades)
func extractToken(c *gin.Context) string {
	if auth := c.GetHeader("Authorization"); auth != "" {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return c.Query("token")
}

// HandleWebSocket handles WebSocket connection requests
func (h *Handler) HandleWebSocket(c *gin.Context) {
	if !h.limiterFor(c.ClientIP()).Allow() {
		h.logger.Warnf(context.Background(), "Connection rate limit exceeded for %s", c.ClientIP())
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error": "too many connection attempts",
		})
		return
	}

	token := extractToken(c)
	if token == "" {
		h.logger.Warn(context.Background(), "WebSocket connection rejected: missing token")
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "missing token",
		})
		return
	}

	userID, err := h.jwtValidator.ExtractSubject(token)
	if err != nil {
		h.logger.Warnf(context.Background(), "WebSocket connection rejected: invalid token - %v", err)
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": "invalid or expired token",
		})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Errorf(context.Background(), "Failed to upgrade connection: %v", err)
		return
	}

	connection := NewConnection(h.hub, conn, userID, h.connConfig, h.logger)

	// Register connection with hub
	h.hub.register <- connection

	// Start connection pumps (read and write)
	connection.Start()

	h.logger.Infof(context.Background(), "WebSocket connection established for user: %s", userID)
}

// SetupRoutes sets up WebSocket routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.GET("/ws", h.HandleWebSocket)
}
