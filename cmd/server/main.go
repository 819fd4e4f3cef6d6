package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/friendsofgo/errors"
	"github.com/gin-gonic/gin"

	"cad-realtime/config"
	redisSubscriber "cad-realtime/internal/redis"
	"cad-realtime/internal/server"
	ws "cad-realtime/internal/websocket"
	"cad-realtime/pkg/discord"
	"cad-realtime/pkg/jwt"
	"cad-realtime/pkg/log"
	"cad-realtime/pkg/redis"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Println("Failed to load config:", err)
		return
	}

	// Initialize logger
	logger := log.Init(log.ZapConfig{
		Level:    cfg.Logger.Level,
		Mode:     cfg.Logger.Mode,
		Encoding: cfg.Logger.Encoding,
	})

	ctx := context.Background()
	logger.Info(ctx, "Starting activity feed hub...")

	// Initialize Discord webhook (optional)
	var discordClient *discord.Discord
	if cfg.Discord.WebhookURL != "" {
		discordClient, err = discord.New(logger, cfg.Discord.WebhookURL)
		if err != nil {
			logger.Warnf(ctx, "Failed to initialize Discord webhook: %v", err)
		} else {
			logger.Info(ctx, "Discord webhook initialized")
		}
	}

	// Initialize Redis client
	redisClient, err := redis.NewClient(redis.Config{
		Addr:            cfg.Redis.Addr,
		Password:        cfg.Redis.Password,
		DB:              cfg.Redis.DB,
		UseTLS:          cfg.Redis.UseTLS,
		MaxRetries:      cfg.Redis.MaxRetries,
		MinIdleConns:    cfg.Redis.MinIdleConns,
		PoolSize:        cfg.Redis.PoolSize,
		PoolTimeout:     cfg.Redis.PoolTimeout,
		ConnMaxIdleTime: cfg.Redis.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.Redis.ConnMaxLifetime,
	})
	if err != nil {
		logger.Errorf(ctx, "Failed to connect to Redis: %v", err)
		return
	}
	defer redisClient.Close()
	logger.Infof(ctx, "Redis connected successfully to %s", cfg.Redis.Addr)

	// Initialize JWT validator
	jwtValidator := jwt.NewValidator(jwt.Config{
		SecretKey: cfg.JWT.SecretKey,
	})

	// Initialize WebSocket Hub
	hub := ws.NewHub(logger, cfg.WebSocket.MaxConnections)
	go hub.Run()
	logger.Info(ctx, "WebSocket hub started")

	// Initialize Redis subscriber
	subscriber := redisSubscriber.NewSubscriber(redisClient, hub, logger)
	if err := subscriber.Start(); err != nil {
		logger.Errorf(ctx, "Failed to start Redis subscriber: %v", err)
		return
	}
	logger.Info(ctx, "Redis Pub/Sub subscriber started")

	// Initialize WebSocket handler
	wsHandler := ws.NewHandler(
		hub,
		jwtValidator,
		logger,
		ws.ConnConfig{
			PongWait:       cfg.WebSocket.PongWait,
			PingPeriod:     cfg.WebSocket.PingInterval,
			WriteWait:      cfg.WebSocket.WriteWait,
			MaxMessageSize: cfg.WebSocket.MaxMessageSize,
		},
		cfg.WebSocket.ConnectsPerMinute,
	)

	// Setup Gin router
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	// Setup WebSocket routes
	wsHandler.SetupRoutes(router)

	// Setup server
	srv := server.New(server.Config{
		Host:        cfg.Server.Host,
		Port:        cfg.Server.Port,
		Router:      router,
		Logger:      logger,
		Hub:         hub,
		RedisClient: redisClient,
		Subscriber:  subscriber,
	})

	// Start server in a goroutine
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf(ctx, "Server error: %v", err)
			if discordClient != nil {
				discordClient.SendError(ctx, "Feed hub stopped", "HTTP server exited unexpectedly", err)
			}
		}
	}()

	logger.Infof(ctx, "Feed hub listening on %s:%d", cfg.Server.Host, cfg.Server.Port)

	if discordClient != nil {
		if err := discordClient.SendInfo(ctx, "Feed hub started",
			fmt.Sprintf("Listening on %s:%d", cfg.Server.Host, cfg.Server.Port)); err != nil {
			logger.Warnf(ctx, "Failed to send startup notification: %v", err)
		}
	}

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info(ctx, "Shutting down gracefully...")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Shutdown components in order
	if err := subscriber.Shutdown(shutdownCtx); err != nil {
		logger.Errorf(ctx, "Error shutting down Redis subscriber: %v", err)
	}

	if err := hub.Shutdown(shutdownCtx); err != nil {
		logger.Errorf(ctx, "Error shutting down hub: %v", err)
	}

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf(ctx, "Error shutting down server: %v", err)
	}

	logger.Info(ctx, "Server shutdown complete")
}
