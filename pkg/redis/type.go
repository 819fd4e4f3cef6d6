package redis

import "time"

// Config holds Redis connection configuration.
// Note: Only standalone mode is supported.
type Config struct {
	Addr     string
	Password string
	DB       int
	UseTLS   bool

	// Connection pool settings
	MaxRetries      int
	MinIdleConns    int
	PoolSize        int
	PoolTimeout     time.Duration
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}
