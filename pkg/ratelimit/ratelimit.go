// Package ratelimit provides per-key request limiters backed by memory or Redis.
package ratelimit

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

const DefaultKeyPrefix = "ratelimit:"

type Logger interface {
	Error(msg string, args ...any)
}

// RateLimiter reports whether the caller identified by key has used up its
// allowance for the current window.
type RateLimiter interface {
	GetLimitDetails() (int, time.Duration)
	IsLimited(ctx context.Context, key string) (bool, error)
	Close() error
}

type RateLimitConfig struct {
	Requests int
	Window   time.Duration

	// Redis selects the distributed limiter; nil keeps limits in process.
	Redis  *redis.Client
	Logger Logger

	// KeyPrefix namespaces Redis keys so limiters sharing a server do not
	// count each other's requests. Defaults to DefaultKeyPrefix.
	KeyPrefix string
}

func NewRateLimiter(config *RateLimitConfig) RateLimiter {
	if config.Redis != nil {
		prefix := config.KeyPrefix
		if prefix == "" {
			prefix = DefaultKeyPrefix
		}
		return NewRedisRateLimiter(config.Redis, config.Requests, config.Window, prefix, config.Logger)
	}
	return NewInMemoryRateLimiter(config.Requests, config.Window)
}
