package factory

import (
	"context"
	"sync"
	"time"

	"github.com/akeren/lore-anchor-waitlist/pkg/ratelimit"
	"github.com/go-redis/redis/v8"
)

type Cache interface {
	Ping(ctx context.Context) error
}

type RedisClientProvider interface {
	GetClient() *redis.Client
}

// Limiters hands out rate limiters that share one backend. Each scope gets its
// own Redis key space and is built once; later calls return the same limiter
// regardless of the limits passed.
type Limiters struct {
	mu      sync.Mutex
	redis   *redis.Client
	logger  ratelimit.Logger
	byScope map[string]ratelimit.RateLimiter
}

// NewLimiters uses Redis when cache exposes a client and memory otherwise.
func NewLimiters(cache Cache, logger ratelimit.Logger) *Limiters {
	l := &Limiters{
		logger:  logger,
		byScope: make(map[string]ratelimit.RateLimiter),
	}

	if provider, ok := cache.(RedisClientProvider); ok && provider != nil {
		l.redis = provider.GetClient()
	}
	return l
}

func (l *Limiters) Distributed() bool {
	return l.redis != nil
}

func (l *Limiters) Get(scope string, requests int, window time.Duration) ratelimit.RateLimiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if limiter, ok := l.byScope[scope]; ok {
		return limiter
	}

	limiter := ratelimit.NewRateLimiter(&ratelimit.RateLimitConfig{
		Requests:  requests,
		Window:    window,
		Redis:     l.redis,
		Logger:    l.logger,
		KeyPrefix: KeyPrefix(scope),
	})
	l.byScope[scope] = limiter
	return limiter
}

// KeyPrefix is the Redis key prefix used for scope.
func KeyPrefix(scope string) string {
	return ratelimit.DefaultKeyPrefix + scope + ":"
}
