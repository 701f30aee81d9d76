package config

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/akeren/lore-anchor-waitlist/internal/log"
	pkgredis "github.com/akeren/lore-anchor-waitlist/pkg/redis"
	"github.com/caarlos0/env/v11"
)

// Cache is the external key/value store. Get returns ("", nil) on a miss and
// Set treats ttl=0 as no expiry.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Incr(ctx context.Context, key string) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

var ErrCacheNotConfigured = errors.New("cache host is not configured")

// CacheConfig is optional; without REDIS_HOST the count cache is off and
// rate limits are kept in process.
type CacheConfig struct {
	Host     string `env:"REDIS_HOST"`
	Port     string `env:"REDIS_PORT" envDefault:"6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB" envDefault:"0"`
}

func LoadCacheConfig() (*CacheConfig, error) {
	cfg := &CacheConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse cache config: %w", err)
	}
	cfg.Host = sanitizeEnv(cfg.Host)
	cfg.Password = sanitizeEnv(cfg.Password)
	return cfg, nil
}

func (cc *CacheConfig) IsConfigured() bool {
	return cc.Host != ""
}

func (cc *CacheConfig) NewCache() (Cache, error) {
	if !cc.IsConfigured() {
		return nil, ErrCacheNotConfigured
	}

	cache, err := pkgredis.NewRedisCache(&pkgredis.Config{
		Host:     cc.Host,
		Port:     cc.Port,
		Password: cc.Password,
		DB:       cc.DB,
	})
	if err != nil {
		return nil, err
	}
	return cache, nil
}

// OpenCacheOrNil never fails startup: a missing or unreachable Redis leaves
// the service on in-process fallbacks.
func OpenCacheOrNil(logger *log.Logger) Cache {
	cc, err := LoadCacheConfig()
	if err != nil {
		logger.Error("Invalid cache configuration; proceeding without external cache", "error", err)
		return nil
	}
	if !cc.IsConfigured() {
		logger.Info("Cache (Redis) is not configured; proceeding without external cache")
		return nil
	}

	cache, err := cc.NewCache()
	if err != nil {
		logger.Error("Failed to connect to cache (Redis); proceeding without external cache", "error", err)
		return nil
	}

	logger.Info("Cache (Redis) connected", "host", cc.Host, "port", cc.Port, "db", cc.DB)
	return cache
}

func CloseCache(cache Cache, logger *log.Logger) {
	if cache == nil {
		return
	}

	if err := cache.Close(); err != nil {
		logger.Error("Failed to close cache", "error", err)
		return
	}

	logger.Info("Cache connection closed")
}
