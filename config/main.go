package config

import (
	"context"
	"fmt"
	"time"

	"github.com/akeren/lore-anchor-waitlist/config/router"
	"github.com/akeren/lore-anchor-waitlist/internal/log"
	"github.com/akeren/lore-anchor-waitlist/internal/models"
	"github.com/akeren/lore-anchor-waitlist/pkg/constants"
	"github.com/caarlos0/env/v11"
	"gorm.io/gorm"
)

type ApplicationConfig struct {
	// DB is nil when the waitlist is stored in Supabase.
	DB              *gorm.DB
	RouterService   *router.RouterService
	Logger          *log.Logger
	Cache           Cache
	Config          *AppConfig
	Waitlist        *WaitlistConfig
	TracingShutdown func(context.Context) error
}

// AppConfig holds the global request limits. Non-positive values fall back
// to the package defaults.
type AppConfig struct {
	RateLimitRequests int           `env:"RATE_LIMIT_REQUESTS" envDefault:"100"`
	RateLimitWindow   time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
	RequestTimeout    time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
}

func LoadAppConfig() (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse app config: %w", err)
	}

	if cfg.RateLimitRequests <= 0 {
		cfg.RateLimitRequests = constants.DefaultRateLimitRequests
	}
	if cfg.RateLimitWindow <= 0 {
		cfg.RateLimitWindow = constants.DefaultRateLimitWindow()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = constants.DefaultRequestTimeout
	}
	return cfg, nil
}

func (ac *ApplicationConfig) Cleanup() {
	if ac.TracingShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := ac.TracingShutdown(ctx); err != nil {
			ac.Logger.Error("Failed to shutdown tracer provider", "error", err)
		}
	}

	if ac.DB != nil {
		CloseDatabase(ac.DB, ac.Logger)
	}

	if ac.RouterService != nil {
		ac.RouterService.Cleanup()
	}

	if ac.Cache != nil {
		CloseCache(ac.Cache, ac.Logger)
	}

	ac.Logger.Info("Application cleanup completed")
}

func LoadApplicationConfiguration(logger *log.Logger, autoMigrate bool) (*ApplicationConfig, error) {
	InitializeEnvFile(logger)

	if autoMigrate {
		appEnv := GetAppEnv()
		if err := ValidateAutoMigrateAllowed(appEnv); err != nil {
			return nil, err
		}
		if appEnv == "" {
			logger.Warn("APP_ENV not set; allowing --auto-migrate as development")
		}
	}

	waitlistConfig, err := LoadWaitlistConfig()
	if err != nil {
		return nil, err
	}

	tracingShutdown, err := SetupTracing(logger)
	if err != nil {
		return nil, err
	}

	db, err := OpenWaitlistStore(logger, waitlistConfig, autoMigrate)
	if err != nil {
		return nil, err
	}

	appConfig, err := LoadAppConfig()
	if err != nil {
		return nil, err
	}

	cache := OpenCacheOrNil(logger)

	routerService := router.CreateRouterService(logger, cache, &router.RouterConfig{
		RateLimitRequests: appConfig.RateLimitRequests,
		RateLimitWindow:   appConfig.RateLimitWindow,
		RequestTimeout:    appConfig.RequestTimeout,
	})

	logger.Info("Application configuration loaded successfully")

	return &ApplicationConfig{
		DB:              db,
		RouterService:   routerService,
		Logger:          logger,
		Cache:           cache,
		Config:          appConfig,
		Waitlist:        waitlistConfig,
		TracingShutdown: tracingShutdown,
	}, nil
}

// OpenWaitlistStore returns the gorm handle for SQL-backed stores and nil for
// Supabase. SQLite is always migrated; Postgres only with autoMigrate.
func OpenWaitlistStore(logger *log.Logger, cfg *WaitlistConfig, autoMigrate bool) (*gorm.DB, error) {
	switch cfg.Store {
	case StoreSupabase:
		logger.Info("Waitlist stored in Supabase", "url", cfg.Supabase.URL, "table", cfg.Supabase.Table)
		return nil, nil

	case StoreSQLite:
		db, err := NewSQLiteDatabase(logger, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := AutoMigrate(logger, db, models.ModelRegistry...); err != nil {
			CloseDatabase(db, logger)
			return nil, err
		}
		return db, nil

	default:
		db, err := NewDatabase(logger, nil)
		if err != nil {
			return nil, err
		}
		if autoMigrate {
			if err := AutoMigrate(logger, db, models.ModelRegistry...); err != nil {
				CloseDatabase(db, logger)
				return nil, err
			}
		}
		return db, nil
	}
}
