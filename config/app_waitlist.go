package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/akeren/lore-anchor-waitlist/pkg/constants"
	"github.com/caarlos0/env/v11"
)

const (
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
	StoreSupabase = "supabase"
)

type WaitlistConfig struct {
	Store      string `env:"WAITLIST_STORE" envDefault:"postgres"`
	SQLitePath string `env:"SQLITE_PATH" envDefault:"waitlist.db"`

	Supabase SupabaseConfig

	// Zero disables the count cache.
	CountCacheTTL     time.Duration `env:"WAITLIST_COUNT_CACHE_TTL" envDefault:"5s"`
	DefaultLocale     string        `env:"WAITLIST_DEFAULT_LOCALE" envDefault:"ja"`
	RegisterRateLimit int           `env:"WAITLIST_REGISTER_RATE_LIMIT" envDefault:"30"`
	BreakerFailures   int           `env:"WAITLIST_BREAKER_FAILURES" envDefault:"5"`
	BreakerRecovery   time.Duration `env:"WAITLIST_BREAKER_RECOVERY" envDefault:"30s"`
}

// SupabaseConfig falls back to the NEXT_PUBLIC_* names used by the landing page deployment.
type SupabaseConfig struct {
	URL     string        `env:"SUPABASE_URL"`
	Key     string        `env:"SUPABASE_KEY"`
	Table   string        `env:"SUPABASE_TABLE" envDefault:"waitlist"`
	Timeout time.Duration `env:"SUPABASE_TIMEOUT" envDefault:"10s"`
}

func DefaultWaitlistConfig() *WaitlistConfig {
	return &WaitlistConfig{
		Store:      StorePostgres,
		SQLitePath: "waitlist.db",
		Supabase: SupabaseConfig{
			Table:   "waitlist",
			Timeout: 10 * time.Second,
		},
		CountCacheTTL:     5 * time.Second,
		DefaultLocale:     "ja",
		RegisterRateLimit: constants.DefaultRegisterRateLimit,
		BreakerFailures:   5,
		BreakerRecovery:   30 * time.Second,
	}
}

func LoadWaitlistConfig() (*WaitlistConfig, error) {
	cfg := &WaitlistConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse waitlist config: %w", err)
	}

	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))
	cfg.Supabase.URL = sanitizeEnv(cfg.Supabase.URL)
	cfg.Supabase.Key = sanitizeEnv(cfg.Supabase.Key)

	if cfg.Supabase.URL == "" {
		cfg.Supabase.URL = sanitizeEnv(os.Getenv("NEXT_PUBLIC_SUPABASE_URL"))
	}
	if cfg.Supabase.Key == "" {
		cfg.Supabase.Key = sanitizeEnv(os.Getenv("NEXT_PUBLIC_SUPABASE_ANON_KEY"))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (wc *WaitlistConfig) Validate() error {
	switch wc.Store {
	case StorePostgres:
	case StoreSQLite:
		if strings.TrimSpace(wc.SQLitePath) == "" {
			return fmt.Errorf("SQLITE_PATH is required when WAITLIST_STORE=%s", StoreSQLite)
		}
	case StoreSupabase:
		missing := []string{}
		if wc.Supabase.URL == "" {
			missing = append(missing, "SUPABASE_URL")
		}
		if wc.Supabase.Key == "" {
			missing = append(missing, "SUPABASE_KEY")
		}
		if len(missing) > 0 {
			return fmt.Errorf("missing required supabase env vars: %s", strings.Join(missing, ", "))
		}
	default:
		return fmt.Errorf("unsupported WAITLIST_STORE %q (allowed: %s, %s, %s)", wc.Store, StorePostgres, StoreSQLite, StoreSupabase)
	}

	if wc.CountCacheTTL < 0 {
		return fmt.Errorf("WAITLIST_COUNT_CACHE_TTL must not be negative")
	}
	if wc.RegisterRateLimit <= 0 {
		return fmt.Errorf("WAITLIST_REGISTER_RATE_LIMIT must be positive")
	}
	if wc.BreakerFailures <= 0 {
		return fmt.Errorf("WAITLIST_BREAKER_FAILURES must be positive")
	}

	return nil
}
