package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/akeren/lore-anchor-waitlist/internal/log"
	"github.com/akeren/lore-anchor-waitlist/pkg/retry"
	"github.com/caarlos0/env/v11"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// PostgresConfig is read from the environment. APP_DATABASE_URL wins over the
// discrete POSTGRES_* settings.
type PostgresConfig struct {
	URL      string `env:"APP_DATABASE_URL"`
	Host     string `env:"POSTGRES_HOST"`
	Port     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	User     string `env:"POSTGRES_USER"`
	Password string `env:"POSTGRES_PASSWORD"`
	Name     string `env:"POSTGRES_DB_NAME"`
	SSLMode  string `env:"POSTGRES_SSLMODE" envDefault:"require"`

	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"10"`
	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS" envDefault:"25"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"5m"`

	// ConnectAttempts bounds the startup connect loop.
	ConnectAttempts int `env:"DB_CONNECT_ATTEMPTS" envDefault:"5"`
}

func LoadPostgresConfig() (*PostgresConfig, error) {
	cfg := &PostgresConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	for _, field := range []*string{&cfg.URL, &cfg.Host, &cfg.User, &cfg.Password, &cfg.Name, &cfg.SSLMode} {
		*field = sanitizeEnv(*field)
	}
	if cfg.ConnectAttempts <= 0 {
		cfg.ConnectAttempts = 1
	}
	return cfg, nil
}

// DSN returns the connection string, or an error naming every missing setting.
func (pc *PostgresConfig) DSN() (string, error) {
	if pc.URL != "" {
		return pc.URL, nil
	}

	var missing []string
	if pc.Host == "" {
		missing = append(missing, "POSTGRES_HOST")
	}
	if pc.User == "" {
		missing = append(missing, "POSTGRES_USER")
	}
	if pc.Name == "" {
		missing = append(missing, "POSTGRES_DB_NAME")
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("missing required database env vars: %s", strings.Join(missing, ", "))
	}

	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		pc.Host, pc.Port, pc.User, pc.Password, pc.Name, pc.SSLMode), nil
}

// connectDeadline caps the whole startup connect loop.
const connectDeadline = 2 * time.Minute

// gormConfig makes dialect errors comparable with gorm.ErrDuplicatedKey.
func gormConfig() *gorm.Config {
	return &gorm.Config{TranslateError: true}
}

// NewDatabase connects to Postgres, retrying transient failures with
// exponential backoff. A nil cfg is loaded from the environment.
func NewDatabase(logger *log.Logger, cfg *PostgresConfig) (*gorm.DB, error) {
	if cfg == nil {
		loaded, err := LoadPostgresConfig()
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	dsn, err := cfg.DSN()
	if err != nil {
		logger.Error("Invalid database configuration", "error", err)
		return nil, err
	}

	if cfg.URL != "" {
		logger.Info("Connecting to database using APP_DATABASE_URL")
	} else {
		logger.Info("Connecting to database", "host", cfg.Host, "port", cfg.Port, "user", cfg.User, "dbname", cfg.Name, "sslmode", cfg.SSLMode)
	}

	var gdb *gorm.DB
	backoff := retry.NewExponentialBackoff(&retry.Config{
		MaxAttempts: cfg.ConnectAttempts,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    10 * time.Second,
		Multiplier:  2.0,
		Jitter:      0.2,
		OnRetry: func(attempt int, delay time.Duration, err error) {
			logger.Warn("Database connection attempt failed", "attempt", attempt, "retry_in", delay, "error", err)
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), connectDeadline)
	defer cancel()

	err = backoff.Execute(ctx, func(ctx context.Context) error {
		conn, connErr := openPostgres(ctx, dsn, cfg)
		if connErr != nil {
			return connErr
		}
		gdb = conn
		return nil
	})
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	logger.Info("Database connection established successfully")
	return gdb, nil
}

func openPostgres(ctx context.Context, dsn string, cfg *PostgresConfig) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), gormConfig())
	if err != nil {
		return nil, err
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	return gdb, nil
}

// NewSQLiteDatabase opens a single-writer SQLite store for local runs.
func NewSQLiteDatabase(logger *log.Logger, path string) (*gorm.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}

	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_busy_timeout=5000"
	}

	gdb, err := gorm.Open(sqlite.Open(dsn), gormConfig())
	if err != nil {
		logger.Error("Failed to open SQLite database", "path", path, "error", err)
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	logger.Info("SQLite database opened", "path", path)
	return gdb, nil
}

// sanitizeEnv strips whitespace and one layer of matching quotes, which
// docker --env-file and some dashboards leave in place.
func sanitizeEnv(v string) string {
	s := strings.TrimSpace(v)

	if len(s) >= 2 && ((s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'')) {
		s = s[1 : len(s)-1]
	}

	return s
}

func AutoMigrate(logger *log.Logger, db *gorm.DB, models ...any) error {
	if db == nil {
		logger.Error("Cannot migrate: db is empty")
		return fmt.Errorf("cannot migrate: db is empty")
	}

	if err := db.AutoMigrate(models...); err != nil {
		logger.Error("Database migration failed", "error", err)
		return fmt.Errorf("auto-migrate failed: %w", err)
	}

	logger.Info("Database migration completed successfully")

	return nil
}

func CloseDatabase(db *gorm.DB, logger *log.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		logger.Error("Failed to get SQL DB instance", "error", err)
		return
	}

	if err := sqlDB.Close(); err != nil {
		logger.Error("Failed to close database", "error", err)
	} else {
		logger.Info("Database closed successfully")
	}
}
