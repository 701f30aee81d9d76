package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/akeren/lore-anchor-waitlist/config"
	"github.com/akeren/lore-anchor-waitlist/domain"
	"github.com/akeren/lore-anchor-waitlist/domain/waitlist"
	"github.com/akeren/lore-anchor-waitlist/internal/log"
	"github.com/akeren/lore-anchor-waitlist/pkg/migrations"
	"github.com/akeren/lore-anchor-waitlist/pkg/utils"
)

func main() {
	logger := log.NewLoggerWithJSONOutput()

	config.InitializeEnvFile(logger) // Load envs early for CLI consistency

	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "migrate":
		op := "up"
		if len(args) > 1 {
			op = args[1]
		}
		if err := runMigrate(logger, op); err != nil {
			logger.Error("Database migration failed", "op", op, "error", err.Error())
			os.Exit(1)
		}
		return

	case "count":
		if err := runCount(logger); err != nil {
			logger.Error("Failed to count waitlist entries", "error", err.Error())
			os.Exit(1)
		}
		return

	case "help", "-h", "--help":
		printUsage()
		return

	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func runMigrate(logger *log.Logger, op string) error {
	db, err := config.NewDatabase(logger, nil)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	defer closeSQLDB(logger, sqlDB)

	cfg := migrations.Config{
		Dir:    utils.EnvOr("MIGRATIONS_DIR", "migrations"),
		Logger: logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	switch op {
	case "up":
		if err := migrations.Up(ctx, sqlDB, cfg); err != nil {
			return err
		}
		logger.Info("Database migrations completed")
	case "down":
		return migrations.Down(ctx, sqlDB, cfg)
	case "version":
		status, err := migrations.Version(ctx, sqlDB, cfg)
		if err != nil {
			return err
		}
		if !status.Applied {
			fmt.Println("no migrations applied")
			return nil
		}
		fmt.Printf("version %d (dirty=%t)\n", status.Version, status.Dirty)
	default:
		return fmt.Errorf("unknown migrate operation %q", op)
	}

	return nil
}

func runCount(logger *log.Logger) error {
	waitlistConfig, err := config.LoadWaitlistConfig()
	if err != nil {
		return err
	}

	db, err := config.OpenWaitlistStore(logger, waitlistConfig, false)
	if err != nil {
		return err
	}
	if db != nil {
		defer config.CloseDatabase(db, logger)
	}

	repository, err := waitlist.NewRepository(domain.WaitlistOptions(&config.ApplicationConfig{
		DB:       db,
		Logger:   logger,
		Waitlist: waitlistConfig,
	}))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	count, err := repository.CountEntries(ctx)
	if err != nil {
		return err
	}

	fmt.Println(count)
	return nil
}

func closeSQLDB(logger *log.Logger, sqlDB *sql.DB) {
	if err := sqlDB.Close(); err != nil {
		logger.Warn("Failed to close SQL DB after migration", "error", err.Error())
	}
}

func printUsage() {
	fmt.Println("Usage: cli <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  migrate [up|down|version]  Apply, roll back one, or report SQL migrations (Postgres)")
	fmt.Println("  count                      Print the number of waitlist registrations")
	fmt.Println("  help                       Show this message")
}
