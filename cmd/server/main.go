package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/akeren/lore-anchor-waitlist/config"
	"github.com/akeren/lore-anchor-waitlist/domain"
	"github.com/akeren/lore-anchor-waitlist/internal/log"
)

const shutdownGrace = 30 * time.Second

func main() {
	var autoMigrate bool
	flag.BoolVar(&autoMigrate, "auto-migrate", false, "create or update the waitlist table on startup (development only)")
	flag.BoolVar(&autoMigrate, "m", false, "shorthand for -auto-migrate")
	flag.Parse()

	logger := log.NewLoggerWithJSONOutput()
	if err := run(logger, autoMigrate); err != nil {
		logger.Error("Waitlist server stopped", "error", err)
		os.Exit(1)
	}
}

func run(logger *log.Logger, autoMigrate bool) error {
	appConfig, err := config.LoadApplicationConfiguration(logger, autoMigrate)
	if err != nil {
		return err
	}
	defer appConfig.Cleanup()

	if err := domain.SetupCoreDomain(appConfig); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Waitlist server listening", "port", appConfig.RouterService.Policy().Port, "store", appConfig.Waitlist.Store)
		serverErr <- appConfig.RouterService.RunHTTPServer()
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutdown signal received, draining requests", "grace", shutdownGrace)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	if err := appConfig.RouterService.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info("Waitlist server shut down gracefully")
	return nil
}
