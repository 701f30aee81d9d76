package domain

import (
	"github.com/akeren/lore-anchor-waitlist/config"
	"github.com/akeren/lore-anchor-waitlist/domain/monitoring"
	"github.com/akeren/lore-anchor-waitlist/domain/waitlist"
	"github.com/akeren/lore-anchor-waitlist/pkg/circuitbreaker"
)

// WaitlistOptions maps application config onto the waitlist factory options.
func WaitlistOptions(appConfig *config.ApplicationConfig) waitlist.Options {
	cfg := appConfig.Waitlist
	if cfg == nil {
		cfg = config.DefaultWaitlistConfig()
	}

	opts := waitlist.Options{
		DB:                appConfig.DB,
		CountCacheTTL:     cfg.CountCacheTTL,
		DefaultLocale:     cfg.DefaultLocale,
		RegisterRateLimit: cfg.RegisterRateLimit,
		Breaker: &circuitbreaker.Config{
			FailureThreshold: cfg.BreakerFailures,
			RecoveryTimeout:  cfg.BreakerRecovery,
			SuccessThreshold: 1,
		},
	}

	if appConfig.Cache != nil {
		opts.Cache = appConfig.Cache
	}

	if appConfig.RouterService != nil {
		opts.MetricsRegisterer = appConfig.RouterService.MetricsRegisterer()
	}

	if cfg.Store == config.StoreSupabase {
		opts.Supabase = &waitlist.SupabaseOptions{
			URL:     cfg.Supabase.URL,
			Key:     cfg.Supabase.Key,
			Table:   cfg.Supabase.Table,
			Timeout: cfg.Supabase.Timeout,
		}
	}

	return opts
}

func SetupCoreDomain(appConfig *config.ApplicationConfig) error {
	factory := waitlist.NewWaitlistServiceFactory(appConfig.Logger, WaitlistOptions(appConfig))

	repository, err := factory.CreateRepository()
	if err != nil {
		return err
	}

	var cache monitoring.Pinger
	if appConfig.Cache != nil {
		cache = appConfig.Cache
	}

	appConfig.RouterService.MountController(
		monitoring.NewMonitoringControllerFactory(repository, cache).CreateController(),
	)

	for _, controller := range factory.CreateControllers(factory.CreateService(repository)) {
		appConfig.RouterService.MountController(controller)
	}

	return nil
}
