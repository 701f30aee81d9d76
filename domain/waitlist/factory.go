package waitlist

import (
	"context"
	"time"

	"github.com/akeren/lore-anchor-waitlist/config/router"
	"github.com/akeren/lore-anchor-waitlist/internal/log"
	"github.com/akeren/lore-anchor-waitlist/pkg/circuitbreaker"
	"github.com/akeren/lore-anchor-waitlist/pkg/constants"
	apperrors "github.com/akeren/lore-anchor-waitlist/pkg/errors"
	"github.com/akeren/lore-anchor-waitlist/pkg/factory"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	MountPoint = "/waitlist"
	// APIMountPoint is the path the landing page posts to.
	APIMountPoint = "/api/waitlist"

	registerRateLimitScope = "waitlist-register"
)

// Cache is satisfied by the application Redis cache.
type Cache interface {
	CountCache
	Ping(ctx context.Context) error
}

type Options struct {
	// DB backs the gorm repository. Ignored when Supabase is set.
	DB       *gorm.DB
	Supabase *SupabaseOptions

	Cache         Cache
	CountCacheTTL time.Duration

	DefaultLocale     string
	RegisterRateLimit int
	Breaker           *circuitbreaker.Config
	MetricsRegisterer prometheus.Registerer
}

type WaitlistServiceFactory interface {
	CreateRepository() (WaitlistRepository, error)
	CreateService(repository WaitlistRepository) WaitlistService
	CreateControllers(service WaitlistService) []*router.RESTController
}

type DefaultWaitlistServiceFactory struct {
	opts   Options
	logger *log.Logger
}

func NewWaitlistServiceFactory(logger *log.Logger, opts Options) WaitlistServiceFactory {
	return &DefaultWaitlistServiceFactory{
		opts:   opts,
		logger: logger,
	}
}

// NewRepository picks the Supabase repository when configured, gorm otherwise.
func NewRepository(opts Options) (WaitlistRepository, error) {
	if opts.Supabase != nil {
		return NewSupabaseRepository(*opts.Supabase)
	}
	if opts.DB == nil {
		return nil, apperrors.NewDatabaseError("no waitlist store configured", nil)
	}
	return NewWaitlistRepository(opts.DB), nil
}

func (f *DefaultWaitlistServiceFactory) CreateRepository() (WaitlistRepository, error) {
	return NewRepository(f.opts)
}

func (f *DefaultWaitlistServiceFactory) CreateService(repository WaitlistRepository) WaitlistService {
	serviceOpts := []ServiceOption{
		WithMetricsRegisterer(f.opts.MetricsRegisterer),
		WithBreakerConfig(f.opts.Breaker),
	}

	if f.opts.Cache != nil {
		serviceOpts = append(serviceOpts, WithCountCache(f.opts.Cache, f.opts.CountCacheTTL))
	}

	return NewWaitlistService(f.logger, repository, serviceOpts...)
}

// CreateControllers returns one controller per mount point, sharing the
// service and the register rate limiter.
func (f *DefaultWaitlistServiceFactory) CreateControllers(service WaitlistService) []*router.RESTController {
	localizer := NewLocalizer(f.opts.DefaultLocale)

	requests := f.opts.RegisterRateLimit
	if requests <= 0 {
		requests = constants.DefaultRegisterRateLimit
	}

	var limiterCache factory.Cache
	if f.opts.Cache != nil {
		limiterCache = f.opts.Cache
	}

	limiter := factory.NewLimiters(limiterCache, f.logger).Get(registerRateLimitScope, requests, time.Minute)

	return []*router.RESTController{
		NewWaitlistController("WaitlistController", MountPoint, service, localizer, limiter),
		NewWaitlistController("WaitlistAPIController", APIMountPoint, service, localizer, limiter),
	}
}
