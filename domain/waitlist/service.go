package waitlist

import (
	"context"
	"time"

	"github.com/akeren/lore-anchor-waitlist/internal/log"
	"github.com/akeren/lore-anchor-waitlist/pkg/circuitbreaker"
	apperrors "github.com/akeren/lore-anchor-waitlist/pkg/errors"
	"github.com/akeren/lore-anchor-waitlist/pkg/tracing"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
)

type WaitlistService interface {
	// GetCount returns the number of registrations. Available is false when
	// the store could not be read; Count is then 0.
	GetCount(ctx context.Context) CountResult

	// Register validates the email, stores the entry and returns the
	// post-insert total as the position.
	Register(ctx context.Context, req *RegisterRequest) (*RegisterResponse, error)
}

const storeBreakerName = "waitlist-store"

type ServiceOption func(*waitlistService)

// WithCountCache caches count reads for ttl. A nil cache or non-positive ttl
// disables caching.
func WithCountCache(cache CountCache, ttl time.Duration) ServiceOption {
	return func(s *waitlistService) {
		s.countCache = newCountCache(cache, ttl)
	}
}

// WithBreakerConfig builds the store breaker from cfg. Transitions are logged
// and counted in addition to any OnStateChange already set.
func WithBreakerConfig(cfg *circuitbreaker.Config) ServiceOption {
	return func(s *waitlistService) {
		s.breakerConfig = cfg
	}
}

// WithCircuitBreaker replaces the store breaker outright.
func WithCircuitBreaker(cb circuitbreaker.CircuitBreaker) ServiceOption {
	return func(s *waitlistService) {
		if cb != nil {
			s.breaker = cb
		}
	}
}

func WithMetricsRegisterer(reg prometheus.Registerer) ServiceOption {
	return func(s *waitlistService) {
		s.metrics = newServiceMetrics(reg)
	}
}

type waitlistService struct {
	logger     *log.Logger
	repository WaitlistRepository
	breaker    circuitbreaker.CircuitBreaker
	countCache *countCache

	breakerConfig *circuitbreaker.Config
	metrics       *serviceMetrics
}

func NewWaitlistService(logger *log.Logger, repository WaitlistRepository, opts ...ServiceOption) WaitlistService {
	s := &waitlistService{
		logger:     logger,
		repository: repository,
		metrics:    newServiceMetrics(nil),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.breaker == nil {
		s.breaker = circuitbreaker.NewCircuitBreaker(s.storeBreakerConfig())
	}

	return s
}

func (s *waitlistService) storeBreakerConfig() *circuitbreaker.Config {
	cfg := circuitbreaker.DefaultConfig()
	if s.breakerConfig != nil {
		copied := *s.breakerConfig
		cfg = &copied
	}
	if cfg.Name == "" {
		cfg.Name = storeBreakerName
	}

	next := cfg.OnStateChange
	cfg.OnStateChange = func(name string, from, to circuitbreaker.CircuitState) {
		s.logger.Warn("Waitlist store circuit breaker changed state", "breaker", name, "from", from.String(), "to", to.String())
		s.metrics.breakerMoved(to.String())
		if next != nil {
			next(name, from, to)
		}
	}
	return cfg
}

func (s *waitlistService) GetCount(ctx context.Context) CountResult {
	ctx, span := tracing.Start(ctx, "waitlist.GetCount")
	defer span.End()

	logger := log.GetLoggerInstanceFromContext(ctx, s.logger)

	fillCache := false
	var gen int64
	if s.countCache != nil {
		count, hit, cacheGen, err := s.countCache.get(ctx)
		if err != nil {
			logger.Warn("Waitlist count cache read failed", "error", err)
		}
		fillCache, gen = err == nil, cacheGen
		if hit {
			s.metrics.countRead(countSourceCache)
			span.SetAttributes(attribute.Bool("waitlist.count_cached", true))
			return CountResult{Count: count, Available: true}
		}
	}

	var count int64
	err := s.breaker.Call(func() error {
		n, err := s.repository.CountEntries(ctx)
		if err != nil {
			return err
		}
		count = n
		return nil
	})
	if err != nil {
		logger.Error("Failed to count waitlist entries", "error", err)
		tracing.RecordError(span, err)
		s.metrics.countRead(countSourceUnavailable)
		return CountResult{Count: 0, Available: false}
	}

	s.metrics.countRead(countSourceStore)

	if fillCache {
		if err := s.countCache.set(ctx, gen, count); err != nil {
			logger.Warn("Waitlist count cache write failed", "error", err)
		}
	}

	return CountResult{Count: count, Available: true}
}

func (s *waitlistService) Register(ctx context.Context, req *RegisterRequest) (*RegisterResponse, error) {
	ctx, span := tracing.Start(ctx, "waitlist.Register")
	defer span.End()

	logger := log.GetLoggerInstanceFromContext(ctx, s.logger)

	if req == nil {
		logger.Error("Register received empty request")
		s.metrics.registration(outcomeInvalid)
		return nil, apperrors.NewInvalidRequestError(MsgInvalidEmail, nil)
	}

	span.SetAttributes(attribute.Bool("waitlist.ref_present", req.Ref != nil))

	if err := validateRegisterRequest(req); err != nil {
		logger.Info("Register rejected invalid email", "email", log.MaskEmail(req.Email),
			"fields", apperrors.FormatValidationErrors(err, req))
		s.metrics.registration(outcomeInvalid)
		return nil, apperrors.NewInvalidRequestError(MsgInvalidEmail, err)
	}

	if err := s.repository.CreateEntry(ctx, ToWaitlistEntryModel(req)); err != nil {
		tracing.RecordError(span, err)

		if apperrors.GetErrorType(err) == apperrors.ErrorTypeConflict {
			logger.Info("Email already on waitlist", "email", log.MaskEmail(req.Email))
			s.metrics.registration(outcomeDuplicate)
			return nil, err
		}

		logger.Error("Failed to create waitlist entry", "email", log.MaskEmail(req.Email), "error", err)
		s.metrics.registration(outcomeFailed)
		if apperrors.GetErrorType(err) == apperrors.ErrorTypeUnknown {
			return nil, apperrors.NewDatabaseError(MsgRegistrationFailed, err)
		}
		return nil, err
	}

	s.metrics.registration(outcomeRegistered)

	if s.countCache != nil {
		if err := s.countCache.invalidate(ctx); err != nil {
			logger.Warn("Waitlist count cache invalidation failed", "error", err)
		}
	}

	// The position read bypasses the cache and the breaker; a failure here
	// does not undo the registration.
	position, err := s.repository.CountEntries(ctx)
	if err != nil {
		logger.Warn("Registered but failed to read position", "error", err)
		position = 0
	}

	logger.Info("Waitlist registration stored", "email", log.MaskEmail(req.Email), "position", position)

	return &RegisterResponse{Success: true, Position: position}, nil
}
