package monitoring

import (
	"context"
	"net/http"
	"time"

	"github.com/akeren/lore-anchor-waitlist/config/router"
	"github.com/akeren/lore-anchor-waitlist/pkg/ratelimit"
	"github.com/akeren/lore-anchor-waitlist/pkg/utils"
	"golang.org/x/sync/errgroup"
)

const (
	healthCheckTimeout          = 3 * time.Second
	monitoringRequestsPerMinute = 10
)

// Pinger is anything the health check can probe: the waitlist store or the cache.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthStatus reports 1 for a reachable dependency and 0 otherwise. An
// unconfigured cache reports 0.
type HealthStatus struct {
	Status   string `json:"status"`
	Database int    `json:"database"`
	Cache    int    `json:"cache"`
	Uptime   int    `json:"uptime"`
}

type MonitoringController struct {
	store     Pinger
	cache     Pinger
	startTime time.Time
}

func NewMonitoringController(store, cache Pinger) *router.RESTController {
	ctrl := &MonitoringController{
		store:     store,
		cache:     cache,
		startTime: time.Now(),
	}

	return router.NewRESTController("MonitoringController", "/", func(rs *router.RouterService, c *router.RESTController) {
		limiter := ratelimit.NewRateLimiter(&ratelimit.RateLimitConfig{
			Requests: monitoringRequestsPerMinute,
			Window:   time.Minute,
		})

		rs.AddGetHandler(c, limiter, "", ctrl.monitor)
		rs.AddGetHandler(c, limiter, "health", ctrl.healthCheck)
	})
}

func (ctrl *MonitoringController) monitor(*router.RequestContext) *router.ServiceResult {
	return router.OKResult("Waitlist service is operational.", "Monitoring successful")
}

// healthCheck answers 503 when the store is unreachable. The cache is optional
// and never fails the check.
func (ctrl *MonitoringController) healthCheck(c *router.RequestContext) *router.ServiceResult {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthCheckTimeout)
	defer cancel()

	status := ctrl.probe(ctx)

	logger := router.GetLogger(c)
	message := utils.OTelServiceName() + " health check completed"
	if status.Database == 0 {
		logger.Error("Health check failed: waitlist store unreachable")
		return router.ErrorResult(http.StatusServiceUnavailable, message, status)
	}

	logger.Debug("Health check passed", "cache", status.Cache)
	return router.OKResult(status, message)
}

func (ctrl *MonitoringController) probe(ctx context.Context) HealthStatus {
	status := HealthStatus{Uptime: int(time.Since(ctrl.startTime).Seconds())}

	var g errgroup.Group
	g.Go(func() error {
		status.Database = ping(ctx, ctrl.store)
		return nil
	})
	g.Go(func() error {
		status.Cache = ping(ctx, ctrl.cache)
		return nil
	})
	_ = g.Wait()

	status.Status = "ok"
	if status.Database == 0 {
		status.Status = "unavailable"
	}
	return status
}

func ping(ctx context.Context, p Pinger) int {
	if p == nil || p.Ping(ctx) != nil {
		return 0
	}
	return 1
}
