package constants

import "time"

// Global per-IP rate limit applied by the router.
const (
	DefaultRateLimitRequests      = 100
	DefaultRateLimitWindowMinutes = 1
)

// DefaultRequestTimeout bounds every request, store calls included.
const DefaultRequestTimeout = 30 * time.Second

// DefaultRegisterRateLimit is the per-IP registrations allowed per minute.
const DefaultRegisterRateLimit = 30

// DefaultRateLimitWindow returns the default rate limit window duration
func DefaultRateLimitWindow() time.Duration {
	return time.Duration(DefaultRateLimitWindowMinutes) * time.Minute
}
