package waitlist

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeRegistered = "registered"
	outcomeInvalid    = "invalid"
	outcomeDuplicate  = "duplicate"
	outcomeFailed     = "failed"

	countSourceStore       = "store"
	countSourceCache       = "cache"
	countSourceUnavailable = "unavailable"
)

type serviceMetrics struct {
	registrations *prometheus.CounterVec
	countReads    *prometheus.CounterVec
	breakerMoves  *prometheus.CounterVec
}

// newServiceMetrics registers on reg when it is non-nil. Collectors already
// registered by another service instance are reused.
func newServiceMetrics(reg prometheus.Registerer) *serviceMetrics {
	m := &serviceMetrics{
		registrations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "waitlist_registrations_total",
				Help: "Waitlist registration attempts by outcome.",
			},
			[]string{"outcome"},
		),
		countReads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "waitlist_count_reads_total",
				Help: "Waitlist count reads by source.",
			},
			[]string{"source"},
		),
		breakerMoves: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "waitlist_store_breaker_transitions_total",
				Help: "Store circuit breaker transitions by target state.",
			},
			[]string{"to"},
		),
	}

	if reg == nil {
		return m
	}

	m.registrations = registerOrReuse(reg, m.registrations)
	m.countReads = registerOrReuse(reg, m.countReads)
	m.breakerMoves = registerOrReuse(reg, m.breakerMoves)
	return m
}

func registerOrReuse(reg prometheus.Registerer, c *prometheus.CounterVec) *prometheus.CounterVec {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
	}
	return c
}

func (m *serviceMetrics) registration(outcome string) {
	m.registrations.WithLabelValues(outcome).Inc()
}

func (m *serviceMetrics) countRead(source string) {
	m.countReads.WithLabelValues(source).Inc()
}

func (m *serviceMetrics) breakerMoved(to string) {
	m.breakerMoves.WithLabelValues(to).Inc()
}
