// Package circuitbreaker stops calling a failing dependency for a cool-down
// period and probes it again before closing.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"
)

type CircuitState int

const (
	Closed CircuitState = iota
	Open
	HalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

var ErrCircuitOpen = errors.New("circuit breaker is open")

type CircuitBreaker interface {
	Call(func() error) error
	State() CircuitState
	Snapshot() Snapshot
	Reset()
}

type Config struct {
	// Name identifies the breaker in OnStateChange.
	Name string

	FailureThreshold int           // consecutive failures that open the circuit
	RecoveryTimeout  time.Duration // time spent open before a probe is allowed
	SuccessThreshold int           // probe successes needed to close again

	// IsFailure decides which errors count against the dependency. By default
	// every error except context cancellation does.
	IsFailure func(error) bool

	// OnStateChange runs after each transition, outside the breaker's lock.
	OnStateChange func(name string, from, to CircuitState)
}

func DefaultConfig() *Config {
	return &Config{
		FailureThreshold: 5,
		RecoveryTimeout:  60 * time.Second,
		SuccessThreshold: 3,
	}
}

func defaultIsFailure(err error) bool {
	return !errors.Is(err, context.Canceled)
}

// Snapshot is a point-in-time copy of the breaker's counters.
type Snapshot struct {
	State       CircuitState
	Failures    int
	Successes   int
	LastFailure time.Time
	NextAttempt time.Time
}

type transition struct{ from, to CircuitState }

type circuitBreaker struct {
	config *Config
	now    func() time.Time

	mu          sync.Mutex
	state       CircuitState
	failures    int
	successes   int
	lastFailure time.Time
	nextAttempt time.Time
}

// NewCircuitBreaker fills unset fields of config from DefaultConfig.
func NewCircuitBreaker(config *Config) CircuitBreaker {
	return newCircuitBreaker(config, time.Now)
}

func newCircuitBreaker(config *Config, now func() time.Time) *circuitBreaker {
	cfg := DefaultConfig()
	if config != nil {
		merged := *config
		if merged.FailureThreshold <= 0 {
			merged.FailureThreshold = cfg.FailureThreshold
		}
		if merged.RecoveryTimeout <= 0 {
			merged.RecoveryTimeout = cfg.RecoveryTimeout
		}
		if merged.SuccessThreshold <= 0 {
			merged.SuccessThreshold = cfg.SuccessThreshold
		}
		cfg = &merged
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = defaultIsFailure
	}

	return &circuitBreaker{config: cfg, now: now, state: Closed}
}

func (cb *circuitBreaker) Call(fn func() error) error {
	cb.mu.Lock()
	allowed, moved := cb.admit()
	cb.mu.Unlock()
	cb.notify(moved)

	if !allowed {
		return ErrCircuitOpen
	}

	// fn runs unlocked so a slow dependency does not serialize callers.
	err := fn()

	cb.mu.Lock()
	switch {
	case err == nil:
		moved = cb.recordSuccess()
	case cb.config.IsFailure(err):
		moved = cb.recordFailure()
	default:
		moved = nil
	}
	cb.mu.Unlock()
	cb.notify(moved)

	return err
}

// admit moves Open to HalfOpen once the recovery timeout has passed.
func (cb *circuitBreaker) admit() (bool, *transition) {
	if cb.state == Open && !cb.now().Before(cb.nextAttempt) {
		cb.successes = 0
		return true, cb.moveTo(HalfOpen)
	}
	return cb.state != Open, nil
}

func (cb *circuitBreaker) recordFailure() *transition {
	cb.failures++
	cb.lastFailure = cb.now()

	if cb.state == HalfOpen || (cb.state == Closed && cb.failures >= cb.config.FailureThreshold) {
		cb.nextAttempt = cb.lastFailure.Add(cb.config.RecoveryTimeout)
		return cb.moveTo(Open)
	}
	return nil
}

func (cb *circuitBreaker) recordSuccess() *transition {
	cb.failures = 0
	if cb.state != HalfOpen {
		return nil
	}

	cb.successes++
	if cb.successes < cb.config.SuccessThreshold {
		return nil
	}
	cb.successes = 0
	return cb.moveTo(Closed)
}

func (cb *circuitBreaker) moveTo(to CircuitState) *transition {
	if cb.state == to {
		return nil
	}
	t := &transition{from: cb.state, to: to}
	cb.state = to
	return t
}

func (cb *circuitBreaker) notify(t *transition) {
	if t != nil && cb.config.OnStateChange != nil {
		cb.config.OnStateChange(cb.config.Name, t.from, t.to)
	}
}

func (cb *circuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

func (cb *circuitBreaker) Snapshot() Snapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return Snapshot{
		State:       cb.state,
		Failures:    cb.failures,
		Successes:   cb.successes,
		LastFailure: cb.lastFailure,
		NextAttempt: cb.nextAttempt,
	}
}

func (cb *circuitBreaker) Reset() {
	cb.mu.Lock()
	moved := cb.moveTo(Closed)
	cb.failures = 0
	cb.successes = 0
	cb.mu.Unlock()
	cb.notify(moved)
}
