package clients

import (
	"sync"
	"time"
)

// State represents the current state of the circuit breaker.
type State int

const (
	// StateClosed lets fetches through; the upstream is presumed healthy.
	StateClosed State = iota

	// StateOpen blocks fetches so a struggling quote API is not hammered
	// while the daily fallback covers resolution.
	StateOpen

	// StateHalfOpen lets a limited number of probe fetches through to test
	// whether the upstream has recovered.
	StateHalfOpen
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures the circuit breaker behavior.
type CircuitBreakerConfig struct {
	// MaxFailures is the number of consecutive failures before the circuit opens.
	MaxFailures int

	// Timeout is how long to wait in open state before allowing probes.
	Timeout time.Duration

	// HalfOpenLimit is the number of consecutive successes in half-open state
	// required to close the circuit. It also caps concurrent probes.
	HalfOpenLimit int
}

// CircuitBreaker guards the upstream quote API. When the API fails
// repeatedly the breaker opens and fetches fail fast, which in resolution
// terms means the deterministic fallback serves the day.
//
// Transitions:
//   - Closed to Open after MaxFailures consecutive failures
//   - Open to HalfOpen once Timeout has elapsed
//   - HalfOpen to Closed after HalfOpenLimit consecutive successes
//   - HalfOpen to Open on any failure
type CircuitBreaker struct {
	mu               sync.RWMutex
	state            State
	failures         int       // consecutive failures in closed state
	successes        int       // consecutive successes in half-open state
	halfOpenRequests int       // probes currently in flight
	lastFailure      time.Time // anchors the open-state cool-down
	cfg              CircuitBreakerConfig

	// onStateChange is called when the state changes, for logging and metrics.
	onStateChange func(from, to State)

	// now returns the current time. Overridable for testing.
	now func() time.Time
}

// NewCircuitBreaker creates a new circuit breaker with the given configuration.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{
		state: StateClosed,
		cfg:   cfg,
		now:   time.Now,
	}
}

// OnStateChange sets a callback invoked whenever the circuit state changes.
func (cb *CircuitBreaker) OnStateChange(fn func(from, to State)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onStateChange = fn
}

// Allow reports whether a fetch may proceed. An open circuit whose cool-down
// has elapsed transitions to half-open here and admits the caller as the
// first probe; in half-open state at most HalfOpenLimit probes run at once.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true

	case StateOpen:
		if cb.now().Sub(cb.lastFailure) >= cb.cfg.Timeout {
			cb.transitionTo(StateHalfOpen)
			cb.halfOpenRequests = 1
			return true
		}
		return false

	case StateHalfOpen:
		if cb.halfOpenRequests >= cb.cfg.HalfOpenLimit {
			return false
		}
		cb.halfOpenRequests++
		return true

	default:
		return false
	}
}

// RecordSuccess records a successful fetch. In half-open state enough
// successes close the circuit; in closed state the failure streak resets.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.failures = 0

	case StateHalfOpen:
		cb.halfOpenRequests--
		cb.successes++
		if cb.successes >= cb.cfg.HalfOpenLimit {
			cb.transitionTo(StateClosed)
		}
	}
}

// RecordFailure records a failed fetch. In closed state the streak may open
// the circuit; in half-open state a single failure reopens it.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastFailure = cb.now()

	switch cb.state {
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.cfg.MaxFailures {
			cb.transitionTo(StateOpen)
		}

	case StateHalfOpen:
		cb.halfOpenRequests--
		cb.transitionTo(StateOpen)
	}
}

// State returns the current state of the circuit breaker.
func (cb *CircuitBreaker) State() State {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// transitionTo changes the state and resets the streak counters.
// Must be called with the lock held.
func (cb *CircuitBreaker) transitionTo(newState State) {
	if cb.state == newState {
		return
	}

	oldState := cb.state
	cb.state = newState

	cb.failures = 0
	cb.successes = 0

	if cb.onStateChange != nil {
		// The callback must not run under the lock.
		go cb.onStateChange(oldState, newState)
	}
}
