package clients

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// trippedBreaker returns a breaker in open state with a controllable clock.
func trippedBreaker(t *testing.T, cfg CircuitBreakerConfig) (*CircuitBreaker, *time.Time) {
	t.Helper()

	now := time.Now()
	cb := NewCircuitBreaker(cfg)
	cb.now = func() time.Time { return now }

	for range cfg.MaxFailures {
		cb.RecordFailure()
	}
	require.Equal(t, StateOpen, cb.State())

	return cb, &now
}

func TestCircuitBreaker_StartsClosed(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		MaxFailures:   5,
		Timeout:       30 * time.Second,
		HalfOpenLimit: 3,
	})

	assert.Equal(t, StateClosed, cb.State())
	assert.True(t, cb.Allow(), "closed circuit lets upstream fetches through")
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		MaxFailures:   3,
		Timeout:       30 * time.Second,
		HalfOpenLimit: 2,
	})

	cb.RecordFailure()
	cb.RecordFailure()
	assert.Equal(t, StateClosed, cb.State(), "below the threshold the circuit stays closed")

	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())
	assert.False(t, cb.Allow(), "open circuit blocks the fetch before it leaves the service")
}

func TestCircuitBreaker_SuccessResetsFailureStreak(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		MaxFailures:   3,
		Timeout:       30 * time.Second,
		HalfOpenLimit: 2,
	})

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()

	// The streak restarts: two more failures are not enough.
	cb.RecordFailure()
	cb.RecordFailure()
	assert.Equal(t, StateClosed, cb.State())

	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State())
}

func TestCircuitBreaker_ProbesAfterTimeout(t *testing.T) {
	cb, now := trippedBreaker(t, CircuitBreakerConfig{
		MaxFailures:   1,
		Timeout:       100 * time.Millisecond,
		HalfOpenLimit: 2,
	})

	assert.False(t, cb.Allow(), "still within the cool-down window")

	*now = now.Add(150 * time.Millisecond)

	assert.True(t, cb.Allow(), "first probe after the timeout goes through")
	assert.Equal(t, StateHalfOpen, cb.State())
}

func TestCircuitBreaker_HalfOpenLimitsProbes(t *testing.T) {
	cb, now := trippedBreaker(t, CircuitBreakerConfig{
		MaxFailures:   1,
		Timeout:       100 * time.Millisecond,
		HalfOpenLimit: 2,
	})

	*now = now.Add(150 * time.Millisecond)

	assert.True(t, cb.Allow())
	assert.True(t, cb.Allow())
	assert.False(t, cb.Allow(), "probe quota exhausted until a probe settles")
}

func TestCircuitBreaker_ClosesAfterSuccessfulProbes(t *testing.T) {
	cb, now := trippedBreaker(t, CircuitBreakerConfig{
		MaxFailures:   1,
		Timeout:       100 * time.Millisecond,
		HalfOpenLimit: 2,
	})

	*now = now.Add(150 * time.Millisecond)
	cb.Allow()
	require.Equal(t, StateHalfOpen, cb.State())

	cb.RecordSuccess()
	assert.Equal(t, StateHalfOpen, cb.State(), "one success is not yet proof of recovery")

	cb.RecordSuccess()
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_ProbeFailureReopens(t *testing.T) {
	cb, now := trippedBreaker(t, CircuitBreakerConfig{
		MaxFailures:   1,
		Timeout:       100 * time.Millisecond,
		HalfOpenLimit: 2,
	})

	*now = now.Add(150 * time.Millisecond)
	cb.Allow()
	require.Equal(t, StateHalfOpen, cb.State())

	cb.RecordFailure()
	assert.Equal(t, StateOpen, cb.State(), "a failed probe immediately reopens")
}

func TestCircuitBreaker_NotifiesStateChanges(t *testing.T) {
	type transition struct{ from, to State }

	var mu sync.Mutex
	var seen []transition

	cb := NewCircuitBreaker(CircuitBreakerConfig{
		MaxFailures:   1,
		Timeout:       10 * time.Millisecond,
		HalfOpenLimit: 1,
	})
	cb.OnStateChange(func(from, to State) {
		mu.Lock()
		seen = append(seen, transition{from, to})
		mu.Unlock()
	})

	cb.RecordFailure()

	// The callback runs on its own goroutine.
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return len(seen) == 1
	}, time.Second, 5*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, transition{StateClosed, StateOpen}, seen[0])
}

func TestCircuitBreaker_ConcurrentUse(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		MaxFailures:   100,
		Timeout:       time.Second,
		HalfOpenLimit: 10,
	})

	var wg sync.WaitGroup
	var allows atomic.Int64

	for range 1000 {
		wg.Go(func() {
			if cb.Allow() {
				if allows.Add(1)%2 == 0 {
					cb.RecordSuccess()
				} else {
					cb.RecordFailure()
				}
			}
		})
	}
	wg.Wait()

	// No deadlock, and the state settles on something coherent.
	assert.Contains(t, []State{StateClosed, StateOpen, StateHalfOpen}, cb.State())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "half-open", StateHalfOpen.String())
	assert.Equal(t, "unknown", State(99).String())
}
