package resilience

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/devloophq/devloop/types"
)

// BreakerState labels the circuit breaker's current mode.
type BreakerState string

const (
	// BreakerClosed passes calls through while counting failures.
	BreakerClosed BreakerState = "closed"
	// BreakerOpen rejects calls without executing them until the timeout elapses.
	BreakerOpen BreakerState = "open"
	// BreakerHalfOpen allows exactly one trial call to test recovery.
	BreakerHalfOpen BreakerState = "half_open"
)

const (
	// DefaultFailureThreshold is how many consecutive failures open the breaker.
	DefaultFailureThreshold = 5
	// DefaultOpenTimeout is how long the breaker stays open before a trial.
	DefaultOpenTimeout = 60 * time.Second
)

// CircuitBreaker isolates a repeatedly-failing operation so a non-transient
// fault turns into a fail-fast signal instead of an unbounded retry storm.
// State lives in memory only; a process restart resumes closed.
type CircuitBreaker struct {
	mu            sync.Mutex
	threshold     int
	timeout       time.Duration
	state         BreakerState
	failures      int
	openedAt      time.Time
	trialInFlight bool
	now           func() time.Time
	onStateChange func(from, to BreakerState)
	// pending holds transitions recorded under the lock; they are
	// delivered to the observer only after the lock is released, so a
	// slow observer (the audit append) never blocks concurrent calls.
	pending []stateChange
}

type stateChange struct {
	from, to BreakerState
}

// NewCircuitBreaker creates a closed breaker. Non-positive threshold or
// timeout fall back to the defaults.
func NewCircuitBreaker(threshold int, timeout time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = DefaultFailureThreshold
	}
	if timeout <= 0 {
		timeout = DefaultOpenTimeout
	}
	return &CircuitBreaker{
		threshold: threshold,
		timeout:   timeout,
		state:     BreakerClosed,
		now:       time.Now,
	}
}

// WithClock overrides the breaker's notion of now. Test hook.
func (b *CircuitBreaker) WithClock(now func() time.Time) *CircuitBreaker {
	b.now = now
	return b
}

// OnStateChange registers an observer invoked after every state change.
// The observer runs outside the breaker's lock and may call back into it.
func (b *CircuitBreaker) OnStateChange(fn func(from, to BreakerState)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onStateChange = fn
}

// State returns the breaker's current mode.
func (b *CircuitBreaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Failures returns the consecutive-failure count while closed.
func (b *CircuitBreaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

func (b *CircuitBreaker) setState(to BreakerState) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	b.pending = append(b.pending, stateChange{from, to})
}

// drain takes the recorded transitions and the observer; the caller must
// hold the lock and notify after releasing it.
func (b *CircuitBreaker) drain() ([]stateChange, func(from, to BreakerState)) {
	changes := b.pending
	b.pending = nil
	return changes, b.onStateChange
}

func notify(observer func(from, to BreakerState), changes []stateChange) {
	if observer == nil {
		return
	}
	for _, c := range changes {
		observer(c.from, c.to)
	}
}

// Execute runs op under the breaker's state machine. While open and before
// the timeout elapses it rejects with a CIRCUIT_OPEN error without invoking
// op. The first call after the timeout becomes the half-open trial.
func (b *CircuitBreaker) Execute(ctx context.Context, op func(ctx context.Context) error) error {
	b.mu.Lock()
	switch b.state {
	case BreakerOpen:
		if b.now().Sub(b.openedAt) < b.timeout {
			remaining := b.timeout - b.now().Sub(b.openedAt)
			b.mu.Unlock()
			return types.NewWorkflowError(types.CodeCircuitOpen,
				fmt.Sprintf("circuit breaker is open; retry in %s", remaining.Round(time.Millisecond)),
				map[string]interface{}{"retryAfter": remaining.String()})
		}
		b.setState(BreakerHalfOpen)
		b.trialInFlight = true
	case BreakerHalfOpen:
		if b.trialInFlight {
			b.mu.Unlock()
			return types.NewWorkflowError(types.CodeCircuitOpen,
				"circuit breaker is half-open with a trial call in flight", nil)
		}
		b.trialInFlight = true
	}
	trial := b.state == BreakerHalfOpen
	changes, observer := b.drain()
	b.mu.Unlock()
	notify(observer, changes)

	err := op(ctx)

	b.mu.Lock()
	if trial {
		b.trialInFlight = false
		if err != nil {
			b.openedAt = b.now()
			b.setState(BreakerOpen)
		} else {
			b.failures = 0
			b.setState(BreakerClosed)
		}
	} else if err != nil {
		b.failures++
		if b.failures >= b.threshold {
			b.openedAt = b.now()
			b.setState(BreakerOpen)
		}
	} else {
		b.failures = 0
	}
	changes, observer = b.drain()
	b.mu.Unlock()
	notify(observer, changes)
	return err
}
