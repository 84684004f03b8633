package healing

import (
	"context"
	"sync"

	"github.com/devloophq/devloop/internal/logging"
	"github.com/devloophq/devloop/internal/resilience"
	"github.com/devloophq/devloop/types"
)

// RepairFunc is the caller-supplied repair operation for one task.
type RepairFunc func(ctx context.Context) error

// Result reports the outcome of a single healing attempt.
type Result struct {
	Success      bool
	TaskID       string
	Attempt      int
	CircuitState resilience.BreakerState
	Err          error
}

// Stats aggregates healing activity across all tasks for this process.
type Stats struct {
	TotalAttempts int
	Successes     int
	Failures      int
	BreakerOpens  int
}

// Coordinator runs repair operations through the circuit breaker and
// tracks per-task attempt counters plus aggregate statistics. Breaker
// state changes are appended to the audit log best-effort.
type Coordinator struct {
	breaker *resilience.CircuitBreaker
	audit   *AuditLog
	log     logging.Logger

	mu       sync.Mutex
	attempts map[string]int
	stats    Stats
}

// NewCoordinator wires a coordinator to its breaker, audit log and logger.
func NewCoordinator(breaker *resilience.CircuitBreaker, audit *AuditLog, log logging.Logger) *Coordinator {
	if log == nil {
		log = logging.Nop()
	}
	c := &Coordinator{
		breaker:  breaker,
		audit:    audit,
		log:      log,
		attempts: make(map[string]int),
	}
	breaker.OnStateChange(func(from, to resilience.BreakerState) {
		if to == resilience.BreakerOpen {
			c.mu.Lock()
			c.stats.BreakerOpens++
			c.mu.Unlock()
		}
		if c.audit != nil {
			if err := c.audit.Record(context.Background(), "breaker.transition", map[string]string{
				"from": string(from),
				"to":   string(to),
			}); err != nil {
				c.log.Warn("healing: audit write failed: %v", err)
			}
		}
	})
	return c
}

// Heal runs repair for taskID through the breaker. When the breaker is
// open the repair is never invoked; the rejection is recorded as the
// attempt's error and the counters still advance, so a request made while
// the breaker cools off is visible in the statistics.
func (c *Coordinator) Heal(ctx context.Context, taskID string, repair RepairFunc) Result {
	c.mu.Lock()
	c.attempts[taskID]++
	attempt := c.attempts[taskID]
	c.stats.TotalAttempts++
	c.mu.Unlock()

	err := c.breaker.Execute(ctx, repair)
	state := c.breaker.State()

	c.mu.Lock()
	if err != nil {
		c.stats.Failures++
	} else {
		c.stats.Successes++
	}
	c.mu.Unlock()

	if err != nil {
		if types.IsCircuitOpen(err) {
			c.log.Warn("healing: task %s attempt %d rejected, breaker %s", taskID, attempt, state)
		} else {
			c.log.Warn("healing: task %s attempt %d failed, breaker %s: %v", taskID, attempt, state, err)
		}
		return Result{TaskID: taskID, Attempt: attempt, CircuitState: state, Err: err}
	}
	c.log.Info("healing: task %s repaired on attempt %d", taskID, attempt)
	return Result{Success: true, TaskID: taskID, Attempt: attempt, CircuitState: state}
}

// Attempts returns how many healing attempts taskID has accumulated.
func (c *Coordinator) Attempts(taskID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts[taskID]
}

// Snapshot returns a copy of the aggregate statistics.
func (c *Coordinator) Snapshot() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
