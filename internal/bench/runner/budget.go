package runner

import (
	"sync/atomic"
	"time"
)

// budget hands out mix runs to concurrent workers until the run count or
// the deadline is exhausted.
type budget struct {
	limited   bool
	remaining atomic.Int64
	deadline  time.Time
}

// newBudget creates a budget of runs mix runs (<= 0: unlimited) ending
// after maxRuntime (<= 0: no deadline).
func newBudget(runs int, maxRuntime time.Duration) *budget {
	b := &budget{limited: runs > 0}
	b.remaining.Store(int64(runs))
	if maxRuntime > 0 {
		b.deadline = time.Now().Add(maxRuntime)
	}
	return b
}

func (b *budget) claim() bool {
	if !b.deadline.IsZero() && !time.Now().Before(b.deadline) {
		return false
	}
	if !b.limited {
		return true
	}
	return b.remaining.Add(-1) >= 0
}
