package timeutil

import (
	"context"
	"iter"
	"time"
)

// Sleep blocks for duration or until ctx is done.
func Sleep(ctx context.Context, duration time.Duration) error {
	if duration <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(duration)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Ticks yields the tick number and time every period until ctx is done or the
// consumer stops iterating. Ticks delivered late are coalesced.
func Ticks(ctx context.Context, period time.Duration) iter.Seq2[int, time.Time] {
	return func(yield func(int, time.Time) bool) {
		next := time.Now().Add(period)

		ticker := time.NewTicker(period)
		defer ticker.Stop()

		for n := 1; ctx.Err() == nil; {
			select {
			case <-ctx.Done():
				return
			case t := <-ticker.C:
				if t.Before(next) {
					continue
				}
				next = t.Add(period)
				if !yield(n, t) {
					return
				}
				n++
			}
		}
	}
}
