package prop

import (
	"context"
	"math/rand/v2"
	"time"
)

// Source is the subset of *rand.Rand used by the value generators. A nil
// Source falls back to the global generator.
type Source interface {
	IntN(n int) int
	Float64() float64
}

type globalSource struct{}

func (globalSource) IntN(n int) int   { return rand.IntN(n) }
func (globalSource) Float64() float64 { return rand.Float64() }

func sourceOr(r Source) Source {
	if r == nil {
		return globalSource{}
	}
	return r
}

type UniformValue[T any] struct {
	slice []T
}

func Uniform[T any](slice []T) UniformValue[T] {
	return UniformValue[T]{slice: slice}
}

func (u UniformValue[T]) Rand(r Source) T { return u.slice[sourceOr(r).IntN(len(u.slice))] }

// Draw returns n values picked independently and uniformly, repeats possible.
func (u UniformValue[T]) Draw(r Source, n int) []T {
	out := make([]T, n)
	for i := range out {
		out[i] = u.Rand(r)
	}
	return out
}

// Permutation returns a uniformly random permutation of values. The input is
// not modified.
func Permutation[T any](r Source, values []T) []T {
	return SampleDistinct(r, values, len(values))
}

// SampleDistinct picks n distinct positions of values in random order by
// repeatedly taking a uniformly random remaining element. n is capped at
// len(values).
func SampleDistinct[T any](r Source, values []T, n int) []T {
	r = sourceOr(r)
	if n > len(values) {
		n = len(values)
	}
	if n <= 0 {
		return []T{}
	}

	remaining := make([]T, len(values))
	copy(remaining, values)
	out := make([]T, 0, n)
	for len(out) < n {
		idx := r.IntN(len(remaining))
		out = append(out, remaining[idx])
		last := len(remaining) - 1
		remaining[idx] = remaining[last]
		remaining = remaining[:last]
	}
	return out
}

type UniformJitterDurationValue struct {
	avg    time.Duration
	jitter time.Duration
}

func UniformJitterDuration(avg, jitter time.Duration) UniformJitterDurationValue {
	return UniformJitterDurationValue{avg: avg, jitter: jitter}
}

func (j UniformJitterDurationValue) Next() time.Duration { return j.GetWithProp(rand.Float64()) }

func (j UniformJitterDurationValue) GetWithProp(p float64) time.Duration {
	v := j.avg + time.Duration(p*float64(j.jitter))
	if v < 0 {
		return 0
	}
	return v
}

func (j UniformJitterDurationValue) Wait(ctx context.Context) error {
	timer := time.NewTimer(j.Next())
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
