package bench

import (
	"errors"
	"math"
	"slices"
	"sync"
	"time"

	"sparqlbench/pkg/stats"
)

var ErrTooManyOutliers = errors.New("too many outliers for the number of samples")

// Stats accumulates samples of operation or mix runs. All methods are safe
// for concurrent use.
//
// Raw samples are kept until Clear so that Trim can always be recomputed
// from the full history. Error counts are taken from the raw history and
// are not affected by trimming.
type Stats[S Sample] struct {
	mu sync.Mutex

	raw      []S
	retained []S
	trimmed  int

	errors      int64
	categorized map[ErrorCategory][]S

	agg aggregate[S]
}

type aggregate[S Sample] struct {
	count        int64
	runtime      time.Duration
	responseTime time.Duration
	results      int64

	// Welford running mean and sum of squared deviations, in nanoseconds.
	mean float64
	m2   float64

	logSum   stats.KahanSum
	logCount int64

	min, max  S
	hasMinMax bool

	first time.Time
	last  time.Time
}

func (a *aggregate[S]) add(s S) {
	rt := s.Runtime()

	a.count++
	a.runtime += rt
	a.responseTime += s.ResponseTime()
	a.results += s.ResultCount()

	x := float64(rt)
	delta := x - a.mean
	a.mean += delta / float64(a.count)
	a.m2 += delta * (x - a.mean)

	if s.Successful() && rt > 0 {
		a.logSum.Add(math.Log(x))
		a.logCount++
	}

	if !a.hasMinMax || rt < a.min.Runtime() {
		a.min = s
	}
	if !a.hasMinMax || rt > a.max.Runtime() {
		a.max = s
	}
	a.hasMinMax = true

	if started := s.Started(); !started.IsZero() {
		if a.first.IsZero() || started.Before(a.first) {
			a.first = started
		}
		if end := started.Add(rt); end.After(a.last) {
			a.last = end
		}
	}
}

func NewStats[S Sample]() *Stats[S] {
	return &Stats[S]{categorized: map[ErrorCategory][]S{}}
}

func (st *Stats[S]) Add(s S) {
	st.mu.Lock()
	defer st.mu.Unlock()

	if st.categorized == nil {
		st.categorized = map[ErrorCategory][]S{}
	}

	st.raw = append(st.raw, s)
	if st.trimmed > 0 {
		st.retained = append(st.retained, s)
	}
	st.agg.add(s)

	if !s.Successful() {
		st.errors++
		cat := s.Category()
		st.categorized[cat] = append(st.categorized[cat], s)
	}
}

// Trim excludes the k fastest and k slowest raw samples from all derived
// statistics. Ties are broken by insertion order. If 2k is not smaller than
// the number of samples nothing is excluded and ErrTooManyOutliers is
// returned. Samples added after Trim are retained until the next Trim.
func (st *Stats[S]) Trim(k int) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	var err error
	if k < 0 {
		k = 0
	}
	if k > 0 && 2*k >= len(st.raw) {
		err = ErrTooManyOutliers
		k = 0
	}

	st.trimmed = k
	st.retained = nil
	if k > 0 {
		sorted := slices.Clone(st.raw)
		slices.SortStableFunc(sorted, func(a, b S) int {
			return compareDuration(a.Runtime(), b.Runtime())
		})
		st.retained = sorted[k : len(sorted)-k]
	}

	st.agg = aggregate[S]{}
	for _, s := range st.samples() {
		st.agg.add(s)
	}
	return err
}

func compareDuration(a, b time.Duration) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func (st *Stats[S]) samples() []S {
	if st.trimmed > 0 {
		return st.retained
	}
	return st.raw
}

// Trimmed returns the number of outliers removed from each end.
func (st *Stats[S]) Trimmed() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.trimmed
}

func (st *Stats[S]) Clear() {
	st.mu.Lock()
	defer st.mu.Unlock()

	st.raw = nil
	st.retained = nil
	st.trimmed = 0
	st.errors = 0
	st.categorized = map[ErrorCategory][]S{}
	st.agg = aggregate[S]{}
}

// Samples returns a copy of the retained samples in insertion order, or in
// runtime order once trimmed.
func (st *Stats[S]) Samples() []S {
	st.mu.Lock()
	defer st.mu.Unlock()
	return slices.Clone(st.samples())
}

func (st *Stats[S]) RawCount() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.raw)
}

func (st *Stats[S]) Count() int64 {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.agg.count
}

func (st *Stats[S]) TotalRuntime() time.Duration {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.agg.runtime
}

func (st *Stats[S]) AverageRuntime() time.Duration {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.agg.count == 0 {
		return 0
	}
	return st.agg.runtime / time.Duration(st.agg.count)
}

// GeometricAverageRuntime is computed over successful samples with a
// non-zero runtime only.
func (st *Stats[S]) GeometricAverageRuntime() time.Duration {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.agg.logCount == 0 {
		return 0
	}
	return time.Duration(math.Exp(st.agg.logSum.Value() / float64(st.agg.logCount)))
}

// Variance is the population variance of the runtimes in ns².
func (st *Stats[S]) Variance() float64 {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.agg.count == 0 {
		return 0
	}
	return st.agg.m2 / float64(st.agg.count)
}

func (st *Stats[S]) StandardDeviation() time.Duration {
	return time.Duration(math.Sqrt(st.Variance()))
}

func (st *Stats[S]) MinRuntime() time.Duration {
	st.mu.Lock()
	defer st.mu.Unlock()
	if !st.agg.hasMinMax {
		return 0
	}
	return st.agg.min.Runtime()
}

func (st *Stats[S]) MaxRuntime() time.Duration {
	st.mu.Lock()
	defer st.mu.Unlock()
	if !st.agg.hasMinMax {
		return 0
	}
	return st.agg.max.Runtime()
}

// Min returns the fastest retained sample.
func (st *Stats[S]) Min() (S, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.agg.min, st.agg.hasMinMax
}

// Max returns the slowest retained sample.
func (st *Stats[S]) Max() (S, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.agg.max, st.agg.hasMinMax
}

func (st *Stats[S]) OperationsPerSecond() float64 {
	st.mu.Lock()
	defer st.mu.Unlock()
	return perSecond(st.agg.count, st.agg.runtime)
}

func (st *Stats[S]) OperationsPerHour() float64 {
	return st.OperationsPerSecond() * 3600
}

func (st *Stats[S]) TotalResponseTime() time.Duration {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.agg.responseTime
}

func (st *Stats[S]) AverageResponseTime() time.Duration {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.agg.count == 0 {
		return 0
	}
	return st.agg.responseTime / time.Duration(st.agg.count)
}

func (st *Stats[S]) TotalResults() int64 {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.agg.results
}

// Percentile returns the runtime at quantile q (in percent) of the retained
// samples.
func (st *Stats[S]) Percentile(q float64) time.Duration {
	st.mu.Lock()
	values := make([]time.Duration, 0, len(st.samples()))
	for _, s := range st.samples() {
		values = append(values, s.Runtime())
	}
	st.mu.Unlock()

	if len(values) == 0 {
		return 0
	}
	return stats.Percentiles(values, q)[0]
}

// ActualRuntime is the wall-clock time between the start of the first and
// the end of the last retained sample.
func (st *Stats[S]) ActualRuntime() time.Duration {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.actualRuntime()
}

func (st *Stats[S]) actualRuntime() time.Duration {
	if st.agg.first.IsZero() {
		return 0
	}
	return st.agg.last.Sub(st.agg.first)
}

func (st *Stats[S]) ActualAverageRuntime() time.Duration {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.agg.count == 0 {
		return 0
	}
	return st.actualRuntime() / time.Duration(st.agg.count)
}

func (st *Stats[S]) ActualOperationsPerSecond() float64 {
	st.mu.Lock()
	defer st.mu.Unlock()
	return perSecond(st.agg.count, st.actualRuntime())
}

func (st *Stats[S]) ActualOperationsPerHour() float64 {
	return st.ActualOperationsPerSecond() * 3600
}

func perSecond(n int64, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(n) / d.Seconds()
}

// Errors counts all failed samples recorded since the last Clear.
func (st *Stats[S]) Errors() int64 {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.errors
}

func (st *Stats[S]) CategorizedErrors() map[ErrorCategory]int64 {
	st.mu.Lock()
	defer st.mu.Unlock()

	out := make(map[ErrorCategory]int64, len(st.categorized))
	for cat, runs := range st.categorized {
		out[cat] = int64(len(runs))
	}
	return out
}

// ErrorsOf returns the failed samples of the given category.
func (st *Stats[S]) ErrorsOf(cat ErrorCategory) []S {
	st.mu.Lock()
	defer st.mu.Unlock()
	return slices.Clone(st.categorized[cat])
}
