package stats

import (
	"iter"
	"math"
	"slices"
	"sort"
)

type Histogram struct {
	Buckets []float64 `json:"buckets"`
	Counts  []int     `json:"counts"`
}

type DistMetrics struct {
	Sum       float64   `json:"sum"`
	Min       float64   `json:"min"`
	Max       float64   `json:"max"`
	Avg       float64   `json:"avg"`
	Median    float64   `json:"median"`
	Stddev    float64   `json:"stddev"`
	Histogram Histogram `json:"histogram"`
}

func DistMetricStatsFrom[T any](it []T, fn func(T) float64) (stats DistMetrics) {
	values := make([]float64, len(it))
	for i := range it {
		values[i] = fn(it[i])
	}
	slices.Sort(values)

	if len(values) == 0 {
		return stats
	}

	min := values[0]
	max := values[len(values)-1]
	return DistMetrics{
		Sum:       SlicesSum(values),
		Min:       min,
		Max:       max,
		Avg:       SliceAverage(values),
		Median:    SlicesMedianOf(values, identity),
		Stddev:    SliceStddev(values),
		Histogram: SliceHistogram(values, min, max, 10),
	}
}

func identity[T any](v T) T {
	return v
}

func SliceAverage(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return SlicesSum(values) / float64(len(values))
}

func SliceAverageFunc[T any](items []T, fn func(T) float64) float64 {
	if len(items) == 0 {
		return 0
	}
	return SlicesSumOfFunc(items, fn) / float64(len(items))
}

func SlicesMedianOf[T any](summaries []T, selector func(T) float64) float64 {
	if len(summaries) == 0 {
		return 0
	}

	values := make([]float64, len(summaries))
	for i, summary := range summaries {
		values[i] = selector(summary)
	}
	sort.Float64s(values)
	mid := len(values) / 2
	if len(values)%2 == 0 {
		return (values[mid-1] + values[mid]) / 2
	}
	return values[mid]
}

func SliceStddev(items []float64) float64 {
	return SliceStddevFunc(items, identity)
}

// SliceStddevFunc computes the sample standard deviation.
func SliceStddevFunc[T any](items []T, fn func(T) float64) float64 {
	if len(items) <= 1 {
		return 0
	}

	avg := SliceAverageFunc(items, fn)
	sum := SlicesSumOfFunc(items, func(item T) float64 {
		v := fn(item) - avg
		return v * v
	})
	return math.Sqrt(sum / float64(len(items)-1))
}

func SliceHistogram(values []float64, min, max float64, n int) Histogram {
	return SliceHistogramFunc(min, max, n, values, identity)
}

func SliceHistogramFunc[T any](min, max float64, n int, items []T, fn func(T) float64) Histogram {
	return HistogramFunc(min, max, n, slices.Values(items), fn)
}

// HistogramFunc sorts values into n equally sized buckets between min and max.
// Values below min land in the first bucket, values at or above max in the last.
func HistogramFunc[T any](min, max float64, n int, items iter.Seq[T], fn func(T) float64) Histogram {
	if n <= 0 {
		n = 10
	}

	buckets := make([]float64, n)
	bucketWidth := (max - min) / float64(n)
	for i := range buckets {
		buckets[i] = min + float64(i)*bucketWidth + bucketWidth/2
	}

	counts := make([]int, n)
	for i := range items {
		v := fn(i)
		switch {
		case v < min:
			counts[0]++
		case v >= max || bucketWidth == 0:
			counts[n-1]++
		default:
			idx := int((v - min) / bucketWidth)
			if idx >= len(counts) {
				idx = len(counts) - 1
			}
			counts[idx]++
		}
	}
	return Histogram{Buckets: buckets, Counts: counts}
}

func SlicesSum(values []float64) float64 {
	return SumOfFunc(slices.Values(values), identity)
}

func SlicesSumOfFunc[T any](items []T, fn func(T) float64) float64 {
	return SumOfFunc(slices.Values(items), fn)
}

func SlicesGeometricMeanFunc[T any](items []T, fn func(T) float64) float64 {
	return GeometricMeanFunc(slices.Values(items), fn)
}

// GeometricMeanFunc computes exp(mean(log(v))). Values <= 0 are skipped.
func GeometricMeanFunc[T any](in iter.Seq[T], fn func(T) float64) float64 {
	var sum KahanSum
	count := 0
	for item := range in {
		value := fn(item)
		if value <= 0 {
			continue
		}
		count++
		sum.Add(math.Log(value))
	}

	if count == 0 {
		return 0
	}
	return math.Exp(sum.Value() / float64(count))
}

func SumOfFunc[T any](in iter.Seq[T], fn func(T) float64) float64 {
	var sum KahanSum
	for item := range in {
		sum.Add(fn(item))
	}
	return sum.Value()
}

// KahanSum is a compensated running sum reducing floating-point errors over
// many small additions.
type KahanSum struct {
	sum        float64
	correction float64
}

func (k *KahanSum) Add(v float64) {
	y := v - k.correction
	t := k.sum + y
	k.correction = (t - k.sum) - y
	k.sum = t
}

func (k *KahanSum) Value() float64 { return k.sum }

func (k *KahanSum) Reset() { *k = KahanSum{} }

func ExpBuckets(start float64, factor float64, max float64) []float64 {
	var buckets []float64
	current := start
	for current <= max {
		buckets = append(buckets, current)
		current *= factor
	}
	return buckets
}
