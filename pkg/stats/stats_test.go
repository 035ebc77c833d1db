package stats

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistMetricStatsFrom(t *testing.T) {
	values := []int{4, 1, 3, 2}
	m := DistMetricStatsFrom(values, func(v int) float64 { return float64(v) })

	assert.Equal(t, 10.0, m.Sum)
	assert.Equal(t, 1.0, m.Min)
	assert.Equal(t, 4.0, m.Max)
	assert.Equal(t, 2.5, m.Avg)
	assert.Equal(t, 2.5, m.Median)
	assert.InDelta(t, 1.29099, m.Stddev, 1e-4)
	require.Len(t, m.Histogram.Counts, 10)
	total := 0
	for _, c := range m.Histogram.Counts {
		total += c
	}
	assert.Equal(t, 4, total)

	assert.Equal(t, DistMetrics{}, DistMetricStatsFrom([]int(nil), func(v int) float64 { return float64(v) }))
}

func TestSlicesMedianOf(t *testing.T) {
	assert.Equal(t, 0.0, SlicesMedianOf([]float64{}, identity))
	assert.Equal(t, 3.0, SlicesMedianOf([]float64{5, 1, 3}, identity))
	assert.Equal(t, 2.0, SlicesMedianOf([]float64{3, 1}, identity))
}

func TestGeometricMeanSkipsNonPositive(t *testing.T) {
	got := SlicesGeometricMeanFunc([]float64{2, 8, 0, -1}, identity)
	assert.InDelta(t, 4.0, got, 1e-9)
	assert.Equal(t, 0.0, SlicesGeometricMeanFunc([]float64{0}, identity))
}

func TestKahanSum(t *testing.T) {
	var k KahanSum
	for range 1_000_000 {
		k.Add(0.1)
	}
	assert.InDelta(t, 100_000.0, k.Value(), 1e-6)

	k.Reset()
	assert.Equal(t, 0.0, k.Value())
}

func TestExpBuckets(t *testing.T) {
	assert.Equal(t, []float64{1, 2, 4, 8}, ExpBuckets(1, 2, 10))
	assert.Empty(t, ExpBuckets(5, 2, 1))
}

func TestHistogramFuncBounds(t *testing.T) {
	h := SliceHistogram([]float64{-5, 0, 5, 10, 50}, 0, 10, 2)
	assert.Equal(t, []int{2, 3}, h.Counts)
	assert.Equal(t, []float64{2.5, 7.5}, h.Buckets)
}

func TestPercentiles(t *testing.T) {
	var values []time.Duration
	for i := 1; i <= 100; i++ {
		values = append(values, time.Duration(i)*time.Millisecond)
	}

	got := Percentiles(values, 50, 99, 100)
	require.Len(t, got, 3)
	for i, want := range []time.Duration{50 * time.Millisecond, 99 * time.Millisecond, 100 * time.Millisecond} {
		diff := math.Abs(float64(got[i] - want))
		assert.LessOrEqual(t, diff, 0.01*float64(want), "quantile %d: got %v want %v", i, got[i], want)
	}

	assert.Equal(t, []time.Duration{0}, Percentiles(nil, 50))
}

func TestLatencyHistogramClamps(t *testing.T) {
	h := NewLatencyHistogram()
	h.Record(0)
	h.Record(2 * time.Hour)
	assert.Equal(t, int64(2), h.Count())
	assert.Equal(t, time.Microsecond, h.Quantile(50))
	assert.InEpsilon(t, float64(time.Hour), float64(h.Quantile(100)), 0.01)
}
