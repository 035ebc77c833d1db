package stats

import (
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const (
	// Latencies are recorded in microseconds, up to one hour.
	histogramMax     = int64(time.Hour / time.Microsecond)
	histogramSigFigs = 2
)

// LatencyHistogram records durations with microsecond resolution.
type LatencyHistogram struct {
	hist *hdrhistogram.Histogram
}

func NewLatencyHistogram() *LatencyHistogram {
	return &LatencyHistogram{hist: hdrhistogram.New(1, histogramMax, histogramSigFigs)}
}

func (h *LatencyHistogram) Record(d time.Duration) {
	v := int64(d / time.Microsecond)
	if v < 1 {
		v = 1
	}
	if v > histogramMax {
		v = histogramMax
	}
	// v is clamped into the trackable range, RecordValue can not fail.
	_ = h.hist.RecordValue(v)
}

func (h *LatencyHistogram) Count() int64 {
	return h.hist.TotalCount()
}

// Quantile returns the duration at quantile q in percent (0-100).
func (h *LatencyHistogram) Quantile(q float64) time.Duration {
	if h.hist.TotalCount() == 0 {
		return 0
	}
	return time.Duration(h.hist.ValueAtQuantile(q)) * time.Microsecond
}

// Percentiles returns the durations at the given quantiles (in percent).
func Percentiles(values []time.Duration, quantiles ...float64) []time.Duration {
	h := NewLatencyHistogram()
	for _, v := range values {
		h.Record(v)
	}

	out := make([]time.Duration, len(quantiles))
	for i, q := range quantiles {
		out[i] = h.Quantile(q)
	}
	return out
}
