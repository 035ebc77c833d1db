package report

import (
	"github.com/prometheus/client_golang/prometheus"

	"sparqlbench/internal/bench"
	"sparqlbench/pkg/stats"
)

type RunMetrics struct {
	OpRuns        *prometheus.CounterVec
	OpErrors      *prometheus.CounterVec
	OpDuration    *prometheus.HistogramVec
	MixDuration   *prometheus.HistogramVec
	ActiveWorkers prometheus.Gauge
	Timeout       prometheus.Gauge
	Excluded      prometheus.Gauge
}

func NewRunMetrics() *RunMetrics {
	name := func(n string) string { return "sparqlbench_" + n }
	durationBuckets := stats.ExpBuckets(0.001, 1.5, 600)

	return &RunMetrics{
		OpRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: name("operation_runs_total"),
			Help: "Executed operations",
		}, []string{"op", "status"}),
		OpErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: name("operation_errors_total"),
			Help: "Failed operations by error category",
		}, []string{"op", "category"}),
		OpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    name("operation_duration_seconds"),
			Help:    "Operation runtime",
			Buckets: durationBuckets,
		}, []string{"op"}),
		MixDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    name("mix_duration_seconds"),
			Help:    "Runtime of complete mix runs",
			Buckets: durationBuckets,
		}, []string{"mix"}),
		ActiveWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: name("active_clients"),
			Help: "Concurrent clients",
		}),
		Timeout: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: name("operation_timeout_seconds"),
			Help: "Current operation timeout",
		}),
		Excluded: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: name("excluded_operations"),
			Help: "Operations excluded from further runs",
		}),
	}
}

func (m *RunMetrics) RegisterMetrics(r prometheus.Registerer) {
	r.MustRegister(
		m.OpRuns,
		m.OpErrors,
		m.OpDuration,
		m.MixDuration,
		m.ActiveWorkers,
		m.Timeout,
		m.Excluded,
	)
}

// Reset drops all series and zeroes the gauges.
func (m *RunMetrics) Reset() {
	m.OpRuns.Reset()
	m.OpErrors.Reset()
	m.OpDuration.Reset()
	m.MixDuration.Reset()
	m.ActiveWorkers.Set(0)
	m.Timeout.Set(0)
	m.Excluded.Set(0)
}

// Metrics updates RunMetrics from run events.
type Metrics struct {
	bench.NopListener

	metrics *RunMetrics
	opts    *bench.Options
}

var _ bench.ProgressListener = (*Metrics)(nil)

func NewMetrics(metrics *RunMetrics, opts *bench.Options) *Metrics {
	return &Metrics{metrics: metrics, opts: opts}
}

func (m *Metrics) Start(*bench.OperationMix) error {
	m.metrics.Timeout.Set(m.opts.Timeout().Seconds())
	m.metrics.Excluded.Set(0)
	return nil
}

func (m *Metrics) AfterOperation(mix *bench.OperationMix, run *bench.OperationRun) error {
	op := mix.Op(run.ID()).Name()
	status := "ok"
	if !run.Successful() {
		status = "error"
		m.metrics.OpErrors.WithLabelValues(op, run.Category().String()).Inc()
	}
	m.metrics.OpRuns.WithLabelValues(op, status).Inc()
	m.metrics.OpDuration.WithLabelValues(op).Observe(run.Runtime().Seconds())
	return nil
}

func (m *Metrics) AfterMix(mix *bench.OperationMix, run *bench.OperationMixRun) error {
	m.metrics.MixDuration.WithLabelValues(mix.Name()).Observe(run.Runtime().Seconds())
	m.metrics.Timeout.Set(m.opts.Timeout().Seconds())
	m.metrics.Excluded.Set(float64(m.opts.OperationExcludes().Len()))
	return nil
}

func (m *Metrics) Workers(n int) {
	m.metrics.ActiveWorkers.Set(float64(n))
}
