package report

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"sparqlbench/api/benchapi"
	"sparqlbench/internal/bench"
)

type testOp string

func (o testOp) Name() string               { return string(o) }
func (o testOp) Type() string               { return "test" }
func (o testOp) CanRun(*bench.Options) bool { return true }
func (o testOp) Content() string            { return "" }
func (o testOp) Execute(context.Context, *bench.Options) (bench.Result, error) {
	return bench.Result{}, nil
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewRunMetrics()
	metrics.RegisterMetrics(reg)

	opts := bench.NewOptions(bench.Config{})
	opts.SetTimeout(30 * time.Second)
	opts.OperationExcludes().Add(1)
	mix := bench.NewMix("m", testOp("q1"), testOp("q2"))
	l := NewMetrics(metrics, opts)

	require.NoError(t, l.Start(mix))
	ok := bench.NewSuccessRun(0, 1, time.Now(), 20*time.Millisecond, 0, 3)
	failed := bench.NewFailedRun(1, 2, time.Now(), time.Second, bench.ErrorTimeout, "timeout")
	require.NoError(t, l.AfterOperation(mix, ok))
	require.NoError(t, l.AfterOperation(mix, failed))
	require.NoError(t, l.AfterMix(mix, bench.NewMixRun(1, []*bench.OperationRun{ok, failed})))
	l.Workers(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.OpRuns.WithLabelValues("q1", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.OpRuns.WithLabelValues("q2", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.OpErrors.WithLabelValues("q2", "timeout")))
	assert.Equal(t, 30.0, testutil.ToFloat64(metrics.Timeout))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.Excluded))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.ActiveWorkers))
	assert.Equal(t, 2, testutil.CollectAndCount(metrics.OpDuration))
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.MixDuration))

	metrics.Reset()
	assert.Zero(t, testutil.CollectAndCount(metrics.OpRuns))
	assert.Zero(t, testutil.CollectAndCount(metrics.OpDuration))
	assert.Zero(t, testutil.CollectAndCount(metrics.MixDuration))
	assert.Zero(t, testutil.ToFloat64(metrics.Timeout))
	assert.Zero(t, testutil.ToFloat64(metrics.ActiveWorkers))
}

func TestConsole(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	c := NewConsole(zap.New(core).Sugar(), false)
	mix := bench.NewMix("m", testOp("q1"))

	require.NoError(t, c.Start(mix))
	require.NoError(t, c.Progress("op done"))
	run := bench.NewMixRun(4, []*bench.OperationRun{
		bench.NewFailedRun(0, 1, time.Now(), time.Millisecond, bench.ErrorExecution, "boom"),
	})
	require.NoError(t, c.AfterMix(mix, run))
	require.NoError(t, c.Finish(false))

	entries := logs.AllUntimed()
	require.Len(t, entries, 4)
	assert.Equal(t, zapcore.DebugLevel, entries[1].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[2].Level)
	assert.Contains(t, entries[2].Message, "1 errors")
	assert.Equal(t, zapcore.ErrorLevel, entries[3].Level)

	c.Verbose = true
	require.NoError(t, c.Progress("op done"))
	assert.Equal(t, zapcore.InfoLevel, logs.AllUntimed()[4].Level)
}

func TestProgressBar(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressBar(&buf, 2, "bench")
	mix := bench.NewMix("m", testOp("q1"))
	run := bench.NewMixRun(1, nil)

	require.NoError(t, p.AfterMix(mix, run))
	require.NoError(t, p.AfterMix(mix, run))
	require.NoError(t, p.Finish(true))
	assert.Contains(t, buf.String(), "bench")
}

func TestRenderSummary(t *testing.T) {
	color.NoColor = true
	s := benchapi.RunSummary{
		ID:   "run1",
		Mode: benchapi.ModeBenchmark,
		Mix:  "mix",
		Runs: benchapi.MixStats{Count: 3, AvgMS: 12.5, Fastest: "q1", Slowest: "q2", SuccessRatio: 66.67},
		Ops: []benchapi.OpStats{
			{ID: 0, Operation: "q1", Type: "query", Count: 3, Avg: 1.25},
			{ID: 1, Operation: "q2", Type: "query", Count: 3, Errors: 1, Excluded: true},
		},
		Errors: benchapi.ErrStats{Total: 1, Categories: map[string]int64{"timeout": 1}},
	}

	var buf bytes.Buffer
	require.NoError(t, RenderSummary(&buf, s))
	out := buf.String()
	assert.Contains(t, out, "Run run1: benchmark of mix mix")
	assert.Contains(t, out, "12.50ms")
	assert.Contains(t, out, "q2 (excluded)")
	assert.Contains(t, out, "66.67%")
	assert.Contains(t, out, "1 errors")
	assert.Contains(t, out, "timeout")
}

func TestSummaryJSON(t *testing.T) {
	s := benchapi.RunSummary{
		ID:      "run1",
		Elapsed: benchapi.Duration{Duration: 90 * time.Second},
		Runs:    benchapi.MixStats{Count: 2, SuccessRatio: 50},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteSummaryJSON(&buf, s))
	assert.Contains(t, buf.String(), `"elapsed": "1m30s"`)
	assert.Contains(t, buf.String(), `"success_ratio": "50.00%"`)

	got, err := ReadSummaryJSON(&buf)
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, got.Elapsed.Duration)
	assert.InDelta(t, 50, float64(got.Runs.SuccessRatio), 1e-9)
}
