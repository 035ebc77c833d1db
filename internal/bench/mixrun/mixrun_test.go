package mixrun

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sparqlbench/internal/bench"
	"sparqlbench/internal/bench/oprun"
	"sparqlbench/internal/bench/order"
)

func TestDefaultRunRecordsStats(t *testing.T) {
	mix := bench.NewMix("m",
		sleepingOp("a", time.Millisecond),
		failingOp("b", -1),
	)
	opts := bench.NewOptions(bench.Config{})
	opts.SetTimeout(time.Second)
	rep := &recorder{}

	runner := NewDefault(order.InOrder{}, oprun.Default{})
	mixRun, err := runner.Run(context.Background(), rep, opts, mix, PhaseRun)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1}, ranIDs(mixRun))
	assert.Equal(t, int64(1), mixRun.Order())
	assert.False(t, mixRun.Successful())
	assert.Equal(t, bench.ErrorExecution, mixRun.Category())

	assert.Equal(t, int64(1), mix.OpStats(0).Count())
	assert.Equal(t, int64(0), mix.OpStats(0).Errors())
	assert.Equal(t, int64(1), mix.OpStats(1).Errors())
	assert.Equal(t, int64(1), mix.Stats().Count())
	assert.Len(t, rep.after, 2)
	require.Len(t, rep.progress, 2)
	assert.Contains(t, rep.progress[0], "returned 1 results")
	assert.Contains(t, rep.progress[1], "FAILED")

	mixRun, err = runner.Run(context.Background(), rep, opts, mix, PhaseRun)
	require.NoError(t, err)
	assert.Equal(t, int64(2), mixRun.Order())
}

func TestDefaultRunReportsOrder(t *testing.T) {
	mix := bench.NewMix("m", sleepingOp("a", 0), sleepingOp("b", 0))
	opts := bench.NewOptions(bench.Config{})
	opts.SetTimeout(time.Second)
	rep := &recorder{}

	runner := NewDefault(order.InOrder{}, oprun.Default{})
	runner.ReportOrder = true
	_, err := runner.Run(context.Background(), rep, opts, mix, PhaseRun)
	require.NoError(t, err)

	require.Len(t, rep.progress, 3)
	assert.Contains(t, rep.progress[0], "Operation order")
	assert.Contains(t, rep.progress[0], "[0 1]")
}

func TestDefaultRunEmptyMix(t *testing.T) {
	opts := bench.NewOptions(bench.Config{})
	_, err := NewDefault(nil, nil).Run(context.Background(), &recorder{}, opts, bench.NewMix("empty"), PhaseRun)
	assert.ErrorIs(t, err, bench.ErrEmptyMix)
}

func TestDefaultRunHaltsOnError(t *testing.T) {
	mix := bench.NewMix("m", failingOp("a", -1), sleepingOp("b", time.Millisecond))
	opts := bench.NewOptions(bench.Config{HaltOnError: true})

	mixRun, err := NewDefault(order.InOrder{}, oprun.Default{}).Run(context.Background(), &recorder{}, opts, mix, PhaseRun)
	require.Error(t, err)
	assert.True(t, bench.IsHalt(err))
	assert.Equal(t, []int{0}, ranIDs(mixRun))
	assert.Equal(t, int64(0), mix.Stats().Count())
}

func TestDefaultRunDelay(t *testing.T) {
	mix := bench.NewMix("m", sleepingOp("a", 0), sleepingOp("b", 0), sleepingOp("c", 0))
	opts := bench.NewOptions(bench.Config{MaxDelay: 20 * time.Millisecond})

	start := time.Now()
	_, err := NewDefault(order.InOrder{}, oprun.Default{}).Run(context.Background(), &recorder{}, opts, mix, PhaseRun)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestDefaultRunInterruptedDelay(t *testing.T) {
	mix := bench.NewMix("m", sleepingOp("a", 0), sleepingOp("b", 0))
	opts := bench.NewOptions(bench.Config{MaxDelay: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	mixRun, err := NewDefault(order.InOrder{}, oprun.Default{}).Run(ctx, &recorder{}, opts, mix, PhaseRun)
	require.NoError(t, err)
	require.Len(t, mixRun.Runs(), 2)
	assert.Equal(t, bench.ErrorInterrupt, mixRun.Runs()[1].Category())
}
