package runner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sparqlbench/api/benchapi"
	"sparqlbench/internal/bench"
	"sparqlbench/internal/bench/mixrun"
)

func ptr[T any](v T) *T { return &v }

func TestOptionsFromAPIDefaults(t *testing.T) {
	opts := OptionsFromAPI(&benchapi.RunConfig{})
	assert.Equal(t, 1, opts.Parallel)
	assert.True(t, opts.RandomOrder)
	assert.Equal(t, 25, opts.Runs)
	assert.Equal(t, 5, opts.WarmupRuns)
	assert.Equal(t, 1, opts.Outliers)
	assert.Equal(t, DefaultTimeout, opts.Timeout())
	assert.Equal(t, DefaultMaxThreads, opts.MaxThreads)
	assert.Equal(t, DefaultRampUpFactor, opts.RampUpFactor)
	assert.Equal(t, 1, opts.SanityCheckLevel)
	assert.Equal(t, bench.HaltThrow, opts.HaltBehaviour)

	soak := OptionsFromAPI(&benchapi.RunConfig{Mode: benchapi.ModeSoak})
	assert.Zero(t, soak.Runs)
	assert.Zero(t, soak.WarmupRuns)
	assert.Zero(t, soak.Outliers)
}

func TestOptionsFromAPI(t *testing.T) {
	opts := OptionsFromAPI(&benchapi.RunConfig{
		Mode:     benchapi.ModeStress,
		Timeout:  benchapi.NewDuration(0),
		Parallel: ptr(4),
		Runs:     ptr(3),
		MaxDelay: benchapi.NewDuration(50 * time.Millisecond),
		Order:    benchapi.OrderConfig{Random: ptr(false), SampleSize: ptr(7), Repeats: ptr(true)},
		Halt:     benchapi.HaltConfig{Any: true, Behaviour: benchapi.HaltExit},
	})
	assert.Equal(t, 4, opts.Parallel)
	assert.Equal(t, 3, opts.Runs)
	assert.Zero(t, opts.Timeout())
	assert.False(t, opts.RandomOrder)
	assert.Equal(t, 7, opts.SampleSize)
	assert.True(t, opts.SampleRepeats)
	assert.Equal(t, 50*time.Millisecond, opts.MaxDelay)
	assert.True(t, opts.HaltsOnError())
	assert.Equal(t, bench.HaltExit, opts.HaltBehaviour)
}

func TestMixRunnerFromAPI(t *testing.T) {
	mr, err := MixRunnerFromAPI(&benchapi.RunConfig{}, nil)
	require.NoError(t, err)
	require.IsType(t, &mixrun.Default{}, mr)
	assert.False(t, mr.(*mixrun.Default).ReportOrder)

	mr, err = MixRunnerFromAPI(&benchapi.RunConfig{Order: benchapi.OrderConfig{Report: true}}, nil)
	require.NoError(t, err)
	require.IsType(t, &mixrun.Default{}, mr)
	assert.True(t, mr.(*mixrun.Default).ReportOrder)

	mr, err = MixRunnerFromAPI(&benchapi.RunConfig{Adaptive: benchapi.AdaptiveConfig{Enabled: true}}, nil)
	require.NoError(t, err)
	assert.IsType(t, &mixrun.Intelligent{}, mr)

	_, err = MixRunnerFromAPI(&benchapi.RunConfig{Adaptive: benchapi.AdaptiveConfig{Enabled: true, TimeoutFactor: ptr(1.0)}}, nil)
	assert.ErrorIs(t, err, mixrun.ErrInvalidTuningFactor)

	_, err = MixRunnerFromAPI(&benchapi.RunConfig{Order: benchapi.OrderConfig{Kind: "chaos"}}, nil)
	assert.Error(t, err)

	for _, kind := range []benchapi.OrderKind{benchapi.OrderInOrder, benchapi.OrderSampling} {
		_, err := MixRunnerFromAPI(&benchapi.RunConfig{Order: benchapi.OrderConfig{Kind: kind}}, nil)
		assert.NoError(t, err)
	}
}
