package runner

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"sparqlbench/api/benchapi"
	"sparqlbench/internal/bench"
	"sparqlbench/internal/bench/mixrun"
	"sparqlbench/internal/bench/oprun"
	"sparqlbench/internal/bench/order"
)

const (
	DefaultTimeout       = 5 * time.Minute
	DefaultMaxThreads    = 1024
	DefaultRampUpFactor  = 2
	DefaultRetryInterval = time.Second

	defaultBenchmarkRuns     = 25
	defaultBenchmarkWarmups  = 5
	defaultBenchmarkOutliers = 1
)

// OptionsFromAPI builds run options from a run configuration, applying the
// mode dependent defaults.
func OptionsFromAPI(cfg *benchapi.RunConfig) *bench.Options {
	var runs, warmups, outliers int
	if cfg.Mode == benchapi.ModeBenchmark || cfg.Mode == "" {
		runs, warmups, outliers = defaultBenchmarkRuns, defaultBenchmarkWarmups, defaultBenchmarkOutliers
	}

	halt := bench.HaltThrow
	if cfg.Halt.Behaviour == benchapi.HaltExit {
		halt = bench.HaltExit
	}

	opts := bench.NewOptions(bench.Config{
		Parallel:         benchapi.GetOptValue(cfg.Parallel, 1),
		RandomOrder:      benchapi.GetOptValue(cfg.Order.Random, true),
		MaxDelay:         optDuration(cfg.MaxDelay, 0),
		HaltOnTimeout:    cfg.Halt.OnTimeout,
		HaltOnError:      cfg.Halt.OnError,
		HaltAny:          cfg.Halt.Any,
		HaltBehaviour:    halt,
		SanityCheckLevel: benchapi.GetOptValue(cfg.SanityCheckLevel, 1),
		SampleSize:       benchapi.GetOptValue(cfg.Order.SampleSize, 0),
		SampleRepeats:    benchapi.GetOptValue(cfg.Order.Repeats, false),
		Runs:             benchapi.GetOptValue(cfg.Runs, runs),
		WarmupRuns:       benchapi.GetOptValue(cfg.Warmups, warmups),
		Outliers:         benchapi.GetOptValue(cfg.Outliers, outliers),
		MaxRuntime:       optDuration(cfg.MaxRuntime, 0),
		MaxThreads:       benchapi.GetOptValue(cfg.MaxThreads, DefaultMaxThreads),
		RampUpFactor:     benchapi.GetOptValue(cfg.RampUpFactor, DefaultRampUpFactor),
		MaxRetries:       benchapi.GetOptValue(cfg.Retries, 0),
		RetryInterval:    optDuration(cfg.RetryInterval, DefaultRetryInterval),
		ProgressInterval: optDuration(cfg.ProgressInterval, 0),
	})
	opts.SetTimeout(optDuration(cfg.Timeout, DefaultTimeout))
	return opts
}

func optDuration(d *benchapi.Duration, def time.Duration) time.Duration {
	if d == nil {
		return def
	}
	return d.Duration
}

// MixRunnerFromAPI builds the mix runner described by cfg.
func MixRunnerFromAPI(cfg *benchapi.RunConfig, log *zap.SugaredLogger) (mixrun.MixRunner, error) {
	excluding := cfg.Adaptive.Enabled

	var provider order.Provider
	switch cfg.Order.Kind {
	case benchapi.OrderDefault, "":
		provider = order.Default{Excluding: excluding}
	case benchapi.OrderInOrder:
		provider = order.InOrder{Excluding: excluding}
	case benchapi.OrderSampling:
		provider = order.Sampling{
			AllowRepeats: benchapi.GetOptValue(cfg.Order.Repeats, false),
			Excluding:    excluding,
		}
	default:
		return nil, fmt.Errorf("unknown operation order: %s", cfg.Order.Kind)
	}

	var ops oprun.Runner = oprun.Default{Log: log}
	if benchapi.GetOptValue(cfg.Retries, 0) > 0 {
		ops = oprun.Retrying{Default: oprun.Default{Log: log}}
	}

	base := mixrun.NewDefault(provider, ops)
	base.ReportOrder = cfg.Order.Report

	var mr mixrun.MixRunner = base
	if cfg.Adaptive.Enabled {
		in, err := mixrun.NewIntelligent(mr,
			benchapi.GetOptValue(cfg.Adaptive.FailureThreshold, mixrun.DefaultFailureThreshold),
			benchapi.GetOptValue(cfg.Adaptive.TimeoutFactor, mixrun.DefaultTimeoutTuningFactor),
		)
		if err != nil {
			return nil, fmt.Errorf("adaptive runner: %w", err)
		}
		mr = in
	}
	return mr, nil
}
