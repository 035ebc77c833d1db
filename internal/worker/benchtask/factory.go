// Package benchtask creates the worker tasks that validate and execute
// runs submitted to the control server.
package benchtask

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"sparqlbench/api/benchapi"
	"sparqlbench/internal/bench"
	brun "sparqlbench/internal/bench/runner"
	"sparqlbench/internal/ops"
	"sparqlbench/internal/report"
	"sparqlbench/internal/worker"
	"sparqlbench/pkg/logging"
	"sparqlbench/pkg/metricsutil"
)

type Factory struct {
	cfg     worker.Config
	log     *zap.SugaredLogger
	metrics *metricsutil.LazyMetrics[*report.RunMetrics]
}

// PrepareResult is the value of a successful prepare task.
type PrepareResult struct {
	Mix        string   `json:"mix"`
	Operations []string `json:"operations"`
}

func NewFactory(cfg worker.Config, log *zap.SugaredLogger) *Factory {
	return &Factory{
		cfg: cfg,
		log: logging.OrNop(log),
	}
}

func (f *Factory) WithMetrics(r prometheus.Registerer) *Factory {
	f.metrics = metricsutil.NewLazyMetrics(report.NewRunMetrics(), r)
	return f
}

type setup struct {
	mode benchapi.Mode
	opts *bench.Options
	mix  *bench.OperationMix
	mr   *brun.Runner
}

func (f *Factory) setup(req *benchapi.RunConfig) (*setup, error) {
	target := f.cfg.MergeTarget(req.Target)
	client := f.cfg.NewClient(target)

	mix, err := ops.LoadMix(req.Mix, target, f.cfg.BaseDir, client)
	if err != nil {
		return nil, fmt.Errorf("load mix: %w", err)
	}

	mr, err := brun.MixRunnerFromAPI(req, f.log)
	if err != nil {
		return nil, err
	}

	opts := brun.OptionsFromAPI(req)
	// exiting would take the server down
	opts.HaltBehaviour = bench.HaltThrow
	opts.Authenticator = client.Auth

	mode := req.Mode
	if mode == "" {
		mode = benchapi.ModeBenchmark
	}
	return &setup{
		mode: mode,
		opts: opts,
		mix:  mix,
		mr:   brun.New(mr, f.log),
	}, nil
}

func (f *Factory) Prepare(req benchapi.RunConfig) (cmd worker.Task, err error) {
	s, err := f.setup(&req)
	if err != nil {
		return cmd, err
	}
	return worker.Task{
		Name: benchapi.TaskPrepare,
		Task: func(ctx context.Context) (any, error) {
			if err := s.mr.Validate(ctx, s.mode, s.opts, s.mix); err != nil {
				return nil, err
			}
			res := PrepareResult{Mix: s.mix.Name()}
			for id := range s.mix.Size() {
				res.Operations = append(res.Operations, s.mix.OpLabel(id))
			}
			return res, nil
		},
	}, nil
}

// Cleanup resets the run metrics of previous runs.
func (f *Factory) Cleanup() (worker.Task, error) {
	return worker.Task{
		Name: benchapi.TaskCleanup,
		Task: func(context.Context) (any, error) {
			if f.metrics != nil {
				f.metrics.Register().Reset()
			}
			return nil, nil
		},
	}, nil
}

func (f *Factory) Run(req benchapi.RunConfig) (cmd worker.Task, err error) {
	listeners := []bench.ProgressListener{report.NewConsole(f.log, false)}

	s, err := f.setup(&req)
	if err != nil {
		return cmd, err
	}
	if f.metrics != nil {
		listeners = append(listeners, report.NewMetrics(f.metrics.Register(), s.opts))
	}
	s.mr.Listeners = listeners

	return worker.Task{
		Name:       benchapi.TaskRun,
		CheckReady: f.checkTarget(s),
		Task: func(ctx context.Context) (any, error) {
			res, err := s.mr.Run(ctx, s.mode, s.opts, s.mix)
			if res == nil {
				return nil, err
			}
			return brun.Summarize(res), err
		},
	}, nil
}

// checkTarget probes the endpoints of the mix if the run asks for
// endpoint checks.
func (f *Factory) checkTarget(s *setup) func(context.Context) (bool, error) {
	if s.opts.SanityCheckLevel < 2 {
		return nil
	}
	return func(ctx context.Context) (bool, error) {
		for _, op := range s.mix.Operations() {
			sc, ok := op.(bench.SanityChecker)
			if !ok {
				continue
			}
			if err := sc.SanityCheck(ctx, s.opts); err != nil {
				return false, err
			}
		}
		return true, nil
	}
}
