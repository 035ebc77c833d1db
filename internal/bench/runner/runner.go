// Package runner drives benchmark, soak and stress runs of an operation mix
// with one or more concurrent clients.
package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/xid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"sparqlbench/api/benchapi"
	"sparqlbench/internal/bench"
	"sparqlbench/internal/bench/mixrun"
	"sparqlbench/pkg/ctxutil"
	"sparqlbench/pkg/logging"
	"sparqlbench/pkg/timeutil"
)

// WorkerListener is implemented by listeners interested in the number of
// active clients.
type WorkerListener interface {
	Workers(n int)
}

type Runner struct {
	MixRunner mixrun.MixRunner
	Listeners []bench.ProgressListener
	Log       *zap.SugaredLogger

	// Exit terminates the process for HaltExit. Defaults to os.Exit.
	Exit func(code int)

	halting atomic.Bool
}

// Result describes a finished run. The statistics live in Mix.
type Result struct {
	ID       xid.ID
	Mode     benchapi.Mode
	Started  time.Time
	Elapsed  time.Duration
	Runs     int64
	Threads  int
	Timeout  time.Duration
	Excluded []int
	Mix      *bench.OperationMix
}

func New(mr mixrun.MixRunner, log *zap.SugaredLogger, listeners ...bench.ProgressListener) *Runner {
	return &Runner{MixRunner: mr, Log: log, Listeners: listeners}
}

func (r *Runner) log() *zap.SugaredLogger {
	return logging.OrNop(r.Log)
}

func (r *Runner) Run(ctx context.Context, mode benchapi.Mode, opts *bench.Options, mix *bench.OperationMix) (*Result, error) {
	switch mode {
	case benchapi.ModeBenchmark, "":
		return r.Benchmark(ctx, opts, mix)
	case benchapi.ModeSoak:
		return r.Soak(ctx, opts, mix)
	case benchapi.ModeStress:
		return r.Stress(ctx, opts, mix)
	default:
		return nil, fmt.Errorf("unknown mode: %s", mode)
	}
}

// Benchmark executes opts.Runs mix runs after the warmups and trims
// opts.Outliers runs from both ends of the statistics.
func (r *Runner) Benchmark(ctx context.Context, opts *bench.Options, mix *bench.OperationMix) (*Result, error) {
	return r.execute(ctx, benchapi.ModeBenchmark, opts, mix, func(ctx context.Context, res *Result, rep bench.Reporter) error {
		if err := r.runFixed(ctx, res, rep, opts, mix, newBudget(opts.Runs, 0)); err != nil {
			return err
		}
		if err := mix.Trim(opts.Outliers); err != nil {
			r.log().Warnf("Run %s: %v", res.ID, err)
		}
		return nil
	})
}

// Soak runs the mix until opts.Runs runs completed or opts.MaxRuntime
// elapsed. Without both limits it runs until ctx is cancelled.
func (r *Runner) Soak(ctx context.Context, opts *bench.Options, mix *bench.OperationMix) (*Result, error) {
	return r.execute(ctx, benchapi.ModeSoak, opts, mix, func(ctx context.Context, res *Result, rep bench.Reporter) error {
		return r.runFixed(ctx, res, rep, opts, mix, newBudget(opts.Runs, opts.MaxRuntime))
	})
}

// Stress runs synchronized rounds of one mix run per client, multiplying
// the number of clients by opts.RampUpFactor after every round. The round
// reaching opts.MaxThreads is the last one.
func (r *Runner) Stress(ctx context.Context, opts *bench.Options, mix *bench.OperationMix) (*Result, error) {
	return r.execute(ctx, benchapi.ModeStress, opts, mix, func(ctx context.Context, res *Result, rep bench.Reporter) error {
		return r.runStress(ctx, res, rep, opts, mix)
	})
}

func (r *Runner) execute(
	ctx context.Context,
	mode benchapi.Mode,
	opts *bench.Options,
	mix *bench.OperationMix,
	body func(ctx context.Context, res *Result, rep bench.Reporter) error,
) (*Result, error) {
	if err := r.Validate(ctx, mode, opts, mix); err != nil {
		return nil, fmt.Errorf("invalid run: %w", err)
	}

	res := &Result{
		ID:      xid.New(),
		Mode:    mode,
		Started: time.Now(),
		Mix:     mix,
	}
	log := r.log()
	r.halting.Store(false)
	rep := &fanout{runner: r, opts: opts}

	log.Infof("Run %s: starting %s of mix %s with %d operations", res.ID, mode, mix.Name(), mix.Size())
	defer func() {
		res.Elapsed = time.Since(res.Started)
		res.Timeout = opts.Timeout()
		res.Excluded = opts.OperationExcludes().IDs()
	}()

	if err := rep.each(func(l bench.ProgressListener) error { return l.Start(mix) }); err != nil {
		return res, r.halt(res, opts, err)
	}

	ctx, cancel, stop := ctxutil.OnDone(ctx, func() {
		log.Infof("Run %s: stop requested", res.ID)
	})
	defer cancel()
	defer stop()

	if opts.ProgressInterval > 0 {
		go r.liveProgress(ctx, res, opts, mix)
	}

	if opts.WarmupRuns > 0 {
		log.Infof("Run %s: %d warmup runs", res.ID, opts.WarmupRuns)
		if err := r.warmup(ctx, rep, opts, mix); err != nil {
			return res, r.fail(ctx, res, opts, err)
		}
	}
	mix.Clear()

	if err := body(ctx, res, rep); err != nil {
		return res, r.fail(ctx, res, opts, err)
	}
	if err := ctx.Err(); err != nil {
		return res, r.fail(ctx, res, opts, err)
	}

	log.Infof("Run %s: finished %d mix runs in %v", res.ID, res.Runs, time.Since(res.Started).Round(time.Millisecond))
	if err := rep.each(func(l bench.ProgressListener) error { return l.Finish(true) }); err != nil {
		return res, r.halt(res, opts, err)
	}
	return res, nil
}

func (r *Runner) warmup(ctx context.Context, rep bench.Reporter, opts *bench.Options, mix *bench.OperationMix) error {
	for i := 0; i < opts.WarmupRuns && ctx.Err() == nil; i++ {
		if _, err := r.MixRunner.Warmup(ctx, rep, opts, mix); err != nil {
			if errors.Is(err, bench.ErrNoOperations) {
				return nil
			}
			return err
		}
	}
	return nil
}

func (r *Runner) runFixed(
	ctx context.Context,
	res *Result,
	rep bench.Reporter,
	opts *bench.Options,
	mix *bench.OperationMix,
	b *budget,
) error {
	threads := max(opts.Parallel, 1)
	res.Threads = threads
	r.workers(threads)
	defer r.workers(0)

	if threads == 1 {
		return r.loop(ctx, res, rep, opts, mix, b)
	}

	g, ctx := errgroup.WithContext(ctx)
	for w := 1; w <= threads; w++ {
		g.Go(func() error {
			return r.loop(ctx, res, bench.WorkerReporter(rep, w), opts, mix, b)
		})
	}
	return g.Wait()
}

func (r *Runner) loop(
	ctx context.Context,
	res *Result,
	rep bench.Reporter,
	opts *bench.Options,
	mix *bench.OperationMix,
	b *budget,
) error {
	for ctx.Err() == nil && b.claim() {
		if _, err := r.MixRunner.Run(ctx, rep, opts, mix, mixrun.PhaseRun); err != nil {
			if errors.Is(err, bench.ErrNoOperations) {
				r.log().Warnf("Run %s: all operations excluded, stopping", res.ID)
				return nil
			}
			return err
		}
		atomic.AddInt64(&res.Runs, 1)
	}
	return nil
}

func (r *Runner) runStress(
	ctx context.Context,
	res *Result,
	rep bench.Reporter,
	opts *bench.Options,
	mix *bench.OperationMix,
) error {
	log := r.log()
	defer r.workers(0)

	var deadline time.Time
	if opts.MaxRuntime > 0 {
		deadline = time.Now().Add(opts.MaxRuntime)
	}

	threads := max(opts.Parallel, 1)
	for round := 1; ctx.Err() == nil; round++ {
		res.Threads = max(res.Threads, threads)
		r.workers(threads)
		log.Infof("Run %s: stress round %d with %d clients", res.ID, round, threads)

		g, gctx := errgroup.WithContext(ctx)
		for w := 1; w <= threads; w++ {
			g.Go(func() error {
				wrep := rep
				if threads > 1 {
					wrep = bench.WorkerReporter(rep, w)
				}
				_, err := r.MixRunner.Run(gctx, wrep, opts, mix, mixrun.PhaseRun)
				if err == nil {
					atomic.AddInt64(&res.Runs, 1)
				}
				return err
			})
		}
		if err := g.Wait(); err != nil {
			if errors.Is(err, bench.ErrNoOperations) {
				log.Warnf("Run %s: all operations excluded, stopping", res.ID)
				return nil
			}
			return err
		}

		if threads >= opts.MaxThreads {
			log.Infof("Run %s: reached %d clients", res.ID, threads)
			return nil
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			log.Infof("Run %s: stress runtime of %v elapsed", res.ID, opts.MaxRuntime)
			return nil
		}
		threads = min(threads*opts.RampUpFactor, opts.MaxThreads)
	}
	return nil
}

func (r *Runner) workers(n int) {
	for _, l := range r.Listeners {
		if wl, ok := l.(WorkerListener); ok {
			wl.Workers(n)
		}
	}
}

func (r *Runner) liveProgress(ctx context.Context, res *Result, opts *bench.Options, mix *bench.OperationMix) {
	log := r.log()
	for range timeutil.Ticks(ctx, opts.ProgressInterval) {
		st := mix.Stats()
		log.Infof("Run %s: %d mix runs, %d errors, avg %v, %d excluded operations, timeout %v",
			res.ID,
			st.Count(),
			st.Errors(),
			st.AverageRuntime().Round(time.Millisecond),
			opts.OperationExcludes().Len(),
			opts.Timeout(),
		)
	}
}

// fail ends a run that did not complete.
func (r *Runner) fail(ctx context.Context, res *Result, opts *bench.Options, err error) error {
	if !bench.IsHalt(err) && ctx.Err() != nil {
		r.finish(false)
		return fmt.Errorf("run %s interrupted: %w", res.ID, err)
	}
	return r.halt(res, opts, err)
}

// halt notifies listeners of the failed run exactly once and then exits or
// returns err according to opts.HaltBehaviour.
func (r *Runner) halt(res *Result, opts *bench.Options, err error) error {
	if !bench.IsHalt(err) {
		err = bench.Halt("run failed", err)
	}
	r.log().Errorf("Run %s: ERROR %v", res.ID, err)
	r.finish(false)

	if opts.HaltBehaviour == bench.HaltExit {
		exit := r.Exit
		if exit == nil {
			exit = os.Exit
		}
		exit(1)
	}
	return err
}

func (r *Runner) finish(ok bool) {
	if !r.halting.CompareAndSwap(false, true) {
		return
	}
	for _, l := range r.Listeners {
		if err := l.Finish(ok); err != nil {
			r.log().Warnf("Listener finish: %v", err)
		}
	}
}

// fanout forwards events to all listeners and turns listener errors into
// halt decisions.
type fanout struct {
	runner *Runner
	opts   *bench.Options
}

var _ bench.Reporter = (*fanout)(nil)

func (f *fanout) each(fn func(l bench.ProgressListener) error) error {
	for _, l := range f.runner.Listeners {
		if err := fn(l); err != nil {
			if f.opts.HaltsOnError() {
				return bench.Halt("listener failed", err)
			}
			f.runner.log().Warnf("Listener error: %v", err)
		}
	}
	return nil
}

func (f *fanout) Progress(msg string) error {
	return f.each(func(l bench.ProgressListener) error { return l.Progress(msg) })
}

func (f *fanout) BeforeOperation(mix *bench.OperationMix, id int) error {
	return f.each(func(l bench.ProgressListener) error { return l.BeforeOperation(mix, id) })
}

func (f *fanout) AfterOperation(mix *bench.OperationMix, run *bench.OperationRun) error {
	return f.each(func(l bench.ProgressListener) error { return l.AfterOperation(mix, run) })
}

func (f *fanout) BeforeMix(mix *bench.OperationMix) error {
	return f.each(func(l bench.ProgressListener) error { return l.BeforeMix(mix) })
}

func (f *fanout) AfterMix(mix *bench.OperationMix, run *bench.OperationMixRun) error {
	return f.each(func(l bench.ProgressListener) error { return l.AfterMix(mix, run) })
}
