// Package oprun executes single operations of a mix with a bounded timeout.
package oprun

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"sparqlbench/internal/bench"
	"sparqlbench/pkg/logging"
)

// Runner executes the operation id of mix once.
//
// Operation failures never surface as errors. They are recorded in the
// returned run. A non-nil error is a *bench.HaltError and means the run
// must be halted according to the options.
type Runner interface {
	Run(ctx context.Context, rep bench.Reporter, opts *bench.Options, mix *bench.OperationMix, id int) (*bench.OperationRun, error)
}

// Default executes operations on the session executor.
type Default struct {
	Log *zap.SugaredLogger
}

var _ Runner = Default{}

func (d Default) Run(
	ctx context.Context,
	rep bench.Reporter,
	opts *bench.Options,
	mix *bench.OperationMix,
	id int,
) (*bench.OperationRun, error) {
	run := d.Execute(ctx, opts, mix, id)
	return run, HaltDecision(opts, mix, run)
}

// Execute runs the operation without applying the halt policy.
func (d Default) Execute(ctx context.Context, opts *bench.Options, mix *bench.OperationMix, id int) *bench.OperationRun {
	log := logging.OrNop(d.Log)
	op := mix.Op(id)
	session := opts.Session()
	order := session.NextOperationOrder()

	// The timeout starts once the task holds an executor slot, waiting for
	// a slot only counts against the parent context.
	taskCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	var (
		res     bench.Result
		execErr error
		elapsed time.Duration
	)
	task, err := session.Executor().Go(ctx, func() {
		defer recoverError(log, &execErr)
		t0 := time.Now()
		defer func() { elapsed = time.Since(t0) }()
		res, execErr = op.Execute(taskCtx, opts)
	})
	started := time.Now()
	if err != nil {
		return failedRun(ctx, id, order, started, err)
	}

	var expired <-chan time.Time
	if timeout := opts.Timeout(); timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case <-task.Done():
	case <-expired:
		// Leave the task behind, the cancellation stops it as far as the
		// operation honours its context.
		cancel(context.DeadlineExceeded)
		task.Abandon()
		return failedRun(ctx, id, order, started, context.DeadlineExceeded)
	case <-ctx.Done():
		task.Abandon()
		return failedRun(ctx, id, order, started, ctx.Err())
	}

	if execErr != nil {
		run := bench.NewFailedRun(id, order, started, elapsed, bench.CategoryOf(execErr), execErr.Error())
		if run.Category() == bench.ErrorAuthentication && opts.Authenticator != nil {
			log.Infof("Operation %s: authentication failed, invalidating credentials", mix.OpLabel(id))
			opts.Authenticator.Invalidate()
		}
		return run
	}
	return bench.NewSuccessRun(id, order, started, elapsed, res.ResponseTime, res.ResultCount)
}

func failedRun(parent context.Context, id int, order int64, started time.Time, err error) *bench.OperationRun {
	elapsed := time.Since(started)
	if parent.Err() != nil {
		return bench.NewFailedRun(id, order, started, elapsed, bench.ErrorInterrupt, "interrupted: "+parent.Err().Error())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return bench.NewFailedRun(id, order, started, elapsed, bench.ErrorTimeout, fmt.Sprintf("timed out after %v", elapsed.Round(time.Millisecond)))
	}
	return bench.NewFailedRun(id, order, started, elapsed, bench.CategoryOf(err), err.Error())
}

// HaltDecision applies the halt policy of opts to a finished run.
func HaltDecision(opts *bench.Options, mix *bench.OperationMix, run *bench.OperationRun) error {
	var halt bool
	switch run.Category() {
	case bench.ErrorNone:
		return nil
	case bench.ErrorTimeout:
		halt = opts.HaltsOnTimeout()
	case bench.ErrorInterrupt:
		halt = opts.HaltsOnInterrupt()
	default:
		halt = opts.HaltsOnError()
	}
	if !halt {
		return nil
	}

	reason := fmt.Sprintf("operation %s failed with %v", mix.OpLabel(run.ID()), run.Category())
	return bench.Halt(reason, errors.New(run.Message()))
}

func recoverError(log *zap.SugaredLogger, err *error) {
	if r := recover(); r != nil {
		log.Errorf("Operation: Recovered from panic: %v\n%s", r, debug.Stack())

		if e, ok := r.(error); ok {
			*err = bench.Categorize(bench.ErrorExecution, e)
		} else {
			*err = bench.Categorize(bench.ErrorExecution, fmt.Errorf("panic: %v", r))
		}
	}
}
