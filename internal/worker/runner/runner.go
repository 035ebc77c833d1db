package runner

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"go.uber.org/zap"

	"sparqlbench/api/benchapi"
	"sparqlbench/internal/worker"
	"sparqlbench/pkg/ctxutil"
	"sparqlbench/pkg/logging"
)

const healthcheckTimeout = 10 * time.Second

// Runner executes at most one task at a time. All state is owned by the Run
// loop, other methods communicate with it through channels.
type Runner struct {
	Config worker.Config
	Log    *zap.SugaredLogger
	ch     chan any
	chRet  chan any
}

func New(cfg worker.Config, log *zap.SugaredLogger) *Runner {
	w := &Runner{
		Config: cfg,
		Log:    logging.OrNop(log),
		ch:     make(chan any, 1),
		chRet:  make(chan any),
	}
	return w
}

func (r *Runner) Run(ctx context.Context) {
	var wg sync.WaitGroup
	var activeTask func(context.Context) (any, error)
	var taskCh chan benchapi.Result[any]
	var cancelTask context.CancelFunc
	var lastName benchapi.TaskName
	var lastResult *benchapi.Result[any]

	defer func() {
		if cancelTask != nil {
			cancelTask()
		}
		wg.Wait()
	}()

	for ctx.Err() == nil {
		select {
		case <-ctx.Done():
			return
		case result := <-taskCh:
			lastResult = &result
			if cancelTask != nil {
				cancelTask()
				cancelTask = nil
			}
			activeTask = nil
			if result.Error != nil {
				r.Log.Warnf("Task %q failed: %v", lastName, result.Error)
			} else {
				r.Log.Infof("Task %q finished", lastName)
			}
			r.Log.Info("Worker is now idle")

		case cmd := <-r.ch:
			switch cmd := cmd.(type) {
			case statusCommand:
				code := benchapi.StatusIdle
				if activeTask != nil {
					code = benchapi.StatusBusy
				}

				r.chRet <- benchapi.WorkerStatus[benchapi.Result[any]]{
					Code: code,
					Task: lastName,
					Last: lastResult,
				}
			case stopCommand:
				if cancelTask != nil {
					cancelTask()
					cancelTask = nil
				}
				r.chRet <- nil
			case healthCommand:
				if activeTask != nil {
					// Active tasks report their own errors
					r.chRet <- healthResponse{StatusCode: benchapi.StatusBusy}
					break
				}

				status := benchapi.StatusIdle
				pingCtx, cancel := context.WithTimeout(ctx, healthcheckTimeout)
				err := worker.Ping(pingCtx, r.Config)
				cancel()
				if errors.Is(err, worker.ErrNoEndpoint) {
					// Run configurations bring their own target.
					err = nil
				}
				if err != nil {
					status = benchapi.StatusDisconnected
				}
				r.chRet <- healthResponse{StatusCode: status, Error: err}

			case worker.Task:
				if activeTask != nil {
					r.chRet <- benchapi.ErrorBusy(errors.New("worker is busy"))
					break
				}

				lastResult = nil
				lastName = cmd.Name
				activeTask = cmd.Task
				taskCh = make(chan benchapi.Result[any])
				r.chRet <- nil

				var taskCtx context.Context
				taskCtx, cancelTask = context.WithCancel(ctx)

				r.Log.Infof("Starting task %q", lastName)
				r.Log.Info("Worker is now busy")

				wg.Add(1)
				go func() {
					defer wg.Done()

					v, err := func() (v any, err error) {
						defer r.recoverError(&err)
						return cmd.Task(taskCtx)
					}()
					if err != nil && ctxutil.Canceled(taskCtx) {
						r.Log.Infof("Task %q was stopped", cmd.Name)
					}

					select {
					case taskCh <- benchapi.Result[any]{Value: v, Error: err}:
					case <-ctx.Done():
					}
				}()
			}
		}
	}
}

func (w *Runner) Healthcheck(ctx context.Context) (benchapi.StatusCode, error) {
	select {
	case w.ch <- healthCommand{}:
		resp := castNotNil[healthResponse](<-w.chRet)
		return resp.StatusCode, resp.Error
	case <-ctx.Done():
		return benchapi.StatusDisconnected, ctx.Err()
	}
}

func (w *Runner) Status(ctx context.Context) (status benchapi.APIWorkerStatus) {
	select {
	case w.ch <- statusCommand{}:
		return castNotNil[benchapi.APIWorkerStatus](<-w.chRet)
	case <-ctx.Done():
		return status
	}
}

func (w *Runner) CancelActive(ctx context.Context) error {
	select {
	case w.ch <- stopCommand{}:
		return castNotNil[error](<-w.chRet)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// BenchmarkWorker submits the tasks created by a factory to the runner.
type BenchmarkWorker[Config any] struct {
	*Runner
	factory worker.TaskFactory[Config]
}

func NewBenchmarkWorker[Config any](r *Runner, f worker.TaskFactory[Config]) *BenchmarkWorker[Config] {
	return &BenchmarkWorker[Config]{Runner: r, factory: f}
}

func (w *BenchmarkWorker[Config]) Prepare(ctx context.Context, cfg Config) error {
	cmd, err := w.factory.Prepare(cfg)
	if err != nil {
		return benchapi.ErrorBadRequest(err)
	}
	return w.sendTask(ctx, cmd)
}

func (w *BenchmarkWorker[Config]) Cleanup(ctx context.Context) error {
	cmd, err := w.factory.Cleanup()
	if err != nil {
		return err
	}
	return w.sendTask(ctx, cmd)
}

func (w *BenchmarkWorker[Config]) Run(ctx context.Context, cfg Config) error {
	t, err := w.factory.Run(cfg)
	if err != nil {
		return benchapi.ErrorBadRequest(err)
	}
	return w.sendTask(ctx, t)
}

func (w *BenchmarkWorker[Config]) sendTask(ctx context.Context, cmd worker.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ready, err := cmd.IsReady(ctx)
	if err != nil {
		return benchapi.ErrorUnavailable(fmt.Errorf("task %s not ready: %w", cmd.Name, err))
	}
	if !ready {
		return benchapi.ErrorUnavailable(fmt.Errorf("task %s not ready", cmd.Name))
	}

	select {
	case w.ch <- cmd:
		return castNotNil[error](<-w.chRet)
	case <-ctx.Done():
		return ctx.Err()
	}
}

type (
	stopCommand    struct{}
	statusCommand  struct{}
	healthCommand  struct{}
	healthResponse struct {
		StatusCode benchapi.StatusCode
		Error      error
	}
)

func castNotNil[T any](v any) (zero T) {
	if v == nil {
		return zero
	}
	ret, ok := v.(T)
	if !ok {
		panic(fmt.Errorf("unexpected type %T, expected %T", v, zero))
	}
	return ret
}

func (r *Runner) recoverError(err *error) {
	if rec := recover(); rec != nil {
		r.Log.Errorf("Runner: Recovered from panic: %v\n%s", rec, debug.Stack())

		if *err == nil {
			if e, ok := rec.(error); ok {
				*err = e
			} else {
				*err = fmt.Errorf("%v", rec)
			}
		}
	}
}
