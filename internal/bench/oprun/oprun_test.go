package oprun

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sparqlbench/internal/bench"
)

type funcOp func(ctx context.Context) (bench.Result, error)

func (f funcOp) Name() string               { return "op" }
func (f funcOp) Type() string               { return "func" }
func (f funcOp) CanRun(*bench.Options) bool { return true }
func (f funcOp) Content() string            { return "" }
func (f funcOp) Execute(ctx context.Context, _ *bench.Options) (bench.Result, error) {
	return f(ctx)
}

type countingAuth struct{ n atomic.Int64 }

func (a *countingAuth) Invalidate() { a.n.Add(1) }

type progressRecorder struct {
	bench.NopListener
	msgs []string
}

func (p *progressRecorder) Progress(msg string) error {
	p.msgs = append(p.msgs, msg)
	return nil
}

func mixOf(op bench.Operation) *bench.OperationMix {
	return bench.NewMix("m", op)
}

func TestDefaultSuccess(t *testing.T) {
	op := funcOp(func(context.Context) (bench.Result, error) {
		time.Sleep(5 * time.Millisecond)
		return bench.Result{ResultCount: 42}, nil
	})
	opts := bench.NewOptions(bench.Config{})
	opts.SetTimeout(time.Second)

	run, err := Default{}.Run(context.Background(), &progressRecorder{}, opts, mixOf(op), 0)
	require.NoError(t, err)
	assert.True(t, run.Successful())
	assert.Equal(t, int64(42), run.ResultCount())
	assert.Equal(t, 0, run.ID())
	assert.GreaterOrEqual(t, run.Runtime(), 5*time.Millisecond)
	assert.Equal(t, int64(1), run.Order())

	run, err = Default{}.Run(context.Background(), &progressRecorder{}, opts, mixOf(op), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), run.Order())
}

func TestDefaultTimeout(t *testing.T) {
	var cancelled atomic.Bool
	op := funcOp(func(ctx context.Context) (bench.Result, error) {
		<-ctx.Done()
		cancelled.Store(true)
		return bench.Result{}, ctx.Err()
	})
	opts := bench.NewOptions(bench.Config{})
	opts.SetTimeout(30 * time.Millisecond)

	run, err := Default{}.Run(context.Background(), &progressRecorder{}, opts, mixOf(op), 0)
	require.NoError(t, err)
	assert.Equal(t, bench.ErrorTimeout, run.Category())
	assert.GreaterOrEqual(t, run.Runtime(), 30*time.Millisecond)
	assert.Eventually(t, cancelled.Load, time.Second, time.Millisecond)

	opts.HaltOnTimeout = true
	_, err = Default{}.Run(context.Background(), &progressRecorder{}, opts, mixOf(op), 0)
	assert.True(t, bench.IsHalt(err))
}

func TestDefaultTimeoutDoesNotBlockNextOperation(t *testing.T) {
	stuck := funcOp(func(context.Context) (bench.Result, error) {
		time.Sleep(300 * time.Millisecond)
		return bench.Result{}, nil
	})
	fast := funcOp(func(context.Context) (bench.Result, error) {
		return bench.Result{ResultCount: 1}, nil
	})
	mix := bench.NewMix("m", stuck, fast)
	opts := bench.NewOptions(bench.Config{Parallel: 1})
	require.Equal(t, 1, opts.Session().Executor().Size())
	opts.SetTimeout(50 * time.Millisecond)

	run := Default{}.Execute(context.Background(), opts, mix, 0)
	assert.Equal(t, bench.ErrorTimeout, run.Category())

	run = Default{}.Execute(context.Background(), opts, mix, 1)
	assert.True(t, run.Successful(), run.Message())
	assert.Less(t, run.Runtime(), 50*time.Millisecond)
}

func TestDefaultUnboundedTimeout(t *testing.T) {
	op := funcOp(func(context.Context) (bench.Result, error) {
		time.Sleep(20 * time.Millisecond)
		return bench.Result{}, nil
	})
	opts := bench.NewOptions(bench.Config{})
	opts.SetTimeout(0)

	run, err := Default{}.Run(context.Background(), &progressRecorder{}, opts, mixOf(op), 0)
	require.NoError(t, err)
	assert.True(t, run.Successful())
}

func TestDefaultInterrupt(t *testing.T) {
	op := funcOp(func(ctx context.Context) (bench.Result, error) {
		<-ctx.Done()
		return bench.Result{}, ctx.Err()
	})
	opts := bench.NewOptions(bench.Config{HaltOnError: true, HaltOnTimeout: true})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	run, err := Default{}.Run(ctx, &progressRecorder{}, opts, mixOf(op), 0)
	require.NoError(t, err, "interrupts only halt with HaltAny")
	assert.Equal(t, bench.ErrorInterrupt, run.Category())

	opts.HaltAny = true
	_, err = Default{}.Run(ctx, &progressRecorder{}, opts, mixOf(op), 0)
	assert.True(t, bench.IsHalt(err))
}

func TestDefaultFailureCategories(t *testing.T) {
	tests := []struct {
		name string
		op   funcOp
		want bench.ErrorCategory
	}{
		{
			name: "execution",
			op:   func(context.Context) (bench.Result, error) { return bench.Result{}, errors.New("boom") },
			want: bench.ErrorExecution,
		},
		{
			name: "status",
			op: func(context.Context) (bench.Result, error) {
				return bench.Result{}, &bench.StatusError{Code: 404}
			},
			want: bench.ErrorHTTPNotFound,
		},
		{
			name: "panic",
			op:   func(context.Context) (bench.Result, error) { panic("oops") },
			want: bench.ErrorExecution,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			opts := bench.NewOptions(bench.Config{})
			run, err := Default{}.Run(context.Background(), &progressRecorder{}, opts, mixOf(test.op), 0)
			require.NoError(t, err)
			assert.Equal(t, test.want, run.Category())
			assert.NotEmpty(t, run.Message())

			opts.HaltOnError = true
			_, err = Default{}.Run(context.Background(), &progressRecorder{}, opts, mixOf(test.op), 0)
			assert.True(t, bench.IsHalt(err))
		})
	}
}

func TestDefaultInvalidatesAuthenticator(t *testing.T) {
	auth := &countingAuth{}
	op := funcOp(func(context.Context) (bench.Result, error) {
		return bench.Result{}, &bench.StatusError{Code: 401}
	})
	opts := bench.NewOptions(bench.Config{Authenticator: auth})

	run, err := Default{}.Run(context.Background(), &progressRecorder{}, opts, mixOf(op), 0)
	require.NoError(t, err)
	assert.Equal(t, bench.ErrorAuthentication, run.Category())
	assert.Equal(t, int64(1), auth.n.Load())
}

func TestRetrying(t *testing.T) {
	var calls atomic.Int64
	op := funcOp(func(context.Context) (bench.Result, error) {
		if calls.Add(1) < 3 {
			return bench.Result{}, errors.New("flaky")
		}
		return bench.Result{ResultCount: 1}, nil
	})
	opts := bench.NewOptions(bench.Config{MaxRetries: 5, RetryInterval: time.Millisecond, HaltOnError: true})
	rep := &progressRecorder{}

	run, err := Retrying{}.Run(context.Background(), rep, opts, mixOf(op), 0)
	require.NoError(t, err)
	assert.True(t, run.Successful())
	assert.Equal(t, int64(3), calls.Load())
	assert.Len(t, rep.msgs, 2)
}

func TestRetryingExhausted(t *testing.T) {
	var calls atomic.Int64
	op := funcOp(func(context.Context) (bench.Result, error) {
		calls.Add(1)
		return bench.Result{}, errors.New("broken")
	})
	opts := bench.NewOptions(bench.Config{MaxRetries: 2})
	rep := &progressRecorder{}

	run, err := Retrying{}.Run(context.Background(), rep, opts, mixOf(op), 0)
	require.NoError(t, err)
	assert.False(t, run.Successful())
	assert.Equal(t, int64(3), calls.Load())
	assert.Len(t, rep.msgs, 2)

	opts.HaltOnError = true
	calls.Store(0)
	_, err = Retrying{}.Run(context.Background(), rep, opts, mixOf(op), 0)
	assert.True(t, bench.IsHalt(err))
	assert.Equal(t, int64(3), calls.Load())
}

func TestRetryingNoRetries(t *testing.T) {
	var calls atomic.Int64
	op := funcOp(func(context.Context) (bench.Result, error) {
		calls.Add(1)
		return bench.Result{}, errors.New("broken")
	})
	opts := bench.NewOptions(bench.Config{})

	run, err := Retrying{}.Run(context.Background(), &progressRecorder{}, opts, mixOf(op), 0)
	require.NoError(t, err)
	assert.False(t, run.Successful())
	assert.Equal(t, int64(1), calls.Load())
}
