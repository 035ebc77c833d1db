package runner

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sparqlbench/api/benchapi"
	"sparqlbench/internal/worker"
)

type fakeFactory struct {
	run func(context.Context) (any, error)
	err error
}

func (f *fakeFactory) Prepare(string) (worker.Task, error) {
	return worker.Task{
		Name: benchapi.TaskPrepare,
		Task: func(context.Context) (any, error) { return "prepared", nil },
		CheckReady: func(context.Context) (bool, error) {
			return false, nil
		},
	}, nil
}

func (f *fakeFactory) Cleanup() (worker.Task, error) {
	return worker.Task{}, errors.New("not supported")
}

func (f *fakeFactory) Run(string) (worker.Task, error) {
	if f.err != nil {
		return worker.Task{}, f.err
	}
	return worker.Task{Name: benchapi.TaskRun, Task: f.run}, nil
}

func startWorker(t *testing.T, f *fakeFactory) *BenchmarkWorker[string] {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	r := New(worker.Config{}, nil)
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return NewBenchmarkWorker(r, f)
}

func waitIdle(t *testing.T, w *BenchmarkWorker[string]) benchapi.APIWorkerStatus {
	t.Helper()
	var status benchapi.APIWorkerStatus
	require.Eventually(t, func() bool {
		status = w.Status(context.Background())
		return status.Code == benchapi.StatusIdle && status.Last != nil
	}, 5*time.Second, 5*time.Millisecond)
	return status
}

func TestRunTask(t *testing.T) {
	w := startWorker(t, &fakeFactory{run: func(context.Context) (any, error) {
		return 42, nil
	}})

	require.NoError(t, w.Run(context.Background(), "cfg"))
	status := waitIdle(t, w)
	assert.Equal(t, benchapi.TaskRun, status.Task)
	assert.Equal(t, 42, status.Last.Value)
	assert.NoError(t, status.Last.Error)
}

func TestFinishedTaskContextIsCancelled(t *testing.T) {
	var taskCtx context.Context
	w := startWorker(t, &fakeFactory{run: func(ctx context.Context) (any, error) {
		taskCtx = ctx
		return nil, nil
	}})

	require.NoError(t, w.Run(context.Background(), "cfg"))
	waitIdle(t, w)
	require.NotNil(t, taskCtx)
	assert.ErrorIs(t, taskCtx.Err(), context.Canceled)
}

func TestRunTaskPanics(t *testing.T) {
	w := startWorker(t, &fakeFactory{run: func(context.Context) (any, error) {
		panic("boom")
	}})

	require.NoError(t, w.Run(context.Background(), "cfg"))
	status := waitIdle(t, w)
	require.Error(t, status.Last.Error)
	assert.Contains(t, status.Last.Error.Error(), "boom")
}

func TestBusyAndStop(t *testing.T) {
	started := make(chan struct{})
	w := startWorker(t, &fakeFactory{run: func(ctx context.Context) (any, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}})

	require.NoError(t, w.Run(context.Background(), "cfg"))
	<-started

	err := w.Run(context.Background(), "cfg")
	var statusErr *benchapi.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusConflict, statusErr.Code)

	code, err := w.Healthcheck(context.Background())
	require.NoError(t, err)
	assert.Equal(t, benchapi.StatusBusy, code)

	require.NoError(t, w.CancelActive(context.Background()))
	status := waitIdle(t, w)
	assert.ErrorIs(t, status.Last.Error, context.Canceled)
}

func TestFactoryErrorIsBadRequest(t *testing.T) {
	w := startWorker(t, &fakeFactory{err: errors.New("invalid config")})

	err := w.Run(context.Background(), "cfg")
	var statusErr *benchapi.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadRequest, statusErr.Code)
}

func TestTaskNotReady(t *testing.T) {
	w := startWorker(t, &fakeFactory{})

	err := w.Prepare(context.Background(), "cfg")
	var statusErr *benchapi.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.Code)

	status := w.Status(context.Background())
	assert.Equal(t, benchapi.StatusIdle, status.Code)
	assert.Nil(t, status.Last)
}

func TestHealthIdleWithoutEndpoint(t *testing.T) {
	w := startWorker(t, &fakeFactory{})

	code, err := w.Healthcheck(context.Background())
	require.NoError(t, err)
	assert.Equal(t, benchapi.StatusIdle, code)
}
