package bench

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategoryFromStatus(t *testing.T) {
	tests := map[int]ErrorCategory{
		401: ErrorAuthentication,
		402: ErrorAuthentication,
		403: ErrorAuthentication,
		407: ErrorAuthentication,
		419: ErrorAuthentication,
		440: ErrorAuthentication,
		404: ErrorHTTPNotFound,
		410: ErrorHTTPNotFound,
		400: ErrorHTTPClient,
		429: ErrorHTTPClient,
		500: ErrorHTTPServer,
		503: ErrorHTTPServer,
		200: ErrorExecution,
		302: ErrorExecution,
		0:   ErrorExecution,
	}
	for code, want := range tests {
		assert.Equal(t, want, CategoryFromStatus(code), "status %d", code)
	}
}

func TestCategoryOf(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorCategory
	}{
		{nil, ErrorNone},
		{errors.New("x"), ErrorExecution},
		{context.DeadlineExceeded, ErrorTimeout},
		{fmt.Errorf("wrapped: %w", context.Canceled), ErrorInterrupt},
		{&StatusError{Code: 401}, ErrorAuthentication},
		{fmt.Errorf("query: %w", &StatusError{Code: 502}), ErrorHTTPServer},
		{Categorize(ErrorHTTPNotFound, context.DeadlineExceeded), ErrorHTTPNotFound},
	}
	for _, test := range tests {
		assert.Equal(t, test.want, CategoryOf(test.err), "%v", test.err)
	}
}

func TestHaltError(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("run: %w", Halt("operation failed", cause))
	assert.True(t, IsHalt(err))
	assert.ErrorIs(t, err, cause)
	assert.False(t, IsHalt(cause))
}

func TestGlobalOrderMonotonic(t *testing.T) {
	opts := NewOptions(Config{Parallel: 4})

	const workers, calls = 16, 500
	results := make([][]int64, workers)
	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Copies share the counter.
			o := opts.Copy()
			for range calls {
				results[w] = append(results[w], o.GlobalOrder())
			}
		}()
	}
	wg.Wait()

	var all []int64
	for _, r := range results {
		assert.True(t, slices.IsSorted(r))
		for i := 1; i < len(r); i++ {
			assert.Less(t, r[i-1], r[i])
		}
		all = append(all, r...)
	}
	slices.Sort(all)
	assert.Len(t, slices.Compact(all), workers*calls)

	opts.ResetGlobalOrder()
	assert.Equal(t, int64(1), opts.GlobalOrder())
}

func TestOptionsCopy(t *testing.T) {
	opts := NewOptions(Config{Parallel: 2, HaltAny: true})
	opts.SetTimeout(10 * time.Second)
	opts.OperationExcludes().Add(3)

	c := opts.Copy()
	assert.Equal(t, 2, c.Parallel)
	assert.Equal(t, 10*time.Second, c.Timeout())
	assert.Same(t, opts.Session(), c.Session())
	assert.NotSame(t, opts.OperationExcludes(), c.OperationExcludes())
	assert.False(t, c.OperationExcludes().Contains(3))

	c.SetTimeout(time.Second)
	assert.Equal(t, 10*time.Second, opts.Timeout())

	assert.Same(t, opts.OperationExcludes(), opts.OperationExcludes())
}

func TestOptionsHalts(t *testing.T) {
	opts := NewOptions(Config{})
	assert.Equal(t, HaltThrow, opts.HaltBehaviour)
	assert.False(t, opts.HaltsOnTimeout())
	assert.False(t, opts.HaltsOnError())
	assert.False(t, opts.HaltsOnInterrupt())

	opts.HaltOnTimeout = true
	assert.True(t, opts.HaltsOnTimeout())
	assert.False(t, opts.HaltsOnError())

	opts = NewOptions(Config{HaltAny: true})
	assert.True(t, opts.HaltsOnTimeout())
	assert.True(t, opts.HaltsOnError())
	assert.True(t, opts.HaltsOnInterrupt())
}

func TestIDSet(t *testing.T) {
	s := NewIDSet(4)
	assert.True(t, s.Add(1))
	assert.False(t, s.Add(1))
	assert.True(t, s.Contains(4))
	assert.Equal(t, []int{1, 4}, s.IDs())
	assert.Equal(t, []int{0, 2, 3}, s.Filter([]int{0, 1, 2, 3, 4}))
	s.Clear()
	assert.Zero(t, s.Len())
}

func TestExecutorBounded(t *testing.T) {
	ex := NewExecutor(2)
	release := make(chan struct{})

	var tasks []*Task
	for range 2 {
		task, err := ex.Go(context.Background(), func() { <-release })
		require.NoError(t, err)
		tasks = append(tasks, task)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := ex.Go(ctx, func() {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	for _, task := range tasks {
		<-task.Done()
	}
	task, err := ex.Go(context.Background(), func() {})
	require.NoError(t, err)
	<-task.Done()
}

func TestExecutorAbandonReleasesSlot(t *testing.T) {
	ex := NewExecutor(1)
	release := make(chan struct{})
	defer close(release)

	stuck, err := ex.Go(context.Background(), func() { <-release })
	require.NoError(t, err)
	stuck.Abandon()
	stuck.Abandon()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	task, err := ex.Go(ctx, func() {})
	require.NoError(t, err)
	<-task.Done()

	// The slot of the abandoned task is not released a second time.
	blocker, err := ex.Go(context.Background(), func() { <-release })
	require.NoError(t, err)
	defer blocker.Abandon()
	short, cancelShort := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancelShort()
	_, err = ex.Go(short, func() {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestMixRunDerived(t *testing.T) {
	mr := NewMixRun(7, []*OperationRun{
		okRun(0, ms(30)),
		failRun(1, ms(10), ErrorHTTPClient),
		okRun(2, ms(50)),
		failRun(3, ms(20), ErrorTimeout),
	})

	assert.Equal(t, ms(110), mr.Runtime())
	assert.Equal(t, 1, mr.Fastest().ID())
	assert.Equal(t, 2, mr.Slowest().ID())
	assert.False(t, mr.Successful())
	assert.Equal(t, ErrorHTTPClient, mr.Category())
	assert.Equal(t, 2, mr.Errors())
	assert.Equal(t, int64(2), mr.ResultCount())

	empty := NewMixRun(1, nil)
	assert.True(t, empty.Successful())
	assert.Nil(t, empty.Fastest())
}

func TestOperationRun(t *testing.T) {
	run := NewSuccessRun(UnknownID, 3, epoch, ms(10), ms(20), 5)
	assert.Equal(t, ms(10), run.ResponseTime())
	assert.True(t, run.Successful())

	withID := run.WithID(2)
	assert.Equal(t, 2, withID.ID())
	assert.Equal(t, UnknownID, run.ID())

	failed := NewFailedRun(1, 0, epoch, ms(1), ErrorNone, "x")
	assert.Equal(t, ErrorExecution, failed.Category())
	assert.False(t, failed.Successful())
}
