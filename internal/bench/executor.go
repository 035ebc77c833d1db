package bench

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Executor runs operation tasks on a bounded number of goroutines.
//
// A task that is abandoned after a timeout gives its slot back right away
// and finishes outside of the bound.
type Executor struct {
	sem  *semaphore.Weighted
	size int
}

func NewExecutor(size int) *Executor {
	if size < 1 {
		size = 1
	}
	return &Executor{sem: semaphore.NewWeighted(int64(size)), size: size}
}

func (e *Executor) Size() int { return e.size }

// Task is a running executor task.
type Task struct {
	done    chan struct{}
	release func()
}

// Done is closed when the task function returns.
func (t *Task) Done() <-chan struct{} { return t.done }

// Abandon releases the slot of the task without waiting for it to return.
func (t *Task) Abandon() { t.release() }

// Go starts fn once a slot is available.
func (e *Executor) Go(ctx context.Context, fn func()) (*Task, error) {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	var once sync.Once
	t := &Task{
		done:    make(chan struct{}),
		release: func() { once.Do(func() { e.sem.Release(1) }) },
	}
	go func() {
		defer t.release()
		defer close(t.done)
		fn()
	}()
	return t, nil
}
