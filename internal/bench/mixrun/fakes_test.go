package mixrun

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"sparqlbench/internal/bench"
	"sparqlbench/internal/bench/oprun"
	"sparqlbench/internal/bench/order"
)

type fakeOp struct {
	name  string
	calls atomic.Int64
	exec  func(ctx context.Context, call int64) (bench.Result, error)
}

func (o *fakeOp) Name() string               { return o.name }
func (o *fakeOp) Type() string               { return "fake" }
func (o *fakeOp) CanRun(*bench.Options) bool { return true }
func (o *fakeOp) Content() string            { return o.name }
func (o *fakeOp) Execute(ctx context.Context, _ *bench.Options) (bench.Result, error) {
	return o.exec(ctx, o.calls.Add(1))
}

func sleepingOp(name string, d time.Duration) *fakeOp {
	return &fakeOp{name: name, exec: func(ctx context.Context, _ int64) (bench.Result, error) {
		select {
		case <-time.After(d):
			return bench.Result{ResultCount: 1}, nil
		case <-ctx.Done():
			return bench.Result{}, ctx.Err()
		}
	}}
}

func hangingOp(name string) *fakeOp {
	return &fakeOp{name: name, exec: func(ctx context.Context, _ int64) (bench.Result, error) {
		<-ctx.Done()
		return bench.Result{}, ctx.Err()
	}}
}

// stuckOp ignores its context and returns after d.
func stuckOp(name string, d time.Duration) *fakeOp {
	return &fakeOp{name: name, exec: func(context.Context, int64) (bench.Result, error) {
		time.Sleep(d)
		return bench.Result{}, nil
	}}
}

// failingOp fails with an execution error for the first n calls.
func failingOp(name string, n int64) *fakeOp {
	return &fakeOp{name: name, exec: func(_ context.Context, call int64) (bench.Result, error) {
		if n < 0 || call <= n {
			return bench.Result{}, errors.New("boom")
		}
		return bench.Result{ResultCount: 2}, nil
	}}
}

type recorder struct {
	bench.NopListener
	progress []string
	after    []*bench.OperationRun
}

func (r *recorder) Progress(msg string) error {
	r.progress = append(r.progress, msg)
	return nil
}

func (r *recorder) AfterOperation(_ *bench.OperationMix, run *bench.OperationRun) error {
	r.after = append(r.after, run)
	return nil
}

func newIntelligent(threshold int) *Intelligent {
	base := NewDefault(order.InOrder{Excluding: true}, oprun.Default{})
	in, err := NewIntelligent(base, threshold, DefaultTimeoutTuningFactor)
	if err != nil {
		panic(err)
	}
	return in
}

func ranIDs(run *bench.OperationMixRun) []int {
	ids := []int{}
	for _, r := range run.Runs() {
		ids = append(ids, r.ID())
	}
	return ids
}
