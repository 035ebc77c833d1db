// Package mixrun runs single passes over an operation mix.
package mixrun

import (
	"context"
	"fmt"
	"time"

	"sparqlbench/internal/bench"
	"sparqlbench/internal/bench/oprun"
	"sparqlbench/internal/bench/order"
	"sparqlbench/pkg/prop"
)

type Phase int

const (
	PhaseRun Phase = iota
	PhaseWarmup
)

func (p Phase) String() string {
	if p == PhaseWarmup {
		return "warmup"
	}
	return "run"
}

// MixRunner executes one pass over a mix. Errors returned by Run and Warmup
// either stop the run (e.g. *bench.HaltError) or report an invalid mix.
type MixRunner interface {
	OperationOrder(opts *bench.Options, mix *bench.OperationMix) []int
	Run(ctx context.Context, rep bench.Reporter, opts *bench.Options, mix *bench.OperationMix, phase Phase) (*bench.OperationMixRun, error)
	Warmup(ctx context.Context, rep bench.Reporter, opts *bench.Options, mix *bench.OperationMix) (*bench.OperationMixRun, error)
}

// Default executes the operations in the order of its provider and records
// every result in the mix statistics.
type Default struct {
	Order      order.Provider
	Operations oprun.Runner

	// ReportOrder reports the operation order of every pass as progress.
	ReportOrder bool
}

var _ MixRunner = (*Default)(nil)

func NewDefault(provider order.Provider, ops oprun.Runner) *Default {
	if provider == nil {
		provider = order.Default{}
	}
	if ops == nil {
		ops = oprun.Default{}
	}
	return &Default{Order: provider, Operations: ops}
}

func (d *Default) OperationOrder(opts *bench.Options, mix *bench.OperationMix) []int {
	return d.Order.Order(opts, mix)
}

func (d *Default) Warmup(ctx context.Context, rep bench.Reporter, opts *bench.Options, mix *bench.OperationMix) (*bench.OperationMixRun, error) {
	return d.Run(ctx, rep, opts, mix, PhaseWarmup)
}

func (d *Default) Run(
	ctx context.Context,
	rep bench.Reporter,
	opts *bench.Options,
	mix *bench.OperationMix,
	phase Phase,
) (*bench.OperationMixRun, error) {
	if mix.Size() == 0 {
		return nil, bench.ErrEmptyMix
	}

	runOrder := opts.GlobalOrder()
	ids := d.OperationOrder(opts, mix)
	if len(ids) == 0 {
		return nil, bench.ErrNoOperations
	}
	if d.ReportOrder {
		if err := bench.Progressf(rep, "Operation order for %s %d: %v", phase, runOrder, ids); err != nil {
			return nil, err
		}
	}

	if err := rep.BeforeMix(mix); err != nil {
		return nil, err
	}

	delay := prop.UniformJitterDuration(0, opts.MaxDelay)
	runs := make([]*bench.OperationRun, 0, len(ids))
	for i, id := range ids {
		run, err := d.runOperation(ctx, rep, opts, mix, id)
		if run != nil {
			runs = append(runs, run)
		}
		if err != nil {
			return bench.NewMixRun(runOrder, runs), err
		}

		if opts.MaxDelay > 0 && i < len(ids)-1 {
			// An interrupted delay is not an error, the next operation
			// observes the cancelled context.
			_ = delay.Wait(ctx)
		}
	}

	mixRun := bench.NewMixRun(runOrder, runs)
	mix.AddMixRun(mixRun)
	if err := rep.AfterMix(mix, mixRun); err != nil {
		return mixRun, err
	}
	return mixRun, nil
}

func (d *Default) runOperation(
	ctx context.Context,
	rep bench.Reporter,
	opts *bench.Options,
	mix *bench.OperationMix,
	id int,
) (*bench.OperationRun, error) {
	if err := rep.BeforeOperation(mix, id); err != nil {
		return nil, err
	}

	run, haltErr := d.Operations.Run(ctx, rep, opts, mix, id)
	if run == nil {
		return nil, haltErr
	}
	if run.ID() == bench.UnknownID {
		run = run.WithID(id)
	}
	if err := mix.AddOperationRun(run); err != nil {
		return run, err
	}

	if err := rep.AfterOperation(mix, run); err != nil {
		return run, err
	}
	if err := rep.Progress(describeRun(mix, run)); err != nil {
		return run, err
	}
	return run, haltErr
}

func describeRun(mix *bench.OperationMix, run *bench.OperationRun) string {
	rt := run.Runtime().Round(time.Microsecond)
	if run.Successful() {
		return fmt.Sprintf("Operation %s returned %d results in %v", mix.OpLabel(run.ID()), run.ResultCount(), rt)
	}
	return fmt.Sprintf("Operation %s FAILED with %v after %v: %s", mix.OpLabel(run.ID()), run.Category(), rt, run.Message())
}
