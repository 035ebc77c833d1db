package mixrun

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"

	"sparqlbench/internal/bench"
)

const (
	DefaultFailureThreshold    = 3
	DefaultTimeoutTuningFactor = 2.0
)

var ErrInvalidTuningFactor = errors.New("timeout tuning factor must be greater than 1")

type intelligentState int

const (
	stateIdle intelligentState = iota
	stateWarmup
	stateRun
)

// Intelligent wraps another MixRunner and excludes misbehaving operations
// from further passes.
//
// Operations timing out during warmup are excluded right away. Operations
// whose failure count reaches the failure threshold are excluded in both
// phases. The failure count is cumulative over warmups and actual runs and
// is only reset together with the exclusions when a new warmup sequence
// starts. On the first actual run after warmups the timeout is tightened to
// the slowest observed warmup runtime times the tuning factor.
//
// The wrapped runner must use an order provider that honours the exclusion
// set.
type Intelligent struct {
	base             MixRunner
	failureThreshold int
	tuningFactor     float64

	mu        sync.Mutex
	state     intelligentState
	failures  map[int]int64
	warmupMax map[int]time.Duration
}

var _ MixRunner = (*Intelligent)(nil)

// NewIntelligent creates an adaptive runner. A negative failureThreshold
// disables exclusion by failure count.
func NewIntelligent(base MixRunner, failureThreshold int, tuningFactor float64) (*Intelligent, error) {
	if tuningFactor <= 1 {
		return nil, ErrInvalidTuningFactor
	}
	return &Intelligent{
		base:             base,
		failureThreshold: failureThreshold,
		tuningFactor:     tuningFactor,
		failures:         map[int]int64{},
		warmupMax:        map[int]time.Duration{},
	}, nil
}

func (in *Intelligent) OperationOrder(opts *bench.Options, mix *bench.OperationMix) []int {
	return in.base.OperationOrder(opts, mix)
}

func (in *Intelligent) Warmup(ctx context.Context, rep bench.Reporter, opts *bench.Options, mix *bench.OperationMix) (*bench.OperationMixRun, error) {
	return in.Run(ctx, rep, opts, mix, PhaseWarmup)
}

func (in *Intelligent) Run(
	ctx context.Context,
	rep bench.Reporter,
	opts *bench.Options,
	mix *bench.OperationMix,
	phase Phase,
) (*bench.OperationMixRun, error) {
	if err := in.enter(rep, opts, mix, phase); err != nil {
		return nil, err
	}

	mixRun, err := in.base.Run(ctx, rep, opts, mix, phase)
	if mixRun != nil {
		if rerr := in.inspect(rep, opts, mix, mixRun, phase); rerr != nil && err == nil {
			err = rerr
		}
	}
	return mixRun, err
}

func (in *Intelligent) enter(rep bench.Reporter, opts *bench.Options, mix *bench.OperationMix, phase Phase) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	switch phase {
	case PhaseWarmup:
		if in.state != stateWarmup {
			opts.OperationExcludes().Clear()
			clear(in.failures)
			clear(in.warmupMax)
			in.state = stateWarmup
		}
	case PhaseRun:
		if in.state == stateWarmup {
			in.state = stateRun
			return in.tuneTimeout(rep, opts, mix)
		}
		in.state = stateRun
	}
	return nil
}

func (in *Intelligent) inspect(
	rep bench.Reporter,
	opts *bench.Options,
	mix *bench.OperationMix,
	mixRun *bench.OperationMixRun,
	phase Phase,
) error {
	in.mu.Lock()
	defer in.mu.Unlock()

	excludes := opts.OperationExcludes()
	for _, run := range mixRun.Runs() {
		id := run.ID()
		if phase == PhaseWarmup && run.Runtime() > in.warmupMax[id] {
			in.warmupMax[id] = run.Runtime()
		}
		if run.Successful() {
			continue
		}

		if phase == PhaseWarmup && run.Category() == bench.ErrorTimeout {
			if excludes.Add(id) {
				if err := bench.Progressf(rep, "Excluding operation %s: timed out during warmup", mix.OpLabel(id)); err != nil {
					return err
				}
			}
			continue
		}

		in.failures[id]++
		if in.failureThreshold >= 0 && in.failures[id] >= int64(in.failureThreshold) {
			if excludes.Add(id) {
				if err := bench.Progressf(rep, "Excluding operation %s: %d failures reached threshold %d",
					mix.OpLabel(id), in.failures[id], in.failureThreshold); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (in *Intelligent) tuneTimeout(rep bench.Reporter, opts *bench.Options, mix *bench.OperationMix) error {
	excludes := opts.OperationExcludes()
	var slowest time.Duration
	for id, rt := range in.warmupMax {
		if !excludes.Contains(id) && rt > slowest {
			slowest = rt
		}
	}

	current := opts.Timeout()
	tuned, ok := TunedTimeout(current, slowest, in.tuningFactor)
	if !ok {
		return nil
	}
	opts.SetTimeout(tuned)
	return bench.Progressf(rep, "Tuned operation timeout from %v to %v", current, tuned)
}

// TunedTimeout returns ceil(seconds(slowest * factor)) as whole seconds and
// whether it tightens the current timeout. Disabled timeouts (<= 0) are
// never tuned.
func TunedTimeout(current, slowest time.Duration, factor float64) (time.Duration, bool) {
	if current <= 0 {
		return current, false
	}
	secs := math.Ceil(slowest.Seconds() * factor)
	tuned := time.Duration(secs) * time.Second
	if tuned <= 0 || tuned >= current {
		return current, false
	}
	return tuned, true
}

// Failures returns the cumulative failure count of an operation.
func (in *Intelligent) Failures(id int) int64 {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.failures[id]
}
