package runner

import (
	"context"
	"errors"
	"fmt"

	"sparqlbench/api/benchapi"
	"sparqlbench/internal/bench"
)

// Validate checks the run configuration and, depending on
// opts.SanityCheckLevel, the operations of the mix.
//
// Level 1 checks whether every operation can run with opts, level 2 also
// runs the sanity checks of operations implementing bench.SanityChecker.
func (r *Runner) Validate(ctx context.Context, mode benchapi.Mode, opts *bench.Options, mix *bench.OperationMix) error {
	if mix.Size() == 0 {
		return bench.ErrEmptyMix
	}
	if r.MixRunner == nil {
		return errors.New("no mix runner configured")
	}

	var errs []error
	switch mode {
	case benchapi.ModeBenchmark, "":
		if opts.Runs <= 0 {
			errs = append(errs, fmt.Errorf("benchmark requires runs > 0, got %d", opts.Runs))
		} else if 2*opts.Outliers >= opts.Runs {
			errs = append(errs, fmt.Errorf("%d outliers require more than %d runs", opts.Outliers, 2*opts.Outliers))
		}
	case benchapi.ModeStress:
		if opts.RampUpFactor < 2 {
			errs = append(errs, fmt.Errorf("ramp up factor must be >= 2, got %d", opts.RampUpFactor))
		}
		if opts.MaxThreads < max(opts.Parallel, 1) {
			errs = append(errs, fmt.Errorf("max threads %d below parallel clients %d", opts.MaxThreads, opts.Parallel))
		}
	}
	if opts.Outliers < 0 {
		errs = append(errs, errors.New("outliers must not be negative"))
	}

	if opts.SanityCheckLevel >= 1 {
		for id, op := range mix.Operations() {
			if !op.CanRun(opts) {
				errs = append(errs, fmt.Errorf("operation %s can not run with the current configuration", mix.OpLabel(id)))
			}
		}
	}
	if opts.SanityCheckLevel >= 2 && len(errs) == 0 {
		for id, op := range mix.Operations() {
			sc, ok := op.(bench.SanityChecker)
			if !ok {
				continue
			}
			if err := sc.SanityCheck(ctx, opts); err != nil {
				errs = append(errs, fmt.Errorf("sanity check of operation %s: %w", mix.OpLabel(id), err))
			}
		}
	}

	return errors.Join(errs...)
}
