package oprun

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"

	"sparqlbench/internal/bench"
)

var errAttemptFailed = errors.New("operation attempt failed")

// Retrying retries failed operations up to opts.MaxRetries times, waiting
// with exponential backoff starting at opts.RetryInterval. The halt policy
// is applied to the final attempt only.
type Retrying struct {
	Default Default
}

var _ Runner = Retrying{}

func (r Retrying) Run(
	ctx context.Context,
	rep bench.Reporter,
	opts *bench.Options,
	mix *bench.OperationMix,
	id int,
) (*bench.OperationRun, error) {
	maxTries := uint(max(opts.MaxRetries, 0) + 1)

	var (
		last    *bench.OperationRun
		attempt uint
		repErr  error
	)
	operation := func() (*bench.OperationRun, error) {
		attempt++
		run := r.Default.Execute(ctx, opts, mix, id)
		last = run
		if run.Successful() {
			return run, nil
		}
		if run.Category() == bench.ErrorInterrupt || ctx.Err() != nil {
			return run, backoff.Permanent(errAttemptFailed)
		}
		if attempt < maxTries {
			if err := bench.Progressf(rep, "Operation %s failed (attempt %d/%d): %s",
				mix.OpLabel(id), attempt, maxTries, run.Message()); err != nil {
				repErr = err
				return run, backoff.Permanent(err)
			}
		}
		return run, errAttemptFailed
	}

	// The outcome is tracked in last, the returned error only tells why
	// retrying stopped.
	_, _ = backoff.Retry(ctx, operation,
		backoff.WithBackOff(retryBackOff(opts.RetryInterval)),
		backoff.WithMaxTries(maxTries),
	)
	if last == nil {
		last = r.Default.Execute(ctx, opts, mix, id)
	}
	if repErr != nil {
		return last, repErr
	}
	return last, HaltDecision(opts, mix, last)
}

func retryBackOff(interval time.Duration) backoff.BackOff {
	if interval <= 0 {
		return &backoff.ZeroBackOff{}
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = interval
	b.MaxInterval = 30 * interval
	return b
}
