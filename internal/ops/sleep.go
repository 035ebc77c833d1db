package ops

import (
	"context"
	"time"

	"sparqlbench/internal/bench"
	"sparqlbench/pkg/timeutil"
)

const TypeSleep = "sleep"

// Sleep waits for Duration. Useful to simulate think time or to test
// timeouts.
type Sleep struct {
	OpName   string
	Duration time.Duration
}

func (s *Sleep) Name() string               { return s.OpName }
func (s *Sleep) Type() string               { return TypeSleep }
func (s *Sleep) Content() string            { return s.Duration.String() }
func (s *Sleep) CanRun(*bench.Options) bool { return true }

func (s *Sleep) Execute(ctx context.Context, _ *bench.Options) (bench.Result, error) {
	return bench.Result{}, timeutil.Sleep(ctx, s.Duration)
}
