package bench

import (
	"context"
	"time"
)

// Operation is a single unit of work in a mix. Its id is its index in the
// mix.
type Operation interface {
	Name() string
	Type() string

	// CanRun reports whether the operation can be executed with the given
	// options, e.g. whether the required endpoints are configured.
	CanRun(opts *Options) bool

	Execute(ctx context.Context, opts *Options) (Result, error)

	// Content is a human readable representation of the operation
	// payload, used in reports.
	Content() string
}

// SanityChecker is implemented by operations that can verify their
// preconditions against the target before a run starts.
type SanityChecker interface {
	SanityCheck(ctx context.Context, opts *Options) error
}

// Result is returned by a successful operation execution.
type Result struct {
	ResultCount int64

	// ResponseTime is the time until the first response byte was
	// received. Zero means the full runtime is used.
	ResponseTime time.Duration
}
