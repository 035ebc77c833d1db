package bench

import (
	"time"
)

// UnknownID marks runs whose operation id is embedded later.
const UnknownID = -1

// Sample is a single recorded execution as seen by the statistics.
type Sample interface {
	Runtime() time.Duration
	ResponseTime() time.Duration
	Successful() bool
	Category() ErrorCategory
	ResultCount() int64
	Started() time.Time
}

// OperationRun is the outcome of one execution attempt of an operation.
type OperationRun struct {
	id           int
	order        int64
	started      time.Time
	runtime      time.Duration
	responseTime time.Duration
	resultCount  int64
	category     ErrorCategory
	message      string
}

func NewSuccessRun(id int, order int64, started time.Time, runtime, responseTime time.Duration, results int64) *OperationRun {
	if responseTime <= 0 || responseTime > runtime {
		responseTime = runtime
	}
	return &OperationRun{
		id:           id,
		order:        order,
		started:      started,
		runtime:      runtime,
		responseTime: responseTime,
		resultCount:  results,
	}
}

func NewFailedRun(id int, order int64, started time.Time, runtime time.Duration, category ErrorCategory, message string) *OperationRun {
	if category == ErrorNone {
		category = ErrorExecution
	}
	return &OperationRun{
		id:           id,
		order:        order,
		started:      started,
		runtime:      runtime,
		responseTime: runtime,
		category:     category,
		message:      message,
	}
}

// WithID returns a copy of the run carrying id.
func (r *OperationRun) WithID(id int) *OperationRun {
	cp := *r
	cp.id = id
	return &cp
}

func (r *OperationRun) ID() int                     { return r.id }
func (r *OperationRun) Order() int64                { return r.order }
func (r *OperationRun) Started() time.Time          { return r.started }
func (r *OperationRun) Runtime() time.Duration      { return r.runtime }
func (r *OperationRun) ResponseTime() time.Duration { return r.responseTime }
func (r *OperationRun) ResultCount() int64          { return r.resultCount }
func (r *OperationRun) Category() ErrorCategory     { return r.category }
func (r *OperationRun) Message() string             { return r.message }
func (r *OperationRun) Successful() bool            { return r.category == ErrorNone }

// OperationMixRun is the outcome of one pass over a mix.
type OperationMixRun struct {
	order   int64
	runs    []*OperationRun
	fastest *OperationRun
	slowest *OperationRun
	runtime time.Duration
}

func NewMixRun(order int64, runs []*OperationRun) *OperationMixRun {
	mr := &OperationMixRun{order: order, runs: runs}
	for _, r := range runs {
		mr.runtime += r.Runtime()
		if mr.fastest == nil || r.Runtime() < mr.fastest.Runtime() {
			mr.fastest = r
		}
		if mr.slowest == nil || r.Runtime() > mr.slowest.Runtime() {
			mr.slowest = r
		}
	}
	return mr
}

func (m *OperationMixRun) Order() int64           { return m.order }
func (m *OperationMixRun) Runs() []*OperationRun  { return m.runs }
func (m *OperationMixRun) Runtime() time.Duration { return m.runtime }

// Fastest returns the quickest operation run of the pass, nil if empty.
func (m *OperationMixRun) Fastest() *OperationRun { return m.fastest }

// Slowest returns the slowest operation run of the pass, nil if empty.
func (m *OperationMixRun) Slowest() *OperationRun { return m.slowest }

func (m *OperationMixRun) ResponseTime() time.Duration {
	var d time.Duration
	for _, r := range m.runs {
		d += r.ResponseTime()
	}
	return d
}

func (m *OperationMixRun) ResultCount() int64 {
	var n int64
	for _, r := range m.runs {
		n += r.ResultCount()
	}
	return n
}

func (m *OperationMixRun) Successful() bool {
	return m.Category() == ErrorNone
}

// Category is the category of the first failed run in the pass.
func (m *OperationMixRun) Category() ErrorCategory {
	for _, r := range m.runs {
		if !r.Successful() {
			return r.Category()
		}
	}
	return ErrorNone
}

func (m *OperationMixRun) Started() time.Time {
	var t time.Time
	for _, r := range m.runs {
		if t.IsZero() || r.Started().Before(t) {
			t = r.Started()
		}
	}
	return t
}

// Errors counts the failed operation runs in the pass.
func (m *OperationMixRun) Errors() int {
	n := 0
	for _, r := range m.runs {
		if !r.Successful() {
			n++
		}
	}
	return n
}
