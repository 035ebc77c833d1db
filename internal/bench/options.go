package bench

import (
	"sync"
	"sync/atomic"
	"time"
)

type HaltBehaviour int

const (
	// HaltThrow returns a *HaltError to the caller.
	HaltThrow HaltBehaviour = iota
	// HaltExit terminates the process after listeners were notified.
	HaltExit
)

// Config holds the plain run settings shared by copies of Options.
type Config struct {
	Parallel    int
	RandomOrder bool
	MaxDelay    time.Duration

	HaltOnTimeout bool
	HaltOnError   bool
	HaltAny       bool
	HaltBehaviour HaltBehaviour

	SanityCheckLevel int

	SampleSize    int
	SampleRepeats bool

	Runs       int
	WarmupRuns int
	Outliers   int

	MaxRuntime   time.Duration
	MaxThreads   int
	RampUpFactor int

	MaxRetries    int
	RetryInterval time.Duration

	ProgressInterval time.Duration

	Authenticator Authenticator
}

// Authenticator is the shared credential provider of a run. Invalidate
// must be idempotent and safe for concurrent use.
type Authenticator interface {
	Invalidate()
}

// Options is the mutable run configuration. The timeout and the exclusion
// set may be changed while a run is in progress.
type Options struct {
	Config

	timeout atomic.Int64

	mu       sync.Mutex
	excludes *IDSet
	session  *Session
}

func NewOptions(cfg Config) *Options {
	return &Options{Config: cfg}
}

// Timeout is the per operation timeout. Values <= 0 disable the timeout.
func (o *Options) Timeout() time.Duration {
	return time.Duration(o.timeout.Load())
}

func (o *Options) SetTimeout(d time.Duration) {
	o.timeout.Store(int64(d))
}

// OperationExcludes returns the exclusion set of this Options instance.
// Repeated calls return the same set.
func (o *Options) OperationExcludes() *IDSet {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.excludes == nil {
		o.excludes = NewIDSet()
	}
	return o.excludes
}

// Session returns the state shared between all copies of the options.
func (o *Options) Session() *Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.session == nil {
		o.session = NewSession(max(o.MaxThreads, o.Parallel, 1))
	}
	return o.session
}

// WithSession replaces the session. Must be called before the options are
// shared.
func (o *Options) WithSession(s *Session) *Options {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.session = s
	return o
}

func (o *Options) GlobalOrder() int64 { return o.Session().GlobalOrder() }
func (o *Options) ResetGlobalOrder()  { o.Session().ResetGlobalOrder() }

// Copy returns an independent snapshot that shares the session with o but
// owns its timeout and exclusion set.
func (o *Options) Copy() *Options {
	c := &Options{Config: o.Config}
	c.timeout.Store(o.timeout.Load())
	c.session = o.Session()
	return c
}

func (o *Options) HaltsOnTimeout() bool   { return o.HaltOnTimeout || o.HaltAny }
func (o *Options) HaltsOnError() bool     { return o.HaltOnError || o.HaltAny }
func (o *Options) HaltsOnInterrupt() bool { return o.HaltAny }

// Session is the process level state of a run: order counters and the
// operation executor.
type Session struct {
	mixOrder atomic.Int64
	opOrder  atomic.Int64
	executor *Executor
}

func NewSession(executorSize int) *Session {
	return &Session{executor: NewExecutor(executorSize)}
}

// GlobalOrder returns the next mix run order. Values are unique and
// strictly increasing, starting at 1.
func (s *Session) GlobalOrder() int64 {
	return s.mixOrder.Add(1)
}

func (s *Session) NextOperationOrder() int64 {
	return s.opOrder.Add(1)
}

func (s *Session) ResetGlobalOrder() {
	s.mixOrder.Store(0)
	s.opOrder.Store(0)
}

func (s *Session) Executor() *Executor {
	return s.executor
}
