package benchapi

type Mode string

const (
	ModeBenchmark Mode = "benchmark"
	ModeSoak      Mode = "soak"
	ModeStress    Mode = "stress"
)

type OrderKind string

const (
	OrderDefault  OrderKind = "default"
	OrderInOrder  OrderKind = "in_order"
	OrderSampling OrderKind = "sampling"
)

type HaltBehaviour string

const (
	HaltExit  HaltBehaviour = "exit"
	HaltError HaltBehaviour = "error"
)

// RunConfig describes a complete test run. Unset values fall back to the
// documented defaults.
type RunConfig struct {
	// Test mode. Default: benchmark.
	Mode Mode `json:"mode"`

	Target Target    `json:"target"`
	Mix    MixConfig `json:"mix"`

	// Per operation timeout. 0 disables the timeout. Default: 5m.
	Timeout *Duration `json:"timeout"`

	// Number of concurrent clients. In stress mode the initial number. Default: 1.
	Parallel *int `json:"parallel"`

	// Number of mix runs. Default: 25 for benchmarks, unlimited for soak tests.
	Runs *int `json:"runs"`

	// Number of warmup mix runs. Default: 5 for benchmarks, 0 otherwise.
	Warmups *int `json:"warmups"`

	// Number of best and worst mix runs discarded from the results. Default: 1 for benchmarks.
	Outliers *int `json:"outliers"`

	// Maximum delay between operations. Default: 0.
	MaxDelay *Duration `json:"max_delay"`

	// Soak/stress test runtime limit. Default: 0 (unlimited).
	MaxRuntime *Duration `json:"max_runtime"`

	// Maximum number of clients in stress tests. Default: 1024.
	MaxThreads *int `json:"max_threads"`

	// Client multiplier applied between stress test rounds. Default: 2.
	RampUpFactor *int `json:"ramp_up_factor"`

	// Additional attempts for failed operations. Default: 0.
	Retries *int `json:"retries"`

	// Initial wait between retries. Default: 1s.
	RetryInterval *Duration `json:"retry_interval"`

	// 0: no checks, 1: operation capability checks, 2: also probe the endpoints. Default: 1.
	SanityCheckLevel *int `json:"sanity_check_level"`

	// Interval between live progress summaries. Default: 0 (disabled).
	ProgressInterval *Duration `json:"progress_interval"`

	Order    OrderConfig    `json:"order"`
	Halt     HaltConfig     `json:"halt"`
	Adaptive AdaptiveConfig `json:"adaptive"`
}

type Target struct {
	QueryEndpoint  string `json:"query_endpoint"`
	UpdateEndpoint string `json:"update_endpoint"`
	Username       string `json:"username"`
	Password       string `json:"password"`

	// URL to fetch bearer tokens from. Takes precedence over basic auth.
	TokenURL string `json:"token_url"`
}

type MixConfig struct {
	Name       string            `json:"name"`
	Operations []OperationConfig `json:"operations"`
}

type OperationConfig struct {
	Name string `json:"name"`

	// One of query, update, sleep, http.
	Type string `json:"type"`

	// Inline SPARQL query/update text or HTTP body.
	Query string `json:"query"`

	// File to read the query text from, relative to the config file.
	QueryFile string `json:"query_file"`

	// Overrides the target endpoint for this operation.
	Endpoint string `json:"endpoint"`

	// HTTP method for http operations. Default: GET.
	Method string `json:"method"`

	// Accept header. Default depends on the type.
	Accept string `json:"accept"`

	// Sleep duration for sleep operations.
	Duration *Duration `json:"duration"`
}

type OrderConfig struct {
	// Default: default.
	Kind OrderKind `json:"kind"`

	// Randomize the default order. Default: true.
	Random *bool `json:"random"`

	// Sample size for the sampling order. <= 0 uses the mix size.
	SampleSize *int `json:"sample_size"`

	// Allow repeated operations in samples. Default: false.
	Repeats *bool `json:"repeats"`

	// Report the operation order of every mix run as progress. Default: false.
	Report bool `json:"report"`
}

type HaltConfig struct {
	OnTimeout bool `json:"on_timeout"`
	OnError   bool `json:"on_error"`
	Any       bool `json:"any"`

	// Default: error.
	Behaviour HaltBehaviour `json:"behaviour"`
}

type AdaptiveConfig struct {
	Enabled bool `json:"enabled"`

	// Errors after which an operation is excluded. Negative disables. Default: 3.
	FailureThreshold *int `json:"failure_threshold"`

	// Multiplier for the slowest warmup operation to derive a timeout. Default: 2.
	TimeoutFactor *float64 `json:"timeout_factor"`
}
