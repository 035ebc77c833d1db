package benchapi

import "time"

// RunSummary is the result document of a finished run.
type RunSummary struct {
	ID       string    `json:"id"`
	Mode     Mode      `json:"mode"`
	Mix      string    `json:"mix"`
	Started  time.Time `json:"started"`
	Elapsed  Duration  `json:"elapsed"`
	Threads  int       `json:"threads"`
	Timeout  Duration  `json:"timeout"`
	Excluded []string  `json:"excluded,omitempty"`

	Runs   MixStats  `json:"runs"`
	Ops    []OpStats `json:"operations"`
	Errors ErrStats  `json:"errors"`
}

type MixStats struct {
	Count        int64      `json:"count"`
	TotalMS      float64    `json:"total_ms"`
	AvgMS        float64    `json:"avg_ms"`
	GeoAvgMS     float64    `json:"geo_avg_ms"`
	StddevMS     float64    `json:"stddev_ms"`
	MinMS        float64    `json:"min_ms"`
	MaxMS        float64    `json:"max_ms"`
	PerHour      float64    `json:"per_hour"`
	ActualPerHr  float64    `json:"actual_per_hour"`
	Fastest      string     `json:"fastest_operation,omitempty"`
	Slowest      string     `json:"slowest_operation,omitempty"`
	SuccessRatio Percentage `json:"success_ratio"`
}

type OpStats struct {
	ID        int     `json:"id"`
	Operation string  `json:"operation"`
	Type      string  `json:"type"`
	Count     int64   `json:"count"`
	Errors    int64   `json:"errors"`
	Results   int64   `json:"results"`
	Sum       float64 `json:"sum_ms"`
	Avg       float64 `json:"avg_ms"`
	GeoAvg    float64 `json:"geo_avg_ms"`
	Median    float64 `json:"median_ms"`
	P95       float64 `json:"p95_ms"`
	Min       float64 `json:"min_ms"`
	Max       float64 `json:"max_ms"`
	Stddev    float64 `json:"stddev_ms"`
	PerSecond float64 `json:"per_second"`
	Excluded  bool    `json:"excluded,omitempty"`
}

type ErrStats struct {
	Total      int64            `json:"total"`
	Categories map[string]int64 `json:"categories,omitempty"`
}
