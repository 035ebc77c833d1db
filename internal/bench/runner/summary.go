package runner

import (
	"slices"
	"time"

	"sparqlbench/api/benchapi"
	"sparqlbench/internal/bench"
)

// Summarize converts the statistics of a finished run into its result
// document.
func Summarize(res *Result) benchapi.RunSummary {
	mix := res.Mix
	st := mix.Stats()

	summary := benchapi.RunSummary{
		ID:      res.ID.String(),
		Mode:    res.Mode,
		Mix:     mix.Name(),
		Started: res.Started,
		Elapsed: benchapi.Duration{Duration: res.Elapsed},
		Threads: res.Threads,
		Timeout: benchapi.Duration{Duration: res.Timeout},
		Runs: benchapi.MixStats{
			Count:       st.Count(),
			TotalMS:     millis(st.TotalRuntime()),
			AvgMS:       millis(st.AverageRuntime()),
			GeoAvgMS:    millis(st.GeometricAverageRuntime()),
			StddevMS:    millis(st.StandardDeviation()),
			MinMS:       millis(st.MinRuntime()),
			MaxMS:       millis(st.MaxRuntime()),
			PerHour:     st.OperationsPerHour(),
			ActualPerHr: st.ActualOperationsPerHour(),
		},
		Errors: benchapi.ErrStats{Categories: map[string]int64{}},
	}
	for _, id := range res.Excluded {
		summary.Excluded = append(summary.Excluded, mix.OpLabel(id))
	}

	if id := mix.FastestOperation(); id >= 0 {
		summary.Runs.Fastest = mix.Op(id).Name()
	}
	if id := mix.SlowestOperation(); id >= 0 {
		summary.Runs.Slowest = mix.Op(id).Name()
	}
	if raw := st.RawCount(); raw > 0 {
		ok := int64(raw) - st.Errors()
		summary.Runs.SuccessRatio = benchapi.Percentage(float64(ok) / float64(raw) * 100)
	}

	for id, op := range mix.Operations() {
		os := mix.OpStats(id)
		summary.Ops = append(summary.Ops, benchapi.OpStats{
			ID:        id,
			Operation: op.Name(),
			Type:      op.Type(),
			Count:     os.Count(),
			Errors:    os.Errors(),
			Results:   os.TotalResults(),
			Sum:       millis(os.TotalRuntime()),
			Avg:       millis(os.AverageRuntime()),
			GeoAvg:    millis(os.GeometricAverageRuntime()),
			Median:    millis(os.Percentile(50)),
			P95:       millis(os.Percentile(95)),
			Min:       millis(os.MinRuntime()),
			Max:       millis(os.MaxRuntime()),
			Stddev:    millis(os.StandardDeviation()),
			PerSecond: os.OperationsPerSecond(),
			Excluded:  slices.Contains(res.Excluded, id),
		})

		summary.Errors.Total += os.Errors()
		for cat, n := range os.CategorizedErrors() {
			if cat != bench.ErrorNone {
				summary.Errors.Categories[cat.String()] += n
			}
		}
	}
	return summary
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
