// run_summary combines run summaries written by `sparqlbench --out` or
// `sparqlbench remote results` into one table with averages and medians.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	jsoniter "github.com/json-iterator/go"

	"sparqlbench/api/benchapi"
	"sparqlbench/pkg/stats"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type Document struct {
	benchapi.RunSummary
	Workers []benchapi.RunSummary `json:"workers"`
}

type RunnerSummary struct {
	MixesPerHour float64 `json:"mixesPerHour"`
	AvgMixMS     float64 `json:"avgMixMS"`
	OpsCount     int64   `json:"opsCount"`
	OpsErrCount  int64   `json:"opsErrCount"`
	OpsTimeMS    float64 `json:"opsTimeMS"`
	Results      int64   `json:"results"`
}

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		log.Fatal("At least one filename is required as a positional argument.")
	}

	var allSummaries []RunnerSummary
	for _, filename := range flag.Args() {
		summary, err := fileSummary(filename)
		if err != nil {
			log.Fatalf("Failed to get file summary for %s: %v", filename, err)
		}

		allSummaries = append(allSummaries, summary)
	}

	finalStats := combinedStats(allSummaries)

	header := func() {
		fmt.Printf("%-15s %-15s %-15s %-15s %-15s %-15s\n", "mixes/h", "avgMixMS", "opsCount", "opsErrCount", "opsTimeMS", "results")
		fmt.Printf("%-15s %-15s %-15s %-15s %-15s %-15s\n", "---------------", "---------------", "---------------", "---------------", "---------------", "---------------")
	}

	fmt.Println("\nSummary Table:")
	header()
	for _, summary := range allSummaries {
		fmt.Printf("%-15.2f %-15.2f %-15d %-15d %-15.2f %-15d\n",
			summary.MixesPerHour,
			summary.AvgMixMS,
			summary.OpsCount,
			summary.OpsErrCount,
			summary.OpsTimeMS,
			summary.Results)
	}

	fmt.Printf("%-15s %-15s %-15s %-15s %-15s %-15s\n", "---------------", "---------------", "---------------", "---------------", "---------------", "---------------")
	for _, row := range []struct {
		name string
		s    CombinedStats
	}{
		{"Averages", finalStats.Averages},
		{"Medians", finalStats.Medians},
	} {
		fmt.Printf("%-15s\n%-15.2f %-15.2f %-15.2f %-15.2f %-15.2f %-15.2f\n",
			row.name,
			row.s.MixesPerHour,
			row.s.AvgMixMS,
			row.s.OpsCount,
			row.s.OpsErrCount,
			row.s.OpsTimeMS,
			row.s.Results)
	}
}

// fileSummary reads a single run summary or a multi worker report. Worker
// summaries of a report are added up.
func fileSummary(filename string) (RunnerSummary, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return RunnerSummary{}, fmt.Errorf("read file: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return RunnerSummary{}, fmt.Errorf("unmarshal JSON: %w", err)
	}

	runs := doc.Workers
	if len(runs) == 0 {
		runs = []benchapi.RunSummary{doc.RunSummary}
	}

	var res RunnerSummary
	for _, run := range runs {
		res.MixesPerHour += run.Runs.ActualPerHr
		for _, op := range run.Ops {
			res.OpsCount += op.Count
			res.OpsErrCount += op.Errors
			res.OpsTimeMS += op.Sum
			res.Results += op.Results
		}
	}
	res.AvgMixMS = stats.SliceAverageFunc(runs, func(r benchapi.RunSummary) float64 { return r.Runs.AvgMS })
	return res, nil
}

type FinalStats struct {
	Averages CombinedStats `json:"averages"`
	Medians  CombinedStats `json:"medians"`
}

type CombinedStats struct {
	MixesPerHour float64 `json:"mixesPerHour"`
	AvgMixMS     float64 `json:"avgMixMS"`
	OpsCount     float64 `json:"opsCount"`
	OpsErrCount  float64 `json:"opsErrCount"`
	OpsTimeMS    float64 `json:"opsTimeMS"`
	Results      float64 `json:"results"`
}

func combinedStats(all []RunnerSummary) FinalStats {
	combine := func(agg func([]RunnerSummary, func(RunnerSummary) float64) float64) CombinedStats {
		return CombinedStats{
			MixesPerHour: agg(all, func(s RunnerSummary) float64 { return s.MixesPerHour }),
			AvgMixMS:     agg(all, func(s RunnerSummary) float64 { return s.AvgMixMS }),
			OpsCount:     agg(all, func(s RunnerSummary) float64 { return float64(s.OpsCount) }),
			OpsErrCount:  agg(all, func(s RunnerSummary) float64 { return float64(s.OpsErrCount) }),
			OpsTimeMS:    agg(all, func(s RunnerSummary) float64 { return s.OpsTimeMS }),
			Results:      agg(all, func(s RunnerSummary) float64 { return float64(s.Results) }),
		}
	}

	return FinalStats{
		Averages: combine(stats.SliceAverageFunc[RunnerSummary]),
		Medians:  combine(stats.SlicesMedianOf[RunnerSummary]),
	}
}
