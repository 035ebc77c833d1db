package report

import (
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"

	"github.com/fatih/color"
	jsoniter "github.com/json-iterator/go"
	"github.com/olekukonko/tablewriter"

	"sparqlbench/api/benchapi"
)

var (
	bold   = color.New(color.Bold)
	red    = color.New(color.FgRed)
	yellow = color.New(color.FgYellow)
)

// RenderSummary prints a run summary as tables.
func RenderSummary(w io.Writer, s benchapi.RunSummary) error {
	bold.Fprintf(w, "\nRun %s: %s of mix %s\n", s.ID, s.Mode, s.Mix)
	fmt.Fprintf(w, "Elapsed %v, %d clients, timeout %v\n\n", s.Elapsed.Duration, s.Threads, s.Timeout.Duration)

	mixTable := tablewriter.NewWriter(w)
	mixTable.Header("Runs", "Total", "Avg", "Geo Avg", "Stddev", "Min", "Max", "Per Hour", "Actual/h", "Success")
	_ = mixTable.Append(
		strconv.FormatInt(s.Runs.Count, 10),
		formatMS(s.Runs.TotalMS),
		formatMS(s.Runs.AvgMS),
		formatMS(s.Runs.GeoAvgMS),
		formatMS(s.Runs.StddevMS),
		formatMS(s.Runs.MinMS),
		formatMS(s.Runs.MaxMS),
		fmt.Sprintf("%.1f", s.Runs.PerHour),
		fmt.Sprintf("%.1f", s.Runs.ActualPerHr),
		fmt.Sprintf("%.2f%%", float64(s.Runs.SuccessRatio)),
	)
	if err := mixTable.Render(); err != nil {
		return fmt.Errorf("render mix table: %w", err)
	}
	if s.Runs.Fastest != "" {
		fmt.Fprintf(w, "Fastest operation: %s, slowest operation: %s\n", s.Runs.Fastest, s.Runs.Slowest)
	}
	fmt.Fprintln(w)

	opTable := tablewriter.NewWriter(w)
	opTable.Header("ID", "Operation", "Type", "Count", "Errors", "Results", "Avg", "Geo Avg", "Median", "P95", "Min", "Max", "Ops/s")
	for _, op := range s.Ops {
		name := op.Operation
		if op.Excluded {
			name += " (excluded)"
		}
		_ = opTable.Append(
			strconv.Itoa(op.ID),
			name,
			op.Type,
			strconv.FormatInt(op.Count, 10),
			strconv.FormatInt(op.Errors, 10),
			strconv.FormatInt(op.Results, 10),
			formatMS(op.Avg),
			formatMS(op.GeoAvg),
			formatMS(op.Median),
			formatMS(op.P95),
			formatMS(op.Min),
			formatMS(op.Max),
			fmt.Sprintf("%.2f", op.PerSecond),
		)
	}
	if err := opTable.Render(); err != nil {
		return fmt.Errorf("render operation table: %w", err)
	}

	if s.Errors.Total == 0 {
		return nil
	}
	red.Fprintf(w, "\n%d errors\n", s.Errors.Total)
	for _, cat := range slices.Sorted(maps.Keys(s.Errors.Categories)) {
		yellow.Fprintf(w, "  %-20s %d\n", cat, s.Errors.Categories[cat])
	}
	return nil
}

func formatMS(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64) + "ms"
}

// WriteSummaryJSON writes the summary as indented JSON.
func WriteSummaryJSON(w io.Writer, s benchapi.RunSummary) error {
	enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// ReadSummaryJSON decodes a summary written by WriteSummaryJSON.
func ReadSummaryJSON(r io.Reader) (benchapi.RunSummary, error) {
	var s benchapi.RunSummary
	err := jsoniter.ConfigCompatibleWithStandardLibrary.NewDecoder(r).Decode(&s)
	return s, err
}
