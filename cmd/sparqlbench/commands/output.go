package commands

import (
	"fmt"
	"io"
	"maps"
	"os"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"sparqlbench/api/benchapi"
	"sparqlbench/internal/report"
)

func writeOutputs(registry *prometheus.Registry, summary benchapi.RunSummary, output outputFlags) error {
	if output.out != "" {
		if err := writeFile(output.out, func(w io.Writer) error {
			return report.WriteSummaryJSON(w, summary)
		}); err != nil {
			return fmt.Errorf("write summary: %w", err)
		}
	}

	if output.metricsOut == "" && !output.printMetrics {
		return nil
	}

	families, err := registry.Gather()
	if err != nil {
		return fmt.Errorf("gather metrics: %w", err)
	}

	if output.metricsOut != "" {
		if err := writeFile(output.metricsOut, func(w io.Writer) error {
			return writeMetrics(w, families)
		}); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	if output.printMetrics {
		for _, mf := range families {
			reportMetric(os.Stdout, mf, "	")
		}
	}
	return nil
}

func writeFile(path string, fn func(io.Writer) error) error {
	if path == "-" {
		return fn(os.Stdout)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeMetrics(w io.Writer, families []*dto.MetricFamily) error {
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

func reportMetricFamilies(w io.Writer, families map[string]*dto.MetricFamily) {
	for _, key := range slices.Sorted(maps.Keys(families)) {
		reportMetric(w, families[key], "	")
	}
}

func reportMetric(w io.Writer, mf *dto.MetricFamily, indent string) {
	metrics := mf.GetMetric()
	if len(metrics) == 0 {
		return
	}

	name := mf.GetName()
	if unit := mf.GetUnit(); unit != "" {
		fmt.Fprintf(w, "%s%s (%s)", indent, name, unit)
	} else {
		fmt.Fprintf(w, "%s%s", indent, name)
	}

	withIndent := false
	if len(metrics) > 1 {
		withIndent = true
		fmt.Fprintln(w)
	}

	mt := mf.GetType()
	for _, metric := range metrics {
		if withIndent {
			fmt.Fprint(w, indent, indent)
		}

		if labels := metric.GetLabel(); len(labels) > 0 {
			fmt.Fprint(w, "{")
			for i, pair := range labels {
				if i > 0 {
					fmt.Fprint(w, ", ")
				}
				fmt.Fprintf(w, "%s: %s", pair.GetName(), pair.GetValue())
			}
			fmt.Fprint(w, "}")
		}
		fmt.Fprint(w, ": ")

		switch mt {
		case dto.MetricType_COUNTER:
			fmt.Fprintf(w, "%v", metric.GetCounter().GetValue())
		case dto.MetricType_GAUGE:
			fmt.Fprintf(w, "%v", metric.GetGauge().GetValue())
		case dto.MetricType_HISTOGRAM:
			hist := metric.GetHistogram()
			samples := hist.GetSampleCount()
			sum := hist.GetSampleSum()
			avg := 0.0
			if samples > 0 {
				avg = sum / float64(samples)
			}
			fmt.Fprintf(w, "samples=%v, sum=%v, avg=%v", samples, sum, avg)

			lowerBound := 0.0
			lastCount := uint64(0)
			for _, bucket := range hist.GetBucket() {
				count := bucket.GetCumulativeCount() - lastCount
				if count > 0 {
					fmt.Fprintln(w)
					fmt.Fprint(w, indent, indent, indent)
					fmt.Fprintf(w, "lower=%v, upper=%v, count=%v", lowerBound, bucket.GetUpperBound(), count)
				}
				lowerBound = bucket.GetUpperBound()
				lastCount = bucket.GetCumulativeCount()
			}
		default:
			fmt.Fprintf(w, "%v", metric.GetUntyped().GetValue())
		}
		fmt.Fprintln(w)
	}
}
