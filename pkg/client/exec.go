package client

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"sync"
	"time"

	dto "github.com/prometheus/client_model/go"

	"sparqlbench/api/benchapi"
	"sparqlbench/pkg/stats"
)

const workPath = "work/sparql"

type RunStatus = benchapi.WorkerStatus[benchapi.Result[benchapi.RunSummary]]

// Report combines the run summaries of all workers.
type Report struct {
	Workers      []benchapi.RunSummary `json:"workers"`
	MixesPerHour stats.DistMetrics     `json:"mixes_per_hour"`
	AvgMixMS     stats.DistMetrics     `json:"avg_mix_ms"`
	Errors       int64                 `json:"errors"`
}

// Healthcheck reports whether all workers are idle and connected.
func (c *Client) Healthcheck(ctx context.Context) (idle bool, err error) {
	idle = true
	var mu sync.Mutex

	err = eachParallel(c.EachWorkerURL()).Do(ctx, func(ctx context.Context, url *url.URL) error {
		url = url.JoinPath("healthz")
		workerStatus, err := getJSON[benchapi.StatusCode](ctx, c, url)
		if err != nil {
			return fmt.Errorf("healthcheck %s: %w", url, err)
		}

		if workerStatus != benchapi.StatusIdle {
			mu.Lock()
			defer mu.Unlock()
			idle = false
		}
		return nil
	})

	return idle, err
}

func (c *Client) Prepare(ctx context.Context, cfg benchapi.RunConfig) error {
	return c.post(ctx, workPath+"/prepare", cfg)
}

func (c *Client) Run(ctx context.Context, cfg benchapi.RunConfig) error {
	return c.post(ctx, workPath+"/run", cfg)
}

func (c *Client) Cleanup(ctx context.Context) error {
	return c.post(ctx, workPath+"/cleanup", nil)
}

func (c *Client) Stop(ctx context.Context) error {
	return c.post(ctx, "work/stop", nil)
}

// WaitIdle polls the workers until all of them are idle.
func (c *Client) WaitIdle(ctx context.Context) error {
	ticker := time.NewTicker(c.pollInterval())
	defer ticker.Stop()

	for {
		idle, err := c.Healthcheck(ctx)
		if err != nil || idle {
			return err
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Client) Metrics(ctx context.Context) ([]map[string]*dto.MetricFamily, error) {
	type metricsCollector = runResultCollector[map[string]*dto.MetricFamily]
	collector := metricsCollector{
		client:  c.client,
		path:    []string{"metrics"},
		Decoder: PromDecoder,
	}
	return collector.Collect(ctx, c.EachWorkerURL(), false)
}

// Results collects the summaries of the last run of every worker.
func (c *Client) Results(ctx context.Context, wait bool, allowErr bool) (report Report, err error) {
	type runCollector = runResultCollector[RunStatus]

	collector := runCollector{
		client:       c.client,
		path:         []string{"status"},
		pollInterval: c.pollInterval(),
		Validate:     ValidateStatus[benchapi.RunSummary](benchapi.TaskRun, allowErr),
		Decoder:      JSONDecoder[RunStatus],
	}
	status, err := collector.Collect(ctx, c.EachWorkerURL(), wait)
	if err != nil {
		return report, err
	}

	var results []benchapi.RunSummary
	for _, s := range status {
		if s.Last != nil && s.Last.Error == nil {
			results = append(results, s.Last.Value)
		}
	}

	report = Report{
		Workers:      results,
		MixesPerHour: stats.DistMetricStatsFrom(results, func(r benchapi.RunSummary) float64 { return r.Runs.ActualPerHr }),
		AvgMixMS:     stats.DistMetricStatsFrom(results, func(r benchapi.RunSummary) float64 { return r.Runs.AvgMS }),
	}
	for _, r := range results {
		report.Errors += r.Errors.Total
	}
	return report, nil
}

func getJSON[T any](ctx context.Context, c *Client, u *url.URL) (v T, err error) {
	collector := runResultCollector[T]{client: c.client}
	res, err := collector.Collect(ctx, slices.Values([]*url.URL{u}), false)
	if err != nil {
		return v, err
	}
	if len(res) == 0 {
		return v, fmt.Errorf("no response from %s", u)
	}
	return res[0], nil
}
