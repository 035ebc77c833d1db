package client

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sparqlbench/api/benchapi"
)

type fakeWorker struct {
	mu       sync.Mutex
	posts    []string
	bodies   []benchapi.RunConfig
	busy     atomic.Int32 // remaining busy status responses
	conflict bool
	summary  benchapi.RunSummary
	failed   bool
}

func (f *fakeWorker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodPost:
		f.mu.Lock()
		f.posts = append(f.posts, r.URL.Path)
		if r.ContentLength > 0 {
			var cfg benchapi.RunConfig
			_ = json.NewDecoder(r.Body).Decode(&cfg)
			f.bodies = append(f.bodies, cfg)
		}
		f.mu.Unlock()

		if f.conflict {
			w.WriteHeader(http.StatusConflict)
			io.WriteString(w, `{"error":"worker is busy"}`)
			return
		}
		io.WriteString(w, `{"Status":"ok"}`)

	case r.URL.Path == "/healthz":
		if f.busy.Load() > 0 {
			f.busy.Add(-1)
			io.WriteString(w, `"Busy"`)
			return
		}
		io.WriteString(w, `"Idle"`)

	case r.URL.Path == "/status":
		status := RunStatus{Code: benchapi.StatusIdle, Task: benchapi.TaskRun}
		if f.busy.Load() > 0 {
			f.busy.Add(-1)
			status = RunStatus{Code: benchapi.StatusBusy, Task: benchapi.TaskRun}
		} else if f.failed {
			status.Last = &benchapi.Result[benchapi.RunSummary]{Error: io.ErrUnexpectedEOF}
		} else {
			status.Last = &benchapi.Result[benchapi.RunSummary]{Value: f.summary}
		}
		enc, _ := json.Marshal(status)
		w.Write(enc)

	case r.URL.Path == "/metrics":
		w.Header().Set("Content-Type", "text/plain")
		io.WriteString(w, "# HELP sparqlbench_active_clients Concurrent clients\n# TYPE sparqlbench_active_clients gauge\nsparqlbench_active_clients 4\n")

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newClient(t *testing.T, workers ...*fakeWorker) *Client {
	t.Helper()

	var urls []string
	for _, w := range workers {
		srv := httptest.NewServer(w)
		t.Cleanup(srv.Close)
		urls = append(urls, srv.URL)
	}
	c, err := New(nil, urls...)
	require.NoError(t, err)
	c.PollInterval = 5 * time.Millisecond
	return c
}

func TestNew(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)

	_, err = New(nil, "localhost:8080")
	assert.Error(t, err)

	c, err := New(nil, "http://a:8080", "http://b:8080")
	require.NoError(t, err)
	assert.Equal(t, 2, c.NumWorkers())
}

func TestRunPostsToAllWorkers(t *testing.T) {
	a, b := &fakeWorker{}, &fakeWorker{}
	c := newClient(t, a, b)

	runs := 7
	cfg := benchapi.RunConfig{Mode: benchapi.ModeSoak, Runs: &runs}
	require.NoError(t, c.Run(context.Background(), cfg))
	require.NoError(t, c.Stop(context.Background()))

	for _, w := range []*fakeWorker{a, b} {
		assert.Equal(t, []string{"/work/sparql/run", "/work/stop"}, w.posts)
		require.Len(t, w.bodies, 1)
		assert.Equal(t, benchapi.ModeSoak, w.bodies[0].Mode)
		assert.Equal(t, 7, *w.bodies[0].Runs)
	}
}

func TestRunBusy(t *testing.T) {
	c := newClient(t, &fakeWorker{}, &fakeWorker{conflict: true})
	err := c.Run(context.Background(), benchapi.RunConfig{})
	assert.ErrorIs(t, err, ErrBusy)
}

func TestHealthcheckAndWaitIdle(t *testing.T) {
	busy := &fakeWorker{}
	busy.busy.Store(3)
	c := newClient(t, &fakeWorker{}, busy)

	idle, err := c.Healthcheck(context.Background())
	require.NoError(t, err)
	assert.False(t, idle)

	require.NoError(t, c.WaitIdle(context.Background()))

	idle, err = c.Healthcheck(context.Background())
	require.NoError(t, err)
	assert.True(t, idle)
}

func TestResults(t *testing.T) {
	a := &fakeWorker{summary: benchapi.RunSummary{
		Runs:   benchapi.MixStats{AvgMS: 10, ActualPerHr: 100},
		Errors: benchapi.ErrStats{Total: 1},
	}}
	b := &fakeWorker{summary: benchapi.RunSummary{
		Runs: benchapi.MixStats{AvgMS: 30, ActualPerHr: 300},
	}}
	b.busy.Store(2)
	c := newClient(t, a, b)

	_, err := c.Results(context.Background(), false, false)
	assert.ErrorIs(t, err, ErrBusy)

	report, err := c.Results(context.Background(), true, false)
	require.NoError(t, err)
	assert.Len(t, report.Workers, 2)
	assert.Equal(t, 20.0, report.AvgMixMS.Avg)
	assert.Equal(t, 400.0, report.MixesPerHour.Sum)
	assert.EqualValues(t, 1, report.Errors)
}

func TestResultsFailedRun(t *testing.T) {
	c := newClient(t, &fakeWorker{failed: true})

	_, err := c.Results(context.Background(), false, false)
	assert.ErrorContains(t, err, "last task failed")

	report, err := c.Results(context.Background(), false, true)
	require.NoError(t, err)
	assert.Empty(t, report.Workers)
}

func TestMetrics(t *testing.T) {
	c := newClient(t, &fakeWorker{}, &fakeWorker{})

	res, err := c.Metrics(context.Background())
	require.NoError(t, err)
	require.Len(t, res, 2)
	for _, families := range res {
		mf, ok := families["sparqlbench_active_clients"]
		require.True(t, ok)
		assert.Equal(t, 4.0, mf.GetMetric()[0].GetGauge().GetValue())
	}
}
