package ops

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"sparqlbench/internal/bench"
)

const TypeHTTP = "http"

// HTTP sends an arbitrary request. Its result count is the number of
// non-empty response lines.
type HTTP struct {
	OpName string
	Method string
	URL    string
	Body   string
	Accept string
	Client *Client
}

func (h *HTTP) Name() string    { return h.OpName }
func (h *HTTP) Type() string    { return TypeHTTP }
func (h *HTTP) Content() string { return fmt.Sprintf("%s %s", h.method(), h.URL) }

func (h *HTTP) CanRun(*bench.Options) bool { return h.URL != "" }

func (h *HTTP) method() string {
	if h.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(h.Method)
}

func (h *HTTP) Execute(ctx context.Context, _ *bench.Options) (bench.Result, error) {
	var body io.Reader
	if h.Body != "" {
		body = strings.NewReader(h.Body)
	}

	req, err := newRequest(h.method(), h.URL, "", h.Accept, body)
	if err != nil {
		return bench.Result{}, err
	}

	started := time.Now()
	resp, err := h.Client.Do(ctx, req)
	if err != nil {
		return bench.Result{}, err
	}
	defer resp.Body.Close()
	responseTime := time.Since(started)

	n, err := countLines(resp.Body)
	if err != nil {
		return bench.Result{}, fmt.Errorf("read response: %w", err)
	}
	return bench.Result{ResultCount: n, ResponseTime: responseTime}, nil
}
