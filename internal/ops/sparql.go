package ops

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"sparqlbench/internal/bench"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	TypeQuery  = "query"
	TypeUpdate = "update"

	contentTypeQuery  = "application/sparql-query"
	contentTypeUpdate = "application/sparql-update"

	DefaultQueryAccept = "application/sparql-results+json"
)

var errNoEndpoint = errors.New("no endpoint configured")

// Query sends a SPARQL query to Endpoint and counts the returned results.
type Query struct {
	OpName   string
	Text     string
	Endpoint string
	Accept   string
	Client   *Client
}

func (q *Query) Name() string    { return q.OpName }
func (q *Query) Type() string    { return TypeQuery }
func (q *Query) Content() string { return q.Text }

func (q *Query) CanRun(*bench.Options) bool {
	return q.Endpoint != "" && q.Text != ""
}

func (q *Query) Execute(ctx context.Context, _ *bench.Options) (bench.Result, error) {
	return q.send(ctx, q.Text)
}

// SanityCheck sends a trivial ASK query to the endpoint.
func (q *Query) SanityCheck(ctx context.Context, _ *bench.Options) error {
	if q.Endpoint == "" {
		return errNoEndpoint
	}
	if _, err := q.send(ctx, "ASK {}"); err != nil {
		return fmt.Errorf("query endpoint %s: %w", q.Endpoint, err)
	}
	return nil
}

func (q *Query) send(ctx context.Context, text string) (bench.Result, error) {
	accept := q.Accept
	if accept == "" {
		accept = DefaultQueryAccept
	}
	req, err := newRequest(http.MethodPost, q.Endpoint, contentTypeQuery, accept, strings.NewReader(text))
	if err != nil {
		return bench.Result{}, err
	}

	started := time.Now()
	resp, err := q.Client.Do(ctx, req)
	if err != nil {
		return bench.Result{}, err
	}
	defer resp.Body.Close()
	responseTime := time.Since(started)

	n, err := CountResults(resp.Header.Get("Content-Type"), resp.Body)
	if err != nil {
		return bench.Result{}, fmt.Errorf("read query results: %w", err)
	}
	return bench.Result{ResultCount: n, ResponseTime: responseTime}, nil
}

// Update sends a SPARQL update to Endpoint.
type Update struct {
	OpName   string
	Text     string
	Endpoint string
	Client   *Client
}

func (u *Update) Name() string    { return u.OpName }
func (u *Update) Type() string    { return TypeUpdate }
func (u *Update) Content() string { return u.Text }

func (u *Update) CanRun(*bench.Options) bool {
	return u.Endpoint != "" && u.Text != ""
}

func (u *Update) Execute(ctx context.Context, _ *bench.Options) (bench.Result, error) {
	req, err := newRequest(http.MethodPost, u.Endpoint, contentTypeUpdate, "", strings.NewReader(u.Text))
	if err != nil {
		return bench.Result{}, err
	}

	started := time.Now()
	resp, err := u.Client.Do(ctx, req)
	if err != nil {
		return bench.Result{}, err
	}
	defer resp.Body.Close()
	responseTime := time.Since(started)

	if _, err := io.Copy(io.Discard, resp.Body); err != nil {
		return bench.Result{}, fmt.Errorf("read update response: %w", err)
	}
	return bench.Result{ResponseTime: responseTime}, nil
}

// SanityCheck verifies the update endpoint answers at all. Updates are not
// sent, any response below 500 passes.
func (u *Update) SanityCheck(ctx context.Context, _ *bench.Options) error {
	if u.Endpoint == "" {
		return errNoEndpoint
	}
	req, err := newRequest(http.MethodOptions, u.Endpoint, "", "", nil)
	if err != nil {
		return err
	}
	_, err = u.Client.Do(ctx, req)
	var se *bench.StatusError
	if errors.As(err, &se) && se.Code < 500 {
		return nil
	}
	if err != nil {
		return fmt.Errorf("update endpoint %s: %w", u.Endpoint, err)
	}
	return nil
}

type sparqlJSONResults struct {
	Boolean *bool `json:"boolean"`
	Results struct {
		Bindings []jsoniter.RawMessage `json:"bindings"`
	} `json:"results"`
}

// CountResults counts the results in a query response body. JSON results
// count their bindings (ASK results count as one), CSV and TSV results
// count their rows without the header and everything else counts
// non-empty lines.
func CountResults(contentType string, body io.Reader) (int64, error) {
	mediaType, _, _ := mime.ParseMediaType(contentType)

	switch {
	case strings.HasSuffix(mediaType, "json"):
		var res sparqlJSONResults
		if err := json.NewDecoder(body).Decode(&res); err != nil {
			if errors.Is(err, io.EOF) {
				return 0, nil
			}
			return 0, err
		}
		if res.Boolean != nil {
			return 1, nil
		}
		return int64(len(res.Results.Bindings)), nil

	case mediaType == "text/csv", mediaType == "text/tab-separated-values":
		n, err := countLines(body)
		if n > 0 {
			n--
		}
		return n, err

	default:
		return countLines(body)
	}
}

func countLines(r io.Reader) (int64, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var n int64
	for scanner.Scan() {
		if len(strings.TrimSpace(scanner.Text())) > 0 {
			n++
		}
	}
	return n, scanner.Err()
}
