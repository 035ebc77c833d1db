// Package ops implements the operations a mix is made of: SPARQL queries
// and updates, plain HTTP requests and sleeps.
package ops

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"sparqlbench/internal/bench"
)

// Client executes HTTP requests on behalf of operations. The zero value
// uses http.DefaultClient without authentication.
type Client struct {
	HTTP *http.Client
	Auth Authenticator
}

func (c *Client) httpClient() *http.Client {
	if c == nil || c.HTTP == nil {
		return http.DefaultClient
	}
	return c.HTTP
}

// Do sends req and returns the response if its status is 2xx. Any other
// status is returned as *bench.StatusError after the body was drained.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)
	if c != nil && c.Auth != nil {
		if err := c.Auth.Authorize(ctx, req); err != nil {
			return nil, err
		}
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
		resp.Body.Close()
		return nil, &bench.StatusError{Code: resp.StatusCode, Status: resp.Status}
	}
	return resp, nil
}

func newRequest(method, url, contentType, accept string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	return req, nil
}
