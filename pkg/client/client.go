// Package client controls a group of remote benchmark workers started with
// `sparqlbench serve`.
package client

import (
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"slices"
	"time"
)

const DefaultPollInterval = 10 * time.Second

type Client struct {
	client *http.Client
	urls   []*url.URL

	// PollInterval is the wait between status requests to busy workers.
	PollInterval time.Duration
}

// New creates a client for the workers listening at the given base URLs.
func New(httpClient *http.Client, workers ...string) (*Client, error) {
	if len(workers) == 0 {
		return nil, fmt.Errorf("no workers configured")
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	urls := make([]*url.URL, 0, len(workers))
	for _, w := range workers {
		u, err := url.Parse(w)
		if err != nil {
			return nil, fmt.Errorf("parse worker url %q: %w", w, err)
		}
		if u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("worker url %q must be absolute", w)
		}
		urls = append(urls, u)
	}

	return &Client{
		client:       httpClient,
		urls:         urls,
		PollInterval: DefaultPollInterval,
	}, nil
}

func (c *Client) NumWorkers() int {
	return len(c.urls)
}

func (c *Client) EachWorkerURL() iter.Seq[*url.URL] {
	return slices.Values(c.urls)
}

func (c *Client) pollInterval() time.Duration {
	if c.PollInterval <= 0 {
		return DefaultPollInterval
	}
	return c.PollInterval
}
