package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"golang.org/x/sync/errgroup"

	"sparqlbench/api/benchapi"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var ErrBusy = errors.New("worker is busy")

func (c *Client) post(ctx context.Context, path string, body any) error {
	var rawBody []byte
	if body != nil {
		var err error
		rawBody, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
	}

	return eachParallel(c.EachWorkerURL()).Do(ctx, func(ctx context.Context, url *url.URL) error {
		url = url.JoinPath(path)
		var bodyReader io.Reader
		if rawBody != nil {
			bodyReader = bytes.NewReader(rawBody)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url.String(), bodyReader)
		if err != nil {
			return err
		}
		if rawBody != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return fmt.Errorf("post %s: %w", url, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusConflict {
			return fmt.Errorf("post %s: %w", url, ErrBusy)
		}
		if resp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("post request failed (%s): %s", resp.Status, respBody)
		}
		return nil
	})
}

type parallelExec[T any] struct {
	iter   iter.Seq[T]
	active int
}

func (e parallelExec[T]) Active(i int) parallelExec[T] {
	e.active = i
	return e
}

// Do calls fn for every item and returns all errors joined. The context
// passed to fn is canceled on the first error.
func (e parallelExec[T]) Do(ctx context.Context, fn func(context.Context, T) error) error {
	var errs []error
	var mu sync.Mutex
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(e.active)

	for item := range e.iter {
		eg.Go(func() error {
			err := fn(ctx, item)
			if err != nil {
				mu.Lock()
				defer mu.Unlock()
				errs = append(errs, err)
			}
			return err
		})
	}

	eg.Wait()
	return errors.Join(errs...)
}

func eachParallel[T any](iter iter.Seq[T]) parallelExec[T] {
	return parallelExec[T]{iter: iter, active: -1}
}

type runResultCollector[T any] struct {
	client       *http.Client
	path         []string
	pollInterval time.Duration
	Validate     func(T) error
	Decoder      func(io.Reader) (T, error)
}

func JSONDecoder[T any](body io.Reader) (v T, err error) {
	err = json.NewDecoder(body).Decode(&v)
	return v, err
}

func PromDecoder(body io.Reader) (map[string]*dto.MetricFamily, error) {
	var parser expfmt.TextParser
	metricFamilies, err := parser.TextToMetricFamilies(body)
	return metricFamilies, err
}

// Collect fetches one result per worker. With wait set, workers reporting
// ErrBusy are polled until they finished.
func (c *runResultCollector[T]) Collect(ctx context.Context, workerURLs iter.Seq[*url.URL], wait bool) (report []T, err error) {
	eg, ctx := errgroup.WithContext(ctx)
	ch := make(chan T, 1)

	var urls []*url.URL
	for url := range workerURLs {
		urls = append(urls, url)
	}
	report = make([]T, 0, len(urls))
	eg.Go(func() error {
		for ctx.Err() == nil && len(report) < cap(report) {
			select {
			case <-ctx.Done():
				return nil
			case r := <-ch:
				report = append(report, r)
			}
		}
		return nil
	})

	eg.Go(func() error {
		execStatus := func(ctx context.Context, url *url.URL) error {
			if len(c.path) > 0 {
				url = url.JoinPath(c.path...)
			}
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url.String(), nil)
			if err != nil {
				return err
			}
			resp, err := c.client.Do(req)
			if err != nil {
				return fmt.Errorf("get %s: %w", url, err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("request failed: %s", resp.Status)
			}

			var status T
			if c.Decoder == nil {
				status, err = JSONDecoder[T](resp.Body)
			} else {
				status, err = c.Decoder(resp.Body)
			}
			if err != nil {
				return fmt.Errorf("decode response: %w", err)
			}

			if c.Validate != nil {
				if err := c.Validate(status); err != nil {
					return err
				}
			}

			select {
			case ch <- status:
			case <-ctx.Done():
			}

			return nil
		}

		fetchRunner := eachParallel(slices.Values(urls))
		if !wait {
			return fetchRunner.Do(ctx, execStatus)
		}
		return fetchRunner.Do(ctx, func(ctx context.Context, url *url.URL) error {
			ticker := time.NewTicker(c.pollInterval)
			defer ticker.Stop()
			for {
				err := execStatus(ctx, url)
				if !errors.Is(err, ErrBusy) {
					return err
				}

				select {
				case <-ticker.C:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
		})
	})

	err = eg.Wait()
	return report, err
}

func ValidateStatus[T any](opName benchapi.TaskName, allowError bool) func(benchapi.WorkerStatus[benchapi.Result[T]]) error {
	return func(status benchapi.WorkerStatus[benchapi.Result[T]]) error {
		if status.Code == benchapi.StatusBusy {
			return ErrBusy
		}
		if status.Task == "" {
			return errors.New("no benchmark task results found")
		}
		if status.Task != opName {
			return fmt.Errorf("no %s status found, last task is %s", opName, status.Task)
		}
		if status.Last == nil {
			return fmt.Errorf("%v task finished without results", opName)
		}
		if status.Last.Error != nil {
			if !allowError {
				return fmt.Errorf("op %v: last task failed: %s", opName, status.Last.Error)
			}
		}
		return nil
	}
}
