package worker

import (
	"context"
	"errors"
	"net/http"

	"sparqlbench/api/benchapi"
	"sparqlbench/internal/ops"
)

// Config holds the worker defaults. Run configurations without a target
// fall back to Target.
type Config struct {
	Target benchapi.Target

	// Directory query files are resolved against.
	BaseDir string

	HTTP *http.Client
}

var ErrNoEndpoint = errors.New("no SPARQL endpoint configured")

// MergeTarget fills unset fields of target from the worker defaults.
func (cfg *Config) MergeTarget(target benchapi.Target) benchapi.Target {
	if target.QueryEndpoint == "" {
		target.QueryEndpoint = cfg.Target.QueryEndpoint
	}
	if target.UpdateEndpoint == "" {
		target.UpdateEndpoint = cfg.Target.UpdateEndpoint
	}
	if target.Username == "" && target.TokenURL == "" {
		target.Username = cfg.Target.Username
		target.Password = cfg.Target.Password
		target.TokenURL = cfg.Target.TokenURL
	}
	return target
}

// NewClient creates the HTTP client operations against target use.
func (cfg *Config) NewClient(target benchapi.Target) *ops.Client {
	return &ops.Client{
		HTTP: cfg.HTTP,
		Auth: ops.NewAuthenticator(target, cfg.HTTP),
	}
}

// Ping checks the default query endpoint.
func Ping(ctx context.Context, cfg Config) error {
	if cfg.Target.QueryEndpoint == "" {
		return ErrNoEndpoint
	}
	q := ops.Query{
		OpName:   "ping",
		Endpoint: cfg.Target.QueryEndpoint,
		Client:   cfg.NewClient(cfg.Target),
	}
	return q.SanityCheck(ctx, nil)
}

type Task struct {
	Name       benchapi.TaskName
	Task       func(context.Context) (any, error)
	CheckReady func(context.Context) (bool, error)
}

func (t *Task) IsReady(ctx context.Context) (bool, error) {
	if t.CheckReady == nil {
		return true, nil
	}
	return t.CheckReady(ctx)
}

type TaskFactory[Config any] interface {
	Prepare(config Config) (Task, error)
	Cleanup() (Task, error)
	Run(config Config) (Task, error)
}
