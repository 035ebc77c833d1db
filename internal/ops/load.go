package ops

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"sparqlbench/api/benchapi"
	"sparqlbench/internal/bench"
)

// LoadMix builds the operation mix described by cfg. Query files are read
// relative to baseDir.
func LoadMix(cfg benchapi.MixConfig, target benchapi.Target, baseDir string, client *Client) (*bench.OperationMix, error) {
	if len(cfg.Operations) == 0 {
		return nil, bench.ErrEmptyMix
	}

	name := cfg.Name
	if name == "" {
		name = "mix"
	}

	var errs []error
	ops := make([]bench.Operation, 0, len(cfg.Operations))
	for i, opCfg := range cfg.Operations {
		op, err := newOperation(i, opCfg, target, baseDir, client)
		if err != nil {
			errs = append(errs, fmt.Errorf("operation %d: %w", i, err))
			continue
		}
		ops = append(ops, op)
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return bench.NewMix(name, ops...), nil
}

func newOperation(i int, cfg benchapi.OperationConfig, target benchapi.Target, baseDir string, client *Client) (bench.Operation, error) {
	typ := strings.ToLower(cfg.Type)
	if typ == "" {
		typ = TypeQuery
	}

	name := cfg.Name
	if name == "" && cfg.QueryFile != "" {
		name = strings.TrimSuffix(filepath.Base(cfg.QueryFile), filepath.Ext(cfg.QueryFile))
	}
	if name == "" {
		name = fmt.Sprintf("%s-%d", typ, i+1)
	}

	switch typ {
	case TypeSleep:
		if cfg.Duration == nil {
			return nil, errors.New("sleep operation requires a duration")
		}
		return &Sleep{OpName: name, Duration: cfg.Duration.Duration}, nil

	case TypeQuery, TypeUpdate, TypeHTTP:
	default:
		return nil, fmt.Errorf("unknown operation type %q", cfg.Type)
	}

	text, err := readText(cfg, baseDir)
	if err != nil {
		return nil, err
	}

	switch typ {
	case TypeQuery:
		return &Query{
			OpName:   name,
			Text:     text,
			Endpoint: firstNonEmpty(cfg.Endpoint, target.QueryEndpoint),
			Accept:   cfg.Accept,
			Client:   client,
		}, nil
	case TypeUpdate:
		return &Update{
			OpName:   name,
			Text:     text,
			Endpoint: firstNonEmpty(cfg.Endpoint, target.UpdateEndpoint, target.QueryEndpoint),
			Client:   client,
		}, nil
	default:
		return &HTTP{
			OpName: name,
			Method: cfg.Method,
			URL:    firstNonEmpty(cfg.Endpoint, target.QueryEndpoint),
			Body:   text,
			Accept: cfg.Accept,
			Client: client,
		}, nil
	}
}

func readText(cfg benchapi.OperationConfig, baseDir string) (string, error) {
	if cfg.QueryFile == "" {
		return cfg.Query, nil
	}
	if cfg.Query != "" {
		return "", errors.New("query and query_file are mutually exclusive")
	}

	path := cfg.QueryFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	contents, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read query file: %w", err)
	}
	return string(contents), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
