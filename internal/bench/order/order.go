// Package order decides the sequence of operations executed by a single
// pass over a mix.
package order

import (
	"sparqlbench/internal/bench"
	"sparqlbench/pkg/prop"
)

// Provider returns the operation ids to execute for one mix pass.
type Provider interface {
	Order(opts *bench.Options, mix *bench.OperationMix) []int
}

// Default runs all operations, shuffled if opts.RandomOrder is set.
type Default struct {
	// Rand overrides the random source. Nil uses the global source.
	Rand prop.Source

	// Excluding drops ids contained in opts.OperationExcludes().
	Excluding bool
}

func (d Default) Order(opts *bench.Options, mix *bench.OperationMix) []int {
	ids := candidates(opts, mix, d.Excluding)
	if !opts.RandomOrder {
		return ids
	}
	return prop.Permutation(d.Rand, ids)
}

// InOrder always runs all operations sequentially.
type InOrder struct {
	Excluding bool
}

func (o InOrder) Order(opts *bench.Options, mix *bench.OperationMix) []int {
	return candidates(opts, mix, o.Excluding)
}

// Sampling runs a random sample of opts.SampleSize operations. A sample
// size <= 0 uses the number of candidate operations.
type Sampling struct {
	Rand prop.Source

	// AllowRepeats draws every position independently. Otherwise the
	// sample is capped at the number of candidates and contains distinct
	// ids only.
	AllowRepeats bool

	Excluding bool
}

func (s Sampling) Order(opts *bench.Options, mix *bench.OperationMix) []int {
	ids := candidates(opts, mix, s.Excluding)
	if len(ids) == 0 {
		return ids
	}

	size := opts.SampleSize
	if size <= 0 {
		size = len(ids)
	}

	if s.AllowRepeats || opts.SampleRepeats {
		return prop.Uniform(ids).Draw(s.Rand, size)
	}
	return prop.SampleDistinct(s.Rand, ids, size)
}

func candidates(opts *bench.Options, mix *bench.OperationMix, excluding bool) []int {
	ids := make([]int, mix.Size())
	for i := range ids {
		ids[i] = i
	}
	if excluding {
		ids = opts.OperationExcludes().Filter(ids)
	}
	return ids
}
