package forest

import "runtime"

// Params controls how a forest is grown.
type Params struct {
	// Trees is the number of trees in the ensemble.
	Trees int
	// MaxDepth bounds tree depth; 0 grows until leaves are pure.
	MaxDepth int
	// MinSamplesSplit is the smallest node that may be split.
	MinSamplesSplit int
	// MaxFeatures is the number of candidate features per split; 0 means
	// the square root of the feature count.
	MaxFeatures int
	// Seed makes training reproducible.
	Seed uint64
	// Workers bounds the number of trees fitted concurrently.
	Workers int
}

// Default parameters.
const (
	DefaultTrees           = 200
	DefaultMinSamplesSplit = 2
	DefaultSeed            = 42
)

func defaultParams() Params {
	return Params{
		Trees:           DefaultTrees,
		MinSamplesSplit: DefaultMinSamplesSplit,
		Seed:            DefaultSeed,
		Workers:         runtime.GOMAXPROCS(0),
	}
}

// Option configures training.
type Option func(*Params)

// WithTrees sets the number of trees. Values below 1 are ignored.
func WithTrees(n int) Option {
	return func(p *Params) {
		if n > 0 {
			p.Trees = n
		}
	}
}

// WithMaxDepth bounds tree depth. 0 means unlimited.
func WithMaxDepth(d int) Option {
	return func(p *Params) {
		if d >= 0 {
			p.MaxDepth = d
		}
	}
}

// WithMinSamplesSplit sets the smallest splittable node. Values below 2 are ignored.
func WithMinSamplesSplit(n int) Option {
	return func(p *Params) {
		if n >= 2 {
			p.MinSamplesSplit = n
		}
	}
}

// WithMaxFeatures sets the number of candidate features per split.
func WithMaxFeatures(n int) Option {
	return func(p *Params) {
		if n >= 0 {
			p.MaxFeatures = n
		}
	}
}

// WithSeed sets the random seed.
func WithSeed(seed uint64) Option {
	return func(p *Params) {
		p.Seed = seed
	}
}

// WithWorkers bounds fitting concurrency. Values below 1 are ignored.
func WithWorkers(n int) Option {
	return func(p *Params) {
		if n > 0 {
			p.Workers = n
		}
	}
}
