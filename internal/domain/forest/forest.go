// Package forest implements a random forest of CART classification trees:
// Gini splits, bootstrap sampling, per-split feature subsampling and
// balanced class weights. Trees are grown in parallel and stored as flat
// node arrays so a fitted forest is a plain JSON document.
package forest

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"golang.org/x/sync/errgroup"
)

const leaf = -1

// Node is one tree node. Split nodes send x[Feature] <= Threshold left.
// Leaves have Feature == -1 and a sparse class distribution.
type Node struct {
	Feature   int       `json:"f"`
	Threshold float64   `json:"t,omitempty"`
	Left      int       `json:"l,omitempty"`
	Right     int       `json:"r,omitempty"`
	Classes   []int     `json:"c,omitempty"`
	Probs     []float64 `json:"p,omitempty"`
}

// Tree is a fitted decision tree; Nodes[0] is the root.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

// Forest is a fitted ensemble. It is immutable and safe for concurrent use.
type Forest struct {
	NumClasses  int    `json:"num_classes"`
	NumFeatures int    `json:"num_features"`
	Trees       []Tree `json:"trees"`
}

// Fit grows a forest on x (rows of equal width) against labels y in
// [0, numClasses). Cancelling ctx aborts training.
func Fit(ctx context.Context, x [][]float64, y []int, numClasses int, opts ...Option) (*Forest, error) {
	p := defaultParams()
	for _, opt := range opts {
		opt(&p)
	}

	if len(x) == 0 {
		return nil, ErrEmptyTrainingSet
	}
	if len(x) != len(y) {
		return nil, fmt.Errorf("%w: %d rows, %d labels", ErrShapeMismatch, len(x), len(y))
	}
	width := len(x[0])
	for i, row := range x {
		if len(row) != width {
			return nil, fmt.Errorf("%w: row %d has %d features, want %d", ErrShapeMismatch, i, len(row), width)
		}
	}
	for i, c := range y {
		if c < 0 || c >= numClasses {
			return nil, fmt.Errorf("%w: label %d at row %d outside [0,%d)", ErrShapeMismatch, c, i, numClasses)
		}
	}

	mtry := p.MaxFeatures
	if mtry <= 0 || mtry > width {
		mtry = max(1, int(math.Sqrt(float64(width))))
	}
	classWeight := balancedWeights(y, numClasses)

	f := &Forest{NumClasses: numClasses, NumFeatures: width, Trees: make([]Tree, p.Trees)}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.Workers)
	for t := range f.Trees {
		g.Go(func() error {
			b := &builder{
				ctx:        gctx,
				x:          x,
				y:          y,
				k:          numClasses,
				mtry:       mtry,
				maxDepth:   p.MaxDepth,
				minSplit:   p.MinSamplesSplit,
				rng:        rand.New(rand.NewPCG(p.Seed, uint64(t))), //nolint:gosec // reproducible sampling, not security
				classCount: make([]float64, numClasses),
			}
			tree, err := b.grow(classWeight)
			if err != nil {
				return err
			}
			f.Trees[t] = tree
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return f, nil
}

// PredictProba averages the leaf class distributions of every tree. The
// result has NumClasses entries summing to 1.
func (f *Forest) PredictProba(x []float64) ([]float64, error) {
	if len(x) != f.NumFeatures {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrFeatureCount, len(x), f.NumFeatures)
	}
	if len(f.Trees) == 0 {
		return nil, fmt.Errorf("%w: no trees", ErrCorruptModel)
	}
	out := make([]float64, f.NumClasses)
	for ti := range f.Trees {
		n, err := f.Trees[ti].leafFor(x)
		if err != nil {
			return nil, err
		}
		for i, c := range n.Classes {
			out[c] += n.Probs[i]
		}
	}
	scale := 1 / float64(len(f.Trees))
	for i := range out {
		out[i] *= scale
	}
	return out, nil
}

// Validate checks the structural integrity of a decoded forest.
func (f *Forest) Validate() error {
	if f.NumClasses < 1 || f.NumFeatures < 1 || len(f.Trees) == 0 {
		return fmt.Errorf("%w: %d classes, %d features, %d trees", ErrCorruptModel, f.NumClasses, f.NumFeatures, len(f.Trees))
	}
	for ti, t := range f.Trees {
		if len(t.Nodes) == 0 {
			return fmt.Errorf("%w: tree %d is empty", ErrCorruptModel, ti)
		}
		for ni, n := range t.Nodes {
			if n.Feature == leaf {
				if len(n.Classes) == 0 || len(n.Classes) != len(n.Probs) {
					return fmt.Errorf("%w: tree %d leaf %d has no distribution", ErrCorruptModel, ti, ni)
				}
				for _, c := range n.Classes {
					if c < 0 || c >= f.NumClasses {
						return fmt.Errorf("%w: tree %d leaf %d class %d", ErrCorruptModel, ti, ni, c)
					}
				}
				continue
			}
			if n.Feature < 0 || n.Feature >= f.NumFeatures ||
				n.Left <= ni || n.Left >= len(t.Nodes) || n.Right <= ni || n.Right >= len(t.Nodes) {
				return fmt.Errorf("%w: tree %d node %d", ErrCorruptModel, ti, ni)
			}
		}
	}
	return nil
}

func (t *Tree) leafFor(x []float64) (*Node, error) {
	i := 0
	for range len(t.Nodes) {
		if i < 0 || i >= len(t.Nodes) {
			break
		}
		n := &t.Nodes[i]
		if n.Feature == leaf {
			return n, nil
		}
		if n.Feature < 0 || n.Feature >= len(x) {
			break
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
	return nil, fmt.Errorf("%w: unterminated path", ErrCorruptModel)
}

// balancedWeights returns n / (k * count_c) per class.
func balancedWeights(y []int, k int) []float64 {
	counts := make([]float64, k)
	for _, c := range y {
		counts[c]++
	}
	present := 0
	for _, c := range counts {
		if c > 0 {
			present++
		}
	}
	w := make([]float64, k)
	for c, cnt := range counts {
		if cnt > 0 {
			w[c] = float64(len(y)) / (float64(present) * cnt)
		}
	}
	return w
}

type builder struct {
	ctx      context.Context
	x        [][]float64
	y        []int
	k        int
	mtry     int
	maxDepth int
	minSplit int
	rng      *rand.Rand

	weight     []float64
	nodes      []Node
	classCount []float64
}

func (b *builder) grow(classWeight []float64) (Tree, error) {
	n := len(b.x)
	b.weight = make([]float64, n)
	for range n {
		b.weight[b.rng.IntN(n)]++
	}
	idx := make([]int, 0, n)
	for i, w := range b.weight {
		if w > 0 {
			b.weight[i] = w * classWeight[b.y[i]]
			idx = append(idx, i)
		}
	}
	if _, err := b.build(idx, 0); err != nil {
		return Tree{}, err
	}
	return Tree{Nodes: b.nodes}, nil
}

// build appends the subtree over idx and returns its node index.
func (b *builder) build(idx []int, depth int) (int, error) {
	if err := b.ctx.Err(); err != nil {
		return 0, err
	}

	counts := b.classCount
	clear(counts)
	for _, i := range idx {
		counts[b.y[i]] += b.weight[i]
	}

	self := len(b.nodes)
	b.nodes = append(b.nodes, Node{Feature: leaf})

	if len(idx) < b.minSplit || (b.maxDepth > 0 && depth >= b.maxDepth) || isPure(counts) {
		b.nodes[self] = leafNode(counts)
		return self, nil
	}

	feature, threshold, ok := b.bestSplit(idx, counts)
	if !ok {
		b.nodes[self] = leafNode(counts)
		return self, nil
	}

	left := make([]int, 0, len(idx))
	right := make([]int, 0, len(idx))
	for _, i := range idx {
		if b.x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l, err := b.build(left, depth+1)
	if err != nil {
		return 0, err
	}
	r, err := b.build(right, depth+1)
	if err != nil {
		return 0, err
	}
	b.nodes[self] = Node{Feature: feature, Threshold: threshold, Left: l, Right: r}
	return self, nil
}

// bestSplit searches up to mtry non-constant features, in random order,
// for the threshold minimising weighted Gini impurity.
func (b *builder) bestSplit(idx []int, total []float64) (int, float64, bool) {
	var totalW, totalSq float64
	for _, c := range total {
		totalW += c
		totalSq += c * c
	}

	bestFeature, bestThreshold, found := 0, 0.0, false
	bestScore := math.Inf(1)

	order := make([]int, len(idx))
	left := make([]float64, b.k)
	visited := 0
	for _, f := range b.rng.Perm(len(b.x[0])) {
		if visited >= b.mtry {
			break
		}
		copy(order, idx)
		sort.Slice(order, func(i, j int) bool { return b.x[order[i]][f] < b.x[order[j]][f] })
		if b.x[order[0]][f] == b.x[order[len(order)-1]][f] {
			continue
		}
		visited++

		clear(left)
		var lw, lsq float64
		rw, rsq := totalW, totalSq
		for j := 0; j < len(order)-1; j++ {
			i := order[j]
			c, w := b.y[i], b.weight[i]

			lsq += (left[c]+w)*(left[c]+w) - left[c]*left[c]
			rc := total[c] - left[c]
			rsq += (rc-w)*(rc-w) - rc*rc
			left[c] += w
			lw += w
			rw -= w

			v, next := b.x[i][f], b.x[order[j+1]][f]
			if v == next || lw <= 0 || rw <= 0 {
				continue
			}
			// Weighted Gini: lw*(1-lsq/lw^2) + rw*(1-rsq/rw^2), constant terms dropped.
			score := -lsq/lw - rsq/rw
			if score < bestScore {
				bestScore = score
				bestFeature = f
				bestThreshold = v + (next-v)/2
				if bestThreshold >= next {
					bestThreshold = v
				}
				found = true
			}
		}
	}
	return bestFeature, bestThreshold, found
}

func isPure(counts []float64) bool {
	seen := false
	for _, c := range counts {
		if c > 0 {
			if seen {
				return false
			}
			seen = true
		}
	}
	return true
}

func leafNode(counts []float64) Node {
	var sum float64
	for _, c := range counts {
		sum += c
	}
	n := Node{Feature: leaf}
	for c, w := range counts {
		if w > 0 {
			n.Classes = append(n.Classes, c)
			n.Probs = append(n.Probs, w/sum)
		}
	}
	return n
}
