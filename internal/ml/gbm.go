package ml

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// BoostParams configures the gradient-boosted ensemble.
type BoostParams struct {
	MaxIter        int     `json:"max_iter" yaml:"maxIter"`
	MaxDepth       int     `json:"max_depth" yaml:"maxDepth"`
	LearningRate   float64 `json:"learning_rate" yaml:"learningRate"`
	MinSamplesLeaf int     `json:"min_samples_leaf" yaml:"minSamplesLeaf"`
	L2             float64 `json:"l2" yaml:"l2"`
}

// DefaultBoostParams mirrors the configuration the service has always trained
// with: 150 rounds of depth-5 trees.
func DefaultBoostParams() BoostParams {
	return BoostParams{
		MaxIter:        150,
		MaxDepth:       5,
		LearningRate:   0.1,
		MinSamplesLeaf: 20,
		L2:             0,
	}
}

func (p BoostParams) validate() error {
	if p.MaxIter < 1 {
		return fmt.Errorf("max iterations must be positive, got %d", p.MaxIter)
	}
	if p.MaxDepth < 1 {
		return fmt.Errorf("max depth must be positive, got %d", p.MaxDepth)
	}
	if p.LearningRate <= 0 || p.LearningRate > 1 {
		return fmt.Errorf("learning rate must be in (0,1], got %f", p.LearningRate)
	}
	if p.MinSamplesLeaf < 1 {
		return fmt.Errorf("min samples per leaf must be positive, got %d", p.MinSamplesLeaf)
	}
	if p.L2 < 0 {
		return fmt.Errorf("l2 regularization must be non-negative, got %f", p.L2)
	}
	return nil
}

const minHessianLeaf = 1e-3

// Node is one node of a regression tree. Samples with x[Feature] <= Threshold
// go Left.
type Node struct {
	Leaf      bool    `json:"leaf"`
	Feature   int     `json:"feature,omitempty"`
	Threshold float64 `json:"threshold,omitempty"`
	Left      int     `json:"left,omitempty"`
	Right     int     `json:"right,omitempty"`
	Value     float64 `json:"value,omitempty"`
	Gain      float64 `json:"gain,omitempty"`
}

// Tree is a flattened regression tree; Nodes[0] is the root.
type Tree struct {
	Nodes []Node `json:"nodes"`
}

func (t Tree) predict(x []float64) float64 {
	i := 0
	for {
		n := t.Nodes[i]
		if n.Leaf {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Booster is a multiclass gradient-boosted tree ensemble with a softmax link.
// Rounds[r][k] is the tree fitted for class k at round r.
type Booster struct {
	Classes  int         `json:"classes"`
	Features int         `json:"features"`
	Baseline []float64   `json:"baseline"`
	Rounds   [][]Tree    `json:"rounds"`
	Params   BoostParams `json:"params"`
}

// FitBooster trains a booster on X (rows of equal width) against class
// indices y in [0,classes). Training is fully deterministic.
func FitBooster(X [][]float64, y []int, classes int, params BoostParams) (*Booster, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	if len(X) == 0 || len(X) != len(y) {
		return nil, fmt.Errorf("need matching non-empty samples and targets, got %d and %d", len(X), len(y))
	}
	if classes < 1 {
		return nil, errors.New("at least one class is required")
	}
	width := len(X[0])
	for i, row := range X {
		if len(row) != width {
			return nil, fmt.Errorf("row %d has %d features, expected %d", i, len(row), width)
		}
	}

	n := len(X)
	b := &Booster{
		Classes:  classes,
		Features: width,
		Baseline: make([]float64, classes),
		Params:   params,
	}

	counts := make([]float64, classes)
	for i, c := range y {
		if c < 0 || c >= classes {
			return nil, fmt.Errorf("target %d at row %d outside [0,%d)", c, i, classes)
		}
		counts[c]++
	}
	if classes == 1 {
		return b, nil
	}

	// Log-prior baseline, clipped so that an absent class stays finite.
	for k := range counts {
		p := math.Max(counts[k]/float64(n), 1e-15)
		b.Baseline[k] = math.Log(p)
	}

	sorted := presort(X)
	raw := make([][]float64, n)
	for i := range raw {
		raw[i] = append([]float64(nil), b.Baseline...)
	}

	grad := make([]float64, n)
	hess := make([]float64, n)
	prob := make([][]float64, n)
	for i := range prob {
		prob[i] = make([]float64, classes)
	}

	for round := 0; round < params.MaxIter; round++ {
		for i := 0; i < n; i++ {
			softmax(raw[i], prob[i])
		}
		trees := make([]Tree, classes)
		for k := 0; k < classes; k++ {
			for i := 0; i < n; i++ {
				target := 0.0
				if y[i] == k {
					target = 1
				}
				grad[i] = prob[i][k] - target
				hess[i] = prob[i][k] * (1 - prob[i][k])
			}
			trees[k] = growTree(X, sorted, grad, hess, params)
		}
		for i := 0; i < n; i++ {
			for k := 0; k < classes; k++ {
				raw[i][k] += trees[k].predict(X[i])
			}
		}
		b.Rounds = append(b.Rounds, trees)
	}

	return b, nil
}

// PredictProba returns the class distribution for one row.
func (b *Booster) PredictProba(x []float64) ([]float64, error) {
	if len(x) != b.Features {
		return nil, fmt.Errorf("expected %d features, got %d", b.Features, len(x))
	}
	out := make([]float64, b.Classes)
	if b.Classes == 1 {
		out[0] = 1
		return out, nil
	}
	raw := append([]float64(nil), b.Baseline...)
	for _, trees := range b.Rounds {
		for k, t := range trees {
			raw[k] += t.predict(x)
		}
	}
	softmax(raw, out)
	return out, nil
}

// Importance sums the split gain attributed to each feature across the
// ensemble, normalised to 1. An ensemble without splits yields all zeros.
func (b *Booster) Importance() []float64 {
	imp := make([]float64, b.Features)
	for _, trees := range b.Rounds {
		for _, t := range trees {
			for _, n := range t.Nodes {
				if !n.Leaf {
					imp[n.Feature] += n.Gain
				}
			}
		}
	}
	if total := floats.Sum(imp); total > 0 {
		floats.Scale(1/total, imp)
	}
	return imp
}

func softmax(raw, out []float64) {
	m := floats.Max(raw)
	var sum float64
	for k, r := range raw {
		out[k] = math.Exp(r - m)
		sum += out[k]
	}
	floats.Scale(1/sum, out)
}

// presort returns, per feature, the row indices ordered by that feature's
// value. Ties keep row order so splits are reproducible.
func presort(X [][]float64) [][]int {
	width := len(X[0])
	sorted := make([][]int, width)
	for f := 0; f < width; f++ {
		idx := make([]int, len(X))
		for i := range idx {
			idx[i] = i
		}
		sort.SliceStable(idx, func(a, b int) bool {
			return X[idx[a]][f] < X[idx[b]][f]
		})
		sorted[f] = idx
	}
	return sorted
}

type nodeStats struct {
	g, h float64
	n    int
}

type candidate struct {
	gain      float64
	feature   int
	threshold float64
	left      nodeStats
}

// growTree fits one regression tree to the gradients level by level. Each
// level costs one scan of the presorted indices per feature.
func growTree(X [][]float64, sorted [][]int, grad, hess []float64, p BoostParams) Tree {
	n := len(X)
	assign := make([]int, n)

	var root nodeStats
	for i := 0; i < n; i++ {
		root.g += grad[i]
		root.h += hess[i]
	}
	root.n = n

	nodes := []Node{{Leaf: true}}
	stats := []nodeStats{root}
	open := []int{0}

	score := func(s nodeStats) float64 {
		return s.g * s.g / (s.h + p.L2)
	}

	for depth := 0; depth < p.MaxDepth && len(open) > 0; depth++ {
		size := len(nodes)
		isOpen := make([]bool, size)
		best := make([]*candidate, size)
		splittable := 0
		for _, id := range open {
			if stats[id].n >= 2*p.MinSamplesLeaf {
				isOpen[id] = true
				splittable++
			}
		}
		if splittable == 0 {
			break
		}

		running := make([]nodeStats, size)
		last := make([]float64, size)
		for f, idx := range sorted {
			for id := range running {
				running[id] = nodeStats{}
			}
			for _, i := range idx {
				id := assign[i]
				if !isOpen[id] {
					continue
				}
				x := X[i][f]
				acc := &running[id]
				if acc.n > 0 && x != last[id] {
					evaluateSplit(id, f, (last[id]+x)/2, *acc, stats[id], p, score, best)
				}
				acc.g += grad[i]
				acc.h += hess[i]
				acc.n++
				last[id] = x
			}
		}

		var next []int
		for _, id := range open {
			c := best[id]
			if c == nil || c.gain <= 0 {
				continue
			}
			right := nodeStats{
				g: stats[id].g - c.left.g,
				h: stats[id].h - c.left.h,
				n: stats[id].n - c.left.n,
			}
			leftID := len(nodes)
			nodes = append(nodes, Node{Leaf: true}, Node{Leaf: true})
			stats = append(stats, c.left, right)
			nodes[id] = Node{
				Feature:   c.feature,
				Threshold: c.threshold,
				Left:      leftID,
				Right:     leftID + 1,
				Gain:      c.gain,
			}
			next = append(next, leftID, leftID+1)
		}

		if len(next) == 0 {
			break
		}
		for i := 0; i < n; i++ {
			nd := nodes[assign[i]]
			if nd.Leaf {
				continue
			}
			if X[i][nd.Feature] <= nd.Threshold {
				assign[i] = nd.Left
			} else {
				assign[i] = nd.Right
			}
		}
		open = next
	}

	for id := range nodes {
		if nodes[id].Leaf {
			s := stats[id]
			nodes[id].Value = -p.LearningRate * s.g / (s.h + p.L2 + 1e-12)
		}
	}
	return Tree{Nodes: nodes}
}

func evaluateSplit(id, feature int, threshold float64, left, total nodeStats, p BoostParams,
	score func(nodeStats) float64, best []*candidate,
) {
	right := nodeStats{g: total.g - left.g, h: total.h - left.h, n: total.n - left.n}
	if left.n < p.MinSamplesLeaf || right.n < p.MinSamplesLeaf {
		return
	}
	if left.h < minHessianLeaf || right.h < minHessianLeaf {
		return
	}
	gain := score(left) + score(right) - score(total)
	if c := best[id]; c == nil || gain > c.gain+1e-12 {
		best[id] = &candidate{gain: gain, feature: feature, threshold: threshold, left: left}
	}
}
