package biometric

import (
	"fmt"
	"math"
	"math/rand"
)

// IsolationForest is an ensemble of randomized isolation trees. Scores are in
// (0, 1]; higher means more anomalous, ~0.5 is typical for normal points.
// Tree construction is randomized but seeded, so a fitted forest scores any
// given point identically across calls.
type IsolationForest struct {
	Trees      []*isolationTree `json:"trees"`
	NumTrees   int              `json:"num_trees"`
	SampleSize int              `json:"sample_size"`
	MaxDepth   int              `json:"max_depth"`
	Seed       int64            `json:"seed"`
}

type isolationTree struct {
	Root *isolationNode `json:"root"`
}

type isolationNode struct {
	SplitFeature int            `json:"f"`
	SplitValue   float64        `json:"v"`
	Left         *isolationNode `json:"l,omitempty"`
	Right        *isolationNode `json:"r,omitempty"`
	Size         int            `json:"n"`
}

// NewIsolationForest creates an unfitted forest.
func NewIsolationForest(numTrees, sampleSize int, seed int64) *IsolationForest {
	return &IsolationForest{
		NumTrees:   numTrees,
		SampleSize: sampleSize,
		MaxDepth:   int(math.Ceil(math.Log2(float64(sampleSize)))),
		Seed:       seed,
	}
}

// Fit builds the ensemble from data.
func (f *IsolationForest) Fit(data [][]float64) error {
	if len(data) == 0 {
		return fmt.Errorf("isolation forest: no data provided")
	}

	rng := rand.New(rand.NewSource(f.Seed))
	f.Trees = make([]*isolationTree, f.NumTrees)
	for i := 0; i < f.NumTrees; i++ {
		sample := subsample(data, f.SampleSize, rng)
		f.Trees[i] = &isolationTree{Root: buildIsolationTree(sample, 0, f.MaxDepth, rng)}
	}
	return nil
}

// Score returns the anomaly score for a point: 2^(-avgPathLen/c(n)).
// Higher means more anomalous.
func (f *IsolationForest) Score(point []float64) float64 {
	if len(f.Trees) == 0 {
		return 0.0
	}

	total := 0.0
	for _, tree := range f.Trees {
		total += isolationPathLength(tree.Root, point, 0)
	}
	avg := total / float64(len(f.Trees))

	c := avgUnsuccessfulPathLength(f.SampleSize)
	return math.Pow(2, -avg/c)
}

func buildIsolationTree(data [][]float64, depth, maxDepth int, rng *rand.Rand) *isolationNode {
	if len(data) <= 1 || depth >= maxDepth {
		return &isolationNode{Size: len(data)}
	}

	featureIdx := rng.Intn(len(data[0]))
	minVal, maxVal := featureRange(data, featureIdx)
	if minVal == maxVal {
		return &isolationNode{Size: len(data)}
	}

	splitValue := minVal + rng.Float64()*(maxVal-minVal)

	var left, right [][]float64
	for _, sample := range data {
		if sample[featureIdx] < splitValue {
			left = append(left, sample)
		} else {
			right = append(right, sample)
		}
	}

	node := &isolationNode{
		SplitFeature: featureIdx,
		SplitValue:   splitValue,
		Size:         len(data),
	}
	node.Left = buildIsolationTree(left, depth+1, maxDepth, rng)
	node.Right = buildIsolationTree(right, depth+1, maxDepth, rng)
	return node
}

func isolationPathLength(node *isolationNode, point []float64, depth int) float64 {
	if node.Left == nil && node.Right == nil {
		return float64(depth) + avgUnsuccessfulPathLength(node.Size)
	}
	if node.SplitFeature < len(point) && point[node.SplitFeature] < node.SplitValue {
		return isolationPathLength(node.Left, point, depth+1)
	}
	return isolationPathLength(node.Right, point, depth+1)
}

// avgUnsuccessfulPathLength is c(n), the average BST unsuccessful search
// path length used to normalize isolation depths.
func avgUnsuccessfulPathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	return 2.0*(math.Log(float64(n-1))+0.5772156649) - 2.0*float64(n-1)/float64(n)
}

func subsample(data [][]float64, size int, rng *rand.Rand) [][]float64 {
	if len(data) <= size {
		return data
	}
	sample := make([][]float64, size)
	for i := 0; i < size; i++ {
		sample[i] = data[rng.Intn(len(data))]
	}
	return sample
}

func featureRange(data [][]float64, idx int) (float64, float64) {
	if len(data) == 0 {
		return 0, 0
	}
	lo, hi := data[0][idx], data[0][idx]
	for _, sample := range data {
		if sample[idx] < lo {
			lo = sample[idx]
		}
		if sample[idx] > hi {
			hi = sample[idx]
		}
	}
	return lo, hi
}
