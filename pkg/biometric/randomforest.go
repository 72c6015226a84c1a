package biometric

import (
	"fmt"
	"math"
	"math/rand"
)

// RandomForestClassifier is a bagged ensemble of gini-split decision trees
// for binary classification. Bootstrap sampling and feature subsetting are
// seeded so repeated training on the same data is reproducible and inference
// has no hidden randomness.
type RandomForestClassifier struct {
	Trees    []*decisionNode `json:"trees"`
	NumTrees int             `json:"num_trees"`
	MaxDepth int             `json:"max_depth"`
	Seed     int64           `json:"seed"`
}

type decisionNode struct {
	Feature   int           `json:"f"`
	Threshold float64       `json:"t"`
	Left      *decisionNode `json:"l,omitempty"`
	Right     *decisionNode `json:"r,omitempty"`
	Prob      float64       `json:"p"` // positive-class fraction at a leaf
}

// NewRandomForestClassifier creates an untrained forest.
func NewRandomForestClassifier(numTrees, maxDepth int, seed int64) *RandomForestClassifier {
	return &RandomForestClassifier{
		NumTrees: numTrees,
		MaxDepth: maxDepth,
		Seed:     seed,
	}
}

// Fit trains on X with binary labels y (0 or 1).
func (rf *RandomForestClassifier) Fit(X [][]float64, y []float64) error {
	if len(X) == 0 || len(X) != len(y) {
		return fmt.Errorf("random forest fit: need matching non-empty X and y, got %d/%d", len(X), len(y))
	}

	rng := rand.New(rand.NewSource(rf.Seed))
	featureSubset := int(math.Ceil(math.Sqrt(float64(len(X[0])))))

	rf.Trees = make([]*decisionNode, rf.NumTrees)
	for t := 0; t < rf.NumTrees; t++ {
		bootX := make([][]float64, len(X))
		bootY := make([]float64, len(y))
		for i := range bootX {
			j := rng.Intn(len(X))
			bootX[i] = X[j]
			bootY[i] = y[j]
		}
		rf.Trees[t] = growTree(bootX, bootY, 0, rf.MaxDepth, featureSubset, rng)
	}
	return nil
}

// PredictProba averages the positive-class probability across trees.
func (rf *RandomForestClassifier) PredictProba(x []float64) float64 {
	if len(rf.Trees) == 0 {
		return 0.0
	}
	sum := 0.0
	for _, tree := range rf.Trees {
		sum += treeProba(tree, x)
	}
	return sum / float64(len(rf.Trees))
}

// Trained reports whether Fit has run.
func (rf *RandomForestClassifier) Trained() bool { return len(rf.Trees) > 0 }

func growTree(X [][]float64, y []float64, depth, maxDepth, featureSubset int, rng *rand.Rand) *decisionNode {
	pos := 0.0
	for _, label := range y {
		pos += label
	}
	prob := pos / float64(len(y))

	if depth >= maxDepth || len(y) < 4 || prob == 0 || prob == 1 {
		return &decisionNode{Feature: -1, Prob: prob}
	}

	bestFeature, bestThreshold, bestGini := -1, 0.0, math.Inf(1)
	dims := len(X[0])
	for k := 0; k < featureSubset; k++ {
		f := rng.Intn(dims)
		lo, hi := featureRange(X, f)
		if lo == hi {
			continue
		}
		threshold := lo + rng.Float64()*(hi-lo)
		gini := splitGini(X, y, f, threshold)
		if gini < bestGini {
			bestFeature, bestThreshold, bestGini = f, threshold, gini
		}
	}
	if bestFeature < 0 {
		return &decisionNode{Feature: -1, Prob: prob}
	}

	var leftX, rightX [][]float64
	var leftY, rightY []float64
	for i, sample := range X {
		if sample[bestFeature] < bestThreshold {
			leftX = append(leftX, sample)
			leftY = append(leftY, y[i])
		} else {
			rightX = append(rightX, sample)
			rightY = append(rightY, y[i])
		}
	}
	if len(leftY) == 0 || len(rightY) == 0 {
		return &decisionNode{Feature: -1, Prob: prob}
	}

	return &decisionNode{
		Feature:   bestFeature,
		Threshold: bestThreshold,
		Prob:      prob,
		Left:      growTree(leftX, leftY, depth+1, maxDepth, featureSubset, rng),
		Right:     growTree(rightX, rightY, depth+1, maxDepth, featureSubset, rng),
	}
}

func splitGini(X [][]float64, y []float64, feature int, threshold float64) float64 {
	var leftPos, leftN, rightPos, rightN float64
	for i, sample := range X {
		if sample[feature] < threshold {
			leftPos += y[i]
			leftN++
		} else {
			rightPos += y[i]
			rightN++
		}
	}
	total := leftN + rightN
	return (leftN/total)*gini(leftPos, leftN) + (rightN/total)*gini(rightPos, rightN)
}

func gini(pos, n float64) float64 {
	if n == 0 {
		return 0
	}
	p := pos / n
	return 2 * p * (1 - p)
}

func treeProba(node *decisionNode, x []float64) float64 {
	for node.Feature >= 0 {
		if node.Feature < len(x) && x[node.Feature] < node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node.Prob
}
