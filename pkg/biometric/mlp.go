package biometric

import (
	"fmt"
	"math"
	"math/rand"
)

// MLPClassifier is a small feed-forward binary classifier (ReLU hidden
// layers, sigmoid output) trained with plain SGD. Weight initialization and
// sample shuffling are seeded, so training the same data twice produces the
// same model and inference is fully deterministic.
type MLPClassifier struct {
	HiddenSizes  []int         `json:"hidden_sizes"`
	Weights      [][][]float64 `json:"weights"` // [layer][out][in]
	Biases       [][]float64   `json:"biases"`  // [layer][out]
	LearningRate float64       `json:"learning_rate"`
	Epochs       int           `json:"epochs"`
	Seed         int64         `json:"seed"`
}

// NewMLPClassifier creates an untrained classifier.
func NewMLPClassifier(hiddenSizes []int, epochs int, seed int64) *MLPClassifier {
	return &MLPClassifier{
		HiddenSizes:  hiddenSizes,
		LearningRate: 0.01,
		Epochs:       epochs,
		Seed:         seed,
	}
}

// Fit trains on X with binary labels y (0 or 1).
func (m *MLPClassifier) Fit(X [][]float64, y []float64) error {
	if len(X) == 0 || len(X) != len(y) {
		return fmt.Errorf("mlp fit: need matching non-empty X and y, got %d/%d", len(X), len(y))
	}

	rng := rand.New(rand.NewSource(m.Seed))
	m.initWeights(len(X[0]), rng)

	order := make([]int, len(X))
	for i := range order {
		order[i] = i
	}

	for epoch := 0; epoch < m.Epochs; epoch++ {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		for _, idx := range order {
			m.step(X[idx], y[idx])
		}
	}
	return nil
}

// PredictProba returns the probability that x belongs to the positive
// ("is this user") class.
func (m *MLPClassifier) PredictProba(x []float64) float64 {
	activations, _ := m.forward(x)
	return activations[len(activations)-1][0]
}

// Trained reports whether Fit has run.
func (m *MLPClassifier) Trained() bool { return len(m.Weights) > 0 }

func (m *MLPClassifier) initWeights(inputDim int, rng *rand.Rand) {
	sizes := append([]int{inputDim}, m.HiddenSizes...)
	sizes = append(sizes, 1)

	m.Weights = make([][][]float64, len(sizes)-1)
	m.Biases = make([][]float64, len(sizes)-1)
	for l := 0; l < len(sizes)-1; l++ {
		fanIn, fanOut := sizes[l], sizes[l+1]
		scale := math.Sqrt(2.0 / float64(fanIn))
		m.Weights[l] = make([][]float64, fanOut)
		m.Biases[l] = make([]float64, fanOut)
		for o := 0; o < fanOut; o++ {
			m.Weights[l][o] = make([]float64, fanIn)
			for i := 0; i < fanIn; i++ {
				m.Weights[l][o][i] = rng.NormFloat64() * scale
			}
		}
	}
}

// forward returns the activations per layer (index 0 is the input itself)
// and the pre-activation sums for the hidden layers.
func (m *MLPClassifier) forward(x []float64) ([][]float64, [][]float64) {
	activations := make([][]float64, len(m.Weights)+1)
	preacts := make([][]float64, len(m.Weights))
	activations[0] = x

	for l := range m.Weights {
		in := activations[l]
		out := make([]float64, len(m.Weights[l]))
		pre := make([]float64, len(m.Weights[l]))
		for o := range m.Weights[l] {
			sum := m.Biases[l][o]
			for i, w := range m.Weights[l][o] {
				if i < len(in) {
					sum += w * in[i]
				}
			}
			pre[o] = sum
			if l == len(m.Weights)-1 {
				out[o] = sigmoid(sum)
			} else {
				out[o] = relu(sum)
			}
		}
		preacts[l] = pre
		activations[l+1] = out
	}
	return activations, preacts
}

// step runs one SGD update for a single sample using backpropagation with
// binary cross-entropy loss.
func (m *MLPClassifier) step(x []float64, label float64) {
	activations, preacts := m.forward(x)

	// Output delta for sigmoid + cross-entropy simplifies to (p - y).
	deltas := make([][]float64, len(m.Weights))
	last := len(m.Weights) - 1
	deltas[last] = []float64{activations[last+1][0] - label}

	for l := last - 1; l >= 0; l-- {
		deltas[l] = make([]float64, len(m.Weights[l]))
		for o := range m.Weights[l] {
			sum := 0.0
			for n := range m.Weights[l+1] {
				sum += m.Weights[l+1][n][o] * deltas[l+1][n]
			}
			if preacts[l][o] > 0 {
				deltas[l][o] = sum
			}
		}
	}

	for l := range m.Weights {
		in := activations[l]
		for o := range m.Weights[l] {
			for i := range m.Weights[l][o] {
				if i < len(in) {
					m.Weights[l][o][i] -= m.LearningRate * deltas[l][o] * in[i]
				}
			}
			m.Biases[l][o] -= m.LearningRate * deltas[l][o]
		}
	}
}

func sigmoid(x float64) float64 { return 1.0 / (1.0 + math.Exp(-x)) }

func relu(x float64) float64 {
	if x > 0 {
		return x
	}
	return 0
}
