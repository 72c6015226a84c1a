package biometric

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// BinaryClassifier is the contract every modality model satisfies: a
// discriminator between "true user distribution" and synthetic impostors.
type BinaryClassifier interface {
	Fit(X [][]float64, y []float64) error
	PredictProba(x []float64) float64
	Trained() bool
}

// sequenceWindowLength is the fixed contiguous window for the sequence
// modality; N standardized samples yield N - sequenceWindowLength examples.
const sequenceWindowLength = 10

// modalityConfig fixes each modality's training recipe.
//
// Synthetic negatives are a training-data-scarcity workaround: only genuine
// samples exist, so one impostor example is synthesized per positive by
// Gaussian perturbation. The noise scales below (static 0.3 < sequence 0.4 <
// signal 0.5) materially affect decision thresholds; the ordering keeps the
// perturbation for the dynamic modalities larger than for static features.
type modalityConfig struct {
	minSamples   int
	noiseStd     float64
	windowLength int
	newModel     func(seed int64) BinaryClassifier
}

var modalityConfigs = map[Modality]modalityConfig{
	ModalityStatic: {
		minSamples: 20,
		noiseStd:   0.3,
		newModel: func(seed int64) BinaryClassifier {
			return NewMLPClassifier([]int{64, 32}, 200, seed)
		},
	},
	ModalitySequence: {
		minSamples:   20,
		noiseStd:     0.4,
		windowLength: sequenceWindowLength,
		newModel: func(seed int64) BinaryClassifier {
			return NewRandomForestClassifier(100, 10, seed)
		},
	},
	ModalitySignal: {
		minSamples: 30,
		noiseStd:   0.5,
		newModel: func(seed int64) BinaryClassifier {
			return NewMLPClassifier([]int{128, 64, 32}, 400, seed)
		},
	},
}

// ModelArtifact is the serialized training output for one (user, modality):
// the fitted classifier plus the scaler that must be reapplied identically at
// inference time. Training replaces, never merges, a prior artifact.
type ModelArtifact struct {
	Modality     Modality                `json:"modality"`
	Scaler       *StandardScaler         `json:"scaler"`
	MLP          *MLPClassifier          `json:"mlp,omitempty"`
	Forest       *RandomForestClassifier `json:"random_forest,omitempty"`
	WindowLength int                     `json:"window_length,omitempty"`
	SampleCount  int                     `json:"sample_count"`
	Accuracy     float64                 `json:"accuracy"`
	TrainedAt    time.Time               `json:"trained_at"`
}

func (a *ModelArtifact) classifier() BinaryClassifier {
	if a.Forest != nil {
		return a.Forest
	}
	return a.MLP
}

// Score runs inference for a single standardizable vector (static and signal
// modalities).
func (a *ModelArtifact) Score(vector FeatureVector) (float64, error) {
	scaled, err := a.Scaler.TransformOne(vector)
	if err != nil {
		return 0, err
	}
	return a.classifier().PredictProba(scaled), nil
}

// ScoreWindow runs inference for the sequence modality over the most recent
// WindowLength raw vectors, newest last. Each vector is standardized with the
// artifact's scaler and the window flattened exactly as during training.
func (a *ModelArtifact) ScoreWindow(window []FeatureVector) (float64, error) {
	if len(window) != a.WindowLength {
		return 0, fmt.Errorf("%w: window of %d vectors, need %d", ErrInvalidInput, len(window), a.WindowLength)
	}
	scaled, err := a.Scaler.Transform(window)
	if err != nil {
		return 0, err
	}
	return a.classifier().PredictProba(flatten(scaled)), nil
}

// Encode serializes the artifact as one opaque blob.
func (a *ModelArtifact) Encode() ([]byte, error) {
	return artifactJSON.Marshal(a)
}

// DecodeArtifact deserializes a trained artifact blob.
func DecodeArtifact(blob []byte) (*ModelArtifact, error) {
	a := &ModelArtifact{}
	if err := artifactJSON.Unmarshal(blob, a); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	if a.Scaler == nil || (a.MLP == nil && a.Forest == nil) {
		return nil, fmt.Errorf("decode artifact: blob carries no classifier")
	}
	return a, nil
}

// ModalityTrainer fits per-modality binary classifiers from a user's
// accumulated samples. One trainer serves all three modalities; the recipe
// differs per modality, the shape is shared.
type ModalityTrainer struct {
	samples   SampleSource
	artifacts ArtifactStore
}

// NewModalityTrainer wires a trainer to its sample source and artifact store.
func NewModalityTrainer(samples SampleSource, artifacts ArtifactStore) *ModalityTrainer {
	return &ModalityTrainer{samples: samples, artifacts: artifacts}
}

// Train fetches the user's ordered samples for one modality, fits a fresh
// classifier, and atomically replaces the stored artifact. Below the
// modality's minimum it fails with ErrInsufficientData; fetch or save
// failures surface as StorageError, unretried.
func (t *ModalityTrainer) Train(ctx context.Context, userID string, modality Modality) (*TrainingResult, error) {
	cfg, ok := modalityConfigs[modality]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModality, modality)
	}

	raw, err := t.samples.FetchOrdered(ctx, userID, modality)
	if err != nil {
		return nil, &StorageError{Op: "fetch samples", Err: err}
	}
	if len(raw) < cfg.minSamples {
		return nil, fmt.Errorf("%w: %s needs at least %d samples, have %d",
			ErrInsufficientData, modality, cfg.minSamples, len(raw))
	}

	scaler := NewStandardScaler()
	if err := scaler.Fit(raw); err != nil {
		return nil, err
	}
	scaled, err := scaler.Transform(raw)
	if err != nil {
		return nil, err
	}

	positives := scaled
	if cfg.windowLength > 0 {
		positives = windowize(scaled, cfg.windowLength)
		if len(positives) == 0 {
			return nil, fmt.Errorf("%w: %s needs more than %d samples for windowing, have %d",
				ErrInsufficientData, modality, cfg.windowLength, len(raw))
		}
	}

	seed := seedFor(userID + "/" + string(modality))
	negatives := perturb(positives, cfg.noiseStd, rand.New(rand.NewSource(seed)))

	X := make([][]float64, 0, 2*len(positives))
	y := make([]float64, 0, 2*len(positives))
	X = append(X, positives...)
	X = append(X, negatives...)
	for range positives {
		y = append(y, 1)
	}
	for range negatives {
		y = append(y, 0)
	}

	model := cfg.newModel(seed)
	if err := model.Fit(X, y); err != nil {
		return nil, fmt.Errorf("train %s model: %w", modality, err)
	}

	artifact := &ModelArtifact{
		Modality:     modality,
		Scaler:       scaler,
		WindowLength: cfg.windowLength,
		SampleCount:  len(positives),
		Accuracy:     resubstitutionAccuracy(model, X, y),
		TrainedAt:    time.Now().UTC(),
	}
	switch clf := model.(type) {
	case *MLPClassifier:
		artifact.MLP = clf
	case *RandomForestClassifier:
		artifact.Forest = clf
	}

	blob, err := artifact.Encode()
	if err != nil {
		return nil, err
	}
	key := ArtifactKey(userID, modality)
	if err := t.artifacts.Save(ctx, key, blob); err != nil {
		return nil, &StorageError{Op: "save artifact", Err: err}
	}

	return &TrainingResult{
		Status:      "trained",
		Modality:    modality,
		SampleCount: len(positives),
		Accuracy:    artifact.Accuracy,
		ArtifactRef: key,
		TrainedAt:   artifact.TrainedAt,
	}, nil
}

// Load fetches and decodes a user's trained artifact. Absence is a valid
// state reported via the boolean, not an error.
func (t *ModalityTrainer) Load(ctx context.Context, userID string, modality Modality) (*ModelArtifact, bool, error) {
	blob, ok, err := t.artifacts.Load(ctx, ArtifactKey(userID, modality))
	if err != nil {
		return nil, false, &StorageError{Op: "load artifact", Err: err}
	}
	if !ok {
		return nil, false, nil
	}
	artifact, err := DecodeArtifact(blob)
	if err != nil {
		return nil, false, err
	}
	return artifact, true, nil
}

// windowize slices data into contiguous fixed-length windows, flattening
// each into one training example. N samples yield N - length examples.
func windowize(data [][]float64, length int) [][]float64 {
	if len(data) <= length {
		return nil
	}
	windows := make([][]float64, 0, len(data)-length)
	for i := 0; i < len(data)-length; i++ {
		windows = append(windows, flatten(data[i:i+length]))
	}
	return windows
}

func flatten(window [][]float64) []float64 {
	size := 0
	for _, v := range window {
		size += len(v)
	}
	flat := make([]float64, 0, size)
	for _, v := range window {
		flat = append(flat, v...)
	}
	return flat
}

// perturb copies each example with independent Gaussian noise added per
// dimension, approximating an impostor distribution.
func perturb(examples [][]float64, std float64, rng *rand.Rand) [][]float64 {
	out := make([][]float64, len(examples))
	for i, ex := range examples {
		noisy := make([]float64, len(ex))
		for j, v := range ex {
			noisy[j] = v + rng.NormFloat64()*std
		}
		out[i] = noisy
	}
	return out
}

func resubstitutionAccuracy(model BinaryClassifier, X [][]float64, y []float64) float64 {
	if len(X) == 0 {
		return 0
	}
	correct := 0
	for i, x := range X {
		p := model.PredictProba(x)
		if (p >= 0.5) == (y[i] >= 0.5) {
			correct++
		}
	}
	return roundTo(float64(correct)/float64(len(X)), 4)
}
