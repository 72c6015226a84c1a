package biometric

import (
	"context"
	"hash/fnv"
	"math"
	"sort"
	"sync"

	jsoniter "github.com/json-iterator/go"
)

var artifactJSON = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// anomalyMinSamples is the baseline below which Train is a silent no-op.
	anomalyMinSamples = 10
	// anomalyContamination is the share of training data treated as
	// expected noise rather than rejected.
	anomalyContamination = 0.05
	// anomalySteepness controls the sigmoid mapping from raw distance to
	// confidence. Tunable; only monotonicity is load-bearing.
	anomalySteepness = 10.0

	anomalyForestTrees      = 100
	anomalyForestSampleSize = 256
)

// anomalyModel is one user's fitted outlier detector. Offset is the
// contamination-quantile training score: a sample scoring at the boundary
// maps to 0.5 confidence.
type anomalyModel struct {
	Scaler *StandardScaler  `json:"scaler"`
	Forest *IsolationForest `json:"forest"`
	Offset float64          `json:"offset"`
}

// AnomalyScreen gates enrollment of new samples: it scores an incoming
// feature vector against the user's established pattern before the vector is
// trusted for storage. Absent a baseline it fails open (score 1.0); a user
// is never blocked before any model exists.
type AnomalyScreen struct {
	mu        sync.RWMutex
	models    map[string]*anomalyModel
	artifacts ArtifactStore // optional; nil keeps models in memory only
}

// NewAnomalyScreen creates a screen. artifacts may be nil.
func NewAnomalyScreen(artifacts ArtifactStore) *AnomalyScreen {
	return &AnomalyScreen{
		models:    make(map[string]*anomalyModel),
		artifacts: artifacts,
	}
}

// Train fits the user's outlier detector from accumulated samples. Below
// anomalyMinSamples there is no reliable baseline and the call is a silent
// no-op, leaving any existing model unchanged. A successful fit replaces the
// prior model.
func (as *AnomalyScreen) Train(ctx context.Context, userID string, samples []FeatureVector) error {
	if len(samples) < anomalyMinSamples {
		return nil
	}

	scaler := NewStandardScaler()
	if err := scaler.Fit(samples); err != nil {
		return err
	}
	scaled, err := scaler.Transform(samples)
	if err != nil {
		return err
	}

	forest := NewIsolationForest(anomalyForestTrees, anomalyForestSampleSize, seedFor(userID))
	if err := forest.Fit(scaled); err != nil {
		return err
	}

	// Calibrate the decision offset so the most anomalous ~5% of training
	// data still lands at or above neutral.
	scores := make([]float64, len(scaled))
	for i, s := range scaled {
		scores[i] = forest.Score(s)
	}
	sort.Float64s(scores)
	idx := int(float64(len(scores)) * (1 - anomalyContamination))
	if idx >= len(scores) {
		idx = len(scores) - 1
	}
	model := &anomalyModel{Scaler: scaler, Forest: forest, Offset: scores[idx]}

	as.mu.Lock()
	as.models[userID] = model
	as.mu.Unlock()

	if as.artifacts != nil {
		blob, err := artifactJSON.Marshal(model)
		if err != nil {
			return err
		}
		if err := as.artifacts.Save(ctx, AnomalyArtifactKey(userID), blob); err != nil {
			return &StorageError{Op: "save anomaly model", Err: err}
		}
	}
	return nil
}

// Detect scores an incoming vector in [0,1]: 1.0 means consistent with the
// user's pattern, values approaching 0 mean clearly anomalous. Without a
// model it returns exactly 1.0 (pass-through).
func (as *AnomalyScreen) Detect(ctx context.Context, userID string, vector FeatureVector) float64 {
	model := as.model(ctx, userID)
	if model == nil {
		return 1.0
	}

	scaled, err := model.Scaler.TransformOne(vector)
	if err != nil {
		return 1.0
	}

	raw := model.Offset - model.Forest.Score(scaled)
	confidence := 1.0 / (1.0 + math.Exp(-anomalySteepness*raw))
	return roundTo(confidence, 4)
}

// HasModel reports whether a fitted model exists for the user.
func (as *AnomalyScreen) HasModel(ctx context.Context, userID string) bool {
	return as.model(ctx, userID) != nil
}

func (as *AnomalyScreen) model(ctx context.Context, userID string) *anomalyModel {
	as.mu.RLock()
	model := as.models[userID]
	as.mu.RUnlock()
	if model != nil || as.artifacts == nil {
		return model
	}

	// Lazy reload after restart.
	blob, ok, err := as.artifacts.Load(ctx, AnomalyArtifactKey(userID))
	if err != nil || !ok {
		return nil
	}
	loaded := &anomalyModel{}
	if err := artifactJSON.Unmarshal(blob, loaded); err != nil {
		return nil
	}

	as.mu.Lock()
	if existing := as.models[userID]; existing != nil {
		loaded = existing
	} else {
		as.models[userID] = loaded
	}
	as.mu.Unlock()
	return loaded
}

// seedFor derives a stable per-user seed so refitting the same data yields
// the same model.
func seedFor(userID string) int64 {
	h := fnv.New64a()
	h.Write([]byte(userID))
	return int64(h.Sum64())
}
