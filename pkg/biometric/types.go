// Package biometric implements the multimodal biometric authentication
// engine: per-user anomaly screening of incoming feature vectors, per-modality
// classifier training, deterministic score fusion with a liveness estimate,
// and an adaptive keystroke-timing profile.
package biometric

import "time"

// FeatureVector is an ordered, fixed-width vector of real-valued features
// produced by the capture layer. Immutable once stored.
type FeatureVector = []float64

// Modality identifies one biometric signal channel. The keys keep the
// historical model-family names because fusion weights, stored samples and
// the wire contract all key on them.
type Modality string

const (
	// ModalityStatic covers touch/static features scored by the MLP model.
	ModalityStatic Modality = "mlp"
	// ModalitySequence covers timing-window sequences scored by the
	// sequence ensemble.
	ModalitySequence Modality = "lstm"
	// ModalitySignal covers motion signal features scored by the deep MLP.
	ModalitySignal Modality = "cnn"
)

// Modalities lists the closed set of recognized modality keys.
var Modalities = []Modality{ModalityStatic, ModalitySequence, ModalitySignal}

// Recognized reports whether m is one of the closed modality keys.
func (m Modality) Recognized() bool {
	switch m {
	case ModalityStatic, ModalitySequence, ModalitySignal:
		return true
	}
	return false
}

// Sample is one persisted feature vector for a user and modality.
// Append-only; insertion order is the only ordering guarantee.
type Sample struct {
	UserID    string        `json:"user_id"`
	Modality  Modality      `json:"modality"`
	Vector    FeatureVector `json:"feature_vector"`
	CreatedAt time.Time     `json:"created_at"`
}

// TimingEvent is one keystroke timing pair from a typing session.
// Dwell is how long a key was held; Flight is the gap to the next press.
// Only timing is processed, never the characters themselves.
type TimingEvent struct {
	Dwell  float64 `json:"dwell"`
	Flight float64 `json:"flight"`
}

// FusionWeights is the fixed, versioned modality weighting used by the
// fusion engine. Process-wide constant, not per-user.
var FusionWeights = map[Modality]float64{
	ModalityStatic:   0.2,
	ModalitySequence: 0.5,
	ModalitySignal:   0.3,
}

// FusionVersion tags fusion outputs for provenance logging.
const FusionVersion = "2.0.0"

// FusionResult is the deterministic combination of per-modality scores.
type FusionResult struct {
	Confidence     float64    `json:"confidence"`
	Liveness       float64    `json:"liveness"`
	ModelVersion   string     `json:"model_version"`
	ModalitiesUsed []Modality `json:"modalities_used"`
}

// AuthenticationResult is the ephemeral outcome of one authentication
// request. Never persisted; only training provenance is logged.
type AuthenticationResult struct {
	Confidence      float64    `json:"confidence"`
	Liveness        float64    `json:"liveness"`
	AnomalyScore    float64    `json:"anomaly_score"`
	BehavioralScore float64    `json:"behavioral_score,omitempty"`
	ModalitiesUsed  []Modality `json:"modalities_used"`
	IsAuthenticated bool       `json:"is_authenticated"`
	ModelVersion    string     `json:"model_version"`
}

// TrainingResult reports a completed training run for one (user, modality).
type TrainingResult struct {
	Status      string    `json:"status"`
	Modality    Modality  `json:"modality"`
	SampleCount int       `json:"sample_count"`
	Accuracy    float64   `json:"accuracy"`
	ArtifactRef string    `json:"artifact_ref"`
	TrainedAt   time.Time `json:"trained_at"`
}

// PolicyConfig holds the decision thresholds. The defaults are carried over
// from the original deployment and are not calibrated against real biometric
// data; callers may override them per engine instance.
type PolicyConfig struct {
	// FusionThreshold is the minimum fused confidence to authenticate.
	FusionThreshold float64
	// AnomalyThreshold is the minimum anomaly-screen score to authenticate.
	AnomalyThreshold float64
	// EnrollBlockThreshold blocks enrollment below this anomaly score.
	EnrollBlockThreshold float64
	// BehavioralThreshold marks a session as behaviorally authenticated.
	BehavioralThreshold float64
}

// DefaultPolicy returns the historical threshold defaults.
func DefaultPolicy() PolicyConfig {
	return PolicyConfig{
		FusionThreshold:      0.7,
		AnomalyThreshold:     0.4,
		EnrollBlockThreshold: 0.3,
		BehavioralThreshold:  0.6,
	}
}
