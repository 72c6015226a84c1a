package biometric

import (
	"context"
	"fmt"
	"sync"
)

// Engine composes the anomaly screen, modality trainers, fusion engine and
// behavioral profile engine into the four caller-facing operations:
// enrollment, training, authentication and behavioral updates.
//
// All operations are request-scoped; the only shared mutable state is the
// per-user model artifacts and timing profiles. Training is exclusive per
// (user, modality); inference reads a snapshot of the current artifact and
// runs fully in parallel.
type Engine struct {
	policy     PolicyConfig
	samples    SampleStore
	trainer    *ModalityTrainer
	anomaly    *AnomalyScreen
	behavioral *BehavioralEngine
	fusion     *FusionEngine

	mu         sync.Mutex
	trainLocks map[string]*sync.Mutex
}

// NewEngine wires an engine instance. policy zero-values fall back to the
// historical defaults.
func NewEngine(samples SampleStore, artifacts ArtifactStore, policy PolicyConfig) *Engine {
	if policy == (PolicyConfig{}) {
		policy = DefaultPolicy()
	}
	return &Engine{
		policy:     policy,
		samples:    samples,
		trainer:    NewModalityTrainer(samples, artifacts),
		anomaly:    NewAnomalyScreen(artifacts),
		behavioral: NewBehavioralEngine(),
		fusion:     NewFusionEngine(),
		trainLocks: make(map[string]*sync.Mutex),
	}
}

// Policy returns the engine's decision thresholds.
func (e *Engine) Policy() PolicyConfig { return e.policy }

// Behavioral exposes the behavioral profile engine.
func (e *Engine) Behavioral() *BehavioralEngine { return e.behavioral }

// Anomaly exposes the anomaly screen.
func (e *Engine) Anomaly() *AnomalyScreen { return e.anomaly }

// EnrollResult reports whether a sample was accepted for storage.
type EnrollResult struct {
	Accepted     bool    `json:"accepted"`
	AnomalyScore float64 `json:"anomaly_score"`
}

// Enroll screens an incoming feature vector and stores it when it is
// consistent with the user's established pattern. Below the block threshold
// the sample is rejected without storage.
func (e *Engine) Enroll(ctx context.Context, userID string, modality Modality, vector FeatureVector) (*EnrollResult, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: missing feature vector", ErrInvalidInput)
	}
	if !modality.Recognized() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModality, modality)
	}

	score := e.anomaly.Detect(ctx, userID, vector)
	anomalyScore.Observe(score)
	if score < e.policy.EnrollBlockThreshold {
		enrollTotal.WithLabelValues("blocked").Inc()
		return &EnrollResult{Accepted: false, AnomalyScore: score}, nil
	}

	if err := e.samples.Append(ctx, userID, modality, vector); err != nil {
		enrollTotal.WithLabelValues("error").Inc()
		return nil, &StorageError{Op: "append sample", Err: err}
	}
	enrollTotal.WithLabelValues("accepted").Inc()
	return &EnrollResult{Accepted: true, AnomalyScore: score}, nil
}

// Train retrains the user's classifier for one modality, replacing any prior
// artifact. Concurrent training requests for the same (user, modality) are
// serialized; different pairs proceed in parallel.
//
// Training the static modality also refreshes the anomaly baseline, since
// static samples are the screen's reference modality. The refresh is
// best-effort: a refresh failure never fails a completed training run.
func (e *Engine) Train(ctx context.Context, userID string, modality Modality) (*TrainingResult, error) {
	lock := e.lockFor(userID, modality)
	lock.Lock()
	defer lock.Unlock()

	result, err := e.trainer.Train(ctx, userID, modality)
	if err != nil {
		trainTotal.WithLabelValues(string(modality), "error").Inc()
		return nil, err
	}
	trainTotal.WithLabelValues(string(modality), "trained").Inc()

	if modality == ModalityStatic {
		if samples, ferr := e.samples.FetchOrdered(ctx, userID, ModalityStatic); ferr == nil {
			_ = e.anomaly.Train(ctx, userID, samples)
		}
	}
	return result, nil
}

// Authenticate scores a feature vector (and optionally a timing session)
// against everything trained for the user and returns the composed decision.
// Modalities without a trained artifact are simply absent from fusion.
func (e *Engine) Authenticate(ctx context.Context, userID string, vector FeatureVector, timing []TimingEvent) (*AuthenticationResult, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("%w: missing feature vector", ErrInvalidInput)
	}

	anomaly := e.anomaly.Detect(ctx, userID, vector)
	anomalyScore.Observe(anomaly)

	scores := make(map[Modality]float64)
	for _, modality := range Modalities {
		score, ok, err := e.scoreModality(ctx, userID, modality, vector)
		if err != nil {
			return nil, err
		}
		if ok {
			scores[modality] = score
		}
	}

	fused := e.fusion.Fuse(scores)
	fusionConfidence.Observe(fused.Confidence)

	result := &AuthenticationResult{
		Confidence:     fused.Confidence,
		Liveness:       fused.Liveness,
		AnomalyScore:   anomaly,
		ModalitiesUsed: fused.ModalitiesUsed,
		ModelVersion:   fused.ModelVersion,
		IsAuthenticated: fused.Confidence > e.policy.FusionThreshold &&
			anomaly > e.policy.AnomalyThreshold,
	}
	if len(timing) > 0 {
		result.BehavioralScore = e.behavioral.VerifyUser(userID, timing)
	}

	if result.IsAuthenticated {
		authTotal.WithLabelValues("accepted").Inc()
	} else {
		authTotal.WithLabelValues("rejected").Inc()
	}
	return result, nil
}

// UpdateBehavior folds a typing session into the user's timing profile.
func (e *Engine) UpdateBehavior(userID string, session []TimingEvent) bool {
	return e.behavioral.UpdateProfile(userID, session)
}

// scoreModality runs inference for one modality if an artifact exists. The
// sequence modality scores the incoming vector in the context of the user's
// most recent stored samples, mirroring the contiguous windows it was
// trained on; without enough history the modality is skipped.
func (e *Engine) scoreModality(ctx context.Context, userID string, modality Modality, vector FeatureVector) (float64, bool, error) {
	artifact, ok, err := e.trainer.Load(ctx, userID, modality)
	if err != nil {
		return 0, false, err
	}
	if !ok {
		return 0, false, nil
	}

	if artifact.WindowLength > 0 {
		history, err := e.samples.FetchOrdered(ctx, userID, modality)
		if err != nil {
			return 0, false, &StorageError{Op: "fetch samples", Err: err}
		}
		need := artifact.WindowLength - 1
		if len(history) < need {
			return 0, false, nil
		}
		window := make([]FeatureVector, 0, artifact.WindowLength)
		window = append(window, history[len(history)-need:]...)
		window = append(window, vector)
		score, err := artifact.ScoreWindow(window)
		if err != nil {
			return 0, false, err
		}
		return score, true, nil
	}

	score, err := artifact.Score(vector)
	if err != nil {
		return 0, false, err
	}
	return score, true, nil
}

func (e *Engine) lockFor(userID string, modality Modality) *sync.Mutex {
	key := userID + "/" + string(modality)
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.trainLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		e.trainLocks[key] = lock
	}
	return lock
}
