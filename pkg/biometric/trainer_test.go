package biometric

import (
	"context"
	"errors"
	"testing"
)

func seedSamples(t *testing.T, samples *memSamples, userID string, modality Modality, vectors []FeatureVector) {
	t.Helper()
	ctx := context.Background()
	for _, v := range vectors {
		if err := samples.Append(ctx, userID, modality, v); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
}

func TestTrainInsufficientData(t *testing.T) {
	tests := []struct {
		name     string
		modality Modality
		count    int
	}{
		{"static below minimum", ModalityStatic, 19},
		{"sequence below minimum", ModalitySequence, 19},
		{"sequence at window length", ModalitySequence, 10},
		{"signal below minimum", ModalitySignal, 29},
		{"no samples at all", ModalityStatic, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			samples := newMemSamples()
			artifacts := newMemArtifacts()
			seedSamples(t, samples, "alice", tt.modality, clusteredVectors(tt.count, 4, 1, 0.5, 3))

			trainer := NewModalityTrainer(samples, artifacts)
			_, err := trainer.Train(context.Background(), "alice", tt.modality)
			if !errors.Is(err, ErrInsufficientData) {
				t.Errorf("Train error = %v, want ErrInsufficientData", err)
			}
			if _, ok, _ := artifacts.Load(context.Background(), ArtifactKey("alice", tt.modality)); ok {
				t.Error("No partial artifact may exist after a failed training")
			}
		})
	}
}

func TestTrainUnknownModality(t *testing.T) {
	trainer := NewModalityTrainer(newMemSamples(), newMemArtifacts())
	_, err := trainer.Train(context.Background(), "alice", "retina")
	if !errors.Is(err, ErrUnknownModality) {
		t.Errorf("Train error = %v, want ErrUnknownModality", err)
	}
}

func TestTrainStorageErrorPropagates(t *testing.T) {
	trainer := NewModalityTrainer(failingSamples{}, newMemArtifacts())
	_, err := trainer.Train(context.Background(), "alice", ModalityStatic)
	if !IsStorageError(err) {
		t.Errorf("Train error = %v, want StorageError", err)
	}
}

func TestTrainProducesArtifact(t *testing.T) {
	tests := []struct {
		name        string
		modality    Modality
		count       int
		wantPosives int
	}{
		{"static", ModalityStatic, 25, 25},
		{"sequence windows to N minus length", ModalitySequence, 30, 20},
		{"signal", ModalitySignal, 32, 32},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			samples := newMemSamples()
			artifacts := newMemArtifacts()
			seedSamples(t, samples, "bob", tt.modality, clusteredVectors(tt.count, 4, 2, 0.5, 5))

			trainer := NewModalityTrainer(samples, artifacts)
			result, err := trainer.Train(ctx, "bob", tt.modality)
			if err != nil {
				t.Fatalf("Train failed: %v", err)
			}

			if result.Status != "trained" {
				t.Errorf("Status = %q, want trained", result.Status)
			}
			if result.SampleCount != tt.wantPosives {
				t.Errorf("SampleCount = %d, want %d", result.SampleCount, tt.wantPosives)
			}
			if result.Accuracy < 0 || result.Accuracy > 1 {
				t.Errorf("Accuracy out of range: %v", result.Accuracy)
			}

			artifact, ok, err := trainer.Load(ctx, "bob", tt.modality)
			if err != nil || !ok {
				t.Fatalf("Load after Train = %v, %v", ok, err)
			}
			if artifact.Modality != tt.modality {
				t.Errorf("Artifact modality = %q, want %q", artifact.Modality, tt.modality)
			}
			if artifact.Scaler == nil {
				t.Error("Artifact must carry the fitted scaler")
			}
		})
	}
}

func TestInferenceIdempotentAndRoundTrip(t *testing.T) {
	ctx := context.Background()
	samples := newMemSamples()
	artifacts := newMemArtifacts()
	seedSamples(t, samples, "carol", ModalityStatic, clusteredVectors(25, 4, 3, 0.5, 9))

	trainer := NewModalityTrainer(samples, artifacts)
	if _, err := trainer.Train(ctx, "carol", ModalityStatic); err != nil {
		t.Fatalf("Train failed: %v", err)
	}

	artifact, _, err := trainer.Load(ctx, "carol", ModalityStatic)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	probe := FeatureVector{3, 3, 3, 3}
	first, err := artifact.Score(probe)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if first < 0 || first > 1 {
		t.Errorf("Score out of range: %v", first)
	}
	for i := 0; i < 10; i++ {
		got, _ := artifact.Score(probe)
		if got != first {
			t.Fatalf("Score not idempotent: %v != %v", got, first)
		}
	}

	// Encode/decode must preserve inference exactly.
	blob, err := artifact.Encode()
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	decoded, err := DecodeArtifact(blob)
	if err != nil {
		t.Fatalf("DecodeArtifact failed: %v", err)
	}
	if got, _ := decoded.Score(probe); got != first {
		t.Errorf("Round-tripped artifact scores %v, want %v", got, first)
	}
}

func TestRetrainReplacesArtifact(t *testing.T) {
	ctx := context.Background()
	samples := newMemSamples()
	artifacts := newMemArtifacts()
	seedSamples(t, samples, "dave", ModalityStatic, clusteredVectors(25, 4, 1, 0.5, 21))

	trainer := NewModalityTrainer(samples, artifacts)
	if _, err := trainer.Train(ctx, "dave", ModalityStatic); err != nil {
		t.Fatalf("Train failed: %v", err)
	}

	// More data shifts the scaler; the artifact must be fully replaced.
	seedSamples(t, samples, "dave", ModalityStatic, clusteredVectors(25, 4, 8, 0.5, 22))
	if _, err := trainer.Train(ctx, "dave", ModalityStatic); err != nil {
		t.Fatalf("Retrain failed: %v", err)
	}

	artifact, _, err := trainer.Load(ctx, "dave", ModalityStatic)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if artifact.SampleCount != 50 {
		t.Errorf("SampleCount = %d, want 50 after retrain over all samples", artifact.SampleCount)
	}
	if artifacts.saves != 2 {
		t.Errorf("Artifact saves = %d, want 2 (replace, not merge)", artifacts.saves)
	}
}

func TestTrainRejectsMixedWidthSamples(t *testing.T) {
	ctx := context.Background()
	samples := newMemSamples()
	seedSamples(t, samples, "frank", ModalityStatic, clusteredVectors(20, 4, 2, 0.5, 71))
	seedSamples(t, samples, "frank", ModalityStatic, clusteredVectors(1, 6, 2, 0.5, 72))

	trainer := NewModalityTrainer(samples, newMemArtifacts())
	_, err := trainer.Train(ctx, "frank", ModalityStatic)
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Train over mixed-width samples = %v, want ErrInvalidInput", err)
	}
}

func TestDecodeArtifactRequiresClassifier(t *testing.T) {
	if _, err := DecodeArtifact([]byte(`{not json`)); err == nil {
		t.Error("DecodeArtifact should reject malformed JSON")
	}
	blob := []byte(`{"modality":"mlp","scaler":{"mean":[0],"std":[1]},"sample_count":20}`)
	if _, err := DecodeArtifact(blob); err == nil {
		t.Error("DecodeArtifact should reject a blob carrying no classifier")
	}
}

func TestWindowize(t *testing.T) {
	data := make([][]float64, 15)
	for i := range data {
		data[i] = []float64{float64(i), float64(i) * 2}
	}

	windows := windowize(data, 10)
	if len(windows) != 5 {
		t.Fatalf("windowize(15, 10) = %d windows, want 5", len(windows))
	}
	if len(windows[0]) != 20 {
		t.Errorf("Flattened window length = %d, want 20", len(windows[0]))
	}
	// First window covers samples 0..9; its last value is sample 9.
	if windows[0][19] != 18 {
		t.Errorf("windows[0][19] = %v, want 18", windows[0][19])
	}

	if got := windowize(data[:10], 10); got != nil {
		t.Errorf("windowize at window length should yield nil, got %d windows", len(got))
	}
}

func TestTrainingDeterministic(t *testing.T) {
	ctx := context.Background()
	vectors := clusteredVectors(25, 4, 2, 0.5, 33)

	score := func() float64 {
		samples := newMemSamples()
		seedSamples(t, samples, "erin", ModalityStatic, vectors)
		trainer := NewModalityTrainer(samples, newMemArtifacts())
		if _, err := trainer.Train(ctx, "erin", ModalityStatic); err != nil {
			t.Fatalf("Train failed: %v", err)
		}
		artifact, _, _ := trainer.Load(ctx, "erin", ModalityStatic)
		got, _ := artifact.Score(FeatureVector{2, 2, 2, 2})
		return got
	}

	if a, b := score(), score(); a != b {
		t.Errorf("Training the same data twice must produce the same model: %v != %v", a, b)
	}
}
