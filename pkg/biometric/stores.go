package biometric

import "context"

// SampleSource provides ordered retrieval of stored feature vectors.
// Insertion order is the only ordering guarantee.
type SampleSource interface {
	FetchOrdered(ctx context.Context, userID string, modality Modality) ([]FeatureVector, error)
}

// SampleStore extends SampleSource with append. The store exclusively owns
// persisted samples.
type SampleStore interface {
	SampleSource
	Append(ctx context.Context, userID string, modality Modality, vector FeatureVector) error
}

// ArtifactStore persists opaque model artifacts with replace-on-save
// semantics. Load reports absence via the second return value, not an error.
type ArtifactStore interface {
	Save(ctx context.Context, key string, blob []byte) error
	Load(ctx context.Context, key string) ([]byte, bool, error)
}

// ArtifactKey builds the store key for a user's modality artifact.
func ArtifactKey(userID string, modality Modality) string {
	return "user/" + userID + "/" + string(modality)
}

// AnomalyArtifactKey builds the store key for a user's anomaly model.
func AnomalyArtifactKey(userID string) string {
	return "user/" + userID + "/anomaly"
}
