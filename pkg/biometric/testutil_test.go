package biometric

import (
	"context"
	"errors"
	"sync"
)

// memArtifacts is a minimal in-memory ArtifactStore for tests.
type memArtifacts struct {
	mu    sync.Mutex
	blobs map[string][]byte
	saves int
}

func newMemArtifacts() *memArtifacts {
	return &memArtifacts{blobs: make(map[string][]byte)}
}

func (m *memArtifacts) Save(ctx context.Context, key string, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(blob))
	copy(cp, blob)
	m.blobs[key] = cp
	m.saves++
	return nil
}

func (m *memArtifacts) Load(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	blob, ok := m.blobs[key]
	return blob, ok, nil
}

// memSamples is a minimal in-memory SampleStore for tests.
type memSamples struct {
	mu      sync.Mutex
	vectors map[string][]FeatureVector
}

func newMemSamples() *memSamples {
	return &memSamples{vectors: make(map[string][]FeatureVector)}
}

func (m *memSamples) Append(ctx context.Context, userID string, modality Modality, vector FeatureVector) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := userID + "/" + string(modality)
	cp := make(FeatureVector, len(vector))
	copy(cp, vector)
	m.vectors[key] = append(m.vectors[key], cp)
	return nil
}

func (m *memSamples) FetchOrdered(ctx context.Context, userID string, modality Modality) ([]FeatureVector, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := m.vectors[userID+"/"+string(modality)]
	out := make([]FeatureVector, len(stored))
	copy(out, stored)
	return out, nil
}

// failingSamples always errors, for StorageError propagation tests.
type failingSamples struct{}

func (failingSamples) Append(ctx context.Context, userID string, modality Modality, vector FeatureVector) error {
	return errors.New("connection refused")
}

func (failingSamples) FetchOrdered(ctx context.Context, userID string, modality Modality) ([]FeatureVector, error) {
	return nil, errors.New("connection refused")
}
