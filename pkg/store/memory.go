package store

import (
	"context"
	"sync"

	"bioshield/pkg/biometric"
)

// Memory is an in-memory sample and artifact store for tests and
// database-less runs. Samples keep insertion order per (user, modality).
type Memory struct {
	mu        sync.RWMutex
	samples   map[string][]biometric.FeatureVector
	artifacts map[string][]byte
	versions  []ModelVersion
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{
		samples:   make(map[string][]biometric.FeatureVector),
		artifacts: make(map[string][]byte),
	}
}

func sampleKey(userID string, modality biometric.Modality) string {
	return userID + "/" + string(modality)
}

// Append stores a copy of the vector in insertion order.
func (m *Memory) Append(ctx context.Context, userID string, modality biometric.Modality, vector biometric.FeatureVector) error {
	cp := make(biometric.FeatureVector, len(vector))
	copy(cp, vector)

	m.mu.Lock()
	defer m.mu.Unlock()
	key := sampleKey(userID, modality)
	m.samples[key] = append(m.samples[key], cp)
	return nil
}

// FetchOrdered returns the stored vectors in insertion order.
func (m *Memory) FetchOrdered(ctx context.Context, userID string, modality biometric.Modality) ([]biometric.FeatureVector, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stored := m.samples[sampleKey(userID, modality)]
	out := make([]biometric.FeatureVector, len(stored))
	copy(out, stored)
	return out, nil
}

// Save replaces any prior artifact for the key.
func (m *Memory) Save(ctx context.Context, key string, blob []byte) error {
	cp := make([]byte, len(blob))
	copy(cp, blob)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.artifacts[key] = cp
	return nil
}

// Load fetches an artifact; absence is reported via the boolean.
func (m *Memory) Load(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	blob, ok := m.artifacts[key]
	return blob, ok, nil
}

// ModelVersion is one recorded training provenance row.
type ModelVersion struct {
	Ref         string
	UserID      string
	Modality    biometric.Modality
	Version     string
	Accuracy    float64
	ArtifactKey string
}

// LogModelVersion records training provenance in memory.
func (m *Memory) LogModelVersion(ctx context.Context, userID string, modality biometric.Modality, version string, accuracy float64, artifactKey string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ref := "mem-" + sampleKey(userID, modality)
	m.versions = append(m.versions, ModelVersion{
		Ref: ref, UserID: userID, Modality: modality,
		Version: version, Accuracy: accuracy, ArtifactKey: artifactKey,
	})
	return ref, nil
}

// Versions returns the recorded provenance rows.
func (m *Memory) Versions() []ModelVersion {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]ModelVersion, len(m.versions))
	copy(out, m.versions)
	return out
}
