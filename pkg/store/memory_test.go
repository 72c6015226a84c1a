package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bioshield/pkg/biometric"
)

func TestMemoryPreservesInsertionOrder(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		err := m.Append(ctx, "alice", biometric.ModalityStatic, biometric.FeatureVector{float64(i)})
		require.NoError(t, err)
	}
	// Other users and modalities stay isolated.
	require.NoError(t, m.Append(ctx, "alice", biometric.ModalitySignal, biometric.FeatureVector{99}))
	require.NoError(t, m.Append(ctx, "bob", biometric.ModalityStatic, biometric.FeatureVector{42}))

	vectors, err := m.FetchOrdered(ctx, "alice", biometric.ModalityStatic)
	require.NoError(t, err)
	require.Len(t, vectors, 5)
	for i, v := range vectors {
		assert.Equal(t, float64(i), v[0])
	}
}

func TestMemoryCopiesOnAppendAndFetch(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	original := biometric.FeatureVector{1, 2, 3}
	require.NoError(t, m.Append(ctx, "alice", biometric.ModalityStatic, original))
	original[0] = 999

	fetched, err := m.FetchOrdered(ctx, "alice", biometric.ModalityStatic)
	require.NoError(t, err)
	assert.Equal(t, 1.0, fetched[0][0], "stored vector must be immutable")
}

func TestMemoryArtifactReplace(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, ok, err := m.Load(ctx, "user/alice/mlp")
	require.NoError(t, err)
	assert.False(t, ok, "absent artifact is not an error")

	require.NoError(t, m.Save(ctx, "user/alice/mlp", []byte("v1")))
	require.NoError(t, m.Save(ctx, "user/alice/mlp", []byte("v2")))

	blob, ok, err := m.Load(ctx, "user/alice/mlp")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("v2"), blob, "save must replace, not merge")
}

func TestMemoryModelVersionLog(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	ref, err := m.LogModelVersion(ctx, "alice", biometric.ModalityStatic, "1.0.0", 0.93, "user/alice/mlp")
	require.NoError(t, err)
	assert.NotEmpty(t, ref)

	versions := m.Versions()
	require.Len(t, versions, 1)
	assert.Equal(t, "alice", versions[0].UserID)
	assert.Equal(t, 0.93, versions[0].Accuracy)
}
