package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"bioshield/pkg/biometric"
)

// CachedArtifacts fronts an artifact store with a Redis read-through cache.
// Saves write through to the backing store first; a retrain that fails never
// leaves a stale cache entry ahead of a durable artifact.
type CachedArtifacts struct {
	inner biometric.ArtifactStore
	rdb   *redis.Client
	ttl   time.Duration
}

// NewCachedArtifacts wraps inner with a Redis cache.
func NewCachedArtifacts(inner biometric.ArtifactStore, rdb *redis.Client, ttl time.Duration) *CachedArtifacts {
	if ttl == 0 {
		ttl = 10 * time.Minute
	}
	return &CachedArtifacts{inner: inner, rdb: rdb, ttl: ttl}
}

func cacheKey(key string) string { return "bioshield:artifact:" + key }

// Save writes through to the backing store, then refreshes the cache entry.
// Cache failures are not surfaced: the durable write already succeeded.
func (c *CachedArtifacts) Save(ctx context.Context, key string, blob []byte) error {
	if err := c.inner.Save(ctx, key, blob); err != nil {
		return err
	}
	c.rdb.Set(ctx, cacheKey(key), blob, c.ttl)
	return nil
}

// Load serves from Redis when possible, falling back to the backing store
// and populating the cache on a hit.
func (c *CachedArtifacts) Load(ctx context.Context, key string) ([]byte, bool, error) {
	if blob, err := c.rdb.Get(ctx, cacheKey(key)).Bytes(); err == nil {
		return blob, true, nil
	}

	blob, ok, err := c.inner.Load(ctx, key)
	if err != nil || !ok {
		return blob, ok, err
	}
	c.rdb.Set(ctx, cacheKey(key), blob, c.ttl)
	return blob, true, nil
}
