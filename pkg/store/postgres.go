// Package store provides the sample, artifact and provenance stores the
// biometric engine delegates persistence to: Postgres for durability, an
// optional Redis read-through cache for hot artifacts, and an in-memory
// variant for tests and database-less runs.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	_ "github.com/lib/pq"

	"bioshield/pkg/biometric"
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// Postgres persists samples append-only (insertion order preserved via the
// serial primary key), model artifacts with replace-on-save semantics, and
// training provenance rows.
type Postgres struct {
	db *sql.DB
}

// Open connects, configures the pool and applies migrations.
func Open(dbURL string) (*Postgres, error) {
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}
	return &Postgres{db: db}, nil
}

// Append stores one feature vector. Vectors are immutable once stored.
func (p *Postgres) Append(ctx context.Context, userID string, modality biometric.Modality, vector biometric.FeatureVector) error {
	blob, err := codec.Marshal(vector)
	if err != nil {
		return err
	}
	_, err = p.db.ExecContext(ctx,
		`INSERT INTO biometric_samples (user_id, modality, feature_vector) VALUES ($1, $2, $3)`,
		userID, string(modality), string(blob))
	return err
}

// FetchOrdered returns all of a user's vectors for one modality in insertion
// order.
func (p *Postgres) FetchOrdered(ctx context.Context, userID string, modality biometric.Modality) ([]biometric.FeatureVector, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT feature_vector FROM biometric_samples WHERE user_id = $1 AND modality = $2 ORDER BY id ASC`,
		userID, string(modality))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vectors []biometric.FeatureVector
	for rows.Next() {
		var blob string
		if err := rows.Scan(&blob); err != nil {
			return nil, err
		}
		var v biometric.FeatureVector
		if err := codec.Unmarshal([]byte(blob), &v); err != nil {
			return nil, err
		}
		vectors = append(vectors, v)
	}
	return vectors, rows.Err()
}

// Save stores an artifact blob, replacing any prior artifact for the key in
// a single statement so a retrain either fully swaps the artifact or leaves
// the prior one untouched.
func (p *Postgres) Save(ctx context.Context, key string, blob []byte) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO model_artifacts (key, artifact, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET artifact = EXCLUDED.artifact, updated_at = NOW()`,
		key, blob)
	return err
}

// Load fetches an artifact blob; absence is reported via the boolean.
func (p *Postgres) Load(ctx context.Context, key string) ([]byte, bool, error) {
	var blob []byte
	err := p.db.QueryRowContext(ctx,
		`SELECT artifact FROM model_artifacts WHERE key = $1`, key).Scan(&blob)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return blob, true, nil
}

// LogModelVersion records training provenance and returns the version row's
// reference ID.
func (p *Postgres) LogModelVersion(ctx context.Context, userID string, modality biometric.Modality, version string, accuracy float64, artifactKey string) (string, error) {
	ref := uuid.NewString()
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO model_versions (id, user_id, modality, version, accuracy, artifact_key)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		ref, userID, string(modality), version, accuracy, artifactKey)
	if err != nil {
		return "", err
	}
	return ref, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() error { return p.db.Close() }
