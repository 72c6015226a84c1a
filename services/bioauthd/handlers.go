package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"bioshield/pkg/biometric"
)

// VersionLog records training provenance; only the provenance of a model,
// never an authentication result, is persisted.
type VersionLog interface {
	LogModelVersion(ctx context.Context, userID string, modality biometric.Modality, version string, accuracy float64, artifactKey string) (string, error)
}

// Server exposes the engine's four public operations over HTTP. Request
// authentication is handled upstream by the gateway.
type Server struct {
	engine   *biometric.Engine
	versions VersionLog
}

// modelVersion tags provenance rows written on training.
const modelVersion = "1.0.0"

type enrollRequest struct {
	UserID     string                  `json:"user_id"`
	Vector     biometric.FeatureVector `json:"feature_vector"`
	SampleType biometric.Modality      `json:"sample_type"`
}

func (s *Server) Enroll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req enrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.SampleType == "" {
		req.SampleType = biometric.ModalityStatic
	}

	result, err := s.engine.Enroll(r.Context(), req.UserID, req.SampleType, req.Vector)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if !result.Accepted {
		writeJSON(w, http.StatusForbidden, map[string]any{
			"status":        "warning",
			"message":       "Anomaly detected in capture pattern",
			"accepted":      false,
			"anomaly_score": result.AnomalyScore,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "success",
		"accepted":      true,
		"anomaly_score": result.AnomalyScore,
	})
}

type trainRequest struct {
	UserID   string             `json:"user_id"`
	Modality biometric.Modality `json:"modality"`
}

func (s *Server) Train(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req trainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	result, err := s.engine.Train(r.Context(), req.UserID, req.Modality)
	if err != nil {
		s.writeError(w, err)
		return
	}

	ref := result.ArtifactRef
	if s.versions != nil {
		if id, err := s.versions.LogModelVersion(r.Context(), req.UserID, req.Modality, modelVersion, result.Accuracy, result.ArtifactRef); err != nil {
			log.Printf("Failed to log model version: %v", err)
		} else {
			ref = id
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":       result.Status,
		"modality":     result.Modality,
		"sample_count": result.SampleCount,
		"accuracy":     result.Accuracy,
		"artifact_ref": ref,
	})
}

type authenticateRequest struct {
	UserID     string                  `json:"user_id"`
	Vector     biometric.FeatureVector `json:"feature_vector"`
	TimingData []biometric.TimingEvent `json:"timing_data,omitempty"`
}

func (s *Server) Authenticate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req authenticateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	result, err := s.engine.Authenticate(r.Context(), req.UserID, req.Vector, req.TimingData)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type behaviorRequest struct {
	UserID     string                  `json:"user_id"`
	TimingData []biometric.TimingEvent `json:"timing_data"`
}

func (s *Server) UpdateBehavior(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req behaviorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	updated := s.engine.UpdateBehavior(req.UserID, req.TimingData)
	writeJSON(w, http.StatusOK, map[string]any{"updated": updated})
}

func (s *Server) VerifyBehavior(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req behaviorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	confidence := s.engine.Behavioral().VerifyUser(req.UserID, req.TimingData)
	writeJSON(w, http.StatusOK, map[string]any{
		"confidence":    confidence,
		"authenticated": confidence > s.engine.Policy().BehavioralThreshold,
	})
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, biometric.ErrInvalidInput), errors.Is(err, biometric.ErrUnknownModality):
		writeJSON(w, http.StatusBadRequest, map[string]any{"status": "error", "message": err.Error()})
	case errors.Is(err, biometric.ErrInsufficientData):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"status": "error", "message": err.Error()})
	case biometric.IsStorageError(err):
		log.Printf("Storage failure: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"status": "error", "message": "storage failure"})
	default:
		log.Printf("Request failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]any{"status": "error", "message": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}
