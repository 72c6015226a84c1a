package biometric

import (
	"fmt"
	"math"
)

// StandardScaler standardizes features to zero mean and unit variance per
// dimension. The fitted statistics are part of the trained artifact and are
// reapplied identically at inference time, so the fields are exported for
// serialization.
type StandardScaler struct {
	Mean []float64 `json:"mean"`
	Std  []float64 `json:"std"`
}

// NewStandardScaler returns an unfitted scaler.
func NewStandardScaler() *StandardScaler { return &StandardScaler{} }

// Fit computes per-dimension mean and standard deviation from data.
func (s *StandardScaler) Fit(data [][]float64) error {
	if len(data) == 0 {
		return fmt.Errorf("scaler fit: no data provided")
	}

	dims := len(data[0])
	s.Mean = make([]float64, dims)
	s.Std = make([]float64, dims)

	for i, sample := range data {
		if len(sample) != dims {
			return fmt.Errorf("%w: sample %d has %d features, want %d", ErrInvalidInput, i, len(sample), dims)
		}
		for j, v := range sample {
			s.Mean[j] += v
		}
	}
	for i := range s.Mean {
		s.Mean[i] /= float64(len(data))
	}

	for _, sample := range data {
		for i, v := range sample {
			diff := v - s.Mean[i]
			s.Std[i] += diff * diff
		}
	}
	for i := range s.Std {
		s.Std[i] = math.Sqrt(s.Std[i] / float64(len(data)))
		if s.Std[i] == 0 {
			s.Std[i] = 1.0 // constant dimension, avoid division by zero
		}
	}

	return nil
}

// Transform standardizes data with the fitted statistics.
func (s *StandardScaler) Transform(data [][]float64) ([][]float64, error) {
	if len(s.Mean) == 0 {
		return nil, fmt.Errorf("scaler not fitted")
	}

	result := make([][]float64, len(data))
	for i, sample := range data {
		scaled := make([]float64, len(sample))
		for j, v := range sample {
			if j < len(s.Mean) {
				scaled[j] = (v - s.Mean[j]) / s.Std[j]
			} else {
				scaled[j] = v
			}
		}
		result[i] = scaled
	}

	return result, nil
}

// TransformOne standardizes a single vector.
func (s *StandardScaler) TransformOne(v []float64) ([]float64, error) {
	out, err := s.Transform([][]float64{v})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}
