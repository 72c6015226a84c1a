package biometric

import (
	"errors"
	"math"
	"testing"
)

func TestScalerFitTransform(t *testing.T) {
	data := [][]float64{
		{1, 10, 5},
		{2, 20, 5},
		{3, 30, 5},
		{4, 40, 5},
	}

	scaler := NewStandardScaler()
	if err := scaler.Fit(data); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	scaled, err := scaler.Transform(data)
	if err != nil {
		t.Fatalf("Transform failed: %v", err)
	}

	// Each dimension should come out zero-mean, unit-variance.
	for dim := 0; dim < 2; dim++ {
		mean, variance := 0.0, 0.0
		for _, row := range scaled {
			mean += row[dim]
		}
		mean /= float64(len(scaled))
		for _, row := range scaled {
			variance += (row[dim] - mean) * (row[dim] - mean)
		}
		variance /= float64(len(scaled))

		if math.Abs(mean) > 1e-9 {
			t.Errorf("Dim %d mean = %v, want 0", dim, mean)
		}
		if math.Abs(variance-1) > 1e-9 {
			t.Errorf("Dim %d variance = %v, want 1", dim, variance)
		}
	}

	// A constant dimension maps to zero rather than dividing by zero.
	for i, row := range scaled {
		if row[2] != 0 {
			t.Errorf("Constant dim row %d = %v, want 0", i, row[2])
		}
	}
}

func TestScalerErrors(t *testing.T) {
	scaler := NewStandardScaler()

	if err := scaler.Fit(nil); err == nil {
		t.Error("Fit with no data should fail")
	}
	if _, err := scaler.Transform([][]float64{{1, 2}}); err == nil {
		t.Error("Transform before Fit should fail")
	}
}

func TestScalerRejectsMixedWidths(t *testing.T) {
	scaler := NewStandardScaler()
	data := [][]float64{
		{1, 2, 3, 4},
		{5, 6, 7, 8},
		{1, 2, 3, 4, 5, 6},
	}
	if err := scaler.Fit(data); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Fit over mixed-width data = %v, want ErrInvalidInput", err)
	}
}

func TestScalerRoundTripStability(t *testing.T) {
	data := clusteredVectors(10, 3, 7, 2, 17)

	scaler := NewStandardScaler()
	if err := scaler.Fit(data); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}

	probe := []float64{7, 7, 7}
	a, err := scaler.TransformOne(probe)
	if err != nil {
		t.Fatalf("TransformOne failed: %v", err)
	}
	b, _ := scaler.TransformOne(probe)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("TransformOne not stable at dim %d: %v != %v", i, a[i], b[i])
		}
	}
}
