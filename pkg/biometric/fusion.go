package biometric

import (
	"math"
	"sort"
)

// FusionEngine deterministically combines per-modality confidence scores
// into one authentication confidence and a liveness estimate. Fuse is a pure
// function of its input and the fixed FusionWeights: identical inputs always
// produce identical outputs, so downstream decisions stay reproducible and
// auditable.
type FusionEngine struct {
	weights map[Modality]float64
}

// NewFusionEngine returns an engine using the process-wide FusionWeights.
func NewFusionEngine() *FusionEngine {
	return &FusionEngine{weights: FusionWeights}
}

// Fuse combines scores by weighted average, renormalized over the modalities
// actually present. Unrecognized keys are ignored, never an error; an empty
// or fully-unrecognized map yields zero confidence.
func (fe *FusionEngine) Fuse(scores map[Modality]float64) FusionResult {
	result := FusionResult{
		ModelVersion:   FusionVersion,
		ModalitiesUsed: []Modality{},
	}

	total := 0.0
	weighted := 0.0
	for modality, score := range scores {
		weight, ok := fe.weights[modality]
		if !ok {
			continue
		}
		weighted += score * weight
		total += weight
		result.ModalitiesUsed = append(result.ModalitiesUsed, modality)
	}
	// Map iteration order must not leak into the output.
	sort.Slice(result.ModalitiesUsed, func(i, j int) bool {
		return result.ModalitiesUsed[i] < result.ModalitiesUsed[j]
	})

	if total > 0 {
		result.Confidence = roundTo(weighted/total, 4)
	}
	result.Liveness = fe.liveness(scores)
	return result
}

// liveness estimates capture consistency from the agreement between the
// sequence and signal views of the same action: a replayed input tends to
// diverge across independently-modeled views, a live session stays
// internally consistent. Advisory input to the decision, not a security
// boundary on its own.
func (fe *FusionEngine) liveness(scores map[Modality]float64) float64 {
	seq, hasSeq := scores[ModalitySequence]
	sig, hasSig := scores[ModalitySignal]
	if !hasSeq || !hasSig {
		return 0.5
	}
	return roundTo(math.Max(0, 1-math.Abs(seq-sig)), 4)
}

// roundTo rounds v to the given number of decimal digits for stable
// comparison and logging.
func roundTo(v float64, digits int) float64 {
	pow := math.Pow(10, float64(digits))
	return math.Round(v*pow) / pow
}
