package embedding

import (
	"errors"
	"fmt"
	"math"
)

// ErrDimensionMismatch indicates two vectors of unequal length were
// compared, or a provider returned a vector of the wrong size.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Cosine computes the cosine similarity of two vectors, clamped to
// [-1, 1]. Vectors of unequal length are an error, never silently 0.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0, nil
	}

	// Accumulated float error can land a hair outside the unit interval.
	return math.Max(-1, math.Min(1, dot/denom)), nil
}
