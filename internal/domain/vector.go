package domain

import "math"

// Cosine returns the cosine similarity between two vectors: dot(a,b)/(|a|*|b|).
// Zero-magnitude or mismatched-length vectors score 0, keeping rankings
// deterministic instead of propagating a division by zero.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
