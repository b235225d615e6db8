// Package vector provides the similarity math used by the search engine.
// Embeddings are stored as float32 slices; accumulation happens in float64
// to keep scores stable across corpus sizes.
package vector

import (
	"fmt"
	"math"
)

// CosineSimilarity computes the cosine similarity between two vectors,
// dot(a,b) / (|a| * |b|), a value in [-1, 1].
//
// It returns an error if the vectors differ in length, are empty, or if
// either has zero magnitude. A zero-norm vector is a degenerate input:
// failing here keeps NaN out of the ranking.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector: dimension mismatch: %d vs %d", len(a), len(b))
	}
	if len(a) == 0 {
		return 0, fmt.Errorf("vector: cosine similarity on empty vectors")
	}

	var dot, na2, nb2 float64
	for i := range a {
		va := float64(a[i])
		vb := float64(b[i])
		dot += va * vb
		na2 += va * va
		nb2 += vb * vb
	}

	if na2 == 0 || nb2 == 0 {
		return 0, fmt.Errorf("vector: cosine similarity with zero-magnitude vector")
	}

	return dot / (math.Sqrt(na2) * math.Sqrt(nb2)), nil
}

// Norm returns the Euclidean magnitude of v.
func Norm(v []float32) float64 {
	var sum float64
	for i := range v {
		f := float64(v[i])
		sum += f * f
	}
	return math.Sqrt(sum)
}
