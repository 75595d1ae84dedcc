package embedding

import (
	"fmt"
	"math"

	"farmcopilot/internal/domain"
)

// Embedder converts free text into a numeric vector representation.
type Embedder = domain.Embedder

// CheckBatch verifies that an embedder returned one vector per input and that
// every vector has the same non-zero dimension. It returns that dimension.
func CheckBatch(texts []string, vectors [][]float32) (int, error) {
	if len(vectors) != len(texts) {
		return 0, fmt.Errorf("embedder returned %d vectors for %d inputs", len(vectors), len(texts))
	}
	if len(vectors) == 0 {
		return 0, nil
	}
	dim := len(vectors[0])
	if dim == 0 {
		return 0, fmt.Errorf("embedder returned an empty vector")
	}
	for i, v := range vectors {
		if len(v) != dim {
			return 0, fmt.Errorf("vector %d has dimension %d, want %d", i, len(v), dim)
		}
	}
	return dim, nil
}

// L2Normalize scales v to unit length in place. Zero vectors are left alone.
func L2Normalize(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sum))
	for i := range v {
		v[i] *= inv
	}
}
