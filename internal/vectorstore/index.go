package vectorstore

import (
	"bytes"
	"encoding/gob"
	"errors"
	"fmt"
	"sort"

	"farmcopilot/internal/domain"
)

var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Hit is a single search result: the row position in insertion order and its
// squared Euclidean distance to the query.
type Hit struct {
	Position int
	Distance float32
}

// Meta describes where an index came from: the corpus ID, the embedder that
// produced the vectors and the uploaded source.
type Meta struct {
	ID     string
	Model  string
	Source string
	Pages  int
}

// Index is an immutable exact nearest-neighbour index over squared L2 distance.
type Index struct {
	meta      Meta
	dimension int
	vectors   [][]float32
}

// Build creates a fresh index over vectors. The rows are copied.
func Build(vectors [][]float32, meta Meta) (*Index, error) {
	if len(vectors) == 0 {
		return nil, domain.ErrEmptyVectorSet
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, fmt.Errorf("%w: zero-length vector", ErrDimensionMismatch)
	}
	rows := make([][]float32, len(vectors))
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: row %d has %d, want %d", ErrDimensionMismatch, i, len(v), dim)
		}
		rows[i] = append([]float32(nil), v...)
	}
	return &Index{meta: meta, dimension: dim, vectors: rows}, nil
}

func (ix *Index) Len() int { return len(ix.vectors) }
func (ix *Index) Dimension() int { return ix.dimension }
func (ix *Index) Meta() Meta { return ix.meta }

// Vectors returns a copy of the stored rows in insertion order.
func (ix *Index) Vectors() [][]float32 {
	out := make([][]float32, len(ix.vectors))
	for i, v := range ix.vectors {
		out[i] = append([]float32(nil), v...)
	}
	return out
}

// Search returns up to k rows nearest to query, ascending by distance. Equal
// distances keep insertion order.
func (ix *Index) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != ix.dimension {
		return nil, fmt.Errorf("%w: query has %d, index has %d", ErrDimensionMismatch, len(query), ix.dimension)
	}
	if k <= 0 {
		return nil, nil
	}
	hits := make([]Hit, len(ix.vectors))
	for i, v := range ix.vectors {
		hits[i] = Hit{Position: i, Distance: squaredL2(v, query)}
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].Distance < hits[b].Distance })
	if k > len(hits) {
		k = len(hits)
	}
	return hits[:k], nil
}

func squaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

type indexArtifact struct {
	ID        string
	Model     string
	Source    string
	Pages     int
	Dimension int
	Vectors   [][]float32
}

// MarshalBinary encodes the index as a gob artifact.
func (ix *Index) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(indexArtifact{
		ID:        ix.meta.ID,
		Model:     ix.meta.Model,
		Source:    ix.meta.Source,
		Pages:     ix.meta.Pages,
		Dimension: ix.dimension,
		Vectors:   ix.vectors,
	})
	if err != nil {
		return nil, fmt.Errorf("encode index: %w", err)
	}
	return buf.Bytes(), nil
}

// Load decodes an artifact written by MarshalBinary.
func Load(data []byte) (*Index, error) {
	var a indexArtifact
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&a); err != nil {
		return nil, fmt.Errorf("decode index: %w", err)
	}
	ix, err := Build(a.Vectors, Meta{ID: a.ID, Model: a.Model, Source: a.Source, Pages: a.Pages})
	if err != nil {
		return nil, err
	}
	if ix.dimension != a.Dimension {
		return nil, fmt.Errorf("%w: header says %d, rows have %d", ErrDimensionMismatch, a.Dimension, ix.dimension)
	}
	return ix, nil
}
