package vectorstore

import (
	"context"
	"errors"
)

// ErrNoArtifacts is returned by Storage.Load when nothing has been saved yet.
var ErrNoArtifacts = errors.New("no stored artifacts")

// Artifacts is the pair persisted for one corpus: the encoded index and the
// chunk texts in index order. ID is the corpus ID and is stored alongside the
// chunks so a loader can tell whether both halves belong to the same corpus.
type Artifacts struct {
	ID     string
	Index  []byte
	Chunks []string
}

// ChunkSet is the stored form of the chunk artifact.
type ChunkSet struct {
	ID     string   `json:"id"`
	Chunks []string `json:"chunks"`
}

// Storage persists the index and chunk artifacts side by side. Save commits
// both or neither.
type Storage interface {
	Save(ctx context.Context, a Artifacts) error
	Load(ctx context.Context) (Artifacts, error)
}
