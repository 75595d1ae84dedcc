package corpus

import (
	"fmt"
	"sync/atomic"
	"time"

	"farmcopilot/internal/vectorstore"
)

// Corpus is an immutable pairing of an index with the chunk texts it was
// built from. Row i of the index corresponds to Chunks[i].
type Corpus struct {
	ID      string
	Source  string
	Pages   int
	BuiltAt time.Time
	Index   *vectorstore.Index
	Chunks  []string
}

// New checks that index rows and chunk texts line up.
func New(ix *vectorstore.Index, chunks []string, source string, pages int) (*Corpus, error) {
	if ix == nil {
		return nil, fmt.Errorf("corpus: nil index")
	}
	if ix.Len() != len(chunks) {
		return nil, fmt.Errorf("corpus: index has %d rows but %d chunks", ix.Len(), len(chunks))
	}
	return &Corpus{
		ID:      ix.Meta().ID,
		Source:  source,
		Pages:   pages,
		BuiltAt: time.Now().UTC(),
		Index:   ix,
		Chunks:  append([]string(nil), chunks...),
	}, nil
}

// Holder publishes the current corpus to concurrent readers. A nil corpus
// means nothing has been ingested yet.
type Holder struct {
	current atomic.Pointer[Corpus]
}

func (h *Holder) Current() *Corpus { return h.current.Load() }

func (h *Holder) Publish(c *Corpus) { h.current.Store(c) }

func (h *Holder) Ready() bool { return h.current.Load() != nil }
