package domain

import (
	"context"
	"errors"
)

var (
	ErrInvalidChunkParameters = errors.New("invalid chunk parameters")
	ErrEmptyVectorSet         = errors.New("empty vector set")
	ErrIndexNotReady          = errors.New("index not ready")
	ErrCompletionService      = errors.New("completion service error")
	ErrExtraction             = errors.New("extraction error")
	ErrUnsupportedMedia       = errors.New("unsupported media type")
	ErrStorage                = errors.New("storage error")
)

// Chunk is a trimmed window of a document's extracted text.
// Start and End are rune offsets into the source text.
type Chunk struct {
	Position int
	Text     string
	Start    int
	End      int
}

// Document is the text extracted from an uploaded file, one entry per page.
type Document struct {
	Pages []string
}

// Embedder converts free text into numeric vectors, one per input string.
type Embedder interface {
	Name() string
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Chunker splits extracted text into ordered chunks.
type Chunker interface {
	Chunk(text string) ([]Chunk, error)
}

// Extractor turns raw upload bytes into page texts.
type Extractor interface {
	Extract(ctx context.Context, data []byte) (Document, error)
}

// Completer sends a system instruction and a user message to a hosted LLM.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}
