package chunker

import (
	"fmt"
	"strings"

	"farmcopilot/internal/domain"
)

// WindowChunker splits text into fixed-size rune windows that overlap by a
// constant number of runes.
type WindowChunker struct {
	chunkSize int
	overlap   int
}

// NewWindowChunker validates the window parameters and returns a chunker.
func NewWindowChunker(chunkSize, overlap int) (*WindowChunker, error) {
	if err := Validate(chunkSize, overlap); err != nil {
		return nil, err
	}
	return &WindowChunker{chunkSize: chunkSize, overlap: overlap}, nil
}

// Validate reports whether chunkSize and overlap produce a positive stride.
func Validate(chunkSize, overlap int) error {
	if chunkSize <= 0 || overlap < 0 || overlap >= chunkSize {
		return fmt.Errorf("%w: chunk_size=%d overlap=%d", domain.ErrInvalidChunkParameters, chunkSize, overlap)
	}
	return nil
}

func (c *WindowChunker) Chunk(text string) ([]domain.Chunk, error) {
	return Chunk(text, c.chunkSize, c.overlap)
}

// Chunk advances a window of chunkSize runes across text with stride
// chunkSize-overlap. It stops after the first window that reaches the end of
// the text, so a trailing window is never a pure subset of its predecessor.
func Chunk(text string, chunkSize, overlap int) ([]domain.Chunk, error) {
	if err := Validate(chunkSize, overlap); err != nil {
		return nil, err
	}
	runes := []rune(text)
	if len(runes) == 0 {
		return nil, nil
	}
	step := chunkSize - overlap
	var chunks []domain.Chunk
	for start := 0; start < len(runes); start += step {
		end := start + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, domain.Chunk{
			Position: len(chunks),
			Text:     strings.TrimSpace(string(runes[start:end])),
			Start:    start,
			End:      end,
		})
		if end == len(runes) {
			break
		}
	}
	return chunks, nil
}
