package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"farmcopilot/internal/corpus"
	"farmcopilot/internal/domain"
	"farmcopilot/internal/embedding"
	"farmcopilot/internal/vectorstore"
)

const (
	// TopK is the number of chunks forwarded as context for every question.
	TopK = 3

	ContextDelimiter = "\n\n---\n\n"

	SystemInstruction = "You are FarmCopilot, an assistant for farmers. Answer the question using only the provided context. " +
		"If the answer is not contained in the context, say that you cannot find it in the uploaded document."

	NotReadyMessage = "Please upload a document before asking questions."

	ModeReplace = "replace"
	ModeAppend  = "append"
)

// Options tunes ingestion behaviour.
type Options struct {
	Mode             string
	SummarySentences int
	PreviewRunes     int
}

// Upload is one file handed to Ingest.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// UploadSummary describes the corpus built from an upload.
type UploadSummary struct {
	Filename           string `json:"filename"`
	ContentType        string `json:"content_type"`
	PageCount          int    `json:"page_count"`
	ChunkCount         int    `json:"chunk_count"`
	FirstChunkPreview  string `json:"first_chunk_preview"`
	EmbeddingCount     int    `json:"embedding_count"`
	EmbeddingDimension int    `json:"embedding_dimension"`
	CorpusID           string `json:"corpus_id"`
	CorpusChunks       int    `json:"corpus_chunks"`
	Summary            string `json:"summary"`
	Message            string `json:"message"`
}

// Source is one retrieved chunk backing an answer.
type Source struct {
	Position int     `json:"position"`
	Distance float32 `json:"distance"`
	Preview  string  `json:"preview"`
}

type Answer struct {
	Text    string
	Sources []Source
}

// Status reports whether a corpus is loaded and what it holds.
type Status struct {
	State      string    `json:"state"`
	CorpusID   string    `json:"corpus_id,omitempty"`
	Source     string    `json:"source,omitempty"`
	Pages      int       `json:"pages,omitempty"`
	Chunks     int       `json:"chunks,omitempty"`
	Dimension  int       `json:"dimension,omitempty"`
	Model      string    `json:"model,omitempty"`
	BuiltAt    time.Time `json:"built_at,omitempty"`
	Embedder   string    `json:"embedder"`
	IngestMode string    `json:"ingest_mode"`
}

// RAGService owns the ingestion and question-answering pipeline. Readers go
// through the corpus holder and never block on an upload in progress.
type RAGService struct {
	extractor  domain.Extractor
	chunker    domain.Chunker
	embedder   domain.Embedder
	completer  domain.Completer
	summarizer domain.Summarizer
	storage    vectorstore.Storage
	holder     *corpus.Holder
	opts       Options
	logger     *slog.Logger

	uploadMu sync.Mutex
}

type Deps struct {
	Extractor  domain.Extractor
	Chunker    domain.Chunker
	Embedder   domain.Embedder
	Completer  domain.Completer
	Summarizer domain.Summarizer
	// Storage may be nil, in which case corpora live only in memory.
	Storage vectorstore.Storage
	Logger  *slog.Logger
}

func NewRAGService(d Deps, opts Options) *RAGService {
	if opts.Mode == "" {
		opts.Mode = ModeReplace
	}
	if opts.SummarySentences <= 0 {
		opts.SummarySentences = 3
	}
	if opts.PreviewRunes <= 0 {
		opts.PreviewRunes = 200
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RAGService{
		extractor:  d.Extractor,
		chunker:    d.Chunker,
		embedder:   d.Embedder,
		completer:  d.Completer,
		summarizer: d.Summarizer,
		storage:    d.Storage,
		holder:     &corpus.Holder{},
		opts:       opts,
		logger:     logger,
	}
}

// Ingest extracts, chunks and embeds an upload, then persists and publishes
// the resulting corpus. On any failure the published corpus is unchanged.
func (s *RAGService) Ingest(ctx context.Context, up Upload) (UploadSummary, error) {
	if http.DetectContentType(up.Data) != "application/pdf" {
		return UploadSummary{}, fmt.Errorf("%w: %s is not a PDF", domain.ErrUnsupportedMedia, up.Filename)
	}
	doc, err := s.extractor.Extract(ctx, up.Data)
	if err != nil {
		return UploadSummary{}, err
	}
	text := strings.Join(doc.Pages, "\n\n")
	chunks, err := s.chunker.Chunk(text)
	if err != nil {
		return UploadSummary{}, err
	}
	texts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if c.Text != "" {
			texts = append(texts, c.Text)
		}
	}
	if len(texts) == 0 {
		return UploadSummary{}, fmt.Errorf("%w: document produced no text chunks", domain.ErrExtraction)
	}

	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return UploadSummary{}, fmt.Errorf("embed chunks: %w", err)
	}
	dim, err := embedding.CheckBatch(texts, vectors)
	if err != nil {
		return UploadSummary{}, err
	}

	s.uploadMu.Lock()
	defer s.uploadMu.Unlock()

	allTexts, allVectors, pages := texts, vectors, len(doc.Pages)
	if prev := s.holder.Current(); prev != nil && s.opts.Mode == ModeAppend {
		if prev.Index.Dimension() != dim {
			return UploadSummary{}, fmt.Errorf("%w: cannot append %d-dimensional vectors to a %d-dimensional corpus",
				vectorstore.ErrDimensionMismatch, dim, prev.Index.Dimension())
		}
		allTexts = append(append([]string(nil), prev.Chunks...), texts...)
		allVectors = append(prev.Index.Vectors(), vectors...)
		pages += prev.Pages
	}

	ix, err := vectorstore.Build(allVectors, vectorstore.Meta{
		ID:     uuid.NewString(),
		Model:  s.embedder.Name(),
		Source: up.Filename,
		Pages:  pages,
	})
	if err != nil {
		return UploadSummary{}, err
	}
	c, err := corpus.New(ix, allTexts, up.Filename, pages)
	if err != nil {
		return UploadSummary{}, err
	}
	if err := s.persist(ctx, c); err != nil {
		return UploadSummary{}, err
	}
	s.holder.Publish(c)

	summary, err := s.summarizer.Summarize(text, s.opts.SummarySentences)
	if err != nil {
		s.logger.Warn("summarize upload", "filename", up.Filename, "error", err)
	}
	s.logger.Info("corpus published",
		"corpus_id", c.ID, "filename", up.Filename, "pages", len(doc.Pages),
		"chunks", len(texts), "corpus_chunks", len(c.Chunks), "dimension", dim, "mode", s.opts.Mode)

	return UploadSummary{
		Filename:           up.Filename,
		ContentType:        up.ContentType,
		PageCount:          len(doc.Pages),
		ChunkCount:         len(texts),
		FirstChunkPreview:  preview(texts[0], s.opts.PreviewRunes),
		EmbeddingCount:     len(vectors),
		EmbeddingDimension: dim,
		CorpusID:           c.ID,
		CorpusChunks:       len(c.Chunks),
		Summary:            summary,
		Message:            fmt.Sprintf("%s processed: %d chunks indexed.", up.Filename, len(texts)),
	}, nil
}

func (s *RAGService) persist(ctx context.Context, c *corpus.Corpus) error {
	if s.storage == nil {
		return nil
	}
	data, err := c.Index.MarshalBinary()
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	if err := s.storage.Save(ctx, vectorstore.Artifacts{ID: c.ID, Index: data, Chunks: c.Chunks}); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	return nil
}

// Answer retrieves the TopK nearest chunks for question and asks the
// completer to answer from them. Without a corpus it returns NotReadyMessage
// together with ErrIndexNotReady and calls nothing.
func (s *RAGService) Answer(ctx context.Context, question string) (Answer, error) {
	c := s.holder.Current()
	if c == nil {
		return Answer{Text: NotReadyMessage}, domain.ErrIndexNotReady
	}
	vecs, err := s.embedder.Embed(ctx, []string{question})
	if err != nil {
		return Answer{}, fmt.Errorf("embed question: %w", err)
	}
	if _, err := embedding.CheckBatch([]string{question}, vecs); err != nil {
		return Answer{}, err
	}
	hits, err := c.Index.Search(vecs[0], TopK)
	if err != nil {
		return Answer{}, err
	}

	parts := make([]string, len(hits))
	sources := make([]Source, len(hits))
	for i, h := range hits {
		parts[i] = c.Chunks[h.Position]
		sources[i] = Source{Position: h.Position, Distance: h.Distance, Preview: preview(c.Chunks[h.Position], s.opts.PreviewRunes)}
	}
	text, err := s.completer.Complete(ctx, SystemInstruction, BuildUserMessage(strings.Join(parts, ContextDelimiter), question))
	if err != nil {
		if !errors.Is(err, domain.ErrCompletionService) {
			err = fmt.Errorf("%w: %v", domain.ErrCompletionService, err)
		}
		return Answer{}, err
	}
	return Answer{Text: text, Sources: sources}, nil
}

// BuildUserMessage formats the retrieved context and the question as the
// single user turn sent to the completer.
func BuildUserMessage(context, question string) string {
	return "Context:\n" + context + "\n\nQuestion: " + question
}

// Restore loads persisted artifacts. Missing artifacts are not an error; any
// other failure leaves the service empty and is returned to the caller.
func (s *RAGService) Restore(ctx context.Context) error {
	if s.storage == nil {
		return nil
	}
	a, err := s.storage.Load(ctx)
	if errors.Is(err, vectorstore.ErrNoArtifacts) {
		s.logger.Info("no stored corpus, starting empty")
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: load artifacts: %v", domain.ErrStorage, err)
	}
	ix, err := vectorstore.Load(a.Index)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	if a.ID != ix.Meta().ID {
		return fmt.Errorf("%w: chunks belong to corpus %q, index to %q", domain.ErrStorage, a.ID, ix.Meta().ID)
	}
	meta := ix.Meta()
	c, err := corpus.New(ix, a.Chunks, meta.Source, meta.Pages)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	s.uploadMu.Lock()
	defer s.uploadMu.Unlock()
	if s.holder.Current() == nil {
		s.holder.Publish(c)
	}
	s.logger.Info("corpus restored", "corpus_id", c.ID, "chunks", len(c.Chunks), "dimension", ix.Dimension())
	return nil
}

func (s *RAGService) Status() Status {
	st := Status{State: "empty", Embedder: s.embedder.Name(), IngestMode: s.opts.Mode}
	c := s.holder.Current()
	if c == nil {
		return st
	}
	st.State = "ready"
	st.CorpusID = c.ID
	st.Source = c.Source
	st.Pages = c.Pages
	st.Chunks = len(c.Chunks)
	st.Dimension = c.Index.Dimension()
	st.Model = c.Index.Meta().Model
	st.BuiltAt = c.BuiltAt
	return st
}

func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
