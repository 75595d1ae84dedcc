package pdf

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"farmcopilot/internal/domain"
)

var signature = []byte("%PDF-")

// IsPDF reports whether data starts with the PDF file signature.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(data, signature)
}

// Extractor pulls plain text out of each page of a PDF.
type Extractor struct{}

func NewExtractor() *Extractor { return &Extractor{} }

func (e *Extractor) Extract(ctx context.Context, data []byte) (doc domain.Document, err error) {
	if !IsPDF(data) {
		return domain.Document{}, fmt.Errorf("%w: missing PDF signature", domain.ErrExtraction)
	}
	// the parser panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			doc = domain.Document{}
			err = fmt.Errorf("%w: malformed PDF: %v", domain.ErrExtraction, r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return domain.Document{}, fmt.Errorf("%w: %v", domain.ErrExtraction, err)
	}
	n := r.NumPage()
	pages := make([]string, 0, n)
	blank := true
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return domain.Document{}, err
		}
		p := r.Page(i)
		if p.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return domain.Document{}, fmt.Errorf("%w: page %d: %v", domain.ErrExtraction, i, err)
		}
		if strings.TrimSpace(text) != "" {
			blank = false
		}
		pages = append(pages, text)
	}
	if blank {
		return domain.Document{}, fmt.Errorf("%w: no extractable text", domain.ErrExtraction)
	}
	return domain.Document{Pages: pages}, nil
}
