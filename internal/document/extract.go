package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"
)

// ErrUnreadablePDF marks a source that cannot yield text: encrypted, corrupt,
// or image-only scans (no OCR is attempted).
var ErrUnreadablePDF = errors.New("unreadable pdf")

// Extractor pulls plain text out of PDF files.
type Extractor struct {
	logger *slog.Logger
}

func NewExtractor(log *slog.Logger) *Extractor {
	return &Extractor{logger: log.With(slog.String("component", "extractor"))}
}

// Extract reads every page of the PDF at path and returns the document built
// from its text. Page extraction failures are logged and skipped; a document
// with no text at all fails with ErrUnreadablePDF.
func (e *Extractor) Extract(ctx context.Context, path string) (Document, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return Document{}, fmt.Errorf("%w: open %s: %v", ErrUnreadablePDF, path, err)
	}
	defer f.Close()

	total := reader.NumPage()
	var parts []string
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return Document{}, err
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			e.logger.Warn("page extraction failed",
				slog.Int("page", i),
				slog.String("error", err.Error()))
			continue
		}
		text = strings.TrimSpace(text)
		e.logger.Debug("page extracted",
			slog.Int("page", i),
			slog.Int("total", total),
			slog.Int("chars", len(text)))
		if text != "" {
			parts = append(parts, text)
		}
	}

	doc := New(path, strings.Join(parts, "\n"))
	if doc.Empty() {
		return Document{}, fmt.Errorf("%w: no extractable text in %s (scanned image-only PDFs need OCR first)", ErrUnreadablePDF, path)
	}
	e.logger.Info("document extracted",
		slog.String("source", path),
		slog.Int("pages", total),
		slog.Int("chars", doc.Length))
	return doc, nil
}
