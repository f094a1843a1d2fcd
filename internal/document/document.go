package document

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Document holds the full text extracted from one source file. It is built
// once per input and never mutated afterwards.
type Document struct {
	Source   string
	Text     string
	Length   int
	Checksum string
}

// New normalizes raw extracted text and wraps it with its metadata. The
// checksum keys resumable jobs: the same source text always maps to the same
// job history.
func New(source, raw string) Document {
	text := Normalize(raw)
	sum := sha256.Sum256([]byte(text))
	return Document{
		Source:   source,
		Text:     text,
		Length:   len(text),
		Checksum: hex.EncodeToString(sum[:]),
	}
}

// Empty reports whether the document carries no extractable text.
func (d Document) Empty() bool {
	return d.Length == 0
}

// Normalize collapses all whitespace runs to single spaces. PDF extraction
// tends to leak layout artifacts (column breaks, hyphenation newlines) that
// read badly when synthesized.
func Normalize(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}
