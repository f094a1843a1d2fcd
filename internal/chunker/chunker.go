package chunker

import (
	"errors"
	"unicode/utf8"
)

// ErrInvalidChunkSize is returned when the requested chunk size is not positive.
var ErrInvalidChunkSize = errors.New("chunk size must be positive")

// Chunk is a contiguous slice of document text. Chunks produced by Split are
// non-overlapping, ordered by Index, and concatenate back to the input exactly.
type Chunk struct {
	Index int
	Start int
	End   int
	Text  string
}

// Split cuts text into the smallest sequence of chunks whose lengths never
// exceed maxSize bytes. It prefers cutting just after a sentence terminator,
// then at a whitespace boundary, and falls back to a hard cut at maxSize so a
// pathological input (one long unbroken token) still makes forward progress.
func Split(text string, maxSize int) ([]Chunk, error) {
	if maxSize <= 0 {
		return nil, ErrInvalidChunkSize
	}
	if text == "" {
		return nil, nil
	}

	var chunks []Chunk
	start := 0
	for start < len(text) {
		end := len(text)
		if end-start > maxSize {
			end = start + cutPoint(text, start, maxSize)
		}
		chunks = append(chunks, Chunk{
			Index: len(chunks),
			Start: start,
			End:   end,
			Text:  text[start:end],
		})
		start = end
	}
	return chunks, nil
}

// cutPoint returns the length of the next chunk starting at start, at most
// maxSize. The window text[start:start+maxSize] is scanned backwards. The
// whitespace run following a boundary is absorbed into the earlier chunk, as
// far as the size limit allows, so the next chunk opens on a word.
func cutPoint(text string, start, maxSize int) int {
	limit := start + maxSize

	// Sentence terminator followed by whitespace.
	for i := limit - 1; i > start; i-- {
		if isTerminator(text[i]) && isSpace(text[i+1]) {
			return absorbSpace(text, i+1, limit) - start
		}
	}

	// Whitespace boundary. The window edge falling right before whitespace
	// already is one.
	if isSpace(text[limit]) {
		return maxSize
	}
	for i := limit - 1; i >= start; i-- {
		if isSpace(text[i]) {
			return absorbSpace(text, i+1, limit) - start
		}
	}

	// Hard cut. Back up to a rune start so a multi-byte character is never
	// torn in half; if the whole window is continuation bytes, cut anyway.
	cut := maxSize
	for cut > 0 && !utf8.RuneStart(text[start+cut]) {
		cut--
	}
	if cut == 0 {
		cut = maxSize
	}
	return cut
}

// absorbSpace extends a cut at pos across the trailing whitespace run,
// never past limit.
func absorbSpace(text string, pos, limit int) int {
	for pos < limit && isSpace(text[pos]) {
		pos++
	}
	return pos
}

func isTerminator(b byte) bool {
	return b == '.' || b == '!' || b == '?'
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
