// Package chunker splits normalized document text into overlapping spans
// with positional metadata.
//
// A chunk is a body of at most chunkSize characters plus chunkOverlap
// trailing characters shared with the next chunk. Cut points prefer, in
// order: paragraph breaks, line breaks, sentence ends, and word boundaries,
// falling back to a hard character cut when none occur in the search
// window. Cut points and span ends always land on rune boundaries, so every
// chunk is valid UTF-8. The ordered union of chunk spans reconstructs the
// input exactly, and consecutive spans overlap by exactly chunkOverlap bytes
// (backed off to a rune boundary when the overlap would split a character;
// the final chunk may be shorter). Splitting is deterministic: identical
// input and parameters always produce an identical chunk sequence.
package chunker

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

// Error reports invalid chunking parameters or unusable input.
// These failures are permanent: retrying without changing the parameters
// or the document cannot succeed.
type Error struct {
	Reason string
}

func (e *Error) Error() string {
	return "chunking failed: " + e.Reason
}

// Chunk is one span of the source text.
// CharStart/CharEnd are absolute offsets into the normalized text
// (CharEnd exclusive). Page is the zero-based index of the page containing
// CharStart.
type Chunk struct {
	Index     int
	Text      string
	CharStart int
	CharEnd   int
	Page      int
}

// separators lists cut-point candidates in priority order.
var separators = []string{"\n\n", "\n", ". ", "! ", "? ", " "}

// Split chunks text into overlapping spans.
//
// pageOffsets holds the absolute start offset of each page in text and must
// begin with 0; pass nil for single-page documents. Returns an *Error when
// chunkSize < 1, chunkOverlap is negative or >= chunkSize, or text is blank.
func Split(text string, pageOffsets []int, chunkSize, chunkOverlap int) ([]Chunk, error) {
	if chunkSize < 1 {
		return nil, &Error{Reason: fmt.Sprintf("chunk size must be positive, got %d", chunkSize)}
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, &Error{Reason: fmt.Sprintf(
			"chunk overlap must be >= 0 and < chunk size, got overlap=%d size=%d",
			chunkOverlap, chunkSize)}
	}
	if strings.TrimSpace(text) == "" {
		return nil, &Error{Reason: "input text is empty"}
	}
	if len(pageOffsets) == 0 {
		pageOffsets = []int{0}
	}

	var chunks []Chunk
	bodyStart := 0
	for bodyStart < len(text) {
		bodyEnd := cutPoint(text, bodyStart, chunkSize)
		spanEnd := bodyEnd + chunkOverlap
		if spanEnd > len(text) {
			spanEnd = len(text)
		} else {
			spanEnd = runeFloor(text, spanEnd)
		}

		chunks = append(chunks, Chunk{
			Index:     len(chunks),
			Text:      text[bodyStart:spanEnd],
			CharStart: bodyStart,
			CharEnd:   spanEnd,
			Page:      pageAt(pageOffsets, bodyStart),
		})

		if bodyEnd >= len(text) {
			break
		}
		bodyStart = bodyEnd
	}

	return chunks, nil
}

// cutPoint returns the end of the chunk body starting at start. It prefers
// the last separator occurrence in the second half of the window so chunk
// bodies stay above half the configured size; without one it cuts hard at
// the size limit, backed off so multi-byte runes never split. Separator
// cuts land after ASCII bytes and are rune-safe as is.
func cutPoint(text string, start, chunkSize int) int {
	limit := start + chunkSize
	if limit >= len(text) {
		return len(text)
	}

	floor := start + chunkSize/2
	window := text[floor:limit]
	for _, sep := range separators {
		if i := strings.LastIndex(window, sep); i >= 0 {
			cut := floor + i + len(sep)
			if cut > start {
				return cut
			}
		}
	}

	cut := runeFloor(text, limit)
	if cut <= start {
		// Chunk size smaller than the rune at start: take the whole rune
		// so the walk always advances.
		_, size := utf8.DecodeRuneInString(text[start:])
		cut = start + size
	}
	return cut
}

// runeFloor backs i off to the nearest rune start at or before i.
func runeFloor(s string, i int) int {
	if i >= len(s) {
		return len(s)
	}
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

// pageAt returns the index of the page containing offset.
func pageAt(pageOffsets []int, offset int) int {
	// First page whose start is beyond the offset, minus one.
	i := sort.SearchInts(pageOffsets, offset+1)
	if i == 0 {
		return 0
	}
	return i - 1
}
