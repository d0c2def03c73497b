// Package chunker splits extracted text into overlapping windows, the
// unit of embedding and retrieval. Splitting is deterministic: the same
// text with the same parameters always yields the same boundaries, which
// is what makes re-ingestion idempotent and tests reproducible.
package chunker

import "unicode/utf8"

// DefaultSize is the default number of characters per chunk.
const DefaultSize = 1000

// DefaultOverlap is the default number of overlapping characters.
const DefaultOverlap = 200

// separators are tried in order when snapping a window end to a
// content boundary, so windows avoid cutting mid-sentence.
var separators = []string{"\n\n", "\n", ". ", " "}

// Chunker splits text into overlapping windows.
type Chunker struct {
	size    int
	overlap int
}

// Option configures the chunker.
type Option func(*Chunker)

// WithSize sets the window size in characters.
func WithSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.size = size
		}
	}
}

// WithOverlap sets the overlap between consecutive windows in characters.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// New creates a chunker with the given options.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		size:    DefaultSize,
		overlap: DefaultOverlap,
	}

	for _, opt := range opts {
		opt(c)
	}

	// Overlap must leave room for the window to advance
	if c.overlap >= c.size {
		c.overlap = c.size / 4
	}

	return c
}

// Size returns the configured window size.
func (c *Chunker) Size() int {
	return c.size
}

// Overlap returns the configured overlap.
func (c *Chunker) Overlap() int {
	return c.overlap
}

// Split returns the ordered sequence of chunk texts. Empty input yields
// nil; input shorter than the window size yields exactly one chunk.
// Consecutive chunks share the configured overlap, so concatenating
// them minus overlaps reconstructs the input without gaps.
func (c *Chunker) Split(text string) []string {
	if text == "" {
		return nil
	}

	n := len(text)
	if n <= c.size {
		return []string{text}
	}

	estimated := n/(c.size-c.overlap) + 1
	chunks := make([]string, 0, estimated)

	start := 0
	for start < n {
		end := start + c.size
		if end >= n {
			chunks = append(chunks, text[start:])
			break
		}

		end = c.snapToBoundary(text, start, end)
		chunks = append(chunks, text[start:end])

		if end == n {
			break
		}
		next := end - c.overlap
		if next <= start {
			next = start + 1
		}
		start = next
	}

	return chunks
}

// snapToBoundary moves end backwards to just after the highest-priority
// separator found in the trailing part of the window. When no separator
// is found, the cut falls back to the nearest rune boundary at end.
func (c *Chunker) snapToBoundary(text string, start, end int) int {
	// Only look back through the trailing half of the window so short
	// sentences don't collapse the chunk size.
	floor := start + c.size/2
	if floor < start+1 {
		floor = start + 1
	}

	for _, sep := range separators {
		for i := end - len(sep); i >= floor; i-- {
			if text[i:i+len(sep)] == sep {
				return i + len(sep)
			}
		}
	}

	// Hard cut: back up to a rune boundary so multi-byte characters
	// are never split.
	for end > floor && !utf8.RuneStart(text[end]) {
		end--
	}
	return end
}
