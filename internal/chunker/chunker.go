// Package chunker splits extracted text into overlapping, size-bounded
// segments for embedding.
package chunker

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Defaults for chunk size and overlap, in characters.
const (
	DefaultChunkSize = 800
	DefaultOverlap   = 120
)

// ErrInvalidConfig indicates an invalid size/overlap relationship.
var ErrInvalidConfig = errors.New("invalid chunker configuration")

// Chunker splits text on paragraph boundaries into chunks of at most
// Size characters, falling back to raw slicing with Overlap shared
// characters when a single paragraph exceeds the limit.
type Chunker struct {
	size    int
	overlap int
}

// New creates a Chunker. Overlap must be smaller than size, otherwise
// the raw-slice fallback would not advance; that is a configuration
// error callers should treat as fatal at startup.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidConfig, size)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: overlap must be non-negative, got %d", ErrInvalidConfig, overlap)
	}
	if overlap >= size {
		return nil, fmt.Errorf("%w: overlap %d must be smaller than chunk size %d", ErrInvalidConfig, overlap, size)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Size returns the configured chunk size.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the configured overlap.
func (c *Chunker) Overlap() int { return c.overlap }

// Split chunks text, preferring paragraph boundaries. It is a pure
// function of its input: same text, same chunks.
//
// Paragraphs are newline-separated, trimmed, and empty ones dropped.
// Consecutive paragraphs are packed into one chunk while they fit
// within the size limit (joined by a newline). A single paragraph
// larger than the limit is hard-sliced into windows of size characters
// advancing by size-overlap, so adjacent windows share overlap
// characters; the last window may be shorter.
//
// Empty input yields an empty slice.
func (c *Chunker) Split(text string) []string {
	text = strings.ReplaceAll(text, "\r", "")

	var paragraphs []string
	for _, p := range strings.Split(text, "\n") {
		p = strings.TrimSpace(p)
		if p != "" {
			paragraphs = append(paragraphs, p)
		}
	}

	// Sizes are counted in runes throughout, never bytes: multibyte text
	// must not be cut mid-character.
	var chunks []string
	var buf string
	var bufLen int
	for _, p := range paragraphs {
		pLen := utf8.RuneCountInString(p)
		if bufLen+pLen+1 <= c.size {
			if buf == "" {
				buf, bufLen = p, pLen
			} else {
				buf += "\n" + p
				bufLen += pLen + 1
			}
		} else {
			if buf != "" {
				chunks = append(chunks, buf)
			}
			buf, bufLen = p, pLen
		}
	}
	if buf != "" {
		chunks = append(chunks, buf)
	}

	// Oversized chunks are single paragraphs that never fit; slice them.
	final := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if utf8.RuneCountInString(chunk) <= c.size {
			final = append(final, chunk)
			continue
		}
		runes := []rune(chunk)
		step := c.size - c.overlap
		for start := 0; start < len(runes); start += step {
			end := start + c.size
			if end > len(runes) {
				end = len(runes)
			}
			final = append(final, string(runes[start:end]))
		}
	}
	return final
}
