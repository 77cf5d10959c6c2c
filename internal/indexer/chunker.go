// Package indexer provides document chunking and corpus index builds.
package indexer

import (
	"iter"
	"slices"
	"unicode/utf8"

	"github.com/hyperjump/shiori/internal/apperr"
	"github.com/hyperjump/shiori/internal/models"
)

// Chunker splits text into fixed-size overlapping windows measured in runes.
// Windows ignore sentence and paragraph boundaries so offsets stay predictable.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker creates a chunker with the given size and overlap (in runes).
// It requires 0 <= overlap < size.
func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, apperr.Configf("chunk size must be positive, got %d", size)
	}
	if overlap < 0 {
		return nil, apperr.Configf("chunk overlap must not be negative, got %d", overlap)
	}
	if overlap >= size {
		return nil, apperr.Configf("chunk overlap (%d) must be smaller than chunk size (%d)", overlap, size)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Size returns the nominal chunk size.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the number of runes shared by adjacent chunks.
func (c *Chunker) Overlap() int { return c.overlap }

// Count returns how many chunks a text of n runes produces. Windows start at
// 0, step, 2*step, ... while the start is inside the text, so texts longer
// than one window end with shorter tail windows.
func (c *Chunker) Count(n int) int {
	if n <= 0 {
		return 0
	}
	if n <= c.size {
		return 1
	}
	step := c.size - c.overlap
	return (n + step - 1) / step
}

// Chunks returns a lazy sequence of chunks covering text. The sequence can be
// ranged over any number of times. Empty text yields nothing.
func (c *Chunker) Chunks(docID, text string) iter.Seq[models.Chunk] {
	return func(yield func(models.Chunk) bool) {
		n := utf8.RuneCountInString(text)
		total := c.Count(n)
		step := c.size - c.overlap
		// byte cursors for the current start and end rune positions
		var startByte, endByte, startRune, endRune int
		for i := 0; i < total; i++ {
			start := i * step
			end := min(start+c.size, n)
			startByte = advanceRunes(text, startByte, start-startRune)
			startRune = start
			endByte = advanceRunes(text, endByte, end-endRune)
			endRune = end
			ch := models.Chunk{
				SourceID:    docID,
				ChunkIndex:  i,
				TotalChunks: total,
				Start:       start,
				End:         end,
				Text:        text[startByte:endByte],
			}
			if !yield(ch) {
				return
			}
		}
	}
}

// Collect materializes Chunks.
func (c *Chunker) Collect(docID, text string) []models.Chunk {
	return slices.Collect(c.Chunks(docID, text))
}

func advanceRunes(s string, b, k int) int {
	for ; k > 0 && b < len(s); k-- {
		_, size := utf8.DecodeRuneInString(s[b:])
		b += size
	}
	return b
}
