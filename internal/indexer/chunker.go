// Package indexer provides document chunking and ingestion into the embedding index.
package indexer

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/hyperjump/studybuddy/internal/models"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
)

// Chunker splits text into overlapping character windows.
// Sizes are counted in runes.
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker creates a chunker with the given size and overlap (in characters).
// An invalid combination falls back to the defaults.
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	if chunkSize <= 0 || chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkSize, chunkOverlap = DefaultChunkSize, DefaultChunkOverlap
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
	}
}

// Chunk splits text into chunks of at most chunkSize characters. Each chunk is an exact
// substring of text and starts at most chunkOverlap characters before the previous one ended.
// Breaks prefer a paragraph boundary, then a sentence end, then whitespace, then a hard cut.
// Every chunk carries a copy of metadata plus its chunk_index and start_index.
func (c *Chunker) Chunk(text string, metadata map[string]string) []models.Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	runes := []rune(text)
	n := len(runes)
	var chunks []models.Chunk
	start := 0
	for start < n {
		end := start + c.chunkSize
		if end >= n {
			end = n
		} else {
			end = c.breakpoint(runes, start, end)
		}
		if piece := string(runes[start:end]); strings.TrimSpace(piece) != "" {
			meta := models.CloneMetadata(metadata)
			meta[models.MetaChunkIndex] = strconv.Itoa(len(chunks))
			meta[models.MetaStartIndex] = strconv.Itoa(start)
			chunks = append(chunks, models.Chunk{Text: piece, Metadata: meta})
		}
		if end >= n {
			break
		}
		start = c.nextStart(runes, start, end)
	}
	return chunks
}

// breakpoint returns the end of the window [start, end), searching only its second half.
func (c *Chunker) breakpoint(runes []rune, start, end int) int {
	lo := start + c.chunkSize/2
	if lo <= start {
		lo = start + 1
	}
	for i := end - 2; i >= lo-2 && i >= start; i-- {
		if runes[i] == '\n' && runes[i+1] == '\n' {
			return i + 2
		}
	}
	for i := end - 1; i >= lo-1 && i >= start; i-- {
		if isSentenceEnd(runes[i]) && i+1 < len(runes) && unicode.IsSpace(runes[i+1]) {
			return i + 1
		}
	}
	for i := end - 1; i >= lo-1 && i >= start; i-- {
		if unicode.IsSpace(runes[i]) {
			return i + 1
		}
	}
	return end
}

// nextStart steps back by the overlap from end and moves forward to the next word start,
// so the overlap never begins mid-word when a word boundary is available.
func (c *Chunker) nextStart(runes []rune, start, end int) int {
	next := end - c.chunkOverlap
	if next <= start {
		next = start + 1
	}
	for i := next; i < end; i++ {
		if i > 0 && unicode.IsSpace(runes[i-1]) && !unicode.IsSpace(runes[i]) {
			return i
		}
	}
	return next
}

func isSentenceEnd(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}
