// Package keyword provides full-text (BM25) search over chunk text.
package keyword

import (
	"context"

	"github.com/hyperjump/studybuddy/internal/models"
)

// SearchOptions are optional parameters for keyword search. Nil means use defaults.
type SearchOptions struct {
	// SourceBoost multiplies the score contribution from matches in the source filename.
	// Values > 1 make filename matches rank higher. Use 1.0 for no boost.
	SourceBoost float64
	// FuzzyEnabled enables fuzzy matching for typo tolerance.
	FuzzyEnabled bool
	// Fuzziness is the maximum Levenshtein edit distance for fuzzy matching (1 or 2).
	// Default is 2 when FuzzyEnabled is true.
	Fuzziness int
}

// KeywordIndex defines keyword search operations over chunks.
type KeywordIndex interface {
	Index(ctx context.Context, chunks []models.Chunk) error
	Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error)
	Delete(ctx context.Context, ids []string) error
	Clear(ctx context.Context) error
	// DocCount returns the total number of chunks in the index.
	DocCount() (uint64, error)
	// IDs returns the id of every indexed chunk.
	IDs(ctx context.Context) ([]string, error)
	Close() error
}

// KeywordResult is a single keyword search hit. ID is the chunk id.
type KeywordResult struct {
	ID    string
	Score float64
}
