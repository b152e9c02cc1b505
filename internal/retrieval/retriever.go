// Package retrieval selects the chunks that ground answers, quizzes and search results.
// It is the only consumer of the Embedding Index query methods.
package retrieval

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/studybuddy/internal/models"
	"github.com/hyperjump/studybuddy/pkg/utils"
)

// ChunkIndex is the query side of the Embedding Index.
type ChunkIndex interface {
	Query(ctx context.Context, text string, k int) ([]models.Chunk, error)
	KeywordQuery(ctx context.Context, text string, k int) []models.Chunk
	Count(ctx context.Context) (int, error)
}

// Retriever runs semantic, keyword and hybrid retrieval over a ChunkIndex.
type Retriever struct {
	index  ChunkIndex
	logger *zap.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithLogger sets the logger. Nil means no logging.
func WithLogger(l *zap.Logger) Option {
	return func(r *Retriever) {
		r.logger = utils.OrNop(l)
	}
}

// New creates a Retriever over index.
func New(index ChunkIndex, opts ...Option) *Retriever {
	r := &Retriever{index: index, logger: zap.NewNop()}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Retrieve returns up to k chunks by semantic similarity to query.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]models.Chunk, error) {
	if k <= 0 {
		return nil, nil
	}
	return r.index.Query(ctx, query, k)
}

// Available reports whether any chunk is indexed.
func (r *Retriever) Available(ctx context.Context) bool {
	n, err := r.index.Count(ctx)
	return err == nil && n > 0
}

// Keyword returns up to k chunks by keyword relevance.
func (r *Retriever) Keyword(ctx context.Context, query string, k int) []models.Chunk {
	if k <= 0 {
		return nil
	}
	return r.index.KeywordQuery(ctx, query, k)
}

// Hybrid fuses semantic and keyword rankings with reciprocal rank fusion and returns up to k chunks.
// Both rankings are fetched concurrently with twice the requested depth.
func (r *Retriever) Hybrid(ctx context.Context, query string, k int) ([]models.Chunk, error) {
	if k <= 0 {
		return nil, nil
	}
	depth := k * 2

	var (
		semantic []models.Chunk
		keyword  []models.Chunk
		semErr   error
		wg       sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		semantic, semErr = r.index.Query(ctx, query, depth)
	}()
	go func() {
		defer wg.Done()
		keyword = r.index.KeywordQuery(ctx, query, depth)
	}()
	wg.Wait()
	if semErr != nil {
		return nil, fmt.Errorf("semantic search failed: %w", semErr)
	}

	fused := Fuse(semantic, keyword, DefaultRRFConstant)
	if len(fused) > k {
		fused = fused[:k]
	}
	return fused, nil
}

// Search runs query in its mode and returns ranked results.
func (r *Retriever) Search(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error) {
	startTime := time.Now()
	if err := query.Validate(); err != nil {
		return nil, err
	}

	var (
		chunks []models.Chunk
		err    error
	)
	switch query.Mode {
	case models.SearchSemantic:
		chunks, err = r.Retrieve(ctx, query.Query, query.Limit)
	case models.SearchKeyword:
		chunks = r.Keyword(ctx, query.Query, query.Limit)
	default:
		chunks, err = r.Hybrid(ctx, query.Query, query.Limit)
	}
	if err != nil {
		return nil, err
	}

	response := &models.SearchResponse{
		Query:   query.Query,
		Mode:    query.Mode,
		Results: make([]*models.SearchResult, 0, len(chunks)),
	}
	for i, ch := range chunks {
		response.Results = append(response.Results, &models.SearchResult{
			Text:     ch.Text,
			Metadata: ch.Metadata,
			Rank:     i + 1,
		})
	}
	response.QueryTime = time.Since(startTime).Milliseconds()
	r.logger.Debug("search",
		zap.String("mode", string(query.Mode)),
		zap.Int("results", len(response.Results)),
		zap.Int64("query_time_ms", response.QueryTime))
	return response, nil
}
