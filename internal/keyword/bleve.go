package keyword

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
	"github.com/hyperjump/studybuddy/internal/models"
)

const (
	fieldText   = "text"
	fieldSource = "source"
	fieldFileID = "file_id"
)

// BleveIndex implements KeywordIndex using Bleve.
type BleveIndex struct {
	path  string
	mu    sync.RWMutex
	index bleve.Index
}

// NewBleveIndex creates or opens a Bleve index at path. An empty path keeps the index in memory.
// If you change the index mapping in code, remove the index directory; the embedding index
// repopulates it from storage when the chunk counts disagree.
func NewBleveIndex(path string) (*BleveIndex, error) {
	index, err := openOrCreate(path)
	if err != nil {
		return nil, err
	}
	return &BleveIndex{path: path, index: index}, nil
}

func newMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()
	// Standard analyzer (lowercase + tokenize, no stemming) so a query term matches the exact word.
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt(fieldText, textFieldMapping)
	docMapping.AddFieldMappingsAt(fieldSource, textFieldMapping)
	docMapping.AddFieldMappingsAt(fieldFileID, bleve.NewKeywordFieldMapping())
	im.AddDocumentMapping("chunk", docMapping)
	im.DefaultType = "chunk"
	im.DefaultMapping = docMapping
	return im
}

func openOrCreate(path string) (bleve.Index, error) {
	if path == "" {
		index, err := bleve.NewMemOnly(newMapping())
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory Bleve index: %w", err)
		}
		return index, nil
	}
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return index, nil
	}
	index, err := bleve.New(path, newMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return index, nil
}

// chunkDocument is the indexed form of a chunk. Underscores in the source are spaced out
// because the standard analyzer does not split on them.
func chunkDocument(ch models.Chunk) map[string]any {
	return map[string]any{
		fieldText:   ch.Text,
		fieldSource: strings.ReplaceAll(ch.Source(), "_", " "),
		fieldFileID: ch.Metadata[models.MetaFileID],
	}
}

// Index adds chunks in one batch.
func (b *BleveIndex) Index(_ context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	batch := b.index.NewBatch()
	for _, ch := range chunks {
		if err := batch.Index(ch.ID, chunkDocument(ch)); err != nil {
			return fmt.Errorf("batch index %s: %w", ch.ID, err)
		}
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("Bleve batch failed: %w", err)
	}
	return nil
}

// Search runs a match query and returns up to limit results.
// With opts.SourceBoost > 1, text and source are queried separately and merged additively,
// with a squared term-coverage multiplier so chunks matching every term rank first.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*KeywordResult, error) {
	if limit <= 0 || strings.TrimSpace(query) == "" {
		return nil, nil
	}
	sourceBoost := 1.0
	fuzzyEnabled := false
	fuzziness := 2
	if opts != nil {
		if opts.SourceBoost > 0 {
			sourceBoost = opts.SourceBoost
		}
		fuzzyEnabled = opts.FuzzyEnabled
		if opts.Fuzziness > 0 {
			fuzziness = opts.Fuzziness
		}
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if sourceBoost <= 1.0 {
		return b.searchSingle(ctx, query, limit, fuzzyEnabled, fuzziness)
	}
	return b.searchWithBoost(ctx, query, limit, sourceBoost, fuzzyEnabled, fuzziness)
}

func (b *BleveIndex) searchSingle(ctx context.Context, query string, limit int, fuzzyEnabled bool, fuzziness int) ([]*KeywordResult, error) {
	var q blevequery.Query
	if fuzzyEnabled {
		q = buildFuzzyQuery(query, fuzziness, fieldText)
	} else {
		mq := bleve.NewMatchQuery(query)
		mq.SetField(fieldText)
		q = mq
	}
	req := bleve.NewSearchRequest(q)
	req.Size = limit
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}
	out := make([]*KeywordResult, len(results.Hits))
	for i, hit := range results.Hits {
		out[i] = &KeywordResult{ID: hit.ID, Score: hit.Score}
	}
	return out, nil
}

func (b *BleveIndex) searchWithBoost(ctx context.Context, query string, limit int, sourceBoost float64, fuzzyEnabled bool, fuzziness int) ([]*KeywordResult, error) {
	reqSize := max(limit*2, 50)
	terms := tokenizeQuery(query)

	scores := make(map[string]float64)
	for _, field := range []string{fieldText, fieldSource} {
		var q blevequery.Query
		if fuzzyEnabled {
			q = buildFuzzyQuery(query, fuzziness, field)
		} else {
			mq := bleve.NewMatchQuery(query)
			mq.SetField(field)
			q = mq
		}
		req := bleve.NewSearchRequest(q)
		req.Size = reqSize
		results, err := b.index.SearchInContext(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("Bleve %s search failed: %w", field, err)
		}
		weight := 1.0
		if field == fieldSource {
			weight = sourceBoost
		}
		for _, hit := range results.Hits {
			scores[hit.ID] += hit.Score * weight
		}
	}

	if len(terms) > 1 {
		coverage := b.termCoverage(ctx, terms, reqSize)
		for id := range scores {
			matched := max(coverage[id], 1)
			c := float64(matched) / float64(len(terms))
			scores[id] *= c * c
		}
	}

	merged := make([]*KeywordResult, 0, len(scores))
	for id, score := range scores {
		merged = append(merged, &KeywordResult{ID: id, Score: score})
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		return merged[i].ID < merged[j].ID
	})
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

// tokenizeQuery splits query into lowercase terms.
func tokenizeQuery(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// buildFuzzyQuery ORs a FuzzyQuery per term, restricted to field.
func buildFuzzyQuery(queryStr string, fuzziness int, field string) blevequery.Query {
	terms := tokenizeQuery(queryStr)
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		fq.SetField(field)
		queries = append(queries, fq)
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// termCoverage counts how many query terms each chunk matches.
func (b *BleveIndex) termCoverage(ctx context.Context, terms []string, reqSize int) map[string]int {
	coverage := make(map[string]int)
	for _, term := range terms {
		req := bleve.NewSearchRequest(bleve.NewMatchQuery(term))
		req.Size = reqSize
		results, err := b.index.SearchInContext(ctx, req)
		if err != nil {
			continue
		}
		for _, hit := range results.Hits {
			coverage[hit.ID]++
		}
	}
	return coverage
}

// Delete removes chunks by id in one batch.
func (b *BleveIndex) Delete(_ context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	batch := b.index.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	if err := b.index.Batch(batch); err != nil {
		return fmt.Errorf("Bleve delete failed: %w", err)
	}
	return nil
}

// Clear drops every chunk by recreating the index.
func (b *BleveIndex) Clear(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.index.Close(); err != nil {
		return fmt.Errorf("close Bleve index: %w", err)
	}
	if b.path != "" {
		if err := os.RemoveAll(b.path); err != nil {
			return fmt.Errorf("remove Bleve index: %w", err)
		}
	}
	index, err := openOrCreate(b.path)
	if err != nil {
		return err
	}
	b.index = index
	return nil
}

// DocCount returns the total number of chunks in the index.
func (b *BleveIndex) DocCount() (uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.index.DocCount()
}

// IDs returns the id of every indexed chunk, in no particular order.
func (b *BleveIndex) IDs(ctx context.Context) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n, err := b.index.DocCount()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	req := bleve.NewSearchRequest(bleve.NewMatchAllQuery())
	req.Size = int(n)
	results, err := b.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("list indexed chunks: %w", err)
	}
	ids := make([]string, len(results.Hits))
	for i, hit := range results.Hits {
		ids[i] = hit.ID
	}
	return ids, nil
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.index.Close()
}
