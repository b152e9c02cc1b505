// Package index provides the Embedding Index: chunks are embedded, persisted in SQLite and
// searchable by vector similarity and by keyword. SQLite is the source of truth; the vector
// and keyword indices are rebuilt from it when their chunk ids disagree on open.
package index

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/studybuddy/internal/embedding"
	"github.com/hyperjump/studybuddy/internal/keyword"
	"github.com/hyperjump/studybuddy/internal/models"
	"github.com/hyperjump/studybuddy/internal/storage"
	"github.com/hyperjump/studybuddy/internal/vector"
	"github.com/hyperjump/studybuddy/pkg/utils"
)

// Index is the durable chunk index. It is safe for concurrent use; queries run in
// parallel and mutations are serialized.
type Index struct {
	store        storage.ChunkStore
	embedder     embedding.Embedder
	vectors      *vector.MemoryIndex
	keywords     keyword.KeywordIndex
	snapshotPath string
	keywordOpts  *keyword.SearchOptions
	logger       *zap.Logger
	// snapshotOnDisk is true while the snapshot file matches the vectors in memory.
	snapshotOnDisk bool

	mu sync.RWMutex
}

// Option configures an Index.
type Option func(*Index)

// WithLogger sets the logger for degraded queries and rebuilds. Nil means no logging.
func WithLogger(l *zap.Logger) Option {
	return func(ix *Index) {
		ix.logger = utils.OrNop(l)
	}
}

// WithSnapshotPath sets where the vector index snapshot is loaded from and saved to.
func WithSnapshotPath(path string) Option {
	return func(ix *Index) {
		ix.snapshotPath = path
	}
}

// WithKeywordOptions sets the options used for keyword queries.
func WithKeywordOptions(opts *keyword.SearchOptions) Option {
	return func(ix *Index) {
		ix.keywordOpts = opts
	}
}

// Open builds an Index over store. The vector snapshot is loaded and both derived
// indices are rebuilt from store when they hold a different set of chunk ids.
func Open(ctx context.Context, store storage.ChunkStore, embedder embedding.Embedder, vectors *vector.MemoryIndex, keywords keyword.KeywordIndex, opts ...Option) (*Index, error) {
	if embedder.Dimensions() != vectors.Dimensions() {
		return nil, fmt.Errorf("embedder dimension %d does not match vector index dimension %d",
			embedder.Dimensions(), vectors.Dimensions())
	}
	ix := &Index{
		store:    store,
		embedder: embedder,
		vectors:  vectors,
		keywords: keywords,
		logger:   zap.NewNop(),
	}
	for _, o := range opts {
		o(ix)
	}

	if err := ix.vectors.Load(ix.snapshotPath); err != nil {
		ix.logger.Warn("vector snapshot unusable; rebuilding from storage",
			zap.String("path", ix.snapshotPath), zap.Error(err))
		if err := ix.vectors.Clear(ctx); err != nil {
			return nil, fmt.Errorf("reset vector index: %w", err)
		}
	} else {
		ix.snapshotOnDisk = ix.snapshotPath != ""
	}
	if err := ix.reconcile(ctx); err != nil {
		return nil, err
	}
	return ix, nil
}

// reconcile rebuilds the vector and keyword indices from storage when their ids differ.
func (ix *Index) reconcile(ctx context.Context) error {
	stored, err := ix.store.ChunkIDs(ctx)
	if err != nil {
		return fmt.Errorf("list stored chunks: %w", err)
	}
	vectorStale := !sameIDs(stored, ix.vectors.IDs())
	keywordIDs, err := ix.keywords.IDs(ctx)
	keywordStale := err != nil || !sameIDs(stored, keywordIDs)
	if !vectorStale && !keywordStale {
		return nil
	}

	chunks, err := ix.store.AllChunks(ctx)
	if err != nil {
		return fmt.Errorf("load stored chunks: %w", err)
	}
	if vectorStale {
		if err := ix.rebuildVectors(ctx, chunks); err != nil {
			return err
		}
	}
	if keywordStale {
		ix.logger.Info("rebuilding keyword index", zap.Int("chunks", len(chunks)))
		if err := ix.keywords.Clear(ctx); err != nil {
			return fmt.Errorf("reset keyword index: %w", err)
		}
		if err := ix.keywords.Index(ctx, chunks); err != nil {
			return fmt.Errorf("rebuild keyword index: %w", err)
		}
	}
	return nil
}

// sameIDs reports whether a and b hold the same set of unique ids.
func sameIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, id := range a {
		set[id] = struct{}{}
	}
	for _, id := range b {
		if _, ok := set[id]; !ok {
			return false
		}
	}
	return len(set) == len(b)
}

func (ix *Index) rebuildVectors(ctx context.Context, chunks []models.Chunk) error {
	ix.logger.Info("rebuilding vector index",
		zap.Int("chunks", len(chunks)), zap.Int("snapshot_size", ix.vectors.Size()))
	if err := ix.vectors.Clear(ctx); err != nil {
		return fmt.Errorf("reset vector index: %w", err)
	}
	ids := make([]string, 0, len(chunks))
	vecs := make([][]float32, 0, len(chunks))
	var stale []models.Chunk
	for _, ch := range chunks {
		if len(ch.Embedding) != ix.vectors.Dimensions() {
			stale = append(stale, ch)
			continue
		}
		ids = append(ids, ch.ID)
		vecs = append(vecs, ch.Embedding)
	}
	if len(stale) > 0 {
		// Stored embeddings from another model: keep the order stable by re-embedding in place.
		ix.logger.Warn("re-embedding chunks with mismatched dimensions", zap.Int("chunks", len(stale)))
		texts := make([]string, len(stale))
		for i, ch := range stale {
			texts[i] = ch.Text
		}
		embs, err := ix.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("re-embed stored chunks: %w", err)
		}
		fresh := make(map[string][]float32, len(stale))
		for i, ch := range stale {
			fresh[ch.ID] = embs[i]
		}
		ids = ids[:0]
		vecs = vecs[:0]
		for _, ch := range chunks {
			if v, ok := fresh[ch.ID]; ok {
				ids = append(ids, ch.ID)
				vecs = append(vecs, v)
				continue
			}
			ids = append(ids, ch.ID)
			vecs = append(vecs, ch.Embedding)
		}
	}
	if err := ix.vectors.Add(ctx, ids, vecs); err != nil {
		return fmt.Errorf("rebuild vector index: %w", err)
	}
	return ix.saveSnapshot()
}

// Add embeds chunks in one batch and stores them. Chunks without an id get a UUID.
// Nothing is added when embedding or the storage transaction fails.
func (ix *Index) Add(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	batch, err := ix.embed(ctx, chunks)
	if err != nil {
		return err
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.invalidateSnapshot()
	if err := ix.store.InsertChunks(ctx, batch); err != nil {
		return fmt.Errorf("store chunks: %w", err)
	}
	ix.addDerived(ctx, batch)
	return nil
}

// Replace swaps every chunk carrying fileID for chunks and returns how many were removed.
// The new chunks are embedded first, so on any error the previous chunks stay searchable.
func (ix *Index) Replace(ctx context.Context, fileID string, chunks []models.Chunk) (int, error) {
	batch, err := ix.embed(ctx, chunks)
	if err != nil {
		return 0, err
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.invalidateSnapshot()
	removed, err := ix.store.ReplaceChunks(ctx, fileID, batch)
	if err != nil {
		return 0, fmt.Errorf("replace chunks of %s: %w", fileID, err)
	}
	ix.removeDerived(ctx, fileID, removed)
	ix.addDerived(ctx, batch)
	return len(removed), nil
}

// embed copies chunks, assigns missing ids and attaches one embedding per chunk.
func (ix *Index) embed(ctx context.Context, chunks []models.Chunk) ([]models.Chunk, error) {
	if len(chunks) == 0 {
		return nil, nil
	}
	batch := make([]models.Chunk, len(chunks))
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		if ch.ID == "" {
			ch.ID = uuid.NewString()
		}
		ch.Metadata = models.CloneMetadata(ch.Metadata)
		batch[i] = ch
		texts[i] = ch.Text
	}

	embs, err := ix.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	if len(embs) != len(batch) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d chunks", len(embs), len(batch))
	}
	for i := range batch {
		if len(embs[i]) != ix.vectors.Dimensions() {
			return nil, fmt.Errorf("embedding dimension %d does not match index dimension %d",
				len(embs[i]), ix.vectors.Dimensions())
		}
		batch[i].Embedding = embs[i]
	}
	return batch, nil
}

// addDerived mirrors stored chunks into the vector and keyword indices. Storage already
// holds them, so failures are logged and repaired by the next Open.
func (ix *Index) addDerived(ctx context.Context, batch []models.Chunk) {
	if len(batch) == 0 {
		return
	}
	ids := make([]string, len(batch))
	vecs := make([][]float32, len(batch))
	for i, ch := range batch {
		ids[i] = ch.ID
		vecs[i] = ch.Embedding
	}
	if err := ix.vectors.Add(ctx, ids, vecs); err != nil {
		ix.logger.Error("vector index add failed", zap.Int("chunks", len(batch)), zap.Error(err))
	}
	if err := ix.keywords.Index(ctx, batch); err != nil {
		ix.logger.Warn("keyword index add failed", zap.Int("chunks", len(batch)), zap.Error(err))
	}
}

func (ix *Index) removeDerived(ctx context.Context, fileID string, ids []string) {
	if len(ids) == 0 {
		return
	}
	if err := ix.vectors.Remove(ctx, ids); err != nil {
		ix.logger.Error("vector index remove failed", zap.String("file_id", fileID), zap.Error(err))
	}
	if err := ix.keywords.Delete(ctx, ids); err != nil {
		ix.logger.Warn("keyword index remove failed", zap.String("file_id", fileID), zap.Error(err))
	}
}

// Query returns up to k chunks ordered by descending cosine similarity to text.
// A failure to embed text is returned; backend failures degrade to an empty result.
func (ix *Index) Query(ctx context.Context, text string, k int) ([]models.Chunk, error) {
	if k <= 0 {
		return nil, nil
	}
	queryEmbedding, err := ix.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()
	hits, err := ix.vectors.Search(ctx, queryEmbedding, k)
	if err != nil {
		ix.logger.Warn("vector search failed", zap.Error(err))
		return nil, nil
	}
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	return ix.resolve(ctx, ids), nil
}

// KeywordQuery returns up to k chunks ranked by BM25. Backend failures degrade to an empty result.
func (ix *Index) KeywordQuery(ctx context.Context, text string, k int) []models.Chunk {
	if k <= 0 {
		return nil
	}
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	hits, err := ix.keywords.Search(ctx, text, k, ix.keywordOpts)
	if err != nil {
		ix.logger.Warn("keyword search failed", zap.Error(err))
		return nil
	}
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
	}
	return ix.resolve(ctx, ids)
}

// resolve loads chunks by id, preserving order and dropping ids storage no longer has.
func (ix *Index) resolve(ctx context.Context, ids []string) []models.Chunk {
	if len(ids) == 0 {
		return nil
	}
	byID, err := ix.store.GetChunks(ctx, ids)
	if err != nil {
		ix.logger.Warn("chunk lookup failed", zap.Int("ids", len(ids)), zap.Error(err))
		return nil
	}
	out := make([]models.Chunk, 0, len(ids))
	for _, id := range ids {
		if ch, ok := byID[id]; ok {
			out = append(out, ch)
		}
	}
	return out
}

// Count returns the number of indexed chunks. A storage failure degrades to 0.
func (ix *Index) Count(ctx context.Context) (int, error) {
	n, err := ix.store.CountChunks(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		ix.logger.Warn("chunk count failed", zap.Error(err))
		return 0, nil
	}
	return int(n), nil
}

// VectorSize returns the number of vectors held in memory.
func (ix *Index) VectorSize() int {
	return ix.vectors.Size()
}

// Dimensions returns the embedding dimension.
func (ix *Index) Dimensions() int {
	return ix.vectors.Dimensions()
}

// Clear removes every chunk from storage, both indices and the snapshot.
func (ix *Index) Clear(ctx context.Context) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if err := ix.store.ClearChunks(ctx); err != nil {
		return fmt.Errorf("clear stored chunks: %w", err)
	}
	if err := ix.vectors.Clear(ctx); err != nil {
		return fmt.Errorf("clear vector index: %w", err)
	}
	if err := ix.keywords.Clear(ctx); err != nil {
		return fmt.Errorf("clear keyword index: %w", err)
	}
	return ix.removeSnapshot()
}

// DeleteByFileID removes every chunk carrying fileID and returns how many were removed.
func (ix *Index) DeleteByFileID(ctx context.Context, fileID string) (int, error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ids, err := ix.store.ChunkIDsByFileID(ctx, fileID)
	if err != nil {
		return 0, fmt.Errorf("find chunks of %s: %w", fileID, err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	ix.invalidateSnapshot()
	if err := ix.store.DeleteChunks(ctx, ids); err != nil {
		return 0, fmt.Errorf("delete chunks of %s: %w", fileID, err)
	}
	ix.removeDerived(ctx, fileID, ids)
	return len(ids), nil
}

// invalidateSnapshot removes the snapshot before storage changes, so an exit without
// Close rebuilds the vectors from storage instead of loading outdated ones.
func (ix *Index) invalidateSnapshot() {
	if !ix.snapshotOnDisk {
		return
	}
	if err := ix.removeSnapshot(); err != nil {
		ix.logger.Warn("vector snapshot not removed", zap.String("path", ix.snapshotPath), zap.Error(err))
	}
}

func (ix *Index) removeSnapshot() error {
	if ix.snapshotPath == "" {
		return nil
	}
	if err := os.Remove(ix.snapshotPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove vector snapshot: %w", err)
	}
	ix.snapshotOnDisk = false
	return nil
}

func (ix *Index) saveSnapshot() error {
	if ix.snapshotPath == "" {
		return nil
	}
	if err := ix.vectors.Save(ix.snapshotPath); err != nil {
		return fmt.Errorf("save vector snapshot: %w", err)
	}
	ix.snapshotOnDisk = true
	return nil
}

// Close saves the vector snapshot. Storage and the keyword index are owned by the caller.
func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.saveSnapshot()
}
