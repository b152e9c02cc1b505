package embedding

import (
	"context"

	"github.com/hyperjump/studybuddy/pkg/utils"
)

// HashEmbedder is a deterministic bag-of-words embedder using the hashing trick.
// Texts sharing terms get similar vectors, which makes it usable offline and in tests.
type HashEmbedder struct {
	dimensions int
}

// NewHashEmbedder returns a hash embedder of the given dimensions (384 when not positive).
func NewHashEmbedder(dimensions int) *HashEmbedder {
	if dimensions <= 0 {
		dimensions = 384
	}
	return &HashEmbedder{dimensions: dimensions}
}

// Embed maps every term of text to a signed bucket and returns the L2-normalized counts.
// Text without terms yields the zero vector.
func (e *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	emb := make([]float32, e.dimensions)
	for _, term := range Terms(text) {
		h := HashString(term)
		bucket := h % e.dimensions
		if (h/e.dimensions)%2 == 0 {
			emb[bucket]++
		} else {
			emb[bucket]--
		}
	}
	utils.NormalizeL2(emb)
	return emb, nil
}

// EmbedBatch calls Embed for each text.
func (e *HashEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return embedEach(ctx, e, texts)
}

// Dimensions returns the embedding dimension.
func (e *HashEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op for HashEmbedder.
func (e *HashEmbedder) Close() error {
	return nil
}
