// Package vector provides the in-memory vector index behind semantic retrieval.
package vector

import "context"

// VectorIndex stores vectors by chunk id and answers nearest-neighbour queries.
// Search results are ordered by descending score; equal scores keep insertion order.
type VectorIndex interface {
	Add(ctx context.Context, ids []string, vectors [][]float32) error
	Search(ctx context.Context, query []float32, k int) ([]*VectorResult, error)
	Remove(ctx context.Context, ids []string) error
	Clear(ctx context.Context) error
	Save(path string) error
	Load(path string) error
	Size() int
	Close() error
}

// VectorResult is a single vector search hit. ID is the chunk id.
type VectorResult struct {
	ID    string
	Score float64 // inner product; cosine similarity for normalized vectors
}
