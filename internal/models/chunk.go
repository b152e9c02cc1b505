// Package models defines core data structures for chunks, quizzes, grading, and progress.
package models

import "time"

// Metadata keys attached to every chunk by the ingestor.
const (
	MetaSource     = "source"
	MetaIngestedAt = "ingested_at"
	MetaFileID     = "file_id"
	MetaFormat     = "format"
	MetaPage       = "page"
	MetaChunkIndex = "chunk_index"
	MetaStartIndex = "start_index"
)

// Chunk is a bounded span of document text with its provenance metadata.
// Embedding is populated by the index and never serialized to clients.
type Chunk struct {
	ID        string            `json:"id" db:"id"`
	Text      string            `json:"text" db:"text"`
	Metadata  map[string]string `json:"metadata" db:"metadata"`
	Embedding []float32         `json:"-" db:"embedding"`
	CreatedAt time.Time         `json:"created_at" db:"created_at"`
}

// Source returns the source filename of the chunk, or "" when unknown.
func (c *Chunk) Source() string {
	if c.Metadata == nil {
		return ""
	}
	return c.Metadata[MetaSource]
}

// CloneMetadata returns a copy of m that is safe to mutate.
func CloneMetadata(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
