// Package storage defines the persistence interface for chunks, quizzes and learner progress.
package storage

import (
	"context"

	"github.com/hyperjump/studybuddy/internal/models"
)

// ChunkStore persists chunks with their embeddings. It is the source of truth for the indices.
type ChunkStore interface {
	// InsertChunks stores every chunk in one transaction; on error nothing is stored.
	InsertChunks(ctx context.Context, chunks []models.Chunk) error
	// GetChunks returns the chunks with the given ids, keyed by id. Unknown ids are absent.
	GetChunks(ctx context.Context, ids []string) (map[string]models.Chunk, error)
	// AllChunks returns every chunk, with embeddings, in insertion order.
	AllChunks(ctx context.Context) ([]models.Chunk, error)
	// ChunkIDsByFileID returns the ids of every chunk carrying the given file_id.
	ChunkIDsByFileID(ctx context.Context, fileID string) ([]string, error)
	// ChunkIDs returns every chunk id in insertion order.
	ChunkIDs(ctx context.Context) ([]string, error)
	// ReplaceChunks swaps the chunks of fileID for chunks in one transaction and returns
	// the removed ids. On error nothing changes.
	ReplaceChunks(ctx context.Context, fileID string, chunks []models.Chunk) ([]string, error)
	DeleteChunks(ctx context.Context, ids []string) error
	ClearChunks(ctx context.Context) error
	CountChunks(ctx context.Context) (int64, error)
}

// QuizStore persists quizzes and the progress aggregate.
type QuizStore interface {
	SaveQuiz(ctx context.Context, quiz *models.Quiz) error
	// GetQuiz returns models.ErrQuizNotFound for an unknown id.
	GetQuiz(ctx context.Context, id string) (*models.Quiz, error)
	// ListQuizzes returns every quiz in creation order.
	ListQuizzes(ctx context.Context) ([]*models.Quiz, error)
	// LoadProgress returns the stored aggregate, or an empty one when none is stored.
	LoadProgress(ctx context.Context) (*models.ProgressState, error)
	// SaveSubmission stores the submitted quiz and the folded aggregate in one transaction.
	SaveSubmission(ctx context.Context, quiz *models.Quiz, state *models.ProgressState) error
}

// Storage is the full persistence surface.
type Storage interface {
	ChunkStore
	QuizStore
	Close() error
}
