// Package storage persists chunks, quizzes and learner progress in SQLite through the
// ChunkStore and QuizStore interfaces.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/studybuddy/internal/models"
	"github.com/hyperjump/studybuddy/internal/vector"
)

// SQLite limits bound parameters per statement; id lists are queried in slices of this size.
const maxParams = 500

// SQLiteStorage implements Storage on one SQLite database in WAL mode.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS chunks (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		text TEXT NOT NULL,
		metadata TEXT,
		embedding BLOB,
		file_id TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_file_id ON chunks(file_id);

	CREATE TABLE IF NOT EXISTS quizzes (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		data TEXT NOT NULL,
		submitted INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS progress (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		data TEXT NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := db.Exec(schema)
	return err
}

// InsertChunks inserts chunks in a transaction. CreatedAt is set when zero.
func (s *SQLiteStorage) InsertChunks(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := insertChunks(ctx, tx, chunks); err != nil {
		return err
	}
	return tx.Commit()
}

// ReplaceChunks swaps every chunk carrying fileID for chunks in one transaction and
// returns the ids it removed. On error the file keeps its previous chunks.
func (s *SQLiteStorage) ReplaceChunks(ctx context.Context, fileID string, chunks []models.Chunk) ([]string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `SELECT id FROM chunks WHERE file_id = ? ORDER BY seq`, fileID)
	if err != nil {
		return nil, err
	}
	removed, err := scanIDs(rows)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE file_id = ?`, fileID); err != nil {
		return nil, fmt.Errorf("delete chunks of %s: %w", fileID, err)
	}
	if err := insertChunks(ctx, tx, chunks); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return removed, nil
}

func insertChunks(ctx context.Context, tx *sql.Tx, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (id, text, metadata, embedding, file_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for i := range chunks {
		ch := &chunks[i]
		if ch.CreatedAt.IsZero() {
			ch.CreatedAt = now
		}
		metadataJSON, err := json.Marshal(ch.Metadata)
		if err != nil {
			return fmt.Errorf("failed to marshal metadata: %w", err)
		}
		if _, err := stmt.ExecContext(ctx,
			ch.ID, ch.Text, string(metadataJSON), vector.EncodeVector(ch.Embedding),
			ch.Metadata[models.MetaFileID], ch.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert chunk %s: %w", ch.ID, err)
		}
	}
	return nil
}

// GetChunks returns chunks by id. Embeddings are not loaded.
func (s *SQLiteStorage) GetChunks(ctx context.Context, ids []string) (map[string]models.Chunk, error) {
	out := make(map[string]models.Chunk, len(ids))
	for start := 0; start < len(ids); start += maxParams {
		end := min(start+maxParams, len(ids))
		batch := ids[start:end]
		args := make([]any, len(batch))
		for i, id := range batch {
			args[i] = id
		}
		rows, err := s.db.QueryContext(ctx,
			`SELECT id, text, metadata, created_at FROM chunks WHERE id IN (`+placeholders(len(batch))+`)`,
			args...,
		)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var ch models.Chunk
			var metadataJSON sql.NullString
			if err := rows.Scan(&ch.ID, &ch.Text, &metadataJSON, &ch.CreatedAt); err != nil {
				rows.Close()
				return nil, err
			}
			if err := decodeMetadata(metadataJSON, &ch); err != nil {
				rows.Close()
				return nil, err
			}
			out[ch.ID] = ch
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// AllChunks returns all chunks with embeddings ordered by insertion.
func (s *SQLiteStorage) AllChunks(ctx context.Context) ([]models.Chunk, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, metadata, embedding, created_at FROM chunks ORDER BY seq`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []models.Chunk
	for rows.Next() {
		var ch models.Chunk
		var metadataJSON sql.NullString
		var blob []byte
		if err := rows.Scan(&ch.ID, &ch.Text, &metadataJSON, &blob, &ch.CreatedAt); err != nil {
			return nil, err
		}
		if err := decodeMetadata(metadataJSON, &ch); err != nil {
			return nil, err
		}
		ch.Embedding = vector.DecodeVector(blob)
		chunks = append(chunks, ch)
	}
	return chunks, rows.Err()
}

// ChunkIDsByFileID returns chunk ids for a file in insertion order.
func (s *SQLiteStorage) ChunkIDsByFileID(ctx context.Context, fileID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM chunks WHERE file_id = ? ORDER BY seq`, fileID)
	if err != nil {
		return nil, err
	}
	return scanIDs(rows)
}

// ChunkIDs returns every chunk id in insertion order.
func (s *SQLiteStorage) ChunkIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id FROM chunks ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	return scanIDs(rows)
}

// scanIDs reads a single id column and closes rows.
func scanIDs(rows *sql.Rows) ([]string, error) {
	defer rows.Close()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteChunks removes chunks by id in a transaction.
func (s *SQLiteStorage) DeleteChunks(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for start := 0; start < len(ids); start += maxParams {
		end := min(start+maxParams, len(ids))
		args := make([]any, 0, end-start)
		for _, id := range ids[start:end] {
			args = append(args, id)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM chunks WHERE id IN (`+placeholders(len(args))+`)`, args...,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ClearChunks removes every chunk.
func (s *SQLiteStorage) ClearChunks(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chunks`)
	return err
}

// CountChunks returns the total number of chunks.
func (s *SQLiteStorage) CountChunks(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count)
	return count, err
}

// SaveQuiz inserts or replaces a quiz.
func (s *SQLiteStorage) SaveQuiz(ctx context.Context, quiz *models.Quiz) error {
	return saveQuiz(ctx, s.db, quiz)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func saveQuiz(ctx context.Context, db execer, quiz *models.Quiz) error {
	data, err := json.Marshal(quiz)
	if err != nil {
		return fmt.Errorf("failed to marshal quiz: %w", err)
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO quizzes (id, data, submitted, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data, submitted = excluded.submitted`,
		quiz.ID, string(data), quiz.Submitted, quiz.CreatedAt,
	)
	return err
}

// GetQuiz returns a quiz by ID.
func (s *SQLiteStorage) GetQuiz(ctx context.Context, id string) (*models.Quiz, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM quizzes WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", models.ErrQuizNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	var quiz models.Quiz
	if err := json.Unmarshal([]byte(data), &quiz); err != nil {
		return nil, fmt.Errorf("failed to unmarshal quiz: %w", err)
	}
	return &quiz, nil
}

// ListQuizzes returns all quizzes in insertion order.
func (s *SQLiteStorage) ListQuizzes(ctx context.Context) ([]*models.Quiz, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM quizzes ORDER BY seq`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var quizzes []*models.Quiz
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var quiz models.Quiz
		if err := json.Unmarshal([]byte(data), &quiz); err != nil {
			return nil, fmt.Errorf("failed to unmarshal quiz: %w", err)
		}
		quizzes = append(quizzes, &quiz)
	}
	return quizzes, rows.Err()
}

// LoadProgress returns the progress aggregate.
func (s *SQLiteStorage) LoadProgress(ctx context.Context) (*models.ProgressState, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM progress WHERE id = 1`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return models.NewProgressState(), nil
	}
	if err != nil {
		return nil, err
	}
	state := models.NewProgressState()
	if err := json.Unmarshal([]byte(data), state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal progress: %w", err)
	}
	if state.TopicPerformance == nil {
		state.TopicPerformance = make(map[string]*models.TopicStats)
	}
	return state, nil
}

// SaveSubmission writes the quiz and progress in a transaction.
func (s *SQLiteStorage) SaveSubmission(ctx context.Context, quiz *models.Quiz, state *models.ProgressState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal progress: %w", err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := saveQuiz(ctx, tx, quiz); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO progress (id, data, updated_at) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		string(data), time.Now().UTC(),
	); err != nil {
		return err
	}
	return tx.Commit()
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func decodeMetadata(raw sql.NullString, ch *models.Chunk) error {
	if !raw.Valid || raw.String == "" || raw.String == "null" {
		ch.Metadata = map[string]string{}
		return nil
	}
	if err := json.Unmarshal([]byte(raw.String), &ch.Metadata); err != nil {
		return fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return nil
}
