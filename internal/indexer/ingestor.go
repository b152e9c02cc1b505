package indexer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hyperjump/studybuddy/internal/extract"
	"github.com/hyperjump/studybuddy/internal/fileid"
	"github.com/hyperjump/studybuddy/internal/models"
	"github.com/hyperjump/studybuddy/pkg/utils"
	"go.uber.org/zap"
)

// ChunkIndex is the part of the embedding index the ingestor writes to.
type ChunkIndex interface {
	Add(ctx context.Context, chunks []models.Chunk) error
	// Replace swaps the chunks carrying fileID for chunks. On error the old chunks stay.
	Replace(ctx context.Context, fileID string, chunks []models.Chunk) (int, error)
}

// IngestRequest describes one document to ingest.
type IngestRequest struct {
	// Filename is recorded as the chunk source. Only its base name is kept.
	Filename string
	// Format is the declared type ("pdf", ".docx", "txt"). When empty it is taken from Filename.
	Format string
	// Content is read fully before extraction.
	Content io.Reader
	// Metadata is copied onto every chunk; reserved keys are overwritten.
	Metadata map[string]string
	// FileID identifies the upload. A new UUID is used when empty.
	FileID string
}

// Ingestor turns documents into chunks in the embedding index.
type Ingestor struct {
	index     ChunkIndex
	chunker   *Chunker
	extractor *extract.Extractor
	uploadDir string
	now       func() time.Time
	logger    *zap.Logger
}

// IngestorOption configures an Ingestor.
type IngestorOption func(*Ingestor)

// WithLogger sets a logger for ingestion events.
func WithLogger(l *zap.Logger) IngestorOption {
	return func(g *Ingestor) { g.logger = utils.OrNop(l) }
}

// WithUploadDir keeps a copy of each ingested upload as {file_id}.{ext} under dir.
func WithUploadDir(dir string) IngestorOption {
	return func(g *Ingestor) { g.uploadDir = dir }
}

// WithClock overrides the ingestion timestamp source.
func WithClock(now func() time.Time) IngestorOption {
	return func(g *Ingestor) { g.now = now }
}

// NewIngestor creates an ingestor writing to index. A nil chunker uses the default sizes.
func NewIngestor(index ChunkIndex, chunker *Chunker, opts ...IngestorOption) *Ingestor {
	if chunker == nil {
		chunker = NewChunker(DefaultChunkSize, DefaultChunkOverlap)
	}
	g := &Ingestor{
		index:     index,
		chunker:   chunker,
		extractor: extract.NewExtractor(),
		now:       time.Now,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Ingest extracts, chunks and indexes one document and returns the number of chunks added.
// An unsupported format fails with models.ErrUnsupportedFormat before any content is read.
// Extraction is all-or-nothing: on models.ErrExtractionFailed nothing is indexed.
// A document without text yields 0 chunks and no error.
func (g *Ingestor) Ingest(ctx context.Context, req IngestRequest) (int, error) {
	format, chunks, content, err := g.prepare(req)
	if err != nil {
		return 0, err
	}
	if len(chunks) == 0 {
		g.logger.Info("ingested document without text", zap.String("source", req.Filename))
		return 0, nil
	}
	if err := g.index.Add(ctx, chunks); err != nil {
		return 0, fmt.Errorf("index chunks: %w", err)
	}
	g.keepUpload(chunks[0].Metadata[models.MetaFileID], format, content)
	g.logger.Info("ingested document",
		zap.String("source", chunks[0].Source()),
		zap.String("format", string(format)),
		zap.Int("chunks", len(chunks)))
	return len(chunks), nil
}

// IngestFile ingests a file from disk. The format comes from the file extension.
func (g *Ingestor) IngestFile(ctx context.Context, path string) (int, error) {
	format, err := extract.FormatFromPath(path)
	if err != nil {
		return 0, err
	}
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()
	return g.Ingest(ctx, IngestRequest{
		Filename: filepath.Base(path),
		Format:   string(format),
		Content:  f,
	})
}

// SyncFile replaces the chunks of a watched file with its current content.
// The file id is derived from the absolute path, so repeated syncs never duplicate chunks.
// Old chunks are removed only after the new content extracted successfully.
func (g *Ingestor) SyncFile(ctx context.Context, path string) (int, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return 0, fmt.Errorf("absolute path: %w", err)
	}
	if _, err := extract.FormatFromPath(absPath); err != nil {
		return 0, err
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return 0, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return 0, fmt.Errorf("not a regular file: %s", absPath)
	}
	f, err := os.Open(absPath)
	if err != nil {
		return 0, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	id := fileid.ForPath(absPath)
	_, chunks, _, err := g.prepare(IngestRequest{
		Filename: filepath.Base(absPath),
		Content:  f,
		FileID:   id,
		Metadata: map[string]string{"path": absPath},
	})
	if err != nil {
		return 0, err
	}
	removed, err := g.index.Replace(ctx, id, chunks)
	if err != nil {
		return 0, fmt.Errorf("index chunks: %w", err)
	}
	g.logger.Debug("synced watched file",
		zap.String("path", absPath),
		zap.Int("removed", removed),
		zap.Int("chunks", len(chunks)))
	return len(chunks), nil
}

// SyncDirectory walks dir and syncs every file with a supported extension.
// Returns the number of files synced and the first error encountered, if any.
func (g *Ingestor) SyncDirectory(ctx context.Context, dir string, recursive bool) (n int, err error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return 0, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return 0, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("not a directory: %s", absDir)
	}
	err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if path != absDir && !recursive {
				return filepath.SkipDir
			}
			return nil
		}
		if _, ferr := extract.FormatFromPath(path); ferr != nil {
			return nil
		}
		if _, serr := g.SyncFile(ctx, path); serr != nil {
			return fmt.Errorf("sync %s: %w", path, serr)
		}
		n++
		return nil
	})
	return n, err
}

// prepare validates the format, reads and extracts the content, and chunks every unit.
func (g *Ingestor) prepare(req IngestRequest) (extract.Format, []models.Chunk, []byte, error) {
	declared := req.Format
	if strings.TrimSpace(declared) == "" {
		declared = filepath.Ext(req.Filename)
	}
	format, err := extract.ParseFormat(declared)
	if err != nil {
		return "", nil, nil, err
	}
	if req.Content == nil {
		return "", nil, nil, fmt.Errorf("%w: no content", models.ErrExtractionFailed)
	}
	content, err := io.ReadAll(req.Content)
	if err != nil {
		return "", nil, nil, fmt.Errorf("read content: %w", err)
	}
	units, err := g.extractor.ExtractBytes(content, format)
	if err != nil {
		return "", nil, nil, err
	}

	id := req.FileID
	if id == "" {
		id = uuid.New().String()
	}
	base := models.CloneMetadata(req.Metadata)
	base[models.MetaSource] = filepath.Base(req.Filename)
	base[models.MetaIngestedAt] = g.now().UTC().Format(time.RFC3339)
	base[models.MetaFileID] = id
	base[models.MetaFormat] = string(format)

	var chunks []models.Chunk
	for _, u := range units {
		meta := base
		if u.Page > 0 {
			meta = models.CloneMetadata(base)
			meta[models.MetaPage] = strconv.Itoa(u.Page)
		}
		chunks = append(chunks, g.chunker.Chunk(u.Text, meta)...)
	}
	return format, chunks, content, nil
}

func (g *Ingestor) keepUpload(id string, format extract.Format, content []byte) {
	if g.uploadDir == "" || fileid.IsWatched(id) {
		return
	}
	if err := os.MkdirAll(g.uploadDir, 0o755); err != nil {
		g.logger.Warn("create upload dir failed", zap.String("dir", g.uploadDir), zap.Error(err))
		return
	}
	path := filepath.Join(g.uploadDir, id+format.Extension())
	if err := os.WriteFile(path, content, 0o644); err != nil {
		g.logger.Warn("keep upload failed", zap.String("path", path), zap.Error(err))
	}
}
