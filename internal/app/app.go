// Package app wires configuration into the StudyBuddy components and exposes the
// operations shared by the HTTP server and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/studybuddy/internal/answer"
	"github.com/hyperjump/studybuddy/internal/config"
	"github.com/hyperjump/studybuddy/internal/embedding"
	"github.com/hyperjump/studybuddy/internal/export"
	"github.com/hyperjump/studybuddy/internal/index"
	"github.com/hyperjump/studybuddy/internal/indexer"
	"github.com/hyperjump/studybuddy/internal/keyword"
	"github.com/hyperjump/studybuddy/internal/llm"
	"github.com/hyperjump/studybuddy/internal/models"
	"github.com/hyperjump/studybuddy/internal/progress"
	"github.com/hyperjump/studybuddy/internal/quiz"
	"github.com/hyperjump/studybuddy/internal/retrieval"
	"github.com/hyperjump/studybuddy/internal/storage"
	"github.com/hyperjump/studybuddy/internal/tracker"
	"github.com/hyperjump/studybuddy/internal/vector"
	"github.com/hyperjump/studybuddy/internal/watcher"
	"github.com/hyperjump/studybuddy/pkg/utils"
)

// UploadMessage is reported for every successfully ingested upload.
const UploadMessage = "Document uploaded and indexed successfully"

// App holds the initialized components.
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	store     *storage.SQLiteStorage
	embedder  embedding.Embedder
	keywords  *keyword.BleveIndex
	index     *index.Index
	retriever *retrieval.Retriever
	ingestor  *indexer.Ingestor
	provider  llm.Provider
	answers   *answer.Synthesizer
	quizzes   *quiz.Synthesizer
	tracker   *tracker.Tracker
}

type options struct {
	provider llm.Provider
	embedder embedding.Embedder
}

// Option configures New.
type Option func(*options)

// WithProvider uses p instead of the provider selected by the LLM config.
func WithProvider(p llm.Provider) Option {
	return func(o *options) { o.provider = p }
}

// WithEmbedder uses e instead of the embedder selected by the embedding config.
// The App takes ownership and closes it.
func WithEmbedder(e embedding.Embedder) Option {
	return func(o *options) { o.embedder = e }
}

// New opens storage and the indices under cfg.Storage and starts the progress tracker.
// On error everything opened so far is closed.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	a := &App{cfg: cfg, logger: utils.OrNop(logger)}
	if err := a.open(ctx, o); err != nil {
		_ = a.Close()
		return nil, err
	}
	a.logger.Info("studybuddy ready",
		zap.String("database", cfg.Storage.DatabasePath),
		zap.String("llm_model", a.provider.ModelID()),
		zap.Int("embedding_dimensions", a.embedder.Dimensions()))
	return a, nil
}

func (a *App) open(ctx context.Context, o options) error {
	cfg := a.cfg
	var err error
	for _, dir := range []string{
		filepath.Dir(cfg.Storage.VectorIndexPath),
		filepath.Dir(cfg.Storage.KeywordIndexPath),
		cfg.Storage.UploadDir,
	} {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create data dir %s: %w", dir, err)
		}
	}

	a.store, err = storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	a.embedder = o.embedder
	if a.embedder == nil {
		a.embedder, err = embedding.New(ctx, cfg.Embedding, a.logger)
		if err != nil {
			return fmt.Errorf("failed to initialize embedder: %w", err)
		}
	}

	vectors, err := vector.NewMemoryIndex(a.embedder.Dimensions())
	if err != nil {
		return fmt.Errorf("failed to initialize vector index: %w", err)
	}
	a.keywords, err = keyword.NewBleveIndex(cfg.Storage.KeywordIndexPath)
	if err != nil {
		return fmt.Errorf("failed to initialize keyword index: %w", err)
	}
	a.index, err = index.Open(ctx, a.store, a.embedder, vectors, a.keywords,
		index.WithLogger(a.logger),
		index.WithSnapshotPath(cfg.Storage.VectorIndexPath),
		index.WithKeywordOptions(&keyword.SearchOptions{
			SourceBoost:  cfg.RAG.SourceBoost,
			FuzzyEnabled: cfg.RAG.Fuzziness > 0,
			Fuzziness:    cfg.RAG.Fuzziness,
		}))
	if err != nil {
		return fmt.Errorf("failed to open embedding index: %w", err)
	}

	a.retriever = retrieval.New(a.index, retrieval.WithLogger(a.logger))
	a.ingestor = indexer.NewIngestor(a.index,
		indexer.NewChunker(cfg.RAG.ChunkSize, cfg.RAG.ChunkOverlap),
		indexer.WithLogger(a.logger),
		indexer.WithUploadDir(cfg.Storage.UploadDir))

	a.provider = o.provider
	if a.provider == nil {
		a.provider, err = llm.NewProvider(ctx, cfg.LLM, a.logger)
		if err != nil {
			return fmt.Errorf("failed to initialize LLM provider: %w", err)
		}
	}

	conversations := answer.NewConversationStore(
		cfg.Conversation.MaxConversations,
		cfg.Conversation.MaxMessages,
		cfg.Conversation.TTL)
	a.answers = answer.NewSynthesizer(a.retriever, a.provider, conversations,
		answer.WithLogger(a.logger),
		answer.WithConfig(answer.Config{
			TopK:            cfg.RAG.AnswerTopK,
			EvidenceCount:   cfg.RAG.EvidenceCount,
			PreviewLength:   cfg.RAG.PreviewLength,
			HistoryMessages: cfg.Conversation.HistoryTurns,
			MaxTokens:       cfg.LLM.MaxTokens,
			Temperature:     cfg.LLM.Temperature,
		}))
	a.quizzes = quiz.NewSynthesizer(a.retriever, a.provider,
		quiz.WithLogger(a.logger),
		quiz.WithConfig(quiz.Config{
			RetrieveK:        cfg.Quiz.RetrieveK,
			ContextChunks:    cfg.Quiz.ContextChunks,
			ContextRunes:     cfg.Quiz.ContextChars,
			DefaultQuestions: cfg.Quiz.DefaultQuestions,
			DedupSimilarity:  cfg.Quiz.DedupSimilarity,
			MaxTokens:        cfg.LLM.MaxTokens,
			Temperature:      cfg.LLM.Temperature,
		}))

	a.tracker = tracker.New(a.store,
		tracker.WithLogger(a.logger),
		tracker.WithConfig(progress.Config{
			ActivityLimit:   cfg.Progress.RecentActivityLimit,
			WeakThreshold:   cfg.Progress.WeakThreshold,
			WeakLimit:       cfg.Progress.WeakLimit,
			SummaryActivity: cfg.Progress.SummaryActivity,
		}))
	// The actor lives until Close, independent of the construction context.
	if err := a.tracker.Start(context.Background()); err != nil {
		return fmt.Errorf("failed to start progress tracker: %w", err)
	}

	return nil
}

// Config returns the configuration the App was built from.
func (a *App) Config() *config.Config {
	return a.cfg
}

// Upload ingests one uploaded document under a new file id.
func (a *App) Upload(ctx context.Context, filename string, r io.Reader) (*models.UploadResult, error) {
	fileID := uuid.NewString()
	n, err := a.ingestor.Ingest(ctx, indexer.IngestRequest{
		Filename: filename,
		Content:  r,
		FileID:   fileID,
	})
	if err != nil {
		return nil, err
	}
	return &models.UploadResult{
		Message:       UploadMessage,
		FileID:        fileID,
		Filename:      filepath.Base(filename),
		ChunksCreated: n,
	}, nil
}

// IngestFile indexes a file from disk, replacing any chunks previously ingested from the same path.
func (a *App) IngestFile(ctx context.Context, path string) (int, error) {
	return a.ingestor.SyncFile(ctx, path)
}

// IngestDirectory indexes every supported file under dir and returns the number of files indexed.
func (a *App) IngestDirectory(ctx context.Context, dir string, recursive bool) (int, error) {
	return a.ingestor.SyncDirectory(ctx, dir, recursive)
}

// ClearDocuments removes every indexed chunk and every kept upload.
// Quizzes and progress are kept.
func (a *App) ClearDocuments(ctx context.Context) error {
	if err := a.index.Clear(ctx); err != nil {
		return err
	}
	dir := a.cfg.Storage.UploadDir
	if dir == "" {
		return nil
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("clear upload dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("recreate upload dir: %w", err)
	}
	a.logger.Info("cleared all documents")
	return nil
}

// Status reports index sizes, the configured models and on-disk usage.
func (a *App) Status(ctx context.Context) (*models.Status, error) {
	count, err := a.index.Count(ctx)
	if err != nil {
		return nil, err
	}
	paths := append(storage.DatabaseFiles(a.cfg.Storage.DatabasePath),
		a.cfg.Storage.VectorIndexPath,
		a.cfg.Storage.KeywordIndexPath,
		a.cfg.Storage.UploadDir)
	usage, err := storage.DiskUsageBytes(paths...)
	if err != nil {
		a.logger.Warn("disk usage unavailable", zap.Error(err))
	}
	return &models.Status{
		Chunks:              count,
		VectorIndexSize:     a.index.VectorSize(),
		LLMModel:            a.provider.ModelID(),
		EmbeddingDimensions: a.index.Dimensions(),
		DiskUsageBytes:      usage,
	}, nil
}

// Search ranks chunks for query in its mode.
func (a *App) Search(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error) {
	return a.retriever.Search(ctx, query)
}

// Ask answers question from the indexed material within the given conversation.
func (a *App) Ask(ctx context.Context, question, conversationID string) (*models.Answer, error) {
	return a.answers.Answer(ctx, question, conversationID)
}

// ConversationHistory returns the messages of a conversation, oldest first.
func (a *App) ConversationHistory(conversationID string) []models.ConversationMessage {
	return a.answers.Conversations().History(conversationID)
}

// GenerateQuiz generates a quiz and stores it for later submission.
func (a *App) GenerateQuiz(ctx context.Context, req quiz.Request) (*models.Quiz, error) {
	q, err := a.quizzes.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := a.tracker.SaveQuiz(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

// SubmitQuiz grades answers for a stored quiz and folds the result into progress.
func (a *App) SubmitQuiz(ctx context.Context, quizID string, answers map[int]string) (*models.GradeResult, error) {
	return a.tracker.Submit(ctx, quizID, answers)
}

// Quiz returns a stored quiz.
func (a *App) Quiz(ctx context.Context, id string) (*models.Quiz, error) {
	return a.tracker.Quiz(ctx, id)
}

// QuizHistory lists stored quizzes in creation order.
func (a *App) QuizHistory(ctx context.Context) ([]models.QuizHistoryEntry, error) {
	return a.tracker.History(ctx)
}

// Progress returns the learner progress summary.
func (a *App) Progress(ctx context.Context) (*models.ProgressSummary, error) {
	return a.tracker.Summary(ctx)
}

// WeakAreas returns topics below the weak threshold, weakest first.
func (a *App) WeakAreas(ctx context.Context) ([]models.WeakArea, error) {
	return a.tracker.WeakAreas(ctx)
}

// ExportProgress writes quiz history and progress as an xlsx workbook to w.
func (a *App) ExportProgress(ctx context.Context, w io.Writer) error {
	history, err := a.tracker.History(ctx)
	if err != nil {
		return err
	}
	summary, err := a.tracker.Summary(ctx)
	if err != nil {
		return err
	}
	return export.WriteWorkbook(w, history, summary)
}

// NewWatcher returns a watcher feeding dirs into the index. Without dirs the
// configured watch directories are used.
func (a *App) NewWatcher(dirs ...string) *watcher.Watcher {
	if len(dirs) == 0 {
		dirs = a.cfg.Watch.Directories
	}
	return watcher.New(watcher.Config{
		Directories: dirs,
		Extensions:  a.cfg.Watch.Extensions,
		Recursive:   a.cfg.Watch.RecursiveOrDefault(),
	}, a.ingestor, a.index, watcher.WithLogger(a.logger))
}

// Close stops the tracker, saves the vector snapshot and closes storage.
func (a *App) Close() error {
	var errs []error
	if a.tracker != nil {
		errs = append(errs, a.tracker.Close())
	}
	if a.index != nil {
		errs = append(errs, a.index.Close())
	}
	if a.keywords != nil {
		errs = append(errs, a.keywords.Close())
	}
	if a.embedder != nil {
		errs = append(errs, a.embedder.Close())
	}
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	return errors.Join(errs...)
}
