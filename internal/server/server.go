// Package server provides the HTTP API for StudyBuddy.
package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/studybuddy/internal/config"
	"github.com/hyperjump/studybuddy/internal/models"
	"github.com/hyperjump/studybuddy/internal/quiz"
	"github.com/hyperjump/studybuddy/pkg/utils"
)

// RequestTimeout bounds every request, model calls included.
const RequestTimeout = 120 * time.Second

// Service is the application surface served over HTTP.
type Service interface {
	Status(ctx context.Context) (*models.Status, error)
	Upload(ctx context.Context, filename string, r io.Reader) (*models.UploadResult, error)
	ClearDocuments(ctx context.Context) error
	Search(ctx context.Context, query *models.SearchQuery) (*models.SearchResponse, error)
	Ask(ctx context.Context, question, conversationID string) (*models.Answer, error)
	ConversationHistory(conversationID string) []models.ConversationMessage
	GenerateQuiz(ctx context.Context, req quiz.Request) (*models.Quiz, error)
	SubmitQuiz(ctx context.Context, quizID string, answers map[int]string) (*models.GradeResult, error)
	Quiz(ctx context.Context, id string) (*models.Quiz, error)
	QuizHistory(ctx context.Context) ([]models.QuizHistoryEntry, error)
	Progress(ctx context.Context) (*models.ProgressSummary, error)
	WeakAreas(ctx context.Context) ([]models.WeakArea, error)
	ExportProgress(ctx context.Context, w io.Writer) error
}

// Server is the HTTP server for the StudyBuddy API.
type Server struct {
	svc     Service
	config  *config.ServerConfig
	logger  *zap.Logger
	version string
	server  *http.Server
}

// NewServer creates a server over svc.
func NewServer(svc Service, cfg *config.ServerConfig, logger *zap.Logger, version string) *Server {
	s := &Server{
		svc:     svc,
		config:  cfg,
		logger:  utils.OrNop(logger),
		version: version,
	}
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed API handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(RequestTimeout))

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Post("/upload", s.handleUpload)
		r.Delete("/documents", s.handleClearDocuments)
		r.Post("/search", s.handleSearch)

		r.Post("/chat", s.handleChat)
		r.Get("/chat/history", s.handleChatHistory)

		r.Post("/quiz/generate", s.handleGenerateQuiz)
		r.Post("/quiz/submit", s.handleSubmitQuiz)
		r.Get("/quiz/history", s.handleQuizHistory)
		r.Get("/quiz/{id}", s.handleGetQuiz)

		r.Get("/progress", s.handleProgress)
		r.Get("/progress/weak-areas", s.handleWeakAreas)
		r.Get("/progress/export", s.handleExportProgress)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops. After Stop it returns http.ErrServerClosed.
func (s *Server) Start() error {
	s.logger.Info("Starting server", zap.String("addr", s.server.Addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
