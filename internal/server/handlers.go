package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/studybuddy/internal/export"
	"github.com/hyperjump/studybuddy/internal/models"
	"github.com/hyperjump/studybuddy/internal/quiz"
)

const (
	maxUploadBytes   = 50 << 20
	maxQuizQuestions = 20
	exportFilename   = "studybuddy-progress.xlsx"
)

// Error codes reported in the "code" field of error bodies.
const (
	CodeBadRequest           = "bad_request"
	CodeUnsupportedFormat    = "unsupported_format"
	CodeExtractionFailed     = "extraction_failed"
	CodeNoContent            = "no_content_available"
	CodeInvalidQuestionType  = "invalid_question_type"
	CodeQuizNotFound         = "quiz_not_found"
	CodeQuizAlreadySubmitted = "quiz_already_submitted"
	CodeModelTimeout         = "model_timeout"
	CodeModelUnavailable     = "model_unavailable"
	CodeInternal             = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type chatRequest struct {
	Question       string `json:"question"`
	ConversationID string `json:"conversation_id,omitempty"`
}

type chatResponse struct {
	Answer         string   `json:"answer"`
	Sources        []string `json:"sources"`
	ConversationID string   `json:"conversation_id"`
}

type quizRequest struct {
	NumQuestions int    `json:"num_questions"`
	QuestionType string `json:"question_type"`
	Topic        string `json:"topic,omitempty"`
}

type quizResponse struct {
	QuizID    string            `json:"quiz_id"`
	Questions []models.Question `json:"questions"`
	CreatedAt time.Time         `json:"created_at"`
}

type submitRequest struct {
	QuizID  string         `json:"quiz_id"`
	Answers map[int]string `json:"answers"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"message": "StudyBuddy API", "version": s.version})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.svc.Status(r.Context())
	if err != nil {
		s.fail(w, "status", err)
		return
	}
	s.respondJSON(w, http.StatusOK, status)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, CodeBadRequest, `multipart field "file" is required`)
		return
	}
	defer file.Close()

	s.logger.Debug("upload request", zap.String("filename", header.Filename), zap.Int64("size", header.Size))
	result, err := s.svc.Upload(r.Context(), header.Filename, file)
	if err != nil {
		s.fail(w, "upload", err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleClearDocuments(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.ClearDocuments(r.Context()); err != nil {
		s.fail(w, "clear documents", err)
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var query models.SearchQuery
	if !s.decode(w, r, &query, false) {
		return
	}
	if err := query.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, CodeBadRequest, err.Error())
		return
	}
	s.logger.Debug("search request", zap.String("query", query.Query), zap.Int("limit", query.Limit),
		zap.String("mode", string(query.Mode)))
	response, err := s.svc.Search(r.Context(), &query)
	if err != nil {
		s.fail(w, "search", err)
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !s.decode(w, r, &req, false) {
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		s.respondError(w, http.StatusBadRequest, CodeBadRequest, "question is required")
		return
	}
	ans, err := s.svc.Ask(r.Context(), req.Question, req.ConversationID)
	if err != nil {
		s.fail(w, "chat", err)
		return
	}
	sources := ans.Sources
	if sources == nil {
		sources = []string{}
	}
	s.respondJSON(w, http.StatusOK, chatResponse{
		Answer:         ans.Answer,
		Sources:        sources,
		ConversationID: ans.ConversationID,
	})
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("conversation_id")
	if id == "" {
		s.respondError(w, http.StatusBadRequest, CodeBadRequest, "conversation_id is required")
		return
	}
	messages := s.svc.ConversationHistory(id)
	if messages == nil {
		messages = []models.ConversationMessage{}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"messages": messages})
}

func (s *Server) handleGenerateQuiz(w http.ResponseWriter, r *http.Request) {
	var req quizRequest
	if !s.decode(w, r, &req, true) {
		return
	}
	if req.NumQuestions < 0 || req.NumQuestions > maxQuizQuestions {
		s.respondError(w, http.StatusBadRequest, CodeBadRequest, "num_questions must be between 1 and 20")
		return
	}
	s.logger.Debug("quiz request", zap.Int("num_questions", req.NumQuestions),
		zap.String("question_type", req.QuestionType), zap.String("topic", req.Topic))
	generated, err := s.svc.GenerateQuiz(r.Context(), quiz.Request{
		NumQuestions: req.NumQuestions,
		QuestionType: models.QuestionType(req.QuestionType),
		Topic:        req.Topic,
	})
	if err != nil {
		s.fail(w, "generate quiz", err)
		return
	}
	s.respondJSON(w, http.StatusOK, quizResponse{
		QuizID:    generated.ID,
		Questions: generated.Questions,
		CreatedAt: generated.CreatedAt,
	})
}

func (s *Server) handleSubmitQuiz(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if !s.decode(w, r, &req, false) {
		return
	}
	if req.QuizID == "" {
		s.respondError(w, http.StatusBadRequest, CodeBadRequest, "quiz_id is required")
		return
	}
	result, err := s.svc.SubmitQuiz(r.Context(), req.QuizID, req.Answers)
	if err != nil {
		s.fail(w, "submit quiz", err)
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleQuizHistory(w http.ResponseWriter, r *http.Request) {
	history, err := s.svc.QuizHistory(r.Context())
	if err != nil {
		s.fail(w, "quiz history", err)
		return
	}
	if history == nil {
		history = []models.QuizHistoryEntry{}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"quizzes": history})
}

func (s *Server) handleGetQuiz(w http.ResponseWriter, r *http.Request) {
	q, err := s.svc.Quiz(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, "get quiz", err)
		return
	}
	s.respondJSON(w, http.StatusOK, q)
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	summary, err := s.svc.Progress(r.Context())
	if err != nil {
		s.fail(w, "progress", err)
		return
	}
	s.respondJSON(w, http.StatusOK, summary)
}

func (s *Server) handleWeakAreas(w http.ResponseWriter, r *http.Request) {
	weak, err := s.svc.WeakAreas(r.Context())
	if err != nil {
		s.fail(w, "weak areas", err)
		return
	}
	if weak == nil {
		weak = []models.WeakArea{}
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"weak_areas": weak})
}

func (s *Server) handleExportProgress(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.svc.ExportProgress(r.Context(), &buf); err != nil {
		s.fail(w, "export progress", err)
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+exportFilename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// decode reads a JSON body into v. With optional set an empty body leaves v unchanged.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return true
	}
	s.respondError(w, http.StatusBadRequest, CodeBadRequest, "invalid request body")
	return false
}

// errorStatus maps a service error to its HTTP status and error code.
func errorStatus(err error) (int, string) {
	var timeout *models.ModelTimeoutError
	var unavailable *models.ModelUnavailableError
	switch {
	case errors.Is(err, models.ErrUnsupportedFormat):
		return http.StatusBadRequest, CodeUnsupportedFormat
	case errors.Is(err, models.ErrExtractionFailed):
		return http.StatusUnprocessableEntity, CodeExtractionFailed
	case errors.Is(err, models.ErrNoContentAvailable):
		return http.StatusBadRequest, CodeNoContent
	case errors.Is(err, models.ErrInvalidQuestionType):
		return http.StatusBadRequest, CodeInvalidQuestionType
	case errors.Is(err, models.ErrQuizNotFound):
		return http.StatusNotFound, CodeQuizNotFound
	case errors.Is(err, models.ErrQuizAlreadySubmitted):
		return http.StatusConflict, CodeQuizAlreadySubmitted
	case errors.As(err, &timeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, CodeModelTimeout
	case errors.As(err, &unavailable):
		return http.StatusServiceUnavailable, CodeModelUnavailable
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(op+" failed", zap.Int("status", status), zap.Error(err))
	} else {
		s.logger.Warn(op+" rejected", zap.Int("status", status), zap.Error(err))
	}
	s.respondError(w, status, code, err.Error())
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, code, message string) {
	s.respondJSON(w, status, errorResponse{Error: message, Code: code})
}
