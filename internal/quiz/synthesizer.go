// Package quiz generates practice quizzes from retrieved study material.
//
// Each batch asks the model for structured JSON. Output that fails to decode,
// validate or pass semantic checks is replaced by questions synthesized from the
// context itself, so generation only fails when the model call fails or there
// is nothing indexed.
package quiz

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/studybuddy/internal/llm"
	"github.com/hyperjump/studybuddy/internal/models"
	"github.com/hyperjump/studybuddy/pkg/utils"
)

// Retriever supplies the chunks quizzes are built from.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]models.Chunk, error)
}

// Request describes a quiz to generate.
type Request struct {
	NumQuestions int
	QuestionType models.QuestionType
	Topic        string
}

// Config tunes quiz generation.
type Config struct {
	RetrieveK        int
	ContextChunks    int
	ContextRunes     int
	DefaultQuestions int
	DedupSimilarity  float64
	MaxTokens        int
	Temperature      float64
}

// DefaultConfig returns the standard quiz settings.
func DefaultConfig() Config {
	return Config{
		RetrieveK:        15,
		ContextChunks:    10,
		ContextRunes:     8000,
		DefaultQuestions: 5,
		DedupSimilarity:  0.9,
		MaxTokens:        2048,
		Temperature:      0.7,
	}
}

// Synthesizer generates quizzes.
type Synthesizer struct {
	retriever Retriever
	provider  llm.Provider
	cfg       Config
	logger    *zap.Logger
	now       func() time.Time
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithLogger sets the logger. Nil means no logging.
func WithLogger(l *zap.Logger) Option {
	return func(s *Synthesizer) {
		s.logger = utils.OrNop(l)
	}
}

// WithConfig overrides the quiz settings. Zero fields keep their defaults.
func WithConfig(cfg Config) Option {
	return func(s *Synthesizer) {
		def := DefaultConfig()
		if cfg.RetrieveK <= 0 {
			cfg.RetrieveK = def.RetrieveK
		}
		if cfg.ContextChunks <= 0 {
			cfg.ContextChunks = def.ContextChunks
		}
		if cfg.ContextRunes <= 0 {
			cfg.ContextRunes = def.ContextRunes
		}
		if cfg.DefaultQuestions <= 0 {
			cfg.DefaultQuestions = def.DefaultQuestions
		}
		if cfg.DedupSimilarity <= 0 || cfg.DedupSimilarity > 1 {
			cfg.DedupSimilarity = def.DedupSimilarity
		}
		if cfg.MaxTokens <= 0 {
			cfg.MaxTokens = def.MaxTokens
		}
		s.cfg = cfg
	}
}

// WithClock sets the time source for quiz timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Synthesizer) {
		s.now = now
	}
}

// NewSynthesizer creates a Synthesizer.
func NewSynthesizer(retriever Retriever, provider llm.Provider, opts ...Option) *Synthesizer {
	s := &Synthesizer{
		retriever: retriever,
		provider:  provider,
		cfg:       DefaultConfig(),
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

type batch struct {
	qtype models.QuestionType
	count int
}

// Generate builds a quiz from the indexed material.
// It returns models.ErrNoContentAvailable when nothing relevant is indexed and
// models.ErrInvalidQuestionType for an unknown type. Model failures propagate.
// The quiz may hold fewer questions than requested.
func (s *Synthesizer) Generate(ctx context.Context, req Request) (*models.Quiz, error) {
	qtype, err := models.ParseQuestionType(string(req.QuestionType))
	if err != nil {
		return nil, err
	}
	n := req.NumQuestions
	if n <= 0 {
		n = s.cfg.DefaultQuestions
	}
	topic := strings.TrimSpace(req.Topic)

	chunks, err := s.retriever.Retrieve(ctx, retrievalQuery(topic), s.cfg.RetrieveK)
	if err != nil {
		return nil, fmt.Errorf("retrieve quiz context: %w", err)
	}
	if len(chunks) == 0 {
		return nil, models.ErrNoContentAvailable
	}
	material := s.buildContext(chunks)

	defaultTopic := topic
	if defaultTopic == "" {
		defaultTopic = models.DefaultTopic
	}

	questions := []models.Question{}
	for _, b := range batches(qtype, n) {
		if b.count == 0 {
			continue
		}
		outcome, err := s.generateBatch(ctx, b, topic, defaultTopic, material, questions)
		if err != nil {
			return nil, err
		}
		questions = append(questions, outcome.Items()...)
	}

	quiz := &models.Quiz{
		ID:           uuid.NewString(),
		CreatedAt:    s.now().UTC(),
		Topic:        topic,
		QuestionType: qtype,
		Questions:    questions,
	}
	s.logger.Info("generated quiz",
		zap.String("quiz_id", quiz.ID),
		zap.String("question_type", string(qtype)),
		zap.Int("requested", n),
		zap.Int("questions", len(questions)))
	return quiz, nil
}

// batches splits a request into per-type generation batches, mcq first.
func batches(t models.QuestionType, n int) []batch {
	if t == models.QuestionMixed {
		mcq := n / 2
		return []batch{
			{qtype: models.QuestionMCQ, count: mcq},
			{qtype: models.QuestionShortAnswer, count: n - mcq},
		}
	}
	return []batch{{qtype: t, count: n}}
}

// buildContext joins the leading chunk texts and cuts the result to the rune budget.
func (s *Synthesizer) buildContext(chunks []models.Chunk) string {
	if len(chunks) > s.cfg.ContextChunks {
		chunks = chunks[:s.cfg.ContextChunks]
	}
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	return utils.CutRunes(strings.Join(texts, "\n\n"), s.cfg.ContextRunes)
}

func (s *Synthesizer) generateBatch(ctx context.Context, b batch, topic, defaultTopic, material string, prior []models.Question) (Outcome, error) {
	req := llm.Request{
		System:      systemPrompt,
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: buildUserMessage(b.qtype, b.count, topic, material)}},
		Schema:      schemaFor(b.qtype),
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
	}
	resp, err := s.provider.Generate(llm.WithPurpose(ctx, "quiz"), req)
	if err != nil {
		return nil, fmt.Errorf("generate %s questions: %w", b.qtype, err)
	}
	return s.resolve(resp.Text, b, defaultTopic, material, prior), nil
}

// resolve turns model output into an Outcome, falling back to context sentences
// when the output is unusable.
func (s *Synthesizer) resolve(raw string, b batch, defaultTopic, material string, prior []models.Question) Outcome {
	parsed, err := parseQuestions(raw, b.qtype, defaultTopic)
	if err != nil {
		var cause *GenerationParseError
		errors.As(err, &cause)
		s.logger.Warn("model output unusable, using fallback questions",
			zap.String("question_type", string(b.qtype)),
			zap.Error(err))
		return Fallback{Questions: fallbackQuestions(material, b.qtype, b.count), Cause: cause}
	}
	parsed = dedupe(parsed, prior, s.cfg.DedupSimilarity)
	if len(parsed) > b.count {
		parsed = parsed[:b.count]
	}
	return Parsed{Questions: parsed}
}
