// Package answer produces grounded answers to learner questions from retrieved chunks.
package answer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/studybuddy/internal/llm"
	"github.com/hyperjump/studybuddy/internal/models"
	"github.com/hyperjump/studybuddy/pkg/utils"
)

// NoDocumentsAnswer is returned, successfully, when nothing relevant is indexed.
const NoDocumentsAnswer = "No documents have been uploaded yet. Please upload study materials first."

const systemPrompt = `You are an AI study assistant helping students understand their study materials.

Use the pieces of context from the student's uploaded documents to answer the question.
If you don't know the answer based on the provided context, say that you don't know.
Do not make up information that is not in the context.`

// Retriever is the retrieval surface the synthesizer needs.
type Retriever interface {
	Available(ctx context.Context) bool
	Retrieve(ctx context.Context, query string, k int) ([]models.Chunk, error)
}

// Config tunes answer synthesis.
type Config struct {
	TopK          int
	EvidenceCount int
	PreviewLength int
	// HistoryMessages is how many prior conversation messages are sent to the model.
	HistoryMessages int
	MaxTokens       int
	Temperature     float64
}

// DefaultConfig returns the standard answer settings.
func DefaultConfig() Config {
	return Config{
		TopK:            4,
		EvidenceCount:   3,
		PreviewLength:   200,
		HistoryMessages: 6,
		MaxTokens:       1024,
		Temperature:     0.7,
	}
}

// Synthesizer answers questions from retrieved context.
type Synthesizer struct {
	retriever     Retriever
	provider      llm.Provider
	conversations *ConversationStore
	cfg           Config
	logger        *zap.Logger
	now           func() time.Time
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithLogger sets the logger. Nil means no logging.
func WithLogger(l *zap.Logger) Option {
	return func(s *Synthesizer) {
		s.logger = utils.OrNop(l)
	}
}

// WithConfig overrides the answer settings. Zero fields keep their defaults.
func WithConfig(cfg Config) Option {
	return func(s *Synthesizer) {
		def := DefaultConfig()
		if cfg.TopK <= 0 {
			cfg.TopK = def.TopK
		}
		if cfg.EvidenceCount <= 0 {
			cfg.EvidenceCount = def.EvidenceCount
		}
		if cfg.PreviewLength <= 0 {
			cfg.PreviewLength = def.PreviewLength
		}
		if cfg.HistoryMessages < 0 {
			cfg.HistoryMessages = 0
		}
		if cfg.MaxTokens <= 0 {
			cfg.MaxTokens = def.MaxTokens
		}
		s.cfg = cfg
	}
}

// WithClock sets the time source for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Synthesizer) {
		s.now = now
	}
}

// NewSynthesizer creates a Synthesizer. A nil store gets a default ConversationStore.
func NewSynthesizer(retriever Retriever, provider llm.Provider, store *ConversationStore, opts ...Option) *Synthesizer {
	if store == nil {
		store = NewConversationStore(0, 0, 0)
	}
	s := &Synthesizer{
		retriever:     retriever,
		provider:      provider,
		conversations: store,
		cfg:           DefaultConfig(),
		logger:        zap.NewNop(),
		now:           time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Conversations returns the conversation store.
func (s *Synthesizer) Conversations() *ConversationStore {
	return s.conversations
}

// Answer answers question from the indexed documents. An empty conversationID starts a new conversation.
// Model failures are returned as *models.ModelUnavailableError or *models.ModelTimeoutError.
func (s *Synthesizer) Answer(ctx context.Context, question, conversationID string) (*models.Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("question cannot be empty")
	}
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	var chunks []models.Chunk
	if s.retriever.Available(ctx) {
		var err error
		chunks, err = s.retriever.Retrieve(ctx, question, s.cfg.TopK)
		if err != nil {
			return nil, fmt.Errorf("retrieve context: %w", err)
		}
	}

	result := &models.Answer{
		Evidence:       []models.Evidence{},
		Sources:        []string{},
		ConversationID: conversationID,
	}
	if len(chunks) == 0 {
		result.Answer = NoDocumentsAnswer
		s.record(conversationID, question, result.Answer)
		return result, nil
	}

	req := llm.Request{
		System:      systemPrompt,
		Messages:    s.messages(conversationID, question, chunks),
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
	}
	resp, err := s.provider.Generate(llm.WithPurpose(ctx, "answer"), req)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	// The model text is returned as generated; only surrounding whitespace is dropped.
	result.Answer = strings.TrimSpace(resp.Text)
	for i, ch := range chunks {
		if i == s.cfg.EvidenceCount {
			break
		}
		preview := utils.Truncate(ch.Text, s.cfg.PreviewLength)
		result.Evidence = append(result.Evidence, models.Evidence{Text: preview, Metadata: ch.Metadata})
		result.Sources = append(result.Sources, formatSource(preview, ch.Metadata))
	}
	s.record(conversationID, question, result.Answer)
	s.logger.Debug("answered question",
		zap.String("conversation_id", conversationID),
		zap.Int("chunks", len(chunks)),
		zap.Int("sources", len(result.Sources)))
	return result, nil
}

// messages builds the model conversation: recent turns, then the question with its context.
func (s *Synthesizer) messages(conversationID, question string, chunks []models.Chunk) []llm.Message {
	var out []llm.Message
	if s.cfg.HistoryMessages > 0 {
		for _, m := range s.conversations.Recent(conversationID, s.cfg.HistoryMessages) {
			role := llm.RoleUser
			if m.Role == models.RoleAssistant {
				role = llm.RoleAssistant
			}
			out = append(out, llm.Message{Role: role, Content: m.Content})
		}
	}
	return append(out, llm.Message{Role: llm.RoleUser, Content: buildPrompt(question, chunks)})
}

func buildPrompt(question string, chunks []models.Chunk) string {
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	var b strings.Builder
	b.WriteString("Context:\n")
	b.WriteString(strings.Join(texts, "\n\n"))
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\n\nProvide a clear, detailed answer based only on the context provided:")
	return b.String()
}

func (s *Synthesizer) record(conversationID, question, answer string) {
	now := s.now().UTC()
	s.conversations.Append(conversationID,
		models.ConversationMessage{Role: models.RoleUser, Content: question, Timestamp: now},
		models.ConversationMessage{Role: models.RoleAssistant, Content: answer, Timestamp: now},
	)
}

// formatSource renders a preview with its source filename when the chunk has metadata.
func formatSource(preview string, metadata map[string]string) string {
	if len(metadata) == 0 {
		return preview
	}
	source := metadata[models.MetaSource]
	if source == "" {
		source = "Unknown"
	}
	return fmt.Sprintf("%s [Source: %s]", preview, source)
}
