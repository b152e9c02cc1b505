package quiz

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/studybuddy/internal/llm"
	"github.com/hyperjump/studybuddy/internal/models"
)

type fakeRetriever struct {
	chunks    []models.Chunk
	lastQuery string
	lastK     int
}

func (f *fakeRetriever) Retrieve(_ context.Context, query string, k int) ([]models.Chunk, error) {
	f.lastQuery, f.lastK = query, k
	return f.chunks, nil
}

func material() *fakeRetriever {
	return &fakeRetriever{chunks: []models.Chunk{{ID: "1", Text: longA + ". " + longB}}}
}

const mcqBatch = `{"questions":[
 {"question":"What does photosynthesis produce?","options":["Glucose","Salt","Iron","Sand"],"correct_answer":"Glucose","topic":""},
 {"question":"What does photosynthesis produce ?","options":["Glucose","Salt","Iron","Sand"],"correct_answer":"Glucose","topic":"Plants"},
 {"question":"Which organelle hosts photosynthesis?","options":["Chloroplast","Nucleus","Ribosome","Vacuole"],"correct_answer":"Chloroplast","topic":"Plants"},
 {"question":"What powers photosynthesis?","options":["Light","Sound","Wind","Heat"],"correct_answer":"Light","topic":"Plants"}
]}`

const shortBatch = `{"questions":[
 {"question":"Explain cellular respiration.","correct_answer":"Cells release energy stored in glucose.","topic":"Cells"},
 {"question":"Why do plants need light?","correct_answer":"Light drives photosynthesis.","topic":"Plants"}
]}`

func TestGenerate_MCQ(t *testing.T) {
	r := material()
	mock := llm.NewMockProvider(llm.MockResponse{Text: "```json\n" + mcqBatch + "\n```"})
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.FixedZone("x", 3600))
	s := NewSynthesizer(r, mock, WithClock(func() time.Time { return fixed }))

	quiz, err := s.Generate(context.Background(), Request{NumQuestions: 2, Topic: "Photosynthesis"})
	require.NoError(t, err)

	assert.Equal(t, "Generate questions about: Photosynthesis", r.lastQuery)
	assert.Equal(t, 15, r.lastK)
	assert.NotEmpty(t, quiz.ID)
	assert.Equal(t, fixed.UTC(), quiz.CreatedAt)
	assert.Equal(t, models.QuestionMCQ, quiz.QuestionType)
	require.Len(t, quiz.Questions, 2)
	assert.Equal(t, "What does photosynthesis produce?", quiz.Questions[0].Question)
	assert.Equal(t, "Photosynthesis", quiz.Questions[0].Topic)
	assert.Equal(t, "Which organelle hosts photosynthesis?", quiz.Questions[1].Question)

	req, _ := mock.LastCall()
	require.NotNil(t, req.Schema)
	assert.Equal(t, MCQSchema.Name, req.Schema.Name)
	assert.Contains(t, req.Messages[0].Content, "generate 2 high-quality multiple choice questions on the topic: Photosynthesis")
}

func TestGenerate_Defaults(t *testing.T) {
	r := material()
	mock := llm.NewMockProvider(llm.MockResponse{Text: mcqBatch})
	s := NewSynthesizer(r, mock)

	quiz, err := s.Generate(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "Generate comprehensive questions covering key concepts", r.lastQuery)
	assert.Len(t, quiz.Questions, 3)
	assert.Equal(t, models.DefaultTopic, quiz.Questions[0].Topic)
	req, _ := mock.LastCall()
	assert.Contains(t, req.Messages[0].Content, "generate 5 high-quality")
}

func TestGenerate_Mixed(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Text: mcqBatch}, llm.MockResponse{Text: shortBatch})
	s := NewSynthesizer(material(), mock)

	quiz, err := s.Generate(context.Background(), Request{NumQuestions: 3, QuestionType: models.QuestionMixed})
	require.NoError(t, err)
	require.Equal(t, 2, mock.CallCount())
	assert.Equal(t, models.QuestionMixed, quiz.QuestionType)
	require.Len(t, quiz.Questions, 3)
	assert.Equal(t, models.QuestionMCQ, quiz.Questions[0].QuestionType)
	assert.Equal(t, models.QuestionShortAnswer, quiz.Questions[1].QuestionType)
	assert.Equal(t, models.QuestionShortAnswer, quiz.Questions[2].QuestionType)
	assert.Equal(t, ShortAnswerSchema.Name, mock.Calls[1].Schema.Name)
}

func TestGenerate_MixedSingleQuestionSkipsEmptyBatch(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Text: shortBatch})
	s := NewSynthesizer(material(), mock)

	quiz, err := s.Generate(context.Background(), Request{NumQuestions: 1, QuestionType: models.QuestionMixed})
	require.NoError(t, err)
	assert.Equal(t, 1, mock.CallCount())
	require.Len(t, quiz.Questions, 1)
	assert.Equal(t, models.QuestionShortAnswer, quiz.Questions[0].QuestionType)
}

func TestGenerate_FallbackOnMalformedOutput(t *testing.T) {
	mock := llm.NewMockProvider(llm.MockResponse{Text: "I cannot produce JSON today."})
	s := NewSynthesizer(material(), mock)

	quiz, err := s.Generate(context.Background(), Request{NumQuestions: 5})
	require.NoError(t, err)
	require.Len(t, quiz.Questions, 2)
	assert.True(t, strings.HasPrefix(quiz.Questions[0].Question, "What is mentioned about: "))
	assert.Equal(t, models.DefaultTopic, quiz.Questions[0].Topic)
}

func TestResolve_ReportsOutcome(t *testing.T) {
	s := NewSynthesizer(material(), llm.NewMockProvider())
	b := batch{qtype: models.QuestionMCQ, count: 2}

	out := s.resolve("nope", b, "General", longA, nil)
	fb, ok := out.(Fallback)
	require.True(t, ok)
	require.NotNil(t, fb.Cause)
	assert.Equal(t, "json", fb.Cause.Stage)

	out = s.resolve(mcqBatch, b, "General", longA, nil)
	parsed, ok := out.(Parsed)
	require.True(t, ok)
	assert.Len(t, parsed.Items(), 2)
}

func TestGenerate_NoContent(t *testing.T) {
	mock := llm.NewMockProvider()
	s := NewSynthesizer(&fakeRetriever{}, mock)

	_, err := s.Generate(context.Background(), Request{NumQuestions: 3})
	assert.ErrorIs(t, err, models.ErrNoContentAvailable)
	assert.Zero(t, mock.CallCount())
}

func TestGenerate_InvalidType(t *testing.T) {
	s := NewSynthesizer(material(), llm.NewMockProvider())
	_, err := s.Generate(context.Background(), Request{QuestionType: "essay"})
	assert.ErrorIs(t, err, models.ErrInvalidQuestionType)
}

func TestGenerate_ModelFailureIsNotMasked(t *testing.T) {
	timeout := &models.ModelTimeoutError{Model: "mock", Timeout: time.Second, Err: context.DeadlineExceeded}
	s := NewSynthesizer(material(), llm.NewMockProvider(llm.MockResponse{Err: timeout}))

	_, err := s.Generate(context.Background(), Request{NumQuestions: 2})
	var te *models.ModelTimeoutError
	require.True(t, errors.As(err, &te))
}

func TestBuildContext(t *testing.T) {
	chunks := make([]models.Chunk, 12)
	for i := range chunks {
		chunks[i] = models.Chunk{Text: strings.Repeat("x", 1000)}
	}
	s := NewSynthesizer(nil, nil)
	assert.Equal(t, 8000, len(s.buildContext(chunks)))

	s = NewSynthesizer(nil, nil, WithConfig(Config{ContextRunes: 100000}))
	assert.Equal(t, 10*1000+9*2, len(s.buildContext(chunks)))
}
