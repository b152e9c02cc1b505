package models

import (
	"fmt"
	"strings"
	"time"
)

// DefaultTopic is used for questions that carry no topic label.
const DefaultTopic = "General"

// QuestionType is the answer format of a single question.
type QuestionType string

const (
	QuestionMCQ         QuestionType = "mcq"
	QuestionShortAnswer QuestionType = "short_answer"
	// QuestionMixed is only valid as a generation request type.
	QuestionMixed QuestionType = "mixed"
)

// ParseQuestionType normalizes s into a generation request type.
// An empty string yields QuestionMCQ.
func ParseQuestionType(s string) (QuestionType, error) {
	switch QuestionType(strings.ToLower(strings.TrimSpace(s))) {
	case "", QuestionMCQ:
		return QuestionMCQ, nil
	case QuestionShortAnswer:
		return QuestionShortAnswer, nil
	case QuestionMixed:
		return QuestionMixed, nil
	default:
		return "", fmt.Errorf("%w: %q (supported: mcq, short_answer, mixed)", ErrInvalidQuestionType, s)
	}
}

// Question is one quiz item. Its index within Quiz.Questions is its identity.
type Question struct {
	Question      string       `json:"question"`
	Options       []string     `json:"options"`
	CorrectAnswer string       `json:"correct_answer"`
	QuestionType  QuestionType `json:"question_type"`
	Topic         string       `json:"topic"`
}

// TopicOrDefault returns the question topic, or DefaultTopic when blank.
func (q *Question) TopicOrDefault() string {
	if t := strings.TrimSpace(q.Topic); t != "" {
		return t
	}
	return DefaultTopic
}

// Quiz is a generated question set. It is mutated exactly once, on submission.
type Quiz struct {
	ID           string         `json:"quiz_id" db:"id"`
	CreatedAt    time.Time      `json:"created_at" db:"created_at"`
	Topic        string         `json:"topic,omitempty" db:"topic"`
	QuestionType QuestionType   `json:"question_type,omitempty" db:"question_type"`
	Questions    []Question     `json:"questions" db:"questions"`
	Submitted    bool           `json:"submitted" db:"submitted"`
	Score        *float64       `json:"score" db:"score"`
	Answers      map[int]string `json:"answers,omitempty" db:"answers"`
	Results      map[int]Result `json:"results,omitempty" db:"results"`
	SubmittedAt  *time.Time     `json:"submitted_at,omitempty" db:"submitted_at"`
}

// Result is the grading outcome of one question.
type Result struct {
	Correct       bool   `json:"correct"`
	UserAnswer    string `json:"user_answer"`
	CorrectAnswer string `json:"correct_answer"`
	Question      string `json:"question"`
	Topic         string `json:"topic"`
}

// GradeResult is returned for a quiz submission.
type GradeResult struct {
	QuizID         string         `json:"quiz_id"`
	Score          float64        `json:"score"`
	TotalQuestions int            `json:"total_questions"`
	CorrectAnswers int            `json:"correct_answers"`
	Results        map[int]Result `json:"results"`
}

// QuizHistoryEntry is a compact listing row for a stored quiz.
type QuizHistoryEntry struct {
	QuizID         string    `json:"quiz_id"`
	CreatedAt      time.Time `json:"created_at"`
	Submitted      bool      `json:"submitted"`
	Score          *float64  `json:"score"`
	TotalQuestions int       `json:"total_questions"`
}
