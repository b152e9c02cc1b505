package models

import "time"

// TopicStats counts graded questions for one topic.
type TopicStats struct {
	Total   int `json:"total"`
	Correct int `json:"correct"`
}

// ActivityEntry records one submitted quiz in the recent activity log.
type ActivityEntry struct {
	QuizID         string    `json:"quiz_id"`
	Score          float64   `json:"score"`
	TotalQuestions int       `json:"total_questions"`
	Timestamp      time.Time `json:"timestamp"`
}

// ProgressState is the durable learner aggregate folded from every submission.
type ProgressState struct {
	TotalQuizzes            int                    `json:"total_quizzes"`
	TotalQuestionsAttempted int                    `json:"total_questions_attempted"`
	Scores                  []float64              `json:"scores"`
	TopicPerformance        map[string]*TopicStats `json:"topic_performance"`
	RecentActivity          []ActivityEntry        `json:"recent_activity"`
}

// NewProgressState returns an empty aggregate with initialized collections.
func NewProgressState() *ProgressState {
	return &ProgressState{
		Scores:           []float64{},
		TopicPerformance: make(map[string]*TopicStats),
		RecentActivity:   []ActivityEntry{},
	}
}

// WeakArea is a topic whose accuracy falls below the weak threshold.
type WeakArea struct {
	Topic          string  `json:"topic"`
	Accuracy       float64 `json:"accuracy"`
	TotalQuestions int     `json:"total_questions"`
	CorrectAnswers int     `json:"correct_answers"`
}

// ProgressSummary is the read model served to clients.
type ProgressSummary struct {
	TotalQuizzes            int             `json:"total_quizzes"`
	TotalQuestionsAttempted int             `json:"total_questions_attempted"`
	AverageScore            float64         `json:"average_score"`
	WeakAreas               []WeakArea      `json:"weak_areas"`
	RecentActivity          []ActivityEntry `json:"recent_activity"`
}
