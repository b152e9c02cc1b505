// Package progress folds graded quizzes into the learner aggregate and derives
// weak areas and summaries from it.
package progress

import (
	"math"
	"sort"

	"github.com/hyperjump/studybuddy/internal/models"
)

const (
	DefaultActivityLimit   = 20
	DefaultWeakThreshold   = 70.0
	DefaultWeakLimit       = 10
	DefaultSummaryActivity = 10
)

// Config tunes aggregation.
type Config struct {
	ActivityLimit   int
	WeakThreshold   float64
	WeakLimit       int
	SummaryActivity int
}

// DefaultConfig returns the standard aggregation settings.
func DefaultConfig() Config {
	return Config{
		ActivityLimit:   DefaultActivityLimit,
		WeakThreshold:   DefaultWeakThreshold,
		WeakLimit:       DefaultWeakLimit,
		SummaryActivity: DefaultSummaryActivity,
	}
}

// Record folds a submitted quiz into state and keeps the newest limit activity entries.
// The quiz must carry its score, results and submission time.
func Record(state *models.ProgressState, quiz *models.Quiz, limit int) {
	if state.TopicPerformance == nil {
		state.TopicPerformance = make(map[string]*models.TopicStats)
	}
	var score float64
	if quiz.Score != nil {
		score = *quiz.Score
	}

	state.TotalQuizzes++
	state.TotalQuestionsAttempted += len(quiz.Questions)
	state.Scores = append(state.Scores, score)

	for i := range quiz.Questions {
		res, ok := quiz.Results[i]
		if !ok {
			continue
		}
		topic := res.Topic
		if topic == "" {
			topic = quiz.Questions[i].TopicOrDefault()
		}
		stats := state.TopicPerformance[topic]
		if stats == nil {
			stats = &models.TopicStats{}
			state.TopicPerformance[topic] = stats
		}
		stats.Total++
		if res.Correct {
			stats.Correct++
		}
	}

	entry := models.ActivityEntry{
		QuizID:         quiz.ID,
		Score:          score,
		TotalQuestions: len(quiz.Questions),
	}
	if quiz.SubmittedAt != nil {
		entry.Timestamp = *quiz.SubmittedAt
	}
	state.RecentActivity = append(state.RecentActivity, entry)
	if limit > 0 && len(state.RecentActivity) > limit {
		state.RecentActivity = append([]models.ActivityEntry(nil), state.RecentActivity[len(state.RecentActivity)-limit:]...)
	}
}

// Accuracy returns correct/total as a percentage, or 0 when total is 0.
func Accuracy(stats models.TopicStats) float64 {
	if stats.Total == 0 {
		return 0
	}
	return float64(stats.Correct) / float64(stats.Total) * 100
}

// WeakAreas returns topics with accuracy strictly below threshold, weakest first
// and then by topic name, capped at limit. A non-positive limit means no cap.
func WeakAreas(state *models.ProgressState, threshold float64, limit int) []models.WeakArea {
	areas := []models.WeakArea{}
	for topic, stats := range state.TopicPerformance {
		if stats == nil {
			continue
		}
		acc := Accuracy(*stats)
		if acc >= threshold {
			continue
		}
		areas = append(areas, models.WeakArea{
			Topic:          topic,
			Accuracy:       round2(acc),
			TotalQuestions: stats.Total,
			CorrectAnswers: stats.Correct,
		})
	}
	sort.Slice(areas, func(i, j int) bool {
		if areas[i].Accuracy != areas[j].Accuracy {
			return areas[i].Accuracy < areas[j].Accuracy
		}
		return areas[i].Topic < areas[j].Topic
	})
	if limit > 0 && len(areas) > limit {
		areas = areas[:limit]
	}
	return areas
}

// Summarize builds the read model for state.
func Summarize(state *models.ProgressState, cfg Config) *models.ProgressSummary {
	summary := &models.ProgressSummary{
		TotalQuizzes:            state.TotalQuizzes,
		TotalQuestionsAttempted: state.TotalQuestionsAttempted,
		AverageScore:            round2(mean(state.Scores)),
		WeakAreas:               WeakAreas(state, cfg.WeakThreshold, cfg.WeakLimit),
		RecentActivity:          []models.ActivityEntry{},
	}
	recent := state.RecentActivity
	if cfg.SummaryActivity > 0 && len(recent) > cfg.SummaryActivity {
		recent = recent[len(recent)-cfg.SummaryActivity:]
	}
	summary.RecentActivity = append(summary.RecentActivity, recent...)
	return summary
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
