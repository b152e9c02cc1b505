// Package cli renders StudyBuddy results for the terminal.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/hyperjump/studybuddy/internal/models"
	"github.com/hyperjump/studybuddy/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat accepts "text", "json" or empty (text).
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (supported: text, json)", s)
	}
}

const rule = "─────────────────────────────────────────────────────────"

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteSearchResults writes ranked chunks in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, response)
	}
	fmt.Fprintf(w, "\nFound %d results in %dms (%s)\n\n", len(response.Results), response.QueryTime, response.Mode)
	for _, r := range response.Results {
		fmt.Fprintln(w, rule)
		fmt.Fprintf(w, "Rank: %d | Source: %s", r.Rank, sourceOf(r.Metadata))
		if page := r.Metadata[models.MetaPage]; page != "" {
			fmt.Fprintf(w, " | Page: %s", page)
		}
		fmt.Fprintf(w, "\n\n%s\n\n", utils.Truncate(r.Text, 200))
	}
	return nil
}

// WriteAnswer writes an answer with its sources.
func WriteAnswer(w io.Writer, answer *models.Answer, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, answer)
	}
	fmt.Fprintf(w, "\n%s\n", answer.Answer)
	if len(answer.Sources) > 0 {
		fmt.Fprintln(w, "\nSources:")
		for i, s := range answer.Sources {
			fmt.Fprintf(w, "  %d. %s\n", i+1, s)
		}
	}
	fmt.Fprintf(w, "\nConversation: %s\n", answer.ConversationID)
	return nil
}

// WriteQuiz writes a quiz. Correct answers are never shown.
func WriteQuiz(w io.Writer, quiz *models.Quiz, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, redacted(quiz))
	}
	fmt.Fprintf(w, "\nQuiz %s (%d questions)\n", quiz.ID, len(quiz.Questions))
	for i, q := range quiz.Questions {
		WriteQuestion(w, i, q)
	}
	return nil
}

// WriteQuestion writes one numbered question with lettered options.
func WriteQuestion(w io.Writer, index int, q models.Question) {
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "%d. [%s] %s\n", index+1, q.TopicOrDefault(), q.Question)
	for j, opt := range q.Options {
		fmt.Fprintf(w, "   %c) %s\n", 'A'+rune(j), opt)
	}
}

// WriteGradeResult writes a graded submission.
func WriteGradeResult(w io.Writer, res *models.GradeResult, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, res)
	}
	fmt.Fprintf(w, "\nScore: %.1f%% (%d/%d correct)\n\n", res.Score, res.CorrectAnswers, res.TotalQuestions)
	indices := make([]int, 0, len(res.Results))
	for i := range res.Results {
		indices = append(indices, i)
	}
	sort.Ints(indices)
	for _, i := range indices {
		r := res.Results[i]
		mark := "✗"
		if r.Correct {
			mark = "✓"
		}
		fmt.Fprintf(w, "%s %d. %s\n", mark, i+1, r.Question)
		if !r.Correct {
			fmt.Fprintf(w, "    your answer: %s\n    correct:     %s\n", r.UserAnswer, r.CorrectAnswer)
		}
	}
	return nil
}

// WriteProgress writes the progress summary.
func WriteProgress(w io.Writer, s *models.ProgressSummary, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, s)
	}
	fmt.Fprintf(w, "\nQuizzes taken:       %d\n", s.TotalQuizzes)
	fmt.Fprintf(w, "Questions attempted: %d\n", s.TotalQuestionsAttempted)
	fmt.Fprintf(w, "Average score:       %.2f%%\n", s.AverageScore)
	if len(s.WeakAreas) > 0 {
		fmt.Fprintln(w, "\nWeak areas:")
		for _, wa := range s.WeakAreas {
			fmt.Fprintf(w, "  %-30s %6.1f%% (%d/%d)\n", wa.Topic, wa.Accuracy, wa.CorrectAnswers, wa.TotalQuestions)
		}
	}
	if len(s.RecentActivity) > 0 {
		fmt.Fprintln(w, "\nRecent activity:")
		for _, a := range s.RecentActivity {
			fmt.Fprintf(w, "  %s  %s  %.1f%% of %d\n", a.Timestamp.Format("2006-01-02 15:04"), a.QuizID, a.Score, a.TotalQuestions)
		}
	}
	return nil
}

// WriteHistory writes the quiz listing.
func WriteHistory(w io.Writer, entries []models.QuizHistoryEntry, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, map[string]any{"quizzes": entries})
	}
	if len(entries) == 0 {
		fmt.Fprintln(w, "No quizzes yet.")
		return nil
	}
	for _, e := range entries {
		score := "pending"
		if e.Score != nil {
			score = fmt.Sprintf("%.1f%%", *e.Score)
		}
		fmt.Fprintf(w, "%s  %s  %2d questions  %s\n", e.CreatedAt.Format("2006-01-02 15:04"), e.QuizID, e.TotalQuestions, score)
	}
	return nil
}

func sourceOf(meta map[string]string) string {
	if s := meta[models.MetaSource]; s != "" {
		return s
	}
	return "Unknown"
}

// redacted returns a copy of quiz without correct answers, for showing to the learner.
func redacted(quiz *models.Quiz) *models.Quiz {
	out := *quiz
	out.Questions = make([]models.Question, len(quiz.Questions))
	for i, q := range quiz.Questions {
		q.CorrectAnswer = ""
		out.Questions[i] = q
	}
	return &out
}
