// Package grading scores quiz submissions. Grading is pure and deterministic.
package grading

import (
	"strings"

	"github.com/hyperjump/studybuddy/internal/models"
	"github.com/hyperjump/studybuddy/pkg/utils"
)

// minKeyTermRunes is the exclusive lower bound on the length of a short answer key term.
const minKeyTermRunes = 4

// Grade scores answers against quiz. Missing answers count as empty strings.
func Grade(quiz *models.Quiz, answers map[int]string) *models.GradeResult {
	result := &models.GradeResult{
		QuizID:         quiz.ID,
		TotalQuestions: len(quiz.Questions),
		Results:        make(map[int]models.Result, len(quiz.Questions)),
	}
	for i := range quiz.Questions {
		q := &quiz.Questions[i]
		answer := answers[i]
		correct := IsCorrect(q, answer)
		if correct {
			result.CorrectAnswers++
		}
		result.Results[i] = models.Result{
			Correct:       correct,
			UserAnswer:    answer,
			CorrectAnswer: q.CorrectAnswer,
			Question:      q.Question,
			Topic:         q.TopicOrDefault(),
		}
	}
	result.Score = Score(result.CorrectAnswers, result.TotalQuestions)
	return result
}

// Score returns correct/total as a percentage, or 0 when total is 0.
func Score(correct, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(correct) / float64(total) * 100
}

// IsCorrect grades a single answer.
func IsCorrect(q *models.Question, answer string) bool {
	if q.QuestionType == models.QuestionShortAnswer {
		return matchesKeyTerms(q.CorrectAnswer, answer)
	}
	return fold(answer) == fold(q.CorrectAnswer)
}

// matchesKeyTerms reports whether at least half of the key terms of correct
// appear as substrings of answer. No key terms means correct.
func matchesKeyTerms(correct, answer string) bool {
	terms := KeyTerms(correct)
	submitted := fold(answer)
	matches := 0
	for _, term := range terms {
		if strings.Contains(submitted, term) {
			matches++
		}
	}
	return float64(matches) >= float64(len(terms))*0.5
}

// KeyTerms returns the whitespace-delimited tokens of the folded answer longer than four runes.
func KeyTerms(correct string) []string {
	var terms []string
	for _, tok := range strings.Fields(fold(correct)) {
		if utils.RuneLen(tok) > minKeyTermRunes {
			terms = append(terms, tok)
		}
	}
	return terms
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
