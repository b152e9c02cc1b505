package quiz

import (
	"strings"

	"github.com/hyperjump/studybuddy/internal/models"
	"github.com/hyperjump/studybuddy/pkg/utils"
)

const minFallbackSentence = 50

// fallbackQuestions builds up to n questions of type t from the sentences of material.
// It never fails; short material yields fewer questions.
func fallbackQuestions(material string, t models.QuestionType, n int) []models.Question {
	questions := []models.Question{}
	if n <= 0 {
		return questions
	}
	for _, s := range strings.Split(material, ". ") {
		if len(questions) == n {
			break
		}
		if utils.RuneLen(s) <= minFallbackSentence {
			continue
		}
		if t == models.QuestionShortAnswer {
			questions = append(questions, models.Question{
				Question:      "Explain: " + utils.CutRunes(s, 80) + "...",
				Options:       []string{},
				CorrectAnswer: s,
				QuestionType:  models.QuestionShortAnswer,
				Topic:         models.DefaultTopic,
			})
			continue
		}
		answer := utils.CutRunes(s, 100)
		questions = append(questions, models.Question{
			Question:      "What is mentioned about: " + utils.CutRunes(s, 50) + "...?",
			Options:       []string{answer, "Option B (incorrect)", "Option C (incorrect)", "Option D (incorrect)"},
			CorrectAnswer: answer,
			QuestionType:  models.QuestionMCQ,
			Topic:         models.DefaultTopic,
		})
	}
	return questions
}
