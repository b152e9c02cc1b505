package grading

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/studybuddy/internal/models"
)

func mcq(correct string) models.Question {
	return models.Question{
		Question:      "Pick one",
		Options:       []string{"Paris", "Rome", "Madrid", "Berlin"},
		CorrectAnswer: correct,
		QuestionType:  models.QuestionMCQ,
		Topic:         "Geography",
	}
}

func short(correct string) models.Question {
	return models.Question{Question: "Explain", CorrectAnswer: correct, QuestionType: models.QuestionShortAnswer}
}

func TestIsCorrect_MCQ(t *testing.T) {
	q := mcq("Paris")
	assert.True(t, IsCorrect(&q, "Paris"))
	assert.True(t, IsCorrect(&q, "  pARIS "))
	assert.False(t, IsCorrect(&q, "Pari"))
	assert.False(t, IsCorrect(&q, "A"))
	assert.False(t, IsCorrect(&q, ""))
}

func TestKeyTerms(t *testing.T) {
	assert.Equal(t, []string{"mitochondria", "produce", "energy"}, KeyTerms("Mitochondria produce ATP energy in the cell"))
	assert.Empty(t, KeyTerms("a cat is on it"))
}

func TestIsCorrect_ShortAnswer(t *testing.T) {
	q := short("Mitochondria produce energy for cells")
	// terms: mitochondria, produce, energy, cells
	assert.True(t, IsCorrect(&q, "They produce ENERGY"))
	assert.True(t, IsCorrect(&q, "the mitochondria makes energy"))
	assert.False(t, IsCorrect(&q, "energy"))
	assert.False(t, IsCorrect(&q, ""))

	odd := short("Photosynthesis converts sunlight")
	// three terms: two matches needed
	assert.False(t, IsCorrect(&odd, "sunlight"))
	assert.True(t, IsCorrect(&odd, "photosynthesis uses sunlight"))
}

func TestIsCorrect_ShortAnswerWithoutKeyTerms(t *testing.T) {
	q := short("yes it is")
	assert.True(t, IsCorrect(&q, ""))
	assert.True(t, IsCorrect(&q, "anything"))
}

func TestGrade(t *testing.T) {
	quiz := &models.Quiz{
		ID: "quiz-1",
		Questions: []models.Question{
			mcq("Paris"),
			short("Mitochondria produce energy for cells"),
			mcq("Rome"),
			{Question: "Untagged", CorrectAnswer: "x", QuestionType: models.QuestionMCQ},
		},
	}
	res := Grade(quiz, map[int]string{0: "paris", 1: "cells produce energy", 2: "Madrid", 9: "ignored"})

	assert.Equal(t, "quiz-1", res.QuizID)
	assert.Equal(t, 4, res.TotalQuestions)
	assert.Equal(t, 2, res.CorrectAnswers)
	assert.InDelta(t, 50.0, res.Score, 1e-9)
	require.Len(t, res.Results, 4)
	assert.Equal(t, models.Result{Correct: true, UserAnswer: "paris", CorrectAnswer: "Paris", Question: "Pick one", Topic: "Geography"}, res.Results[0])
	assert.False(t, res.Results[2].Correct)
	assert.Equal(t, "", res.Results[3].UserAnswer)
	assert.Equal(t, models.DefaultTopic, res.Results[3].Topic)
}

func TestGrade_EmptyQuiz(t *testing.T) {
	res := Grade(&models.Quiz{ID: "empty"}, nil)
	assert.Zero(t, res.Score)
	assert.Zero(t, res.TotalQuestions)
	assert.Empty(t, res.Results)
}

func TestGrade_Deterministic(t *testing.T) {
	quiz := &models.Quiz{ID: "q", Questions: []models.Question{mcq("Paris"), short("Energy flows through ecosystems")}}
	answers := map[int]string{0: "Paris", 1: "energy ecosystems"}
	assert.Equal(t, Grade(quiz, answers), Grade(quiz, answers))
}
