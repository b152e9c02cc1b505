package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/studybuddy/internal/models"
)

func TestParseOutputFormat(t *testing.T) {
	for in, want := range map[string]OutputFormat{"": OutputText, "TEXT": OutputText, "json": OutputJSON} {
		got, err := ParseOutputFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseOutputFormat(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseOutputFormat("yaml"); err == nil {
		t.Error("expected error for yaml")
	}
}

func TestWriteSearchResults_JSON(t *testing.T) {
	response := &models.SearchResponse{
		Query:     "osmosis",
		Mode:      models.SearchHybrid,
		QueryTime: 42,
		Results: []*models.SearchResult{
			{Text: "Osmosis is diffusion of water.", Metadata: map[string]string{models.MetaSource: "bio.pdf"}, Rank: 1},
		},
	}
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, response, OutputJSON); err != nil {
		t.Fatalf("WriteSearchResults(json): %v", err)
	}
	var decoded models.SearchResponse
	if err := json.NewDecoder(&buf).Decode(&decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if decoded.Query != "osmosis" || len(decoded.Results) != 1 || decoded.Results[0].Rank != 1 {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestWriteSearchResults_text(t *testing.T) {
	response := &models.SearchResponse{
		Query:     "cells",
		Mode:      models.SearchSemantic,
		QueryTime: 7,
		Results: []*models.SearchResult{
			{Text: strings.Repeat("x", 300), Metadata: map[string]string{models.MetaSource: "bio.pdf", models.MetaPage: "3"}, Rank: 1},
			{Text: "short", Rank: 2},
		},
	}
	var buf bytes.Buffer
	if err := WriteSearchResults(&buf, response, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"Found 2 results in 7ms (semantic)", "Source: bio.pdf | Page: 3", strings.Repeat("x", 200) + "...", "Source: Unknown"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteAnswer_text(t *testing.T) {
	var buf bytes.Buffer
	err := WriteAnswer(&buf, &models.Answer{
		Answer:         "Water moves across membranes.",
		Sources:        []string{"Osmosis is... [Source: bio.pdf]"},
		ConversationID: "c-1",
	}, OutputText)
	if err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "1. Osmosis is... [Source: bio.pdf]") || !strings.Contains(out, "Conversation: c-1") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestWriteQuiz_hidesAnswers(t *testing.T) {
	quiz := &models.Quiz{
		ID: "q-1",
		Questions: []models.Question{
			{Question: "Capital of France?", Options: []string{"Paris", "Rome", "Oslo", "Bern"}, CorrectAnswer: "Paris", QuestionType: models.QuestionMCQ},
		},
	}
	var text, js bytes.Buffer
	if err := WriteQuiz(&text, quiz, OutputText); err != nil {
		t.Fatal(err)
	}
	if err := WriteQuiz(&js, quiz, OutputJSON); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(text.String(), "1. [General] Capital of France?") || !strings.Contains(text.String(), "B) Rome") {
		t.Errorf("unexpected text output:\n%s", text.String())
	}
	if strings.Contains(js.String(), `"correct_answer": "Paris"`) {
		t.Errorf("json output leaks the answer:\n%s", js.String())
	}
	if quiz.Questions[0].CorrectAnswer != "Paris" {
		t.Error("WriteQuiz must not modify the quiz")
	}
}

func TestWriteGradeResult_text(t *testing.T) {
	res := &models.GradeResult{
		QuizID:         "q-1",
		Score:          50,
		TotalQuestions: 2,
		CorrectAnswers: 1,
		Results: map[int]models.Result{
			1: {Correct: false, UserAnswer: "Rome", CorrectAnswer: "Paris", Question: "Capital of France?"},
			0: {Correct: true, UserAnswer: "4", CorrectAnswer: "4", Question: "2+2?"},
		},
	}
	var buf bytes.Buffer
	if err := WriteGradeResult(&buf, res, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "Score: 50.0% (1/2 correct)") {
		t.Errorf("missing score line:\n%s", out)
	}
	if strings.Index(out, "1. 2+2?") > strings.Index(out, "2. Capital of France?") {
		t.Errorf("results not in question order:\n%s", out)
	}
	if !strings.Contains(out, "correct:     Paris") {
		t.Errorf("missing correction:\n%s", out)
	}
}

func TestWriteProgressAndHistory_text(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 0, 0, time.UTC)
	var buf bytes.Buffer
	err := WriteProgress(&buf, &models.ProgressSummary{
		TotalQuizzes:   1,
		AverageScore:   62.5,
		WeakAreas:      []models.WeakArea{{Topic: "Cells", Accuracy: 25, TotalQuestions: 4, CorrectAnswers: 1}},
		RecentActivity: []models.ActivityEntry{{QuizID: "q-1", Score: 62.5, TotalQuestions: 8, Timestamp: at}},
	}, OutputText)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "Average score:       62.50%") || !strings.Contains(buf.String(), "Cells") {
		t.Errorf("unexpected progress output:\n%s", buf.String())
	}

	buf.Reset()
	score := 80.0
	if err := WriteHistory(&buf, []models.QuizHistoryEntry{
		{QuizID: "a", CreatedAt: at, TotalQuestions: 5},
		{QuizID: "b", CreatedAt: at, Submitted: true, Score: &score, TotalQuestions: 5},
	}, OutputText); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "a   5 questions  pending") || !strings.Contains(out, "b   5 questions  80.0%") {
		t.Errorf("unexpected history output:\n%s", out)
	}

	buf.Reset()
	if err := WriteHistory(&buf, nil, OutputText); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "No quizzes yet.") {
		t.Errorf("unexpected empty history output: %q", buf.String())
	}
}
