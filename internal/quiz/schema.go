package quiz

import (
	"github.com/hyperjump/studybuddy/internal/llm"
	"github.com/hyperjump/studybuddy/internal/models"
)

// MCQSchema is the structured output shape for multiple choice batches.
// topic is optional; a missing topic becomes the request topic or General.
var MCQSchema = &llm.Schema{
	Name:        "mcq-questions",
	Description: "A batch of multiple choice questions grounded in study material",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"questions": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"question": map[string]any{
							"type":        "string",
							"description": "The question text",
						},
						"options": map[string]any{
							"type":        "array",
							"items":       map[string]any{"type": "string"},
							"minItems":    4,
							"maxItems":    4,
							"description": "Exactly 4 answer options",
						},
						"correct_answer": map[string]any{
							"type":        "string",
							"description": "The correct option, copied verbatim from options",
						},
						"topic": map[string]any{
							"type":        "string",
							"description": "The topic or chapter the question covers",
						},
					},
					"required":             []any{"question", "options", "correct_answer"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []any{"questions"},
		"additionalProperties": false,
	},
}

// ShortAnswerSchema is the structured output shape for short answer batches.
var ShortAnswerSchema = &llm.Schema{
	Name:        "short-answer-questions",
	Description: "A batch of short answer questions grounded in study material",
	Definition: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"questions": map[string]any{
				"type":     "array",
				"minItems": 1,
				"items": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"question": map[string]any{
							"type":        "string",
							"description": "The question text",
						},
						"correct_answer": map[string]any{
							"type":        "string",
							"description": "A model answer of two or three sentences",
						},
						"topic": map[string]any{
							"type":        "string",
							"description": "The topic or chapter the question covers",
						},
					},
					"required":             []any{"question", "correct_answer"},
					"additionalProperties": false,
				},
			},
		},
		"required":             []any{"questions"},
		"additionalProperties": false,
	},
}

func schemaFor(t models.QuestionType) *llm.Schema {
	if t == models.QuestionShortAnswer {
		return ShortAnswerSchema
	}
	return MCQSchema
}
