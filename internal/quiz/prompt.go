package quiz

import (
	"fmt"
	"strings"

	"github.com/hyperjump/studybuddy/internal/models"
)

const systemPrompt = `You are an expert educator creating practice questions for students.

Rules:
- Base every question strictly on the provided study material context.
- Test understanding of key concepts rather than trivia.
- Label each question with the topic or chapter it covers.
- Return ONLY valid JSON matching the requested format, no additional text.`

const mcqInstructions = `Each question should:
1. Test understanding of key concepts
2. Have exactly 4 options
3. Have one clearly correct answer, copied verbatim from the options
4. Include plausible distractors
5. Be based strictly on the provided context

Generate the questions in the following JSON format:
{
  "questions": [
    {
      "question": "Question text here?",
      "options": ["Option A", "Option B", "Option C", "Option D"],
      "correct_answer": "Option A",
      "topic": "relevant topic or chapter"
    }
  ]
}`

const shortAnswerInstructions = `Each question should:
1. Test understanding of key concepts
2. Require a brief but comprehensive answer (2-3 sentences)
3. Have a clear, specific correct answer
4. Be based strictly on the provided context

Generate the questions in the following JSON format:
{
  "questions": [
    {
      "question": "Question text here?",
      "correct_answer": "The correct answer explanation",
      "topic": "relevant topic or chapter"
    }
  ]
}`

// retrievalQuery is the text used to pick context chunks for a quiz.
func retrievalQuery(topic string) string {
	if topic != "" {
		return "Generate questions about: " + topic
	}
	return "Generate comprehensive questions covering key concepts"
}

// buildUserMessage asks for n questions of type t over material.
func buildUserMessage(t models.QuestionType, n int, topic, material string) string {
	kind, instructions := "multiple choice", mcqInstructions
	if t == models.QuestionShortAnswer {
		kind, instructions = "short answer", shortAnswerInstructions
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Based on the following study material context, generate %d high-quality %s questions", n, kind)
	if topic != "" {
		fmt.Fprintf(&b, " on the topic: %s", topic)
	}
	b.WriteString(".\n\n")
	b.WriteString(instructions)
	b.WriteString("\n\nContext:\n")
	b.WriteString(material)
	return b.String()
}
