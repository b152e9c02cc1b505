package quiz

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/hyperjump/studybuddy/internal/llm"
	"github.com/hyperjump/studybuddy/internal/models"
)

// GenerationParseError reports model output that could not be turned into questions.
// It is recovered by the fallback generator and never returned to callers.
type GenerationParseError struct {
	Stage string
	Err   error
}

func (e *GenerationParseError) Error() string {
	return fmt.Sprintf("parse generated questions (%s): %v", e.Stage, e.Err)
}

func (e *GenerationParseError) Unwrap() error { return e.Err }

// Outcome is the result of turning one model response into questions.
// It is either Parsed or Fallback.
type Outcome interface {
	Items() []models.Question
	outcome()
}

// Parsed holds questions decoded from valid model output.
type Parsed struct {
	Questions []models.Question
}

// Fallback holds questions synthesized from the context after Cause made the output unusable.
type Fallback struct {
	Questions []models.Question
	Cause     *GenerationParseError
}

func (p Parsed) Items() []models.Question   { return p.Questions }
func (f Fallback) Items() []models.Question { return f.Questions }
func (Parsed) outcome()                     {}
func (Fallback) outcome()                   {}

type rawQuestions struct {
	Questions []rawQuestion `json:"questions"`
}

type rawQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Topic         string   `json:"topic"`
}

// schemaCache caches compiled JSON schemas by name.
var schemaCache sync.Map // map[string]*jsonschema.Schema

// parseQuestions decodes and validates raw model output for question type t.
// Topics left blank are set to defaultTopic.
func parseQuestions(raw string, t models.QuestionType, defaultTopic string) ([]models.Question, error) {
	body := stripCodeFence(raw)

	var doc any
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, &GenerationParseError{Stage: "json", Err: err}
	}

	compiled, err := compiledSchema(schemaFor(t))
	if err != nil {
		return nil, &GenerationParseError{Stage: "schema", Err: err}
	}
	if err := compiled.Validate(doc); err != nil {
		return nil, &GenerationParseError{Stage: "schema", Err: err}
	}

	var decoded rawQuestions
	if err := json.Unmarshal([]byte(body), &decoded); err != nil {
		return nil, &GenerationParseError{Stage: "json", Err: err}
	}

	questions := make([]models.Question, 0, len(decoded.Questions))
	for i, rq := range decoded.Questions {
		q := models.Question{
			Question:      strings.TrimSpace(rq.Question),
			CorrectAnswer: strings.TrimSpace(rq.CorrectAnswer),
			QuestionType:  t,
			Topic:         strings.TrimSpace(rq.Topic),
			Options:       []string{},
		}
		if q.Topic == "" {
			q.Topic = defaultTopic
		}
		if q.Question == "" || q.CorrectAnswer == "" {
			return nil, &GenerationParseError{Stage: "semantic", Err: fmt.Errorf("question %d is blank", i)}
		}
		if t == models.QuestionMCQ {
			q.Options = rq.Options
			if !containsFold(q.Options, q.CorrectAnswer) {
				return nil, &GenerationParseError{
					Stage: "semantic",
					Err:   fmt.Errorf("question %d: correct answer %q is not an option", i, q.CorrectAnswer),
				}
			}
		}
		questions = append(questions, q)
	}
	if len(questions) == 0 {
		return nil, &GenerationParseError{Stage: "semantic", Err: errors.New("no questions")}
	}
	return questions, nil
}

// stripCodeFence returns the body of a ```json fence, else of a bare ``` fence, else s.
func stripCodeFence(s string) string {
	for _, open := range []string{"```json", "```"} {
		if _, rest, ok := strings.Cut(s, open); ok {
			body, _, _ := strings.Cut(rest, "```")
			return strings.TrimSpace(body)
		}
	}
	return strings.TrimSpace(s)
}

func containsFold(options []string, answer string) bool {
	answer = strings.ToLower(strings.TrimSpace(answer))
	for _, o := range options {
		if strings.ToLower(strings.TrimSpace(o)) == answer {
			return true
		}
	}
	return false
}

// compiledSchema returns a cached compiled schema or compiles and caches it.
func compiledSchema(schema *llm.Schema) (*jsonschema.Schema, error) {
	if cached, ok := schemaCache.Load(schema.Name); ok {
		return cached.(*jsonschema.Schema), nil
	}

	// The compiler expects a parsed JSON value, so round-trip the Go map.
	defBytes, err := json.Marshal(schema.Definition)
	if err != nil {
		return nil, fmt.Errorf("marshal schema definition: %w", err)
	}
	var defParsed any
	if err := json.Unmarshal(defBytes, &defParsed); err != nil {
		return nil, fmt.Errorf("parse schema definition: %w", err)
	}

	c := jsonschema.NewCompiler()
	schemaURL := fmt.Sprintf("schema://%s.json", schema.Name)
	if err := c.AddResource(schemaURL, defParsed); err != nil {
		return nil, fmt.Errorf("add resource: %w", err)
	}
	compiled, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}

	schemaCache.Store(schema.Name, compiled)
	return compiled, nil
}
