package models

import "time"

// Conversation roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ConversationMessage is one turn of a chat conversation.
type ConversationMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// Evidence is a retrieved chunk shown alongside an answer, truncated for display.
type Evidence struct {
	Text     string            `json:"text"`
	Metadata map[string]string `json:"metadata"`
}

// Answer is the result of a grounded question.
type Answer struct {
	Answer         string     `json:"answer"`
	Evidence       []Evidence `json:"evidence"`
	Sources        []string   `json:"sources"`
	ConversationID string     `json:"conversation_id"`
}
