package answer

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/hyperjump/studybuddy/internal/models"
)

const (
	DefaultMaxConversations = 1000
	DefaultMaxMessages      = 50
	DefaultConversationTTL  = 24 * time.Hour
)

// ConversationStore keeps recent conversations in memory. The least recently
// used conversation is evicted when capacity is reached, and idle conversations
// expire after the TTL. Each conversation keeps its newest maxMessages messages.
type ConversationStore struct {
	mu          sync.Mutex
	cache       *expirable.LRU[string, []models.ConversationMessage]
	maxMessages int
}

// NewConversationStore creates a store. Non-positive arguments use the defaults.
func NewConversationStore(capacity, maxMessages int, ttl time.Duration) *ConversationStore {
	if capacity <= 0 {
		capacity = DefaultMaxConversations
	}
	if maxMessages <= 0 {
		maxMessages = DefaultMaxMessages
	}
	if ttl <= 0 {
		ttl = DefaultConversationTTL
	}
	return &ConversationStore{
		cache:       expirable.NewLRU[string, []models.ConversationMessage](capacity, nil, ttl),
		maxMessages: maxMessages,
	}
}

// Append adds messages to the conversation, dropping the oldest beyond the per-conversation cap.
func (s *ConversationStore) Append(id string, msgs ...models.ConversationMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, _ := s.cache.Peek(id)
	next := make([]models.ConversationMessage, 0, len(existing)+len(msgs))
	next = append(next, existing...)
	next = append(next, msgs...)
	if over := len(next) - s.maxMessages; over > 0 {
		next = next[over:]
	}
	s.cache.Add(id, next)
}

// History returns a copy of the conversation's messages, or an empty slice for an unknown id.
func (s *ConversationStore) History(id string) []models.ConversationMessage {
	return s.Recent(id, 0)
}

// Recent returns a copy of the last n messages; n <= 0 means all.
func (s *ConversationStore) Recent(id string, n int) []models.ConversationMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs, ok := s.cache.Get(id)
	if !ok {
		return []models.ConversationMessage{}
	}
	if n > 0 && len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	out := make([]models.ConversationMessage, len(msgs))
	copy(out, msgs)
	return out
}

// Len returns the number of live conversations.
func (s *ConversationStore) Len() int {
	return s.cache.Len()
}
