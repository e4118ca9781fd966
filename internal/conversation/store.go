// Package conversation keeps a rolling window of chat turns per session,
// consumed as LLM context on follow-up queries.
package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/deepsearch-labs/deepquery/internal/pkg/logger"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat turn half.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// listStore is the slice of the redis client the store exercises.
type listStore interface {
	RPush(ctx context.Context, key string, values ...interface{}) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	LTrim(ctx context.Context, key string, start, stop int64) error
	Expire(ctx context.Context, key string, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

// Store persists per-session history in Redis lists with a TTL so idle
// sessions age out on their own.
type Store struct {
	client   listStore
	maxTurns int
	ttl      time.Duration
	log      *logger.Logger
}

// NewStore creates a store keeping the last maxTurns user/assistant pairs.
func NewStore(client listStore, maxTurns int, ttl time.Duration, log *logger.Logger) *Store {
	if maxTurns <= 0 {
		maxTurns = 5
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if log == nil {
		log = logger.L()
	}
	return &Store{client: client, maxTurns: maxTurns, ttl: ttl, log: log}
}

func sessionKey(sessionID string) string {
	return "conversation:" + sessionID
}

// AddUserMessage records a user message.
func (s *Store) AddUserMessage(ctx context.Context, sessionID, content string) error {
	return s.append(ctx, sessionID, Message{Role: RoleUser, Content: content})
}

// AddAssistantMessage records an assistant response.
func (s *Store) AddAssistantMessage(ctx context.Context, sessionID, content string) error {
	return s.append(ctx, sessionID, Message{Role: RoleAssistant, Content: content})
}

func (s *Store) append(ctx context.Context, sessionID string, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	key := sessionKey(sessionID)
	if err := s.client.RPush(ctx, key, data); err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}

	// Keep the last maxTurns pairs and refresh the idle timeout.
	maxMessages := int64(s.maxTurns * 2)
	if err := s.client.LTrim(ctx, key, -maxMessages, -1); err != nil {
		return fmt.Errorf("failed to trim history: %w", err)
	}
	if err := s.client.Expire(ctx, key, s.ttl); err != nil {
		return fmt.Errorf("failed to set history ttl: %w", err)
	}
	return nil
}

// History returns the session's messages, oldest first.
func (s *Store) History(ctx context.Context, sessionID string) ([]Message, error) {
	raw, err := s.client.LRange(ctx, sessionKey(sessionID), 0, -1)
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}

	messages := make([]Message, 0, len(raw))
	for _, item := range raw {
		var msg Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			s.log.Warn("skipping corrupt history entry",
				zap.String("session_id", sessionID),
				zap.Error(err))
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// ContextForLLM returns messages ready to prepend to a chat completion. A
// trailing user message is dropped because the caller re-adds the current
// query itself.
func (s *Store) ContextForLLM(ctx context.Context, sessionID string) ([]Message, error) {
	history, err := s.History(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if n := len(history); n > 0 && history[n-1].Role == RoleUser {
		history = history[:n-1]
	}
	return history, nil
}

// Clear removes a session's history.
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, sessionKey(sessionID)); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	s.log.Info("cleared conversation history", zap.String("session_id", sessionID))
	return nil
}
