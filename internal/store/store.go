// Package store provides storage backends for PolicyPipe.
//
// It includes an in-memory store for sessions and chat states. Persistence is
// intentionally out of scope; the Store interface is the seam for swapping in
// a durable backend without touching the flow logic.
package store

import (
	"log/slog"
	"sync"
	"time"

	"github.com/BTreeMap/PolicyPipe/internal/models"
)

// Store defines the session and chat-state persistence contract used by the
// intake flow. Sessions are keyed by the Telegram chat ID.
type Store interface {
	// GetSession returns the session for chatID, or nil when none exists.
	GetSession(chatID int64) (*models.Session, error)

	// UpsertSession creates the session for chatID if absent, applies mutate
	// to it, and returns the stored result.
	UpsertSession(chatID int64, mutate func(*models.Session)) (*models.Session, error)

	// GetChatState returns the recorded conversation state for chatID.
	// A chat that was never seen is models.StateNone.
	GetChatState(chatID int64) (models.ChatState, error)

	// SetChatState records the conversation state for chatID.
	SetChatState(chatID int64, state models.ChatState) error
}

// InMemoryStore keeps sessions and chat states in process memory. Entries are
// never evicted; they live for the process lifetime and are overwritten in
// place when a user restarts the flow.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[int64]*models.Session
	states   map[int64]models.ChatState
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	slog.Debug("Creating InMemoryStore")
	return &InMemoryStore{
		sessions: make(map[int64]*models.Session),
		states:   make(map[int64]models.ChatState),
	}
}

// GetSession returns the session for chatID, or nil when none exists.
func (s *InMemoryStore) GetSession(chatID int64) (*models.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[chatID]
	if !ok {
		return nil, nil
	}
	// Copy so callers mutate only through UpsertSession.
	cp := *sess
	cp.Extracted = copyFields(sess.Extracted)
	return &cp, nil
}

// UpsertSession creates the session for chatID if absent, applies mutate and
// returns a copy of the stored result.
func (s *InMemoryStore) UpsertSession(chatID int64, mutate func(*models.Session)) (*models.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	sess, ok := s.sessions[chatID]
	if !ok {
		sess = &models.Session{ChatID: chatID, CreatedAt: now}
		s.sessions[chatID] = sess
		slog.Debug("InMemoryStore session created", "chatID", chatID)
	}
	if mutate != nil {
		mutate(sess)
	}
	sess.UpdatedAt = now

	cp := *sess
	cp.Extracted = copyFields(sess.Extracted)
	return &cp, nil
}

// GetChatState returns the recorded conversation state for chatID.
func (s *InMemoryStore) GetChatState(chatID int64) (models.ChatState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.states[chatID], nil
}

// SetChatState records the conversation state for chatID.
func (s *InMemoryStore) SetChatState(chatID int64, state models.ChatState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[chatID] = state
	return nil
}

func copyFields(in map[string]string) map[string]string {
	if in == nil {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
