// Package flow provides concrete implementations of state management.
package flow

import (
	"context"
	"log/slog"

	"github.com/BTreeMap/PolicyPipe/internal/models"
	"github.com/BTreeMap/PolicyPipe/internal/store"
)

// StoreBasedStateManager implements StateManager using a Store backend.
type StoreBasedStateManager struct {
	store store.Store
}

// NewStoreBasedStateManager creates a new StateManager backed by a Store.
func NewStoreBasedStateManager(st store.Store) *StoreBasedStateManager {
	slog.Debug("Creating StoreBasedStateManager")
	return &StoreBasedStateManager{store: st}
}

// GetCurrentState retrieves the recorded state for a chat.
func (sm *StoreBasedStateManager) GetCurrentState(ctx context.Context, chatID int64) (models.ChatState, error) {
	state, err := sm.store.GetChatState(chatID)
	if err != nil {
		slog.Error("StateManager GetCurrentState error", "error", err, "chatID", chatID)
		return models.StateNone, err
	}
	slog.Debug("StateManager GetCurrentState", "chatID", chatID, "state", state)
	return state, nil
}

// SetCurrentState updates the recorded state for a chat.
func (sm *StoreBasedStateManager) SetCurrentState(ctx context.Context, chatID int64, state models.ChatState) error {
	if err := sm.store.SetChatState(chatID, state); err != nil {
		slog.Error("StateManager SetCurrentState error", "error", err, "chatID", chatID, "state", state)
		return err
	}
	slog.Debug("StateManager SetCurrentState succeeded", "chatID", chatID, "state", state)
	return nil
}

// ResetState clears the recorded state for a chat.
func (sm *StoreBasedStateManager) ResetState(ctx context.Context, chatID int64) error {
	if err := sm.store.SetChatState(chatID, models.StateNone); err != nil {
		slog.Error("StateManager ResetState error", "error", err, "chatID", chatID)
		return err
	}
	slog.Info("StateManager ResetState succeeded", "chatID", chatID)
	return nil
}
