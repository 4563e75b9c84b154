// Package flow implements the insurance-intake conversation state machine.
package flow

import (
	"context"

	"github.com/BTreeMap/PolicyPipe/internal/models"
)

// StateManager defines the interface for tracking each chat's conversation state.
type StateManager interface {
	// GetCurrentState retrieves the recorded state for a chat
	GetCurrentState(ctx context.Context, chatID int64) (models.ChatState, error)

	// SetCurrentState updates the recorded state for a chat
	SetCurrentState(ctx context.Context, chatID int64, state models.ChatState) error

	// ResetState clears the recorded state for a chat
	ResetState(ctx context.Context, chatID int64) error
}

// MessagingService is the outbound messaging surface the flow needs. The full
// transport lives in internal/messaging; declaring the consumed subset here
// keeps the flow free of transport imports.
type MessagingService interface {
	SendMessage(ctx context.Context, chatID int64, body string) error
	SendKeyboard(ctx context.Context, chatID int64, body string, options []string) error
}

// DocumentExtractor is the document-understanding collaborator. Both methods
// return session field keys mapped to extracted values; the flow degrades
// every field to Unknown when a call errors.
type DocumentExtractor interface {
	ExtractPassport(ctx context.Context, imagePath string) (map[string]string, error)
	ExtractVehicle(ctx context.Context, imagePath string) (map[string]string, error)
}
