// Package messaging provides the transport abstraction and the top-level
// event dispatcher for PolicyPipe.
package messaging

import (
	"context"

	"github.com/BTreeMap/PolicyPipe/internal/models"
)

// Service defines a pluggable message delivery abstraction. It supports
// sending plain text and keyboard-prompted messages, and provides a channel
// of normalized inbound events.
type Service interface {
	// SendMessage sends a plain text message to a chat.
	SendMessage(ctx context.Context, chatID int64, body string) error

	// SendKeyboard sends a text message with a one-time reply keyboard whose
	// buttons are the given options, one row.
	SendKeyboard(ctx context.Context, chatID int64, body string, options []string) error

	// Start begins background processing (e.g., polling for updates).
	Start(ctx context.Context) error

	// Stop stops background processing and cleans up resources.
	Stop() error

	// Events returns a channel of normalized inbound events.
	Events() <-chan models.Event
}
