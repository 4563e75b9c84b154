// Package testutil provides shared test doubles for PolicyPipe packages.
//
// The mocks satisfy the interfaces declared in internal/flow and
// internal/messaging structurally, so this package only depends on models.
package testutil

import (
	"context"
	"sync"

	"github.com/BTreeMap/PolicyPipe/internal/models"
)

// SentMessage records one outbound message, with Options set for keyboards.
type SentMessage struct {
	ChatID  int64
	Body    string
	Options []string
}

// MockMessenger is a messaging service double that records everything sent
// and lets tests feed inbound events.
type MockMessenger struct {
	mu      sync.Mutex
	sent    []SentMessage
	SendErr error
	events  chan models.Event
}

// NewMockMessenger creates a mock messenger with a buffered events channel.
func NewMockMessenger() *MockMessenger {
	return &MockMessenger{events: make(chan models.Event, 16)}
}

// SendMessage records a plain text message.
func (m *MockMessenger) SendMessage(ctx context.Context, chatID int64, body string) error {
	if m.SendErr != nil {
		return m.SendErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, SentMessage{ChatID: chatID, Body: body})
	return nil
}

// SendKeyboard records a keyboard-prompted message.
func (m *MockMessenger) SendKeyboard(ctx context.Context, chatID int64, body string, options []string) error {
	if m.SendErr != nil {
		return m.SendErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, SentMessage{ChatID: chatID, Body: body, Options: options})
	return nil
}

// Start is a no-op.
func (m *MockMessenger) Start(ctx context.Context) error { return nil }

// Stop closes the events channel.
func (m *MockMessenger) Stop() error {
	close(m.events)
	return nil
}

// Events returns the inbound events channel.
func (m *MockMessenger) Events() <-chan models.Event { return m.events }

// Push feeds an inbound event to consumers of Events.
func (m *MockMessenger) Push(event models.Event) { m.events <- event }

// Sent returns a copy of everything recorded so far.
func (m *MockMessenger) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentMessage, len(m.sent))
	copy(out, m.sent)
	return out
}

// Bodies returns just the text of every recorded message, in order.
func (m *MockMessenger) Bodies() []string {
	sent := m.Sent()
	bodies := make([]string, len(sent))
	for i, s := range sent {
		bodies[i] = s.Body
	}
	return bodies
}

// Last returns the most recently recorded message.
func (m *MockMessenger) Last() (SentMessage, bool) {
	sent := m.Sent()
	if len(sent) == 0 {
		return SentMessage{}, false
	}
	return sent[len(sent)-1], true
}

// Reset clears recorded messages.
func (m *MockMessenger) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = nil
}

// MockExtractor is a document-extractor double with scripted results.
type MockExtractor struct {
	PassportResult map[string]string
	VehicleResult  map[string]string
	PassportErr    error
	VehicleErr     error
	PassportCalls  []string
	VehicleCalls   []string
}

// ExtractPassport returns the scripted passport result.
func (m *MockExtractor) ExtractPassport(ctx context.Context, imagePath string) (map[string]string, error) {
	m.PassportCalls = append(m.PassportCalls, imagePath)
	if m.PassportErr != nil {
		return nil, m.PassportErr
	}
	return m.PassportResult, nil
}

// ExtractVehicle returns the scripted vehicle result.
func (m *MockExtractor) ExtractVehicle(ctx context.Context, imagePath string) (map[string]string, error) {
	m.VehicleCalls = append(m.VehicleCalls, imagePath)
	if m.VehicleErr != nil {
		return nil, m.VehicleErr
	}
	return m.VehicleResult, nil
}

// GenAICall records the prompts of one completion request.
type GenAICall struct {
	System string
	User   string
}

// MockGenAI is a completion-client double with a scripted reply.
type MockGenAI struct {
	Reply string
	Err   error
	Calls []GenAICall
}

// GeneratePrompt returns the scripted reply.
func (m *MockGenAI) GeneratePrompt(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m.Calls = append(m.Calls, GenAICall{System: systemPrompt, User: userPrompt})
	if m.Err != nil {
		return "", m.Err
	}
	return m.Reply, nil
}
