package genai

import (
	"os"
	"testing"
)

func TestNewClientRequiresAPIKey(t *testing.T) {
	old := os.Getenv("OPENAI_API_KEY")
	os.Unsetenv("OPENAI_API_KEY")
	defer os.Setenv("OPENAI_API_KEY", old)

	if _, err := NewClient(); err == nil {
		t.Errorf("expected error without API key, got nil")
	}
}

func TestNewClientWithOptions(t *testing.T) {
	c, err := NewClient(WithAPIKey("test-key"), WithModel("gpt-4o"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.model != "gpt-4o" {
		t.Errorf("expected model override, got %s", c.model)
	}
}

func TestNewClientDefaultsModel(t *testing.T) {
	c, err := NewClient(WithAPIKey("test-key"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.model == "" {
		t.Errorf("expected a default model to be set")
	}
}
