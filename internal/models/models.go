// Package models defines shared data types for PolicyPipe.
package models

import "time"

// EventKind classifies an inbound transport event.
type EventKind string

// Event kinds delivered by the messaging transport.
const (
	EventText    EventKind = "text"
	EventPhoto   EventKind = "photo"
	EventCommand EventKind = "command"
)

// Event is a single inbound message from a user, normalized by the transport.
type Event struct {
	ChatID    int64     `json:"chat_id"`
	Kind      EventKind `json:"kind"`
	Text      string    `json:"text,omitempty"`       // message text, or command name without the slash
	PhotoPath string    `json:"photo_path,omitempty"` // local path of the downloaded photo
	Time      int64     `json:"time"`
}

// UnknownValue is the sentinel substituted for any document field the
// extraction service could not resolve.
const UnknownValue = "Unknown"

// Canonical keys of the extracted document fields accumulated in a session.
const (
	FieldFullName       = "full_name"
	FieldPassportNumber = "passport_number"
	FieldCarBrand       = "car_brand"
	FieldCarModel       = "car_model"
	FieldVinNumber      = "vin_number"
)

// ExtractedFieldKeys lists every field a complete session carries before
// policy issuance, in document order.
var ExtractedFieldKeys = []string{
	FieldFullName,
	FieldPassportNumber,
	FieldCarBrand,
	FieldCarModel,
	FieldVinNumber,
}

// Session is the per-user accumulated state of one conversation attempt.
// It is created on the first passport photo and mutated in place; restarting
// the flow overwrites it rather than allocating a fresh entry.
type Session struct {
	ChatID            int64             `json:"chat_id"`
	PassportImagePath string            `json:"passport_image_path,omitempty"`
	CarDocImagePath   string            `json:"car_doc_image_path,omitempty"`
	Extracted         map[string]string `json:"extracted,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// Field returns the extracted value for key, or UnknownValue when the key is
// absent or empty.
func (s *Session) Field(key string) string {
	if s == nil || s.Extracted == nil {
		return UnknownValue
	}
	if v, ok := s.Extracted[key]; ok && v != "" {
		return v
	}
	return UnknownValue
}
