package db

import (
	"time"

	"github.com/google/uuid"
)

// Ingestion run statuses
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// IngestionRun is the audit record of one ingestion attempt. The document
// itself is never stored, only its hash.
type IngestionRun struct {
	ID            uuid.UUID  `json:"id"`
	UserID        uuid.UUID  `json:"user_id"`
	Filename      string     `json:"filename"`
	FileHash      string     `json:"file_hash"`
	FileSize      int64      `json:"file_size"`
	PageCount     int        `json:"page_count"`
	Status        string     `json:"status"`
	Source        string     `json:"source,omitempty"`
	NativeLength  int        `json:"native_length"`
	OCRLength     int        `json:"ocr_length"`
	LowConfidence bool       `json:"low_confidence"`
	ErrorKind     string     `json:"error_kind,omitempty"`
	ErrorMessage  string     `json:"error_message,omitempty"`
	Warnings      []string   `json:"warnings,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// nonNil keeps text[] columns from being written as NULL
func nonNil(a []string) []string {
	if a == nil {
		return []string{}
	}
	return a
}

// nullIfEmpty returns nil if the string is empty, otherwise a pointer to the string
func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
