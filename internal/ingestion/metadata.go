package ingestion

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Metadata describes an uploaded document without holding its bytes.
// It is what gets recorded for a run once the upload has been dropped.
type Metadata struct {
	Filename  string `json:"filename,omitempty"`
	MediaType string `json:"media_type"`
	Size      int64  `json:"size"`
	PageCount int    `json:"page_count"`
	Timestamp string `json:"timestamp"` // RFC3339 format
	Hash      string `json:"hash"`      // SHA256 hex digest of the raw bytes
}

// NewMetadata captures the descriptive fields of doc
func NewMetadata(doc *UploadedDocument) *Metadata {
	return &Metadata{
		Filename:  doc.Filename,
		MediaType: doc.MediaType,
		Size:      doc.Size,
		PageCount: doc.PageCount,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Hash:      computeHash(doc.Data),
	}
}

func computeHash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
