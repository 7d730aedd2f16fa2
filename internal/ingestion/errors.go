package ingestion

import (
	"fmt"
	"time"
)

// InvalidFileTypeError is returned when an upload is not a PDF
type InvalidFileTypeError struct {
	MediaType string
	Reason    string
}

func (e *InvalidFileTypeError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("invalid file type %q: %s", e.MediaType, e.Reason)
	}
	return fmt.Sprintf("invalid file type %q: only application/pdf is accepted", e.MediaType)
}

// FileSizeExceededError is returned when an upload is larger than the limit
type FileSizeExceededError struct {
	Size  int64
	Limit int64
}

func (e *FileSizeExceededError) Error() string {
	return fmt.Sprintf("file size %d bytes exceeds limit of %d bytes", e.Size, e.Limit)
}

// NativeExtractionError represents a failure reading the embedded text layer
type NativeExtractionError struct {
	Message string
	Cause   error
}

func (e *NativeExtractionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("native extraction failed: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("native extraction failed: %s", e.Message)
}

func (e *NativeExtractionError) Unwrap() error {
	return e.Cause
}

// OCRTimeoutError is returned when a page does not finish OCR within the page timeout
type OCRTimeoutError struct {
	Page    int
	Timeout time.Duration
}

func (e *OCRTimeoutError) Error() string {
	return fmt.Sprintf("OCR timed out on page %d after %s", e.Page, e.Timeout)
}

// OCREngineError represents a failure of the rasterizer or the OCR engine
type OCREngineError struct {
	Page    int
	Message string
	Cause   error
}

func (e *OCREngineError) Error() string {
	prefix := "OCR engine failed"
	if e.Page > 0 {
		prefix = fmt.Sprintf("OCR engine failed on page %d", e.Page)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

func (e *OCREngineError) Unwrap() error {
	return e.Cause
}

// InsufficientTextError is returned when neither the text layer nor OCR produced usable text.
// Cause carries the OCR failure when there was one.
type InsufficientTextError struct {
	NativeLength int
	OCRLength    int
	Cause        error
}

func (e *InsufficientTextError) Error() string {
	msg := fmt.Sprintf("insufficient text extracted (native=%d, ocr=%d)", e.NativeLength, e.OCRLength)
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *InsufficientTextError) Unwrap() error {
	return e.Cause
}
