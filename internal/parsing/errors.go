package parsing

import (
	"fmt"
	"strings"
)

// APICallError represents a failure talking to the parsing service
type APICallError struct {
	Message string
	Timeout bool
	Cause   error
}

func (e *APICallError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("API call failed: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("API call failed: %s", e.Message)
}

func (e *APICallError) Unwrap() error {
	return e.Cause
}

// ParseError represents a response body that is not a usable JSON object
type ParseError struct {
	Message string
	Cause   error
}

func (e *ParseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("parse error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("parse error: %s", e.Message)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// ResponseInvalidError is returned for a well-formed response that carries no CV signal
type ResponseInvalidError struct {
	Reasons []string
	Cause   error
}

func (e *ResponseInvalidError) Error() string {
	if len(e.Reasons) == 0 {
		return "parsed response contains no resume data"
	}
	return fmt.Sprintf("parsed response contains no resume data: %s", strings.Join(e.Reasons, "; "))
}

func (e *ResponseInvalidError) Unwrap() error {
	return e.Cause
}

// NormalizationError is returned when normalization yields an empty or malformed state
type NormalizationError struct {
	Message string
	Cause   error
}

func (e *NormalizationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("normalization failed: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("normalization failed: %s", e.Message)
}

func (e *NormalizationError) Unwrap() error {
	return e.Cause
}
