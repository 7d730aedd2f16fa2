package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/cv-ingest/internal/draft"
	"github.com/jonathan/cv-ingest/internal/pipeline"
)

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Error string        `json:"error"`
	Kind  pipeline.Kind `json:"kind,omitempty"`
	Phase string        `json:"phase,omitempty"`
}

var kindStatus = map[pipeline.Kind]int{
	pipeline.KindInvalidFileType:          http.StatusUnsupportedMediaType,
	pipeline.KindFileSizeExceeded:         http.StatusRequestEntityTooLarge,
	pipeline.KindBusy:                     http.StatusConflict,
	pipeline.KindNativeExtractionFailure:  http.StatusUnprocessableEntity,
	pipeline.KindInsufficientText:         http.StatusUnprocessableEntity,
	pipeline.KindParsingResponseInvalid:   http.StatusUnprocessableEntity,
	pipeline.KindNormalizationEmptyResult: http.StatusUnprocessableEntity,
	pipeline.KindParsingServiceError:      http.StatusBadGateway,
	pipeline.KindCanceled:                 http.StatusRequestTimeout,
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var verr *ErrValidation
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, draft.ErrNotFound):
		return http.StatusNotFound
	}
	if status, ok := kindStatus[pipeline.KindOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// newErrorResponse builds the body for err. Internal failures are not echoed.
func newErrorResponse(err error) ErrorResponse {
	var pe *pipeline.Error
	if errors.As(err, &pe) {
		resp := ErrorResponse{Kind: pe.Kind, Phase: string(pe.Phase), Error: pe.Message}
		if HTTPStatus(err) == http.StatusInternalServerError {
			resp.Error = "internal error"
		} else if pe.Cause != nil {
			resp.Error = fmt.Sprintf("%s: %v", pe.Message, pe.Cause)
		}
		return resp
	}
	if HTTPStatus(err) == http.StatusInternalServerError {
		return ErrorResponse{Error: "internal error"}
	}
	return ErrorResponse{Error: err.Error()}
}
