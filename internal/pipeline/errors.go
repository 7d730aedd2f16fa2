package pipeline

import (
	"errors"
	"fmt"

	"github.com/jonathan/cv-ingest/internal/ingestion"
	"github.com/jonathan/cv-ingest/internal/parsing"
)

// Kind tags every pipeline failure
type Kind string

// Error kinds
const (
	KindUnknown                  Kind = ""
	KindInvalidFileType          Kind = "InvalidFileType"
	KindFileSizeExceeded         Kind = "FileSizeExceeded"
	KindNativeExtractionFailure  Kind = "NativeExtractionFailure"
	KindOCRTimeout               Kind = "OCRTimeout"
	KindOCREngineFailure         Kind = "OCREngineFailure"
	KindInsufficientText         Kind = "InsufficientTextError"
	KindParsingServiceError      Kind = "ParsingServiceError"
	KindParsingResponseInvalid   Kind = "ParsingResponseInvalid"
	KindNormalizationEmptyResult Kind = "NormalizationEmptyResult"
	KindDraftWriteFailure        Kind = "DraftWriteFailure"
	KindBusy                     Kind = "Busy"
	KindCanceled                 Kind = "Canceled"
)

// ErrIngestionInProgress is the cause of a Busy error
var ErrIngestionInProgress = errors.New("an ingestion is already in progress")

// Error is the single error type returned by Controller.Ingest
type Error struct {
	Kind    Kind
	Phase   State
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Kind, e.Phase, msg, e.Cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Kind, e.Phase, msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// KindOf returns the kind of a pipeline error, or KindUnknown
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return KindUnknown
}

// classify maps component errors onto the taxonomy
func classify(err error) Kind {
	var (
		invalidType  *ingestion.InvalidFileTypeError
		tooLarge     *ingestion.FileSizeExceededError
		nativeErr    *ingestion.NativeExtractionError
		ocrTimeout   *ingestion.OCRTimeoutError
		ocrEngine    *ingestion.OCREngineError
		insufficient *ingestion.InsufficientTextError
		apiErr       *parsing.APICallError
		parseErr     *parsing.ParseError
		invalid      *parsing.ResponseInvalidError
		normErr      *parsing.NormalizationError
	)

	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrIngestionInProgress):
		return KindBusy
	case errors.As(err, &invalidType):
		return KindInvalidFileType
	case errors.As(err, &tooLarge):
		return KindFileSizeExceeded
	case errors.As(err, &insufficient):
		return KindInsufficientText
	case errors.As(err, &ocrTimeout):
		return KindOCRTimeout
	case errors.As(err, &ocrEngine):
		return KindOCREngineFailure
	case errors.As(err, &nativeErr):
		return KindNativeExtractionFailure
	case errors.As(err, &apiErr), errors.As(err, &parseErr):
		return KindParsingServiceError
	case errors.As(err, &invalid):
		return KindParsingResponseInvalid
	case errors.As(err, &normErr):
		return KindNormalizationEmptyResult
	}
	return KindUnknown
}
