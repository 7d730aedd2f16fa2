package pipeline

import (
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/cv-ingest/internal/ingestion"
	"github.com/jonathan/cv-ingest/internal/parsing"
	"github.com/jonathan/cv-ingest/internal/types"
)

// State is a controller phase
type State string

// Controller states, in pipeline order
const (
	StateIdle               State = "idle"
	StateValidating         State = "validating"
	StateNativeExtracting   State = "native_extracting"
	StateOCRExtracting      State = "ocr_extracting"
	StateParsing            State = "parsing"
	StateValidatingResponse State = "validating_response"
	StateNormalizing        State = "normalizing"
	StatePersisting         State = "persisting"
	StateDone               State = "done"
	StateError              State = "error"
)

// ProgressEvent represents a progress update during an ingestion run
type ProgressEvent struct {
	Step    string `json:"step"`
	State   State  `json:"state"`
	Message string `json:"message"`
	RunID   string `json:"run_id,omitempty"`
	Kind    Kind   `json:"kind,omitempty"`
	Content any    `json:"content,omitempty"`
}

// ProgressCallback is called when pipeline progress occurs
type ProgressCallback func(event ProgressEvent)

// Request is one ingestion invocation
type Request struct {
	Owner      uuid.UUID
	Document   *ingestion.UploadedDocument
	OnProgress ProgressCallback
}

// Result is returned by a successful run
type Result struct {
	RunID         uuid.UUID        `json:"run_id"`
	Draft         *types.CVState   `json:"draft"`
	Source        ingestion.Source `json:"source"`
	Length        int              `json:"length"`
	LowConfidence bool             `json:"low_confidence"`
	Warnings      []string         `json:"warnings,omitempty"`
	DurationsMs   map[State]int64  `json:"durations_ms"`
}

// PipelineContext carries the transient data of one run between phases.
// It is created per run and never shared.
type PipelineContext struct {
	RunID    uuid.UUID
	Owner    uuid.UUID
	Document *ingestion.UploadedDocument
	Metadata *ingestion.Metadata

	Native    ingestion.ExtractionResult
	NativeErr error
	NeedsOCR  bool
	OCR       ingestion.ExtractionResult
	OCRErr    error

	// Extraction is the text handed to the parser
	Extraction ingestion.ExtractionResult
	Payload    parsing.Payload
	Draft      *types.CVState

	Warnings  []string
	Durations map[State]int64

	onProgress ProgressCallback
}

func newPipelineContext(req Request) *PipelineContext {
	return &PipelineContext{
		RunID:      uuid.New(),
		Owner:      req.Owner,
		Document:   req.Document,
		Durations:  make(map[State]int64),
		onProgress: req.OnProgress,
	}
}

// emit calls the progress callback if configured
func (pc *PipelineContext) emit(event ProgressEvent) {
	if pc.onProgress == nil {
		return
	}
	event.RunID = pc.RunID.String()
	if event.Step == "" {
		event.Step = string(event.State)
	}
	pc.onProgress(event)
}

func (pc *PipelineContext) warn(msg string) {
	pc.Warnings = append(pc.Warnings, msg)
}

func (pc *PipelineContext) timed(state State, start time.Time) {
	pc.Durations[state] = time.Since(start).Milliseconds()
}

func (pc *PipelineContext) result() *Result {
	warnings := append(append([]string{}, pc.Warnings...), pc.Extraction.Warnings...)
	return &Result{
		RunID:         pc.RunID,
		Draft:         pc.Draft,
		Source:        pc.Extraction.Source,
		Length:        pc.Extraction.Length,
		LowConfidence: pc.Extraction.LowConfidence,
		Warnings:      warnings,
		DurationsMs:   pc.Durations,
	}
}
