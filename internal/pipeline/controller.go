// Package pipeline orchestrates CV ingestion: upload validation, text
// extraction with OCR fallback, structured parsing, normalization and the
// destructive draft replace.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/jonathan/cv-ingest/internal/db"
	"github.com/jonathan/cv-ingest/internal/draft"
	"github.com/jonathan/cv-ingest/internal/ingestion"
	"github.com/jonathan/cv-ingest/internal/parsing"
)

// RunRecorder stores an audit record per run. Implemented by *db.DB.
type RunRecorder interface {
	CreateRun(ctx context.Context, run *db.IngestionRun) error
	CompleteRun(ctx context.Context, run *db.IngestionRun) error
}

// Options wires a Controller
type Options struct {
	Native ingestion.Extractor
	// OCR may be nil, which disables the OCR fallback
	OCR            ingestion.Extractor
	Parser         parsing.Parser
	Writer         *draft.Writer
	Recorder       RunRecorder
	MaxUploadBytes int64
	Logger         *slog.Logger
}

// Controller runs one ingestion at a time
type Controller struct {
	native         ingestion.Extractor
	ocr            ingestion.Extractor
	parser         parsing.Parser
	writer         *draft.Writer
	recorder       RunRecorder
	maxUploadBytes int64
	logger         *slog.Logger

	sem   *semaphore.Weighted
	mu    sync.RWMutex
	state State
}

// New creates a Controller
func New(opts Options) (*Controller, error) {
	if opts.Native == nil {
		return nil, fmt.Errorf("native extractor is required")
	}
	if opts.Parser == nil {
		return nil, fmt.Errorf("parser is required")
	}
	if opts.Writer == nil {
		return nil, fmt.Errorf("draft writer is required")
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = ingestion.MaxUploadBytes
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Controller{
		native:         opts.Native,
		ocr:            opts.OCR,
		parser:         opts.Parser,
		writer:         opts.Writer,
		recorder:       opts.Recorder,
		maxUploadBytes: opts.MaxUploadBytes,
		logger:         opts.Logger,
		sem:            semaphore.NewWeighted(1),
		state:          StateIdle,
	}, nil
}

// State returns the phase of the active run, or StateIdle
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Busy reports whether a run is in flight
func (c *Controller) Busy() bool {
	return c.State() != StateIdle
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// finish frees the run slot and reports Idle in one step, so State never
// reads Idle while the slot is held and a run that starts right after
// cannot have its state overwritten.
func (c *Controller) finish() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateIdle
	c.sem.Release(1)
}

type phase struct {
	state State
	skip  func(pc *PipelineContext) bool
	run   func(ctx context.Context, pc *PipelineContext) error
}

func (c *Controller) phases() []phase {
	return []phase{
		{state: StateValidating, run: c.validateDocument},
		{state: StateNativeExtracting, run: c.extractNative},
		{state: StateOCRExtracting, run: c.extractOCR, skip: func(pc *PipelineContext) bool { return !pc.NeedsOCR }},
		{state: StateParsing, run: c.parse},
		{state: StateValidatingResponse, run: c.validateResponse},
		{state: StateNormalizing, run: c.normalize},
		{state: StatePersisting, run: c.persist},
	}
}

// Ingest runs the whole pipeline for one document. On success the owner's
// draft has been replaced; on failure it is untouched. A call made while
// another run is active fails immediately with kind Busy.
func (c *Controller) Ingest(ctx context.Context, req Request) (*Result, error) {
	if !c.sem.TryAcquire(1) {
		return nil, &Error{Kind: KindBusy, Phase: c.State(), Message: "retry once the current run finishes", Cause: ErrIngestionInProgress}
	}
	defer c.finish()

	pc := newPipelineContext(req)
	logger := c.logger.With("run_id", pc.RunID, "owner", pc.Owner)
	start := time.Now()
	logger.Info("ingestion started")

	run := c.recordStart(ctx, pc, logger)

	err := c.run(ctx, pc, logger)
	c.recordFinish(ctx, pc, run, err, logger)

	if err != nil {
		c.setState(StateError)
		pe := &Error{}
		errors.As(err, &pe)
		logger.Warn("ingestion failed", "kind", pe.Kind, "phase", pe.Phase, "error", err,
			"duration_ms", time.Since(start).Milliseconds())
		pc.emit(ProgressEvent{State: StateError, Kind: pe.Kind, Message: err.Error()})
		return nil, err
	}

	c.setState(StateDone)
	result := pc.result()
	logger.Info("ingestion complete",
		"source", result.Source,
		"length", result.Length,
		"low_confidence", result.LowConfidence,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	pc.emit(ProgressEvent{State: StateDone, Message: "Draft replaced", Content: result})
	return result, nil
}

func (c *Controller) run(ctx context.Context, pc *PipelineContext, logger *slog.Logger) error {
	for _, p := range c.phases() {
		if err := ctx.Err(); err != nil {
			return &Error{Kind: KindCanceled, Phase: p.state, Message: "ingestion canceled", Cause: err}
		}
		if p.skip != nil && p.skip(pc) {
			continue
		}

		c.setState(p.state)
		pc.emit(ProgressEvent{State: p.state, Message: phaseMessages[p.state]})
		logger.Debug("phase started", "phase", p.state)

		start := time.Now()
		err := p.run(ctx, pc)
		pc.timed(p.state, start)
		if err == nil {
			continue
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return &Error{Kind: KindCanceled, Phase: p.state, Message: "ingestion canceled", Cause: ctxErr}
		}
		var pe *Error
		if errors.As(err, &pe) {
			if pe.Phase == "" {
				pe.Phase = p.state
			}
			return pe
		}
		return &Error{Kind: classify(err), Phase: p.state, Message: err.Error(), Cause: err}
	}
	return nil
}

var phaseMessages = map[State]string{
	StateValidating:         "Validating upload",
	StateNativeExtracting:   "Reading embedded text layer",
	StateOCRExtracting:      "Running OCR on page images",
	StateParsing:            "Parsing resume with the structured parsing service",
	StateValidatingResponse: "Checking parsed response",
	StateNormalizing:        "Normalizing parsed data",
	StatePersisting:         "Replacing draft",
}

func (c *Controller) recordStart(ctx context.Context, pc *PipelineContext, logger *slog.Logger) *db.IngestionRun {
	if c.recorder == nil || pc.Document == nil {
		return nil
	}

	// hash and page count are filled in once the upload has been validated
	run := &db.IngestionRun{
		ID:       pc.RunID,
		UserID:   pc.Owner,
		Filename: pc.Document.Filename,
		FileSize: pc.Document.Size,
		Status:   db.RunStatusRunning,
	}
	if err := c.recorder.CreateRun(ctx, run); err != nil {
		logger.Warn("failed to record run start", "error", err)
		return nil
	}
	return run
}

func (c *Controller) recordFinish(ctx context.Context, pc *PipelineContext, run *db.IngestionRun, runErr error, logger *slog.Logger) {
	if run == nil {
		return
	}

	run.Status = db.RunStatusCompleted
	run.Source = string(pc.Extraction.Source)
	run.NativeLength = pc.Native.Length
	run.OCRLength = pc.OCR.Length
	run.LowConfidence = pc.Extraction.LowConfidence
	run.Warnings = append(append([]string{}, pc.Warnings...), pc.Extraction.Warnings...)
	if pc.Metadata != nil {
		run.FileHash = pc.Metadata.Hash
		run.FileSize = pc.Metadata.Size
	}
	if pc.Document != nil {
		run.PageCount = pc.Document.PageCount
	}
	if runErr != nil {
		run.Status = db.RunStatusFailed
		run.ErrorKind = string(KindOf(runErr))
		run.ErrorMessage = runErr.Error()
	}

	// a canceled run is still recorded
	if err := c.recorder.CompleteRun(context.WithoutCancel(ctx), run); err != nil {
		logger.Warn("failed to record run outcome", "error", err)
	}
}
