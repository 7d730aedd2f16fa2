package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonathan/cv-ingest/internal/ingestion"
	"github.com/jonathan/cv-ingest/internal/parsing"
)

var errOCRDisabled = errors.New("OCR fallback is not configured")

func (c *Controller) validateDocument(_ context.Context, pc *PipelineContext) error {
	doc := pc.Document
	if doc == nil {
		return &Error{Kind: KindInvalidFileType, Message: "no document supplied"}
	}

	if err := doc.Validate(c.maxUploadBytes); err != nil {
		return &Error{Kind: classify(err), Message: err.Error(), Cause: err}
	}

	if err := doc.DetectPageCount(); err != nil {
		// the extractors may still cope with it
		c.logger.Debug("page count unavailable", "run_id", pc.RunID, "error", err)
	}
	pc.Metadata = ingestion.NewMetadata(doc)

	pc.emit(ProgressEvent{State: StateValidating, Step: "document_accepted",
		Message: fmt.Sprintf("Accepted %s (%d bytes, %d pages)", doc.Filename, doc.Size, doc.PageCount),
		Content: pc.Metadata})
	return nil
}

func (c *Controller) extractNative(ctx context.Context, pc *PipelineContext) error {
	res, err := c.native.Extract(ctx, pc.Document)
	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		// an unreadable text layer is not fatal; OCR gets its chance
		pc.NativeErr = err
		pc.warn(fmt.Sprintf("embedded text layer unreadable: %v", err))
		res = ingestion.NewResult("", ingestion.SourceNative, res.Pages)
	}
	if pc.Document.PageCount == 0 && res.Pages > 0 {
		pc.Document.PageCount = res.Pages
	}
	pc.Native = res

	sufficiency := ingestion.Classify(res.Length)
	switch sufficiency {
	case ingestion.Sufficient:
		pc.Extraction = res
	case ingestion.LowConfidence:
		res.LowConfidence = true
		pc.Extraction = res
	default:
		pc.NeedsOCR = true
	}

	pc.emit(ProgressEvent{State: StateNativeExtracting, Step: "native_classified",
		Message: fmt.Sprintf("Embedded text: %d characters (%s)", res.Length, sufficiency),
		Content: map[string]any{"length": res.Length, "pages": res.Pages, "sufficiency": sufficiency.String()}})
	return nil
}

func (c *Controller) extractOCR(ctx context.Context, pc *PipelineContext) error {
	var (
		res ingestion.ExtractionResult
		err error
	)
	if c.ocr == nil {
		err = errOCRDisabled
	} else {
		res, err = c.ocr.Extract(ctx, pc.Document)
	}

	if err != nil {
		if ctx.Err() != nil {
			return err
		}
		// OCR failure ends the phase with no text; the resolver decides what survives
		kind := classify(err)
		pc.warn(fmt.Sprintf("OCR failed: %v", err))
		pc.emit(ProgressEvent{State: StateOCRExtracting, Step: "ocr_failed", Kind: kind, Message: err.Error()})
		res = ingestion.NewResult("", ingestion.SourceOCR, 0)
	}
	pc.OCR = res
	pc.OCRErr = err

	final, rerr := ingestion.ResolveAfterOCR(pc.Native, res, err)
	if rerr != nil {
		if c.ocr == nil && pc.NativeErr != nil {
			return &Error{Kind: KindNativeExtractionFailure, Message: "no text layer and OCR is disabled", Cause: pc.NativeErr}
		}
		return &Error{Kind: KindInsufficientText, Message: "not enough text to parse", Cause: rerr}
	}
	pc.Extraction = final

	pc.emit(ProgressEvent{State: StateOCRExtracting, Step: "ocr_resolved",
		Message: fmt.Sprintf("Using %s text: %d characters", final.Source, final.Length),
		Content: map[string]any{"ocr_length": res.Length, "source": final.Source, "length": final.Length}})
	return nil
}

func (c *Controller) parse(ctx context.Context, pc *PipelineContext) error {
	ext := pc.Extraction
	if ext.Length == 0 {
		return &Error{Kind: KindInsufficientText, Message: "no text to parse",
			Cause: &ingestion.InsufficientTextError{NativeLength: pc.Native.Length, OCRLength: pc.OCR.Length}}
	}

	payload, err := c.parser.Parse(ctx, parsing.Input{
		Text:          ext.Text,
		Source:        string(ext.Source),
		Length:        ext.Length,
		LowConfidence: ext.LowConfidence,
	})
	if err != nil {
		return &Error{Kind: KindParsingServiceError, Message: "structured parsing failed", Cause: err}
	}
	pc.Payload = payload
	return nil
}

func (c *Controller) validateResponse(_ context.Context, pc *PipelineContext) error {
	if err := parsing.ValidateResponse(pc.Payload); err != nil {
		return &Error{Kind: KindParsingResponseInvalid, Message: "parsed response has no usable resume data", Cause: err}
	}
	return nil
}

func (c *Controller) normalize(_ context.Context, pc *PipelineContext) error {
	state := parsing.Normalize(pc.Payload)
	if err := parsing.CheckNormalized(state); err != nil {
		return &Error{Kind: KindNormalizationEmptyResult, Message: "normalization produced no draft", Cause: err}
	}
	pc.Draft = state

	pc.emit(ProgressEvent{State: StateNormalizing, Step: "normalized",
		Message: fmt.Sprintf("Normalized %d experiences, %d education entries, %d skills, %d languages",
			len(state.Experiences), len(state.Education), len(state.Skills), len(state.Languages))})
	return nil
}

func (c *Controller) persist(ctx context.Context, pc *PipelineContext) error {
	if err := c.writer.ReplaceDraft(ctx, pc.Owner, pc.Draft); err != nil {
		return &Error{Kind: KindDraftWriteFailure, Message: "failed to replace draft", Cause: err}
	}
	return nil
}
