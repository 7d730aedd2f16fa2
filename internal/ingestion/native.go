package ingestion

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Extractor produces text from an uploaded document
type Extractor interface {
	Extract(ctx context.Context, doc *UploadedDocument) (ExtractionResult, error)
}

// NativeExtractor reads the PDF's embedded text layer page by page
type NativeExtractor struct {
	logger *slog.Logger
}

// NewNativeExtractor creates a text-layer extractor. A nil logger uses slog.Default().
func NewNativeExtractor(logger *slog.Logger) *NativeExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &NativeExtractor{logger: logger}
}

// Extract returns the cleaned text layer. Malformed documents yield an empty
// result and a *NativeExtractionError; the caller decides whether to go on to OCR.
func (e *NativeExtractor) Extract(ctx context.Context, doc *UploadedDocument) (res ExtractionResult, err error) {
	// the pdf reader panics on some malformed xref tables
	defer func() {
		if r := recover(); r != nil {
			res = NewResult("", SourceNative, 0)
			err = &NativeExtractionError{Message: fmt.Sprintf("PDF reader panicked: %v", r)}
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(doc.Data), int64(len(doc.Data)))
	if err != nil {
		return NewResult("", SourceNative, 0), &NativeExtractionError{
			Message: "failed to open PDF",
			Cause:   err,
		}
	}

	numPages := reader.NumPage()
	pages := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return NewResult("", SourceNative, numPages), err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			e.logger.Warn("failed to read page text layer", "page", i, "error", err)
			continue
		}
		pages = append(pages, strings.TrimSpace(text))
	}

	text := CleanText(joinPages(pages))
	res = NewResult(text, SourceNative, numPages)
	e.logger.Debug("native extraction complete", "pages", numPages, "length", res.Length)
	return res, nil
}
