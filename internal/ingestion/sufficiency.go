package ingestion

// Source identifies where the extracted text came from
type Source string

// Text sources
const (
	SourceNone     Source = ""
	SourceNative   Source = "native"
	SourceOCR      Source = "ocr"
	SourceCombined Source = "combined"
)

// Thresholds, in non-whitespace characters
const (
	// SufficientThreshold: native text strictly longer than this skips OCR
	SufficientThreshold = 500
	// MinimumThreshold: native text at least this long is used as-is, flagged low confidence
	MinimumThreshold = 200
	// OCRSufficientThreshold: OCR text at least this long replaces native text entirely
	OCRSufficientThreshold = 300
)

// pageSeparator joins page texts and the native/OCR halves of a combined result
const pageSeparator = "\n\n"

// Sufficiency is the outcome of classifying native text length
type Sufficiency int

// Sufficiency levels
const (
	NeedsOCR Sufficiency = iota
	LowConfidence
	Sufficient
)

func (s Sufficiency) String() string {
	switch s {
	case Sufficient:
		return "sufficient"
	case LowConfidence:
		return "low_confidence"
	default:
		return "needs_ocr"
	}
}

// ExtractionResult is the text produced by one extraction phase (or the merge of two)
type ExtractionResult struct {
	Text          string   `json:"text"`
	Source        Source   `json:"source"`
	Length        int      `json:"length"`
	Pages         int      `json:"pages"`
	LowConfidence bool     `json:"low_confidence"`
	Warnings      []string `json:"warnings,omitempty"`
}

// NewResult builds a result and measures its length
func NewResult(text string, source Source, pages int) ExtractionResult {
	return ExtractionResult{
		Text:   text,
		Source: source,
		Length: TextLength(text),
		Pages:  pages,
	}
}

// Classify decides what to do with native text of length n
func Classify(n int) Sufficiency {
	switch {
	case n > SufficientThreshold:
		return Sufficient
	case n >= MinimumThreshold:
		return LowConfidence
	default:
		return NeedsOCR
	}
}

// ResolveAfterOCR picks the final text once OCR has run. A failed OCR phase
// should be passed as a zero-length result together with its error in ocrErr,
// which becomes the cause of InsufficientTextError if nothing is usable.
func ResolveAfterOCR(native, ocr ExtractionResult, ocrErr error) (ExtractionResult, error) {
	n, o := native.Length, ocr.Length
	warnings := append(append([]string{}, native.Warnings...), ocr.Warnings...)

	switch {
	case o >= OCRSufficientThreshold:
		res := NewResult(ocr.Text, SourceOCR, ocr.Pages)
		res.Warnings = warnings
		return res, nil

	case o > 0 && n > 0:
		// native first, then OCR
		res := NewResult(native.Text+pageSeparator+ocr.Text, SourceCombined, max(native.Pages, ocr.Pages))
		res.LowConfidence = true
		res.Warnings = warnings
		return res, nil

	case o > 0:
		res := NewResult(ocr.Text, SourceOCR, ocr.Pages)
		res.LowConfidence = true
		res.Warnings = warnings
		return res, nil

	case n > 0:
		res := NewResult(native.Text, SourceNative, native.Pages)
		res.LowConfidence = true
		res.Warnings = append(warnings, "OCR produced no text; using the embedded text layer")
		return res, nil
	}

	return ExtractionResult{Warnings: warnings}, &InsufficientTextError{
		NativeLength: n,
		OCRLength:    o,
		Cause:        ocrErr,
	}
}
