package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// PagePolicy controls what a page-level OCR failure does to the whole phase
type PagePolicy string

// Page policies
const (
	// PagePolicyFailFast aborts the OCR phase on the first page failure
	PagePolicyFailFast PagePolicy = "fail-fast"
	// PagePolicySkipPage records a warning and continues with the next page
	PagePolicySkipPage PagePolicy = "skip-page"
)

// Valid reports whether p is a known policy
func (p PagePolicy) Valid() bool {
	return p == PagePolicyFailFast || p == PagePolicySkipPage
}

// baseDPI is the PDF user-space resolution; the upscale factor multiplies it
const baseDPI = 72

// OCRConfig configures the rasterizer and the OCR engine
type OCRConfig struct {
	Pdftoppm      string // binary name or absolute path; if empty -> "pdftoppm"
	Tesseract     string // binary name or absolute path; if empty -> "tesseract"
	Language      string // default "eng"
	PSM           int    // tesseract page segmentation mode; 0 = engine default
	TessdataDir   string
	UpscaleFactor float64       // rasterization scale over 72 DPI, default 2.0
	PageTimeout   time.Duration // per-page bound, default 30s
	PagePolicy    PagePolicy
	TempDir       string // parent for scratch directories; empty = os.TempDir()
}

// DefaultOCRConfig returns the default OCR settings
func DefaultOCRConfig() OCRConfig {
	return OCRConfig{
		Pdftoppm:      "pdftoppm",
		Tesseract:     "tesseract",
		Language:      "eng",
		UpscaleFactor: 2.0,
		PageTimeout:   30 * time.Second,
		PagePolicy:    PagePolicyFailFast,
	}
}

func (c OCRConfig) withDefaults() OCRConfig {
	d := DefaultOCRConfig()
	if c.Pdftoppm == "" {
		c.Pdftoppm = d.Pdftoppm
	}
	if c.Tesseract == "" {
		c.Tesseract = d.Tesseract
	}
	if c.Language == "" {
		c.Language = d.Language
	}
	if c.UpscaleFactor <= 0 {
		c.UpscaleFactor = d.UpscaleFactor
	}
	if c.PageTimeout <= 0 {
		c.PageTimeout = d.PageTimeout
	}
	if !c.PagePolicy.Valid() {
		c.PagePolicy = d.PagePolicy
	}
	return c
}

// OCRExtractor renders pages to images and runs them through tesseract,
// strictly one page at a time and in page order.
type OCRExtractor struct {
	cfg    OCRConfig
	runner Runner
	logger *slog.Logger
}

// NewOCRExtractor creates an OCR extractor. A nil runner uses ExecRunner.
func NewOCRExtractor(cfg OCRConfig, runner Runner, logger *slog.Logger) *OCRExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = ExecRunner{Logger: logger}
	}
	return &OCRExtractor{cfg: cfg.withDefaults(), runner: runner, logger: logger}
}

// Config returns the effective configuration
func (e *OCRExtractor) Config() OCRConfig {
	return e.cfg
}

// Extract OCRs every page of doc. Under the fail-fast policy the first page
// timeout or engine failure aborts the phase and nothing is returned.
func (e *OCRExtractor) Extract(ctx context.Context, doc *UploadedDocument) (ExtractionResult, error) {
	workDir, err := os.MkdirTemp(e.cfg.TempDir, "cv-ocr-*")
	if err != nil {
		return NewResult("", SourceOCR, 0), &OCREngineError{Message: "failed to create scratch directory", Cause: err}
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			e.logger.Warn("failed to remove OCR scratch directory", "dir", workDir, "error", err)
		}
	}()

	pdfPath := filepath.Join(workDir, "input.pdf")
	if err := os.WriteFile(pdfPath, doc.Data, 0600); err != nil {
		return NewResult("", SourceOCR, 0), &OCREngineError{Message: "failed to stage document", Cause: err}
	}

	if doc.PageCount > 0 {
		return e.extractByPage(ctx, pdfPath, workDir, doc.PageCount)
	}
	return e.extractAllPages(ctx, pdfPath, workDir)
}

// extractByPage rasterizes and recognizes one page at a time, each under the page timeout.
func (e *OCRExtractor) extractByPage(ctx context.Context, pdfPath, workDir string, pageCount int) (ExtractionResult, error) {
	pages := make([]string, 0, pageCount)
	var warnings []string

	for page := 1; page <= pageCount; page++ {
		text, err := e.runPage(ctx, page, func(pageCtx context.Context) (string, error) {
			image, err := e.rasterizePage(pageCtx, pdfPath, workDir, page)
			if err != nil {
				return "", err
			}
			return e.recognize(pageCtx, page, image)
		})
		if err != nil {
			skip, werr := e.handlePageError(ctx, page, err)
			if !skip {
				return NewResult("", SourceOCR, pageCount), werr
			}
			warnings = append(warnings, werr.Error())
			continue
		}
		pages = append(pages, text)
	}

	res := NewResult(joinPages(pages), SourceOCR, pageCount)
	res.Warnings = warnings
	e.logger.Info("OCR extraction complete", "pages", pageCount, "length", res.Length, "skipped", len(warnings))
	return res, nil
}

// extractAllPages is used when the page count is unknown: the whole document is
// rasterized up front and each image is recognized under the page timeout.
func (e *OCRExtractor) extractAllPages(ctx context.Context, pdfPath, workDir string) (ExtractionResult, error) {
	prefix := filepath.Join(workDir, "page")
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-r", e.dpi(), "-png", pdfPath, prefix)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return NewResult("", SourceOCR, 0), ctxErr
		}
		return NewResult("", SourceOCR, 0), &OCREngineError{Message: strings.TrimSpace(string(errb)), Cause: err}
	}

	images, _ := filepath.Glob(prefix + "-*.png")
	sortByPageNumber(images)
	if len(images) == 0 {
		return NewResult("", SourceOCR, 0), &OCREngineError{Message: "rasterizer produced no images"}
	}

	pages := make([]string, 0, len(images))
	var warnings []string
	for i, image := range images {
		page := i + 1
		text, err := e.runPage(ctx, page, func(pageCtx context.Context) (string, error) {
			return e.recognize(pageCtx, page, image)
		})
		if err != nil {
			skip, werr := e.handlePageError(ctx, page, err)
			if !skip {
				return NewResult("", SourceOCR, len(images)), werr
			}
			warnings = append(warnings, werr.Error())
			continue
		}
		pages = append(pages, text)
	}

	res := NewResult(joinPages(pages), SourceOCR, len(images))
	res.Warnings = warnings
	return res, nil
}

// runPage races work against the page timeout. Whichever finishes first wins;
// the page context is cancelled on return so a losing OCR process is killed.
func (e *OCRExtractor) runPage(ctx context.Context, page int, work func(context.Context) (string, error)) (string, error) {
	pageCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		text string
		err  error
	}
	done := make(chan outcome, 1)
	go func() {
		text, err := work(pageCtx)
		done <- outcome{text: text, err: err}
	}()

	timer := time.NewTimer(e.cfg.PageTimeout)
	defer timer.Stop()

	select {
	case o := <-done:
		return o.text, o.err
	case <-timer.C:
		return "", &OCRTimeoutError{Page: page, Timeout: e.cfg.PageTimeout}
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// handlePageError reports whether the failed page may be skipped, and the error to record or return.
func (e *OCRExtractor) handlePageError(ctx context.Context, page int, err error) (bool, error) {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return false, ctxErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false, err
	}

	e.logger.Warn("OCR page failed", "page", page, "policy", e.cfg.PagePolicy, "error", err)
	if e.cfg.PagePolicy == PagePolicySkipPage {
		return true, err
	}
	return false, err
}

func (e *OCRExtractor) rasterizePage(ctx context.Context, pdfPath, workDir string, page int) (string, error) {
	prefix := filepath.Join(workDir, fmt.Sprintf("page-%04d", page))
	n := strconv.Itoa(page)
	// pdftoppm -f N -l N -r DPI -png -singlefile <in.pdf> <prefix>  ->  <prefix>.png
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, "-f", n, "-l", n, "-r", e.dpi(), "-png", "-singlefile", pdfPath, prefix)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", &OCREngineError{Page: page, Message: "rasterization failed: " + strings.TrimSpace(string(errb)), Cause: err}
	}
	return prefix + ".png", nil
}

func (e *OCRExtractor) recognize(ctx context.Context, page int, image string) (string, error) {
	args := []string{image, "stdout", "-l", e.cfg.Language}
	if e.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(e.cfg.PSM))
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}

	// tesseract <image> stdout -l <lang>
	out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, args...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", &OCREngineError{Page: page, Message: "recognition failed: " + strings.TrimSpace(string(errb)), Cause: err}
	}
	return NormalizeOCR(string(out)), nil
}

func (e *OCRExtractor) dpi() string {
	return strconv.Itoa(int(float64(baseDPI) * e.cfg.UpscaleFactor))
}

// sortByPageNumber orders pdftoppm outputs (prefix-1.png, prefix-2.png, ... prefix-10.png)
// numerically; pdftoppm pads the number only when the document has 10+ pages.
func sortByPageNumber(images []string) {
	num := func(path string) int {
		base := strings.TrimSuffix(filepath.Base(path), ".png")
		idx := strings.LastIndex(base, "-")
		n, err := strconv.Atoi(base[idx+1:])
		if err != nil {
			return 0
		}
		return n
	}
	sort.SliceStable(images, func(i, j int) bool {
		return num(images[i]) < num(images[j])
	})
}
