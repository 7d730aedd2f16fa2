package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/cv-ingest/internal/ingestion"
	"github.com/jonathan/cv-ingest/internal/observability"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract text from a PDF and show the sufficiency decision",
	Long: `Runs only text extraction: the embedded text layer first, then OCR when the text
layer is too short. No parsing call is made and no draft is written.`,
	RunE: runExtract,
}

var (
	extractFile       string
	extractConfigPath string
)

func init() {
	extractCmd.Flags().StringVarP(&extractFile, "file", "f", "", "Path to the PDF resume (required)")
	extractCmd.Flags().StringVar(&extractConfigPath, "config", "", "Path to config.json file")
	extractCmd.Flags().Bool("no-ocr", false, "Disable the OCR fallback")
	extractCmd.Flags().BoolP("verbose", "v", false, "Log extraction debug output")

	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, _ []string) error {
	doc, err := readDocument(extractFile)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd, extractConfigPath)
	if err != nil {
		return err
	}
	if err := doc.Validate(cfg.MaxUploadBytes); err != nil {
		return err
	}
	_ = doc.DetectPageCount()

	native, ocr := newExtractors(cfg, newLogger(cfg.Verbose))
	res, err := extractText(cmd.Context(), doc, native, ocr)
	if err != nil {
		return err
	}

	observability.NewPrinter(cmd.OutOrStdout()).PrintExtraction(res)
	return nil
}

// extractText applies the same sufficiency rules as the pipeline
func extractText(ctx context.Context, doc *ingestion.UploadedDocument, native, ocr ingestion.Extractor) (ingestion.ExtractionResult, error) {
	res, nativeErr := native.Extract(ctx, doc)
	if nativeErr != nil {
		res = ingestion.NewResult("", ingestion.SourceNative, res.Pages)
		res.Warnings = append(res.Warnings, nativeErr.Error())
	}

	switch ingestion.Classify(res.Length) {
	case ingestion.Sufficient:
		return res, nil
	case ingestion.LowConfidence:
		res.LowConfidence = true
		return res, nil
	}

	if ocr == nil {
		if nativeErr != nil {
			return ingestion.ExtractionResult{}, nativeErr
		}
		return ingestion.ResolveAfterOCR(res, ingestion.ExtractionResult{}, errors.New("OCR fallback is disabled"))
	}

	ocrRes, ocrErr := ocr.Extract(ctx, doc)
	if ocrErr != nil {
		if ctx.Err() != nil {
			return ingestion.ExtractionResult{}, ocrErr
		}
		res.Warnings = append(res.Warnings, fmt.Sprintf("OCR failed: %v", ocrErr))
		ocrRes = ingestion.ExtractionResult{}
	}
	return ingestion.ResolveAfterOCR(res, ocrRes, ocrErr)
}
