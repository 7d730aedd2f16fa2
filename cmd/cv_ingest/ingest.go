package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jonathan/cv-ingest/internal/observability"
	"github.com/jonathan/cv-ingest/internal/pipeline"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest a PDF resume into a CV draft",
	Long: `Runs the full pipeline once: text extraction with OCR fallback, structured parsing,
validation and normalization, then replaces the owner's draft.

Drafts are stored in PostgreSQL when a database URL is configured and in memory
otherwise. The normalized draft is printed as JSON, or as a summary with --verbose.`,
	RunE: runIngest,
}

var (
	ingestFile       string
	ingestUserID     string
	ingestConfigPath string
)

func init() {
	ingestCmd.Flags().StringVarP(&ingestFile, "file", "f", "", "Path to the PDF resume (required)")
	ingestCmd.Flags().StringVar(&ingestUserID, "user-id", "", "Draft owner UUID (a new one is generated if omitted)")
	ingestCmd.Flags().StringVar(&ingestConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")
	ingestCmd.Flags().String("db-url", "", "PostgreSQL connection URL (optional, defaults to DATABASE_URL env var)")
	ingestCmd.Flags().String("api-key", "", "Gemini API Key (optional, defaults to GEMINI_API_KEY env var)")
	ingestCmd.Flags().Bool("no-ocr", false, "Disable the OCR fallback")
	ingestCmd.Flags().BoolP("verbose", "v", false, "Print progress and a formatted summary")

	rootCmd.AddCommand(ingestCmd)
}

func parseOwner(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.New(), nil
	}
	owner, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid --user-id: %w", err)
	}
	return owner, nil
}

func runIngest(cmd *cobra.Command, _ []string) error {
	doc, err := readDocument(ingestFile)
	if err != nil {
		return err
	}
	owner, err := parseOwner(ingestUserID)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd, ingestConfigPath)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	a, err := buildApp(ctx, cfg, newLogger(cfg.Verbose))
	if err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}
	defer a.Close()

	return ingestOnce(ctx, a.controller, pipeline.Request{Owner: owner, Document: doc}, cfg.Verbose, cmd.OutOrStdout())
}

// ingester is the part of *pipeline.Controller used by ingestOnce
type ingester interface {
	Ingest(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

func ingestOnce(ctx context.Context, c ingester, req pipeline.Request, verbose bool, out io.Writer) error {
	printer := observability.NewPrinter(out)
	if verbose {
		req.OnProgress = printer.PrintProgress
	}

	res, err := c.Ingest(ctx, req)
	if err != nil {
		if verbose {
			printer.PrintFailure(err)
		}
		return err
	}

	if verbose {
		_, _ = fmt.Fprintf(out, "\nRun %s for owner %s: %s text, %d characters\n\n", res.RunID, req.Owner, res.Source, res.Length)
		printer.PrintCVState(res.Draft)
		return nil
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"run_id":         res.RunID,
		"owner":          req.Owner,
		"source":         res.Source,
		"length":         res.Length,
		"low_confidence": res.LowConfidence,
		"warnings":       res.Warnings,
		"draft":          res.Draft,
	})
}
