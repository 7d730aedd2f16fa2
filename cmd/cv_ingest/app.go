package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"

	"github.com/jonathan/cv-ingest/internal/config"
	"github.com/jonathan/cv-ingest/internal/db"
	"github.com/jonathan/cv-ingest/internal/draft"
	"github.com/jonathan/cv-ingest/internal/ingestion"
	"github.com/jonathan/cv-ingest/internal/parsing"
	"github.com/jonathan/cv-ingest/internal/pipeline"
	"github.com/jonathan/cv-ingest/internal/server"
)

// app is the wired pipeline shared by serve and ingest
type app struct {
	controller  *pipeline.Controller
	writer      *draft.Writer
	broadcaster *draft.Broadcaster
	// runs stays nil without a database
	runs        server.RunHistory
	closers     []func()
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// loadConfig reads --config (if any) and applies the flags that were set explicitly.
func loadConfig(cmd *cobra.Command, path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("db-url") {
		cfg.DatabaseURL, _ = flags.GetString("db-url")
	}
	if flags.Changed("api-key") {
		cfg.APIKey, _ = flags.GetString("api-key")
	}
	if flags.Changed("port") {
		cfg.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("verbose") {
		cfg.Verbose, _ = flags.GetBool("verbose")
	}
	if flags.Changed("no-ocr") {
		noOCR, _ := flags.GetBool("no-ocr")
		cfg.OCR.Enabled = !noOCR
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// newExtractors returns the native extractor and, when enabled, the OCR fallback.
func newExtractors(cfg *config.Config, logger *slog.Logger) (ingestion.Extractor, ingestion.Extractor) {
	native := ingestion.NewNativeExtractor(logger)
	if !cfg.OCR.Enabled {
		return native, nil
	}
	return native, ingestion.NewOCRExtractor(cfg.IngestionOCR(), ingestion.ExecRunner{Logger: logger}, logger)
}

// buildApp connects storage and the parsing service and wires the controller.
// Without a database URL drafts live in memory for the life of the process.
func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY environment variable or --api-key flag is required")
	}

	a := &app{broadcaster: draft.NewBroadcaster()}
	opts := pipeline.Options{MaxUploadBytes: cfg.MaxUploadBytes, Logger: logger}
	opts.Native, opts.OCR = newExtractors(cfg, logger)

	parser, client, err := parsing.NewGeminiParserFromKey(ctx, cfg.APIKey, cfg.LLMConfig(),
		parsing.Config{Timeout: cfg.ParseTimeout}, logger)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() { _ = client.Close() })
	opts.Parser = parser

	var store draft.Store
	if cfg.DatabaseURL != "" {
		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			a.Close()
			return nil, err
		}
		database, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, database.Close)
		store = database
		opts.Recorder = database
		a.runs = database
	} else {
		logger.Warn("no database configured, drafts are kept in memory")
		store = draft.NewMemoryStore()
	}

	a.writer = draft.NewWriter(store, a.broadcaster, logger)
	opts.Writer = a.writer

	a.controller, err = pipeline.New(opts)
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// readDocument loads a local file and sniffs its media type
func readDocument(path string) (*ingestion.UploadedDocument, error) {
	if path == "" {
		return nil, fmt.Errorf("--file is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return ingestion.NewDocument(filepath.Base(path), mimetype.Detect(data).String(), data), nil
}
