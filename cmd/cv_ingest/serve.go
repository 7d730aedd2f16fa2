package main

import (
	"context"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/jonathan/cv-ingest/internal/config"
	"github.com/jonathan/cv-ingest/internal/server"
)

var (
	servePort       int
	serveConfigPath string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that exposes endpoints for ingesting resumes and reading the resulting draft.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "Port to listen on")
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "Path to config.json file")
	serveCmd.Flags().String("db-url", "", "PostgreSQL connection URL (defaults to DATABASE_URL env var)")
	serveCmd.Flags().String("api-key", "", "Gemini API Key (defaults to GEMINI_API_KEY env var)")
	serveCmd.Flags().Bool("no-ocr", false, "Disable the OCR fallback")
	serveCmd.Flags().BoolP("verbose", "v", false, "Log pipeline debug output")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd, serveConfigPath)
	if err != nil {
		return err
	}

	jwtConfig, err := config.NewJWTConfig(cfg.JWTSecret)
	if err != nil {
		return fmt.Errorf("invalid JWT configuration: %w", err)
	}

	a, err := buildApp(context.Background(), cfg, newLogger(cfg.Verbose))
	if err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	srv, err := server.New(server.Config{
		Port:           cfg.Port,
		Ingester:       a.controller,
		Drafts:         a.writer,
		Events:         a.broadcaster,
		Runs:           a.runs,
		JWT:            jwtConfig,
		MaxUploadBytes: cfg.MaxUploadBytes,
		OnShutdown:     a.Close,
	})
	if err != nil {
		a.Close()
		return fmt.Errorf("failed to create server: %w", err)
	}

	if !cfg.OCR.Enabled {
		log.Println("OCR fallback disabled")
	}
	return srv.Start()
}
