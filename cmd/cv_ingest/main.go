// Package main provides the entry point for the CV ingestion CLI and HTTP API server.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "cv_ingest",
	Short: "CV Ingestion CLI and HTTP API Server",
	Long: `cv_ingest turns an uploaded PDF resume into a structured CV draft.

Text is read from the PDF's embedded text layer, with an OCR fallback for scanned
documents, then parsed by a structured-parsing service, normalized, and written over
the owner's current draft.`,
	SilenceUsage: true,
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
