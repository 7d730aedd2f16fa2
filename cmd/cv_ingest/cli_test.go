package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/cv-ingest/internal/ingestion"
	"github.com/jonathan/cv-ingest/internal/pipeline"
	"github.com/jonathan/cv-ingest/internal/types"
)

type stubExtractor struct {
	res   ingestion.ExtractionResult
	err   error
	calls int
}

func (s *stubExtractor) Extract(_ context.Context, _ *ingestion.UploadedDocument) (ingestion.ExtractionResult, error) {
	s.calls++
	return s.res, s.err
}

func textOfLength(n int) string {
	return strings.Repeat("a", n)
}

func TestExtractText(t *testing.T) {
	doc := ingestion.NewDocument("cv.pdf", ingestion.MediaTypePDF, []byte("%PDF-1.4"))

	tests := []struct {
		name          string
		native        *stubExtractor
		ocr           *stubExtractor
		wantSource    ingestion.Source
		wantLow       bool
		wantOCRCalls  int
		wantErrString string
	}{
		{
			name:       "sufficient native text skips OCR",
			native:     &stubExtractor{res: ingestion.NewResult(textOfLength(600), ingestion.SourceNative, 1)},
			ocr:        &stubExtractor{},
			wantSource: ingestion.SourceNative,
		},
		{
			name:       "low confidence native text skips OCR",
			native:     &stubExtractor{res: ingestion.NewResult(textOfLength(250), ingestion.SourceNative, 1)},
			ocr:        &stubExtractor{},
			wantSource: ingestion.SourceNative,
			wantLow:    true,
		},
		{
			name:         "OCR replaces short native text",
			native:       &stubExtractor{res: ingestion.NewResult(textOfLength(50), ingestion.SourceNative, 1)},
			ocr:          &stubExtractor{res: ingestion.NewResult(textOfLength(400), ingestion.SourceOCR, 1)},
			wantSource:   ingestion.SourceOCR,
			wantOCRCalls: 1,
		},
		{
			name:         "OCR failure degrades to native text",
			native:       &stubExtractor{res: ingestion.NewResult(textOfLength(50), ingestion.SourceNative, 1)},
			ocr:          &stubExtractor{err: &ingestion.OCREngineError{Page: 1, Message: "tesseract crashed"}},
			wantSource:   ingestion.SourceNative,
			wantLow:      true,
			wantOCRCalls: 1,
		},
		{
			name:          "nothing anywhere is insufficient",
			native:        &stubExtractor{res: ingestion.NewResult("", ingestion.SourceNative, 1)},
			ocr:           &stubExtractor{res: ingestion.NewResult("", ingestion.SourceOCR, 1)},
			wantOCRCalls:  1,
			wantErrString: "insufficient",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := extractText(context.Background(), doc, tt.native, tt.ocr)
			assert.Equal(t, tt.wantOCRCalls, tt.ocr.calls)
			if tt.wantErrString != "" {
				require.Error(t, err)
				assert.Contains(t, strings.ToLower(err.Error()), tt.wantErrString)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSource, res.Source)
			assert.Equal(t, tt.wantLow, res.LowConfidence)
		})
	}
}

func TestExtractText_NativeFailureWithoutOCR(t *testing.T) {
	doc := ingestion.NewDocument("cv.pdf", ingestion.MediaTypePDF, []byte("%PDF-1.4"))
	nativeErr := &ingestion.NativeExtractionError{Message: "malformed xref"}

	_, err := extractText(context.Background(), doc, &stubExtractor{err: nativeErr}, nil)

	var target *ingestion.NativeExtractionError
	assert.ErrorAs(t, err, &target)
}

type stubIngester struct {
	res    *pipeline.Result
	err    error
	events []pipeline.ProgressEvent
}

func (s *stubIngester) Ingest(_ context.Context, req pipeline.Request) (*pipeline.Result, error) {
	for _, e := range s.events {
		if req.OnProgress != nil {
			req.OnProgress(e)
		}
	}
	return s.res, s.err
}

func sampleResult() *pipeline.Result {
	state := types.NewCVState()
	state.PersonalInfo.FirstName = "Jane"
	state.Experiences = []types.Experience{{JobTitle: "Engineer", Company: "Acme"}}
	return &pipeline.Result{
		RunID:  uuid.New(),
		Draft:  state,
		Source: ingestion.SourceOCR,
		Length: 420,
	}
}

func TestIngestOnce_PrintsJSON(t *testing.T) {
	var out bytes.Buffer
	owner := uuid.New()
	res := sampleResult()

	err := ingestOnce(context.Background(), &stubIngester{res: res}, pipeline.Request{Owner: owner}, false, &out)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, res.RunID.String(), decoded["run_id"])
	assert.Equal(t, owner.String(), decoded["owner"])
	assert.Equal(t, "ocr", decoded["source"])
	assert.Contains(t, decoded, "draft")
}

func TestIngestOnce_VerbosePrintsProgressAndSummary(t *testing.T) {
	var out bytes.Buffer
	stub := &stubIngester{
		res:    sampleResult(),
		events: []pipeline.ProgressEvent{{State: pipeline.StateParsing, Message: "Parsing resume"}},
	}

	err := ingestOnce(context.Background(), stub, pipeline.Request{Owner: uuid.New()}, true, &out)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "→ Parsing resume")
	assert.Contains(t, out.String(), "NORMALIZED CV DRAFT")
	assert.Contains(t, out.String(), "Engineer @ Acme")
}

func TestIngestOnce_Failure(t *testing.T) {
	var out bytes.Buffer
	failure := &pipeline.Error{Kind: pipeline.KindParsingResponseInvalid, Phase: pipeline.StateValidatingResponse, Message: "no CV content"}

	err := ingestOnce(context.Background(), &stubIngester{err: failure}, pipeline.Request{}, true, &out)

	assert.Equal(t, pipeline.KindParsingResponseInvalid, pipeline.KindOf(err))
	assert.Contains(t, out.String(), "INGESTION FAILED")
}

func TestParseOwner(t *testing.T) {
	generated, err := parseOwner("")
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, generated)

	id := uuid.New()
	parsed, err := parseOwner(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)

	_, err = parseOwner("not-a-uuid")
	assert.ErrorContains(t, err, "invalid --user-id")
}

func TestReadDocument(t *testing.T) {
	_, err := readDocument("")
	assert.ErrorContains(t, err, "--file is required")

	_, err = readDocument(filepath.Join(t.TempDir(), "missing.pdf"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "resume.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4\n%âãÏÓ\n1 0 obj\n<<>>\nendobj\n"), 0o600))
	doc, err := readDocument(path)
	require.NoError(t, err)
	assert.Equal(t, "resume.pdf", doc.Filename)
	assert.Equal(t, ingestion.MediaTypePDF, doc.MediaType)

	textPath := filepath.Join(t.TempDir(), "resume.txt")
	require.NoError(t, os.WriteFile(textPath, []byte("plain text resume"), 0o600))
	doc, err = readDocument(textPath)
	require.NoError(t, err)
	assert.Error(t, doc.Validate(ingestion.MaxUploadBytes))
}

func newFlagCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("db-url", "", "")
	cmd.Flags().String("api-key", "", "")
	cmd.Flags().Int("port", 8080, "")
	cmd.Flags().Bool("no-ocr", false, "")
	cmd.Flags().BoolP("verbose", "v", false, "")
	return cmd
}

func TestLoadConfig_FlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"port": 9000, "api_key": "from-file"}`), 0o600))

	cmd := newFlagCommand()
	require.NoError(t, cmd.Flags().Parse([]string{"--api-key", "from-flag", "--no-ocr", "-v"}))

	cfg, err := loadConfig(cmd, path)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "from-flag", cfg.APIKey)
	assert.False(t, cfg.OCR.Enabled)
	assert.True(t, cfg.Verbose)
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"ocr": {"page_policy": "retry"}}`), 0o600))

	_, err := loadConfig(newFlagCommand(), path)
	assert.ErrorContains(t, err, "page_policy")
}

func TestRootCommand_RegistersSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "ingest", "extract", "migrate"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestBuildApp_RequiresAPIKey(t *testing.T) {
	cfg, err := loadConfig(newFlagCommand(), "")
	require.NoError(t, err)
	cfg.APIKey = ""

	_, err = buildApp(context.Background(), cfg, newLogger(false))
	assert.ErrorContains(t, err, "GEMINI_API_KEY")
}

func TestMigrate_RequiresURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	migrateDatabaseURL = ""

	err := migrateCmd.RunE(migrateCmd, nil)
	assert.ErrorContains(t, err, "DATABASE_URL")
}
