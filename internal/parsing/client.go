// Package parsing turns extracted resume text into a normalized CV draft using
// an external structured-parsing service.
package parsing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jonathan/cv-ingest/internal/llm"
	"github.com/jonathan/cv-ingest/internal/prompts"
)

const promptFile = "parsing.json"

// DefaultTimeout bounds a single parsing call
const DefaultTimeout = 90 * time.Second

// Payload is the untrusted JSON object returned by the parsing service
type Payload map[string]any

// Input is the text handed to the parsing service
type Input struct {
	Text          string
	Source        string
	Length        int
	LowConfidence bool
}

// Parser extracts a structured payload from resume text
type Parser interface {
	Parse(ctx context.Context, in Input) (Payload, error)
}

// Config configures a GeminiParser
type Config struct {
	Tier    llm.ModelTier
	Timeout time.Duration
}

// GeminiParser implements Parser on top of an llm.Client. It never retries.
type GeminiParser struct {
	client  llm.Client
	tier    llm.ModelTier
	timeout time.Duration
	logger  *slog.Logger
}

// NewGeminiParser wraps an existing client
func NewGeminiParser(client llm.Client, cfg Config, logger *slog.Logger) *GeminiParser {
	if cfg.Tier == "" {
		cfg.Tier = llm.TierStandard
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GeminiParser{client: client, tier: cfg.Tier, timeout: cfg.Timeout, logger: logger}
}

// NewGeminiParserFromKey creates a Gemini client constrained to the CV response schema.
// The caller owns the returned client and must Close it.
func NewGeminiParserFromKey(ctx context.Context, apiKey string, llmConfig *llm.Config, cfg Config, logger *slog.Logger) (*GeminiParser, llm.Client, error) {
	client, err := llm.NewGeminiClient(ctx, llmConfig, apiKey)
	if err != nil {
		return nil, nil, &APICallError{Message: "failed to create LLM client", Cause: err}
	}
	client.SetResponseSchema(llm.CVResponseSchema())
	return NewGeminiParser(client, cfg, logger), client, nil
}

// Parse sends the text to the service and decodes the response object.
func (p *GeminiParser) Parse(ctx context.Context, in Input) (Payload, error) {
	if strings.TrimSpace(in.Text) == "" {
		return nil, &ParseError{Message: "no text to parse"}
	}

	callCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	raw, err := p.client.GenerateJSON(callCtx, BuildPrompt(in), p.tier)
	elapsed := time.Since(start)
	if err != nil {
		if ctx.Err() == nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, &APICallError{
				Message: fmt.Sprintf("parsing service did not respond within %s", p.timeout),
				Timeout: true,
				Cause:   err,
			}
		}
		return nil, &APICallError{Message: "failed to generate content from LLM", Cause: err}
	}

	p.logger.Debug("parsing service responded",
		"model", p.client.GetModel(p.tier),
		"duration_ms", elapsed.Milliseconds(),
		"response_bytes", len(raw),
	)

	return DecodePayload(raw)
}

// BuildPrompt constructs the extraction prompt for a resume
func BuildPrompt(in Input) string {
	schema := llm.CVSchema()
	schema.Description = prompts.MustRender(promptFile, "extract-cv", nil)
	if in.LowConfidence {
		schema.Description += "\n" + prompts.MustRender(promptFile, "extract-cv-noise-hint", map[string]any{
			"Source": in.Source,
			"Length": in.Length,
		})
	}
	return llm.BuildExtractionPrompt(schema, in.Text)
}

// DecodePayload parses a service response body, which must be a JSON object
func DecodePayload(raw string) (Payload, error) {
	raw = llm.CleanJSONBlock(raw)
	if raw == "" {
		return nil, &ParseError{Message: "empty response body"}
	}

	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, &ParseError{Message: "failed to parse JSON response", Cause: err}
	}

	obj, ok := v.(map[string]any)
	if !ok {
		return nil, &ParseError{Message: fmt.Sprintf("expected a JSON object, got %T", v)}
	}
	return Payload(obj), nil
}
