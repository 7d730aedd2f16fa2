// Package config provides configuration loading and validation for the CLI and server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jonathan/cv-ingest/internal/ingestion"
	"github.com/jonathan/cv-ingest/internal/llm"
)

// EnvPrefix is the prefix of every environment override
const EnvPrefix = "CV_INGEST"

// Config holds the ingestion settings. Values come from defaults, an optional
// JSON file, then CV_INGEST_* environment variables, in increasing precedence.
type Config struct {
	DatabaseURL    string        `mapstructure:"database_url"`   // PostgreSQL connection URL; empty keeps drafts in memory
	APIKey         string        `mapstructure:"api_key"`        // Gemini API key
	Model          string        `mapstructure:"model"`          // overrides the standard-tier model
	ParseTimeout   time.Duration `mapstructure:"parse_timeout"`  // bound on one parsing call
	MaxUploadBytes int64         `mapstructure:"max_upload_bytes"`
	JWTSecret      string        `mapstructure:"jwt_secret"`
	Port           int           `mapstructure:"port"`
	Verbose        bool          `mapstructure:"verbose"`
	OCR            OCRConfig     `mapstructure:"ocr"`
}

// OCRConfig mirrors ingestion.OCRConfig with file/env friendly types
type OCRConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Tesseract     string        `mapstructure:"tesseract"`
	Pdftoppm      string        `mapstructure:"pdftoppm"`
	Language      string        `mapstructure:"language"`
	PSM           int           `mapstructure:"psm"`
	TessdataDir   string        `mapstructure:"tessdata_dir"`
	UpscaleFactor float64       `mapstructure:"upscale_factor"`
	PageTimeout   time.Duration `mapstructure:"page_timeout"`
	PagePolicy    string        `mapstructure:"page_policy"`
}

// envAliases are unprefixed variables honored after the CV_INGEST_ one
var envAliases = map[string]string{
	"api_key":      "GEMINI_API_KEY",
	"database_url": "DATABASE_URL",
	"jwt_secret":   "JWT_SECRET",
}

func setDefaults(v *viper.Viper) {
	ocr := ingestion.DefaultOCRConfig()

	v.SetDefault("database_url", "")
	v.SetDefault("api_key", "")
	v.SetDefault("model", "")
	v.SetDefault("parse_timeout", "90s")
	v.SetDefault("max_upload_bytes", ingestion.MaxUploadBytes)
	v.SetDefault("jwt_secret", "")
	v.SetDefault("port", 8080)
	v.SetDefault("verbose", false)

	v.SetDefault("ocr.enabled", true)
	v.SetDefault("ocr.tesseract", ocr.Tesseract)
	v.SetDefault("ocr.pdftoppm", ocr.Pdftoppm)
	v.SetDefault("ocr.language", ocr.Language)
	v.SetDefault("ocr.psm", 0)
	v.SetDefault("ocr.tessdata_dir", "")
	v.SetDefault("ocr.upscale_factor", ocr.UpscaleFactor)
	v.SetDefault("ocr.page_timeout", ocr.PageTimeout.String())
	v.SetDefault("ocr.page_policy", string(ocr.PagePolicy))
}

// Load reads the configuration. path may be empty, in which case only
// defaults and the environment are used.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, alias := range envAliases {
		_ = v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(key), alias)
	}

	if path != "" {
		// Resolve path relative to current directory if not absolute
		if !filepath.IsAbs(path) {
			cwd, err := os.Getwd()
			if err != nil {
				return nil, fmt.Errorf("failed to get current directory: %w", err)
			}
			path = filepath.Join(cwd, path)
		}
		v.SetConfigFile(path)
		v.SetConfigType("json")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Validate checks that the configuration has valid values.
// Required credentials are checked by the command that needs them.
func (c *Config) Validate() error {
	if c.ParseTimeout <= 0 {
		return fmt.Errorf("config error: 'parse_timeout' must be positive")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("config error: 'max_upload_bytes' must be positive")
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("config error: 'port' must be between 0 and 65535")
	}

	if !c.OCR.Enabled {
		return nil
	}
	if !ingestion.PagePolicy(c.OCR.PagePolicy).Valid() {
		return fmt.Errorf("config error: 'ocr.page_policy' must be %q or %q, got %q",
			ingestion.PagePolicyFailFast, ingestion.PagePolicySkipPage, c.OCR.PagePolicy)
	}
	if c.OCR.PageTimeout <= 0 {
		return fmt.Errorf("config error: 'ocr.page_timeout' must be positive")
	}
	if c.OCR.UpscaleFactor < 1 || c.OCR.UpscaleFactor > 8 {
		return fmt.Errorf("config error: 'ocr.upscale_factor' must be between 1 and 8")
	}
	if c.OCR.PSM < 0 || c.OCR.PSM > 13 {
		return fmt.Errorf("config error: 'ocr.psm' must be between 0 and 13")
	}
	if c.OCR.TessdataDir != "" {
		if _, err := os.Stat(c.OCR.TessdataDir); os.IsNotExist(err) {
			return fmt.Errorf("config error: tessdata directory not found: %s", c.OCR.TessdataDir)
		}
	}
	return nil
}

// IngestionOCR converts the OCR section for the extractor
func (c *Config) IngestionOCR() ingestion.OCRConfig {
	return ingestion.OCRConfig{
		Pdftoppm:      c.OCR.Pdftoppm,
		Tesseract:     c.OCR.Tesseract,
		Language:      c.OCR.Language,
		PSM:           c.OCR.PSM,
		TessdataDir:   c.OCR.TessdataDir,
		UpscaleFactor: c.OCR.UpscaleFactor,
		PageTimeout:   c.OCR.PageTimeout,
		PagePolicy:    ingestion.PagePolicy(c.OCR.PagePolicy),
	}
}

// LLMConfig returns the model configuration, applying the model override
func (c *Config) LLMConfig() *llm.Config {
	cfg := llm.DefaultConfig()
	if c.Model != "" {
		cfg = cfg.WithModel(llm.TierStandard, c.Model)
	}
	return cfg
}
