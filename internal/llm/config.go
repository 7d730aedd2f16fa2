// Package llm wraps the Gemini API for the structured resume parsing call.
package llm

// ModelTier selects a model by capability rather than by name
type ModelTier string

const (
	// TierStandard parses ordinary resumes
	TierStandard ModelTier = "standard"
	// TierAdvanced is for long or noisy documents
	TierAdvanced ModelTier = "advanced"
)

// Config holds the model settings
type Config struct {
	Models          map[ModelTier]string
	Temperature     float32
	MaxOutputTokens int32
}

// DefaultConfig returns the Gemini defaults. Parsing wants deterministic output,
// hence the low temperature.
func DefaultConfig() *Config {
	return &Config{
		Models: map[ModelTier]string{
			TierStandard: "gemini-2.5-flash",
			TierAdvanced: "gemini-2.5-pro",
		},
		Temperature:     0.1,
		MaxOutputTokens: 8192,
	}
}

// GetModel returns the model for tier, falling back to the standard tier
func (c *Config) GetModel(tier ModelTier) string {
	if model := c.Models[tier]; model != "" {
		return model
	}
	return c.Models[TierStandard]
}

// WithModel returns a copy of c using model for tier
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	out := *c
	out.Models = make(map[ModelTier]string, len(c.Models)+1)
	for k, v := range c.Models {
		out.Models[k] = v
	}
	out.Models[tier] = model
	return &out
}
