package ratelimit

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool
	DefaultLimit    int
	DefaultWindow   time.Duration
	CleanupInterval time.Duration
	Whitelist       map[string]bool
	EndpointConfigs []EndpointConfig
}

// EndpointConfig represents rate limiting configuration for a specific endpoint.
type EndpointConfig struct {
	Path   string        // exact path, or a prefix when it ends with "/"
	Method string        // HTTP method (GET, POST, etc.)
	Limit  int           // Maximum requests per window
	Window time.Duration // Time window
	Burst  int           // Burst capacity (defaults to Limit if 0)
	// Group shares one bucket between endpoints with the same group name
	Group string
}

func (ec *EndpointConfig) key(path, method string) string {
	if ec.Group != "" {
		return ec.Group
	}
	return method + " " + path
}

// DefaultConfig returns the limits used when nothing is configured
func DefaultConfig() *Config {
	return &Config{
		Enabled:         true,
		DefaultLimit:    300,
		DefaultWindow:   time.Minute,
		CleanupInterval: 5 * time.Minute,
		Whitelist:       make(map[string]bool),
		EndpointConfigs: DefaultEndpointConfigs(),
	}
}

// DefaultEndpointConfigs returns the default endpoint-specific configurations.
// Both ingestion routes draw from the same upload budget.
func DefaultEndpointConfigs() []EndpointConfig {
	return []EndpointConfig{
		{Path: "/cv/ingest", Method: "POST", Limit: 20, Window: time.Hour, Burst: 3, Group: "ingest"},
		{Path: "/cv/ingest/stream", Method: "POST", Limit: 20, Window: time.Hour, Burst: 3, Group: "ingest"},
		// draft event streams are long-lived; only the connect counts
		{Path: "/cv/draft/events", Method: "GET", Limit: 30, Window: time.Minute, Burst: 5},
	}
}

// LoadConfig reads RATE_LIMIT_* overrides on top of DefaultConfig. Unparseable
// values are ignored.
func LoadConfig() *Config {
	cfg := DefaultConfig()
	cfg.Enabled = envOr("RATE_LIMIT_ENABLED", true, strconv.ParseBool)
	if !cfg.Enabled {
		return cfg
	}

	cfg.DefaultLimit = envOr("RATE_LIMIT_DEFAULT_LIMIT", cfg.DefaultLimit, strconv.Atoi)
	cfg.DefaultWindow = envOr("RATE_LIMIT_DEFAULT_WINDOW", cfg.DefaultWindow, time.ParseDuration)
	cfg.CleanupInterval = envOr("RATE_LIMIT_CLEANUP_INTERVAL", cfg.CleanupInterval, time.ParseDuration)
	cfg.Whitelist = clientSet(os.Getenv("RATE_LIMIT_WHITELIST"))

	if perHour := envOr("RATE_LIMIT_INGEST_PER_HOUR", 0, strconv.Atoi); perHour > 0 {
		for i := range cfg.EndpointConfigs {
			if cfg.EndpointConfigs[i].Group == "ingest" {
				cfg.EndpointConfigs[i].Limit = perHour
			}
		}
	}
	return cfg
}

func envOr[T any](key string, fallback T, parse func(string) (T, error)) T {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	v, err := parse(raw)
	if err != nil {
		return fallback
	}
	return v
}

// clientSet splits a comma-separated list of client IPs
func clientSet(list string) map[string]bool {
	set := make(map[string]bool)
	for _, f := range strings.FieldsFunc(list, func(r rune) bool { return r == ',' || r == ' ' }) {
		set[f] = true
	}
	return set
}
