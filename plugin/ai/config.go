package ai

import (
	"errors"
	"time"

	"github.com/hrygo/overflew/internal/profile"
	"github.com/hrygo/overflew/plugin/ai/timeout"
)

// Config represents the completion client configuration.
type Config struct {
	Enabled bool

	APIKey    string
	BaseURL   string
	Model     string // gpt-3.5-turbo-instruct
	MaxTokens int    // default: 4096

	// Timeout bounds a single completion call, including the wait for the rate limiter.
	Timeout time.Duration
	// RequestsPerSecond throttles outbound calls across all personas.
	RequestsPerSecond float64
}

// NewConfigFromProfile creates completion config from profile.
func NewConfigFromProfile(p *profile.Profile) *Config {
	cfg := &Config{
		Enabled:           p.IsAIEnabled(),
		APIKey:            p.AIAPIKey,
		BaseURL:           p.AIBaseURL,
		Model:             p.AIModel,
		MaxTokens:         p.AIMaxTokens,
		Timeout:           p.AICompletionTimeout,
		RequestsPerSecond: p.AIRequestsPerSecond,
	}

	if cfg.BaseURL == "" {
		cfg.BaseURL = profile.DefaultAIBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = profile.DefaultAIModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = profile.DefaultAIMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = timeout.CompletionTimeout
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = profile.DefaultAIRequestsPerSecond
	}
	return cfg
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Model == "" {
		return errors.New("completion model is required")
	}
	if c.BaseURL == "" {
		return errors.New("completion base URL is required")
	}
	if c.MaxTokens <= 0 {
		return errors.New("max tokens must be positive")
	}
	return nil
}
