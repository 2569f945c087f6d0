package ai

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/overflew/internal/profile"
	"github.com/hrygo/overflew/plugin/ai/timeout"
)

func TestNewConfigFromProfile(t *testing.T) {
	prof := &profile.Profile{
		AIEnabled:           true,
		AIAPIKey:            "sk-test",
		AIBaseURL:           "https://llm.example.com/v1",
		AIModel:             "gpt-4o-mini",
		AIMaxTokens:         512,
		AICompletionTimeout: 10 * time.Second,
		AIRequestsPerSecond: 2,
	}

	cfg := NewConfigFromProfile(prof)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "sk-test", cfg.APIKey)
	assert.Equal(t, "https://llm.example.com/v1", cfg.BaseURL)
	assert.Equal(t, "gpt-4o-mini", cfg.Model)
	assert.Equal(t, 512, cfg.MaxTokens)
	assert.Equal(t, 10*time.Second, cfg.Timeout)
	assert.Equal(t, 2.0, cfg.RequestsPerSecond)
	require.NoError(t, cfg.Validate())
}

func TestNewConfigFromProfile_Defaults(t *testing.T) {
	cfg := NewConfigFromProfile(&profile.Profile{})
	assert.False(t, cfg.Enabled)
	assert.Equal(t, profile.DefaultAIBaseURL, cfg.BaseURL)
	assert.Equal(t, profile.DefaultAIModel, cfg.Model)
	assert.Equal(t, profile.DefaultAIMaxTokens, cfg.MaxTokens)
	assert.Equal(t, timeout.CompletionTimeout, cfg.Timeout)
	require.NoError(t, cfg.Validate())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{name: "disabled is always valid", cfg: Config{}, wantErr: false},
		{name: "missing model", cfg: Config{Enabled: true, BaseURL: "x", MaxTokens: 1}, wantErr: true},
		{name: "missing base url", cfg: Config{Enabled: true, Model: "m", MaxTokens: 1}, wantErr: true},
		{name: "zero tokens", cfg: Config{Enabled: true, Model: "m", BaseURL: "x"}, wantErr: true},
		{name: "valid", cfg: Config{Enabled: true, Model: "m", BaseURL: "x", MaxTokens: 1}, wantErr: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
