package ai

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"

	"github.com/hrygo/overflew/plugin/ai/timeout"
)

// FallbackResponse is returned in place of generated text whenever a completion fails.
const FallbackResponse = "I apologize, but I'm having trouble generating a response right now."

// IsFallback reports whether text is the fallback apology rather than a generated answer.
func IsFallback(text string) bool {
	return strings.TrimSpace(text) == FallbackResponse
}

// CompletionRequest describes one completion call. Empty optional fields fall back to the service defaults.
type CompletionRequest struct {
	Prompt    string
	MaxTokens int

	// Optional overrides, usually taken from the responding persona.
	Model   string
	APIKey  string
	BaseURL string
}

// CompletionService is the text completion service interface.
type CompletionService interface {
	// Complete returns generated text, or FallbackResponse on any failure. It never returns an error.
	Complete(ctx context.Context, req CompletionRequest) string
}

type completionService struct {
	config  *Config
	limiter *rate.Limiter

	mu      sync.Mutex
	clients map[string]*openai.Client
}

// NewCompletionService creates a new CompletionService.
func NewCompletionService(cfg *Config) (CompletionService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	burst := int(cfg.RequestsPerSecond)
	if burst < 1 {
		burst = 1
	}
	return &completionService{
		config:  cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst),
		clients: make(map[string]*openai.Client),
	}, nil
}

func (s *completionService) Complete(ctx context.Context, req CompletionRequest) string {
	model, apiKey, baseURL, maxTokens := s.resolve(req)

	if !s.config.Enabled && req.APIKey == "" {
		slog.Warn("completion requested while AI is disabled", slog.String("model", model))
		return FallbackResponse
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	if err := s.limiter.Wait(ctx); err != nil {
		slog.Error("completion rate limiter wait failed",
			slog.String("model", model),
			slog.String("error", err.Error()),
		)
		return FallbackResponse
	}

	client := s.client(apiKey, baseURL)
	var text string
	var err error
	if isInstructModel(model) {
		text, err = completeInstruct(ctx, client, model, req.Prompt, maxTokens)
	} else {
		text, err = completeChat(ctx, client, model, req.Prompt, maxTokens)
	}
	if err != nil {
		slog.Error("completion failed",
			slog.String("model", model),
			slog.String("base_url", baseURL),
			slog.String("prompt", timeout.Truncate(req.Prompt)),
			slog.String("error", err.Error()),
		)
		return FallbackResponse
	}
	return text
}

func (s *completionService) resolve(req CompletionRequest) (model, apiKey, baseURL string, maxTokens int) {
	model, apiKey, baseURL, maxTokens = s.config.Model, s.config.APIKey, s.config.BaseURL, s.config.MaxTokens
	if req.Model != "" {
		model = req.Model
	}
	if req.APIKey != "" {
		apiKey = req.APIKey
	}
	if req.BaseURL != "" {
		baseURL = req.BaseURL
	}
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}
	return model, apiKey, baseURL, maxTokens
}

// client returns a cached client per credential pair.
func (s *completionService) client(apiKey, baseURL string) *openai.Client {
	key := baseURL + "\x00" + apiKey

	s.mu.Lock()
	defer s.mu.Unlock()
	if client, ok := s.clients[key]; ok {
		return client
	}
	clientConfig := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientConfig.BaseURL = strings.TrimRight(baseURL, "/")
	}
	client := openai.NewClientWithConfig(clientConfig)
	s.clients[key] = client
	return client
}

func isInstructModel(model string) bool {
	return strings.Contains(strings.ToLower(model), "instruct")
}

func completeInstruct(ctx context.Context, client *openai.Client, model, prompt string, maxTokens int) (string, error) {
	resp, err := client.CreateCompletion(ctx, openai.CompletionRequest{
		Model:     model,
		Prompt:    prompt,
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", errors.Wrap(err, "create completion")
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty completion response")
	}
	text := strings.TrimSpace(resp.Choices[0].Text)
	if text == "" {
		return "", errors.New("blank completion text")
	}
	return text, nil
}

func completeChat(ctx context.Context, client *openai.Client, model, prompt string, maxTokens int) (string, error) {
	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", errors.Wrap(err, "create chat completion")
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty chat completion response")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("blank chat completion text")
	}
	return text, nil
}
