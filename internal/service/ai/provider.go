package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"

	"evalsum/internal/config"
)

// ModelFactory builds a chat model for one request using the caller's credential.
type ModelFactory func(ctx context.Context, cfg config.ProviderConfig, apiKey string, maxTokens int) (model.BaseChatModel, error)

// NewChatModel is the default ModelFactory backed by the eino-ext providers.
func NewChatModel(ctx context.Context, cfg config.ProviderConfig, apiKey string, maxTokens int) (model.BaseChatModel, error) {
	var temperature float32 = 0.3
	if cfg.Temperature != nil {
		temperature = *cfg.Temperature
	}
	switch cfg.Name {
	case config.ProviderClaude:
		var baseURL *string
		if cfg.BaseURL != "" {
			baseURL = &cfg.BaseURL
		}
		return claude.NewChatModel(ctx, &claude.Config{
			APIKey:      apiKey,
			Model:       cfg.Model,
			BaseURL:     baseURL,
			MaxTokens:   maxTokens,
			Temperature: &temperature,
		})
	case config.ProviderOpenAI:
		return openai.NewChatModel(ctx, &openai.ChatModelConfig{
			APIKey:      apiKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			MaxTokens:   &maxTokens,
			Temperature: &temperature,
		})
	case config.ProviderGemini:
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  apiKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("create gemini client: %w", err)
		}
		return gemini.NewChatModel(ctx, &gemini.Config{
			Client:      client,
			Model:       cfg.Model,
			MaxTokens:   &maxTokens,
			Temperature: &temperature,
		})
	default:
		return nil, fmt.Errorf("invalid provider: %s", cfg.Name)
	}
}

// ProviderLabel is the vendor name shown in user-facing messages.
func ProviderLabel(name string) string {
	switch name {
	case config.ProviderOpenAI:
		return "OpenAI"
	case config.ProviderGemini:
		return "Google Gemini"
	default:
		return "Anthropic"
	}
}
