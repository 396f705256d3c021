package adk

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-hclog"
)

// Factory creates a provider for one model
type Factory func(ctx context.Context, providerName, apiKey, modelName string) (LLMProvider, error)

// NewFactory returns the default Factory, logging HTTP client output to logger
func NewFactory(logger hclog.Logger) Factory {
	return func(ctx context.Context, providerName, apiKey, modelName string) (LLMProvider, error) {
		return NewProvider(ctx, providerName, apiKey, modelName, logger)
	}
}

func NewProvider(ctx context.Context, providerName, apiKey, modelName string, logger hclog.Logger) (LLMProvider, error) {
	switch providerName {
	case "gemini":
		return NewGeminiProvider(ctx, apiKey, modelName)
	case "openai":
		return NewOpenAIProvider(apiKey, modelName, logger), nil
	case "anthropic":
		return NewAnthropicProvider(apiKey, modelName, logger), nil
	default:
		return nil, fmt.Errorf("unknown provider: %s", providerName)
	}
}
