package adk

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-hclog"
)

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com/v1"
	anthropicVersion        = "2023-06-01"
)

type AnthropicProvider struct {
	APIKey    string
	ModelName string
	BaseURL   string
	client    *resty.Client
}

func NewAnthropicProvider(apiKey, model string, logger hclog.Logger) *AnthropicProvider {
	if model == "" {
		model = "claude-sonnet-4-5"
	}
	return &AnthropicProvider{
		APIKey:    apiKey,
		ModelName: model,
		BaseURL:   defaultAnthropicBaseURL,
		client:    newRestyClient(logger),
	}
}

func (p *AnthropicProvider) Model() string {
	return p.ModelName
}

func (p *AnthropicProvider) ListModels(ctx context.Context) ([]string, error) {
	return []string{
		"claude-sonnet-4-5",
		"claude-opus-4-5",
		"claude-haiku-4-5",
	}, nil
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float32            `json:"temperature"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Complete calls the messages endpoint; text blocks of the reply are concatenated
func (p *AnthropicProvider) Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error) {
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		// required by the API
		maxTokens = 1024
	}

	var result anthropicResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("x-api-key", p.APIKey).
		SetHeader("anthropic-version", anthropicVersion).
		SetBody(anthropicRequest{
			Model:       p.ModelName,
			MaxTokens:   maxTokens,
			Temperature: opts.Temperature,
			Messages:    []anthropicMessage{{Role: "user", Content: prompt}},
		}).
		SetResult(&result).
		Post(p.BaseURL + "/messages")
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", fmt.Errorf("Anthropic API returned status: %s", resp.Status())
	}

	var sb strings.Builder
	for _, block := range result.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", ErrEmptyResponse
	}
	return sb.String(), nil
}
