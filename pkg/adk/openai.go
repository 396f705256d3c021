package adk

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-hclog"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

type OpenAIProvider struct {
	APIKey    string
	ModelName string
	BaseURL   string
	client    *resty.Client
}

func NewOpenAIProvider(apiKey, model string, logger hclog.Logger) *OpenAIProvider {
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIProvider{
		APIKey:    apiKey,
		ModelName: model,
		BaseURL:   defaultOpenAIBaseURL,
		client:    newRestyClient(logger),
	}
}

func (p *OpenAIProvider) Model() string {
	return p.ModelName
}

type openAIModelList struct {
	Data []struct {
		ID string `json:"id"`
	} `json:"data"`
}

func (p *OpenAIProvider) ListModels(ctx context.Context) ([]string, error) {
	var result openAIModelList
	resp, err := p.client.R().
		SetContext(ctx).
		SetAuthToken(p.APIKey).
		SetResult(&result).
		Get(p.BaseURL + "/models")
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, fmt.Errorf("OpenAI API returned status: %s", resp.Status())
	}

	var models []string
	for _, m := range result.Data {
		if strings.HasPrefix(m.ID, "gpt-") || strings.HasPrefix(m.ID, "o") {
			models = append(models, m.ID)
		}
	}
	return models, nil
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float32         `json:"temperature"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
}

// Complete calls the chat completions endpoint with a single user message
func (p *OpenAIProvider) Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error) {
	var result openAIChatResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetAuthToken(p.APIKey).
		SetBody(openAIChatRequest{
			Model:       p.ModelName,
			Messages:    []openAIMessage{{Role: "user", Content: prompt}},
			MaxTokens:   opts.MaxTokens,
			Temperature: opts.Temperature,
		}).
		SetResult(&result).
		Post(p.BaseURL + "/chat/completions")
	if err != nil {
		return "", err
	}
	if resp.IsError() {
		return "", fmt.Errorf("OpenAI API returned status: %s", resp.Status())
	}
	if len(result.Choices) == 0 || strings.TrimSpace(result.Choices[0].Message.Content) == "" {
		return "", ErrEmptyResponse
	}
	return result.Choices[0].Message.Content, nil
}
