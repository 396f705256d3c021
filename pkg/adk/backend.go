package adk

import (
	"context"
	"errors"
)

var (
	// ErrNoBackend means no candidate model passed the startup probe
	ErrNoBackend = errors.New("no healthy generative backend")
	// ErrEmptyResponse is returned when the model answered without any text
	ErrEmptyResponse = errors.New("empty response from model")
)

// CompletionOptions bounds a single completion
type CompletionOptions struct {
	MaxTokens   int
	Temperature float32
}

// Backend is a text-completion service. Implementations make exactly one
// request per call; the caller enforces the timeout through ctx.
type Backend interface {
	Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error)
	Model() string
}

// LLMProvider is a Backend that can also enumerate its models
type LLMProvider interface {
	Backend
	ListModels(ctx context.Context) ([]string, error)
}

// closeProvider releases provider resources when the provider holds any
func closeProvider(p LLMProvider) {
	if closer, ok := p.(interface{ Close() }); ok {
		closer.Close()
	}
}
