package adk

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
)

const (
	probePrompt  = "Say 'OK' if you can read this."
	probeTimeout = 15 * time.Second
)

var probeOptions = CompletionOptions{MaxTokens: 10, Temperature: 0.1}

// SelectBackend tries each candidate model once, in order, and returns the first
// one that answers the probe prompt. It is meant to run once at startup; callers
// keep the result for the process lifetime.
func SelectBackend(ctx context.Context, newProvider Factory, providerName, apiKey string, candidates []string, logger hclog.Logger) (LLMProvider, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if apiKey == "" {
		logger.Warn("no API key configured, AI features disabled", "provider", providerName)
		return nil, ErrNoBackend
	}

	for _, model := range candidates {
		logger.Debug("probing model", "provider", providerName, "model", model)
		p, err := newProvider(ctx, providerName, apiKey, model)
		if err != nil {
			logger.Warn("model init failed", "model", model, "error", truncate(err.Error(), 200))
			continue
		}

		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		text, err := p.Complete(probeCtx, probePrompt, probeOptions)
		cancel()
		if err != nil || strings.TrimSpace(text) == "" {
			if err == nil {
				err = ErrEmptyResponse
			}
			logger.Warn("model probe failed", "model", model, "error", truncate(err.Error(), 200))
			closeProvider(p)
			continue
		}

		logger.Info("generative backend selected", "provider", providerName, "model", p.Model())
		return p, nil
	}

	logger.Error("all model attempts failed, AI features disabled", "provider", providerName, "candidates", len(candidates))
	return nil, ErrNoBackend
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
