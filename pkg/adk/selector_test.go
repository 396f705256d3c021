package adk

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvider struct {
	model  string
	reply  string
	err    error
	calls  int
	closed bool
}

func (f *fakeProvider) Complete(ctx context.Context, prompt string, opts CompletionOptions) (string, error) {
	f.calls++
	return f.reply, f.err
}

func (f *fakeProvider) Model() string { return f.model }

func (f *fakeProvider) ListModels(ctx context.Context) ([]string, error) {
	return []string{f.model}, nil
}

func (f *fakeProvider) Close() { f.closed = true }

func TestSelectBackendPicksFirstHealthy(t *testing.T) {
	providers := map[string]*fakeProvider{
		"broken": {model: "broken", err: errors.New("404 model not found")},
		"silent": {model: "silent", reply: "  "},
		"good":   {model: "good", reply: "OK"},
		"later":  {model: "later", reply: "OK"},
	}
	factory := func(ctx context.Context, provider, apiKey, model string) (LLMProvider, error) {
		if model == "unbuildable" {
			return nil, errors.New("bad model name")
		}
		return providers[model], nil
	}

	b, err := SelectBackend(context.Background(), factory, "gemini", "key", []string{"unbuildable", "broken", "silent", "good", "later"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "good", b.Model())

	assert.Equal(t, 1, providers["broken"].calls)
	assert.True(t, providers["broken"].closed)
	assert.True(t, providers["silent"].closed)
	assert.False(t, providers["good"].closed)
	assert.Equal(t, 0, providers["later"].calls)
}

func TestSelectBackendNoneHealthy(t *testing.T) {
	factory := func(ctx context.Context, provider, apiKey, model string) (LLMProvider, error) {
		return &fakeProvider{model: model, err: errors.New("unavailable")}, nil
	}
	_, err := SelectBackend(context.Background(), factory, "gemini", "key", []string{"a", "b"}, nil)
	assert.ErrorIs(t, err, ErrNoBackend)
}

func TestSelectBackendWithoutKey(t *testing.T) {
	called := false
	factory := func(ctx context.Context, provider, apiKey, model string) (LLMProvider, error) {
		called = true
		return nil, nil
	}
	_, err := SelectBackend(context.Background(), factory, "gemini", "", []string{"a"}, nil)
	assert.ErrorIs(t, err, ErrNoBackend)
	assert.False(t, called)
}

func TestRateLimited(t *testing.T) {
	inner := &fakeProvider{model: "m", reply: "ok"}
	assert.Same(t, Backend(inner), RateLimited(inner, 0))

	b := RateLimited(inner, 1)
	assert.Equal(t, "m", b.Model())

	_, err := b.Complete(context.Background(), "p", CompletionOptions{})
	require.NoError(t, err)

	// the single token is spent; the next call cannot start before the deadline
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = b.Complete(ctx, "p", CompletionOptions{})
	assert.Error(t, err)
	assert.Equal(t, 1, inner.calls)
}
