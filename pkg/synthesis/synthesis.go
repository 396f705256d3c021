// Package synthesis turns findings into explanations, scan summaries and fix
// proposals. Every operation tries the generative backend once and falls back
// to deterministic local output on any failure; none of them returns an error.
package synthesis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/user/zte-adk/pkg/adk"
	"github.com/user/zte-adk/pkg/metrics"
)

// FallbackModel identifies results that were not produced by a model
const FallbackModel = "fallback-analysis"

// Outcome is the path a synthesis call took
type Outcome string

const (
	OutcomeAI          Outcome = "ai"
	OutcomeTextWrapped Outcome = "text_wrapped"
	OutcomeFallback    Outcome = "fallback"
)

// Operation names used in logs and metrics
const (
	OpExplanation = "explanation"
	OpSummary     = "summary"
	OpProposal    = "proposal"
)

const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxTokens   = 2048
	DefaultTemperature = 0.3
)

var errNotJSONObject = errors.New("response is not a JSON object")

// Source tags a result with where it came from
type Source struct {
	AIPowered bool    `json:"ai_powered"`
	Model     string  `json:"ai_model"`
	Outcome   Outcome `json:"-"`
}

func fallbackSource() Source {
	return Source{AIPowered: false, Model: FallbackModel, Outcome: OutcomeFallback}
}

// Synthesizer holds an optional backend handle. A nil backend means AI is
// disabled and every call takes the fallback path.
type Synthesizer struct {
	backend     adk.Backend
	timeout     time.Duration
	maxTokens   int
	temperature float32
	logger      hclog.Logger
	metrics     *metrics.Metrics
}

// Option configures a Synthesizer
type Option func(*Synthesizer)

func WithTimeout(d time.Duration) Option {
	return func(s *Synthesizer) {
		if d > 0 {
			s.timeout = d
		}
	}
}

func WithMaxTokens(n int) Option {
	return func(s *Synthesizer) {
		if n > 0 {
			s.maxTokens = n
		}
	}
}

func WithTemperature(t float32) Option {
	return func(s *Synthesizer) {
		s.temperature = t
	}
}

func WithLogger(l hclog.Logger) Option {
	return func(s *Synthesizer) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Synthesizer) {
		s.metrics = m
	}
}

// New creates a Synthesizer. backend may be nil.
func New(backend adk.Backend, opts ...Option) *Synthesizer {
	s := &Synthesizer{
		backend:     backend,
		timeout:     DefaultTimeout,
		maxTokens:   DefaultMaxTokens,
		temperature: DefaultTemperature,
		logger:      hclog.NewNullLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enabled reports whether a backend is attached
func (s *Synthesizer) Enabled() bool {
	return s.backend != nil
}

// Model returns the backend model, or FallbackModel when disabled
func (s *Synthesizer) Model() string {
	if s.backend == nil {
		return FallbackModel
	}
	return s.backend.Model()
}

func (s *Synthesizer) aiSource(outcome Outcome) Source {
	return Source{AIPowered: true, Model: s.backend.Model(), Outcome: outcome}
}

func (s *Synthesizer) record(op string, outcome Outcome, err error) {
	s.metrics.RecordSynthesis(op, string(outcome))
	if err != nil {
		s.logger.Warn("synthesis fell back", "operation", op, "outcome", outcome, "error", err)
		return
	}
	s.logger.Debug("synthesis completed", "operation", op, "outcome", outcome)
}

type completion struct {
	text string
	err  error
}

// complete makes the single backend call for one synthesis operation. The call
// is bounded by the synthesizer timeout and by ctx; a backend that ignores
// cancellation is abandoned rather than waited on.
func (s *Synthesizer) complete(ctx context.Context, op, prompt string) (string, error) {
	if s.backend == nil {
		return "", adk.ErrNoBackend
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	opts := adk.CompletionOptions{MaxTokens: s.maxTokens, Temperature: s.temperature}
	done := make(chan completion, 1)
	start := time.Now()
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- completion{err: fmt.Errorf("backend panic: %v", r)}
			}
		}()
		text, err := s.backend.Complete(ctx, prompt, opts)
		done <- completion{text: text, err: err}
	}()

	var c completion
	select {
	case c = <-done:
	case <-ctx.Done():
		c.err = ctx.Err()
	}
	s.metrics.RecordBackendCall(op, time.Since(start), c.err)

	if c.err != nil {
		return "", c.err
	}
	if strings.TrimSpace(c.text) == "" {
		return "", adk.ErrEmptyResponse
	}
	return c.text, nil
}

// stripFences removes markdown code-fence markers around a model reply
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		if nl := strings.IndexByte(text, '\n'); nl >= 0 && !strings.ContainsAny(text[:nl], "{[") {
			// language tag such as ```json
			text = text[nl+1:]
		} else {
			text = strings.TrimPrefix(text, "json")
		}
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}

func parseObject(text string) (map[string]any, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(stripFences(text)), &obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errNotJSONObject
	}
	return obj, nil
}

// stringField returns obj[key] as text, or placeholder when missing or empty
func stringField(obj map[string]any, key, placeholder string) string {
	switch v := obj[key].(type) {
	case string:
		if strings.TrimSpace(v) != "" {
			return v
		}
	case []any:
		if items := toStrings(v); len(items) > 0 {
			return strings.Join(items, "\n")
		}
	case nil:
	default:
		return fmt.Sprint(v)
	}
	return placeholder
}

// listField accepts either a JSON list or a single string
func listField(obj map[string]any, key string, placeholder []string) []string {
	switch v := obj[key].(type) {
	case []any:
		if items := toStrings(v); len(items) > 0 {
			return items
		}
	case string:
		if strings.TrimSpace(v) != "" {
			return []string{v}
		}
	}
	return append([]string(nil), placeholder...)
}

func toStrings(values []any) []string {
	var out []string
	for _, v := range values {
		if v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			b, err := json.Marshal(v)
			if err != nil {
				continue
			}
			s = string(b)
		}
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}

// scoreField returns obj[key] when it is a number (or numeric string) within 0..100
func scoreField(obj map[string]any, key string) (int, bool) {
	var f float64
	switch v := obj[key].(type) {
	case float64:
		f = v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 || f > 100 {
		return 0, false
	}
	return int(f), true
}
