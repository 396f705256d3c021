package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/user/zte-adk/pkg/adk"
	"github.com/user/zte-adk/pkg/config"
	"github.com/user/zte-adk/pkg/engine"
	"github.com/user/zte-adk/pkg/logger"
	"github.com/user/zte-adk/pkg/metrics"
	"github.com/user/zte-adk/pkg/store"
	"github.com/user/zte-adk/pkg/synthesis"
)

// appRuntime holds the components one command invocation works with
type appRuntime struct {
	cfg      *config.Config
	log      hclog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	store    store.Store
	provider adk.LLMProvider
	synth    *synthesis.Synthesizer
}

// selectBackend is replaced in tests
var selectBackend = adk.SelectBackend

func loadConfig() (*config.Config, error) {
	if ConfigPath != "" {
		return config.LoadConfigFrom(ConfigPath)
	}
	return config.LoadConfig()
}

func newRuntime(ctx context.Context, name string) (*appRuntime, error) {
	logger.DebugEnabled = DebugMode

	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	log := logger.NewLogger(cfg, name)

	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(registry)

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Driver, err)
	}
	log.Debug("finding store opened", "driver", cfg.Store.Driver)

	return &appRuntime{
		cfg:      cfg,
		log:      log,
		registry: registry,
		metrics:  m,
		store:    st,
	}, nil
}

func (rt *appRuntime) Close() {
	if rt.provider != nil {
		if closer, ok := rt.provider.(interface{ Close() }); ok {
			closer.Close()
		}
	}
	if err := rt.store.Close(); err != nil {
		rt.log.Warn("failed to close store", "error", err)
	}
}

func (rt *appRuntime) engine() *engine.Engine {
	return engine.NewEngine().WithRecorder(rt.metrics)
}

// synthesizer selects the generative backend once and builds a single
// rate-limited synthesizer around it. With no healthy model the synthesizer
// runs in fallback mode.
func (rt *appRuntime) synthesizer(ctx context.Context) *synthesis.Synthesizer {
	if rt.synth != nil {
		return rt.synth
	}

	var backend adk.Backend
	if !NoAI && !rt.cfg.Synthesis.Disabled {
		name := rt.cfg.SelectedProvider
		adkLog := rt.log.Named("adk")
		p, err := selectBackend(ctx, adk.NewFactory(adkLog), name, rt.cfg.GetAPIKey(name), rt.cfg.Candidates(), adkLog)
		if err != nil && !errors.Is(err, adk.ErrNoBackend) {
			rt.log.Warn("backend selection failed", "error", err)
		}
		if p != nil {
			rt.provider = p
			backend = adk.RateLimited(p, rt.cfg.Synthesis.RatePerMinute)
		}
	}

	rt.synth = synthesis.New(backend,
		synthesis.WithTimeout(rt.cfg.Synthesis.Timeout),
		synthesis.WithMaxTokens(rt.cfg.Synthesis.MaxTokens),
		synthesis.WithTemperature(rt.cfg.Synthesis.Temperature),
		synthesis.WithLogger(rt.log.Named("synthesis")),
		synthesis.WithMetrics(rt.metrics),
	)
	return rt.synth
}

// jobFindings returns a job's findings in ranked order, optionally narrowed to ids
func (rt *appRuntime) jobFindings(ctx context.Context, jobID string, ids []string) ([]engine.Finding, error) {
	findings, err := rt.store.Query(ctx, jobID, store.QueryOptions{Ranked: true})
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return findings, nil
	}
	wanted := make(map[string]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}
	var out []engine.Finding
	for _, f := range findings {
		if wanted[f.ID] {
			out = append(out, f)
		}
	}
	return out, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
