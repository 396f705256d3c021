package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/user/zte-adk/pkg/engine"
	"github.com/user/zte-adk/pkg/metrics"
	"github.com/user/zte-adk/pkg/store"
)

// ErrStore marks persistence failures; the message should be redelivered
var ErrStore = errors.New("finding store failure")

// Resolver turns a scan target into policy facts
type Resolver interface {
	Resolve(ctx context.Context, project, region, service string) ([]engine.PolicyBinding, engine.ServiceConfig, error)
}

// ScanResult describes one processed request
type ScanResult struct {
	JobID           string           `json:"job_id"`
	ServiceName     string           `json:"service_name"`
	Findings        []engine.Finding `json:"findings"`
	Stored          int              `json:"stored"`
	SkippedBindings int              `json:"skipped_bindings"`
}

// Processor runs the scan-to-finding pipeline for one request at a time.
// It holds no per-scan state, so one Processor can serve many workers.
type Processor struct {
	Resolver Resolver
	Engine   *engine.Engine
	Store    store.Store
	Logger   hclog.Logger
	Metrics  *metrics.Metrics
	Now      func() time.Time
}

func (p *Processor) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

func (p *Processor) logger() hclog.Logger {
	if p.Logger != nil {
		return p.Logger
	}
	return hclog.NewNullLogger()
}

// Process resolves, evaluates and persists one request. Every finding is
// attempted even when earlier appends fail.
func (p *Processor) Process(ctx context.Context, req ScanRequest) (ScanResult, error) {
	log := p.logger().With("job_id", req.JobID, "service", req.ServiceName)
	result := ScanResult{JobID: req.JobID, ServiceName: req.ServiceName}

	if err := req.Validate(); err != nil {
		p.Metrics.RecordScan("invalid")
		return result, err
	}

	log.Info("processing scan request", "region", req.Region, "project", req.ProjectID)
	bindings, cfg, err := p.Resolver.Resolve(ctx, req.ProjectID, req.Region, req.ServiceName)
	if err != nil {
		p.Metrics.RecordScan("resolve_failed")
		return result, fmt.Errorf("failed to resolve %s: %w", req.ServiceName, err)
	}

	result.SkippedBindings = engine.SkippedBindings(bindings)
	if result.SkippedBindings > 0 {
		log.Debug("skipped bindings without role", "count", result.SkippedBindings)
	}

	now := p.now()
	var storeErrs []error
	for _, frag := range p.Engine.Evaluate(bindings, cfg) {
		f := engine.NewFinding(req.JobID, req.ServiceName, frag, now)
		result.Findings = append(result.Findings, f)
		if err := p.Store.Append(ctx, f); err != nil {
			log.Error("failed to store finding", "finding_id", f.ID, "error", err)
			storeErrs = append(storeErrs, err)
			continue
		}
		result.Stored++
	}
	p.Metrics.RecordStored(result.Stored)

	if len(storeErrs) > 0 {
		p.Metrics.RecordScan("store_failed")
		return result, fmt.Errorf("%w: %d of %d findings not stored: %w",
			ErrStore, len(storeErrs), len(result.Findings), errors.Join(storeErrs...))
	}

	p.Metrics.RecordScan("ok")
	log.Info("scan completed", "findings", len(result.Findings))
	return result, nil
}
