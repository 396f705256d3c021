// Package store persists findings. Every implementation rejects incomplete
// findings and duplicate ids before anything is written.
package store

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/user/zte-adk/pkg/engine"
)

var (
	ErrNotFound  = errors.New("finding not found")
	ErrDuplicate = errors.New("duplicate finding id")
)

// QueryOptions filters and orders Query results. The zero value returns every
// finding of the job, newest first.
type QueryOptions struct {
	Severity *engine.Severity
	// Ranked orders by severity then risk score instead of created_at
	Ranked bool
	Limit  int
}

// JobSummary aggregates the findings of one job
type JobSummary struct {
	JobID          string                  `json:"job_id"`
	FindingCount   int                     `json:"finding_count"`
	SeverityCounts map[engine.Severity]int `json:"severity_counts"`
	FirstFindingAt time.Time               `json:"first_finding_at"`
	LastFindingAt  time.Time               `json:"last_finding_at"`
}

// Store is the finding store adapter
type Store interface {
	Append(ctx context.Context, f engine.Finding) error
	Query(ctx context.Context, jobID string, opts QueryOptions) ([]engine.Finding, error)
	Get(ctx context.Context, id string) (engine.Finding, error)
	ListJobs(ctx context.Context, limit int) ([]JobSummary, error)
	Close() error
}

// orderFindings applies the QueryOptions ordering and limit in place
func orderFindings(findings []engine.Finding, opts QueryOptions) []engine.Finding {
	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].CreatedAt.After(findings[j].CreatedAt)
	})
	if opts.Ranked {
		engine.SortBySeverity(findings)
	}
	if opts.Limit > 0 && len(findings) > opts.Limit {
		findings = findings[:opts.Limit]
	}
	return findings
}

func summarizeJobs(findings []engine.Finding, limit int) []JobSummary {
	byJob := make(map[string]*JobSummary)
	var order []string
	for _, f := range findings {
		js, ok := byJob[f.JobID]
		if !ok {
			js = &JobSummary{
				JobID:          f.JobID,
				SeverityCounts: engine.CountBySeverity(nil),
				FirstFindingAt: f.CreatedAt,
				LastFindingAt:  f.CreatedAt,
			}
			byJob[f.JobID] = js
			order = append(order, f.JobID)
		}
		js.FindingCount++
		if f.Severity.Valid() {
			js.SeverityCounts[f.Severity]++
		}
		if f.CreatedAt.Before(js.FirstFindingAt) {
			js.FirstFindingAt = f.CreatedAt
		}
		if f.CreatedAt.After(js.LastFindingAt) {
			js.LastFindingAt = f.CreatedAt
		}
	}

	out := make([]JobSummary, 0, len(order))
	for _, id := range order {
		out = append(out, *byJob[id])
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].FirstFindingAt.Equal(out[j].FirstFindingAt) {
			return out[i].FirstFindingAt.After(out[j].FirstFindingAt)
		}
		return out[i].JobID < out[j].JobID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
