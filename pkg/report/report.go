// Package report assembles the per-job remediation report and writes it to a sink.
package report

import (
	"time"

	"github.com/user/zte-adk/pkg/engine"
	"github.com/user/zte-adk/pkg/synthesis"
)

// ImplementationPhases is the fixed rollout order attached to every report
var ImplementationPhases = []string{
	"Phase 1: Critical and High severity issues",
	"Phase 2: Medium severity issues",
	"Phase 3: Low severity issues and cleanup",
}

// Report is the serialized object handed to a Sink
type Report struct {
	JobID            string             `json:"job_id"`
	GeneratedAt      time.Time          `json:"generated_at"`
	Summary          Overview           `json:"summary"`
	Findings         []engine.Finding   `json:"findings"`
	AIProposals      synthesis.Proposal `json:"ai_proposals"`
	ExecutiveSummary *synthesis.Summary `json:"executive_summary,omitempty"`
	RemediationPlans []PlanEntry        `json:"remediation_plans"`
	Recommendations  Recommendations    `json:"recommendations"`
}

// Overview carries the headline numbers of a report
type Overview struct {
	TotalFindings  int                     `json:"total_findings"`
	SeverityCounts map[engine.Severity]int `json:"severity_counts"`
	OverallRisk    string                  `json:"overall_risk"`
	AIPowered      bool                    `json:"ai_powered"`
	AIModel        string                  `json:"ai_model"`
}

// PlanEntry is the rendered remediation template and compliance mapping for one finding
type PlanEntry struct {
	FindingID string                  `json:"finding_id"`
	Plan      *engine.RemediationPlan `json:"plan,omitempty"`
	Controls  []engine.ControlRef     `json:"controls,omitempty"`
	Error     string                  `json:"error,omitempty"`
}

type Recommendations struct {
	PriorityOrder        []engine.Severity `json:"priority_order"`
	ImplementationPhases []string          `json:"implementation_phases"`
}

// Builder assembles reports. Remediation and Compliance are optional.
type Builder struct {
	Remediation *engine.RemediationEngine
	Compliance  *engine.ComplianceEngine
	Project     string
	Region      string
	Now         func() time.Time
}

// Build creates the report for a job. Findings are copied and ranked.
func (b *Builder) Build(jobID string, findings []engine.Finding, proposal synthesis.Proposal, summary *synthesis.Summary) Report {
	ranked := append([]engine.Finding(nil), findings...)
	engine.SortBySeverity(ranked)
	counts := engine.CountBySeverity(ranked)

	now := time.Now
	if b.Now != nil {
		now = b.Now
	}

	return Report{
		JobID:       jobID,
		GeneratedAt: now().UTC(),
		Summary: Overview{
			TotalFindings:  len(ranked),
			SeverityCounts: counts,
			OverallRisk:    synthesis.OverallRisk(counts),
			AIPowered:      proposal.AIPowered,
			AIModel:        proposal.Model,
		},
		Findings:         ranked,
		AIProposals:      proposal,
		ExecutiveSummary: summary,
		RemediationPlans: b.plans(ranked),
		Recommendations: Recommendations{
			PriorityOrder:        append([]engine.Severity(nil), engine.Severities...),
			ImplementationPhases: append([]string(nil), ImplementationPhases...),
		},
	}
}

func (b *Builder) plans(findings []engine.Finding) []PlanEntry {
	entries := make([]PlanEntry, 0, len(findings))
	for _, f := range findings {
		entry := PlanEntry{FindingID: f.ID}
		if b.Compliance != nil {
			entry.Controls = b.Compliance.ControlsForRule(f.RuleID)
		}
		if b.Remediation != nil && f.RuleID != "" {
			plan, err := b.Remediation.GeneratePlan(f.RuleID, engine.PlanVariables(f, b.Project, b.Region))
			if err != nil {
				entry.Error = err.Error()
			} else {
				entry.Plan = &plan
			}
		}
		entries = append(entries, entry)
	}
	return entries
}
