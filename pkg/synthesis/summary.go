package synthesis

import (
	"context"
	"fmt"

	"github.com/user/zte-adk/pkg/adk"
	"github.com/user/zte-adk/pkg/engine"
)

// Overall risk levels
const (
	RiskHigh   = "HIGH"
	RiskMedium = "MEDIUM"
	RiskLow    = "LOW"
)

const (
	highRiskThreshold = 5
	maxPromptFindings = 25
	maxTopConcerns    = 5
)

// Summary is the result of GenerateScanSummary. SeverityCounts, OverallRisk and
// AveragePriority are always computed locally.
type Summary struct {
	TotalFindings      int                     `json:"total_findings"`
	SeverityCounts     map[engine.Severity]int `json:"severity_counts"`
	OverallRisk        string                  `json:"overall_risk"`
	AveragePriority    int                     `json:"average_priority"`
	ExecutiveSummary   string                  `json:"executive_summary"`
	RiskOverview       string                  `json:"risk_overview"`
	TopConcerns        []string                `json:"top_concerns"`
	ComplianceStatus   string                  `json:"compliance_status"`
	RemediationRoadmap string                  `json:"remediation_roadmap"`
	Recommendations    []string                `json:"recommendations"`
	Source
}

// RemediationRoadmap is the fixed three-phase plan used when no model is available
const RemediationRoadmap = "Phase 1 (Immediate): fix critical and high severity findings. " +
	"Phase 2 (Within 30 days): resolve medium severity findings. " +
	"Phase 3 (Within 90 days): clean up low severity findings and enable continuous IAM scanning."

var fallbackRecommendations = []string{
	"Remove public invoker bindings and restrict access to specific identities",
	"Replace basic roles with least-privilege predefined or custom roles",
	"Move credentials from environment variables to Secret Manager",
	"Route internal traffic through a VPC connector or direct VPC egress",
	"Scan services on every deployment",
}

// OverallRisk grades a histogram: HIGH when critical+high exceeds five, MEDIUM when any exist, else LOW
func OverallRisk(counts map[engine.Severity]int) string {
	urgent := counts[engine.SeverityCritical] + counts[engine.SeverityHigh]
	switch {
	case urgent > highRiskThreshold:
		return RiskHigh
	case urgent > 0:
		return RiskMedium
	default:
		return RiskLow
	}
}

// AveragePriority averages per-finding risk scores, using severity defaults only
// for findings without a score
func AveragePriority(findings []engine.Finding) int {
	if len(findings) == 0 {
		return 0
	}
	total := 0
	for _, f := range findings {
		total += f.Score()
	}
	return total / len(findings)
}

type summaryPromptData struct {
	Counts      map[string]int
	OverallRisk string
	Findings    []engine.Finding
}

// GenerateScanSummary produces an executive summary for a job's findings.
// Findings with an unknown severity are left out of every total and logged.
func (s *Synthesizer) GenerateScanSummary(ctx context.Context, findings []engine.Finding) Summary {
	ranked := make([]engine.Finding, 0, len(findings))
	for _, f := range findings {
		if f.Severity.Valid() {
			ranked = append(ranked, f)
		}
	}
	if skipped := len(findings) - len(ranked); skipped > 0 {
		s.logger.Warn("summary skips findings with unknown severity", "count", skipped)
	}
	engine.SortBySeverity(ranked)

	base := Summary{
		TotalFindings:   len(ranked),
		SeverityCounts:  engine.CountBySeverity(ranked),
		AveragePriority: AveragePriority(ranked),
	}
	base.OverallRisk = OverallRisk(base.SeverityCounts)

	if !s.Enabled() {
		s.record(OpSummary, OutcomeFallback, nil)
		return fallbackSummary(base, ranked)
	}

	obj, err := s.summarize(ctx, base, ranked)
	if err != nil {
		s.record(OpSummary, OutcomeFallback, err)
		return fallbackSummary(base, ranked)
	}

	fb := fallbackSummary(base, ranked)
	out := base
	out.ExecutiveSummary = stringField(obj, "executive_summary", fb.ExecutiveSummary)
	out.RiskOverview = stringField(obj, "risk_overview", fb.RiskOverview)
	out.TopConcerns = listField(obj, "top_concerns", fb.TopConcerns)
	out.ComplianceStatus = stringField(obj, "compliance_status", fb.ComplianceStatus)
	out.RemediationRoadmap = stringField(obj, "remediation_roadmap", RemediationRoadmap)
	out.Recommendations = listField(obj, "recommendations", fallbackRecommendations)
	out.Source = s.aiSource(OutcomeAI)
	s.record(OpSummary, OutcomeAI, nil)
	return out
}

func (s *Synthesizer) summarize(ctx context.Context, base Summary, ranked []engine.Finding) (map[string]any, error) {
	counts := make(map[string]int, len(base.SeverityCounts))
	for sev, n := range base.SeverityCounts {
		counts[string(sev)] = n
	}
	top := ranked
	if len(top) > maxPromptFindings {
		top = top[:maxPromptFindings]
	}
	prompt, err := adk.RenderPrompt(adk.PromptSummary, summaryPromptData{
		Counts:      counts,
		OverallRisk: base.OverallRisk,
		Findings:    top,
	})
	if err != nil {
		return nil, err
	}
	text, err := s.complete(ctx, OpSummary, prompt)
	if err != nil {
		return nil, err
	}
	return parseObject(text)
}

// fallbackSummary fills the narrative from the histogram and the ranked findings
func fallbackSummary(base Summary, ranked []engine.Finding) Summary {
	c := base.SeverityCounts
	critical, high := c[engine.SeverityCritical], c[engine.SeverityHigh]
	medium, low := c[engine.SeverityMedium], c[engine.SeverityLow]

	out := base
	out.ExecutiveSummary = fmt.Sprintf(
		"Security scan identified %d findings: %d critical, %d high, %d medium and %d low severity. Overall risk level is %s.",
		base.TotalFindings, critical, high, medium, low, base.OverallRisk)
	out.RiskOverview = riskOverview(base.OverallRisk, critical+high)
	out.TopConcerns = topConcerns(ranked)
	out.ComplianceStatus = complianceStatus(critical+high, medium+low)
	out.RemediationRoadmap = RemediationRoadmap
	out.Recommendations = append([]string(nil), fallbackRecommendations...)
	out.Source = fallbackSource()
	return out
}

func riskOverview(level string, urgent int) string {
	switch level {
	case RiskHigh:
		return fmt.Sprintf("%d critical or high severity findings require immediate attention; the service is at high risk of compromise.", urgent)
	case RiskMedium:
		return fmt.Sprintf("%d critical or high severity findings should be remediated promptly.", urgent)
	default:
		return "No critical or high severity findings were identified."
	}
}

func topConcerns(ranked []engine.Finding) []string {
	concerns := []string{}
	for _, f := range ranked {
		if len(concerns) == maxTopConcerns {
			break
		}
		concerns = append(concerns, fmt.Sprintf("%s: %s (%s)", f.Severity, f.IssueDescription, f.ResourceName))
	}
	return concerns
}

func complianceStatus(urgent, other int) string {
	switch {
	case urgent > 0:
		return fmt.Sprintf("Non-compliant: %d critical or high severity findings violate least-privilege requirements", urgent)
	case other > 0:
		return fmt.Sprintf("Partially compliant: %d medium or low severity findings need review", other)
	default:
		return "Compliant: no IAM findings detected"
	}
}
