package report

import (
	"fmt"
	"io"

	"github.com/owenrumney/go-sarif/v2/sarif"

	"github.com/user/zte-adk/pkg/engine"
)

const (
	toolName = "zte-adk"
	toolURI  = "https://cloud.google.com/run/docs/securing/managing-access"
)

// ToSARIF converts findings to a SARIF 2.1.0 report with one rule per rule id
func ToSARIF(findings []engine.Finding) (*sarif.Report, error) {
	report, err := sarif.New(sarif.Version210)
	if err != nil {
		return nil, fmt.Errorf("failed to create SARIF report: %w", err)
	}

	run := sarif.NewRunWithInformationURI(toolName, toolURI)
	for _, f := range findings {
		ruleID := f.RuleID
		if ruleID == "" {
			ruleID = string(f.ResourceType)
		}
		rule := run.AddRule(ruleID).
			WithDescription(f.Recommendation).
			WithDefaultConfiguration(&sarif.ReportingConfiguration{
				Level: toSarifLevel(f.Severity),
			})

		location := sarif.NewLocation().WithPhysicalLocation(
			sarif.NewPhysicalLocation().
				WithArtifactLocation(sarif.NewArtifactLocation().WithUri(f.ResourceName)),
		)

		result := sarif.NewRuleResult(rule.ID).
			WithMessage(sarif.NewTextMessage(fmt.Sprintf("%s (%s, risk %d)", f.IssueDescription, f.Severity, f.Score()))).
			WithLevel(toSarifLevel(f.Severity)).
			WithLocations([]*sarif.Location{location})
		run.AddResult(result)
	}
	report.AddRun(run)
	return report, nil
}

// WriteSARIF writes findings as indented SARIF JSON
func WriteSARIF(w io.Writer, findings []engine.Finding) error {
	report, err := ToSARIF(findings)
	if err != nil {
		return err
	}
	return report.PrettyWrite(w)
}

func toSarifLevel(severity engine.Severity) string {
	switch severity {
	case engine.SeverityCritical, engine.SeverityHigh:
		return "error"
	case engine.SeverityMedium:
		return "warning"
	case engine.SeverityLow:
		return "note"
	default:
		return "none"
	}
}
