package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/user/zte-adk/pkg/engine"
	"github.com/user/zte-adk/pkg/store"
	"github.com/user/zte-adk/pkg/synthesis"
)

func printFindings(findings []engine.Finding) {
	if len(findings) == 0 {
		fmt.Println("No findings.")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSEVERITY\tSCORE\tRESOURCE\tISSUE")
	for _, f := range findings {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", f.ID, f.Severity, f.Score(), f.ResourceType, f.IssueDescription)
	}
	w.Flush()
}

func printJobs(jobs []store.JobSummary) {
	if len(jobs) == 0 {
		fmt.Println("No scan jobs.")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "JOB\tFINDINGS\tCRITICAL\tHIGH\tMEDIUM\tLOW\tLAST FINDING")
	for _, j := range jobs {
		c := j.SeverityCounts
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%s\n", j.JobID, j.FindingCount,
			c[engine.SeverityCritical], c[engine.SeverityHigh], c[engine.SeverityMedium], c[engine.SeverityLow],
			j.LastFindingAt.Format("2006-01-02 15:04:05"))
	}
	w.Flush()
}

func sourceLabel(src synthesis.Source) string {
	if src.AIPowered {
		return "AI (" + src.Model + ")"
	}
	return "deterministic (" + src.Model + ")"
}

func printExplanation(e synthesis.Explanation) {
	fmt.Printf("Finding:   %s\n", e.FindingID)
	fmt.Printf("Source:    %s\n", sourceLabel(e.Source))
	fmt.Printf("Priority:  %d\n", e.PriorityScore)
	fmt.Printf("Urgency:   %s\n\n", e.RemediationUrgency)
	fmt.Printf("%s\n\n", e.Explanation)
	fmt.Printf("Blast radius:      %s\n", e.BlastRadius)
	fmt.Printf("Risk assessment:   %s\n", e.RiskAssessment)
	fmt.Printf("Business impact:   %s\n", e.BusinessImpact)
	fmt.Printf("Attack vector:     %s\n", e.AttackVector)
	fmt.Printf("Compliance impact: %s\n", e.ComplianceImpact)
}

func printSummary(s synthesis.Summary) {
	fmt.Printf("Source:       %s\n", sourceLabel(s.Source))
	fmt.Printf("Findings:     %d (critical %d, high %d, medium %d, low %d)\n", s.TotalFindings,
		s.SeverityCounts[engine.SeverityCritical], s.SeverityCounts[engine.SeverityHigh],
		s.SeverityCounts[engine.SeverityMedium], s.SeverityCounts[engine.SeverityLow])
	fmt.Printf("Overall risk: %s (average priority %d)\n\n", s.OverallRisk, s.AveragePriority)
	fmt.Printf("%s\n\n", s.ExecutiveSummary)
	fmt.Printf("Risk overview: %s\n", s.RiskOverview)
	fmt.Printf("Compliance:    %s\n", s.ComplianceStatus)
	printList("Top concerns", s.TopConcerns)
	fmt.Printf("\nRoadmap:\n%s\n", s.RemediationRoadmap)
	printList("Recommendations", s.Recommendations)
}

func printProposal(p synthesis.Proposal) {
	fmt.Printf("Source:  %s\n", sourceLabel(p.Source))
	fmt.Printf("Summary: %s\n", p.Summary)
	printList("Implementation steps", p.ImplementationSteps)
	printList("Testing", p.TestingRecommendations)
	fmt.Printf("\nTerraform:\n%s\n", strings.TrimSpace(p.TerraformCode))
}

func printList(title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Printf("\n%s:\n", title)
	for i, item := range items {
		fmt.Printf("  %d. %s\n", i+1, item)
	}
}
