package synthesis

import (
	"context"

	"github.com/user/zte-adk/pkg/adk"
	"github.com/user/zte-adk/pkg/engine"
)

// Proposal is the result of GenerateFixProposal
type Proposal struct {
	Summary                string   `json:"summary"`
	TerraformCode          string   `json:"terraform_code"`
	ImplementationSteps    []string `json:"implementation_steps"`
	TestingRecommendations []string `json:"testing_recommendations"`
	Source
}

const (
	disabledSummary   = "AI features disabled - API key not configured"
	failedSummary     = "AI-generated fixes unavailable - manual review required"
	unavailableCode   = "# AI-generated fixes unavailable"
	wrappedCode       = "# Generated fixes - see summary above"
	noFindingsSummary = "No findings require remediation"
)

var (
	manualSteps  = []string{"Manual review required"}
	manualTests  = []string{"Test all changes manually"}
	wrappedSteps = []string{"Review the detailed summary"}
	wrappedTests = []string{"Test all changes in development first"}
)

// GenerateFixProposal proposes configuration-as-code fixes for a set of findings
func (s *Synthesizer) GenerateFixProposal(ctx context.Context, findings []engine.Finding) Proposal {
	if len(findings) == 0 {
		s.record(OpProposal, OutcomeFallback, nil)
		p := fallbackProposal(!s.Enabled())
		p.Summary = noFindingsSummary
		return p
	}
	if !s.Enabled() {
		s.record(OpProposal, OutcomeFallback, nil)
		return fallbackProposal(true)
	}

	ranked := append([]engine.Finding(nil), findings...)
	engine.SortBySeverity(ranked)

	prompt, err := adk.RenderPrompt(adk.PromptProposal, ranked)
	if err != nil {
		s.record(OpProposal, OutcomeFallback, err)
		return fallbackProposal(false)
	}
	text, err := s.complete(ctx, OpProposal, prompt)
	if err != nil {
		s.record(OpProposal, OutcomeFallback, err)
		return fallbackProposal(false)
	}

	obj, err := parseObject(text)
	if err != nil {
		s.record(OpProposal, OutcomeTextWrapped, nil)
		return Proposal{
			Summary:                text,
			TerraformCode:          wrappedCode,
			ImplementationSteps:    append([]string(nil), wrappedSteps...),
			TestingRecommendations: append([]string(nil), wrappedTests...),
			Source:                 s.aiSource(OutcomeTextWrapped),
		}
	}

	s.record(OpProposal, OutcomeAI, nil)
	return Proposal{
		Summary:                stringField(obj, "summary", "Fix proposals generated"),
		TerraformCode:          stringField(obj, "terraform_code", wrappedCode),
		ImplementationSteps:    listField(obj, "implementation_steps", wrappedSteps),
		TestingRecommendations: listField(obj, "testing_recommendations", wrappedTests),
		Source:                 s.aiSource(OutcomeAI),
	}
}

// fallbackProposal is the static manual-review stub
func fallbackProposal(disabled bool) Proposal {
	summary := failedSummary
	if disabled {
		summary = disabledSummary
	}
	return Proposal{
		Summary:                summary,
		TerraformCode:          unavailableCode,
		ImplementationSteps:    append([]string(nil), manualSteps...),
		TestingRecommendations: append([]string(nil), manualTests...),
		Source:                 fallbackSource(),
	}
}
