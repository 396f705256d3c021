package synthesis

import (
	"context"

	"github.com/user/zte-adk/pkg/adk"
	"github.com/user/zte-adk/pkg/engine"
)

// Explanation is the result of GenerateExplanation
type Explanation struct {
	FindingID          string `json:"finding_id"`
	Explanation        string `json:"explanation"`
	BlastRadius        string `json:"blast_radius"`
	RiskAssessment     string `json:"risk_assessment"`
	PriorityScore      int    `json:"priority_score"`
	BusinessImpact     string `json:"business_impact"`
	RemediationUrgency string `json:"remediation_urgency"`
	AttackVector       string `json:"attack_vector"`
	ComplianceImpact   string `json:"compliance_impact"`
	Source
}

// Placeholders for keys a model left out of an otherwise valid reply
const (
	placeholderExplanation = "Security analysis completed"
	placeholderBlastRadius = "Impact assessment in progress"
	placeholderRisk        = "Risk evaluation completed"
	placeholderBusiness    = "Business impact under review"
	placeholderUrgency     = "Review recommended"
	placeholderAttack      = "Attack vector analysis pending"
	placeholderCompliance  = "Compliance review required"
)

// GenerateExplanation explains a single finding
func (s *Synthesizer) GenerateExplanation(ctx context.Context, f engine.Finding) Explanation {
	if !s.Enabled() {
		s.record(OpExplanation, OutcomeFallback, nil)
		return fallbackExplanation(f)
	}

	obj, err := s.explain(ctx, f)
	if err != nil {
		s.record(OpExplanation, OutcomeFallback, err)
		return fallbackExplanation(f)
	}

	score, ok := scoreField(obj, "priority_score")
	if !ok {
		score = f.Score()
	}
	s.record(OpExplanation, OutcomeAI, nil)
	return Explanation{
		FindingID:          f.ID,
		Explanation:        stringField(obj, "explanation", placeholderExplanation),
		BlastRadius:        stringField(obj, "blast_radius", placeholderBlastRadius),
		RiskAssessment:     stringField(obj, "risk_assessment", placeholderRisk),
		PriorityScore:      score,
		BusinessImpact:     stringField(obj, "business_impact", placeholderBusiness),
		RemediationUrgency: stringField(obj, "remediation_urgency", placeholderUrgency),
		AttackVector:       stringField(obj, "attack_vector", placeholderAttack),
		ComplianceImpact:   stringField(obj, "compliance_impact", placeholderCompliance),
		Source:             s.aiSource(OutcomeAI),
	}
}

func (s *Synthesizer) explain(ctx context.Context, f engine.Finding) (map[string]any, error) {
	prompt, err := adk.RenderPrompt(adk.PromptExplanation, f)
	if err != nil {
		return nil, err
	}
	text, err := s.complete(ctx, OpExplanation, prompt)
	if err != nil {
		return nil, err
	}
	return parseObject(text)
}

// fallbackExplanation depends only on the finding's resource type and severity,
// plus its risk score for priority
func fallbackExplanation(f engine.Finding) Explanation {
	t := lookupExplanation(f.ResourceType, f.Severity)
	return Explanation{
		FindingID:          f.ID,
		Explanation:        t.Explanation,
		BlastRadius:        t.BlastRadius,
		RiskAssessment:     t.RiskAssessment,
		PriorityScore:      f.Score(),
		BusinessImpact:     t.BusinessImpact,
		RemediationUrgency: t.RemediationUrgency,
		AttackVector:       t.AttackVector,
		ComplianceImpact:   t.ComplianceImpact,
		Source:             fallbackSource(),
	}
}
