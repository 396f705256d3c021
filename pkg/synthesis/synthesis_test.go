package synthesis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/zte-adk/pkg/adk"
	"github.com/user/zte-adk/pkg/engine"
	"github.com/user/zte-adk/pkg/metrics"
)

type stubBackend struct {
	reply   string
	err     error
	panics  bool
	block   bool
	prompts []string
}

func (b *stubBackend) Complete(ctx context.Context, prompt string, opts adk.CompletionOptions) (string, error) {
	b.prompts = append(b.prompts, prompt)
	if b.panics {
		panic("backend exploded")
	}
	if b.block {
		// ignores ctx on purpose
		time.Sleep(time.Second)
	}
	return b.reply, b.err
}

func (b *stubBackend) Model() string { return "stub-model" }

func testFinding(id string, sev engine.Severity, rt engine.ResourceType, score *int) engine.Finding {
	return engine.Finding{
		ID:               id,
		JobID:            "job-1",
		RuleID:           engine.RulePublicInvocation,
		Severity:         sev,
		ResourceType:     rt,
		ResourceName:     "payments",
		IssueDescription: "Service allows unauthenticated access",
		Recommendation:   "Remove allUsers",
		RiskScore:        score,
		CreatedAt:        time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func failingBackends() map[string]*stubBackend {
	return map[string]*stubBackend{
		"error":        {err: errors.New("connection refused")},
		"empty":        {reply: "   "},
		"invalid json": {reply: "this is not json {"},
		"panic":        {panics: true},
	}
}

func TestFallbackExplanationIsByteIdentical(t *testing.T) {
	s := New(nil)
	f := testFinding("f-1", engine.SeverityCritical, engine.ResourceCloudRunService, engine.IntPtr(95))

	first, err := json.Marshal(s.GenerateExplanation(context.Background(), f))
	require.NoError(t, err)
	second, err := json.Marshal(s.GenerateExplanation(context.Background(), f))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	got := s.GenerateExplanation(context.Background(), f)
	assert.False(t, got.AIPowered)
	assert.Equal(t, FallbackModel, got.Model)
	assert.Equal(t, 95, got.PriorityScore)
	assert.Equal(t, urgencyBySeverity[engine.SeverityCritical], got.RemediationUrgency)
}

func TestFallbackExplanationTable(t *testing.T) {
	testCases := []struct {
		name     string
		rt       engine.ResourceType
		sev      engine.Severity
		score    *int
		priority int
		generic  bool
	}{
		{"known pair keeps risk score", engine.ResourceIAMPolicy, engine.SeverityHigh, engine.IntPtr(85), 85, false},
		{"severity default without score", engine.ResourceVPCConfig, engine.SeverityMedium, nil, 50, false},
		{"unknown pair uses default row", engine.ResourceVPCConfig, engine.SeverityLow, nil, 25, true},
		{"unknown resource type", engine.ResourceType("Cloud SQL"), engine.SeverityCritical, engine.IntPtr(99), 99, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := New(nil).GenerateExplanation(context.Background(), testFinding("f", tc.sev, tc.rt, tc.score))
			assert.Equal(t, tc.priority, got.PriorityScore)
			assert.Equal(t, tc.generic, got.Explanation == defaultExplanation.Explanation)
			for _, v := range []string{got.Explanation, got.BlastRadius, got.RiskAssessment, got.BusinessImpact,
				got.RemediationUrgency, got.AttackVector, got.ComplianceImpact} {
				assert.NotEmpty(t, v)
			}
		})
	}
}

func TestEveryRuleOutputHasTableRow(t *testing.T) {
	bindings := []engine.PolicyBinding{
		engine.NewPolicyBinding("roles/run.invoker", []string{engine.AllUsers}),
		engine.NewPolicyBinding("roles/owner", []string{"user:a@x.com"}),
	}
	viewers := make([]string, 11)
	for i := range viewers {
		viewers[i] = "user:" + string(rune('a'+i)) + "@x.com"
	}
	bindings = append(bindings, engine.NewPolicyBinding("roles/viewer", viewers))
	timeout := 900 * time.Second
	cfg := engine.ServiceConfig{Timeout: &timeout, Env: []engine.EnvVar{{Name: "API_KEY"}}}

	frags := engine.NewEngine().Evaluate(bindings, cfg)
	require.Len(t, frags, 6)
	for _, f := range frags {
		_, ok := explanationTable[tableKey{f.ResourceType, f.Severity}]
		assert.True(t, ok, "%s %s", f.ResourceType, f.Severity)
	}
}

func TestExplanationAIPath(t *testing.T) {
	b := &stubBackend{reply: "```json\n{\"explanation\": \"Public service\", \"priority_score\": 97, \"attack_vector\": \"curl\"}\n```"}
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	s := New(b, WithMetrics(m))

	got := s.GenerateExplanation(context.Background(), testFinding("f-1", engine.SeverityCritical, engine.ResourceCloudRunService, engine.IntPtr(95)))
	assert.True(t, got.AIPowered)
	assert.Equal(t, "stub-model", got.Model)
	assert.Equal(t, OutcomeAI, got.Outcome)
	assert.Equal(t, "Public service", got.Explanation)
	assert.Equal(t, "curl", got.AttackVector)
	assert.Equal(t, 97, got.PriorityScore)
	assert.Equal(t, placeholderBlastRadius, got.BlastRadius)
	assert.Equal(t, placeholderCompliance, got.ComplianceImpact)

	require.Len(t, b.prompts, 1)
	assert.Contains(t, b.prompts[0], "Resource name: payments")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SynthesisTotal.WithLabelValues(OpExplanation, string(OutcomeAI))))
}

func TestExplanationPriorityPrecedence(t *testing.T) {
	testCases := []struct {
		name  string
		reply string
		score *int
		want  int
	}{
		{"model value", `{"priority_score": 40}`, engine.IntPtr(80), 40},
		{"numeric string", `{"priority_score": "65"}`, engine.IntPtr(80), 65},
		{"out of range uses risk score", `{"priority_score": 250}`, engine.IntPtr(80), 80},
		{"missing uses risk score", `{}`, engine.IntPtr(80), 80},
		{"missing without score uses severity", `{"priority_score": "urgent"}`, nil, 75},
		{"NaN uses risk score", `{"priority_score": "NaN"}`, engine.IntPtr(80), 80},
		{"Inf uses risk score", `{"priority_score": "Inf"}`, engine.IntPtr(80), 80},
		{"negative uses risk score", `{"priority_score": -1}`, engine.IntPtr(80), 80},
		{"NaN without score uses severity", `{"priority_score": "nan"}`, nil, 75},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := New(&stubBackend{reply: tc.reply})
			got := s.GenerateExplanation(context.Background(), testFinding("f", engine.SeverityHigh, engine.ResourceIAMPolicy, tc.score))
			assert.True(t, got.AIPowered)
			assert.Equal(t, tc.want, got.PriorityScore)
		})
	}
}

func TestSynthesisNeverFails(t *testing.T) {
	findings := []engine.Finding{
		testFinding("f-1", engine.SeverityCritical, engine.ResourceCloudRunService, engine.IntPtr(95)),
		testFinding("f-2", engine.SeverityMedium, engine.ResourceVPCConfig, engine.IntPtr(55)),
	}

	for name, b := range failingBackends() {
		t.Run(name, func(t *testing.T) {
			s := New(b)

			exp := s.GenerateExplanation(context.Background(), findings[0])
			assert.Equal(t, fallbackExplanation(findings[0]), exp)

			sum := s.GenerateScanSummary(context.Background(), findings)
			assert.False(t, sum.AIPowered)
			assert.Equal(t, FallbackModel, sum.Model)
			assert.Equal(t, RemediationRoadmap, sum.RemediationRoadmap)
			assert.Equal(t, 2, sum.TotalFindings)

			prop := s.GenerateFixProposal(context.Background(), findings)
			if name == "invalid json" {
				// unparsable text is still model output
				assert.True(t, prop.AIPowered)
				assert.Equal(t, OutcomeTextWrapped, prop.Outcome)
				assert.Equal(t, "this is not json {", prop.Summary)
				assert.Equal(t, wrappedCode, prop.TerraformCode)
				return
			}
			assert.False(t, prop.AIPowered)
			assert.Equal(t, FallbackModel, prop.Model)
			assert.Equal(t, unavailableCode, prop.TerraformCode)
			assert.Equal(t, manualSteps, prop.ImplementationSteps)
		})
	}
}

func TestTimeoutYieldsFallback(t *testing.T) {
	b := &stubBackend{block: true, reply: `{"explanation": "late"}`}
	s := New(b, WithTimeout(20*time.Millisecond))
	f := testFinding("f-1", engine.SeverityHigh, engine.ResourceIAMPolicy, engine.IntPtr(85))

	start := time.Now()
	got := s.GenerateExplanation(context.Background(), f)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
	assert.False(t, got.AIPowered)
	assert.Equal(t, fallbackExplanation(f), got)
}

func TestCancelledContextYieldsFallback(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := &stubBackend{block: true}
	got := New(b).GenerateScanSummary(ctx, nil)
	assert.False(t, got.AIPowered)
	assert.Equal(t, RiskLow, got.OverallRisk)
}

func TestOverallRisk(t *testing.T) {
	testCases := []struct {
		name   string
		counts map[engine.Severity]int
		want   string
	}{
		{"more than five urgent", map[engine.Severity]int{engine.SeverityCritical: 6, engine.SeverityHigh: 1}, RiskHigh},
		{"exactly five urgent", map[engine.Severity]int{engine.SeverityCritical: 2, engine.SeverityHigh: 3}, RiskMedium},
		{"one critical", map[engine.Severity]int{engine.SeverityCritical: 1, engine.SeverityHigh: 0}, RiskMedium},
		{"none", map[engine.Severity]int{engine.SeverityCritical: 0, engine.SeverityHigh: 0}, RiskLow},
		{"only medium and low", map[engine.Severity]int{engine.SeverityMedium: 9, engine.SeverityLow: 4}, RiskLow},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, OverallRisk(tc.counts))
		})
	}
}

func TestSummaryFromFindings(t *testing.T) {
	var findings []engine.Finding
	for i := 0; i < 6; i++ {
		findings = append(findings, testFinding("c", engine.SeverityCritical, engine.ResourceCloudRunService, nil))
	}
	findings = append(findings, testFinding("h", engine.SeverityHigh, engine.ResourceIAMPolicy, engine.IntPtr(85)))

	got := New(nil).GenerateScanSummary(context.Background(), findings)
	assert.Equal(t, RiskHigh, got.OverallRisk)
	assert.Equal(t, map[engine.Severity]int{
		engine.SeverityCritical: 6,
		engine.SeverityHigh:     1,
		engine.SeverityMedium:   0,
		engine.SeverityLow:      0,
	}, got.SeverityCounts)
	assert.Equal(t, (6*95+85)/7, got.AveragePriority)
	assert.Len(t, got.TopConcerns, maxTopConcerns)
	assert.Contains(t, got.ComplianceStatus, "Non-compliant")

	empty := New(nil).GenerateScanSummary(context.Background(), nil)
	assert.Equal(t, RiskLow, empty.OverallRisk)
	assert.Equal(t, 0, empty.TotalFindings)
	assert.Len(t, empty.SeverityCounts, 4)
	assert.NotNil(t, empty.TopConcerns)
}

func TestSummarySkipsUnknownSeverity(t *testing.T) {
	var logs bytes.Buffer
	log := hclog.New(&hclog.LoggerOptions{Output: &logs, Level: hclog.Warn})

	findings := []engine.Finding{
		testFinding("h", engine.SeverityHigh, engine.ResourceIAMPolicy, engine.IntPtr(80)),
		testFinding("x", engine.Severity("SEVERE"), engine.ResourceIAMPolicy, engine.IntPtr(10)),
	}
	got := New(nil, WithLogger(log)).GenerateScanSummary(context.Background(), findings)

	counted := 0
	for _, n := range got.SeverityCounts {
		counted += n
	}
	assert.Equal(t, 1, got.TotalFindings)
	assert.Equal(t, got.TotalFindings, counted)
	assert.Equal(t, 80, got.AveragePriority)
	assert.Contains(t, logs.String(), "unknown severity")
}

func TestSummaryAIMergesHistogram(t *testing.T) {
	b := &stubBackend{reply: `{"executive_summary": "Exec", "top_concerns": ["public access"], "recommendations": "Lock it down", "severity_counts": {"CRITICAL": 99}}`}
	findings := []engine.Finding{testFinding("f-1", engine.SeverityCritical, engine.ResourceCloudRunService, engine.IntPtr(95))}

	got := New(b).GenerateScanSummary(context.Background(), findings)
	assert.True(t, got.AIPowered)
	assert.Equal(t, "Exec", got.ExecutiveSummary)
	assert.Equal(t, []string{"public access"}, got.TopConcerns)
	assert.Equal(t, []string{"Lock it down"}, got.Recommendations)
	assert.Equal(t, RemediationRoadmap, got.RemediationRoadmap)
	assert.Equal(t, 1, got.SeverityCounts[engine.SeverityCritical])
	assert.Equal(t, RiskMedium, got.OverallRisk)

	require.Len(t, b.prompts, 1)
	assert.Contains(t, b.prompts[0], "CRITICAL=1, HIGH=0, MEDIUM=0, LOW=0")
}

func TestFixProposal(t *testing.T) {
	findings := []engine.Finding{testFinding("f-1", engine.SeverityCritical, engine.ResourceCloudRunService, engine.IntPtr(95))}

	t.Run("disabled", func(t *testing.T) {
		got := New(nil).GenerateFixProposal(context.Background(), findings)
		assert.Equal(t, disabledSummary, got.Summary)
		assert.Equal(t, manualTests, got.TestingRecommendations)
		assert.False(t, got.AIPowered)
	})

	t.Run("parsed", func(t *testing.T) {
		b := &stubBackend{reply: "```\n{\"summary\": \"Fix it\", \"terraform_code\": \"resource {}\", \"implementation_steps\": [\"a\", \"b\"]}\n```"}
		got := New(b).GenerateFixProposal(context.Background(), findings)
		assert.True(t, got.AIPowered)
		assert.Equal(t, "Fix it", got.Summary)
		assert.Equal(t, "resource {}", got.TerraformCode)
		assert.Equal(t, []string{"a", "b"}, got.ImplementationSteps)
		assert.Equal(t, wrappedTests, got.TestingRecommendations)
		assert.Contains(t, b.prompts[0], "- CRITICAL: Cloud Run Service (payments)")
	})

	t.Run("no findings", func(t *testing.T) {
		b := &stubBackend{reply: "{}"}
		got := New(b).GenerateFixProposal(context.Background(), nil)
		assert.Equal(t, noFindingsSummary, got.Summary)
		assert.Empty(t, b.prompts)
	})
}

func TestStripFences(t *testing.T) {
	testCases := map[string]string{
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"```\n{\"a\":1}\n```":     `{"a":1}`,
		"```json{\"a\":1}```":     `{"a":1}`,
		"  {\"a\":1}  ":           `{"a":1}`,
	}
	for in, want := range testCases {
		assert.Equal(t, want, stripFences(in))
	}
}
