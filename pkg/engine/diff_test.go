package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompareFindings(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bindings := func(members ...string) []PolicyBinding {
		return []PolicyBinding{NewPolicyBinding("roles/run.invoker", members)}
	}
	scan := func(job string, b []PolicyBinding, cfg ServiceConfig) []Finding {
		var out []Finding
		for _, frag := range NewEngine().Evaluate(b, cfg) {
			out = append(out, NewFinding(job, "payments", frag, now))
		}
		return out
	}

	baseline := scan("job-1", bindings(AllUsers), ServiceConfig{Env: []EnvVar{{Name: "DB_PASSWORD"}}})
	current := scan("job-2", bindings("user:a@x.com"), ServiceConfig{Env: []EnvVar{{Name: "DB_PASSWORD"}, {Name: "API_TOKEN"}}})

	diff := CompareFindings(baseline, current)

	require.Len(t, diff.Fixed, 1)
	assert.Equal(t, RulePublicInvocation, diff.Fixed[0].RuleID)
	assert.Equal(t, "job-1", diff.Fixed[0].JobID)

	require.Len(t, diff.New, 1)
	assert.Equal(t, []string{"API_TOKEN"}, diff.New[0].AffectedResources)

	require.Len(t, diff.Unchanged, 2)
	assert.Equal(t, SeverityHigh, diff.Unchanged[0].Severity)
	assert.Equal(t, "job-2", diff.Unchanged[0].JobID)
	assert.Equal(t, RuleNoNetworkIsolation, diff.Unchanged[1].RuleID)
}

func TestFingerprintIgnoresIdentityAndOrder(t *testing.T) {
	a := Finding{ID: "1", JobID: "j1", RuleID: "r", ResourceName: "s", AffectedResources: []string{"x", "y"}}
	b := Finding{ID: "2", JobID: "j2", RuleID: "r", ResourceName: "s", AffectedResources: []string{"y", "x"}}
	assert.Equal(t, a.Fingerprint(), b.Fingerprint())

	b.ResourceName = "other"
	assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
}
