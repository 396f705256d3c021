package engine

import (
	"fmt"
	"strings"
	"time"
)

// Rule identifiers, in evaluation order
const (
	RulePublicInvocation   = "public-invocation"
	RuleExcessiveRole      = "excessive-role"
	RuleBroadReadAccess    = "broad-read-access"
	RuleNoNetworkIsolation = "no-network-isolation"
	RuleExcessiveTimeout   = "excessive-timeout"
	RuleSecretEnvVar       = "secret-env-var"
)

const (
	roleOwner  = "roles/owner"
	roleEditor = "roles/editor"
	roleViewer = "roles/viewer"

	broadReadMemberLimit = 10
	maxRequestTimeout    = 300 * time.Second
)

var secretNameMarkers = []string{"key", "secret", "token", "password", "credential"}

// Rule is one independent detection check over the full fact set
type Rule struct {
	ID       string
	Evaluate func(bindings []PolicyBinding, cfg ServiceConfig) []Fragment
}

// FragmentRecorder receives one call per emitted fragment
type FragmentRecorder interface {
	RecordFragment(ruleID string, severity Severity)
}

// Engine applies a fixed, ordered rule set
type Engine struct {
	rules    []Rule
	recorder FragmentRecorder
}

// NewEngine creates an engine with the default rule set
func NewEngine() *Engine {
	return &Engine{rules: DefaultRules()}
}

// WithRecorder attaches a fragment recorder (metrics)
func (e *Engine) WithRecorder(r FragmentRecorder) *Engine {
	e.recorder = r
	return e
}

// Rules returns the rule ids in evaluation order
func (e *Engine) Rules() []string {
	ids := make([]string, len(e.rules))
	for i, r := range e.rules {
		ids[i] = r.ID
	}
	return ids
}

// Evaluate runs every rule against all facts and concatenates the fragments in rule order
func (e *Engine) Evaluate(bindings []PolicyBinding, cfg ServiceConfig) []Fragment {
	valid := usableBindings(bindings)
	var out []Fragment
	for _, r := range e.rules {
		frags := r.Evaluate(valid, cfg)
		for _, f := range frags {
			if e.recorder != nil {
				e.recorder.RecordFragment(f.RuleID, f.Severity)
			}
		}
		out = append(out, frags...)
	}
	return out
}

// SkippedBindings counts bindings the engine ignores as malformed
func SkippedBindings(bindings []PolicyBinding) int {
	return len(bindings) - len(usableBindings(bindings))
}

func usableBindings(bindings []PolicyBinding) []PolicyBinding {
	out := make([]PolicyBinding, 0, len(bindings))
	for _, b := range bindings {
		if strings.TrimSpace(b.Role) == "" {
			continue
		}
		out = append(out, b)
	}
	return out
}

// DefaultRules returns the built-in rules in evaluation order
func DefaultRules() []Rule {
	return []Rule{
		{ID: RulePublicInvocation, Evaluate: publicInvocation},
		{ID: RuleExcessiveRole, Evaluate: excessiveRole},
		{ID: RuleBroadReadAccess, Evaluate: broadReadAccess},
		{ID: RuleNoNetworkIsolation, Evaluate: noNetworkIsolation},
		{ID: RuleExcessiveTimeout, Evaluate: excessiveTimeout},
		{ID: RuleSecretEnvVar, Evaluate: secretEnvVars},
	}
}

func publicInvocation(bindings []PolicyBinding, _ ServiceConfig) []Fragment {
	var out []Fragment
	for _, b := range bindings {
		if !b.IsPublic() {
			continue
		}
		var who []string
		for _, m := range []string{AllUsers, AllAuthenticatedUsers} {
			if b.HasMember(m) {
				who = append(who, m)
			}
		}
		out = append(out, Fragment{
			RuleID:            RulePublicInvocation,
			Severity:          SeverityCritical,
			ResourceType:      ResourceCloudRunService,
			Issue:             fmt.Sprintf("Service allows unauthenticated access (%s granted %s)", strings.Join(who, ", "), b.Role),
			Recommendation:    "Remove allUsers/allAuthenticatedUsers from IAM policy. Restrict to specific service accounts or users.",
			RiskScore:         95,
			BlastRadius:       "All internet users can invoke the service",
			AffectedResources: []string{b.Role},
		})
	}
	return out
}

func excessiveRole(bindings []PolicyBinding, _ ServiceConfig) []Fragment {
	var out []Fragment
	for _, b := range bindings {
		if b.Role != roleOwner && b.Role != roleEditor {
			continue
		}
		out = append(out, Fragment{
			RuleID:            RuleExcessiveRole,
			Severity:          SeverityHigh,
			ResourceType:      ResourceIAMPolicy,
			Issue:             fmt.Sprintf("Service has %s permission (excessive privileges)", b.Role),
			Recommendation:    "Use least-privilege IAM roles. Replace with specific roles needed by the service.",
			RiskScore:         85,
			AffectedResources: append([]string(nil), b.Members...),
		})
	}
	return out
}

func broadReadAccess(bindings []PolicyBinding, _ ServiceConfig) []Fragment {
	var out []Fragment
	for _, b := range bindings {
		if b.Role != roleViewer || len(b.Members) <= broadReadMemberLimit {
			continue
		}
		out = append(out, Fragment{
			RuleID:         RuleBroadReadAccess,
			Severity:       SeverityMedium,
			ResourceType:   ResourceIAMPolicy,
			Issue:          fmt.Sprintf("Service has %s permission with %d members", b.Role, len(b.Members)),
			Recommendation: "Review and restrict access to necessary members only.",
			RiskScore:      60,
		})
	}
	return out
}

func noNetworkIsolation(_ []PolicyBinding, cfg ServiceConfig) []Fragment {
	if cfg.NetworkIsolated {
		return nil
	}
	return []Fragment{{
		RuleID:         RuleNoNetworkIsolation,
		Severity:       SeverityMedium,
		ResourceType:   ResourceVPCConfig,
		Issue:          "Service has no VPC connector configured",
		Recommendation: "Configure VPC connector for private network access to databases and other internal services",
		RiskScore:      55,
	}}
}

func excessiveTimeout(_ []PolicyBinding, cfg ServiceConfig) []Fragment {
	if cfg.Timeout == nil || *cfg.Timeout <= maxRequestTimeout {
		return nil
	}
	return []Fragment{{
		RuleID:         RuleExcessiveTimeout,
		Severity:       SeverityMedium,
		ResourceType:   ResourceCloudRunConfig,
		Issue:          fmt.Sprintf("Service has long timeout (%gs)", cfg.Timeout.Seconds()),
		Recommendation: "Configure appropriate timeout (typically 60-300s) to prevent DoS attacks",
		RiskScore:      50,
	}}
}

func secretEnvVars(_ []PolicyBinding, cfg ServiceConfig) []Fragment {
	var out []Fragment
	for _, env := range cfg.Env {
		if env.Name == "" || !IsSecretLikeName(env.Name) {
			continue
		}
		out = append(out, Fragment{
			RuleID:            RuleSecretEnvVar,
			Severity:          SeverityHigh,
			ResourceType:      ResourceCloudRunConfig,
			Issue:             fmt.Sprintf("Service exposes sensitive environment variable: %s", env.Name),
			Recommendation:    "Use Google Secret Manager to store secrets instead of environment variables",
			RiskScore:         80,
			AffectedResources: []string{env.Name},
		})
	}
	return out
}

// IsSecretLikeName matches env var names that look like they hold credentials (case-insensitive)
func IsSecretLikeName(name string) bool {
	lower := strings.ToLower(name)
	for _, marker := range secretNameMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}
