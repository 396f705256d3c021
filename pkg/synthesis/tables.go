package synthesis

import "github.com/user/zte-adk/pkg/engine"

type tableKey struct {
	ResourceType engine.ResourceType
	Severity     engine.Severity
}

type explanationTemplate struct {
	Explanation        string
	BlastRadius        string
	RiskAssessment     string
	BusinessImpact     string
	RemediationUrgency string
	AttackVector       string
	ComplianceImpact   string
}

var urgencyBySeverity = map[engine.Severity]string{
	engine.SeverityCritical: "Immediate - remediate within 24 hours",
	engine.SeverityHigh:     "High - remediate within 7 days",
	engine.SeverityMedium:   "Medium - remediate within 30 days",
	engine.SeverityLow:      "Low - remediate in the next maintenance window",
}

var explanationTable = map[tableKey]explanationTemplate{
	{engine.ResourceCloudRunService, engine.SeverityCritical}: {
		Explanation:        "The service can be invoked by anyone on the internet without authentication. Any endpoint it exposes, including administrative or data-returning routes, is reachable by unauthenticated callers.",
		BlastRadius:        "All data and downstream systems the service can reach are exposed to the public internet",
		RiskAssessment:     "Critical: trivially exploitable with no credentials required",
		BusinessImpact:     "Potential data breach, service abuse and unbounded cost from unauthenticated traffic",
		RemediationUrgency: urgencyBySeverity[engine.SeverityCritical],
		AttackVector:       "Direct unauthenticated HTTP requests to the service URL",
		ComplianceImpact:   "Violates access control requirements of SOC 2, PCI DSS and CIS GCP benchmarks",
	},
	{engine.ResourceCloudRunService, engine.SeverityHigh}: {
		Explanation:        "The service accepts requests from a broader set of callers than its function requires, widening the set of identities that can reach it.",
		BlastRadius:        "Data handled by the service and the resources its identity can access",
		RiskAssessment:     "High: exploitable by any identity within the overly broad caller set",
		BusinessImpact:     "Unauthorized access to service functionality and data",
		RemediationUrgency: urgencyBySeverity[engine.SeverityHigh],
		AttackVector:       "Requests from authenticated but unintended principals",
		ComplianceImpact:   "Conflicts with least-privilege access requirements",
	},
	{engine.ResourceIAMPolicy, engine.SeverityCritical}: {
		Explanation:        "The IAM policy grants administrative control to principals that should not hold it.",
		BlastRadius:        "Every resource governed by the policy, including the ability to change the policy itself",
		RiskAssessment:     "Critical: full control of the resource is available to the affected principals",
		BusinessImpact:     "Complete compromise of the service and its data is possible",
		RemediationUrgency: urgencyBySeverity[engine.SeverityCritical],
		AttackVector:       "Use of over-privileged credentials to modify or exfiltrate resources",
		ComplianceImpact:   "Violates least-privilege controls (CIS GCP 1.5, PCI DSS 7.2)",
	},
	{engine.ResourceIAMPolicy, engine.SeverityHigh}: {
		Explanation:        "A basic role such as owner or editor is granted on the service. Basic roles carry thousands of permissions far beyond what a workload or operator needs.",
		BlastRadius:        "The service configuration, its IAM policy and any data the granted principals can reach through it",
		RiskAssessment:     "High: a compromised member account gains broad modification rights",
		BusinessImpact:     "Unauthorized changes, privilege escalation and possible data loss",
		RemediationUrgency: urgencyBySeverity[engine.SeverityHigh],
		AttackVector:       "Credential theft or misuse of an over-privileged member account",
		ComplianceImpact:   "Violates least-privilege controls (CIS GCP 1.5 and 1.6, SOC 2 CC6.1)",
	},
	{engine.ResourceIAMPolicy, engine.SeverityMedium}: {
		Explanation:        "Read access to the service is granted to a large number of members, making it hard to audit who can view its configuration.",
		BlastRadius:        "Service configuration, revision metadata and environment settings visible to many principals",
		RiskAssessment:     "Medium: information disclosure that can aid further attacks",
		BusinessImpact:     "Exposure of internal configuration details",
		RemediationUrgency: urgencyBySeverity[engine.SeverityMedium],
		AttackVector:       "Reconnaissance by any of the many members holding read access",
		ComplianceImpact:   "Weakens access review controls (SOC 2 CC6.1)",
	},
	{engine.ResourceServiceAccount, engine.SeverityCritical}: {
		Explanation:        "The service runs as an identity with privileges far beyond its needs. Code execution inside the service yields those privileges.",
		BlastRadius:        "Every project resource the service account can access",
		RiskAssessment:     "Critical: a single application vulnerability becomes a project-wide compromise",
		BusinessImpact:     "Lateral movement across the project and potential data breach",
		RemediationUrgency: urgencyBySeverity[engine.SeverityCritical],
		AttackVector:       "Remote code execution or SSRF inside the service to obtain identity tokens",
		ComplianceImpact:   "Violates service account least-privilege requirements (CIS GCP 1.5)",
	},
	{engine.ResourceServiceAccount, engine.SeverityHigh}: {
		Explanation:        "The service identity holds permissions that are not required for its workload.",
		BlastRadius:        "Resources reachable through the service account's excess permissions",
		RiskAssessment:     "High: compromise of the service extends to unrelated resources",
		BusinessImpact:     "Unauthorized access to data outside the service's scope",
		RemediationUrgency: urgencyBySeverity[engine.SeverityHigh],
		AttackVector:       "Token theft from the metadata server after compromising the service",
		ComplianceImpact:   "Conflicts with least-privilege requirements (CIS GCP 1.6)",
	},
	{engine.ResourceCloudRunConfig, engine.SeverityHigh}: {
		Explanation:        "A credential appears to be supplied through a plain environment variable. Environment values are visible to anyone who can read the service configuration and often leak into logs.",
		BlastRadius:        "Every system the exposed credential grants access to",
		RiskAssessment:     "High: credentials are readable by principals with view access to the service",
		BusinessImpact:     "Compromise of databases or third-party accounts protected by the credential",
		RemediationUrgency: urgencyBySeverity[engine.SeverityHigh],
		AttackVector:       "Reading the revision configuration or crash logs to harvest the credential",
		ComplianceImpact:   "Violates secret management requirements (CIS GCP 1.18, PCI DSS 8.6)",
	},
	{engine.ResourceCloudRunConfig, engine.SeverityMedium}: {
		Explanation:        "The service configuration allows requests to run longer than necessary, letting slow or abusive requests hold instances for extended periods.",
		BlastRadius:        "Service availability and compute spend",
		RiskAssessment:     "Medium: increases exposure to resource exhaustion",
		BusinessImpact:     "Degraded availability and unexpected cost during abuse",
		RemediationUrgency: urgencyBySeverity[engine.SeverityMedium],
		AttackVector:       "Slow or long-running requests that exhaust instance capacity",
		ComplianceImpact:   "Weakens resilience controls (SOC 2 CC7.2)",
	},
	{engine.ResourceVPCConfig, engine.SeverityMedium}: {
		Explanation:        "The service has no VPC connector or direct VPC egress, so traffic to internal systems cannot be confined to a private network.",
		BlastRadius:        "Internal services that must be exposed publicly for the service to reach them",
		RiskAssessment:     "Medium: widens the network attack surface of dependent systems",
		BusinessImpact:     "Internal databases and APIs may need public endpoints",
		RemediationUrgency: urgencyBySeverity[engine.SeverityMedium],
		AttackVector:       "Direct access to publicly exposed backing services",
		ComplianceImpact:   "Weakens boundary protection controls (SOC 2 CC6.6, PCI DSS 1.3)",
	},
}

var defaultExplanation = explanationTemplate{
	Explanation:        "This finding indicates a security misconfiguration that should be reviewed and remediated according to its severity.",
	BlastRadius:        "Limited to the service scope unless combined with other findings",
	RiskAssessment:     "Requires manual assessment",
	BusinessImpact:     "Potential security exposure",
	RemediationUrgency: "Review recommended",
	AttackVector:       "Depends on the specific misconfiguration",
	ComplianceImpact:   "May affect compliance posture",
}

// lookupExplanation always returns a complete row
func lookupExplanation(rt engine.ResourceType, sev engine.Severity) explanationTemplate {
	if t, ok := explanationTable[tableKey{rt, sev}]; ok {
		return t
	}
	t := defaultExplanation
	if u, ok := urgencyBySeverity[sev]; ok {
		t.RemediationUrgency = u
	}
	return t
}
