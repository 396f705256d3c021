package engine

import (
	"time"

	run "google.golang.org/api/run/v2"
)

// Extract converts a Cloud Run IAM policy and service description into rule facts.
// Missing optional fields are treated as not configured; nothing here fails.
func Extract(policy *run.GoogleIamV1Policy, service *run.GoogleCloudRunV2Service) ([]PolicyBinding, ServiceConfig) {
	return ExtractBindings(policy), ExtractServiceConfig(service)
}

// ExtractBindings keeps bindings with an empty role; the rule engine decides to skip them
func ExtractBindings(policy *run.GoogleIamV1Policy) []PolicyBinding {
	if policy == nil {
		return nil
	}
	bindings := make([]PolicyBinding, 0, len(policy.Bindings))
	for _, b := range policy.Bindings {
		if b == nil {
			continue
		}
		bindings = append(bindings, NewPolicyBinding(b.Role, b.Members))
	}
	return bindings
}

// ExtractServiceConfig reads VPC access, request timeout and env vars of every container
func ExtractServiceConfig(service *run.GoogleCloudRunV2Service) ServiceConfig {
	var cfg ServiceConfig
	if service == nil || service.Template == nil {
		return cfg
	}
	tmpl := service.Template

	if vpc := tmpl.VpcAccess; vpc != nil {
		cfg.NetworkIsolated = vpc.Connector != "" || len(vpc.NetworkInterfaces) > 0
	}

	cfg.Timeout = parseTimeout(tmpl.Timeout)

	for _, c := range tmpl.Containers {
		if c == nil {
			continue
		}
		for _, e := range c.Env {
			if e == nil {
				continue
			}
			// Secret Manager references have no inline value
			cfg.Env = append(cfg.Env, EnvVar{Name: e.Name, Value: e.Value})
		}
	}
	return cfg
}

// parseTimeout handles the protobuf JSON duration form ("300s", "3.5s")
func parseTimeout(raw string) *time.Duration {
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		return nil
	}
	return &d
}
