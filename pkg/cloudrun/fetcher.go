// Package cloudrun reads the live IAM policy and service definition of a
// Cloud Run service through the Cloud Run Admin API v2.
package cloudrun

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-hclog"
	"google.golang.org/api/option"
	run "google.golang.org/api/run/v2"

	"github.com/user/zte-adk/pkg/engine"
)

// Fetcher resolves scan targets to policy facts. Credentials come from
// Application Default Credentials unless options say otherwise.
type Fetcher struct {
	svc    *run.Service
	logger hclog.Logger
}

// NewFetcher creates a Fetcher; opts are passed to the API client
func NewFetcher(ctx context.Context, logger hclog.Logger, opts ...option.ClientOption) (*Fetcher, error) {
	svc, err := run.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Cloud Run client: %w", err)
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Fetcher{svc: svc, logger: logger}, nil
}

// ServiceName builds the fully qualified resource name
func ServiceName(project, region, service string) string {
	return fmt.Sprintf("projects/%s/locations/%s/services/%s", project, region, service)
}

// Fetch returns the raw IAM policy and service definition
func (f *Fetcher) Fetch(ctx context.Context, project, region, service string) (*run.GoogleIamV1Policy, *run.GoogleCloudRunV2Service, error) {
	name := ServiceName(project, region, service)
	f.logger.Debug("fetching service", "name", name)

	svc, err := f.svc.Projects.Locations.Services.Get(name).Context(ctx).Do()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get service %s: %w", name, err)
	}
	policy, err := f.svc.Projects.Locations.Services.GetIamPolicy(name).Context(ctx).Do()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get IAM policy for %s: %w", name, err)
	}
	return policy, svc, nil
}

// Resolve fetches and extracts the facts for one service
func (f *Fetcher) Resolve(ctx context.Context, project, region, service string) ([]engine.PolicyBinding, engine.ServiceConfig, error) {
	policy, svc, err := f.Fetch(ctx, project, region, service)
	if err != nil {
		return nil, engine.ServiceConfig{}, err
	}
	bindings, cfg := engine.Extract(policy, svc)
	return bindings, cfg, nil
}
