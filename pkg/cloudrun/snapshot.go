package cloudrun

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	run "google.golang.org/api/run/v2"

	"github.com/user/zte-adk/pkg/engine"
)

// Snapshot is an exported service definition and IAM policy, in the Cloud Run
// v2 REST shapes. It lets scans run against saved state without API access.
type Snapshot struct {
	Service *run.GoogleCloudRunV2Service `json:"service"`
	Policy  *run.GoogleIamV1Policy       `json:"policy"`
}

// LoadSnapshot reads a snapshot file written by SaveSnapshot or by hand
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot %s: %w", path, err)
	}
	return &s, nil
}

// SaveSnapshot fetches a service and writes it to path
func (f *Fetcher) SaveSnapshot(ctx context.Context, project, region, service, path string) error {
	policy, svc, err := f.Fetch(ctx, project, region, service)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(Snapshot{Service: svc, Policy: policy}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// SnapshotResolver resolves every target to the same saved snapshot
type SnapshotResolver struct {
	Snapshot *Snapshot
}

func (r *SnapshotResolver) Resolve(ctx context.Context, project, region, service string) ([]engine.PolicyBinding, engine.ServiceConfig, error) {
	if r.Snapshot == nil {
		return nil, engine.ServiceConfig{}, fmt.Errorf("no snapshot loaded")
	}
	bindings, cfg := engine.Extract(r.Snapshot.Policy, r.Snapshot.Service)
	return bindings, cfg, nil
}
