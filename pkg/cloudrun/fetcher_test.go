package cloudrun

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"

	"github.com/user/zte-adk/pkg/engine"
)

func TestResolveAgainstFakeAPI(t *testing.T) {
	const name = "/v2/projects/p1/locations/us-central1/services/payments"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case name:
			_, _ = w.Write([]byte(`{
				"name": "projects/p1/locations/us-central1/services/payments",
				"template": {
					"timeout": "900s",
					"containers": [{"env": [{"name": "DB_PASSWORD", "value": "x"}, {"name": "PORT", "value": "8080"}]}]
				}
			}`))
		case name + ":getIamPolicy":
			_, _ = w.Write([]byte(`{"bindings": [{"role": "roles/run.invoker", "members": ["allUsers"]}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f, err := NewFetcher(context.Background(), nil,
		option.WithEndpoint(srv.URL), option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	bindings, cfg, err := f.Resolve(context.Background(), "p1", "us-central1", "payments")
	require.NoError(t, err)
	require.Len(t, bindings, 1)
	assert.True(t, bindings[0].IsPublic())
	assert.False(t, cfg.NetworkIsolated)
	require.NotNil(t, cfg.Timeout)
	assert.Equal(t, 900.0, cfg.Timeout.Seconds())
	assert.Len(t, cfg.Env, 2)

	frags := engine.NewEngine().Evaluate(bindings, cfg)
	assert.Len(t, frags, 4)

	_, _, err = f.Resolve(context.Background(), "p1", "us-central1", "missing")
	assert.Error(t, err)
}

func TestServiceName(t *testing.T) {
	assert.Equal(t, "projects/p/locations/r/services/s", ServiceName("p", "r", "s"))
}

func TestSnapshotResolver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snapshot.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"service": {"template": {"vpcAccess": {"connector": "projects/p1/locations/us-central1/connectors/c1"}, "timeout": "60s"}},
		"policy": {"bindings": [{"role": "roles/owner", "members": ["user:a@example.com"]}, {"members": ["user:b@example.com"]}]}
	}`), 0600))

	snap, err := LoadSnapshot(path)
	require.NoError(t, err)

	r := &SnapshotResolver{Snapshot: snap}
	bindings, cfg, err := r.Resolve(context.Background(), "p1", "us-central1", "payments")
	require.NoError(t, err)
	assert.Len(t, bindings, 2)
	assert.Equal(t, 1, engine.SkippedBindings(bindings))
	assert.True(t, cfg.NetworkIsolated)

	frags := engine.NewEngine().Evaluate(bindings, cfg)
	require.Len(t, frags, 1)
	assert.Equal(t, engine.SeverityHigh, frags[0].Severity)
}

func TestLoadSnapshotErrors(t *testing.T) {
	_, err := LoadSnapshot(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0600))
	_, err = LoadSnapshot(path)
	assert.ErrorContains(t, err, "failed to parse snapshot")

	_, _, err = (&SnapshotResolver{}).Resolve(context.Background(), "p", "r", "s")
	assert.Error(t, err)
}
