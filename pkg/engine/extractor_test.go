package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	run "google.golang.org/api/run/v2"
)

func TestExtractFullService(t *testing.T) {
	policy := &run.GoogleIamV1Policy{
		Bindings: []*run.GoogleIamV1Binding{
			{Role: "roles/run.invoker", Members: []string{"allUsers", "allUsers", "user:a@x.com"}},
			nil,
			{Role: "", Members: []string{"user:b@x.com"}},
		},
	}
	service := &run.GoogleCloudRunV2Service{
		Template: &run.GoogleCloudRunV2RevisionTemplate{
			Timeout:   "900s",
			VpcAccess: &run.GoogleCloudRunV2VpcAccess{Connector: "projects/p/locations/r/connectors/c"},
			Containers: []*run.GoogleCloudRunV2Container{
				{Env: []*run.GoogleCloudRunV2EnvVar{{Name: "API_KEY", Value: "abc"}, nil}},
				{Env: []*run.GoogleCloudRunV2EnvVar{{Name: "PORT", Value: "8080"}}},
			},
		},
	}

	bindings, cfg := Extract(policy, service)

	require.Len(t, bindings, 2)
	assert.Equal(t, []string{"allUsers", "user:a@x.com"}, bindings[0].Members)
	assert.Equal(t, "", bindings[1].Role)

	assert.True(t, cfg.NetworkIsolated)
	require.NotNil(t, cfg.Timeout)
	assert.Equal(t, 900*time.Second, *cfg.Timeout)
	assert.Equal(t, []EnvVar{{Name: "API_KEY", Value: "abc"}, {Name: "PORT", Value: "8080"}}, cfg.Env)
}

func TestExtractToleratesMissingFields(t *testing.T) {
	testCases := []struct {
		name    string
		service *run.GoogleCloudRunV2Service
	}{
		{"nil service", nil},
		{"nil template", &run.GoogleCloudRunV2Service{}},
		{"empty template", &run.GoogleCloudRunV2Service{Template: &run.GoogleCloudRunV2RevisionTemplate{}}},
		{"bad timeout", &run.GoogleCloudRunV2Service{Template: &run.GoogleCloudRunV2RevisionTemplate{Timeout: "forever"}}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			bindings, cfg := Extract(nil, tc.service)
			assert.Empty(t, bindings)
			assert.False(t, cfg.NetworkIsolated)
			assert.Nil(t, cfg.Timeout)
			assert.Empty(t, cfg.Env)
		})
	}
}

func TestExtractDirectVPCEgress(t *testing.T) {
	service := &run.GoogleCloudRunV2Service{
		Template: &run.GoogleCloudRunV2RevisionTemplate{
			VpcAccess: &run.GoogleCloudRunV2VpcAccess{
				NetworkInterfaces: []*run.GoogleCloudRunV2NetworkInterface{{Network: "default"}},
			},
		},
	}
	assert.True(t, ExtractServiceConfig(service).NetworkIsolated)

	empty := &run.GoogleCloudRunV2Service{
		Template: &run.GoogleCloudRunV2RevisionTemplate{VpcAccess: &run.GoogleCloudRunV2VpcAccess{}},
	}
	assert.False(t, ExtractServiceConfig(empty).NetworkIsolated)
}
