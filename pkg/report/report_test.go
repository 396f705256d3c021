package report

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/zte-adk/pkg/engine"
	"github.com/user/zte-adk/pkg/synthesis"
)

var generatedAt = time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)

func sampleFindings() []engine.Finding {
	return []engine.Finding{
		{
			ID: "job-1-a", JobID: "job-1", RuleID: engine.RuleNoNetworkIsolation, Severity: engine.SeverityMedium,
			ResourceType: engine.ResourceVPCConfig, ResourceName: "payments", IssueDescription: "Service has no VPC connector configured",
			Recommendation: "Configure VPC connector", RiskScore: engine.IntPtr(55), CreatedAt: generatedAt,
		},
		{
			ID: "job-1-b", JobID: "job-1", RuleID: engine.RulePublicInvocation, Severity: engine.SeverityCritical,
			ResourceType: engine.ResourceCloudRunService, ResourceName: "payments", IssueDescription: "Service allows unauthenticated access",
			Recommendation: "Remove allUsers", RiskScore: engine.IntPtr(95), AffectedResources: []string{"roles/run.invoker"}, CreatedAt: generatedAt,
		},
		{
			ID: "job-1-c", JobID: "job-1", Severity: engine.SeverityLow,
			ResourceType: engine.ResourceServiceAccount, ResourceName: "payments", IssueDescription: "Default compute service account",
			Recommendation: "Use a dedicated identity", CreatedAt: generatedAt,
		},
	}
}

func newBuilder(t *testing.T) *Builder {
	rem, err := engine.NewDefaultRemediationEngine()
	require.NoError(t, err)
	comp, err := engine.NewDefaultComplianceEngine()
	require.NoError(t, err)
	return &Builder{
		Remediation: rem,
		Compliance:  comp,
		Project:     "p1",
		Region:      "us-central1",
		Now:         func() time.Time { return generatedAt },
	}
}

func TestBuild(t *testing.T) {
	synth := synthesis.New(nil)
	findings := sampleFindings()
	proposal := synth.GenerateFixProposal(context.Background(), findings)
	summary := synth.GenerateScanSummary(context.Background(), findings)

	r := newBuilder(t).Build("job-1", findings, proposal, &summary)

	assert.Equal(t, "job-1", r.JobID)
	assert.Equal(t, generatedAt, r.GeneratedAt)
	assert.Equal(t, 3, r.Summary.TotalFindings)
	assert.Equal(t, synthesis.RiskMedium, r.Summary.OverallRisk)
	assert.False(t, r.Summary.AIPowered)
	assert.Equal(t, synthesis.FallbackModel, r.Summary.AIModel)
	assert.Equal(t, []string{"job-1-b", "job-1-a", "job-1-c"}, []string{r.Findings[0].ID, r.Findings[1].ID, r.Findings[2].ID})
	assert.Equal(t, ImplementationPhases, r.Recommendations.ImplementationPhases)
	assert.Equal(t, engine.Severities, r.Recommendations.PriorityOrder)

	require.Len(t, r.RemediationPlans, 3)
	public := r.RemediationPlans[0]
	require.NotNil(t, public.Plan)
	assert.Contains(t, public.Plan.Fix, "payments")
	assert.Contains(t, public.Plan.Fix, "p1")
	assert.NotEmpty(t, public.Controls)

	// findings without a rule get neither a plan nor controls
	assert.Nil(t, r.RemediationPlans[2].Plan)
	assert.Empty(t, r.RemediationPlans[2].Controls)

	// input order untouched
	assert.Equal(t, "job-1-a", findings[0].ID)
}

func TestFileSinkIsWriteOnce(t *testing.T) {
	dir := t.TempDir()
	sink := &FileSink{Dir: dir}
	r := newBuilder(t).Build("job-1", sampleFindings(), synthesis.New(nil).GenerateFixProposal(context.Background(), nil), nil)

	loc, err := sink.Write(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "proposals", "job-1", "report.json"), loc)

	data, err := os.ReadFile(loc)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "job-1", decoded["job_id"])
	assert.Contains(t, decoded, "ai_proposals")
	assert.NotContains(t, decoded, "executive_summary")
	summary := decoded["summary"].(map[string]any)
	assert.Equal(t, float64(3), summary["total_findings"])
	assert.Equal(t, map[string]any{"CRITICAL": 1.0, "HIGH": 0.0, "MEDIUM": 1.0, "LOW": 1.0}, summary["severity_counts"])

	_, err = sink.Write(context.Background(), r)
	assert.ErrorIs(t, err, ErrReportExists)

	_, err = sink.Write(context.Background(), Report{})
	assert.Error(t, err)
}

type fakeS3 struct {
	s3iface.S3API
	existing map[string]bool
	headErr  error
}

func (f *fakeS3) HeadObjectWithContext(ctx aws.Context, in *s3.HeadObjectInput, opts ...request.Option) (*s3.HeadObjectOutput, error) {
	if f.headErr != nil {
		return nil, f.headErr
	}
	if f.existing[aws.StringValue(in.Key)] {
		return &s3.HeadObjectOutput{}, nil
	}
	return nil, awserr.New("NotFound", "Not Found", nil)
}

type fakeUploader struct {
	uploads map[string][]byte
}

func (u *fakeUploader) Upload(in *s3manager.UploadInput, opts ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error) {
	return u.UploadWithContext(context.Background(), in, opts...)
}

func (u *fakeUploader) UploadWithContext(ctx aws.Context, in *s3manager.UploadInput, opts ...func(*s3manager.Uploader)) (*s3manager.UploadOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	u.uploads[aws.StringValue(in.Bucket)+"/"+aws.StringValue(in.Key)] = data
	return &s3manager.UploadOutput{Location: "https://example/" + aws.StringValue(in.Key)}, nil
}

func TestS3Sink(t *testing.T) {
	client := &fakeS3{existing: map[string]bool{"proposals/job-old/report.json": true}}
	uploader := &fakeUploader{uploads: map[string][]byte{}}
	sink := &S3Sink{Bucket: "reports", Client: client, Uploader: uploader}

	loc, err := sink.Write(context.Background(), Report{JobID: "job-1"})
	require.NoError(t, err)
	assert.Equal(t, "s3://reports/proposals/job-1/report.json", loc)
	assert.Contains(t, string(uploader.uploads["reports/proposals/job-1/report.json"]), `"job_id": "job-1"`)

	_, err = sink.Write(context.Background(), Report{JobID: "job-old"})
	assert.ErrorIs(t, err, ErrReportExists)

	client.headErr = awserr.New("AccessDenied", "denied", nil)
	_, err = sink.Write(context.Background(), Report{JobID: "job-2"})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrReportExists)
	assert.Len(t, uploader.uploads, 1)
}

func TestSinksRejectUnsafeJobIDs(t *testing.T) {
	dir := t.TempDir()
	uploader := &fakeUploader{uploads: map[string][]byte{}}
	sinks := map[string]Sink{
		"file": &FileSink{Dir: filepath.Join(dir, "reports")},
		"s3":   &S3Sink{Bucket: "reports", Client: &fakeS3{existing: map[string]bool{}}, Uploader: uploader},
	}

	for name, sink := range sinks {
		for _, id := range []string{"../../../tmp/evil", "a/b", `a\b`, "..", ""} {
			_, err := sink.Write(context.Background(), Report{JobID: id})
			assert.ErrorIs(t, err, engine.ErrInvalidJobID, "%s %q", name, id)
		}
	}
	assert.Empty(t, uploader.uploads)
	assert.NoDirExists(t, filepath.Join(dir, "tmp"))
	assert.NoDirExists(t, filepath.Join(dir, "reports"))
}

func TestWriteSARIF(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSARIF(&buf, sampleFindings()))

	var doc struct {
		Version string `json:"version"`
		Runs    []struct {
			Tool struct {
				Driver struct {
					Name  string `json:"name"`
					Rules []struct {
						ID string `json:"id"`
					} `json:"rules"`
				} `json:"driver"`
			} `json:"tool"`
			Results []struct {
				RuleID string `json:"ruleId"`
				Level  string `json:"level"`
			} `json:"results"`
		} `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "2.1.0", doc.Version)
	require.Len(t, doc.Runs, 1)
	assert.Equal(t, toolName, doc.Runs[0].Tool.Driver.Name)
	assert.Len(t, doc.Runs[0].Tool.Driver.Rules, 3)

	levels := map[string]string{}
	for _, r := range doc.Runs[0].Results {
		levels[r.RuleID] = r.Level
	}
	assert.Equal(t, map[string]string{
		engine.RuleNoNetworkIsolation:         "warning",
		engine.RulePublicInvocation:           "error",
		string(engine.ResourceServiceAccount): "note",
	}, levels)
}
