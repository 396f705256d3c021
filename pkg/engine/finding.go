package engine

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ResourceType names the kind of resource a finding is about
type ResourceType string

const (
	ResourceCloudRunService ResourceType = "Cloud Run Service"
	ResourceCloudRunConfig  ResourceType = "Cloud Run Configuration"
	ResourceIAMPolicy       ResourceType = "IAM Policy"
	ResourceVPCConfig       ResourceType = "VPC Configuration"
	ResourceServiceAccount  ResourceType = "Service Account"
)

// ErrIncompleteFinding is returned when a finding lacks a field required for persistence
var ErrIncompleteFinding = errors.New("incomplete finding")

// ErrInvalidJobID is returned for job ids that cannot be used as a single path segment
var ErrInvalidJobID = errors.New("invalid job id")

// ValidateJobID rejects empty ids and ids with path separators or "..";
// job ids become report paths and object keys.
func ValidateJobID(id string) error {
	switch {
	case id == "":
		return fmt.Errorf("%w: empty", ErrInvalidJobID)
	case strings.ContainsAny(id, `/\`), strings.Contains(id, ".."):
		return fmt.Errorf("%w: %q", ErrInvalidJobID, id)
	}
	return nil
}

// Fragment is the output of a single rule before it becomes a Finding.
// It has no identity, job or timestamp yet.
type Fragment struct {
	RuleID            string
	Severity          Severity
	ResourceType      ResourceType
	Issue             string
	Recommendation    string
	RiskScore         int
	BlastRadius       string
	AffectedResources []string
}

// Finding is one detected security issue for a scanned resource.
// Findings are never edited after creation; corrections are new findings.
type Finding struct {
	ID                string       `json:"id"`
	JobID             string       `json:"job_id"`
	RuleID            string       `json:"rule_id,omitempty"`
	Severity          Severity     `json:"severity"`
	ResourceType      ResourceType `json:"resource_type"`
	ResourceName      string       `json:"resource_name"`
	IssueDescription  string       `json:"issue_description"`
	Recommendation    string       `json:"recommendation"`
	RiskScore         *int         `json:"risk_score,omitempty"`
	BlastRadius       string       `json:"blast_radius,omitempty"`
	AffectedResources []string     `json:"affected_resources,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
}

// NewFinding turns a rule fragment into a complete finding for the given job
func NewFinding(jobID, resourceName string, frag Fragment, now time.Time) Finding {
	score := frag.RiskScore
	var affected []string
	if len(frag.AffectedResources) > 0 {
		affected = append([]string(nil), frag.AffectedResources...)
	}
	return Finding{
		ID:                fmt.Sprintf("%s-%s", jobID, uuid.NewString()),
		JobID:             jobID,
		RuleID:            frag.RuleID,
		Severity:          frag.Severity,
		ResourceType:      frag.ResourceType,
		ResourceName:      resourceName,
		IssueDescription:  frag.Issue,
		Recommendation:    frag.Recommendation,
		RiskScore:         &score,
		BlastRadius:       frag.BlastRadius,
		AffectedResources: affected,
		CreatedAt:         now.UTC(),
	}
}

// Validate rejects findings that must never reach a store
func (f Finding) Validate() error {
	switch {
	case f.ID == "":
		return fmt.Errorf("%w: missing id", ErrIncompleteFinding)
	case f.JobID == "":
		return fmt.Errorf("%w: %s: missing job id", ErrIncompleteFinding, f.ID)
	case !f.Severity.Valid():
		return fmt.Errorf("%w: %s: invalid severity %q", ErrIncompleteFinding, f.ID, f.Severity)
	case f.RiskScore == nil:
		return fmt.Errorf("%w: %s: missing risk score", ErrIncompleteFinding, f.ID)
	case *f.RiskScore < 0 || *f.RiskScore > 100:
		return fmt.Errorf("%w: %s: risk score %d out of range", ErrIncompleteFinding, f.ID, *f.RiskScore)
	case f.CreatedAt.IsZero():
		return fmt.Errorf("%w: %s: missing created_at", ErrIncompleteFinding, f.ID)
	}
	return nil
}

// Score returns the risk score, falling back to the severity default
func (f Finding) Score() int {
	if f.RiskScore != nil {
		return *f.RiskScore
	}
	return f.Severity.DefaultRiskScore()
}

// Clone returns a copy that shares no memory with f
func (f Finding) Clone() Finding {
	if f.RiskScore != nil {
		f.RiskScore = IntPtr(*f.RiskScore)
	}
	if f.AffectedResources != nil {
		f.AffectedResources = append([]string(nil), f.AffectedResources...)
	}
	return f
}

// IntPtr is a helper for building findings with literal scores
func IntPtr(v int) *int {
	return &v
}
