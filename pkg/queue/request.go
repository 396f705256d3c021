// Package queue runs scan requests through the rule engine into the finding store.
package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/user/zte-adk/pkg/engine"
)

// DefaultRegion is used when a request names no region
const DefaultRegion = "us-central1"

var ErrInvalidRequest = errors.New("invalid scan request")

// ScanRequest is one inbound queue message
type ScanRequest struct {
	JobID       string `json:"job_id"`
	ServiceName string `json:"service_name"`
	Region      string `json:"region,omitempty"`
	ProjectID   string `json:"project_id,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`
}

// NewScanRequest creates a request with a fresh job id
func NewScanRequest(service, region, project string, now time.Time) ScanRequest {
	return ScanRequest{
		JobID:       uuid.NewString(),
		ServiceName: service,
		Region:      region,
		ProjectID:   project,
		Timestamp:   now.UTC().Format(time.RFC3339),
	}
}

// DecodeScanRequest parses a message and fills region and project defaults
func DecodeScanRequest(data []byte, defaultRegion, defaultProject string) (ScanRequest, error) {
	var req ScanRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return ScanRequest{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return req.withDefaults(defaultRegion, defaultProject)
}

func (r ScanRequest) withDefaults(defaultRegion, defaultProject string) (ScanRequest, error) {
	r.JobID = strings.TrimSpace(r.JobID)
	r.ServiceName = strings.TrimSpace(r.ServiceName)
	if r.Region == "" {
		r.Region = defaultRegion
	}
	if r.Region == "" {
		r.Region = DefaultRegion
	}
	if r.ProjectID == "" {
		r.ProjectID = defaultProject
	}
	return r, r.Validate()
}

// Validate checks the fields the pipeline cannot run without
func (r ScanRequest) Validate() error {
	switch {
	case r.JobID == "":
		return fmt.Errorf("%w: missing job_id", ErrInvalidRequest)
	case r.ServiceName == "":
		return fmt.Errorf("%w: missing service_name", ErrInvalidRequest)
	case r.ProjectID == "":
		return fmt.Errorf("%w: missing project_id", ErrInvalidRequest)
	}
	if err := engine.ValidateJobID(r.JobID); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

// Publisher writes scan requests as JSON lines, the format Consumer reads
type Publisher struct {
	mu sync.Mutex
	w  io.Writer
}

func NewPublisher(w io.Writer) *Publisher {
	return &Publisher{w: w}
}

func (p *Publisher) Publish(req ScanRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err = p.w.Write(append(data, '\n'))
	return err
}
