package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/user/zte-adk/pkg/engine"
)

// MemoryStore holds findings in process memory
type MemoryStore struct {
	mu       sync.RWMutex
	findings []engine.Finding
	byID     map[string]int
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		findings: make([]engine.Finding, 0),
		byID:     make(map[string]int),
	}
}

// Append validates f and stores it; an id seen before is rejected
func (s *MemoryStore) Append(ctx context.Context, f engine.Finding) error {
	if err := f.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(f)
}

func (s *MemoryStore) appendLocked(f engine.Finding) error {
	if _, exists := s.byID[f.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicate, f.ID)
	}
	s.byID[f.ID] = len(s.findings)
	s.findings = append(s.findings, f.Clone())
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, jobID string, opts QueryOptions) ([]engine.Finding, error) {
	s.mu.RLock()
	var out []engine.Finding
	for _, f := range s.findings {
		if f.JobID != jobID {
			continue
		}
		if opts.Severity != nil && f.Severity != *opts.Severity {
			continue
		}
		out = append(out, f.Clone())
	}
	s.mu.RUnlock()
	return orderFindings(out, opts), nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (engine.Finding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.byID[id]
	if !ok {
		return engine.Finding{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.findings[i].Clone(), nil
}

func (s *MemoryStore) ListJobs(ctx context.Context, limit int) ([]JobSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return summarizeJobs(s.findings, limit), nil
}

// Len returns the number of stored findings
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.findings)
}

func (s *MemoryStore) Close() error {
	return nil
}

// snapshot copies the stored findings in append order
func (s *MemoryStore) snapshot() []engine.Finding {
	return append([]engine.Finding(nil), s.findings...)
}
