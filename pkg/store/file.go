package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/user/zte-adk/pkg/engine"
)

const snapshotVersion = 1

type snapshotFile struct {
	Version  int              `json:"version"`
	Findings []engine.Finding `json:"findings"`
}

// FileStore is a MemoryStore persisted to a JSON snapshot after every append
type FileStore struct {
	*MemoryStore
	path string
}

// OpenFileStore loads the snapshot at path, if any
func OpenFileStore(path string) (*FileStore, error) {
	s := &FileStore{MemoryStore: NewMemoryStore(), path: path}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, err
	}

	var snap snapshotFile
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse snapshot %s: %w", path, err)
	}
	for _, f := range snap.Findings {
		if err := f.Validate(); err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", path, err)
		}
		if err := s.appendLocked(f); err != nil {
			return nil, fmt.Errorf("snapshot %s: %w", path, err)
		}
	}
	return s, nil
}

// Append stores f and rewrites the snapshot. The finding is kept in memory
// only if the snapshot write succeeds.
func (s *FileStore) Append(ctx context.Context, f engine.Finding) error {
	if err := f.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.appendLocked(f); err != nil {
		return err
	}
	if err := s.save(); err != nil {
		delete(s.byID, f.ID)
		s.findings = s.findings[:len(s.findings)-1]
		return fmt.Errorf("failed to persist finding %s: %w", f.ID, err)
	}
	return nil
}

// Path returns the snapshot location
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) save() error {
	data, err := json.MarshalIndent(snapshotFile{Version: snapshotVersion, Findings: s.snapshot()}, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".findings-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
