package stateengine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// saveAtomic serializes s as two-space-indented JSON and replaces path with
// it via sibling-temp-file + fsync + rename, so a crash mid-write never
// leaves a truncated file at path: readers see either the full old file or
// the full new one.
func saveAtomic(path string, s *WorkflowState) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".state-*.json.tmp")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("fsync temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename temp state file into place: %w", err)
	}
	return nil
}

// loadFromDisk parses the WorkflowState at path. A missing file is reported
// via os.IsNotExist so callers can distinguish "no workflow yet" from a real
// I/O failure.
func loadFromDisk(path string) (*WorkflowState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var s WorkflowState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse state file %s: %w", path, err)
	}
	if s.Tasks == nil {
		s.Tasks = map[string]*Task{}
	}
	return &s, nil
}
