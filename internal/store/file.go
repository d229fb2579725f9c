package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
)

// FileBackend persists the journal state as a single JSON document written
// atomically (temp file + rename).
type FileBackend struct {
	path string
}

// NewFileBackend creates a backend writing to the given path.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// Read loads the state document. A missing file is an empty journal, not an
// error.
func (b *FileBackend) Read() (State, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return State{}, nil
		}
		return State{}, fmt.Errorf("read journal state: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return State{}, fmt.Errorf("parse journal state: %w", err)
	}
	return state, nil
}

// Write replaces the state document atomically.
func (b *FileBackend) Write(state State) error {
	if err := os.MkdirAll(filepath.Dir(b.path), 0o750); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("encode journal state: %w", err)
	}

	tmp := b.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write journal state: %w", err)
	}
	if err := os.Rename(tmp, b.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace journal state: %w", err)
	}
	return nil
}

// Reset removes the state document.
func (b *FileBackend) Reset() error {
	if err := os.Remove(b.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove journal state: %w", err)
	}
	return nil
}

// Close is a no-op for the file backend.
func (b *FileBackend) Close() error {
	return nil
}
