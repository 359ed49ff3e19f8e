package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Ananth-NQI/sessiongate/internal/models"
)

// FileStore keeps the session document as one JSON file
type FileStore struct {
	path string
}

// NewFileStore creates a store for the JSON document at path
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (f *FileStore) Path() string {
	return f.path
}

// Load reads the document; a missing or empty file is an empty store
func (f *FileStore) Load(_ context.Context) (models.Sessions, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return make(models.Sessions), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session store: %w", err)
	}
	if len(data) == 0 {
		return make(models.Sessions), nil
	}

	sessions := make(models.Sessions)
	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, fmt.Errorf("failed to parse session store %s: %w", f.path, err)
	}
	for k, v := range sessions {
		if v == nil {
			delete(sessions, k)
		}
	}
	return sessions, nil
}

// Save rewrites the whole document through a temp file and rename
func (f *FileStore) Save(_ context.Context, sessions models.Sessions) error {
	if sessions == nil {
		sessions = make(models.Sessions)
	}
	data, err := json.MarshalIndent(sessions, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal: %v", ErrSave, err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("%w: create directory: %v", ErrSave, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", ErrSave, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write: %v", ErrSave, err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: chmod: %v", ErrSave, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: close: %v", ErrSave, err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("%w: rename: %v", ErrSave, err)
	}
	return nil
}
