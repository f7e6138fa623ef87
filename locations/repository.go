// Copyright 2025 The Quiosk Authors
// SPDX-License-Identifier: Apache-2.0

package locations

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Repository persists the complete servable Location set. There is no
// per-record update: an import run replaces the whole set atomically, and
// readers never observe a half-written one.
type Repository interface {
	// Load returns the currently persisted set, empty when nothing has
	// been imported yet.
	Load() ([]Location, error)

	// Replace swaps the persisted set for the given one in a single
	// atomic step.
	Replace(locations []Location) error
}

// FileRepository stores the location set as a JSON array on disk. Replace
// writes to a temp file in the same directory and renames it over the
// target, so a failure mid-run cannot clobber the existing set.
type FileRepository struct {
	path string
}

// NewFileRepository creates a file-backed repository at the given path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{path: path}
}

func (r *FileRepository) Load() ([]Location, error) {
	data, err := os.ReadFile(filepath.Clean(r.path))
	if err != nil {
		// A missing file just means no import has run yet.
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("reading locations file: %w", err)
	}

	if len(data) == 0 {
		return nil, nil
	}

	var ret []Location
	if err := json.Unmarshal(data, &ret); err != nil {
		return nil, fmt.Errorf("unmarshalling locations file: %w", err)
	}

	return ret, nil
}

func (r *FileRepository) Replace(locations []Location) error {
	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("setting up data directory: %w", err)
	}

	if locations == nil {
		locations = []Location{}
	}

	output, err := json.MarshalIndent(locations, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling locations: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".locations-*.json")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	tmpName := tmp.Name()

	if _, err := tmp.Write(append(output, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpName)

		return fmt.Errorf("writing locations: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)

		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmpName, r.path); err != nil {
		os.Remove(tmpName)

		return fmt.Errorf("replacing locations file: %w", err)
	}

	return nil
}
