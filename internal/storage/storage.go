package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"meal-mailer/internal/history"
	"meal-mailer/internal/recipe"
)

// RecipeStore provides file-based storage for the recipe collection.
type RecipeStore struct {
	path string
}

// NewRecipeStore creates a RecipeStore backed by the JSON file at path.
func NewRecipeStore(path string) *RecipeStore {
	return &RecipeStore{path: path}
}

// Path returns the file the store reads and writes.
func (s *RecipeStore) Path() string {
	return s.path
}

// Load reads the full recipe collection. A missing or malformed file is an error.
func (s *RecipeStore) Load() ([]recipe.Recipe, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read recipe file: %w", err)
	}

	var recipes []recipe.Recipe
	if err := json.Unmarshal(data, &recipes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal recipes from %s: %w", s.path, err)
	}
	return recipes, nil
}

// Exists reports whether the recipe file is present.
func (s *RecipeStore) Exists() bool {
	_, err := os.Stat(s.path)
	return !os.IsNotExist(err)
}

// Save replaces the recipe file with the given collection.
func (s *RecipeStore) Save(recipes []recipe.Recipe) error {
	if recipes == nil {
		recipes = []recipe.Recipe{}
	}
	if err := writeJSONAtomic(s.path, recipes); err != nil {
		return fmt.Errorf("failed to write recipe file: %w", err)
	}
	return nil
}

// HistoryStore keeps the previous day's meals in a JSON file.
type HistoryStore struct {
	path string
}

// NewHistoryStore creates a HistoryStore backed by the JSON file at path.
func NewHistoryStore(path string) *HistoryStore {
	return &HistoryStore{path: path}
}

// Load returns the stored records. A missing file means no history yet.
func (s *HistoryStore) Load() ([]history.Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []history.Record{}, nil
		}
		return nil, fmt.Errorf("failed to read history file: %w", err)
	}

	var records []history.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal history from %s: %w", s.path, err)
	}
	if records == nil {
		records = []history.Record{}
	}
	return records, nil
}

// Save overwrites the history with records.
func (s *HistoryStore) Save(records []history.Record) error {
	if records == nil {
		records = []history.Record{}
	}
	if err := writeJSONAtomic(s.path, records); err != nil {
		return fmt.Errorf("failed to write history file: %w", err)
	}
	return nil
}

// writeJSONAtomic writes v as indented JSON to a temp file next to path and
// renames it into place, so readers never see a partial file.
func writeJSONAtomic(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		return fmt.Errorf("failed to chmod temp file: %w", err)
	}
	return os.Rename(tmpName, path)
}
