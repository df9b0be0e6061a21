package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// runFile is the on-disk layout of the file store
type runFile struct {
	Version int             `json:"version"`
	Runs    map[string]*Run `json:"runs"`
}

// FileStore keeps runs in a single JSON file
type FileStore struct {
	filePath string
	runs     map[string]*Run
	mu       sync.RWMutex
}

// OpenFile loads the store at filePath. A missing file is an empty store.
func OpenFile(filePath string) (*FileStore, error) {
	s := &FileStore{filePath: filePath, runs: make(map[string]*Run)}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if os.IsNotExist(err) {
		s.runs = make(map[string]*Run)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read store file: %w", err)
	}

	var f runFile
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse store file: %w", err)
	}
	if f.Version != StoreFileVersion {
		return fmt.Errorf("unsupported store file version %d (expected %d)", f.Version, StoreFileVersion)
	}
	if f.Runs == nil {
		f.Runs = make(map[string]*Run)
	}

	s.runs = f.Runs
	return nil
}

// persist writes the store atomically: temp file, then rename. Callers hold s.mu.
func (s *FileStore) persist() error {
	data, err := json.MarshalIndent(runFile{Version: StoreFileVersion, Runs: s.runs}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal store: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.filePath), 0755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	tmpFile := s.filePath + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp store file: %w", err)
	}
	if err := os.Rename(tmpFile, s.filePath); err != nil {
		os.Remove(tmpFile)
		return fmt.Errorf("failed to rename temp store file: %w", err)
	}
	return nil
}

// Save adds or replaces a run and writes the file
func (s *FileStore) Save(ctx context.Context, run *Run) error {
	if err := run.validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, existed := s.runs[run.ID]
	s.runs[run.ID] = run
	if err := s.persist(); err != nil {
		if existed {
			s.runs[run.ID] = prev
		} else {
			delete(s.runs, run.ID)
		}
		return err
	}
	return nil
}

// Get returns the run with the given ID
func (s *FileStore) Get(ctx context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return run, nil
}

// List returns run summaries, most recent first
func (s *FileStore) List(ctx context.Context) ([]RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]RunSummary, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, run.Summary())
	}
	sortSummaries(out)
	return out, nil
}

// Delete removes a run
func (s *FileStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.runs[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.runs, id)
	if err := s.persist(); err != nil {
		s.runs[id] = prev
		return err
	}
	return nil
}

// Count returns the number of stored runs
func (s *FileStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.runs)
}

// Close is a no-op; every write is already on disk
func (s *FileStore) Close() error {
	return nil
}

func sortSummaries(out []RunSummary) {
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.After(out[j].StartedAt)
		}
		return out[i].ID < out[j].ID
	})
}
