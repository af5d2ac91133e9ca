package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/ahmetcoskunkizilkaya/reportbot/internal/models"
)

// FileStore keeps all reports in a single JSON array and rewrites the whole
// file on every mutation. It is meant for small communities; there is no
// indexing.
type FileStore struct {
	mu   sync.RWMutex
	path string
}

var _ Store = (*FileStore)(nil)

// NewFileStore prepares path for use. A missing file is created holding an
// empty array. A file that cannot be parsed is moved to path+".corrupt" and
// replaced by an empty array.
func NewFileStore(path string) (*FileStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create reports directory: %w", err)
		}
	}

	s := &FileStore{path: path}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := s.write(nil); err != nil {
			return nil, err
		}
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("read reports file: %w", err)
	}

	if _, err := decode(data); err != nil {
		backup := path + ".corrupt"
		slog.Warn("reports file is corrupt, starting empty", "path", path, "backup", backup, "error", err)
		if err := os.Rename(path, backup); err != nil {
			return nil, fmt.Errorf("move corrupt reports file: %w", err)
		}
		if err := s.write(nil); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) LoadAll(_ context.Context) ([]models.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read()
}

func (s *FileStore) Get(_ context.Context, id int64) (models.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reports, err := s.read()
	if err != nil {
		return models.Report{}, err
	}
	for _, r := range reports {
		if r.ID == id {
			return r, nil
		}
	}
	return models.Report{}, ErrNotFound
}

func (s *FileStore) Append(_ context.Context, report models.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reports, err := s.read()
	if err != nil {
		return err
	}
	for _, r := range reports {
		if r.ID == report.ID {
			return fmt.Errorf("%w: %d", ErrDuplicateID, report.ID)
		}
	}
	return s.write(append(reports, report))
}

func (s *FileStore) Update(_ context.Context, id int64, mutate MutateFunc) (models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reports, err := s.read()
	if err != nil {
		return models.Report{}, err
	}
	for i := range reports {
		if reports[i].ID != id {
			continue
		}
		updated := reports[i]
		if err := mutate(&updated); err != nil {
			return models.Report{}, err
		}
		updated.ID = id
		reports[i] = updated
		if err := s.write(reports); err != nil {
			return models.Report{}, err
		}
		return updated, nil
	}
	return models.Report{}, ErrNotFound
}

func (s *FileStore) NextID(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reports, err := s.read()
	if err != nil {
		return 0, err
	}
	return nextID(reports), nil
}

func (s *FileStore) Ping(_ context.Context) error {
	_, err := os.Stat(s.path)
	return err
}

func (s *FileStore) Close() error {
	return nil
}

// read loads the file. Unparseable content is reported as an empty
// collection; only I/O failures are errors.
func (s *FileStore) read() ([]models.Report, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read reports file: %w", err)
	}

	reports, err := decode(data)
	if err != nil {
		slog.Warn("reports file unparseable, treating as empty", "path", s.path, "error", err)
		return nil, nil
	}
	sort.SliceStable(reports, func(i, j int) bool { return reports[i].ID < reports[j].ID })
	return reports, nil
}

// write replaces the file atomically (temp file + rename).
func (s *FileStore) write(reports []models.Report) error {
	if reports == nil {
		reports = []models.Report{}
	}
	data, err := json.MarshalIndent(reports, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal reports: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func decode(data []byte) ([]models.Report, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	var reports []models.Report
	if err := json.Unmarshal(data, &reports); err != nil {
		return nil, err
	}
	return reports, nil
}
