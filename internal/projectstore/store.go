// Package projectstore holds each project's current file set. The pipeline
// reads it; pipeline and orchestrator writes supersede it wholesale.
package projectstore

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	t "miniforge/internal/types"
)

var ErrUnknownProject = errors.New("projectstore: unknown project")

// Store reads and writes a project's file set, keyed by project id.
type Store interface {
	Files(ctx context.Context, projectID string) ([]t.ProjectFile, error)
	SaveFiles(ctx context.Context, projectID string, files []t.ProjectFile) error
}

// MemoryStore ---------------------------------------------------------------------

type MemoryStore struct {
	mu   sync.RWMutex
	byID map[string][]t.ProjectFile
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byID: map[string][]t.ProjectFile{}}
}

func (s *MemoryStore) Files(_ context.Context, projectID string) ([]t.ProjectFile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	files, ok := s.byID[projectID]
	if !ok {
		return nil, ErrUnknownProject
	}
	cp := make([]t.ProjectFile, len(files))
	copy(cp, files)
	return cp, nil
}

func (s *MemoryStore) SaveFiles(_ context.Context, projectID string, files []t.ProjectFile) error {
	cp := make([]t.ProjectFile, len(files))
	copy(cp, files)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[projectID] = cp
	return nil
}

// DirStore ------------------------------------------------------------------------

// DirStore keeps each project as a directory tree under root, one file per
// ProjectFile. Saving replaces the whole tree; files are not versioned in
// place.
type DirStore struct {
	root string
}

func NewDirStore(root string) *DirStore { return &DirStore{root: root} }

func (s *DirStore) Files(_ context.Context, projectID string) ([]t.ProjectFile, error) {
	dir := filepath.Join(s.root, projectID)
	if _, err := os.Stat(dir); err != nil {
		return nil, ErrUnknownProject
	}
	var files []t.ProjectFile
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files = append(files, t.ProjectFile{
			Filename: filepath.ToSlash(rel),
			Content:  string(content),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Filename < files[j].Filename })
	return files, nil
}

func (s *DirStore) SaveFiles(_ context.Context, projectID string, files []t.ProjectFile) error {
	dir := filepath.Join(s.root, projectID)
	tmp := dir + ".next"
	if err := os.RemoveAll(tmp); err != nil {
		return err
	}
	for _, f := range files {
		name := filepath.FromSlash(strings.TrimLeft(f.Filename, "/"))
		path := filepath.Join(tmp, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(f.Content), 0o644); err != nil {
			return err
		}
	}
	if err := os.RemoveAll(dir); err != nil {
		return err
	}
	return os.Rename(tmp, dir)
}
