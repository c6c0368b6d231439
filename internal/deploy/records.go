package deploy

import (
	"sync"
	"time"

	t "miniforge/internal/types"
)

// RecordStore is the orchestrator-owned map of project id to its latest
// deployment record. It replaces any ambient process-global registry so
// ownership stays explicit and tests can hold their own instance.
type RecordStore struct {
	mu   sync.RWMutex
	byID map[string]*t.DeploymentRecord
}

func NewRecordStore() *RecordStore {
	return &RecordStore{byID: map[string]*t.DeploymentRecord{}}
}

func (s *RecordStore) Get(projectID string) (*t.DeploymentRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byID[projectID]
	return rec, ok
}

func (s *RecordStore) Put(rec *t.DeploymentRecord) {
	if rec == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.UpdatedAt = time.Now()
	s.byID[rec.ProjectID] = rec
}

// Update mutates the stored record for projectID under the lock.
func (s *RecordStore) Update(projectID string, fn func(*t.DeploymentRecord)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.byID[projectID]
	if !ok {
		return false
	}
	fn(rec)
	rec.UpdatedAt = time.Now()
	return true
}
