package jobqueue

import (
	"context"
	"sort"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	t "miniforge/internal/types"
)

// MemoryStore is the in-process Store used for local runs and tests. Claim
// atomicity comes from the single mutex; terminal jobs additionally sit in an
// LRU read cache so status polling after a sweep still answers.
type MemoryStore struct {
	mu       sync.Mutex
	byID     map[string]t.GenerationJob
	terminal *lru.Cache[string, t.GenerationJob]
}

func NewMemoryStore() *MemoryStore {
	cache, _ := lru.New[string, t.GenerationJob](1024)
	return &MemoryStore{
		byID:     map[string]t.GenerationJob{},
		terminal: cache,
	}
}

func (s *MemoryStore) Create(_ context.Context, job t.GenerationJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[job.ID] = job
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (t.GenerationJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.byID[id]; ok {
		return job, nil
	}
	if job, ok := s.terminal.Get(id); ok {
		return job, nil
	}
	return t.GenerationJob{}, ErrNotFound
}

func (s *MemoryStore) Claim(_ context.Context, id string) (t.GenerationJob, ClaimResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" {
		oldest := ""
		var oldestAt time.Time
		for jid, job := range s.byID {
			if job.Status != t.JobPending {
				continue
			}
			if oldest == "" || job.CreatedAt.Before(oldestAt) {
				oldest, oldestAt = jid, job.CreatedAt
			}
		}
		if oldest == "" {
			return t.GenerationJob{}, ClaimNotFound, nil
		}
		id = oldest
	}

	job, ok := s.byID[id]
	if !ok {
		return t.GenerationJob{}, ClaimNotFound, nil
	}
	if job.Status != t.JobPending {
		return job, ClaimAlreadyClaimed, nil
	}
	now := time.Now()
	job.Status = t.JobProcessing
	job.StartedAt = &now
	s.byID[id] = job
	return job, Claimed, nil
}

func (s *MemoryStore) Complete(_ context.Context, id, result string) error {
	return s.finish(id, t.JobCompleted, result, "")
}

func (s *MemoryStore) Fail(_ context.Context, id, errMsg string) error {
	return s.finish(id, t.JobFailed, "", errMsg)
}

func (s *MemoryStore) ReportFailure(_ context.Context, id, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.byID[id]
	if !ok {
		if job, ok = s.terminal.Get(id); !ok {
			return ErrNotFound
		}
	}
	job.Status = t.JobFailed
	job.Error = mergeError(job.Error, errMsg)
	now := time.Now()
	job.CompletedAt = &now
	s.byID[id] = job
	s.terminal.Add(id, job)
	return nil
}

func (s *MemoryStore) ListPending(_ context.Context) ([]JobSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []JobSummary
	for _, job := range s.byID {
		if job.Status != t.JobPending {
			continue
		}
		out = append(out, JobSummary{ID: job.ID, UserID: job.UserID, Status: job.Status, CreatedAt: job.CreatedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) Sweep(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, job := range s.byID {
		if now.After(job.ExpiresAt) {
			if job.Terminal() {
				s.terminal.Add(id, job)
			}
			delete(s.byID, id)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) finish(id string, status t.JobStatus, result, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now()
	job.Status = status
	job.Result = result
	job.Error = errMsg
	job.CompletedAt = &now
	s.byID[id] = job
	s.terminal.Add(id, job)
	return nil
}

func mergeError(existing, add string) string {
	if existing == "" {
		return add
	}
	if add == "" {
		return existing
	}
	return existing + "; " + add
}
