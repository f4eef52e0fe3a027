package jobs

import (
	"fmt"
	"sync"

	"spatia/internal/domain"
)

// Store is the authoritative in-memory list of jobs, newest first. Records are
// replaced whole so readers never observe a half-applied update.
type Store struct {
	mu    sync.RWMutex
	order []string
	jobs  map[string]domain.Job
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{jobs: make(map[string]domain.Job)}
}

// Add inserts a new job at the front of the list.
func (s *Store) Add(job domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; ok {
		return fmt.Errorf("jobs: duplicate id %s", job.ID)
	}
	s.jobs[job.ID] = job
	s.order = append([]string{job.ID}, s.order...)
	return nil
}

// Get returns a copy of the job with the given id.
func (s *Store) Get(id string) (domain.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	return job, ok
}

// List returns all jobs, newest first.
func (s *Store) List() []domain.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Job, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.jobs[id])
	}
	return out
}

// Active returns the jobs that still need polling.
func (s *Store) Active() []domain.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Job
	for _, id := range s.order {
		if job := s.jobs[id]; !job.Status.Terminal() {
			out = append(out, job)
		}
	}
	return out
}

// ActiveCount returns the number of non-terminal jobs.
func (s *Store) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, job := range s.jobs {
		if !job.Status.Terminal() {
			n++
		}
	}
	return n
}

// Remove deletes a job regardless of status. It reports whether the id existed.
func (s *Store) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[id]; !ok {
		return false
	}
	delete(s.jobs, id)
	for i, v := range s.order {
		if v == id {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Apply replaces the job with fn(current) under the write lock. Missing ids
// are left alone and reported with ok=false, so late poll results for removed
// jobs are dropped.
func (s *Store) Apply(id string, fn func(domain.Job) domain.Job) (domain.Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.jobs[id]
	if !ok {
		return domain.Job{}, false
	}
	next := fn(cur)
	next.ID = cur.ID
	s.jobs[id] = next
	return next, true
}
