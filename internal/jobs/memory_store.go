package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"pricewise/internal/domain/job"
	"pricewise/internal/metrics"
	"pricewise/pkg/errors"
)

// MemoryStore keeps jobs in process. All mutations happen under one lock,
// which makes each read-modify-write atomic per job.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]*job.Job
	now  func() time.Time
}

var _ job.Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs: make(map[string]*job.Job),
		now:  time.Now,
	}
}

// WithClock overrides the time source, used by tests.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) Start(_ context.Context, ownerID string) (*job.Job, error) {
	if ownerID == "" {
		return nil, errors.Wrap(errors.ErrInvalidInput, "owner id is required")
	}

	j := job.New(uuid.NewString(), ownerID, s.now())

	s.mu.Lock()
	s.jobs[j.ID] = j
	size := len(s.jobs)
	s.mu.Unlock()

	metrics.JobsTracked.Set(float64(size))
	return j.Clone(), nil
}

func (s *MemoryStore) Update(_ context.Context, id string, patch job.Patch) (*job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, errors.Wrapf(errors.ErrJobNotFound, "job %s", id)
	}
	j.Apply(patch, s.now())
	return j.Clone(), nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, errors.Wrapf(errors.ErrJobNotFound, "job %s", id)
	}
	return j.Clone(), nil
}

func (s *MemoryStore) LatestForOwner(_ context.Context, ownerID string) (*job.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *job.Job
	for _, j := range s.jobs {
		if j.OwnerID != ownerID {
			continue
		}
		if latest == nil || j.StartedAt.After(latest.StartedAt) {
			latest = j
		}
	}
	if latest == nil {
		return nil, errors.Wrapf(errors.ErrJobNotFound, "no jobs for owner %s", ownerID)
	}
	return latest.Clone(), nil
}

func (s *MemoryStore) Cancel(_ context.Context, id string) (*job.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, errors.Wrapf(errors.ErrJobNotFound, "job %s", id)
	}
	j.RequestCancel(s.now())
	return j.Clone(), nil
}

func (s *MemoryStore) Evict(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	evicted := 0
	for id, j := range s.jobs {
		if j.StartedAt.Before(cutoff) && j.State.Terminal() {
			delete(s.jobs, id)
			evicted++
		}
	}
	size := len(s.jobs)
	s.mu.Unlock()

	metrics.JobsTracked.Set(float64(size))
	metrics.JobsEvicted.Add(float64(evicted))
	return evicted, nil
}

// Len returns the number of tracked jobs.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}
