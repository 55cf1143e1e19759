package jobs

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/matzehuels/stampforge/pkg/errors"
)

// MemoryStore keeps jobs in a map. Stored jobs are copied on the way in and
// out so callers never share state with the store.
type MemoryStore struct {
	mu   sync.RWMutex
	jobs map[string]Job
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[string]Job)}
}

func (s *MemoryStore) Create(ctx context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; ok {
		return errors.New(errors.ErrCodeStorage, "job %s already exists", job.ID)
	}
	s.jobs[job.ID] = *job
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, notFound(id)
	}
	return &j, nil
}

func (s *MemoryStore) Update(ctx context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; !ok {
		return notFound(job.ID)
	}
	s.jobs[job.ID] = *job
	return nil
}

func (s *MemoryStore) List(ctx context.Context, limit int) ([]*Job, error) {
	s.mu.RLock()
	out := make([]*Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, &j)
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b *Job) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(b.ID, a.ID)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) Close() error { return nil }

