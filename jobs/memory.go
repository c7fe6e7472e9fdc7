package jobs

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/use-agent/mapscout/models"
)

// MemoryStore keeps immutable job snapshots in a sync.Map. Every write
// swaps in a new snapshot, so a reader never observes a half-written job.
type MemoryStore struct {
	jobs  sync.Map // id → *models.Job
	count atomic.Int64
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Create(_ context.Context, job *models.Job) error {
	if _, loaded := s.jobs.LoadOrStore(job.ID, job.Clone()); loaded {
		return fmt.Errorf("%w: %s", ErrJobExists, job.ID)
	}
	s.count.Add(1)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (*models.Job, error) {
	v, ok := s.jobs.Load(id)
	if !ok {
		return nil, models.ErrJobNotFound
	}
	return v.(*models.Job).Clone(), nil
}

func (s *MemoryStore) Update(_ context.Context, job *models.Job) error {
	next := job.Clone()
	for {
		v, ok := s.jobs.Load(job.ID)
		if !ok {
			return models.ErrJobNotFound
		}
		if cur := v.(*models.Job); cur.Status.Terminal() {
			return fmt.Errorf("%w: %s is %s", ErrTerminal, job.ID, cur.Status)
		}
		if s.jobs.CompareAndSwap(job.ID, v, next) {
			return nil
		}
	}
}

func (s *MemoryStore) Count(context.Context) (int, error) {
	return int(s.count.Load()), nil
}
