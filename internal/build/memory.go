package build

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nichedotsol/agentex/internal/model"
)

// MemoryStore is the default Store: a mutex-guarded map. Records do not
// survive a restart; the sweeper is the only thing that deletes them.
type MemoryStore struct {
	mu     sync.RWMutex
	builds map[string]model.Build
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{builds: make(map[string]model.Build)}
}

func (s *MemoryStore) Create(_ context.Context, b model.Build) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.builds[b.ID]; ok {
		return fmt.Errorf("%w: %s", ErrExists, b.ID)
	}
	s.builds[b.ID] = b
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (model.Build, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.builds[id]
	if !ok {
		return model.Build{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return b, nil
}

func (s *MemoryStore) Update(_ context.Context, id string, fn func(*model.Build)) (model.Build, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.builds[id]
	if !ok {
		return model.Build{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	fn(&b)
	b.ID = id // the callback must not rekey the record
	b.UpdatedAt = time.Now().UTC()
	s.builds[id] = b
	return b, nil
}

func (s *MemoryStore) Sweep(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id, b := range s.builds {
		if b.UpdatedAt.Before(cutoff) {
			delete(s.builds, id)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) Name() string { return "memory" }

func (s *MemoryStore) Close() error { return nil }
