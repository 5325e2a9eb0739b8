package store

import (
	"context"
	"sort"
	"sync"

	"github.com/wagerx/escrow-engine/internal/model"
)

// MemoryStore implements Store with an in-memory map. Used for testing and
// development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu     sync.RWMutex
	wagers map[uint64]model.Wager
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		wagers: make(map[uint64]model.Wager),
	}
}

func (s *MemoryStore) UpsertWager(_ context.Context, w *model.Wager) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy to avoid external mutation.
	s.wagers[w.ID] = w.Clone()
	return nil
}

func (s *MemoryStore) GetWager(_ context.Context, id uint64) (*model.Wager, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, ok := s.wagers[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := w.Clone()
	return &out, nil
}

func (s *MemoryStore) ListWagers(_ context.Context) ([]model.Wager, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wagers := make([]model.Wager, 0, len(s.wagers))
	for _, w := range s.wagers {
		wagers = append(wagers, w.Clone())
	}
	sort.Slice(wagers, func(i, j int) bool { return wagers[i].ID > wagers[j].ID })
	return wagers, nil
}

func (s *MemoryStore) ListWagersByStatus(ctx context.Context, status model.WagerStatus) ([]model.Wager, error) {
	all, err := s.ListWagers(ctx)
	if err != nil {
		return nil, err
	}
	var out []model.Wager
	for _, w := range all {
		if w.Status == status {
			out = append(out, w)
		}
	}
	return out, nil
}
