package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wagerx/escrow-engine/internal/model"
)

// CachedStore wraps a primary Store (PostgreSQL) with a Redis read-through
// cache for single-wager lookups. Writes go to the primary store and
// re-populate the cache; list queries pass through.
type CachedStore struct {
	primary Store
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedStore creates a cached wrapper around a primary store.
func NewCachedStore(primary Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	return &CachedStore{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

func (s *CachedStore) UpsertWager(ctx context.Context, w *model.Wager) error {
	if err := s.primary.UpsertWager(ctx, w); err != nil {
		return err
	}
	s.cacheWager(ctx, w)
	return nil
}

func (s *CachedStore) GetWager(ctx context.Context, id uint64) (*model.Wager, error) {
	// Try cache.
	data, err := s.rdb.Get(ctx, wagerKey(id)).Bytes()
	if err == nil {
		var w model.Wager
		if json.Unmarshal(data, &w) == nil {
			return &w, nil
		}
	}

	// Cache miss: read from primary.
	w, err := s.primary.GetWager(ctx, id)
	if err != nil {
		return nil, err
	}

	s.cacheWager(ctx, w)
	return w, nil
}

// --- Passthrough (not cached) ---

func (s *CachedStore) ListWagers(ctx context.Context) ([]model.Wager, error) {
	return s.primary.ListWagers(ctx)
}

func (s *CachedStore) ListWagersByStatus(ctx context.Context, status model.WagerStatus) ([]model.Wager, error) {
	return s.primary.ListWagersByStatus(ctx, status)
}

func (s *CachedStore) cacheWager(ctx context.Context, w *model.Wager) {
	if data, err := json.Marshal(w); err == nil {
		s.rdb.Set(ctx, wagerKey(w.ID), data, s.ttl)
	}
}

func wagerKey(id uint64) string { return fmt.Sprintf("wager:%d", id) }
