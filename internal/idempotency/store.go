// Package idempotency records the first response served for a client-chosen
// key so that retried relay submissions replay the original outcome instead
// of re-executing the operation.
package idempotency

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNotFound is returned when no live record exists for a key.
var ErrNotFound = errors.New("idempotency: record not found")

// Record is the stored outcome of a completed request.
type Record struct {
	Key        string    `json:"key"`
	StatusCode int       `json:"status_code"`
	Response   []byte    `json:"response"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// Store persists idempotency records for the retention window.
type Store interface {
	Get(ctx context.Context, key string) (Record, error)
	Put(ctx context.Context, rec Record) error
}

// MemoryStore keeps records in process memory. Expired entries are dropped
// lazily on read and swept opportunistically on write.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record), now: time.Now}
}

func (s *MemoryStore) Get(_ context.Context, key string) (Record, error) {
	s.mu.RLock()
	rec, ok := s.records[key]
	s.mu.RUnlock()
	if !ok || s.now().After(rec.ExpiresAt) {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (s *MemoryStore) Put(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, r := range s.records {
		if now.After(r.ExpiresAt) {
			delete(s.records, k)
		}
	}
	s.records[rec.Key] = rec
	return nil
}
