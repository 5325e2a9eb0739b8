// Package indexer periodically reconciles the ledger's wager state into the
// read store. The service writes through on every mutation, so the indexer
// is a safety net: it repairs the store after a missed write or a restart
// against a Postgres store that outlived the process.
package indexer

import (
	"context"
	"log/slog"
	"time"

	"github.com/wagerx/escrow-engine/internal/model"
	"github.com/wagerx/escrow-engine/internal/store"
)

// Source is the slice of the ledger the indexer reads.
type Source interface {
	LatestID() uint64
	GetWager(wagerID uint64) (model.Wager, error)
}

type Indexer struct {
	source   Source
	store    store.Store
	interval time.Duration
	log      *slog.Logger
}

func New(source Source, st store.Store, interval time.Duration, log *slog.Logger) *Indexer {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Indexer{source: source, store: st, interval: interval, log: log}
}

// Run syncs on a fixed interval until ctx is cancelled. Intended to be
// started as a goroutine from main.
func (ix *Indexer) Run(ctx context.Context) {
	ticker := time.NewTicker(ix.interval)
	defer ticker.Stop()

	ix.syncOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ix.syncOnce(ctx)
		}
	}
}

func (ix *Indexer) syncOnce(ctx context.Context) {
	latest := ix.source.LatestID()
	var synced, failed int
	for id := uint64(1); id <= latest; id++ {
		w, err := ix.source.GetWager(id)
		if err != nil {
			continue
		}
		if err := ix.store.UpsertWager(ctx, &w); err != nil {
			failed++
			ix.log.Warn("indexer upsert failed", "wager_id", id, "error", err)
			continue
		}
		synced++
	}
	if failed > 0 || synced > 0 {
		ix.log.Debug("indexer sync complete", "synced", synced, "failed", failed)
	}
}
