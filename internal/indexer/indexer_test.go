package indexer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/wagerx/escrow-engine/internal/model"
	"github.com/wagerx/escrow-engine/internal/store"
)

type fakeSource struct {
	wagers map[uint64]model.Wager
	latest uint64
}

func (f *fakeSource) LatestID() uint64 { return f.latest }

func (f *fakeSource) GetWager(id uint64) (model.Wager, error) {
	w, ok := f.wagers[id]
	if !ok {
		return model.Wager{}, errors.New("no such wager")
	}
	return w, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSyncOnceBackfillsStore(t *testing.T) {
	src := &fakeSource{
		latest: 3,
		wagers: map[uint64]model.Wager{
			1: {ID: 1, Status: model.StatusActive, Amount: decimal.NewFromInt(50)},
			2: {ID: 2, Status: model.StatusResolved, Amount: decimal.NewFromInt(100)},
			3: {ID: 3, Status: model.StatusPending, Amount: decimal.NewFromInt(25)},
		},
	}
	st := store.NewMemoryStore()
	ix := New(src, st, 0, discardLogger())

	ix.syncOnce(context.Background())

	all, err := st.ListWagers(context.Background())
	if err != nil {
		t.Fatalf("ListWagers: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("store holds %d wagers, want 3", len(all))
	}
	got, err := st.GetWager(context.Background(), 2)
	if err != nil {
		t.Fatalf("GetWager: %v", err)
	}
	if got.Status != model.StatusResolved {
		t.Fatalf("wager 2 status = %s, want resolved", got.Status)
	}
}

func TestSyncOnceRepairsDivergedRow(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	// store holds a stale snapshot
	_ = st.UpsertWager(ctx, &model.Wager{ID: 1, Status: model.StatusPending})

	src := &fakeSource{
		latest: 1,
		wagers: map[uint64]model.Wager{1: {ID: 1, Status: model.StatusActive}},
	}
	New(src, st, 0, discardLogger()).syncOnce(ctx)

	got, _ := st.GetWager(ctx, 1)
	if got.Status != model.StatusActive {
		t.Fatalf("status = %s, want active", got.Status)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	src := &fakeSource{latest: 0, wagers: map[uint64]model.Wager{}}
	ix := New(src, store.NewMemoryStore(), 1, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		ix.Run(ctx)
		close(done)
	}()
	cancel()
	<-done
}
