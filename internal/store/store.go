// Package store defines the mirror database for the escrow ledger.
// Implementations include PostgreSQL (the side database off-chain consumers
// query), Redis (read-through cache), and in-memory (for testing).
//
// The ledger remains the source of truth; the mirror carries the translated
// string status form {pending, active, resolved, cancelled} for indexers and
// list queries.
package store

import (
	"context"
	"errors"

	"github.com/wagerx/escrow-engine/internal/model"
)

// ErrNotFound is returned when no mirrored record exists for a wager id.
var ErrNotFound = errors.New("store: wager not found")

// Store is the mirror persistence interface.
type Store interface {
	// UpsertWager inserts or replaces the mirrored record for a wager.
	UpsertWager(ctx context.Context, w *model.Wager) error

	// GetWager retrieves a mirrored wager by id.
	GetWager(ctx context.Context, id uint64) (*model.Wager, error)

	// ListWagers returns all mirrored wagers, newest first.
	ListWagers(ctx context.Context) ([]model.Wager, error)

	// ListWagersByStatus returns mirrored wagers in the given state.
	ListWagersByStatus(ctx context.Context, status model.WagerStatus) ([]model.Wager, error)
}
