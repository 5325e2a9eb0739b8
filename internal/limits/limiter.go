// Package limits enforces stake limits on wager creation and acceptance.
//
// Escrow custody is uncollateralized beyond the attached stakes, so the
// service caps both the size of a single wager and the total value any one
// address has locked across open (pending or active) wagers.
package limits

import (
	"errors"

	"github.com/shopspring/decimal"
)

var (
	// ErrStakeLimitExceeded is returned when the per-participant stake
	// exceeds the single-wager maximum.
	ErrStakeLimitExceeded = errors.New("limits: stake exceeds per-wager maximum")

	// ErrPoolSizeExceeded is returned when a wager lists more participants
	// than allowed.
	ErrPoolSizeExceeded = errors.New("limits: too many participants")

	// ErrExposureLimitExceeded is returned when a new stake would push the
	// caller's total open escrowed value beyond the aggregate maximum.
	ErrExposureLimitExceeded = errors.New("limits: open exposure limit exceeded")
)

// StakeLimiter validates stakes against per-wager and aggregate limits.
type StakeLimiter struct {
	// MaxStake is the maximum per-participant stake for a single wager.
	MaxStake decimal.Decimal

	// MaxOpenExposure is the maximum total stake one address may have locked
	// across all open wagers, the new stake included.
	MaxOpenExposure decimal.Decimal

	// MaxParticipants caps the participant list length of a single wager.
	MaxParticipants int
}

// NewStakeLimiter creates a limiter with the given caps.
func NewStakeLimiter(maxStake, maxOpenExposure decimal.Decimal, maxParticipants int) *StakeLimiter {
	if maxParticipants < 2 {
		maxParticipants = 2
	}
	return &StakeLimiter{
		MaxStake:        maxStake,
		MaxOpenExposure: maxOpenExposure,
		MaxParticipants: maxParticipants,
	}
}

// Check validates a stake of the given size for the caller.
//
// Parameters:
//   - stake: per-participant stake of the wager being created or accepted
//   - poolSize: number of listed participants
//   - caller: address attaching the stake
//   - openExposure: map of address → value currently locked in open wagers
//
// Returns nil if the stake is within limits, or an error naming the violated
// limit.
func (l *StakeLimiter) Check(
	stake decimal.Decimal,
	poolSize int,
	caller string,
	openExposure map[string]decimal.Decimal,
) error {
	if stake.GreaterThan(l.MaxStake) {
		return ErrStakeLimitExceeded
	}
	if poolSize > l.MaxParticipants {
		return ErrPoolSizeExceeded
	}

	total := openExposure[caller].Add(stake)
	if total.GreaterThan(l.MaxOpenExposure) {
		return ErrExposureLimitExceeded
	}
	return nil
}
