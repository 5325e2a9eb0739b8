package limits_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/wagerx/escrow-engine/internal/limits"
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func TestCheck_WithinLimits(t *testing.T) {
	l := limits.NewStakeLimiter(d(1000), d(5000), 10)

	exposure := map[string]decimal.Decimal{"0xabc": d(1000)}
	if err := l.Check(d(500), 2, "0xabc", exposure); err != nil {
		t.Errorf("expected stake allowed, got %v", err)
	}
}

func TestCheck_StakeLimit(t *testing.T) {
	l := limits.NewStakeLimiter(d(1000), d(5000), 10)

	if err := l.Check(d(1001), 2, "0xabc", nil); !errors.Is(err, limits.ErrStakeLimitExceeded) {
		t.Errorf("expected ErrStakeLimitExceeded, got %v", err)
	}
	// Exactly at the limit is allowed.
	if err := l.Check(d(1000), 2, "0xabc", nil); err != nil {
		t.Errorf("stake at limit should pass, got %v", err)
	}
}

func TestCheck_PoolSize(t *testing.T) {
	l := limits.NewStakeLimiter(d(1000), d(5000), 4)

	if err := l.Check(d(10), 5, "0xabc", nil); !errors.Is(err, limits.ErrPoolSizeExceeded) {
		t.Errorf("expected ErrPoolSizeExceeded, got %v", err)
	}
	if err := l.Check(d(10), 4, "0xabc", nil); err != nil {
		t.Errorf("pool at limit should pass, got %v", err)
	}
}

func TestCheck_OpenExposure(t *testing.T) {
	l := limits.NewStakeLimiter(d(1000), d(5000), 10)

	exposure := map[string]decimal.Decimal{
		"0xabc": d(4500),
		"0xdef": d(100),
	}

	// 4500 + 600 > 5000 for this caller.
	if err := l.Check(d(600), 2, "0xabc", exposure); !errors.Is(err, limits.ErrExposureLimitExceeded) {
		t.Errorf("expected ErrExposureLimitExceeded, got %v", err)
	}
	// Other callers' exposure is not counted.
	if err := l.Check(d(600), 2, "0xdef", exposure); err != nil {
		t.Errorf("unrelated exposure counted: %v", err)
	}
	// 4500 + 500 == 5000 is exactly at the limit.
	if err := l.Check(d(500), 2, "0xabc", exposure); err != nil {
		t.Errorf("exposure at limit should pass, got %v", err)
	}
}

func TestNewStakeLimiter_MinimumPool(t *testing.T) {
	l := limits.NewStakeLimiter(d(1), d(1), 0)
	if l.MaxParticipants != 2 {
		t.Errorf("expected pool floor of 2, got %d", l.MaxParticipants)
	}
}
