// Package model defines the core domain types shared across the escrow engine.
// All monetary values use shopspring/decimal — never float64 for money.
// Amounts are expressed in the smallest indivisible currency unit and must be
// integer-valued.
package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// WagerStatus is the lifecycle state of a wager.
//
// Transitions are one-directional:
//
//	Pending --accept--> Active --resolve--> Resolved
//	Pending --cancel--> Cancelled
//	Active  --cancel--> Cancelled
//
// Resolved and Cancelled are terminal.
type WagerStatus uint8

const (
	StatusPending WagerStatus = iota
	StatusActive
	StatusResolved
	StatusCancelled
)

// String returns the off-chain string form used by the mirror database and
// the JSON API: {pending, active, resolved, cancelled}.
func (s WagerStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusActive:
		return "active"
	case StatusResolved:
		return "resolved"
	case StatusCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// ParseStatus converts the string form back into a WagerStatus.
func ParseStatus(s string) (WagerStatus, error) {
	switch s {
	case "pending":
		return StatusPending, nil
	case "active":
		return StatusActive, nil
	case "resolved":
		return StatusResolved, nil
	case "cancelled":
		return StatusCancelled, nil
	default:
		return 0, fmt.Errorf("model: unknown wager status %q", s)
	}
}

// Terminal reports whether no further transition exists out of s.
func (s WagerStatus) Terminal() bool {
	switch s {
	case StatusResolved, StatusCancelled:
		return true
	case StatusPending, StatusActive:
		return false
	default:
		return false
	}
}

// MarshalJSON renders the status in its string form.
func (s WagerStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts the string form.
func (s *WagerStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Wager is the escrow record for one staked prediction among participants.
//
// Participants[0] is the creator and the only participant authorized to
// cancel. Winner is empty until resolution. FundedBy records which
// participants have actually attached a stake; it is informational only and
// gates no transition.
type Wager struct {
	ID                uint64          `json:"id" db:"id"`
	Participants      []string        `json:"participants" db:"participants"`
	Amount            decimal.Decimal `json:"amount" db:"amount"` // per-participant stake
	Condition         string          `json:"condition" db:"condition"`
	Status            WagerStatus     `json:"status" db:"status"`
	Winner            string          `json:"winner,omitempty" db:"winner"`
	CharityEnabled    bool            `json:"charity_enabled" db:"charity_enabled"`
	CharityPercentage int64           `json:"charity_percentage" db:"charity_percentage"` // 0–100
	CharityAddress    string          `json:"charity_address,omitempty" db:"charity_address"`
	CharityDonated    decimal.Decimal `json:"charity_donated" db:"charity_donated"`
	FundedBy          []string        `json:"funded_by" db:"funded_by"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	ResolvedAt        *time.Time      `json:"resolved_at,omitempty" db:"resolved_at"`
}

// TotalPool is the full payout pool: per-participant stake × participant
// count. The escrow assumes full funding (see the funding-gap note in the
// escrow package).
func (w *Wager) TotalPool() decimal.Decimal {
	return w.Amount.Mul(decimal.NewFromInt(int64(len(w.Participants))))
}

// IsParticipant reports whether addr is listed on the wager.
func (w *Wager) IsParticipant(addr string) bool {
	for _, p := range w.Participants {
		if p == addr {
			return true
		}
	}
	return false
}

// Creator returns Participants[0], the cancel authorizer.
func (w *Wager) Creator() string {
	if len(w.Participants) == 0 {
		return ""
	}
	return w.Participants[0]
}

// Clone returns a deep copy safe to hand outside the ledger.
func (w *Wager) Clone() Wager {
	out := *w
	out.Participants = append([]string(nil), w.Participants...)
	out.FundedBy = append([]string(nil), w.FundedBy...)
	if w.ResolvedAt != nil {
		t := *w.ResolvedAt
		out.ResolvedAt = &t
	}
	return out
}

// WagerCreated is the creation event, the first of the two externally
// observable notifications.
type WagerCreated struct {
	WagerID uint64          `json:"wager_id"`
	Creator string          `json:"creator"`
	Amount  decimal.Decimal `json:"amount"`
}

// WagerResolved is the resolution event. Acceptance and cancellation emit no
// event; off-chain consumers poll the wager record instead.
type WagerResolved struct {
	WagerID uint64 `json:"wager_id"`
	Winner  string `json:"winner"`
}
