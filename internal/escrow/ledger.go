// Package escrow implements the wager escrow ledger: fund custody, lifecycle
// transitions, payout splitting, and refunds for peer-to-peer wagers.
//
// The ledger is the source of truth. Each operation executes atomically: it
// either commits all state changes and value transfers, or leaves prior state
// untouched. Value moves only through the four operations CreateWager,
// AcceptWager, ResolveWager and CancelWager.
//
// All monetary values use shopspring/decimal — never float64 for money.
package escrow

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wagerx/escrow-engine/internal/model"
)

var (
	// ErrWagerNotFound is returned when no wager exists for the given id.
	ErrWagerNotFound = errors.New("escrow: wager not found")

	// ErrTooFewParticipants is returned at creation when fewer than two
	// participants are listed.
	ErrTooFewParticipants = errors.New("escrow: at least two participants required")

	// ErrInvalidAmount is returned when the stake is not a positive integer
	// number of smallest currency units.
	ErrInvalidAmount = errors.New("escrow: stake must be a positive integer amount")

	// ErrInvalidPercentage is returned when the charity percentage is outside
	// [0, 100].
	ErrInvalidPercentage = errors.New("escrow: charity percentage must be between 0 and 100")

	// ErrCharityAddressRequired is returned when charity is enabled without a
	// destination address.
	ErrCharityAddressRequired = errors.New("escrow: charity address required when charity is enabled")

	// ErrInsufficientStake is returned when the attached payment is below the
	// required per-participant stake.
	ErrInsufficientStake = errors.New("escrow: attached payment below required stake")

	// ErrNotPending is returned when accepting a wager that is not Pending.
	ErrNotPending = errors.New("escrow: wager is not pending")

	// ErrNotActive is returned when resolving a wager that is not Active.
	ErrNotActive = errors.New("escrow: wager is not active")

	// ErrNotCancellable is returned when cancelling a wager already in a
	// terminal state.
	ErrNotCancellable = errors.New("escrow: wager is not cancellable")

	// ErrNotParticipant is returned when the caller is not listed on the wager.
	ErrNotParticipant = errors.New("escrow: caller is not a participant")

	// ErrWinnerNotParticipant is returned when the named winner is not listed
	// on the wager.
	ErrWinnerNotParticipant = errors.New("escrow: winner is not a participant")

	// ErrUnauthorized is returned when a cancel is attempted by neither the
	// ledger owner nor the wager creator.
	ErrUnauthorized = errors.New("escrow: caller not authorized")

	// ErrTransferFailed wraps a treasury failure during payout or refund. The
	// whole operation is rolled back; no partial payout ever persists.
	ErrTransferFailed = errors.New("escrow: value transfer failed")

	// ErrWagerBusy is returned when a mutation re-enters a wager that is
	// already mid-operation. Defense in depth: the state flip before transfers
	// already prevents double settlement of the same wager.
	ErrWagerBusy = errors.New("escrow: wager operation already in progress")
)

var oneHundred = decimal.NewFromInt(100)

// Treasury moves value in and out of escrow custody. Disburse is
// all-or-nothing: if any payment in the batch cannot be delivered, none may
// be, and an error is returned.
type Treasury interface {
	// Deposit records an inbound stake payment from a participant.
	Deposit(from string, amount decimal.Decimal) error

	// Disburse delivers the batch of outbound payments atomically.
	Disburse(payments []Payment) error
}

// Payment is one outbound transfer in a disbursement batch.
type Payment struct {
	ID     string
	To     string
	Amount decimal.Decimal
	Memo   string
}

// EventSink receives the two externally observable notifications after an
// operation commits. Acceptance and cancellation emit nothing; consumers poll
// GetWager for those.
type EventSink interface {
	HandleWagerCreated(model.WagerCreated)
	HandleWagerResolved(model.WagerResolved)
}

// CreateParams are the arguments to CreateWager. Payment is the value
// attached by the creator; any excess over Amount is retained in escrow
// custody and not refunded.
type CreateParams struct {
	Creator           string
	Participants      []string
	Amount            decimal.Decimal
	Condition         string
	CharityEnabled    bool
	CharityPercentage int64
	CharityAddress    string
	Payment           decimal.Decimal
}

// record pairs a wager with its operation gate. The gate is acquired with
// TryLock by every mutating operation, so a re-entrant mutation of the same
// wager fails with ErrWagerBusy instead of deadlocking.
type record struct {
	gate sync.RWMutex
	w    model.Wager
}

// Ledger owns every wager record, the monotonic id counter, and the escrow
// custody balance. A single Ledger instance serializes all mutations per
// wager; the id counter and record map are guarded separately so operations
// on distinct wagers do not contend.
type Ledger struct {
	treasury Treasury
	owner    string

	mu      sync.RWMutex
	nextID  uint64
	wagers  map[uint64]*record
	custody decimal.Decimal

	sink EventSink
	now  func() time.Time
}

// NewLedger creates an empty ledger. The owner address may cancel any
// pending or active wager; ids are assigned starting at 1.
func NewLedger(treasury Treasury, owner string) *Ledger {
	return &Ledger{
		treasury: treasury,
		owner:    owner,
		nextID:   1,
		wagers:   make(map[uint64]*record),
		custody:  decimal.Zero,
		now:      time.Now,
	}
}

// SetEventSink registers the sink notified after creation and resolution
// commits. Pass nil to disable.
func (l *Ledger) SetEventSink(sink EventSink) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sink = sink
}

// CreateWager validates the parameters, takes custody of the attached
// payment, and stores a new Pending wager. Returns the assigned id.
func (l *Ledger) CreateWager(p CreateParams) (uint64, error) {
	if len(p.Participants) < 2 {
		return 0, ErrTooFewParticipants
	}
	if !p.Amount.IsPositive() || !p.Amount.IsInteger() {
		return 0, ErrInvalidAmount
	}
	if p.CharityPercentage < 0 || p.CharityPercentage > 100 {
		return 0, ErrInvalidPercentage
	}
	if p.CharityEnabled && p.CharityAddress == "" {
		return 0, ErrCharityAddressRequired
	}
	if p.Payment.LessThan(p.Amount) {
		return 0, ErrInsufficientStake
	}

	if err := l.treasury.Deposit(p.Creator, p.Payment); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	w := model.Wager{
		Participants:      append([]string(nil), p.Participants...),
		Amount:            p.Amount,
		Condition:         p.Condition,
		Status:            model.StatusPending,
		CharityEnabled:    p.CharityEnabled,
		CharityPercentage: p.CharityPercentage,
		CharityAddress:    p.CharityAddress,
		CharityDonated:    decimal.Zero,
		FundedBy:          []string{p.Creator},
		CreatedAt:         l.now().UTC(),
	}

	l.mu.Lock()
	w.ID = l.nextID
	l.nextID++
	l.wagers[w.ID] = &record{w: w}
	l.custody = l.custody.Add(p.Payment)
	sink := l.sink
	l.mu.Unlock()

	if sink != nil {
		sink.HandleWagerCreated(model.WagerCreated{
			WagerID: w.ID,
			Creator: p.Creator,
			Amount:  p.Amount,
		})
	}
	return w.ID, nil
}

// AcceptWager stakes the caller into a Pending wager and transitions it to
// Active. One accept call activates the whole wager regardless of how many of
// the listed participants have funded; FundedBy records actual stakers for
// off-chain consumers but gates nothing.
func (l *Ledger) AcceptWager(wagerID uint64, caller string, payment decimal.Decimal) error {
	rec, err := l.lookup(wagerID)
	if err != nil {
		return err
	}
	if !rec.gate.TryLock() {
		return ErrWagerBusy
	}
	defer rec.gate.Unlock()

	if rec.w.Status != model.StatusPending {
		return ErrNotPending
	}
	if !rec.w.IsParticipant(caller) {
		return ErrNotParticipant
	}
	if payment.LessThan(rec.w.Amount) {
		return ErrInsufficientStake
	}

	if err := l.treasury.Deposit(caller, payment); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	rec.w.Status = model.StatusActive
	if !contains(rec.w.FundedBy, caller) {
		rec.w.FundedBy = append(rec.w.FundedBy, caller)
	}

	l.mu.Lock()
	l.custody = l.custody.Add(payment)
	l.mu.Unlock()
	return nil
}

// ResolveWager names a winner, transitions the wager to Resolved, and
// disburses the pool: a floored charity cut first when configured, the
// remainder to the winner. The subtraction makes the split exact — any
// division remainder stays in the winner's share, so no dust is created or
// destroyed. Evidence is carried for callers (oracle trail) but not stored.
//
// State is flipped before transfers are attempted; if any transfer fails the
// pre-operation snapshot is restored and the error reported.
func (l *Ledger) ResolveWager(wagerID uint64, winner, evidence string) error {
	_ = evidence

	rec, err := l.lookup(wagerID)
	if err != nil {
		return err
	}
	if !rec.gate.TryLock() {
		return ErrWagerBusy
	}
	defer rec.gate.Unlock()

	if rec.w.Status != model.StatusActive {
		return ErrNotActive
	}
	if !rec.w.IsParticipant(winner) {
		return ErrWinnerNotParticipant
	}

	totalPool := rec.w.TotalPool()
	charityAmount := decimal.Zero
	if rec.w.CharityEnabled && rec.w.CharityPercentage > 0 && rec.w.CharityAddress != "" {
		charityAmount = totalPool.
			Mul(decimal.NewFromInt(rec.w.CharityPercentage)).
			Div(oneHundred).
			Floor()
	}
	winnerAmount := totalPool.Sub(charityAmount)

	snapshot := rec.w.Clone()
	resolvedAt := l.now().UTC()
	rec.w.Status = model.StatusResolved
	rec.w.Winner = winner
	rec.w.ResolvedAt = &resolvedAt
	rec.w.CharityDonated = charityAmount

	var batch []Payment
	if charityAmount.IsPositive() {
		batch = append(batch, Payment{
			ID:     uuid.NewString(),
			To:     rec.w.CharityAddress,
			Amount: charityAmount,
			Memo:   fmt.Sprintf("wager %d charity", wagerID),
		})
	}
	batch = append(batch, Payment{
		ID:     uuid.NewString(),
		To:     winner,
		Amount: winnerAmount,
		Memo:   fmt.Sprintf("wager %d payout", wagerID),
	})

	if err := l.treasury.Disburse(batch); err != nil {
		rec.w = snapshot
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	l.mu.Lock()
	l.custody = l.custody.Sub(totalPool)
	sink := l.sink
	l.mu.Unlock()

	if sink != nil {
		sink.HandleWagerResolved(model.WagerResolved{WagerID: wagerID, Winner: winner})
	}
	return nil
}

// CancelWager transitions a Pending or Active wager to Cancelled and refunds
// the flat per-participant stake to every listed participant — including
// those who never actually staked (the funding-tracking gap).
// Only the ledger owner or the wager creator (Participants[0]) may cancel.
func (l *Ledger) CancelWager(wagerID uint64, caller string) error {
	rec, err := l.lookup(wagerID)
	if err != nil {
		return err
	}
	if !rec.gate.TryLock() {
		return ErrWagerBusy
	}
	defer rec.gate.Unlock()

	switch rec.w.Status {
	case model.StatusPending, model.StatusActive:
		// cancellable
	case model.StatusResolved, model.StatusCancelled:
		return ErrNotCancellable
	default:
		return ErrNotCancellable
	}
	if caller != l.owner && caller != rec.w.Creator() {
		return ErrUnauthorized
	}

	snapshot := rec.w.Clone()
	rec.w.Status = model.StatusCancelled

	batch := make([]Payment, 0, len(rec.w.Participants))
	for _, p := range rec.w.Participants {
		batch = append(batch, Payment{
			ID:     uuid.NewString(),
			To:     p,
			Amount: rec.w.Amount,
			Memo:   fmt.Sprintf("wager %d refund", wagerID),
		})
	}

	if err := l.treasury.Disburse(batch); err != nil {
		rec.w = snapshot
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	// Custody can go negative here when participants who never staked are
	// refunded anyway; that imbalance is the observable cost of the
	// funding-tracking gap.
	l.mu.Lock()
	l.custody = l.custody.Sub(rec.w.TotalPool())
	l.mu.Unlock()
	return nil
}

// GetWager returns a copy of the full wager record.
func (l *Ledger) GetWager(wagerID uint64) (model.Wager, error) {
	rec, err := l.lookup(wagerID)
	if err != nil {
		return model.Wager{}, err
	}
	rec.gate.RLock()
	defer rec.gate.RUnlock()
	return rec.w.Clone(), nil
}

// LatestID returns the highest wager id assigned so far; 0 when none exist.
// The indexer walks 1..LatestID to mirror the ledger.
func (l *Ledger) LatestID() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.nextID - 1
}

// EscrowBalance returns the ledger's custody bookkeeping: every payment
// taken in, minus every pool paid out. Retained overpayments accumulate
// here; refunds of unfunded participants can drive it negative.
func (l *Ledger) EscrowBalance() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.custody
}

// Owner returns the address allowed to cancel any wager.
func (l *Ledger) Owner() string {
	return l.owner
}

func (l *Ledger) lookup(wagerID uint64) (*record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.wagers[wagerID]
	if !ok {
		return nil, ErrWagerNotFound
	}
	return rec, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
