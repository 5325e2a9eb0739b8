package escrow

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// ErrRecipientBlocked is returned by the AccountBook when any recipient in a
// disbursement batch rejects value. The whole batch is abandoned.
var ErrRecipientBlocked = errors.New("escrow: recipient rejected transfer")

// Receipt is an immutable record of one delivered payment.
type Receipt struct {
	PaymentID string          `json:"payment_id"`
	To        string          `json:"to"`
	Amount    decimal.Decimal `json:"amount"`
	Memo      string          `json:"memo"`
	Timestamp time.Time       `json:"timestamp"`
}

// AccountBook is the in-process Treasury. It tracks per-address credit
// balances and the total value held in escrow, and keeps a receipt trail of
// every delivered payment.
//
// Recipients can be marked blocked to model an uncooperative receiver: a
// blocked address anywhere in a batch fails the whole batch before any
// balance changes, matching the all-or-nothing contract of Treasury.Disburse.
type AccountBook struct {
	mu       sync.RWMutex
	balances map[string]decimal.Decimal
	blocked  map[string]bool
	escrowed decimal.Decimal
	receipts []Receipt
}

// NewAccountBook creates an empty account book.
func NewAccountBook() *AccountBook {
	return &AccountBook{
		balances: make(map[string]decimal.Decimal),
		blocked:  make(map[string]bool),
		escrowed: decimal.Zero,
	}
}

// Deposit records an inbound stake payment into escrow.
func (b *AccountBook) Deposit(from string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("escrow: negative deposit from %s", from)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.escrowed = b.escrowed.Add(amount)
	return nil
}

// Disburse delivers every payment in the batch, or none. All recipients are
// checked before any balance moves.
func (b *AccountBook) Disburse(payments []Payment) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, p := range payments {
		if b.blocked[p.To] {
			return fmt.Errorf("%w: %s", ErrRecipientBlocked, p.To)
		}
	}

	now := time.Now().UTC()
	for _, p := range payments {
		b.balances[p.To] = b.balances[p.To].Add(p.Amount)
		b.escrowed = b.escrowed.Sub(p.Amount)
		b.receipts = append(b.receipts, Receipt{
			PaymentID: p.ID,
			To:        p.To,
			Amount:    p.Amount,
			Memo:      p.Memo,
			Timestamp: now,
		})
	}
	return nil
}

// Block marks an address as rejecting transfers.
func (b *AccountBook) Block(addr string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blocked[addr] = true
}

// Unblock clears a previous Block.
func (b *AccountBook) Unblock(addr string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.blocked, addr)
}

// BalanceOf returns the credited balance of an address.
func (b *AccountBook) BalanceOf(addr string) decimal.Decimal {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if bal, ok := b.balances[addr]; ok {
		return bal
	}
	return decimal.Zero
}

// Escrowed returns the total value currently held in escrow.
func (b *AccountBook) Escrowed() decimal.Decimal {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.escrowed
}

// Receipts returns a copy of the delivery trail.
func (b *AccountBook) Receipts() []Receipt {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Receipt(nil), b.receipts...)
}
