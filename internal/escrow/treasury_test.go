package escrow_test

import (
	"errors"
	"testing"

	"github.com/wagerx/escrow-engine/internal/escrow"
)

func TestAccountBook_DisburseAllOrNothing(t *testing.T) {
	book := escrow.NewAccountBook()
	if err := book.Deposit(alice, d(300)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	book.Block(carol)
	err := book.Disburse([]escrow.Payment{
		{ID: "p1", To: bob, Amount: d(100)},
		{ID: "p2", To: carol, Amount: d(100)},
	})
	if !errors.Is(err, escrow.ErrRecipientBlocked) {
		t.Fatalf("expected ErrRecipientBlocked, got %v", err)
	}

	// First payment must not have been applied.
	if !book.BalanceOf(bob).IsZero() {
		t.Errorf("partial disbursement: bob has %s", book.BalanceOf(bob))
	}
	if !book.Escrowed().Equal(d(300)) {
		t.Errorf("escrowed changed by failed batch: %s", book.Escrowed())
	}
	if len(book.Receipts()) != 0 {
		t.Errorf("receipts written for failed batch: %d", len(book.Receipts()))
	}
}

func TestAccountBook_ReceiptTrail(t *testing.T) {
	book := escrow.NewAccountBook()
	if err := book.Deposit(alice, d(200)); err != nil {
		t.Fatalf("deposit: %v", err)
	}

	err := book.Disburse([]escrow.Payment{
		{ID: "p1", To: bob, Amount: d(150), Memo: "wager 1 payout"},
		{ID: "p2", To: carol, Amount: d(50), Memo: "wager 1 charity"},
	})
	if err != nil {
		t.Fatalf("disburse: %v", err)
	}

	receipts := book.Receipts()
	if len(receipts) != 2 {
		t.Fatalf("expected 2 receipts, got %d", len(receipts))
	}
	if receipts[0].To != bob || !receipts[0].Amount.Equal(d(150)) {
		t.Errorf("unexpected first receipt %+v", receipts[0])
	}
	if receipts[1].Memo != "wager 1 charity" {
		t.Errorf("unexpected memo %q", receipts[1].Memo)
	}
	if !book.Escrowed().IsZero() {
		t.Errorf("expected escrow drained, got %s", book.Escrowed())
	}

	if err := book.Deposit(alice, d(-1)); err == nil {
		t.Error("negative deposit accepted")
	}
}
