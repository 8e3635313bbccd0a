package domain

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestNGNToSUP_TruncatesAtPeg(t *testing.T) {
	cases := map[string]string{
		"100":    "10",
		"1234.5": "123.45",
		"10.09":  "1",
		"999.99": "99.99",
	}
	for ngn, want := range cases {
		got := NGNToSUP(decimal.RequireFromString(ngn))
		if !got.Equal(decimal.RequireFromString(want)) {
			t.Fatalf("NGNToSUP(%s) = %s, want %s", ngn, got, want)
		}
		if !SUPToNGN(got).LessThanOrEqual(decimal.RequireFromString(ngn)) {
			t.Fatalf("round trip of %s issued more SUP than paid for", ngn)
		}
	}
}

func TestTransactionValidate(t *testing.T) {
	account := uuid.New()
	valid := Transaction{AccountID: account, Type: TypeBuy, AmountSUP: decimal.NewFromInt(10), Status: StatusCompleted}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid transaction, got %v", err)
	}

	cases := []struct {
		name string
		mut  func(*Transaction)
	}{
		{"zero amount", func(tx *Transaction) { tx.AmountSUP = decimal.Zero }},
		{"unknown type", func(tx *Transaction) { tx.Type = "GIFT" }},
		{"missing account", func(tx *Transaction) { tx.AccountID = uuid.Nil }},
		{"too many places", func(tx *Transaction) { tx.AmountSUP = decimal.RequireFromString("1.005") }},
		{"negative buy", func(tx *Transaction) { tx.AmountSUP = decimal.NewFromInt(-5) }},
		{"unknown status", func(tx *Transaction) { tx.Status = "DONE" }},
	}
	for _, tc := range cases {
		tx := valid
		tc.mut(&tx)
		if err := tx.Validate(); !errors.Is(err, ErrInvalidTransaction) {
			t.Fatalf("%s: expected ErrInvalidTransaction, got %v", tc.name, err)
		}
	}
}

func TestCompensatingEntryCancelsOriginal(t *testing.T) {
	original := Transaction{
		ID:        uuid.New(),
		AccountID: uuid.New(),
		Type:      TypeCashout,
		AmountSUP: decimal.NewFromInt(-150),
		Status:    StatusPending,
		Meta:      map[string]string{MetaTaskID: "t-1"},
	}
	comp := original.Compensating("payout failed", "system")
	if !comp.AmountSUP.Equal(decimal.NewFromInt(150)) {
		t.Fatalf("expected +150, got %s", comp.AmountSUP)
	}
	if comp.Status != StatusReversed || comp.ReversalOf == nil || *comp.ReversalOf != original.ID {
		t.Fatalf("compensating entry not linked: %+v", comp)
	}
	if err := comp.Validate(); err != nil {
		t.Fatalf("compensating entry should validate despite sign: %v", err)
	}
	if comp.Meta[MetaTaskID] != "t-1" {
		t.Fatalf("expected task id carried over")
	}
}

func TestStatusTransitions(t *testing.T) {
	if !StatusPending.CanTransition(StatusCompleted) || !StatusPending.CanTransition(StatusReversed) {
		t.Fatal("pending must move to completed or reversed")
	}
	if !StatusCompleted.CanTransition(StatusReversed) {
		t.Fatal("completed must be reversible")
	}
	if StatusReversed.CanTransition(StatusCompleted) || StatusCompleted.CanTransition(StatusPending) {
		t.Fatal("reversed is terminal and completed never returns to pending")
	}
}

func TestLimitExceededErrorMatchesSentinel(t *testing.T) {
	var err error = &LimitExceededError{Reason: ReasonWeeklyCapExceeded, Usage: decimal.NewFromInt(19000), Limit: decimal.NewFromInt(20000), Unit: "NGN"}
	if !errors.Is(err, ErrLimitExceeded) {
		t.Fatal("expected errors.Is to match ErrLimitExceeded")
	}
	var detail *LimitExceededError
	if !errors.As(err, &detail) || detail.Reason != ReasonWeeklyCapExceeded {
		t.Fatalf("expected typed detail, got %v", err)
	}
}

func TestSubAccountIDsAreStable(t *testing.T) {
	if SubAccountOperating.ID() != SubAccountOperating.ID() {
		t.Fatal("sub-account id must be deterministic")
	}
	if SubAccountOperating.ID() == SubAccountReserve.ID() {
		t.Fatal("sub-accounts must not collide")
	}
}
