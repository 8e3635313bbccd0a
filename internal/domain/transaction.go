/**
 * @description
 * Core ledger models. A Transaction is an append-only record of a SUP movement
 * on exactly one account; the only permitted mutation after insert is the
 * lifecycle status transition.
 *
 * @notes
 * - SUP amounts are signed decimals with two places. Credits are positive.
 * - AmountNGN is always AmountSUP × 10 and is stored for display only.
 */

package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType classifies a ledger entry.
type TransactionType string

const (
	TypeBuy           TransactionType = "BUY"
	TypeCashout       TransactionType = "CASHOUT"
	TypeEngage        TransactionType = "ENGAGE"
	TypeEntry         TransactionType = "ENTRY"
	TypeVote          TransactionType = "VOTE"
	TypePrize         TransactionType = "PRIZE"
	TypeAdminTransfer TransactionType = "ADMIN_TRANSFER"
)

// Valid reports whether t is a known type.
func (t TransactionType) Valid() bool {
	switch t {
	case TypeBuy, TypeCashout, TypeEngage, TypeEntry, TypeVote, TypePrize, TypeAdminTransfer:
		return true
	}
	return false
}

// sign returns +1 for credit types, -1 for debit types and 0 when either is allowed.
func (t TransactionType) sign() int {
	switch t {
	case TypeBuy, TypeEngage, TypePrize:
		return 1
	case TypeCashout, TypeEntry, TypeVote:
		return -1
	}
	return 0
}

// ParseTransactionType accepts case-insensitive type names.
func ParseTransactionType(raw string) (TransactionType, bool) {
	t := TransactionType(strings.ToUpper(strings.TrimSpace(raw)))
	return t, t.Valid()
}

// TransactionStatus is the lifecycle state of an entry.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "PENDING"
	StatusCompleted TransactionStatus = "COMPLETED"
	StatusReversed  TransactionStatus = "REVERSED"
)

// Valid reports whether s is a known status.
func (s TransactionStatus) Valid() bool {
	return s == StatusPending || s == StatusCompleted || s == StatusReversed
}

// ParseTransactionStatus accepts case-insensitive status names.
func ParseTransactionStatus(raw string) (TransactionStatus, bool) {
	s := TransactionStatus(strings.ToUpper(strings.TrimSpace(raw)))
	return s, s.Valid()
}

// CanTransition reports whether a status change from s to next is allowed.
func (s TransactionStatus) CanTransition(next TransactionStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusCompleted || next == StatusReversed
	case StatusCompleted:
		return next == StatusReversed
	}
	return false
}

// EffectiveStatuses are the statuses whose amounts count toward a balance.
var EffectiveStatuses = []TransactionStatus{StatusPending, StatusCompleted}

// Meta keys written by the services.
const (
	MetaTaskID           = "task_id"
	MetaPaymentReference = "payment_reference"
	MetaProjectID        = "project_id"
	MetaRoundID          = "round_id"
	MetaEntryCount       = "entry_count"
	MetaRank             = "rank"
	MetaTransferID       = "transfer_id"
	MetaTransferKind     = "transfer_kind"
	MetaReason           = "reason"
	MetaActor            = "actor"
	MetaPayoutReference  = "payout_reference"
	MetaSource           = "source"
)

// Transaction is a single ledger entry.
type Transaction struct {
	ID         uuid.UUID         `json:"id"`
	AccountID  uuid.UUID         `json:"account_id"`
	Type       TransactionType   `json:"type"`
	AmountSUP  decimal.Decimal   `json:"amount_sup"`
	AmountNGN  decimal.Decimal   `json:"amount_ngn"`
	Meta       map[string]string `json:"meta,omitempty"`
	Status     TransactionStatus `json:"status"`
	ReversalOf *uuid.UUID        `json:"reversal_of,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// Effective reports whether the entry counts toward the account balance.
func (t Transaction) Effective() bool {
	return t.Status != StatusReversed
}

// IsDebit reports whether the entry removes SUP from the account.
func (t Transaction) IsDebit() bool {
	return t.AmountSUP.IsNegative()
}

// Validate checks the invariants every appended entry must satisfy.
func (t Transaction) Validate() error {
	if t.AccountID == uuid.Nil {
		return fmt.Errorf("%w: account id is required", ErrInvalidTransaction)
	}
	if !t.Type.Valid() {
		return fmt.Errorf("%w: unknown type %q", ErrInvalidTransaction, t.Type)
	}
	if !t.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransaction, t.Status)
	}
	if t.AmountSUP.IsZero() {
		return fmt.Errorf("%w: amount must be non-zero", ErrInvalidTransaction)
	}
	if !t.AmountSUP.Equal(t.AmountSUP.Round(SUPScale)) {
		return fmt.Errorf("%w: amount %s has more than %d decimal places", ErrInvalidTransaction, t.AmountSUP, SUPScale)
	}
	if t.ReversalOf == nil {
		switch t.Type.sign() {
		case 1:
			if t.AmountSUP.IsNegative() {
				return fmt.Errorf("%w: %s must be a credit", ErrInvalidTransaction, t.Type)
			}
		case -1:
			if t.AmountSUP.IsPositive() {
				return fmt.Errorf("%w: %s must be a debit", ErrInvalidTransaction, t.Type)
			}
		}
	}
	return nil
}

// Compensating builds the entry that cancels t. Both t and the compensating
// entry end up REVERSED so neither counts toward the balance afterwards.
func (t Transaction) Compensating(reason, actor string) Transaction {
	original := t.ID
	meta := map[string]string{MetaReason: reason}
	if actor != "" {
		meta[MetaActor] = actor
	}
	for _, key := range []string{MetaRoundID, MetaTaskID, MetaProjectID} {
		if v, ok := t.Meta[key]; ok {
			meta[key] = v
		}
	}
	return Transaction{
		AccountID:  t.AccountID,
		Type:       t.Type,
		AmountSUP:  t.AmountSUP.Neg(),
		AmountNGN:  SUPToNGN(t.AmountSUP.Neg()),
		Meta:       meta,
		Status:     StatusReversed,
		ReversalOf: &original,
	}
}

// HistoryFilter narrows a history scan.
type HistoryFilter struct {
	Types    []TransactionType
	Statuses []TransactionStatus
	Since    time.Time
	Until    time.Time
	// PageSize bounds each underlying fetch; it does not bound the sequence.
	PageSize int
	// Limit stops the sequence after this many items when positive.
	Limit int
}

// Matches reports whether t passes the type, status and time filters.
func (f HistoryFilter) Matches(t Transaction) bool {
	if len(f.Types) > 0 && !ContainsType(f.Types, t.Type) {
		return false
	}
	if len(f.Statuses) > 0 && !ContainsStatus(f.Statuses, t.Status) {
		return false
	}
	if !f.Since.IsZero() && t.CreatedAt.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !t.CreatedAt.Before(f.Until) {
		return false
	}
	return true
}

// ContainsType reports whether t is one of types.
func ContainsType(types []TransactionType, t TransactionType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}

// ContainsStatus reports whether s is one of statuses.
func ContainsStatus(statuses []TransactionStatus, s TransactionStatus) bool {
	for _, candidate := range statuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// Balance is the wallet view returned to clients.
type Balance struct {
	AccountID     uuid.UUID       `json:"account_id"`
	SUPBalance    decimal.Decimal `json:"sup_balance"`
	NGNEquivalent decimal.Decimal `json:"ngn_equivalent"`
}
