/**
 * @description
 * Ledger defines the persistence contract for SUP accounts, ledger entries,
 * prize rounds, alerts and the audit log. All balance-changing writes go
 * through WithAccounts, which serializes work per account and commits the
 * entries and balance updates of one operation atomically.
 *
 * @notes
 * - Accounts passed to WithAccounts are locked in ascending id order.
 * - The treasury controls row is share-locked for the duration of every unit
 *   of work, so a freeze waits for in-flight operations and every later
 *   operation observes it.
 */

package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vibetrailmedia/stepupnaija-sub004/internal/domain"
)

var (
	// ErrAccountNotLocked is returned when a unit of work touches an account it did not lock.
	ErrAccountNotLocked = errors.New("account is not locked by this unit of work")
	// ErrRoundNotLocked is returned when a round mutation runs before LockRound.
	ErrRoundNotLocked = errors.New("prize round is not locked by this unit of work")
)

// WindowQuery selects the entries summed for a rolling limit window.
type WindowQuery struct {
	Types    []domain.TransactionType
	Statuses []domain.TransactionStatus
	Since    time.Time
}

// LedgerTx is the view of the ledger inside one unit of work.
type LedgerTx interface {
	// Account returns the locked account including balance changes staged in this unit.
	Account(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	// Controls returns the treasury controls as of the start of the unit.
	Controls() domain.TreasuryControls
	// Append validates, assigns id and timestamps, and applies the amount to the
	// cached balance. CreatedAt is kept when the caller set it.
	Append(ctx context.Context, tx domain.Transaction) (*domain.Transaction, error)
	// SetStatus moves a PENDING entry to COMPLETED. It never touches a balance.
	SetStatus(ctx context.Context, id uuid.UUID, status domain.TransactionStatus) (*domain.Transaction, error)
	// Reverse appends the compensating entry for id and marks both REVERSED.
	// It returns the compensating entry.
	Reverse(ctx context.Context, id uuid.UUID, reason, actor string) (*domain.Transaction, error)
	Transaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	SumSUP(ctx context.Context, accountID uuid.UUID, q WindowQuery) (decimal.Decimal, error)
	HasMeta(ctx context.Context, accountID uuid.UUID, txType domain.TransactionType, key, value string) (bool, error)

	// LockRound row-locks a prize round for the rest of the unit.
	LockRound(ctx context.Context, roundID uuid.UUID) (*domain.PrizeRound, error)
	AddRoundEntry(ctx context.Context, roundID, accountID uuid.UUID, entries int, cost decimal.Decimal) error
	// CloseRound persists winners, splits and the CLOSED status of a locked round.
	CloseRound(ctx context.Context, round domain.PrizeRound) error

	AppendAudit(ctx context.Context, entry domain.AuditEntry) error
}

// UnitOfWork is the callback run under account locks.
type UnitOfWork func(ctx context.Context, tx LedgerTx) error

// Ledger is implemented by PostgresLedger and MemoryLedger.
type Ledger interface {
	WithAccounts(ctx context.Context, accountIDs []uuid.UUID, fn UnitOfWork) error

	// EnsureAccount inserts the account when it does not exist and returns the stored row.
	EnsureAccount(ctx context.Context, account domain.Account) (*domain.Account, error)
	FindAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error)
	UpdateKYCTier(ctx context.Context, id uuid.UUID, tier domain.KYCTier) error

	FindTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	// FindTransfer returns the original legs of a treasury transfer, oldest first.
	FindTransfer(ctx context.Context, transferID string) ([]domain.Transaction, error)
	// History lazily yields entries newest first. Ranging it again restarts the scan.
	History(ctx context.Context, accountID uuid.UUID, filter domain.HistoryFilter) iter.Seq2[domain.Transaction, error]
	ListPendingCashouts(ctx context.Context, createdBefore time.Time, limit int) ([]domain.Transaction, error)

	Totals(ctx context.Context, weekStart time.Time) (domain.LedgerTotals, error)
	ReconcileBalances(ctx context.Context) (accounts int, drifts []domain.BalanceDrift, err error)

	Controls(ctx context.Context) (domain.TreasuryControls, error)
	// UpdateControls exclusively locks the controls row. When fn reports a
	// change the row and the audit entry are written together.
	UpdateControls(ctx context.Context, audit domain.AuditEntry, fn func(*domain.TreasuryControls) (bool, error)) (domain.TreasuryControls, error)

	// OpenRound inserts an OPEN round and claims every unclaimed rollover into its pool.
	OpenRound(ctx context.Context, round domain.PrizeRound) (*domain.PrizeRound, error)
	GetRound(ctx context.Context, id uuid.UUID) (*domain.PrizeRound, error)
	ListRounds(ctx context.Context, filter domain.RoundFilter) ([]domain.PrizeRound, error)
	// BeginDraw moves an OPEN round to DRAWING after in-flight entries commit.
	BeginDraw(ctx context.Context, id uuid.UUID) (*domain.PrizeRound, error)

	// InsertAlertUnlessRecent stores the alert unless an unresolved alert with the
	// same type and account was raised at or after since. It reports whether it inserted.
	InsertAlertUnlessRecent(ctx context.Context, alert domain.SecurityAlert, since time.Time) (*domain.SecurityAlert, bool, error)
	GetAlert(ctx context.Context, id uuid.UUID) (*domain.SecurityAlert, error)
	// ResolveAlert marks the alert resolved once; later calls return the stored alert unchanged.
	ResolveAlert(ctx context.Context, id uuid.UUID, actor, note string, at time.Time, audit domain.AuditEntry) (*domain.SecurityAlert, bool, error)
	ListAlerts(ctx context.Context, filter domain.AlertFilter) ([]domain.SecurityAlert, error)

	ListAudit(ctx context.Context, limit int) ([]domain.AuditEntry, error)
}

// sortedUnique returns ids ascending by their byte representation with duplicates dropped.
func sortedUnique(ids []uuid.UUID) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	slices.SortFunc(out, func(a, b uuid.UUID) int {
		return bytes.Compare(a[:], b[:])
	})
	return out
}

const defaultPageSize = 50

func validateAppend(tx domain.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	if tx.Status == domain.StatusReversed || tx.ReversalOf != nil {
		return fmt.Errorf("%w: compensating entries are written by Reverse", domain.ErrInvalidTransaction)
	}
	return nil
}

func checkTransition(current domain.Transaction, next domain.TransactionStatus) error {
	if current.Status == domain.StatusReversed {
		return domain.ErrAlreadyReversed
	}
	if next == domain.StatusReversed || !current.Status.CanTransition(next) {
		return fmt.Errorf("%w: %s to %s", domain.ErrInvalidTransition, current.Status, next)
	}
	return nil
}

func checkReversible(current domain.Transaction) error {
	if current.Status == domain.StatusReversed || current.ReversalOf != nil {
		return domain.ErrAlreadyReversed
	}
	return nil
}
