/**
 * @description
 * PostgreSQL implementation of the Ledger interface. Every unit of work is a
 * single database transaction: the treasury controls row is read FOR SHARE,
 * account rows are locked FOR UPDATE in id order, and entries plus cached
 * balances are written before COMMIT.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: PostgreSQL driver. Any PgxPool works, so tests run
 *   against pgxmock.
 * - github.com/shopspring/decimal: NUMERIC columns are scanned into decimals.
 */

package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/vibetrailmedia/stepupnaija-sub004/internal/domain"
)

const (
	pgCheckViolation  = "23514"
	pgUniqueViolation = "23505"
)

const accountColumns = `id, kind, label, sup_balance, kyc_tier, created_at, updated_at`

const transactionColumns = `id, account_id, type, amount_sup, amount_ngn, meta, status, reversal_of, created_at, updated_at`

const controlsColumns = `frozen, COALESCE(frozen_by, ''), COALESCE(frozen_reason, ''), frozen_at, last_audit_at`

// PgxPool is the part of *pgxpool.Pool the ledger uses.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresLedger is the production Ledger.
type PostgresLedger struct {
	db PgxPool
}

// NewPostgresLedger creates a ledger over the given pool.
func NewPostgresLedger(db PgxPool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var (
		acct       domain.Account
		kind, tier string
	)
	if err := row.Scan(&acct.ID, &kind, &acct.Label, &acct.SUPBalance, &tier, &acct.CreatedAt, &acct.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, err
	}
	acct.Kind = domain.AccountKind(kind)
	acct.KYCTier = domain.KYCTier(tier)
	return &acct, nil
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var (
		tx         domain.Transaction
		txType     string
		status     string
		metaJSON   []byte
		reversalOf *uuid.UUID
	)
	err := row.Scan(&tx.ID, &tx.AccountID, &txType, &tx.AmountSUP, &tx.AmountNGN, &metaJSON, &status, &reversalOf, &tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTransactionNotFound
		}
		return nil, err
	}
	tx.Type = domain.TransactionType(txType)
	tx.Status = domain.TransactionStatus(status)
	tx.ReversalOf = reversalOf
	if len(metaJSON) > 0 {
		if err := json.Unmarshal(metaJSON, &tx.Meta); err != nil {
			return nil, fmt.Errorf("decode meta for transaction %s: %w", tx.ID, err)
		}
	}
	if len(tx.Meta) == 0 {
		tx.Meta = nil
	}
	return &tx, nil
}

func scanControls(row pgx.Row) (domain.TreasuryControls, error) {
	var c domain.TreasuryControls
	if err := row.Scan(&c.Frozen, &c.FrozenBy, &c.FrozenReason, &c.FrozenAt, &c.LastAuditAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.TreasuryControls{}, nil
		}
		return domain.TreasuryControls{}, err
	}
	return c, nil
}

func isPgError(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

func encodeMeta(meta map[string]string) (string, error) {
	if len(meta) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func typeStrings(types []domain.TransactionType) []string {
	out := make([]string, 0, len(types))
	for _, t := range types {
		out = append(out, string(t))
	}
	return out
}

func statusStrings(statuses []domain.TransactionStatus) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		out = append(out, string(s))
	}
	return out
}

// WithAccounts runs fn inside one database transaction holding the account row locks.
func (r *PostgresLedger) WithAccounts(ctx context.Context, accountIDs []uuid.UUID, fn UnitOfWork) error {
	ids := sortedUnique(accountIDs)

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin unit of work: %w", err)
	}
	defer tx.Rollback(ctx)

	controls, err := scanControls(tx.QueryRow(ctx, "SELECT "+controlsColumns+" FROM treasury_controls WHERE id = 1 FOR SHARE"))
	if err != nil {
		return fmt.Errorf("read treasury controls: %w", err)
	}

	unit := &pgLedgerTx{
		tx:       tx,
		controls: controls,
		accounts: make(map[uuid.UUID]*domain.Account, len(ids)),
		rounds:   make(map[uuid.UUID]*domain.PrizeRound),
	}
	for _, id := range ids {
		// Use FOR UPDATE to serialize every operation on this account.
		acct, err := scanAccount(tx.QueryRow(ctx, "SELECT "+accountColumns+" FROM accounts WHERE id = $1 FOR UPDATE", id))
		if err != nil {
			return err
		}
		unit.accounts[id] = acct
	}

	if err := fn(ctx, unit); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		if isPgError(err, pgCheckViolation) {
			return domain.ErrInsufficientFunds
		}
		return fmt.Errorf("commit unit of work: %w", err)
	}
	return nil
}

type pgLedgerTx struct {
	tx       pgx.Tx
	controls domain.TreasuryControls
	accounts map[uuid.UUID]*domain.Account
	rounds   map[uuid.UUID]*domain.PrizeRound
}

func (t *pgLedgerTx) Account(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	acct, ok := t.accounts[id]
	if !ok {
		return nil, ErrAccountNotLocked
	}
	out := *acct
	return &out, nil
}

func (t *pgLedgerTx) Controls() domain.TreasuryControls {
	return t.controls
}

func (t *pgLedgerTx) Append(ctx context.Context, in domain.Transaction) (*domain.Transaction, error) {
	if err := validateAppend(in); err != nil {
		return nil, err
	}
	return t.insert(ctx, in)
}

func (t *pgLedgerTx) insert(ctx context.Context, in domain.Transaction) (*domain.Transaction, error) {
	acct, ok := t.accounts[in.AccountID]
	if !ok {
		return nil, ErrAccountNotLocked
	}
	next := acct.SUPBalance.Add(in.AmountSUP)
	if next.IsNegative() {
		return nil, domain.ErrInsufficientFunds
	}

	entry := cloneTransaction(in)
	entry.ID = uuid.New()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	entry.UpdatedAt = entry.CreatedAt
	entry.AmountNGN = domain.SUPToNGN(entry.AmountSUP)

	meta, err := encodeMeta(entry.Meta)
	if err != nil {
		return nil, fmt.Errorf("encode meta: %w", err)
	}

	_, err = t.tx.Exec(ctx, `
		INSERT INTO ledger_transactions (id, account_id, type, amount_sup, amount_ngn, meta, status, reversal_of, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8, $9, $9)`,
		entry.ID, entry.AccountID, string(entry.Type), entry.AmountSUP, entry.AmountNGN, meta, string(entry.Status), entry.ReversalOf, entry.CreatedAt,
	)
	if err != nil {
		if isPgError(err, pgUniqueViolation) && entry.ReversalOf != nil {
			return nil, domain.ErrAlreadyReversed
		}
		return nil, fmt.Errorf("insert ledger entry: %w", err)
	}

	_, err = t.tx.Exec(ctx, "UPDATE accounts SET sup_balance = $2, updated_at = now() WHERE id = $1", entry.AccountID, next)
	if err != nil {
		if isPgError(err, pgCheckViolation) {
			return nil, domain.ErrInsufficientFunds
		}
		return nil, fmt.Errorf("update balance: %w", err)
	}
	acct.SUPBalance = next
	return &entry, nil
}

func (t *pgLedgerTx) Transaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	return scanTransaction(t.tx.QueryRow(ctx, "SELECT "+transactionColumns+" FROM ledger_transactions WHERE id = $1", id))
}

func (t *pgLedgerTx) lockedTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	current, err := scanTransaction(t.tx.QueryRow(ctx, "SELECT "+transactionColumns+" FROM ledger_transactions WHERE id = $1 FOR UPDATE", id))
	if err != nil {
		return nil, err
	}
	if _, ok := t.accounts[current.AccountID]; !ok {
		return nil, ErrAccountNotLocked
	}
	return current, nil
}

func (t *pgLedgerTx) SetStatus(ctx context.Context, id uuid.UUID, status domain.TransactionStatus) (*domain.Transaction, error) {
	current, err := t.lockedTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkTransition(*current, status); err != nil {
		return nil, err
	}
	return scanTransaction(t.tx.QueryRow(ctx,
		"UPDATE ledger_transactions SET status = $2, updated_at = now() WHERE id = $1 RETURNING "+transactionColumns,
		id, string(status),
	))
}

func (t *pgLedgerTx) Reverse(ctx context.Context, id uuid.UUID, reason, actor string) (*domain.Transaction, error) {
	current, err := t.lockedTransaction(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := checkReversible(*current); err != nil {
		return nil, err
	}
	comp, err := t.insert(ctx, current.Compensating(reason, actor))
	if err != nil {
		return nil, err
	}
	if _, err := t.tx.Exec(ctx, "UPDATE ledger_transactions SET status = 'REVERSED', updated_at = now() WHERE id = $1", id); err != nil {
		return nil, fmt.Errorf("mark reversed: %w", err)
	}
	return comp, nil
}

func (t *pgLedgerTx) SumSUP(ctx context.Context, accountID uuid.UUID, q WindowQuery) (decimal.Decimal, error) {
	if _, ok := t.accounts[accountID]; !ok {
		return decimal.Zero, ErrAccountNotLocked
	}
	statuses := q.Statuses
	if len(statuses) == 0 {
		statuses = domain.EffectiveStatuses
	}
	var sum decimal.Decimal
	err := t.tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount_sup), 0)
		FROM ledger_transactions
		WHERE account_id = $1
		  AND (cardinality($2::text[]) = 0 OR type = ANY($2::text[]))
		  AND status = ANY($3::text[])
		  AND created_at >= $4`,
		accountID, typeStrings(q.Types), statusStrings(statuses), q.Since,
	).Scan(&sum)
	if err != nil {
		return decimal.Zero, fmt.Errorf("sum window: %w", err)
	}
	return sum, nil
}

func (t *pgLedgerTx) HasMeta(ctx context.Context, accountID uuid.UUID, txType domain.TransactionType, key, value string) (bool, error) {
	if _, ok := t.accounts[accountID]; !ok {
		return false, ErrAccountNotLocked
	}
	var exists bool
	err := t.tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM ledger_transactions
			WHERE account_id = $1 AND type = $2 AND reversal_of IS NULL
			  AND status <> 'REVERSED' AND meta->>$3 = $4
		)`,
		accountID, string(txType), key, value,
	).Scan(&exists)
	return exists, err
}

func (t *pgLedgerTx) AppendAudit(ctx context.Context, entry domain.AuditEntry) error {
	return insertAudit(ctx, t.tx, withAuditDefaults(entry, time.Now().UTC()))
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func insertAudit(ctx context.Context, db execer, entry domain.AuditEntry) error {
	_, err := db.Exec(ctx,
		"INSERT INTO audit_log (id, actor, action, subject, justification, created_at) VALUES ($1, $2, $3, $4, $5, $6)",
		entry.ID, entry.Actor, string(entry.Action), entry.Subject, entry.Justification, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (r *PostgresLedger) EnsureAccount(ctx context.Context, account domain.Account) (*domain.Account, error) {
	if account.Kind == "" {
		account.Kind = domain.AccountKindUser
	}
	if account.KYCTier == "" {
		account.KYCTier = domain.KYCTierNone
	}
	_, err := r.db.Exec(ctx, `
		INSERT INTO accounts (id, kind, label, sup_balance, kyc_tier)
		VALUES ($1, $2, $3, 0, $4)
		ON CONFLICT (id) DO NOTHING`,
		account.ID, string(account.Kind), account.Label, string(account.KYCTier),
	)
	if err != nil {
		return nil, fmt.Errorf("insert account: %w", err)
	}
	return r.FindAccount(ctx, account.ID)
}

func (r *PostgresLedger) FindAccount(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	return scanAccount(r.db.QueryRow(ctx, "SELECT "+accountColumns+" FROM accounts WHERE id = $1", id))
}

func (r *PostgresLedger) UpdateKYCTier(ctx context.Context, id uuid.UUID, tier domain.KYCTier) error {
	tag, err := r.db.Exec(ctx,
		"UPDATE accounts SET kyc_tier = $2, updated_at = now() WHERE id = $1 AND kyc_tier <> $2",
		id, string(tier),
	)
	if err != nil {
		return fmt.Errorf("update kyc tier: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.FindAccount(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

func (r *PostgresLedger) FindTransaction(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	return scanTransaction(r.db.QueryRow(ctx, "SELECT "+transactionColumns+" FROM ledger_transactions WHERE id = $1", id))
}

func (r *PostgresLedger) FindTransfer(ctx context.Context, transferID string) ([]domain.Transaction, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+transactionColumns+`
		FROM ledger_transactions
		WHERE type = 'ADMIN_TRANSFER' AND reversal_of IS NULL AND meta->>'transfer_id' = $1
		ORDER BY created_at, id`,
		transferID,
	)
	if err != nil {
		return nil, fmt.Errorf("query transfer legs: %w", err)
	}
	defer rows.Close()

	var legs []domain.Transaction
	for rows.Next() {
		leg, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		legs = append(legs, *leg)
	}
	return legs, rows.Err()
}

const historyQuery = `
	SELECT ` + transactionColumns + `
	FROM ledger_transactions
	WHERE account_id = $1
	  AND (cardinality($2::text[]) = 0 OR type = ANY($2::text[]))
	  AND (cardinality($3::text[]) = 0 OR status = ANY($3::text[]))
	  AND ($4::timestamptz IS NULL OR created_at >= $4)
	  AND ($5::timestamptz IS NULL OR created_at < $5)
	  AND ($6::timestamptz IS NULL OR (created_at, id) < ($6, $7))
	ORDER BY created_at DESC, id DESC
	LIMIT $8`

// History pages through the account's entries with a (created_at, id) keyset.
// Each page is read fully before it is yielded so no connection is held while
// the caller works.
func (r *PostgresLedger) History(ctx context.Context, accountID uuid.UUID, filter domain.HistoryFilter) iter.Seq2[domain.Transaction, error] {
	return func(yield func(domain.Transaction, error) bool) {
		pageSize := filter.PageSize
		if pageSize <= 0 {
			pageSize = defaultPageSize
		}
		var since, until *time.Time
		if !filter.Since.IsZero() {
			since = &filter.Since
		}
		if !filter.Until.IsZero() {
			until = &filter.Until
		}

		var (
			cursorAt *time.Time
			cursorID uuid.UUID
			emitted  int
		)
		for {
			page, err := r.historyPage(ctx, accountID, filter, since, until, cursorAt, cursorID, pageSize)
			if err != nil {
				yield(domain.Transaction{}, err)
				return
			}
			for _, entry := range page {
				if filter.Limit > 0 && emitted >= filter.Limit {
					return
				}
				if !yield(entry, nil) {
					return
				}
				emitted++
			}
			if len(page) < pageSize {
				return
			}
			last := page[len(page)-1]
			at := last.CreatedAt
			cursorAt, cursorID = &at, last.ID
		}
	}
}

func (r *PostgresLedger) historyPage(ctx context.Context, accountID uuid.UUID, filter domain.HistoryFilter, since, until, cursorAt *time.Time, cursorID uuid.UUID, pageSize int) ([]domain.Transaction, error) {
	rows, err := r.db.Query(ctx, historyQuery,
		accountID, typeStrings(filter.Types), statusStrings(filter.Statuses), since, until, cursorAt, cursorID, pageSize,
	)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	page := make([]domain.Transaction, 0, pageSize)
	for rows.Next() {
		entry, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		page = append(page, *entry)
	}
	return page, rows.Err()
}

func (r *PostgresLedger) ListPendingCashouts(ctx context.Context, createdBefore time.Time, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(ctx, `
		SELECT `+transactionColumns+`
		FROM ledger_transactions
		WHERE type = 'CASHOUT' AND status = 'PENDING' AND created_at < $1
		ORDER BY created_at ASC
		LIMIT $2`,
		createdBefore, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query pending cashouts: %w", err)
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		entry, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *entry)
	}
	return out, rows.Err()
}

func (r *PostgresLedger) Totals(ctx context.Context, weekStart time.Time) (domain.LedgerTotals, error) {
	var totals domain.LedgerTotals
	err := r.db.QueryRow(ctx, `
		SELECT
			COALESCE(SUM(amount_ngn) FILTER (WHERE type = 'BUY' AND status = 'COMPLETED'), 0),
			COALESCE(-SUM(amount_ngn) FILTER (WHERE type = 'CASHOUT' AND status = 'COMPLETED'), 0),
			COALESCE(SUM(amount_ngn) FILTER (WHERE type = 'BUY' AND status = 'COMPLETED' AND created_at >= $1), 0),
			COALESCE(-SUM(amount_ngn) FILTER (WHERE type = 'CASHOUT' AND status <> 'REVERSED' AND created_at >= $1), 0),
			COUNT(*) FILTER (WHERE type = 'CASHOUT' AND status = 'PENDING'),
			COALESCE(-SUM(amount_ngn) FILTER (WHERE type = 'CASHOUT' AND status = 'PENDING'), 0)
		FROM ledger_transactions
		WHERE reversal_of IS NULL`,
		weekStart,
	).Scan(
		&totals.CompletedBuyNGN,
		&totals.CompletedCashoutNGN,
		&totals.WeeklyBuyNGN,
		&totals.WeeklyCashoutNGN,
		&totals.PendingCashouts,
		&totals.PendingCashoutNGN,
	)
	if err != nil {
		return domain.LedgerTotals{}, fmt.Errorf("aggregate ledger: %w", err)
	}

	if err := r.db.QueryRow(ctx, "SELECT COALESCE(SUM(sup_balance), 0) FROM accounts").Scan(&totals.TotalSUP); err != nil {
		return domain.LedgerTotals{}, fmt.Errorf("sum balances: %w", err)
	}

	err = r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(CASE
			WHEN status <> 'CLOSED' THEN pool_sup
			WHEN NOT rollover_claimed THEN rollover_sup
			ELSE 0 END), 0)
		FROM prize_rounds`,
	).Scan(&totals.OpenPrizePoolSUP)
	if err != nil {
		return domain.LedgerTotals{}, fmt.Errorf("sum prize pools: %w", err)
	}
	return totals, nil
}

func (r *PostgresLedger) ReconcileBalances(ctx context.Context) (int, []domain.BalanceDrift, error) {
	rows, err := r.db.Query(ctx, `
		SELECT a.id, a.sup_balance, COALESCE(SUM(t.amount_sup) FILTER (WHERE t.status <> 'REVERSED'), 0)
		FROM accounts a
		LEFT JOIN ledger_transactions t ON t.account_id = a.id
		GROUP BY a.id, a.sup_balance`)
	if err != nil {
		return 0, nil, fmt.Errorf("reconcile balances: %w", err)
	}
	defer rows.Close()

	var (
		count  int
		drifts []domain.BalanceDrift
	)
	for rows.Next() {
		var d domain.BalanceDrift
		if err := rows.Scan(&d.AccountID, &d.Cached, &d.Computed); err != nil {
			return 0, nil, err
		}
		count++
		if !d.Cached.Equal(d.Computed) {
			drifts = append(drifts, d)
		}
	}
	return count, drifts, rows.Err()
}

func (r *PostgresLedger) Controls(ctx context.Context) (domain.TreasuryControls, error) {
	return scanControls(r.db.QueryRow(ctx, "SELECT "+controlsColumns+" FROM treasury_controls WHERE id = 1"))
}

func (r *PostgresLedger) UpdateControls(ctx context.Context, audit domain.AuditEntry, fn func(*domain.TreasuryControls) (bool, error)) (domain.TreasuryControls, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return domain.TreasuryControls{}, err
	}
	defer tx.Rollback(ctx)

	current, err := scanControls(tx.QueryRow(ctx, "SELECT "+controlsColumns+" FROM treasury_controls WHERE id = 1 FOR UPDATE"))
	if err != nil {
		return domain.TreasuryControls{}, fmt.Errorf("lock treasury controls: %w", err)
	}

	next := current
	changed, err := fn(&next)
	if err != nil || !changed {
		return current, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO treasury_controls (id, frozen, frozen_by, frozen_reason, frozen_at, last_audit_at)
		VALUES (1, $1, NULLIF($2, ''), NULLIF($3, ''), $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			frozen = EXCLUDED.frozen,
			frozen_by = EXCLUDED.frozen_by,
			frozen_reason = EXCLUDED.frozen_reason,
			frozen_at = EXCLUDED.frozen_at,
			last_audit_at = EXCLUDED.last_audit_at`,
		next.Frozen, next.FrozenBy, next.FrozenReason, next.FrozenAt, next.LastAuditAt,
	)
	if err != nil {
		return current, fmt.Errorf("update treasury controls: %w", err)
	}
	if err := insertAudit(ctx, tx, withAuditDefaults(audit, time.Now().UTC())); err != nil {
		return current, err
	}
	if err := tx.Commit(ctx); err != nil {
		return current, err
	}
	return next, nil
}

func (r *PostgresLedger) ListAudit(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(ctx,
		"SELECT id, actor, action, subject, justification, created_at FROM audit_log ORDER BY created_at DESC, id DESC LIMIT $1",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	var out []domain.AuditEntry
	for rows.Next() {
		var (
			entry  domain.AuditEntry
			action string
		)
		if err := rows.Scan(&entry.ID, &entry.Actor, &action, &entry.Subject, &entry.Justification, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.Action = domain.AuditAction(action)
		out = append(out, entry)
	}
	return out, rows.Err()
}
