package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/vibetrailmedia/stepupnaija-sub004/internal/domain"
)

const roundColumns = `id, pool_sup, rolled_in_sup, opened_at, closes_at, status, winners, seed_commitment, seed,
	community_sup, operating_sup, rollover_sup, rollover_claimed, cancelled, closed_at`

const alertColumns = `id, type, severity, account_id, message, created_at, resolved,
	COALESCE(resolved_by, ''), resolved_at, COALESCE(resolution_note, '')`

type queryer interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func scanRound(row pgx.Row) (*domain.PrizeRound, error) {
	var (
		r           domain.PrizeRound
		status      string
		winnersJSON []byte
	)
	err := row.Scan(&r.ID, &r.PoolSUP, &r.RolledInSUP, &r.OpenedAt, &r.ClosesAt, &status, &winnersJSON,
		&r.SeedCommitment, &r.Seed, &r.CommunitySUP, &r.OperatingSUP, &r.RolloverSUP,
		&r.RolloverClaimed, &r.Cancelled, &r.ClosedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRoundNotFound
		}
		return nil, err
	}
	r.Status = domain.RoundStatus(status)
	if len(winnersJSON) > 0 {
		if err := json.Unmarshal(winnersJSON, &r.Winners); err != nil {
			return nil, fmt.Errorf("decode winners for round %s: %w", r.ID, err)
		}
	}
	return &r, nil
}

func loadEntries(ctx context.Context, db queryer, round *domain.PrizeRound) error {
	rows, err := db.Query(ctx,
		"SELECT account_id, entry_count FROM round_entries WHERE round_id = $1 ORDER BY account_id",
		round.ID,
	)
	if err != nil {
		return fmt.Errorf("query round entries: %w", err)
	}
	defer rows.Close()

	round.Entries = nil
	for rows.Next() {
		var e domain.RoundEntry
		if err := rows.Scan(&e.AccountID, &e.EntryCount); err != nil {
			return err
		}
		round.Entries = append(round.Entries, e)
	}
	return rows.Err()
}

func (t *pgLedgerTx) LockRound(ctx context.Context, roundID uuid.UUID) (*domain.PrizeRound, error) {
	if staged, ok := t.rounds[roundID]; ok {
		out := cloneRound(*staged)
		return &out, nil
	}
	round, err := scanRound(t.tx.QueryRow(ctx, "SELECT "+roundColumns+" FROM prize_rounds WHERE id = $1 FOR UPDATE", roundID))
	if err != nil {
		return nil, err
	}
	if err := loadEntries(ctx, t.tx, round); err != nil {
		return nil, err
	}
	t.rounds[roundID] = round
	out := cloneRound(*round)
	return &out, nil
}

func (t *pgLedgerTx) AddRoundEntry(ctx context.Context, roundID, accountID uuid.UUID, entries int, cost decimal.Decimal) error {
	round, ok := t.rounds[roundID]
	if !ok {
		return ErrRoundNotLocked
	}
	if round.Status != domain.RoundOpen {
		return domain.ErrRoundNotOpen
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO round_entries (round_id, account_id, entry_count)
		VALUES ($1, $2, $3)
		ON CONFLICT (round_id, account_id) DO UPDATE SET entry_count = round_entries.entry_count + EXCLUDED.entry_count`,
		roundID, accountID, entries,
	)
	if err != nil {
		return fmt.Errorf("insert round entry: %w", err)
	}
	if _, err := t.tx.Exec(ctx, "UPDATE prize_rounds SET pool_sup = pool_sup + $2 WHERE id = $1", roundID, cost); err != nil {
		return fmt.Errorf("grow prize pool: %w", err)
	}

	found := false
	for i := range round.Entries {
		if round.Entries[i].AccountID == accountID {
			round.Entries[i].EntryCount += entries
			found = true
			break
		}
	}
	if !found {
		round.Entries = append(round.Entries, domain.RoundEntry{AccountID: accountID, EntryCount: entries})
	}
	round.PoolSUP = round.PoolSUP.Add(cost)
	return nil
}

func (t *pgLedgerTx) CloseRound(ctx context.Context, round domain.PrizeRound) error {
	staged, ok := t.rounds[round.ID]
	if !ok {
		return ErrRoundNotLocked
	}
	if staged.Status == domain.RoundClosed {
		return domain.ErrRoundClosed
	}
	closedAt := time.Now().UTC()
	if round.ClosedAt != nil {
		closedAt = *round.ClosedAt
	}
	winners := round.Winners
	if winners == nil {
		winners = []domain.Winner{}
	}
	winnersJSON, err := json.Marshal(winners)
	if err != nil {
		return fmt.Errorf("encode winners: %w", err)
	}

	_, err = t.tx.Exec(ctx, `
		UPDATE prize_rounds SET
			status = 'CLOSED',
			winners = $2::jsonb,
			seed = $3,
			community_sup = $4,
			operating_sup = $5,
			rollover_sup = $6,
			cancelled = $7,
			closed_at = $8
		WHERE id = $1`,
		round.ID, string(winnersJSON), round.Seed, round.CommunitySUP, round.OperatingSUP, round.RolloverSUP, round.Cancelled, closedAt,
	)
	if err != nil {
		return fmt.Errorf("close round: %w", err)
	}

	closed := cloneRound(round)
	closed.Status = domain.RoundClosed
	closed.Entries = staged.Entries
	closed.ClosedAt = &closedAt
	t.rounds[round.ID] = &closed
	return nil
}

func (r *PostgresLedger) OpenRound(ctx context.Context, round domain.PrizeRound) (*domain.PrizeRound, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var rolled decimal.Decimal
	err = tx.QueryRow(ctx, `
		WITH claimed AS (
			UPDATE prize_rounds SET rollover_claimed = true
			WHERE status = 'CLOSED' AND NOT rollover_claimed AND rollover_sup > 0
			RETURNING rollover_sup
		)
		SELECT COALESCE(SUM(rollover_sup), 0) FROM claimed`,
	).Scan(&rolled)
	if err != nil {
		return nil, fmt.Errorf("claim rollovers: %w", err)
	}

	if round.ID == uuid.Nil {
		round.ID = uuid.New()
	}
	if round.OpenedAt.IsZero() {
		round.OpenedAt = time.Now().UTC()
	}
	round.Status = domain.RoundOpen
	round.RolledInSUP = rolled
	round.PoolSUP = round.PoolSUP.Add(rolled)

	_, err = tx.Exec(ctx, `
		INSERT INTO prize_rounds (id, pool_sup, rolled_in_sup, opened_at, closes_at, status, seed_commitment, seed)
		VALUES ($1, $2, $3, $4, $5, 'OPEN', $6, $7)`,
		round.ID, round.PoolSUP, round.RolledInSUP, round.OpenedAt, round.ClosesAt, round.SeedCommitment, round.Seed,
	)
	if err != nil {
		return nil, fmt.Errorf("insert round: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	out := cloneRound(round)
	return &out, nil
}

func (r *PostgresLedger) GetRound(ctx context.Context, id uuid.UUID) (*domain.PrizeRound, error) {
	round, err := scanRound(r.db.QueryRow(ctx, "SELECT "+roundColumns+" FROM prize_rounds WHERE id = $1", id))
	if err != nil {
		return nil, err
	}
	if err := loadEntries(ctx, r.db, round); err != nil {
		return nil, err
	}
	return round, nil
}

func (r *PostgresLedger) ListRounds(ctx context.Context, filter domain.RoundFilter) ([]domain.PrizeRound, error) {
	statuses := make([]string, 0, len(filter.Statuses))
	for _, s := range filter.Statuses {
		statuses = append(statuses, string(s))
	}
	var dueBefore *time.Time
	if !filter.DueBefore.IsZero() {
		dueBefore = &filter.DueBefore
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(ctx, `
		SELECT `+roundColumns+`
		FROM prize_rounds
		WHERE (cardinality($1::text[]) = 0 OR status = ANY($1::text[]))
		  AND ($2::timestamptz IS NULL OR closes_at < $2)
		ORDER BY opened_at DESC
		LIMIT $3`,
		statuses, dueBefore, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query rounds: %w", err)
	}
	var out []domain.PrizeRound
	for rows.Next() {
		round, err := scanRound(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, *round)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		if err := loadEntries(ctx, r.db, &out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// BeginDraw takes the round row lock, so it waits for entries that already
// hold it and every later entry sees DRAWING.
func (r *PostgresLedger) BeginDraw(ctx context.Context, id uuid.UUID) (*domain.PrizeRound, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	round, err := scanRound(tx.QueryRow(ctx, "SELECT "+roundColumns+" FROM prize_rounds WHERE id = $1 FOR UPDATE", id))
	if err != nil {
		return nil, err
	}
	if round.Status != domain.RoundOpen {
		return nil, domain.ErrRoundNotOpen
	}
	if _, err := tx.Exec(ctx, "UPDATE prize_rounds SET status = 'DRAWING' WHERE id = $1", id); err != nil {
		return nil, fmt.Errorf("begin draw: %w", err)
	}
	if err := loadEntries(ctx, tx, round); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	round.Status = domain.RoundDrawing
	return round, nil
}

func scanAlert(row pgx.Row) (*domain.SecurityAlert, error) {
	var (
		a         domain.SecurityAlert
		alertType string
		severity  string
	)
	err := row.Scan(&a.ID, &alertType, &severity, &a.AccountID, &a.Message, &a.Timestamp, &a.Resolved,
		&a.ResolvedBy, &a.ResolvedAt, &a.ResolutionNote)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAlertNotFound
		}
		return nil, err
	}
	a.Type = domain.AlertType(alertType)
	a.Severity = domain.Severity(severity)
	return &a, nil
}

// InsertAlertUnlessRecent serializes writers for one (type, account) pair with
// a transaction-scoped advisory lock before checking for a recent alert.
func (r *PostgresLedger) InsertAlertUnlessRecent(ctx context.Context, alert domain.SecurityAlert, since time.Time) (*domain.SecurityAlert, bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx)

	key := string(alert.Type) + ":" + uuid.Nil.String()
	if alert.AccountID != nil {
		key = string(alert.Type) + ":" + alert.AccountID.String()
	}
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", key); err != nil {
		return nil, false, fmt.Errorf("lock alert key: %w", err)
	}

	existing, err := scanAlert(tx.QueryRow(ctx, `
		SELECT `+alertColumns+`
		FROM security_alerts
		WHERE type = $1 AND account_id IS NOT DISTINCT FROM $2 AND NOT resolved AND created_at >= $3
		ORDER BY created_at DESC
		LIMIT 1`,
		string(alert.Type), alert.AccountID, since,
	))
	switch {
	case err == nil:
		return existing, false, nil
	case !errors.Is(err, domain.ErrAlertNotFound):
		return nil, false, fmt.Errorf("find recent alert: %w", err)
	}

	if alert.ID == uuid.Nil {
		alert.ID = uuid.New()
	}
	if alert.Timestamp.IsZero() {
		alert.Timestamp = time.Now().UTC()
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO security_alerts (id, type, severity, account_id, message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		alert.ID, string(alert.Type), string(alert.Severity), alert.AccountID, alert.Message, alert.Timestamp,
	)
	if err != nil {
		return nil, false, fmt.Errorf("insert alert: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	out := cloneAlert(alert)
	return &out, true, nil
}

func (r *PostgresLedger) GetAlert(ctx context.Context, id uuid.UUID) (*domain.SecurityAlert, error) {
	return scanAlert(r.db.QueryRow(ctx, "SELECT "+alertColumns+" FROM security_alerts WHERE id = $1", id))
}

func (r *PostgresLedger) ResolveAlert(ctx context.Context, id uuid.UUID, actor, note string, at time.Time, audit domain.AuditEntry) (*domain.SecurityAlert, bool, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx)

	resolved, err := scanAlert(tx.QueryRow(ctx, `
		UPDATE security_alerts
		SET resolved = true, resolved_by = $2, resolved_at = $3, resolution_note = $4
		WHERE id = $1 AND NOT resolved
		RETURNING `+alertColumns,
		id, actor, at, note,
	))
	if errors.Is(err, domain.ErrAlertNotFound) {
		// Either unknown or already resolved.
		existing, err := r.GetAlert(ctx, id)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("resolve alert: %w", err)
	}
	if err := insertAudit(ctx, tx, withAuditDefaults(audit, at)); err != nil {
		return nil, false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return resolved, true, nil
}

func (r *PostgresLedger) ListAlerts(ctx context.Context, filter domain.AlertFilter) ([]domain.SecurityAlert, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(ctx, `
		SELECT `+alertColumns+`
		FROM security_alerts
		WHERE (NOT $1 OR NOT resolved)
		  AND ($2 = '' OR type = $2)
		ORDER BY created_at DESC, id DESC
		LIMIT $3`,
		filter.UnresolvedOnly, string(filter.Type), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var out []domain.SecurityAlert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}
