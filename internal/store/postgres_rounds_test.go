package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/vibetrailmedia/stepupnaija-sub004/internal/domain"
)

func roundRow(mock pgxmock.PgxPoolIface, id uuid.UUID, status domain.RoundStatus) *pgxmock.Rows {
	opened := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	return mock.NewRows(roundCols).AddRow(
		id, dec("100"), dec("0"), opened, opened.Add(7*24*time.Hour), string(status), []byte(nil), "c0ffee", "",
		dec("0"), dec("0"), dec("0"), false, false, nil,
	)
}

func TestPostgresBeginDrawMarksRoundDrawing(t *testing.T) {
	ledger, mock := newMockLedger(t)
	ctx := context.Background()
	id := uuid.New()
	first := uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	second := uuid.MustParse("00000000-0000-0000-0000-00000000000b")

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM prize_rounds WHERE id = \$1 FOR UPDATE`).
		WithArgs(id).
		WillReturnRows(roundRow(mock, id, domain.RoundOpen))
	mock.ExpectExec(`UPDATE prize_rounds SET status = 'DRAWING' WHERE id = \$1`).
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery(`SELECT account_id, entry_count FROM round_entries WHERE round_id = \$1`).
		WithArgs(id).
		WillReturnRows(mock.NewRows([]string{"account_id", "entry_count"}).AddRow(first, 3).AddRow(second, 7))
	mock.ExpectCommit()

	round, err := ledger.BeginDraw(ctx, id)
	if err != nil {
		t.Fatalf("begin draw: %v", err)
	}
	if round.Status != domain.RoundDrawing {
		t.Fatalf("expected DRAWING, got %s", round.Status)
	}
	if round.TotalEntries() != 10 || round.Entries[0].AccountID != first {
		t.Fatalf("unexpected entries %+v", round.Entries)
	}
	if round.ClosedAt != nil || len(round.Winners) != 0 || !round.PoolSUP.Equal(dec("100")) {
		t.Fatalf("unexpected round %+v", round)
	}
	assertExpectations(t, mock)
}

func TestPostgresBeginDrawRejectsSettledRound(t *testing.T) {
	ledger, mock := newMockLedger(t)
	ctx := context.Background()
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(`FROM prize_rounds WHERE id = \$1 FOR UPDATE`).
		WithArgs(id).
		WillReturnRows(roundRow(mock, id, domain.RoundClosed))
	mock.ExpectRollback()

	if _, err := ledger.BeginDraw(ctx, id); !errors.Is(err, domain.ErrRoundNotOpen) {
		t.Fatalf("expected ErrRoundNotOpen, got %v", err)
	}
	assertExpectations(t, mock)
}

func TestPostgresGetRoundNotFound(t *testing.T) {
	ledger, mock := newMockLedger(t)
	id := uuid.New()

	mock.ExpectQuery(`FROM prize_rounds WHERE id = \$1`).
		WithArgs(id).
		WillReturnError(pgx.ErrNoRows)

	if _, err := ledger.GetRound(context.Background(), id); !errors.Is(err, domain.ErrRoundNotFound) {
		t.Fatalf("expected ErrRoundNotFound, got %v", err)
	}
	assertExpectations(t, mock)
}
