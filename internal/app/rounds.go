/**
 * @description
 * DrawEngine runs the weekly prize rounds: opening a round with a committed
 * seed, selling entries through the wallet, and drawing winners once the
 * round closes. All payouts and the CLOSED transition of a round commit in a
 * single unit of work.
 *
 * @notes
 * - Lock order is accounts first, then the round row, matching Enter.
 * - A round left in DRAWING by a crash is finished by DrawDue; the stored
 *   seed makes the re-run select the same winners.
 */

package app

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vibetrailmedia/stepupnaija-sub004/internal/domain"
	"github.com/vibetrailmedia/stepupnaija-sub004/internal/draw"
	"github.com/vibetrailmedia/stepupnaija-sub004/internal/store"
	"go.uber.org/zap"
)

// MaxEntriesPerRequest bounds a single Enter call.
const MaxEntriesPerRequest = 1000

const prizeRoundSource = "prize_round"

// EntryReceipt is returned by Enter.
type EntryReceipt struct {
	Transaction domain.Transaction `json:"transaction"`
	RoundID     uuid.UUID          `json:"round_id"`
	EntryCount  int                `json:"entry_count"`
	PoolSUP     decimal.Decimal    `json:"pool_sup"`
}

// DrawEngine provides the prize round operations.
type DrawEngine struct {
	wallet *WalletService
	ledger store.Ledger
	events *Events
	logger *zap.Logger
	now    func() time.Time
}

// NewDrawEngine creates a new DrawEngine.
func NewDrawEngine(wallet *WalletService, ledger store.Ledger, events *Events, logger *zap.Logger) *DrawEngine {
	return &DrawEngine{
		wallet: wallet,
		ledger: ledger,
		events: events,
		logger: logger.With(zap.String("component", "draw_engine")),
		now:    time.Now,
	}
}

// OpenRound creates an OPEN round closing at closesAt and publishes the seed
// commitment. Unclaimed rollovers of closed rounds join its pool.
func (e *DrawEngine) OpenRound(ctx context.Context, closesAt time.Time, actor string) (*domain.PrizeRound, error) {
	now := e.now().UTC()
	if !closesAt.After(now) {
		return nil, invalid("closesAt must be in the future")
	}
	if strings.TrimSpace(actor) == "" {
		actor = SystemActor
	}

	seed, commitment, err := draw.NewSeed()
	if err != nil {
		return nil, err
	}
	round, err := e.ledger.OpenRound(ctx, domain.PrizeRound{
		PoolSUP:        decimal.Zero,
		OpenedAt:       now,
		ClosesAt:       closesAt.UTC(),
		SeedCommitment: commitment,
		Seed:           seed,
	})
	if err != nil {
		return nil, fmt.Errorf("open round: %w", err)
	}

	if err := e.ledger.WithAccounts(ctx, nil, func(ctx context.Context, tx store.LedgerTx) error {
		return tx.AppendAudit(ctx, domain.AuditEntry{
			Actor:         actor,
			Action:        domain.AuditOpenRound,
			Subject:       round.ID.String(),
			Justification: fmt.Sprintf("closes %s, commitment %s", round.ClosesAt.Format(time.RFC3339), commitment),
		})
	}); err != nil {
		e.logger.Error("failed to audit round opening", zap.String("round_id", round.ID.String()), zap.Error(err))
	}

	e.logger.Info("prize round opened",
		zap.String("flow", "draw"),
		zap.String("round_id", round.ID.String()),
		zap.Time("closes_at", round.ClosesAt),
		zap.String("rolled_in_sup", round.RolledInSUP.StringFixed(2)),
		zap.String("seed_commitment", commitment),
	)
	public := round.Public()
	return &public, nil
}

// Enter buys entryCount tickets for accountID at 50 SUP each.
func (e *DrawEngine) Enter(ctx context.Context, roundID, accountID uuid.UUID, entryCount int) (*EntryReceipt, error) {
	if entryCount <= 0 || entryCount > MaxEntriesPerRequest {
		return nil, invalid("entry count must be between 1 and %d", MaxEntriesPerRequest)
	}
	round, err := e.ledger.GetRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	if err := e.acceptingEntries(round); err != nil {
		return nil, err
	}
	tier, err := e.wallet.Tier(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if tier.Rank() < domain.KYCTierOne.Rank() {
		return nil, domain.ErrTierTooLow
	}

	cost := domain.EntryCostSUP.Mul(decimal.NewFromInt(int64(entryCount)))
	receipt := &EntryReceipt{RoundID: roundID}
	debit, err := e.wallet.Spend(ctx, SpendRequest{
		AccountID: accountID,
		Type:      domain.TypeEntry,
		Amount:    cost,
		Meta: map[string]string{
			domain.MetaRoundID:    roundID.String(),
			domain.MetaEntryCount: strconv.Itoa(entryCount),
		},
		OnDebit: func(ctx context.Context, tx store.LedgerTx, debit *domain.Transaction) error {
			locked, err := tx.LockRound(ctx, roundID)
			if err != nil {
				return err
			}
			if err := e.acceptingEntries(locked); err != nil {
				return err
			}
			if err := tx.AddRoundEntry(ctx, roundID, accountID, entryCount, cost); err != nil {
				return err
			}
			receipt.EntryCount = locked.EntriesFor(accountID) + entryCount
			receipt.PoolSUP = locked.PoolSUP.Add(cost)
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	receipt.Transaction = *debit

	e.logger.Info("draw entry recorded",
		zap.String("flow", "draw"),
		zap.String("round_id", roundID.String()),
		zap.String("account_id", accountID.String()),
		zap.Int("entries", entryCount),
	)
	return receipt, nil
}

func (e *DrawEngine) acceptingEntries(round *domain.PrizeRound) error {
	switch round.Status {
	case domain.RoundOpen:
	case domain.RoundClosed:
		return domain.ErrRoundClosed
	default:
		return domain.ErrRoundNotOpen
	}
	if !e.now().Before(round.ClosesAt) {
		return fmt.Errorf("%w: entries closed at %s", domain.ErrRoundNotOpen, round.ClosesAt.Format(time.RFC3339))
	}
	return nil
}

// Draw moves an OPEN round past its close time to DRAWING, selects winners
// from the revealed seed and pays out the pool. A round already in DRAWING is
// resumed.
func (e *DrawEngine) Draw(ctx context.Context, roundID uuid.UUID) (*domain.PrizeRound, error) {
	return e.drawAt(ctx, roundID, e.now())
}

func (e *DrawEngine) drawAt(ctx context.Context, roundID uuid.UUID, now time.Time) (*domain.PrizeRound, error) {
	current, err := e.ledger.GetRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	if current.Status == domain.RoundOpen && now.Before(current.ClosesAt) {
		return nil, fmt.Errorf("%w: round closes at %s", domain.ErrRoundNotOpen, current.ClosesAt.UTC().Format(time.RFC3339))
	}

	round, err := e.ledger.BeginDraw(ctx, roundID)
	if errors.Is(err, domain.ErrRoundNotOpen) {
		round, err = e.ledger.GetRound(ctx, roundID)
		if err == nil {
			switch round.Status {
			case domain.RoundClosed:
				return nil, domain.ErrRoundClosed
			case domain.RoundOpen:
				return nil, domain.ErrRoundNotOpen
			}
			e.logger.Info("resuming interrupted draw", zap.String("round_id", roundID.String()))
		}
	}
	if err != nil {
		return nil, err
	}
	return e.finalize(ctx, round)
}

func (e *DrawEngine) finalize(ctx context.Context, round *domain.PrizeRound) (*domain.PrizeRound, error) {
	seed, err := hex.DecodeString(round.Seed)
	if err != nil || len(seed) != draw.SeedSize {
		return nil, fmt.Errorf("round %s has an unusable seed", round.ID)
	}
	if err := ensureSubAccounts(ctx, e.ledger, e.now().UTC()); err != nil {
		return nil, err
	}

	winners := draw.SelectWinners(seed, round.Entries, draw.MaxWinners)
	lockIDs := append([]uuid.UUID{domain.SubAccountCommunity.ID(), domain.SubAccountOperating.ID()}, winners...)

	var (
		appended []domain.Transaction
		closed   domain.PrizeRound
	)
	err = e.ledger.WithAccounts(ctx, lockIDs, func(ctx context.Context, tx store.LedgerTx) error {
		appended = appended[:0]
		locked, err := tx.LockRound(ctx, round.ID)
		if err != nil {
			return err
		}
		switch locked.Status {
		case domain.RoundClosed:
			return domain.ErrRoundClosed
		case domain.RoundOpen:
			return domain.ErrRoundNotOpen
		}

		split := draw.Split(locked.PoolSUP, len(winners))
		closed = *locked
		closed.Winners = make([]domain.Winner, 0, len(winners))
		for i, accountID := range winners {
			winner := domain.Winner{Rank: i + 1, AccountID: accountID, PayoutSUP: split.Payouts[i]}
			if split.Payouts[i].IsPositive() {
				prize, err := e.wallet.Award(ctx, tx, accountID, split.Payouts[i], map[string]string{
					domain.MetaRoundID: locked.ID.String(),
					domain.MetaRank:    strconv.Itoa(i + 1),
				})
				if err != nil {
					return fmt.Errorf("award rank %d: %w", i+1, err)
				}
				winner.TransactionID = prize.ID
				appended = append(appended, *prize)
			}
			closed.Winners = append(closed.Winners, winner)
		}

		for _, share := range []struct {
			sub    domain.SubAccount
			amount decimal.Decimal
		}{
			{domain.SubAccountCommunity, split.Community},
			{domain.SubAccountOperating, split.Operating},
		} {
			if !share.amount.IsPositive() {
				continue
			}
			entry, err := tx.Append(ctx, domain.Transaction{
				AccountID: share.sub.ID(),
				Type:      domain.TypeAdminTransfer,
				AmountSUP: share.amount,
				Meta: map[string]string{
					domain.MetaSource:  prizeRoundSource,
					domain.MetaRoundID: locked.ID.String(),
				},
				Status: domain.StatusCompleted,
			})
			if err != nil {
				return fmt.Errorf("credit %s share: %w", share.sub, err)
			}
			appended = append(appended, *entry)
		}

		now := e.now().UTC()
		closed.CommunitySUP = split.Community
		closed.OperatingSUP = split.Operating
		closed.RolloverSUP = split.Rollover
		closed.Cancelled = len(locked.Entries) == 0
		closed.ClosedAt = &now
		return tx.CloseRound(ctx, closed)
	})
	if err != nil {
		return nil, fmt.Errorf("draw round %s: %w", round.ID, err)
	}

	e.wallet.Committed(ctx, appended...)
	stored, err := e.ledger.GetRound(ctx, round.ID)
	if err != nil {
		return nil, err
	}
	e.logger.Info("prize round drawn",
		zap.String("flow", "draw"),
		zap.String("round_id", stored.ID.String()),
		zap.Int("winners", len(stored.Winners)),
		zap.Bool("cancelled", stored.Cancelled),
		zap.String("pool_sup", stored.PoolSUP.StringFixed(2)),
		zap.String("rollover_sup", stored.RolloverSUP.StringFixed(2)),
	)
	e.events.Publish(ctx, domain.RoutingRoundClosed, stored.Public())
	public := stored.Public()
	return &public, nil
}

// DrawDue draws every OPEN round whose close time has passed and finishes
// rounds left in DRAWING. It reports how many rounds were closed.
func (e *DrawEngine) DrawDue(ctx context.Context, now time.Time) (int, error) {
	due, err := e.ledger.ListRounds(ctx, domain.RoundFilter{
		Statuses:  []domain.RoundStatus{domain.RoundOpen},
		DueBefore: now,
	})
	if err != nil {
		return 0, fmt.Errorf("list due rounds: %w", err)
	}
	stuck, err := e.ledger.ListRounds(ctx, domain.RoundFilter{Statuses: []domain.RoundStatus{domain.RoundDrawing}})
	if err != nil {
		return 0, fmt.Errorf("list drawing rounds: %w", err)
	}

	drawn := 0
	var errs []error
	for _, round := range append(due, stuck...) {
		if _, err := e.drawAt(ctx, round.ID, now); err != nil {
			if errors.Is(err, domain.ErrRoundClosed) {
				continue
			}
			errs = append(errs, err)
			continue
		}
		drawn++
	}
	return drawn, errors.Join(errs...)
}

// VerifyDraw recomputes a closed round's winners and split from its revealed
// seed and checks the seed against the commitment published at opening.
func (e *DrawEngine) VerifyDraw(ctx context.Context, roundID uuid.UUID) error {
	round, err := e.ledger.GetRound(ctx, roundID)
	if err != nil {
		return err
	}
	if round.Status != domain.RoundClosed {
		return draw.ErrSeedNotRevealed
	}
	return draw.Verify(*round)
}

// GetRound returns a round with the seed hidden until it closes.
func (e *DrawEngine) GetRound(ctx context.Context, roundID uuid.UUID) (*domain.PrizeRound, error) {
	round, err := e.ledger.GetRound(ctx, roundID)
	if err != nil {
		return nil, err
	}
	public := round.Public()
	return &public, nil
}

// ListRounds returns rounds newest first with unrevealed seeds hidden.
func (e *DrawEngine) ListRounds(ctx context.Context, filter domain.RoundFilter) ([]domain.PrizeRound, error) {
	rounds, err := e.ledger.ListRounds(ctx, filter)
	if err != nil {
		return nil, err
	}
	for i := range rounds {
		rounds[i] = rounds[i].Public()
	}
	return rounds, nil
}
