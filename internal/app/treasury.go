/**
 * @description
 * TreasuryService is the admin control plane: the recomputed treasury
 * overview, sub-account transfers out of operating, the emergency freeze and
 * the ledger reconciliation audit. Every state change writes an audit entry
 * carrying the actor and a justification.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vibetrailmedia/stepupnaija-sub004/internal/domain"
	"github.com/vibetrailmedia/stepupnaija-sub004/internal/metrics"
	"github.com/vibetrailmedia/stepupnaija-sub004/internal/store"
	"go.uber.org/zap"
)

const defaultAuditLogLimit = 100

// TransferRequest moves SUP from the operating sub-account.
type TransferRequest struct {
	Amount decimal.Decimal
	Reason string
	Kind   domain.TransferKind
	Actor  string
}

// TreasuryService provides the treasury operations.
type TreasuryService struct {
	ledger store.Ledger
	events *Events
	logger *zap.Logger
	now    func() time.Time
}

// NewTreasuryService creates a new TreasuryService.
func NewTreasuryService(ledger store.Ledger, events *Events, logger *zap.Logger) *TreasuryService {
	return &TreasuryService{
		ledger: ledger,
		events: events,
		logger: logger.With(zap.String("component", "treasury")),
		now:    time.Now,
	}
}

// Bootstrap creates the treasury sub-accounts when missing and syncs the
// freeze gauge with the stored flag.
func (s *TreasuryService) Bootstrap(ctx context.Context) error {
	if err := ensureSubAccounts(ctx, s.ledger, s.now().UTC()); err != nil {
		return err
	}
	controls, err := s.ledger.Controls(ctx)
	if err != nil {
		return fmt.Errorf("load treasury controls: %w", err)
	}
	metrics.SetFrozen(controls.Frozen)
	return nil
}

func ensureSubAccounts(ctx context.Context, ledger store.Ledger, now time.Time) error {
	for _, sub := range domain.SubAccounts {
		if _, err := ledger.EnsureAccount(ctx, sub.Account(now)); err != nil {
			return fmt.Errorf("ensure %s sub-account: %w", sub, err)
		}
	}
	return nil
}

// Overview recomputes the treasury snapshot from the ledger. It takes no account locks.
func (s *TreasuryService) Overview(ctx context.Context) (domain.TreasurySnapshot, error) {
	now := s.now().UTC()
	totals, err := s.ledger.Totals(ctx, now.Add(-WeeklyWindow))
	if err != nil {
		return domain.TreasurySnapshot{}, fmt.Errorf("ledger totals: %w", err)
	}
	controls, err := s.ledger.Controls(ctx)
	if err != nil {
		return domain.TreasurySnapshot{}, fmt.Errorf("load treasury controls: %w", err)
	}

	snap := domain.TreasurySnapshot{
		TotalPoolSUP:          totals.TotalSUP,
		PrizePoolSUP:          totals.OpenPrizePoolSUP,
		TotalEscrowNGN:        totals.CompletedBuyNGN.Sub(totals.CompletedCashoutNGN),
		WeeklyInflowNGN:       totals.WeeklyBuyNGN,
		WeeklyOutflowNGN:      totals.WeeklyCashoutNGN,
		PendingWithdrawals:    totals.PendingCashouts,
		PendingWithdrawalsNGN: totals.PendingCashoutNGN,
		SubAccounts:           make(map[domain.SubAccount]decimal.Decimal, len(domain.SubAccounts)),
		Frozen:                controls.Frozen,
		LastAuditDate:         controls.LastAuditAt,
		GeneratedAt:           now,
	}
	snap.ProjectedWeeklyOutflowNGN = decimal.Max(snap.WeeklyOutflowNGN, snap.PendingWithdrawalsNGN)
	if snap.ProjectedWeeklyOutflowNGN.IsPositive() {
		ratio := snap.TotalEscrowNGN.Div(snap.ProjectedWeeklyOutflowNGN).Mul(decimal.NewFromInt(100)).Round(2)
		snap.ReserveRatio = &ratio
	}
	snap.Healthy = snap.ReserveRatio == nil || !snap.ReserveRatio.LessThan(domain.MinHealthyReserveRatio)

	for _, sub := range domain.SubAccounts {
		balance := decimal.Zero
		acct, err := s.ledger.FindAccount(ctx, sub.ID())
		switch {
		case err == nil:
			balance = acct.SUPBalance
		case !errors.Is(err, domain.ErrAccountNotFound):
			return domain.TreasurySnapshot{}, fmt.Errorf("load %s sub-account: %w", sub, err)
		}
		snap.SubAccounts[sub] = balance
	}
	return snap, nil
}

// Transfer moves SUP from operating to the reserve or emergency sub-account.
func (s *TreasuryService) Transfer(ctx context.Context, req TransferRequest) (*domain.TreasuryTransfer, error) {
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, domain.ErrJustificationNeeded
	}
	if strings.TrimSpace(req.Actor) == "" {
		return nil, invalid("actor is required")
	}
	if !validSUP(req.Amount) {
		return nil, invalid("transfer amount must be a positive SUP amount with at most 2 decimal places")
	}
	dest, ok := req.Kind.Destination()
	if !ok {
		return nil, invalid("transfer kind must be RESERVE or EMERGENCY, got %q", req.Kind)
	}
	if err := ensureSubAccounts(ctx, s.ledger, s.now().UTC()); err != nil {
		return nil, err
	}

	source := domain.SubAccountOperating
	transferID := uuid.New()
	meta := map[string]string{
		domain.MetaTransferID:   transferID.String(),
		domain.MetaTransferKind: string(req.Kind),
		domain.MetaReason:       reason,
		domain.MetaActor:        req.Actor,
	}

	out := &domain.TreasuryTransfer{ID: transferID, Kind: req.Kind}
	var debitBalance, creditBalance decimal.Decimal
	err := s.ledger.WithAccounts(ctx, []uuid.UUID{source.ID(), dest.ID()}, func(ctx context.Context, tx store.LedgerTx) error {
		from, err := tx.Account(ctx, source.ID())
		if err != nil {
			return err
		}
		if from.SUPBalance.LessThan(req.Amount) {
			return domain.ErrInsufficientFunds
		}
		debit, err := tx.Append(ctx, domain.Transaction{
			AccountID: source.ID(),
			Type:      domain.TypeAdminTransfer,
			AmountSUP: req.Amount.Neg(),
			Meta:      meta,
			Status:    domain.StatusCompleted,
		})
		if err != nil {
			return err
		}
		credit, err := tx.Append(ctx, domain.Transaction{
			AccountID: dest.ID(),
			Type:      domain.TypeAdminTransfer,
			AmountSUP: req.Amount,
			Meta:      meta,
			Status:    domain.StatusCompleted,
		})
		if err != nil {
			return err
		}
		out.Debit, out.Credit = *debit, *credit
		if err := tx.AppendAudit(ctx, domain.AuditEntry{
			Actor:         req.Actor,
			Action:        domain.AuditTransfer,
			Subject:       fmt.Sprintf("%s:%s→%s:%s", transferID, source, dest, req.Amount.StringFixed(2)),
			Justification: reason,
		}); err != nil {
			return err
		}
		if debitBalance, err = lockedBalance(ctx, tx, source.ID()); err != nil {
			return err
		}
		creditBalance, err = lockedBalance(ctx, tx, dest.ID())
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("treasury transfer: %w", err)
	}

	s.logger.Info("treasury transfer recorded",
		zap.String("flow", "treasury_transfer"),
		zap.String("transfer_id", transferID.String()),
		zap.String("kind", string(req.Kind)),
		zap.String("amount_sup", req.Amount.StringFixed(2)),
		zap.String("actor", req.Actor),
	)
	s.events.Appended(ctx, out.Debit, debitBalance)
	s.events.Appended(ctx, out.Credit, creditBalance)
	return out, nil
}

// EmergencyFreeze blocks BUY, CASHOUT, ENTRY and VOTE. Freezing a frozen
// treasury is a no-op and writes no audit entry.
func (s *TreasuryService) EmergencyFreeze(ctx context.Context, actor, reason string) (domain.TreasuryControls, error) {
	return s.setFrozen(ctx, true, actor, reason)
}

// LiftFreeze clears the freeze flag.
func (s *TreasuryService) LiftFreeze(ctx context.Context, actor, reason string) (domain.TreasuryControls, error) {
	return s.setFrozen(ctx, false, actor, reason)
}

func (s *TreasuryService) setFrozen(ctx context.Context, frozen bool, actor, reason string) (domain.TreasuryControls, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return domain.TreasuryControls{}, domain.ErrJustificationNeeded
	}
	if strings.TrimSpace(actor) == "" {
		return domain.TreasuryControls{}, invalid("actor is required")
	}

	action := domain.AuditUnfreeze
	routingKey := domain.RoutingTreasuryLifted
	if frozen {
		action = domain.AuditFreeze
		routingKey = domain.RoutingTreasuryFrozen
	}
	now := s.now().UTC()
	changed := false
	controls, err := s.ledger.UpdateControls(ctx, domain.AuditEntry{
		Actor:         actor,
		Action:        action,
		Subject:       "treasury",
		Justification: reason,
	}, func(c *domain.TreasuryControls) (bool, error) {
		if c.Frozen == frozen {
			return false, nil
		}
		c.Frozen = frozen
		if frozen {
			c.FrozenBy = actor
			c.FrozenReason = reason
			c.FrozenAt = &now
		} else {
			c.FrozenBy = ""
			c.FrozenReason = ""
			c.FrozenAt = nil
		}
		changed = true
		return true, nil
	})
	if err != nil {
		return domain.TreasuryControls{}, fmt.Errorf("update treasury controls: %w", err)
	}
	if !changed {
		s.logger.Info("treasury freeze unchanged", zap.Bool("frozen", frozen), zap.String("actor", actor))
		return controls, nil
	}

	metrics.SetFrozen(frozen)
	s.logger.Warn("treasury freeze changed",
		zap.String("flow", "treasury_control"),
		zap.Bool("frozen", frozen),
		zap.String("actor", actor),
		zap.String("reason", reason),
	)
	s.events.Publish(ctx, routingKey, domain.ControlEvent{Frozen: frozen, Actor: actor, Reason: reason, OccurredAt: now})
	return controls, nil
}

// Audit recomputes every balance from its effective entries, stamps
// LastAuditAt and reports the accounts whose cached balance drifted.
func (s *TreasuryService) Audit(ctx context.Context, actor string) (domain.AuditReport, error) {
	if strings.TrimSpace(actor) == "" {
		return domain.AuditReport{}, invalid("actor is required")
	}
	accounts, drifts, err := s.ledger.ReconcileBalances(ctx)
	if err != nil {
		return domain.AuditReport{}, fmt.Errorf("reconcile balances: %w", err)
	}

	now := s.now().UTC()
	justification := fmt.Sprintf("reconciled %d accounts, %d drifted", accounts, len(drifts))
	if _, err := s.ledger.UpdateControls(ctx, domain.AuditEntry{
		Actor:         actor,
		Action:        domain.AuditLedgerAudit,
		Subject:       "ledger",
		Justification: justification,
	}, func(c *domain.TreasuryControls) (bool, error) {
		c.LastAuditAt = &now
		return true, nil
	}); err != nil {
		return domain.AuditReport{}, fmt.Errorf("stamp ledger audit: %w", err)
	}

	if len(drifts) > 0 {
		for _, d := range drifts {
			s.logger.Error("balance drift detected",
				zap.String("flow", "ledger_audit"),
				zap.String("account_id", d.AccountID.String()),
				zap.String("cached", d.Cached.StringFixed(2)),
				zap.String("computed", d.Computed.StringFixed(2)),
			)
		}
	} else {
		s.logger.Info("ledger audit clean", zap.String("flow", "ledger_audit"), zap.Int("accounts", accounts))
	}
	if drifts == nil {
		drifts = []domain.BalanceDrift{}
	}
	return domain.AuditReport{AuditedAt: now, Accounts: accounts, Drifts: drifts}, nil
}

// AuditLog returns the most recent audit entries, newest first.
func (s *TreasuryService) AuditLog(ctx context.Context, limit int) ([]domain.AuditEntry, error) {
	if limit <= 0 {
		limit = defaultAuditLogLimit
	}
	return s.ledger.ListAudit(ctx, limit)
}
