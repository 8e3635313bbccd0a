/**
 * @description
 * WalletService is the only writer of user-facing ledger entries. Every
 * operation validates its input before opening a unit of work, performs a
 * single append (or a reversal pair) under the account lock and fans the
 * committed entry out to the anomaly monitor and the broker afterwards.
 *
 * Key features:
 * - Buy / Cashout at the fixed 1 SUP = ₦10 peg.
 * - Engage credits truncated to the remaining daily and monthly headroom.
 * - Spend for draw entries and project votes with an in-unit round hook.
 * - Payout calls happen after commit and outside the lock; a synchronous
 *   failure reverses the pending cashout.
 *
 * @dependencies
 * - internal/store: ledger units of work.
 * - pkg/payoutclient: payout gateway request shape.
 * - go.uber.org/zap: structured logging.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vibetrailmedia/stepupnaija-sub004/internal/domain"
	"github.com/vibetrailmedia/stepupnaija-sub004/internal/metrics"
	"github.com/vibetrailmedia/stepupnaija-sub004/internal/store"
	"github.com/vibetrailmedia/stepupnaija-sub004/pkg/payoutclient"
	"go.uber.org/zap"
)

// SystemActor is recorded on automatic reversals and scheduled audits.
const SystemActor = "system"

const payoutCallTimeout = 15 * time.Second

// KYCProvider reports an account's current verification tier.
type KYCProvider interface {
	Tier(ctx context.Context, accountID uuid.UUID) (domain.KYCTier, error)
}

// PayoutProvider submits a pending cashout to the payment gateway.
type PayoutProvider interface {
	RequestPayout(ctx context.Context, req payoutclient.PayoutRequest) (*payoutclient.PayoutResponse, error)
}

// RateLimitReporter is told about earn or withdrawal cap hits.
type RateLimitReporter interface {
	RateLimitHit(ctx context.Context, accountID uuid.UUID, detail string)
}

// BuyRequest records an NGN payment that the gateway already confirmed.
// PaymentReference is the gateway's reference and is required.
type BuyRequest struct {
	AccountID        uuid.UUID
	AmountNGN        decimal.Decimal
	PaymentReference string
}

// EngageRequest credits a verified civic action.
type EngageRequest struct {
	AccountID uuid.UUID
	TaskID    string
	Amount    decimal.Decimal
}

// SpendRequest debits SUP for a draw entry or a project vote. OnDebit runs
// inside the same unit of work after the debit is appended; an error from it
// rolls the debit back.
type SpendRequest struct {
	AccountID uuid.UUID
	Type      domain.TransactionType
	Amount    decimal.Decimal
	Meta      map[string]string
	OnDebit   func(ctx context.Context, tx store.LedgerTx, debit *domain.Transaction) error
}

// WalletService provides the wallet operations.
type WalletService struct {
	ledger  store.Ledger
	policy  *LimitPolicy
	kyc     KYCProvider
	payouts PayoutProvider
	alerts  RateLimitReporter
	events  *Events
	logger  *zap.Logger
	now     func() time.Time
}

// NewWalletService wires the wallet. kyc, payouts and alerts may be nil.
func NewWalletService(ledger store.Ledger, policy *LimitPolicy, kyc KYCProvider, payouts PayoutProvider, alerts RateLimitReporter, events *Events, logger *zap.Logger) *WalletService {
	if policy == nil {
		policy = NewLimitPolicy()
	}
	return &WalletService{
		ledger:  ledger,
		policy:  policy,
		kyc:     kyc,
		payouts: payouts,
		alerts:  alerts,
		events:  events,
		logger:  logger.With(zap.String("component", "wallet")),
		now:     time.Now,
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidTransaction, fmt.Sprintf(format, args...))
}

func validSUP(amount decimal.Decimal) bool {
	return amount.IsPositive() && amount.Equal(amount.Round(domain.SUPScale))
}

// OpenAccount idempotently creates a USER account.
func (s *WalletService) OpenAccount(ctx context.Context, accountID uuid.UUID) (*domain.Account, error) {
	if accountID == uuid.Nil {
		return nil, invalid("account id is required")
	}
	return s.ledger.EnsureAccount(ctx, domain.Account{ID: accountID, Kind: domain.AccountKindUser})
}

// Balance returns the cached SUP balance and its NGN equivalent.
func (s *WalletService) Balance(ctx context.Context, accountID uuid.UUID) (domain.Balance, error) {
	acct, err := s.ledger.FindAccount(ctx, accountID)
	if err != nil {
		return domain.Balance{}, err
	}
	return domain.Balance{
		AccountID:     acct.ID,
		SUPBalance:    acct.SUPBalance,
		NGNEquivalent: domain.SUPToNGN(acct.SUPBalance),
	}, nil
}

// History lazily yields the account's entries newest first.
func (s *WalletService) History(ctx context.Context, accountID uuid.UUID, filter domain.HistoryFilter) iter.Seq2[domain.Transaction, error] {
	return s.ledger.History(ctx, accountID, filter)
}

// Buy credits SUP for a confirmed NGN payment.
func (s *WalletService) Buy(ctx context.Context, req BuyRequest) (*domain.Transaction, error) {
	if req.AmountNGN.LessThan(domain.MinBuyNGN) {
		return nil, invalid("minimum purchase is ₦%s", domain.MinBuyNGN)
	}
	if !req.AmountNGN.Equal(req.AmountNGN.Round(2)) {
		return nil, invalid("ngn amount has more than 2 decimal places")
	}
	reference := strings.TrimSpace(req.PaymentReference)
	if reference == "" {
		return nil, invalid("payment reference is required")
	}
	sup := domain.NGNToSUP(req.AmountNGN)

	if _, err := s.OpenAccount(ctx, req.AccountID); err != nil {
		return nil, err
	}

	var entry *domain.Transaction
	var balance decimal.Decimal
	err := s.ledger.WithAccounts(ctx, []uuid.UUID{req.AccountID}, func(ctx context.Context, tx store.LedgerTx) error {
		if tx.Controls().Frozen {
			return domain.ErrFrozen
		}
		seen, err := tx.HasMeta(ctx, req.AccountID, domain.TypeBuy, domain.MetaPaymentReference, reference)
		if err != nil {
			return err
		}
		if seen {
			return domain.ErrDuplicateReference
		}
		entry, err = tx.Append(ctx, domain.Transaction{
			AccountID: req.AccountID,
			Type:      domain.TypeBuy,
			AmountSUP: sup,
			Meta:      map[string]string{domain.MetaPaymentReference: reference},
			Status:    domain.StatusCompleted,
		})
		if err != nil {
			return err
		}
		balance, err = lockedBalance(ctx, tx, req.AccountID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("buy: %w", err)
	}

	s.logger.Info("buy recorded",
		zap.String("flow", "buy"),
		zap.String("transaction_id", entry.ID.String()),
		zap.String("account_id", req.AccountID.String()),
		zap.String("amount_sup", entry.AmountSUP.StringFixed(2)),
	)
	s.events.Appended(ctx, *entry, balance)
	return entry, nil
}

// lockedBalance reads the balance of an account locked by tx, staged changes included.
func lockedBalance(ctx context.Context, tx store.LedgerTx, accountID uuid.UUID) (decimal.Decimal, error) {
	acct, err := tx.Account(ctx, accountID)
	if err != nil {
		return decimal.Zero, err
	}
	return acct.SUPBalance, nil
}

// currentTier asks the KYC service and writes a changed tier back to the
// account row. Without a KYC client the stored tier is used.
func (s *WalletService) currentTier(ctx context.Context, acct *domain.Account) (domain.KYCTier, error) {
	if s.kyc == nil {
		return acct.KYCTier, nil
	}
	tier, err := s.kyc.Tier(ctx, acct.ID)
	if err != nil {
		return "", fmt.Errorf("fetch kyc tier: %w", err)
	}
	if tier != acct.KYCTier {
		if err := s.ledger.UpdateKYCTier(ctx, acct.ID, tier); err != nil {
			s.logger.Warn("kyc tier write-back failed", zap.String("account_id", acct.ID.String()), zap.Error(err))
		}
	}
	return tier, nil
}

// Tier returns the live KYC tier of an account.
func (s *WalletService) Tier(ctx context.Context, accountID uuid.UUID) (domain.KYCTier, error) {
	acct, err := s.ledger.FindAccount(ctx, accountID)
	if err != nil {
		return "", err
	}
	return s.currentTier(ctx, acct)
}

// Cashout appends a PENDING CASHOUT debit and submits it to the payout gateway.
func (s *WalletService) Cashout(ctx context.Context, accountID uuid.UUID, amount decimal.Decimal) (*domain.Transaction, error) {
	if !validSUP(amount) {
		return nil, invalid("cashout amount must be a positive SUP amount with at most 2 decimal places")
	}
	if amount.LessThan(domain.MinCashoutSUP) {
		return nil, invalid("minimum cashout is %s SUP", domain.MinCashoutSUP)
	}

	acct, err := s.ledger.FindAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	tier, err := s.currentTier(ctx, acct)
	if err != nil {
		return nil, err
	}

	var (
		entry   *domain.Transaction
		balance decimal.Decimal
		denied  *Decision
	)
	err = s.ledger.WithAccounts(ctx, []uuid.UUID{accountID}, func(ctx context.Context, tx store.LedgerTx) error {
		if tx.Controls().Frozen {
			return domain.ErrFrozen
		}
		locked, err := tx.Account(ctx, accountID)
		if err != nil {
			return err
		}
		if locked.SUPBalance.LessThan(amount) {
			return domain.ErrInsufficientFunds
		}
		decision, err := s.policy.Check(ctx, tx, accountID, tier, OpCashout, amount)
		if err != nil {
			return err
		}
		if !decision.Allowed {
			denied = &decision
			return decision.Err()
		}
		entry, err = tx.Append(ctx, domain.Transaction{
			AccountID: accountID,
			Type:      domain.TypeCashout,
			AmountSUP: amount.Neg(),
			Status:    domain.StatusPending,
		})
		if err != nil {
			return err
		}
		balance, err = lockedBalance(ctx, tx, accountID)
		return err
	})
	if denied != nil {
		metrics.RecordLimitDenial(string(denied.Reason))
	}
	if err != nil {
		if denied != nil && denied.Reason == domain.ReasonWeeklyCapExceeded && s.alerts != nil {
			s.alerts.RateLimitHit(ctx, accountID, fmt.Sprintf("weekly withdrawal cap reached: ₦%s of ₦%s used", denied.Usage.StringFixed(2), denied.Limit.StringFixed(2)))
		}
		return nil, fmt.Errorf("cashout: %w", err)
	}

	s.logger.Info("cashout pending",
		zap.String("flow", "cashout"),
		zap.String("transaction_id", entry.ID.String()),
		zap.String("account_id", accountID.String()),
		zap.String("amount_ngn", entry.AmountNGN.Abs().StringFixed(2)),
	)
	s.events.Appended(ctx, *entry, balance)

	if s.payouts == nil {
		s.logger.Warn("payout gateway not configured; cashout left pending", zap.String("transaction_id", entry.ID.String()))
		return entry, nil
	}

	payoutCtx, cancel := context.WithTimeout(ctx, payoutCallTimeout)
	defer cancel()
	resp, payoutErr := s.payouts.RequestPayout(payoutCtx, payoutclient.PayoutRequest{
		TransactionID: entry.ID,
		AccountID:     accountID,
		AmountNGN:     entry.AmountNGN.Abs(),
	})
	if payoutErr != nil {
		s.logger.Warn("payout request failed; reversing cashout",
			zap.String("flow", "cashout"),
			zap.String("transaction_id", entry.ID.String()),
			zap.Error(payoutErr),
		)
		if _, err := s.reversePending(context.WithoutCancel(ctx), entry.ID, "payout failed: "+payoutErr.Error(), SystemActor); err != nil {
			s.logger.Error("cashout reversal failed", zap.String("transaction_id", entry.ID.String()), zap.Error(err))
			return nil, fmt.Errorf("cashout: payout failed and reversal failed: %w", errors.Join(payoutErr, err))
		}
		return nil, &domain.PayoutFailedError{TransactionID: entry.ID, Cause: payoutErr}
	}

	s.logger.Info("payout submitted",
		zap.String("flow", "cashout"),
		zap.String("transaction_id", entry.ID.String()),
		zap.String("payout_reference", resp.Reference),
	)
	return entry, nil
}

// reversePending reverses a cashout that is still PENDING. An entry that has
// already settled is returned unchanged.
func (s *WalletService) reversePending(ctx context.Context, txID uuid.UUID, reason, actor string) (*domain.Transaction, error) {
	original, err := s.ledger.FindTransaction(ctx, txID)
	if err != nil {
		return nil, err
	}

	var (
		comp    *domain.Transaction
		balance decimal.Decimal
	)
	err = s.ledger.WithAccounts(ctx, []uuid.UUID{original.AccountID}, func(ctx context.Context, tx store.LedgerTx) error {
		current, err := tx.Transaction(ctx, txID)
		if err != nil {
			return err
		}
		if current.Status != domain.StatusPending {
			return nil
		}
		comp, err = tx.Reverse(ctx, txID, reason, actor)
		if err != nil {
			return err
		}
		balance, err = lockedBalance(ctx, tx, original.AccountID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if comp != nil {
		s.events.Appended(ctx, *comp, balance)
	}
	return comp, nil
}

// ConfirmPayout applies the gateway's asynchronous result to a pending
// cashout. Replays of an already applied result are no-ops.
func (s *WalletService) ConfirmPayout(ctx context.Context, txID uuid.UUID, succeeded bool, reason string) (*domain.Transaction, error) {
	original, err := s.ledger.FindTransaction(ctx, txID)
	if err != nil {
		return nil, err
	}
	if original.Type != domain.TypeCashout || original.ReversalOf != nil {
		return nil, invalid("transaction %s is not a cashout", txID)
	}
	if strings.TrimSpace(reason) == "" {
		reason = "payout failed"
	}

	var (
		result  *domain.Transaction
		comp    *domain.Transaction
		balance decimal.Decimal
	)
	err = s.ledger.WithAccounts(ctx, []uuid.UUID{original.AccountID}, func(ctx context.Context, tx store.LedgerTx) error {
		current, err := tx.Transaction(ctx, txID)
		if err != nil {
			return err
		}
		switch {
		case current.Status == domain.StatusCompleted && succeeded,
			current.Status == domain.StatusReversed && !succeeded:
			result = current
			return nil
		case current.Status != domain.StatusPending:
			return fmt.Errorf("%w: cashout is %s", domain.ErrInvalidTransition, current.Status)
		}

		if succeeded {
			result, err = tx.SetStatus(ctx, txID, domain.StatusCompleted)
			return err
		}
		comp, err = tx.Reverse(ctx, txID, reason, "payout_gateway")
		if err != nil {
			return err
		}
		if result, err = tx.Transaction(ctx, txID); err != nil {
			return err
		}
		balance, err = lockedBalance(ctx, tx, original.AccountID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("confirm payout: %w", err)
	}

	s.logger.Info("payout status applied",
		zap.String("flow", "payout_status"),
		zap.String("transaction_id", txID.String()),
		zap.Bool("succeeded", succeeded),
		zap.String("status", string(result.Status)),
	)
	if comp != nil {
		s.events.Appended(ctx, *comp, balance)
	}
	return result, nil
}

// ExpireStalePayouts reverses PENDING cashouts created more than olderThan ago.
func (s *WalletService) ExpireStalePayouts(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := s.now().Add(-olderThan)
	stale, err := s.ledger.ListPendingCashouts(ctx, cutoff, 100)
	if err != nil {
		return 0, fmt.Errorf("list pending cashouts: %w", err)
	}

	expired := 0
	var errs []error
	for _, entry := range stale {
		comp, err := s.reversePending(ctx, entry.ID, "payout timed out", SystemActor)
		if err != nil {
			errs = append(errs, fmt.Errorf("expire %s: %w", entry.ID, err))
			continue
		}
		if comp != nil {
			expired++
		}
	}
	return expired, errors.Join(errs...)
}

// Engage credits SUP for a verified task, truncated to the remaining earn headroom.
func (s *WalletService) Engage(ctx context.Context, req EngageRequest) (*domain.Transaction, error) {
	taskID := strings.TrimSpace(req.TaskID)
	if taskID == "" {
		return nil, invalid("task id is required")
	}
	if !validSUP(req.Amount) {
		return nil, invalid("engage amount must be a positive SUP amount with at most 2 decimal places")
	}
	if _, err := s.OpenAccount(ctx, req.AccountID); err != nil {
		return nil, err
	}

	var (
		entry   *domain.Transaction
		balance decimal.Decimal
		denied  *Decision
	)
	err := s.ledger.WithAccounts(ctx, []uuid.UUID{req.AccountID}, func(ctx context.Context, tx store.LedgerTx) error {
		seen, err := tx.HasMeta(ctx, req.AccountID, domain.TypeEngage, domain.MetaTaskID, taskID)
		if err != nil {
			return err
		}
		if seen {
			return domain.ErrDuplicateTask
		}
		decision, err := s.policy.Check(ctx, tx, req.AccountID, "", OpEngage, req.Amount)
		if err != nil {
			return err
		}
		if !decision.Allowed {
			denied = &decision
			return decision.Err()
		}
		entry, err = tx.Append(ctx, domain.Transaction{
			AccountID: req.AccountID,
			Type:      domain.TypeEngage,
			AmountSUP: decision.Granted,
			Meta:      map[string]string{domain.MetaTaskID: taskID},
			Status:    domain.StatusCompleted,
		})
		if err != nil {
			return err
		}
		balance, err = lockedBalance(ctx, tx, req.AccountID)
		return err
	})

	if denied != nil {
		metrics.RecordLimitDenial(string(denied.Reason))
	}
	if s.alerts != nil {
		switch {
		case denied != nil:
			s.alerts.RateLimitHit(ctx, req.AccountID, fmt.Sprintf("%s: %s of %s SUP earned", denied.Reason, denied.Usage.StringFixed(2), denied.Limit.StringFixed(2)))
		case req.Amount.GreaterThan(domain.DailyEarnCap):
			s.alerts.RateLimitHit(ctx, req.AccountID, fmt.Sprintf("engage request of %s SUP exceeds the daily cap of %s", req.Amount.StringFixed(2), domain.DailyEarnCap))
		}
	}
	if err != nil {
		return nil, fmt.Errorf("engage: %w", err)
	}

	if entry.AmountSUP.LessThan(req.Amount) {
		s.logger.Info("engage credit truncated",
			zap.String("flow", "engage"),
			zap.String("account_id", req.AccountID.String()),
			zap.String("requested", req.Amount.StringFixed(2)),
			zap.String("granted", entry.AmountSUP.StringFixed(2)),
		)
	}
	s.events.Appended(ctx, *entry, balance)
	return entry, nil
}

// Spend debits SUP for an ENTRY or VOTE.
func (s *WalletService) Spend(ctx context.Context, req SpendRequest) (*domain.Transaction, error) {
	if req.Type != domain.TypeEntry && req.Type != domain.TypeVote {
		return nil, invalid("spend type must be ENTRY or VOTE, got %q", req.Type)
	}
	if !validSUP(req.Amount) {
		return nil, invalid("spend amount must be a positive SUP amount with at most 2 decimal places")
	}

	var (
		entry   *domain.Transaction
		balance decimal.Decimal
	)
	err := s.ledger.WithAccounts(ctx, []uuid.UUID{req.AccountID}, func(ctx context.Context, tx store.LedgerTx) error {
		if tx.Controls().Frozen {
			return domain.ErrFrozen
		}
		locked, err := tx.Account(ctx, req.AccountID)
		if err != nil {
			return err
		}
		if locked.SUPBalance.LessThan(req.Amount) {
			return domain.ErrInsufficientFunds
		}
		entry, err = tx.Append(ctx, domain.Transaction{
			AccountID: req.AccountID,
			Type:      req.Type,
			AmountSUP: req.Amount.Neg(),
			Meta:      req.Meta,
			Status:    domain.StatusCompleted,
		})
		if err != nil {
			return err
		}
		if req.OnDebit != nil {
			if err := req.OnDebit(ctx, tx, entry); err != nil {
				return err
			}
		}
		balance, err = lockedBalance(ctx, tx, req.AccountID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("spend %s: %w", strings.ToLower(string(req.Type)), err)
	}

	s.events.Appended(ctx, *entry, balance)
	return entry, nil
}

// Vote spends SUP to back a community project.
func (s *WalletService) Vote(ctx context.Context, accountID uuid.UUID, projectID string, amount decimal.Decimal) (*domain.Transaction, error) {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return nil, invalid("project id is required")
	}
	return s.Spend(ctx, SpendRequest{
		AccountID: accountID,
		Type:      domain.TypeVote,
		Amount:    amount,
		Meta:      map[string]string{domain.MetaProjectID: projectID},
	})
}

// Award appends a PRIZE credit inside the caller's unit of work. The caller
// publishes the entry with Committed once its unit commits.
func (s *WalletService) Award(ctx context.Context, tx store.LedgerTx, accountID uuid.UUID, amount decimal.Decimal, meta map[string]string) (*domain.Transaction, error) {
	if !validSUP(amount) {
		return nil, invalid("prize amount must be a positive SUP amount with at most 2 decimal places")
	}
	return tx.Append(ctx, domain.Transaction{
		AccountID: accountID,
		Type:      domain.TypePrize,
		AmountSUP: amount,
		Meta:      meta,
		Status:    domain.StatusCompleted,
	})
}

// Committed publishes entries appended by another service's unit of work.
func (s *WalletService) Committed(ctx context.Context, entries ...domain.Transaction) {
	for _, entry := range entries {
		balance := decimal.Zero
		if acct, err := s.ledger.FindAccount(ctx, entry.AccountID); err == nil {
			balance = acct.SUPBalance
		}
		s.events.Appended(ctx, entry, balance)
	}
}

// Reverse cancels a committed entry. It is an administrative action and
// requires a reason. Draw entries and prize-round shares are settled by their
// round and are rejected. A treasury transfer is reversed as a pair so both
// legs unwind in one unit of work.
func (s *WalletService) Reverse(ctx context.Context, txID uuid.UUID, actor, reason string) (*domain.Transaction, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, domain.ErrJustificationNeeded
	}
	if strings.TrimSpace(actor) == "" {
		return nil, invalid("actor is required")
	}
	original, err := s.ledger.FindTransaction(ctx, txID)
	if err != nil {
		return nil, err
	}

	legs, subject, err := s.reversalLegs(ctx, *original)
	if err != nil {
		return nil, fmt.Errorf("reverse: %w", err)
	}
	accountIDs := make([]uuid.UUID, 0, len(legs))
	for _, leg := range legs {
		accountIDs = append(accountIDs, leg.AccountID)
	}

	var (
		comps    []domain.Transaction
		balances map[uuid.UUID]decimal.Decimal
	)
	err = s.ledger.WithAccounts(ctx, accountIDs, func(ctx context.Context, tx store.LedgerTx) error {
		comps = comps[:0]
		balances = make(map[uuid.UUID]decimal.Decimal, len(legs))
		for _, leg := range legs {
			comp, err := tx.Reverse(ctx, leg.ID, reason, actor)
			if err != nil {
				return err
			}
			comps = append(comps, *comp)
		}
		if err := tx.AppendAudit(ctx, domain.AuditEntry{
			Actor:         actor,
			Action:        domain.AuditReverse,
			Subject:       subject,
			Justification: reason,
		}); err != nil {
			return err
		}
		for _, id := range accountIDs {
			balance, err := lockedBalance(ctx, tx, id)
			if err != nil {
				return err
			}
			balances[id] = balance
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("reverse: %w", err)
	}

	s.logger.Info("transaction reversed",
		zap.String("flow", "reverse"),
		zap.String("transaction_id", txID.String()),
		zap.String("subject", subject),
		zap.Int("legs", len(comps)),
		zap.String("actor", actor),
	)
	var requested *domain.Transaction
	for i := range comps {
		s.events.Appended(ctx, comps[i], balances[comps[i].AccountID])
		if *comps[i].ReversalOf == txID {
			requested = &comps[i]
		}
	}
	return requested, nil
}

// reversalLegs lists the entries that must be reversed together with original
// and the audit subject for the reversal.
func (s *WalletService) reversalLegs(ctx context.Context, original domain.Transaction) ([]domain.Transaction, string, error) {
	switch original.Type {
	case domain.TypeEntry:
		return nil, "", invalid("draw entries are settled by their round and cannot be reversed")
	case domain.TypeAdminTransfer:
	default:
		return []domain.Transaction{original}, original.ID.String(), nil
	}

	transferID := original.Meta[domain.MetaTransferID]
	if transferID == "" {
		return nil, "", invalid("treasury posting %s is not part of a transfer and cannot be reversed", original.ID)
	}
	legs, err := s.ledger.FindTransfer(ctx, transferID)
	if err != nil {
		return nil, "", err
	}
	if len(legs) != 2 {
		return nil, "", fmt.Errorf("transfer %s has %d legs, want 2", transferID, len(legs))
	}
	for _, leg := range legs {
		if leg.Status == domain.StatusReversed {
			return nil, "", domain.ErrAlreadyReversed
		}
	}
	return legs, "transfer:" + transferID, nil
}
