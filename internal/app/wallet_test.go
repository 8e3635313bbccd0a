package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/vibetrailmedia/stepupnaija-sub004/internal/domain"
)

func TestBuyCreditsAtPeg(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := uuid.New()

	entry, err := h.wallet.Buy(ctx, BuyRequest{AccountID: id, AmountNGN: sup(t, "1000"), PaymentReference: "pay_1"})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !entry.AmountSUP.Equal(sup(t, "100")) {
		t.Fatalf("expected 100 SUP, got %s", entry.AmountSUP)
	}
	if !entry.AmountNGN.Equal(sup(t, "1000")) {
		t.Fatalf("expected ₦1000, got %s", entry.AmountNGN)
	}

	b, err := h.wallet.Balance(ctx, id)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if !b.SUPBalance.Equal(sup(t, "100")) || !b.NGNEquivalent.Equal(sup(t, "1000")) {
		t.Fatalf("unexpected balance %+v", b)
	}

	if _, err := h.wallet.Buy(ctx, BuyRequest{AccountID: id, AmountNGN: sup(t, "1000"), PaymentReference: "pay_1"}); !errors.Is(err, domain.ErrDuplicateReference) {
		t.Fatalf("expected duplicate reference error, got %v", err)
	}
	if _, err := h.wallet.Buy(ctx, BuyRequest{AccountID: id, AmountNGN: sup(t, "99.99"), PaymentReference: "pay_2"}); !errors.Is(err, domain.ErrInvalidTransaction) {
		t.Fatalf("expected minimum purchase error, got %v", err)
	}
	if _, err := h.wallet.Buy(ctx, BuyRequest{AccountID: id, AmountNGN: sup(t, "100.001"), PaymentReference: "pay_3"}); !errors.Is(err, domain.ErrInvalidTransaction) {
		t.Fatalf("expected precision error, got %v", err)
	}
	if _, err := h.wallet.Buy(ctx, BuyRequest{AccountID: id, AmountNGN: sup(t, "1000"), PaymentReference: "  "}); !errors.Is(err, domain.ErrInvalidTransaction) {
		t.Fatalf("expected missing reference error, got %v", err)
	}
	if got := h.balance(t, id); !got.Equal(sup(t, "100")) {
		t.Fatalf("expected rejected buys to leave 100 SUP, got %s", got)
	}
	h.assertBalanceMatchesEntries(t, id)
}

func TestCashoutLeavesPendingEntryAndCallsGateway(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.fund(t, domain.KYCTierOne, "5000")

	entry, err := h.wallet.Cashout(ctx, id, sup(t, "150"))
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if entry.Status != domain.StatusPending {
		t.Fatalf("expected PENDING, got %s", entry.Status)
	}
	if !entry.AmountSUP.Equal(sup(t, "-150")) || !entry.AmountNGN.Equal(sup(t, "-1500")) {
		t.Fatalf("unexpected amounts %s / %s", entry.AmountSUP, entry.AmountNGN)
	}
	if got := h.balance(t, id); !got.Equal(sup(t, "350")) {
		t.Fatalf("expected balance 350, got %s", got)
	}
	if len(h.payouts.requests) != 1 || h.payouts.requests[0].TransactionID != entry.ID {
		t.Fatalf("expected one payout request for %s, got %+v", entry.ID, h.payouts.requests)
	}
	if !h.payouts.requests[0].AmountNGN.Equal(sup(t, "1500")) {
		t.Fatalf("expected ₦1500 payout, got %s", h.payouts.requests[0].AmountNGN)
	}
	h.assertBalanceMatchesEntries(t, id)
}

func TestCashoutValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.fund(t, domain.KYCTierOne, "2000")

	tests := []struct {
		name   string
		amount string
		want   error
	}{
		{name: "below minimum", amount: "99.99", want: domain.ErrInvalidTransaction},
		{name: "three decimals", amount: "100.001", want: domain.ErrInvalidTransaction},
		{name: "negative", amount: "-100", want: domain.ErrInvalidTransaction},
		{name: "more than balance", amount: "201", want: domain.ErrInsufficientFunds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := h.wallet.Cashout(ctx, id, sup(t, tt.amount)); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
	if len(h.history(t, id)) != 1 {
		t.Fatal("expected rejected cashouts to leave no entries")
	}
}

func TestCashoutRequiresTier(t *testing.T) {
	h := newHarness(t)
	id := h.fund(t, domain.KYCTierNone, "5000")

	_, err := h.wallet.Cashout(context.Background(), id, sup(t, "100"))
	var limitErr *domain.LimitExceededError
	if !errors.As(err, &limitErr) || limitErr.Reason != domain.ReasonTierTooLow {
		t.Fatalf("expected TIER_TOO_LOW, got %v", err)
	}
}

func TestCashoutWeeklyCapIsInclusive(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.fund(t, domain.KYCTierOne, "30000")

	if _, err := h.wallet.Cashout(ctx, id, sup(t, "1000")); err != nil {
		t.Fatalf("first cashout: %v", err)
	}
	// ₦10,000 + ₦10,000 lands exactly on the ₦20,000 TIER1 cap.
	if _, err := h.wallet.Cashout(ctx, id, sup(t, "1000")); err != nil {
		t.Fatalf("cashout reaching the cap must be allowed, got %v", err)
	}

	_, err := h.wallet.Cashout(ctx, id, sup(t, "100"))
	if !errors.Is(err, domain.ErrLimitExceeded) {
		t.Fatalf("expected limit exceeded, got %v", err)
	}
	var limitErr *domain.LimitExceededError
	if !errors.As(err, &limitErr) {
		t.Fatalf("expected *LimitExceededError, got %T", err)
	}
	if limitErr.Reason != domain.ReasonWeeklyCapExceeded || !limitErr.Usage.Equal(sup(t, "20000")) || !limitErr.Limit.Equal(sup(t, "20000")) {
		t.Fatalf("unexpected limit detail %+v", limitErr)
	}
	if len(h.alerts(t, domain.AlertRateLimitHit)) != 1 {
		t.Fatal("expected a RATE_LIMIT_HIT alert for the denied cashout")
	}

	// The window rolls: a week later the cap is free again.
	h.clock.Advance(WeeklyWindow + 1)
	if _, err := h.wallet.Cashout(ctx, id, sup(t, "100")); err != nil {
		t.Fatalf("expected cashout after the window to pass, got %v", err)
	}
}

func TestCashoutPayoutFailureRestoresBalance(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.fund(t, domain.KYCTierOne, "5000")
	h.payouts.err = errors.New("gateway unavailable")

	_, err := h.wallet.Cashout(ctx, id, sup(t, "200"))
	if !errors.Is(err, domain.ErrPayoutFailed) {
		t.Fatalf("expected payout failed, got %v", err)
	}
	var payoutErr *domain.PayoutFailedError
	if !errors.As(err, &payoutErr) || !payoutErr.Retryable() {
		t.Fatalf("expected retryable *PayoutFailedError, got %v", err)
	}
	if got := h.balance(t, id); !got.Equal(sup(t, "500")) {
		t.Fatalf("expected balance restored to 500, got %s", got)
	}

	original, err := h.ledger.FindTransaction(ctx, payoutErr.TransactionID)
	if err != nil {
		t.Fatalf("find cashout: %v", err)
	}
	if original.Status != domain.StatusReversed {
		t.Fatalf("expected cashout REVERSED, got %s", original.Status)
	}
	for _, entry := range h.history(t, id) {
		if entry.Type == domain.TypeCashout && entry.Effective() {
			t.Fatalf("expected no effective cashout entry, found %+v", entry)
		}
	}
	h.assertBalanceMatchesEntries(t, id)
}

func TestCashoutKYCFailureLeavesNoEntry(t *testing.T) {
	h := newHarness(t)
	id := h.fund(t, domain.KYCTierOne, "5000")
	h.kyc.err = errors.New("kyc timeout")

	if _, err := h.wallet.Cashout(context.Background(), id, sup(t, "100")); err == nil {
		t.Fatal("expected error when the KYC service fails")
	}
	if len(h.history(t, id)) != 1 {
		t.Fatal("expected only the funding entry")
	}
	if len(h.payouts.requests) != 0 {
		t.Fatal("expected no payout request")
	}
}

func TestConfirmPayout(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.fund(t, domain.KYCTierOne, "5000")

	ok, err := h.wallet.Cashout(ctx, id, sup(t, "100"))
	if err != nil {
		t.Fatalf("cashout: %v", err)
	}
	failed, err := h.wallet.Cashout(ctx, id, sup(t, "100"))
	if err != nil {
		t.Fatalf("cashout: %v", err)
	}

	got, err := h.wallet.ConfirmPayout(ctx, ok.ID, true, "")
	if err != nil || got.Status != domain.StatusCompleted {
		t.Fatalf("expected COMPLETED, got %v / %v", got, err)
	}
	if _, err := h.wallet.ConfirmPayout(ctx, ok.ID, true, ""); err != nil {
		t.Fatalf("replayed success must be a no-op, got %v", err)
	}
	if _, err := h.wallet.ConfirmPayout(ctx, ok.ID, false, "late failure"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition for failure after success, got %v", err)
	}

	got, err = h.wallet.ConfirmPayout(ctx, failed.ID, false, "account closed")
	if err != nil || got.Status != domain.StatusReversed {
		t.Fatalf("expected REVERSED, got %v / %v", got, err)
	}
	if _, err := h.wallet.ConfirmPayout(ctx, failed.ID, false, "account closed"); err != nil {
		t.Fatalf("replayed failure must be a no-op, got %v", err)
	}
	if got := h.balance(t, id); !got.Equal(sup(t, "400")) {
		t.Fatalf("expected balance 400, got %s", got)
	}
	h.assertBalanceMatchesEntries(t, id)
}

func TestExpireStalePayoutsReversesOldPending(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.fund(t, domain.KYCTierOne, "5000")

	if _, err := h.wallet.Cashout(ctx, id, sup(t, "100")); err != nil {
		t.Fatalf("cashout: %v", err)
	}
	h.clock.Advance(20 * time.Minute)
	fresh, err := h.wallet.Cashout(ctx, id, sup(t, "100"))
	if err != nil {
		t.Fatalf("cashout: %v", err)
	}
	h.clock.Advance(15 * time.Minute)

	expired, err := h.wallet.ExpireStalePayouts(ctx, 30*time.Minute)
	if err != nil {
		t.Fatalf("expire: %v", err)
	}
	if expired != 1 {
		t.Fatalf("expected 1 expired payout, got %d", expired)
	}
	if got := h.balance(t, id); !got.Equal(sup(t, "400")) {
		t.Fatalf("expected balance 400, got %s", got)
	}
	still, err := h.ledger.FindTransaction(ctx, fresh.ID)
	if err != nil || still.Status != domain.StatusPending {
		t.Fatalf("expected recent cashout to stay PENDING, got %v / %v", still, err)
	}
}

func TestEngageTruncatesToDailyHeadroom(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := uuid.New()

	if _, err := h.wallet.Engage(ctx, EngageRequest{AccountID: id, TaskID: "t1", Amount: sup(t, "20")}); err != nil {
		t.Fatalf("engage: %v", err)
	}
	entry, err := h.wallet.Engage(ctx, EngageRequest{AccountID: id, TaskID: "t2", Amount: sup(t, "10")})
	if err != nil {
		t.Fatalf("engage: %v", err)
	}
	if !entry.AmountSUP.Equal(sup(t, "5")) {
		t.Fatalf("expected credit truncated to 5, got %s", entry.AmountSUP)
	}

	_, err = h.wallet.Engage(ctx, EngageRequest{AccountID: id, TaskID: "t3", Amount: sup(t, "1")})
	var limitErr *domain.LimitExceededError
	if !errors.As(err, &limitErr) || limitErr.Reason != domain.ReasonDailyEarnCapExceeded {
		t.Fatalf("expected DAILY_EARN_CAP_EXCEEDED, got %v", err)
	}
	if _, err := h.wallet.Engage(ctx, EngageRequest{AccountID: id, TaskID: "t1", Amount: sup(t, "1")}); !errors.Is(err, domain.ErrDuplicateTask) {
		t.Fatalf("expected duplicate task, got %v", err)
	}

	h.clock.Advance(DailyWindow + 1)
	if _, err := h.wallet.Engage(ctx, EngageRequest{AccountID: id, TaskID: "t4", Amount: sup(t, "25")}); err != nil {
		t.Fatalf("expected fresh daily window, got %v", err)
	}
	if got := h.balance(t, id); !got.Equal(sup(t, "50")) {
		t.Fatalf("expected balance 50, got %s", got)
	}
}

func TestEngageStopsAtMonthlyCap(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := uuid.New()

	for day := 0; day < 20; day++ {
		if _, err := h.wallet.Engage(ctx, EngageRequest{AccountID: id, TaskID: fmt.Sprintf("day-%d", day), Amount: sup(t, "25")}); err != nil {
			t.Fatalf("day %d: %v", day, err)
		}
		h.clock.Advance(DailyWindow + 1)
	}
	_, err := h.wallet.Engage(ctx, EngageRequest{AccountID: id, TaskID: "over", Amount: sup(t, "1")})
	var limitErr *domain.LimitExceededError
	if !errors.As(err, &limitErr) || limitErr.Reason != domain.ReasonMonthlyEarnCapExceeded {
		t.Fatalf("expected MONTHLY_EARN_CAP_EXCEEDED, got %v", err)
	}
}

func TestFreezeBlocksMoneyMovementButNotEarning(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.fund(t, domain.KYCTierOne, "5000")
	round, err := h.draws.OpenRound(ctx, h.clock.Now().Add(time.Hour), "admin")
	if err != nil {
		t.Fatalf("open round: %v", err)
	}

	if _, err := h.treasury.EmergencyFreeze(ctx, "admin", "suspected breach"); err != nil {
		t.Fatalf("freeze: %v", err)
	}

	if _, err := h.wallet.Buy(ctx, BuyRequest{AccountID: id, AmountNGN: sup(t, "1000"), PaymentReference: "pay_frozen"}); !errors.Is(err, domain.ErrFrozen) {
		t.Fatalf("buy: expected ErrFrozen, got %v", err)
	}
	if _, err := h.wallet.Cashout(ctx, id, sup(t, "100")); !errors.Is(err, domain.ErrFrozen) {
		t.Fatalf("cashout: expected ErrFrozen, got %v", err)
	}
	if _, err := h.wallet.Vote(ctx, id, "borehole-42", sup(t, "10")); !errors.Is(err, domain.ErrFrozen) {
		t.Fatalf("vote: expected ErrFrozen, got %v", err)
	}
	if _, err := h.draws.Enter(ctx, round.ID, id, 1); !errors.Is(err, domain.ErrFrozen) {
		t.Fatalf("enter: expected ErrFrozen, got %v", err)
	}
	if _, err := h.wallet.Engage(ctx, EngageRequest{AccountID: id, TaskID: "t1", Amount: sup(t, "5")}); err != nil {
		t.Fatalf("engage must continue during a freeze, got %v", err)
	}
	if got := h.balance(t, id); !got.Equal(sup(t, "505")) {
		t.Fatalf("expected only the engage credit, got %s", got)
	}

	if _, err := h.treasury.LiftFreeze(ctx, "admin", "all clear"); err != nil {
		t.Fatalf("lift: %v", err)
	}
	if _, err := h.wallet.Buy(ctx, BuyRequest{AccountID: id, AmountNGN: sup(t, "1000"), PaymentReference: "pay_frozen"}); err != nil {
		t.Fatalf("buy after lift: %v", err)
	}
}

func TestReverseRestoresBalance(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.fund(t, domain.KYCTierOne, "1000")
	buy := h.history(t, id)[0]

	if _, err := h.wallet.Reverse(ctx, buy.ID, "admin", " "); !errors.Is(err, domain.ErrJustificationNeeded) {
		t.Fatalf("expected justification error, got %v", err)
	}

	comp, err := h.wallet.Reverse(ctx, buy.ID, "admin", "chargeback")
	if err != nil {
		t.Fatalf("reverse: %v", err)
	}
	if comp.ReversalOf == nil || *comp.ReversalOf != buy.ID || !comp.AmountSUP.Equal(sup(t, "-100")) {
		t.Fatalf("unexpected compensating entry %+v", comp)
	}
	if got := h.balance(t, id); !got.IsZero() {
		t.Fatalf("expected zero balance, got %s", got)
	}
	if _, err := h.wallet.Reverse(ctx, buy.ID, "admin", "chargeback"); !errors.Is(err, domain.ErrAlreadyReversed) {
		t.Fatalf("expected already reversed, got %v", err)
	}
	if _, err := h.wallet.Reverse(ctx, comp.ID, "admin", "undo"); !errors.Is(err, domain.ErrAlreadyReversed) {
		t.Fatalf("expected compensating entry to be irreversible, got %v", err)
	}

	log, err := h.treasury.AuditLog(ctx, 10)
	if err != nil {
		t.Fatalf("audit log: %v", err)
	}
	if len(log) == 0 || log[0].Action != domain.AuditReverse || log[0].Subject != buy.ID.String() {
		t.Fatalf("expected REVERSE audit entry, got %+v", log)
	}
	h.assertBalanceMatchesEntries(t, id)
}

func TestReverseSettledCashoutRestoresBalance(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.fund(t, domain.KYCTierOne, "2000")

	cashout, err := h.wallet.Cashout(ctx, id, sup(t, "100"))
	if err != nil {
		t.Fatalf("cashout: %v", err)
	}
	if _, err := h.wallet.ConfirmPayout(ctx, cashout.ID, true, ""); err != nil {
		t.Fatalf("confirm payout: %v", err)
	}
	if got := h.balance(t, id); !got.Equal(sup(t, "100")) {
		t.Fatalf("expected balance 100 after payout, got %s", got)
	}

	comp, err := h.wallet.Reverse(ctx, cashout.ID, "admin", "payout clawed back by bank")
	if err != nil {
		t.Fatalf("reverse: %v", err)
	}
	if comp.ReversalOf == nil || *comp.ReversalOf != cashout.ID || !comp.AmountSUP.Equal(sup(t, "100")) {
		t.Fatalf("unexpected compensating entry %+v", comp)
	}
	if got := h.balance(t, id); !got.Equal(sup(t, "200")) {
		t.Fatalf("expected balance 200 after reversal, got %s", got)
	}
	stored, err := h.ledger.FindTransaction(ctx, cashout.ID)
	if err != nil {
		t.Fatalf("find cashout: %v", err)
	}
	if stored.Status != domain.StatusReversed {
		t.Fatalf("expected cashout REVERSED, got %s", stored.Status)
	}
	if _, err := h.wallet.ConfirmPayout(ctx, cashout.ID, true, ""); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected invalid transition for a reversed cashout, got %v", err)
	}
	h.assertBalanceMatchesEntries(t, id)
}

func TestConcurrentVotesNeverOverdraw(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	id := h.fund(t, domain.KYCTierOne, "1000")

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.wallet.Vote(ctx, id, "library", sup(t, "7"))
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			if !errors.Is(err, domain.ErrInsufficientFunds) {
				t.Errorf("unexpected error %v", err)
			}
		}()
	}
	wg.Wait()

	if succeeded != 14 {
		t.Fatalf("expected 14 votes to fit in 100 SUP, got %d", succeeded)
	}
	if got := h.balance(t, id); !got.Equal(sup(t, "2")) {
		t.Fatalf("expected balance 2, got %s", got)
	}
	h.assertBalanceMatchesEntries(t, id)
}
