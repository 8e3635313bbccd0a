/**
 * @description
 * Tiered limit policy. Evaluate is the pure rule; LimitPolicy.Check reads the
 * rolling window usage from the ledger inside the caller's unit of work, so
 * usage is never cached and never races with a concurrent append.
 *
 * @notes
 * - Windows are rolling: daily 24h, weekly 7 days, monthly 30 days.
 * - Withdrawal usage counts CASHOUT entries that are PENDING or COMPLETED.
 * - Caps are inclusive.
 */

package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vibetrailmedia/stepupnaija-sub004/internal/domain"
	"github.com/vibetrailmedia/stepupnaija-sub004/internal/store"
)

// Operation is the kind of movement the policy is asked about.
type Operation string

const (
	OpCashout Operation = "CASHOUT"
	OpEngage  Operation = "ENGAGE"
)

const (
	DailyWindow   = 24 * time.Hour
	WeeklyWindow  = 7 * 24 * time.Hour
	MonthlyWindow = 30 * 24 * time.Hour
)

// WeeklyWithdrawalCapNGN is the rolling 7-day cashout ceiling per tier.
var WeeklyWithdrawalCapNGN = map[domain.KYCTier]decimal.Decimal{
	domain.KYCTierNone: decimal.Zero,
	domain.KYCTierOne:  decimal.NewFromInt(20_000),
	domain.KYCTierTwo:  decimal.NewFromInt(200_000),
}

// Usage is the window consumption the rule is evaluated against.
type Usage struct {
	WeeklyCashoutNGN decimal.Decimal
	DailyEarnSUP     decimal.Decimal
	MonthlyEarnSUP   decimal.Decimal
}

// Decision is the result of a limit evaluation. For ENGAGE, Granted is the
// amount that fits the remaining headroom and may be less than requested.
type Decision struct {
	Allowed bool
	Reason  domain.LimitReason
	Usage   decimal.Decimal
	Limit   decimal.Decimal
	Unit    string
	Granted decimal.Decimal
}

// Err returns the typed denial, or nil when allowed.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &domain.LimitExceededError{Reason: d.Reason, Usage: d.Usage, Limit: d.Limit, Unit: d.Unit}
}

// Evaluate applies the tier and earn caps. amount is in SUP for both
// operations; withdrawal caps are compared in NGN at the peg.
func Evaluate(tier domain.KYCTier, op Operation, amount decimal.Decimal, usage Usage) Decision {
	switch op {
	case OpCashout:
		limit, ok := WeeklyWithdrawalCapNGN[tier]
		if !ok || !limit.IsPositive() {
			return Decision{Reason: domain.ReasonTierTooLow, Usage: usage.WeeklyCashoutNGN, Limit: decimal.Zero, Unit: "NGN"}
		}
		requested := domain.SUPToNGN(amount)
		if usage.WeeklyCashoutNGN.Add(requested).GreaterThan(limit) {
			return Decision{Reason: domain.ReasonWeeklyCapExceeded, Usage: usage.WeeklyCashoutNGN, Limit: limit, Unit: "NGN"}
		}
		return Decision{Allowed: true, Usage: usage.WeeklyCashoutNGN, Limit: limit, Unit: "NGN", Granted: amount}

	case OpEngage:
		monthlyRoom := domain.MonthlyEarnCap.Sub(usage.MonthlyEarnSUP)
		if !monthlyRoom.IsPositive() {
			return Decision{Reason: domain.ReasonMonthlyEarnCapExceeded, Usage: usage.MonthlyEarnSUP, Limit: domain.MonthlyEarnCap, Unit: "SUP"}
		}
		dailyRoom := domain.DailyEarnCap.Sub(usage.DailyEarnSUP)
		if !dailyRoom.IsPositive() {
			return Decision{Reason: domain.ReasonDailyEarnCapExceeded, Usage: usage.DailyEarnSUP, Limit: domain.DailyEarnCap, Unit: "SUP"}
		}
		granted := decimal.Min(amount, dailyRoom, monthlyRoom)
		return Decision{Allowed: true, Usage: usage.DailyEarnSUP, Limit: domain.DailyEarnCap, Unit: "SUP", Granted: granted}
	}
	return Decision{Reason: domain.LimitReason("UNKNOWN_OPERATION")}
}

// LimitPolicy evaluates the rule against live ledger sums.
type LimitPolicy struct {
	now func() time.Time
}

// NewLimitPolicy returns a policy using the wall clock.
func NewLimitPolicy() *LimitPolicy {
	return &LimitPolicy{now: time.Now}
}

// Check must run inside the unit of work that will perform the operation.
func (p *LimitPolicy) Check(ctx context.Context, tx store.LedgerTx, accountID uuid.UUID, tier domain.KYCTier, op Operation, amount decimal.Decimal) (Decision, error) {
	now := p.now()
	var usage Usage
	switch op {
	case OpCashout:
		sum, err := tx.SumSUP(ctx, accountID, store.WindowQuery{
			Types: []domain.TransactionType{domain.TypeCashout},
			Since: now.Add(-WeeklyWindow),
		})
		if err != nil {
			return Decision{}, fmt.Errorf("sum weekly cashouts: %w", err)
		}
		usage.WeeklyCashoutNGN = domain.SUPToNGN(sum.Abs())
	case OpEngage:
		daily, err := tx.SumSUP(ctx, accountID, store.WindowQuery{
			Types: []domain.TransactionType{domain.TypeEngage},
			Since: now.Add(-DailyWindow),
		})
		if err != nil {
			return Decision{}, fmt.Errorf("sum daily earnings: %w", err)
		}
		monthly, err := tx.SumSUP(ctx, accountID, store.WindowQuery{
			Types: []domain.TransactionType{domain.TypeEngage},
			Since: now.Add(-MonthlyWindow),
		})
		if err != nil {
			return Decision{}, fmt.Errorf("sum monthly earnings: %w", err)
		}
		usage.DailyEarnSUP = daily
		usage.MonthlyEarnSUP = monthly
	}
	return Evaluate(tier, op, amount, usage), nil
}
