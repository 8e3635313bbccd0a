package domain

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Error classes surfaced to callers. Use errors.Is for the class and
// errors.As for the typed detail where one exists.
var (
	ErrInvalidTransaction  = errors.New("invalid transaction")
	ErrInsufficientFunds   = errors.New("insufficient funds")
	ErrLimitExceeded       = errors.New("limit exceeded")
	ErrFrozen              = errors.New("treasury is frozen")
	ErrPayoutFailed        = errors.New("payout failed")
	ErrAccountNotFound     = errors.New("account not found")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrRoundNotFound       = errors.New("prize round not found")
	ErrRoundNotOpen        = errors.New("prize round is not open")
	ErrRoundClosed         = errors.New("prize round is closed")
	ErrAlertNotFound       = errors.New("security alert not found")
	ErrAlreadyReversed     = errors.New("transaction already reversed")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrDuplicateTask       = errors.New("task already credited")
	ErrDuplicateReference  = errors.New("payment reference already recorded")
	ErrJustificationNeeded = errors.New("a justification is required")
	ErrTierTooLow          = errors.New("kyc tier too low")
)

// LimitReason names the policy rule that denied an operation.
type LimitReason string

const (
	ReasonTierTooLow             LimitReason = "TIER_TOO_LOW"
	ReasonWeeklyCapExceeded      LimitReason = "WEEKLY_CAP_EXCEEDED"
	ReasonDailyEarnCapExceeded   LimitReason = "DAILY_EARN_CAP_EXCEEDED"
	ReasonMonthlyEarnCapExceeded LimitReason = "MONTHLY_EARN_CAP_EXCEEDED"
)

// LimitExceededError carries the rule, the current window usage and the
// ceiling. Usage and Limit are in NGN for withdrawals and SUP for earning.
type LimitExceededError struct {
	Reason LimitReason
	Usage  decimal.Decimal
	Limit  decimal.Decimal
	Unit   string
}

func (e *LimitExceededError) Error() string {
	if e.Unit == "" {
		return fmt.Sprintf("limit exceeded: %s", e.Reason)
	}
	return fmt.Sprintf("limit exceeded: %s (usage %s of %s %s)", e.Reason, e.Usage.StringFixed(2), e.Limit.StringFixed(2), e.Unit)
}

// Is lets errors.Is(err, ErrLimitExceeded) match.
func (e *LimitExceededError) Is(target error) bool {
	return target == ErrLimitExceeded
}

// PayoutFailedError reports a payout that the gateway rejected synchronously.
// The pending cashout has already been reversed when this is returned.
type PayoutFailedError struct {
	TransactionID uuid.UUID
	Cause         error
}

func (e *PayoutFailedError) Error() string {
	return fmt.Sprintf("payout for transaction %s failed: %v", e.TransactionID, e.Cause)
}

func (e *PayoutFailedError) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is(err, ErrPayoutFailed) match.
func (e *PayoutFailedError) Is(target error) bool {
	return target == ErrPayoutFailed
}

// Retryable is always true: the ledger is back to its pre-cashout state.
func (e *PayoutFailedError) Retryable() bool {
	return true
}
