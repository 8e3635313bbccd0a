package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MinHealthyReserveRatio is the percentage below which reserves are unhealthy.
var MinHealthyReserveRatio = decimal.NewFromInt(20)

// TreasurySnapshot is the recomputed treasury picture. ReserveRatio is nil
// when there is no projected outflow to cover.
type TreasurySnapshot struct {
	TotalPoolSUP              decimal.Decimal                `json:"total_pool_sup"`
	PrizePoolSUP              decimal.Decimal                `json:"prize_pool_sup"`
	TotalEscrowNGN            decimal.Decimal                `json:"total_escrow_ngn"`
	WeeklyInflowNGN           decimal.Decimal                `json:"weekly_inflow_ngn"`
	WeeklyOutflowNGN          decimal.Decimal                `json:"weekly_outflow_ngn"`
	ProjectedWeeklyOutflowNGN decimal.Decimal                `json:"projected_weekly_outflow_ngn"`
	ReserveRatio              *decimal.Decimal               `json:"reserve_ratio"`
	Healthy                   bool                           `json:"healthy"`
	PendingWithdrawals        int                            `json:"pending_withdrawals"`
	PendingWithdrawalsNGN     decimal.Decimal                `json:"pending_withdrawals_ngn"`
	SubAccounts               map[SubAccount]decimal.Decimal `json:"sub_accounts"`
	Frozen                    bool                           `json:"frozen"`
	LastAuditDate             *time.Time                     `json:"last_audit_date"`
	GeneratedAt               time.Time                      `json:"generated_at"`
}

// LedgerTotals are the raw aggregates the snapshot is computed from.
type LedgerTotals struct {
	TotalSUP            decimal.Decimal
	OpenPrizePoolSUP    decimal.Decimal
	CompletedBuyNGN     decimal.Decimal
	CompletedCashoutNGN decimal.Decimal
	WeeklyBuyNGN        decimal.Decimal
	WeeklyCashoutNGN    decimal.Decimal
	PendingCashouts     int
	PendingCashoutNGN   decimal.Decimal
}

// TreasuryControls is the single persisted control row.
type TreasuryControls struct {
	Frozen       bool       `json:"frozen"`
	FrozenBy     string     `json:"frozen_by,omitempty"`
	FrozenReason string     `json:"frozen_reason,omitempty"`
	FrozenAt     *time.Time `json:"frozen_at,omitempty"`
	LastAuditAt  *time.Time `json:"last_audit_at,omitempty"`
}

// TransferKind selects the destination of a treasury transfer.
type TransferKind string

const (
	TransferReserve   TransferKind = "RESERVE"
	TransferEmergency TransferKind = "EMERGENCY"
)

// Destination maps the kind to the credited sub-account.
func (k TransferKind) Destination() (SubAccount, bool) {
	switch k {
	case TransferReserve:
		return SubAccountReserve, true
	case TransferEmergency:
		return SubAccountEmergency, true
	}
	return "", false
}

// TreasuryTransfer is the result of a sub-account transfer.
type TreasuryTransfer struct {
	ID     uuid.UUID    `json:"id"`
	Kind   TransferKind `json:"kind"`
	Debit  Transaction  `json:"debit"`
	Credit Transaction  `json:"credit"`
}

// BalanceDrift is an account whose cached balance disagrees with its entries.
type BalanceDrift struct {
	AccountID uuid.UUID       `json:"account_id"`
	Cached    decimal.Decimal `json:"cached"`
	Computed  decimal.Decimal `json:"computed"`
}

// AuditReport is the outcome of a ledger reconciliation run.
type AuditReport struct {
	AuditedAt time.Time      `json:"audited_at"`
	Accounts  int            `json:"accounts"`
	Drifts    []BalanceDrift `json:"drifts"`
}
