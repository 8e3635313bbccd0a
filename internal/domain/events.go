package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Routing keys on the events exchange.
const (
	RoutingLedgerAppended  = "ledger.transaction.appended"
	RoutingAlertRaised     = "ledger.alert.raised"
	RoutingTreasuryFrozen  = "treasury.control.frozen"
	RoutingTreasuryLifted  = "treasury.control.lifted"
	RoutingRoundClosed     = "draw.round.closed"
	RoutingPayoutSucceeded = "payout.status.successful"
	RoutingPayoutFailed    = "payout.status.failed"
)

// LedgerEvent is emitted after every committed append.
type LedgerEvent struct {
	Transaction  Transaction     `json:"transaction"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
	OccurredAt   time.Time       `json:"occurred_at"`
}

// PayoutStatusEvent is the asynchronous result reported by the payout gateway.
type PayoutStatusEvent struct {
	EventID       string    `json:"event_id"`
	TransactionID uuid.UUID `json:"transaction_id"`
	Status        string    `json:"status"`
	Reference     string    `json:"reference"`
	Reason        string    `json:"reason"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// ControlEvent is published when the freeze flag changes.
type ControlEvent struct {
	Frozen     bool      `json:"frozen"`
	Actor      string    `json:"actor"`
	Reason     string    `json:"reason"`
	OccurredAt time.Time `json:"occurred_at"`
}
