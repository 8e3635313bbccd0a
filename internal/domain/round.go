package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RoundStatus is the lifecycle of a prize round: OPEN → DRAWING → CLOSED.
type RoundStatus string

const (
	RoundOpen    RoundStatus = "OPEN"
	RoundDrawing RoundStatus = "DRAWING"
	RoundClosed  RoundStatus = "CLOSED"
)

// RoundEntry is one account's stake in a round.
type RoundEntry struct {
	AccountID  uuid.UUID `json:"account_id"`
	EntryCount int       `json:"entry_count"`
}

// Winner is a ranked payout of a closed round.
type Winner struct {
	Rank          int             `json:"rank"`
	AccountID     uuid.UUID       `json:"account_id"`
	PayoutSUP     decimal.Decimal `json:"payout_sup"`
	TransactionID uuid.UUID       `json:"transaction_id"`
}

// PrizeRound is a weekly draw. A CLOSED round is immutable.
//
// Seed is kept secret until the draw; SeedCommitment (hex SHA-256 of the
// seed bytes) is public from the moment the round opens.
type PrizeRound struct {
	ID              uuid.UUID       `json:"id"`
	PoolSUP         decimal.Decimal `json:"pool_sup"`
	RolledInSUP     decimal.Decimal `json:"rolled_in_sup"`
	OpenedAt        time.Time       `json:"opened_at"`
	ClosesAt        time.Time       `json:"closes_at"`
	Status          RoundStatus     `json:"status"`
	Entries         []RoundEntry    `json:"entries"`
	Winners         []Winner        `json:"winners"`
	SeedCommitment  string          `json:"seed_commitment"`
	Seed            string          `json:"seed,omitempty"`
	CommunitySUP    decimal.Decimal `json:"community_sup"`
	OperatingSUP    decimal.Decimal `json:"operating_sup"`
	RolloverSUP     decimal.Decimal `json:"rollover_sup"`
	RolloverClaimed bool            `json:"rollover_claimed"`
	Cancelled       bool            `json:"cancelled"`
	ClosedAt        *time.Time      `json:"closed_at,omitempty"`
}

// TotalEntries is the number of tickets sold.
func (r PrizeRound) TotalEntries() int {
	total := 0
	for _, e := range r.Entries {
		total += e.EntryCount
	}
	return total
}

// EntriesFor returns the ticket count held by accountID.
func (r PrizeRound) EntriesFor(accountID uuid.UUID) int {
	for _, e := range r.Entries {
		if e.AccountID == accountID {
			return e.EntryCount
		}
	}
	return 0
}

// Public hides the seed until the round is closed.
func (r PrizeRound) Public() PrizeRound {
	if r.Status != RoundClosed {
		r.Seed = ""
	}
	return r
}

// RoundFilter narrows ListRounds.
type RoundFilter struct {
	Statuses  []RoundStatus
	DueBefore time.Time
	Limit     int
}
