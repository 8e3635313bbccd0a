package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountKind separates user wallets from the treasury's own sub-accounts.
type AccountKind string

const (
	AccountKindUser     AccountKind = "USER"
	AccountKindTreasury AccountKind = "TREASURY"
)

// KYCTier is the verification level last reported by the KYC service.
type KYCTier string

const (
	KYCTierNone KYCTier = "NONE"
	KYCTierOne  KYCTier = "TIER1"
	KYCTierTwo  KYCTier = "TIER2"
)

// ParseKYCTier normalizes the tier strings returned by the KYC service.
// Unknown values collapse to NONE.
func ParseKYCTier(raw string) KYCTier {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "TIER1", "TIER_1", "1":
		return KYCTierOne
	case "TIER2", "TIER_2", "2":
		return KYCTierTwo
	default:
		return KYCTierNone
	}
}

// Rank orders tiers so callers can ask for "at least TIER1".
func (t KYCTier) Rank() int {
	switch t {
	case KYCTierOne:
		return 1
	case KYCTierTwo:
		return 2
	default:
		return 0
	}
}

// Account is a SUP wallet. SUPBalance is a cache of the sum of the account's
// effective transactions and is only ever changed by a ledger append.
type Account struct {
	ID         uuid.UUID       `json:"id"`
	Kind       AccountKind     `json:"kind"`
	Label      string          `json:"label,omitempty"`
	SUPBalance decimal.Decimal `json:"sup_balance"`
	KYCTier    KYCTier         `json:"kyc_tier"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// SubAccount names one of the fixed treasury wallets.
type SubAccount string

const (
	SubAccountOperating SubAccount = "operating"
	SubAccountReserve   SubAccount = "reserve"
	SubAccountEmergency SubAccount = "emergency"
	SubAccountCommunity SubAccount = "community"
)

// SubAccounts lists every treasury wallet in display order.
var SubAccounts = []SubAccount{SubAccountOperating, SubAccountReserve, SubAccountEmergency, SubAccountCommunity}

var treasuryNamespace = uuid.MustParse("6f1c2a4e-8d3b-4f7a-9e21-5b0c7d9a3e14")

// ID returns the stable account id of the sub-account. The id is derived from
// the name so every process agrees on it without a lookup.
func (s SubAccount) ID() uuid.UUID {
	return uuid.NewSHA1(treasuryNamespace, []byte("treasury:"+string(s)))
}

// Label is the human readable account label stored with the row.
func (s SubAccount) Label() string {
	return "treasury:" + string(s)
}

// Account builds the zero-balance account row for the sub-account.
func (s SubAccount) Account(now time.Time) Account {
	return Account{
		ID:         s.ID(),
		Kind:       AccountKindTreasury,
		Label:      s.Label(),
		SUPBalance: decimal.Zero,
		KYCTier:    KYCTierTwo,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
