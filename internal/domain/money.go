package domain

import "github.com/shopspring/decimal"

// SUPScale is the number of decimal places carried by every SUP amount.
const SUPScale = 2

var (
	// NGNPerSUP is the fixed peg: 1 SUP = ₦10.
	NGNPerSUP = decimal.NewFromInt(10)

	MinBuyNGN      = decimal.NewFromInt(100)
	MinCashoutSUP  = decimal.NewFromInt(100)
	EntryCostSUP   = decimal.NewFromInt(50)
	DailyEarnCap   = decimal.NewFromInt(25)
	MonthlyEarnCap = decimal.NewFromInt(500)
)

// SUPToNGN converts a SUP amount to its naira equivalent at the peg.
func SUPToNGN(sup decimal.Decimal) decimal.Decimal {
	return sup.Mul(NGNPerSUP).Round(SUPScale)
}

// NGNToSUP converts naira to SUP at the peg, truncating to two places so the
// platform never issues more SUP than was paid for.
func NGNToSUP(ngn decimal.Decimal) decimal.Decimal {
	return ngn.Div(NGNPerSUP).Truncate(SUPScale)
}

// NormalizeSUP rounds a SUP amount to the ledger scale.
func NormalizeSUP(sup decimal.Decimal) decimal.Decimal {
	return sup.Round(SUPScale)
}
