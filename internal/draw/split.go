package draw

import (
	"github.com/shopspring/decimal"
	"github.com/vibetrailmedia/stepupnaija-sub004/internal/domain"
)

var (
	winnersShare   = decimal.RequireFromString("0.70")
	communityShare = decimal.RequireFromString("0.20")
	rankShares     = [MaxWinners]decimal.Decimal{
		decimal.RequireFromString("0.50"),
		decimal.RequireFromString("0.30"),
		decimal.RequireFromString("0.20"),
	}
)

// Allocation is how a pool is paid out for a given number of winners.
type Allocation struct {
	// Payouts holds one amount per filled rank.
	Payouts   []decimal.Decimal
	Community decimal.Decimal
	Operating decimal.Decimal
	Rollover  decimal.Decimal
}

// Split divides pool: 70% to the ranks (50/30/20 of it), 20% to community and
// 10% to operating. Shares of unfilled ranks roll over and rounding dust goes
// to operating. With no winners the whole pool rolls over.
func Split(pool decimal.Decimal, winners int) Allocation {
	if winners <= 0 {
		return Allocation{Community: decimal.Zero, Operating: decimal.Zero, Rollover: pool}
	}
	if winners > MaxWinners {
		winners = MaxWinners
	}

	winnersPool := pool.Mul(winnersShare).Truncate(domain.SUPScale)
	community := pool.Mul(communityShare).Truncate(domain.SUPScale)
	operating := pool.Sub(winnersPool).Sub(community)

	alloc := Allocation{Community: community, Rollover: decimal.Zero}
	assigned := decimal.Zero
	for rank := 0; rank < MaxWinners; rank++ {
		share := winnersPool.Mul(rankShares[rank]).Truncate(domain.SUPScale)
		assigned = assigned.Add(share)
		if rank < winners {
			alloc.Payouts = append(alloc.Payouts, share)
		} else {
			alloc.Rollover = alloc.Rollover.Add(share)
		}
	}
	alloc.Operating = operating.Add(winnersPool.Sub(assigned))
	return alloc
}
