package economy

import (
	"github.com/shopspring/decimal"

	"embercore.gg/internal/energy/tuning"
)

var one = decimal.New(1, 0)

// tierDecimal parses a tier multiplier. Tuning validation guarantees the
// string parses; an unparseable value from a raw struct falls back to 1.
func tierDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return one
	}
	return d
}

// bulkMultiplier picks the discount tier for a requested amount. Tiers are
// matched in listed order and the first match wins: with the stock tier
// list (10, 25, 50) every amount of 10 or more prices at the first tier.
func bulkMultiplier(t tuning.Tuning, amount int) decimal.Decimal {
	for _, tier := range t.BulkTiers {
		if amount >= tier.MinAmount {
			return tierDecimal(tier.Multiplier)
		}
	}
	return one
}

// demandMultiplier picks the surcharge tier from remaining capacity.
// remaining*100 <= pct*max compares percentages without integer-division
// truncation at the band edges.
func demandMultiplier(t tuning.Tuning, current, max int) decimal.Decimal {
	remaining := max - current
	for _, tier := range t.DemandTiers {
		if remaining*100 <= tier.MaxRemainingPct*max {
			return tierDecimal(tier.Multiplier)
		}
	}
	return one
}

// totalCost prices the granted amount. The result is rounded half away
// from zero and floored at one currency unit for any non-zero grant.
func totalCost(actual int, unitCost int64, bulk, demand decimal.Decimal) int64 {
	if actual <= 0 {
		return 0
	}
	cost := decimal.NewFromInt(int64(actual)).
		Mul(decimal.NewFromInt(unitCost)).
		Mul(bulk).
		Mul(demand)
	n := cost.Round(0).IntPart()
	if n < 1 {
		n = 1
	}
	return n
}
