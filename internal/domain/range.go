package domain

import "github.com/shopspring/decimal"

// PriceRange is a user-chosen price band for a concentrated-liquidity
// position. Both bounds are prices of token A denominated in token B.
type PriceRange struct {
	LowerPrice decimal.Decimal
	UpperPrice decimal.Decimal
}

// Valid reports whether both bounds are positive and ordered.
func (r PriceRange) Valid() bool {
	return r.LowerPrice.IsPositive() && r.UpperPrice.IsPositive() &&
		r.LowerPrice.LessThan(r.UpperPrice)
}

// TickRange is a price range resolved to discrete, spacing-aligned ticks.
type TickRange struct {
	TickLower int32
	TickUpper int32
}

// Valid reports whether the range is ordered.
func (r TickRange) Valid() bool {
	return r.TickLower < r.TickUpper
}
