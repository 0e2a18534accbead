// Package tickmath converts between human prices and discrete tick indices
// and quotes liquidity for concentrated-liquidity ranges.
package tickmath

import (
	"fmt"
	"math"
	"math/big"

	"github.com/shopspring/decimal"

	"privacy-vault/internal/domain"
)

// Tick bounds addressable by a concentrated-liquidity pool.
const (
	MinTick int32 = -887272
	MaxTick int32 = 887272
)

// tickBase is the price ratio between adjacent ticks.
const tickBase = 1.0001

// PriceToTick maps a human price (token B per token A) to the highest tick
// whose price does not exceed it. The mapping is monotonic and
// deterministic. Mint decimals shift the price into raw base units first.
func PriceToTick(price decimal.Decimal, decimalsA, decimalsB int) (int32, error) {
	if !price.IsPositive() {
		return 0, fmt.Errorf("%w: price must be positive, got %s", domain.ErrInvalidRange, price)
	}
	raw, _ := price.Shift(int32(decimalsB - decimalsA)).Float64()
	if raw <= 0 || math.IsInf(raw, 0) {
		return 0, fmt.Errorf("%w: price %s out of representable range", domain.ErrInvalidRange, price)
	}
	tick := int32(math.Floor(math.Log(raw) / math.Log(tickBase)))
	if tick < MinTick || tick > MaxTick {
		return 0, fmt.Errorf("%w: price %s maps to tick %d outside [%d, %d]",
			domain.ErrInvalidRange, price, tick, MinTick, MaxTick)
	}
	return tick, nil
}

// TickToPrice is the inverse mapping, for display.
func TickToPrice(tick int32, decimalsA, decimalsB int) decimal.Decimal {
	raw := math.Pow(tickBase, float64(tick))
	return decimal.NewFromFloat(raw).Shift(int32(decimalsA - decimalsB))
}

// AlignTick rounds tick toward the nearest lower multiple of spacing.
// Aligning an already-aligned tick is a no-op.
func AlignTick(tick int32, spacing uint16) int32 {
	s := int32(spacing)
	if s <= 0 {
		return tick
	}
	q := tick / s
	if tick < 0 && tick%s != 0 {
		q--
	}
	return q * s
}

// ResolveTickRange converts a price range into an aligned tick range.
func ResolveTickRange(pr domain.PriceRange, decimalsA, decimalsB int, spacing uint16) (domain.TickRange, error) {
	if spacing == 0 {
		return domain.TickRange{}, fmt.Errorf("%w: tick spacing must be positive", domain.ErrInvalidRange)
	}
	if !pr.Valid() {
		return domain.TickRange{}, fmt.Errorf("%w: require 0 < lower < upper, got [%s, %s]",
			domain.ErrInvalidRange, pr.LowerPrice, pr.UpperPrice)
	}
	lower, err := PriceToTick(pr.LowerPrice, decimalsA, decimalsB)
	if err != nil {
		return domain.TickRange{}, err
	}
	upper, err := PriceToTick(pr.UpperPrice, decimalsA, decimalsB)
	if err != nil {
		return domain.TickRange{}, err
	}
	tr := domain.TickRange{
		TickLower: AlignTick(lower, spacing),
		TickUpper: AlignTick(upper, spacing),
	}
	if !tr.Valid() {
		return domain.TickRange{}, fmt.Errorf("%w: range [%s, %s] collapses to a single aligned tick %d",
			domain.ErrInvalidRange, pr.LowerPrice, pr.UpperPrice, tr.TickLower)
	}
	return tr, nil
}

// two64 is 2^64 as a big float, the X64 fixed-point scale.
var two64 = new(big.Float).SetPrec(128).SetInt(new(big.Int).Lsh(big.NewInt(1), 64))

// SqrtPriceX64 returns sqrt(1.0001^tick) in X64 fixed point.
func SqrtPriceX64(tick int32) *big.Int {
	sqrt := math.Pow(tickBase, float64(tick)/2)
	f := new(big.Float).SetPrec(128).SetFloat64(sqrt)
	f.Mul(f, two64)
	out, _ := f.Int(nil)
	if out.Sign() <= 0 {
		// Sqrt price is never zero inside the tick bounds; guard the
		// fixed-point truncation at the extreme negative edge.
		return big.NewInt(1)
	}
	return out
}
