// Package splitter carves one deposit intent into randomized,
// time-staggered sub-deposits.
package splitter

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"privacy-vault/internal/domain"
	"privacy-vault/internal/idhash"
)

// amountPrecision is the fractional-digit limit for split amounts. It
// matches the fixed-point scale of the encryption codec so every split
// amount survives the scale round-trip exactly.
const amountPrecision = 9

var (
	oneAndHalf = decimal.NewFromFloat(1.5)
)

// ComputeSplits returns the randomized amount sequence for one deposit.
//
// Amounts below cfg.SplitThreshold are returned whole. Otherwise the
// total is carved into at most cfg.MaxSplitParts amounts, each at least
// cfg.MinSplitAmount, shuffled so the largest slot's position leaks
// nothing. The returned amounts always sum to total exactly; the final
// carve takes the remainder rather than rounding.
func ComputeSplits(total decimal.Decimal, cfg domain.SplitConfig, rng *rand.Rand) ([]decimal.Decimal, error) {
	if !total.IsPositive() {
		return nil, fmt.Errorf("%w: total must be positive, got %s", domain.ErrInvalidRange, total)
	}
	if !cfg.MinSplitAmount.IsPositive() || cfg.MaxSplitParts < 1 {
		return nil, fmt.Errorf("%w: min split %s, max parts %d",
			domain.ErrInvalidRange, cfg.MinSplitAmount, cfg.MaxSplitParts)
	}

	if total.LessThan(cfg.SplitThreshold) {
		return []decimal.Decimal{total}, nil
	}

	numSplits := int(total.Div(cfg.MinSplitAmount).IntPart())
	if numSplits > cfg.MaxSplitParts {
		numSplits = cfg.MaxSplitParts
	}
	if numSplits <= 1 {
		return []decimal.Decimal{total}, nil
	}

	amounts := make([]decimal.Decimal, 0, numSplits)
	remaining := total

	for step := 0; step < numSplits-1; step++ {
		stepsLeft := numSplits - step

		// Upper bound: 1.5x the average remaining per step, but always
		// leave enough for the remaining steps' minimums.
		avg := remaining.Div(decimal.NewFromInt(int64(stepsLeft)))
		upper := avg.Mul(oneAndHalf)
		reserve := remaining.Sub(cfg.MinSplitAmount.Mul(decimal.NewFromInt(int64(stepsLeft - 1))))
		if reserve.LessThan(upper) {
			upper = reserve
		}

		lower := cfg.MinSplitAmount
		if upper.LessThan(lower) {
			upper = lower
		}

		span := upper.Sub(lower)
		draw := lower.Add(span.Mul(decimal.NewFromFloat(rng.Float64()))).Truncate(amountPrecision)
		if draw.LessThan(lower) {
			draw = lower
		}

		amounts = append(amounts, draw)
		remaining = remaining.Sub(draw)
	}
	amounts = append(amounts, remaining)

	rng.Shuffle(len(amounts), func(i, j int) {
		amounts[i], amounts[j] = amounts[j], amounts[i]
	})
	return amounts, nil
}

// NewPlan computes a split for total and wraps it in a pending plan with
// a deterministic identifier.
func NewPlan(owner, pool string, total decimal.Decimal, cfg domain.SplitConfig, rng *rand.Rand) (*domain.SplitPlan, error) {
	amounts, err := ComputeSplits(total, cfg, rng)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	units := make([]domain.SplitUnit, len(amounts))
	for i, amt := range amounts {
		units[i] = domain.SplitUnit{
			Index:  i,
			Amount: amt,
			Status: domain.SplitPending,
		}
	}

	return &domain.SplitPlan{
		PlanID:         idhash.ComputePlanID(owner, pool, total.String(), now.UnixNano(), rng.Uint64()),
		Owner:          owner,
		Pool:           pool,
		OriginalAmount: total,
		Units:          units,
		CreatedAt:      now,
	}, nil
}
