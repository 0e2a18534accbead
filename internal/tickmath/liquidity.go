package tickmath

import (
	"fmt"
	"math"
	"math/big"

	"lukechampine.com/uint128"

	"privacy-vault/internal/domain"
	"privacy-vault/internal/whirlpool"
)

// QuoteLiquidity computes the liquidity and slippage-padded maximum token
// amounts for depositing inputAmount of inputMint into [tickLower,
// tickUpper) at the pool's current price.
//
// The branch depends on where the current tick sits relative to the range:
// fully below the range needs only token A, fully above only token B, and
// in-range needs both. When the caller supplies the economically inactive
// token's amount, it is converted through the current pool price before
// quoting; the converted amount feeds the same slippage-padded maxima as a
// directly quoted one, so it stays bounded by slippageBps.
func QuoteLiquidity(
	inputMint string,
	inputAmount uint64,
	tickLower, tickUpper int32,
	slippageBps uint16,
	pool *whirlpool.Pool,
) (domain.LiquidityQuote, error) {
	var q domain.LiquidityQuote
	if inputAmount == 0 {
		return q, fmt.Errorf("%w: input amount must be positive", domain.ErrInvalidRange)
	}
	if tickLower >= tickUpper {
		return q, fmt.Errorf("%w: tickLower %d >= tickUpper %d", domain.ErrInvalidRange, tickLower, tickUpper)
	}
	if tickLower < MinTick || tickUpper > MaxTick {
		return q, fmt.Errorf("%w: ticks [%d, %d] outside [%d, %d]",
			domain.ErrInvalidRange, tickLower, tickUpper, MinTick, MaxTick)
	}
	if pool.TickSpacing == 0 {
		return q, fmt.Errorf("%w: pool tick spacing must be positive", domain.ErrInvalidRange)
	}
	if slippageBps > 10000 {
		return q, fmt.Errorf("%w: slippage %d bps exceeds 10000", domain.ErrInvalidRange, slippageBps)
	}

	isA := inputMint == pool.TokenMintA.String()
	if !isA && inputMint != pool.TokenMintB.String() {
		return q, fmt.Errorf("%w: mint %s not in pool %s", domain.ErrInvalidRange, inputMint, pool.Address)
	}

	sqrtP := toFloat(pool.SqrtPrice.Big())
	sqrtL := toFloat(SqrtPriceX64(tickLower))
	sqrtU := toFloat(SqrtPriceX64(tickUpper))
	amount := new(big.Float).SetPrec(128).SetUint64(inputAmount)

	var liq, amtA, amtB *big.Float
	cur := pool.TickCurrentIndex

	switch {
	case cur >= tickUpper:
		// Range entirely below price: only token B is economically
		// required. A token-A amount is converted at the current price.
		amtB = amount
		if isA {
			amtB = mulPrice(amount, sqrtP)
		}
		liq = liquidityFromB(amtB, sqrtL, sqrtU)
		amtA = new(big.Float)

	case cur < tickLower:
		// Range entirely above price: only token A is required.
		amtA = amount
		if !isA {
			amtA = divPrice(amount, sqrtP)
		}
		liq = liquidityFromA(amtA, sqrtL, sqrtU)
		amtB = new(big.Float)

	default:
		// In range: both tokens, proportional to the active sub-ranges.
		if isA {
			amtA = amount
			liq = liquidityFromA(amtA, sqrtP, sqrtU)
			amtB = amountBFromLiquidity(liq, sqrtL, sqrtP)
		} else {
			amtB = amount
			liq = liquidityFromB(amtB, sqrtL, sqrtP)
			amtA = amountAFromLiquidity(liq, sqrtP, sqrtU)
		}
	}

	liquidity, err := floatToUint128(liq)
	if err != nil {
		return q, err
	}
	return domain.LiquidityQuote{
		Liquidity:   liquidity,
		MaxAmountA:  padCeil(amtA, slippageBps),
		MaxAmountB:  padCeil(amtB, slippageBps),
		SlippageBps: slippageBps,
		PoolTick:    cur,
		PoolFetched: pool.Fetched,
	}, nil
}

// QuoteWithdraw computes floor-rounded minimum-out amounts for removing
// liquidityDelta from [tickLower, tickUpper) at current pool state.
func QuoteWithdraw(
	liquidityDelta uint128.Uint128,
	tickLower, tickUpper int32,
	pool *whirlpool.Pool,
) (domain.WithdrawQuote, error) {
	var q domain.WithdrawQuote
	if liquidityDelta.IsZero() {
		return q, fmt.Errorf("%w: liquidity delta must be positive", domain.ErrInvalidRange)
	}
	if tickLower >= tickUpper {
		return q, fmt.Errorf("%w: tickLower %d >= tickUpper %d", domain.ErrInvalidRange, tickLower, tickUpper)
	}

	sqrtP := toFloat(pool.SqrtPrice.Big())
	sqrtL := toFloat(SqrtPriceX64(tickLower))
	sqrtU := toFloat(SqrtPriceX64(tickUpper))
	liq := toFloat(liquidityDelta.Big())

	var amtA, amtB *big.Float
	switch cur := pool.TickCurrentIndex; {
	case cur >= tickUpper:
		amtA = new(big.Float)
		amtB = amountBFromLiquidity(liq, sqrtL, sqrtU)
	case cur < tickLower:
		amtA = amountAFromLiquidity(liq, sqrtL, sqrtU)
		amtB = new(big.Float)
	default:
		amtA = amountAFromLiquidity(liq, sqrtP, sqrtU)
		amtB = amountBFromLiquidity(liq, sqrtL, sqrtP)
	}

	return domain.WithdrawQuote{
		Liquidity:  liquidityDelta,
		MinAmountA: floorUint64(amtA),
		MinAmountB: floorUint64(amtB),
	}, nil
}

func toFloat(i *big.Int) *big.Float {
	return new(big.Float).SetPrec(128).SetInt(i)
}

// mulPrice converts a token-A amount into token B at sqrtPrice (X64):
// amount * (sqrtP/2^64)^2.
func mulPrice(amount, sqrtP *big.Float) *big.Float {
	r := new(big.Float).SetPrec(128).Quo(sqrtP, two64)
	r.Mul(r, r)
	return r.Mul(r, amount)
}

// divPrice converts a token-B amount into token A at sqrtPrice (X64).
func divPrice(amount, sqrtP *big.Float) *big.Float {
	r := new(big.Float).SetPrec(128).Quo(sqrtP, two64)
	r.Mul(r, r)
	return new(big.Float).SetPrec(128).Quo(amount, r)
}

// liquidityFromA: L = amountA * (sqrtA*sqrtB/2^64) / (sqrtB - sqrtA).
func liquidityFromA(amountA, sqrtA, sqrtB *big.Float) *big.Float {
	num := new(big.Float).SetPrec(128).Mul(sqrtA, sqrtB)
	num.Quo(num, two64)
	num.Mul(num, amountA)
	den := new(big.Float).SetPrec(128).Sub(sqrtB, sqrtA)
	return num.Quo(num, den)
}

// liquidityFromB: L = amountB * 2^64 / (sqrtB - sqrtA).
func liquidityFromB(amountB, sqrtA, sqrtB *big.Float) *big.Float {
	num := new(big.Float).SetPrec(128).Mul(amountB, two64)
	den := new(big.Float).SetPrec(128).Sub(sqrtB, sqrtA)
	return num.Quo(num, den)
}

// amountAFromLiquidity: amountA = L * 2^64 * (sqrtB - sqrtA) / (sqrtA*sqrtB).
func amountAFromLiquidity(liq, sqrtA, sqrtB *big.Float) *big.Float {
	num := new(big.Float).SetPrec(128).Sub(sqrtB, sqrtA)
	num.Mul(num, liq)
	num.Mul(num, two64)
	den := new(big.Float).SetPrec(128).Mul(sqrtA, sqrtB)
	return num.Quo(num, den)
}

// amountBFromLiquidity: amountB = L * (sqrtB - sqrtA) / 2^64.
func amountBFromLiquidity(liq, sqrtA, sqrtB *big.Float) *big.Float {
	num := new(big.Float).SetPrec(128).Sub(sqrtB, sqrtA)
	num.Mul(num, liq)
	return num.Quo(num, two64)
}

// padCeil applies slippage padding and rounds up. A positive amount never
// pads to zero, and overflow clamps to the u64 maximum.
func padCeil(amount *big.Float, slippageBps uint16) uint64 {
	if amount.Sign() <= 0 {
		return 0
	}
	padded := new(big.Float).SetPrec(128).Mul(amount,
		big.NewFloat(float64(10000+uint32(slippageBps))))
	padded.Quo(padded, big.NewFloat(10000))
	i, acc := padded.Int(nil)
	if acc == big.Below {
		i.Add(i, big.NewInt(1))
	}
	if i.Sign() <= 0 {
		return 1
	}
	if !i.IsUint64() {
		return math.MaxUint64
	}
	return i.Uint64()
}

func floorUint64(amount *big.Float) uint64 {
	if amount.Sign() <= 0 {
		return 0
	}
	i, _ := amount.Int(nil)
	if !i.IsUint64() {
		return math.MaxUint64
	}
	return i.Uint64()
}

func floatToUint128(f *big.Float) (uint128.Uint128, error) {
	i, _ := f.Int(nil)
	if i.Sign() < 0 || i.BitLen() > 128 {
		return uint128.Uint128{}, fmt.Errorf("%w: liquidity out of 128-bit range", domain.ErrInvalidRange)
	}
	return uint128.FromBig(i), nil
}
