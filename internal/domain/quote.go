package domain

import (
	"time"

	"lukechampine.com/uint128"
)

// LiquidityQuote is the result of quoting a deposit against current pool
// state. MaxAmountA/B already include the slippage padding, so they are at
// least the amounts required at the pool price the quote was computed from.
// A quote is only valid against that pool state; it becomes stale once the
// price moves, and re-quoting before submission is the caller's job.
type LiquidityQuote struct {
	Liquidity   uint128.Uint128
	MaxAmountA  uint64
	MaxAmountB  uint64
	SlippageBps uint16

	// Pool state the quote was computed from.
	PoolTick    int32
	PoolFetched time.Time
}

// StaleAfter reports whether the quote's pool snapshot is older than maxAge.
func (q LiquidityQuote) StaleAfter(now time.Time, maxAge time.Duration) bool {
	return now.Sub(q.PoolFetched) > maxAge
}

// WithdrawQuote carries minimum-out amounts for removing a liquidity delta
// at current pool state.
type WithdrawQuote struct {
	Liquidity  uint128.Uint128
	MinAmountA uint64
	MinAmountB uint64
}
