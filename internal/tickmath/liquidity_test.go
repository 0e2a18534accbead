package tickmath

import (
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lukechampine.com/uint128"

	"privacy-vault/internal/domain"
	"privacy-vault/internal/whirlpool"
)

var (
	quoteMintA = solana.MustPublicKeyFromBase58("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v")
	quoteMintB = solana.MustPublicKeyFromBase58("Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB")
)

// poolAtTickZero is a pool at price 1.0 (sqrtPrice 2^64).
func poolAtTickZero() *whirlpool.Pool {
	return &whirlpool.Pool{
		Address:          solana.MustPublicKeyFromBase58("HJPjoWUrhoZzkNfRpHuieeFk9WcZWjwy6PBjZ81ngndJ"),
		TickSpacing:      64,
		SqrtPrice:        uint128.New(0, 1), // 2^64
		TickCurrentIndex: 0,
		TokenMintA:       quoteMintA,
		TokenMintB:       quoteMintB,
		Fetched:          time.Now(),
	}
}

func TestQuoteLiquidity_InRange(t *testing.T) {
	pool := poolAtTickZero()

	q, err := QuoteLiquidity(quoteMintA.String(), 1_000_000, -128, 128, 100, pool)
	require.NoError(t, err)

	assert.False(t, q.Liquidity.IsZero())
	// Input amount plus 100 bps slippage padding.
	assert.GreaterOrEqual(t, q.MaxAmountA, uint64(1_000_000))
	assert.LessOrEqual(t, q.MaxAmountA, uint64(1_010_001))
	// A symmetric range at price 1.0 needs a comparable amount of B.
	assert.Positive(t, q.MaxAmountB)
	assert.Equal(t, int32(0), q.PoolTick)
}

func TestQuoteLiquidity_InRangeTokenB(t *testing.T) {
	pool := poolAtTickZero()

	q, err := QuoteLiquidity(quoteMintB.String(), 1_000_000, -128, 128, 100, pool)
	require.NoError(t, err)
	assert.False(t, q.Liquidity.IsZero())
	assert.Positive(t, q.MaxAmountA)
	assert.Positive(t, q.MaxAmountB)
}

func TestQuoteLiquidity_FullRange(t *testing.T) {
	pool := poolAtTickZero()

	q, err := QuoteLiquidity(quoteMintA.String(), 1_000_000, MinTick, MaxTick, 100, pool)
	require.NoError(t, err)
	assert.False(t, q.Liquidity.IsZero())
	assert.Positive(t, q.MaxAmountA)
	assert.Positive(t, q.MaxAmountB)
}

func TestQuoteLiquidity_RangeAbovePrice(t *testing.T) {
	pool := poolAtTickZero()

	// Range entirely above the current price: only token A is required.
	q, err := QuoteLiquidity(quoteMintA.String(), 1_000_000, 128, 256, 100, pool)
	require.NoError(t, err)
	assert.False(t, q.Liquidity.IsZero())
	assert.Positive(t, q.MaxAmountA)
	assert.Zero(t, q.MaxAmountB)

	// A token-B input is converted through the current price.
	qb, err := QuoteLiquidity(quoteMintB.String(), 1_000_000, 128, 256, 100, pool)
	require.NoError(t, err)
	assert.Positive(t, qb.MaxAmountA)
	assert.Zero(t, qb.MaxAmountB)
}

func TestQuoteLiquidity_RangeBelowPrice(t *testing.T) {
	pool := poolAtTickZero()

	q, err := QuoteLiquidity(quoteMintB.String(), 1_000_000, -256, -128, 100, pool)
	require.NoError(t, err)
	assert.False(t, q.Liquidity.IsZero())
	assert.Zero(t, q.MaxAmountA)
	assert.Positive(t, q.MaxAmountB)
}

func TestQuoteLiquidity_Errors(t *testing.T) {
	pool := poolAtTickZero()

	cases := []struct {
		name string
		run  func() error
	}{
		{"zero input", func() error {
			_, err := QuoteLiquidity(quoteMintA.String(), 0, -128, 128, 100, pool)
			return err
		}},
		{"inverted ticks", func() error {
			_, err := QuoteLiquidity(quoteMintA.String(), 1, 128, -128, 100, pool)
			return err
		}},
		{"ticks out of bounds", func() error {
			_, err := QuoteLiquidity(quoteMintA.String(), 1, MinTick-64, 128, 100, pool)
			return err
		}},
		{"slippage too large", func() error {
			_, err := QuoteLiquidity(quoteMintA.String(), 1, -128, 128, 10001, pool)
			return err
		}},
		{"foreign mint", func() error {
			_, err := QuoteLiquidity(solana.SystemProgramID.String(), 1, -128, 128, 100, pool)
			return err
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, tc.run(), domain.ErrInvalidRange)
		})
	}
}

func TestQuoteWithdraw(t *testing.T) {
	pool := poolAtTickZero()

	q, err := QuoteWithdraw(uint128.From64(1_000_000_000), -128, 128, pool)
	require.NoError(t, err)
	assert.Positive(t, q.MinAmountA)
	assert.Positive(t, q.MinAmountB)

	// More liquidity removes at least as much of each token.
	q2, err := QuoteWithdraw(uint128.From64(2_000_000_000), -128, 128, pool)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, q2.MinAmountA, q.MinAmountA)
	assert.GreaterOrEqual(t, q2.MinAmountB, q.MinAmountB)
}

func TestQuoteWithdraw_OutOfRange(t *testing.T) {
	pool := poolAtTickZero()

	// Range above price holds only token A.
	q, err := QuoteWithdraw(uint128.From64(1_000_000_000), 128, 256, pool)
	require.NoError(t, err)
	assert.Positive(t, q.MinAmountA)
	assert.Zero(t, q.MinAmountB)

	// Range below price holds only token B.
	q, err = QuoteWithdraw(uint128.From64(1_000_000_000), -256, -128, pool)
	require.NoError(t, err)
	assert.Zero(t, q.MinAmountA)
	assert.Positive(t, q.MinAmountB)
}

func TestQuoteWithdraw_Errors(t *testing.T) {
	pool := poolAtTickZero()

	_, err := QuoteWithdraw(uint128.Uint128{}, -128, 128, pool)
	assert.ErrorIs(t, err, domain.ErrInvalidRange)

	_, err = QuoteWithdraw(uint128.From64(1), 128, -128, pool)
	assert.ErrorIs(t, err, domain.ErrInvalidRange)
}
