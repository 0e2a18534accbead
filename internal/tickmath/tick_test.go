package tickmath

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"privacy-vault/internal/domain"
)

func TestPriceToTick(t *testing.T) {
	// Price 1.0 with equal decimals sits exactly on tick 0.
	tick, err := PriceToTick(decimal.NewFromInt(1), 6, 6)
	require.NoError(t, err)
	assert.Equal(t, int32(0), tick)

	// Decimal shift moves the tick: 1.0 with (9, 6) decimals is a raw
	// price of 1e-3.
	tick, err = PriceToTick(decimal.NewFromInt(1), 9, 6)
	require.NoError(t, err)
	assert.Negative(t, tick)
}

func TestPriceToTick_Monotonic(t *testing.T) {
	prices := []string{"0.0001", "0.5", "0.9999", "1", "1.0001", "2", "100", "65000"}
	prev := int32(-1 << 30)
	for _, p := range prices {
		price, err := decimal.NewFromString(p)
		require.NoError(t, err)
		tick, err := PriceToTick(price, 6, 6)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, tick, prev, "price %s", p)
		prev = tick
	}
}

func TestPriceToTick_Invalid(t *testing.T) {
	for _, p := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-1)} {
		_, err := PriceToTick(p, 6, 6)
		assert.ErrorIs(t, err, domain.ErrInvalidRange)
	}

	// Beyond the representable tick bounds.
	huge := decimal.New(1, 60)
	_, err := PriceToTick(huge, 6, 6)
	assert.ErrorIs(t, err, domain.ErrInvalidRange)
}

func TestTickToPriceRoundTrip(t *testing.T) {
	for _, tick := range []int32{-443636, -1000, -1, 0, 1, 1000, 443636} {
		price := TickToPrice(tick, 6, 6)
		back, err := PriceToTick(price, 6, 6)
		require.NoError(t, err)
		assert.InDelta(t, tick, back, 1, "tick %d", tick)
	}
}

func TestAlignTick(t *testing.T) {
	cases := []struct {
		tick    int32
		spacing uint16
		want    int32
	}{
		{0, 64, 0},
		{63, 64, 0},
		{64, 64, 64},
		{65, 64, 64},
		{-1, 64, -64},
		{-64, 64, -64},
		{-65, 64, -128},
		{127, 1, 127},
	}
	for _, tc := range cases {
		got := AlignTick(tc.tick, tc.spacing)
		assert.Equal(t, tc.want, got, "AlignTick(%d, %d)", tc.tick, tc.spacing)
		assert.Equal(t, got, AlignTick(got, tc.spacing), "aligning twice must be a no-op")
	}
}

func TestResolveTickRange(t *testing.T) {
	pr := domain.PriceRange{
		LowerPrice: decimal.RequireFromString("0.95"),
		UpperPrice: decimal.RequireFromString("1.05"),
	}

	tr, err := ResolveTickRange(pr, 6, 6, 64)
	require.NoError(t, err)
	assert.True(t, tr.Valid())
	assert.Zero(t, tr.TickLower%64)
	assert.Zero(t, tr.TickUpper%64)
	assert.Less(t, tr.TickLower, tr.TickUpper)
}

func TestResolveTickRange_Errors(t *testing.T) {
	valid := domain.PriceRange{
		LowerPrice: decimal.RequireFromString("0.95"),
		UpperPrice: decimal.RequireFromString("1.05"),
	}

	_, err := ResolveTickRange(valid, 6, 6, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidRange, "zero spacing")

	_, err = ResolveTickRange(domain.PriceRange{
		LowerPrice: decimal.RequireFromString("1.05"),
		UpperPrice: decimal.RequireFromString("0.95"),
	}, 6, 6, 64)
	assert.ErrorIs(t, err, domain.ErrInvalidRange, "inverted prices")

	// Both prices align into the same spacing bucket.
	_, err = ResolveTickRange(domain.PriceRange{
		LowerPrice: decimal.RequireFromString("1.0001"),
		UpperPrice: decimal.RequireFromString("1.0002"),
	}, 6, 6, 128)
	assert.ErrorIs(t, err, domain.ErrInvalidRange, "collapsed range")
}

func TestSqrtPriceX64(t *testing.T) {
	// tick 0 is exactly 2^64.
	want := new(big.Int).Lsh(big.NewInt(1), 64)
	assert.Zero(t, want.Cmp(SqrtPriceX64(0)))

	// Monotonic in the tick.
	assert.Negative(t, SqrtPriceX64(-100).Cmp(SqrtPriceX64(0)))
	assert.Positive(t, SqrtPriceX64(100).Cmp(SqrtPriceX64(0)))

	// Never collapses to zero at the lower bound.
	assert.Positive(t, SqrtPriceX64(MinTick).Sign())
}
