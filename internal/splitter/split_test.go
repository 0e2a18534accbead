package splitter

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"privacy-vault/internal/domain"
)

func testConfig() domain.SplitConfig {
	return domain.SplitConfig{
		SplitThreshold:     decimal.NewFromInt(1000),
		MaxSplitParts:      5,
		MinSplitAmount:     decimal.NewFromInt(100),
		DelayBetweenSplits: time.Millisecond,
	}
}

func TestComputeSplits_AboveThreshold(t *testing.T) {
	cfg := testConfig()
	rng := rand.New(rand.NewSource(1))
	total := decimal.NewFromInt(6000)

	amounts, err := ComputeSplits(total, cfg, rng)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, len(amounts), 2)
	assert.LessOrEqual(t, len(amounts), cfg.MaxSplitParts)

	sum := decimal.Zero
	for _, a := range amounts {
		assert.True(t, a.GreaterThanOrEqual(cfg.MinSplitAmount),
			"amount %s below minimum", a)
		sum = sum.Add(a)
	}
	assert.True(t, sum.Equal(total), "sum %s != total %s", sum, total)
}

func TestComputeSplits_BelowThreshold(t *testing.T) {
	cfg := testConfig()
	rng := rand.New(rand.NewSource(1))
	total := decimal.NewFromInt(500)

	amounts, err := ComputeSplits(total, cfg, rng)
	require.NoError(t, err)
	require.Len(t, amounts, 1)
	assert.True(t, amounts[0].Equal(total))
}

func TestComputeSplits_ExactSumFractional(t *testing.T) {
	cfg := testConfig()
	total := decimal.RequireFromString("6000.000000123")

	for seed := int64(0); seed < 50; seed++ {
		rng := rand.New(rand.NewSource(seed))
		amounts, err := ComputeSplits(total, cfg, rng)
		require.NoError(t, err)

		sum := decimal.Zero
		for _, a := range amounts {
			sum = sum.Add(a)
		}
		require.True(t, sum.Equal(total),
			"seed %d: sum %s != total %s", seed, sum, total)
	}
}

func TestComputeSplits_Deterministic(t *testing.T) {
	cfg := testConfig()
	total := decimal.NewFromInt(6000)

	first, err := ComputeSplits(total, cfg, rand.New(rand.NewSource(42)))
	require.NoError(t, err)
	second, err := ComputeSplits(total, cfg, rand.New(rand.NewSource(42)))
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.True(t, first[i].Equal(second[i]),
			"index %d: %s != %s", i, first[i], second[i])
	}
}

func TestComputeSplits_MinimumForcesSinglePart(t *testing.T) {
	cfg := testConfig()
	rng := rand.New(rand.NewSource(1))

	// Above threshold, but floor(150/100) = 1 part: no split.
	cfg.SplitThreshold = decimal.NewFromInt(100)
	amounts, err := ComputeSplits(decimal.NewFromInt(150), cfg, rng)
	require.NoError(t, err)
	require.Len(t, amounts, 1)
	assert.True(t, amounts[0].Equal(decimal.NewFromInt(150)))
}

func TestComputeSplits_InvalidInputs(t *testing.T) {
	cfg := testConfig()
	rng := rand.New(rand.NewSource(1))

	_, err := ComputeSplits(decimal.Zero, cfg, rng)
	assert.ErrorIs(t, err, domain.ErrInvalidRange)

	_, err = ComputeSplits(decimal.NewFromInt(-5), cfg, rng)
	assert.ErrorIs(t, err, domain.ErrInvalidRange)

	bad := cfg
	bad.MinSplitAmount = decimal.Zero
	_, err = ComputeSplits(decimal.NewFromInt(6000), bad, rng)
	assert.ErrorIs(t, err, domain.ErrInvalidRange)

	bad = cfg
	bad.MaxSplitParts = 0
	_, err = ComputeSplits(decimal.NewFromInt(6000), bad, rng)
	assert.ErrorIs(t, err, domain.ErrInvalidRange)
}

func TestNewPlan(t *testing.T) {
	cfg := testConfig()
	rng := rand.New(rand.NewSource(7))
	total := decimal.NewFromInt(6000)

	plan, err := NewPlan("OwnerAddr", "PoolAddr", total, cfg, rng)
	require.NoError(t, err)

	assert.Len(t, plan.PlanID, 64)
	assert.Equal(t, "OwnerAddr", plan.Owner)
	assert.Equal(t, "PoolAddr", plan.Pool)
	assert.True(t, plan.OriginalAmount.Equal(total))
	require.NotEmpty(t, plan.Units)

	sum := decimal.Zero
	for i, u := range plan.Units {
		assert.Equal(t, i, u.Index)
		assert.Equal(t, domain.SplitPending, u.Status)
		sum = sum.Add(u.Amount)
	}
	assert.True(t, sum.Equal(total))
}

func TestComputeSplits_ErrIsInvalidRange(t *testing.T) {
	_, err := ComputeSplits(decimal.Zero, testConfig(), rand.New(rand.NewSource(1)))
	if !errors.Is(err, domain.ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
}
