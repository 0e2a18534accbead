package whirlpool

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"privacy-vault/internal/domain"
)

func poolBytes(spacing uint16, tick int32) []byte {
	data := make([]byte, requiredLength)
	binary.LittleEndian.PutUint16(data[tickSpacingOffset:], spacing)
	data[sqrtPriceOffset+8] = 1 // sqrtPrice = 2^64
	binary.LittleEndian.PutUint32(data[tickCurrentOffset:], uint32(tick))
	data[tokenMintAOffset] = 0xAA
	data[tokenMintBOffset] = 0xBB
	data[rewardInfosOffset] = 0xC0 // reward 0 mint
	return data
}

func TestDecode(t *testing.T) {
	addr := solana.MustPublicKeyFromBase58("HJPjoWUrhoZzkNfRpHuieeFk9WcZWjwy6PBjZ81ngndJ")

	p, err := Decode(addr, poolBytes(64, -42))
	require.NoError(t, err)
	assert.Equal(t, addr, p.Address)
	assert.Equal(t, uint16(64), p.TickSpacing)
	assert.Equal(t, int32(-42), p.TickCurrentIndex)
	assert.Equal(t, uint64(1), p.SqrtPrice.Hi, "sqrtPrice high word")
	assert.Equal(t, byte(0xAA), p.TokenMintA[0])
	assert.Equal(t, byte(0xBB), p.TokenMintB[0])
	assert.Equal(t, byte(0xC0), p.RewardMints[0][0])
	assert.True(t, p.RewardMints[1].IsZero())

	require.NoError(t, p.Validate())
}

func TestDecode_TooShort(t *testing.T) {
	_, err := Decode(solana.PublicKey{}, make([]byte, 100))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	p, err := Decode(solana.PublicKey{}, poolBytes(0, 0))
	require.NoError(t, err)
	assert.ErrorIs(t, p.Validate(), domain.ErrInvalidRange, "zero spacing")

	data := poolBytes(64, 0)
	data[sqrtPriceOffset+8] = 0
	p, err = Decode(solana.PublicKey{}, data)
	require.NoError(t, err)
	assert.Error(t, p.Validate(), "zero sqrt price")
}

func TestTickArrayStartIndex(t *testing.T) {
	// One array spans spacing * 88 ticks.
	cases := []struct {
		tick    int32
		spacing uint16
		want    int32
	}{
		{0, 64, 0},
		{5631, 64, 0},
		{5632, 64, 5632},
		{-1, 64, -5632},
		{-5632, 64, -5632},
		{-5633, 64, -11264},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, TickArrayStartIndex(tc.tick, tc.spacing),
			"TickArrayStartIndex(%d, %d)", tc.tick, tc.spacing)
	}
}

func TestDeriveTickArray_Deterministic(t *testing.T) {
	pool := solana.MustPublicKeyFromBase58("HJPjoWUrhoZzkNfRpHuieeFk9WcZWjwy6PBjZ81ngndJ")

	// Ticks in the same array share a PDA.
	a, err := DeriveTickArray(pool, 0, 64)
	require.NoError(t, err)
	b, err := DeriveTickArray(pool, 5631, 64)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := DeriveTickArray(pool, -1, 64)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)
}

type mapFetcher map[solana.PublicKey][]byte

func (m mapFetcher) AccountData(_ context.Context, addr solana.PublicKey) ([]byte, error) {
	return m[addr], nil
}

func TestFetch_Missing(t *testing.T) {
	_, err := Fetch(context.Background(), mapFetcher{}, solana.PublicKey{})
	assert.ErrorIs(t, err, domain.ErrPoolNotFound)
}

func TestFetch(t *testing.T) {
	addr := solana.MustPublicKeyFromBase58("HJPjoWUrhoZzkNfRpHuieeFk9WcZWjwy6PBjZ81ngndJ")
	fetcher := mapFetcher{addr: poolBytes(64, 7)}

	p, err := Fetch(context.Background(), fetcher, addr)
	require.NoError(t, err)
	assert.Equal(t, int32(7), p.TickCurrentIndex)
}
