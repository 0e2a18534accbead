package program

import (
	"crypto/sha256"
	"encoding/binary"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"lukechampine.com/uint128"

	"privacy-vault/internal/domain"
)

func TestDiscriminator(t *testing.T) {
	want := sha256.Sum256([]byte("global:create_position_with_liquidity"))
	assert.Equal(t, want[:8], Discriminator("create_position_with_liquidity"))
	assert.Len(t, Discriminator("withdraw_position"), 8)
	assert.NotEqual(t, Discriminator("withdraw_position"), Discriminator("rebalance_position"))
}

func TestPDADerivation(t *testing.T) {
	owner := solana.MustPublicKeyFromBase58("9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin")
	pool := solana.MustPublicKeyFromBase58("HJPjoWUrhoZzkNfRpHuieeFk9WcZWjwy6PBjZ81ngndJ")

	cfg1, bump1, err := DeriveConfig()
	require.NoError(t, err)
	cfg2, bump2, err := DeriveConfig()
	require.NoError(t, err)
	assert.Equal(t, cfg1, cfg2)
	assert.Equal(t, bump1, bump2)

	vault1, _, err := DeriveVault(owner)
	require.NoError(t, err)
	vault2, _, err := DeriveVault(pool)
	require.NoError(t, err)
	assert.NotEqual(t, vault1, vault2, "different owners derive different vaults")

	tracker1, _, err := DeriveTracker(owner, pool)
	require.NoError(t, err)
	tracker2, _, err := DeriveTracker(pool, owner)
	require.NoError(t, err)
	assert.NotEqual(t, tracker1, tracker2, "seed order is significant")
}

func encodeConfigBytes(c domain.VaultConfig) []byte {
	data := make([]byte, VaultConfigLen)
	off := 8
	copy(data[off:], c.Admin[:])
	off += 32
	copy(data[off:], c.PendingAdmin[:])
	off += 32
	if c.Paused {
		data[off] = 1
	}
	off++
	binary.LittleEndian.PutUint64(data[off:], uint64(c.PauseTimestamp))
	off += 8
	binary.LittleEndian.PutUint16(data[off:], c.DefaultMaxSlippageBps)
	off += 2
	c.MinLiquidity.PutBytes(data[off : off+16])
	off += 16
	c.MaxLiquidity.PutBytes(data[off : off+16])
	off += 16
	data[off] = c.Bump
	return data
}

func TestDecodeVaultConfig(t *testing.T) {
	var in domain.VaultConfig
	in.Admin[0] = 0xAA
	in.PendingAdmin[31] = 0xBB
	in.Paused = true
	in.PauseTimestamp = 1_700_000_000
	in.DefaultMaxSlippageBps = 250
	in.MinLiquidity = uint128.From64(1_000)
	in.MaxLiquidity = uint128.New(0, 2) // 2^65
	in.Bump = 254

	out, err := DecodeVaultConfig(encodeConfigBytes(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDecodeVaultConfig_Short(t *testing.T) {
	_, err := DecodeVaultConfig(make([]byte, VaultConfigLen-1))
	assert.Error(t, err)
}

func TestDecodeVaultAccount(t *testing.T) {
	data := make([]byte, VaultAccountLen)
	data[8] = 0xCC // owner first byte
	data[40] = 1   // locked
	binary.LittleEndian.PutUint32(data[41:], 7)
	data[45] = 253

	out, err := DecodeVaultAccount(data)
	require.NoError(t, err)
	assert.Equal(t, byte(0xCC), out.Owner[0])
	assert.True(t, out.Locked)
	assert.Equal(t, uint32(7), out.PositionCount)
	assert.Equal(t, uint8(253), out.Bump)
}

func TestDecodePositionTracker(t *testing.T) {
	data := make([]byte, PositionTrackerLen)
	data[8] = 0x01   // user
	data[40] = 0x02  // position mint
	data[72] = 0x03  // whirlpool
	data[104] = 0x04 // deposit A handle
	data[120] = 0x05 // deposit B handle
	binary.LittleEndian.PutUint64(data[136:], 1_700_000_000)
	data[144] = 0x06 // profit A handle
	tickLower := int32(-128)
	binary.LittleEndian.PutUint32(data[224:], uint32(tickLower))
	binary.LittleEndian.PutUint32(data[228:], 128)
	binary.LittleEndian.PutUint16(data[232:], 3)
	binary.LittleEndian.PutUint64(data[234:], 1_700_000_100)
	data[242] = 252

	out, err := DecodePositionTracker(data)
	require.NoError(t, err)
	assert.Equal(t, byte(0x01), out.User[0])
	assert.Equal(t, byte(0x02), out.PositionMint[0])
	assert.Equal(t, byte(0x03), out.Whirlpool[0])
	assert.Equal(t, byte(0x04), out.EncryptedDepositA[0])
	assert.Equal(t, byte(0x05), out.EncryptedDepositB[0])
	assert.Equal(t, byte(0x06), out.EncryptedProfitA[0])
	assert.Equal(t, int64(1_700_000_000), out.DepositTimestamp)
	assert.Equal(t, int32(-128), out.TickLower)
	assert.Equal(t, int32(128), out.TickUpper)
	assert.Equal(t, uint16(3), out.RebalanceCount)
	assert.Equal(t, int64(1_700_000_100), out.LastUpdate)
	assert.Equal(t, uint8(252), out.Bump)
}
