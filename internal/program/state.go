package program

import (
	"encoding/binary"
	"fmt"

	"lukechampine.com/uint128"

	"privacy-vault/internal/domain"
)

// Anchor account sizes, including the 8-byte discriminator.
const (
	VaultConfigLen     = 8 + 32 + 32 + 1 + 8 + 2 + 16 + 16 + 1 // 116
	VaultAccountLen    = 8 + 32 + 1 + 4 + 1                    // 46
	PositionTrackerLen = 8 + 32 + 32 + 32 + 7*16 + 8 + 4 + 4 + 2 + 8 + 1
)

// DecodeVaultConfig parses the singleton config account.
func DecodeVaultConfig(data []byte) (domain.VaultConfig, error) {
	var c domain.VaultConfig
	if len(data) < VaultConfigLen {
		return c, fmt.Errorf("vault config account too short: have %d want %d", len(data), VaultConfigLen)
	}
	off := 8
	copy(c.Admin[:], data[off:off+32])
	off += 32
	copy(c.PendingAdmin[:], data[off:off+32])
	off += 32
	c.Paused = data[off] != 0
	off++
	c.PauseTimestamp = int64(binary.LittleEndian.Uint64(data[off : off+8]))
	off += 8
	c.DefaultMaxSlippageBps = binary.LittleEndian.Uint16(data[off : off+2])
	off += 2
	c.MinLiquidity = uint128.FromBytes(data[off : off+16])
	off += 16
	c.MaxLiquidity = uint128.FromBytes(data[off : off+16])
	off += 16
	c.Bump = data[off]
	return c, nil
}

// DecodeVaultAccount parses a per-owner vault account.
func DecodeVaultAccount(data []byte) (domain.VaultAccount, error) {
	var v domain.VaultAccount
	if len(data) < VaultAccountLen {
		return v, fmt.Errorf("vault account too short: have %d want %d", len(data), VaultAccountLen)
	}
	off := 8
	copy(v.Owner[:], data[off:off+32])
	off += 32
	v.Locked = data[off] != 0
	off++
	v.PositionCount = binary.LittleEndian.Uint32(data[off : off+4])
	off += 4
	v.Bump = data[off]
	return v, nil
}

// DecodePositionTracker parses a per-(owner, pool) tracker account.
func DecodePositionTracker(data []byte) (domain.PositionTracker, error) {
	var t domain.PositionTracker
	if len(data) < PositionTrackerLen {
		return t, fmt.Errorf("position tracker account too short: have %d want %d", len(data), PositionTrackerLen)
	}
	off := 8
	copy(t.User[:], data[off:off+32])
	off += 32
	copy(t.PositionMint[:], data[off:off+32])
	off += 32
	copy(t.Whirlpool[:], data[off:off+32])
	off += 32
	readHandle := func(h *domain.Handle) {
		copy(h[:], data[off:off+16])
		off += 16
	}
	readHandle(&t.EncryptedDepositA)
	readHandle(&t.EncryptedDepositB)
	t.DepositTimestamp = int64(binary.LittleEndian.Uint64(data[off : off+8]))
	off += 8
	readHandle(&t.EncryptedProfitA)
	readHandle(&t.EncryptedProfitB)
	readHandle(&t.EncryptedReward0)
	readHandle(&t.EncryptedReward1)
	readHandle(&t.EncryptedReward2)
	t.TickLower = int32(binary.LittleEndian.Uint32(data[off : off+4]))
	off += 4
	t.TickUpper = int32(binary.LittleEndian.Uint32(data[off : off+4]))
	off += 4
	t.RebalanceCount = binary.LittleEndian.Uint16(data[off : off+2])
	off += 2
	t.LastUpdate = int64(binary.LittleEndian.Uint64(data[off : off+8]))
	off += 8
	t.Bump = data[off]
	return t, nil
}
