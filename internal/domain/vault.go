package domain

import "lukechampine.com/uint128"

// VaultConfig mirrors the program's singleton configuration account.
// Admin rotation is two-phase (propose then accept) so a typo cannot lock
// the protocol out; Paused is a global kill-switch checked by every
// mutating instruction.
type VaultConfig struct {
	Admin                 [32]byte
	PendingAdmin          [32]byte // zero when no rotation is in flight
	Paused                bool
	PauseTimestamp        int64
	DefaultMaxSlippageBps uint16
	MinLiquidity          uint128.Uint128
	MaxLiquidity          uint128.Uint128
	Bump                  uint8
}

// HasPendingAdmin reports whether a rotation has been proposed.
func (c VaultConfig) HasPendingAdmin() bool {
	return c.PendingAdmin != [32]byte{}
}

// VaultAccount mirrors the per-owner vault account. Locked is a
// ledger-resident mutual-exclusion flag: a lifecycle operation that
// observes it set must fail rather than proceed.
type VaultAccount struct {
	Owner         [32]byte
	Locked        bool
	PositionCount uint32
	Bump          uint8
}

// PositionState is the client-side view of a position's lifecycle.
type PositionState string

const (
	PositionUninitialized PositionState = "UNINITIALIZED"
	PositionOpen          PositionState = "OPEN"
	PositionOpenFunded    PositionState = "OPEN_FUNDED"
	PositionClosed        PositionState = "CLOSED"
)

// PositionTracker mirrors the per-(owner, pool) tracker account that
// correlates the Whirlpool position NFT with encrypted vault bookkeeping.
type PositionTracker struct {
	User             [32]byte
	PositionMint     [32]byte
	Whirlpool        [32]byte
	EncryptedDepositA Handle
	EncryptedDepositB Handle
	DepositTimestamp int64
	EncryptedProfitA Handle
	EncryptedProfitB Handle
	EncryptedReward0 Handle
	EncryptedReward1 Handle
	EncryptedReward2 Handle
	TickLower        int32
	TickUpper        int32
	RebalanceCount   uint16
	LastUpdate       int64
	Bump             uint8
}
