// Package whirlpool decodes Orca Whirlpool pool accounts and derives the
// pool-scoped addresses the vault program needs.
package whirlpool

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"lukechampine.com/uint128"

	"privacy-vault/internal/domain"
)

// ProgramID is the Orca Whirlpool program.
var ProgramID = solana.MustPublicKeyFromBase58("whirLbMiicVdio4qvUfM5KAg6Ct8VwpYzGff3uctyCc")

// Whirlpool account byte offsets (after the 8-byte discriminator).
// Total account size: 653 bytes.
const (
	discriminatorLen = 8
	configOffset     = discriminatorLen
	bumpOffset       = configOffset + 32
	tickSpacingOffset = bumpOffset + 1
	feeRateOffset     = tickSpacingOffset + 2 + 2 // skip tick_spacing_seed
	protocolFeeOffset = feeRateOffset + 2
	liquidityOffset   = protocolFeeOffset + 2
	sqrtPriceOffset   = liquidityOffset + 16
	tickCurrentOffset = sqrtPriceOffset + 16
	protocolOwedAOffset = tickCurrentOffset + 4
	protocolOwedBOffset = protocolOwedAOffset + 8
	tokenMintAOffset    = protocolOwedBOffset + 8
	tokenVaultAOffset   = tokenMintAOffset + 32
	feeGrowthAOffset    = tokenVaultAOffset + 32
	tokenMintBOffset    = feeGrowthAOffset + 16
	tokenVaultBOffset   = tokenMintBOffset + 32
	feeGrowthBOffset    = tokenVaultBOffset + 32
	rewardTimestampOffset = feeGrowthBOffset + 16
	rewardInfosOffset     = rewardTimestampOffset + 8
	rewardInfoLen         = 128 // mint(32) vault(32) authority(32) emissions(16) growth(16)
	requiredLength        = rewardInfosOffset + 3*rewardInfoLen
)

// TickArraySize is the number of initialized ticks one tick array spans,
// in units of tick spacing.
const TickArraySize = 88

// Pool is the decoded state of one Whirlpool account.
type Pool struct {
	Address          solana.PublicKey
	Config           solana.PublicKey
	TickSpacing      uint16
	FeeRate          uint16 // hundredths of a basis point
	Liquidity        uint128.Uint128
	SqrtPrice        uint128.Uint128 // X64 fixed point
	TickCurrentIndex int32
	TokenMintA       solana.PublicKey
	TokenVaultA      solana.PublicKey
	TokenMintB       solana.PublicKey
	TokenVaultB      solana.PublicKey
	RewardMints      [3]solana.PublicKey
	Fetched          time.Time
}

// Decode parses raw whirlpool account data.
func Decode(address solana.PublicKey, data []byte) (*Pool, error) {
	if len(data) < requiredLength {
		return nil, fmt.Errorf("whirlpool account too short: have %d want >= %d", len(data), requiredLength)
	}
	p := &Pool{
		Address:          address,
		Config:           solana.PublicKeyFromBytes(data[configOffset : configOffset+32]),
		TickSpacing:      binary.LittleEndian.Uint16(data[tickSpacingOffset : tickSpacingOffset+2]),
		FeeRate:          binary.LittleEndian.Uint16(data[feeRateOffset : feeRateOffset+2]),
		Liquidity:        uint128.FromBytes(data[liquidityOffset : liquidityOffset+16]),
		SqrtPrice:        uint128.FromBytes(data[sqrtPriceOffset : sqrtPriceOffset+16]),
		TickCurrentIndex: int32(binary.LittleEndian.Uint32(data[tickCurrentOffset : tickCurrentOffset+4])),
		TokenMintA:       solana.PublicKeyFromBytes(data[tokenMintAOffset : tokenMintAOffset+32]),
		TokenVaultA:      solana.PublicKeyFromBytes(data[tokenVaultAOffset : tokenVaultAOffset+32]),
		TokenMintB:       solana.PublicKeyFromBytes(data[tokenMintBOffset : tokenMintBOffset+32]),
		TokenVaultB:      solana.PublicKeyFromBytes(data[tokenVaultBOffset : tokenVaultBOffset+32]),
		Fetched:          time.Now(),
	}
	for i := 0; i < 3; i++ {
		off := rewardInfosOffset + i*rewardInfoLen
		p.RewardMints[i] = solana.PublicKeyFromBytes(data[off : off+32])
	}
	return p, nil
}

// Validate checks the pool is usable for quoting.
func (p *Pool) Validate() error {
	if p.TickSpacing == 0 {
		return fmt.Errorf("%w: pool has zero tick spacing", domain.ErrInvalidRange)
	}
	if p.SqrtPrice.IsZero() {
		return fmt.Errorf("pool has zero sqrt price")
	}
	if p.TokenMintA.IsZero() || p.TokenMintB.IsZero() {
		return fmt.Errorf("pool has invalid token mints")
	}
	return nil
}

// TickArrayStartIndex returns the start tick of the array containing tick.
func TickArrayStartIndex(tick int32, spacing uint16) int32 {
	span := int32(spacing) * TickArraySize
	start := tick / span
	if tick < 0 && tick%span != 0 {
		start--
	}
	return start * span
}

// DeriveTickArray derives the tick array PDA covering tick.
func DeriveTickArray(pool solana.PublicKey, tick int32, spacing uint16) (solana.PublicKey, error) {
	start := TickArrayStartIndex(tick, spacing)
	addr, _, err := solana.FindProgramAddress(
		[][]byte{
			[]byte("tick_array"),
			pool.Bytes(),
			[]byte(fmt.Sprintf("%d", start)),
		},
		ProgramID,
	)
	return addr, err
}

// DerivePosition derives the Whirlpool position PDA for a position mint.
func DerivePosition(positionMint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress(
		[][]byte{[]byte("position"), positionMint.Bytes()},
		ProgramID,
	)
	return addr, err
}

// AccountFetcher reads raw account data from the ledger.
type AccountFetcher interface {
	AccountData(ctx context.Context, address solana.PublicKey) ([]byte, error)
}

// Fetch loads and decodes a whirlpool account. A missing account maps to
// domain.ErrPoolNotFound.
func Fetch(ctx context.Context, fetcher AccountFetcher, address solana.PublicKey) (*Pool, error) {
	data, err := fetcher.AccountData(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("fetch whirlpool %s: %w", address, err)
	}
	if len(data) == 0 {
		return nil, domain.ErrPoolNotFound
	}
	return Decode(address, data)
}
