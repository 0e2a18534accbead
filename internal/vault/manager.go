package vault

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"lukechampine.com/uint128"

	"privacy-vault/internal/chain"
	"privacy-vault/internal/domain"
	"privacy-vault/internal/observability"
	"privacy-vault/internal/program"
	"privacy-vault/internal/tickmath"
	"privacy-vault/internal/whirlpool"
)

// Input amount designators for create_position.
const (
	AmountTypeA uint8 = 0
	AmountTypeB uint8 = 1
)

// Manager builds unsigned lifecycle transactions. Building has no side
// effect and is idempotent; submission is not, and replay protection is
// the ledger's job, not ours.
type Manager struct {
	ledger  chain.Ledger
	metrics *observability.Metrics
	log     *zap.Logger
}

// NewManager creates a lifecycle manager.
func NewManager(ledger chain.Ledger, metrics *observability.Metrics, log *zap.Logger) *Manager {
	return &Manager{ledger: ledger, metrics: metrics, log: log}
}

// CreatePositionParams describes one create/deposit request.
type CreatePositionParams struct {
	Owner solana.PublicKey
	Pool  solana.PublicKey

	// Exactly one of PriceRange or TickRange must be set. A TickRange is
	// used as given after spacing alignment.
	PriceRange *domain.PriceRange
	TickRange  *domain.TickRange

	// Mint decimals, needed only for the price-to-tick conversion.
	DecimalsA int
	DecimalsB int

	// PositionMint is a fresh keypair's public key; the caller co-signs
	// the returned transaction with it.
	PositionMint solana.PublicKey

	// EncryptedAmountA/B are the client-side encrypted deposit amounts.
	EncryptedAmountA domain.EncryptedAmount
	EncryptedAmountB domain.EncryptedAmount

	// AmountType says which token InputAmount denominates.
	AmountType  uint8
	InputAmount uint64

	// DeclaredMaxA/B cap the quoted requirements; zero means no cap.
	DeclaredMaxA uint64
	DeclaredMaxB uint64

	// MaxSlippageBps overrides the config default when non-nil.
	MaxSlippageBps *uint16
}

// CreatePositionResult carries the unsigned transaction and the quote it
// was built from so the caller can display expected amounts.
type CreatePositionResult struct {
	Transaction *solana.Transaction
	Quote       domain.LiquidityQuote
	TickRange   domain.TickRange
}

// CreatePosition validates the request against current ledger state and
// returns an unsigned create_position_with_liquidity transaction. The
// quote is only valid against the pool state it was computed from; the
// caller re-quotes if it goes stale before signing.
func (m *Manager) CreatePosition(ctx context.Context, p CreatePositionParams) (*CreatePositionResult, error) {
	cfg, configAddr, err := loadConfig(ctx, m.ledger)
	if err != nil {
		return nil, err
	}
	vaultAcc, vaultAddr, err := loadVault(ctx, m.ledger, p.Owner)
	if err != nil {
		return nil, err
	}
	if err := guardMutable(cfg, vaultAcc); err != nil {
		return nil, err
	}

	quoteStart := time.Now()
	pool, err := whirlpool.Fetch(ctx, m.ledger, p.Pool)
	if err != nil {
		return nil, err
	}
	if err := pool.Validate(); err != nil {
		return nil, err
	}

	ticks, err := m.resolveTicks(p, pool)
	if err != nil {
		return nil, err
	}

	slippage := cfg.DefaultMaxSlippageBps
	if p.MaxSlippageBps != nil {
		slippage = *p.MaxSlippageBps
	}

	inputMint := pool.TokenMintA
	if p.AmountType == AmountTypeB {
		inputMint = pool.TokenMintB
	}
	quote, err := tickmath.QuoteLiquidity(inputMint.String(), p.InputAmount, ticks.TickLower, ticks.TickUpper, slippage, pool)
	if err != nil {
		return nil, err
	}
	m.metrics.QuoteLatency.Observe(time.Since(quoteStart).Seconds())

	if err := checkLiquidityBounds(quote.Liquidity, cfg); err != nil {
		return nil, err
	}
	if p.DeclaredMaxA > 0 && quote.MaxAmountA > p.DeclaredMaxA {
		return nil, fmt.Errorf("%w: token A requires %d, declared max %d",
			domain.ErrQuoteExceedsMax, quote.MaxAmountA, p.DeclaredMaxA)
	}
	if p.DeclaredMaxB > 0 && quote.MaxAmountB > p.DeclaredMaxB {
		return nil, fmt.Errorf("%w: token B requires %d, declared max %d",
			domain.ErrQuoteExceedsMax, quote.MaxAmountB, p.DeclaredMaxB)
	}

	acc, err := m.positionAccounts(p.Owner, p.PositionMint, configAddr, vaultAddr, pool, ticks)
	if err != nil {
		return nil, err
	}

	cipherA, err := decodeCipher(p.EncryptedAmountA)
	if err != nil {
		return nil, fmt.Errorf("encrypted amount A: %w", err)
	}
	cipherB, err := decodeCipher(p.EncryptedAmountB)
	if err != nil {
		return nil, fmt.Errorf("encrypted amount B: %w", err)
	}

	ix, err := program.CreatePosition(acc, program.CreatePositionArgs{
		EncryptedAmountA: cipherA,
		EncryptedAmountB: cipherB,
		AmountType:       p.AmountType,
		TickLower:        ticks.TickLower,
		TickUpper:        ticks.TickUpper,
		Liquidity:        quote.Liquidity,
		TokenMaxA:        quote.MaxAmountA,
		TokenMaxB:        quote.MaxAmountB,
		MaxSlippageBps:   p.MaxSlippageBps,
	})
	if err != nil {
		return nil, err
	}

	tx, err := m.wrap(ctx, p.Owner, ix)
	if err != nil {
		return nil, err
	}

	m.log.Info("create position transaction built",
		zap.String("owner", p.Owner.String()),
		zap.String("pool", p.Pool.String()),
		zap.Int32("tick_lower", ticks.TickLower),
		zap.Int32("tick_upper", ticks.TickUpper))
	return &CreatePositionResult{Transaction: tx, Quote: quote, TickRange: ticks}, nil
}

// WithdrawPosition quotes minimum-out amounts at the requested liquidity
// delta and returns an unsigned withdraw_position transaction. Requested
// minimums above the quote fail with ErrSlippageExceeded before anything
// is submitted.
func (m *Manager) WithdrawPosition(
	ctx context.Context,
	owner, poolAddr solana.PublicKey,
	liquidity uint128.Uint128,
	minAmountA, minAmountB uint64,
	closeAfter bool,
) (*solana.Transaction, error) {
	cfg, configAddr, err := loadConfig(ctx, m.ledger)
	if err != nil {
		return nil, err
	}
	vaultAcc, vaultAddr, err := loadVault(ctx, m.ledger, owner)
	if err != nil {
		return nil, err
	}
	if err := guardMutable(cfg, vaultAcc); err != nil {
		return nil, err
	}
	tracker, _, err := loadTracker(ctx, m.ledger, owner, poolAddr)
	if err != nil {
		return nil, err
	}

	quoteStart := time.Now()
	pool, err := whirlpool.Fetch(ctx, m.ledger, poolAddr)
	if err != nil {
		return nil, err
	}

	wq, err := tickmath.QuoteWithdraw(liquidity, tracker.TickLower, tracker.TickUpper, pool)
	if err != nil {
		return nil, err
	}
	m.metrics.QuoteLatency.Observe(time.Since(quoteStart).Seconds())
	if minAmountA > wq.MinAmountA || minAmountB > wq.MinAmountB {
		return nil, fmt.Errorf("%w: requested min (%d, %d), quoted min (%d, %d)",
			domain.ErrSlippageExceeded, minAmountA, minAmountB, wq.MinAmountA, wq.MinAmountB)
	}

	positionMint := solana.PublicKeyFromBytes(tracker.PositionMint[:])
	acc, err := m.positionAccounts(owner, positionMint, configAddr, vaultAddr, pool,
		domain.TickRange{TickLower: tracker.TickLower, TickUpper: tracker.TickUpper})
	if err != nil {
		return nil, err
	}

	ix, err := program.WithdrawPosition(program.WithdrawPositionAccounts{
		Authority:            acc.Authority,
		VaultConfig:          acc.VaultConfig,
		VaultPDA:             acc.VaultPDA,
		PositionTracker:      acc.PositionTracker,
		Whirlpool:            acc.Whirlpool,
		WhirlpoolPosition:    acc.WhirlpoolPosition,
		PositionMint:         acc.PositionMint,
		PositionTokenAccount: acc.PositionTokenAccount,
		TokenAccountA:        acc.TokenAccountA,
		TokenAccountB:        acc.TokenAccountB,
		TokenVaultA:          acc.TokenVaultA,
		TokenVaultB:          acc.TokenVaultB,
		TickArrayLower:       acc.TickArrayLower,
		TickArrayUpper:       acc.TickArrayUpper,
		WhirlpoolProgram:     acc.WhirlpoolProgram,
	}, liquidity, minAmountA, minAmountB, closeAfter)
	if err != nil {
		return nil, err
	}

	tx, err := m.wrap(ctx, owner, ix)
	if err != nil {
		return nil, err
	}
	m.log.Info("withdraw transaction built",
		zap.String("owner", owner.String()),
		zap.String("pool", poolAddr.String()),
		zap.Bool("close_after", closeAfter))
	return tx, nil
}

// CollectProfits returns an unsigned collect_all_profits transaction.
// Liquidity and tick range are untouched; accrued fees and rewards move
// into the owner's token accounts.
func (m *Manager) CollectProfits(ctx context.Context, owner, poolAddr solana.PublicKey) (*solana.Transaction, error) {
	cfg, configAddr, err := loadConfig(ctx, m.ledger)
	if err != nil {
		return nil, err
	}
	vaultAcc, vaultAddr, err := loadVault(ctx, m.ledger, owner)
	if err != nil {
		return nil, err
	}
	if err := guardMutable(cfg, vaultAcc); err != nil {
		return nil, err
	}
	tracker, trackerAddr, err := loadTracker(ctx, m.ledger, owner, poolAddr)
	if err != nil {
		return nil, err
	}

	pool, err := whirlpool.Fetch(ctx, m.ledger, poolAddr)
	if err != nil {
		return nil, err
	}

	positionMint := solana.PublicKeyFromBytes(tracker.PositionMint[:])
	whirlpoolPosition, err := whirlpool.DerivePosition(positionMint)
	if err != nil {
		return nil, fmt.Errorf("derive position: %w", err)
	}
	positionTokenAccount, _, err := solana.FindAssociatedTokenAddress(owner, positionMint)
	if err != nil {
		return nil, fmt.Errorf("derive position token account: %w", err)
	}
	feeA, _, err := solana.FindAssociatedTokenAddress(owner, pool.TokenMintA)
	if err != nil {
		return nil, fmt.Errorf("derive fee account A: %w", err)
	}
	feeB, _, err := solana.FindAssociatedTokenAddress(owner, pool.TokenMintB)
	if err != nil {
		return nil, fmt.Errorf("derive fee account B: %w", err)
	}

	var rewards [3]solana.PublicKey
	for i, mint := range pool.RewardMints {
		if mint.IsZero() {
			continue
		}
		addr, _, err := solana.FindAssociatedTokenAddress(owner, mint)
		if err != nil {
			return nil, fmt.Errorf("derive reward account %d: %w", i, err)
		}
		rewards[i] = addr
	}

	ix, err := program.CollectProfits(program.CollectProfitsAccounts{
		Authority:            owner,
		VaultConfig:          configAddr,
		VaultPDA:             vaultAddr,
		PositionTracker:      trackerAddr,
		Whirlpool:            poolAddr,
		WhirlpoolPosition:    whirlpoolPosition,
		PositionTokenAccount: positionTokenAccount,
		TokenVaultA:          pool.TokenVaultA,
		TokenVaultB:          pool.TokenVaultB,
		FeeAccountA:          feeA,
		FeeAccountB:          feeB,
		RewardAccounts:       rewards,
		WhirlpoolProgram:     whirlpool.ProgramID,
	})
	if err != nil {
		return nil, err
	}

	tx, err := m.wrap(ctx, owner, ix)
	if err != nil {
		return nil, err
	}
	m.log.Info("collect profits transaction built",
		zap.String("owner", owner.String()),
		zap.String("pool", poolAddr.String()))
	return tx, nil
}

// RebalancePosition moves an existing position to a new tick range in one
// atomic close-then-open. NewPositionMint is a fresh keypair's public key
// for the reopened position's LP NFT; the caller co-signs the returned
// transaction with it. The tracker keeps its encrypted bookkeeping.
func (m *Manager) RebalancePosition(
	ctx context.Context,
	owner, poolAddr, newPositionMint solana.PublicKey,
	newRange domain.PriceRange,
	decimalsA, decimalsB int,
	maxSlippageBps *uint16,
) (*solana.Transaction, error) {
	if newPositionMint.IsZero() {
		return nil, fmt.Errorf("%w: new position mint must be a fresh keypair", domain.ErrInvalidRange)
	}
	cfg, configAddr, err := loadConfig(ctx, m.ledger)
	if err != nil {
		return nil, err
	}
	vaultAcc, vaultAddr, err := loadVault(ctx, m.ledger, owner)
	if err != nil {
		return nil, err
	}
	if err := guardMutable(cfg, vaultAcc); err != nil {
		return nil, err
	}
	tracker, trackerAddr, err := loadTracker(ctx, m.ledger, owner, poolAddr)
	if err != nil {
		return nil, err
	}

	pool, err := whirlpool.Fetch(ctx, m.ledger, poolAddr)
	if err != nil {
		return nil, err
	}
	if err := pool.Validate(); err != nil {
		return nil, err
	}

	ticks, err := tickmath.ResolveTickRange(newRange, decimalsA, decimalsB, pool.TickSpacing)
	if err != nil {
		return nil, err
	}
	if ticks.TickLower == tracker.TickLower && ticks.TickUpper == tracker.TickUpper {
		return nil, fmt.Errorf("%w: new range equals current range [%d, %d]",
			domain.ErrInvalidRange, ticks.TickLower, ticks.TickUpper)
	}

	oldMint := solana.PublicKeyFromBytes(tracker.PositionMint[:])
	if newPositionMint == oldMint {
		return nil, fmt.Errorf("%w: new position mint reuses the current mint %s",
			domain.ErrInvalidRange, oldMint)
	}

	oldTicks := domain.TickRange{TickLower: tracker.TickLower, TickUpper: tracker.TickUpper}
	acc, err := m.rebalanceAccounts(owner, oldMint, newPositionMint, configAddr, vaultAddr, trackerAddr, pool, oldTicks, ticks)
	if err != nil {
		return nil, err
	}

	ix, err := program.RebalancePosition(acc, ticks.TickLower, ticks.TickUpper, maxSlippageBps)
	if err != nil {
		return nil, err
	}

	tx, err := m.wrap(ctx, owner, ix)
	if err != nil {
		return nil, err
	}
	m.log.Info("rebalance transaction built",
		zap.String("owner", owner.String()),
		zap.Int32("tick_lower", ticks.TickLower),
		zap.Int32("tick_upper", ticks.TickUpper))
	return tx, nil
}

// rebalanceAccounts derives the old position's accounts from the tracker
// state and the new position's accounts from the fresh mint. The vault
// token accounts hold both tokens between the close and the reopen.
func (m *Manager) rebalanceAccounts(
	owner, oldMint, newMint, configAddr, vaultAddr, trackerAddr solana.PublicKey,
	pool *whirlpool.Pool,
	oldTicks, newTicks domain.TickRange,
) (program.RebalanceAccounts, error) {
	var acc program.RebalanceAccounts

	oldPosition, err := whirlpool.DerivePosition(oldMint)
	if err != nil {
		return acc, fmt.Errorf("derive old position: %w", err)
	}
	oldPTA, _, err := solana.FindAssociatedTokenAddress(owner, oldMint)
	if err != nil {
		return acc, fmt.Errorf("derive old position token account: %w", err)
	}
	oldLower, err := whirlpool.DeriveTickArray(pool.Address, oldTicks.TickLower, pool.TickSpacing)
	if err != nil {
		return acc, fmt.Errorf("derive old lower tick array: %w", err)
	}
	oldUpper, err := whirlpool.DeriveTickArray(pool.Address, oldTicks.TickUpper, pool.TickSpacing)
	if err != nil {
		return acc, fmt.Errorf("derive old upper tick array: %w", err)
	}

	newPosition, err := whirlpool.DerivePosition(newMint)
	if err != nil {
		return acc, fmt.Errorf("derive new position: %w", err)
	}
	newPTA, _, err := solana.FindAssociatedTokenAddress(owner, newMint)
	if err != nil {
		return acc, fmt.Errorf("derive new position token account: %w", err)
	}
	newLower, err := whirlpool.DeriveTickArray(pool.Address, newTicks.TickLower, pool.TickSpacing)
	if err != nil {
		return acc, fmt.Errorf("derive new lower tick array: %w", err)
	}
	newUpper, err := whirlpool.DeriveTickArray(pool.Address, newTicks.TickUpper, pool.TickSpacing)
	if err != nil {
		return acc, fmt.Errorf("derive new upper tick array: %w", err)
	}

	vaultTokenA, _, err := solana.FindAssociatedTokenAddress(vaultAddr, pool.TokenMintA)
	if err != nil {
		return acc, fmt.Errorf("derive vault token account A: %w", err)
	}
	vaultTokenB, _, err := solana.FindAssociatedTokenAddress(vaultAddr, pool.TokenMintB)
	if err != nil {
		return acc, fmt.Errorf("derive vault token account B: %w", err)
	}

	return program.RebalanceAccounts{
		Authority:               owner,
		VaultConfig:             configAddr,
		VaultPDA:                vaultAddr,
		PositionTracker:         trackerAddr,
		Whirlpool:               pool.Address,
		OldWhirlpoolPosition:    oldPosition,
		OldPositionMint:         oldMint,
		OldPositionTokenAccount: oldPTA,
		OldTickArrayLower:       oldLower,
		OldTickArrayUpper:       oldUpper,
		NewWhirlpoolPosition:    newPosition,
		NewPositionMint:         newMint,
		NewPositionTokenAccount: newPTA,
		NewTickArrayLower:       newLower,
		NewTickArrayUpper:       newUpper,
		VaultTokenA:             vaultTokenA,
		VaultTokenB:             vaultTokenB,
		TokenVaultA:             pool.TokenVaultA,
		TokenVaultB:             pool.TokenVaultB,
		WhirlpoolProgram:        whirlpool.ProgramID,
	}, nil
}

// resolveTicks produces the final aligned tick range from either input form.
func (m *Manager) resolveTicks(p CreatePositionParams, pool *whirlpool.Pool) (domain.TickRange, error) {
	switch {
	case p.TickRange != nil:
		tr := domain.TickRange{
			TickLower: tickmath.AlignTick(p.TickRange.TickLower, pool.TickSpacing),
			TickUpper: tickmath.AlignTick(p.TickRange.TickUpper, pool.TickSpacing),
		}
		if !tr.Valid() {
			return domain.TickRange{}, fmt.Errorf("%w: aligned ticks [%d, %d]",
				domain.ErrInvalidRange, tr.TickLower, tr.TickUpper)
		}
		return tr, nil
	case p.PriceRange != nil:
		return tickmath.ResolveTickRange(*p.PriceRange, p.DecimalsA, p.DecimalsB, pool.TickSpacing)
	default:
		return domain.TickRange{}, fmt.Errorf("%w: neither price range nor tick range given", domain.ErrInvalidRange)
	}
}

// positionAccounts derives every sub-account a position instruction needs
// from (owner, pool, positionMint) and the tick range.
func (m *Manager) positionAccounts(
	owner, positionMint, configAddr, vaultAddr solana.PublicKey,
	pool *whirlpool.Pool,
	ticks domain.TickRange,
) (program.CreatePositionAccounts, error) {
	var acc program.CreatePositionAccounts

	trackerAddr, _, err := program.DeriveTracker(owner, pool.Address)
	if err != nil {
		return acc, fmt.Errorf("derive tracker: %w", err)
	}
	whirlpoolPosition, err := whirlpool.DerivePosition(positionMint)
	if err != nil {
		return acc, fmt.Errorf("derive position: %w", err)
	}
	positionTokenAccount, _, err := solana.FindAssociatedTokenAddress(owner, positionMint)
	if err != nil {
		return acc, fmt.Errorf("derive position token account: %w", err)
	}
	tokenAccountA, _, err := solana.FindAssociatedTokenAddress(owner, pool.TokenMintA)
	if err != nil {
		return acc, fmt.Errorf("derive token account A: %w", err)
	}
	tokenAccountB, _, err := solana.FindAssociatedTokenAddress(owner, pool.TokenMintB)
	if err != nil {
		return acc, fmt.Errorf("derive token account B: %w", err)
	}
	tickArrayLower, err := whirlpool.DeriveTickArray(pool.Address, ticks.TickLower, pool.TickSpacing)
	if err != nil {
		return acc, fmt.Errorf("derive lower tick array: %w", err)
	}
	tickArrayUpper, err := whirlpool.DeriveTickArray(pool.Address, ticks.TickUpper, pool.TickSpacing)
	if err != nil {
		return acc, fmt.Errorf("derive upper tick array: %w", err)
	}

	return program.CreatePositionAccounts{
		Authority:            owner,
		VaultConfig:          configAddr,
		VaultPDA:             vaultAddr,
		PositionTracker:      trackerAddr,
		Whirlpool:            pool.Address,
		WhirlpoolPosition:    whirlpoolPosition,
		PositionMint:         positionMint,
		PositionTokenAccount: positionTokenAccount,
		TokenAccountA:        tokenAccountA,
		TokenAccountB:        tokenAccountB,
		TokenVaultA:          pool.TokenVaultA,
		TokenVaultB:          pool.TokenVaultB,
		TickArrayLower:       tickArrayLower,
		TickArrayUpper:       tickArrayUpper,
		WhirlpoolProgram:     whirlpool.ProgramID,
	}, nil
}

// wrap assembles a single-instruction unsigned transaction paid by owner.
func (m *Manager) wrap(ctx context.Context, owner solana.PublicKey, ix solana.Instruction) (*solana.Transaction, error) {
	blockhash, err := m.ledger.LatestBlockhash(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := solana.NewTransaction([]solana.Instruction{ix}, blockhash, solana.TransactionPayer(owner))
	if err != nil {
		return nil, fmt.Errorf("build transaction: %w", err)
	}
	return tx, nil
}

// checkLiquidityBounds enforces the config's min/max liquidity window.
func checkLiquidityBounds(liq uint128.Uint128, cfg domain.VaultConfig) error {
	if !cfg.MinLiquidity.IsZero() && liq.Cmp(cfg.MinLiquidity) < 0 {
		return fmt.Errorf("%w: liquidity %s below configured minimum %s",
			domain.ErrInvalidRange, liq, cfg.MinLiquidity)
	}
	if !cfg.MaxLiquidity.IsZero() && liq.Cmp(cfg.MaxLiquidity) > 0 {
		return fmt.Errorf("%w: liquidity %s above configured maximum %s",
			domain.ErrQuoteExceedsMax, liq, cfg.MaxLiquidity)
	}
	return nil
}

// decodeCipher extracts raw ciphertext bytes from an encrypted amount.
func decodeCipher(ea domain.EncryptedAmount) ([]byte, error) {
	if ea.CipherHex == "" {
		return nil, fmt.Errorf("empty ciphertext")
	}
	b, err := hex.DecodeString(ea.CipherHex)
	if err != nil {
		return nil, fmt.Errorf("decode ciphertext: %w", err)
	}
	return b, nil
}
