// Package vault orchestrates position lifecycle operations against the
// on-chain vault program: pre-flight checks, account derivation, and
// unsigned transaction assembly.
package vault

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"

	"privacy-vault/internal/chain"
	"privacy-vault/internal/domain"
	"privacy-vault/internal/program"
)

// loadConfig fetches and decodes the singleton config account.
func loadConfig(ctx context.Context, ledger chain.Ledger) (domain.VaultConfig, solana.PublicKey, error) {
	addr, _, err := program.DeriveConfig()
	if err != nil {
		return domain.VaultConfig{}, solana.PublicKey{}, fmt.Errorf("derive config: %w", err)
	}
	data, err := ledger.AccountData(ctx, addr)
	if err != nil {
		return domain.VaultConfig{}, addr, err
	}
	if len(data) == 0 {
		return domain.VaultConfig{}, addr, fmt.Errorf("vault config not initialized at %s", addr)
	}
	cfg, err := program.DecodeVaultConfig(data)
	return cfg, addr, err
}

// loadVault fetches the per-owner vault account. Missing account maps to
// ErrVaultNotFound.
func loadVault(ctx context.Context, ledger chain.Ledger, owner solana.PublicKey) (domain.VaultAccount, solana.PublicKey, error) {
	addr, _, err := program.DeriveVault(owner)
	if err != nil {
		return domain.VaultAccount{}, solana.PublicKey{}, fmt.Errorf("derive vault: %w", err)
	}
	data, err := ledger.AccountData(ctx, addr)
	if err != nil {
		return domain.VaultAccount{}, addr, err
	}
	if len(data) == 0 {
		return domain.VaultAccount{}, addr, fmt.Errorf("%w: owner %s", domain.ErrVaultNotFound, owner)
	}
	v, err := program.DecodeVaultAccount(data)
	return v, addr, err
}

// loadTracker fetches the per-(owner, pool) tracker. Missing account maps
// to ErrPositionNotFound.
func loadTracker(ctx context.Context, ledger chain.Ledger, owner, pool solana.PublicKey) (domain.PositionTracker, solana.PublicKey, error) {
	addr, _, err := program.DeriveTracker(owner, pool)
	if err != nil {
		return domain.PositionTracker{}, solana.PublicKey{}, fmt.Errorf("derive tracker: %w", err)
	}
	data, err := ledger.AccountData(ctx, addr)
	if err != nil {
		return domain.PositionTracker{}, addr, err
	}
	if len(data) == 0 {
		return domain.PositionTracker{}, addr, fmt.Errorf("%w: owner %s pool %s", domain.ErrPositionNotFound, owner, pool)
	}
	t, err := program.DecodePositionTracker(data)
	return t, addr, err
}

// guardMutable runs the checks every mutating lifecycle operation shares:
// global pause and the vault's ledger-resident lock flag.
func guardMutable(cfg domain.VaultConfig, v domain.VaultAccount) error {
	if cfg.Paused {
		return domain.ErrVaultPaused
	}
	if v.Locked {
		return domain.ErrVaultBusy
	}
	return nil
}
