package vault

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"
	"lukechampine.com/uint128"

	"privacy-vault/internal/domain"
	"privacy-vault/internal/program"
)

// InitializeConfig builds the one-time config initialization transaction.
// Fails if the config account already exists.
func (m *Manager) InitializeConfig(ctx context.Context, admin solana.PublicKey) (*solana.Transaction, error) {
	configAddr, _, err := program.DeriveConfig()
	if err != nil {
		return nil, fmt.Errorf("derive config: %w", err)
	}
	data, err := m.ledger.AccountData(ctx, configAddr)
	if err != nil {
		return nil, err
	}
	if len(data) > 0 {
		return nil, fmt.Errorf("vault config already initialized at %s", configAddr)
	}
	return m.wrap(ctx, admin, program.InitializeConfig(admin, configAddr))
}

// InitializeVault builds the per-owner vault initialization transaction.
// Fails if the vault already exists.
func (m *Manager) InitializeVault(ctx context.Context, owner solana.PublicKey) (*solana.Transaction, error) {
	vaultAddr, _, err := program.DeriveVault(owner)
	if err != nil {
		return nil, fmt.Errorf("derive vault: %w", err)
	}
	data, err := m.ledger.AccountData(ctx, vaultAddr)
	if err != nil {
		return nil, err
	}
	if len(data) > 0 {
		return nil, fmt.Errorf("vault already initialized for owner %s", owner)
	}
	return m.wrap(ctx, owner, program.InitializeVault(owner, vaultAddr))
}

// PauseVault builds the emergency pause transaction.
func (m *Manager) PauseVault(ctx context.Context, admin solana.PublicKey) (*solana.Transaction, error) {
	cfg, configAddr, err := loadConfig(ctx, m.ledger)
	if err != nil {
		return nil, err
	}
	if err := requireAdmin(cfg, admin); err != nil {
		return nil, err
	}
	if cfg.Paused {
		return nil, fmt.Errorf("%w: already paused", domain.ErrVaultPaused)
	}
	m.log.Warn("building pause transaction", zap.String("admin", admin.String()))
	return m.wrap(ctx, admin, program.PauseVault(admin, configAddr))
}

// UnpauseVault builds the unpause transaction.
func (m *Manager) UnpauseVault(ctx context.Context, admin solana.PublicKey) (*solana.Transaction, error) {
	cfg, configAddr, err := loadConfig(ctx, m.ledger)
	if err != nil {
		return nil, err
	}
	if err := requireAdmin(cfg, admin); err != nil {
		return nil, err
	}
	if !cfg.Paused {
		return nil, fmt.Errorf("vault is not paused")
	}
	return m.wrap(ctx, admin, program.UnpauseVault(admin, configAddr))
}

// ProposeAdmin builds step 1 of the two-phase admin rotation.
func (m *Manager) ProposeAdmin(ctx context.Context, admin, newAdmin solana.PublicKey) (*solana.Transaction, error) {
	cfg, configAddr, err := loadConfig(ctx, m.ledger)
	if err != nil {
		return nil, err
	}
	if err := requireAdmin(cfg, admin); err != nil {
		return nil, err
	}
	if newAdmin.IsZero() {
		return nil, fmt.Errorf("new admin must not be the zero key")
	}
	return m.wrap(ctx, admin, program.ProposeAdmin(admin, configAddr, newAdmin))
}

// AcceptAdmin builds step 2. The caller must match the proposed admin or
// the request fails locally with ErrNotPendingAdmin; the program enforces
// the same check on-chain.
func (m *Manager) AcceptAdmin(ctx context.Context, caller solana.PublicKey) (*solana.Transaction, error) {
	cfg, configAddr, err := loadConfig(ctx, m.ledger)
	if err != nil {
		return nil, err
	}
	if !cfg.HasPendingAdmin() {
		return nil, fmt.Errorf("%w: no rotation proposed", domain.ErrNotPendingAdmin)
	}
	if solana.PublicKey(cfg.PendingAdmin) != caller {
		return nil, fmt.Errorf("%w: caller %s", domain.ErrNotPendingAdmin, caller)
	}
	return m.wrap(ctx, caller, program.AcceptAdmin(caller, configAddr))
}

// UpdateParams builds the parameter update transaction. Nil fields are
// left unchanged.
func (m *Manager) UpdateParams(
	ctx context.Context,
	admin solana.PublicKey,
	maxSlippageBps *uint16,
	minLiquidity, maxLiquidity *uint128.Uint128,
) (*solana.Transaction, error) {
	cfg, configAddr, err := loadConfig(ctx, m.ledger)
	if err != nil {
		return nil, err
	}
	if err := requireAdmin(cfg, admin); err != nil {
		return nil, err
	}
	if maxSlippageBps != nil && *maxSlippageBps > 10000 {
		return nil, fmt.Errorf("%w: slippage %d bps exceeds 10000", domain.ErrInvalidRange, *maxSlippageBps)
	}
	ix, err := program.UpdateParams(admin, configAddr, maxSlippageBps, minLiquidity, maxLiquidity)
	if err != nil {
		return nil, err
	}
	return m.wrap(ctx, admin, ix)
}

func requireAdmin(cfg domain.VaultConfig, caller solana.PublicKey) error {
	if solana.PublicKey(cfg.Admin) != caller {
		return fmt.Errorf("caller %s is not the vault admin", caller)
	}
	return nil
}
