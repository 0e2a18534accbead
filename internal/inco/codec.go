package inco

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"privacy-vault/internal/attestation"
	"privacy-vault/internal/domain"
	"privacy-vault/internal/observability"
)

// AmountScale is the fixed-point exponent for encrypted amounts. Nine
// fractional digits matches the ledger's native lamport precision, so a
// descaled reveal reads back exactly what was deposited.
const AmountScale = 9

// Codec converts between user-facing decimal amounts and the encrypted
// fixed-point form the confidential network stores.
type Codec struct {
	network Network
	metrics *observability.Metrics
	log     *zap.Logger
}

// NewCodec creates an amount codec over the given network client.
func NewCodec(network Network, metrics *observability.Metrics, log *zap.Logger) *Codec {
	return &Codec{network: network, metrics: metrics, log: log}
}

// Encrypt scales amount to a 128-bit fixed-point integer and encrypts it
// client-side. Digits beyond the ninth fractional place are truncated.
// Returns ErrInvalidRange for non-positive amounts and ErrScaleOverflow
// when the scaled value does not fit 128 bits.
func (c *Codec) Encrypt(ctx context.Context, amount decimal.Decimal) (domain.EncryptedAmount, error) {
	if !amount.IsPositive() {
		return domain.EncryptedAmount{}, fmt.Errorf("%w: amount must be positive, got %s",
			domain.ErrInvalidRange, amount)
	}

	scaled := amount.Shift(AmountScale).Truncate(0).BigInt()
	if scaled.Sign() <= 0 {
		return domain.EncryptedAmount{}, fmt.Errorf("%w: amount %s rounds to zero at scale %d",
			domain.ErrInvalidRange, amount, AmountScale)
	}
	if scaled.BitLen() > 128 {
		return domain.EncryptedAmount{}, fmt.Errorf("%w: %s", domain.ErrScaleOverflow, amount)
	}

	cipher, err := c.network.EncryptValue(ctx, scaled)
	if err != nil {
		return domain.EncryptedAmount{}, err
	}

	c.log.Debug("amount encrypted", zap.Int("cipher_len", len(cipher)))
	return domain.EncryptedAmount{
		Original:  amount.String(),
		CipherHex: cipher,
		Timestamp: time.Now().UTC(),
	}, nil
}

// RevealForDisplay decrypts handles with the owner's authorization. The
// attestations are returned for callers that want to re-verify, but no
// on-chain proof is produced.
func (c *Codec) RevealForDisplay(
	ctx context.Context,
	handles []domain.Handle,
	owner solana.PublicKey,
	signer Signer,
) ([]domain.Attestation, error) {
	atts, err := c.network.Decrypt(ctx, handles, owner, signer)
	if err != nil {
		return nil, err
	}
	for _, att := range atts {
		if err := attestation.VerifyLocal(att); err != nil {
			return nil, err
		}
	}
	c.metrics.HandlesRevealed.Add(float64(len(atts)))
	c.log.Info("handles revealed", zap.Int("count", len(atts)))
	return atts, nil
}

// RevealForVerification decrypts handles and additionally builds the
// ed25519 precompile instructions that let the program verify each
// attestation on-chain. The instructions come back in handle order; each
// goes at index 0 of its own verification transaction, since the program
// introspects only the first instruction and each attestation carries
// its own covalidator signature.
func (c *Codec) RevealForVerification(
	ctx context.Context,
	handles []domain.Handle,
	owner solana.PublicKey,
	signer Signer,
) ([]domain.Attestation, []solana.Instruction, error) {
	atts, err := c.RevealForDisplay(ctx, handles, owner, signer)
	if err != nil {
		return nil, nil, err
	}
	instructions := make([]solana.Instruction, len(atts))
	for i, att := range atts {
		ix, err := attestation.NewEd25519Instruction(att)
		if err != nil {
			return nil, nil, err
		}
		instructions[i] = ix
	}
	return atts, instructions, nil
}

// Descale converts a revealed plaintext back to the user-facing decimal
// amount.
func Descale(att domain.Attestation) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(att.PlainString)
	if err != nil {
		return decimal.Zero, fmt.Errorf("descale plaintext: %w", err)
	}
	return d.Shift(-AmountScale), nil
}
