package inco

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"math/big"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"privacy-vault/internal/domain"
	"privacy-vault/internal/observability"
)

// Prometheus collectors register globally, so the package shares one set.
var testMetrics = observability.NewMetrics("inco_test")

// fakeNetwork encrypts by hex-ish tagging and decrypts with real
// covalidator signatures.
type fakeNetwork struct {
	priv    ed25519.PrivateKey
	pub     ed25519.PublicKey
	values  []*big.Int
	counter int
	err     error
}

func newFakeNetwork(t *testing.T) *fakeNetwork {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return &fakeNetwork{priv: priv, pub: pub}
}

func (f *fakeNetwork) EncryptValue(_ context.Context, value *big.Int) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.counter++
	f.values = append(f.values, new(big.Int).Set(value))
	// Distinct ciphertexts even for equal plaintexts.
	return fmt.Sprintf("%x%08d", value, f.counter), nil
}

func (f *fakeNetwork) Decrypt(_ context.Context, handles []domain.Handle, _ solana.PublicKey, _ Signer) ([]domain.Attestation, error) {
	if f.err != nil {
		return nil, f.err
	}
	atts := make([]domain.Attestation, len(handles))
	for i, h := range handles {
		atts[i].Handle = h
		atts[i].Plaintext[0] = h[0] // plaintext mirrors the handle tag
		atts[i].PlainString = fmt.Sprintf("%d", h[0])
		copy(atts[i].Signer[:], f.pub)
		copy(atts[i].Signature[:], ed25519.Sign(f.priv, atts[i].Message()))
	}
	return atts, nil
}

func TestEncrypt(t *testing.T) {
	net := newFakeNetwork(t)
	codec := NewCodec(net, testMetrics, zap.NewNop())

	ea, err := codec.Encrypt(context.Background(), decimal.RequireFromString("1500.5"))
	require.NoError(t, err)
	assert.Equal(t, "1500.5", ea.Original)
	assert.NotEmpty(t, ea.CipherHex)
	assert.False(t, ea.Timestamp.IsZero())

	// Scaled by 10^9 before encryption.
	require.Len(t, net.values, 1)
	assert.Equal(t, "1500500000000", net.values[0].String())
}

func TestEncrypt_DistinctCiphertexts(t *testing.T) {
	net := newFakeNetwork(t)
	codec := NewCodec(net, testMetrics, zap.NewNop())

	a, err := codec.Encrypt(context.Background(), decimal.NewFromInt(100))
	require.NoError(t, err)
	b, err := codec.Encrypt(context.Background(), decimal.NewFromInt(100))
	require.NoError(t, err)
	assert.NotEqual(t, a.CipherHex, b.CipherHex, "equal amounts must not share ciphertext")
}

func TestEncrypt_TruncatesExcessPrecision(t *testing.T) {
	net := newFakeNetwork(t)
	codec := NewCodec(net, testMetrics, zap.NewNop())

	_, err := codec.Encrypt(context.Background(), decimal.RequireFromString("1.0000000005"))
	require.NoError(t, err)
	assert.Equal(t, "1000000000", net.values[0].String(), "tenth fractional digit is truncated")
}

func TestEncrypt_Invalid(t *testing.T) {
	codec := NewCodec(newFakeNetwork(t), testMetrics, zap.NewNop())
	ctx := context.Background()

	for _, amount := range []string{"0", "-1", "0.0000000001"} {
		_, err := codec.Encrypt(ctx, decimal.RequireFromString(amount))
		assert.ErrorIs(t, err, domain.ErrInvalidRange, "amount %s", amount)
	}
}

func TestEncrypt_ScaleOverflow(t *testing.T) {
	codec := NewCodec(newFakeNetwork(t), testMetrics, zap.NewNop())

	// 2^128 / 10^9 rounded up: scaling pushes it past 128 bits.
	huge := decimal.NewFromBigInt(new(big.Int).Lsh(big.NewInt(1), 128), -8)
	_, err := codec.Encrypt(context.Background(), huge)
	assert.ErrorIs(t, err, domain.ErrScaleOverflow)
}

func TestRevealForDisplay(t *testing.T) {
	codec := NewCodec(newFakeNetwork(t), testMetrics, zap.NewNop())
	owner := solana.MustPublicKeyFromBase58("9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin")

	handles := []domain.Handle{{7}, {42}}
	atts, err := codec.RevealForDisplay(context.Background(), handles, owner, nil)
	require.NoError(t, err)
	require.Len(t, atts, 2)
	assert.Equal(t, "7", atts[0].PlainString)
	assert.Equal(t, "42", atts[1].PlainString)
}

func TestRevealForDisplay_TamperedAttestation(t *testing.T) {
	net := newFakeNetwork(t)
	// A key the covalidator never signed with.
	otherPub, _, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	copy(net.pub, otherPub)

	codec := NewCodec(net, testMetrics, zap.NewNop())
	_, err = codec.RevealForDisplay(context.Background(), []domain.Handle{{1}}, solana.PublicKey{}, nil)
	assert.ErrorIs(t, err, domain.ErrAttestationRejected)
}

func TestRevealForVerification(t *testing.T) {
	codec := NewCodec(newFakeNetwork(t), testMetrics, zap.NewNop())

	handles := []domain.Handle{{1}, {2}, {3}}
	atts, instructions, err := codec.RevealForVerification(context.Background(), handles, solana.PublicKey{}, nil)
	require.NoError(t, err)
	assert.Len(t, atts, 3)
	assert.Len(t, instructions, 3, "one precompile instruction per attestation")
}

func TestDescale(t *testing.T) {
	var att domain.Attestation
	att.PlainString = "1500500000000"

	d, err := Descale(att)
	require.NoError(t, err)
	assert.Equal(t, "1500.5", d.String())

	att.PlainString = "garbage"
	_, err = Descale(att)
	assert.Error(t, err)
}
