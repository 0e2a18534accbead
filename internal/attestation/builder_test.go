package attestation

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"privacy-vault/internal/domain"
	"privacy-vault/internal/observability"
	"privacy-vault/internal/program"
)

// Prometheus collectors register globally, so the package shares one set.
var testMetrics = observability.NewMetrics("attestation_test")

type stubLedger struct{}

func (stubLedger) AccountData(context.Context, solana.PublicKey) ([]byte, error) {
	return nil, nil
}

func (stubLedger) LatestBlockhash(context.Context) (solana.Hash, error) {
	var h solana.Hash
	h[0] = 7
	return h, nil
}

func (stubLedger) SendTransaction(context.Context, *solana.Transaction) (solana.Signature, error) {
	return solana.Signature{}, nil
}

func signedAttestations(t *testing.T, n int) []domain.Attestation {
	t.Helper()

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	atts := make([]domain.Attestation, n)
	for i := range atts {
		atts[i].Handle[0] = byte(i + 1)
		atts[i].Plaintext[0] = byte(100 + i)
		copy(atts[i].Signer[:], pub)
		copy(atts[i].Signature[:], ed25519.Sign(priv, atts[i].Message()))
	}
	return atts
}

func TestBuildVerificationTransaction(t *testing.T) {
	b := NewBuilder(stubLedger{}, nil, testMetrics, zap.NewNop())
	authority := solana.MustPublicKeyFromBase58("9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin")

	att := signedAttestations(t, 1)[0]
	tx, err := b.BuildVerificationTransaction(context.Background(), authority, att)
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingSignature, b.State())

	// The program introspects instruction index 0 and requires its message
	// length to equal the verified handle count times 32, so the precompile
	// instruction goes first and carries exactly one handle-plaintext pair.
	msg := tx.Message
	require.Len(t, msg.Instructions, 2)
	prog, err := msg.Program(msg.Instructions[0].ProgramIDIndex)
	require.NoError(t, err)
	assert.Equal(t, program.Ed25519ProgramID, prog)

	parsed, err := ParseEd25519Instruction(msg.Instructions[0].Data)
	require.NoError(t, err)
	assert.Equal(t, att.Message(), parsed.Message)
	assert.Len(t, parsed.Message, 2*domain.HandleSize)

	prog, err = msg.Program(msg.Instructions[1].ProgramIDIndex)
	require.NoError(t, err)
	assert.Equal(t, program.ID, prog)

	assert.Equal(t, authority, msg.AccountKeys[0], "authority pays fees")
}

func TestBuildVerificationTransactions(t *testing.T) {
	b := NewBuilder(stubLedger{}, nil, testMetrics, zap.NewNop())
	authority := solana.MustPublicKeyFromBase58("9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin")

	atts := signedAttestations(t, 3)
	txs, err := b.BuildVerificationTransactions(context.Background(), authority, atts)
	require.NoError(t, err)
	require.Len(t, txs, 3)

	// Each transaction verifies exactly its own attestation.
	for i, tx := range txs {
		require.Len(t, tx.Message.Instructions, 2, "transaction %d", i)
		parsed, err := ParseEd25519Instruction(tx.Message.Instructions[0].Data)
		require.NoError(t, err)
		assert.Equal(t, atts[i].Message(), parsed.Message, "transaction %d", i)
	}
}

func TestBuildVerificationTransactions_Empty(t *testing.T) {
	b := NewBuilder(stubLedger{}, nil, testMetrics, zap.NewNop())

	_, err := b.BuildVerificationTransactions(context.Background(), solana.PublicKey{}, nil)
	assert.ErrorIs(t, err, domain.ErrAttestationRejected)
}

func TestBuildVerificationTransaction_BadSignature(t *testing.T) {
	b := NewBuilder(stubLedger{}, nil, testMetrics, zap.NewNop())
	authority := solana.MustPublicKeyFromBase58("9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin")

	att := signedAttestations(t, 1)[0]
	att.Signature[0] ^= 0xFF

	_, err := b.BuildVerificationTransaction(context.Background(), authority, att)
	assert.ErrorIs(t, err, domain.ErrAttestationRejected)
	assert.Equal(t, StateFailed, b.State())
}
