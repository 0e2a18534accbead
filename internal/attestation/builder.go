package attestation

import (
	"context"
	"fmt"
	"sync"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"privacy-vault/internal/chain"
	"privacy-vault/internal/domain"
	"privacy-vault/internal/observability"
	"privacy-vault/internal/program"
)

// State tracks one verification transaction through its lifecycle.
type State string

const (
	StateIdle              State = "IDLE"
	StateBuilding          State = "BUILDING"
	StateAwaitingSignature State = "AWAITING_SIGNATURE"
	StateSubmitted         State = "SUBMITTED"
	StateConfirmed         State = "CONFIRMED"
	StateFailed            State = "FAILED"
)

// Builder assembles and tracks on-chain attestation verification
// transactions. It performs no retries; a rejection surfaces to the
// caller, who decides whether resubmitting is worth the fee.
type Builder struct {
	ledger    chain.Ledger
	confirmer *chain.Confirmer
	metrics   *observability.Metrics
	log       *zap.Logger

	mu    sync.Mutex
	state State
}

// NewBuilder creates a verification transaction builder.
func NewBuilder(ledger chain.Ledger, confirmer *chain.Confirmer, metrics *observability.Metrics, log *zap.Logger) *Builder {
	return &Builder{
		ledger:    ledger,
		confirmer: confirmer,
		metrics:   metrics,
		log:       log,
		state:     StateIdle,
	}
}

// State returns the current lifecycle state.
func (b *Builder) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

func (b *Builder) setState(s State) {
	b.mu.Lock()
	b.state = s
	b.mu.Unlock()
}

// BuildVerificationTransaction returns an unsigned transaction carrying
// exactly one attestation: its ed25519 precompile instruction at index 0,
// then the program's verify_decryption instruction. The position is load
// bearing: the program introspects the instruction at index 0 and
// requires its message length to equal the verified handle count times
// 32. The covalidator signs each attestation over its own 32-byte
// handle-plaintext pair, so one attestation goes per transaction; a
// batch spans multiple transactions via BuildVerificationTransactions.
//
// The attestation signature is verified locally first; a transaction
// the runtime would reject is never worth broadcasting.
func (b *Builder) BuildVerificationTransaction(
	ctx context.Context,
	authority solana.PublicKey,
	att domain.Attestation,
) (*solana.Transaction, error) {
	b.setState(StateBuilding)

	if err := VerifyLocal(att); err != nil {
		b.metrics.AttestationsRejected.Inc()
		b.setState(StateFailed)
		return nil, err
	}
	ed25519Ix, err := NewEd25519Instruction(att)
	if err != nil {
		b.metrics.AttestationsRejected.Inc()
		b.setState(StateFailed)
		return nil, err
	}

	verifyIx, err := program.VerifyDecryption(authority,
		[]domain.Handle{att.Handle}, [][domain.HandleSize]byte{att.Plaintext})
	if err != nil {
		b.setState(StateFailed)
		return nil, err
	}

	blockhash, err := b.ledger.LatestBlockhash(ctx)
	if err != nil {
		b.setState(StateFailed)
		return nil, err
	}

	tx, err := solana.NewTransaction(
		[]solana.Instruction{ed25519Ix, verifyIx},
		blockhash,
		solana.TransactionPayer(authority),
	)
	if err != nil {
		b.setState(StateFailed)
		return nil, fmt.Errorf("build verification transaction: %w", err)
	}

	b.log.Info("verification transaction built",
		zap.String("handle", att.Handle.String()),
		zap.String("authority", authority.String()))
	b.setState(StateAwaitingSignature)
	return tx, nil
}

// BuildVerificationTransactions builds one verification transaction per
// attestation, in attestation order. Any invalid attestation fails the
// whole batch before a transaction is returned.
func (b *Builder) BuildVerificationTransactions(
	ctx context.Context,
	authority solana.PublicKey,
	atts []domain.Attestation,
) ([]*solana.Transaction, error) {
	if len(atts) == 0 {
		return nil, fmt.Errorf("%w: no attestations to verify", domain.ErrAttestationRejected)
	}

	txs := make([]*solana.Transaction, len(atts))
	for i, att := range atts {
		tx, err := b.BuildVerificationTransaction(ctx, authority, att)
		if err != nil {
			return nil, fmt.Errorf("attestation %d: %w", i, err)
		}
		txs[i] = tx
	}
	return txs, nil
}

// SubmitSigned broadcasts a signed verification transaction and waits
// for finality. Ledger rejection maps to ErrAttestationRejected.
func (b *Builder) SubmitSigned(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	sig, err := b.ledger.SendTransaction(ctx, tx)
	if err != nil {
		b.metrics.AttestationsRejected.Inc()
		b.setState(StateFailed)
		return solana.Signature{}, fmt.Errorf("%w: %v", domain.ErrAttestationRejected, err)
	}
	b.setState(StateSubmitted)

	if err := b.confirmer.Await(ctx, sig); err != nil {
		b.metrics.AttestationsRejected.Inc()
		b.setState(StateFailed)
		return sig, fmt.Errorf("%w: %v", domain.ErrAttestationRejected, err)
	}
	b.metrics.AttestationsVerified.Inc()
	b.setState(StateConfirmed)
	b.log.Info("attestation verified on-chain", zap.String("signature", sig.String()))
	return sig, nil
}
