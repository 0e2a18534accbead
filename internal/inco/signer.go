package inco

import "context"

// Signer is the interactive signing capability reveals depend on. Sign
// blocks until the external signer (a wallet, typically) responds or ctx
// is cancelled; no concrete signer is embedded in the core.
type Signer interface {
	Sign(ctx context.Context, message []byte) ([]byte, error)
}

// SignerFunc adapts a function to the Signer interface.
type SignerFunc func(ctx context.Context, message []byte) ([]byte, error)

// Sign implements Signer.
func (f SignerFunc) Sign(ctx context.Context, message []byte) ([]byte, error) {
	return f(ctx, message)
}
