// Package chain provides ledger access: account reads, blockhash fetch,
// transaction submission, and confirmation waits.
package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"privacy-vault/internal/observability"
)

// Ledger is the read/submit surface the transaction builders depend on.
type Ledger interface {
	// AccountData returns raw account data, or nil when the account does
	// not exist.
	AccountData(ctx context.Context, address solana.PublicKey) ([]byte, error)
	// LatestBlockhash returns a recent blockhash for transaction building.
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
	// SendTransaction broadcasts a signed transaction.
	SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error)
}

// Client implements Ledger over JSON-RPC.
type Client struct {
	rpc     *rpc.Client
	metrics *observability.Metrics
	log     *zap.Logger
}

// NewClient creates a ledger client for the given RPC endpoint.
func NewClient(endpoint string, metrics *observability.Metrics, log *zap.Logger) *Client {
	return &Client{
		rpc:     rpc.New(endpoint),
		metrics: metrics,
		log:     log,
	}
}

func (c *Client) observe(method string, start time.Time) {
	c.metrics.RPCCallLatency.WithLabelValues(method).Observe(time.Since(start).Seconds())
}

// AccountData implements Ledger.
func (c *Client) AccountData(ctx context.Context, address solana.PublicKey) ([]byte, error) {
	defer c.observe("get_account_info", time.Now())
	res, err := c.rpc.GetAccountInfoWithOpts(ctx, address, &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get account %s: %w", address, err)
	}
	if res == nil || res.Value == nil {
		return nil, nil
	}
	return res.Value.Data.GetBinary(), nil
}

// LatestBlockhash implements Ledger.
func (c *Client) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	defer c.observe("get_latest_blockhash", time.Now())
	res, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return solana.Hash{}, fmt.Errorf("get latest blockhash: %w", err)
	}
	return res.Value.Blockhash, nil
}

// SendTransaction implements Ledger.
func (c *Client) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	defer c.observe("send_transaction", time.Now())
	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("send transaction: %w", err)
	}
	c.log.Debug("transaction sent", zap.String("signature", sig.String()))
	return sig, nil
}

// SignatureStatus returns the confirmation status and on-chain error (if
// any) for a signature. ok is false while the ledger has not seen it.
func (c *Client) SignatureStatus(ctx context.Context, sig solana.Signature) (status string, txErr interface{}, ok bool, err error) {
	defer c.observe("get_signature_statuses", time.Now())
	res, err := c.rpc.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return "", nil, false, fmt.Errorf("get signature status: %w", err)
	}
	if len(res.Value) == 0 || res.Value[0] == nil {
		return "", nil, false, nil
	}
	st := res.Value[0]
	return string(st.ConfirmationStatus), st.Err, true, nil
}
