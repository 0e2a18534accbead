package chain

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"privacy-vault/internal/observability"
)

// Confirmation wait defaults.
const (
	DefaultConfirmTimeout = 90 * time.Second
	DefaultPollInterval   = 2 * time.Second
	wsWriteTimeout        = 10 * time.Second
	wsReadTimeout         = 60 * time.Second
)

// Confirmer waits until the ledger reports finality for a signature, or a
// timeout elapses. It prefers a WebSocket signatureSubscribe and falls
// back to status polling when the subscription cannot be established.
type Confirmer struct {
	client       *Client
	wsEndpoint   string // optional; empty disables the subscription path
	timeout      time.Duration
	pollInterval time.Duration
	metrics      *observability.Metrics
	log          *zap.Logger
}

// NewConfirmer creates a confirmation watcher.
func NewConfirmer(client *Client, wsEndpoint string, metrics *observability.Metrics, log *zap.Logger) *Confirmer {
	return &Confirmer{
		client:       client,
		wsEndpoint:   wsEndpoint,
		timeout:      DefaultConfirmTimeout,
		pollInterval: DefaultPollInterval,
		metrics:      metrics,
		log:          log,
	}
}

// Await blocks until sig is finalized, fails on-chain, or times out. A
// broadcast transaction cannot be cancelled; cancelling ctx only stops
// the wait.
func (c *Confirmer) Await(ctx context.Context, sig solana.Signature) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if c.wsEndpoint != "" {
		err := c.awaitWS(ctx, sig)
		if err == nil {
			c.metrics.ConfirmationDuration.Observe(time.Since(start).Seconds())
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Warn("signature subscription failed, falling back to polling",
			zap.String("signature", sig.String()), zap.Error(err))
	}
	if err := c.awaitPoll(ctx, sig); err != nil {
		return err
	}
	c.metrics.ConfirmationDuration.Observe(time.Since(start).Seconds())
	return nil
}

// wsRequest is a JSON-RPC 2.0 subscription request.
type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

// wsMessage covers both the subscription ack and notifications.
type wsMessage struct {
	ID     uint64          `json:"id"`
	Method string          `json:"method"`
	Error  *wsError        `json:"error"`
	Params json.RawMessage `json:"params"`
}

type wsError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *wsError) Error() string {
	return fmt.Sprintf("ws error %d: %s", e.Code, e.Message)
}

type signatureNotification struct {
	Result struct {
		Value struct {
			Err interface{} `json:"err"`
		} `json:"value"`
	} `json:"result"`
}

func (c *Confirmer) awaitWS(ctx context.Context, sig solana.Signature) error {
	dialer := websocket.Dialer{HandshakeTimeout: wsWriteTimeout}
	conn, _, err := dialer.DialContext(ctx, c.wsEndpoint, nil)
	if err != nil {
		return fmt.Errorf("dial ws: %w", err)
	}
	defer conn.Close()

	// Close the connection when ctx ends so blocked reads unblock.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	req := wsRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "signatureSubscribe",
		Params: []interface{}{
			sig.String(),
			map[string]interface{}{"commitment": "finalized"},
		},
	}
	conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := conn.WriteJSON(req); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	for {
		conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("read ws: %w", err)
		}
		if msg.Error != nil {
			return msg.Error
		}
		if msg.Method != "signatureNotification" {
			continue
		}
		var note signatureNotification
		if err := json.Unmarshal(msg.Params, &note); err != nil {
			return fmt.Errorf("decode notification: %w", err)
		}
		if note.Result.Value.Err != nil {
			return fmt.Errorf("transaction %s failed on-chain: %v", sig, note.Result.Value.Err)
		}
		return nil
	}
}

func (c *Confirmer) awaitPoll(ctx context.Context, sig solana.Signature) error {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		status, txErr, ok, err := c.client.SignatureStatus(ctx, sig)
		if err == nil && ok {
			if txErr != nil {
				return fmt.Errorf("transaction %s failed on-chain: %v", sig, txErr)
			}
			if status == "finalized" || status == "confirmed" {
				return nil
			}
		}
		if err != nil {
			c.log.Debug("signature status poll failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("confirmation wait for %s: %w", sig, ctx.Err())
		case <-ticker.C:
		}
	}
}
