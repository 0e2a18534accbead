// Package inco talks to the Inco Lightning confidential-compute network:
// client-side encryption of amounts and authorized, attested decryption.
package inco

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"

	"privacy-vault/internal/domain"
)

// Default configuration values.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultMaxDelay    = 10 * time.Second
	DefaultBackoffMult = 2.0
)

// Network is the confidential-compute surface the codec depends on.
type Network interface {
	// EncryptValue encrypts a scaled fixed-point integer and returns the
	// hex ciphertext. Encryption is stateless and non-deterministic.
	EncryptValue(ctx context.Context, scaled *big.Int) (string, error)
	// Decrypt reveals handles with the owner's authorization and returns
	// one covalidator attestation per handle.
	Decrypt(ctx context.Context, handles []domain.Handle, owner solana.PublicKey, signer Signer) ([]domain.Attestation, error)
}

// HTTPClient implements Network against the covalidator HTTP API.
type HTTPClient struct {
	endpoint    string
	client      *http.Client
	maxRetries  int
	retryDelay  time.Duration
	maxDelay    time.Duration
	backoffMult float64
}

// ClientOption configures HTTPClient.
type ClientOption func(*HTTPClient)

// WithTimeout sets HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.client.Timeout = d
	}
}

// WithMaxRetries sets maximum retry attempts.
func WithMaxRetries(n int) ClientOption {
	return func(c *HTTPClient) {
		c.maxRetries = n
	}
}

// WithRetryDelay sets initial retry delay.
func WithRetryDelay(d time.Duration) ClientOption {
	return func(c *HTTPClient) {
		c.retryDelay = d
	}
}

// WithHTTPClient sets custom http.Client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *HTTPClient) {
		c.client = client
	}
}

// NewHTTPClient creates a covalidator network client.
func NewHTTPClient(endpoint string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		endpoint:    strings.TrimRight(endpoint, "/"),
		client:      &http.Client{Timeout: DefaultTimeout},
		maxRetries:  DefaultMaxRetries,
		retryDelay:  DefaultRetryDelay,
		maxDelay:    DefaultMaxDelay,
		backoffMult: DefaultBackoffMult,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// post performs a JSON POST with retries and exponential backoff.
func (c *HTTPClient) post(ctx context.Context, path string, reqBody, result interface{}) error {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	delay := c.retryDelay
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay = time.Duration(float64(delay) * c.backoffMult)
			if delay > c.maxDelay {
				delay = c.maxDelay
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("http request: %w", err)
			continue
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limited (429)")
			continue
		}

		if resp.StatusCode >= 500 {
			lastErr = fmt.Errorf("server error %d: %s", resp.StatusCode, string(respBody))
			continue
		}

		if resp.StatusCode != http.StatusOK {
			// Client errors are not retried.
			return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(respBody))
		}

		if result != nil {
			if err := json.Unmarshal(respBody, result); err != nil {
				return fmt.Errorf("unmarshal response: %w", err)
			}
		}
		return nil
	}

	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

type encryptRequest struct {
	Value string `json:"value"`
}

type encryptResponse struct {
	Ciphertext string `json:"ciphertext"`
}

// EncryptValue implements Network.
func (c *HTTPClient) EncryptValue(ctx context.Context, scaled *big.Int) (string, error) {
	var resp encryptResponse
	if err := c.post(ctx, "/v1/encrypt", encryptRequest{Value: scaled.String()}, &resp); err != nil {
		return "", fmt.Errorf("encrypt value: %w", err)
	}
	if resp.Ciphertext == "" {
		return "", fmt.Errorf("encrypt value: empty ciphertext")
	}
	return resp.Ciphertext, nil
}

type decryptRequest struct {
	Handles   []string `json:"handles"`
	Owner     string   `json:"owner"`
	Message   string   `json:"message"`   // base64 authorization message
	Signature string   `json:"signature"` // base64 owner signature
}

type decryptResult struct {
	Handle      string `json:"handle"`
	Plaintext   string `json:"plaintext"` // scaled integer, decimal string
	Covalidator string `json:"covalidator"`
	Signature   string `json:"signature"` // base64, 64 bytes
}

type decryptResponse struct {
	Results []decryptResult `json:"results"`
}

// Decrypt implements Network. It suspends on the interactive signature
// request until the signer responds or ctx is cancelled.
func (c *HTTPClient) Decrypt(ctx context.Context, handles []domain.Handle, owner solana.PublicKey, signer Signer) ([]domain.Attestation, error) {
	if len(handles) == 0 {
		return nil, fmt.Errorf("decrypt: no handles")
	}

	hexHandles := make([]string, len(handles))
	for i, h := range handles {
		hexHandles[i] = h.String()
	}

	authMsg := AuthorizationMessage(owner, handles)
	sig, err := signer.Sign(ctx, authMsg)
	if err != nil {
		return nil, fmt.Errorf("authorization signature: %w", err)
	}

	req := decryptRequest{
		Handles:   hexHandles,
		Owner:     owner.String(),
		Message:   base64.StdEncoding.EncodeToString(authMsg),
		Signature: base64.StdEncoding.EncodeToString(sig),
	}
	var resp decryptResponse
	if err := c.post(ctx, "/v1/decrypt", req, &resp); err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	if len(resp.Results) != len(handles) {
		return nil, fmt.Errorf("decrypt: got %d results for %d handles", len(resp.Results), len(handles))
	}

	atts := make([]domain.Attestation, len(resp.Results))
	for i, r := range resp.Results {
		att, err := parseResult(r)
		if err != nil {
			return nil, fmt.Errorf("decrypt result %d: %w", i, err)
		}
		atts[i] = att
	}
	return atts, nil
}

// AuthorizationMessage is the deterministic byte string the owner signs
// to authorize revealing the given handles.
func AuthorizationMessage(owner solana.PublicKey, handles []domain.Handle) []byte {
	var sb strings.Builder
	sb.WriteString("inco:decrypt:")
	sb.WriteString(owner.String())
	for _, h := range handles {
		sb.WriteString(":")
		sb.WriteString(h.String())
	}
	return []byte(sb.String())
}

func parseResult(r decryptResult) (domain.Attestation, error) {
	var att domain.Attestation

	h, err := domain.HandleFromHex(r.Handle)
	if err != nil {
		return att, fmt.Errorf("bad handle %q: %w", r.Handle, err)
	}
	att.Handle = h

	plain, ok := new(big.Int).SetString(r.Plaintext, 10)
	if !ok || plain.Sign() < 0 || plain.BitLen() > 128 {
		return att, fmt.Errorf("bad plaintext %q", r.Plaintext)
	}
	plain.FillBytes(scratch16(&att.Plaintext))
	reverse16(&att.Plaintext) // little-endian u128 on the wire
	att.PlainString = plain.String()

	signerKey, err := base58.Decode(r.Covalidator)
	if err != nil || len(signerKey) != 32 {
		return att, fmt.Errorf("bad covalidator key %q", r.Covalidator)
	}
	copy(att.Signer[:], signerKey)

	sig, err := base64.StdEncoding.DecodeString(r.Signature)
	if err != nil || len(sig) != 64 {
		return att, fmt.Errorf("bad signature for handle %s", r.Handle)
	}
	copy(att.Signature[:], sig)
	return att, nil
}

func scratch16(b *[16]byte) []byte {
	return b[:]
}

func reverse16(b *[16]byte) {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
}
