package domain

import (
	"encoding/hex"
	"time"
)

// HandleSize is the byte width of a confidential-value handle (u128).
const HandleSize = 16

// Handle is an opaque reference to one encrypted value held by the
// confidential-compute network. Many handles may reference the same
// underlying plaintext; a handle is revealed only with the owning
// identity's authorization.
type Handle [HandleSize]byte

// String returns the hex form used in logs and API payloads.
func (h Handle) String() string {
	return hex.EncodeToString(h[:])
}

// HandleFromHex parses a hex-encoded 16-byte handle.
func HandleFromHex(s string) (Handle, error) {
	var h Handle
	b, err := hex.DecodeString(s)
	if err != nil {
		return h, err
	}
	if len(b) != HandleSize {
		return h, ErrInvalidRange
	}
	copy(h[:], b)
	return h, nil
}

// EncryptedAmount is a client-side encrypted deposit amount. It is owned
// exclusively by the caller until submitted on-chain, and the plaintext is
// not reconstructible from CipherHex alone.
type EncryptedAmount struct {
	Original  string // decimal string as entered by the user
	CipherHex string // opaque ciphertext, hex encoded
	Timestamp time.Time
}

// Attestation is the covalidator's signed statement that Plaintext is the
// decryption of the value referenced by Handle. The signature covers the
// 32-byte message Handle||Plaintext and is checkable on-chain via the
// ed25519 precompile.
type Attestation struct {
	Handle      Handle
	Plaintext   [HandleSize]byte // little-endian u128
	Signer      [32]byte         // covalidator ed25519 public key
	Signature   [64]byte
	PlainString string // decimal rendering of Plaintext, for display
}

// Message returns the exact bytes the covalidator signed.
func (a Attestation) Message() []byte {
	msg := make([]byte, 0, 2*HandleSize)
	msg = append(msg, a.Handle[:]...)
	msg = append(msg, a.Plaintext[:]...)
	return msg
}
