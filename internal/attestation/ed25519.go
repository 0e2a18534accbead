// Package attestation builds transactions that prove revealed plaintexts
// against their confidential handles on-chain.
package attestation

import (
	"crypto/ed25519"
	"encoding/binary"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/gagliardetto/solana-go"

	"privacy-vault/internal/domain"
	"privacy-vault/internal/program"
)

// Ed25519 precompile instruction data layout:
//
//	num_signatures (1) | padding (1) |
//	signature_offset (2) | signature_instruction_index (2) |
//	public_key_offset (2) | public_key_instruction_index (2) |
//	message_offset (2) | message_size (2) | message_instruction_index (2) |
//	public_key (32) | signature (64) | message (...)
//
// All offsets are little-endian u16 and point into this instruction's own
// data (instruction index 0xFFFF).
const (
	ed25519HeaderLen = 16
	pubkeyOffset     = ed25519HeaderLen
	signatureOffset  = pubkeyOffset + 32
	messageOffset    = signatureOffset + 64
	sameInstruction  = uint16(0xFFFF)
)

// NewEd25519Instruction builds one native signature-verification
// instruction for an attestation. The runtime verifies the signature
// before the consuming program instruction executes; the program then
// checks the signer and message contents match the attestation it is
// given.
func NewEd25519Instruction(att domain.Attestation) (solana.Instruction, error) {
	if err := validateSignerKey(att.Signer[:]); err != nil {
		return nil, err
	}
	msg := att.Message()

	data := make([]byte, messageOffset+len(msg))
	data[0] = 1 // one signature
	data[1] = 0 // padding
	putOffsets := func(pos int, off uint16) {
		binary.LittleEndian.PutUint16(data[pos:], off)
		binary.LittleEndian.PutUint16(data[pos+2:], sameInstruction)
	}
	putOffsets(2, signatureOffset)
	putOffsets(6, pubkeyOffset)
	binary.LittleEndian.PutUint16(data[10:], messageOffset)
	binary.LittleEndian.PutUint16(data[12:], uint16(len(msg)))
	binary.LittleEndian.PutUint16(data[14:], sameInstruction)
	copy(data[pubkeyOffset:], att.Signer[:])
	copy(data[signatureOffset:], att.Signature[:])
	copy(data[messageOffset:], msg)

	return solana.NewInstruction(program.Ed25519ProgramID, solana.AccountMetaSlice{}, data), nil
}

// VerifyLocal checks the attestation signature off-chain. The ledger
// performs the same verification in the precompile; failing early avoids
// paying for a transaction the runtime would reject.
func VerifyLocal(att domain.Attestation) error {
	if err := validateSignerKey(att.Signer[:]); err != nil {
		return err
	}
	if !ed25519.Verify(att.Signer[:], att.Message(), att.Signature[:]) {
		return fmt.Errorf("%w: signature does not verify for handle %s",
			domain.ErrAttestationRejected, att.Handle)
	}
	return nil
}

// validateSignerKey rejects byte strings that are not canonical curve
// points before they reach signature verification.
func validateSignerKey(key []byte) error {
	if len(key) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: signer key is %d bytes", domain.ErrAttestationRejected, len(key))
	}
	if _, err := new(edwards25519.Point).SetBytes(key); err != nil {
		return fmt.Errorf("%w: signer key is not a valid curve point", domain.ErrAttestationRejected)
	}
	return nil
}

// ParsedEd25519 is the decoded form of a precompile instruction, used to
// check layout invariants.
type ParsedEd25519 struct {
	PublicKey [32]byte
	Signature [64]byte
	Message   []byte
}

// ParseEd25519Instruction decodes instruction data produced by
// NewEd25519Instruction.
func ParseEd25519Instruction(data []byte) (ParsedEd25519, error) {
	var p ParsedEd25519
	if len(data) < messageOffset {
		return p, fmt.Errorf("ed25519 instruction data too short: %d bytes", len(data))
	}
	if data[0] != 1 {
		return p, fmt.Errorf("expected exactly one signature, got %d", data[0])
	}
	sigOff := binary.LittleEndian.Uint16(data[2:])
	keyOff := binary.LittleEndian.Uint16(data[6:])
	msgOff := binary.LittleEndian.Uint16(data[10:])
	msgLen := binary.LittleEndian.Uint16(data[12:])
	if int(keyOff)+32 > len(data) {
		return p, fmt.Errorf("public key extends past instruction data")
	}
	if int(sigOff)+64 > len(data) {
		return p, fmt.Errorf("signature extends past instruction data")
	}
	if int(msgOff)+int(msgLen) > len(data) {
		return p, fmt.Errorf("message extends past instruction data")
	}
	copy(p.PublicKey[:], data[keyOff:keyOff+32])
	copy(p.Signature[:], data[sigOff:sigOff+64])
	p.Message = append([]byte(nil), data[msgOff:msgOff+msgLen]...)
	return p, nil
}
