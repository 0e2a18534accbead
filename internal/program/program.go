// Package program is the client-side binding for the on-chain vault
// program: addresses, PDA derivation, instruction encoding, and account
// state decoding. Instruction account lists are positional and fixed;
// callers must supply exactly the sub-accounts derivable from the
// documented seeds.
package program

import (
	"crypto/sha256"

	"github.com/gagliardetto/solana-go"
)

// Program addresses consumed by the vault.
var (
	// ID is the vault program.
	ID = solana.MustPublicKeyFromBase58("incoBncSVFXQx8LWWND6rrZMsNpYzXJ8jSKSfLHFSE3")

	// IncoLightningID is the confidential-compute program the vault CPIs into.
	IncoLightningID = solana.MustPublicKeyFromBase58("5sjEbPiqgZrYwR31ahR6Uk9wf5awoX61YGg7jExQSwaj")

	// Ed25519ProgramID is the native signature-verification precompile.
	Ed25519ProgramID = solana.MustPublicKeyFromBase58("Ed25519SigVerify111111111111111111111111111")

	// InstructionsSysvarID lets the program introspect sibling instructions.
	InstructionsSysvarID = solana.MustPublicKeyFromBase58("Sysvar1nstructions1111111111111111111111111")
)

// PDA seed prefixes.
var (
	seedConfig  = []byte("config")
	seedVault   = []byte("vault")
	seedTracker = []byte("tracker")
)

// Discriminator returns the 8-byte Anchor instruction discriminator,
// sha256("global:<name>")[:8].
func Discriminator(name string) []byte {
	h := sha256.Sum256([]byte("global:" + name))
	return h[:8]
}

// DeriveConfig derives the singleton config PDA.
func DeriveConfig() (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{seedConfig}, ID)
}

// DeriveVault derives the per-owner vault PDA.
func DeriveVault(owner solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{seedVault, owner.Bytes()}, ID)
}

// DeriveTracker derives the per-(owner, pool) position tracker PDA.
func DeriveTracker(owner, pool solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{seedTracker, owner.Bytes(), pool.Bytes()}, ID)
}
