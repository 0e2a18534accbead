package domain

import "errors"

// Validation errors are detected locally, before any network call.
var (
	// ErrInvalidRange is returned for a non-positive amount, an inverted
	// or degenerate tick range, or a non-positive tick spacing.
	ErrInvalidRange = errors.New("invalid range")

	// ErrScaleOverflow is returned when a scaled fixed-point amount exceeds
	// the 128-bit width supported by the confidential network.
	ErrScaleOverflow = errors.New("scaled amount exceeds 128 bits")

	// ErrQuoteExceedsMax is returned when the computed token requirements
	// exceed the caller-declared maxima.
	ErrQuoteExceedsMax = errors.New("quote exceeds declared maximum")
)

// Ledger-side rejections surface after submission (or from decoded ledger
// state during pre-flight checks) and are never retried automatically.
var (
	// ErrAttestationRejected is returned when the program rejects an
	// attestation transaction on-chain.
	ErrAttestationRejected = errors.New("attestation rejected")

	// ErrSlippageExceeded is returned when requested minimum-out amounts
	// are above what current pool state can satisfy.
	ErrSlippageExceeded = errors.New("slippage exceeded")

	// ErrVaultBusy is returned when the vault account's lock flag is set.
	ErrVaultBusy = errors.New("vault busy: operation in progress")

	// ErrVaultPaused is returned when the global config pause switch is on.
	ErrVaultPaused = errors.New("vault paused")

	// ErrPoolNotFound is returned when the whirlpool account does not exist.
	ErrPoolNotFound = errors.New("pool not found")

	// ErrNotPendingAdmin is returned when acceptAdmin is attempted by an
	// identity other than the proposed one.
	ErrNotPendingAdmin = errors.New("caller is not the pending admin")

	// ErrVaultNotFound is returned when the owner's vault account does not
	// exist yet (initializeVault has not run).
	ErrVaultNotFound = errors.New("vault not found")

	// ErrPositionNotFound is returned when no position tracker exists for
	// the (owner, pool) pair.
	ErrPositionNotFound = errors.New("position not found")

	// ErrPartialSplitFailure is returned when some units of a split plan
	// completed and at least one later unit failed. Completed units are
	// on-chain and are never rolled back.
	ErrPartialSplitFailure = errors.New("split plan partially failed")
)
