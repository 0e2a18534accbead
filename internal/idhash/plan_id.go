// Package idhash computes deterministic identifiers for split plans.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputePlanID computes a deterministic plan identifier using SHA256.
// Formula: SHA256(owner|pool|amount|created_unix_nano|nonce)
// Returns hex-encoded hash (64 characters).
//
// The nonce disambiguates two identical deposits created in the same
// nanosecond; callers pass a fresh random value per plan.
func ComputePlanID(
	owner string,
	pool string,
	amount string,
	createdUnixNano int64,
	nonce uint64,
) string {
	data := fmt.Sprintf("%s|%s|%s|%d|%d",
		owner,
		pool,
		amount,
		createdUnixNano,
		nonce,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
