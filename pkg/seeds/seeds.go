// Package seeds implements the deterministic hash constructions used for
// address derivation and account integrity checks.
//
// Two digest families are used, both byte-exact and versioned by their
// context strings:
//   - BLAKE3 for seed derivation (DeriveSeed). Components are
//     length-prefixed so that boundaries are unambiguous and reordering
//     components always changes the digest.
//   - Legacy Keccak-256 for account-data hashing and security tokens,
//     matching the on-chain keccak convention.
package seeds

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/sha3"

	"github.com/fortiblox/X1-Vault/internal/types"
	"github.com/fortiblox/X1-Vault/pkg/common"
)

// minEntropy is the distinct-byte-value threshold for ValidEntropy.
// Buffers shorter than minEntropy only need all-distinct bytes.
const minEntropy = 8

// Security token errors.
var (
	ErrTokenExpired  = errors.New("security token expired")
	ErrTokenMismatch = errors.New("security token mismatch")
)

// DeriveSeed computes a 32-byte BLAKE3 digest over a context string and an
// ordered sequence of components. The same inputs always produce the same
// digest; swapping two components produces a different one.
//
// Each component is limited to common.MaxSeedLen bytes and the sequence to
// common.MaxSeeds components. Oversized input is an error, never truncated.
func DeriveSeed(context []byte, components [][]byte) (types.Hash, error) {
	var digest types.Hash

	if len(components) > common.MaxSeeds {
		return digest, common.ErrTooManySeeds
	}
	for i, c := range components {
		if len(c) > common.MaxSeedLen {
			return digest, fmt.Errorf("component %d: %w", i, common.ErrInvalidSeedLength)
		}
	}

	h := blake3.New()
	h.Write(context)
	var lenBuf [2]byte
	for _, c := range components {
		binary.LittleEndian.PutUint16(lenBuf[:], uint16(len(c)))
		h.Write(lenBuf[:])
		h.Write(c)
	}
	copy(digest[:], h.Sum(nil))
	return digest, nil
}

// ValidEntropy reports whether a candidate buffer has enough byte-value
// diversity to be used as derivation input. All-zero and other low-variance
// buffers are rejected; they make derived addresses predictable.
func ValidEntropy(candidate []byte) bool {
	if len(candidate) == 0 {
		return false
	}

	var seen [256]bool
	distinct := 0
	for _, b := range candidate {
		if !seen[b] {
			seen[b] = true
			distinct++
		}
	}

	required := minEntropy
	if len(candidate) < required {
		required = len(candidate)
	}
	return distinct >= required
}

// ValidateEntropy is the error-returning form of ValidEntropy.
func ValidateEntropy(candidate []byte) error {
	if !ValidEntropy(candidate) {
		return common.ErrLowEntropySeed
	}
	return nil
}

// HashAccountData computes the Keccak-256 digest of account data.
func HashAccountData(data []byte) types.Hash {
	var h types.Hash
	k := sha3.NewLegacyKeccak256()
	k.Write(data)
	copy(h[:], k.Sum(nil))
	return h
}

// AccountIdentifier computes a hash-based identifier binding an owner to a
// seed. Used as the security-context digest for advanced PDA derivation.
func AccountIdentifier(owner types.Pubkey, seed []byte) types.Hash {
	combined := make([]byte, 0, len(owner)+len(seed))
	combined = append(combined, owner[:]...)
	combined = append(combined, seed...)
	return HashAccountData(combined)
}

// VerifyIntegrity checks account data against an expected digest.
func VerifyIntegrity(data []byte, expected types.Hash) error {
	if HashAccountData(data) != expected {
		return common.ErrMalformedAccount
	}
	return nil
}

// SecurityToken mints a token authorizing an operation on an account at a
// point in time. Tokens are deterministic: the same inputs reproduce the
// same token, so no secret material is involved.
func SecurityToken(account types.Pubkey, operation string, unixTime int64) types.Hash {
	buf := make([]byte, 0, len(account)+len(operation)+8)
	buf = append(buf, account[:]...)
	buf = append(buf, operation...)
	buf = binary.LittleEndian.AppendUint64(buf, uint64(unixTime))
	return HashAccountData(buf)
}

// VerifySecurityToken checks a token against the expected mint inputs and
// rejects tokens older than maxAge seconds relative to now.
func VerifySecurityToken(token types.Hash, account types.Pubkey, operation string, unixTime, maxAge, now int64) error {
	if now-unixTime > maxAge {
		return ErrTokenExpired
	}
	if SecurityToken(account, operation, unixTime) != token {
		return ErrTokenMismatch
	}
	return nil
}
