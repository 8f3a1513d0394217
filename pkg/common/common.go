// Package common holds the error taxonomy, shared constants, and address
// format checks used by every other vault package.
//
// Errors are plain sentinels so callers can test them with errors.Is. Each
// sentinel also has a stable numeric code, which is the only diagnostic the
// runtime surfaces to instruction submitters.
package common

import (
	"errors"

	"github.com/fortiblox/X1-Vault/internal/types"
)

// Seed and derivation limits.
const (
	// MaxSeeds is the maximum number of seed components per derivation,
	// including the bump.
	MaxSeeds = 16

	// MaxSeedLen is the maximum length of a single seed component.
	MaxSeedLen = 32
)

// Token arithmetic limits.
const (
	// MaxDecimals is the largest decimal count whose power of ten fits
	// in a uint64.
	MaxDecimals = 19

	// DefaultDecimals is the decimal count used when none is configured.
	DefaultDecimals = 6

	// MaxBasisPoints is 100.00% expressed in basis points.
	MaxBasisPoints = 10_000
)

// Canonical seed literals.
var (
	// StateSeed derives the singleton program-state PDA.
	StateSeed = []byte("program_state")

	// UserSeed prefixes every user-account PDA derivation.
	UserSeed = []byte("user")
)

// Error taxonomy. Every fallible primitive in the vault returns one of
// these (possibly wrapped); the runtime maps them to codes via ErrorCode.
var (
	ErrInvalidSeedLength     = errors.New("seed component exceeds maximum length")
	ErrTooManySeeds          = errors.New("too many seed components")
	ErrLowEntropySeed        = errors.New("seed has insufficient entropy")
	ErrPdaMismatch           = errors.New("derived address does not match")
	ErrAccountAlreadyExists  = errors.New("account already exists")
	ErrAccountNotInitialized = errors.New("account not initialized")
	ErrWrongOwner            = errors.New("account has wrong owner")
	ErrAccountTooSmall       = errors.New("account data too small")
	ErrMalformedAccount      = errors.New("account data malformed")
	ErrInsufficientBalance   = errors.New("insufficient balance")
	ErrArithmeticOverflow    = errors.New("arithmetic overflow")
	ErrDivideByZero          = errors.New("division by zero")
	ErrInvalidDecimals       = errors.New("decimals exceed supported maximum")
	ErrInvalidFeeBps         = errors.New("fee basis points out of range")
	ErrAlreadyInitialized    = errors.New("program state already initialized")
	ErrMissingSignature      = errors.New("missing required signature")
	ErrNotWritable           = errors.New("account is not writable")
	ErrInvalidInstruction    = errors.New("invalid instruction data")
)

// Error codes surfaced by the runtime. Zero is reserved for success and is
// never assigned to an error; out-of-taxonomy errors map to CodeUnknown.
const (
	CodeInvalidSeedLength uint32 = iota + 1
	CodeTooManySeeds
	CodeLowEntropySeed
	CodePdaMismatch
	CodeAccountAlreadyExists
	CodeAccountNotInitialized
	CodeWrongOwner
	CodeAccountTooSmall
	CodeMalformedAccount
	CodeInsufficientBalance
	CodeArithmeticOverflow
	CodeDivideByZero
	CodeInvalidDecimals
	CodeInvalidFeeBps
	CodeAlreadyInitialized
	CodeMissingSignature
	CodeNotWritable
	CodeInvalidInstruction
	CodeUnknown
)

// codeTable pairs sentinels with their codes. Order matters only for
// readability; lookup is by errors.Is.
var codeTable = []struct {
	err  error
	code uint32
}{
	{ErrInvalidSeedLength, CodeInvalidSeedLength},
	{ErrTooManySeeds, CodeTooManySeeds},
	{ErrLowEntropySeed, CodeLowEntropySeed},
	{ErrPdaMismatch, CodePdaMismatch},
	{ErrAccountAlreadyExists, CodeAccountAlreadyExists},
	{ErrAccountNotInitialized, CodeAccountNotInitialized},
	{ErrWrongOwner, CodeWrongOwner},
	{ErrAccountTooSmall, CodeAccountTooSmall},
	{ErrMalformedAccount, CodeMalformedAccount},
	{ErrInsufficientBalance, CodeInsufficientBalance},
	{ErrArithmeticOverflow, CodeArithmeticOverflow},
	{ErrDivideByZero, CodeDivideByZero},
	{ErrInvalidDecimals, CodeInvalidDecimals},
	{ErrInvalidFeeBps, CodeInvalidFeeBps},
	{ErrAlreadyInitialized, CodeAlreadyInitialized},
	{ErrMissingSignature, CodeMissingSignature},
	{ErrNotWritable, CodeNotWritable},
	{ErrInvalidInstruction, CodeInvalidInstruction},
}

// ErrorCode maps an error to its stable numeric code.
// Returns 0 for nil and CodeUnknown for errors outside the taxonomy.
func ErrorCode(err error) uint32 {
	if err == nil {
		return 0
	}
	for _, entry := range codeTable {
		if errors.Is(err, entry.err) {
			return entry.code
		}
	}
	return CodeUnknown
}

// IsValidPubkey reports whether a pubkey is usable as an address.
// The all-zero key is reserved for the system program.
func IsValidPubkey(p types.Pubkey) bool {
	return !p.IsZero()
}

// ValidateNotDefault rejects the all-zero pubkey.
func ValidateNotDefault(p types.Pubkey) error {
	if p.IsZero() {
		return ErrMalformedAccount
	}
	return nil
}
