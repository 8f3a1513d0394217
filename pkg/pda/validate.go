package pda

import (
	"github.com/fortiblox/X1-Vault/internal/types"
	"github.com/fortiblox/X1-Vault/pkg/common"
)

// Validation categorizes the outcome of an account check. Callers branch
// on the category rather than re-inspecting raw buffers at each use site.
type Validation int

// Validation categories.
const (
	ValidationOK Validation = iota
	ValidationWrongOwner
	ValidationTooSmall
	ValidationMalformed
	ValidationNotInitialized
)

// String returns the category name.
func (v Validation) String() string {
	switch v {
	case ValidationOK:
		return "ok"
	case ValidationWrongOwner:
		return "wrong owner"
	case ValidationTooSmall:
		return "too small"
	case ValidationMalformed:
		return "malformed"
	case ValidationNotInitialized:
		return "not initialized"
	default:
		return "unknown"
	}
}

// Err maps the category to its sentinel error, nil for ValidationOK.
func (v Validation) Err() error {
	switch v {
	case ValidationOK:
		return nil
	case ValidationWrongOwner:
		return common.ErrWrongOwner
	case ValidationTooSmall:
		return common.ErrAccountTooSmall
	case ValidationMalformed:
		return common.ErrMalformedAccount
	case ValidationNotInitialized:
		return common.ErrAccountNotInitialized
	default:
		return common.ErrMalformedAccount
	}
}

// ValidateAccount checks a raw account buffer against its expected owner
// and minimum size, and inspects the leading structural marker byte
// (0 = uninitialized, 1 = initialized, anything else = corrupt).
//
// The result is a category, not a boolean, so callers can surface the
// precise failure.
func ValidateAccount(owner types.Pubkey, data []byte, expectedOwner types.Pubkey, minSize int) Validation {
	if owner != expectedOwner {
		return ValidationWrongOwner
	}
	if len(data) == 0 || data[0] == 0 {
		return ValidationNotInitialized
	}
	if len(data) < minSize {
		return ValidationTooSmall
	}
	if data[0] != 1 {
		return ValidationMalformed
	}
	return ValidationOK
}
