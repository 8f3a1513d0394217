// Package accounts implements persistent storage for vault account state.
//
// Every account is an externally sized byte buffer plus ownership metadata,
// keyed by its 32-byte address. The store holds only current state; history
// lives in pkg/journal and full-state exports in pkg/snapshot.
package accounts

import (
	"encoding/binary"
	"errors"

	"github.com/fortiblox/X1-Vault/internal/types"
)

var (
	// ErrAccountNotFound is returned when an account doesn't exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrInvalidData is returned when stored account bytes are malformed.
	ErrInvalidData = errors.New("invalid account data")

	// ErrClosed is returned when operating on a closed store.
	ErrClosed = errors.New("store closed")
)

// MaxAccountDataSize bounds a single account's data buffer.
const MaxAccountDataSize = 10 * 1024 * 1024 // 10 MB

// Account is a single entry in the state.
type Account struct {
	// Owner is the program that owns this account. Only the owner may
	// modify the data.
	Owner types.Pubkey

	// Lamports is the account's native balance.
	Lamports uint64

	// Data is the account's byte buffer. For vault accounts it holds an
	// encoded record from pkg/program.
	Data []byte

	// Executable marks program accounts; their data is immutable.
	Executable bool

	// RentEpoch is kept for wire compatibility with upstream tooling.
	RentEpoch uint64
}

// Clone returns a deep copy of the account.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	dup := *a
	dup.Data = make([]byte, len(a.Data))
	copy(dup.Data, a.Data)
	return &dup
}

// IsZero reports whether the account is empty. Zero accounts are deleted
// from storage rather than persisted.
func (a *Account) IsZero() bool {
	return a.Lamports == 0 && len(a.Data) == 0
}

// encodedSize is the serialized size of the account.
func (a *Account) encodedSize() int {
	// owner (32) + lamports (8) + executable (1) + rent epoch (8) +
	// data len (4) + data
	return 32 + 8 + 1 + 8 + 4 + len(a.Data)
}

// Encode serializes the account for storage.
func (a *Account) Encode() []byte {
	buf := make([]byte, a.encodedSize())
	off := 0

	copy(buf[off:], a.Owner[:])
	off += 32

	binary.LittleEndian.PutUint64(buf[off:], a.Lamports)
	off += 8

	if a.Executable {
		buf[off] = 1
	}
	off++

	binary.LittleEndian.PutUint64(buf[off:], a.RentEpoch)
	off += 8

	binary.LittleEndian.PutUint32(buf[off:], uint32(len(a.Data)))
	off += 4

	copy(buf[off:], a.Data)
	return buf
}

// DecodeAccount deserializes an account from storage bytes.
func DecodeAccount(raw []byte) (*Account, error) {
	const fixed = 32 + 8 + 1 + 8 + 4
	if len(raw) < fixed {
		return nil, ErrInvalidData
	}

	var acc Account
	off := 0

	copy(acc.Owner[:], raw[off:off+32])
	off += 32

	acc.Lamports = binary.LittleEndian.Uint64(raw[off:])
	off += 8

	acc.Executable = raw[off] != 0
	off++

	acc.RentEpoch = binary.LittleEndian.Uint64(raw[off:])
	off += 8

	dataLen := binary.LittleEndian.Uint32(raw[off:])
	off += 4

	if dataLen > MaxAccountDataSize || int(dataLen) != len(raw)-off {
		return nil, ErrInvalidData
	}

	acc.Data = make([]byte, dataLen)
	copy(acc.Data, raw[off:])
	return &acc, nil
}

// DB is the account store interface. Implementations must be safe for
// concurrent readers.
type DB interface {
	// Get retrieves an account. Returns ErrAccountNotFound if absent.
	Get(key types.Pubkey) (*Account, error)

	// Has reports whether an account exists.
	Has(key types.Pubkey) (bool, error)

	// Set stores a single account. Zero accounts are deleted.
	Set(key types.Pubkey, acc *Account) error

	// Delete removes an account. Deleting a missing account is a no-op.
	Delete(key types.Pubkey) error

	// Apply writes a batch of accounts in one atomic transaction.
	// Either every entry is visible afterwards or none is.
	Apply(batch map[types.Pubkey]*Account) error

	// Count returns the number of stored accounts.
	Count() (uint64, error)

	// ForEach visits every stored account.
	ForEach(fn func(key types.Pubkey, acc *Account) error) error

	// Close closes the store.
	Close() error
}
