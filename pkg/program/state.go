package program

import (
	"encoding/binary"

	"github.com/fortiblox/X1-Vault/internal/types"
	"github.com/fortiblox/X1-Vault/pkg/common"
)

// Record sizes. The leading byte of every record is the structural marker
// checked by pda.ValidateAccount (0 = uninitialized, 1 = initialized).
const (
	// StateSize is the serialized size of ProgramState.
	// marker (1) + authority (32) + total supply (8) + decimals (1) +
	// collected fees (8) + bump (1)
	StateSize = 1 + 32 + 8 + 1 + 8 + 1

	// UserAccountSize is the serialized size of UserAccount.
	// marker (1) + owner (32) + balance (8) + state (32) + bump (1)
	UserAccountSize = 1 + 32 + 8 + 32 + 1
)

// ProgramState is the singleton configuration record, created once by
// Initialize and mutated by every subsequent instruction that collects
// fees. It is persisted state, not an in-memory singleton: handlers decode
// it from its account on entry and re-encode it before returning.
type ProgramState struct {
	Authority     types.Pubkey
	TotalSupply   uint64
	Decimals      uint8
	CollectedFees uint64
	Bump          uint8
}

// Encode serializes the state record.
func (s *ProgramState) Encode() []byte {
	buf := make([]byte, StateSize)
	buf[0] = 1
	copy(buf[1:33], s.Authority[:])
	binary.LittleEndian.PutUint64(buf[33:41], s.TotalSupply)
	buf[41] = s.Decimals
	binary.LittleEndian.PutUint64(buf[42:50], s.CollectedFees)
	buf[50] = s.Bump
	return buf
}

// DecodeState deserializes a state record.
func DecodeState(data []byte) (*ProgramState, error) {
	if len(data) < StateSize {
		return nil, common.ErrAccountTooSmall
	}
	if data[0] != 1 {
		return nil, common.ErrAccountNotInitialized
	}

	var s ProgramState
	copy(s.Authority[:], data[1:33])
	s.TotalSupply = binary.LittleEndian.Uint64(data[33:41])
	s.Decimals = data[41]
	s.CollectedFees = binary.LittleEndian.Uint64(data[42:50])
	s.Bump = data[50]
	return &s, nil
}

// UserAccount is a per-owner balance record stored at the owner's advanced
// PDA. Created by CreateUserAccount, mutated by TransferWithFee.
type UserAccount struct {
	Owner   types.Pubkey
	Balance uint64
	State   types.Pubkey
	Bump    uint8
}

// Encode serializes the user record.
func (u *UserAccount) Encode() []byte {
	buf := make([]byte, UserAccountSize)
	buf[0] = 1
	copy(buf[1:33], u.Owner[:])
	binary.LittleEndian.PutUint64(buf[33:41], u.Balance)
	copy(buf[41:73], u.State[:])
	buf[73] = u.Bump
	return buf
}

// DecodeUserAccount deserializes a user record.
func DecodeUserAccount(data []byte) (*UserAccount, error) {
	if len(data) < UserAccountSize {
		return nil, common.ErrAccountTooSmall
	}
	if data[0] != 1 {
		return nil, common.ErrAccountNotInitialized
	}

	var u UserAccount
	copy(u.Owner[:], data[1:33])
	u.Balance = binary.LittleEndian.Uint64(data[33:41])
	copy(u.State[:], data[41:73])
	u.Bump = data[73]
	return &u, nil
}
