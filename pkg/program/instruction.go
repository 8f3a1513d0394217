package program

import (
	"encoding/binary"

	"github.com/fortiblox/X1-Vault/internal/types"
	"github.com/fortiblox/X1-Vault/pkg/common"
	"github.com/fortiblox/X1-Vault/pkg/pda"
)

// Instruction discriminants.
const (
	InstructionInitialize = iota
	InstructionCreateUserAccount
	InstructionTransferWithFee
)

// AccountMeta describes one account an instruction declares.
type AccountMeta struct {
	Pubkey     types.Pubkey
	IsSigner   bool
	IsWritable bool
}

// Instruction is a complete, dispatchable instruction: the target program,
// the declared account list, and the encoded payload.
type Instruction struct {
	ProgramID types.Pubkey
	Accounts  []AccountMeta
	Data      []byte
}

// Payload layouts, little-endian after a 4-byte discriminant:
//
//	Initialize:        initial supply (8) + decimals (1)
//	CreateUserAccount: owner (32) + initial balance (8)
//	TransferWithFee:   amount (8) + fee bps (2)

// InitializeParams is the decoded Initialize payload.
type InitializeParams struct {
	InitialSupply uint64
	Decimals      uint8
}

// CreateUserAccountParams is the decoded CreateUserAccount payload.
type CreateUserAccountParams struct {
	Owner          types.Pubkey
	InitialBalance uint64
}

// TransferWithFeeParams is the decoded TransferWithFee payload.
type TransferWithFeeParams struct {
	Amount uint64
	FeeBps uint16
}

func decodeInitialize(data []byte) (InitializeParams, error) {
	if len(data) < 9 {
		return InitializeParams{}, common.ErrInvalidInstruction
	}
	return InitializeParams{
		InitialSupply: binary.LittleEndian.Uint64(data[0:8]),
		Decimals:      data[8],
	}, nil
}

func decodeCreateUserAccount(data []byte) (CreateUserAccountParams, error) {
	if len(data) < 40 {
		return CreateUserAccountParams{}, common.ErrInvalidInstruction
	}
	var p CreateUserAccountParams
	copy(p.Owner[:], data[0:32])
	p.InitialBalance = binary.LittleEndian.Uint64(data[32:40])
	return p, nil
}

func decodeTransferWithFee(data []byte) (TransferWithFeeParams, error) {
	if len(data) < 10 {
		return TransferWithFeeParams{}, common.ErrInvalidInstruction
	}
	return TransferWithFeeParams{
		Amount: binary.LittleEndian.Uint64(data[0:8]),
		FeeBps: binary.LittleEndian.Uint16(data[8:10]),
	}, nil
}

// StateAddress derives the canonical program-state PDA.
func StateAddress(programID types.Pubkey) (types.Pubkey, uint8, error) {
	return pda.FindProgramAddress([][]byte{common.StateSeed}, programID)
}

// UserAddress derives a user's advanced PDA. The security context binds the
// address to both the owner and the program-state account.
func UserAddress(owner, state, programID types.Pubkey) (types.Pubkey, uint8, error) {
	return pda.FindAdvancedAddress(
		[][]byte{common.UserSeed, owner[:]},
		[][]byte{owner[:], state[:]},
		programID,
	)
}

func encodeHeader(discriminant uint32, payloadLen int) []byte {
	data := make([]byte, 4, 4+payloadLen)
	binary.LittleEndian.PutUint32(data, discriminant)
	return data
}

// NewInitializeInstruction builds an Initialize instruction, deriving the
// state PDA from the program id.
func NewInitializeInstruction(programID, payer types.Pubkey, initialSupply uint64, decimals uint8) (*Instruction, error) {
	state, _, err := StateAddress(programID)
	if err != nil {
		return nil, err
	}

	data := encodeHeader(InstructionInitialize, 9)
	data = binary.LittleEndian.AppendUint64(data, initialSupply)
	data = append(data, decimals)

	return &Instruction{
		ProgramID: programID,
		Accounts: []AccountMeta{
			{Pubkey: state, IsWritable: true},
			{Pubkey: payer, IsSigner: true},
			{Pubkey: types.SystemProgramAddr},
		},
		Data: data,
	}, nil
}

// NewCreateUserAccountInstruction builds a CreateUserAccount instruction,
// deriving both the state PDA and the owner's user PDA.
func NewCreateUserAccountInstruction(programID, owner types.Pubkey, initialBalance uint64) (*Instruction, error) {
	state, _, err := StateAddress(programID)
	if err != nil {
		return nil, err
	}
	user, _, err := UserAddress(owner, state, programID)
	if err != nil {
		return nil, err
	}

	data := encodeHeader(InstructionCreateUserAccount, 40)
	data = append(data, owner[:]...)
	data = binary.LittleEndian.AppendUint64(data, initialBalance)

	return &Instruction{
		ProgramID: programID,
		Accounts: []AccountMeta{
			{Pubkey: user, IsWritable: true},
			{Pubkey: owner, IsSigner: true},
			{Pubkey: state},
		},
		Data: data,
	}, nil
}

// NewTransferWithFeeInstruction builds a TransferWithFee instruction
// between the user PDAs of two owners. Fees accrue to the program state,
// which doubles as the fee-collection account.
func NewTransferWithFeeInstruction(programID, fromOwner, toOwner types.Pubkey, amount uint64, feeBps uint16) (*Instruction, error) {
	state, _, err := StateAddress(programID)
	if err != nil {
		return nil, err
	}
	from, _, err := UserAddress(fromOwner, state, programID)
	if err != nil {
		return nil, err
	}
	to, _, err := UserAddress(toOwner, state, programID)
	if err != nil {
		return nil, err
	}

	data := encodeHeader(InstructionTransferWithFee, 10)
	data = binary.LittleEndian.AppendUint64(data, amount)
	data = binary.LittleEndian.AppendUint16(data, feeBps)

	return &Instruction{
		ProgramID: programID,
		Accounts: []AccountMeta{
			{Pubkey: from, IsWritable: true},
			{Pubkey: to, IsWritable: true},
			{Pubkey: state, IsWritable: true},
			{Pubkey: fromOwner, IsSigner: true},
		},
		Data: data,
	}, nil
}
