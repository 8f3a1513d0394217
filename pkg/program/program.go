// Package program implements the vault program: a native token-account
// program with three instructions.
//
//   - Initialize creates the singleton program state.
//   - CreateUserAccount creates a balance record at the owner's PDA.
//   - TransferWithFee moves tokens between records, diverting a
//     basis-point fee to the program state.
//
// Handlers mutate the account buffers handed to them by the invoke
// context; the surrounding runtime guarantees those buffers are private
// clones and commits them only when Process returns nil, so a handler
// error always leaves persistent state byte-for-byte unchanged.
package program

import (
	"encoding/binary"
	"fmt"

	"github.com/fortiblox/X1-Vault/internal/types"
	"github.com/fortiblox/X1-Vault/pkg/common"
	"github.com/fortiblox/X1-Vault/pkg/pda"
	"github.com/fortiblox/X1-Vault/pkg/tokenmath"
)

// AccountInfo holds one account's state during execution.
type AccountInfo struct {
	Key        types.Pubkey
	Owner      types.Pubkey
	Lamports   uint64
	Data       []byte
	IsSigner   bool
	IsWritable bool
}

// InvokeContext provides the execution environment to handlers.
type InvokeContext interface {
	// GetAccount returns the account at the given index in the
	// instruction's declared account list.
	GetAccount(index int) (*AccountInfo, error)

	// ProgramID returns the address the program is executing as.
	ProgramID() types.Pubkey

	// Log records a program log message.
	Log(msg string)
}

// Processor executes vault program instructions.
type Processor struct{}

// NewProcessor creates a vault program processor.
func NewProcessor() *Processor {
	return &Processor{}
}

// Process dispatches one instruction. The payload starts with a 4-byte
// little-endian discriminant.
func (p *Processor) Process(ctx InvokeContext, data []byte) error {
	if len(data) < 4 {
		return common.ErrInvalidInstruction
	}

	switch binary.LittleEndian.Uint32(data[:4]) {
	case InstructionInitialize:
		return p.processInitialize(ctx, data[4:])
	case InstructionCreateUserAccount:
		return p.processCreateUserAccount(ctx, data[4:])
	case InstructionTransferWithFee:
		return p.processTransferWithFee(ctx, data[4:])
	default:
		return common.ErrInvalidInstruction
	}
}

// processInitialize creates the program state. Exactly once: a second
// Initialize is an error, not a no-op.
//
// Accounts: [0] state PDA (writable), [1] payer (signer), [2] system.
func (p *Processor) processInitialize(ctx InvokeContext, payload []byte) error {
	params, err := decodeInitialize(payload)
	if err != nil {
		return err
	}
	if params.Decimals > common.MaxDecimals {
		return common.ErrInvalidDecimals
	}

	stateInfo, err := ctx.GetAccount(0)
	if err != nil {
		return err
	}
	payerInfo, err := ctx.GetAccount(1)
	if err != nil {
		return err
	}

	if !payerInfo.IsSigner {
		return common.ErrMissingSignature
	}
	if !stateInfo.IsWritable {
		return common.ErrNotWritable
	}

	expected, bump, err := StateAddress(ctx.ProgramID())
	if err != nil {
		return err
	}
	if stateInfo.Key != expected {
		return common.ErrPdaMismatch
	}

	// Uninitialized -> Initialized fires once.
	if len(stateInfo.Data) > 0 && stateInfo.Data[0] != 0 {
		return common.ErrAlreadyInitialized
	}

	supply, err := tokenmath.ToBaseUnits(params.InitialSupply, 0, params.Decimals)
	if err != nil {
		return err
	}

	state := ProgramState{
		Authority:   payerInfo.Key,
		TotalSupply: supply,
		Decimals:    params.Decimals,
		Bump:        bump,
	}
	stateInfo.Data = state.Encode()
	stateInfo.Owner = ctx.ProgramID()

	ctx.Log(fmt.Sprintf("Initialize: supply=%d decimals=%d", supply, params.Decimals))
	return nil
}

// processCreateUserAccount creates a balance record at the owner's
// advanced PDA.
//
// Accounts: [0] user PDA (writable), [1] owner (signer), [2] state (read).
func (p *Processor) processCreateUserAccount(ctx InvokeContext, payload []byte) error {
	params, err := decodeCreateUserAccount(payload)
	if err != nil {
		return err
	}

	userInfo, err := ctx.GetAccount(0)
	if err != nil {
		return err
	}
	ownerInfo, err := ctx.GetAccount(1)
	if err != nil {
		return err
	}
	stateInfo, err := ctx.GetAccount(2)
	if err != nil {
		return err
	}

	if !ownerInfo.IsSigner {
		return common.ErrMissingSignature
	}
	if !userInfo.IsWritable {
		return common.ErrNotWritable
	}
	if ownerInfo.Key != params.Owner {
		return common.ErrWrongOwner
	}
	if err := common.ValidateNotDefault(params.Owner); err != nil {
		return err
	}

	if v := pda.ValidateAccount(stateInfo.Owner, stateInfo.Data, ctx.ProgramID(), StateSize); v != pda.ValidationOK {
		return v.Err()
	}
	// Any program-owned record would pass the size and marker checks, so
	// the state account must also sit at the canonical state PDA.
	expectedState, _, err := StateAddress(ctx.ProgramID())
	if err != nil {
		return err
	}
	if stateInfo.Key != expectedState {
		return common.ErrPdaMismatch
	}
	state, err := DecodeState(stateInfo.Data)
	if err != nil {
		return err
	}

	expected, bump, err := UserAddress(params.Owner, stateInfo.Key, ctx.ProgramID())
	if err != nil {
		return err
	}
	if userInfo.Key != expected {
		return common.ErrPdaMismatch
	}

	if len(userInfo.Data) > 0 && userInfo.Data[0] != 0 {
		return common.ErrAccountAlreadyExists
	}

	balance, err := tokenmath.ToBaseUnits(params.InitialBalance, 0, state.Decimals)
	if err != nil {
		return err
	}

	record := UserAccount{
		Owner:   params.Owner,
		Balance: balance,
		State:   stateInfo.Key,
		Bump:    bump,
	}
	userInfo.Data = record.Encode()
	userInfo.Owner = ctx.ProgramID()

	ctx.Log(fmt.Sprintf("CreateUserAccount: owner=%s balance=%d", params.Owner, balance))
	return nil
}

// processTransferWithFee moves tokens between user records. The fee comes
// out of the transferred amount: the sender is debited amount, the
// recipient is credited amount minus fee, and the fee accrues to the
// program state.
//
// Accounts: [0] from PDA (writable), [1] to PDA (writable),
// [2] state / fee collector (writable), [3] authority (signer).
//
// All three balances are computed before any buffer is rewritten, so a
// failure in any step leaves every account untouched.
func (p *Processor) processTransferWithFee(ctx InvokeContext, payload []byte) error {
	params, err := decodeTransferWithFee(payload)
	if err != nil {
		return err
	}

	// Fee bounds are checked before any account access or arithmetic.
	if err := tokenmath.ValidateBasisPoints(params.FeeBps); err != nil {
		return err
	}

	fromInfo, err := ctx.GetAccount(0)
	if err != nil {
		return err
	}
	toInfo, err := ctx.GetAccount(1)
	if err != nil {
		return err
	}
	stateInfo, err := ctx.GetAccount(2)
	if err != nil {
		return err
	}
	authorityInfo, err := ctx.GetAccount(3)
	if err != nil {
		return err
	}

	if !authorityInfo.IsSigner {
		return common.ErrMissingSignature
	}
	// Self-transfers would double-apply on commit.
	if fromInfo.Key == toInfo.Key {
		return common.ErrInvalidInstruction
	}
	for _, info := range []*AccountInfo{fromInfo, toInfo, stateInfo} {
		if !info.IsWritable {
			return common.ErrNotWritable
		}
	}

	if v := pda.ValidateAccount(fromInfo.Owner, fromInfo.Data, ctx.ProgramID(), UserAccountSize); v != pda.ValidationOK {
		return v.Err()
	}
	if v := pda.ValidateAccount(toInfo.Owner, toInfo.Data, ctx.ProgramID(), UserAccountSize); v != pda.ValidationOK {
		return v.Err()
	}
	if v := pda.ValidateAccount(stateInfo.Owner, stateInfo.Data, ctx.ProgramID(), StateSize); v != pda.ValidationOK {
		return v.Err()
	}

	from, err := DecodeUserAccount(fromInfo.Data)
	if err != nil {
		return err
	}
	to, err := DecodeUserAccount(toInfo.Data)
	if err != nil {
		return err
	}
	state, err := DecodeState(stateInfo.Data)
	if err != nil {
		return err
	}

	expectedState, _, err := StateAddress(ctx.ProgramID())
	if err != nil {
		return err
	}
	if stateInfo.Key != expectedState {
		return common.ErrPdaMismatch
	}
	if from.Owner != authorityInfo.Key {
		return common.ErrWrongOwner
	}

	// Explicit balance check; never left to checked-sub to catch.
	if from.Balance < params.Amount {
		return common.ErrInsufficientBalance
	}

	fee, err := tokenmath.ApplyBasisPoints(params.Amount, params.FeeBps)
	if err != nil {
		return err
	}
	net, err := tokenmath.CheckedSub(params.Amount, fee)
	if err != nil {
		return err
	}

	newFrom, err := tokenmath.CheckedSub(from.Balance, params.Amount)
	if err != nil {
		return err
	}
	newTo, err := tokenmath.CheckedAdd(to.Balance, net)
	if err != nil {
		return err
	}
	newFees, err := tokenmath.CheckedAdd(state.CollectedFees, fee)
	if err != nil {
		return err
	}

	// Commit point: every computation succeeded, rewrite all three.
	from.Balance = newFrom
	to.Balance = newTo
	state.CollectedFees = newFees
	fromInfo.Data = from.Encode()
	toInfo.Data = to.Encode()
	stateInfo.Data = state.Encode()

	ctx.Log(fmt.Sprintf("TransferWithFee: amount=%d fee=%d net=%d", params.Amount, fee, net))
	return nil
}
