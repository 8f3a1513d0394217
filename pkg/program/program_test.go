package program

import (
	"bytes"
	"errors"
	"testing"

	"github.com/fortiblox/X1-Vault/internal/types"
	"github.com/fortiblox/X1-Vault/pkg/common"
)

func testKey(label string) types.Pubkey {
	return types.Pubkey(types.ComputeHash([]byte(label)))
}

// testInvokeContext is an in-memory InvokeContext for handler tests.
type testInvokeContext struct {
	programID types.Pubkey
	infos     []*AccountInfo
	logs      []string
}

func (c *testInvokeContext) GetAccount(index int) (*AccountInfo, error) {
	if index < 0 || index >= len(c.infos) {
		return nil, common.ErrInvalidInstruction
	}
	return c.infos[index], nil
}

func (c *testInvokeContext) ProgramID() types.Pubkey { return c.programID }

func (c *testInvokeContext) Log(msg string) { c.logs = append(c.logs, msg) }

// contextFor builds an execution context from an instruction, with every
// declared account starting empty and system-owned.
func contextFor(ix *Instruction) *testInvokeContext {
	infos := make([]*AccountInfo, len(ix.Accounts))
	for i, meta := range ix.Accounts {
		infos[i] = &AccountInfo{
			Key:        meta.Pubkey,
			Owner:      types.SystemProgramAddr,
			IsSigner:   meta.IsSigner,
			IsWritable: meta.IsWritable,
		}
	}
	return &testInvokeContext{programID: ix.ProgramID, infos: infos}
}

func mustStateAddress(t *testing.T, programID types.Pubkey) (types.Pubkey, uint8) {
	t.Helper()
	addr, bump, err := StateAddress(programID)
	if err != nil {
		t.Fatalf("StateAddress failed: %v", err)
	}
	return addr, bump
}

func mustUserAddress(t *testing.T, owner, state, programID types.Pubkey) (types.Pubkey, uint8) {
	t.Helper()
	addr, bump, err := UserAddress(owner, state, programID)
	if err != nil {
		t.Fatalf("UserAddress failed: %v", err)
	}
	return addr, bump
}

func TestInitialize(t *testing.T) {
	programID := testKey("program")
	payer := testKey("payer")

	ix, err := NewInitializeInstruction(programID, payer, 1_000, 6)
	if err != nil {
		t.Fatalf("build instruction: %v", err)
	}
	ctx := contextFor(ix)

	if err := NewProcessor().Process(ctx, ix.Data); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	stateInfo := ctx.infos[0]
	if stateInfo.Owner != programID {
		t.Error("state account not assigned to the program")
	}
	state, err := DecodeState(stateInfo.Data)
	if err != nil {
		t.Fatalf("DecodeState failed: %v", err)
	}
	if state.Authority != payer {
		t.Error("authority not set to payer")
	}
	if state.TotalSupply != 1_000_000_000 {
		t.Errorf("TotalSupply = %d, want 1000 * 10^6", state.TotalSupply)
	}
	if state.Decimals != 6 {
		t.Errorf("Decimals = %d, want 6", state.Decimals)
	}
	if state.CollectedFees != 0 {
		t.Errorf("CollectedFees = %d, want 0", state.CollectedFees)
	}

	_, bump := mustStateAddress(t, programID)
	if state.Bump != bump {
		t.Errorf("Bump = %d, want %d", state.Bump, bump)
	}
}

func TestInitializeTwiceFails(t *testing.T) {
	programID := testKey("program")
	payer := testKey("payer")

	ix, err := NewInitializeInstruction(programID, payer, 1_000, 6)
	if err != nil {
		t.Fatalf("build instruction: %v", err)
	}
	ctx := contextFor(ix)
	proc := NewProcessor()

	if err := proc.Process(ctx, ix.Data); err != nil {
		t.Fatalf("first Initialize failed: %v", err)
	}

	before := bytes.Clone(ctx.infos[0].Data)
	err = proc.Process(ctx, ix.Data)
	if !errors.Is(err, common.ErrAlreadyInitialized) {
		t.Fatalf("expected ErrAlreadyInitialized, got %v", err)
	}
	if !bytes.Equal(ctx.infos[0].Data, before) {
		t.Error("failed reinitialize mutated the state account")
	}
}

func TestInitializeValidation(t *testing.T) {
	programID := testKey("program")
	payer := testKey("payer")

	// Unsupported decimal count.
	ix, err := NewInitializeInstruction(programID, payer, 1_000, 20)
	if err != nil {
		t.Fatalf("build instruction: %v", err)
	}
	if err := NewProcessor().Process(contextFor(ix), ix.Data); !errors.Is(err, common.ErrInvalidDecimals) {
		t.Errorf("expected ErrInvalidDecimals, got %v", err)
	}

	// Missing payer signature.
	ix, err = NewInitializeInstruction(programID, payer, 1_000, 6)
	if err != nil {
		t.Fatalf("build instruction: %v", err)
	}
	ctx := contextFor(ix)
	ctx.infos[1].IsSigner = false
	if err := NewProcessor().Process(ctx, ix.Data); !errors.Is(err, common.ErrMissingSignature) {
		t.Errorf("expected ErrMissingSignature, got %v", err)
	}

	// State account at the wrong address.
	ctx = contextFor(ix)
	ctx.infos[0].Key = testKey("not-the-state-pda")
	if err := NewProcessor().Process(ctx, ix.Data); !errors.Is(err, common.ErrPdaMismatch) {
		t.Errorf("expected ErrPdaMismatch, got %v", err)
	}

	// State account not writable.
	ctx = contextFor(ix)
	ctx.infos[0].IsWritable = false
	if err := NewProcessor().Process(ctx, ix.Data); !errors.Is(err, common.ErrNotWritable) {
		t.Errorf("expected ErrNotWritable, got %v", err)
	}
}

// initializedStateInfo builds a live state account at its canonical PDA.
func initializedStateInfo(t *testing.T, programID, authority types.Pubkey, writable bool) *AccountInfo {
	t.Helper()
	addr, bump := mustStateAddress(t, programID)
	state := ProgramState{
		Authority:   authority,
		TotalSupply: 1_000_000_000,
		Decimals:    6,
		Bump:        bump,
	}
	return &AccountInfo{
		Key:        addr,
		Owner:      programID,
		Data:       state.Encode(),
		IsWritable: writable,
	}
}

// userInfo builds a live user record at the owner's canonical PDA.
func userInfo(t *testing.T, programID, stateAddr, owner types.Pubkey, balance uint64) *AccountInfo {
	t.Helper()
	addr, bump := mustUserAddress(t, owner, stateAddr, programID)
	record := UserAccount{
		Owner:   owner,
		Balance: balance,
		State:   stateAddr,
		Bump:    bump,
	}
	return &AccountInfo{
		Key:        addr,
		Owner:      programID,
		Data:       record.Encode(),
		IsWritable: true,
	}
}

func TestCreateUserAccount(t *testing.T) {
	programID := testKey("program")
	authority := testKey("payer")
	alice := testKey("alice")

	ix, err := NewCreateUserAccountInstruction(programID, alice, 5)
	if err != nil {
		t.Fatalf("build instruction: %v", err)
	}
	ctx := contextFor(ix)
	ctx.infos[2] = initializedStateInfo(t, programID, authority, false)

	if err := NewProcessor().Process(ctx, ix.Data); err != nil {
		t.Fatalf("CreateUserAccount failed: %v", err)
	}

	record, err := DecodeUserAccount(ctx.infos[0].Data)
	if err != nil {
		t.Fatalf("DecodeUserAccount failed: %v", err)
	}
	if record.Owner != alice {
		t.Error("record owner mismatch")
	}
	if record.Balance != 5_000_000 {
		t.Errorf("Balance = %d, want 5 * 10^6", record.Balance)
	}
	if record.State != ctx.infos[2].Key {
		t.Error("record not bound to the state account")
	}
	if ctx.infos[0].Owner != programID {
		t.Error("user account not assigned to the program")
	}

	// Creating the same account again is an error.
	err = NewProcessor().Process(ctx, ix.Data)
	if !errors.Is(err, common.ErrAccountAlreadyExists) {
		t.Errorf("expected ErrAccountAlreadyExists, got %v", err)
	}
}

func TestCreateUserAccountValidation(t *testing.T) {
	programID := testKey("program")
	authority := testKey("payer")
	alice := testKey("alice")

	ix, err := NewCreateUserAccountInstruction(programID, alice, 5)
	if err != nil {
		t.Fatalf("build instruction: %v", err)
	}

	// Signer is not the declared owner.
	ctx := contextFor(ix)
	ctx.infos[1].Key = testKey("mallory")
	ctx.infos[2] = initializedStateInfo(t, programID, authority, false)
	if err := NewProcessor().Process(ctx, ix.Data); !errors.Is(err, common.ErrWrongOwner) {
		t.Errorf("expected ErrWrongOwner, got %v", err)
	}

	// State account never initialized.
	ctx = contextFor(ix)
	if err := NewProcessor().Process(ctx, ix.Data); !errors.Is(err, common.ErrWrongOwner) {
		t.Errorf("system-owned state: expected ErrWrongOwner, got %v", err)
	}

	ctx = contextFor(ix)
	ctx.infos[2] = initializedStateInfo(t, programID, authority, false)
	ctx.infos[2].Data = make([]byte, StateSize)
	if err := NewProcessor().Process(ctx, ix.Data); !errors.Is(err, common.ErrAccountNotInitialized) {
		t.Errorf("expected ErrAccountNotInitialized, got %v", err)
	}

	// User account at the wrong address.
	ctx = contextFor(ix)
	ctx.infos[0].Key = testKey("not-the-user-pda")
	ctx.infos[2] = initializedStateInfo(t, programID, authority, false)
	if err := NewProcessor().Process(ctx, ix.Data); !errors.Is(err, common.ErrPdaMismatch) {
		t.Errorf("expected ErrPdaMismatch, got %v", err)
	}

	// A program-owned user record posing as the state account: it clears
	// the owner, marker, and size checks but sits at the wrong address,
	// and its bytes would decode to garbage decimals.
	ctx = contextFor(ix)
	ctx.infos[2] = userInfo(t, programID, testKey("fake-state"), testKey("carol"), 1)
	if err := NewProcessor().Process(ctx, ix.Data); !errors.Is(err, common.ErrPdaMismatch) {
		t.Errorf("impostor state account: expected ErrPdaMismatch, got %v", err)
	}
}

// transferContext builds a ready-to-run TransferWithFee context with live
// sender, recipient, and state accounts.
func transferContext(t *testing.T, programID types.Pubkey, ix *Instruction, fromOwner types.Pubkey, fromBalance, toBalance uint64) *testInvokeContext {
	t.Helper()
	ctx := contextFor(ix)
	stateInfo := initializedStateInfo(t, programID, testKey("payer"), true)
	ctx.infos[0] = userInfo(t, programID, stateInfo.Key, fromOwner, fromBalance)
	ctx.infos[1] = userInfo(t, programID, stateInfo.Key, testKey("bob"), toBalance)
	ctx.infos[2] = stateInfo
	return ctx
}

func TestTransferWithFee(t *testing.T) {
	programID := testKey("program")
	alice := testKey("alice")
	bob := testKey("bob")

	ix, err := NewTransferWithFeeInstruction(programID, alice, bob, 100, 250)
	if err != nil {
		t.Fatalf("build instruction: %v", err)
	}
	ctx := transferContext(t, programID, ix, alice, 100, 0)

	if err := NewProcessor().Process(ctx, ix.Data); err != nil {
		t.Fatalf("TransferWithFee failed: %v", err)
	}

	from, err := DecodeUserAccount(ctx.infos[0].Data)
	if err != nil {
		t.Fatalf("decode sender: %v", err)
	}
	to, err := DecodeUserAccount(ctx.infos[1].Data)
	if err != nil {
		t.Fatalf("decode recipient: %v", err)
	}
	state, err := DecodeState(ctx.infos[2].Data)
	if err != nil {
		t.Fatalf("decode state: %v", err)
	}

	// 2.5% of 100 floors to 2.
	if from.Balance != 0 {
		t.Errorf("sender balance = %d, want 0", from.Balance)
	}
	if to.Balance != 98 {
		t.Errorf("recipient balance = %d, want 98", to.Balance)
	}
	if state.CollectedFees != 2 {
		t.Errorf("collected fees = %d, want 2", state.CollectedFees)
	}

	// Conservation: debit equals credit plus fee.
	if from.Balance+to.Balance+state.CollectedFees != 100 {
		t.Error("tokens created or destroyed by transfer")
	}
}

func TestTransferWithFeeEdgeRates(t *testing.T) {
	programID := testKey("program")
	alice := testKey("alice")
	bob := testKey("bob")

	// Zero fee: the full amount arrives.
	ix, err := NewTransferWithFeeInstruction(programID, alice, bob, 40, 0)
	if err != nil {
		t.Fatalf("build instruction: %v", err)
	}
	ctx := transferContext(t, programID, ix, alice, 100, 0)
	if err := NewProcessor().Process(ctx, ix.Data); err != nil {
		t.Fatalf("zero-fee transfer failed: %v", err)
	}
	to, _ := DecodeUserAccount(ctx.infos[1].Data)
	state, _ := DecodeState(ctx.infos[2].Data)
	if to.Balance != 40 || state.CollectedFees != 0 {
		t.Errorf("zero fee: to=%d fees=%d, want 40 and 0", to.Balance, state.CollectedFees)
	}

	// 100% fee: the whole amount accrues to the state.
	ix, err = NewTransferWithFeeInstruction(programID, alice, bob, 40, 10_000)
	if err != nil {
		t.Fatalf("build instruction: %v", err)
	}
	ctx = transferContext(t, programID, ix, alice, 100, 0)
	if err := NewProcessor().Process(ctx, ix.Data); err != nil {
		t.Fatalf("full-fee transfer failed: %v", err)
	}
	from, _ := DecodeUserAccount(ctx.infos[0].Data)
	to, _ = DecodeUserAccount(ctx.infos[1].Data)
	state, _ = DecodeState(ctx.infos[2].Data)
	if from.Balance != 60 || to.Balance != 0 || state.CollectedFees != 40 {
		t.Errorf("full fee: from=%d to=%d fees=%d, want 60, 0, 40", from.Balance, to.Balance, state.CollectedFees)
	}
}

func TestTransferFailuresLeaveAccountsUntouched(t *testing.T) {
	programID := testKey("program")
	alice := testKey("alice")
	bob := testKey("bob")

	run := func(amount uint64, feeBps uint16, wantErr error) {
		t.Helper()
		ix, err := NewTransferWithFeeInstruction(programID, alice, bob, amount, feeBps)
		if err != nil {
			t.Fatalf("build instruction: %v", err)
		}
		ctx := transferContext(t, programID, ix, alice, 100, 7)

		snapshots := make([][]byte, len(ctx.infos))
		for i, info := range ctx.infos {
			snapshots[i] = bytes.Clone(info.Data)
		}

		if err := NewProcessor().Process(ctx, ix.Data); !errors.Is(err, wantErr) {
			t.Fatalf("expected %v, got %v", wantErr, err)
		}
		for i, info := range ctx.infos {
			if !bytes.Equal(info.Data, snapshots[i]) {
				t.Errorf("failed transfer mutated account %d", i)
			}
		}
	}

	run(101, 250, common.ErrInsufficientBalance)
	run(100, 10_001, common.ErrInvalidFeeBps)
}

func TestTransferValidation(t *testing.T) {
	programID := testKey("program")
	alice := testKey("alice")
	bob := testKey("bob")

	ix, err := NewTransferWithFeeInstruction(programID, alice, bob, 10, 250)
	if err != nil {
		t.Fatalf("build instruction: %v", err)
	}

	// Authority signed but does not own the sender record.
	ctx := transferContext(t, programID, ix, alice, 100, 0)
	ctx.infos[3].Key = testKey("mallory")
	if err := NewProcessor().Process(ctx, ix.Data); !errors.Is(err, common.ErrWrongOwner) {
		t.Errorf("expected ErrWrongOwner, got %v", err)
	}

	// Authority did not sign.
	ctx = transferContext(t, programID, ix, alice, 100, 0)
	ctx.infos[3].IsSigner = false
	if err := NewProcessor().Process(ctx, ix.Data); !errors.Is(err, common.ErrMissingSignature) {
		t.Errorf("expected ErrMissingSignature, got %v", err)
	}

	// Recipient not writable.
	ctx = transferContext(t, programID, ix, alice, 100, 0)
	ctx.infos[1].IsWritable = false
	if err := NewProcessor().Process(ctx, ix.Data); !errors.Is(err, common.ErrNotWritable) {
		t.Errorf("expected ErrNotWritable, got %v", err)
	}

	// Sender record owned by another program.
	ctx = transferContext(t, programID, ix, alice, 100, 0)
	ctx.infos[0].Owner = testKey("other-program")
	if err := NewProcessor().Process(ctx, ix.Data); !errors.Is(err, common.ErrWrongOwner) {
		t.Errorf("expected ErrWrongOwner, got %v", err)
	}
}

func TestTransferToSelfRejected(t *testing.T) {
	programID := testKey("program")
	alice := testKey("alice")

	ix, err := NewTransferWithFeeInstruction(programID, alice, alice, 10, 250)
	if err != nil {
		t.Fatalf("build instruction: %v", err)
	}
	ctx := transferContext(t, programID, ix, alice, 100, 0)
	ctx.infos[1] = ctx.infos[0]

	if err := NewProcessor().Process(ctx, ix.Data); !errors.Is(err, common.ErrInvalidInstruction) {
		t.Errorf("expected ErrInvalidInstruction, got %v", err)
	}
}

func TestProcessRejectsMalformedData(t *testing.T) {
	ctx := &testInvokeContext{programID: testKey("program")}
	proc := NewProcessor()

	if err := proc.Process(ctx, nil); !errors.Is(err, common.ErrInvalidInstruction) {
		t.Errorf("empty data: expected ErrInvalidInstruction, got %v", err)
	}
	if err := proc.Process(ctx, []byte{0xFF, 0xFF, 0xFF, 0xFF}); !errors.Is(err, common.ErrInvalidInstruction) {
		t.Errorf("unknown discriminant: expected ErrInvalidInstruction, got %v", err)
	}
	if err := proc.Process(ctx, []byte{0, 0, 0, 0, 1}); !errors.Is(err, common.ErrInvalidInstruction) {
		t.Errorf("short payload: expected ErrInvalidInstruction, got %v", err)
	}
}

func TestUserAddressBinding(t *testing.T) {
	programID := testKey("program")
	stateAddr, _ := mustStateAddress(t, programID)

	a, _ := mustUserAddress(t, testKey("alice"), stateAddr, programID)
	b, _ := mustUserAddress(t, testKey("bob"), stateAddr, programID)
	if a == b {
		t.Error("different owners derived the same user address")
	}

	// The state account is part of the derivation context.
	c, _ := mustUserAddress(t, testKey("alice"), testKey("other-state"), programID)
	if a == c {
		t.Error("different state accounts derived the same user address")
	}
}

func TestStateCodec(t *testing.T) {
	state := ProgramState{
		Authority:     testKey("authority"),
		TotalSupply:   1_000_000_000,
		Decimals:      9,
		CollectedFees: 12_345,
		Bump:          254,
	}
	decoded, err := DecodeState(state.Encode())
	if err != nil {
		t.Fatalf("DecodeState failed: %v", err)
	}
	if *decoded != state {
		t.Errorf("state round trip: got %+v, want %+v", *decoded, state)
	}

	if _, err := DecodeState(make([]byte, StateSize-1)); !errors.Is(err, common.ErrAccountTooSmall) {
		t.Errorf("expected ErrAccountTooSmall, got %v", err)
	}
	if _, err := DecodeState(make([]byte, StateSize)); !errors.Is(err, common.ErrAccountNotInitialized) {
		t.Errorf("expected ErrAccountNotInitialized, got %v", err)
	}
}

func TestUserAccountCodec(t *testing.T) {
	record := UserAccount{
		Owner:   testKey("alice"),
		Balance: 42,
		State:   testKey("state"),
		Bump:    251,
	}
	decoded, err := DecodeUserAccount(record.Encode())
	if err != nil {
		t.Fatalf("DecodeUserAccount failed: %v", err)
	}
	if *decoded != record {
		t.Errorf("user record round trip: got %+v, want %+v", *decoded, record)
	}
}
