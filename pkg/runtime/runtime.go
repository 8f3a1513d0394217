// Package runtime is the execution environment for native programs.
//
// Each instruction runs to completion as a single sequential computation
// over a private, exclusively held view of its declared accounts. The
// runtime loads those accounts, hands clones to the program, and commits
// every write in one atomic store batch when the handler succeeds. On any
// handler error nothing is committed: the clones are dropped and
// persistent state is byte-for-byte unchanged.
//
// Conflicting submissions are serialized by a single writer lock, the
// in-process analogue of account locking. Retry policy is the caller's
// concern; the runtime never retries.
package runtime

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/fortiblox/X1-Vault/internal/types"
	"github.com/fortiblox/X1-Vault/pkg/accounts"
	"github.com/fortiblox/X1-Vault/pkg/common"
	"github.com/fortiblox/X1-Vault/pkg/journal"
	"github.com/fortiblox/X1-Vault/pkg/program"
)

var (
	// ErrUnknownProgram is returned when no processor is registered for
	// the instruction's program id.
	ErrUnknownProgram = errors.New("unknown program")

	// ErrNoAccounts is returned for instructions declaring no accounts.
	ErrNoAccounts = errors.New("instruction declares no accounts")
)

// Processor is a native program implementation.
type Processor interface {
	Process(ctx program.InvokeContext, data []byte) error
}

// Result is the outcome of one execution.
type Result struct {
	// Committed lists the account keys persisted by this execution.
	// Empty for failed executions.
	Committed []types.Pubkey

	// Logs are the program's log messages, kept even on failure.
	Logs []string

	// Code is the categorized error code, 0 on success.
	Code uint32

	// Seq is the journal sequence assigned to this execution, 0 when no
	// journal is attached.
	Seq uint64
}

// Runtime executes instructions against an account store.
type Runtime struct {
	store    accounts.DB
	journal  *journal.Journal // optional
	programs map[types.Pubkey]Processor

	mu sync.Mutex
}

// New creates a runtime over a store. The journal may be nil.
func New(store accounts.DB, jrnl *journal.Journal) *Runtime {
	return &Runtime{
		store:    store,
		journal:  jrnl,
		programs: make(map[types.Pubkey]Processor),
	}
}

// Register installs a native program at an address.
func (r *Runtime) Register(id types.Pubkey, p Processor) {
	r.programs[id] = p
}

// invokeContext implements program.InvokeContext over cloned accounts.
type invokeContext struct {
	programID types.Pubkey
	infos     []*program.AccountInfo
	logs      []string
}

func (c *invokeContext) GetAccount(index int) (*program.AccountInfo, error) {
	if index < 0 || index >= len(c.infos) {
		return nil, fmt.Errorf("account index %d out of range", index)
	}
	return c.infos[index], nil
}

func (c *invokeContext) ProgramID() types.Pubkey {
	return c.programID
}

func (c *invokeContext) Log(msg string) {
	c.logs = append(c.logs, msg)
	log.Printf("program %s: %s", c.programID, msg)
}

// Execute runs one instruction atomically.
//
// The returned error is the handler's categorized error; the Result is
// populated in both outcomes so callers can inspect logs and codes.
func (r *Runtime) Execute(ix *program.Instruction) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	proc, ok := r.programs[ix.ProgramID]
	if !ok {
		return nil, ErrUnknownProgram
	}
	if len(ix.Accounts) == 0 {
		return nil, ErrNoAccounts
	}

	infos, err := r.loadAccounts(ix)
	if err != nil {
		return nil, fmt.Errorf("load accounts: %w", err)
	}

	ctx := &invokeContext{programID: ix.ProgramID, infos: infos}
	execErr := proc.Process(ctx, ix.Data)

	result := &Result{
		Logs: ctx.logs,
		Code: common.ErrorCode(execErr),
	}

	if execErr == nil {
		if err := r.commit(infos, result); err != nil {
			return nil, err
		}
	}

	if err := r.record(ix, result, execErr); err != nil {
		return nil, err
	}
	return result, execErr
}

// loadAccounts fetches clones of the declared accounts. Accounts absent
// from the store start life empty and system-owned, which is how new PDAs
// come into existence.
func (r *Runtime) loadAccounts(ix *program.Instruction) ([]*program.AccountInfo, error) {
	infos := make([]*program.AccountInfo, len(ix.Accounts))
	for i, meta := range ix.Accounts {
		info := &program.AccountInfo{
			Key:        meta.Pubkey,
			Owner:      types.SystemProgramAddr,
			IsSigner:   meta.IsSigner,
			IsWritable: meta.IsWritable,
		}

		stored, err := r.store.Get(meta.Pubkey)
		if err != nil && !errors.Is(err, accounts.ErrAccountNotFound) {
			return nil, err
		}
		if err == nil {
			clone := stored.Clone()
			info.Owner = clone.Owner
			info.Lamports = clone.Lamports
			info.Data = clone.Data
		}
		infos[i] = info
	}
	return infos, nil
}

// commit persists every writable account in one atomic batch.
func (r *Runtime) commit(infos []*program.AccountInfo, result *Result) error {
	batch := make(map[types.Pubkey]*accounts.Account, len(infos))
	for _, info := range infos {
		if !info.IsWritable {
			continue
		}
		batch[info.Key] = &accounts.Account{
			Owner:    info.Owner,
			Lamports: info.Lamports,
			Data:     info.Data,
		}
		result.Committed = append(result.Committed, info.Key)
	}
	if err := r.store.Apply(batch); err != nil {
		return fmt.Errorf("commit accounts: %w", err)
	}
	return nil
}

// record journals the execution outcome.
func (r *Runtime) record(ix *program.Instruction, result *Result, execErr error) error {
	if r.journal == nil {
		return nil
	}

	status := journal.StatusCommitted
	if execErr != nil {
		status = journal.StatusFailed
	}

	keys := make([]types.Pubkey, len(ix.Accounts))
	for i, meta := range ix.Accounts {
		keys[i] = meta.Pubkey
	}

	var discriminant uint32
	if len(ix.Data) >= 4 {
		discriminant = binary.LittleEndian.Uint32(ix.Data[:4])
	}

	rec := &journal.Record{
		Program:      ix.ProgramID,
		Discriminant: discriminant,
		Keys:         keys,
		Status:       status,
		Code:         result.Code,
	}
	if err := r.journal.Append(rec); err != nil {
		return fmt.Errorf("journal append: %w", err)
	}
	result.Seq = rec.Seq
	return nil
}
