// X1-Vault: native token-account program with a persistent local ledger.
//
// This binary drives the vault program through the in-process runtime:
// it initializes the program state, creates user accounts, performs a
// fee-bearing transfer, and reports balances. State persists in the data
// directory across runs; snapshots can be written and restored.
package main

import (
	"crypto/sha256"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/fortiblox/X1-Vault/internal/types"
	"github.com/fortiblox/X1-Vault/pkg/accounts"
	"github.com/fortiblox/X1-Vault/pkg/common"
	"github.com/fortiblox/X1-Vault/pkg/journal"
	"github.com/fortiblox/X1-Vault/pkg/program"
	"github.com/fortiblox/X1-Vault/pkg/runtime"
	"github.com/fortiblox/X1-Vault/pkg/snapshot"
	"github.com/fortiblox/X1-Vault/pkg/tokenmath"
)

// Version information.
var (
	Version   = "0.1.0"
	GitCommit = "dev"
)

// Configuration flags.
var (
	dataDir     = flag.String("data-dir", "./vault-data", "Data directory for accounts and journal")
	supply      = flag.Uint64("supply", 1_000_000, "Initial supply (whole tokens) used on first run")
	decimals    = flag.Uint("decimals", 6, "Token decimals used on first run")
	amount      = flag.Uint64("amount", 100, "Demo transfer amount in base units")
	feeBps      = flag.Uint("fee-bps", 250, "Demo transfer fee in basis points")
	writeSnap   = flag.String("write-snapshot", "", "Write a state snapshot to this path and exit")
	restoreSnap = flag.String("restore-snapshot", "", "Restore state from this snapshot before running")
	showJournal = flag.Bool("show-journal", false, "Print the instruction journal and exit")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

// walletKey derives a deterministic demo wallet address from a label.
func walletKey(label string) types.Pubkey {
	return types.Pubkey(sha256.Sum256([]byte("x1-vault-demo-wallet:" + label)))
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("X1-Vault %s (%s)\n", Version, GitCommit)
		os.Exit(0)
	}

	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	log.Printf("Starting X1-Vault %s", Version)

	store, err := accounts.Open(accounts.DefaultStoreConfig(filepath.Join(*dataDir, "accounts")))
	if err != nil {
		log.Fatalf("Failed to open account store: %v", err)
	}
	defer store.Close()

	jrnl, err := journal.Open(filepath.Join(*dataDir, "journal.db"))
	if err != nil {
		log.Fatalf("Failed to open journal: %v", err)
	}
	defer jrnl.Close()

	if *restoreSnap != "" {
		n, err := snapshot.Load(*restoreSnap, store)
		if err != nil {
			log.Fatalf("Failed to restore snapshot: %v", err)
		}
		log.Printf("Restored %d accounts from %s", n, *restoreSnap)
	}

	if *showJournal {
		printJournal(jrnl)
		return
	}

	rt := runtime.New(store, jrnl)
	rt.Register(types.VaultProgramAddr, program.NewProcessor())

	if *writeSnap != "" {
		if err := snapshot.Write(*writeSnap, store); err != nil {
			log.Fatalf("Failed to write snapshot: %v", err)
		}
		log.Printf("Snapshot written to %s", *writeSnap)
		return
	}

	if err := run(rt, store); err != nil {
		log.Fatalf("Run failed: %v", err)
	}
}

func run(rt *runtime.Runtime, store accounts.DB) error {
	programID := types.VaultProgramAddr
	alice := walletKey("alice")
	bob := walletKey("bob")

	// Initialize once; subsequent runs see AlreadyInitialized.
	ix, err := program.NewInitializeInstruction(programID, alice, *supply, uint8(*decimals))
	if err != nil {
		return err
	}
	if _, err := rt.Execute(ix); err != nil {
		if !errors.Is(err, common.ErrAlreadyInitialized) {
			log.Printf("Initialize: %v", err)
		}
	} else {
		log.Printf("Program state initialized: supply=%d decimals=%d", *supply, *decimals)
	}

	for _, owner := range []types.Pubkey{alice, bob} {
		ix, err := program.NewCreateUserAccountInstruction(programID, owner, 1_000)
		if err != nil {
			return err
		}
		if _, err := rt.Execute(ix); err != nil {
			log.Printf("CreateUserAccount %s: %v", owner, err)
		} else {
			log.Printf("Created account for %s", owner)
		}
	}

	ix, err = program.NewTransferWithFeeInstruction(programID, alice, bob, *amount, uint16(*feeBps))
	if err != nil {
		return err
	}
	if _, err := rt.Execute(ix); err != nil {
		log.Printf("TransferWithFee: %v", err)
	}

	return printBalances(store, programID, alice, bob)
}

func printBalances(store accounts.DB, programID, alice, bob types.Pubkey) error {
	stateAddr, _, err := program.StateAddress(programID)
	if err != nil {
		return err
	}
	stateAcc, err := store.Get(stateAddr)
	if err != nil {
		return err
	}
	state, err := program.DecodeState(stateAcc.Data)
	if err != nil {
		return err
	}

	log.Printf("State: supply=%d decimals=%d collected_fees=%d",
		state.TotalSupply, state.Decimals, state.CollectedFees)

	for _, owner := range []types.Pubkey{alice, bob} {
		addr, _, err := program.UserAddress(owner, stateAddr, programID)
		if err != nil {
			return err
		}
		acc, err := store.Get(addr)
		if err != nil {
			return err
		}
		record, err := program.DecodeUserAccount(acc.Data)
		if err != nil {
			return err
		}
		whole, frac, err := tokenmath.ToHuman(record.Balance, state.Decimals)
		if err != nil {
			return err
		}
		log.Printf("Balance %s: %d base units (%d.%0*d)", owner, record.Balance, whole, int(state.Decimals), frac)
	}
	return nil
}

func printJournal(jrnl *journal.Journal) {
	count, err := jrnl.Count()
	if err != nil {
		log.Fatalf("Failed to read journal: %v", err)
	}
	log.Printf("Journal entries: %d", count)

	err = jrnl.ForEach(func(rec *journal.Record) error {
		status := "committed"
		if rec.Status == journal.StatusFailed {
			status = fmt.Sprintf("failed (code %d)", rec.Code)
		}
		log.Printf("  seq=%d program=%s discriminant=%d accounts=%d %s",
			rec.Seq, rec.Program, rec.Discriminant, len(rec.Keys), status)
		return nil
	})
	if err != nil {
		log.Fatalf("Failed to iterate journal: %v", err)
	}
}
