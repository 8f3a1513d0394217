package snapshot

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/fortiblox/X1-Vault/internal/types"
	"github.com/fortiblox/X1-Vault/pkg/accounts"
)

func testKey(label string) types.Pubkey {
	return types.Pubkey(types.ComputeHash([]byte(label)))
}

func openTestStore(t *testing.T) *accounts.Store {
	t.Helper()
	store, err := accounts.Open(accounts.StoreConfig{InMemory: true})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func populate(t *testing.T, store accounts.DB, n int) map[types.Pubkey]*accounts.Account {
	t.Helper()
	batch := make(map[types.Pubkey]*accounts.Account, n)
	for i := 0; i < n; i++ {
		key := testKey(string(rune('a' + i)))
		batch[key] = &accounts.Account{
			Owner:    testKey("program"),
			Lamports: uint64(i + 1),
			Data:     bytes.Repeat([]byte{byte(i)}, 64),
		}
	}
	if err := store.Apply(batch); err != nil {
		t.Fatalf("populate store: %v", err)
	}
	return batch
}

func TestSnapshotRoundTrip(t *testing.T) {
	source := openTestStore(t)
	want := populate(t, source, 5)

	path := filepath.Join(t.TempDir(), "state.snap")
	if err := Write(path, source); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	dest := openTestStore(t)
	n, err := Load(path, dest)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if n != 5 {
		t.Errorf("Load returned %d accounts, want 5", n)
	}

	for key, acc := range want {
		got, err := dest.Get(key)
		if err != nil {
			t.Fatalf("Get %s: %v", key, err)
		}
		if got.Owner != acc.Owner || got.Lamports != acc.Lamports || !bytes.Equal(got.Data, acc.Data) {
			t.Errorf("account %s differs after round trip", key)
		}
	}

	count, _ := dest.Count()
	if count != 5 {
		t.Errorf("destination Count = %d, want 5", count)
	}
}

func TestSnapshotEmptyStore(t *testing.T) {
	source := openTestStore(t)
	path := filepath.Join(t.TempDir(), "empty.snap")

	if err := Write(path, source); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	dest := openTestStore(t)
	n, err := Load(path, dest)
	if err != nil || n != 0 {
		t.Errorf("Load = (%d, %v), want (0, nil)", n, err)
	}
}

func TestSnapshotRejectsBadFiles(t *testing.T) {
	dir := t.TempDir()
	dest := openTestStore(t)

	// Not a snapshot at all.
	garbage := filepath.Join(dir, "garbage.snap")
	if err := os.WriteFile(garbage, bytes.Repeat([]byte{0xAA}, 64), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(garbage, dest); !errors.Is(err, ErrBadMagic) {
		t.Errorf("expected ErrBadMagic, got %v", err)
	}

	// Right magic, wrong version.
	versioned := filepath.Join(dir, "versioned.snap")
	header := make([]byte, 16)
	copy(header, snapshotMagic)
	header[4] = 99
	if err := os.WriteFile(versioned, header, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(versioned, dest); !errors.Is(err, ErrBadVersion) {
		t.Errorf("expected ErrBadVersion, got %v", err)
	}
}

func TestSnapshotTruncatedLeavesStoreUntouched(t *testing.T) {
	source := openTestStore(t)
	populate(t, source, 5)

	path := filepath.Join(t.TempDir(), "state.snap")
	if err := Write(path, source); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	// Cut the compressed stream short.
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, raw[:len(raw)/2], 0644); err != nil {
		t.Fatal(err)
	}

	dest := openTestStore(t)
	if _, err := Load(path, dest); err == nil {
		t.Fatal("Load of truncated snapshot succeeded")
	}

	// No partial state: the batch never applied.
	count, _ := dest.Count()
	if count != 0 {
		t.Errorf("truncated load left %d accounts in the store", count)
	}
}
