// Package accounts provides the BadgerDB-backed store implementation.
package accounts

import (
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dgraph-io/badger/v4"

	"github.com/fortiblox/X1-Vault/internal/types"
)

// Key prefixes. Prefixing allows cheap iteration over one record type.
var (
	// prefixAccount + pubkey (32 bytes) -> encoded account.
	prefixAccount = []byte{0x01}

	// prefixMeta + name -> store metadata.
	prefixMeta = []byte{0x02}

	// metaCount tracks the number of stored accounts.
	metaCount = append(prefixMeta, []byte("count")...)
)

// StoreConfig configures the Badger store.
type StoreConfig struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path string

	// InMemory runs the store without touching disk (tests).
	InMemory bool

	// SyncWrites forces every write to be fsynced before returning.
	SyncWrites bool
}

// DefaultStoreConfig returns the configuration used by the CLI.
func DefaultStoreConfig(path string) StoreConfig {
	return StoreConfig{
		Path:       path,
		SyncWrites: false,
	}
}

// Store is the BadgerDB-backed account store.
//
// Badger's LSM architecture keeps keys separate from values, which suits
// accounts whose data buffers can reach megabytes. All mutations go through
// Badger transactions, so Apply gives the runtime its all-or-nothing commit
// for free.
type Store struct {
	db *badger.DB

	// count is cached; the persisted copy is refreshed on every write.
	count atomic.Uint64

	mu     sync.Mutex // serializes writers
	closed atomic.Bool
}

var _ DB = (*Store)(nil)

// Open opens or creates a store.
func Open(cfg StoreConfig) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path).
		WithInMemory(cfg.InMemory).
		WithSyncWrites(cfg.SyncWrites).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	s := &Store{db: db}
	if err := s.loadCount(); err != nil {
		db.Close()
		return nil, fmt.Errorf("load metadata: %w", err)
	}
	return s, nil
}

func (s *Store) loadCount() error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(metaCount)
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) >= 8 {
				s.count.Store(binary.LittleEndian.Uint64(val))
			}
			return nil
		})
	})
}

func countBytes(n uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, n)
	return buf
}

// accountKey builds the storage key for a pubkey.
func accountKey(key types.Pubkey) []byte {
	k := make([]byte, 1+32)
	k[0] = prefixAccount[0]
	copy(k[1:], key[:])
	return k
}

// Get retrieves an account.
func (s *Store) Get(key types.Pubkey) (*Account, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	var acc *Account
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(accountKey(key))
		if err == badger.ErrKeyNotFound {
			return ErrAccountNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			decoded, err := DecodeAccount(val)
			if err != nil {
				return err
			}
			acc = decoded
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return acc, nil
}

// Has reports whether an account exists.
func (s *Store) Has(key types.Pubkey) (bool, error) {
	if s.closed.Load() {
		return false, ErrClosed
	}

	exists := false
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(accountKey(key))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		exists = true
		return nil
	})
	return exists, err
}

// Set stores one account. Zero accounts are deleted instead.
func (s *Store) Set(key types.Pubkey, acc *Account) error {
	if acc.IsZero() {
		return s.Delete(key)
	}
	return s.Apply(map[types.Pubkey]*Account{key: acc})
}

// Delete removes an account.
func (s *Store) Delete(key types.Pubkey) error {
	if s.closed.Load() {
		return ErrClosed
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := false
	err := s.db.Update(func(txn *badger.Txn) error {
		k := accountKey(key)
		if _, err := txn.Get(k); err == badger.ErrKeyNotFound {
			return nil
		} else if err != nil {
			return err
		}
		removed = true
		if err := txn.Delete(k); err != nil {
			return err
		}
		return txn.Set(metaCount, countBytes(s.count.Load()-1))
	})
	if err != nil {
		return err
	}
	if removed {
		s.count.Add(^uint64(0))
	}
	return nil
}

// Apply writes a batch of accounts in a single Badger transaction. Either
// the whole batch commits or none of it does.
func (s *Store) Apply(batch map[types.Pubkey]*Account) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if len(batch) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	created := 0
	err := s.db.Update(func(txn *badger.Txn) error {
		created = 0
		for key, acc := range batch {
			k := accountKey(key)
			_, err := txn.Get(k)
			isNew := err == badger.ErrKeyNotFound
			if err != nil && !isNew {
				return err
			}
			if isNew {
				created++
			}
			if err := txn.Set(k, acc.Encode()); err != nil {
				return err
			}
		}
		return txn.Set(metaCount, countBytes(s.count.Load()+uint64(created)))
	})
	if err != nil {
		return err
	}
	s.count.Add(uint64(created))
	return nil
}

// Count returns the number of stored accounts.
func (s *Store) Count() (uint64, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	return s.count.Load(), nil
}

// ForEach visits every stored account in key order.
func (s *Store) ForEach(fn func(key types.Pubkey, acc *Account) error) error {
	if s.closed.Load() {
		return ErrClosed
	}

	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefixAccount
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			raw := item.Key()
			if len(raw) != 1+32 {
				continue
			}
			var key types.Pubkey
			copy(key[:], raw[1:])

			err := item.Value(func(val []byte) error {
				acc, err := DecodeAccount(val)
				if err != nil {
					return err
				}
				return fn(key, acc)
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// Close closes the store.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}
