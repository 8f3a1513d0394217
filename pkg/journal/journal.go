// Package journal records every executed instruction in a bbolt database.
//
// The journal is append-only history, separate from current state: the
// account store answers "what is", the journal answers "what happened".
// Failed instructions are journaled too, with their error code, so the
// full submission history survives restarts.
package journal

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"errors"
	"fmt"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/fortiblox/X1-Vault/internal/types"
)

var (
	// ErrNotFound is returned when a sequence number doesn't exist.
	ErrNotFound = errors.New("journal entry not found")

	// ErrClosed is returned when operating on a closed journal.
	ErrClosed = errors.New("journal closed")
)

// bucketRecords holds sequence -> gob-encoded Record.
var bucketRecords = []byte("records")

// Execution status values.
const (
	StatusCommitted uint8 = iota
	StatusFailed
)

// Record is one journaled instruction execution.
type Record struct {
	// Seq is the journal sequence number, assigned on append. Dense and
	// strictly increasing.
	Seq uint64

	// Program is the executed program's address.
	Program types.Pubkey

	// Discriminant is the instruction selector from the payload.
	Discriminant uint32

	// Keys are the instruction's declared account addresses, in order.
	Keys []types.Pubkey

	// Status is StatusCommitted or StatusFailed.
	Status uint8

	// Code is the categorized error code for failed executions, 0 for
	// committed ones.
	Code uint32

	// UnixNano is the wall-clock time of the execution.
	UnixNano int64
}

// Journal is a bbolt-backed instruction journal.
type Journal struct {
	db *bolt.DB

	mu     sync.Mutex
	closed bool
}

// Open opens or creates a journal at the given path.
func Open(path string) (*Journal, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketRecords)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}

	return &Journal{db: db}, nil
}

// seqKey encodes a sequence number big-endian so bbolt's lexicographic key
// order matches numeric order.
func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

// Append assigns the next sequence number to the record and persists it.
func (j *Journal) Append(rec *Record) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return ErrClosed
	}

	return j.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketRecords)

		seq, err := bucket.NextSequence()
		if err != nil {
			return err
		}
		rec.Seq = seq
		if rec.UnixNano == 0 {
			rec.UnixNano = time.Now().UnixNano()
		}

		var buf bytes.Buffer
		if err := gob.NewEncoder(&buf).Encode(rec); err != nil {
			return fmt.Errorf("encode record: %w", err)
		}
		return bucket.Put(seqKey(seq), buf.Bytes())
	})
}

// Get retrieves the record at a sequence number.
func (j *Journal) Get(seq uint64) (*Record, error) {
	j.mu.Lock()
	closed := j.closed
	j.mu.Unlock()
	if closed {
		return nil, ErrClosed
	}

	var rec Record
	err := j.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket(bucketRecords).Get(seqKey(seq))
		if raw == nil {
			return ErrNotFound
		}
		return gob.NewDecoder(bytes.NewReader(raw)).Decode(&rec)
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Count returns the number of journaled records.
func (j *Journal) Count() (uint64, error) {
	var count uint64
	err := j.db.View(func(tx *bolt.Tx) error {
		count = tx.Bucket(bucketRecords).Sequence()
		return nil
	})
	return count, err
}

// ForEach visits every record in sequence order.
func (j *Journal) ForEach(fn func(rec *Record) error) error {
	return j.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketRecords).ForEach(func(_, raw []byte) error {
			var rec Record
			if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&rec); err != nil {
				return err
			}
			return fn(&rec)
		})
	})
}

// Close closes the journal.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	return j.db.Close()
}
