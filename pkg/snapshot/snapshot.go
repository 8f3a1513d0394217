// Package snapshot exports and imports full account-state snapshots.
//
// Snapshot format:
//   - Magic (4 bytes): "XVSN"
//   - Version (4 bytes, little-endian)
//   - AccountsCount (8 bytes, little-endian)
//   - zstd-compressed stream, per account:
//   - Pubkey (32 bytes)
//   - EntrySize (4 bytes, little-endian)
//   - Encoded account (variable)
//
// The header is written uncompressed so tooling can inspect a snapshot
// without decompressing it. Load verifies the declared count against the
// stream, so a truncated snapshot never half-populates a store.
package snapshot

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/fortiblox/X1-Vault/internal/types"
	"github.com/fortiblox/X1-Vault/pkg/accounts"
)

// Snapshot format version.
const snapshotVersion uint32 = 1

// snapshotMagic identifies vault snapshot files.
var snapshotMagic = []byte{'X', 'V', 'S', 'N'}

var (
	// ErrBadMagic is returned for files that are not vault snapshots.
	ErrBadMagic = errors.New("bad snapshot magic")

	// ErrBadVersion is returned for unsupported snapshot versions.
	ErrBadVersion = errors.New("unsupported snapshot version")

	// ErrTruncated is returned when the stream ends before the declared
	// account count.
	ErrTruncated = errors.New("snapshot truncated")
)

// Write exports every account in the store to a snapshot file.
func Write(path string, store accounts.DB) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}

	count, err := store.Count()
	if err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create snapshot file: %w", err)
	}
	defer file.Close()

	header := make([]byte, 16)
	copy(header, snapshotMagic)
	binary.LittleEndian.PutUint32(header[4:8], snapshotVersion)
	binary.LittleEndian.PutUint64(header[8:16], count)
	if _, err := file.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	enc, err := zstd.NewWriter(file)
	if err != nil {
		return fmt.Errorf("zstd writer: %w", err)
	}

	writer := bufio.NewWriter(enc)
	var sizeBuf [4]byte
	err = store.ForEach(func(key types.Pubkey, acc *accounts.Account) error {
		if _, err := writer.Write(key[:]); err != nil {
			return err
		}
		encoded := acc.Encode()
		binary.LittleEndian.PutUint32(sizeBuf[:], uint32(len(encoded)))
		if _, err := writer.Write(sizeBuf[:]); err != nil {
			return err
		}
		_, err := writer.Write(encoded)
		return err
	})
	if err != nil {
		enc.Close()
		return fmt.Errorf("write accounts: %w", err)
	}

	if err := writer.Flush(); err != nil {
		enc.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finish compression: %w", err)
	}
	return file.Sync()
}

// Load imports a snapshot into the store. Accounts are staged and applied
// in one atomic batch, so a corrupt snapshot leaves the store untouched.
func Load(path string, store accounts.DB) (uint64, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open snapshot: %w", err)
	}
	defer file.Close()

	header := make([]byte, 16)
	if _, err := io.ReadFull(file, header); err != nil {
		return 0, fmt.Errorf("read header: %w", err)
	}
	if !bytes.Equal(header[:4], snapshotMagic) {
		return 0, ErrBadMagic
	}
	if binary.LittleEndian.Uint32(header[4:8]) != snapshotVersion {
		return 0, ErrBadVersion
	}
	count := binary.LittleEndian.Uint64(header[8:16])

	dec, err := zstd.NewReader(file)
	if err != nil {
		return 0, fmt.Errorf("zstd reader: %w", err)
	}
	defer dec.Close()

	reader := bufio.NewReader(dec)
	batch := make(map[types.Pubkey]*accounts.Account, count)
	var keyBuf [32]byte
	var sizeBuf [4]byte

	for i := uint64(0); i < count; i++ {
		if _, err := io.ReadFull(reader, keyBuf[:]); err != nil {
			return 0, ErrTruncated
		}
		if _, err := io.ReadFull(reader, sizeBuf[:]); err != nil {
			return 0, ErrTruncated
		}
		size := binary.LittleEndian.Uint32(sizeBuf[:])
		if size > accounts.MaxAccountDataSize+64 {
			return 0, accounts.ErrInvalidData
		}

		raw := make([]byte, size)
		if _, err := io.ReadFull(reader, raw); err != nil {
			return 0, ErrTruncated
		}
		acc, err := accounts.DecodeAccount(raw)
		if err != nil {
			return 0, fmt.Errorf("account %d: %w", i, err)
		}

		var key types.Pubkey
		copy(key[:], keyBuf[:])
		batch[key] = acc
	}

	if err := store.Apply(batch); err != nil {
		return 0, fmt.Errorf("apply snapshot: %w", err)
	}
	return count, nil
}
