// Package pda derives and verifies program-derived addresses.
//
// The construction is the standard one: SHA256 over the ordered seed
// components, the program id, and a fixed marker string. A candidate is
// only accepted when it is not a valid ed25519 curve point, which proves no
// private key can exist for it. The hash construction is versioned by the
// marker and must never change: doing so silently breaks every previously
// derived address.
package pda

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/fortiblox/X1-Vault/internal/types"
	"github.com/fortiblox/X1-Vault/pkg/common"
	"github.com/fortiblox/X1-Vault/pkg/seeds"
)

// pdaMarker terminates the derivation hash input.
var pdaMarker = []byte("ProgramDerivedAddress")

// derivationContext versions the advanced (crypto-seeded) derivation.
var derivationContext = []byte("x1-vault:pda:v1")

// CreateProgramAddress derives an address from seeds and a program id.
// It fails when the derived candidate is on the ed25519 curve; callers that
// need a guaranteed-valid address use FindProgramAddress instead.
func CreateProgramAddress(seedList [][]byte, programID types.Pubkey) (types.Pubkey, error) {
	var addr types.Pubkey

	if len(seedList) > common.MaxSeeds {
		return addr, common.ErrTooManySeeds
	}
	for i, seed := range seedList {
		if len(seed) > common.MaxSeedLen {
			return addr, fmt.Errorf("seed %d: %w", i, common.ErrInvalidSeedLength)
		}
	}

	h := sha256.New()
	for _, seed := range seedList {
		h.Write(seed)
	}
	h.Write(programID[:])
	h.Write(pdaMarker)
	copy(addr[:], h.Sum(nil))

	if isOnCurve(addr) {
		return types.Pubkey{}, common.ErrPdaMismatch
	}
	return addr, nil
}

// FindProgramAddress finds the canonical (address, bump) pair for a seed
// set by appending candidate bump bytes from 255 downward until derivation
// yields an off-curve address.
//
// Probing from the top of the byte range is what makes the result
// canonical: any party re-running the search with the same seeds and
// program id stops at the same bump.
func FindProgramAddress(seedList [][]byte, programID types.Pubkey) (types.Pubkey, uint8, error) {
	if len(seedList) > common.MaxSeeds-1 { // room for the bump
		return types.Pubkey{}, 0, common.ErrTooManySeeds
	}

	withBump := make([][]byte, len(seedList)+1)
	copy(withBump, seedList)

	for bump := uint8(255); ; bump-- {
		withBump[len(seedList)] = []byte{bump}

		addr, err := CreateProgramAddress(withBump, programID)
		if err == nil {
			return addr, bump, nil
		}
		if !errors.Is(err, common.ErrPdaMismatch) {
			// Structural seed error; probing more bumps cannot help.
			return types.Pubkey{}, 0, err
		}
		if bump == 0 {
			break
		}
	}
	return types.Pubkey{}, 0, common.ErrPdaMismatch
}

// VerifyProgramAddress checks that an address is the derivation of the
// exact supplied (seeds, bump) pair. It never probes other bumps: a caller
// presenting a non-canonical bump is rejected, not repaired.
func VerifyProgramAddress(addr types.Pubkey, seedList [][]byte, bump uint8, programID types.Pubkey) error {
	if len(seedList) > common.MaxSeeds-1 {
		return common.ErrTooManySeeds
	}

	withBump := make([][]byte, len(seedList)+1)
	copy(withBump, seedList)
	withBump[len(seedList)] = []byte{bump}

	derived, err := CreateProgramAddress(withBump, programID)
	if err != nil {
		// Either a structural seed error or on-curve for this bump; the
		// latter means the supplied bump cannot be the canonical one.
		return err
	}
	if derived != addr {
		return common.ErrPdaMismatch
	}
	return nil
}

// FindAdvancedAddress derives a PDA whose seed set additionally folds in a
// digest of the ordered security-context components, so the resulting
// address attests to that context as well as to the logical seeds.
//
// The context is entropy-checked first: an all-zero or otherwise
// low-variance context would make the extra seed predictable.
func FindAdvancedAddress(seedList, securityContext [][]byte, programID types.Pubkey) (types.Pubkey, uint8, error) {
	extended, err := extendWithContext(seedList, securityContext)
	if err != nil {
		return types.Pubkey{}, 0, err
	}
	return FindProgramAddress(extended, programID)
}

// VerifyAdvancedAddress verifies a PDA produced by FindAdvancedAddress for
// the exact supplied bump.
func VerifyAdvancedAddress(addr types.Pubkey, seedList, securityContext [][]byte, bump uint8, programID types.Pubkey) error {
	extended, err := extendWithContext(seedList, securityContext)
	if err != nil {
		return err
	}
	return VerifyProgramAddress(addr, extended, bump, programID)
}

// extendWithContext appends the security-context digest to a seed set.
func extendWithContext(seedList, securityContext [][]byte) ([][]byte, error) {
	flat := make([]byte, 0, 64)
	for _, c := range securityContext {
		flat = append(flat, c...)
	}
	if err := seeds.ValidateEntropy(flat); err != nil {
		return nil, err
	}

	digest, err := seeds.DeriveSeed(derivationContext, securityContext)
	if err != nil {
		return nil, err
	}

	extended := make([][]byte, len(seedList)+1)
	copy(extended, seedList)
	extended[len(seedList)] = digest[:]
	return extended, nil
}
