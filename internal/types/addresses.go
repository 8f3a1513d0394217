// Package types provides well-known addresses used by the vault program.
package types

import "crypto/sha256"

// SystemProgramAddr is the System Program address (all zeros).
// Accounts that have never been assigned to a program are owned by it.
var SystemProgramAddr = MustPubkeyFromBase58("11111111111111111111111111111111")

// VaultProgramAddr is the default vault program address.
//
// The vault program is native, so its address is not a deployed keypair.
// It is fixed as the SHA256 of a versioned name; changing the name breaks
// every previously derived PDA.
var VaultProgramAddr = Pubkey(sha256.Sum256([]byte("x1-vault-program-v1")))

// IsNativeProgram returns true if the pubkey is a native program.
func IsNativeProgram(p Pubkey) bool {
	switch p {
	case SystemProgramAddr, VaultProgramAddr:
		return true
	default:
		return false
	}
}
