package crypto

import "github.com/ethereum/go-ethereum/crypto"

const (
	// VaultNamespace seeds the address of the singleton vault ledger.
	VaultNamespace = "vault"
	// StakeNamespace seeds per-depositor stake account addresses.
	StakeNamespace = "stake"
)

// DeriveAddress computes a deterministic address from a namespace tag and
// optional seeds. The result is the trailing 20 bytes of
// keccak256(namespace || seeds...), so any observer holding the same inputs
// can recompute it without talking to the ledger.
func DeriveAddress(namespace string, seeds ...[]byte) Address {
	parts := make([][]byte, 0, len(seeds)+1)
	parts = append(parts, []byte(namespace))
	parts = append(parts, seeds...)
	digest := crypto.Keccak256(parts...)
	return MustNewAddress(StakePrefix, digest[len(digest)-AddressLength:])
}

// VaultAddress returns the fixed address of the vault ledger.
func VaultAddress() Address {
	return DeriveAddress(VaultNamespace)
}

// StakeAddress returns the address of the stake account owned by owner.
func StakeAddress(owner Address) Address {
	return DeriveAddress(StakeNamespace, owner.bytes)
}
