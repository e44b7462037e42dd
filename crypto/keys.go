package crypto

import (
	"fmt"

	"github.com/btcsuite/btcutil/bech32"
)

// AddressPrefix defines the human-readable part used when rendering addresses.
type AddressPrefix string

const (
	// StakePrefix is used for depositor, authority and derived ledger addresses.
	StakePrefix AddressPrefix = "stk"
)

// AddressLength is the size in bytes of every identity handled by the ledger.
const AddressLength = 20

// Address represents a 20-byte identity with a specific prefix.
type Address struct {
	prefix AddressPrefix
	bytes  []byte
}

// NewAddress wraps the provided bytes. It returns an error when the slice is
// not exactly AddressLength bytes long.
func NewAddress(prefix AddressPrefix, b []byte) (Address, error) {
	if len(b) != AddressLength {
		return Address{}, fmt.Errorf("address must be %d bytes long, got %d", AddressLength, len(b))
	}
	return Address{prefix: prefix, bytes: append([]byte(nil), b...)}, nil
}

// MustNewAddress is like NewAddress but panics on malformed input.
func MustNewAddress(prefix AddressPrefix, b []byte) Address {
	addr, err := NewAddress(prefix, b)
	if err != nil {
		panic(err)
	}
	return addr
}

func (a Address) String() string {
	if len(a.bytes) == 0 {
		return ""
	}
	conv, err := bech32.ConvertBits(a.bytes, 8, 5, true)
	if err != nil {
		panic(err)
	}
	encoded, err := bech32.Encode(string(a.prefix), conv)
	if err != nil {
		panic(err)
	}
	return encoded
}

func (a Address) Bytes() []byte {
	return append([]byte(nil), a.bytes...)
}

// Array returns the address as a fixed-size array suitable for persisted records.
func (a Address) Array() [AddressLength]byte {
	var out [AddressLength]byte
	copy(out[:], a.bytes)
	return out
}

// Prefix returns the human-readable prefix associated with the address.
func (a Address) Prefix() AddressPrefix {
	return a.prefix
}

// IsZero reports whether the address is unset.
func (a Address) IsZero() bool {
	for _, b := range a.bytes {
		if b != 0 {
			return false
		}
	}
	return true
}

func DecodeAddress(addrStr string) (Address, error) {
	prefix, decoded, err := bech32.Decode(addrStr)
	if err != nil {
		return Address{}, fmt.Errorf("invalid bech32 string: %w", err)
	}
	conv, err := bech32.ConvertBits(decoded, 5, 8, false)
	if err != nil {
		return Address{}, fmt.Errorf("error converting bits: %w", err)
	}
	return NewAddress(AddressPrefix(prefix), conv)
}
