// Package interfaces defines the core types and interfaces of the account
// registry system. It provides the contract between components without
// implementation details.
package interfaces

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
)

// AccountAddress is a 20-byte account or contract address.
type AccountAddress [20]byte

// NewAccountAddressFromBytes creates an address from a raw 20-byte slice.
func NewAccountAddressFromBytes(addr []byte) (AccountAddress, error) {
	if len(addr) != 20 {
		return AccountAddress{}, errors.New("invalid address length: must be 20 bytes")
	}

	var res AccountAddress
	copy(res[:], addr)
	return res, nil
}

// NewAccountAddressFromHex creates an address from a 40-character hex string,
// with or without a 0x prefix.
func NewAccountAddressFromHex(addr string) (AccountAddress, error) {
	clean := strings.TrimPrefix(addr, "0x")
	if len(clean) != 40 {
		return AccountAddress{}, errors.New("invalid address length: hex string must be 40 characters")
	}

	addrBytes, err := hex.DecodeString(clean)
	if err != nil {
		return AccountAddress{}, fmt.Errorf("invalid hex format: %w", err)
	}

	return NewAccountAddressFromBytes(addrBytes)
}

// String returns the hex string representation of the address.
func (addr AccountAddress) String() string {
	return "0x" + hex.EncodeToString(addr[:])
}

// Bytes returns the raw 20-byte address.
func (addr AccountAddress) Bytes() []byte {
	return addr[:]
}

// MarshalText implements encoding.TextMarshaler, rendering the address as a
// 0x-prefixed hex string.
func (addr AccountAddress) MarshalText() ([]byte, error) {
	return []byte(addr.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (addr *AccountAddress) UnmarshalText(text []byte) error {
	parsed, err := NewAccountAddressFromHex(string(text))
	if err != nil {
		return err
	}
	*addr = parsed
	return nil
}

// IsZero reports whether the address is the zero address.
func (addr AccountAddress) IsZero() bool {
	return addr == AccountAddress{}
}

// Salt is the opaque 256-bit per-user value that determines a unique
// deterministic account address. The external service chooses it; the
// registry never interprets it.
type Salt [32]byte

// NewSaltFromBytes creates a salt from a raw 32-byte slice.
func NewSaltFromBytes(b []byte) (Salt, error) {
	if len(b) != 32 {
		return Salt{}, errors.New("invalid salt length: must be 32 bytes")
	}

	var res Salt
	copy(res[:], b)
	return res, nil
}

// NewSaltFromHex creates a salt from a 64-character hex string, with or
// without a 0x prefix. Shorter values are left-padded with zeros, matching
// how uint256 salts are conventionally rendered.
func NewSaltFromHex(s string) (Salt, error) {
	clean := strings.TrimPrefix(s, "0x")
	if len(clean) == 0 || len(clean) > 64 {
		return Salt{}, errors.New("invalid salt length: hex string must be 1-64 characters")
	}
	if len(clean)%2 == 1 {
		clean = "0" + clean
	}

	saltBytes, err := hex.DecodeString(clean)
	if err != nil {
		return Salt{}, fmt.Errorf("invalid hex format: %w", err)
	}

	var res Salt
	copy(res[32-len(saltBytes):], saltBytes)
	return res, nil
}

// String returns the hex string representation of the salt.
func (s Salt) String() string {
	return "0x" + hex.EncodeToString(s[:])
}

// Bytes returns the raw 32-byte salt.
func (s Salt) Bytes() []byte {
	return s[:]
}

// MarshalText implements encoding.TextMarshaler, rendering the salt as a
// 0x-prefixed hex string.
func (s Salt) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Salt) UnmarshalText(text []byte) error {
	parsed, err := NewSaltFromHex(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// SignerKind distinguishes the two signature policies the registry supports.
type SignerKind int

const (
	// SignerEOA is a plain secp256k1 key; claims are checked by signature
	// recovery against the signer address.
	SignerEOA SignerKind = iota

	// SignerContract is a deployed verifier contract; claims are checked by
	// delegating to its signature-validation entry point.
	SignerContract
)

// String returns a human-readable signer kind.
func (k SignerKind) String() string {
	switch k {
	case SignerEOA:
		return "eoa"
	case SignerContract:
		return "contract"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// SignerConfig is the registry's trusted claim signer.
type SignerConfig struct {
	Identity AccountAddress `json:"identity"`
	Kind     SignerKind     `json:"kind"`
}

// SignatureMagicValue is the 4-byte value a signature-validation entry point
// returns for a valid signature (ERC-1271 convention). Invalid signatures
// yield the zero value.
var SignatureMagicValue = [4]byte{0x16, 0x26, 0xba, 0x7e}

// AccountCreatedEvent is emitted when an account instance is deployed.
type AccountCreatedEvent struct {
	Address        AccountAddress
	Implementation AccountAddress
	Salt           Salt
}

// AccountClaimedEvent is emitted when control of an account transfers from
// the registry to a named owner.
type AccountClaimedEvent struct {
	Address AccountAddress
	Owner   AccountAddress
}

// TransactionExecutedEvent is emitted by an account instance for every
// owner-initiated call.
type TransactionExecutedEvent struct {
	Account AccountAddress
	Target  AccountAddress
	Value   *big.Int
	Data    []byte
}
