// Package deriver implements deterministic, content-addressed account address
// derivation. The derivation is a pure function of (deployer scope, salt,
// init code hash); it is computable before deployment and matches the address
// produced at deployment time exactly.
package deriver

import (
	"golang.org/x/crypto/sha3"

	"github.com/claimable/account-registry-backend/interfaces"
)

// create2Prefix is the single-byte domain separator of the CREATE2 scheme,
// keeping derived addresses disjoint from nonce-based deployment addresses.
const create2Prefix = 0xff

// Create2Deriver derives addresses with the CREATE2 formula:
//
//	address = keccak256(0xff ++ deployer ++ salt ++ keccak256(initCode))[12:]
//
// It is stateless and safe for concurrent use.
type Create2Deriver struct{}

// NewCreate2Deriver returns the standard CREATE2 address deriver.
func NewCreate2Deriver() Create2Deriver {
	return Create2Deriver{}
}

// Derive computes the deterministic address for salt under the given deployer
// scope and init code hash.
func (Create2Deriver) Derive(deployer interfaces.AccountAddress, salt interfaces.Salt, initCodeHash [32]byte) interfaces.AccountAddress {
	buf := make([]byte, 0, 1+20+32+32)
	buf = append(buf, create2Prefix)
	buf = append(buf, deployer[:]...)
	buf = append(buf, salt[:]...)
	buf = append(buf, initCodeHash[:]...)

	sum := keccak256(buf)

	var addr interfaces.AccountAddress
	copy(addr[:], sum[12:])
	return addr
}

// keccak256 computes the legacy Keccak-256 digest used by the addressing
// scheme (not the finalized SHA-3).
func keccak256(data []byte) [32]byte {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)

	var sum [32]byte
	h.Sum(sum[:0])
	return sum
}

// InitCodeHash hashes the init code of the account template for use in
// address derivation.
func InitCodeHash(initCode []byte) [32]byte {
	return keccak256(initCode)
}
