// Package sigverify implements verification of off-chain-issued account claim
// signatures. A claim binds exactly (owner, salt, expiration) into a
// domain-tagged message; validity is decided either by secp256k1 signature
// recovery against a configured key or by delegation to a deployed verifier
// contract. Verification is a pure predicate with no side effects.
package sigverify

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/claimable/account-registry-backend/interfaces"
)

// ClaimMessagePrefix is the domain-separation tag for claim messages. The
// length suffix (84 = 20-byte owner + 32-byte salt + 32-byte expiration)
// makes claim signatures unusable for any other signed-message payload.
const ClaimMessagePrefix = "\x19Ethereum Signed Message:\n84"

// ClaimMessage reconstructs the canonical claim message hash for
// (owner, salt, expiration). Externally issued signatures must sign exactly
// this hash; field set and ordering are part of the wire contract.
func ClaimMessage(owner interfaces.AccountAddress, salt interfaces.Salt, expiration uint64) [32]byte {
	buf := make([]byte, 0, len(ClaimMessagePrefix)+84)
	buf = append(buf, ClaimMessagePrefix...)
	buf = append(buf, owner[:]...)
	buf = append(buf, salt[:]...)

	var exp [32]byte
	binary.BigEndian.PutUint64(exp[24:], expiration)
	buf = append(buf, exp[:]...)

	return crypto.Keccak256Hash(buf)
}
