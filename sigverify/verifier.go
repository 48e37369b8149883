package sigverify

import (
	"time"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/claimable/account-registry-backend/interfaces"
)

// Policy decides whether a signature over a message hash is valid. The two
// variants mirror the registry's signer kinds; the registry selects one at
// configuration time and dispatches through this interface.
type Policy interface {
	Valid(message [32]byte, signature []byte) bool
}

// RawKeyPolicy accepts signatures recoverable to a single secp256k1 address.
type RawKeyPolicy struct {
	Signer interfaces.AccountAddress
}

// Valid recovers the signing address from (message, signature) and compares
// it to the configured signer. Both compact recovery ids (0/1) and the
// conventional 27/28 values are accepted.
func (p RawKeyPolicy) Valid(message [32]byte, signature []byte) bool {
	if len(signature) != crypto.SignatureLength {
		return false
	}

	sig := make([]byte, crypto.SignatureLength)
	copy(sig, signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	if sig[64] > 1 {
		return false
	}

	pubkey, err := crypto.SigToPub(message[:], sig)
	if err != nil {
		return false
	}

	return interfaces.AccountAddress(crypto.PubkeyToAddress(*pubkey)) == p.Signer
}

// DelegatedVerifierPolicy defers validity to a deployed contract verifier,
// transparently supporting threshold, multisig, or otherwise delegated
// signer logic.
type DelegatedVerifierPolicy struct {
	Verifier interfaces.ContractVerifier
}

// Valid asks the verifier contract and checks for the magic value.
func (p DelegatedVerifierPolicy) Valid(message [32]byte, signature []byte) bool {
	if p.Verifier == nil {
		return false
	}

	magic, err := p.Verifier.IsValidSignature(message, signature)
	if err != nil {
		return false
	}
	return magic == interfaces.SignatureMagicValue
}

// VerifyClaim reports whether a claim is valid at the given time under the
// supplied policy. A claim is valid iff the supplied message equals the
// canonical reconstruction for (owner, salt, expiration), the policy accepts
// the signature, and the claim has not expired. Expiration 0 never expires;
// otherwise the claim is valid strictly before the expiration timestamp.
//
// The result is a bare boolean: callers learn that a claim is invalid, never
// why.
func VerifyClaim(policy Policy, owner interfaces.AccountAddress, salt interfaces.Salt, expiration uint64, message [32]byte, signature []byte, now time.Time) bool {
	if message != ClaimMessage(owner, salt, expiration) {
		return false
	}

	if expiration != 0 && uint64(now.Unix()) >= expiration {
		return false
	}

	return policy.Valid(message, signature)
}
