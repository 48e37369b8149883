package api

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/claimable/account-registry-backend/interfaces"
)

// SignerUpdateDomainTag domain-separates admin signer-update signatures from
// every other statement the registry owner key might sign.
const SignerUpdateDomainTag = "account-registry-admin:update-signer"

// SignerUpdateDigest is the hash the registry owner signs to authorize a
// signer update. Binding the timestamp bounds replay of captured requests.
func SignerUpdateDigest(signer interfaces.AccountAddress, timestamp uint64) [32]byte {
	buf := make([]byte, 0, len(SignerUpdateDomainTag)+20+8)
	buf = append(buf, SignerUpdateDomainTag...)
	buf = append(buf, signer[:]...)
	buf = binary.BigEndian.AppendUint64(buf, timestamp)
	return crypto.Keccak256Hash(buf)
}

// RecoverAdmin recovers the address that signed a signer-update request.
func RecoverAdmin(signer interfaces.AccountAddress, timestamp uint64, signature []byte) (interfaces.AccountAddress, error) {
	digest := SignerUpdateDigest(signer, timestamp)

	sig := make([]byte, len(signature))
	copy(sig, signature)
	if len(sig) == crypto.SignatureLength && sig[64] >= 27 {
		sig[64] -= 27
	}

	pubkey, err := crypto.SigToPub(digest[:], sig)
	if err != nil {
		return interfaces.AccountAddress{}, err
	}
	return interfaces.AccountAddress(crypto.PubkeyToAddress(*pubkey)), nil
}
