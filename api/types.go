// Package api defines the HTTP request and response types of the account
// registry service, plus shared server configuration.
package api

import (
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/claimable/account-registry-backend/interfaces"
)

// AccountResponse describes one account's state.
type AccountResponse struct {
	Address  string `json:"address"`
	Salt     string `json:"salt"`
	Deployed bool   `json:"deployed"`
	Claimed  bool   `json:"claimed"`
	Owner    string `json:"owner,omitempty"`
}

// ClaimRequest submits an off-chain-issued claim for an account.
type ClaimRequest struct {
	// Owner is the address receiving control of the account.
	Owner string `json:"owner"`

	// Expiration is the claim's validity deadline as a unix timestamp;
	// 0 never expires.
	Expiration hexutil.Uint64 `json:"expiration"`

	// Message is the 32-byte claim message hash the signer signed.
	Message hexutil.Bytes `json:"message"`

	// Signature is the claim signature issued by the registry's signer.
	Signature hexutil.Bytes `json:"signature"`
}

// SignatureCheckRequest asks the registry to validate a signature against its
// configured signer.
type SignatureCheckRequest struct {
	Hash      hexutil.Bytes `json:"hash"`
	Signature hexutil.Bytes `json:"signature"`
}

// SignatureCheckResponse carries the 4-byte magic value for valid signatures
// and an empty value otherwise.
type SignatureCheckResponse struct {
	MagicValue hexutil.Bytes `json:"magic_value"`
	Valid      bool          `json:"valid"`
}

// SignerResponse describes the registry's configured claim signer.
type SignerResponse struct {
	Identity string `json:"identity"`
	Kind     string `json:"kind"`
}

// NewSignerResponse converts a signer configuration into its API shape.
func NewSignerResponse(cfg interfaces.SignerConfig) SignerResponse {
	return SignerResponse{Identity: cfg.Identity.String(), Kind: cfg.Kind.String()}
}

// SignerUpdateRequest replaces the registry's claim signer. The request is
// authenticated by Signature: a secp256k1 signature by the registry owner
// over SignerUpdateDigest(signer, timestamp).
type SignerUpdateRequest struct {
	// Signer is the new signer identity.
	Signer string `json:"signer"`

	// Timestamp is the unix time the request was signed; requests outside
	// the freshness window are rejected.
	Timestamp hexutil.Uint64 `json:"timestamp"`

	// Signature authenticates the registry owner.
	Signature hexutil.Bytes `json:"signature"`
}
