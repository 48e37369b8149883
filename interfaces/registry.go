package interfaces

import "math/big"

// AddressDeriver computes a deterministic account address from the registry
// identity, the account template's init code hash, and a salt. The result is
// a pure function of its inputs: it must match the address produced at
// deployment time bit-for-bit and be computable before deployment.
type AddressDeriver interface {
	Derive(deployer AccountAddress, salt Salt, initCodeHash [32]byte) AccountAddress
}

// ContractVerifier is the signature-validation entry point a deployed
// verifier contract exposes (ERC-1271 shape). It returns SignatureMagicValue
// for a valid signature and the zero value otherwise.
type ContractVerifier interface {
	IsValidSignature(hash [32]byte, signature []byte) ([4]byte, error)
}

// AccountInstance is the deployed unit whose ownership the registry controls
// until claimed. Callers are passed explicitly; the instance enforces its own
// access control against them.
type AccountInstance interface {
	ContractVerifier

	// Owner returns the current controller of the instance.
	Owner() AccountAddress

	// SetOwner transfers control to newOwner. Permitted only for the current
	// owner, or for the registry while the instance is unclaimed.
	SetOwner(caller, newOwner AccountAddress) error

	// ExecuteCall performs an arbitrary call as the account. Gated to the
	// current controller.
	ExecuteCall(caller, target AccountAddress, value *big.Int, data []byte) ([]byte, error)

	// ReceiveValue accepts an incoming value transfer.
	ReceiveValue(from AccountAddress, amount *big.Int) error
}

// InstanceFactory constructs fresh account instances for deployment. The
// registry applies its immutable init payload through it; a factory error
// rejects the whole deployment.
type InstanceFactory interface {
	NewInstance(registry, address AccountAddress, fallback ContractVerifier, initPayload []byte) (AccountInstance, error)
}

// Platform is the deployment ledger the registry runs on. It provides
// content-addressed instantiation at a pre-derived address, instance lookup,
// and code probing for signer-kind classification. Implementations must give
// every call serialized-transaction semantics.
type Platform interface {
	// DeployInstance installs an account instance at addr. Fails with
	// ErrAddressOccupied if the address already holds code.
	DeployInstance(addr AccountAddress, instance AccountInstance) error

	// InstanceAt returns the account instance deployed at addr, if any.
	InstanceAt(addr AccountAddress) (AccountInstance, bool)

	// VerifierAt returns the contract verifier deployed at addr, if any.
	VerifierAt(addr AccountAddress) (ContractVerifier, bool)

	// IsContract reports whether addr holds deployed code of any kind.
	IsContract(addr AccountAddress) bool
}

// EventSink receives registry events. Sinks must not block; failures are the
// sink's concern and never abort the operation that produced the event.
type EventSink interface {
	AccountCreated(ev AccountCreatedEvent)
	AccountClaimed(ev AccountClaimedEvent)
}

// CallSink receives transaction events from account instances. The same
// non-blocking contract as EventSink applies.
type CallSink interface {
	TransactionExecuted(ev TransactionExecutedEvent)
}

// AccountService is the registry's public surface as consumed by transports
// (HTTP API, CLI). The registry implementation satisfies it.
type AccountService interface {
	// Account returns the deterministic address for salt. Read-only, always
	// succeeds.
	Account(salt Salt) AccountAddress

	// CreateAccount lazily deploys the account for salt. Idempotent: repeat
	// calls return the same address with no error and no redeployment.
	CreateAccount(salt Salt) (AccountAddress, error)

	// ClaimAccount verifies an off-chain-issued claim signature, ensures the
	// account is deployed, and transfers control to owner. Fails closed.
	ClaimAccount(owner AccountAddress, salt Salt, expiration uint64, message [32]byte, signature []byte) (AccountAddress, error)

	// IsValidSignature checks hash/signature against the registry's
	// configured signer so unclaimed accounts can satisfy external
	// signature-verification checks.
	IsValidSignature(hash [32]byte, signature []byte) ([4]byte, error)

	// UpdateSigner replaces the trusted claim signer. Restricted to the
	// registry owner; the kind is reclassified by probing the platform.
	UpdateSigner(caller AccountAddress, newSigner AccountAddress) (SignerConfig, error)

	// Signer returns the currently configured claim signer.
	Signer() SignerConfig

	// AccountState reports deployment and claim status for salt.
	AccountState(salt Salt) (AccountStatus, error)
}

// AccountStatus is a read-only snapshot of one account's lifecycle state.
type AccountStatus struct {
	Address  AccountAddress `json:"address"`
	Deployed bool           `json:"deployed"`
	Claimed  bool           `json:"claimed"`
	Owner    AccountAddress `json:"owner"`
}
