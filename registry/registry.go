// Package registry implements the account registry: deterministic address
// lookup, idempotent lazy deployment of proxy accounts, and the
// signature-gated claim protocol that transfers control of an account to its
// rightful owner exactly once.
package registry

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/claimable/account-registry-backend/deriver"
	"github.com/claimable/account-registry-backend/interfaces"
	"github.com/claimable/account-registry-backend/sigverify"
)

// Config carries the immutable registry parameters.
type Config struct {
	// Address is the registry's own identity. It scopes address derivation:
	// the same salt under a different registry yields a different address.
	Address interfaces.AccountAddress

	// Implementation is the account template every deployed proxy points at.
	// Immutable after construction; changing it would silently change every
	// future derived address.
	Implementation interfaces.AccountAddress

	// InitPayload is applied to every newly deployed account.
	InitPayload []byte

	// Owner is the administrative controller of the signer configuration.
	Owner interfaces.AccountAddress

	// Signer is the initial trusted claim signer.
	Signer interfaces.SignerConfig
}

// AccountRegistry orchestrates the address deriver, the signature verifier,
// and the deployment platform. Every public operation executes atomically
// under a single lock, giving serialized-transaction semantics: concurrent
// claims for one salt produce at most one deployment and at most one
// ownership transfer.
type AccountRegistry struct {
	mu sync.Mutex

	cfg          Config
	signer       interfaces.SignerConfig
	initCodeHash [32]byte

	deriver  interfaces.AddressDeriver
	platform interfaces.Platform
	factory  interfaces.InstanceFactory
	events   interfaces.EventSink
	log      *slog.Logger
	now      func() time.Time

	deployed map[interfaces.Salt]interfaces.AccountAddress
	claimed  map[interfaces.Salt]interfaces.AccountAddress
}

// Option tweaks registry construction.
type Option func(*AccountRegistry)

// WithClock overrides the time source used for expiration checks.
func WithClock(now func() time.Time) Option {
	return func(r *AccountRegistry) { r.now = now }
}

// WithEventSink attaches a sink for AccountCreated and AccountClaimed events.
func WithEventSink(sink interfaces.EventSink) Option {
	return func(r *AccountRegistry) { r.events = sink }
}

// New creates an account registry.
func New(cfg Config, d interfaces.AddressDeriver, platform interfaces.Platform, factory interfaces.InstanceFactory, log *slog.Logger, opts ...Option) (*AccountRegistry, error) {
	if cfg.Address.IsZero() {
		return nil, fmt.Errorf("registry address required")
	}
	if cfg.Implementation.IsZero() {
		return nil, fmt.Errorf("account implementation template required")
	}
	if cfg.Owner.IsZero() {
		return nil, fmt.Errorf("registry owner required")
	}
	if d == nil || platform == nil || factory == nil {
		return nil, fmt.Errorf("deriver, platform and factory are all required")
	}

	r := &AccountRegistry{
		cfg:          cfg,
		signer:       cfg.Signer,
		initCodeHash: deriver.InitCodeHash(deriver.ProxyInitCode(cfg.Implementation)),
		deriver:      d,
		platform:     platform,
		factory:      factory,
		log:          log,
		now:          time.Now,
		deployed:     make(map[interfaces.Salt]interfaces.AccountAddress),
		claimed:      make(map[interfaces.Salt]interfaces.AccountAddress),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Account returns the deterministic address for salt. Pure lookup: no
// precondition, no side effects, identical before and after deployment.
func (r *AccountRegistry) Account(salt interfaces.Salt) interfaces.AccountAddress {
	return r.deriver.Derive(r.cfg.Address, salt, r.initCodeHash)
}

// CreateAccount deploys the account for salt if it is not deployed yet.
// Idempotent: repeated invocation never redeploys, never errors, and always
// returns the same address.
func (r *AccountRegistry) CreateAccount(salt interfaces.Salt) (interfaces.AccountAddress, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ensureDeployed(salt)
}

// ensureDeployed is the idempotent deployment step. Callers hold r.mu.
// Either both code install and init succeed, or nothing changes.
func (r *AccountRegistry) ensureDeployed(salt interfaces.Salt) (interfaces.AccountAddress, error) {
	if addr, ok := r.deployed[salt]; ok {
		return addr, nil
	}

	addr := r.Account(salt)

	instance, err := r.factory.NewInstance(r.cfg.Address, addr, r, r.cfg.InitPayload)
	if err != nil {
		return interfaces.AccountAddress{}, fmt.Errorf("%w: %s", interfaces.ErrDeploymentFailed, err)
	}

	if err := r.platform.DeployInstance(addr, instance); err != nil {
		return interfaces.AccountAddress{}, fmt.Errorf("%w: %s", interfaces.ErrDeploymentFailed, err)
	}

	r.deployed[salt] = addr
	r.log.Info("Account created",
		"address", addr.String(),
		"implementation", r.cfg.Implementation.String(),
		"salt", salt.String())
	if r.events != nil {
		r.events.AccountCreated(interfaces.AccountCreatedEvent{
			Address:        addr,
			Implementation: r.cfg.Implementation,
			Salt:           salt,
		})
	}
	return addr, nil
}

// ClaimAccount verifies an off-chain-issued claim and transfers control of
// the salt's account to owner. Fails closed: an invalid or expired signature
// mutates nothing; a rejected control transfer leaves the account deployed
// but still registry-controlled, exactly as CreateAccount alone would have.
func (r *AccountRegistry) ClaimAccount(owner interfaces.AccountAddress, salt interfaces.Salt, expiration uint64, message [32]byte, signature []byte) (interfaces.AccountAddress, error) {
	if owner.IsZero() {
		return interfaces.AccountAddress{}, interfaces.ErrUnauthorized
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !sigverify.VerifyClaim(r.policy(), owner, salt, expiration, message, signature, r.now()) {
		return interfaces.AccountAddress{}, interfaces.ErrUnauthorized
	}

	addr, err := r.ensureDeployed(salt)
	if err != nil {
		return interfaces.AccountAddress{}, err
	}

	instance, ok := r.platform.InstanceAt(addr)
	if !ok {
		return interfaces.AccountAddress{}, fmt.Errorf("%w: no instance at %s", interfaces.ErrClaimFailed, addr)
	}

	if err := instance.SetOwner(r.cfg.Address, owner); err != nil {
		return interfaces.AccountAddress{}, fmt.Errorf("%w: %s", interfaces.ErrClaimFailed, err)
	}

	r.claimed[salt] = owner
	r.log.Info("Account claimed", "address", addr.String(), "owner", owner.String())
	if r.events != nil {
		r.events.AccountClaimed(interfaces.AccountClaimedEvent{Address: addr, Owner: owner})
	}
	return addr, nil
}

// IsValidSignature checks hash/signature against the registry's configured
// signer. Unclaimed accounts forward their own signature checks here, which
// lets them act as valid signers before they are claimed.
func (r *AccountRegistry) IsValidSignature(hash [32]byte, signature []byte) ([4]byte, error) {
	r.mu.Lock()
	policy := r.policy()
	r.mu.Unlock()

	if policy.Valid(hash, signature) {
		return interfaces.SignatureMagicValue, nil
	}
	return [4]byte{}, nil
}

// UpdateSigner replaces the trusted claim signer. Only the registry owner may
// call it; the signer kind is reclassified by probing whether the new
// identity holds deployed code. Already-claimed accounts are unaffected, they
// no longer trust the registry's signer.
func (r *AccountRegistry) UpdateSigner(caller, newSigner interfaces.AccountAddress) (interfaces.SignerConfig, error) {
	if caller != r.cfg.Owner {
		return interfaces.SignerConfig{}, fmt.Errorf("%w: caller %s is not the registry owner", interfaces.ErrForbidden, caller)
	}
	if newSigner.IsZero() {
		return interfaces.SignerConfig{}, fmt.Errorf("%w: zero signer", interfaces.ErrForbidden)
	}

	// An unclaimed account instance resolves its signature checks through
	// this registry, so trusting one as the claim signer would make the
	// registry vouch for itself.
	if _, isAccount := r.platform.InstanceAt(newSigner); isAccount {
		return interfaces.SignerConfig{}, fmt.Errorf("%w: account instances cannot act as the registry signer", interfaces.ErrForbidden)
	}

	kind := interfaces.SignerEOA
	if r.platform.IsContract(newSigner) {
		kind = interfaces.SignerContract
	}

	r.mu.Lock()
	r.signer = interfaces.SignerConfig{Identity: newSigner, Kind: kind}
	signer := r.signer
	r.mu.Unlock()

	r.log.Info("Registry signer updated", "signer", signer.Identity.String(), "kind", signer.Kind.String())
	return signer, nil
}

// Signer returns the currently configured claim signer.
func (r *AccountRegistry) Signer() interfaces.SignerConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.signer
}

// AccountState reports the lifecycle state for salt.
func (r *AccountRegistry) AccountState(salt interfaces.Salt) (interfaces.AccountStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	status := interfaces.AccountStatus{Address: r.Account(salt)}

	addr, ok := r.deployed[salt]
	if !ok {
		return status, nil
	}
	status.Deployed = true

	instance, ok := r.platform.InstanceAt(addr)
	if !ok {
		return status, fmt.Errorf("deployed account missing from platform: %s", addr)
	}
	status.Owner = instance.Owner()
	if owner, ok := r.claimed[salt]; ok {
		status.Claimed = true
		status.Owner = owner
	}
	return status, nil
}

// policy resolves the current signer configuration into a signature policy.
// Callers hold r.mu.
func (r *AccountRegistry) policy() sigverify.Policy {
	if r.signer.Kind == interfaces.SignerContract {
		verifier, ok := r.platform.VerifierAt(r.signer.Identity)
		if !ok {
			// Configured verifier disappeared from the platform; fail closed.
			return sigverify.DelegatedVerifierPolicy{}
		}
		return sigverify.DelegatedVerifierPolicy{Verifier: verifier}
	}
	return sigverify.RawKeyPolicy{Signer: r.signer.Identity}
}
