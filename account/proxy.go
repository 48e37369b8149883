// Package account implements the deployed account instance: a proxy unit of
// asset custody controlled by the registry until claimed, and by its named
// owner afterwards.
package account

import (
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/claimable/account-registry-backend/interfaces"
	"github.com/claimable/account-registry-backend/sigverify"
)

// ValueTransferrer moves value out of the account during ExecuteCall. The
// ledger satisfies it.
type ValueTransferrer interface {
	Transfer(from, to interfaces.AccountAddress, amount *big.Int) error
}

// Proxy is an account instance. It starts under registry control (the
// registry address is its owner) and transfers control exactly once via
// SetOwner. While unclaimed its signature checks delegate to the registry's
// configured signer; once claimed they verify against the real owner.
type Proxy struct {
	mu sync.Mutex

	address  interfaces.AccountAddress
	registry interfaces.AccountAddress
	fallback interfaces.ContractVerifier
	ledger   ValueTransferrer
	events   interfaces.CallSink
	log      *slog.Logger

	owner   interfaces.AccountAddress
	claimed bool
	payload []byte
}

// Config carries the construction parameters applied at deployment.
type Config struct {
	// Address is the pre-derived address this instance is deployed at.
	Address interfaces.AccountAddress

	// Registry is the controlling registry's identity.
	Registry interfaces.AccountAddress

	// Fallback resolves signature checks while the account is unclaimed.
	Fallback interfaces.ContractVerifier

	// Ledger carries outgoing value transfers. Optional; without it
	// ExecuteCall can only execute zero-value calls.
	Ledger ValueTransferrer

	// Events receives a TransactionExecuted event for every successful
	// ExecuteCall. Optional.
	Events interfaces.CallSink

	Log *slog.Logger
}

// NewProxy constructs an account instance and applies the registry's init
// payload. A rejected payload fails the whole deployment.
func NewProxy(cfg Config, initPayload []byte) (*Proxy, error) {
	if cfg.Registry.IsZero() {
		return nil, fmt.Errorf("account init: registry address required")
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}

	p := &Proxy{
		address:  cfg.Address,
		registry: cfg.Registry,
		fallback: cfg.Fallback,
		ledger:   cfg.Ledger,
		events:   cfg.Events,
		log:      cfg.Log,
		owner:    cfg.Registry,
		payload:  initPayload,
	}
	return p, nil
}

// Owner returns the current controller: the registry while unclaimed, the
// named owner afterwards.
func (p *Proxy) Owner() interfaces.AccountAddress {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.owner
}

// SetOwner transfers control of the account. Permitted for the current owner
// always, and for the registry only while the account is unclaimed. Once
// control leaves the registry it never returns: the registry cannot reclaim.
func (p *Proxy) SetOwner(caller, newOwner interfaces.AccountAddress) error {
	if newOwner.IsZero() {
		return fmt.Errorf("%w: zero owner", interfaces.ErrForbidden)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case caller == p.owner && p.claimed:
		// Owner hands the account on.
	case caller == p.registry && !p.claimed:
		// Registry completes a claim.
	default:
		if caller == p.registry {
			return interfaces.ErrAlreadyClaimed
		}
		return fmt.Errorf("%w: caller %s does not control account", interfaces.ErrForbidden, caller)
	}

	p.owner = newOwner
	p.claimed = true
	p.log.Info("Account owner updated", "account", p.address.String(), "owner", newOwner.String())
	return nil
}

// Claimed reports whether control has left the registry.
func (p *Proxy) Claimed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.claimed
}

// ExecuteCall performs an arbitrary call as the account, gated to the current
// controller. Value moves through the ledger; the call data is carried opaque
// to the target.
func (p *Proxy) ExecuteCall(caller, target interfaces.AccountAddress, value *big.Int, data []byte) ([]byte, error) {
	p.mu.Lock()
	if caller != p.owner {
		p.mu.Unlock()
		return nil, fmt.Errorf("%w: caller %s is not the account owner", interfaces.ErrForbidden, caller)
	}
	ledger := p.ledger
	p.mu.Unlock()

	if value != nil && value.Sign() > 0 {
		if ledger == nil {
			return nil, fmt.Errorf("no ledger attached, cannot transfer value")
		}
		// Transfer runs outside the proxy lock: the target may be another
		// account instance taking its own lock on receive.
		if err := ledger.Transfer(p.address, target, value); err != nil {
			return nil, err
		}
	}

	p.log.Info("Transaction executed",
		"account", p.address.String(),
		"target", target.String(),
		"value", value,
		"dataLen", len(data))
	if p.events != nil {
		p.events.TransactionExecuted(interfaces.TransactionExecutedEvent{
			Account: p.address,
			Target:  target,
			Value:   value,
			Data:    data,
		})
	}
	return nil, nil
}

// ReceiveValue accepts an incoming transfer. Always acknowledged; the account
// is a plain value receiver.
func (p *Proxy) ReceiveValue(from interfaces.AccountAddress, amount *big.Int) error {
	p.log.Debug("Value received", "account", p.address.String(), "from", from.String(), "amount", amount)
	return nil
}

// IsValidSignature lets the account act as a signer. Unclaimed accounts
// forward to the registry's configured signer path so assets requiring owner
// signatures interoperate before the claim; claimed accounts verify against
// their real owner.
func (p *Proxy) IsValidSignature(hash [32]byte, signature []byte) ([4]byte, error) {
	p.mu.Lock()
	claimed, owner, fallback := p.claimed, p.owner, p.fallback
	p.mu.Unlock()

	if !claimed {
		if fallback == nil {
			return [4]byte{}, nil
		}
		return fallback.IsValidSignature(hash, signature)
	}

	if (sigverify.RawKeyPolicy{Signer: owner}).Valid(hash, signature) {
		return interfaces.SignatureMagicValue, nil
	}
	return [4]byte{}, nil
}

// Factory builds proxies for the registry's deployments.
type Factory struct {
	Ledger ValueTransferrer
	Events interfaces.CallSink
	Log    *slog.Logger
}

// NewInstance implements interfaces.InstanceFactory.
func (f Factory) NewInstance(registry, address interfaces.AccountAddress, fallback interfaces.ContractVerifier, initPayload []byte) (interfaces.AccountInstance, error) {
	return NewProxy(Config{
		Address:  address,
		Registry: registry,
		Fallback: fallback,
		Ledger:   f.Ledger,
		Events:   f.Events,
		Log:      f.Log,
	}, initPayload)
}
