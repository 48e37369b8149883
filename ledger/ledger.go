// Package ledger provides an in-process deployment platform with
// serialized-transaction semantics. It stands in for the ledger the registry
// runs on: content-addressed instantiation at pre-derived addresses, code
// probing, and value transfers. Every operation executes atomically under a
// single lock with no interleaving, so callers observe all-or-nothing
// effects.
package ledger

import (
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/claimable/account-registry-backend/interfaces"
)

// Ledger is an in-memory deployment backend. It implements
// interfaces.Platform.
type Ledger struct {
	mu        sync.RWMutex
	contracts map[interfaces.AccountAddress]any
	balances  map[interfaces.AccountAddress]*big.Int
	log       *slog.Logger
}

// New creates an empty ledger.
func New(log *slog.Logger) *Ledger {
	return &Ledger{
		contracts: make(map[interfaces.AccountAddress]any),
		balances:  make(map[interfaces.AccountAddress]*big.Int),
		log:       log,
	}
}

// DeployInstance installs an account instance at addr. The address must have
// been derived beforehand; deploying over existing code fails with
// ErrAddressOccupied and leaves the ledger unchanged.
func (l *Ledger) DeployInstance(addr interfaces.AccountAddress, instance interfaces.AccountInstance) error {
	return l.deploy(addr, instance)
}

// DeployVerifier installs a contract verifier at addr. Used to stand up
// delegated signer contracts (multisig or threshold verifiers).
func (l *Ledger) DeployVerifier(addr interfaces.AccountAddress, verifier interfaces.ContractVerifier) error {
	return l.deploy(addr, verifier)
}

func (l *Ledger) deploy(addr interfaces.AccountAddress, contract any) error {
	if contract == nil {
		return fmt.Errorf("%w: nil contract", interfaces.ErrDeploymentFailed)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, occupied := l.contracts[addr]; occupied {
		return fmt.Errorf("%w: %s", interfaces.ErrAddressOccupied, addr)
	}

	l.contracts[addr] = contract
	l.log.Debug("Contract deployed", "address", addr.String())
	return nil
}

// InstanceAt returns the account instance deployed at addr, if any.
func (l *Ledger) InstanceAt(addr interfaces.AccountAddress) (interfaces.AccountInstance, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	instance, ok := l.contracts[addr].(interfaces.AccountInstance)
	return instance, ok
}

// VerifierAt returns the contract verifier deployed at addr, if any. Account
// instances qualify: they expose the same signature-validation entry point.
func (l *Ledger) VerifierAt(addr interfaces.AccountAddress) (interfaces.ContractVerifier, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	verifier, ok := l.contracts[addr].(interfaces.ContractVerifier)
	return verifier, ok
}

// IsContract reports whether addr holds deployed code of any kind.
func (l *Ledger) IsContract(addr interfaces.AccountAddress) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	_, ok := l.contracts[addr]
	return ok
}

// Transfer moves value between addresses. A transfer to a deployed account
// instance goes through its value-receiving entry point; if the instance
// rejects it the whole transfer is discarded.
func (l *Ledger) Transfer(from, to interfaces.AccountAddress, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("invalid transfer amount")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	balance := l.balances[from]
	if balance == nil || balance.Cmp(amount) < 0 {
		return fmt.Errorf("insufficient balance at %s", from)
	}

	if instance, ok := l.contracts[to].(interfaces.AccountInstance); ok {
		if err := instance.ReceiveValue(from, amount); err != nil {
			return fmt.Errorf("transfer rejected by %s: %w", to, err)
		}
	}

	l.balances[from] = new(big.Int).Sub(balance, amount)
	l.credit(to, amount)
	return nil
}

// Credit mints balance at addr. Test and bootstrap helper.
func (l *Ledger) Credit(addr interfaces.AccountAddress, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(addr, amount)
}

func (l *Ledger) credit(addr interfaces.AccountAddress, amount *big.Int) {
	balance := l.balances[addr]
	if balance == nil {
		balance = new(big.Int)
	}
	l.balances[addr] = new(big.Int).Add(balance, amount)
}

// BalanceAt returns the current balance of addr.
func (l *Ledger) BalanceAt(addr interfaces.AccountAddress) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	balance := l.balances[addr]
	if balance == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(balance)
}
