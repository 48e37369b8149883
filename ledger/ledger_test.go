package ledger

import (
	"errors"
	"io"
	"log/slog"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claimable/account-registry-backend/interfaces"
)

// stubInstance is a minimal account instance for ledger-level tests.
type stubInstance struct {
	owner     interfaces.AccountAddress
	rejectAll bool
	received  []*big.Int
}

func (s *stubInstance) Owner() interfaces.AccountAddress { return s.owner }

func (s *stubInstance) SetOwner(caller, newOwner interfaces.AccountAddress) error {
	s.owner = newOwner
	return nil
}

func (s *stubInstance) ExecuteCall(caller, target interfaces.AccountAddress, value *big.Int, data []byte) ([]byte, error) {
	return nil, nil
}

func (s *stubInstance) ReceiveValue(from interfaces.AccountAddress, amount *big.Int) error {
	if s.rejectAll {
		return errors.New("value not accepted")
	}
	s.received = append(s.received, amount)
	return nil
}

func (s *stubInstance) IsValidSignature(hash [32]byte, signature []byte) ([4]byte, error) {
	return [4]byte{}, nil
}

type stubVerifier struct{}

func (stubVerifier) IsValidSignature(hash [32]byte, signature []byte) ([4]byte, error) {
	return interfaces.SignatureMagicValue, nil
}

func newTestLedger() *Ledger {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func addr(b byte) interfaces.AccountAddress {
	var a interfaces.AccountAddress
	a[19] = b
	return a
}

func TestDeployAndProbe(t *testing.T) {
	l := newTestLedger()
	instanceAddr := addr(1)
	verifierAddr := addr(2)

	require.NoError(t, l.DeployInstance(instanceAddr, &stubInstance{}))
	require.NoError(t, l.DeployVerifier(verifierAddr, stubVerifier{}))

	assert.True(t, l.IsContract(instanceAddr))
	assert.True(t, l.IsContract(verifierAddr))
	assert.False(t, l.IsContract(addr(3)))

	_, ok := l.InstanceAt(instanceAddr)
	assert.True(t, ok)

	// A plain verifier is not an account instance.
	_, ok = l.InstanceAt(verifierAddr)
	assert.False(t, ok)

	// Both qualify as verifiers.
	_, ok = l.VerifierAt(instanceAddr)
	assert.True(t, ok)
	_, ok = l.VerifierAt(verifierAddr)
	assert.True(t, ok)
}

func TestDeployOccupiedAddress(t *testing.T) {
	l := newTestLedger()
	target := addr(1)

	require.NoError(t, l.DeployInstance(target, &stubInstance{}))

	err := l.DeployInstance(target, &stubInstance{})
	assert.ErrorIs(t, err, interfaces.ErrAddressOccupied)

	err = l.DeployVerifier(target, stubVerifier{})
	assert.ErrorIs(t, err, interfaces.ErrAddressOccupied)
}

func TestDeployNilContract(t *testing.T) {
	l := newTestLedger()
	err := l.DeployInstance(addr(1), nil)
	assert.ErrorIs(t, err, interfaces.ErrDeploymentFailed)
}

func TestTransfer(t *testing.T) {
	l := newTestLedger()
	from, to := addr(1), addr(2)

	l.Credit(from, big.NewInt(100))
	require.NoError(t, l.Transfer(from, to, big.NewInt(60)))

	assert.Equal(t, big.NewInt(40), l.BalanceAt(from))
	assert.Equal(t, big.NewInt(60), l.BalanceAt(to))
}

func TestTransferInsufficientBalance(t *testing.T) {
	l := newTestLedger()
	from, to := addr(1), addr(2)

	l.Credit(from, big.NewInt(10))
	err := l.Transfer(from, to, big.NewInt(11))
	require.Error(t, err)

	// Nothing moved.
	assert.Equal(t, big.NewInt(10), l.BalanceAt(from))
	assert.Equal(t, big.NewInt(0), l.BalanceAt(to))
}

func TestTransferThroughInstanceHook(t *testing.T) {
	l := newTestLedger()
	from, to := addr(1), addr(2)
	instance := &stubInstance{}

	require.NoError(t, l.DeployInstance(to, instance))
	l.Credit(from, big.NewInt(100))

	require.NoError(t, l.Transfer(from, to, big.NewInt(25)))
	require.Len(t, instance.received, 1)
	assert.Equal(t, big.NewInt(25), instance.received[0])
	assert.Equal(t, big.NewInt(25), l.BalanceAt(to))
}

func TestTransferRejectedByInstance(t *testing.T) {
	l := newTestLedger()
	from, to := addr(1), addr(2)

	require.NoError(t, l.DeployInstance(to, &stubInstance{rejectAll: true}))
	l.Credit(from, big.NewInt(100))

	err := l.Transfer(from, to, big.NewInt(25))
	require.Error(t, err)

	// All-or-nothing: balances untouched after rejection.
	assert.Equal(t, big.NewInt(100), l.BalanceAt(from))
	assert.Equal(t, big.NewInt(0), l.BalanceAt(to))
}

func TestTransferInvalidAmount(t *testing.T) {
	l := newTestLedger()
	from, to := addr(1), addr(2)
	l.Credit(from, big.NewInt(100))

	assert.Error(t, l.Transfer(from, to, nil))
	assert.Error(t, l.Transfer(from, to, big.NewInt(-1)))
}
