package registry

import (
	"github.com/stretchr/testify/mock"

	"github.com/claimable/account-registry-backend/interfaces"
)

// MockAccountService mocks the interfaces.AccountService interface for
// transport-level tests.
type MockAccountService struct {
	mock.Mock
}

// Account mocks the Account method.
func (m *MockAccountService) Account(salt interfaces.Salt) interfaces.AccountAddress {
	args := m.Called(salt)
	return args.Get(0).(interfaces.AccountAddress)
}

// CreateAccount mocks the CreateAccount method.
func (m *MockAccountService) CreateAccount(salt interfaces.Salt) (interfaces.AccountAddress, error) {
	args := m.Called(salt)
	return args.Get(0).(interfaces.AccountAddress), args.Error(1)
}

// ClaimAccount mocks the ClaimAccount method.
func (m *MockAccountService) ClaimAccount(owner interfaces.AccountAddress, salt interfaces.Salt, expiration uint64, message [32]byte, signature []byte) (interfaces.AccountAddress, error) {
	args := m.Called(owner, salt, expiration, message, signature)
	return args.Get(0).(interfaces.AccountAddress), args.Error(1)
}

// IsValidSignature mocks the IsValidSignature method.
func (m *MockAccountService) IsValidSignature(hash [32]byte, signature []byte) ([4]byte, error) {
	args := m.Called(hash, signature)
	return args.Get(0).([4]byte), args.Error(1)
}

// UpdateSigner mocks the UpdateSigner method.
func (m *MockAccountService) UpdateSigner(caller, newSigner interfaces.AccountAddress) (interfaces.SignerConfig, error) {
	args := m.Called(caller, newSigner)
	return args.Get(0).(interfaces.SignerConfig), args.Error(1)
}

// Signer mocks the Signer method.
func (m *MockAccountService) Signer() interfaces.SignerConfig {
	args := m.Called()
	return args.Get(0).(interfaces.SignerConfig)
}

// AccountState mocks the AccountState method.
func (m *MockAccountService) AccountState(salt interfaces.Salt) (interfaces.AccountStatus, error) {
	args := m.Called(salt)
	return args.Get(0).(interfaces.AccountStatus), args.Error(1)
}
