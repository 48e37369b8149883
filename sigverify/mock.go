package sigverify

import (
	"github.com/stretchr/testify/mock"
)

// MockContractVerifier mocks the interfaces.ContractVerifier interface.
type MockContractVerifier struct {
	mock.Mock
}

// IsValidSignature mocks the IsValidSignature method.
func (m *MockContractVerifier) IsValidSignature(hash [32]byte, signature []byte) ([4]byte, error) {
	args := m.Called(hash, signature)
	return args.Get(0).([4]byte), args.Error(1)
}
