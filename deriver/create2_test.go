package deriver

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claimable/account-registry-backend/interfaces"
)

func TestDeriveMatchesCreate2(t *testing.T) {
	// Cross-check the derivation against go-ethereum's reference
	// implementation of the same formula.
	deployer, err := interfaces.NewAccountAddressFromHex("0x00000000000000000000000000000000deadbeef")
	require.NoError(t, err)

	salt, err := interfaces.NewSaltFromHex("0x01")
	require.NoError(t, err)

	initCode := ProxyInitCode(deployer)
	codeHash := InitCodeHash(initCode)

	got := NewCreate2Deriver().Derive(deployer, salt, codeHash)

	want := crypto.CreateAddress2(common.Address(deployer), [32]byte(salt), crypto.Keccak256(initCode))
	assert.Equal(t, want.Bytes(), got.Bytes())
}

func TestDeriveIsDeterministic(t *testing.T) {
	deployer, err := interfaces.NewAccountAddressFromHex("0x1111111111111111111111111111111111111111")
	require.NoError(t, err)

	impl, err := interfaces.NewAccountAddressFromHex("0x2222222222222222222222222222222222222222")
	require.NoError(t, err)

	salt, err := interfaces.NewSaltFromHex("0xabcdef")
	require.NoError(t, err)

	d := NewCreate2Deriver()
	codeHash := InitCodeHash(ProxyInitCode(impl))

	first := d.Derive(deployer, salt, codeHash)
	second := d.Derive(deployer, salt, codeHash)
	assert.Equal(t, first, second)
	assert.False(t, first.IsZero())
}

func TestDeriveDistinguishesInputs(t *testing.T) {
	deployer, _ := interfaces.NewAccountAddressFromHex("0x1111111111111111111111111111111111111111")
	otherDeployer, _ := interfaces.NewAccountAddressFromHex("0x3333333333333333333333333333333333333333")
	impl, _ := interfaces.NewAccountAddressFromHex("0x2222222222222222222222222222222222222222")
	otherImpl, _ := interfaces.NewAccountAddressFromHex("0x4444444444444444444444444444444444444444")

	saltA, _ := interfaces.NewSaltFromHex("0x01")
	saltB, _ := interfaces.NewSaltFromHex("0x02")

	d := NewCreate2Deriver()
	codeHash := InitCodeHash(ProxyInitCode(impl))

	base := d.Derive(deployer, saltA, codeHash)

	assert.NotEqual(t, base, d.Derive(deployer, saltB, codeHash), "different salts must yield different addresses")
	assert.NotEqual(t, base, d.Derive(otherDeployer, saltA, codeHash), "different deployers must yield different addresses")
	assert.NotEqual(t, base, d.Derive(deployer, saltA, InitCodeHash(ProxyInitCode(otherImpl))), "different templates must yield different addresses")
}

func TestProxyInitCodeEmbedsImplementation(t *testing.T) {
	impl, err := interfaces.NewAccountAddressFromHex("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	require.NoError(t, err)

	code := ProxyInitCode(impl)
	assert.Len(t, code, 55)
	assert.Equal(t, impl.Bytes(), code[20:40])
}

func TestInitCodeHashMatchesKeccak(t *testing.T) {
	data := []byte("account template init code")
	got := InitCodeHash(data)
	assert.Equal(t, crypto.Keccak256(data), got[:])
}
