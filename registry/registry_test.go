package registry

import (
	"crypto/ecdsa"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claimable/account-registry-backend/account"
	"github.com/claimable/account-registry-backend/deriver"
	"github.com/claimable/account-registry-backend/interfaces"
	"github.com/claimable/account-registry-backend/ledger"
	"github.com/claimable/account-registry-backend/sigverify"
)

var (
	registryAddr, _ = interfaces.NewAccountAddressFromHex("0xf000000000000000000000000000000000000001")
	implAddr, _     = interfaces.NewAccountAddressFromHex("0xe000000000000000000000000000000000000001")
	adminAddr, _    = interfaces.NewAccountAddressFromHex("0xd000000000000000000000000000000000000001")
	ownerAddr, _    = interfaces.NewAccountAddressFromHex("0xb000000000000000000000000000000000000001")
	otherAddr, _    = interfaces.NewAccountAddressFromHex("0xb000000000000000000000000000000000000002")
)

var testTime = time.Unix(1_700_000_000, 0)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testEnv struct {
	registry  *AccountRegistry
	ledger    *ledger.Ledger
	signerKey *ecdsa.PrivateKey
	events    *capturedEvents
}

type capturedEvents struct {
	mu      sync.Mutex
	created []interfaces.AccountCreatedEvent
	claimed []interfaces.AccountClaimedEvent
}

func (c *capturedEvents) AccountCreated(ev interfaces.AccountCreatedEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.created = append(c.created, ev)
}

func (c *capturedEvents) AccountClaimed(ev interfaces.AccountClaimedEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.claimed = append(c.claimed, ev)
}

func setupRegistry(t *testing.T) *testEnv {
	t.Helper()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer := interfaces.AccountAddress(crypto.PubkeyToAddress(key.PublicKey))

	log := testLogger()
	l := ledger.New(log)
	events := &capturedEvents{}

	reg, err := New(Config{
		Address:        registryAddr,
		Implementation: implAddr,
		InitPayload:    []byte(`{"v":1}`),
		Owner:          adminAddr,
		Signer:         interfaces.SignerConfig{Identity: signer, Kind: interfaces.SignerEOA},
	},
		deriver.NewCreate2Deriver(),
		l,
		account.Factory{Ledger: l, Log: log},
		log,
		WithClock(func() time.Time { return testTime }),
		WithEventSink(events),
	)
	require.NoError(t, err)

	return &testEnv{registry: reg, ledger: l, signerKey: key, events: events}
}

func signClaim(t *testing.T, key *ecdsa.PrivateKey, owner interfaces.AccountAddress, salt interfaces.Salt, expiration uint64) ([32]byte, []byte) {
	t.Helper()

	message := sigverify.ClaimMessage(owner, salt, expiration)
	sig, err := crypto.Sign(message[:], key)
	require.NoError(t, err)
	return message, sig
}

func mustSalt(t *testing.T, s string) interfaces.Salt {
	t.Helper()

	salt, err := interfaces.NewSaltFromHex(s)
	require.NoError(t, err)
	return salt
}

func TestAccountAddressDeterminism(t *testing.T) {
	env := setupRegistry(t)
	salt := mustSalt(t, "0x01")

	before := env.registry.Account(salt)

	deployed, err := env.registry.CreateAccount(salt)
	require.NoError(t, err)

	after := env.registry.Account(salt)
	assert.Equal(t, before, deployed, "pre-deployment derivation must equal the deployed address")
	assert.Equal(t, before, after, "derivation must not change after deployment")
}

func TestCreateAccountIdempotent(t *testing.T) {
	env := setupRegistry(t)
	salt := mustSalt(t, "0x02")

	first, err := env.registry.CreateAccount(salt)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := env.registry.CreateAccount(salt)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}

	assert.Len(t, env.events.created, 1, "exactly one deployment")
}

func TestCreateAccountConcurrent(t *testing.T) {
	env := setupRegistry(t)
	salt := mustSalt(t, "0x03")

	const callers = 16
	addrs := make([]interfaces.AccountAddress, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			addrs[i], errs[i] = env.registry.CreateAccount(salt)
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, addrs[0], addrs[i])
	}
	assert.Len(t, env.events.created, 1, "no duplicate deployment under concurrency")
}

func TestDistinctSaltsDistinctAddresses(t *testing.T) {
	env := setupRegistry(t)

	a := env.registry.Account(mustSalt(t, "0x0a"))
	b := env.registry.Account(mustSalt(t, "0x0b"))
	assert.NotEqual(t, a, b)
}

func TestClaimAccountHappyPath(t *testing.T) {
	env := setupRegistry(t)
	salt := mustSalt(t, "0x11")

	derived := env.registry.Account(salt)
	deployed, err := env.registry.CreateAccount(salt)
	require.NoError(t, err)
	require.Equal(t, derived, deployed)

	// Before any claim the registry controls the account.
	status, err := env.registry.AccountState(salt)
	require.NoError(t, err)
	assert.True(t, status.Deployed)
	assert.False(t, status.Claimed)
	assert.Equal(t, registryAddr, status.Owner)

	message, sig := signClaim(t, env.signerKey, ownerAddr, salt, 0)
	claimedAddr, err := env.registry.ClaimAccount(ownerAddr, salt, 0, message, sig)
	require.NoError(t, err)
	assert.Equal(t, derived, claimedAddr)

	status, err = env.registry.AccountState(salt)
	require.NoError(t, err)
	assert.True(t, status.Claimed)
	assert.Equal(t, ownerAddr, status.Owner)

	require.Len(t, env.events.claimed, 1)
	assert.Equal(t, interfaces.AccountClaimedEvent{Address: derived, Owner: ownerAddr}, env.events.claimed[0])
}

func TestClaimDeploysLazily(t *testing.T) {
	env := setupRegistry(t)
	salt := mustSalt(t, "0x12")

	// No CreateAccount call beforehand; the claim itself deploys.
	message, sig := signClaim(t, env.signerKey, ownerAddr, salt, 0)
	addr, err := env.registry.ClaimAccount(ownerAddr, salt, 0, message, sig)
	require.NoError(t, err)
	assert.Equal(t, env.registry.Account(salt), addr)
	assert.Len(t, env.events.created, 1)
	assert.Len(t, env.events.claimed, 1)
}

func TestClaimInvalidSignatureMutatesNothing(t *testing.T) {
	env := setupRegistry(t)
	salt := mustSalt(t, "0x13")

	wrongKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	message, sig := signClaim(t, wrongKey, ownerAddr, salt, 0)

	_, err = env.registry.ClaimAccount(ownerAddr, salt, 0, message, sig)
	assert.ErrorIs(t, err, interfaces.ErrUnauthorized)

	// Claim atomicity: nothing deployed, nothing claimed.
	status, err := env.registry.AccountState(salt)
	require.NoError(t, err)
	assert.False(t, status.Deployed)
	assert.Empty(t, env.events.created)
	assert.Empty(t, env.events.claimed)
}

func TestClaimExpired(t *testing.T) {
	env := setupRegistry(t)
	salt := mustSalt(t, "0x14")

	past := uint64(testTime.Unix()) - 3600
	message, sig := signClaim(t, env.signerKey, ownerAddr, salt, past)

	_, err := env.registry.ClaimAccount(ownerAddr, salt, past, message, sig)
	assert.ErrorIs(t, err, interfaces.ErrUnauthorized)

	status, err := env.registry.AccountState(salt)
	require.NoError(t, err)
	assert.False(t, status.Deployed, "expired claim must not deploy")
}

func TestClaimMessageMismatch(t *testing.T) {
	env := setupRegistry(t)
	salt := mustSalt(t, "0x15")

	// Signature and message are for a different owner: replaying them for
	// another claim statement must fail.
	message, sig := signClaim(t, env.signerKey, otherAddr, salt, 0)
	_, err := env.registry.ClaimAccount(ownerAddr, salt, 0, message, sig)
	assert.ErrorIs(t, err, interfaces.ErrUnauthorized)
}

func TestSecondClaimAfterClaimed(t *testing.T) {
	env := setupRegistry(t)
	salt := mustSalt(t, "0x16")

	message, sig := signClaim(t, env.signerKey, ownerAddr, salt, 0)
	_, err := env.registry.ClaimAccount(ownerAddr, salt, 0, message, sig)
	require.NoError(t, err)

	// Even a freshly signed claim for a different owner fails: control has
	// left the registry.
	message2, sig2 := signClaim(t, env.signerKey, otherAddr, salt, 0)
	_, err = env.registry.ClaimAccount(otherAddr, salt, 0, message2, sig2)
	assert.ErrorIs(t, err, interfaces.ErrClaimFailed)
	assert.ErrorContains(t, err, "already claimed")

	status, err := env.registry.AccountState(salt)
	require.NoError(t, err)
	assert.Equal(t, ownerAddr, status.Owner)
	assert.Len(t, env.events.claimed, 1)
}

func TestConcurrentClaimsSingleTransfer(t *testing.T) {
	env := setupRegistry(t)
	salt := mustSalt(t, "0x17")

	owners := []interfaces.AccountAddress{ownerAddr, otherAddr}
	results := make([]error, len(owners))

	var wg sync.WaitGroup
	for i, owner := range owners {
		message, sig := signClaim(t, env.signerKey, owner, salt, 0)
		wg.Add(1)
		go func(i int, owner interfaces.AccountAddress, message [32]byte, sig []byte) {
			defer wg.Done()
			_, results[i] = env.registry.ClaimAccount(owner, salt, 0, message, sig)
		}(i, owner, message, sig)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, interfaces.ErrClaimFailed)
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one ownership transfer")
	assert.Len(t, env.events.created, 1, "exactly one deployment")
}

func TestClaimWithDelegatedVerifier(t *testing.T) {
	env := setupRegistry(t)
	salt := mustSalt(t, "0x18")

	verifierAddr, _ := interfaces.NewAccountAddressFromHex("0xc000000000000000000000000000000000000001")
	verifier := new(sigverify.MockContractVerifier)
	require.NoError(t, env.ledger.DeployVerifier(verifierAddr, verifier))

	signer, err := env.registry.UpdateSigner(adminAddr, verifierAddr)
	require.NoError(t, err)
	assert.Equal(t, interfaces.SignerContract, signer.Kind)

	message := sigverify.ClaimMessage(ownerAddr, salt, 0)
	sig := []byte("threshold-approval")
	verifier.On("IsValidSignature", message, sig).Return(interfaces.SignatureMagicValue, nil).Once()

	addr, err := env.registry.ClaimAccount(ownerAddr, salt, 0, message, sig)
	require.NoError(t, err)
	assert.Equal(t, env.registry.Account(salt), addr)
	verifier.AssertExpectations(t)

	// A rejecting verifier fails the claim closed.
	salt2 := mustSalt(t, "0x19")
	message2 := sigverify.ClaimMessage(ownerAddr, salt2, 0)
	verifier.On("IsValidSignature", message2, sig).Return([4]byte{}, nil).Once()
	_, err = env.registry.ClaimAccount(ownerAddr, salt2, 0, message2, sig)
	assert.ErrorIs(t, err, interfaces.ErrUnauthorized)
}

func TestUpdateSignerAdminOnly(t *testing.T) {
	env := setupRegistry(t)

	_, err := env.registry.UpdateSigner(otherAddr, ownerAddr)
	assert.ErrorIs(t, err, interfaces.ErrForbidden)

	signer, err := env.registry.UpdateSigner(adminAddr, ownerAddr)
	require.NoError(t, err)
	assert.Equal(t, interfaces.SignerEOA, signer.Kind, "plain address classifies as EOA")
	assert.Equal(t, ownerAddr, env.registry.Signer().Identity)

	_, err = env.registry.UpdateSigner(adminAddr, interfaces.AccountAddress{})
	assert.ErrorIs(t, err, interfaces.ErrForbidden)
}

func TestUpdateSignerRejectsOwnAccounts(t *testing.T) {
	env := setupRegistry(t)
	salt := mustSalt(t, "0x1a")

	addr, err := env.registry.CreateAccount(salt)
	require.NoError(t, err)

	_, err = env.registry.UpdateSigner(adminAddr, addr)
	assert.ErrorIs(t, err, interfaces.ErrForbidden)
}

func TestUpdateSignerDoesNotAffectClaimedAccounts(t *testing.T) {
	env := setupRegistry(t)
	salt := mustSalt(t, "0x1b")

	message, sig := signClaim(t, env.signerKey, ownerAddr, salt, 0)
	addr, err := env.registry.ClaimAccount(ownerAddr, salt, 0, message, sig)
	require.NoError(t, err)

	newKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	newSigner := interfaces.AccountAddress(crypto.PubkeyToAddress(newKey.PublicKey))
	_, err = env.registry.UpdateSigner(adminAddr, newSigner)
	require.NoError(t, err)

	// The claimed account still answers to its owner, not the new signer.
	instance, ok := env.ledger.InstanceAt(addr)
	require.True(t, ok)
	assert.Equal(t, ownerAddr, instance.Owner())

	digest := crypto.Keccak256Hash([]byte("statement"))
	newSignerSig, err := crypto.Sign(digest.Bytes(), newKey)
	require.NoError(t, err)
	magic, err := instance.IsValidSignature(digest, newSignerSig)
	require.NoError(t, err)
	assert.Equal(t, [4]byte{}, magic, "claimed account must not trust the registry signer")
}

func TestRegistryIsValidSignatureFallback(t *testing.T) {
	env := setupRegistry(t)
	salt := mustSalt(t, "0x1c")

	addr, err := env.registry.CreateAccount(salt)
	require.NoError(t, err)
	instance, ok := env.ledger.InstanceAt(addr)
	require.True(t, ok)

	// An unclaimed account validates signatures made by the registry's
	// configured signer.
	digest := crypto.Keccak256Hash([]byte("asset transfer approval"))
	sig, err := crypto.Sign(digest.Bytes(), env.signerKey)
	require.NoError(t, err)

	magic, err := instance.IsValidSignature(digest, sig)
	require.NoError(t, err)
	assert.Equal(t, interfaces.SignatureMagicValue, magic)

	wrongKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	badSig, err := crypto.Sign(digest.Bytes(), wrongKey)
	require.NoError(t, err)
	magic, err = instance.IsValidSignature(digest, badSig)
	require.NoError(t, err)
	assert.Equal(t, [4]byte{}, magic)
}

type failingFactory struct{}

func (failingFactory) NewInstance(registry, address interfaces.AccountAddress, fallback interfaces.ContractVerifier, initPayload []byte) (interfaces.AccountInstance, error) {
	return nil, errors.New("init payload rejected")
}

func TestCreateAccountDeploymentFailed(t *testing.T) {
	log := testLogger()
	l := ledger.New(log)

	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	reg, err := New(Config{
		Address:        registryAddr,
		Implementation: implAddr,
		Owner:          adminAddr,
		Signer:         interfaces.SignerConfig{Identity: interfaces.AccountAddress(crypto.PubkeyToAddress(key.PublicKey))},
	}, deriver.NewCreate2Deriver(), l, failingFactory{}, log)
	require.NoError(t, err)

	salt, _ := interfaces.NewSaltFromHex("0x21")
	_, err = reg.CreateAccount(salt)
	assert.ErrorIs(t, err, interfaces.ErrDeploymentFailed)

	// Nothing partially applied: the address holds no code and a claim via
	// ensureDeployed fails the same way.
	assert.False(t, l.IsContract(reg.Account(salt)))

	status, err := reg.AccountState(salt)
	require.NoError(t, err)
	assert.False(t, status.Deployed)

	message := sigverify.ClaimMessage(ownerAddr, salt, 0)
	sig, err := crypto.Sign(message[:], key)
	require.NoError(t, err)
	_, err = reg.ClaimAccount(ownerAddr, salt, 0, message, sig)
	assert.ErrorIs(t, err, interfaces.ErrDeploymentFailed)
}
