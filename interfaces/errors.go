package interfaces

import "errors"

// Error taxonomy for registry operations. All failures are reported
// synchronously as part of the operation's result; callers may retry freely
// because deployment is idempotent and claims fail closed.
var (
	// ErrDeploymentFailed means instance initialization was rejected. The
	// deployment is fully rolled back and no address becomes deployed.
	ErrDeploymentFailed = errors.New("account deployment failed")

	// ErrUnauthorized means the claim signature was invalid, expired, or did
	// not match the configured signer. No state was mutated. The specific
	// sub-reason is deliberately not disclosed.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrClaimFailed means deployment succeeded but the account's
	// control-transfer hook rejected the claim. The account remains
	// deployed and registry-controlled.
	ErrClaimFailed = errors.New("claim failed")

	// ErrForbidden means the caller lacks the required role for an admin or
	// owner-gated operation.
	ErrForbidden = errors.New("forbidden")

	// ErrAlreadyClaimed means control of the account has already left the
	// registry. Surfaced wrapped in ErrClaimFailed by ClaimAccount.
	ErrAlreadyClaimed = errors.New("account already claimed")

	// ErrAddressOccupied means a deployment targeted an address that already
	// holds code. With a fixed registry and template this indicates a
	// duplicate deployment attempt for the same salt.
	ErrAddressOccupied = errors.New("address already occupied")
)
