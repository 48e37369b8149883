// Package common holds shared build metadata and logger setup used by
// every command and server in the account registry backend.
package common

// PackageName identifies this service in logs and metrics.
const PackageName = "account-registry-backend"

// Version is overridden at build time via -ldflags.
var Version = "dev"
