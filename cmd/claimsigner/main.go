package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/urfave/cli/v2"

	"github.com/claimable/account-registry-backend/api"
	"github.com/claimable/account-registry-backend/common"
	"github.com/claimable/account-registry-backend/interfaces"
	"github.com/claimable/account-registry-backend/sigverify"
)

var keyFlag = &cli.StringFlag{
	Name:     "key",
	Required: true,
	Usage:    "hex-encoded secp256k1 private key used to sign",
	EnvVars:  []string{"CLAIM_SIGNER_KEY"},
}

var ownerFlag = &cli.StringFlag{
	Name:     "owner",
	Required: true,
	Usage:    "address receiving control of the account. 40-char hex string",
}

var saltFlag = &cli.StringFlag{
	Name:     "salt",
	Required: true,
	Usage:    "account salt. Up to 64-char hex string, left-padded to 32 bytes",
}

var expiresInFlag = &cli.DurationFlag{
	Name:  "expires-in",
	Usage: "claim validity window from now; 0 issues a claim that never expires",
}

var signerFlag = &cli.StringFlag{
	Name:     "signer",
	Required: true,
	Usage:    "new claim signer address. 40-char hex string",
}

func main() {
	app := &cli.App{
		Name:    "claim-signer",
		Usage:   "Issue signed statements for the account registry",
		Version: common.Version,
		Commands: []*cli.Command{
			{
				Name:   "claim",
				Usage:  "Sign an account claim for an owner",
				Flags:  []cli.Flag{keyFlag, ownerFlag, saltFlag, expiresInFlag},
				Action: signClaim,
			},
			{
				Name:   "signer-update",
				Usage:  "Sign an admin signer-update request",
				Flags:  []cli.Flag{keyFlag, signerFlag},
				Action: signSignerUpdate,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func signClaim(cCtx *cli.Context) error {
	key, err := crypto.HexToECDSA(cCtx.String(keyFlag.Name))
	if err != nil {
		return fmt.Errorf("key: %w", err)
	}
	owner, err := interfaces.NewAccountAddressFromHex(cCtx.String(ownerFlag.Name))
	if err != nil {
		return fmt.Errorf("owner: %w", err)
	}
	salt, err := interfaces.NewSaltFromHex(cCtx.String(saltFlag.Name))
	if err != nil {
		return fmt.Errorf("salt: %w", err)
	}

	var expiration uint64
	if window := cCtx.Duration(expiresInFlag.Name); window > 0 {
		expiration = uint64(time.Now().Add(window).Unix())
	}

	message := sigverify.ClaimMessage(owner, salt, expiration)
	signature, err := crypto.Sign(message[:], key)
	if err != nil {
		return fmt.Errorf("signing failed: %w", err)
	}

	return printJSON(api.ClaimRequest{
		Owner:      owner.String(),
		Expiration: hexutil.Uint64(expiration),
		Message:    message[:],
		Signature:  signature,
	})
}

func signSignerUpdate(cCtx *cli.Context) error {
	key, err := crypto.HexToECDSA(cCtx.String(keyFlag.Name))
	if err != nil {
		return fmt.Errorf("key: %w", err)
	}
	signer, err := interfaces.NewAccountAddressFromHex(cCtx.String(signerFlag.Name))
	if err != nil {
		return fmt.Errorf("signer: %w", err)
	}

	timestamp := uint64(time.Now().Unix())
	digest := api.SignerUpdateDigest(signer, timestamp)
	signature, err := crypto.Sign(digest[:], key)
	if err != nil {
		return fmt.Errorf("signing failed: %w", err)
	}

	return printJSON(api.SignerUpdateRequest{
		Signer:    signer.String(),
		Timestamp: hexutil.Uint64(timestamp),
		Signature: signature,
	})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
