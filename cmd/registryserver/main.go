package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/claimable/account-registry-backend/account"
	"github.com/claimable/account-registry-backend/api/handlers"
	"github.com/claimable/account-registry-backend/cmd/flags"
	"github.com/claimable/account-registry-backend/common"
	"github.com/claimable/account-registry-backend/deriver"
	"github.com/claimable/account-registry-backend/httpserver"
	"github.com/claimable/account-registry-backend/index"
	"github.com/claimable/account-registry-backend/interfaces"
	"github.com/claimable/account-registry-backend/ledger"
	"github.com/claimable/account-registry-backend/metrics"
	"github.com/claimable/account-registry-backend/registry"
)

var serverFlags = append([]cli.Flag{
	flags.ListenAddrFlag,
	flags.RegistryAddrFlag,
	flags.ImplementationAddrFlag,
	flags.RegistryOwnerFlag,
	flags.SignerAddrFlag,
	flags.InitPayloadFlag,
	flags.PostgresDSNFlag,
	flags.LogServiceFlagFn(common.PackageName),
}, flags.CommonFlags...)

func main() {
	// Local development keeps its settings in a .env file; absence is fine.
	_ = godotenv.Load()

	app := &cli.App{
		Name:    "registry-server",
		Usage:   "Serve the deterministic account registry API",
		Version: common.Version,
		Flags:   serverFlags,
		Action:  runServer,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func runServer(cCtx *cli.Context) error {
	logger := flags.SetupLogger(cCtx)

	cfg, err := registryConfig(cCtx)
	if err != nil {
		logger.Error("Invalid registry configuration", "err", err)
		return err
	}

	m := metrics.New(strings.ReplaceAll(common.PackageName, "-", "_"))

	platform := ledger.New(logger)
	factory := account.Factory{Ledger: platform, Events: m, Log: logger}

	store, err := buildStore(cCtx)
	if err != nil {
		logger.Error("Failed to initialize account index", "err", err)
		return err
	}
	recorder := index.NewRecorder(store, logger)

	service, err := registry.New(cfg, deriver.NewCreate2Deriver(), platform, factory, logger,
		registry.WithEventSink(recorder))
	if err != nil {
		logger.Error("Failed to create registry", "err", err)
		return err
	}

	handler := handlers.NewHandler(service, store, m, logger)

	serverCfg := flags.ConfigureServer(cCtx, logger, cCtx.String(flags.ListenAddrFlag.Name))
	srv := httpserver.New(serverCfg, handler)
	srv.RunInBackground()

	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
	<-exit

	logger.Info("Shutting down")
	srv.Shutdown()
	recorder.Close()
	return nil
}

func registryConfig(cCtx *cli.Context) (registry.Config, error) {
	registryAddr, err := interfaces.NewAccountAddressFromHex(cCtx.String(flags.RegistryAddrFlag.Name))
	if err != nil {
		return registry.Config{}, fmt.Errorf("registry-address: %w", err)
	}
	implementation, err := interfaces.NewAccountAddressFromHex(cCtx.String(flags.ImplementationAddrFlag.Name))
	if err != nil {
		return registry.Config{}, fmt.Errorf("implementation-address: %w", err)
	}
	owner, err := interfaces.NewAccountAddressFromHex(cCtx.String(flags.RegistryOwnerFlag.Name))
	if err != nil {
		return registry.Config{}, fmt.Errorf("registry-owner: %w", err)
	}
	signer, err := interfaces.NewAccountAddressFromHex(cCtx.String(flags.SignerAddrFlag.Name))
	if err != nil {
		return registry.Config{}, fmt.Errorf("signer-address: %w", err)
	}

	var initPayload []byte
	if raw := cCtx.String(flags.InitPayloadFlag.Name); raw != "" {
		initPayload, err = hex.DecodeString(strings.TrimPrefix(raw, "0x"))
		if err != nil {
			return registry.Config{}, fmt.Errorf("init-payload: %w", err)
		}
	}

	return registry.Config{
		Address:        registryAddr,
		Implementation: implementation,
		InitPayload:    initPayload,
		Owner:          owner,
		Signer:         interfaces.SignerConfig{Identity: signer, Kind: interfaces.SignerEOA},
	}, nil
}

func buildStore(cCtx *cli.Context) (index.Store, error) {
	dsn := cCtx.String(flags.PostgresDSNFlag.Name)
	if dsn == "" {
		return index.NewMemoryStore(), nil
	}
	return index.NewPostgresStore(context.Background(), dsn)
}
