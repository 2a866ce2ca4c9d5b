package cmd

import (
	"context"
	"fmt"
	"go/types"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/spf13/cobra"
	"github.com/stellar/go-stellar-sdk/clients/horizonclient"
	"github.com/stellar/go-stellar-sdk/keypair"
	"github.com/stellar/go-stellar-sdk/network"
	"github.com/stellar/go-stellar-sdk/support/config"

	cmdUtils "github.com/agentmarket/coordinator/cmd/utils"
	"github.com/agentmarket/coordinator/db"
	"github.com/agentmarket/coordinator/internal/crashtracker"
	"github.com/agentmarket/coordinator/internal/data"
	"github.com/agentmarket/coordinator/internal/dispatcher"
	"github.com/agentmarket/coordinator/internal/escrow"
	"github.com/agentmarket/coordinator/internal/identity"
	"github.com/agentmarket/coordinator/internal/logging"
	"github.com/agentmarket/coordinator/internal/monitor"
	"github.com/agentmarket/coordinator/internal/serve"
	"github.com/agentmarket/coordinator/internal/serve/httpclient"
	"github.com/agentmarket/coordinator/internal/utils"
)

type serveOptionsType struct {
	port               int
	corsAllowedOrigins []string

	escrowBackend      string
	escrowSigner       string
	escrowContract     string
	escrowRPC          string
	escrowChainID      int64
	escrowRetryMax     int
	escrowRetryBaseMs  int

	identityBackendURL      string
	identitySigner          string
	identityParentNamespace string
	identityResolver        string
	identityChainID         int64

	maxConcurrentSettlements int
}

type ServeCommand struct{}

// Command returns the "serve" subcommand: it builds the Store, the
// EscrowAdapter/IdentityAdapter variant selected by ESCROW_BACKEND and
// IDENTITY_BACKEND_URL, the SettlementDispatcher, and hands them to
// serve.Serve.
func (c *ServeCommand) Command(monitorService monitor.MonitorServiceInterface) *cobra.Command {
	opts := serveOptionsType{}
	crashTrackerOptions := crashtracker.CrashTrackerOptions{}

	configOpts := config.ConfigOptions{
		{
			Name:        "port",
			Usage:       "Port the HTTP API listens on.",
			OptType:     types.Int,
			FlagDefault: 3001,
			ConfigKey:   &opts.port,
			Required:    true,
		},
		{
			Name:           "cors-allowed-origins",
			Usage:          `Origins allowed to access the API, comma-separated, or "*".`,
			OptType:        types.String,
			FlagDefault:    "*",
			CustomSetValue: cmdUtils.SetCorsAllowedOrigins,
			ConfigKey:      &opts.corsAllowedOrigins,
			Required:       true,
		},
		{
			Name:           "escrow-backend",
			Usage:          `The EscrowAdapter variant: "onchain", "channel", or "simulated".`,
			OptType:        types.String,
			FlagDefault:    "simulated",
			CustomSetValue: cmdUtils.SetEscrowBackend,
			ConfigKey:      &opts.escrowBackend,
			Required:       true,
		},
		{
			Name:      "escrow-signer",
			Usage:     "Private signing material for the custodial escrow backend (Stellar secret seed for onchain, API key for channel).",
			OptType:   types.String,
			ConfigKey: &opts.escrowSigner,
			Required:  false,
		},
		{
			Name:      "escrow-contract",
			Usage:     "Contract or distribution-account identifier the escrow backend settles against.",
			OptType:   types.String,
			ConfigKey: &opts.escrowContract,
			Required:  false,
		},
		{
			Name:      "escrow-rpc",
			Usage:     "RPC/Horizon/base URL of the escrow backend.",
			OptType:   types.String,
			ConfigKey: &opts.escrowRPC,
			Required:  false,
		},
		{
			Name:      "escrow-chain-id",
			Usage:     "Numeric chain id of the escrow backend, when applicable.",
			OptType:   types.Int,
			ConfigKey: &opts.escrowChainID,
			Required:  false,
		},
		{
			Name:        "escrow-retry-max",
			Usage:       "Maximum retry attempts for a transient escrow backend failure.",
			OptType:     types.Int,
			FlagDefault: int(dispatcher.DefaultRetryMax),
			ConfigKey:   &opts.escrowRetryMax,
			Required:    true,
		},
		{
			Name:        "escrow-retry-base-ms",
			Usage:       "Base backoff delay, in milliseconds, between escrow retry attempts.",
			OptType:     types.Int,
			FlagDefault: int(dispatcher.DefaultRetryBaseDelay / time.Millisecond),
			ConfigKey:   &opts.escrowRetryBaseMs,
			Required:    true,
		},
		{
			Name:        "identity-backend-url",
			Usage:       `The IdentityAdapter backend: "simulated", or the Ethereum RPC URL of an ENS-style resolver.`,
			OptType:     types.String,
			FlagDefault: "simulated",
			ConfigKey:   &opts.identityBackendURL,
			Required:    true,
		},
		{
			Name:      "identity-signer",
			Usage:     "Private key (hex) that signs identity registration/attribute-write transactions.",
			OptType:   types.String,
			ConfigKey: &opts.identitySigner,
			Required:  false,
		},
		{
			Name:      "identity-parent-namespace",
			Usage:     `The ENS-style parent namespace new handles are registered under, e.g. "agents.coordinator.eth".`,
			OptType:   types.String,
			ConfigKey: &opts.identityParentNamespace,
			Required:  false,
		},
		{
			Name:      "identity-resolver-contract",
			Usage:     "Address of the ENS-style text resolver contract.",
			OptType:   types.String,
			ConfigKey: &opts.identityResolver,
			Required:  false,
		},
		{
			Name:        "identity-chain-id",
			Usage:       "Numeric chain id of the identity backend's network.",
			OptType:     types.Int,
			FlagDefault: 1,
			ConfigKey:   &opts.identityChainID,
			Required:    false,
		},
		{
			Name:        "max-concurrent-settlements",
			Usage:       "Maximum number of tasks the SettlementDispatcher will drain concurrently.",
			OptType:     types.Int,
			FlagDefault: dispatcher.DefaultMaxConcurrentSettlements,
			ConfigKey:   &opts.maxConcurrentSettlements,
			Required:    true,
		},
	}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the coordinator's HTTP API",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cmd.Parent().PersistentPreRun(cmd.Parent(), args)
			configOpts.Require()
			if err := configOpts.SetValues(); err != nil {
				logging.Fatalf("setting config option values: %s", err.Error())
			}
			globalOptions.populateCrashTrackerOptions(&crashTrackerOptions)

			metricOptions := monitor.MetricOptions{MetricType: monitor.MetricTypePrometheus, Environment: globalOptions.environment}
			if err := monitorService.Start(metricOptions); err != nil {
				logging.Fatalf("starting monitor service: %s", err.Error())
			}
		},
		Run: func(cmd *cobra.Command, _ []string) {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			dbConnectionPool, err := db.OpenDBConnectionPoolWithMetrics(ctx, globalOptions.storeURI, monitorService)
			if err != nil {
				logging.Fatalf("opening database connection pool: %s", err.Error())
			}

			models, err := data.NewModels(dbConnectionPool)
			if err != nil {
				logging.Fatalf("building models: %s", err.Error())
			}

			crashTrackerClient, err := crashtracker.GetClient(ctx, crashTrackerOptions)
			if err != nil {
				logging.Fatalf("building crash tracker client: %s", err.Error())
			}
			defer crashTrackerClient.Recover()

			escrowAdapter, err := buildEscrowAdapter(opts, monitorService)
			if err != nil {
				logging.Fatalf("building escrow adapter: %s", err.Error())
			}

			identityAdapter, err := buildIdentityAdapter(opts)
			if err != nil {
				logging.Fatalf("building identity adapter: %s", err.Error())
			}

			dispatcherSvc := dispatcher.New(dispatcher.Options{
				Models:                   models,
				EscrowAdapter:            escrowAdapter,
				IdentityAdapter:          identityAdapter,
				MaxConcurrentSettlements: opts.maxConcurrentSettlements,
				RetryMax:                 uint(opts.escrowRetryMax),
				RetryBaseDelay:           time.Duration(opts.escrowRetryBaseMs) * time.Millisecond,
			})

			if err := dispatcherSvc.RecoverStrandedTasks(ctx); err != nil {
				logging.Errorf("recovering stranded tasks: %s", err.Error())
			}

			err = serve.Serve(serve.Options{
				Port:               opts.port,
				DBConnectionPool:   dbConnectionPool,
				Models:             models,
				EscrowAdapter:      escrowAdapter,
				IdentityAdapter:    identityAdapter,
				Dispatcher:         dispatcherSvc,
				MonitorService:     monitorService,
				CorsAllowedOrigins: opts.corsAllowedOrigins,
			}, &serve.HTTPServer{})
			if err != nil {
				logging.Fatalf("starting server: %s", err.Error())
			}
		},
	}

	if err := configOpts.Init(cmd); err != nil {
		logging.Fatalf("initializing serve config options: %s", err.Error())
	}

	return cmd
}

func buildEscrowAdapter(opts serveOptionsType, monitorService monitor.MonitorServiceInterface) (escrow.Adapter, error) {
	switch opts.escrowBackend {
	case "simulated":
		return escrow.NewSimulatedAdapter(), nil
	case "channel":
		if err := utils.ValidateURLScheme(opts.escrowRPC, "http", "https"); err != nil {
			return nil, fmt.Errorf("validating escrow RPC URL: %w", err)
		}
		return escrow.NewChannelAdapter(escrow.ChannelAdapterOptions{
			BaseURL:        opts.escrowRPC,
			APIKey:         opts.escrowSigner,
			MonitorService: monitorService,
			RetryAttempts:  uint(opts.escrowRetryMax),
		}), nil
	case "onchain":
		if err := utils.ValidateURLScheme(opts.escrowRPC, "http", "https"); err != nil {
			return nil, fmt.Errorf("validating escrow RPC URL: %w", err)
		}
		signer, err := keypair.ParseFull(opts.escrowSigner)
		if err != nil {
			return nil, fmt.Errorf("parsing escrow signer: %w", err)
		}
		horizonClient := &horizonclient.Client{
			HorizonURL: opts.escrowRPC,
			HTTP:       httpclient.DefaultClient(),
		}
		return escrow.NewStellarAdapter(escrow.StellarAdapterOptions{
			HorizonClient:     horizonClient,
			Signer:            signer,
			NetworkPassphrase: network.PublicNetworkPassphrase,
		}), nil
	default:
		return nil, fmt.Errorf("unsupported escrow backend %q", opts.escrowBackend)
	}
}

func buildIdentityAdapter(opts serveOptionsType) (identity.Adapter, error) {
	if opts.identityBackendURL == "" || opts.identityBackendURL == "simulated" {
		return identity.NewSimulatedAdapter(), nil
	}

	if err := utils.ValidateURLScheme(opts.identityBackendURL, "http", "https", "ws", "wss"); err != nil {
		return nil, fmt.Errorf("validating identity backend RPC URL: %w", err)
	}

	client, err := ethclient.Dial(opts.identityBackendURL)
	if err != nil {
		return nil, fmt.Errorf("dialing identity backend RPC: %w", err)
	}

	return identity.NewENSAdapter(identity.ENSAdapterOptions{
		Client:          client,
		ResolverAddress: common.HexToAddress(opts.identityResolver),
		SignerKeyHex:    opts.identitySigner,
		ChainID:         big.NewInt(opts.identityChainID),
		ParentNamespace: opts.identityParentNamespace,
	})
}
