package cmd

import (
	"go/types"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stellar/go-stellar-sdk/support/config"

	cmdUtils "github.com/agentmarket/coordinator/cmd/utils"
	"github.com/agentmarket/coordinator/internal/crashtracker"
	"github.com/agentmarket/coordinator/internal/logging"
	"github.com/agentmarket/coordinator/internal/monitor"
)

// globalOptionsType holds the config values shared by every subcommand.
type globalOptionsType struct {
	logLevel         logrus.Level
	environment      string
	sentryDSN        string
	crashTrackerType crashtracker.CrashTrackerType
	storeURI         string
	version          string
	gitCommit        string
}

func (g globalOptionsType) populateCrashTrackerOptions(opts *crashtracker.CrashTrackerOptions) {
	opts.CrashTrackerType = g.crashTrackerType
	if g.crashTrackerType == crashtracker.CrashTrackerTypeSentry {
		opts.SentryDSN = g.sentryDSN
	}
	opts.Environment = g.environment
	opts.GitCommit = g.gitCommit
}

var globalOptions globalOptionsType

func rootCmd() *cobra.Command {
	configOpts := config.ConfigOptions{
		{
			Name:           "log-level",
			Usage:          `The log level used in this project. Options: "TRACE", "DEBUG", "INFO", "WARN", "ERROR", "FATAL", or "PANIC".`,
			OptType:        types.String,
			FlagDefault:    "INFO",
			ConfigKey:      &globalOptions.logLevel,
			CustomSetValue: cmdUtils.SetConfigOptionLogLevel,
			Required:       true,
		},
		{
			Name:        "environment",
			Usage:       `The environment this coordinator is running in. Example: "development", "staging", "production".`,
			OptType:     types.String,
			FlagDefault: "development",
			ConfigKey:   &globalOptions.environment,
			Required:    true,
		},
		{
			Name:      "sentry-dsn",
			Usage:     "The DSN (client key) of the Sentry project. If not provided, crashes are logged but not reported.",
			OptType:   types.String,
			ConfigKey: &globalOptions.sentryDSN,
			Required:  false,
		},
		{
			Name:        "crash-tracker-type",
			Usage:       `The crash tracker client to use. Options: "SENTRY" or "DRY_RUN".`,
			OptType:     types.String,
			FlagDefault: string(crashtracker.CrashTrackerTypeDryRun),
			ConfigKey:   &globalOptions.crashTrackerType,
			CustomSetValue: func(co *config.ConfigOption) error {
				parsed, err := crashtracker.ParseCrashTrackerType(viper.GetString(co.Name))
				if err != nil {
					return err
				}
				*(co.ConfigKey.(*crashtracker.CrashTrackerType)) = parsed
				return nil
			},
			Required: true,
		},
		{
			Name:        "store-uri",
			Usage:       "The Postgres connection string backing the durable Store.",
			OptType:     types.String,
			FlagDefault: "postgres://localhost:5432/coordinator?sslmode=disable",
			ConfigKey:   &globalOptions.storeURI,
			Required:    true,
		},
	}

	rootCmd := &cobra.Command{
		Use:     "coordinator",
		Short:   "Agent job marketplace coordinator",
		Long:    "Coordinates agent job postings, bids, escrow-backed task settlement, and worker identity/reputation.",
		Version: globalOptions.version,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			configOpts.Require()
			if err := configOpts.SetValues(); err != nil {
				logging.Fatalf("setting config option values: %s", err.Error())
			}
			logging.Infof("version: %s", globalOptions.version)
			logging.Infof("git commit: %s", globalOptions.gitCommit)
		},
		Run: func(cmd *cobra.Command, _ []string) {
			if err := cmd.Help(); err != nil {
				logging.Fatalf("calling help command: %s", err.Error())
			}
		},
	}

	if err := configOpts.Init(rootCmd); err != nil {
		logging.Fatalf("initializing config options: %s", err.Error())
	}

	return rootCmd
}

// SetupCLI builds the root command with every subcommand attached.
func SetupCLI(version, gitCommit string) *cobra.Command {
	globalOptions.version = version
	globalOptions.gitCommit = gitCommit
	root := rootCmd()

	root.AddCommand((&ServeCommand{}).Command(&monitor.MonitorService{}))
	root.AddCommand((&DatabaseCommand{}).Command())

	return root
}
