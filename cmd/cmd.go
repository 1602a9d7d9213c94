package cmd

import (
	"context"
	"log/slog"

	"github.com/pointsflow/points-indexer/internal/config"
	"github.com/pointsflow/points-indexer/pkg/logger"
	"github.com/pointsflow/points-indexer/pkg/logger/slogx"
	"github.com/spf13/cobra"
)

var cmd = &cobra.Command{
	Use:  "points-indexer",
	Long: `Incremental on-chain activity indexer and referral-weighted points engine`,
}

func init() {
	var configFile string

	// Add global flags
	flags := cmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file, E.g. `./config.yaml`")
	flags.String("chain", "mainnet", "chain to connect to, E.g. `mainnet` or `sepolia`")

	// Bind flags to configuration
	config.BindPFlag("chain", flags.Lookup("chain"))

	// Initialize configuration and logger on start command
	cobra.OnInitialize(func() {
		config.SetFile(configFile)
		conf := config.Load()

		if err := logger.Init(conf.Logger); err != nil {
			logger.Panic("Failed to initialize logger", slogx.Error(err), slog.Any("config", conf.Logger))
		}
	})
}

func Execute(ctx context.Context) {
	// Register sub-commands
	cmd.AddCommand(
		NewVersionCommand(),
		NewRunCommand(),
		NewMigrateCommand(),
		NewResetCheckpointCommand(),
		NewBackfillSendersCommand(),
	)

	// Execute command
	if err := cmd.ExecuteContext(ctx); err != nil {
		logger.Panic("Failed to execute root command", slogx.Error(err))
	}
}
