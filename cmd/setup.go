package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ethpandaops/perfgate/internal/config"
	"github.com/ethpandaops/perfgate/internal/sink"
)

var forceSetup bool

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Setup the ClickHouse report database",
	Long: `Validates configuration and sets up the ClickHouse report database.
This command will:
- Validate your configuration
- Test the ClickHouse connection
- Create the report database if it doesn't exist
- Run schema migrations

Running a suite with the clickhouse sink does this automatically; setup
exists to prepare a server ahead of time, for example in CI bootstrap.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		log := newLogger(verbose)

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		fmt.Printf("Target: %s, database %q\n", cfg.Address(), cfg.ClickhouseDatabase)

		if !forceSetup {
			fmt.Println("\nUse --force flag to proceed with setup")
			return nil
		}

		if err := sink.Setup(context.Background(), log, cfg); err != nil {
			return fmt.Errorf("setup failed: %w", err)
		}

		fmt.Println("\n✅ Setup completed successfully!")

		return nil
	},
}

func init() {
	setupCmd.Flags().BoolVarP(&forceSetup, "force", "f", false, "Skip confirmation and proceed with setup")
	rootCmd.AddCommand(setupCmd)
}
