package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ethpandaops/perfgate/internal/config"
	"github.com/ethpandaops/perfgate/internal/sink"
)

var forceTeardown bool

var teardownCmd = &cobra.Command{
	Use:   "teardown",
	Short: "Drop the ClickHouse report database (destructive)",
	Long: `Drops the ClickHouse report database and every submitted report in it.
This cannot be undone.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		log := newLogger(verbose)

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		fmt.Printf("Target: %s, database %q\n", cfg.Address(), cfg.ClickhouseDatabase)

		if !forceTeardown {
			fmt.Println("\n⚠️  This will permanently delete ALL submitted reports!")
			fmt.Println("Use --force flag to proceed with teardown")
			return nil
		}

		if err := sink.Teardown(context.Background(), log, cfg); err != nil {
			return fmt.Errorf("teardown failed: %w", err)
		}

		fmt.Println("\n✅ Teardown completed successfully!")

		return nil
	},
}

func init() {
	teardownCmd.Flags().BoolVarP(&forceTeardown, "force", "f", false, "Skip confirmation and proceed with teardown")
	rootCmd.AddCommand(teardownCmd)
}
