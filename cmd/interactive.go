package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/ethpandaops/perfgate/internal/config"
	"github.com/ethpandaops/perfgate/internal/sink"
	"github.com/ethpandaops/perfgate/internal/suite"
	"github.com/ethpandaops/perfgate/pkg/interactive"
)

var interactiveCmd = &cobra.Command{
	Use:   "interactive",
	Short: "Launch interactive mode",
	Long:  `Launches a menu-driven mode: pick a discovered suite file, confirm, and run it.`,
	Run: func(_ *cobra.Command, _ []string) {
		runInteractiveMenu()
	},
}

func init() {
	rootCmd.AddCommand(interactiveCmd)
}

func runInteractiveMenu() {
	fmt.Println("Perfgate - Interactive Mode")
	fmt.Println("===========================")
	fmt.Println()

	for {
		options := []interactive.MenuOption{
			{
				Name:        "Run Suite",
				Description: "Pick a suite from the suites directory and run it",
				Action:      runSuiteInteractive,
			},
			{
				Name:        "Validate Suites",
				Description: "Validate every suite in the suites directory",
				Action:      validateSuitesInteractive,
			},
			{
				Name:        "Show Config",
				Description: "Display current environment configuration",
				Action: func() error {
					cfg, err := config.Load()
					if err != nil {
						fmt.Printf("\n❌ Error: %v\n", err)
					} else {
						fmt.Println(cfg.String())
					}
					interactive.PauseForEnter()
					return nil
				},
			},
			{
				Name:        "Setup",
				Description: "Create the ClickHouse report database and run migrations (safe to run multiple times)",
				Action:      setupInteractive,
			},
			{
				Name:        "Teardown",
				Description: "Drop the ClickHouse report database (destructive)",
				Action:      teardownInteractive,
			},
		}

		if err := interactive.ShowMainMenu(options); err != nil {
			if errors.Is(err, interactive.ErrExit) {
				fmt.Println("Goodbye!")
				return
			}
			log.Fatal(err)
		}

		fmt.Println()
	}
}

func runSuiteInteractive() error {
	logger := newLogger(verbose)

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("\n❌ Error: %v\n", err)
		interactive.PauseForEnter()

		return nil
	}

	paths, err := suite.NewLoader(logger).Discover(cfg.SuitesDir)
	if err != nil {
		fmt.Printf("\n❌ Error: %v\n", err)
		interactive.PauseForEnter()

		return nil
	}

	if len(paths) == 0 {
		fmt.Printf("No suite files found in %s\n", cfg.SuitesDir)
		interactive.PauseForEnter()

		return nil
	}

	selected, err := interactive.Select("Which suite would you like to run?", paths)
	if err != nil {
		return nil
	}

	if !interactive.Confirm(fmt.Sprintf("Run suite %s now?", selected)) {
		fmt.Println("Run canceled.")
		interactive.PauseForEnter()

		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultRunTimeout)
	defer cancel()

	if err := executeSuite(ctx, logger, cfg, selected, cfg.BaselineFile); err != nil {
		fmt.Printf("\n❌ Error: %v\n", err)
	}

	interactive.PauseForEnter()

	return nil
}

func setupInteractive() error {
	logger := newLogger(verbose)

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("\n❌ Error: %v\n", err)
		interactive.PauseForEnter()

		return nil
	}

	fmt.Printf("Target: %s, database %q\n", cfg.Address(), cfg.ClickhouseDatabase)

	if !interactive.Confirm("Do you want to proceed with the setup?") {
		fmt.Println("Setup canceled.")
		interactive.PauseForEnter()

		return nil
	}

	if err := sink.Setup(context.Background(), logger, cfg); err != nil {
		fmt.Printf("\n❌ Error: %v\n", err)
	} else {
		fmt.Println("\n✅ Setup completed successfully!")
	}

	interactive.PauseForEnter()

	return nil
}

func teardownInteractive() error {
	logger := newLogger(verbose)

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("\n❌ Error: %v\n", err)
		interactive.PauseForEnter()

		return nil
	}

	fmt.Printf("Target: %s, database %q\n", cfg.Address(), cfg.ClickhouseDatabase)

	if !interactive.Confirm("⚠️  Are you SURE you want to drop the report database? This cannot be undone!") {
		fmt.Println("Teardown canceled.")
		interactive.PauseForEnter()

		return nil
	}

	if err := sink.Teardown(context.Background(), logger, cfg); err != nil {
		fmt.Printf("\n❌ Error: %v\n", err)
	} else {
		fmt.Println("\n✅ Teardown completed successfully!")
	}

	interactive.PauseForEnter()

	return nil
}

func validateSuitesInteractive() error {
	logger := newLogger(verbose)

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("\n❌ Error: %v\n", err)
		interactive.PauseForEnter()

		return nil
	}

	loader := suite.NewLoader(logger)

	paths, err := loader.Discover(cfg.SuitesDir)
	if err != nil {
		fmt.Printf("\n❌ Error: %v\n", err)
		interactive.PauseForEnter()

		return nil
	}

	if len(paths) == 0 {
		fmt.Printf("No suite files found in %s\n", cfg.SuitesDir)
		interactive.PauseForEnter()

		return nil
	}

	for _, path := range paths {
		if _, err := loader.Load(path); err != nil {
			fmt.Printf("❌ %s: %v\n", path, err)
		} else {
			fmt.Printf("✓ %s\n", path)
		}
	}

	interactive.PauseForEnter()

	return nil
}
