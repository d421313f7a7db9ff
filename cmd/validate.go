package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/ethpandaops/perfgate/internal/suite"
	"github.com/ethpandaops/perfgate/internal/table"
)

var validateBaselineFile string

var validateCmd = &cobra.Command{
	Use:   "validate [suite.yaml...]",
	Short: "Validate suite definitions without running them",
	Long: `Validate one or more suite definition files: parse the YAML, check
every pipe, resolve reducers and criteria, and when --baselines is set,
verify that every baseline criterion has a recorded entry.

No workload is executed.

Examples:
  perfgate validate suites/snapshot_latency.yaml
  perfgate validate suites/*.yaml --baselines baselines.yaml`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		log := newLogger(verbose)

		var baselines suite.BaselineSet

		if validateBaselineFile != "" {
			loaded, err := suite.LoadBaselines(validateBaselineFile)
			if err != nil {
				return fmt.Errorf("loading baselines: %w", err)
			}

			baselines = loaded
		}

		var (
			loader   = suite.NewLoader(log)
			builder  = suite.NewBuilder(log, baselines)
			renderer = table.NewRenderer(log)
			colors   = table.NewColorHelper()
			result   *multierror.Error
		)

		for _, path := range args {
			def, err := loader.Load(path)
			if err == nil {
				// Building the exercise catches what YAML validation
				// cannot: unknown reducers, duplicate tags, missing
				// baseline entries.
				_, err = builder.Build(def)
			}

			if err != nil {
				fmt.Printf("%s %s\n", colors.Failure("✗"), path)
				result = multierror.Append(result, fmt.Errorf("%s: %w", path, err))

				continue
			}

			fmt.Printf("%s %s: %s (%d pipes, %d iterations)\n",
				colors.Success("✓"), path, def.Name, len(def.Pipes), def.Iterations)
			renderer.RenderToWriter(os.Stdout, pipeOverviewHeaders, pipeOverviewRows(def), table.WithBorder(false))
		}

		return result.ErrorOrNil()
	},
}

var pipeOverviewHeaders = []string{"Pipe", "Workload", "Source", "Measurement", "Criteria"}

func pipeOverviewRows(def *suite.Definition) [][]string {
	rows := make([][]string, 0, len(def.Pipes))

	for _, pipe := range def.Pipes {
		command := strings.Join(pipe.Workload.Command, " ")
		if len(command) > 40 {
			command = command[:37] + "..."
		}

		rows = append(rows, []string{
			pipe.Tag,
			command,
			pipe.Sample.Source,
			pipe.Measurement.Name,
			strconv.Itoa(len(pipe.Measurement.Criteria)),
		})
	}

	return rows
}

func init() {
	validateCmd.Flags().StringVar(&validateBaselineFile, "baselines", "", "Baseline bounds file to resolve baseline criteria against")
	rootCmd.AddCommand(validateCmd)
}
