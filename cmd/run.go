package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ethpandaops/perfgate/internal/config"
	"github.com/ethpandaops/perfgate/internal/sink"
	"github.com/ethpandaops/perfgate/internal/suite"
	"github.com/ethpandaops/perfgate/internal/table"
)

var (
	runBaselineFile string
	runTimeout      time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run [suite.yaml]",
	Short: "Run a measurement suite",
	Long: `Run a measurement suite: launch its workloads for the configured number
of iterations, reduce the sampled values into statistics, and evaluate
every pass criterion.

Suite files are YAML:

  name: snapshot_latency
  iterations: 30
  pipes:
    - tag: 5vcpu_256mb
      workload:
        command: ["./snap_bench", "--vcpus", "5"]
      sample:
        source: metrics_file
        path: metrics.ndjson
        field: latencies_us.load_snapshot
        scale: 0.001
      measurement:
        name: latency
        unit: ms
        criteria:
          - stat: max
            op: lte
            bound: 25

The run command will:
1. Load and validate the suite definition
2. Load baseline bounds when --baselines or PERFGATE_BASELINES is set
3. Run every pipe, honoring iterations, cooldown and parallelism
4. Render per-pipe results and a summary table
5. Submit the report to the configured sink (none, file, clickhouse)

The exit status is non-zero when any pipe fails its criteria.

Examples:
  perfgate run suites/snapshot_latency.yaml
  perfgate run suites/spawn_time.yaml --baselines baselines.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		log := newLogger(verbose)

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()

		setupCancelHandler(log, cancel)

		baselineFile := runBaselineFile
		if baselineFile == "" {
			baselineFile = cfg.BaselineFile
		}

		return executeSuite(ctx, log, cfg, args[0], baselineFile)
	},
}

func init() {
	runCmd.Flags().StringVar(&runBaselineFile, "baselines", "", "Baseline bounds file (overrides PERFGATE_BASELINES)")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", defaultRunTimeout, "Run timeout")
	rootCmd.AddCommand(runCmd)
}

const defaultRunTimeout = 30 * time.Minute

// setupCancelHandler cancels the run context on Ctrl+C so pipes abort
// and the partial report is still rendered and submitted.
func setupCancelHandler(log logrus.FieldLogger, cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Warn("Received interrupt signal, canceling run...")
		cancel()
	}()
}

// executeSuite is the shared execution path of the run and interactive
// commands: load, build, run, render, submit.
func executeSuite(ctx context.Context, log *logrus.Logger, cfg *config.Config, suitePath, baselineFile string) error {
	loader := suite.NewLoader(log)

	def, err := loader.Load(suitePath)
	if err != nil {
		return fmt.Errorf("loading suite: %w", err)
	}

	var baselines suite.BaselineSet

	if baselineFile != "" {
		baselines, err = suite.LoadBaselines(baselineFile)
		if err != nil {
			return fmt.Errorf("loading baselines: %w", err)
		}
	}

	core, err := suite.NewBuilder(log, baselines).Build(def)
	if err != nil {
		return fmt.Errorf("building exercise: %w", err)
	}

	snk, err := sink.New(log, cfg)
	if err != nil {
		return fmt.Errorf("creating sink: %w", err)
	}

	if err := snk.Start(ctx); err != nil {
		return fmt.Errorf("starting sink: %w", err)
	}

	defer func() {
		if err := snk.Stop(); err != nil {
			log.WithError(err).Warn("Failed to stop sink")
		}
	}()

	report, runErr := core.RunExercise(ctx)
	if report == nil {
		return fmt.Errorf("run failed: %w", runErr)
	}

	renderer := table.NewRenderer(log)
	fmt.Println(table.NewResultsFormatter(log, renderer).Format(report))
	fmt.Println(table.NewSummaryFormatter(log, renderer).Format(report))

	// Failed runs are submitted too, regressions belong in the history.
	if err := snk.Submit(ctx, report); err != nil {
		return fmt.Errorf("submitting report: %w", err)
	}

	if runErr != nil {
		return fmt.Errorf("run failed: %w", runErr)
	}

	fmt.Printf("\n✅ Suite '%s' passed successfully!\n", def.Name)

	return nil
}
