package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/varejobase/dwetl/internal/config"
	"github.com/varejobase/dwetl/internal/db"
	"github.com/varejobase/dwetl/internal/etl"
	"github.com/varejobase/dwetl/internal/logging"
	"github.com/varejobase/dwetl/internal/source"
	"github.com/varejobase/dwetl/internal/warehouse"
)

var (
	runStartDate      string
	runEndDate        string
	runAsOf           string
	runErrorThreshold float64
	runOverwrite      bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the ETL pipeline",
	Long: `Run the full ETL pipeline against an initialized warehouse: time
dimension, then the category, product, store and customer dimensions in
parallel, then the sales, pricing and inventory facts.

Each table loads in its own transaction. A failed stage leaves earlier
stages committed, so a fixed run can be retried without cleanup.

Example:
  dwetl run --start-date 2023-01-01 --end-date 2024-12-31
  dwetl run --as-of 2024-06-30 --error-threshold 0.05`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runStartDate, "start-date", "",
		"inclusive start of the time dimension range (YYYY-MM-DD)")
	runCmd.Flags().StringVar(&runEndDate, "end-date", "",
		"inclusive end of the time dimension range (YYYY-MM-DD)")
	runCmd.Flags().StringVar(&runAsOf, "as-of", "",
		"snapshot date for pricing and inventory facts (default: today)")
	runCmd.Flags().Float64Var(&runErrorThreshold, "error-threshold", -1,
		"per-stage tolerated ratio of rejected rows, 0 to 1")
	runCmd.Flags().BoolVar(&runOverwrite, "overwrite", false,
		"refresh attributes of already-present dimension keys")
}

func runRun(cmd *cobra.Command, args []string) error {
	// Override config with CLI flags
	if runStartDate != "" {
		cfg.Run.StartDate = runStartDate
	}
	if runEndDate != "" {
		cfg.Run.EndDate = runEndDate
	}
	if runAsOf != "" {
		cfg.Run.AsOf = runAsOf
	}
	if runErrorThreshold >= 0 {
		cfg.Run.ErrorThreshold = runErrorThreshold
	}
	if runOverwrite {
		cfg.Run.OverwriteOnConflict = true
	}

	if err := cfg.ValidateRun(); err != nil {
		return err
	}

	opts, err := runOptions(cfg)
	if err != nil {
		return err
	}

	ctx := context.Background()
	srcPool, err := db.Connect(ctx, cfg.Source, "source")
	if err != nil {
		return fmt.Errorf("failed to connect to source: %w", err)
	}
	defer srcPool.Close()

	whPool, err := db.Connect(ctx, cfg.Warehouse, "warehouse")
	if err != nil {
		return fmt.Errorf("failed to connect to warehouse: %w", err)
	}
	defer whPool.Close()

	logging.Info().
		Str("start_date", cfg.Run.StartDate).
		Str("end_date", cfg.Run.EndDate).
		Time("as_of", opts.AsOf).
		Float64("error_threshold", opts.ErrorThreshold).
		Msg("Starting ETL run")

	// Handle shutdown signals
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logging.Info().
			Str("signal", sig.String()).
			Msg("Received shutdown signal")
		cancel()
	}()

	reader := source.NewReader(srcPool)
	writer := warehouse.NewWriter(whPool, cfg.Run.OverwriteOnConflict)
	orch := etl.NewOrchestrator(reader, writer, opts)

	report, runErr := orch.Run(ctx)
	if report != nil {
		printReport(cmd, report)
		if err := warehouse.RecordRun(ctx, whPool, runRecord(report)); err != nil {
			logging.Warn().Err(err).Msg("Could not record run history")
		}
	}
	if runErr != nil {
		return fmt.Errorf("etl run failed: %w", runErr)
	}
	return nil
}

// runOptions converts validated string dates to orchestrator options.
func runOptions(cfg *config.Config) (etl.Options, error) {
	start, err := time.Parse(config.DateFormat, cfg.Run.StartDate)
	if err != nil {
		return etl.Options{}, fmt.Errorf("invalid start date: %w", err)
	}
	end, err := time.Parse(config.DateFormat, cfg.Run.EndDate)
	if err != nil {
		return etl.Options{}, fmt.Errorf("invalid end date: %w", err)
	}

	opts := etl.Options{
		StartDate:      start,
		EndDate:        end,
		ErrorThreshold: cfg.Run.ErrorThreshold,
	}
	if cfg.Run.AsOf != "" {
		asOf, err := time.Parse(config.DateFormat, cfg.Run.AsOf)
		if err != nil {
			return etl.Options{}, fmt.Errorf("invalid as-of date: %w", err)
		}
		opts.AsOf = asOf
	}
	return opts, nil
}

func printReport(cmd *cobra.Command, report *etl.RunReport) {
	cmd.Println()
	cmd.Printf("%-16s %10s %10s %10s %8s\n", "STAGE", "READ", "WRITTEN", "SKIPPED", "ERRORS")
	for _, st := range report.Stages {
		cmd.Printf("%-16s %10d %10d %10d %8d\n",
			st.Stage, st.RowsRead, st.RowsWritten, st.RowsSkipped, len(st.Errors))
	}
	cmd.Println()
	cmd.Printf("State: %s", report.State)
	if report.FailedStage != "" {
		cmd.Printf(" (failed at %s)", report.FailedStage)
	}
	cmd.Println()
	cmd.Printf("Rows written: %d, row errors: %d, elapsed: %s\n",
		report.TotalRowsWritten(), report.TotalErrors(),
		report.FinishedAt.Sub(report.StartedAt).Round(time.Millisecond))
}

// runRecord flattens a report into the persisted run-history row.
func runRecord(report *etl.RunReport) warehouse.RunRecord {
	rec := warehouse.RunRecord{
		StartedAt:   report.StartedAt,
		FinishedAt:  report.FinishedAt,
		State:       report.State.String(),
		FailedStage: report.FailedStage,
		RowsWritten: report.TotalRowsWritten(),
		RowErrors:   report.TotalErrors(),
	}
	if report.Err != nil {
		rec.Error = report.Err.Error()
	}
	return rec
}
