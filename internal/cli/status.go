package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/varejobase/dwetl/internal/db"
	"github.com/varejobase/dwetl/internal/warehouse"
)

var statusLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recent ETL run history",
	Long: `Show the most recent ETL runs recorded in the warehouse, newest
first: when they ran, whether they completed, and how many rows they
wrote.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "limit", 10,
		"maximum number of runs to show")
}

func runStatus(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	// A single short-lived connection is enough for a history read.
	ctx := context.Background()
	conn, err := db.ConnectSingle(ctx, cfg.Warehouse, "status")
	if err != nil {
		return fmt.Errorf("failed to connect to warehouse: %w", err)
	}
	defer conn.Close(ctx)

	runs, err := warehouse.RecentRuns(ctx, conn, statusLimit)
	if err != nil {
		return fmt.Errorf("failed to read run history: %w", err)
	}
	if len(runs) == 0 {
		cmd.Println("No runs recorded.")
		return nil
	}

	cmd.Printf("%-5s %-20s %-12s %-16s %12s %8s\n",
		"ID", "STARTED", "STATE", "FAILED STAGE", "WRITTEN", "ERRORS")
	for _, r := range runs {
		cmd.Printf("%-5d %-20s %-12s %-16s %12d %8d\n",
			r.ID, r.StartedAt.Format("2006-01-02 15:04:05"),
			r.State, r.FailedStage, r.RowsWritten, r.RowErrors)
	}
	return nil
}
