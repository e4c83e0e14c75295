package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/varejobase/dwetl/internal/db"
	"github.com/varejobase/dwetl/internal/logging"
	"github.com/varejobase/dwetl/internal/warehouse"
)

var initDropExisting bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the warehouse star schema",
	Long: `Create the star schema in the data warehouse: the time dimension,
the four retail dimensions, and the sales, pricing and inventory fact
tables. Existing tables are left untouched unless --drop-existing is set.

Example:
  dwetl init --warehouse "postgres://..." --drop-existing`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initDropExisting, "drop-existing", false,
		"drop the existing star schema before creating it")
}

func runInit(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.Warehouse, "init")
	if err != nil {
		return fmt.Errorf("failed to connect to warehouse: %w", err)
	}
	defer pool.Close()

	if initDropExisting {
		logging.Info().Msg("Dropping existing star schema")
		if err := warehouse.DropSchema(ctx, pool); err != nil {
			return fmt.Errorf("failed to drop schema: %w", err)
		}
	}

	logging.Info().Msg("Creating star schema")
	if err := warehouse.CreateSchema(ctx, pool); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	logging.Info().Msg("Warehouse initialization complete")
	return nil
}
