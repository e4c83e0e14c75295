//-------------------------------------------------------------------------
//
// dwetl - Retail Data Warehouse ETL
//
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package cli implements the command-line interface for dwetl.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/varejobase/dwetl/internal/config"
	"github.com/varejobase/dwetl/internal/logging"
	"github.com/varejobase/dwetl/pkg/version"
)

var (
	// Global flags
	cfgFile       string
	sourceConn    string
	warehouseConn string
	logLevel      string

	// Global config
	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:   "dwetl",
		Short: "Dimensional ETL engine for a retail data warehouse",
		Long: `dwetl extracts retail data from an operational PostgreSQL store,
transforms it into a star schema, and loads it into a data warehouse.

The pipeline populates a time dimension, the category, product, store and
customer dimensions, and the sales, pricing and inventory facts. Loads are
idempotent: re-running over an overlapping window skips rows that are
already present.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: ./dwetl.yaml)")
	rootCmd.PersistentFlags().StringVar(&sourceConn, "source", "",
		"PostgreSQL connection string for the operational store")
	rootCmd.PersistentFlags().StringVar(&warehouseConn, "warehouse", "",
		"PostgreSQL connection string for the data warehouse")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"log level (debug, info, warn, error)")

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
}

func initConfig() error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return err
	}

	// Override with CLI flags
	if sourceConn != "" {
		cfg.Source = sourceConn
	}
	if warehouseConn != "" {
		cfg.Warehouse = warehouseConn
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	// Reinitialize logger with config
	logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Pretty: true,
	})

	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println(version.Info())
	},
}
