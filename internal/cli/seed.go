package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/varejobase/dwetl/internal/db"
	"github.com/varejobase/dwetl/internal/logging"
	"github.com/varejobase/dwetl/internal/source"
)

var (
	seedCategories   int
	seedProducts     int
	seedStores       int
	seedCustomers    int
	seedSales        int
	seedDays         int
	seedDropExisting bool
	seedRandSeed     uint64
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Populate the operational store with sample retail data",
	Long: `Create the operational schema and fill it with generated retail
data: categories, products, stores, customers, sales with line items,
promotional and supplier prices, and per-store stock levels.

This is a development aid; production runs extract from a real store.

Example:
  dwetl seed --source "postgres://..." --products 500 --sales 20000`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().IntVar(&seedCategories, "categories", 0,
		"number of product categories to generate")
	seedCmd.Flags().IntVar(&seedProducts, "products", 0,
		"number of products to generate")
	seedCmd.Flags().IntVar(&seedStores, "stores", 0,
		"number of stores to generate")
	seedCmd.Flags().IntVar(&seedCustomers, "customers", 0,
		"number of customers to generate")
	seedCmd.Flags().IntVar(&seedSales, "sales", 0,
		"number of sale transactions to generate")
	seedCmd.Flags().IntVar(&seedDays, "days", 0,
		"how many days back sale dates are spread over")
	seedCmd.Flags().BoolVar(&seedDropExisting, "drop-existing", false,
		"drop the existing operational schema before seeding")
	seedCmd.Flags().Uint64Var(&seedRandSeed, "rand-seed", 0,
		"fixed random seed for reproducible data (0 = random)")
}

func runSeed(cmd *cobra.Command, args []string) error {
	// Override config with CLI flags
	if seedCategories > 0 {
		cfg.Seed.Categories = seedCategories
	}
	if seedProducts > 0 {
		cfg.Seed.Products = seedProducts
	}
	if seedStores > 0 {
		cfg.Seed.Stores = seedStores
	}
	if seedCustomers > 0 {
		cfg.Seed.Customers = seedCustomers
	}
	if seedSales > 0 {
		cfg.Seed.Sales = seedSales
	}
	if seedDays > 0 {
		cfg.Seed.Days = seedDays
	}
	if seedDropExisting {
		cfg.Seed.DropExisting = true
	}

	if err := cfg.ValidateSeed(); err != nil {
		return err
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.Source, "seed")
	if err != nil {
		return fmt.Errorf("failed to connect to source: %w", err)
	}
	defer pool.Close()

	if cfg.Seed.DropExisting {
		logging.Info().Msg("Dropping existing operational schema")
		if err := source.DropSchema(ctx, pool); err != nil {
			return fmt.Errorf("failed to drop schema: %w", err)
		}
	}

	logging.Info().Msg("Creating operational schema")
	if err := source.CreateSchema(ctx, pool); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	seeder := source.NewSeeder(pool)
	if seedRandSeed != 0 {
		seeder = source.NewSeederWithSeed(pool, seedRandSeed)
	}

	if err := seeder.Seed(ctx, source.SeedOptions{
		Categories: cfg.Seed.Categories,
		Products:   cfg.Seed.Products,
		Stores:     cfg.Seed.Stores,
		Customers:  cfg.Seed.Customers,
		Sales:      cfg.Seed.Sales,
		Days:       cfg.Seed.Days,
	}); err != nil {
		return fmt.Errorf("failed to seed data: %w", err)
	}

	logging.Info().Msg("Operational store seeding complete")
	return nil
}
