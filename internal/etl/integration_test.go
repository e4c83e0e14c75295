//-------------------------------------------------------------------------
//
// dwetl - Retail Data Warehouse ETL
//
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

//go:build integration
// +build integration

// End-to-end pipeline test against a real PostgreSQL instance.
// Run with: go test -tags=integration ./internal/etl/...
// Set DWETL_TEST_CONN environment variable to override connection string.

package etl_test

import (
	"context"
	"testing"
	"time"

	"github.com/varejobase/dwetl/internal/etl"
	"github.com/varejobase/dwetl/internal/source"
	"github.com/varejobase/dwetl/internal/testutil"
	"github.com/varejobase/dwetl/internal/warehouse"
)

func TestPipelineIntegration(t *testing.T) {
	baseConnStr := testutil.SkipIfNoPostgres(t)

	// Separate databases for the operational store and the warehouse.
	srcConnStr := testutil.CreateTestDB(t, baseConnStr, "src")
	srcCleanup := testutil.NewTestCleanup(t, baseConnStr, testutil.GetDBNameFromConnStr(srcConnStr))
	t.Cleanup(srcCleanup.Cleanup)

	whConnStr := testutil.CreateTestDB(t, baseConnStr, "wh")
	whCleanup := testutil.NewTestCleanup(t, baseConnStr, testutil.GetDBNameFromConnStr(whConnStr))
	t.Cleanup(whCleanup.Cleanup)

	srcPool := testutil.ConnectTestDB(t, srcConnStr)
	srcCleanup.SetPool(srcPool)
	whPool := testutil.ConnectTestDB(t, whConnStr)
	whCleanup.SetPool(whPool)

	ctx := context.Background()

	t.Run("SeedSource", func(t *testing.T) {
		if err := source.CreateSchema(ctx, srcPool); err != nil {
			t.Fatalf("CreateSchema failed: %v", err)
		}
		seeder := source.NewSeederWithSeed(srcPool, 42)
		err := seeder.Seed(ctx, source.SeedOptions{
			Categories: 5,
			Products:   50,
			Stores:     3,
			Customers:  40,
			Sales:      200,
			Days:       30,
		})
		if err != nil {
			t.Fatalf("Seed failed: %v", err)
		}
	})

	t.Run("InitWarehouse", func(t *testing.T) {
		if err := warehouse.CreateSchema(ctx, whPool); err != nil {
			t.Fatalf("CreateSchema failed: %v", err)
		}
	})

	now := time.Now().UTC()
	opts := etl.Options{
		StartDate:      now.AddDate(0, 0, -60),
		EndDate:        now,
		AsOf:           now,
		ErrorThreshold: 0.10,
	}

	var firstWritten int64
	t.Run("FirstRun", func(t *testing.T) {
		orch := etl.NewOrchestrator(source.NewReader(srcPool), warehouse.NewWriter(whPool, false), opts)
		report, err := orch.Run(ctx)
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if report.State != etl.Completed {
			t.Fatalf("state = %s, want completed", report.State)
		}
		firstWritten = report.TotalRowsWritten()
		if firstWritten == 0 {
			t.Fatal("first run wrote no rows")
		}

		var timeRows int64
		if err := whPool.QueryRow(ctx, "SELECT COUNT(*) FROM time_dim").Scan(&timeRows); err != nil {
			t.Fatalf("count time_dim: %v", err)
		}
		if timeRows != 61 {
			t.Errorf("time_dim rows = %d, want 61", timeRows)
		}

		var badStatus int64
		err = whPool.QueryRow(ctx, `
            SELECT COUNT(*) FROM inventory_fact
            WHERE status NOT IN ('Critical', 'Low', 'Excess', 'Normal')
        `).Scan(&badStatus)
		if err != nil {
			t.Fatalf("check inventory status: %v", err)
		}
		if badStatus != 0 {
			t.Errorf("%d inventory rows with unknown status", badStatus)
		}

		var orphans int64
		err = whPool.QueryRow(ctx, `
            SELECT COUNT(*) FROM sales_fact f
            LEFT JOIN product_dim p ON p.product_key = f.product_key
            WHERE p.product_key IS NULL
        `).Scan(&orphans)
		if err != nil {
			t.Fatalf("check sales orphans: %v", err)
		}
		if orphans != 0 {
			t.Errorf("%d sales_fact rows reference missing products", orphans)
		}
	})

	t.Run("SecondRunIsIdempotent", func(t *testing.T) {
		orch := etl.NewOrchestrator(source.NewReader(srcPool), warehouse.NewWriter(whPool, false), opts)
		report, err := orch.Run(ctx)
		if err != nil {
			t.Fatalf("Run failed: %v", err)
		}
		if w := report.TotalRowsWritten(); w != 0 {
			t.Errorf("second run wrote %d rows, want 0", w)
		}
	})

	t.Run("RecordRun", func(t *testing.T) {
		err := warehouse.RecordRun(ctx, whPool, warehouse.RunRecord{
			StartedAt:   now,
			FinishedAt:  now,
			State:       "completed",
			RowsWritten: firstWritten,
		})
		if err != nil {
			t.Fatalf("RecordRun failed: %v", err)
		}
		runs, err := warehouse.RecentRuns(ctx, whPool, 10)
		if err != nil {
			t.Fatalf("RecentRuns failed: %v", err)
		}
		if len(runs) != 1 {
			t.Fatalf("got %d runs, want 1", len(runs))
		}
		if runs[0].State != "completed" {
			t.Errorf("run state = %q, want completed", runs[0].State)
		}
	})
}
