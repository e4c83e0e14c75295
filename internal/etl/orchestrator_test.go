//-------------------------------------------------------------------------
//
// dwetl - Retail Data Warehouse ETL
//
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package etl

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/varejobase/dwetl/internal/source"
)

func newTestSource() *fakeSource {
	return &fakeSource{
		categories: []source.Category{
			{ID: 1, Name: "Beverages"},
			{ID: 2, Name: "Snacks", Description: ptrStr("Salty and sweet")},
		},
		products: []source.Product{
			{ID: 1, Code: "P0001", Name: "Cola 2L", Brand: "Acme", Unit: "UN",
				CategoryID: ptrInt64(1), CategoryName: ptrStr("Beverages")},
			{ID: 2, Code: "P0002", Name: "Mystery Box", Brand: "Acme", Unit: "UN"},
		},
		stores: []source.Store{
			{ID: 1, Name: "Downtown", City: "Porto Alegre", State: "RS"},
		},
		customers: []source.Customer{
			{ID: 1, Name: "Alice Martins", City: "Porto Alegre", State: "RS"},
		},
		saleLines: []source.SaleLine{
			{ItemID: 10, SaleID: 5, Date: day(2025, time.March, 10), ProductID: 1,
				StoreID: 1, CustomerID: 1, Quantity: 2, UnitPrice: 50,
				Discount: 5, PaymentMethod: "credit"},
			{ItemID: 11, SaleID: 5, Date: day(2025, time.March, 10), ProductID: 99,
				StoreID: 1, CustomerID: 1, Quantity: 1, UnitPrice: 10,
				PaymentMethod: "credit"},
		},
		pricing: []source.ProductPricing{
			{ProductID: 1, CategoryID: ptrInt64(1), NormalPrice: 100,
				PromoPrice: ptrFloat(80), PurchasePrice: ptrFloat(60)},
			{ProductID: 2, NormalPrice: 100, PurchasePrice: ptrFloat(70)},
			{ProductID: 3, NormalPrice: 100},
		},
		stock: []source.StockLevel{
			{ProductID: 1, StoreID: 1, CurrentQty: 45, MinQty: 10, MaxQty: 100, Sold30Days: 30},
			{ProductID: 2, StoreID: 1, CurrentQty: 0, MinQty: 5, MaxQty: 50, Sold30Days: 0},
		},
	}
}

func testOptions() Options {
	return Options{
		StartDate:      day(2025, time.March, 1),
		EndDate:        day(2025, time.March, 31),
		AsOf:           day(2025, time.March, 10),
		ErrorThreshold: 0.5,
	}
}

func findStage(t *testing.T, report *RunReport, name string) *StageReport {
	t.Helper()
	for i := range report.Stages {
		if report.Stages[i].Stage == name {
			return &report.Stages[i]
		}
	}
	t.Fatalf("stage %s not in report", name)
	return nil
}

func TestRunCompletes(t *testing.T) {
	wh := newMemWarehouse()
	o := NewOrchestrator(newTestSource(), wh, testOptions())

	report, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.State != Completed {
		t.Fatalf("report state = %s, want completed", report.State)
	}
	if o.State() != Completed {
		t.Errorf("orchestrator state = %s, want completed", o.State())
	}
	if len(report.Stages) != 8 {
		t.Fatalf("got %d stages, want 8", len(report.Stages))
	}

	// Time dimension first, facts last.
	if report.Stages[0].Stage != StageTime {
		t.Errorf("first stage = %s, want %s", report.Stages[0].Stage, StageTime)
	}
	wantFacts := []string{StageSales, StagePricing, StageInventory}
	for i, want := range wantFacts {
		if got := report.Stages[5+i].Stage; got != want {
			t.Errorf("stage %d = %s, want %s", 5+i, got, want)
		}
	}

	timeRep := findStage(t, report, StageTime)
	if timeRep.RowsRead != 31 || timeRep.RowsWritten != 31 {
		t.Errorf("time stage read/written = %d/%d, want 31/31",
			timeRep.RowsRead, timeRep.RowsWritten)
	}
}

func TestRunLoadsDimensions(t *testing.T) {
	wh := newMemWarehouse()
	o := NewOrchestrator(newTestSource(), wh, testOptions())

	if _, err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if n := wh.rowCount(StageCategory); n != 2 {
		t.Errorf("category_dim rows = %d, want 2", n)
	}
	if n := wh.rowCount(StageProduct); n != 2 {
		t.Errorf("product_dim rows = %d, want 2", n)
	}
	if n := wh.rowCount(StageStore); n != 1 {
		t.Errorf("store_dim rows = %d, want 1", n)
	}
	if n := wh.rowCount(StageCustomer); n != 1 {
		t.Errorf("customer_dim rows = %d, want 1", n)
	}

	cat := wh.row(StageCategory, "1")
	if cat == nil {
		t.Fatal("category 1 not loaded")
	}
	if desc := cat["description"].(*string); desc != nil {
		t.Errorf("category 1 description = %q, want nil", *desc)
	}

	orphan := wh.row(StageProduct, "2")
	if orphan == nil {
		t.Fatal("product 2 not loaded")
	}
	if key := orphan["category_key"].(*int64); key != nil {
		t.Errorf("product 2 category_key = %d, want nil", *key)
	}
	if name := orphan["category_name"].(*string); name != nil {
		t.Errorf("product 2 category_name = %q, want nil", *name)
	}
}

func TestRunLoadsSalesFact(t *testing.T) {
	wh := newMemWarehouse()
	o := NewOrchestrator(newTestSource(), wh, testOptions())

	report, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	sales := findStage(t, report, StageSales)
	if sales.RowsRead != 2 || sales.RowsWritten != 1 {
		t.Errorf("sales read/written = %d/%d, want 2/1", sales.RowsRead, sales.RowsWritten)
	}
	if len(sales.Errors) != 1 {
		t.Fatalf("sales errors = %d, want 1", len(sales.Errors))
	}
	var tfErr *TransformError
	if !errors.As(sales.Errors[0].Err, &tfErr) {
		t.Fatalf("sales error type = %T, want *TransformError", sales.Errors[0].Err)
	}

	row := wh.row(StageSales, "10")
	if row == nil {
		t.Fatal("sale item 10 not loaded")
	}
	if tv := row["total_value"].(float64); tv != 100 {
		t.Errorf("total_value = %.2f, want 100.00", tv)
	}
	if tk := row["time_key"].(int64); tk != 20250310 {
		t.Errorf("time_key = %d, want 20250310", tk)
	}
	if wh.row(StageSales, "11") != nil {
		t.Error("rejected sale item 11 was loaded")
	}
}

func TestRunLoadsSnapshotFacts(t *testing.T) {
	wh := newMemWarehouse()
	o := NewOrchestrator(newTestSource(), wh, testOptions())

	report, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	promo := wh.row(StagePricing, "20250310|1")
	if promo == nil {
		t.Fatal("pricing row for product 1 not loaded")
	}
	if m := promo["margin_pct"].(float64); m != 20 {
		t.Errorf("product 1 margin = %.2f, want 20.00", m)
	}
	if !promo["on_promotion"].(bool) {
		t.Error("product 1 should be on promotion")
	}

	regular := wh.row(StagePricing, "20250310|2")
	if regular == nil {
		t.Fatal("pricing row for product 2 not loaded")
	}
	if m := regular["margin_pct"].(float64); m != 30 {
		t.Errorf("product 2 margin = %.2f, want 30.00", m)
	}
	if regular["on_promotion"].(bool) {
		t.Error("product 2 should not be on promotion")
	}

	pricing := findStage(t, report, StagePricing)
	if len(pricing.Errors) != 1 {
		t.Errorf("pricing errors = %d, want 1 (product 3 has no reference price)",
			len(pricing.Errors))
	}

	normal := wh.row(StageInventory, "20250310|1|1")
	if normal == nil {
		t.Fatal("inventory row for product 1 not loaded")
	}
	if d := normal["days_of_stock"].(int64); d != 45 {
		t.Errorf("product 1 days_of_stock = %d, want 45", d)
	}
	if s := normal["status"].(string); s != StatusNormal {
		t.Errorf("product 1 status = %q, want %q", s, StatusNormal)
	}

	critical := wh.row(StageInventory, "20250310|2|1")
	if critical == nil {
		t.Fatal("inventory row for product 2 not loaded")
	}
	if d := critical["days_of_stock"].(int64); d != 999 {
		t.Errorf("product 2 days_of_stock = %d, want 999", d)
	}
	if s := critical["status"].(string); s != StatusCritical {
		t.Errorf("product 2 status = %q, want %q", s, StatusCritical)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	wh := newMemWarehouse()
	src := newTestSource()

	if _, err := NewOrchestrator(src, wh, testOptions()).Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	report, err := NewOrchestrator(src, wh, testOptions()).Run(context.Background())
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if w := report.TotalRowsWritten(); w != 0 {
		t.Errorf("second run wrote %d rows, want 0", w)
	}
	sales := findStage(t, report, StageSales)
	if sales.RowsSkipped != 1 {
		t.Errorf("second run sales skipped = %d, want 1", sales.RowsSkipped)
	}
	if n := wh.rowCount(StageSales); n != 1 {
		t.Errorf("sales_fact rows after re-run = %d, want 1", n)
	}
}

func TestRunFailsOnSourceReadError(t *testing.T) {
	src := newTestSource()
	src.saleLinesErr = errors.New("connection reset")
	wh := newMemWarehouse()
	o := NewOrchestrator(src, wh, testOptions())

	report, err := o.Run(context.Background())
	if err == nil {
		t.Fatal("expected run failure")
	}
	if report.State != Failed {
		t.Errorf("report state = %s, want failed", report.State)
	}
	if report.FailedStage != StageSales {
		t.Errorf("failed stage = %s, want %s", report.FailedStage, StageSales)
	}
	var srcErr *SourceReadError
	if !errors.As(err, &srcErr) {
		t.Fatalf("error type = %T, want *SourceReadError", err)
	}

	// Earlier stages stay committed.
	if n := wh.rowCount(StageTime); n != 31 {
		t.Errorf("time_dim rows = %d, want 31", n)
	}
	if n := wh.rowCount(StageStore); n != 1 {
		t.Errorf("store_dim rows = %d, want 1", n)
	}
	if n := wh.rowCount(StageSales); n != 0 {
		t.Errorf("sales_fact rows = %d, want 0", n)
	}
}

func TestRunDimensionFailureDoesNotStopSiblings(t *testing.T) {
	src := newTestSource()
	src.categoriesErr = errors.New("table locked")
	wh := newMemWarehouse()
	o := NewOrchestrator(src, wh, testOptions())

	report, err := o.Run(context.Background())
	if err == nil {
		t.Fatal("expected run failure")
	}
	if report.FailedStage != StageCategory {
		t.Errorf("failed stage = %s, want %s", report.FailedStage, StageCategory)
	}

	// Sibling dimensions ran to completion and committed before the barrier.
	if n := wh.rowCount(StageStore); n != 1 {
		t.Errorf("store_dim rows = %d, want 1", n)
	}
	if n := wh.rowCount(StageCustomer); n != 1 {
		t.Errorf("customer_dim rows = %d, want 1", n)
	}
	// Facts never ran.
	if n := wh.rowCount(StageSales); n != 0 {
		t.Errorf("sales_fact rows = %d, want 0", n)
	}
}

func TestRunErrorThresholdAbortsStage(t *testing.T) {
	wh := newMemWarehouse()
	opts := testOptions()
	opts.ErrorThreshold = 0
	o := NewOrchestrator(newTestSource(), wh, opts)

	report, err := o.Run(context.Background())
	if err == nil {
		t.Fatal("expected run failure with zero threshold")
	}
	if report.FailedStage != StageSales {
		t.Errorf("failed stage = %s, want %s", report.FailedStage, StageSales)
	}
	// The failed stage rolled back.
	if n := wh.rowCount(StageSales); n != 0 {
		t.Errorf("sales_fact rows = %d, want 0", n)
	}
}

func TestRunRejectsInvertedDateRange(t *testing.T) {
	opts := testOptions()
	opts.StartDate = day(2025, time.April, 1)
	opts.EndDate = day(2025, time.March, 1)
	o := NewOrchestrator(newTestSource(), newMemWarehouse(), opts)

	report, err := o.Run(context.Background())
	if err == nil {
		t.Fatal("expected configuration error")
	}
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("error type = %T, want *ConfigurationError", err)
	}
	if len(report.Stages) != 0 {
		t.Errorf("got %d stages, want 0 (no stage should start)", len(report.Stages))
	}
}

func TestRunOnlyFromIdle(t *testing.T) {
	o := NewOrchestrator(newTestSource(), newMemWarehouse(), testOptions())
	if _, err := o.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if _, err := o.Run(context.Background()); err == nil {
		t.Fatal("expected error re-running a completed orchestrator")
	}
}

func TestRunHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	wh := newMemWarehouse()
	o := NewOrchestrator(newTestSource(), wh, testOptions())
	report, err := o.Run(ctx)
	if err == nil {
		t.Fatal("expected failure with cancelled context")
	}
	if report.State != Failed {
		t.Errorf("report state = %s, want failed", report.State)
	}
	// Facts never start once cancellation is observed.
	if n := wh.rowCount(StageSales); n != 0 {
		t.Errorf("sales_fact rows = %d, want 0", n)
	}
}
