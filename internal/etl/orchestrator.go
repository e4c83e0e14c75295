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
	"fmt"
	"sync"
	"time"

	"github.com/varejobase/dwetl/internal/logging"
	"github.com/varejobase/dwetl/internal/source"
	"github.com/varejobase/dwetl/internal/warehouse"
)

// SourceReader reads the operational store. *source.Reader satisfies it;
// tests substitute an in-memory fake.
type SourceReader interface {
	Categories(ctx context.Context) ([]source.Category, error)
	ActiveProducts(ctx context.Context) ([]source.Product, error)
	Stores(ctx context.Context) ([]source.Store, error)
	Customers(ctx context.Context) ([]source.Customer, error)
	SaleLines(ctx context.Context) ([]source.SaleLine, error)
	ProductPricing(ctx context.Context) ([]source.ProductPricing, error)
	StockLevels(ctx context.Context, asOf time.Time) ([]source.StockLevel, error)
}

// Warehouse is the write side of the pipeline. *warehouse.Writer satisfies it.
type Warehouse interface {
	BeginStage(ctx context.Context) (warehouse.Stage, error)
	DimensionKeys(ctx context.Context, table, keyColumn string) (map[int64]struct{}, error)
}

// Options configures one orchestrator run.
type Options struct {
	// StartDate and EndDate bound the time dimension, inclusive.
	StartDate time.Time
	EndDate   time.Time

	// AsOf stamps the pricing and inventory snapshots. Zero means today.
	AsOf time.Time

	// ErrorThreshold is the per-stage rejected-row rate above which the
	// stage fails instead of continuing.
	ErrorThreshold float64
}

// Orchestrator sequences the pipeline: time dimension first, then the four
// dimensions in parallel, then the three facts. Each table load runs in its
// own transaction, so a failed stage leaves earlier stages committed.
type Orchestrator struct {
	src  SourceReader
	wh   Warehouse
	opts Options

	mu    sync.Mutex
	state State
}

// NewOrchestrator creates an orchestrator in the Idle state.
func NewOrchestrator(src SourceReader, wh Warehouse, opts Options) *Orchestrator {
	if opts.AsOf.IsZero() {
		opts.AsOf = time.Now()
	}
	return &Orchestrator{src: src, wh: wh, opts: opts, state: Idle}
}

// State returns the orchestrator's current state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
	logging.Debug().Str("state", s.String()).Msg("orchestrator state change")
}

// loadFunc loads one warehouse table within the given stage transaction.
type loadFunc func(ctx context.Context, st warehouse.Stage, rep *StageReport) error

// Run executes the full pipeline and returns the report. The report is
// returned alongside the error on failure so callers can still inspect the
// stages that completed. A run can only be executed from the Idle state.
func (o *Orchestrator) Run(ctx context.Context) (*RunReport, error) {
	if s := o.State(); s != Idle {
		return nil, NewConfigurationError("orchestrator is %s, not idle", s)
	}

	report := &RunReport{StartedAt: time.Now(), State: Idle}

	if o.opts.ErrorThreshold < 0 || o.opts.ErrorThreshold > 1 {
		return o.fail(report, "", NewConfigurationError(
			"error threshold %.2f is not in [0, 1]", o.opts.ErrorThreshold)), report.Err
	}
	if truncateToDay(o.opts.StartDate).After(truncateToDay(o.opts.EndDate)) {
		return o.fail(report, "", NewConfigurationError("start date %s is after end date %s",
			o.opts.StartDate.Format("2006-01-02"), o.opts.EndDate.Format("2006-01-02"))), report.Err
	}

	// Time dimension.
	o.setState(LoadingTime)
	report.State = LoadingTime
	rep, err := o.runStage(ctx, StageTime, o.loadTimeDim)
	report.Stages = append(report.Stages, rep)
	if err != nil {
		return o.fail(report, StageTime, err), report.Err
	}
	if err := ctx.Err(); err != nil {
		return o.fail(report, StageTime, err), report.Err
	}

	// Dimensions, in parallel. All four run to completion before the
	// barrier; a failure in one does not cancel its siblings.
	o.setState(LoadingDimensions)
	report.State = LoadingDimensions
	dimStages := []struct {
		name string
		load loadFunc
	}{
		{StageCategory, o.loadCategoryDim},
		{StageProduct, o.loadProductDim},
		{StageStore, o.loadStoreDim},
		{StageCustomer, o.loadCustomerDim},
	}

	type stageResult struct {
		rep StageReport
		err error
	}
	results := make([]stageResult, len(dimStages))
	var wg sync.WaitGroup
	for i, stage := range dimStages {
		wg.Add(1)
		go func(i int, name string, load loadFunc) {
			defer wg.Done()
			rep, err := o.runStage(ctx, name, load)
			results[i] = stageResult{rep: rep, err: err}
		}(i, stage.name, stage.load)
	}
	wg.Wait()

	var dimErr error
	var failedDim string
	for i := range results {
		report.Stages = append(report.Stages, results[i].rep)
		if results[i].err != nil && dimErr == nil {
			dimErr = results[i].err
			failedDim = dimStages[i].name
		}
	}
	if dimErr != nil {
		return o.fail(report, failedDim, dimErr), report.Err
	}
	if err := ctx.Err(); err != nil {
		return o.fail(report, StageCustomer, err), report.Err
	}

	// Facts, sequentially. Sales first so dimension key sets are warm in
	// the warehouse before the snapshot facts run.
	o.setState(LoadingFacts)
	report.State = LoadingFacts
	factStages := []struct {
		name string
		load loadFunc
	}{
		{StageSales, o.loadSalesFact},
		{StagePricing, o.loadPricingFact},
		{StageInventory, o.loadInventoryFact},
	}
	for _, stage := range factStages {
		rep, err := o.runStage(ctx, stage.name, stage.load)
		report.Stages = append(report.Stages, rep)
		if err != nil {
			return o.fail(report, stage.name, err), report.Err
		}
		if err := ctx.Err(); err != nil {
			return o.fail(report, stage.name, err), report.Err
		}
	}

	o.setState(Completed)
	report.State = Completed
	report.FinishedAt = time.Now()
	logging.Info().
		Int64("rows_written", report.TotalRowsWritten()).
		Int64("row_errors", report.TotalErrors()).
		Dur("elapsed", report.FinishedAt.Sub(report.StartedAt)).
		Msg("etl run completed")
	return report, nil
}

// runStage opens a transaction, runs the loader, enforces the error-rate
// threshold, and commits. Any error rolls the stage back.
func (o *Orchestrator) runStage(ctx context.Context, name string, load loadFunc) (StageReport, error) {
	rep := StageReport{Stage: name}

	st, err := o.wh.BeginStage(ctx)
	if err != nil {
		return rep, &WriteError{Table: name, Err: err}
	}

	if err := load(ctx, st, &rep); err != nil {
		st.Rollback(ctx)
		return rep, err
	}

	if rate := rep.ErrorRate(); len(rep.Errors) > 0 && rate > o.opts.ErrorThreshold {
		st.Rollback(ctx)
		return rep, fmt.Errorf("stage %s: rejected %d of %d rows (rate %.2f exceeds threshold %.2f)",
			name, len(rep.Errors), rep.RowsRead, rate, o.opts.ErrorThreshold)
	}

	if err := st.Commit(ctx); err != nil {
		return rep, &WriteError{Table: name, Err: err}
	}

	logging.Info().
		Str("stage", name).
		Int64("read", rep.RowsRead).
		Int64("written", rep.RowsWritten).
		Int64("skipped", rep.RowsSkipped).
		Int("errors", len(rep.Errors)).
		Msg("stage committed")
	return rep, nil
}

// fail finalizes the report for a failed run.
func (o *Orchestrator) fail(report *RunReport, stage string, err error) *RunReport {
	o.setState(Failed)
	report.State = Failed
	report.FailedStage = stage
	report.Err = err
	report.FinishedAt = time.Now()
	logging.Error().
		Err(err).
		Str("stage", stage).
		Msg("etl run failed")
	return report
}
