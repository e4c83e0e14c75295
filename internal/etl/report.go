//-------------------------------------------------------------------------
//
// dwetl - Retail Data Warehouse ETL
//
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package etl

import "time"

// State is the orchestrator's position in the pipeline.
type State int

const (
	Idle State = iota
	LoadingTime
	LoadingDimensions
	LoadingFacts
	Completed
	Failed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case LoadingTime:
		return "loading_time"
	case LoadingDimensions:
		return "loading_dimensions"
	case LoadingFacts:
		return "loading_facts"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Stage names, matching the warehouse tables they load.
const (
	StageTime      = "time_dim"
	StageCategory  = "category_dim"
	StageProduct   = "product_dim"
	StageStore     = "store_dim"
	StageCustomer  = "customer_dim"
	StageSales     = "sales_fact"
	StagePricing   = "pricing_fact"
	StageInventory = "inventory_fact"
)

// RowError records one rejected row with the key identifying it.
type RowError struct {
	Stage string
	Key   string
	Err   error
}

// StageReport summarizes one table-load step.
type StageReport struct {
	Stage string

	// RowsRead is the number of source rows considered.
	RowsRead int64

	// RowsWritten is the number of rows actually written.
	RowsWritten int64

	// RowsSkipped is the number of upsert no-ops (key already present).
	RowsSkipped int64

	// Errors holds every rejected row.
	Errors []RowError
}

// ErrorRate returns the ratio of rejected rows to rows read.
func (r *StageReport) ErrorRate() float64 {
	if r.RowsRead == 0 {
		return 0
	}
	return float64(len(r.Errors)) / float64(r.RowsRead)
}

// RunReport is the structured outcome of one orchestrator run.
type RunReport struct {
	StartedAt   time.Time
	FinishedAt  time.Time
	State       State
	FailedStage string
	Err         error
	Stages      []StageReport
}

// TotalRowsWritten sums rows written across all stages.
func (r *RunReport) TotalRowsWritten() int64 {
	var n int64
	for i := range r.Stages {
		n += r.Stages[i].RowsWritten
	}
	return n
}

// TotalErrors sums rejected rows across all stages.
func (r *RunReport) TotalErrors() int64 {
	var n int64
	for i := range r.Stages {
		n += int64(len(r.Stages[i].Errors))
	}
	return n
}
