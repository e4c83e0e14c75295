//-------------------------------------------------------------------------
//
// dwetl - Retail Data Warehouse ETL
//
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package warehouse

import (
	"context"
	"fmt"
	"time"
)

// createRunTableSQL creates the run-history table if it doesn't exist.
const createRunTableSQL = `
CREATE TABLE IF NOT EXISTS etl_run (
    id           BIGSERIAL PRIMARY KEY,
    started_at   TIMESTAMPTZ NOT NULL,
    finished_at  TIMESTAMPTZ NOT NULL,
    state        TEXT NOT NULL,
    failed_stage TEXT,
    error        TEXT,
    rows_written BIGINT NOT NULL,
    row_errors   BIGINT NOT NULL
)`

// RunRecord is one persisted orchestrator run outcome.
type RunRecord struct {
	ID          int64
	StartedAt   time.Time
	FinishedAt  time.Time
	State       string
	FailedStage string
	Error       string
	RowsWritten int64
	RowErrors   int64
}

// RecordRun persists a run outcome to the warehouse for observability.
func RecordRun(ctx context.Context, db DB, rec RunRecord) error {
	if _, err := db.Exec(ctx, createRunTableSQL); err != nil {
		return fmt.Errorf("create etl_run table: %w", err)
	}

	var failedStage, errMsg any
	if rec.FailedStage != "" {
		failedStage = rec.FailedStage
	}
	if rec.Error != "" {
		errMsg = rec.Error
	}

	_, err := db.Exec(ctx, `
        INSERT INTO etl_run
            (started_at, finished_at, state, failed_stage, error,
             rows_written, row_errors)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `, rec.StartedAt, rec.FinishedAt, rec.State, failedStage, errMsg,
		rec.RowsWritten, rec.RowErrors)
	if err != nil {
		return fmt.Errorf("record run: %w", err)
	}
	return nil
}

// RecentRuns returns the most recent run records, newest first.
func RecentRuns(ctx context.Context, db DB, limit int) ([]RunRecord, error) {
	rows, err := db.Query(ctx, `
        SELECT id, started_at, finished_at, state,
               COALESCE(failed_stage, ''), COALESCE(error, ''),
               rows_written, row_errors
        FROM etl_run
        ORDER BY started_at DESC
        LIMIT $1
    `, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.State,
			&r.FailedStage, &r.Error, &r.RowsWritten, &r.RowErrors); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
