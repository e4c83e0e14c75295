//-------------------------------------------------------------------------
//
// dwetl - Retail Data Warehouse ETL
//
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package etl implements the dimensional ETL engine: the time dimension
// generator, the dimension and fact transformers, and the orchestrator
// that sequences them.
package etl

import "fmt"

// ConfigurationError reports an invalid run configuration, such as an
// inverted date range. It aborts the run before any stage starts.
type ConfigurationError struct {
	Msg string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Msg
}

// NewConfigurationError creates a ConfigurationError with a formatted message.
func NewConfigurationError(format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Msg: fmt.Sprintf(format, args...)}
}

// SourceReadError reports a failed read against the operational store.
// It aborts the current stage.
type SourceReadError struct {
	Entity string
	Err    error
}

func (e *SourceReadError) Error() string {
	return fmt.Sprintf("source read failed for %s: %v", e.Entity, e.Err)
}

func (e *SourceReadError) Unwrap() error {
	return e.Err
}

// TransformError reports a single row that could not be mapped, such as a
// fact row referencing a dimension key that was never loaded. The row is
// skipped and counted; the stage continues unless the error-rate threshold
// is exceeded.
type TransformError struct {
	Table  string
	Key    string
	Reason string
}

func (e *TransformError) Error() string {
	return fmt.Sprintf("transform failed for %s row %s: %s", e.Table, e.Key, e.Reason)
}

// WriteError reports a failed warehouse write. It aborts the stage and is
// fatal for the run.
type WriteError struct {
	Table string
	Err   error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("warehouse write failed for %s: %v", e.Table, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
