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
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is an interface that both *pgxpool.Pool and *pgx.Conn satisfy.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Stage is a transactional view of the warehouse for one table-load step.
// All writes between BeginStage and Commit land atomically.
type Stage interface {
	// Upsert inserts the row unless a row with equal key column values
	// already exists. It reports whether a row was written (an update in
	// overwrite mode also counts as written).
	Upsert(ctx context.Context, table string, keyColumns, columns []string, values []any) (bool, error)

	// Append inserts the row unconditionally.
	Append(ctx context.Context, table string, columns []string, values []any) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context)
}

// Writer performs all warehouse writes. When overwrite is set, dimension
// upserts refresh attributes of already-present keys (type-1) instead of
// leaving them untouched.
type Writer struct {
	db        DB
	overwrite bool
}

// NewWriter creates a warehouse writer.
func NewWriter(db DB, overwriteOnConflict bool) *Writer {
	return &Writer{db: db, overwrite: overwriteOnConflict}
}

// BeginStage opens the transaction for one table-load step.
func (w *Writer) BeginStage(ctx context.Context) (Stage, error) {
	tx, err := w.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin stage transaction: %w", err)
	}
	return &stageTx{tx: tx, overwrite: w.overwrite}, nil
}

// DimensionKeys returns the set of keys currently present in a dimension
// table, for foreign-key validation during fact loads.
func (w *Writer) DimensionKeys(ctx context.Context, table, keyColumn string) (map[int64]struct{}, error) {
	rows, err := w.db.Query(ctx, fmt.Sprintf("SELECT %s FROM %s", keyColumn, table))
	if err != nil {
		return nil, fmt.Errorf("query %s keys: %w", table, err)
	}
	defer rows.Close()

	keys := make(map[int64]struct{})
	for rows.Next() {
		var key int64
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan %s key: %w", table, err)
		}
		keys[key] = struct{}{}
	}
	return keys, rows.Err()
}

type stageTx struct {
	tx        pgx.Tx
	overwrite bool
}

func (s *stageTx) Upsert(ctx context.Context, table string, keyColumns, columns []string, values []any) (bool, error) {
	if len(columns) != len(values) {
		return false, fmt.Errorf("upsert %s: %d columns but %d values",
			table, len(columns), len(values))
	}

	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	conflict := "DO NOTHING"
	if s.overwrite {
		if set := updateSet(keyColumns, columns); set != "" {
			conflict = "DO UPDATE SET " + set
		}
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) %s",
		table,
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
		strings.Join(keyColumns, ", "),
		conflict)

	tag, err := s.tx.Exec(ctx, sql, values...)
	if err != nil {
		return false, fmt.Errorf("upsert %s: %w", table, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *stageTx) Append(ctx context.Context, table string, columns []string, values []any) error {
	if len(columns) != len(values) {
		return fmt.Errorf("append %s: %d columns but %d values",
			table, len(columns), len(values))
	}

	placeholders := make([]string, len(columns))
	for i := range columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table,
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "))

	if _, err := s.tx.Exec(ctx, sql, values...); err != nil {
		return fmt.Errorf("append %s: %w", table, err)
	}
	return nil
}

func (s *stageTx) Commit(ctx context.Context) error {
	if err := s.tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit stage transaction: %w", err)
	}
	return nil
}

func (s *stageTx) Rollback(ctx context.Context) {
	_ = s.tx.Rollback(ctx)
}

// updateSet builds the SET clause for overwrite mode: every non-key column
// takes the incoming value.
func updateSet(keyColumns, columns []string) string {
	keys := make(map[string]struct{}, len(keyColumns))
	for _, k := range keyColumns {
		keys[k] = struct{}{}
	}

	var parts []string
	for _, c := range columns {
		if _, isKey := keys[c]; isKey {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
	}
	return strings.Join(parts, ", ")
}
