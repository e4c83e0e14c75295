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
	"strings"
	"sync"
	"time"

	"github.com/varejobase/dwetl/internal/source"
	"github.com/varejobase/dwetl/internal/warehouse"
)

// fakeSource serves canned operational rows, with per-entity error
// injection for failure-path tests.
type fakeSource struct {
	categories []source.Category
	products   []source.Product
	stores     []source.Store
	customers  []source.Customer
	saleLines  []source.SaleLine
	pricing    []source.ProductPricing
	stock      []source.StockLevel

	categoriesErr error
	productsErr   error
	storesErr     error
	customersErr  error
	saleLinesErr  error
	pricingErr    error
	stockErr      error
}

func (f *fakeSource) Categories(context.Context) ([]source.Category, error) {
	return f.categories, f.categoriesErr
}

func (f *fakeSource) ActiveProducts(context.Context) ([]source.Product, error) {
	return f.products, f.productsErr
}

func (f *fakeSource) Stores(context.Context) ([]source.Store, error) {
	return f.stores, f.storesErr
}

func (f *fakeSource) Customers(context.Context) ([]source.Customer, error) {
	return f.customers, f.customersErr
}

func (f *fakeSource) SaleLines(context.Context) ([]source.SaleLine, error) {
	return f.saleLines, f.saleLinesErr
}

func (f *fakeSource) ProductPricing(context.Context) ([]source.ProductPricing, error) {
	return f.pricing, f.pricingErr
}

func (f *fakeSource) StockLevels(context.Context, time.Time) ([]source.StockLevel, error) {
	return f.stock, f.stockErr
}

// memWarehouse is an in-memory Warehouse with transactional stages. Rows
// are keyed by the stringified key column values, mirroring the upsert
// semantics of the real writer.
type memWarehouse struct {
	mu     sync.Mutex
	tables map[string]map[string]map[string]any
}

func newMemWarehouse() *memWarehouse {
	return &memWarehouse{tables: make(map[string]map[string]map[string]any)}
}

func (w *memWarehouse) BeginStage(context.Context) (warehouse.Stage, error) {
	return &memStage{w: w}, nil
}

func (w *memWarehouse) DimensionKeys(_ context.Context, table, keyColumn string) (map[int64]struct{}, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	keys := make(map[int64]struct{})
	for _, row := range w.tables[table] {
		key, ok := row[keyColumn].(int64)
		if !ok {
			return nil, fmt.Errorf("column %s of %s is not int64", keyColumn, table)
		}
		keys[key] = struct{}{}
	}
	return keys, nil
}

// rowCount returns the number of committed rows in a table.
func (w *memWarehouse) rowCount(table string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.tables[table])
}

// row returns one committed row by its key string, or nil.
func (w *memWarehouse) row(table, key string) map[string]any {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tables[table][key]
}

type memOp struct {
	table string
	key   string
	row   map[string]any
}

type memStage struct {
	w       *memWarehouse
	pending []memOp
	done    bool
}

func (s *memStage) Upsert(_ context.Context, table string, keyColumns, columns []string, values []any) (bool, error) {
	if len(columns) != len(values) {
		return false, fmt.Errorf("upsert %s: %d columns but %d values", table, len(columns), len(values))
	}

	row := make(map[string]any, len(columns))
	for i, c := range columns {
		row[c] = values[i]
	}

	keyParts := make([]string, len(keyColumns))
	for i, kc := range keyColumns {
		keyParts[i] = fmt.Sprint(row[kc])
	}
	key := strings.Join(keyParts, "|")

	if s.exists(table, key) {
		return false, nil
	}
	s.pending = append(s.pending, memOp{table: table, key: key, row: row})
	return true, nil
}

func (s *memStage) exists(table, key string) bool {
	for _, op := range s.pending {
		if op.table == table && op.key == key {
			return true
		}
	}
	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	_, ok := s.w.tables[table][key]
	return ok
}

func (s *memStage) Append(_ context.Context, table string, columns []string, values []any) error {
	row := make(map[string]any, len(columns))
	for i, c := range columns {
		row[c] = values[i]
	}
	s.pending = append(s.pending, memOp{table: table, key: fmt.Sprintf("row-%d", len(s.pending)), row: row})
	return nil
}

func (s *memStage) Commit(context.Context) error {
	if s.done {
		return fmt.Errorf("stage already finished")
	}
	s.done = true

	s.w.mu.Lock()
	defer s.w.mu.Unlock()
	for _, op := range s.pending {
		if s.w.tables[op.table] == nil {
			s.w.tables[op.table] = make(map[string]map[string]any)
		}
		s.w.tables[op.table][op.key] = op.row
	}
	return nil
}

func (s *memStage) Rollback(context.Context) {
	s.done = true
	s.pending = nil
}

func ptrStr(s string) *string { return &s }

func ptrInt64(v int64) *int64 { return &v }

func ptrFloat(v float64) *float64 { return &v }

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
