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

	"github.com/varejobase/dwetl/internal/warehouse"
)

// The four dimension loaders follow the same shape: read every source row,
// upsert into the dimension keyed by the source id, and count no-ops as
// skips. Missing optional attributes pass through as NULLs.

func (o *Orchestrator) loadCategoryDim(ctx context.Context, st warehouse.Stage, rep *StageReport) error {
	cats, err := o.src.Categories(ctx)
	if err != nil {
		return &SourceReadError{Entity: "categories", Err: err}
	}
	rep.RowsRead = int64(len(cats))

	columns := []string{"category_key", "name", "description"}
	for _, c := range cats {
		inserted, err := st.Upsert(ctx, StageCategory, []string{"category_key"}, columns,
			[]any{c.ID, c.Name, c.Description})
		if err != nil {
			return &WriteError{Table: StageCategory, Err: err}
		}
		if inserted {
			rep.RowsWritten++
		} else {
			rep.RowsSkipped++
		}
	}
	return nil
}

func (o *Orchestrator) loadProductDim(ctx context.Context, st warehouse.Stage, rep *StageReport) error {
	products, err := o.src.ActiveProducts(ctx)
	if err != nil {
		return &SourceReadError{Entity: "products", Err: err}
	}
	rep.RowsRead = int64(len(products))

	columns := []string{"product_key", "name", "brand", "category_key", "category_name", "unit"}
	for _, p := range products {
		inserted, err := st.Upsert(ctx, StageProduct, []string{"product_key"}, columns,
			[]any{p.ID, p.Name, p.Brand, p.CategoryID, p.CategoryName, p.Unit})
		if err != nil {
			return &WriteError{Table: StageProduct, Err: err}
		}
		if inserted {
			rep.RowsWritten++
		} else {
			rep.RowsSkipped++
		}
	}
	return nil
}

func (o *Orchestrator) loadStoreDim(ctx context.Context, st warehouse.Stage, rep *StageReport) error {
	stores, err := o.src.Stores(ctx)
	if err != nil {
		return &SourceReadError{Entity: "stores", Err: err}
	}
	rep.RowsRead = int64(len(stores))

	columns := []string{"store_key", "name", "city", "state"}
	for _, s := range stores {
		inserted, err := st.Upsert(ctx, StageStore, []string{"store_key"}, columns,
			[]any{s.ID, s.Name, s.City, s.State})
		if err != nil {
			return &WriteError{Table: StageStore, Err: err}
		}
		if inserted {
			rep.RowsWritten++
		} else {
			rep.RowsSkipped++
		}
	}
	return nil
}

func (o *Orchestrator) loadCustomerDim(ctx context.Context, st warehouse.Stage, rep *StageReport) error {
	customers, err := o.src.Customers(ctx)
	if err != nil {
		return &SourceReadError{Entity: "customers", Err: err}
	}
	rep.RowsRead = int64(len(customers))

	columns := []string{"customer_key", "name", "city", "state"}
	for _, c := range customers {
		inserted, err := st.Upsert(ctx, StageCustomer, []string{"customer_key"}, columns,
			[]any{c.ID, c.Name, c.City, c.State})
		if err != nil {
			return &WriteError{Table: StageCustomer, Err: err}
		}
		if inserted {
			rep.RowsWritten++
		} else {
			rep.RowsSkipped++
		}
	}
	return nil
}
