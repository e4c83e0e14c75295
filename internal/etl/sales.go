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

	"github.com/varejobase/dwetl/internal/warehouse"
)

// loadSalesFact loads one fact row per sale line item, keyed by the source
// line-item id so re-runs over an overlapping window skip already-loaded
// rows. Lines referencing dimension keys that were never loaded (inactive
// products, unknown stores) are rejected per row, not per stage.
func (o *Orchestrator) loadSalesFact(ctx context.Context, st warehouse.Stage, rep *StageReport) error {
	lines, err := o.src.SaleLines(ctx)
	if err != nil {
		return &SourceReadError{Entity: "sale lines", Err: err}
	}
	rep.RowsRead = int64(len(lines))

	timeKeys, err := o.wh.DimensionKeys(ctx, StageTime, "time_key")
	if err != nil {
		return &WriteError{Table: StageTime, Err: err}
	}
	productKeys, err := o.wh.DimensionKeys(ctx, StageProduct, "product_key")
	if err != nil {
		return &WriteError{Table: StageProduct, Err: err}
	}
	storeKeys, err := o.wh.DimensionKeys(ctx, StageStore, "store_key")
	if err != nil {
		return &WriteError{Table: StageStore, Err: err}
	}
	customerKeys, err := o.wh.DimensionKeys(ctx, StageCustomer, "customer_key")
	if err != nil {
		return &WriteError{Table: StageCustomer, Err: err}
	}

	columns := []string{"source_item_key", "time_key", "product_key", "store_key",
		"customer_key", "quantity", "total_value", "total_discount", "payment_method"}
	for _, line := range lines {
		key := fmt.Sprintf("sale_item=%d", line.ItemID)
		timeKey := TimeKey(line.Date)

		var reason string
		switch {
		case !contains(timeKeys, timeKey):
			reason = fmt.Sprintf("time_key %d not in time_dim", timeKey)
		case !contains(productKeys, line.ProductID):
			reason = fmt.Sprintf("product_key %d not in product_dim", line.ProductID)
		case !contains(storeKeys, line.StoreID):
			reason = fmt.Sprintf("store_key %d not in store_dim", line.StoreID)
		case !contains(customerKeys, line.CustomerID):
			reason = fmt.Sprintf("customer_key %d not in customer_dim", line.CustomerID)
		}
		if reason != "" {
			rep.Errors = append(rep.Errors, RowError{
				Stage: StageSales,
				Key:   key,
				Err:   &TransformError{Table: StageSales, Key: key, Reason: reason},
			})
			continue
		}

		totalValue := line.UnitPrice * float64(line.Quantity)
		inserted, err := st.Upsert(ctx, StageSales, []string{"source_item_key"}, columns,
			[]any{line.ItemID, timeKey, line.ProductID, line.StoreID, line.CustomerID,
				line.Quantity, totalValue, line.Discount, line.PaymentMethod})
		if err != nil {
			return &WriteError{Table: StageSales, Err: err}
		}
		if inserted {
			rep.RowsWritten++
		} else {
			rep.RowsSkipped++
		}
	}
	return nil
}

func contains(keys map[int64]struct{}, key int64) bool {
	_, ok := keys[key]
	return ok
}
