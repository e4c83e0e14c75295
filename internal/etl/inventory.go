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

// daysOfStockSentinel marks positions with no sales in the trailing window.
const daysOfStockSentinel = 999

// Stock status values, in evaluation order.
const (
	StatusCritical = "Critical"
	StatusLow      = "Low"
	StatusExcess   = "Excess"
	StatusNormal   = "Normal"
)

// DaysOfStock estimates how many days the current quantity covers based on
// the trailing-30-day daily sales average, rounded down. With no sales in
// the window the estimate is unbounded and the sentinel is returned.
func DaysOfStock(currentQty, sold30Days int64) int64 {
	if sold30Days <= 0 {
		return daysOfStockSentinel
	}
	dailyAvg := float64(sold30Days) / 30.0
	return int64(float64(currentQty) / dailyAvg)
}

// StockStatus classifies an inventory position. The rules are ordered:
// an empty position is Critical even when min_qty is zero, and a position
// at or below min_qty is Low even when it also sits at or above max_qty.
func StockStatus(currentQty, minQty, maxQty int64) string {
	switch {
	case currentQty == 0:
		return StatusCritical
	case currentQty <= minQty:
		return StatusLow
	case currentQty >= maxQty:
		return StatusExcess
	default:
		return StatusNormal
	}
}

// loadInventoryFact writes one stock snapshot per product and store pair
// for the as-of date.
func (o *Orchestrator) loadInventoryFact(ctx context.Context, st warehouse.Stage, rep *StageReport) error {
	levels, err := o.src.StockLevels(ctx, o.opts.AsOf)
	if err != nil {
		return &SourceReadError{Entity: "stock levels", Err: err}
	}
	rep.RowsRead = int64(len(levels))

	asOfKey := TimeKey(o.opts.AsOf)
	columns := []string{"time_key", "product_key", "store_key", "current_qty",
		"min_qty", "max_qty", "days_of_stock", "status"}
	for _, l := range levels {
		if l.CurrentQty < 0 {
			key := fmt.Sprintf("product=%d store=%d", l.ProductID, l.StoreID)
			rep.Errors = append(rep.Errors, RowError{
				Stage: StageInventory,
				Key:   key,
				Err: &TransformError{Table: StageInventory, Key: key,
					Reason: fmt.Sprintf("negative current quantity %d", l.CurrentQty)},
			})
			continue
		}

		inserted, err := st.Upsert(ctx, StageInventory,
			[]string{"time_key", "product_key", "store_key"}, columns,
			[]any{asOfKey, l.ProductID, l.StoreID, l.CurrentQty, l.MinQty, l.MaxQty,
				DaysOfStock(l.CurrentQty, l.Sold30Days),
				StockStatus(l.CurrentQty, l.MinQty, l.MaxQty)})
		if err != nil {
			return &WriteError{Table: StageInventory, Err: err}
		}
		if inserted {
			rep.RowsWritten++
		} else {
			rep.RowsSkipped++
		}
	}
	return nil
}
