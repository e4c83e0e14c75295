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
	"fmt"

	"github.com/varejobase/dwetl/internal/warehouse"
)

var errNoReferencePrice = errors.New("no promotional or purchase price available")

// Margin computes the margin percentage for a product. The reference price
// is the promotional price when one is active, otherwise the purchase
// price. onPromotion reports which one was used.
func Margin(normalPrice float64, promoPrice, purchasePrice *float64) (marginPct float64, onPromotion bool, err error) {
	if normalPrice <= 0 {
		return 0, false, fmt.Errorf("normal price %.2f is not positive", normalPrice)
	}

	var reference float64
	switch {
	case promoPrice != nil:
		reference = *promoPrice
		onPromotion = true
	case purchasePrice != nil:
		reference = *purchasePrice
	default:
		return 0, false, errNoReferencePrice
	}

	return (normalPrice - reference) / normalPrice * 100, onPromotion, nil
}

// loadPricingFact writes one pricing snapshot per active product for the
// as-of date. Products with no usable reference price are rejected per row.
func (o *Orchestrator) loadPricingFact(ctx context.Context, st warehouse.Stage, rep *StageReport) error {
	rows, err := o.src.ProductPricing(ctx)
	if err != nil {
		return &SourceReadError{Entity: "product pricing", Err: err}
	}
	rep.RowsRead = int64(len(rows))

	asOfKey := TimeKey(o.opts.AsOf)
	columns := []string{"time_key", "product_key", "category_key", "normal_price",
		"promotional_price", "purchase_price", "margin_pct", "on_promotion"}
	for _, r := range rows {
		key := fmt.Sprintf("product=%d", r.ProductID)
		marginPct, onPromotion, err := Margin(r.NormalPrice, r.PromoPrice, r.PurchasePrice)
		if err != nil {
			rep.Errors = append(rep.Errors, RowError{
				Stage: StagePricing,
				Key:   key,
				Err:   &TransformError{Table: StagePricing, Key: key, Reason: err.Error()},
			})
			continue
		}

		inserted, err := st.Upsert(ctx, StagePricing, []string{"time_key", "product_key"}, columns,
			[]any{asOfKey, r.ProductID, r.CategoryID, r.NormalPrice,
				r.PromoPrice, r.PurchasePrice, marginPct, onPromotion})
		if err != nil {
			return &WriteError{Table: StagePricing, Err: err}
		}
		if inserted {
			rep.RowsWritten++
		} else {
			rep.RowsSkipped++
		}
	}
	return nil
}
