//-------------------------------------------------------------------------
//
// dwetl - Retail Data Warehouse ETL
//
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package source

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is an interface that both *pgxpool.Pool and *pgx.Conn satisfy.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Reader executes read-only queries against the operational store.
type Reader struct {
	db DB
}

// NewReader creates a Reader on the given connection or pool.
func NewReader(db DB) *Reader {
	return &Reader{db: db}
}

// Categories returns all categories ordered by id.
func (r *Reader) Categories(ctx context.Context) ([]Category, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, name, description
        FROM category
        ORDER BY id
    `)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ActiveProducts returns all active products with the owning category name
// resolved. A dangling category reference yields a nil CategoryName, not an
// error.
func (r *Reader) ActiveProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.db.Query(ctx, `
        SELECT p.id, p.code, p.name, p.brand, p.unit, p.category_id, c.name
        FROM product p
        LEFT JOIN category c ON c.id = p.category_id
        WHERE p.active
        ORDER BY p.id
    `)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Code, &p.Name, &p.Brand, &p.Unit,
			&p.CategoryID, &p.CategoryName); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Stores returns all stores ordered by id.
func (r *Reader) Stores(ctx context.Context) ([]Store, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, name, city, state
        FROM store
        ORDER BY id
    `)
	if err != nil {
		return nil, fmt.Errorf("query stores: %w", err)
	}
	defer rows.Close()

	var out []Store
	for rows.Next() {
		var s Store
		if err := rows.Scan(&s.ID, &s.Name, &s.City, &s.State); err != nil {
			return nil, fmt.Errorf("scan store: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Customers returns all customers ordered by id.
func (r *Reader) Customers(ctx context.Context) ([]Customer, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, name, city, state
        FROM customer
        ORDER BY id
    `)
	if err != nil {
		return nil, fmt.Errorf("query customers: %w", err)
	}
	defer rows.Close()

	var out []Customer
	for rows.Next() {
		var c Customer
		if err := rows.Scan(&c.ID, &c.Name, &c.City, &c.State); err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SaleLines returns every sale line item joined with its parent sale
// header, ordered by line item id.
func (r *Reader) SaleLines(ctx context.Context) ([]SaleLine, error) {
	rows, err := r.db.Query(ctx, `
        SELECT si.id, si.sale_id, s.sale_date, si.product_id, s.store_id,
               s.customer_id, si.quantity, si.unit_price, si.discount,
               s.payment_method
        FROM sale_item si
        JOIN sale s ON s.id = si.sale_id
        ORDER BY si.id
    `)
	if err != nil {
		return nil, fmt.Errorf("query sale lines: %w", err)
	}
	defer rows.Close()

	var out []SaleLine
	for rows.Next() {
		var l SaleLine
		if err := rows.Scan(&l.ItemID, &l.SaleID, &l.Date, &l.ProductID,
			&l.StoreID, &l.CustomerID, &l.Quantity, &l.UnitPrice,
			&l.Discount, &l.PaymentMethod); err != nil {
			return nil, fmt.Errorf("scan sale line: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// ProductPricing returns one pricing row per active product, picking at
// most one active promotional price and one active supplier price each.
func (r *Reader) ProductPricing(ctx context.Context) ([]ProductPricing, error) {
	rows, err := r.db.Query(ctx, `
        SELECT DISTINCT ON (p.id)
               p.id, p.category_id, p.current_price,
               pp.promo_price, sp.purchase_price
        FROM product p
        LEFT JOIN promotion_price pp ON pp.product_id = p.id AND pp.active
        LEFT JOIN supplier_price sp ON sp.product_id = p.id AND sp.active
        WHERE p.active
        ORDER BY p.id, pp.id, sp.id
    `)
	if err != nil {
		return nil, fmt.Errorf("query product pricing: %w", err)
	}
	defer rows.Close()

	var out []ProductPricing
	for rows.Next() {
		var p ProductPricing
		if err := rows.Scan(&p.ProductID, &p.CategoryID, &p.NormalPrice,
			&p.PromoPrice, &p.PurchasePrice); err != nil {
			return nil, fmt.Errorf("scan product pricing: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// StockLevels returns the inventory position per product and store, each
// with the quantity sold over the 30 days up to and including asOf.
func (r *Reader) StockLevels(ctx context.Context, asOf time.Time) ([]StockLevel, error) {
	rows, err := r.db.Query(ctx, `
        SELECT sl.product_id, sl.store_id, sl.current_qty, sl.min_qty,
               sl.max_qty, COALESCE(sold.qty, 0)
        FROM stock_level sl
        LEFT JOIN (
            SELECT si.product_id, s.store_id, SUM(si.quantity) AS qty
            FROM sale_item si
            JOIN sale s ON s.id = si.sale_id
            WHERE s.sale_date > $1::date - INTERVAL '30 days'
              AND s.sale_date <= $1::date
            GROUP BY si.product_id, s.store_id
        ) sold ON sold.product_id = sl.product_id
              AND sold.store_id = sl.store_id
        ORDER BY sl.product_id, sl.store_id
    `, asOf)
	if err != nil {
		return nil, fmt.Errorf("query stock levels: %w", err)
	}
	defer rows.Close()

	var out []StockLevel
	for rows.Next() {
		var s StockLevel
		if err := rows.Scan(&s.ProductID, &s.StoreID, &s.CurrentQty,
			&s.MinQty, &s.MaxQty, &s.Sold30Days); err != nil {
			return nil, fmt.Errorf("scan stock level: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
