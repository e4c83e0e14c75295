//-------------------------------------------------------------------------
//
// dwetl - Retail Data Warehouse ETL
//
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package source reads the operational retail store. All access is
// read-only except for the development seeder.
package source

import "time"

// Category is a product category row from the operational store.
type Category struct {
	ID          int64
	Name        string
	Description *string
}

// Product is an active product row, with the owning category name resolved
// via left join (nil when the category reference is dangling).
type Product struct {
	ID           int64
	Code         string
	Name         string
	Brand        string
	Unit         string
	CategoryID   *int64
	CategoryName *string
}

// Store is a store row from the operational store.
type Store struct {
	ID    int64
	Name  string
	City  string
	State string
}

// Customer is a customer row from the operational store.
type Customer struct {
	ID    int64
	Name  string
	City  string
	State string
}

// SaleLine is one sale line item joined with its parent sale header.
type SaleLine struct {
	ItemID        int64
	SaleID        int64
	Date          time.Time
	ProductID     int64
	StoreID       int64
	CustomerID    int64
	Quantity      int64
	UnitPrice     float64
	Discount      float64
	PaymentMethod string
}

// ProductPricing carries the current, promotional and purchase prices for
// one active product. Promotional and purchase prices are nil when no
// active association exists.
type ProductPricing struct {
	ProductID     int64
	CategoryID    *int64
	NormalPrice   float64
	PromoPrice    *float64
	PurchasePrice *float64
}

// StockLevel is the current inventory position for one product at one
// store, with the trailing-30-day sold quantity relative to the as-of date.
type StockLevel struct {
	ProductID  int64
	StoreID    int64
	CurrentQty int64
	MinQty     int64
	MaxQty     int64
	Sold30Days int64
}
