//-------------------------------------------------------------------------
//
// dwetl - Retail Data Warehouse ETL
//
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package warehouse owns the star schema and is the only component with
// write access to the data warehouse.
package warehouse

import "context"

// Schema SQL for the retail star schema. Dimension tables are keyed by the
// source system's identifier; fact tables reference them plus the time
// dimension. sales_fact carries the source line-item id so re-runs load
// upsert-or-ignore instead of blind-appending duplicates.
const createSchemaSQL = `
CREATE TABLE IF NOT EXISTS time_dim (
    time_key     INTEGER PRIMARY KEY,
    date         DATE NOT NULL,
    day          INTEGER NOT NULL,
    month        INTEGER NOT NULL,
    year         INTEGER NOT NULL,
    quarter      INTEGER NOT NULL,
    weekday_name VARCHAR(9) NOT NULL
);

CREATE TABLE IF NOT EXISTS category_dim (
    category_key BIGINT PRIMARY KEY,
    name         VARCHAR(100) NOT NULL,
    description  TEXT
);

CREATE TABLE IF NOT EXISTS product_dim (
    product_key   BIGINT PRIMARY KEY,
    name          VARCHAR(200) NOT NULL,
    brand         VARCHAR(100),
    category_key  BIGINT,
    category_name VARCHAR(100),
    unit          VARCHAR(10)
);

CREATE TABLE IF NOT EXISTS store_dim (
    store_key BIGINT PRIMARY KEY,
    name      VARCHAR(100) NOT NULL,
    city      VARCHAR(60),
    state     VARCHAR(2)
);

CREATE TABLE IF NOT EXISTS customer_dim (
    customer_key BIGINT PRIMARY KEY,
    name         VARCHAR(100) NOT NULL,
    city         VARCHAR(60),
    state        VARCHAR(2)
);

CREATE TABLE IF NOT EXISTS sales_fact (
    source_item_key BIGINT NOT NULL,
    time_key        INTEGER NOT NULL,
    product_key     BIGINT NOT NULL,
    store_key       BIGINT NOT NULL,
    customer_key    BIGINT NOT NULL,
    quantity        INTEGER NOT NULL,
    total_value     NUMERIC(12,2) NOT NULL,
    total_discount  NUMERIC(12,2) NOT NULL,
    payment_method  VARCHAR(20) NOT NULL,
    PRIMARY KEY (source_item_key)
);

CREATE TABLE IF NOT EXISTS pricing_fact (
    time_key          INTEGER NOT NULL,
    product_key       BIGINT NOT NULL,
    category_key      BIGINT,
    normal_price      NUMERIC(10,2) NOT NULL,
    promotional_price NUMERIC(10,2),
    purchase_price    NUMERIC(10,2),
    margin_pct        NUMERIC(7,2) NOT NULL,
    on_promotion      BOOLEAN NOT NULL,
    PRIMARY KEY (time_key, product_key)
);

CREATE TABLE IF NOT EXISTS inventory_fact (
    time_key      INTEGER NOT NULL,
    product_key   BIGINT NOT NULL,
    store_key     BIGINT NOT NULL,
    current_qty   INTEGER NOT NULL,
    min_qty       INTEGER NOT NULL,
    max_qty       INTEGER NOT NULL,
    days_of_stock INTEGER NOT NULL,
    status        VARCHAR(10) NOT NULL,
    PRIMARY KEY (time_key, product_key, store_key)
);

CREATE INDEX IF NOT EXISTS idx_sales_fact_time ON sales_fact(time_key);
CREATE INDEX IF NOT EXISTS idx_sales_fact_product ON sales_fact(product_key);
CREATE INDEX IF NOT EXISTS idx_sales_fact_store ON sales_fact(store_key);
CREATE INDEX IF NOT EXISTS idx_sales_fact_customer ON sales_fact(customer_key);
CREATE INDEX IF NOT EXISTS idx_pricing_fact_product ON pricing_fact(product_key);
CREATE INDEX IF NOT EXISTS idx_inventory_fact_product ON inventory_fact(product_key);
CREATE INDEX IF NOT EXISTS idx_time_dim_year ON time_dim(year);
`

const dropSchemaSQL = `
DROP TABLE IF EXISTS inventory_fact CASCADE;
DROP TABLE IF EXISTS pricing_fact CASCADE;
DROP TABLE IF EXISTS sales_fact CASCADE;
DROP TABLE IF EXISTS customer_dim CASCADE;
DROP TABLE IF EXISTS store_dim CASCADE;
DROP TABLE IF EXISTS product_dim CASCADE;
DROP TABLE IF EXISTS category_dim CASCADE;
DROP TABLE IF EXISTS time_dim CASCADE;
DROP TABLE IF EXISTS etl_run CASCADE;
`

// CreateSchema creates the warehouse star schema.
func CreateSchema(ctx context.Context, db DB) error {
	_, err := db.Exec(ctx, createSchemaSQL)
	return err
}

// DropSchema drops the warehouse star schema.
func DropSchema(ctx context.Context, db DB) error {
	_, err := db.Exec(ctx, dropSchemaSQL)
	return err
}
