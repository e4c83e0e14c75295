//-------------------------------------------------------------------------
//
// dwetl - Retail Data Warehouse ETL
//
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package source

import "context"

// Schema SQL for the operational retail store. Used by the seeder and the
// integration tests; production deployments own this schema themselves.
const createSchemaSQL = `
CREATE TABLE IF NOT EXISTS category (
    id          BIGINT PRIMARY KEY,
    name        VARCHAR(100) NOT NULL,
    description TEXT
);

CREATE TABLE IF NOT EXISTS product (
    id            BIGINT PRIMARY KEY,
    code          VARCHAR(20) NOT NULL UNIQUE,
    name          VARCHAR(200) NOT NULL,
    description   TEXT,
    category_id   BIGINT,
    brand         VARCHAR(100),
    current_price NUMERIC(10,2) NOT NULL,
    unit          VARCHAR(10) NOT NULL,
    active        BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS store (
    id    BIGINT PRIMARY KEY,
    name  VARCHAR(100) NOT NULL,
    city  VARCHAR(60),
    state VARCHAR(2)
);

CREATE TABLE IF NOT EXISTS customer (
    id    BIGINT PRIMARY KEY,
    name  VARCHAR(100) NOT NULL,
    city  VARCHAR(60),
    state VARCHAR(2)
);

CREATE TABLE IF NOT EXISTS sale (
    id             BIGINT PRIMARY KEY,
    sale_date      DATE NOT NULL,
    store_id       BIGINT NOT NULL REFERENCES store(id),
    customer_id    BIGINT NOT NULL REFERENCES customer(id),
    payment_method VARCHAR(20) NOT NULL
);

CREATE TABLE IF NOT EXISTS sale_item (
    id         BIGINT PRIMARY KEY,
    sale_id    BIGINT NOT NULL REFERENCES sale(id),
    product_id BIGINT NOT NULL REFERENCES product(id),
    quantity   INTEGER NOT NULL,
    unit_price NUMERIC(10,2) NOT NULL,
    discount   NUMERIC(10,2) NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS promotion_price (
    id          BIGINT PRIMARY KEY,
    product_id  BIGINT NOT NULL REFERENCES product(id),
    promo_price NUMERIC(10,2) NOT NULL,
    active      BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS supplier_price (
    id             BIGINT PRIMARY KEY,
    product_id     BIGINT NOT NULL REFERENCES product(id),
    supplier_name  VARCHAR(100),
    purchase_price NUMERIC(10,2) NOT NULL,
    active         BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS stock_level (
    product_id  BIGINT NOT NULL REFERENCES product(id),
    store_id    BIGINT NOT NULL REFERENCES store(id),
    current_qty INTEGER NOT NULL,
    min_qty     INTEGER NOT NULL,
    max_qty     INTEGER NOT NULL,
    PRIMARY KEY (product_id, store_id)
);

CREATE INDEX IF NOT EXISTS idx_sale_date ON sale(sale_date);
CREATE INDEX IF NOT EXISTS idx_sale_item_sale ON sale_item(sale_id);
CREATE INDEX IF NOT EXISTS idx_sale_item_product ON sale_item(product_id);
CREATE INDEX IF NOT EXISTS idx_product_category ON product(category_id);
`

const dropSchemaSQL = `
DROP TABLE IF EXISTS stock_level CASCADE;
DROP TABLE IF EXISTS supplier_price CASCADE;
DROP TABLE IF EXISTS promotion_price CASCADE;
DROP TABLE IF EXISTS sale_item CASCADE;
DROP TABLE IF EXISTS sale CASCADE;
DROP TABLE IF EXISTS customer CASCADE;
DROP TABLE IF EXISTS store CASCADE;
DROP TABLE IF EXISTS product CASCADE;
DROP TABLE IF EXISTS category CASCADE;
`

// CreateSchema creates the operational store schema.
func CreateSchema(ctx context.Context, db DB) error {
	_, err := db.Exec(ctx, createSchemaSQL)
	return err
}

// DropSchema drops the operational store schema.
func DropSchema(ctx context.Context, db DB) error {
	_, err := db.Exec(ctx, dropSchemaSQL)
	return err
}
