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
	"strings"
	"time"

	"github.com/varejobase/dwetl/internal/datagen"
	"github.com/varejobase/dwetl/internal/logging"
)

// Reference data
var units = []string{"un", "kg", "L", "box", "pack"}
var paymentMethods = []string{"credit_card", "debit_card", "cash", "pix"}
var paymentWeights = []int{40, 25, 20, 15}

const seedBatchSize = 500

// SeedOptions controls how much sample data the seeder produces.
type SeedOptions struct {
	Categories int
	Products   int
	Stores     int
	Customers  int
	Sales      int
	Days       int
}

// Seeder populates the operational store with sample retail data for
// development and testing. It is the only writer in this package.
type Seeder struct {
	db    DB
	faker *datagen.Faker
}

// NewSeeder creates a seeder with a random faker seed.
func NewSeeder(db DB) *Seeder {
	return &Seeder{db: db, faker: datagen.NewFaker()}
}

// NewSeederWithSeed creates a seeder with a fixed faker seed for
// reproducible data sets.
func NewSeederWithSeed(db DB, seed uint64) *Seeder {
	return &Seeder{db: db, faker: datagen.NewFakerWithSeed(seed)}
}

// Seed generates the full sample data set. The schema must exist.
func (s *Seeder) Seed(ctx context.Context, opts SeedOptions) error {
	logging.Info().
		Int("categories", opts.Categories).
		Int("products", opts.Products).
		Int("stores", opts.Stores).
		Int("customers", opts.Customers).
		Int("sales", opts.Sales).
		Msg("Seeding operational store")

	if err := s.seedCategories(ctx, opts.Categories); err != nil {
		return fmt.Errorf("failed to seed categories: %w", err)
	}
	prices, err := s.seedProducts(ctx, opts.Products, opts.Categories)
	if err != nil {
		return fmt.Errorf("failed to seed products: %w", err)
	}
	if err := s.seedStores(ctx, opts.Stores); err != nil {
		return fmt.Errorf("failed to seed stores: %w", err)
	}
	if err := s.seedCustomers(ctx, opts.Customers); err != nil {
		return fmt.Errorf("failed to seed customers: %w", err)
	}
	if err := s.seedSales(ctx, opts, prices); err != nil {
		return fmt.Errorf("failed to seed sales: %w", err)
	}
	if err := s.seedPrices(ctx, prices); err != nil {
		return fmt.Errorf("failed to seed prices: %w", err)
	}
	if err := s.seedStockLevels(ctx, opts.Products, opts.Stores); err != nil {
		return fmt.Errorf("failed to seed stock levels: %w", err)
	}

	logging.Info().Msg("Operational store seeded")
	return nil
}

func (s *Seeder) seedCategories(ctx context.Context, count int) error {
	for i := 1; i <= count; i++ {
		name := fmt.Sprintf("%s %d", s.faker.ProductCategory(), i)
		_, err := s.db.Exec(ctx, `
            INSERT INTO category (id, name, description)
            VALUES ($1, $2, $3)
        `, i, datagen.Truncate(name, 100), s.faker.Sentence(8))
		if err != nil {
			return err
		}
	}
	logging.Info().Int("count", count).Msg("categories complete")
	return nil
}

// seedProducts returns the generated current price per product id, so that
// sale line items and supplier prices stay coherent with the catalog.
func (s *Seeder) seedProducts(ctx context.Context, count, numCategories int) (map[int64]float64, error) {
	prices := make(map[int64]float64, count)
	batch := make([]string, 0, seedBatchSize)

	for i := 1; i <= count; i++ {
		price := s.faker.Price(2, 500)
		prices[int64(i)] = price

		// ~5% of the catalog is discontinued
		active := "TRUE"
		if s.faker.Int(1, 100) <= 5 {
			active = "FALSE"
		}

		batch = append(batch, fmt.Sprintf("(%d, 'PRD%06d', '%s', '%s', %d, '%s', %.2f, '%s', %s)",
			i,
			i,
			escapeSingleQuote(datagen.Truncate(s.faker.ProductName(), 200)),
			escapeSingleQuote(datagen.Truncate(s.faker.ProductDescription(), 500)),
			s.faker.Int(1, numCategories),
			escapeSingleQuote(datagen.Truncate(s.faker.Company(), 100)),
			price,
			datagen.Choose(s.faker, units),
			active,
		))

		if len(batch) >= seedBatchSize {
			if err := s.executeBatchInsert(ctx, "product",
				"(id, code, name, description, category_id, brand, current_price, unit, active)", batch); err != nil {
				return nil, err
			}
			batch = batch[:0]
		}
	}

	if len(batch) > 0 {
		if err := s.executeBatchInsert(ctx, "product",
			"(id, code, name, description, category_id, brand, current_price, unit, active)", batch); err != nil {
			return nil, err
		}
	}

	logging.Info().Int("count", count).Msg("products complete")
	return prices, nil
}

func (s *Seeder) seedStores(ctx context.Context, count int) error {
	for i := 1; i <= count; i++ {
		_, err := s.db.Exec(ctx, `
            INSERT INTO store (id, name, city, state)
            VALUES ($1, $2, $3, $4)
        `, i, fmt.Sprintf("Store #%d", i),
			datagen.Truncate(s.faker.City(), 60), s.faker.State())
		if err != nil {
			return err
		}
	}
	logging.Info().Int("count", count).Msg("stores complete")
	return nil
}

func (s *Seeder) seedCustomers(ctx context.Context, count int) error {
	batch := make([]string, 0, seedBatchSize)

	for i := 1; i <= count; i++ {
		batch = append(batch, fmt.Sprintf("(%d, '%s', '%s', '%s')",
			i,
			escapeSingleQuote(datagen.Truncate(s.faker.Name(), 100)),
			escapeSingleQuote(datagen.Truncate(s.faker.City(), 60)),
			s.faker.State(),
		))

		if len(batch) >= seedBatchSize {
			if err := s.executeBatchInsert(ctx, "customer",
				"(id, name, city, state)", batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}

	if len(batch) > 0 {
		if err := s.executeBatchInsert(ctx, "customer",
			"(id, name, city, state)", batch); err != nil {
			return err
		}
	}

	logging.Info().Int("count", count).Msg("customers complete")
	return nil
}

func (s *Seeder) seedSales(ctx context.Context, opts SeedOptions, prices map[int64]float64) error {
	saleBatch := make([]string, 0, seedBatchSize)
	itemBatch := make([]string, 0, seedBatchSize)
	progress := datagen.NewProgressReporter("sale", int64(opts.Sales), int64(opts.Sales/10))

	end := time.Now().UTC().Truncate(24 * time.Hour)
	start := end.AddDate(0, 0, -opts.Days)

	itemID := int64(0)
	for i := 1; i <= opts.Sales; i++ {
		date := s.faker.DateRange(start, end)
		saleBatch = append(saleBatch, fmt.Sprintf("(%d, '%s', %d, %d, '%s')",
			i,
			date.Format("2006-01-02"),
			s.faker.Int(1, opts.Stores),
			s.faker.Int(1, opts.Customers),
			datagen.ChooseWeighted(s.faker, paymentMethods, paymentWeights),
		))

		// 1-5 line items per sale
		numItems := s.faker.Int(1, 5)
		for j := 0; j < numItems; j++ {
			itemID++
			productID := int64(s.faker.Int(1, opts.Products))
			qty := s.faker.Int(1, 10)
			unitPrice := prices[productID]
			discount := 0.0
			if s.faker.Int(1, 100) <= 20 {
				discount = unitPrice * float64(qty) * s.faker.Float64(0.02, 0.10)
			}

			itemBatch = append(itemBatch, fmt.Sprintf("(%d, %d, %d, %d, %.2f, %.2f)",
				itemID, i, productID, qty, unitPrice, discount))

			if len(itemBatch) >= seedBatchSize {
				if err := s.flushSaleBatches(ctx, &saleBatch, &itemBatch); err != nil {
					return err
				}
			}
		}

		if len(saleBatch) >= seedBatchSize {
			if err := s.flushSaleBatches(ctx, &saleBatch, &itemBatch); err != nil {
				return err
			}
		}
		progress.Update(1)
	}

	if err := s.flushSaleBatches(ctx, &saleBatch, &itemBatch); err != nil {
		return err
	}
	progress.Done()
	return nil
}

// flushSaleBatches writes sales before line items so the sale_id foreign
// key always resolves.
func (s *Seeder) flushSaleBatches(ctx context.Context, saleBatch, itemBatch *[]string) error {
	if len(*saleBatch) > 0 {
		if err := s.executeBatchInsert(ctx, "sale",
			"(id, sale_date, store_id, customer_id, payment_method)", *saleBatch); err != nil {
			return err
		}
		*saleBatch = (*saleBatch)[:0]
	}
	if len(*itemBatch) > 0 {
		if err := s.executeBatchInsert(ctx, "sale_item",
			"(id, sale_id, product_id, quantity, unit_price, discount)", *itemBatch); err != nil {
			return err
		}
		*itemBatch = (*itemBatch)[:0]
	}
	return nil
}

func (s *Seeder) seedPrices(ctx context.Context, prices map[int64]float64) error {
	promoBatch := make([]string, 0, seedBatchSize)
	supplierBatch := make([]string, 0, seedBatchSize)

	promoID := int64(0)
	supplierID := int64(0)
	for productID := int64(1); productID <= int64(len(prices)); productID++ {
		price := prices[productID]

		// ~30% of products are on promotion
		if s.faker.Int(1, 100) <= 30 {
			promoID++
			promoBatch = append(promoBatch, fmt.Sprintf("(%d, %d, %.2f, TRUE)",
				promoID, productID, price*s.faker.Float64(0.70, 0.95)))
		}

		// ~90% of products have a supplier purchase price
		if s.faker.Int(1, 100) <= 90 {
			supplierID++
			supplierBatch = append(supplierBatch, fmt.Sprintf("(%d, %d, '%s', %.2f, TRUE)",
				supplierID, productID,
				escapeSingleQuote(datagen.Truncate(s.faker.Company(), 100)),
				price*s.faker.Float64(0.50, 0.80)))
		}

		if len(promoBatch) >= seedBatchSize {
			if err := s.executeBatchInsert(ctx, "promotion_price",
				"(id, product_id, promo_price, active)", promoBatch); err != nil {
				return err
			}
			promoBatch = promoBatch[:0]
		}
		if len(supplierBatch) >= seedBatchSize {
			if err := s.executeBatchInsert(ctx, "supplier_price",
				"(id, product_id, supplier_name, purchase_price, active)", supplierBatch); err != nil {
				return err
			}
			supplierBatch = supplierBatch[:0]
		}
	}

	if len(promoBatch) > 0 {
		if err := s.executeBatchInsert(ctx, "promotion_price",
			"(id, product_id, promo_price, active)", promoBatch); err != nil {
			return err
		}
	}
	if len(supplierBatch) > 0 {
		if err := s.executeBatchInsert(ctx, "supplier_price",
			"(id, product_id, supplier_name, purchase_price, active)", supplierBatch); err != nil {
			return err
		}
	}

	logging.Info().Msg("prices complete")
	return nil
}

func (s *Seeder) seedStockLevels(ctx context.Context, numProducts, numStores int) error {
	batch := make([]string, 0, seedBatchSize)

	for productID := 1; productID <= numProducts; productID++ {
		for storeID := 1; storeID <= numStores; storeID++ {
			minQty := s.faker.Int(5, 30)
			maxQty := minQty + s.faker.Int(50, 200)

			// Skew toward normal levels, with critical/low/excess outliers
			var current int
			switch s.faker.Int(1, 100) {
			case 1, 2, 3:
				current = 0
			case 4, 5, 6, 7, 8:
				current = s.faker.Int(1, minQty)
			case 9, 10, 11:
				current = maxQty + s.faker.Int(0, 50)
			default:
				current = s.faker.Int(minQty+1, maxQty-1)
			}

			batch = append(batch, fmt.Sprintf("(%d, %d, %d, %d, %d)",
				productID, storeID, current, minQty, maxQty))

			if len(batch) >= seedBatchSize {
				if err := s.executeBatchInsert(ctx, "stock_level",
					"(product_id, store_id, current_qty, min_qty, max_qty)", batch); err != nil {
					return err
				}
				batch = batch[:0]
			}
		}
	}

	if len(batch) > 0 {
		if err := s.executeBatchInsert(ctx, "stock_level",
			"(product_id, store_id, current_qty, min_qty, max_qty)", batch); err != nil {
			return err
		}
	}

	logging.Info().Msg("stock levels complete")
	return nil
}

func (s *Seeder) executeBatchInsert(ctx context.Context, table, columns string, values []string) error {
	if len(values) == 0 {
		return nil
	}
	sql := fmt.Sprintf("INSERT INTO %s %s VALUES %s", table, columns, strings.Join(values, ", "))
	_, err := s.db.Exec(ctx, sql)
	return err
}

func escapeSingleQuote(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
