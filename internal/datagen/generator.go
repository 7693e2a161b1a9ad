//-------------------------------------------------------------------------
//
// pgEdge Sales ETL
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package datagen

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/pgEdge/pgedge-salesetl/internal/batch"
	"github.com/pgEdge/pgedge-salesetl/internal/dataset"
	"github.com/pgEdge/pgedge-salesetl/internal/warehouse"
)

// Reference data
var categoryNames = []string{"Bikes", "Components", "Clothing", "Accessories"}

var subcategoryCatalog = []struct {
	name     string
	category int
}{
	{"Mountain Bikes", 0}, {"Road Bikes", 0}, {"Helmets", 3}, {"Jerseys", 2}, {"Wheels", 1},
	{"Touring Bikes", 0}, {"Handlebars", 1}, {"Gloves", 2}, {"Bottles and Cages", 3}, {"Brakes", 1},
	{"Shorts", 2}, {"Locks", 3},
}

var sizes = []string{"S", "M", "L", "XL"}

// Counts sets how many rows to generate per table.
type Counts struct {
	Territories   int
	Categories    int
	Subcategories int
	Products      int
	Sales         int
}

// Warehouse holds one generated set of source tables.
type Warehouse struct {
	Territories   []warehouse.SalesTerritory
	Categories    []warehouse.ProductCategory
	Subcategories []warehouse.ProductSubcategory
	Products      []warehouse.Product
	Sales         []warehouse.FactInternetSales
}

// RowCounts returns the number of generated rows per table.
func (w *Warehouse) RowCounts() map[string]int64 {
	return map[string]int64{
		warehouse.TableSalesTerritory:     int64(len(w.Territories)),
		warehouse.TableProductCategory:    int64(len(w.Categories)),
		warehouse.TableProductSubcategory: int64(len(w.Subcategories)),
		warehouse.TableProduct:            int64(len(w.Products)),
		warehouse.TableFactInternetSales:  int64(len(w.Sales)),
	}
}

// Generator generates and inserts source warehouse data.
type Generator struct {
	faker  *Faker
	cfg    batch.Config
	counts Counts
	now    time.Time
	logger zerolog.Logger
}

// NewGenerator creates a warehouse data generator. A zero seed picks a
// random one.
func NewGenerator(counts Counts, seed uint64, logger zerolog.Logger) *Generator {
	faker := NewFaker()
	if seed != 0 {
		faker = NewFakerWithSeed(seed)
	}
	return &Generator{
		faker:  faker,
		cfg:    batch.SeedConfig(),
		counts: counts,
		now:    time.Now().UTC(),
		logger: logger,
	}
}

// Generate builds the source tables in memory. Every foreign key refers to an
// existing row.
func (g *Generator) Generate() (*Warehouse, error) {
	c := g.counts
	if c.Territories < 1 || c.Categories < 1 || c.Subcategories < c.Categories || c.Products < 1 || c.Sales < 0 {
		return nil, fmt.Errorf("invalid seed counts %+v", c)
	}

	w := &Warehouse{}

	for i := 1; i <= c.Territories; i++ {
		w.Territories = append(w.Territories, warehouse.SalesTerritory{
			Key:     int64(i),
			Region:  Truncate(g.faker.Region(), 50),
			Country: Truncate(g.faker.Country(), 50),
		})
	}

	for i := 0; i < c.Categories; i++ {
		name := fmt.Sprintf("Category %d", i+1)
		if i < len(categoryNames) {
			name = categoryNames[i]
		}
		w.Categories = append(w.Categories, warehouse.ProductCategory{Key: int64(i + 1), Name: name})
	}

	for i := 0; i < c.Subcategories; i++ {
		name := fmt.Sprintf("Subcategory %d", i+1)
		category := i % c.Categories
		if i < len(subcategoryCatalog) {
			name = subcategoryCatalog[i].name
			if subcategoryCatalog[i].category < c.Categories {
				category = subcategoryCatalog[i].category
			}
		}
		categoryKey := int64(category + 1)
		w.Subcategories = append(w.Subcategories, warehouse.ProductSubcategory{
			Key:         int64(i + 1),
			Name:        name,
			CategoryKey: &categoryKey,
		})
	}

	for i := 1; i <= c.Products; i++ {
		sub := Choose(g.faker, w.Subcategories)
		color := Truncate(g.faker.Color(), 20)
		size := Choose(g.faker, sizes)
		w.Products = append(w.Products, warehouse.Product{
			Key:            int64(i),
			Name:           Truncate(fmt.Sprintf("%s %s", capitalize(g.faker.Word()), strings.TrimSuffix(sub.Name, "s")), 100),
			Color:          &color,
			Size:           &size,
			ListPrice:      decimal.NewNullDecimal(decimal.NewFromFloat(g.faker.Price(50, 3000)).Round(2)),
			SubcategoryKey: &sub.Key,
		})
	}

	start := g.now.AddDate(-3, 0, 0)
	for i := 0; i < c.Sales; i++ {
		product := Choose(g.faker, w.Products)
		territory := Choose(g.faker, w.Territories)
		qty := int64(g.faker.Int(1, 5))
		unitPrice := product.ListPrice.Decimal
		sales := unitPrice.Mul(decimal.NewFromInt(qty)).Round(2)
		tax := sales.Mul(decimal.NewFromFloat(g.faker.Float64(0.05, 0.12))).Round(2)
		orderDate := g.faker.DateRange(start, g.now).UTC()

		w.Sales = append(w.Sales, warehouse.FactInternetSales{
			SalesOrderNumber: fmt.Sprintf("SO%d", 70000+i),
			ProductKey:       &product.Key,
			OrderDate:        time.Date(orderDate.Year(), orderDate.Month(), orderDate.Day(), 0, 0, 0, 0, time.UTC),
			OrderQuantity:    qty,
			UnitPrice:        decimal.NewNullDecimal(unitPrice),
			SalesAmount:      decimal.NewNullDecimal(sales),
			TaxAmt:           decimal.NewNullDecimal(tax),
			TerritoryKey:     &territory.Key,
		})
	}

	return w, nil
}

// Seed creates the source tables, empties them and fills them with generated
// data. With dropExisting the tables are dropped and recreated first.
func (g *Generator) Seed(ctx context.Context, db warehouse.Execer, dropExisting bool) (map[string]int64, error) {
	w, err := g.Generate()
	if err != nil {
		return nil, err
	}

	if dropExisting {
		g.logger.Info().Msg("Dropping existing source tables")
		if err := warehouse.DropSchema(ctx, db); err != nil {
			return nil, fmt.Errorf("failed to drop schema: %w", err)
		}
	}
	if err := warehouse.CreateSchema(ctx, db); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	if err := warehouse.Truncate(ctx, db); err != nil {
		return nil, fmt.Errorf("failed to truncate tables: %w", err)
	}

	// Parents before children
	if err := insertRows(ctx, g, db, warehouse.TableSalesTerritory, w.Territories); err != nil {
		return nil, fmt.Errorf("failed to generate territories: %w", err)
	}
	if err := insertRows(ctx, g, db, warehouse.TableProductCategory, w.Categories); err != nil {
		return nil, fmt.Errorf("failed to generate categories: %w", err)
	}
	if err := insertRows(ctx, g, db, warehouse.TableProductSubcategory, w.Subcategories); err != nil {
		return nil, fmt.Errorf("failed to generate subcategories: %w", err)
	}
	if err := insertRows(ctx, g, db, warehouse.TableProduct, w.Products); err != nil {
		return nil, fmt.Errorf("failed to generate products: %w", err)
	}
	if err := insertRows(ctx, g, db, warehouse.TableFactInternetSales, w.Sales); err != nil {
		return nil, fmt.Errorf("failed to generate sales: %w", err)
	}

	return w.RowCounts(), nil
}

func insertRows[R dataset.Record](ctx context.Context, g *Generator, db warehouse.Execer, table string, rows []R) error {
	g.logger.Info().Int("count", len(rows)).Str("table", table).Msg("Generating rows")
	progress := batch.NewProgressReporter(g.logger, table, int64(len(rows)), g.cfg.ProgressInterval)

	var zero R
	names := make([]string, 0, len(zero.Columns()))
	for _, c := range zero.Columns() {
		names = append(names, c.Name)
	}
	columns := "(" + strings.Join(names, ", ") + ")"

	values := make([]string, 0, g.cfg.Size)
	err := batch.Each(len(rows), g.cfg.Size, func(start, end int) error {
		values = values[:0]
		for _, r := range rows[start:end] {
			values = append(values, rowLiteral(r.Values()))
		}
		if err := executeBatchInsert(ctx, db, table, columns, values); err != nil {
			return err
		}
		progress.Update(int64(end - start))
		return nil
	})
	if err != nil {
		return err
	}

	progress.Done()
	return nil
}

func executeBatchInsert(ctx context.Context, db warehouse.Execer, table, columns string, values []string) error {
	if len(values) == 0 {
		return nil
	}
	sql := fmt.Sprintf("INSERT INTO %s %s VALUES %s", table, columns, strings.Join(values, ", "))
	_, err := db.Exec(ctx, sql)
	return err
}

func rowLiteral(values []any) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = sqlLiteral(v)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func sqlLiteral(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case int64:
		return fmt.Sprintf("%d", v)
	case decimal.Decimal:
		return v.String()
	case time.Time:
		return "'" + v.Format("2006-01-02") + "'"
	case string:
		return "'" + escapeSingleQuote(v) + "'"
	default:
		return "'" + escapeSingleQuote(fmt.Sprint(v)) + "'"
	}
}

func escapeSingleQuote(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
