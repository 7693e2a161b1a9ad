//-------------------------------------------------------------------------
//
// pgEdge Sales ETL
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package transform denormalizes the extracted warehouse tables into the
// analytics_sales table.
package transform

import (
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/pgEdge/pgedge-salesetl/internal/dataset"
	"github.com/pgEdge/pgedge-salesetl/internal/warehouse"
)

// Transformer builds analytics_sales from the five warehouse tables.
type Transformer struct {
	logger zerolog.Logger
}

// New creates a Transformer.
func New(logger zerolog.Logger) *Transformer {
	return &Transformer{logger: logger}
}

// Transform joins the fact table with its product, subcategory, category and
// territory dimensions and returns {"analytics_sales": table}. Every fact row
// is kept. The input set is not modified.
func (t *Transformer) Transform(set dataset.Set) (dataset.Set, error) {
	t.logger.Info().Msg("Starting transformation")

	facts, err := dataset.As[warehouse.FactInternetSales](set, warehouse.TableFactInternetSales)
	if err != nil {
		return nil, err
	}
	products, err := dataset.As[warehouse.Product](set, warehouse.TableProduct)
	if err != nil {
		return nil, err
	}
	subcategories, err := dataset.As[warehouse.ProductSubcategory](set, warehouse.TableProductSubcategory)
	if err != nil {
		return nil, err
	}
	categories, err := dataset.As[warehouse.ProductCategory](set, warehouse.TableProductCategory)
	if err != nil {
		return nil, err
	}
	territories, err := dataset.As[warehouse.SalesTerritory](set, warehouse.TableSalesTerritory)
	if err != nil {
		return nil, err
	}

	rows := Denormalize(facts.Rows, products.Rows, subcategories.Rows, categories.Rows, territories.Rows)
	out := dataset.NewTable(warehouse.TableAnalyticsSales, rows)

	if len(rows) != len(facts.Rows) {
		// Only possible with duplicate dimension keys
		t.logger.Warn().
			Int("facts", len(facts.Rows)).
			Int("rows", len(rows)).
			Msg("Duplicate dimension keys multiplied fact rows")
	}

	t.logger.Info().
		Int("rows", out.Len()).
		Msg("Transformation complete")

	return dataset.Set{warehouse.TableAnalyticsSales: out}, nil
}

// salesJoin accumulates the attributes of one fact row across the joins.
type salesJoin struct {
	fact           warehouse.FactInternetSales
	product        *warehouse.Product
	subcategoryKey *int64
	subcategory    *warehouse.ProductSubcategory
	categoryKey    *int64
	category       *warehouse.ProductCategory
	territory      *warehouse.SalesTerritory
}

// Denormalize performs the four left joins, in order fact-product,
// -subcategory, -category, -territory, and projects the analytics columns.
func Denormalize(
	facts []warehouse.FactInternetSales,
	products []warehouse.Product,
	subcategories []warehouse.ProductSubcategory,
	categories []warehouse.ProductCategory,
	territories []warehouse.SalesTerritory,
) []warehouse.AnalyticsSale {
	joined := make([]salesJoin, len(facts))
	for i, f := range facts {
		joined[i] = salesJoin{fact: f}
	}

	joined = LeftJoin(joined, products,
		func(j salesJoin) (int64, bool) { return nullableKey(j.fact.ProductKey) },
		func(p warehouse.Product) int64 { return p.Key },
		func(j salesJoin, p *warehouse.Product) salesJoin {
			j.product = p
			if p != nil {
				j.subcategoryKey = p.SubcategoryKey
			}
			return j
		})

	joined = LeftJoin(joined, subcategories,
		func(j salesJoin) (int64, bool) { return nullableKey(j.subcategoryKey) },
		func(s warehouse.ProductSubcategory) int64 { return s.Key },
		func(j salesJoin, s *warehouse.ProductSubcategory) salesJoin {
			j.subcategory = s
			if s != nil {
				j.categoryKey = s.CategoryKey
			}
			return j
		})

	joined = LeftJoin(joined, categories,
		func(j salesJoin) (int64, bool) { return nullableKey(j.categoryKey) },
		func(c warehouse.ProductCategory) int64 { return c.Key },
		func(j salesJoin, c *warehouse.ProductCategory) salesJoin {
			j.category = c
			return j
		})

	joined = LeftJoin(joined, territories,
		func(j salesJoin) (int64, bool) { return nullableKey(j.fact.TerritoryKey) },
		func(t warehouse.SalesTerritory) int64 { return t.Key },
		func(j salesJoin, t *warehouse.SalesTerritory) salesJoin {
			j.territory = t
			return j
		})

	out := make([]warehouse.AnalyticsSale, len(joined))
	for i, j := range joined {
		out[i] = project(j)
	}
	return out
}

func project(j salesJoin) warehouse.AnalyticsSale {
	rec := warehouse.AnalyticsSale{
		OrderDate:        j.fact.OrderDate,
		SalesOrderNumber: j.fact.SalesOrderNumber,
		OrderQuantity:    j.fact.OrderQuantity,
		SalesAmount:      j.fact.SalesAmount,
		TaxAmt:           j.fact.TaxAmt,
		TotalRevenue:     TotalRevenue(j.fact.SalesAmount, j.fact.TaxAmt),
	}

	if j.product != nil {
		rec.ProductName = strPtr(j.product.Name)
		rec.Color = j.product.Color
	}
	if j.subcategory != nil {
		rec.ProductSubcategory = strPtr(j.subcategory.Name)
	}
	if j.category != nil {
		rec.ProductCategory = strPtr(j.category.Name)
	}
	if j.territory != nil {
		rec.Country = strPtr(j.territory.Country)
		rec.Region = strPtr(j.territory.Region)
	}

	return rec
}

// TotalRevenue returns salesAmount + taxAmt, exactly. It is NULL when either
// operand is NULL.
func TotalRevenue(salesAmount, taxAmt decimal.NullDecimal) decimal.NullDecimal {
	if !salesAmount.Valid || !taxAmt.Valid {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: salesAmount.Decimal.Add(taxAmt.Decimal), Valid: true}
}

func strPtr(s string) *string {
	return &s
}
