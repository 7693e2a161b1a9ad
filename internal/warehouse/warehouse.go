//-------------------------------------------------------------------------
//
// pgEdge Sales ETL
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package warehouse defines the sales data warehouse tables the pipeline
// reads, and the denormalized analytics record it produces.
//
// Table and column names are the lowercase forms used by the source
// warehouse (salesterritory, productsubcategorykey, ...). Decoding is
// lenient about case and underscores in the source, so SalesTerritoryKey and
// sales_territory_key both bind to salesterritorykey.
package warehouse

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/pgEdge/pgedge-salesetl/internal/dataset"
)

// Source table names.
const (
	TableSalesTerritory     = "salesterritory"
	TableProductCategory    = "productcategory"
	TableProductSubcategory = "productsubcategory"
	TableProduct            = "product"
	TableFactInternetSales  = "factinternetsales"
)

// TableAnalyticsSales is the name of the denormalized output table.
const TableAnalyticsSales = "analytics_sales"

// SalesTerritory is a row of the salesterritory dimension.
type SalesTerritory struct {
	Key     int64
	Region  string
	Country string
}

func (SalesTerritory) Columns() []dataset.Column {
	return []dataset.Column{
		{Name: "salesterritorykey", Type: dataset.Integer},
		{Name: "salesterritoryregion", Type: dataset.Text},
		{Name: "salesterritorycountry", Type: dataset.Text},
	}
}

func (r SalesTerritory) Values() []any {
	return []any{r.Key, r.Region, r.Country}
}

// ProductCategory is a row of the productcategory dimension.
type ProductCategory struct {
	Key  int64
	Name string
}

func (ProductCategory) Columns() []dataset.Column {
	return []dataset.Column{
		{Name: "productcategorykey", Type: dataset.Integer},
		{Name: "englishproductcategoryname", Type: dataset.Text},
	}
}

func (r ProductCategory) Values() []any {
	return []any{r.Key, r.Name}
}

// ProductSubcategory is a row of the productsubcategory dimension.
type ProductSubcategory struct {
	Key         int64
	Name        string
	CategoryKey *int64
}

func (ProductSubcategory) Columns() []dataset.Column {
	return []dataset.Column{
		{Name: "productsubcategorykey", Type: dataset.Integer},
		{Name: "englishproductsubcategoryname", Type: dataset.Text},
		{Name: "productcategorykey", Type: dataset.Integer},
	}
}

func (r ProductSubcategory) Values() []any {
	return []any{r.Key, r.Name, intValue(r.CategoryKey)}
}

// Product is a row of the product dimension.
type Product struct {
	Key            int64
	Name           string
	Color          *string
	Size           *string
	ListPrice      decimal.NullDecimal
	SubcategoryKey *int64
}

func (Product) Columns() []dataset.Column {
	return []dataset.Column{
		{Name: "productkey", Type: dataset.Integer},
		{Name: "englishproductname", Type: dataset.Text},
		{Name: "color", Type: dataset.Text},
		{Name: "size", Type: dataset.Text},
		{Name: "listprice", Type: dataset.Decimal},
		{Name: "productsubcategorykey", Type: dataset.Integer},
	}
}

func (r Product) Values() []any {
	return []any{
		r.Key,
		r.Name,
		stringValue(r.Color),
		stringValue(r.Size),
		decimalValue(r.ListPrice),
		intValue(r.SubcategoryKey),
	}
}

// FactInternetSales is a row of the internet sales fact table. The foreign
// keys are nullable; a NULL key matches no dimension row.
type FactInternetSales struct {
	SalesOrderNumber string
	ProductKey       *int64
	OrderDate        time.Time
	OrderQuantity    int64
	UnitPrice        decimal.NullDecimal
	SalesAmount      decimal.NullDecimal
	TaxAmt           decimal.NullDecimal
	TerritoryKey     *int64
}

func (FactInternetSales) Columns() []dataset.Column {
	return []dataset.Column{
		{Name: "salesordernumber", Type: dataset.Text},
		{Name: "productkey", Type: dataset.Integer},
		{Name: "orderdate", Type: dataset.Date},
		{Name: "orderquantity", Type: dataset.Integer},
		{Name: "unitprice", Type: dataset.Decimal},
		{Name: "salesamount", Type: dataset.Decimal},
		{Name: "taxamt", Type: dataset.Decimal},
		{Name: "salesterritorykey", Type: dataset.Integer},
	}
}

func (r FactInternetSales) Values() []any {
	return []any{
		r.SalesOrderNumber,
		intValue(r.ProductKey),
		r.OrderDate,
		r.OrderQuantity,
		decimalValue(r.UnitPrice),
		decimalValue(r.SalesAmount),
		decimalValue(r.TaxAmt),
		intValue(r.TerritoryKey),
	}
}

// AnalyticsSale is one row of analytics_sales: a fact row with its product,
// subcategory, category and territory attributes inlined. Dimension fields
// are nil when the lookup found no match.
type AnalyticsSale struct {
	OrderDate          time.Time
	SalesOrderNumber   string
	OrderQuantity      int64
	SalesAmount        decimal.NullDecimal
	TaxAmt             decimal.NullDecimal
	ProductName        *string
	Color              *string
	ProductCategory    *string
	ProductSubcategory *string
	Country            *string
	Region             *string

	// TotalRevenue is SalesAmount + TaxAmt; NULL when either is NULL.
	TotalRevenue decimal.NullDecimal
}

func (AnalyticsSale) Columns() []dataset.Column {
	return []dataset.Column{
		{Name: "OrderDate", Type: dataset.Date},
		{Name: "SalesOrderNumber", Type: dataset.Text},
		{Name: "OrderQuantity", Type: dataset.Integer},
		{Name: "SalesAmount", Type: dataset.Decimal},
		{Name: "TaxAmt", Type: dataset.Decimal},
		{Name: "ProductName", Type: dataset.Text},
		{Name: "Color", Type: dataset.Text},
		{Name: "ProductCategory", Type: dataset.Text},
		{Name: "ProductSubcategory", Type: dataset.Text},
		{Name: "Country", Type: dataset.Text},
		{Name: "Region", Type: dataset.Text},
		{Name: "TotalRevenue", Type: dataset.Decimal},
	}
}

func (r AnalyticsSale) Values() []any {
	return []any{
		r.OrderDate,
		r.SalesOrderNumber,
		r.OrderQuantity,
		decimalValue(r.SalesAmount),
		decimalValue(r.TaxAmt),
		stringValue(r.ProductName),
		stringValue(r.Color),
		stringValue(r.ProductCategory),
		stringValue(r.ProductSubcategory),
		stringValue(r.Country),
		stringValue(r.Region),
		decimalValue(r.TotalRevenue),
	}
}

func intValue(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}

func stringValue(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func decimalValue(d decimal.NullDecimal) any {
	if !d.Valid {
		return nil
	}
	return d.Decimal
}
