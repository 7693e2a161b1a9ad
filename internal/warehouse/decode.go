//-------------------------------------------------------------------------
//
// pgEdge Sales ETL
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package warehouse

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/pgEdge/pgedge-salesetl/internal/dataset"
	"github.com/pgEdge/pgedge-salesetl/internal/etlerr"
)

// Decoder turns rows read from a source driver into a typed table.
// columns are the source column names, in the order of each row's values.
type Decoder func(table string, columns []string, rows [][]any) (dataset.Frame, error)

var catalog = map[string]Decoder{
	TableSalesTerritory: func(table string, columns []string, rows [][]any) (dataset.Frame, error) {
		return decodeTable(table, columns, rows, func(r *rowReader) SalesTerritory {
			return SalesTerritory{
				Key:     r.int("salesterritorykey"),
				Region:  r.text("salesterritoryregion"),
				Country: r.text("salesterritorycountry"),
			}
		})
	},
	TableProductCategory: func(table string, columns []string, rows [][]any) (dataset.Frame, error) {
		return decodeTable(table, columns, rows, func(r *rowReader) ProductCategory {
			return ProductCategory{
				Key:  r.int("productcategorykey"),
				Name: r.text("englishproductcategoryname"),
			}
		})
	},
	TableProductSubcategory: func(table string, columns []string, rows [][]any) (dataset.Frame, error) {
		return decodeTable(table, columns, rows, func(r *rowReader) ProductSubcategory {
			return ProductSubcategory{
				Key:         r.int("productsubcategorykey"),
				Name:        r.text("englishproductsubcategoryname"),
				CategoryKey: r.nullInt("productcategorykey"),
			}
		})
	},
	TableProduct: func(table string, columns []string, rows [][]any) (dataset.Frame, error) {
		return decodeTable(table, columns, rows, func(r *rowReader) Product {
			return Product{
				Key:            r.int("productkey"),
				Name:           r.text("englishproductname"),
				Color:          r.nullText("color"),
				Size:           r.nullText("size"),
				ListPrice:      r.nullDecimal("listprice"),
				SubcategoryKey: r.nullInt("productsubcategorykey"),
			}
		})
	},
	TableFactInternetSales: func(table string, columns []string, rows [][]any) (dataset.Frame, error) {
		return decodeTable(table, columns, rows, func(r *rowReader) FactInternetSales {
			return FactInternetSales{
				SalesOrderNumber: r.text("salesordernumber"),
				ProductKey:       r.nullInt("productkey"),
				OrderDate:        r.date("orderdate"),
				OrderQuantity:    r.int("orderquantity"),
				UnitPrice:        r.nullDecimal("unitprice"),
				SalesAmount:      r.nullDecimal("salesamount"),
				TaxAmt:           r.nullDecimal("taxamt"),
				TerritoryKey:     r.nullInt("salesterritorykey"),
			}
		})
	},
}

// Lookup returns the decoder for a warehouse table. The name is matched after
// lowercasing and stripping any schema qualifier.
func Lookup(name string) (Decoder, bool) {
	d, ok := catalog[CanonicalName(name)]
	return d, ok
}

// TableNames returns the names of the warehouse source tables, sorted.
func TableNames() []string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CanonicalName lowercases a table name and strips its schema qualifier,
// so dbo.FactInternetSales becomes factinternetsales.
func CanonicalName(name string) string {
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	return strings.ToLower(name)
}

// NormalizeColumn maps a source column name to its canonical form.
func NormalizeColumn(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, "_", ""))
}

func decodeTable[R dataset.Record](table string, columns []string, rows [][]any, decode func(*rowReader) R) (dataset.Frame, error) {
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		index[NormalizeColumn(c)] = i
	}

	var zero R
	for _, c := range zero.Columns() {
		if _, ok := index[c.Name]; !ok {
			return nil, &etlerr.SchemaMismatchError{
				Table:  table,
				Column: c.Name,
				Reason: "column not found in source",
			}
		}
	}

	r := &rowReader{table: table, index: index}
	out := make([]R, 0, len(rows))
	for _, values := range rows {
		r.values = values
		rec := decode(r)
		if r.err != nil {
			return nil, r.err
		}
		out = append(out, rec)
	}

	return dataset.NewTable(table, out), nil
}

// rowReader reads typed values out of one driver row. The first failure is
// kept in err and later reads return zero values.
type rowReader struct {
	table  string
	index  map[string]int
	values []any
	err    error
}

func (r *rowReader) raw(col string) any {
	return r.values[r.index[col]]
}

func (r *rowReader) fail(col string, v any, want string) {
	if r.err != nil {
		return
	}
	r.err = &etlerr.SchemaMismatchError{
		Table:  r.table,
		Column: col,
		Reason: fmt.Sprintf("cannot use %T value %v as %s", v, v, want),
	}
}

func (r *rowReader) failNull(col string) {
	if r.err != nil {
		return
	}
	r.err = &etlerr.SchemaMismatchError{
		Table:  r.table,
		Column: col,
		Reason: "unexpected NULL",
	}
}

func (r *rowReader) int(col string) int64 {
	p := r.nullInt(col)
	if p == nil {
		if r.err == nil {
			r.failNull(col)
		}
		return 0
	}
	return *p
}

func (r *rowReader) nullInt(col string) *int64 {
	if r.err != nil {
		return nil
	}
	v := r.raw(col)
	if v == nil {
		return nil
	}
	n, ok := toInt64(v)
	if !ok {
		r.fail(col, v, "integer")
		return nil
	}
	return &n
}

func (r *rowReader) text(col string) string {
	p := r.nullText(col)
	if p == nil {
		if r.err == nil {
			r.failNull(col)
		}
		return ""
	}
	return *p
}

func (r *rowReader) nullText(col string) *string {
	if r.err != nil {
		return nil
	}
	switch v := r.raw(col).(type) {
	case nil:
		return nil
	case string:
		return &v
	case []byte:
		s := string(v)
		return &s
	default:
		r.fail(col, v, "text")
		return nil
	}
}

func (r *rowReader) nullDecimal(col string) decimal.NullDecimal {
	if r.err != nil {
		return decimal.NullDecimal{}
	}
	v := r.raw(col)
	if v == nil {
		return decimal.NullDecimal{}
	}
	d, ok := toDecimal(v)
	if !ok {
		r.fail(col, v, "decimal")
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

func (r *rowReader) date(col string) time.Time {
	if r.err != nil {
		return time.Time{}
	}
	v := r.raw(col)
	if v == nil {
		r.failNull(col)
		return time.Time{}
	}
	t, ok := toTime(v)
	if !ok {
		r.fail(col, v, "date")
		return time.Time{}
	}
	return t
}

func toInt64(v any) (int64, bool) {
	switch v := v.(type) {
	case int64:
		return v, true
	case int32:
		return int64(v), true
	case int:
		return int64(v), true
	case int16:
		return int64(v), true
	case int8:
		return int64(v), true
	case uint8:
		return int64(v), true
	case float64:
		// int64 covers [-2^63, 2^63)
		if v != math.Trunc(v) || v < -0x1p63 || v >= 0x1p63 {
			return 0, false
		}
		return int64(v), true
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return n, err == nil
	case []byte:
		n, err := strconv.ParseInt(strings.TrimSpace(string(v)), 10, 64)
		return n, err == nil
	}
	return 0, false
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch v := v.(type) {
	case decimal.Decimal:
		return v, true
	case int64:
		return decimal.NewFromInt(v), true
	case int32:
		return decimal.NewFromInt32(v), true
	case int:
		return decimal.NewFromInt(int64(v)), true
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return decimal.Decimal{}, false
		}
		return decimal.NewFromFloat(v), true
	case float32:
		return decimal.NewFromFloat32(v), true
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(v))
		return d, err == nil
	case []byte:
		d, err := decimal.NewFromString(strings.TrimSpace(string(v)))
		return d, err == nil
	}
	return decimal.Decimal{}, false
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func toTime(v any) (time.Time, bool) {
	var s string
	switch v := v.(type) {
	case time.Time:
		return v, true
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return time.Time{}, false
	}

	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
