package extract

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/pgEdge/pgedge-salesetl/internal/dataset"
	"github.com/pgEdge/pgedge-salesetl/internal/db"
	"github.com/pgEdge/pgedge-salesetl/internal/etlerr"
	"github.com/pgEdge/pgedge-salesetl/internal/warehouse"
)

// sourceSQL builds a small warehouse using the underscore column naming of
// the original ORM models.
const sourceSQL = `
CREATE TABLE salesterritory (
    sales_territory_key     INTEGER PRIMARY KEY,
    sales_territory_region  VARCHAR(50) NOT NULL,
    sales_territory_country VARCHAR(50) NOT NULL
);
CREATE TABLE productcategory (
    product_category_key          INTEGER PRIMARY KEY,
    english_product_category_name VARCHAR(50) NOT NULL
);
CREATE TABLE productsubcategory (
    product_subcategory_key          INTEGER PRIMARY KEY,
    english_product_subcategory_name VARCHAR(50) NOT NULL,
    product_category_key             INTEGER
);
CREATE TABLE product (
    product_key             INTEGER PRIMARY KEY,
    english_product_name    VARCHAR(100) NOT NULL,
    color                   VARCHAR(20),
    size                    VARCHAR(10),
    list_price              NUMERIC(19,4),
    product_subcategory_key INTEGER
);
CREATE TABLE factinternetsales (
    sales_order_number  VARCHAR(20) NOT NULL,
    product_key         INTEGER NOT NULL,
    order_date          DATE NOT NULL,
    order_quantity      INTEGER NOT NULL,
    unit_price          NUMERIC(19,4) NOT NULL,
    sales_amount        NUMERIC(19,4) NOT NULL,
    tax_amt             NUMERIC(19,4) NOT NULL,
    sales_territory_key INTEGER
);
CREATE TABLE notes (
    id   INTEGER,
    body TEXT
);

INSERT INTO salesterritory VALUES (1, 'Northwest', 'United States'), (2, 'Bavaria', 'Germany');
INSERT INTO productcategory VALUES (1, 'Bikes'), (2, 'Accessories');
INSERT INTO productsubcategory VALUES (1, 'Road Bikes', 1), (2, 'Helmets', 2), (3, 'Orphans', NULL);
INSERT INTO product VALUES
    (1, 'Road-150', 'Red', 'L', '3578.27', 1),
    (2, 'Sport Helmet', NULL, NULL, '34.99', 2);
INSERT INTO factinternetsales VALUES
    ('SO70000', 1, '2023-07-14', 1, '3578.27', '3578.27', '286.26', 1),
    ('SO70001', 2, '2023-07-15', 2, '34.99', '69.98', '5.60', 2),
    ('SO70002', 2, '2023-07-16', 1, '34.99', '34.99', '2.80', NULL);
INSERT INTO notes VALUES (1, 'hello'), (2, NULL);
`

func newSource(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "warehouse.db")

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("Failed to open sqlite: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Exec(sourceSQL); err != nil {
		t.Fatalf("Failed to create source tables: %v", err)
	}
	return "sqlite:" + path
}

func TestExtractWarehouseTables(t *testing.T) {
	dsn := newSource(t)

	tables := []string{"salesterritory", "productcategory", "productsubcategory", "product", "factinternetsales"}
	ex := New(Config{DSN: dsn, Tables: tables}, zerolog.Nop())

	set, err := ex.Extract(context.Background())
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if len(set) != len(tables) {
		t.Fatalf("Expected %d tables, got %d", len(tables), len(set))
	}
	want := map[string]int64{
		"salesterritory":     2,
		"productcategory":    2,
		"productsubcategory": 3,
		"product":            2,
		"factinternetsales":  3,
	}
	for name, n := range want {
		if got := set.RowCounts()[name]; got != n {
			t.Errorf("%s: expected %d rows, got %d", name, n, got)
		}
	}

	facts, err := dataset.As[warehouse.FactInternetSales](set, "factinternetsales")
	if err != nil {
		t.Fatalf("factinternetsales not typed: %v", err)
	}
	first := facts.Rows[0]
	if first.SalesOrderNumber != "SO70000" || *first.ProductKey != 1 {
		t.Errorf("Unexpected first fact %+v", first)
	}
	if !first.TaxAmt.Decimal.Equal(decimal.RequireFromString("286.26")) {
		t.Errorf("Expected tax 286.26, got %v", first.TaxAmt)
	}
	if first.OrderDate.Format("2006-01-02") != "2023-07-14" {
		t.Errorf("Expected order date 2023-07-14, got %v", first.OrderDate)
	}
	if facts.Rows[2].TerritoryKey != nil {
		t.Error("Expected NULL territory key on third fact")
	}

	// Staging sees the source column names
	cols := set["salesterritory"].Columns()
	if cols[0].Name != "sales_territory_key" || cols[0].Type != dataset.Integer {
		t.Errorf("Expected source column sales_territory_key, got %v", cols[0])
	}

	subcats, err := dataset.As[warehouse.ProductSubcategory](set, "productsubcategory")
	if err != nil {
		t.Fatalf("productsubcategory not typed: %v", err)
	}
	if subcats.Rows[2].CategoryKey != nil {
		t.Error("Expected NULL category key on orphan subcategory")
	}
}

func TestExtractRawTable(t *testing.T) {
	dsn := newSource(t)
	ex := New(Config{DSN: dsn, Tables: []string{"notes"}}, zerolog.Nop())

	set, err := ex.Extract(context.Background())
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	f := set["notes"]
	if f == nil || f.Len() != 2 {
		t.Fatalf("Expected 2 note rows, got %v", f)
	}
	cols := f.Columns()
	if cols[0].Type != dataset.Integer || cols[1].Type != dataset.Text {
		t.Errorf("Unexpected raw columns %v", cols)
	}
	if v := f.Values(0); v[0] != int64(1) || v[1] != "hello" {
		t.Errorf("Unexpected first row %v", v)
	}
	if v := f.Values(1); v[1] != nil {
		t.Errorf("Expected NULL body, got %v", v[1])
	}
}

func TestExtractMissingTable(t *testing.T) {
	dsn := newSource(t)
	ex := New(Config{DSN: dsn, Tables: []string{"salesterritory", "factinternetsale"}}, zerolog.Nop())

	set, err := ex.Extract(context.Background())
	if set != nil {
		t.Error("Expected no partial result")
	}
	var missing *etlerr.MissingTableError
	if !errors.As(err, &missing) {
		t.Fatalf("Expected MissingTableError, got %v", err)
	}
	if missing.Table != "factinternetsale" {
		t.Errorf("Expected missing table 'factinternetsale', got %q", missing.Table)
	}
}

func TestExtractSchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.db")
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("Failed to open sqlite: %v", err)
	}
	_, err = conn.Exec(`CREATE TABLE productcategory (productcategorykey INTEGER);
		INSERT INTO productcategory VALUES (1);`)
	conn.Close()
	if err != nil {
		t.Fatalf("Failed to create table: %v", err)
	}

	ex := New(Config{DSN: "sqlite:" + path, Tables: []string{"productcategory"}}, zerolog.Nop())
	_, err = ex.Extract(context.Background())

	var mismatch *etlerr.SchemaMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("Expected SchemaMismatchError, got %v", err)
	}
	if mismatch.Column != "englishproductcategoryname" {
		t.Errorf("Expected missing column englishproductcategoryname, got %q", mismatch.Column)
	}
}

func TestExtractInvalidTableName(t *testing.T) {
	opened := false
	open := func(context.Context, string, db.Credentials) (*sql.DB, error) {
		opened = true
		return nil, errors.New("should not connect")
	}

	for _, name := range []string{"product; DROP TABLE product", "a.b.c", "", "1table"} {
		ex := New(Config{DSN: "sqlite:/unused", Tables: []string{name}, Open: open}, zerolog.Nop())
		_, err := ex.Extract(context.Background())
		if etlerr.KindOf(err) != etlerr.KindMissingTable {
			t.Errorf("%q: expected missing_table, got %v", name, err)
		}
	}
	if opened {
		t.Error("Source must not be opened for invalid table names")
	}
}

func TestExtractConnectionError(t *testing.T) {
	refused := errors.New("connection refused")
	open := func(context.Context, string, db.Credentials) (*sql.DB, error) {
		return nil, refused
	}

	ex := New(Config{DSN: "postgres://localhost/etl_db", Tables: []string{"product"}, Open: open}, zerolog.Nop())
	_, err := ex.Extract(context.Background())

	if etlerr.KindOf(err) != etlerr.KindConnection {
		t.Errorf("Expected connection error, got %v", err)
	}
	if !errors.Is(err, refused) {
		t.Errorf("Expected cause to be preserved, got %v", err)
	}
}

func TestExtractQualifiedNames(t *testing.T) {
	dsn := newSource(t)
	ex := New(Config{DSN: dsn, Tables: []string{"main.SalesTerritory"}}, zerolog.Nop())

	set, err := ex.Extract(context.Background())
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if _, err := dataset.As[warehouse.SalesTerritory](set, "salesterritory"); err != nil {
		t.Errorf("Expected qualified name to be keyed as salesterritory: %v", err)
	}
}

func TestColumnType(t *testing.T) {
	tests := []struct {
		in   string
		want dataset.ColumnType
	}{
		{"INT4", dataset.Integer},
		{"bigint", dataset.Integer},
		{"NUMERIC", dataset.Decimal},
		{"DECIMAL(19,4)", dataset.Decimal},
		{"DATETIME", dataset.Timestamp},
		{"datetime2", dataset.Timestamp},
		{"TIMESTAMP", dataset.Timestamp},
		{"TIMESTAMPTZ", dataset.Timestamp},
		{"DATE", dataset.Date},
		{"NVARCHAR", dataset.Text},
		{"", dataset.Text},
	}
	for _, tt := range tests {
		if got := columnType(tt.in); got != tt.want {
			t.Errorf("columnType(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestExtractKeepsExtraSourceColumns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extra.db")
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("Failed to open sqlite: %v", err)
	}
	_, err = conn.Exec(`CREATE TABLE product (
		productkey INTEGER, englishproductname TEXT, color TEXT, size TEXT,
		listprice NUMERIC(19,4), productsubcategorykey INTEGER, weight NUMERIC(8,2));
		INSERT INTO product VALUES (1, 'Road-150', 'Red', 'L', 3578.27, 1, 7.25);`)
	conn.Close()
	if err != nil {
		t.Fatalf("Failed to create table: %v", err)
	}

	ex := New(Config{DSN: "sqlite:" + path, Tables: []string{"product"}}, zerolog.Nop())
	set, err := ex.Extract(context.Background())
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	staged := set["product"]
	cols := staged.Columns()
	if len(cols) != 7 || cols[6].Name != "weight" || cols[6].Type != dataset.Decimal {
		t.Fatalf("Expected weight to be staged, got columns %v", cols)
	}
	if w, ok := staged.Values(0)[6].(decimal.Decimal); !ok || !w.Equal(decimal.RequireFromString("7.25")) {
		t.Errorf("Expected weight 7.25, got %v", staged.Values(0)[6])
	}

	products, err := dataset.As[warehouse.Product](set, "product")
	if err != nil {
		t.Fatalf("product not typed: %v", err)
	}
	if products.Len() != 1 || products.Rows[0].Name != "Road-150" {
		t.Errorf("Unexpected typed product %+v", products.Rows)
	}
}

func TestExtractTimestampColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("Failed to open sqlite: %v", err)
	}
	_, err = conn.Exec(`CREATE TABLE events (id INTEGER, at TIMESTAMP, day DATE);
		INSERT INTO events VALUES (1, '2024-01-02 13:45:00', '2024-01-02');`)
	conn.Close()
	if err != nil {
		t.Fatalf("Failed to create table: %v", err)
	}

	ex := New(Config{DSN: "sqlite:" + path, Tables: []string{"events"}}, zerolog.Nop())
	set, err := ex.Extract(context.Background())
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	f := set["events"]
	cols := f.Columns()
	if cols[1].Type != dataset.Timestamp {
		t.Errorf("Expected TIMESTAMP column as timestamp, got %v", cols[1].Type)
	}
	if cols[2].Type != dataset.Date {
		t.Errorf("Expected DATE column as date, got %v", cols[2].Type)
	}
	at, ok := f.Values(0)[1].(time.Time)
	if !ok {
		t.Fatalf("Expected time value, got %T", f.Values(0)[1])
	}
	if at.Hour() != 13 || at.Minute() != 45 {
		t.Errorf("Expected time of day 13:45 to survive, got %v", at)
	}
}

func TestExtractRejectsTableListBeforeConnecting(t *testing.T) {
	tests := []struct {
		name   string
		tables []string
	}{
		{"empty", nil},
		{"same name twice", []string{"product", "product"}},
		{"differing case", []string{"events", "EVENTS"}},
		{"qualified and bare", []string{"dbo.Product", "product"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opened := false
			open := func(context.Context, string, db.Credentials) (*sql.DB, error) {
				opened = true
				return nil, errors.New("should not connect")
			}

			ex := New(Config{DSN: "sqlite:/unused", Tables: tt.tables, Open: open}, zerolog.Nop())
			set, err := ex.Extract(context.Background())
			if set != nil {
				t.Error("Expected no result")
			}
			if etlerr.KindOf(err) != etlerr.KindMissingTable {
				t.Errorf("Expected missing_table, got %v", err)
			}
			if opened {
				t.Error("Source must not be opened")
			}
		})
	}
}
