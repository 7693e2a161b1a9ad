package warehouse

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer runs a statement. *pgxpool.Pool, *pgx.Conn and pgx.Tx satisfy it.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// Schema SQL for creating the source warehouse tables in PostgreSQL.
const createSchemaSQL = `
-- SalesTerritory: Sales regions
CREATE TABLE IF NOT EXISTS salesterritory (
    salesterritorykey     INTEGER PRIMARY KEY,
    salesterritoryregion  VARCHAR(50) NOT NULL,
    salesterritorycountry VARCHAR(50) NOT NULL
);

-- ProductCategory: Top level product grouping
CREATE TABLE IF NOT EXISTS productcategory (
    productcategorykey         INTEGER PRIMARY KEY,
    englishproductcategoryname VARCHAR(50) NOT NULL
);

-- ProductSubcategory: Second level product grouping
CREATE TABLE IF NOT EXISTS productsubcategory (
    productsubcategorykey         INTEGER PRIMARY KEY,
    englishproductsubcategoryname VARCHAR(50) NOT NULL,
    productcategorykey            INTEGER REFERENCES productcategory(productcategorykey)
);

-- Product: Product catalog
CREATE TABLE IF NOT EXISTS product (
    productkey            INTEGER PRIMARY KEY,
    englishproductname    VARCHAR(100) NOT NULL,
    color                 VARCHAR(20),
    size                  VARCHAR(10),
    listprice             NUMERIC(19,4),
    productsubcategorykey INTEGER REFERENCES productsubcategory(productsubcategorykey)
);

-- FactInternetSales: One row per order line
CREATE TABLE IF NOT EXISTS factinternetsales (
    salesordernumber  VARCHAR(20) NOT NULL,
    productkey        INTEGER NOT NULL REFERENCES product(productkey),
    orderdate         DATE NOT NULL,
    orderquantity     INTEGER NOT NULL,
    unitprice         NUMERIC(19,4) NOT NULL,
    salesamount       NUMERIC(19,4) NOT NULL,
    taxamt            NUMERIC(19,4) NOT NULL,
    salesterritorykey INTEGER REFERENCES salesterritory(salesterritorykey),
    PRIMARY KEY (salesordernumber, productkey)
);

CREATE INDEX IF NOT EXISTS idx_factinternetsales_orderdate ON factinternetsales(orderdate);
CREATE INDEX IF NOT EXISTS idx_product_subcategory ON product(productsubcategorykey);
`

// Drop schema SQL
const dropSchemaSQL = `
DROP TABLE IF EXISTS factinternetsales CASCADE;
DROP TABLE IF EXISTS product CASCADE;
DROP TABLE IF EXISTS productsubcategory CASCADE;
DROP TABLE IF EXISTS productcategory CASCADE;
DROP TABLE IF EXISTS salesterritory CASCADE;
`

const truncateSQL = `
TRUNCATE TABLE factinternetsales,
               product,
               productsubcategory,
               productcategory,
               salesterritory RESTART IDENTITY CASCADE
`

// CreateSchema creates the source warehouse tables.
func CreateSchema(ctx context.Context, db Execer) error {
	_, err := db.Exec(ctx, createSchemaSQL)
	return err
}

// DropSchema drops the source warehouse tables.
func DropSchema(ctx context.Context, db Execer) error {
	_, err := db.Exec(ctx, dropSchemaSQL)
	return err
}

// Truncate empties the source warehouse tables.
func Truncate(ctx context.Context, db Execer) error {
	_, err := db.Exec(ctx, truncateSQL)
	return err
}
