//-------------------------------------------------------------------------
//
// pgEdge Sales ETL
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/microsoft/go-mssqldb"
	"github.com/xo/dburl"
	_ "modernc.org/sqlite"
)

// goDrivers maps dburl driver names to the database/sql driver registered by
// the imported packages.
var goDrivers = map[string]string{
	"postgres":      "pgx",
	"pgx":           "pgx",
	"sqlserver":     "sqlserver",
	"mysql":         "mysql",
	"sqlite3":       "sqlite",
	"moderncsqlite": "sqlite",
}

// SourceDriver resolves a source DSN to the database/sql driver name and the
// driver-specific data source string. Credentials, when set, replace any
// carried by the DSN. File based databases ignore them.
func SourceDriver(dsn string, creds Credentials) (driver, dataSource string, err error) {
	u, err := dburl.Parse(dsn)
	if err != nil {
		return "", "", fmt.Errorf("failed to parse source dsn: %w", err)
	}

	driver, ok := goDrivers[u.Driver]
	if !ok {
		return "", "", fmt.Errorf("unsupported source driver %q", u.Driver)
	}

	if driver != "sqlite" && (creds.User != "" || creds.Password != "") {
		user := creds.User
		if user == "" && u.User != nil {
			user = u.User.Username()
		}
		withCreds := u.URL
		if creds.Password != "" {
			withCreds.User = url.UserPassword(user, creds.Password)
		} else if p, ok := u.User.Password(); ok {
			withCreds.User = url.UserPassword(user, p)
		} else {
			withCreds.User = url.User(user)
		}
		if u, err = dburl.Parse(withCreds.String()); err != nil {
			return "", "", fmt.Errorf("failed to parse source dsn: %w", err)
		}
	}

	return driver, u.DSN, nil
}

// OpenSource opens and verifies a read connection to the source database.
func OpenSource(ctx context.Context, dsn string, creds Credentials) (*sql.DB, error) {
	driver, dataSource, err := SourceDriver(dsn, creds)
	if err != nil {
		return nil, err
	}

	sqlDB, err := sql.Open(driver, dataSource)
	if err != nil {
		return nil, fmt.Errorf("failed to open source database: %w", err)
	}
	// One phase, one connection
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping source database: %w", err)
	}

	return sqlDB, nil
}

// RedactDSN returns the DSN with its password masked, suitable for logs.
func RedactDSN(dsn string) string {
	u, err := dburl.Parse(dsn)
	if err != nil {
		return "<unparseable dsn>"
	}
	return u.Redacted()
}

// PostgresConnString returns a pgx connection string for a Postgres DSN.
// The seeder only writes to Postgres sources.
func PostgresConnString(dsn string) (string, error) {
	u, err := dburl.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("failed to parse dsn: %w", err)
	}
	if u.Driver != "postgres" && u.Driver != "pgx" {
		return "", fmt.Errorf("seeding requires a postgres source, got %q", u.Driver)
	}
	return u.DSN, nil
}
