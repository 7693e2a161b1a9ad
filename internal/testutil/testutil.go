//-------------------------------------------------------------------------
//
// pgEdge Sales ETL
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package testutil provides helpers for PostgreSQL integration tests.
package testutil

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	// DefaultTestConnString is the default connection string for tests.
	// Override with the SALESETL_TEST_CONN environment variable.
	DefaultTestConnString = "postgres://postgres@localhost:5432/postgres"

	// EnvTestConn names the variable holding the test connection string.
	EnvTestConn = "SALESETL_TEST_CONN"

	// TestDBPrefix is the prefix for test databases.
	TestDBPrefix = "salesetl_test_"
)

// PostgresAvailable returns the test connection string if PostgreSQL
// answers a ping, empty string otherwise.
func PostgresAvailable() string {
	connStr := os.Getenv(EnvTestConn)
	if connStr == "" {
		connStr = DefaultTestConnString
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return ""
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return ""
	}

	return connStr
}

// SkipIfNoPostgres skips the test if PostgreSQL is not available.
func SkipIfNoPostgres(t *testing.T) string {
	t.Helper()
	connStr := PostgresAvailable()
	if connStr == "" {
		t.Skip("PostgreSQL not available, skipping integration test")
	}
	return connStr
}

// TestDB is a scratch database created for one test.
type TestDB struct {
	Name       string
	ConnString string
	Pool       *pgxpool.Pool
}

// NewTestDB creates a fresh database named after purpose and connects to it.
// The database is dropped when the test ends unless the test failed, in which
// case it is kept for diagnostics.
func NewTestDB(t *testing.T, baseConnStr, purpose string) *TestDB {
	t.Helper()

	name, connStr := CreateTestDB(t, baseConnStr, purpose)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		DropTestDB(t, baseConnStr, name)
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	tdb := &TestDB{Name: name, ConnString: connStr, Pool: pool}
	t.Cleanup(func() {
		pool.Close()
		if t.Failed() {
			t.Logf("Test failed - keeping database %s for diagnostics", name)
			return
		}
		DropTestDB(t, baseConnStr, name)
	})
	return tdb
}

// CreateTestDB creates a test database and returns its name and connection
// string.
func CreateTestDB(t *testing.T, baseConnStr, purpose string) (string, string) {
	t.Helper()

	// Random suffix keeps parallel test runs apart
	randomBytes := make([]byte, 8)
	if _, err := rand.Read(randomBytes); err != nil {
		t.Fatalf("Failed to generate random database name: %v", err)
	}
	dbName := TestDBPrefix + purpose + "_" + hex.EncodeToString(randomBytes)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, baseConnStr)
	if err != nil {
		t.Fatalf("Failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	ident := pgx.Identifier{dbName}.Sanitize()
	if _, err := pool.Exec(ctx, "DROP DATABASE IF EXISTS "+ident); err != nil {
		t.Fatalf("Failed to drop existing test database: %v", err)
	}
	if _, err := pool.Exec(ctx, "CREATE DATABASE "+ident); err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	config, err := pgxpool.ParseConfig(baseConnStr)
	if err != nil {
		t.Fatalf("Failed to parse connection string: %v", err)
	}

	// ConnString() doesn't reflect changes made to ConnConfig.Database
	cc := config.ConnConfig
	if cc.Password != "" {
		return dbName, fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
			cc.User, cc.Password, cc.Host, cc.Port, dbName)
	}
	return dbName, fmt.Sprintf("postgres://%s@%s:%d/%s", cc.User, cc.Host, cc.Port, dbName)
}

// DropTestDB drops the test database.
func DropTestDB(t *testing.T, baseConnStr, dbName string) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, baseConnStr)
	if err != nil {
		t.Logf("Warning: Failed to connect to drop test database: %v", err)
		return
	}
	defer pool.Close()

	// Terminate connections to the database
	_, _ = pool.Exec(ctx, `
        SELECT pg_terminate_backend(pid)
        FROM pg_stat_activity
        WHERE datname = $1 AND pid <> pg_backend_pid()
    `, dbName)

	if _, err := pool.Exec(ctx, "DROP DATABASE IF EXISTS "+pgx.Identifier{dbName}.Sanitize()); err != nil {
		t.Logf("Warning: Failed to drop test database: %v", err)
	}
}

// CountRows returns the number of rows in a schema-qualified table.
func CountRows(t *testing.T, pool *pgxpool.Pool, schema, table string) int64 {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var n int64
	sql := "SELECT count(*) FROM " + pgx.Identifier{schema, table}.Sanitize()
	if err := pool.QueryRow(ctx, sql).Scan(&n); err != nil {
		t.Fatalf("Failed to count rows in %s.%s: %v", schema, table, err)
	}
	return n
}

// ColumnNames returns the column names of a table in ordinal order.
func ColumnNames(t *testing.T, pool *pgxpool.Pool, schema, table string) []string {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	rows, err := pool.Query(ctx, `
        SELECT column_name FROM information_schema.columns
        WHERE table_schema = $1 AND table_name = $2
        ORDER BY ordinal_position
    `, schema, table)
	if err != nil {
		t.Fatalf("Failed to list columns of %s.%s: %v", schema, table, err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		t.Fatalf("Failed to list columns of %s.%s: %v", schema, table, err)
	}
	return names
}
