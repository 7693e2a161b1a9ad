//-------------------------------------------------------------------------
//
// pgEdge Sales ETL
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package load

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/pgEdge/pgedge-salesetl/internal/batch"
	"github.com/pgEdge/pgedge-salesetl/internal/dataset"
	"github.com/pgEdge/pgedge-salesetl/internal/db"
)

// ErrTableExists is returned under PolicyFail when the target table exists.
var ErrTableExists = errors.New("table already exists")

// PostgresDestination writes tables to PostgreSQL over a single connection.
type PostgresDestination struct {
	conn   *pgx.Conn
	logger zerolog.Logger
}

// Postgres returns a Connector that opens a PostgresDestination.
func Postgres(connString string, creds db.Credentials, logger zerolog.Logger) Connector {
	return func(ctx context.Context) (Destination, error) {
		conn, err := db.ConnectSingle(ctx, connString, creds)
		if err != nil {
			return nil, err
		}
		return &PostgresDestination{conn: conn, logger: logger}, nil
	}
}

// EnsureNamespace creates the schema if it does not exist.
func (d *PostgresDestination) EnsureNamespace(ctx context.Context, namespace string) error {
	_, err := d.conn.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{namespace}.Sanitize())
	return err
}

// WriteTable writes frame in one transaction using COPY in batches of
// batchSize rows.
func (d *PostgresDestination) WriteTable(
	ctx context.Context,
	namespace string,
	frame dataset.Frame,
	policy Policy,
	progress *batch.ProgressReporter,
	batchSize int,
) (int64, error) {
	ident := pgx.Identifier{namespace, frame.Name()}
	columns := frame.Columns()

	tx, err := d.conn.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	// Rollback is a no-op once the transaction has committed
	defer func() { _ = tx.Rollback(ctx) }()

	var exists bool
	if err := tx.QueryRow(ctx, "SELECT to_regclass($1) IS NOT NULL", ident.Sanitize()).Scan(&exists); err != nil {
		return 0, fmt.Errorf("failed to check for table: %w", err)
	}

	create := CreateTableSQL(ident, columns)
	switch policy {
	case PolicyFail:
		if exists {
			return 0, ErrTableExists
		}
		if _, err := tx.Exec(ctx, create); err != nil {
			return 0, fmt.Errorf("failed to create table: %w", err)
		}
	case PolicyReplace:
		if exists {
			if _, err := tx.Exec(ctx, "DROP TABLE "+ident.Sanitize()); err != nil {
				return 0, fmt.Errorf("failed to drop table: %w", err)
			}
		}
		if _, err := tx.Exec(ctx, create); err != nil {
			return 0, fmt.Errorf("failed to create table: %w", err)
		}
	case PolicyAppend:
		if !exists {
			if _, err := tx.Exec(ctx, create); err != nil {
				return 0, fmt.Errorf("failed to create table: %w", err)
			}
		}
	default:
		return 0, fmt.Errorf("invalid policy %q", policy)
	}

	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.Name
	}

	var written int64
	err = batch.Each(frame.Len(), batchSize, func(start, end int) error {
		n, err := tx.CopyFrom(ctx, ident, names, pgx.CopyFromSlice(end-start, func(i int) ([]any, error) {
			return copyValues(frame.Values(start + i)), nil
		}))
		if err != nil {
			return fmt.Errorf("failed to copy rows %d-%d: %w", start, end, err)
		}
		written += n
		progress.Update(n)
		return nil
	})
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit: %w", err)
	}

	d.logger.Debug().
		Str("table", ident.Sanitize()).
		Int64("rows", written).
		Msg("Committed table")

	return written, nil
}

// Close closes the connection.
func (d *PostgresDestination) Close(ctx context.Context) error {
	return d.conn.Close(ctx)
}

// CreateTableSQL returns the CREATE TABLE statement for columns. Column names
// are quoted, so their case is kept.
func CreateTableSQL(ident pgx.Identifier, columns []dataset.Column) string {
	defs := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = pgx.Identifier{c.Name}.Sanitize() + " " + SQLType(c.Type)
	}
	return fmt.Sprintf("CREATE TABLE %s (\n    %s\n)", ident.Sanitize(), strings.Join(defs, ",\n    "))
}

// SQLType returns the PostgreSQL type used for a column type.
func SQLType(t dataset.ColumnType) string {
	switch t {
	case dataset.Integer:
		return "BIGINT"
	case dataset.Decimal:
		return "NUMERIC"
	case dataset.Date:
		return "DATE"
	case dataset.Timestamp:
		return "TIMESTAMPTZ"
	default:
		return "TEXT"
	}
}

// copyValues converts row values to types pgx encodes natively.
func copyValues(values []any) []any {
	out := make([]any, len(values))
	for i, v := range values {
		if d, ok := v.(decimal.Decimal); ok {
			out[i] = pgtype.Numeric{Int: d.Coefficient(), Exp: d.Exponent(), Valid: true}
			continue
		}
		out[i] = v
	}
	return out
}
