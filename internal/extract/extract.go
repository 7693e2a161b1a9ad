//-------------------------------------------------------------------------
//
// pgEdge Sales ETL
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package extract reads named tables from the source database into memory.
package extract

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	mssql "github.com/microsoft/go-mssqldb"
	"github.com/rs/zerolog"

	"github.com/pgEdge/pgedge-salesetl/internal/dataset"
	"github.com/pgEdge/pgedge-salesetl/internal/db"
	"github.com/pgEdge/pgedge-salesetl/internal/etlerr"
	"github.com/pgEdge/pgedge-salesetl/internal/warehouse"
)

// identifierPattern accepts a table name, optionally schema-qualified.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// OpenFunc opens a connection to the source database.
type OpenFunc func(ctx context.Context, dsn string, creds db.Credentials) (*sql.DB, error)

// Config configures an Extractor.
type Config struct {
	// DSN locates the source database; see db.SourceDriver.
	DSN string

	// Tables lists the tables to read.
	Tables []string

	Credentials db.Credentials

	// Open overrides how the source is opened. Defaults to db.OpenSource.
	Open OpenFunc
}

// Extractor reads a fixed list of tables from the source database.
type Extractor struct {
	cfg    Config
	logger zerolog.Logger
}

// New creates an Extractor.
func New(cfg Config, logger zerolog.Logger) *Extractor {
	if cfg.Open == nil {
		cfg.Open = db.OpenSource
	}
	return &Extractor{cfg: cfg, logger: logger}
}

// Extract reads every configured table and returns them keyed by canonical
// table name. Every table keeps its source shape as a frame; warehouse tables
// also carry a typed decoding reachable through dataset.As. The first failure aborts the extract and no
// partial result is returned. The source is never written to.
func (e *Extractor) Extract(ctx context.Context) (dataset.Set, error) {
	if len(e.cfg.Tables) == 0 {
		return nil, &etlerr.MissingTableError{Err: errors.New("no tables requested")}
	}
	requested := make(map[string]string, len(e.cfg.Tables))
	for _, name := range e.cfg.Tables {
		if !identifierPattern.MatchString(name) {
			return nil, &etlerr.MissingTableError{
				Table: name,
				Err:   errors.New("invalid table name"),
			}
		}
		key := warehouse.CanonicalName(name)
		if first, dup := requested[key]; dup {
			return nil, &etlerr.MissingTableError{
				Table: name,
				Err:   fmt.Errorf("same table as %q requested twice", first),
			}
		}
		requested[key] = name
	}

	e.logger.Info().
		Str("source", db.RedactDSN(e.cfg.DSN)).
		Msg("Connecting to source database")

	conn, err := e.cfg.Open(ctx, e.cfg.DSN, e.cfg.Credentials)
	if err != nil {
		return nil, &etlerr.ConnectionError{Target: "source", Err: err}
	}
	defer conn.Close()

	set := make(dataset.Set, len(e.cfg.Tables))
	for _, name := range e.cfg.Tables {
		key := warehouse.CanonicalName(name)

		e.logger.Info().Str("table", name).Msg("Extracting table")

		frame, err := readTable(ctx, conn, name, key)
		if err != nil {
			e.logger.Error().Err(err).Str("table", name).Msg("Extraction failed")
			return nil, err
		}
		set[key] = frame

		e.logger.Info().
			Str("table", name).
			Int("rows", frame.Len()).
			Msg("Extracted table")
	}

	return set, nil
}

func readTable(ctx context.Context, conn *sql.DB, name, key string) (dataset.Frame, error) {
	rows, err := conn.QueryContext(ctx, "SELECT * FROM "+name)
	if err != nil {
		return nil, classify(name, err)
	}
	defer rows.Close()

	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, &etlerr.ConnectionError{Target: "source", Err: err}
	}
	columns := make([]string, len(columnTypes))
	for i, ct := range columnTypes {
		columns[i] = ct.Name()
	}

	var values [][]any
	for rows.Next() {
		row := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range row {
			ptrs[i] = &row[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, &etlerr.SchemaMismatchError{Table: key, Reason: "scan failed", Err: err}
		}
		values = append(values, row)
	}
	if err := rows.Err(); err != nil {
		return nil, &etlerr.ConnectionError{Target: "source", Err: err}
	}

	decode, ok := warehouse.Lookup(key)
	if !ok {
		return rawFrame(key, columnTypes, values), nil
	}

	// Decode before rawFrame normalizes values in place
	typed, err := decode(key, columns, values)
	if err != nil {
		return nil, err
	}
	return dataset.NewDecoded(rawFrame(key, columnTypes, values), typed), nil
}

// classify maps a failed SELECT to a missing table or a connection problem.
func classify(table string, err error) error {
	if isUndefinedTable(err) {
		return &etlerr.MissingTableError{Table: table, Err: err}
	}
	return &etlerr.ConnectionError{Target: "source", Err: err}
}

func isUndefinedTable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "42P01"
	}
	var msErr mssql.Error
	if errors.As(err, &msErr) {
		return msErr.Number == 208
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1146
	}
	// modernc sqlite reports a plain message
	return strings.Contains(err.Error(), "no such table")
}

// rawFrame normalizes driver values into a frame with the source's columns.
// A column holding any value that does not fit its declared type is carried
// as text.
func rawFrame(name string, columnTypes []*sql.ColumnType, values [][]any) *dataset.Raw {
	columns := make([]dataset.Column, len(columnTypes))
	for i, ct := range columnTypes {
		columns[i] = dataset.Column{Name: ct.Name(), Type: columnType(ct.DatabaseTypeName())}
	}

	for i := range columns {
		normalized := make([]any, len(values))
		fits := true
		for r, row := range values {
			v, ok := normalizeValue(columns[i].Type, row[i])
			if !ok {
				fits = false
				break
			}
			normalized[r] = v
		}

		if !fits {
			columns[i].Type = dataset.Text
		}
		for r, row := range values {
			if fits {
				row[i] = normalized[r]
			} else {
				row[i] = textValue(row[i])
			}
		}
	}

	return dataset.NewRaw(name, columns, values)
}
