//-------------------------------------------------------------------------
//
// pgEdge Sales ETL
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package dataset holds the in-memory tables handed from one pipeline stage
// to the next.
//
// Rows are typed structs (one per source table) held by a generic Table.
// Loaders do not care about row types; they consume the schema-erased Frame
// view, which exposes the ordered columns and the values of each row.
package dataset

import (
	"fmt"
	"sort"

	"github.com/pgEdge/pgedge-salesetl/internal/etlerr"
)

// ColumnType is the logical type of a column.
type ColumnType int

// Column types. Values of these columns are int64, decimal.Decimal, string
// and time.Time respectively; nil means NULL. Date keeps only the calendar
// day, Timestamp keeps the instant.
const (
	Integer ColumnType = iota
	Decimal
	Text
	Date
	Timestamp
)

func (t ColumnType) String() string {
	switch t {
	case Integer:
		return "integer"
	case Decimal:
		return "decimal"
	case Text:
		return "text"
	case Date:
		return "date"
	case Timestamp:
		return "timestamp"
	default:
		return fmt.Sprintf("ColumnType(%d)", int(t))
	}
}

// Column describes one column of a table.
type Column struct {
	Name string
	Type ColumnType
}

// Record is implemented by typed row structs. Columns must not depend on the
// receiver's value; it is called on the zero value.
type Record interface {
	Columns() []Column
	Values() []any
}

// Frame is a read-only, schema-erased view of a table.
type Frame interface {
	// Name returns the table name.
	Name() string

	// Columns returns the ordered column list.
	Columns() []Column

	// Len returns the number of rows.
	Len() int

	// Values returns row i's values aligned with Columns.
	Values(i int) []any
}

// Table is an ordered sequence of typed rows.
type Table[R Record] struct {
	name string
	Rows []R
}

// NewTable creates a table holding rows.
func NewTable[R Record](name string, rows []R) *Table[R] {
	return &Table[R]{name: name, Rows: rows}
}

// Name returns the table name.
func (t *Table[R]) Name() string { return t.name }

// Columns returns the columns of R.
func (t *Table[R]) Columns() []Column {
	var zero R
	return zero.Columns()
}

// Len returns the number of rows.
func (t *Table[R]) Len() int { return len(t.Rows) }

// Values returns row i's values.
func (t *Table[R]) Values(i int) []any { return t.Rows[i].Values() }

// Rename returns a table sharing t's rows under a new name.
func (t *Table[R]) Rename(name string) *Table[R] {
	return &Table[R]{name: name, Rows: t.Rows}
}

// Raw is a table whose shape was discovered at read time rather than known
// at compile time.
type Raw struct {
	name    string
	columns []Column
	rows    [][]any
}

// NewRaw creates a raw table. Every row must have len(columns) values.
func NewRaw(name string, columns []Column, rows [][]any) *Raw {
	return &Raw{name: name, columns: columns, rows: rows}
}

func (r *Raw) Name() string       { return r.name }
func (r *Raw) Columns() []Column  { return r.columns }
func (r *Raw) Len() int           { return len(r.rows) }
func (r *Raw) Values(i int) []any { return r.rows[i] }

// Decoded pairs a table as read from the source with its typed decoding. As
// a Frame it presents the source shape, every column under its source name;
// As returns the typed view.
type Decoded struct {
	*Raw
	Typed Frame
}

// NewDecoded pairs raw with its typed decoding.
func NewDecoded(raw *Raw, typed Frame) *Decoded {
	return &Decoded{Raw: raw, Typed: typed}
}

// Set maps table names to tables.
type Set map[string]Frame

// Names returns the table names in sorted order.
func (s Set) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RowCounts returns the row count of every table.
func (s Set) RowCounts() map[string]int64 {
	counts := make(map[string]int64, len(s))
	for name, f := range s {
		counts[name] = int64(f.Len())
	}
	return counts
}

// TotalRows returns the number of rows across all tables.
func (s Set) TotalRows() int64 {
	var total int64
	for _, f := range s {
		total += int64(f.Len())
	}
	return total
}

// As returns the named table as a Table[R], using the typed view of a Decoded
// table. It fails with a
// MissingTableError when the name is absent and a SchemaMismatchError when the
// table holds a different row type.
func As[R Record](s Set, name string) (*Table[R], error) {
	f, ok := s[name]
	if !ok {
		return nil, &etlerr.MissingTableError{Table: name}
	}
	if d, ok := f.(*Decoded); ok {
		f = d.Typed
	}
	t, ok := f.(*Table[R])
	if !ok {
		var zero R
		return nil, &etlerr.SchemaMismatchError{
			Table:  name,
			Reason: fmt.Sprintf("holds %T rows, want %T", f, zero),
		}
	}
	return t, nil
}
