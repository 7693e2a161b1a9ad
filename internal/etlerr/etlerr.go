//-------------------------------------------------------------------------
//
// pgEdge Sales ETL
//
// Copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package etlerr defines the error kinds surfaced by the pipeline stages.
//
// Every kind wraps its cause, so callers can use errors.As to recover the
// kind and errors.Is to reach the underlying driver error.
package etlerr

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure.
type Kind string

// Error kinds.
const (
	KindConnection     Kind = "connection"
	KindMissingTable   Kind = "missing_table"
	KindSchemaMismatch Kind = "schema_mismatch"
	KindWrite          Kind = "write"
)

// ConnectionError reports that a source or destination database could not be
// reached or read.
type ConnectionError struct {
	// Target names the side of the pipeline, "source" or "destination".
	Target string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s connection failed: %v", e.Target, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// MissingTableError reports a requested or required table that is absent.
type MissingTableError struct {
	Table string
	Err   error
}

func (e *MissingTableError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("missing table: %v", e.Err)
	}
	if e.Err != nil {
		return fmt.Sprintf("table %q is missing: %v", e.Table, e.Err)
	}
	return fmt.Sprintf("table %q is missing", e.Table)
}

func (e *MissingTableError) Unwrap() error { return e.Err }

// SchemaMismatchError reports a column that is absent or has an incompatible
// type, or a dataset that does not hold the expected row type.
type SchemaMismatchError struct {
	Table  string
	Column string
	Reason string
	Err    error
}

func (e *SchemaMismatchError) Error() string {
	msg := fmt.Sprintf("schema mismatch in table %q", e.Table)
	if e.Column != "" {
		msg += fmt.Sprintf(" column %q", e.Column)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *SchemaMismatchError) Unwrap() error { return e.Err }

// WriteError reports a failed namespace creation or table write.
type WriteError struct {
	Namespace string
	Table     string
	Err       error
}

func (e *WriteError) Error() string {
	if e.Table == "" {
		return fmt.Sprintf("write to namespace %q failed: %v", e.Namespace, e.Err)
	}
	return fmt.Sprintf("write to %s.%s failed: %v", e.Namespace, e.Table, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// KindOf returns the pipeline error kind carried by err, or ""
// when err carries none.
func KindOf(err error) Kind {
	var (
		connErr    *ConnectionError
		missingErr *MissingTableError
		schemaErr  *SchemaMismatchError
		writeErr   *WriteError
	)
	switch {
	case errors.As(err, &connErr):
		return KindConnection
	case errors.As(err, &missingErr):
		return KindMissingTable
	case errors.As(err, &schemaErr):
		return KindSchemaMismatch
	case errors.As(err, &writeErr):
		return KindWrite
	}
	return ""
}

// TableOf returns the table named by the pipeline error carried by err.
func TableOf(err error) string {
	var (
		missingErr *MissingTableError
		schemaErr  *SchemaMismatchError
		writeErr   *WriteError
	)
	switch {
	case errors.As(err, &missingErr):
		return missingErr.Table
	case errors.As(err, &schemaErr):
		return schemaErr.Table
	case errors.As(err, &writeErr):
		return writeErr.Table
	}
	return ""
}
