//-------------------------------------------------------------------------
//
// pgEdge Sales ETL
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package load writes datasets into a destination namespace.
package load

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/pgEdge/pgedge-salesetl/internal/batch"
	"github.com/pgEdge/pgedge-salesetl/internal/dataset"
	"github.com/pgEdge/pgedge-salesetl/internal/etlerr"
)

// Policy says what to do when a destination table already exists.
type Policy string

// Existing-table policies.
const (
	// PolicyFail refuses to write into an existing table.
	PolicyFail Policy = "fail"

	// PolicyReplace drops the table and recreates it from the data's shape.
	PolicyReplace Policy = "replace"

	// PolicyAppend inserts into the table, creating it if absent.
	PolicyAppend Policy = "append"
)

// ParsePolicy validates a policy name.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case PolicyFail, PolicyReplace, PolicyAppend:
		return p, nil
	}
	return "", fmt.Errorf("invalid if_exists policy %q: must be 'fail', 'replace' or 'append'", s)
}

// Destination is an open session on the destination database.
type Destination interface {
	// EnsureNamespace creates the namespace if it does not exist.
	EnsureNamespace(ctx context.Context, namespace string) error

	// WriteTable writes every row of frame to namespace.<frame name> under
	// policy, atomically, and returns the number of rows written.
	WriteTable(ctx context.Context, namespace string, frame dataset.Frame, policy Policy,
		progress *batch.ProgressReporter, batchSize int) (int64, error)

	// Close ends the session.
	Close(ctx context.Context) error
}

// Connector opens a destination session.
type Connector func(ctx context.Context) (Destination, error)

// Loader writes datasets into destination namespaces.
type Loader struct {
	connect Connector
	batch   batch.Config
	logger  zerolog.Logger
}

// New creates a Loader. A batch size below 1 uses the default.
func New(connect Connector, cfg batch.Config, logger zerolog.Logger) *Loader {
	defaults := batch.DefaultConfig()
	if cfg.Size < 1 {
		cfg.Size = defaults.Size
	}
	if cfg.ProgressInterval < 1 {
		cfg.ProgressInterval = defaults.ProgressInterval
	}
	return &Loader{connect: connect, batch: cfg, logger: logger}
}

// Load ensures namespace exists and then writes each table of set to a
// same-named table in it, in table-name order. It opens one destination
// session for the call. The first failure stops the load and is returned as
// a WriteError; tables written before it stay written.
func (l *Loader) Load(ctx context.Context, set dataset.Set, namespace string, policy Policy) (map[string]int64, error) {
	if _, err := ParsePolicy(string(policy)); err != nil {
		return nil, &etlerr.WriteError{Namespace: namespace, Err: err}
	}

	dest, err := l.connect(ctx)
	if err != nil {
		return nil, &etlerr.ConnectionError{Target: "destination", Err: err}
	}
	defer func() {
		if cerr := dest.Close(ctx); cerr != nil {
			l.logger.Warn().Err(cerr).Msg("Failed to close destination connection")
		}
	}()

	if err := dest.EnsureNamespace(ctx, namespace); err != nil {
		l.logger.Error().Err(err).Str("namespace", namespace).Msg("Failed to create namespace")
		return nil, &etlerr.WriteError{Namespace: namespace, Err: err}
	}
	l.logger.Info().Str("namespace", namespace).Msg("Namespace ready")

	written := make(map[string]int64, len(set))
	for _, name := range set.Names() {
		frame := set[name]
		progress := batch.NewProgressReporter(l.logger, namespace+"."+name,
			int64(frame.Len()), l.batch.ProgressInterval)

		n, err := dest.WriteTable(ctx, namespace, frame, policy, progress, l.batch.Size)
		if err != nil {
			l.logger.Error().
				Err(err).
				Str("namespace", namespace).
				Str("table", name).
				Msg("Failed to write table")
			return written, &etlerr.WriteError{Namespace: namespace, Table: name, Err: err}
		}
		progress.Done()
		written[name] = n

		l.logger.Info().
			Str("namespace", namespace).
			Str("table", name).
			Int64("rows", n).
			Str("policy", string(policy)).
			Msg("Table loaded")
	}

	return written, nil
}
