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
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pgEdge/pgedge-salesetl/internal/logging"
	"github.com/pgEdge/pgedge-salesetl/pkg/version"
)

// RunRecord is one row of the run journal.
type RunRecord struct {
	RunID         uuid.UUID
	StartedAt     time.Time
	FinishedAt    time.Time
	Status        string
	FailedPhase   string
	Error         string
	StagingRows   int64
	AnalyticsRows int64
	Fingerprint   uint64
	Version       string
}

// createRunLogSQL creates the journal table if it doesn't exist.
const createRunLogSQL = `
CREATE TABLE IF NOT EXISTS %s (
    run_id         UUID PRIMARY KEY,
    started_at     TIMESTAMPTZ NOT NULL,
    finished_at    TIMESTAMPTZ NOT NULL,
    status         TEXT NOT NULL,
    failed_phase   TEXT,
    error          TEXT,
    staging_rows   BIGINT NOT NULL DEFAULT 0,
    analytics_rows BIGINT NOT NULL DEFAULT 0,
    fingerprint    TEXT,
    version        TEXT
)`

func runLogIdent(table string) string {
	return pgx.Identifier{"public", table}.Sanitize()
}

// EnsureRunLog creates the journal table if it doesn't exist.
func EnsureRunLog(ctx context.Context, db DB, table string) error {
	_, err := db.Exec(ctx, fmt.Sprintf(createRunLogSQL, runLogIdent(table)))
	if err != nil {
		return fmt.Errorf("failed to create run log table: %w", err)
	}
	return nil
}

// SaveRun records one pipeline run, creating the journal table if needed.
func SaveRun(ctx context.Context, db DB, table string, r RunRecord) error {
	if err := EnsureRunLog(ctx, db, table); err != nil {
		return err
	}

	if r.Version == "" {
		r.Version = version.Short()
	}

	var fingerprint *string
	if r.Fingerprint != 0 {
		s := strconv.FormatUint(r.Fingerprint, 16)
		fingerprint = &s
	}

	_, err := db.Exec(ctx, fmt.Sprintf(`
        INSERT INTO %s (run_id, started_at, finished_at, status, failed_phase,
                        error, staging_rows, analytics_rows, fingerprint, version)
        VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, ''), $7, $8, $9, $10)
        ON CONFLICT (run_id) DO UPDATE SET
            finished_at    = EXCLUDED.finished_at,
            status         = EXCLUDED.status,
            failed_phase   = EXCLUDED.failed_phase,
            error          = EXCLUDED.error,
            staging_rows   = EXCLUDED.staging_rows,
            analytics_rows = EXCLUDED.analytics_rows,
            fingerprint    = EXCLUDED.fingerprint
    `, runLogIdent(table)),
		r.RunID.String(), r.StartedAt, r.FinishedAt, r.Status, r.FailedPhase,
		r.Error, r.StagingRows, r.AnalyticsRows, fingerprint, r.Version)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", r.RunID, err)
	}

	logging.Debug().
		Str("run_id", r.RunID.String()).
		Str("status", r.Status).
		Msg("Saved run record")

	return nil
}

// RecentRuns returns up to limit runs, newest first.
func RecentRuns(ctx context.Context, db DB, table string, limit int) ([]RunRecord, error) {
	rows, err := db.Query(ctx, fmt.Sprintf(`
        SELECT run_id::text, started_at, finished_at, status,
               COALESCE(failed_phase, ''), COALESCE(error, ''),
               staging_rows, analytics_rows, COALESCE(fingerprint, ''),
               COALESCE(version, '')
        FROM %s
        ORDER BY started_at DESC
        LIMIT $1
    `, runLogIdent(table)), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var (
			r           RunRecord
			id          string
			fingerprint string
		)
		if err := rows.Scan(&id, &r.StartedAt, &r.FinishedAt, &r.Status, &r.FailedPhase,
			&r.Error, &r.StagingRows, &r.AnalyticsRows, &fingerprint, &r.Version); err != nil {
			return nil, err
		}
		if r.RunID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("invalid run id %q: %w", id, err)
		}
		if fingerprint != "" {
			if r.Fingerprint, err = strconv.ParseUint(fingerprint, 16, 64); err != nil {
				return nil, fmt.Errorf("invalid fingerprint %q: %w", fingerprint, err)
			}
		}
		runs = append(runs, r)
	}

	return runs, rows.Err()
}

// RunLogExists checks if the journal table exists.
func RunLogExists(ctx context.Context, db DB, table string) (bool, error) {
	var exists bool
	err := db.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT FROM information_schema.tables
            WHERE table_schema = 'public' AND table_name = $1
        )
    `, table).Scan(&exists)
	return exists, err
}
