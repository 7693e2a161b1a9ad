//-------------------------------------------------------------------------
//
// pgEdge Sales ETL
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package batch provides bounded batching and progress reporting for bulk
// writes.
package batch

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Config configures batch write behavior.
type Config struct {
	// Size is the number of rows per batch.
	Size int

	// ProgressInterval is how often to log progress (in rows).
	ProgressInterval int64
}

// DefaultConfig returns the batch configuration used by the loader.
func DefaultConfig() Config {
	return Config{
		Size:             5000,
		ProgressInterval: 100000,
	}
}

// SeedConfig returns the batch configuration used when seeding source data.
func SeedConfig() Config {
	return Config{
		Size:             1000,
		ProgressInterval: 100000,
	}
}

// Each calls fn with consecutive [start, end) ranges covering n items, each
// at most size long. It stops at the first error.
func Each(n, size int, fn func(start, end int) error) error {
	if size < 1 {
		return fmt.Errorf("batch size must be at least 1, got %d", size)
	}
	for start := 0; start < n; start += size {
		end := min(start+size, n)
		if err := fn(start, end); err != nil {
			return err
		}
	}
	return nil
}

// ProgressReporter tracks and reports write progress for one table.
type ProgressReporter struct {
	logger           zerolog.Logger
	tableName        string
	totalRows        int64
	currentRow       int64
	progressInterval int64
}

// NewProgressReporter creates a new progress reporter.
func NewProgressReporter(logger zerolog.Logger, tableName string, totalRows int64, interval int64) *ProgressReporter {
	if interval < 1 {
		interval = 1
	}
	return &ProgressReporter{
		logger:           logger,
		tableName:        tableName,
		totalRows:        totalRows,
		progressInterval: interval,
	}
}

// Update updates the progress and logs if necessary.
func (p *ProgressReporter) Update(rows int64) {
	oldRow := p.currentRow
	p.currentRow += rows

	// Check if we crossed a progress interval
	if p.currentRow/p.progressInterval > oldRow/p.progressInterval {
		pct := 100.0
		if p.totalRows > 0 {
			pct = float64(p.currentRow) / float64(p.totalRows) * 100
		}
		p.logger.Info().
			Str("table", p.tableName).
			Int64("rows", p.currentRow).
			Int64("total", p.totalRows).
			Float64("percent", pct).
			Msg("Writing rows")
	}
}

// Rows returns the number of rows reported so far.
func (p *ProgressReporter) Rows() int64 {
	return p.currentRow
}

// Done logs completion.
func (p *ProgressReporter) Done() {
	p.logger.Info().
		Str("table", p.tableName).
		Int64("rows", p.currentRow).
		Msg("Table complete")
}
