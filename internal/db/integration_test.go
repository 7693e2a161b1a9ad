//go:build integration

package db

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/pgEdge/pgedge-salesetl/internal/testutil"
)

func TestRunLogRoundTrip(t *testing.T) {
	base := testutil.SkipIfNoPostgres(t)
	tdb := testutil.NewTestDB(t, base, "runlog")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	exists, err := RunLogExists(ctx, tdb.Pool, "etl_run_log")
	if err != nil {
		t.Fatalf("RunLogExists() error = %v", err)
	}
	if exists {
		t.Fatal("run log should not exist in a fresh database")
	}

	started := time.Now().UTC().Truncate(time.Millisecond)
	ok := RunRecord{
		RunID:         uuid.New(),
		StartedAt:     started,
		FinishedAt:    started.Add(2 * time.Second),
		Status:        "done",
		StagingRows:   69,
		AnalyticsRows: 50,
		Fingerprint:   0xdeadbeefcafef00d,
	}
	failed := RunRecord{
		RunID:       uuid.New(),
		StartedAt:   started.Add(time.Minute),
		FinishedAt:  started.Add(time.Minute + time.Second),
		Status:      "failed",
		FailedPhase: "extracting",
		Error:       "missing table factinternetsales",
	}
	for _, r := range []RunRecord{ok, failed} {
		if err := SaveRun(ctx, tdb.Pool, "etl_run_log", r); err != nil {
			t.Fatalf("SaveRun() error = %v", err)
		}
	}

	// Saving the same run again updates it in place
	failed.Error = "missing table product"
	if err := SaveRun(ctx, tdb.Pool, "etl_run_log", failed); err != nil {
		t.Fatalf("SaveRun() update error = %v", err)
	}

	runs, err := RecentRuns(ctx, tdb.Pool, "etl_run_log", 10)
	if err != nil {
		t.Fatalf("RecentRuns() error = %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("RecentRuns() returned %d runs, want 2", len(runs))
	}

	if runs[0].RunID != failed.RunID || runs[0].Error != "missing table product" || runs[0].FailedPhase != "extracting" {
		t.Errorf("newest run = %+v", runs[0])
	}
	if runs[0].Fingerprint != 0 {
		t.Errorf("failed run fingerprint = %x, want 0", runs[0].Fingerprint)
	}
	if runs[1].RunID != ok.RunID || runs[1].Fingerprint != ok.Fingerprint || runs[1].AnalyticsRows != 50 {
		t.Errorf("oldest run = %+v", runs[1])
	}
	if runs[1].Version == "" {
		t.Error("version should default to the build version")
	}
}
