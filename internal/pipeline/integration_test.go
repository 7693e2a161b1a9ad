//go:build integration

// End-to-end run against PostgreSQL: seed a source warehouse, run the
// pipeline and check both namespaces.
// Run with: go test -tags=integration ./internal/pipeline/...

package pipeline_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/pgEdge/pgedge-salesetl/internal/batch"
	"github.com/pgEdge/pgedge-salesetl/internal/config"
	"github.com/pgEdge/pgedge-salesetl/internal/datagen"
	"github.com/pgEdge/pgedge-salesetl/internal/db"
	"github.com/pgEdge/pgedge-salesetl/internal/extract"
	"github.com/pgEdge/pgedge-salesetl/internal/load"
	"github.com/pgEdge/pgedge-salesetl/internal/pipeline"
	"github.com/pgEdge/pgedge-salesetl/internal/testutil"
	"github.com/pgEdge/pgedge-salesetl/internal/transform"
	"github.com/pgEdge/pgedge-salesetl/internal/warehouse"
)

func TestPipelineEndToEnd(t *testing.T) {
	base := testutil.SkipIfNoPostgres(t)
	source := testutil.NewTestDB(t, base, "source")
	dest := testutil.NewTestDB(t, base, "dest")
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	gen := datagen.NewGenerator(datagen.Counts{
		Territories:   4,
		Categories:    2,
		Subcategories: 3,
		Products:      10,
		Sales:         50,
	}, 42, zerolog.Nop())
	if _, err := gen.Seed(ctx, source.Pool, false); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}

	run := func() *pipeline.Result {
		t.Helper()
		e := extract.New(extract.Config{
			DSN:    source.ConnString,
			Tables: config.DefaultTables,
		}, zerolog.Nop())
		l := load.New(load.Postgres(dest.ConnString, db.Credentials{}, zerolog.Nop()),
			batch.DefaultConfig(), zerolog.Nop())
		o := pipeline.New(e, transform.New(zerolog.Nop()), l, pipeline.Config{
			StagingSchema:   "staging",
			AnalyticsSchema: "analytics",
			Policy:          load.PolicyReplace,
		}, nil)

		res, err := o.Run(ctx)
		if err != nil {
			t.Fatalf("Run() error = %v", err)
		}
		return res
	}

	first := run()
	if first.State != pipeline.PhaseDone {
		t.Fatalf("State = %s, want done", first.State)
	}

	wantStaging := map[string]int64{
		warehouse.TableSalesTerritory:     4,
		warehouse.TableProductCategory:    2,
		warehouse.TableProductSubcategory: 3,
		warehouse.TableProduct:            10,
		warehouse.TableFactInternetSales:  50,
	}
	for table, n := range wantStaging {
		if first.StagingRows[table] != n {
			t.Errorf("StagingRows[%s] = %d, want %d", table, first.StagingRows[table], n)
		}
		if got := testutil.CountRows(t, dest.Pool, "staging", table); got != n {
			t.Errorf("staging.%s has %d rows, want %d", table, got, n)
		}
	}

	if got := testutil.CountRows(t, dest.Pool, "analytics", warehouse.TableAnalyticsSales); got != 50 {
		t.Errorf("analytics_sales has %d rows, want 50", got)
	}
	cols := testutil.ColumnNames(t, dest.Pool, "analytics", warehouse.TableAnalyticsSales)
	want := (warehouse.AnalyticsSale{}).Columns()
	if len(cols) != 12 || len(cols) != len(want) {
		t.Fatalf("analytics_sales columns = %v, want 12", cols)
	}
	for i, c := range want {
		if cols[i] != c.Name {
			t.Errorf("column %d = %q, want %q", i, cols[i], c.Name)
		}
	}

	var mismatched int64
	err := dest.Pool.QueryRow(ctx, `
        SELECT count(*) FROM analytics.analytics_sales
        WHERE "TotalRevenue" IS DISTINCT FROM "SalesAmount" + "TaxAmt"
    `).Scan(&mismatched)
	if err != nil {
		t.Fatalf("query error = %v", err)
	}
	if mismatched != 0 {
		t.Errorf("%d rows have TotalRevenue != SalesAmount + TaxAmt", mismatched)
	}

	// A second replace run leaves the same content
	second := run()
	if second.Fingerprint != first.Fingerprint {
		t.Errorf("fingerprint changed between runs: %x != %x", first.Fingerprint, second.Fingerprint)
	}
	if got := testutil.CountRows(t, dest.Pool, "staging", warehouse.TableFactInternetSales); got != 50 {
		t.Errorf("staging.factinternetsales has %d rows after second run, want 50", got)
	}
}
