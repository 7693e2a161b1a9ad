//go:build integration

// Run with: go test -tags=integration ./internal/load/...
// Set SALESETL_TEST_CONN to override the connection string.

package load

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/pgEdge/pgedge-salesetl/internal/batch"
	"github.com/pgEdge/pgedge-salesetl/internal/dataset"
	"github.com/pgEdge/pgedge-salesetl/internal/db"
	"github.com/pgEdge/pgedge-salesetl/internal/etlerr"
	"github.com/pgEdge/pgedge-salesetl/internal/testutil"
)

func postgresLoader(t *testing.T, connStr string) *Loader {
	t.Helper()
	return New(Postgres(connStr, db.Credentials{}, zerolog.Nop()),
		batch.Config{Size: 7, ProgressInterval: 100}, zerolog.Nop())
}

func TestPostgresReplaceTwice(t *testing.T) {
	base := testutil.SkipIfNoPostgres(t)
	tdb := testutil.NewTestDB(t, base, "load")
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	l := postgresLoader(t, tdb.ConnString)
	set := testSet()
	for i := 0; i < 2; i++ {
		if _, err := l.Load(ctx, set, "staging", PolicyReplace); err != nil {
			t.Fatalf("Load() pass %d error = %v", i+1, err)
		}
	}

	for name, f := range set {
		if got := testutil.CountRows(t, tdb.Pool, "staging", name); got != int64(f.Len()) {
			t.Errorf("staging.%s has %d rows, want %d", name, got, f.Len())
		}
	}
}

func TestPostgresAppendAndFail(t *testing.T) {
	base := testutil.SkipIfNoPostgres(t)
	tdb := testutil.NewTestDB(t, base, "load")
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	l := postgresLoader(t, tdb.ConnString)
	set := dataset.Set{"notes": rawTable("notes", 10)}

	for i := 0; i < 2; i++ {
		if _, err := l.Load(ctx, set, "staging", PolicyAppend); err != nil {
			t.Fatalf("Load() append error = %v", err)
		}
	}
	if got := testutil.CountRows(t, tdb.Pool, "staging", "notes"); got != 20 {
		t.Errorf("staging.notes has %d rows after two appends, want 20", got)
	}

	_, err := l.Load(ctx, set, "staging", PolicyFail)
	if !errors.Is(err, ErrTableExists) {
		t.Fatalf("Load() fail policy error = %v, want ErrTableExists", err)
	}
	if etlerr.KindOf(err) != etlerr.KindWrite || etlerr.TableOf(err) != "notes" {
		t.Errorf("error kind = %s, table = %q", etlerr.KindOf(err), etlerr.TableOf(err))
	}
	if got := testutil.CountRows(t, tdb.Pool, "staging", "notes"); got != 20 {
		t.Errorf("fail policy modified the table: %d rows", got)
	}
}

func TestPostgresColumnTypes(t *testing.T) {
	base := testutil.SkipIfNoPostgres(t)
	tdb := testutil.NewTestDB(t, base, "load")
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cols := []dataset.Column{
		{Name: "OrderDate", Type: dataset.Date},
		{Name: "Amount", Type: dataset.Decimal},
		{Name: "Label", Type: dataset.Text},
		{Name: "Qty", Type: dataset.Integer},
	}
	rows := [][]any{
		{time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), decimal.RequireFromString("1234.5678"), "a", int64(1)},
		{nil, nil, nil, nil},
	}
	set := dataset.Set{"typed": dataset.NewRaw("typed", cols, rows)}

	if _, err := postgresLoader(t, tdb.ConnString).Load(ctx, set, "analytics", PolicyReplace); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	got := testutil.ColumnNames(t, tdb.Pool, "analytics", "typed")
	want := []string{"OrderDate", "Amount", "Label", "Qty"}
	if len(got) != len(want) {
		t.Fatalf("columns = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("column %d = %q, want %q", i, got[i], want[i])
		}
	}

	var amount string
	if err := tdb.Pool.QueryRow(ctx, `SELECT "Amount"::text FROM analytics.typed WHERE "Qty" = 1`).Scan(&amount); err != nil {
		t.Fatalf("query error = %v", err)
	}
	if amount != "1234.5678" {
		t.Errorf("Amount = %s, want 1234.5678", amount)
	}
}
