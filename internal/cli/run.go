package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/pgEdge/pgedge-salesetl/internal/batch"
	"github.com/pgEdge/pgedge-salesetl/internal/db"
	"github.com/pgEdge/pgedge-salesetl/internal/extract"
	"github.com/pgEdge/pgedge-salesetl/internal/load"
	"github.com/pgEdge/pgedge-salesetl/internal/logging"
	"github.com/pgEdge/pgedge-salesetl/internal/pipeline"
	"github.com/pgEdge/pgedge-salesetl/internal/transform"
)

var (
	runTables          []string
	runStagingSchema   string
	runAnalyticsSchema string
	runIfExists        string
	runBatchSize       int
	runNoRunLog        bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the extract, transform and load pipeline once",
	Long: `Run one pass of the pipeline: extract the configured tables from the
source database, load them into the staging schema, build analytics_sales and
load it into the analytics schema. The command exits non-zero if any phase
fails. A failure while loading analytics leaves the staging schema as written.

Existing-table policies (--if-exists):
  fail    - abort if a target table already exists
  replace - drop and recreate target tables (default)
  append  - add rows to existing target tables

Example:
  salesetl run --source "sqlserver://host/SQLEXPRESS?database=AdventureWorksDW" \
               --destination "postgres://localhost:5432/etl_db"`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringSliceVar(&runTables, "tables", nil,
		"tables to extract (default: the five warehouse tables)")
	runCmd.Flags().StringVar(&runStagingSchema, "staging-schema", "",
		"schema receiving the extracted tables (default: staging)")
	runCmd.Flags().StringVar(&runAnalyticsSchema, "analytics-schema", "",
		"schema receiving analytics_sales (default: analytics)")
	runCmd.Flags().StringVar(&runIfExists, "if-exists", "",
		"existing-table policy: fail, replace, append")
	runCmd.Flags().IntVar(&runBatchSize, "batch-size", 0,
		"rows per COPY batch")
	runCmd.Flags().BoolVar(&runNoRunLog, "no-run-log", false,
		"do not record the run in the run log table")
}

func runRun(cmd *cobra.Command, args []string) error {
	// Override config with CLI flags
	if len(runTables) > 0 {
		cfg.Source.Tables = runTables
	}
	if runStagingSchema != "" {
		cfg.Load.StagingSchema = runStagingSchema
	}
	if runAnalyticsSchema != "" {
		cfg.Load.AnalyticsSchema = runAnalyticsSchema
	}
	if runIfExists != "" {
		cfg.Load.IfExists = runIfExists
	}
	if runBatchSize > 0 {
		cfg.Load.BatchSize = runBatchSize
	}
	if runNoRunLog {
		cfg.RunLog.Enabled = false
	}

	// Validate configuration
	if err := cfg.ValidateRun(); err != nil {
		return err
	}
	policy, err := load.ParsePolicy(cfg.Load.IfExists)
	if err != nil {
		return err
	}

	sourceCreds := db.Credentials{User: cfg.Source.User, Password: cfg.Source.Password}
	destCreds := db.Credentials{User: cfg.Destination.User, Password: cfg.Destination.Password}

	extractor := extract.New(extract.Config{
		DSN:         cfg.Source.DSN,
		Tables:      cfg.Source.Tables,
		Credentials: sourceCreds,
	}, logging.Component("extract"))

	transformer := transform.New(logging.Component("transform"))

	batchCfg := batch.DefaultConfig()
	batchCfg.Size = cfg.Load.BatchSize
	loader := load.New(
		load.Postgres(cfg.Destination.Connection, destCreds, logging.Component("load")),
		batchCfg,
		logging.Component("load"),
	)

	orchestrator := pipeline.New(extractor, transformer, loader, pipeline.Config{
		StagingSchema:   cfg.Load.StagingSchema,
		AnalyticsSchema: cfg.Load.AnalyticsSchema,
		Policy:          policy,
	}, pipeline.NewLogObserver(logging.Component("pipeline")))

	logging.Info().
		Str("source", db.RedactDSN(cfg.Source.DSN)).
		Strs("tables", cfg.Source.Tables).
		Str("staging_schema", cfg.Load.StagingSchema).
		Str("analytics_schema", cfg.Load.AnalyticsSchema).
		Str("if_exists", string(policy)).
		Msg("Starting pipeline run")

	// Handle shutdown signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, runErr := orchestrator.Run(ctx)

	if cfg.RunLog.Enabled {
		// The journal is written even when the run was interrupted
		if err := recordRun(context.Background(), destCreds, res); err != nil {
			logging.Warn().Err(err).Msg("Failed to record run")
		}
	}

	if runErr != nil {
		logging.Error().
			Err(runErr).
			Str("run_id", res.RunID.String()).
			Str("phase", string(res.FailedPhase)).
			Str("table", res.FailedTable()).
			Msg("Pipeline run failed")
		return fmt.Errorf("run %s failed during %s: %w", res.RunID, res.FailedPhase, runErr)
	}

	logging.Info().
		Str("run_id", res.RunID.String()).
		Int64("staging_rows", pipeline.Total(res.StagingRows)).
		Int64("analytics_rows", pipeline.Total(res.AnalyticsRows)).
		Str("fingerprint", fmt.Sprintf("%016x", res.Fingerprint)).
		Dur("elapsed", res.FinishedAt.Sub(res.StartedAt)).
		Msg("Pipeline run complete")

	return nil
}

// recordRun writes the run journal entry on its own connection.
func recordRun(ctx context.Context, creds db.Credentials, res *pipeline.Result) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	conn, err := db.ConnectSingle(ctx, cfg.Destination.Connection, creds)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)

	return db.SaveRun(ctx, conn, cfg.RunLog.Table, runRecord(res))
}

func runRecord(res *pipeline.Result) db.RunRecord {
	r := db.RunRecord{
		RunID:         res.RunID,
		StartedAt:     res.StartedAt,
		FinishedAt:    res.FinishedAt,
		Status:        string(res.State),
		FailedPhase:   string(res.FailedPhase),
		StagingRows:   pipeline.Total(res.StagingRows),
		AnalyticsRows: pipeline.Total(res.AnalyticsRows),
		Fingerprint:   res.Fingerprint,
	}
	if res.Err != nil {
		r.Error = res.Err.Error()
	}
	return r
}
