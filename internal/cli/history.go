package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pgEdge/pgedge-salesetl/internal/db"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent pipeline runs from the run log",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20,
		"maximum number of runs to show")
}

func runHistory(cmd *cobra.Command, args []string) error {
	if err := cfg.ValidateHistory(); err != nil {
		return err
	}

	ctx := context.Background()
	conn, err := db.ConnectSingle(ctx, cfg.Destination.Connection, db.Credentials{
		User:     cfg.Destination.User,
		Password: cfg.Destination.Password,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer conn.Close(ctx)

	exists, err := db.RunLogExists(ctx, conn, cfg.RunLog.Table)
	if err != nil {
		return fmt.Errorf("failed to check run log: %w", err)
	}
	if !exists {
		cmd.Println("No runs recorded yet.")
		return nil
	}

	runs, err := db.RecentRuns(ctx, conn, cfg.RunLog.Table, historyLimit)
	if err != nil {
		return fmt.Errorf("failed to read run log: %w", err)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN ID\tSTARTED\tDURATION\tSTATUS\tSTAGING\tANALYTICS\tFINGERPRINT\tERROR")
	for _, r := range runs {
		status := r.Status
		if r.FailedPhase != "" {
			status = fmt.Sprintf("%s (%s)", r.Status, r.FailedPhase)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%016x\t%s\n",
			r.RunID,
			r.StartedAt.Local().Format("2006-01-02 15:04:05"),
			r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond),
			status,
			r.StagingRows,
			r.AnalyticsRows,
			r.Fingerprint,
			r.Error)
	}
	return w.Flush()
}
