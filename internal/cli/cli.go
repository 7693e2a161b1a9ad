//-------------------------------------------------------------------------
//
// pgEdge Sales ETL
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package cli implements the command-line interface for salesetl.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pgEdge/pgedge-salesetl/internal/config"
	"github.com/pgEdge/pgedge-salesetl/internal/logging"
	"github.com/pgEdge/pgedge-salesetl/internal/warehouse"
	"github.com/pgEdge/pgedge-salesetl/pkg/version"
)

var (
	// Global flags
	cfgFile     string
	source      string
	destination string
	logLevel    string

	// Global config
	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:   "salesetl",
		Short: "Sales data warehouse ETL into PostgreSQL",
		Long: `salesetl extracts the sales warehouse tables (territories, product
categories, subcategories, products and internet sales facts) from a source
database, loads them unchanged into a staging schema, and loads a
denormalized analytics_sales table into an analytics schema of a PostgreSQL
database.

Database credentials are read from the environment only:
  SALESETL_SOURCE_USER, SALESETL_SOURCE_PASSWORD
  SALESETL_DEST_USER, SALESETL_DEST_PASSWORD`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			logging.Close()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: ./salesetl.yaml)")
	rootCmd.PersistentFlags().StringVar(&source, "source", "",
		"source database URL (e.g. sqlserver://host/instance?database=dw)")
	rootCmd.PersistentFlags().StringVar(&destination, "destination", "",
		"destination PostgreSQL connection string")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"log level (debug, info, warn, error)")

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(tablesCmd)
	rootCmd.AddCommand(historyCmd)
}

func initConfig() error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return err
	}

	// Override with CLI flags
	if source != "" {
		cfg.Source.DSN = source
	}
	if destination != "" {
		cfg.Destination.Connection = destination
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	// Reinitialize logger with config
	if err := logging.Init(logging.Config{
		Level:  cfg.LogLevel,
		Pretty: true,
		File:   cfg.LogFile,
	}); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	return nil
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println(version.Info())
	},
}

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List the warehouse tables and the analytics columns",
	Long: `List the source warehouse tables salesetl knows how to decode and
the columns of the analytics_sales table it produces.`,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println("Source tables:")
		for _, name := range warehouse.TableNames() {
			cmd.Printf("  %s\n", name)
		}
		cmd.Println()
		cmd.Printf("Analytics table %s:\n", warehouse.TableAnalyticsSales)
		for _, c := range (warehouse.AnalyticsSale{}).Columns() {
			cmd.Printf("  %-20s %s\n", c.Name, c.Type)
		}
		cmd.Println()
		cmd.Println("Other tables listed in source.tables are copied to staging as-is.")
	},
}
