//-------------------------------------------------------------------------
//
// pgEdge Sales ETL
//
// Portions copyright (c) 2025 - 2026, pgEdge, Inc.
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package config handles configuration management for salesetl.
// Configuration is loaded from config files and CLI flags. Database
// credentials are only ever read from environment variables so that they
// never end up in a config file or on the command line.
// CLI flags take precedence over config file values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Environment variables holding database credentials.
const (
	EnvSourceUser     = "SALESETL_SOURCE_USER"
	EnvSourcePassword = "SALESETL_SOURCE_PASSWORD"
	EnvDestUser       = "SALESETL_DEST_USER"
	EnvDestPassword   = "SALESETL_DEST_PASSWORD"
)

// Existing-table policies accepted by load.if_exists.
var validPolicies = map[string]bool{
	"fail":    true,
	"replace": true,
	"append":  true,
}

// Config holds all configuration for salesetl.
type Config struct {
	// LogLevel controls logging verbosity (debug, info, warn, error).
	LogLevel string `mapstructure:"log_level"`

	// LogFile, when set, receives a JSON copy of every log line.
	LogFile string `mapstructure:"log_file"`

	// Source describes the database the warehouse tables are read from.
	Source SourceConfig `mapstructure:"source"`

	// Destination describes the Postgres database the pipeline writes to.
	Destination DestinationConfig `mapstructure:"destination"`

	// Load holds configuration for the load phase.
	Load LoadConfig `mapstructure:"load"`

	// Seed holds configuration for the seed subcommand.
	Seed SeedConfig `mapstructure:"seed"`

	// RunLog holds configuration for the run journal.
	RunLog RunLogConfig `mapstructure:"run_log"`
}

// SourceConfig holds source database settings.
type SourceConfig struct {
	// DSN is a URL understood by dburl, e.g. sqlserver://host/instance?database=dw
	// or postgres://host:5432/etl_db. Credentials are taken from the environment.
	DSN string `mapstructure:"dsn"`

	// Tables is the list of tables to extract.
	Tables []string `mapstructure:"tables"`

	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

// DestinationConfig holds destination database settings.
type DestinationConfig struct {
	// Connection is the PostgreSQL connection string.
	Connection string `mapstructure:"connection"`

	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

// LoadConfig holds configuration for the load phase.
type LoadConfig struct {
	// StagingSchema receives the raw extracted tables.
	StagingSchema string `mapstructure:"staging_schema"`

	// AnalyticsSchema receives the transformed tables.
	AnalyticsSchema string `mapstructure:"analytics_schema"`

	// IfExists is the existing-table policy: fail, replace or append.
	IfExists string `mapstructure:"if_exists"`

	// BatchSize is the number of rows written per COPY batch.
	BatchSize int `mapstructure:"batch_size"`
}

// SeedConfig holds configuration for synthetic source data.
type SeedConfig struct {
	Territories   int `mapstructure:"territories"`
	Categories    int `mapstructure:"categories"`
	Subcategories int `mapstructure:"subcategories"`
	Products      int `mapstructure:"products"`
	Sales         int `mapstructure:"sales"`

	// Seed makes generation reproducible; 0 picks a random seed.
	Seed uint64 `mapstructure:"seed"`

	// DropExisting drops the source tables before recreating them.
	DropExisting bool `mapstructure:"drop_existing"`
}

// RunLogConfig holds configuration for the run journal.
type RunLogConfig struct {
	// Enabled records every run in the destination database.
	Enabled bool `mapstructure:"enabled"`

	// Table is the journal table name in the public schema.
	Table string `mapstructure:"table"`
}

// DefaultTables are the warehouse tables extracted by default.
var DefaultTables = []string{
	"salesterritory",
	"productcategory",
	"productsubcategory",
	"product",
	"factinternetsales",
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Source: SourceConfig{
			Tables: append([]string(nil), DefaultTables...),
		},
		Load: LoadConfig{
			StagingSchema:   "staging",
			AnalyticsSchema: "analytics",
			IfExists:        "replace",
			BatchSize:       5000,
		},
		Seed: SeedConfig{
			Territories:   10,
			Categories:    4,
			Subcategories: 5,
			Products:      200,
			Sales:         10000,
		},
		RunLog: RunLogConfig{
			Enabled: true,
			Table:   "etl_run_log",
		},
	}
}

// Load reads configuration from config files and credentials from the
// environment.
// Config file locations (in order of precedence):
// 1. Path specified by configFile parameter
// 2. ./salesetl.yaml
// 3. ~/.config/salesetl/config.yaml
func Load(configFile string) (*Config, error) {
	v := viper.New()

	// Set config name and type
	v.SetConfigName("salesetl")
	v.SetConfigType("yaml")

	// Add config paths
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "salesetl"))
	}

	// Use specific config file if provided
	if configFile != "" {
		v.SetConfigFile(configFile)
	}

	// Credentials come from the environment only
	_ = v.BindEnv("source.user", EnvSourceUser)
	_ = v.BindEnv("source.password", EnvSourcePassword)
	_ = v.BindEnv("destination.user", EnvDestUser)
	_ = v.BindEnv("destination.password", EnvDestPassword)

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Start with defaults
	cfg := DefaultConfig()

	// Unmarshal config file values
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	// Decoding into the non-empty default slice can keep stale trailing entries
	if v.IsSet("source.tables") {
		cfg.Source.Tables = v.GetStringSlice("source.tables")
	}

	// A config file must not smuggle credentials in
	cfg.Source.User = os.Getenv(EnvSourceUser)
	cfg.Source.Password = os.Getenv(EnvSourcePassword)
	cfg.Destination.User = os.Getenv(EnvDestUser)
	cfg.Destination.Password = os.Getenv(EnvDestPassword)

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Source.DSN == "" {
		return fmt.Errorf("source dsn is required")
	}
	return nil
}

// ValidateRun checks configuration required for the run command.
func (c *Config) ValidateRun() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Destination.Connection == "" {
		return fmt.Errorf("destination connection string is required")
	}
	if len(c.Source.Tables) == 0 {
		return fmt.Errorf("at least one source table is required")
	}
	if c.Load.StagingSchema == "" || c.Load.AnalyticsSchema == "" {
		return fmt.Errorf("staging_schema and analytics_schema are required")
	}
	if c.Load.StagingSchema == c.Load.AnalyticsSchema {
		return fmt.Errorf("staging_schema and analytics_schema must differ")
	}
	if !validPolicies[c.Load.IfExists] {
		return fmt.Errorf("if_exists must be 'fail', 'replace' or 'append'")
	}
	if c.Load.BatchSize < 1 {
		return fmt.Errorf("batch_size must be at least 1")
	}
	if c.RunLog.Enabled && c.RunLog.Table == "" {
		return fmt.Errorf("run_log.table is required when the run log is enabled")
	}
	return nil
}

// ValidateSeed checks configuration required for the seed command.
func (c *Config) ValidateSeed() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Seed.Territories < 1 || c.Seed.Categories < 1 || c.Seed.Subcategories < 1 ||
		c.Seed.Products < 1 {
		return fmt.Errorf("seed counts for dimension tables must be at least 1")
	}
	if c.Seed.Subcategories < c.Seed.Categories {
		return fmt.Errorf("seed subcategories must be >= categories")
	}
	if c.Seed.Sales < 0 {
		return fmt.Errorf("seed sales must be non-negative")
	}
	return nil
}

// ValidateHistory checks configuration required for the history command.
func (c *Config) ValidateHistory() error {
	if c.Destination.Connection == "" {
		return fmt.Errorf("destination connection string is required")
	}
	if c.RunLog.Table == "" {
		return fmt.Errorf("run_log.table is required")
	}
	return nil
}
