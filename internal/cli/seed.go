package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pgEdge/pgedge-salesetl/internal/datagen"
	"github.com/pgEdge/pgedge-salesetl/internal/db"
	"github.com/pgEdge/pgedge-salesetl/internal/logging"
)

var (
	seedTerritories   int
	seedCategories    int
	seedSubcategories int
	seedProducts      int
	seedSales         int
	seedSeed          uint64
	seedDropExisting  bool
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Populate a PostgreSQL source database with synthetic sales data",
	Long: `Create the five warehouse source tables in a PostgreSQL database and fill
them with generated territories, categories, subcategories, products and
internet sales facts. Existing rows are removed first. Every foreign key refers
to an existing row.

Example:
  salesetl seed --source "postgres://localhost:5432/sales_dw" --sales 100000 --seed 42`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().IntVar(&seedTerritories, "territories", 0,
		"number of sales territories")
	seedCmd.Flags().IntVar(&seedCategories, "categories", 0,
		"number of product categories")
	seedCmd.Flags().IntVar(&seedSubcategories, "subcategories", 0,
		"number of product subcategories")
	seedCmd.Flags().IntVar(&seedProducts, "products", 0,
		"number of products")
	seedCmd.Flags().IntVar(&seedSales, "sales", -1,
		"number of internet sales facts")
	seedCmd.Flags().Uint64Var(&seedSeed, "seed", 0,
		"random seed for reproducible data (0 = random)")
	seedCmd.Flags().BoolVar(&seedDropExisting, "drop-existing", false,
		"drop the source tables before recreating them")
}

func runSeed(cmd *cobra.Command, args []string) error {
	// Override config with CLI flags
	if seedTerritories > 0 {
		cfg.Seed.Territories = seedTerritories
	}
	if seedCategories > 0 {
		cfg.Seed.Categories = seedCategories
	}
	if seedSubcategories > 0 {
		cfg.Seed.Subcategories = seedSubcategories
	}
	if seedProducts > 0 {
		cfg.Seed.Products = seedProducts
	}
	if seedSales >= 0 {
		cfg.Seed.Sales = seedSales
	}
	if seedSeed != 0 {
		cfg.Seed.Seed = seedSeed
	}
	if seedDropExisting {
		cfg.Seed.DropExisting = true
	}

	// Validate configuration
	if err := cfg.ValidateSeed(); err != nil {
		return err
	}
	connString, err := db.PostgresConnString(cfg.Source.DSN)
	if err != nil {
		return err
	}

	logging.Info().
		Str("source", db.RedactDSN(cfg.Source.DSN)).
		Int("territories", cfg.Seed.Territories).
		Int("products", cfg.Seed.Products).
		Int("sales", cfg.Seed.Sales).
		Msg("Seeding source database")

	// Connect to database
	ctx := context.Background()
	pool, err := db.Connect(ctx, connString, db.Credentials{
		User:     cfg.Source.User,
		Password: cfg.Source.Password,
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	gen := datagen.NewGenerator(datagen.Counts{
		Territories:   cfg.Seed.Territories,
		Categories:    cfg.Seed.Categories,
		Subcategories: cfg.Seed.Subcategories,
		Products:      cfg.Seed.Products,
		Sales:         cfg.Seed.Sales,
	}, cfg.Seed.Seed, logging.Component("seed"))

	counts, err := gen.Seed(ctx, pool, cfg.Seed.DropExisting)
	if err != nil {
		return fmt.Errorf("failed to seed source database: %w", err)
	}

	logging.Info().
		Interface("rows", counts).
		Msg("Source database seeded")

	return nil
}
