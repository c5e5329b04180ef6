package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/artpar/typemap/bootstrap"
	"github.com/artpar/typemap/config"
	"github.com/artpar/typemap/core/model"
	"github.com/artpar/typemap/core/schema"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and model definitions",
	Long: `Validate the typemap configuration and model definitions.

Checks:
  - YAML syntax is valid
  - Required fields are present
  - Definitions parse and every attribute type resolves
  - Database is reachable (optional)

Examples:
  typemap validate
  typemap validate --config /etc/typemap/config.yaml --check-database`,
	RunE: runValidate,
}

var validateCheckDatabase bool

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateCheckDatabase, "check-database", false, "check if the database is reachable")
}

func runValidate(cmd *cobra.Command, args []string) error {
	source := cfgFile
	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		source = "environment"
	}
	fmt.Printf("Validating %s...\n\n", source)

	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		fmt.Printf("  %s Config valid\n", crossMark)
		return fmt.Errorf("config error: %w", err)
	}
	fmt.Printf("  %s Config valid\n", checkMark)
	fmt.Printf("  %s Database: %s (%s)\n", checkMark, cfg.Database.DSN, cfg.Database.Driver)
	fmt.Printf("  %s Queue: %s\n", checkMark, cfg.Queue.Adapter)

	tm, err := bootstrap.NewTypeMap(cfg.Database.Driver)
	if err != nil {
		return err
	}

	if cfg.Schema.Definitions == "" {
		fmt.Printf("  - No definitions configured\n")
	} else {
		defs, err := schema.ParsePath(cfg.Schema.Definitions)
		if err != nil {
			fmt.Printf("  %s Definitions parse\n", crossMark)
			return fmt.Errorf("definitions error: %w", err)
		}
		fmt.Printf("  %s Definitions parse (%d models)\n", checkMark, len(defs))

		if _, err := model.NewRegistry().Apply(defs, tm); err != nil {
			fmt.Printf("  %s Attribute types resolve\n", crossMark)
			return fmt.Errorf("definitions error: %w", err)
		}
		fmt.Printf("  %s Attribute types resolve\n", checkMark)
	}

	if validateCheckDatabase {
		if err := checkDatabase(cfg.Database); err != nil {
			fmt.Printf("  %s Database reachable\n", crossMark)
			fmt.Printf("      Error: %v\n", err)
		} else {
			fmt.Printf("  %s Database reachable\n", checkMark)
		}
	}

	fmt.Println()
	fmt.Println("Configuration is valid.")
	return nil
}

func checkDatabase(cfg config.DatabaseConfig) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	db, err := bootstrap.OpenDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.HealthCheck(ctx)
}

const (
	checkMark = "\033[32m✓\033[0m"
	crossMark = "\033[31m✗\033[0m"
)
