package main

import (
	"context"
	"fmt"

	"github.com/artpar/typemap/bootstrap"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the introspection server",
	Long: `Start the typemap HTTP server.

The server will:
  - Load configuration from typemap.yaml (or --config)
  - Or load configuration from TYPEMAP_* environment variables
  - Connect to the database and apply model definitions
  - Serve models and type lookups under /models and /types
  - Run queued schema reloads

Environment variables:
  TYPEMAP_DATABASE_DRIVER     - sqlite, postgres or mysql (default: sqlite)
  TYPEMAP_DATABASE_DSN        - Database DSN (default: typemap.db)
  TYPEMAP_SCHEMA_DEFINITIONS  - Definitions file or directory
  TYPEMAP_SERVER_PORT         - Server port (default: 8080)
  TYPEMAP_QUEUE_ADAPTER       - memory or redis
  TYPEMAP_LOG_LEVEL           - debug, info, warn, error

Examples:
  typemap serve
  typemap serve --config /etc/typemap/config.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	app, err := bootstrap.New(context.Background(), bootstrap.Options{ConfigPath: cfgFile})
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	return app.Run()
}
