package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "typemap",
	Short: "Resolve SQL column types and model attributes",
	Long: `typemap maps database column types to value handlers and layers
declared attribute overrides on top of table schemas.

Quick start:
  typemap serve              # Serve model introspection over HTTP
  typemap lookup varchar(20) # Resolve a type descriptor

Inspection:
  typemap models list        # List defined models
  typemap models show user   # Show a model's effective columns
  typemap validate           # Validate configuration and definitions`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "typemap.yaml", "config file path")
}
