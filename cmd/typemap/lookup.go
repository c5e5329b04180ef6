package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	apihttp "github.com/artpar/typemap/adapters/http"
	"github.com/artpar/typemap/bootstrap"
	"github.com/artpar/typemap/config"
	"github.com/artpar/typemap/core/sqltypes"
	"github.com/spf13/cobra"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup <descriptor>...",
	Short: "Resolve SQL type descriptors",
	Long: `Resolve SQL type descriptors through the type map of a dialect.

Descriptors are matched case-insensitively, most recent binding first.
Descriptors nothing matches resolve to the unknown type.

Examples:
  typemap lookup varchar(20) "decimal(10,2)" bigint
  typemap lookup --driver postgres "character varying(255)"
  typemap lookup --bindings`,
	RunE: runLookup,
}

var (
	lookupDriver   string
	lookupBindings bool
)

func init() {
	rootCmd.AddCommand(lookupCmd)

	lookupCmd.Flags().StringVar(&lookupDriver, "driver", "", "SQL dialect (default: the configured database driver)")
	lookupCmd.Flags().BoolVar(&lookupBindings, "bindings", false, "list the registered bindings")
}

func runLookup(cmd *cobra.Command, args []string) error {
	driver, err := resolveDriver(lookupDriver)
	if err != nil {
		return err
	}
	tm, err := bootstrap.NewTypeMap(driver)
	if err != nil {
		return err
	}

	if lookupBindings {
		printBindings(driver, tm)
		return nil
	}
	if len(args) == 0 {
		return fmt.Errorf("at least one descriptor is required")
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DESCRIPTOR\tKIND\tLIMIT\tPRECISION\tSCALE\tKNOWN")
	fmt.Fprintln(w, "----------\t----\t-----\t---------\t-----\t-----")

	for _, d := range args {
		res := apihttp.DescribeType(tm, d)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%v\n",
			res.Descriptor, res.Kind, size(res.Limit), size(res.Precision), size(res.Scale), res.Known)
	}

	w.Flush()
	return nil
}

func printBindings(driver string, tm *sqltypes.Map) {
	fmt.Printf("Bindings for %s (lowest precedence first):\n\n", driver)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PATTERN\tALIAS OF")
	fmt.Fprintln(w, "-------\t--------")
	for _, e := range tm.Entries() {
		fmt.Fprintf(w, "%s\t%s\n", e.Pattern, e.Target)
	}
	w.Flush()
}

// resolveDriver prefers the flag, then the config, then sqlite.
func resolveDriver(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return "", err
	}
	return cfg.Database.Driver, nil
}

func size(n int) string {
	if n == 0 {
		return "-"
	}
	return fmt.Sprintf("%d", n)
}
