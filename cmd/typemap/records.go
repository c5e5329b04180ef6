package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/artpar/typemap/adapters/sqlite"
	"github.com/spf13/cobra"
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Read rows through a model",
	Long: `Read rows of a model's table, cast through its effective column types.

Only available with the sqlite driver.

Examples:
  typemap records list overloaded_type
  typemap records get overloaded_type 1`,
}

var recordsListCmd = &cobra.Command{
	Use:   "list <model>",
	Short: "List all rows",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecordsList,
}

var recordsGetCmd = &cobra.Command{
	Use:   "get <model> <id>",
	Short: "Show one row",
	Args:  cobra.ExactArgs(2),
	RunE:  runRecordsGet,
}

func init() {
	rootCmd.AddCommand(recordsCmd)
	recordsCmd.AddCommand(recordsListCmd)
	recordsCmd.AddCommand(recordsGetCmd)
}

func runRecordsList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer app.Shutdown()

	if app.Database.Records == nil {
		return fmt.Errorf("records require the sqlite driver, have %s", app.Database.Driver)
	}

	m, err := app.Model(ctx, args[0])
	if err != nil {
		return err
	}
	recs, err := app.Database.Records.List(ctx, m)
	if err != nil {
		return err
	}

	if len(recs) == 0 {
		fmt.Printf("No rows in %s.\n", m.Table())
		return nil
	}

	names := m.ColumnNames()
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.ToUpper(strings.Join(names, "\t")))

	for _, r := range recs {
		row, err := r.Serialized()
		if err != nil {
			return err
		}
		vals := make([]string, len(names))
		for i, n := range names {
			vals[i] = cell(row[n])
		}
		fmt.Fprintln(w, strings.Join(vals, "\t"))
	}

	w.Flush()
	return nil
}

func runRecordsGet(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer app.Shutdown()

	if app.Database.Records == nil {
		return fmt.Errorf("records require the sqlite driver, have %s", app.Database.Driver)
	}

	m, err := app.Model(ctx, args[0])
	if err != nil {
		return err
	}
	r, err := app.Database.Records.Find(ctx, m, args[1])
	if sqlite.IsNotFound(err) {
		return fmt.Errorf("%s %s not found", m.Name(), args[1])
	}
	if err != nil {
		return err
	}

	row, err := r.Serialized()
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, n := range m.ColumnNames() {
		fmt.Fprintf(w, "%s:\t%s\n", n, cell(row[n]))
	}
	w.Flush()
	return nil
}

func cell(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprint(v)
}
