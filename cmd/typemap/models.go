package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	apihttp "github.com/artpar/typemap/adapters/http"
	"github.com/artpar/typemap/bootstrap"
	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Inspect defined models",
	Long: `Inspect the models defined in schema.definitions.

Columns are read from the configured database and merged with the
declared attribute overrides.

Examples:
  typemap models list
  typemap models show overloaded_type
  typemap models show overloaded_type --json`,
}

var modelsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all models",
	RunE:  runModelsList,
}

var modelsShowCmd = &cobra.Command{
	Use:   "show <model>",
	Short: "Show a model's effective columns",
	Args:  cobra.ExactArgs(1),
	RunE:  runModelsShow,
}

var modelsShowJSON bool

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.AddCommand(modelsListCmd)
	modelsCmd.AddCommand(modelsShowCmd)

	modelsShowCmd.Flags().BoolVar(&modelsShowJSON, "json", false, "print the schema as JSON")
}

// openApp starts the application without its HTTP server.
func openApp(ctx context.Context) (*bootstrap.App, error) {
	app, err := bootstrap.New(ctx, bootstrap.Options{ConfigPath: cfgFile, SkipServer: true})
	if err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}
	return app, nil
}

func runModelsList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer app.Shutdown()

	models := app.Models.List()
	if len(models) == 0 {
		fmt.Println("No models defined.")
		fmt.Println()
		fmt.Println("Point schema.definitions at a YAML file or directory of model definitions.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MODEL\tTABLE\tPARENT\tCOLUMNS\tATTRIBUTES")
	fmt.Fprintln(w, "-----\t-----\t------\t-------\t----------")

	for _, m := range models {
		parent := "-"
		if p := m.Parent(); p != nil {
			parent = p.Name()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\n",
			m.Name(), m.Table(), parent, len(m.ColumnNames()), len(m.Declarations()))
	}

	w.Flush()
	return nil
}

func runModelsShow(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	app, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer app.Shutdown()

	m, err := app.Model(ctx, args[0])
	if err != nil {
		return err
	}
	desc := apihttp.DescribeModel(m)

	if modelsShowJSON {
		data, err := json.MarshalIndent(desc, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("Model:       %s\n", desc.Model)
	fmt.Printf("Table:       %s\n", desc.Table)
	if desc.Parent != "" {
		fmt.Printf("Parent:      %s\n", desc.Parent)
	}
	fmt.Printf("Primary key: %s\n\n", desc.PrimaryKey)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "COLUMN\tTYPE\tSQL TYPE\tNULL\tDEFAULT\tNOTE")
	fmt.Fprintln(w, "------\t----\t--------\t----\t-------\t----")

	for _, c := range desc.Columns {
		note := ""
		switch {
		case c.Virtual:
			note = "virtual"
		case c.Overridden:
			note = "overridden"
		case c.PrimaryKey:
			note = "primary key"
		}
		def := "-"
		if c.Default != nil {
			def = fmt.Sprint(c.Default)
		}
		sqlType := c.SQLType
		if sqlType == "" {
			sqlType = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%v\t%s\t%s\n", c.Name, c.Type, sqlType, c.Null, def, note)
	}

	w.Flush()
	return nil
}
