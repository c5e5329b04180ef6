package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/artpar/typemap/config"
	"github.com/artpar/typemap/core/convention"
	"github.com/artpar/typemap/core/jobs"
	"github.com/artpar/typemap/core/model"
	"github.com/artpar/typemap/core/schema"
)

// applyDefinitions parses the configured definitions and applies them to
// the registry. Parse or validation errors leave the registry unchanged.
func (a *App) applyDefinitions(ctx context.Context, cfg *config.Config) error {
	a.applyMu.Lock()
	defer a.applyMu.Unlock()

	defer a.updateModelsGauge()

	path := cfg.Schema.Definitions
	if path == "" {
		a.Logger.Debug().Msg("no definitions configured")
		return nil
	}

	defs, err := schema.ParsePath(path)
	if err != nil {
		return err
	}

	if cfg.Database.Migrate && a.Database.SQLite != nil {
		var derived []convention.Derived
		for _, def := range defs {
			if def.IsRoot() {
				derived = append(derived, convention.Derive(def))
			}
		}
		if err := a.Database.SQLite.Migrate(ctx, derived...); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	opts := []model.Option{model.WithSource(a.Database.Source)}
	if a.Metrics != nil {
		opts = append(opts, model.WithObserver(a.Metrics))
	}

	applied, err := a.Models.Apply(defs, a.Types, opts...)
	if err != nil {
		return err
	}
	a.Logger.Info().
		Str("path", path).
		Int("models", len(applied)).
		Msg("definitions applied")

	if !cfg.Schema.ShouldLoadOnStart() {
		return nil
	}
	for _, m := range applied {
		if m.Parent() != nil {
			continue
		}
		a.loadColumns(ctx, m)
	}
	return nil
}

// loadColumns reads a root model's columns from the database. A missing
// table is expected for models whose columns are declared inline.
func (a *App) loadColumns(ctx context.Context, m *model.Model) {
	inline := m.SchemaLoaded()
	err := m.LoadSchema(ctx)
	switch {
	case err == nil:
		a.Logger.Debug().
			Str("model", m.Name()).
			Str("table", m.Table()).
			Int("columns", len(m.ColumnNames())).
			Msg("schema loaded")
	case errors.Is(err, schema.ErrTableNotFound) && inline:
		a.Logger.Debug().
			Str("model", m.Name()).
			Str("table", m.Table()).
			Msg("table not found, using inline columns")
	default:
		a.Logger.Warn().
			Err(err).
			Str("model", m.Name()).
			Msg("failed to load schema")
	}
}

func (a *App) updateModelsGauge() {
	if a.Metrics != nil {
		a.Metrics.ModelsLoaded.Set(float64(len(a.Models.List())))
	}
}

// reloadSchemaJob handles jobs.ReloadSchema. Its arguments are model
// names; none reloads every model.
func (a *App) reloadSchemaJob(ctx context.Context, job jobs.Job) error {
	names := make([]string, 0, len(job.Args))
	for i, arg := range job.Args {
		name, ok := arg.(string)
		if !ok {
			return fmt.Errorf("%s: argument %d is %T, want model name", job.Name, i, arg)
		}
		names = append(names, name)
	}

	reloaded, err := a.Models.Reload(ctx, names...)
	if err != nil {
		return err
	}
	a.Logger.Info().
		Str("job_id", job.ID).
		Strs("models", reloaded).
		Msg("schema reloaded")
	return nil
}
