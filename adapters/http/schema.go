package http

import (
	"errors"
	"net/http"
	"sort"

	"github.com/artpar/typemap/core/jobs"
	"github.com/artpar/typemap/core/model"
	"github.com/artpar/typemap/core/schema"
	"github.com/artpar/typemap/core/sqltypes"
	"github.com/artpar/typemap/core/types"
	"github.com/artpar/typemap/pkg/jsonapi"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// SchemaHandler serves model and type map introspection.
type SchemaHandler struct {
	models   *model.Registry
	types    *sqltypes.Map
	driver   string
	enqueuer *jobs.Enqueuer
	logger   zerolog.Logger
}

// NewSchemaHandler creates a new schema handler.
func NewSchemaHandler(models *model.Registry, tm *sqltypes.Map, driver string, enqueuer *jobs.Enqueuer, logger zerolog.Logger) *SchemaHandler {
	if models == nil {
		models = model.NewRegistry()
	}
	if tm == nil {
		tm = sqltypes.New()
	}
	return &SchemaHandler{
		models:   models,
		types:    tm,
		driver:   driver,
		enqueuer: enqueuer,
		logger:   logger,
	}
}

// Routes returns a router with all schema routes.
func (h *SchemaHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/models", h.listModels)
	r.Post("/models/reload", h.reload)
	r.Get("/models/{model}", h.getModel)
	r.Post("/models/{model}/reload", h.reload)
	r.Get("/types", h.lookupType)
	r.Get("/types/bindings", h.listBindings)
	return r
}

// listModels handles GET /models
func (h *SchemaHandler) listModels(w http.ResponseWriter, r *http.Request) {
	summaries := make([]schema.ModelSummary, 0)
	for _, m := range h.models.List() {
		summaries = append(summaries, schema.ModelSummary{
			Name:        m.Name(),
			Table:       m.Table(),
			Parent:      parentName(m),
			Columns:     len(m.ColumnNames()),
			Description: m.Description(),
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Name < summaries[j].Name
	})

	jsonapi.WriteMeta(w, http.StatusOK, jsonapi.Meta{
		"models": summaries,
		"count":  len(summaries),
	})
}

// getModel handles GET /models/{model}
func (h *SchemaHandler) getModel(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "model")

	m, err := h.models.Lookup(name)
	if err != nil {
		jsonapi.WriteNotFound(w, "model", name)
		return
	}

	resp := DescribeModel(m)
	jsonapi.WriteMeta(w, http.StatusOK, jsonapi.Meta{
		"model":           resp.Model,
		"table":           resp.Table,
		"parent":          resp.Parent,
		"primary_key":     resp.PrimaryKey,
		"columns":         resp.Columns,
		"content_columns": resp.ContentColumns,
		"attributes":      resp.Attributes,
	})
}

// lookupType handles GET /types?descriptor=varchar(20)
func (h *SchemaHandler) lookupType(w http.ResponseWriter, r *http.Request) {
	descriptor := r.URL.Query().Get("descriptor")
	if descriptor == "" {
		jsonapi.WriteError(w, jsonapi.ErrMissingParameter("descriptor"))
		return
	}

	resp := DescribeType(h.types, descriptor)
	jsonapi.WriteMeta(w, http.StatusOK, jsonapi.Meta{
		"descriptor": resp.Descriptor,
		"kind":       resp.Kind,
		"limit":      resp.Limit,
		"precision":  resp.Precision,
		"scale":      resp.Scale,
		"known":      resp.Known,
	})
}

// listBindings handles GET /types/bindings
func (h *SchemaHandler) listBindings(w http.ResponseWriter, r *http.Request) {
	entries := h.types.Entries()
	bindings := make([]schema.BindingInfo, 0, len(entries))
	for _, e := range entries {
		bindings = append(bindings, schema.BindingInfo{Pattern: e.Pattern, Alias: e.Target})
	}

	jsonapi.WriteMeta(w, http.StatusOK, jsonapi.Meta{
		"driver":   h.driver,
		"bindings": bindings,
		"count":    len(bindings),
	})
}

// reload handles POST /models/reload and POST /models/{model}/reload
func (h *SchemaHandler) reload(w http.ResponseWriter, r *http.Request) {
	var names []string
	if name := chi.URLParam(r, "model"); name != "" {
		if _, err := h.models.Lookup(name); err != nil {
			jsonapi.WriteNotFound(w, "model", name)
			return
		}
		names = append(names, name)
	}

	if h.enqueuer == nil {
		reloaded, err := h.models.Reload(r.Context(), names...)
		if err != nil {
			h.logger.Error().Err(err).Msg("schema reload failed")
			if errors.Is(err, schema.ErrTableNotFound) {
				jsonapi.WriteError(w, jsonapi.ErrConflict(err.Error()))
				return
			}
			jsonapi.WriteInternalError(w, err.Error())
			return
		}
		jsonapi.WriteMeta(w, http.StatusOK, jsonapi.Meta{"reloaded": reloaded})
		return
	}

	args := make([]any, 0, len(names))
	for _, name := range names {
		args = append(args, name)
	}
	job, err := h.enqueuer.Enqueue(r.Context(), jobs.ReloadSchema, args...)
	if err != nil {
		h.logger.Error().Err(err).Msg("enqueue schema reload")
		jsonapi.WriteError(w, jsonapi.ErrServiceUnavailable("could not queue schema reload"))
		return
	}
	jsonapi.WriteAccepted(w, jsonapi.Meta{
		"job_id": job.ID,
		"job":    job.Name,
		"queue":  job.Queue,
	})
}

// DescribeModel builds the introspection view of m.
func DescribeModel(m *model.Model) schema.ModelSchemaResponse {
	decls := m.Declarations()
	declared := make(map[string]bool, len(decls))
	attrs := make([]schema.AttributeSchema, 0, len(decls))
	for _, d := range decls {
		declared[d.Name] = true
		a := schema.AttributeSchema{Name: d.Name, HasDefault: d.HasDefault}
		if d.Type != nil {
			a.Type = string(d.Type.Kind())
			a.Default = serializable(d.Type, d.Default)
		} else {
			a.Default = d.Default
		}
		attrs = append(attrs, a)
	}

	cols := m.Columns()
	columns := make([]schema.ColumnSchema, 0, len(cols))
	for _, c := range cols {
		cs := schema.ColumnSchema{
			Name:       c.Name,
			SQLType:    c.SQLType,
			Limit:      c.Limit,
			Precision:  c.Precision,
			Scale:      c.Scale,
			Null:       c.Null,
			PrimaryKey: c.PrimaryKey,
			Virtual:    c.Virtual,
			Overridden: declared[c.Name],
		}
		if c.Type != nil {
			cs.Type = string(c.Type.Kind())
			cs.Default = serializable(c.Type, c.Default)
		}
		columns = append(columns, cs)
	}

	content := make([]string, 0)
	for _, c := range m.ContentColumns() {
		content = append(content, c.Name)
	}

	return schema.ModelSchemaResponse{
		Model:          m.Name(),
		Table:          m.Table(),
		Parent:         parentName(m),
		PrimaryKey:     m.PrimaryKey(),
		Columns:        columns,
		ContentColumns: content,
		Attributes:     attrs,
	}
}

// DescribeType resolves descriptor against tm.
func DescribeType(tm *sqltypes.Map, descriptor string) schema.TypeLookupResponse {
	h := tm.Lookup(descriptor)
	meta := h.Meta()
	return schema.TypeLookupResponse{
		Descriptor: descriptor,
		Kind:       string(h.Kind()),
		Limit:      meta.Limit,
		Precision:  meta.Precision,
		Scale:      meta.Scale,
		Known:      !types.IsUnknown(h),
	}
}

func parentName(m *model.Model) string {
	if p := m.Parent(); p != nil {
		return p.Name()
	}
	return ""
}

// serializable renders v the way it would be written to the database, so
// decimals and times encode as JSON scalars.
func serializable(h types.Handler, v any) any {
	if v == nil {
		return nil
	}
	out, err := h.Serialize(v)
	if err != nil {
		return v
	}
	return out
}
