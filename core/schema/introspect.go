package schema

// ModelListResponse is returned by GET /models
type ModelListResponse struct {
	Models []ModelSummary `json:"models"`
	Count  int            `json:"count"`
}

// ModelSummary provides a brief overview of a model.
type ModelSummary struct {
	Name        string `json:"name"`
	Table       string `json:"table"`
	Parent      string `json:"parent,omitempty"`
	Columns     int    `json:"columns"`
	Description string `json:"description,omitempty"`
}

// ModelSchemaResponse is returned by GET /models/{model}
type ModelSchemaResponse struct {
	Model          string            `json:"model"`
	Table          string            `json:"table"`
	Parent         string            `json:"parent,omitempty"`
	PrimaryKey     string            `json:"primary_key"`
	Columns        []ColumnSchema    `json:"columns"`
	ContentColumns []string          `json:"content_columns"`
	Attributes     []AttributeSchema `json:"attributes,omitempty"`
}

// ColumnSchema describes one effective column for introspection.
type ColumnSchema struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	SQLType    string `json:"sql_type,omitempty"`
	Limit      int    `json:"limit,omitempty"`
	Precision  int    `json:"precision,omitempty"`
	Scale      int    `json:"scale,omitempty"`
	Null       bool   `json:"null"`
	Default    any    `json:"default,omitempty"`
	PrimaryKey bool   `json:"primary_key,omitempty"`
	Virtual    bool   `json:"virtual,omitempty"` // declared, not in the table
	Overridden bool   `json:"overridden,omitempty"`
}

// AttributeSchema describes a declared override.
type AttributeSchema struct {
	Name       string `json:"name"`
	Type       string `json:"type,omitempty"`
	Default    any    `json:"default,omitempty"`
	HasDefault bool   `json:"has_default,omitempty"`
}

// TypeLookupResponse is returned by GET /types?descriptor=...
type TypeLookupResponse struct {
	Descriptor string `json:"descriptor"`
	Kind       string `json:"kind"`
	Limit      int    `json:"limit,omitempty"`
	Precision  int    `json:"precision,omitempty"`
	Scale      int    `json:"scale,omitempty"`
	Known      bool   `json:"known"`
}

// TypeMapResponse lists the bindings of a type map.
type TypeMapResponse struct {
	Driver   string        `json:"driver"`
	Bindings []BindingInfo `json:"bindings"`
}

// BindingInfo describes one binding, lowest precedence first.
type BindingInfo struct {
	Pattern string `json:"pattern"`
	Alias   string `json:"alias,omitempty"`
}
