package sqltypes

import (
	"errors"
	"testing"

	"github.com/artpar/typemap/core/typemap"
	"github.com/artpar/typemap/core/types"
)

func TestNew_Lookup(t *testing.T) {
	m := New()

	tests := []struct {
		descriptor string
		want       types.Handler
	}{
		{"varchar(255)", types.NewString(255)},
		{"character varying(20)", types.NewString(20)},
		{"char", types.NewString(0)},
		{"string(50)", types.NewString(50)},
		{"text", types.Text{}},
		{"TEXT", types.Text{}},
		{"integer", types.Integer{}},
		{"bigint", types.Integer{}},
		{"int(11)", types.Integer{Options: types.Options{Limit: 11}}},
		{"float", types.Float{}},
		{"double precision", types.Float{}},
		{"real", types.Float{}},
		{"decimal(10,2)", types.Decimal{Options: types.Options{Precision: 10, Scale: 2}}},
		{"numeric", types.Decimal{}},
		{"number(5)", types.Decimal{Options: types.Options{Precision: 5}}},
		{"boolean", types.Boolean{}},
		{"date", types.Date{}},
		{"time", types.Time{}},
		{"datetime", types.DateTime{}},
		{"timestamp(6)", types.DateTime{Options: types.Options{Precision: 6}}},
		{"timestamp without time zone", types.DateTime{}},
		{"blob", types.Binary{}},
		{"json", types.JSON{}},
		{"jsonb", types.JSON{}},
		{"uuid", types.UUID{}},
		{"secret", types.Secret{}},
		{"value", types.Value{}},
		{"geometry", types.Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.descriptor, func(t *testing.T) {
			got := m.Lookup(tt.descriptor)
			if !types.Equal(got, tt.want) {
				t.Errorf("Lookup(%q) = %#v, want %#v", tt.descriptor, got, tt.want)
			}
		})
	}
}

func TestNew_LimitArgument(t *testing.T) {
	m := New()

	if got := m.Lookup("varchar", 400); got != types.NewString(400) {
		t.Errorf("Lookup(varchar, 400) = %#v, want String limit 400", got)
	}
	if got := m.Lookup("varchar(20)", 400); got != types.NewString(20) {
		t.Errorf("Lookup(varchar(20), 400) = %#v, want the descriptor limit", got)
	}
}

func TestMust(t *testing.T) {
	m := New()

	Must(m.Register(typemap.Name("money"), types.Decimal{}))
	if got := m.Lookup("money"); got != (types.Decimal{}) {
		t.Errorf("Lookup(money) = %#v, want Decimal", got)
	}

	defer func() {
		err, _ := recover().(error)
		if !errors.Is(err, typemap.ErrInvalidRegistration) {
			t.Errorf("recover() = %v, want ErrInvalidRegistration", err)
		}
	}()
	Must(m.Alias(typemap.Name("cash"), ""))
	t.Error("Must() should panic on a failed registration")
}
