package types

import (
	"math/big"
	"reflect"
	"strconv"
	"strings"
)

// Integer casts to int64. Fractional input is truncated, so "1.1" becomes 1.
type Integer struct {
	Options
}

func (Integer) Kind() Kind { return KindInteger }

func (Integer) Cast(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case bool:
		if x {
			return int64(1)
		}
		return int64(0)
	case string:
		return parseInteger(x)
	case []byte:
		return parseInteger(string(x))
	case *big.Rat:
		if x == nil {
			return nil
		}
		return new(big.Int).Quo(x.Num(), x.Denom()).Int64()
	}
	if f, ok := toFloat(v); ok {
		if i, ok := toInt(v); ok {
			return i
		}
		return int64(f)
	}
	return nil
}

func (i Integer) Serialize(v any) (any, error) { return i.Cast(v), nil }

func parseInteger(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(f)
	}
	return nil
}

// Float casts to float64.
type Float struct {
	Options
}

func (Float) Kind() Kind { return KindFloat }

func (Float) Cast(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case bool:
		if x {
			return 1.0
		}
		return 0.0
	case string:
		return parseFloat(x)
	case []byte:
		return parseFloat(string(x))
	case *big.Rat:
		if x == nil {
			return nil
		}
		f, _ := x.Float64()
		return f
	}
	if f, ok := toFloat(v); ok {
		return f
	}
	return nil
}

func (f Float) Serialize(v any) (any, error) { return f.Cast(v), nil }

func parseFloat(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return f
}

// Decimal casts to *big.Rat and serializes to a decimal string honouring Scale.
type Decimal struct {
	Options
}

func (Decimal) Kind() Kind { return KindDecimal }

func (Decimal) Cast(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case *big.Rat:
		if x == nil {
			return nil
		}
		return new(big.Rat).Set(x)
	case string:
		return parseDecimal(x)
	case []byte:
		return parseDecimal(string(x))
	case bool:
		if x {
			return big.NewRat(1, 1)
		}
		return new(big.Rat)
	}
	if i, ok := toInt(v); ok {
		return new(big.Rat).SetInt64(i)
	}
	if f, ok := toFloat(v); ok {
		r, ok := new(big.Rat).SetString(strconv.FormatFloat(f, 'f', -1, 64))
		if !ok {
			return nil
		}
		return r
	}
	return nil
}

func (d Decimal) Serialize(v any) (any, error) {
	r, ok := d.Cast(v).(*big.Rat)
	if !ok {
		return nil, nil
	}
	return FormatDecimal(r, d.Scale), nil
}

// FormatDecimal renders r with scale fractional digits, or with the shortest
// exact representation (up to 18 digits) when scale is zero.
func FormatDecimal(r *big.Rat, scale int) string {
	if scale > 0 {
		return r.FloatString(scale)
	}
	if r.IsInt() {
		return r.Num().String()
	}
	s := r.FloatString(18)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

func parseDecimal(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return nil
	}
	return r
}

// Boolean casts the usual textual spellings. The empty string is nil.
type Boolean struct {
	Options
}

var falseValues = map[string]bool{
	"0": true, "f": true, "false": true, "off": true, "n": true, "no": true,
}

func (Boolean) Kind() Kind { return KindBoolean }

func (Boolean) Cast(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case bool:
		return x
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return nil
		}
		return !falseValues[strings.ToLower(s)]
	case []byte:
		return Boolean{}.Cast(string(x))
	}
	if f, ok := toFloat(v); ok {
		return f != 0
	}
	return nil
}

func (b Boolean) Serialize(v any) (any, error) { return b.Cast(v), nil }

func toInt(v any) (int64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(rv.Uint()), true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	if v == nil {
		return 0, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	}
	return 0, false
}
