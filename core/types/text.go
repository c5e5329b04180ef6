package types

import (
	"fmt"
	"math/big"
	"time"
)

// String casts to string. Limit is advisory metadata, it is not enforced here.
type String struct {
	Options
}

// NewString returns a String handler with the given limit.
func NewString(limit int) String {
	return String{Options: Options{Limit: limit}}
}

func (String) Kind() Kind { return KindString }

func (String) Cast(v any) any { return castString(v) }

func (s String) Serialize(v any) (any, error) { return castString(v), nil }

// Text is an unbounded String.
type Text struct {
	Options
}

func (Text) Kind() Kind { return KindText }

func (Text) Cast(v any) any { return castString(v) }

func (t Text) Serialize(v any) (any, error) { return castString(v), nil }

func castString(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		return x
	case []byte:
		return string(x)
	case bool:
		if x {
			return "t"
		}
		return "f"
	case *big.Rat:
		if x == nil {
			return nil
		}
		return FormatDecimal(x, 0)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}
