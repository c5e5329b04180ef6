package types

import (
	"strings"
	"time"
)

const (
	dateLayout     = "2006-01-02"
	timeLayout     = "15:04:05"
	dateTimeLayout = "2006-01-02 15:04:05"
)

var parseLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	dateTimeLayout,
	"2006-01-02T15:04:05",
	dateLayout,
}

var clockLayouts = []string{
	"15:04:05.999999999",
	timeLayout,
	"15:04",
}

func parseTime(s string, layouts []string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func castTime(v any, layouts []string) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case *time.Time:
		if x == nil {
			return time.Time{}, false
		}
		return *x, true
	case string:
		return parseTime(x, layouts)
	case []byte:
		return parseTime(string(x), layouts)
	}
	return time.Time{}, false
}

// Date casts to a time.Time at midnight UTC.
type Date struct {
	Options
}

func (Date) Kind() Kind { return KindDate }

func (Date) Cast(v any) any {
	t, ok := castTime(v, parseLayouts)
	if !ok {
		return nil
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (d Date) Serialize(v any) (any, error) {
	t, ok := d.Cast(v).(time.Time)
	if !ok {
		return nil, nil
	}
	return t.Format(dateLayout), nil
}

// Time casts to a time.Time on 2000-01-01 UTC carrying only the clock part.
type Time struct {
	Options
}

func (Time) Kind() Kind { return KindTime }

func (Time) Cast(v any) any {
	t, ok := castTime(v, append(clockLayouts, parseLayouts...))
	if !ok {
		return nil
	}
	return time.Date(2000, 1, 1, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
}

func (tm Time) Serialize(v any) (any, error) {
	t, ok := tm.Cast(v).(time.Time)
	if !ok {
		return nil, nil
	}
	return t.Format(fractionalLayout(timeLayout, tm.Precision)), nil
}

// DateTime casts to a time.Time in UTC. Precision is the number of
// fractional second digits kept on serialize.
type DateTime struct {
	Options
}

func (DateTime) Kind() Kind { return KindDateTime }

func (DateTime) Cast(v any) any {
	t, ok := castTime(v, parseLayouts)
	if !ok {
		return nil
	}
	return t.UTC()
}

func (dt DateTime) Serialize(v any) (any, error) {
	t, ok := dt.Cast(v).(time.Time)
	if !ok {
		return nil, nil
	}
	return t.Format(fractionalLayout(dateTimeLayout, dt.Precision)), nil
}

func fractionalLayout(layout string, precision int) string {
	if precision <= 0 {
		return layout
	}
	if precision > 9 {
		precision = 9
	}
	return layout + "." + strings.Repeat("0", precision)
}
