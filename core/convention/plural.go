package convention

import "strings"

// Table names pluralize only the last segment of an underscored model name,
// so the rules below see lower-case ASCII words.

// segmentPlurals holds segments the suffix rules get wrong. Mass nouns map
// to themselves.
var segmentPlurals = map[string]string{
	"person":   "people",
	"child":    "children",
	"datum":    "data",
	"data":     "data",
	"metadata": "metadata",
	"index":    "indices",
	"info":     "info",
}

// suffixRules are tried in order. The first matching suffix drops trim bytes
// and appends add; a segment matching none gets "s".
var suffixRules = []struct {
	suffix string
	trim   int
	add    string
}{
	{"ay", 0, "s"},
	{"ey", 0, "s"},
	{"oy", 0, "s"},
	{"uy", 0, "s"},
	{"y", 1, "ies"},
	{"ch", 0, "es"},
	{"sh", 0, "es"},
	{"s", 0, "es"},
	{"x", 0, "es"},
	{"z", 0, "es"},
}

func pluralizeSegment(segment string) string {
	if segment == "" {
		return ""
	}
	if p, ok := segmentPlurals[segment]; ok {
		return p
	}
	for _, r := range suffixRules {
		if strings.HasSuffix(segment, r.suffix) && len(segment) > len(r.suffix) {
			return segment[:len(segment)-r.trim] + r.add
		}
	}
	return segment + "s"
}
