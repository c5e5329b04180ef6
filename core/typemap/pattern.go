package typemap

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Pattern matches string descriptors. Two patterns are the same binding slot
// when they have the same concrete type and the same String().
type Pattern interface {
	Match(descriptor string) bool
	String() string
}

type namePattern struct {
	name string
}

// Name matches descriptors whose base name (the part before any
// parenthesised metadata) equals name, ignoring case. Name("string")
// matches "string", "STRING" and "string(5)".
func Name(name string) Pattern {
	return namePattern{name: strings.ToLower(strings.TrimSpace(name))}
}

func (p namePattern) Match(descriptor string) bool {
	d := strings.TrimSpace(descriptor)
	return strings.EqualFold(d, p.name) || strings.EqualFold(BaseName(d), p.name)
}

func (p namePattern) String() string { return p.name }

type regexpPattern struct {
	re *regexp.Regexp
}

// Compile returns a pattern matching descriptors against expr.
func Compile(expr string) (Pattern, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compile pattern %q: %w", expr, err)
	}
	return regexpPattern{re: re}, nil
}

// MustCompile is like Compile but panics on an invalid expression.
// Intended for package-level type map setup.
func MustCompile(expr string) Pattern {
	p, err := Compile(expr)
	if err != nil {
		panic(err)
	}
	return p
}

// FromRegexp wraps an already compiled expression.
func FromRegexp(re *regexp.Regexp) Pattern {
	return regexpPattern{re: re}
}

func (p regexpPattern) Match(descriptor string) bool { return p.re.MatchString(descriptor) }

func (p regexpPattern) String() string { return "/" + p.re.String() + "/" }

func patternKey(p Pattern) string {
	return fmt.Sprintf("%T:%s", p, p.String())
}

var sizeRe = regexp.MustCompile(`\(\s*(\d+)\s*(?:,\s*(\d+)\s*)?\)`)

// BaseName returns the descriptor without its parenthesised metadata:
// "varchar(20)" becomes "varchar".
func BaseName(descriptor string) string {
	if i := strings.IndexByte(descriptor, '('); i >= 0 {
		return strings.TrimSpace(descriptor[:i])
	}
	return strings.TrimSpace(descriptor)
}

// Metadata returns the parenthesised part of a descriptor, including the
// parentheses, or "" when there is none.
func Metadata(descriptor string) string {
	i := strings.IndexByte(descriptor, '(')
	j := strings.LastIndexByte(descriptor, ')')
	if i < 0 || j <= i {
		return ""
	}
	return descriptor[i : j+1]
}

// ExtractLimit returns the first size in the descriptor, 0 if absent.
func ExtractLimit(descriptor string) int {
	return sizeGroup(descriptor, 1)
}

// ExtractPrecision returns the precision of "decimal(10,2)", 0 if absent.
func ExtractPrecision(descriptor string) int {
	return sizeGroup(descriptor, 1)
}

// ExtractScale returns the scale of "decimal(10,2)", 0 if absent.
func ExtractScale(descriptor string) int {
	return sizeGroup(descriptor, 2)
}

func sizeGroup(descriptor string, group int) int {
	m := sizeRe.FindStringSubmatch(descriptor)
	if m == nil || m[group] == "" {
		return 0
	}
	n, err := strconv.Atoi(m[group])
	if err != nil {
		return 0
	}
	return n
}
