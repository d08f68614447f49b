package operations

import (
	"strconv"
	"strings"
)

// ParamType is the semantic type of a declared parameter.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeInteger ParamType = "integer"
	TypeEnum    ParamType = "enum"
)

// Parameter declares one named input of an operation. A nil Default makes
// the parameter required.
type Parameter struct {
	Name        string
	Type        ParamType
	Description string
	Default     any
	Choices     []string
	Min         *int
	// Check rejects string values the builder cannot carry safely.
	Check func(string) error
}

func (p Parameter) Required() bool {
	return p.Default == nil
}

// BuildFunc turns bound values into the argument vector, excluding the
// binary itself. It must be pure.
type BuildFunc func(v *Values) []string

// PostFunc rewrites successful stdout after execution.
type PostFunc func(stdout string, v *Values) string

// Operation is one named, parameterized scanning capability.
type Operation struct {
	Name        string
	Description string
	Params      []Parameter
	Build       BuildFunc
	Post        PostFunc
}

// Values holds the bound parameters of one call and records which names a
// builder reads.
type Values struct {
	vals map[string]any
	used map[string]struct{}
}

func newValues(vals map[string]any) *Values {
	return &Values{vals: vals, used: make(map[string]struct{}, len(vals))}
}

func (v *Values) lookup(name string) any {
	v.used[name] = struct{}{}
	return v.vals[name]
}

// String returns a string or enum parameter.
func (v *Values) String(name string) string {
	s, _ := v.lookup(name).(string)
	return s
}

// Int returns an integer parameter.
func (v *Values) Int(name string) int {
	n, _ := v.lookup(name).(int)
	return n
}

// Arg returns any parameter rendered as a single argument.
func (v *Values) Arg(name string) string {
	switch t := v.lookup(name).(type) {
	case string:
		return t
	case int:
		return strconv.Itoa(t)
	default:
		return ""
	}
}

// Fields splits a whitespace-separated list parameter into one element per
// entry.
func (v *Values) Fields(name string) []string {
	return strings.Fields(v.String(name))
}

func intPtr(n int) *int {
	return &n
}
