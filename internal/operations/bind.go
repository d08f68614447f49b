package operations

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"sort"
	"strconv"
	"strings"
)

// bind validates args against the declared parameters of op and applies
// defaults.
func bind(op Operation, args map[string]any) (*Values, error) {
	declared := make(map[string]struct{}, len(op.Params))
	vals := make(map[string]any, len(op.Params))
	for _, p := range op.Params {
		declared[p.Name] = struct{}{}
		raw, ok := args[p.Name]
		if !ok || isBlank(raw) {
			if p.Required() {
				return nil, invalidf("missing required parameter %q", p.Name)
			}
			raw = p.Default
		}
		val, err := p.coerce(raw)
		if err != nil {
			return nil, err
		}
		vals[p.Name] = val
	}

	extra := make([]string, 0)
	for name := range args {
		if _, ok := declared[name]; !ok {
			extra = append(extra, name)
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		return nil, invalidf("unexpected parameter %q", extra[0])
	}
	return newValues(vals), nil
}

func isBlank(raw any) bool {
	if raw == nil {
		return true
	}
	s, ok := raw.(string)
	return ok && strings.TrimSpace(s) == ""
}

func (p Parameter) coerce(raw any) (any, error) {
	switch p.Type {
	case TypeString, TypeEnum:
		s, ok := raw.(string)
		if !ok {
			return nil, invalidf("parameter %q must be a string, got %T", p.Name, raw)
		}
		s = strings.TrimSpace(s)
		if p.Type == TypeEnum && !slices.Contains(p.Choices, s) {
			return nil, invalidf("parameter %q must be one of [%s], got %q", p.Name, strings.Join(p.Choices, ", "), s)
		}
		if p.Check != nil {
			if err := p.Check(s); err != nil {
				return nil, invalidf("parameter %q: %v", p.Name, err)
			}
		}
		return s, nil
	case TypeInteger:
		n, err := toInt(raw)
		if err != nil {
			return nil, invalidf("parameter %q must be an integer: %v", p.Name, err)
		}
		if p.Min != nil && n < *p.Min {
			return nil, invalidf("parameter %q must be >= %d, got %d", p.Name, *p.Min, n)
		}
		return n, nil
	default:
		return nil, invalidf("parameter %q has unknown type %q", p.Name, p.Type)
	}
}

func toInt(raw any) (int, error) {
	switch t := raw.(type) {
	case int:
		return t, nil
	case int32:
		return int(t), nil
	case int64:
		if t > math.MaxInt32 || t < math.MinInt32 {
			return 0, fmt.Errorf("%d out of range", t)
		}
		return int(t), nil
	case float64:
		if t != math.Trunc(t) || math.IsInf(t, 0) || t > math.MaxInt32 || t < math.MinInt32 {
			return 0, fmt.Errorf("%v is not a whole number", t)
		}
		return int(t), nil
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return 0, err
		}
		return toInt(n)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return 0, fmt.Errorf("%q is not a whole number", t)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("unsupported type %T", raw)
	}
}
