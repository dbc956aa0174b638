package profit

import (
	"fmt"
	"math"
	"slices"
)

// paramTable maps parameter names to the fields they set.
type paramTable map[string]any

func (t paramTable) addFloat(name string, p *float64) { t[name] = p }
func (t paramTable) addInt(name string, p *int)       { t[name] = p }
func (t paramTable) addBool(name string, p *bool)     { t[name] = p }

// names returns the parameter names in sorted order.
func (t paramTable) names() []string {
	names := make([]string, 0, len(t))
	for n := range t {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// set assigns value to the named parameter of a profile of the given kind.
func (t paramTable) set(kind, name string, value any) error {
	field, ok := t[name]
	if !ok {
		return paramErr(kind, name, nil, fmt.Sprintf("unknown parameter (known: %v)", t.names()))
	}

	switch p := field.(type) {
	case *float64:
		v, ok := toFloat(value)
		if !ok {
			return paramErr(kind, name, value, "not a number")
		}
		*p = v
	case *int:
		v, ok := toFloat(value)
		if !ok || v != math.Trunc(v) || v < 0 || v > math.MaxInt32 {
			return paramErr(kind, name, value, "not a non-negative integer")
		}
		*p = int(v)
	case *bool:
		if b, ok := value.(bool); ok {
			*p = b
			return nil
		}
		v, ok := toFloat(value)
		if !ok {
			return paramErr(kind, name, value, "not a flag")
		}
		*p = v != 0
	}
	return nil
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	}
	return 0, false
}
