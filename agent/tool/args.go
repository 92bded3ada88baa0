package tool

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	contractx "github.com/tanpawarit/chative-gateway/agent/contract"
)

// Args holds validated parameters: strings are trimmed and integers are int.
type Args map[string]any

func (a Args) String(name string) string {
	v, _ := a[name].(string)
	return v
}

func (a Args) OptString(name string) (string, bool) {
	v, ok := a[name].(string)
	return v, ok
}

func (a Args) Int(name string) int {
	v, _ := a[name].(int)
	return v
}

func (a Args) OptInt(name string) (int, bool) {
	v, ok := a[name].(int)
	return v, ok
}

// Validate checks raw arguments against def's schema and coerces them.
// Unknown arguments are dropped. Empty strings count as absent.
func Validate(def Definition, raw map[string]any) (Args, error) {
	out := make(Args, len(def.Params))
	for _, p := range def.Params {
		v, present := raw[p.Name]
		if present {
			if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
				present = false
			}
		}
		if !present || v == nil {
			if p.Required {
				return nil, contractx.MissingField(p.Name)
			}
			continue
		}

		switch p.Type {
		case TypeInteger:
			n, err := CoerceInt(v)
			if err != nil {
				return nil, &contractx.FieldError{Field: p.Name, Reason: "must be a whole number"}
			}
			out[p.Name] = n
		default:
			out[p.Name] = coerceString(v)
		}
	}
	return out, nil
}

func CoerceInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) || math.IsNaN(n) {
			return 0, fmt.Errorf("%v is not an integer", n)
		}
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		return int(i), err
	case string:
		return strconv.Atoi(strings.TrimSpace(n))
	default:
		return 0, fmt.Errorf("unsupported integer value %T", v)
	}
}

func coerceString(v any) string {
	switch s := v.(type) {
	case string:
		return strings.TrimSpace(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
