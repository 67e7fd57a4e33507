package component

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cast"
)

// FieldType selects how a raw service field is coerced.
type FieldType int

const (
	Int FieldType = iota
	Uint
)

// Schema lists the required fields of a service. Unknown fields are rejected,
// except the entity_id target.
type Schema map[string]FieldType

// ServiceData holds the coerced fields of a validated service call.
type ServiceData map[string]any

func (d ServiceData) Int(key string) int {
	v, _ := d[key].(int)
	return v
}

func (d ServiceData) Uint(key string) uint64 {
	v, _ := d[key].(uint64)
	return v
}

func (s Schema) Validate(raw map[string]any) (ServiceData, error) {
	data := make(ServiceData, len(s))
	for key, typ := range s {
		v, ok := raw[key]
		if !ok {
			return nil, fmt.Errorf("%w: required key %q not provided", ErrInvalidServiceData, key)
		}
		coerced, err := coerce(typ, v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidServiceData, key, err)
		}
		data[key] = coerced
	}
	var extra []string
	for key := range raw {
		if _, ok := s[key]; !ok && key != AttrEntityID {
			extra = append(extra, key)
		}
	}
	if len(extra) > 0 {
		sort.Strings(extra)
		return nil, fmt.Errorf("%w: extra keys not allowed: %s", ErrInvalidServiceData, strings.Join(extra, ", "))
	}
	return data, nil
}

func coerce(typ FieldType, v any) (any, error) {
	if v == nil {
		return nil, fmt.Errorf("expected integer, got null")
	}
	switch typ {
	case Uint:
		switch n := v.(type) {
		case json.Number:
			return numberToUint(n)
		case string:
			return strconv.ParseUint(strings.TrimSpace(n), 10, 64)
		}
		return cast.ToUint64E(v)
	default:
		switch n := v.(type) {
		case json.Number:
			return numberToInt(n)
		case string:
			i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 0)
			return int(i), err
		}
		return cast.ToIntE(v)
	}
}

// numberToUint accepts integer and decimal JSON numbers. Decimals are
// truncated towards zero, the same way cast treats Go floats.
func numberToUint(n json.Number) (uint64, error) {
	if u, err := strconv.ParseUint(n.String(), 10, 64); err == nil {
		return u, nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, err
	}
	f = math.Trunc(f)
	if f < 0 || f >= 1<<64 {
		return 0, fmt.Errorf("%s out of range", n)
	}
	return uint64(f), nil
}

func numberToInt(n json.Number) (int, error) {
	if i, err := strconv.ParseInt(n.String(), 10, 0); err == nil {
		return int(i), nil
	}
	f, err := n.Float64()
	if err != nil {
		return 0, err
	}
	f = math.Trunc(f)
	if f < math.MinInt32 || f > math.MaxInt32 {
		return 0, fmt.Errorf("%s out of range", n)
	}
	return int(f), nil
}
