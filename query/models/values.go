package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/satishbabariya/prisma-engines-go/datamodel"
	"github.com/satishbabariya/prisma-engines-go/runtime"
)

// Coerce converts a request value into the Go type stored for f. Requests
// decoded from JSON carry float64 numbers and string timestamps.
func (f *ScalarField) Coerce(v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	fail := func(cause error) error {
		return &runtime.ConversionError{Kind: string(f.Type), Value: fmt.Sprint(v), Cause: cause}
	}

	switch f.Type {
	case datamodel.Int:
		switch n := v.(type) {
		case int:
			return int64(n), nil
		case int32:
			return int64(n), nil
		case int64:
			return n, nil
		case float64:
			if n != math.Trunc(n) {
				return nil, fail(fmt.Errorf("not an integer"))
			}
			return int64(n), nil
		case json.Number:
			i, err := n.Int64()
			if err != nil {
				return nil, fail(err)
			}
			return i, nil
		case string:
			i, err := strconv.ParseInt(n, 10, 64)
			if err != nil {
				return nil, fail(err)
			}
			return i, nil
		}
	case datamodel.Float, datamodel.Decimal:
		switch n := v.(type) {
		case float64:
			return n, nil
		case float32:
			return float64(n), nil
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		case json.Number:
			x, err := n.Float64()
			if err != nil {
				return nil, fail(err)
			}
			return x, nil
		}
	case datamodel.Boolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case datamodel.String:
		if s, ok := v.(string); ok {
			if f.Enum != "" && s == "" {
				return nil, fail(fmt.Errorf("empty enum value"))
			}
			return s, nil
		}
	case datamodel.DateTime:
		switch t := v.(type) {
		case time.Time:
			return t.UTC(), nil
		case string:
			parsed, err := time.Parse(time.RFC3339Nano, t)
			if err != nil {
				return nil, fail(err)
			}
			return parsed.UTC(), nil
		}
	case datamodel.JSON:
		if s, ok := v.(string); ok {
			return s, nil
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, fail(err)
		}
		return string(b), nil
	}
	return nil, fail(fmt.Errorf("unexpected %T", v))
}

// CoerceAll coerces every element of a list value.
func (f *ScalarField) CoerceAll(v interface{}) ([]interface{}, error) {
	items, ok := v.([]interface{})
	if !ok {
		return nil, &runtime.ConversionError{Kind: "list of " + string(f.Type), Value: fmt.Sprint(v)}
	}
	out := make([]interface{}, len(items))
	for i, item := range items {
		c, err := f.Coerce(item)
		if err != nil {
			return nil, err
		}
		out[i] = c
	}
	return out, nil
}
