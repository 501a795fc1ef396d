package interp

import (
	"fmt"

	"github.com/spf13/cast"
)

// FromGo converts a native Go value into a runtime value. Hosts use
// this to seed variables and to return results from host functions.
func FromGo(v any) (Value, error) {
	switch x := v.(type) {
	case nil:
		return EmptyString(), nil
	case Value:
		return x, nil
	case string:
		return &StringValue{Value: x}, nil
	case bool:
		return &BoolValue{Value: x}, nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		f, err := cast.ToFloat64E(x)
		if err != nil {
			return nil, err
		}
		return &NumberValue{Value: f}, nil
	case []float64:
		return &VectorValue{Elements: append([]float64{}, x...)}, nil
	case []string:
		elems := make([]Value, len(x))
		for i, s := range x {
			elems[i] = &StringValue{Value: s}
		}
		return &TupleValue{Elements: elems}, nil
	case []any:
		elems := make([]Value, len(x))
		for i, e := range x {
			ev, err := FromGo(e)
			if err != nil {
				return nil, err
			}
			elems[i] = ev
		}
		return &TupleValue{Elements: elems}, nil
	case map[string]any:
		d := NewDict()
		for k, e := range x {
			ev, err := FromGo(e)
			if err != nil {
				return nil, err
			}
			d.Entries[k] = ev
		}
		return d, nil
	case map[any]any:
		// yaml.v3 produces these for non-string keys.
		d := NewDict()
		for k, e := range x {
			key, err := cast.ToStringE(k)
			if err != nil {
				return nil, err
			}
			ev, err := FromGo(e)
			if err != nil {
				return nil, err
			}
			d.Entries[key] = ev
		}
		return d, nil
	}
	return nil, fmt.Errorf("cannot convert %T into a runtime value", v)
}

// ToGo converts a runtime value into a plain Go value. Callables
// convert to their Inspect rendering.
func ToGo(v Value) any {
	switch x := v.(type) {
	case *StringValue:
		return x.Value
	case *NumberValue:
		return x.Value
	case *BoolValue:
		return x.Value
	case *TupleValue:
		out := make([]any, len(x.Elements))
		for i, e := range x.Elements {
			out[i] = ToGo(e)
		}
		return out
	case *ArgsValue:
		if len(x.Named) > 0 {
			out := make(map[string]any, len(x.Named))
			for k, e := range x.Named {
				out[k] = ToGo(e)
			}
			return out
		}
		out := make([]any, len(x.Positional))
		for i, e := range x.Positional {
			out[i] = ToGo(e)
		}
		return out
	case *DictValue:
		out := make(map[string]any, len(x.Entries))
		for k, e := range x.Entries {
			out[k] = ToGo(e)
		}
		return out
	case *VectorValue:
		return append([]float64{}, x.Elements...)
	}
	return v.Inspect()
}
