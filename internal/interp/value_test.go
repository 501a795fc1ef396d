package interp

import (
	"testing"
)

func TestDeepEqualLaws(t *testing.T) {
	values := []Value{
		&StringValue{Value: "x"},
		&NumberValue{Value: 3.5},
		&BoolValue{Value: true},
		&TupleValue{Elements: []Value{&NumberValue{Value: 1}, &StringValue{Value: "a"}}},
		&DictValue{Entries: map[string]Value{"k": &NumberValue{Value: 2}}},
		&VectorValue{Elements: []float64{1, 2, 3}},
	}
	for _, v := range values {
		if !DeepEqual(v, v) {
			t.Errorf("DeepEqual(%s, %s) is false", v.Inspect(), v.Inspect())
		}
	}

	a := &TupleValue{Elements: []Value{&NumberValue{Value: 1}}}
	b := &TupleValue{Elements: []Value{&NumberValue{Value: 1}}}
	c := &TupleValue{Elements: []Value{&NumberValue{Value: 1}}}
	if !DeepEqual(a, b) || !DeepEqual(b, a) {
		t.Error("symmetry violated")
	}
	if DeepEqual(a, b) && DeepEqual(b, c) && !DeepEqual(a, c) {
		t.Error("transitivity violated")
	}
}

func TestDeepEqualTypeDiscrimination(t *testing.T) {
	if DeepEqual(&NumberValue{Value: 0}, &StringValue{}) {
		t.Error("number 0 equals empty string")
	}
	if DeepEqual(&BoolValue{}, &NumberValue{}) {
		t.Error("false equals 0")
	}
	if DeepEqual(&TupleValue{}, NewDict()) {
		t.Error("empty tuple equals empty dict")
	}
}

func TestDictEqualityIsOrderIndependent(t *testing.T) {
	a := &DictValue{Entries: map[string]Value{"x": &NumberValue{Value: 1}, "y": &NumberValue{Value: 2}}}
	b := &DictValue{Entries: map[string]Value{"y": &NumberValue{Value: 2}, "x": &NumberValue{Value: 1}}}
	if !DeepEqual(a, b) {
		t.Error("dicts with same entries compare unequal")
	}
}

func TestIsEmpty(t *testing.T) {
	empty := []Value{
		&StringValue{},
		&NumberValue{},
		&BoolValue{},
		&TupleValue{},
		&ArgsValue{},
		NewDict(),
		&VectorValue{},
	}
	for _, v := range empty {
		if !IsEmpty(v) {
			t.Errorf("%s (%s) should be empty", v.Inspect(), InferType(v))
		}
	}

	nonEmpty := []Value{
		&StringValue{Value: "x"},
		&NumberValue{Value: -1},
		&BoolValue{Value: true},
		&TupleValue{Elements: []Value{&NumberValue{}}},
		&DictValue{Entries: map[string]Value{"k": &NumberValue{}}},
		&RuntimeCallable{Name: "f"},
	}
	for _, v := range nonEmpty {
		if IsEmpty(v) {
			t.Errorf("%s (%s) should be non-empty", v.Inspect(), InferType(v))
		}
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{5, "5"},
		{0, "0"},
		{-3, "-3"},
		{2.5, "2.5"},
		{1e6, "1000000"},
	}
	for _, tt := range tests {
		if got := FormatNumber(tt.in); got != tt.want {
			t.Errorf("FormatNumber(%v): got %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatValues(t *testing.T) {
	if got := Format(&StringValue{Value: "hi"}); got != "hi" {
		t.Errorf("string format: %q", got)
	}
	if got := Format(&NumberValue{Value: 7}); got != "7" {
		t.Errorf("number format: %q", got)
	}
	tup := &TupleValue{Elements: []Value{&NumberValue{Value: 1}, &StringValue{Value: "a"}}}
	if got := Format(tup); got != `[1, "a"]` {
		t.Errorf("tuple format: %q", got)
	}
}

func TestDictInspectSortsKeys(t *testing.T) {
	d := &DictValue{Entries: map[string]Value{
		"b": &NumberValue{Value: 2},
		"a": &NumberValue{Value: 1},
	}}
	if got := d.Inspect(); got != "[a: 1, b: 2]" {
		t.Errorf("dict inspect: %q", got)
	}
}

func TestTypeNames(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{&StringValue{}, "string"},
		{&NumberValue{}, "number"},
		{&BoolValue{}, "bool"},
		{&TupleValue{}, "tuple"},
		{&ArgsValue{}, "args"},
		{NewDict(), "dict"},
		{&VectorValue{}, "vector"},
		{&RuntimeCallable{}, "closure"},
		{&ApplicationCallable{}, "closure"},
	}
	for _, tt := range tests {
		if got := InferType(tt.v); got != tt.want {
			t.Errorf("got %q, want %q", got, tt.want)
		}
	}
}

func TestFromGoRoundTrip(t *testing.T) {
	v, err := FromGo(map[string]any{
		"name":  "ada",
		"count": 3,
		"tags":  []any{"a", "b"},
		"ok":    true,
	})
	if err != nil {
		t.Fatal(err)
	}
	d := v.(*DictValue)
	wantStr(t, d.Entries["name"], "ada")
	wantNumber(t, d.Entries["count"], 3)
	wantBool(t, d.Entries["ok"], true)

	back := ToGo(v).(map[string]any)
	if back["name"] != "ada" || back["count"] != 3.0 {
		t.Errorf("round trip: %#v", back)
	}
}

func TestFromGoVector(t *testing.T) {
	v, err := FromGo([]float64{1, 2})
	if err != nil {
		t.Fatal(err)
	}
	if InferType(v) != "vector" {
		t.Errorf("got %s", InferType(v))
	}
}
