package interp

import (
	"testing"

	rillerr "github.com/rcrsr/rill/internal/errors"
)

func wantTupleNumbers(t *testing.T, v Value, want ...float64) {
	t.Helper()
	tup, ok := v.(*TupleValue)
	if !ok {
		t.Fatalf("got %s (%s), want tuple", v.Inspect(), InferType(v))
	}
	if len(tup.Elements) != len(want) {
		t.Fatalf("length %d, want %d (%s)", len(tup.Elements), len(want), v.Inspect())
	}
	for i, w := range want {
		wantNumber(t, tup.Elements[i], w)
	}
}

func TestEachCollects(t *testing.T) {
	wantTupleNumbers(t, mustEval(t, "[1, 2, 3] -> each { $ * 2 }"), 2, 4, 6)
}

func TestEachWithAccumulator(t *testing.T) {
	wantNumber(t, mustEval(t, "[1, 2, 3] -> each(0) { $@ + $ }"), 6)
}

func TestEachBreakStops(t *testing.T) {
	wantNumber(t, mustEval(t, "[1, 2, 3, 4] -> each(0) { ($ == 3) ? $@ -> break\n$@ + $ }"), 3)
}

func TestMapCollectsInOrder(t *testing.T) {
	wantTupleNumbers(t, mustEval(t, "[3, 1, 2] -> map { $ * 10 }"), 30, 10, 20)
}

func TestMapWithClosureBody(t *testing.T) {
	wantTupleNumbers(t, mustEval(t, "[1, 2] -> map |x| { $x + 1 }"), 2, 3)
}

func TestFilter(t *testing.T) {
	wantTupleNumbers(t, mustEval(t, "[1, 2, 3, 4] -> filter { $ % 2 == 0 }"), 2, 4)
}

func TestFilterKeepsElementsNotBodyValues(t *testing.T) {
	wantTupleNumbers(t, mustEval(t, "[1, 2] -> filter { true }"), 1, 2)
}

func TestFold(t *testing.T) {
	wantNumber(t, mustEval(t, "[1, 2, 3, 4] -> fold(0) { $@ + $ }"), 10)
	wantNumber(t, mustEval(t, "[2, 3] -> fold(1) { $@ * $ }"), 6)
}

func TestStringAsSequence(t *testing.T) {
	v := mustEval(t, `"abc" -> each { $ }`)
	tup := v.(*TupleValue)
	if len(tup.Elements) != 3 {
		t.Fatalf("got %s", v.Inspect())
	}
	wantStr(t, tup.Elements[0], "a")
}

func TestDictIterationSortedByKey(t *testing.T) {
	v := mustEval(t, "[b: 2, a: 1, c: 3] -> each { $[0] }")
	tup := v.(*TupleValue)
	got := make([]string, len(tup.Elements))
	for i, e := range tup.Elements {
		got[i] = e.(*StringValue).Value
	}
	want := []string{"a", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("keys %v, want %v", got, want)
		}
	}
}

func TestDictEntriesArePairs(t *testing.T) {
	wantTupleNumbers(t, mustEval(t, "[a: 1, b: 2] -> each { $[1] }"), 1, 2)
}

func TestRangeIterator(t *testing.T) {
	wantTupleNumbers(t, mustEval(t, "range(0, 4) -> each { $ }"), 0, 1, 2, 3)
	wantTupleNumbers(t, mustEval(t, "range(1, 10, 3) -> each { $ }"), 1, 4, 7)
	wantTupleNumbers(t, mustEval(t, "range(3, 0, -1) -> each { $ }"), 3, 2, 1)
}

func TestRangeEmpty(t *testing.T) {
	v := mustEval(t, "range(5, 5) -> each { $ }")
	tup := v.(*TupleValue)
	if len(tup.Elements) != 0 {
		t.Fatalf("got %s", v.Inspect())
	}
}

func TestRepeatIterator(t *testing.T) {
	v := mustEval(t, `repeat("x", 3) -> each { $ }`)
	tup := v.(*TupleValue)
	if len(tup.Elements) != 3 {
		t.Fatalf("got %s", v.Inspect())
	}
	wantStr(t, tup.Elements[0], "x")
}

func TestIteratorProtocolShape(t *testing.T) {
	v := mustEval(t, "range(0, 2)")
	d, ok := v.(*DictValue)
	if !ok {
		t.Fatalf("got %s", InferType(v))
	}
	if _, ok := d.Entries["done"].(*BoolValue); !ok {
		t.Error("missing done field")
	}
	if _, ok := d.Entries["next"].(Callable); !ok {
		t.Error("missing next callable")
	}
	wantNumber(t, d.Entries["value"], 0)
}

func TestFirstMethodReturnsIterator(t *testing.T) {
	v := mustEval(t, "[10, 20] :> $t\n$t.first()")
	d, ok := v.(*DictValue)
	if !ok {
		t.Fatalf("got %s", InferType(v))
	}
	wantNumber(t, d.Entries["value"], 10)

	wantTupleNumbers(t, mustEval(t, "[10, 20] :> $t\n$t.first() -> each { $ }"), 10, 20)
}

func TestEnumerate(t *testing.T) {
	v := mustEval(t, `enumerate(["a", "b"])`)
	tup := v.(*TupleValue)
	if len(tup.Elements) != 2 {
		t.Fatalf("got %s", v.Inspect())
	}
	pair := tup.Elements[1].(*TupleValue)
	wantNumber(t, pair.Elements[0], 1)
	wantStr(t, pair.Elements[1], "b")
}

func TestFoldOverIterator(t *testing.T) {
	wantNumber(t, mustEval(t, "range(1, 5) -> fold(0) { $@ + $ }"), 10)
}

func TestCollectionOnNonIterableErrors(t *testing.T) {
	_, err := evalSource(t, "5 -> each { $ }")
	wantRuntimeError(t, err, rillerr.RunTypeMismatch)
}

func TestFilterCommutesWithEach(t *testing.T) {
	// Filtering then mapping equals mapping then filtering for a
	// predicate the map preserves.
	a := mustEval(t, "[1, 2, 3, 4] -> filter { $ % 2 == 0 } -> each { $ * 3 }")
	b := mustEval(t, "[1, 2, 3, 4] -> each { $ * 3 } -> filter { $ % 2 == 0 }")
	if !DeepEqual(a, b) {
		t.Fatalf("%s != %s", a.Inspect(), b.Inspect())
	}
}
