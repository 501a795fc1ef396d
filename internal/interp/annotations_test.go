package interp

import (
	"testing"

	rillerr "github.com/rcrsr/rill/internal/errors"
)

func TestClosureAnnotationsFromFrame(t *testing.T) {
	v := mustEval(t, "^(retries: 3) |x| { $x } :> $f\n$f.^retries")
	wantNumber(t, v, 3)
}

func TestAnnotationInheritanceInnerOverridesOuter(t *testing.T) {
	// The annotated statement's frame merges over the enclosing frame.
	v := mustEval(t, "^(a: 1, b: 2) { ^(b: 9) |x| { $x } } :> $f\n$f.^b")
	wantNumber(t, v, 9)

	v = mustEval(t, "^(a: 1, b: 2) { ^(b: 9) |x| { $x } } :> $f\n$f.^a")
	wantNumber(t, v, 1)
}

func TestAnnotationFramePopped(t *testing.T) {
	// After the annotated statement, the frame is gone.
	v := mustEval(t, "^(tag: 1) identity(5)\n|x| { $x } :> $f\n$f.^tag ?? \"absent\"")
	wantStr(t, v, "absent")
}

func TestUndefinedAnnotationErrors(t *testing.T) {
	_, err := evalSource(t, "|x| { $x } :> $f\n$f.^missing")
	wantRuntimeError(t, err, rillerr.RunUndefinedAnnotation)
}

func TestAnnotationAccessOnNonCallable(t *testing.T) {
	_, err := evalSource(t, "5 :> $n\n$n.^key")
	wantRuntimeError(t, err, rillerr.RunNotCallable)
}

func TestAnnotationSpread(t *testing.T) {
	v := mustEval(t, "[team: \"infra\"] :> $meta\n^(*$meta) |x| { $x } :> $f\n$f.^team")
	wantStr(t, v, "infra")
}

func TestParamsReflection(t *testing.T) {
	v := mustEval(t, "|a: number, b| { $a } :> $f\n$f.params")
	d, ok := v.(*DictValue)
	if !ok {
		t.Fatalf("got %s", InferType(v))
	}
	a := d.Entries["a"].(*DictValue)
	wantStr(t, a.Entries["type"], "number")
	b := d.Entries["b"].(*DictValue)
	if _, ok := b.Entries["type"]; ok {
		t.Error("untyped parameter reports a type")
	}
}

func TestParamsReflectionAnnotations(t *testing.T) {
	v := mustEval(t, "|x ^(doc: \"input\")| { $x } :> $f\n$f.params")
	d := v.(*DictValue)
	x := d.Entries["x"].(*DictValue)
	anns, ok := x.Entries["__annotations"].(*DictValue)
	if !ok {
		t.Fatal("missing __annotations")
	}
	wantStr(t, anns.Entries["doc"], "input")
}

func TestParamsOnNonScriptCallable(t *testing.T) {
	_, err := evalSource(t, "5 :> $n\n$n.params")
	wantRuntimeError(t, err, rillerr.RunNotCallable)
}
