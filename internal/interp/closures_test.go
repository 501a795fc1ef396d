package interp

import (
	"testing"

	rillerr "github.com/rcrsr/rill/internal/errors"
)

func TestClosureInvocation(t *testing.T) {
	wantNumber(t, mustEval(t, "|x| { $x + 1 } :> $f\n$f(4)"), 5)
	wantNumber(t, mustEval(t, "|a, b| { $a * $b } :> $f\n$f(3, 4)"), 12)
}

func TestClosureDefaults(t *testing.T) {
	wantNumber(t, mustEval(t, "|x, y = 10| { $x + $y } :> $f\n$f(1)"), 11)
	wantNumber(t, mustEval(t, "|x, y = 10| { $x + $y } :> $f\n$f(1, 2)"), 3)
}

func TestClosureArity(t *testing.T) {
	_, err := evalSource(t, "|x| { $x } :> $f\n$f(1, 2)")
	wantRuntimeError(t, err, rillerr.RunTypeMismatch)

	_, err = evalSource(t, "|x, y| { $x } :> $f\n$f(1)")
	wantRuntimeError(t, err, rillerr.RunTypeMismatch)
}

func TestClosureParamTypes(t *testing.T) {
	wantNumber(t, mustEval(t, "|x: number| { $x } :> $f\n$f(1)"), 1)

	_, err := evalSource(t, "|x: number| { $x } :> $f\n$f(\"s\")")
	wantRuntimeError(t, err, rillerr.RunTypeMismatch)
}

func TestClosureAsPipeTarget(t *testing.T) {
	wantNumber(t, mustEval(t, "4 -> |x| { $x * 2 }"), 8)
}

func TestClosureZeroArgInvokeInjection(t *testing.T) {
	wantNumber(t, mustEval(t, "|x| { $x + 1 } :> $f\n9 -> $f()"), 10)
}

func TestBareBodyClosureInheritsPipeValue(t *testing.T) {
	// A closure without parameters sees the caller's $.
	wantNumber(t, mustEval(t, "|| { $ } :> $f\n7 -> $f()"), 7)
}

func TestParamClosureClearsPipeValue(t *testing.T) {
	// A closure with parameters must not leak the caller's $.
	wantStr(t, mustEval(t, "|x| { $ } :> $f\n7 -> { $f(1) }"), "")
}

func TestDollarParamDualBinding(t *testing.T) {
	wantNumber(t, mustEval(t, "|$| { $ + 1 } :> $f\n$f(5)"), 6)
}

func TestClosureReturn(t *testing.T) {
	v := mustEval(t, "|x| { ($x > 0) ? \"pos\" -> return\n\"neg\" } :> $f\n$f(5)")
	wantStr(t, v, "pos")

	v = mustEval(t, "|x| { ($x > 0) ? \"pos\" -> return\n\"neg\" } :> $f\n$f(-5)")
	wantStr(t, v, "neg")
}

func TestClosureRecursionViaDefiningScope(t *testing.T) {
	// Lexical scoping: the closure sees names from its defining scope
	// chain, not the calling scope.
	v := mustEval(t, "3 :> $base\n|x| { $x + $base } :> $f\n|g| { $g(1) } :> $apply\n$apply($f)")
	wantNumber(t, v, 4)
}

func TestClosureDoesNotMutateDefiningScope(t *testing.T) {
	// Captures inside an invocation stay in the call scope.
	v := mustEval(t, "1 :> $x\n|| { 99 :> $x\n$x } :> $f\n$f()\n$x")
	wantNumber(t, v, 1)
}

func TestTupleUnpackInvocation(t *testing.T) {
	wantNumber(t, mustEval(t, "|a, b| { $a + $b } :> $f\n[1, 2] :> $args\n$f($args)"), 3)
}

func TestNamedUnpackRejectsUnknown(t *testing.T) {
	ctx := NewContext()
	ctx.Define("opts", &ArgsValue{Named: map[string]Value{"zzz": &NumberValue{Value: 1}}})
	_, err := evalSourceCtx(t, "|a| { $a } :> $f\n$f($opts)", ctx)
	wantRuntimeError(t, err, rillerr.RunTypeMismatch)
}

func TestNamedUnpack(t *testing.T) {
	ctx := NewContext()
	ctx.Define("opts", &ArgsValue{Named: map[string]Value{"b": &NumberValue{Value: 2}}})
	v, err := evalSourceCtx(t, "|a = 1, b = 0| { $a + $b } :> $f\n$f($opts)", ctx)
	if err != nil {
		t.Fatal(err)
	}
	wantNumber(t, v, 3)
}

func TestDictBoundCallable(t *testing.T) {
	v := mustEval(t, "[n: 5, double: |d| { $d.n * 2 }] :> $o\n$o.double()")
	wantNumber(t, v, 10)
}

func TestDictBoundPipeValue(t *testing.T) {
	// Inside a dict-bound callable, $ is the bound dict.
	v := mustEval(t, "[n: 7, get: |d| { $.n }] :> $o\n$o.get()")
	wantNumber(t, v, 7)
}

func TestDeepEqualScriptCallables(t *testing.T) {
	wantBool(t, mustEval(t, "|x| { $x } :> $a\n$a == $a"), true)
	wantBool(t, mustEval(t, "(|x| { $x }) == (|x| { $x })"), true)
	wantBool(t, mustEval(t, "(|x| { $x }) == (|y| { $y })"), false)
}

func TestCallablesAreTruthy(t *testing.T) {
	wantStr(t, mustEval(t, "(|x| { $x }) ? \"yes\" ! \"no\""), "yes")
}

func TestClosureTypeName(t *testing.T) {
	wantStr(t, mustEval(t, "(|x| { $x }) -> type"), "closure")
}
