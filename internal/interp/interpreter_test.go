package interp

import (
	"errors"
	"strings"
	"testing"

	"github.com/rcrsr/rill/internal/ast"
	rillerr "github.com/rcrsr/rill/internal/errors"
	"github.com/rcrsr/rill/internal/parser"
)

// evalSource parses and evaluates input in a fresh context.
func evalSource(t *testing.T, input string) (Value, error) {
	t.Helper()
	return evalSourceCtx(t, input, NewContext())
}

func evalSourceCtx(t *testing.T, input string, ctx *Context) (Value, error) {
	t.Helper()
	program, err := parser.Parse(input)
	if err != nil {
		t.Fatalf("parse %q: %v", input, err)
	}
	return New().EvalProgram(program, ctx)
}

// mustParse parses input and fails the test on error.
func mustParse(t *testing.T, input string) *ast.Body {
	t.Helper()
	program, err := parser.Parse(input)
	if err != nil {
		t.Fatalf("parse %q: %v", input, err)
	}
	return program
}

// mustEval evaluates input and fails the test on error.
func mustEval(t *testing.T, input string) Value {
	t.Helper()
	v, err := evalSource(t, input)
	if err != nil {
		t.Fatalf("eval %q: %v", input, err)
	}
	return v
}

func wantNumber(t *testing.T, v Value, want float64) {
	t.Helper()
	n, ok := v.(*NumberValue)
	if !ok {
		t.Fatalf("got %s (%s), want number %v", v.Inspect(), InferType(v), want)
	}
	if n.Value != want {
		t.Errorf("got %v, want %v", n.Value, want)
	}
}

func wantStr(t *testing.T, v Value, want string) {
	t.Helper()
	s, ok := v.(*StringValue)
	if !ok {
		t.Fatalf("got %s (%s), want string %q", v.Inspect(), InferType(v), want)
	}
	if s.Value != want {
		t.Errorf("got %q, want %q", s.Value, want)
	}
}

func wantBool(t *testing.T, v Value, want bool) {
	t.Helper()
	b, ok := v.(*BoolValue)
	if !ok {
		t.Fatalf("got %s (%s), want bool %v", v.Inspect(), InferType(v), want)
	}
	if b.Value != want {
		t.Errorf("got %v, want %v", b.Value, want)
	}
}

func wantRuntimeError(t *testing.T, err error, id rillerr.ID) *rillerr.RuntimeError {
	t.Helper()
	if err == nil {
		t.Fatal("expected a runtime error")
	}
	var re *rillerr.RuntimeError
	if !errors.As(err, &re) {
		t.Fatalf("got %T: %v", err, err)
	}
	if re.ID != id {
		t.Fatalf("got %s, want %s (%v)", re.ID, id, err)
	}
	return re
}

func TestLiteralValues(t *testing.T) {
	tests := []struct {
		input string
		check func(t *testing.T, v Value)
	}{
		{"42", func(t *testing.T, v Value) { wantNumber(t, v, 42) }},
		{"3.5", func(t *testing.T, v Value) { wantNumber(t, v, 3.5) }},
		{"-5", func(t *testing.T, v Value) { wantNumber(t, v, -5) }},
		{`"hi"`, func(t *testing.T, v Value) { wantStr(t, v, "hi") }},
		{"true", func(t *testing.T, v Value) { wantBool(t, v, true) }},
		{"false", func(t *testing.T, v Value) { wantBool(t, v, false) }},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			tt.check(t, mustEval(t, tt.input))
		})
	}
}

func TestArithmetic(t *testing.T) {
	tests := []struct {
		input string
		want  float64
	}{
		{"1 + 2", 3},
		{"10 - 4", 6},
		{"3 * 4", 12},
		{"10 / 4", 2.5},
		{"10 % 3", 1},
		{"1 + 2 * 3", 7},
		{"(1 + 2) * 3", 9},
	}
	for _, tt := range tests {
		wantNumber(t, mustEval(t, tt.input), tt.want)
	}
}

func TestStringConcat(t *testing.T) {
	wantStr(t, mustEval(t, `"foo" + "bar"`), "foobar")
}

func TestNoImplicitCoercion(t *testing.T) {
	_, err := evalSource(t, `"1" + 2`)
	wantRuntimeError(t, err, rillerr.RunNotCallable)
}

func TestComparisons(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"1 < 2", true},
		{"2 <= 2", true},
		{"3 > 4", false},
		{"1 == 1", true},
		{`"a" == "a"`, true},
		{`[1, 2] == [1, 2]`, true},
		{`[a: 1] == [a: 1]`, true},
		{`[a: 1] == [a: 2]`, false},
		{"1 != 2", true},
		{`"abc" < "abd"`, true},
	}
	for _, tt := range tests {
		wantBool(t, mustEval(t, tt.input), tt.want)
	}
}

func TestTruthiness(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{`"" ? true ! false`, false},
		{`"x" ? true ! false`, true},
		{`0 ? true ! false`, false},
		{`1 ? true ! false`, true},
		{`[] ? true ! false`, false},
		{`[1] ? true ! false`, true},
		{`[:] ? true ! false`, false},
		{`[a: 1] ? true ! false`, true},
	}
	for _, tt := range tests {
		wantBool(t, mustEval(t, tt.input), tt.want)
	}
}

func TestPipeValueThreading(t *testing.T) {
	wantNumber(t, mustEval(t, "5 -> identity"), 5)
	wantStr(t, mustEval(t, `"x" -> type`), "string")
	wantNumber(t, mustEval(t, "2 -> { $ * 3 }"), 6)
}

func TestStatementValueBecomesPipeValue(t *testing.T) {
	wantNumber(t, mustEval(t, "41\n$ + 1"), 42)
}

func TestCaptureAndResolve(t *testing.T) {
	wantNumber(t, mustEval(t, "5 :> $x\n$x * 2"), 10)
}

func TestInlineCapturePassesThrough(t *testing.T) {
	wantNumber(t, mustEval(t, "5 :> $x -> { $ + 1 }\n$x"), 5)
	wantNumber(t, mustEval(t, "5 :> $x -> { $ + 1 }"), 6)
}

func TestFatArrowCapture(t *testing.T) {
	wantNumber(t, mustEval(t, "7 => $x\n$x"), 7)
}

func TestTypeLock(t *testing.T) {
	_, err := evalSource(t, "5 :> $x\n\"s\" :> $x")
	wantRuntimeError(t, err, rillerr.RunTypeMismatch)

	// Re-capturing the same type is fine.
	wantNumber(t, mustEval(t, "5 :> $x\n6 :> $x\n$x"), 6)
}

func TestTypedCaptureMismatch(t *testing.T) {
	_, err := evalSource(t, `5 :> $x: string`)
	wantRuntimeError(t, err, rillerr.RunTypeMismatch)
}

func TestUndefinedVariable(t *testing.T) {
	_, err := evalSource(t, "$nope")
	wantRuntimeError(t, err, rillerr.RunUndefinedVariable)
}

func TestUnknownFunction(t *testing.T) {
	_, err := evalSource(t, "1 -> frobnicate")
	wantRuntimeError(t, err, rillerr.RunUnknownFunction)
}

func TestUnknownMethod(t *testing.T) {
	_, err := evalSource(t, `"x" -> .frobnicate`)
	wantRuntimeError(t, err, rillerr.RunUnknownMethod)
}

func TestPipeValueRestoredAfterChain(t *testing.T) {
	// The inner chain's $ mutations stay chain-local.
	v := mustEval(t, "1\n(2 -> { $ * 10 })\n$")
	wantNumber(t, v, 20)

	// A chain inside an argument list does not clobber the enclosing $.
	v = mustEval(t, "5\nidentity(2 -> identity)\n5 -> { $ }")
	wantNumber(t, v, 5)
}

func TestInterpolation(t *testing.T) {
	wantStr(t, mustEval(t, "7 :> $n\n\"n = {$n}\""), "n = 7")
	wantStr(t, mustEval(t, `"sum: {1 + 2}"`), "sum: 3")
	wantStr(t, mustEval(t, "[a: 1] :> $d\n\"a is {$d.a}\""), "a is 1")
}

// Boundary scenario 1: auto-injection.
func TestAutoInjection(t *testing.T) {
	var logged []string
	ctx := NewContext()
	ctx.SetCallbacks(Callbacks{OnLog: func(v Value) { logged = append(logged, Format(v)) }})

	v, err := evalSourceCtx(t, `"hello" -> log -> .len`, ctx)
	if err != nil {
		t.Fatal(err)
	}
	wantNumber(t, v, 5)
	if len(logged) != 1 || logged[0] != "hello" {
		t.Errorf("logged: %v", logged)
	}
}

// Boundary scenario 2: triple-quote opening-newline skip.
func TestTripleQuoteOpeningNewline(t *testing.T) {
	wantStr(t, mustEval(t, "\"\"\"\nhello\n\"\"\""), "hello\n")
}

// Boundary scenario 3: dict dispatch with default.
func TestDictDispatch(t *testing.T) {
	wantStr(t, mustEval(t, `"red" -> [red: "stop", green: "go", default: "unknown"]`), "stop")
	wantStr(t, mustEval(t, `"blue" -> [red: "stop", green: "go", default: "unknown"]`), "unknown")
}

func TestDictDispatchMissingKeyErrors(t *testing.T) {
	_, err := evalSource(t, `"blue" -> [red: "stop"]`)
	wantRuntimeError(t, err, rillerr.RunMissingField)
}

func TestDictDispatchCallable(t *testing.T) {
	wantNumber(t, mustEval(t, `5 -> [5: |n| { $n * 2 }, default: 0]`), 10)
}

// Boundary scenario 4: existence check in conditional.
func TestExistenceCheck(t *testing.T) {
	v := mustEval(t, "[type: \"blocked\"] :> $r\n($r.?type) ? \"has\" ! \"no\"")
	wantStr(t, v, "has")

	v = mustEval(t, "[type: \"blocked\"] :> $r\n($r.?other) ? \"has\" ! \"no\"")
	wantStr(t, v, "no")
}

// Boundary scenario 5: closure late binding against the defining scope
// snapshot.
func TestClosureLateBinding(t *testing.T) {
	_, err := evalSource(t, "|x| { $x * $k } :> $f\n10 :> $k\n$f(3)")
	wantRuntimeError(t, err, rillerr.RunUndefinedVariable)

	v := mustEval(t, "10 :> $k\n|x| { $x * $k } :> $f\n$f(3)")
	wantNumber(t, v, 30)
}

// Boundary scenario 6: iteration limit annotation.
func TestIterationLimit(t *testing.T) {
	_, err := evalSource(t, "^(limit: 3) 0 -> ($ < 100) @ { $ + 1 }")
	re := wantRuntimeError(t, err, rillerr.RunIterationLimit)
	if re.Context["limit"] != 3 {
		t.Errorf("limit context: %v", re.Context["limit"])
	}
	iters, ok := re.Context["iterations"].(int)
	if !ok || iters <= 3 {
		t.Errorf("iterations context: %v", re.Context["iterations"])
	}
}

// Boundary scenario 7: break inside map escapes uncaught.
func TestBreakInMapEscapes(t *testing.T) {
	_, err := evalSource(t, "[1, 2, 3] -> map { ($ == 2) ? break\n$ * 2 }")
	wantRuntimeError(t, err, rillerr.RunUncaughtSignal)
}

func TestBreakOutsideLoop(t *testing.T) {
	_, err := evalSource(t, "1 -> break")
	wantRuntimeError(t, err, rillerr.RunUncaughtSignal)
}

func TestReturnOutsideClosure(t *testing.T) {
	_, err := evalSource(t, "1 -> return")
	wantRuntimeError(t, err, rillerr.RunUncaughtSignal)
}

func TestWhileLoop(t *testing.T) {
	wantNumber(t, mustEval(t, "0 -> ($ < 5) @ { $ + 1 }"), 5)
}

func TestWhileLoopBreakValue(t *testing.T) {
	wantNumber(t, mustEval(t, "0 -> ($ < 100) @ { ($ == 7) ? break\n$ + 1 }"), 7)
}

func TestDoWhileRunsAtLeastOnce(t *testing.T) {
	wantNumber(t, mustEval(t, "10 -> @ { $ + 1 } ? ($ < 5)"), 11)
}

func TestConditionalZeroForms(t *testing.T) {
	wantStr(t, mustEval(t, `false ? "y"`), "")
	wantNumber(t, mustEval(t, "false ? 5"), 0)
	wantBool(t, mustEval(t, "false ? true"), false)
}

func TestCoalesce(t *testing.T) {
	wantStr(t, mustEval(t, `"" ?? "fallback"`), "fallback")
	wantStr(t, mustEval(t, `"set" ?? "fallback"`), "set")
	wantNumber(t, mustEval(t, "0 ?? 9"), 9)
	// A missing field coalesces instead of erroring.
	wantStr(t, mustEval(t, "[a: 1] :> $d\n$d.b ?? \"none\""), "none")
	// An undefined variable still propagates.
	_, err := evalSource(t, `$nope ?? "x"`)
	wantRuntimeError(t, err, rillerr.RunUndefinedVariable)
}

func TestFieldAccess(t *testing.T) {
	wantNumber(t, mustEval(t, "[a: 1, b: [c: 2]] :> $d\n$d.b.c"), 2)

	_, err := evalSource(t, "[a: 1] :> $d\n$d.missing")
	wantRuntimeError(t, err, rillerr.RunMissingField)

	_, err = evalSource(t, "5 :> $n\n$n.field")
	wantRuntimeError(t, err, rillerr.RunNotCallable)
}

func TestVariableKeyedAccess(t *testing.T) {
	wantNumber(t, mustEval(t, "[a: 7] :> $d\n\"a\" :> $k\n$d.$k"), 7)
}

func TestComputedAccess(t *testing.T) {
	wantNumber(t, mustEval(t, "[ab: 7] :> $d\n$d.(\"a\" + \"b\")"), 7)
}

func TestBracketAccessAndSlices(t *testing.T) {
	wantNumber(t, mustEval(t, "[10, 20, 30] :> $t\n$t[1]"), 20)
	wantNumber(t, mustEval(t, "[10, 20, 30] :> $t\n$t[-1]"), 30)
	wantStr(t, mustEval(t, "\"hello\" :> $s\n$s[1]"), "e")

	v := mustEval(t, "[1, 2, 3, 4] -> [1:3]")
	tup, ok := v.(*TupleValue)
	if !ok || len(tup.Elements) != 2 {
		t.Fatalf("got %s", v.Inspect())
	}
	wantNumber(t, tup.Elements[0], 2)
	wantNumber(t, tup.Elements[1], 3)

	wantStr(t, mustEval(t, "\"hello\" -> [1:4]"), "ell")
	wantStr(t, mustEval(t, "\"hello\" -> [::2]"), "hlo")
}

func TestTypeAssertAndCheck(t *testing.T) {
	wantStr(t, mustEval(t, `"x" -> !string`), "x")
	_, err := evalSource(t, `"x" -> !number`)
	wantRuntimeError(t, err, rillerr.RunTypeMismatch)

	wantBool(t, mustEval(t, `"x" -> ?string`), true)
	wantBool(t, mustEval(t, `"x" -> ?number`), false)
}

func TestDestructure(t *testing.T) {
	v := mustEval(t, "[1, 2, 3, 4] -> [$a, _, *$rest]\n$a")
	wantNumber(t, v, 1)

	v = mustEval(t, "[1, 2, 3, 4] -> [$a, _, *$rest]\n$rest")
	tup := v.(*TupleValue)
	if len(tup.Elements) != 2 {
		t.Fatalf("rest: %s", v.Inspect())
	}

	v = mustEval(t, "[name: \"ada\", age: 36] -> [name: $n]\n$n")
	wantStr(t, v, "ada")
}

func TestSpreadInCall(t *testing.T) {
	wantStr(t, mustEval(t, "[\"x\"] :> $args\ntype(*$args)"), "string")
}

func TestDictMergeSpread(t *testing.T) {
	v := mustEval(t, "[a: 1] :> $x\n[b: 2] :> $y\n[*$x, *$y]")
	d, ok := v.(*DictValue)
	if !ok || len(d.Entries) != 2 {
		t.Fatalf("got %s", v.Inspect())
	}
}

func TestPassKeepsPipeValue(t *testing.T) {
	wantNumber(t, mustEval(t, "5 -> pass"), 5)
}

func TestAutoExceptionHalts(t *testing.T) {
	ctx := NewContext()
	if err := ctx.AddAutoException("(?i)^error:"); err != nil {
		t.Fatal(err)
	}
	_, err := evalSourceCtx(t, `"Error: boom"`, ctx)
	re := wantRuntimeError(t, err, rillerr.RunAutoException)
	if re.Context["pattern"] != "(?i)^error:" {
		t.Errorf("pattern context: %v", re.Context["pattern"])
	}
	if !strings.Contains(re.Context["value"].(string), "boom") {
		t.Errorf("value context: %v", re.Context["value"])
	}
}

func TestAutoExceptionIgnoresNonStrings(t *testing.T) {
	ctx := NewContext()
	if err := ctx.AddAutoException("\\d+"); err != nil {
		t.Fatal(err)
	}
	if _, err := evalSourceCtx(t, "42", ctx); err != nil {
		t.Fatalf("number value must not match: %v", err)
	}
}
