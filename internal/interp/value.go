// Package interp provides the tree-walking evaluator and runtime for
// Rill: the value model, scoping, closures, control-flow signals,
// annotation machinery and the built-in registry.
package interp

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/rcrsr/rill/internal/ast"
	"github.com/rcrsr/rill/pkg/token"
)

// Value represents a runtime value. Rill has no null: absence is always
// modeled with a type's empty form.
type Value interface {
	// Type returns the observable type name: "string", "number",
	// "bool", "tuple", "args", "dict", "vector" or "closure".
	Type() string
	// Inspect returns a rendering for containers and diagnostics;
	// strings are quoted. Use Format for user-facing coercion.
	Inspect() string
}

// StringValue is Unicode text. Multiline marks values born from
// triple-quoted literals.
type StringValue struct {
	Value     string
	Multiline bool
}

func (s *StringValue) Type() string    { return "string" }
func (s *StringValue) Inspect() string { return strconv.Quote(s.Value) }

// NumberValue is an IEEE-754 double.
type NumberValue struct {
	Value float64
}

func (n *NumberValue) Type() string    { return "number" }
func (n *NumberValue) Inspect() string { return FormatNumber(n.Value) }

// FormatNumber renders a number the way Rill displays it: integral
// values without a fractional part.
func FormatNumber(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// BoolValue is true or false.
type BoolValue struct {
	Value bool
}

func (b *BoolValue) Type() string { return "bool" }
func (b *BoolValue) Inspect() string {
	if b.Value {
		return "true"
	}
	return "false"
}

// TupleValue is an ordered sequence of values.
type TupleValue struct {
	Elements []Value
}

func (t *TupleValue) Type() string { return "tuple" }
func (t *TupleValue) Inspect() string {
	parts := make([]string, len(t.Elements))
	for i, e := range t.Elements {
		parts[i] = e.Inspect()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// ArgsValue is an args-shaped mapping: keys are either all positional
// (a plain sequence) or all named; never mixed.
type ArgsValue struct {
	Positional []Value
	Named      map[string]Value
}

func (a *ArgsValue) Type() string { return "args" }
func (a *ArgsValue) Inspect() string {
	if len(a.Named) > 0 {
		parts := make([]string, 0, len(a.Named))
		for _, k := range sortedKeys(a.Named) {
			parts = append(parts, k+": "+a.Named[k].Inspect())
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	parts := make([]string, len(a.Positional))
	for i, e := range a.Positional {
		parts[i] = e.Inspect()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Len returns the entry count regardless of shape.
func (a *ArgsValue) Len() int {
	if len(a.Named) > 0 {
		return len(a.Named)
	}
	return len(a.Positional)
}

// DictValue is a mapping from string keys to values. Iteration is
// always ascending by key.
type DictValue struct {
	Entries map[string]Value
}

// NewDict returns an empty dict.
func NewDict() *DictValue {
	return &DictValue{Entries: make(map[string]Value)}
}

func (d *DictValue) Type() string { return "dict" }
func (d *DictValue) Inspect() string {
	if len(d.Entries) == 0 {
		return "[:]"
	}
	parts := make([]string, 0, len(d.Entries))
	for _, k := range d.Keys() {
		parts = append(parts, k+": "+d.Entries[k].Inspect())
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// Keys returns the dict's keys in ascending order.
func (d *DictValue) Keys() []string {
	return sortedKeys(d.Entries)
}

// Get returns the value for key.
func (d *DictValue) Get(key string) (Value, bool) {
	v, ok := d.Entries[key]
	return v, ok
}

// VectorValue is a dense numeric vector, used by host embedding and
// similarity extensions.
type VectorValue struct {
	Elements []float64
}

func (v *VectorValue) Type() string { return "vector" }
func (v *VectorValue) Inspect() string {
	parts := make([]string, len(v.Elements))
	for i, e := range v.Elements {
		parts[i] = FormatNumber(e)
	}
	return "vector[" + strings.Join(parts, ", ") + "]"
}

// Callable is implemented by the three callable kinds.
type Callable interface {
	Value
	callable()
}

// ScriptCallable is a user-defined closure: parameter list, body AST,
// the scope captured at definition, closure-level and per-parameter
// annotations, and an optional back-reference to a containing dict.
type ScriptCallable struct {
	Params      []ast.ClosureParam
	Body        *ast.Body
	Defining    *Context
	Annotations map[string]Value
	ParamAnns   map[string]*DictValue
	BoundDict   *DictValue
}

func (s *ScriptCallable) callable()    {}
func (s *ScriptCallable) Type() string { return "closure" }
func (s *ScriptCallable) Inspect() string {
	names := make([]string, len(s.Params))
	for i, p := range s.Params {
		names[i] = p.Name
	}
	return "|" + strings.Join(names, ", ") + "| { … }"
}

// withBoundDict returns a shallow clone bound to d.
func (s *ScriptCallable) withBoundDict(d *DictValue) *ScriptCallable {
	clone := *s
	clone.BoundDict = d
	return &clone
}

// RuntimeFunc is the signature of implementation-provided builtins.
type RuntimeFunc func(i *Interpreter, ctx *Context, args []Value, pos token.Position) (Value, error)

// RuntimeCallable is an implementation-provided builtin function.
type RuntimeCallable struct {
	Name      string
	Fn        RuntimeFunc
	BoundDict *DictValue
}

func (r *RuntimeCallable) callable()       {}
func (r *RuntimeCallable) Type() string    { return "closure" }
func (r *RuntimeCallable) Inspect() string { return fmt.Sprintf("<builtin %s>", r.Name) }

func (r *RuntimeCallable) withBoundDict(d *DictValue) *RuntimeCallable {
	clone := *r
	clone.BoundDict = d
	return &clone
}

// HostParam describes one declared parameter of a typed host function.
type HostParam struct {
	Name        string
	Type        string // "", or one of string/number/bool/list/dict/tuple/vector
	Description string
	Default     Value
	HasDefault  bool
}

// HostFunc is the native implementation of a host-provided function.
// The runtime wraps each call in the context's timeout race.
type HostFunc func(args []Value, ctx *Context, pos token.Position) (Value, error)

// ApplicationCallable is a host-provided function, either raw (untyped)
// or typed with a parameter schema and optional declared return type.
type ApplicationCallable struct {
	Name        string
	Description string
	Params      []HostParam
	ReturnType  string // "any" when undeclared
	Raw         bool
	Fn          HostFunc
	BoundDict   *DictValue
}

func (a *ApplicationCallable) callable()       {}
func (a *ApplicationCallable) Type() string    { return "closure" }
func (a *ApplicationCallable) Inspect() string { return fmt.Sprintf("<function %s>", a.Name) }

func (a *ApplicationCallable) withBoundDict(d *DictValue) *ApplicationCallable {
	clone := *a
	clone.BoundDict = d
	return &clone
}

// bindToDict clones a callable with its boundDict field pointing at d.
func bindToDict(c Callable, d *DictValue) Callable {
	switch cc := c.(type) {
	case *ScriptCallable:
		return cc.withBoundDict(d)
	case *RuntimeCallable:
		return cc.withBoundDict(d)
	case *ApplicationCallable:
		return cc.withBoundDict(d)
	}
	return c
}

func boundDictOf(c Callable) *DictValue {
	switch cc := c.(type) {
	case *ScriptCallable:
		return cc.BoundDict
	case *RuntimeCallable:
		return cc.BoundDict
	case *ApplicationCallable:
		return cc.BoundDict
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := lo.Keys(m)
	sort.Strings(keys)
	return keys
}

// EmptyString is the canonical "no value" result.
func EmptyString() *StringValue {
	return &StringValue{}
}

// IsEmpty reports whether a value is its type's empty form. Callables
// are never empty.
func IsEmpty(v Value) bool {
	switch x := v.(type) {
	case *StringValue:
		return x.Value == ""
	case *NumberValue:
		return x.Value == 0
	case *BoolValue:
		return !x.Value
	case *TupleValue:
		return len(x.Elements) == 0
	case *ArgsValue:
		return x.Len() == 0
	case *DictValue:
		return len(x.Entries) == 0
	case *VectorValue:
		return len(x.Elements) == 0
	}
	return false
}

// IsTruthy is the negation of IsEmpty.
func IsTruthy(v Value) bool {
	return !IsEmpty(v)
}

// Format renders a value for user-facing coercion: bare strings, and
// Inspect for everything else. Dict dispatch keys and interpolation use
// this rendering.
func Format(v Value) string {
	if s, ok := v.(*StringValue); ok {
		return s.Value
	}
	return v.Inspect()
}

// InferType returns the observable type name of a value.
func InferType(v Value) string {
	return v.Type()
}
