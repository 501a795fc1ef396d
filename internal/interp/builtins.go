package interp

import (
	"math"
	"strings"

	rillerr "github.com/rcrsr/rill/internal/errors"
	"github.com/rcrsr/rill/pkg/token"
)

// registerBuiltins installs the fixed set of functions that is always
// present. Hosts may shadow any of them by registering the same name.
func registerBuiltins(root *rootState) {
	builtin := func(name string, fn RuntimeFunc) {
		root.functions[name] = &RuntimeCallable{Name: name, Fn: fn}
	}

	builtin("identity", builtinIdentity)
	builtin("type", builtinType)
	builtin("log", builtinLog)
	builtin("json", builtinJSON)
	builtin("parse_json", builtinParseJSON)
	builtin("parse_auto", builtinParseAuto)
	builtin("parse_xml", builtinParseXML)
	builtin("parse_fence", builtinParseFence)
	builtin("parse_fences", builtinParseFences)
	builtin("parse_frontmatter", builtinParseFrontmatter)
	builtin("parse_checklist", builtinParseChecklist)
	builtin("enumerate", builtinEnumerate)
	builtin("range", builtinRange)
	builtin("repeat", builtinRepeat)
	builtin("assert", builtinAssert)
	builtin("error", builtinError)
}

func builtinIdentity(_ *Interpreter, _ *Context, args []Value, pos token.Position) (Value, error) {
	if len(args) != 1 {
		return nil, arityError("identity", 1, len(args), pos)
	}
	return args[0], nil
}

func builtinType(_ *Interpreter, _ *Context, args []Value, pos token.Position) (Value, error) {
	if len(args) != 1 {
		return nil, arityError("type", 1, len(args), pos)
	}
	return &StringValue{Value: InferType(args[0])}, nil
}

// builtinLog fires the host's OnLog callback and passes the value
// through unchanged.
func builtinLog(_ *Interpreter, ctx *Context, args []Value, pos token.Position) (Value, error) {
	if len(args) != 1 {
		return nil, arityError("log", 1, len(args), pos)
	}
	if fire := ctx.root.callbacks.OnLog; fire != nil {
		fire(args[0])
	}
	return args[0], nil
}

func builtinEnumerate(i *Interpreter, ctx *Context, args []Value, pos token.Position) (Value, error) {
	if len(args) != 1 {
		return nil, arityError("enumerate", 1, len(args), pos)
	}
	elems, err := i.collectionElements(args[0], pos, ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Value, len(elems))
	for idx, e := range elems {
		out[idx] = &TupleValue{Elements: []Value{&NumberValue{Value: float64(idx)}, e}}
	}
	return &TupleValue{Elements: out}, nil
}

// builtinRange returns an iterator over [start, end) with the given
// step.
func builtinRange(_ *Interpreter, _ *Context, args []Value, pos token.Position) (Value, error) {
	if len(args) < 2 || len(args) > 3 {
		return nil, rillerr.NewRuntimeError(rillerr.RunTypeMismatch, pos,
			"range expects 2 or 3 arguments, got %d", len(args))
	}
	nums := make([]float64, len(args))
	for idx, a := range args {
		n, ok := a.(*NumberValue)
		if !ok {
			return nil, rillerr.NewRuntimeError(rillerr.RunTypeMismatch, pos,
				"range expects numbers, got %s", InferType(a))
		}
		nums[idx] = n.Value
	}
	step := 1.0
	if len(nums) == 3 {
		step = nums[2]
	}
	if step == 0 {
		return nil, rillerr.NewRuntimeError(rillerr.RunTypeMismatch, pos, "range step must not be zero")
	}
	return rangeIterator(nums[0], nums[1], step), nil
}

func rangeIterator(current, end, step float64) *DictValue {
	done := (step > 0 && current >= end) || (step < 0 && current <= end)
	d := NewDict()
	d.Entries["done"] = &BoolValue{Value: done}
	if !done {
		d.Entries["value"] = &NumberValue{Value: current}
	}
	d.Entries["next"] = &RuntimeCallable{
		Name: "range.next",
		Fn: func(_ *Interpreter, _ *Context, _ []Value, _ token.Position) (Value, error) {
			return rangeIterator(current+step, end, step), nil
		},
	}
	return d
}

// builtinRepeat returns an iterator yielding value count times.
func builtinRepeat(_ *Interpreter, _ *Context, args []Value, pos token.Position) (Value, error) {
	if len(args) != 2 {
		return nil, arityError("repeat", 2, len(args), pos)
	}
	n, ok := args[1].(*NumberValue)
	if !ok {
		return nil, rillerr.NewRuntimeError(rillerr.RunTypeMismatch, pos,
			"repeat count must be a number, got %s", InferType(args[1]))
	}
	return repeatIterator(args[0], int(math.Floor(n.Value))), nil
}

func repeatIterator(value Value, remaining int) *DictValue {
	d := NewDict()
	d.Entries["done"] = &BoolValue{Value: remaining <= 0}
	if remaining > 0 {
		d.Entries["value"] = value
	}
	d.Entries["next"] = &RuntimeCallable{
		Name: "repeat.next",
		Fn: func(_ *Interpreter, _ *Context, _ []Value, _ token.Position) (Value, error) {
			return repeatIterator(value, remaining-1), nil
		},
	}
	return d
}

// builtinAssert halts execution when its argument is falsy.
func builtinAssert(_ *Interpreter, _ *Context, args []Value, pos token.Position) (Value, error) {
	if len(args) < 1 || len(args) > 2 {
		return nil, rillerr.NewRuntimeError(rillerr.RunTypeMismatch, pos,
			"assert expects 1 or 2 arguments, got %d", len(args))
	}
	if IsTruthy(args[0]) {
		return args[0], nil
	}
	msg := "assertion failed"
	if len(args) == 2 {
		msg = Format(args[1])
	}
	return nil, rillerr.NewRuntimeError(rillerr.RunHostFailure, pos, "%s", msg)
}

// builtinError halts execution with the given message.
func builtinError(_ *Interpreter, _ *Context, args []Value, pos token.Position) (Value, error) {
	msg := "error"
	if len(args) > 0 {
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = Format(a)
		}
		msg = strings.Join(parts, " ")
	}
	return nil, rillerr.NewRuntimeError(rillerr.RunHostFailure, pos, "%s", msg)
}
