package interp

import (
	"math"
	"strings"

	"github.com/dlclark/regexp2"
	"github.com/spf13/cast"

	rillerr "github.com/rcrsr/rill/internal/errors"
	"github.com/rcrsr/rill/pkg/token"
)

// registerBuiltinMethods installs the fixed method set: conversion,
// access, string operations, comparison, and the reserved dict methods.
func registerBuiltinMethods(root *rootState) {
	method := func(name string, fn func(i *Interpreter, ctx *Context, recv Value, args []Value, pos token.Position) (Value, error)) {
		root.methods[name] = &Method{Name: name, Fn: fn}
	}

	// Conversion
	method("str", methodStr)
	method("num", methodNum)
	method("len", methodLen)
	method("trim", methodTrim)

	// Access
	method("head", methodHead)
	method("tail", methodTail)
	method("at", methodAt)
	method("first", methodFirst)

	// String operations
	method("split", methodSplit)
	method("join", methodJoin)
	method("lines", methodLines)
	method("starts_with", methodStartsWith)
	method("ends_with", methodEndsWith)
	method("lower", methodLower)
	method("upper", methodUpper)
	method("replace", methodReplace)
	method("replace_all", methodReplaceAll)
	method("contains", methodContains)
	method("match", methodMatch)
	method("is_match", methodIsMatch)
	method("index_of", methodIndexOf)
	method("repeat", methodRepeatStr)
	method("pad_start", methodPadStart)
	method("pad_end", methodPadEnd)

	// Utility
	method("empty", methodEmpty)

	// Comparison
	method("eq", comparisonMethod("eq"))
	method("ne", comparisonMethod("ne"))
	method("lt", comparisonMethod("lt"))
	method("gt", comparisonMethod("gt"))
	method("le", comparisonMethod("le"))
	method("ge", comparisonMethod("ge"))

	// Reserved dict methods
	method("keys", methodKeys)
	method("values", methodValues)
	method("entries", methodEntries)
}

func wantString(name string, recv Value, pos token.Position) (*StringValue, error) {
	s, ok := recv.(*StringValue)
	if !ok {
		return nil, methodTargetError(name, recv, pos)
	}
	return s, nil
}

func wantStringArg(name string, args []Value, idx int, pos token.Position) (string, error) {
	if idx >= len(args) {
		return "", arityError(name, idx+1, len(args), pos)
	}
	s, ok := args[idx].(*StringValue)
	if !ok {
		return "", rillerr.NewRuntimeError(rillerr.RunTypeMismatch, pos,
			"%s expects a string argument, got %s", name, InferType(args[idx]))
	}
	return s.Value, nil
}

func methodStr(_ *Interpreter, _ *Context, recv Value, args []Value, pos token.Position) (Value, error) {
	if len(args) != 0 {
		return nil, arityError("str", 0, len(args), pos)
	}
	return &StringValue{Value: Format(recv)}, nil
}

func methodNum(_ *Interpreter, _ *Context, recv Value, args []Value, pos token.Position) (Value, error) {
	if len(args) != 0 {
		return nil, arityError("num", 0, len(args), pos)
	}
	switch x := recv.(type) {
	case *NumberValue:
		return x, nil
	case *BoolValue:
		if x.Value {
			return &NumberValue{Value: 1}, nil
		}
		return &NumberValue{}, nil
	case *StringValue:
		n, err := cast.ToFloat64E(strings.TrimSpace(x.Value))
		if err != nil {
			return nil, rillerr.NewRuntimeError(rillerr.RunTypeMismatch, pos,
				"cannot convert %q to a number", x.Value)
		}
		return &NumberValue{Value: n}, nil
	}
	return nil, methodTargetError("num", recv, pos)
}

func methodLen(_ *Interpreter, _ *Context, recv Value, args []Value, pos token.Position) (Value, error) {
	if len(args) != 0 {
		return nil, arityError("len", 0, len(args), pos)
	}
	switch x := recv.(type) {
	case *StringValue:
		return &NumberValue{Value: float64(len([]rune(x.Value)))}, nil
	case *TupleValue:
		return &NumberValue{Value: float64(len(x.Elements))}, nil
	case *ArgsValue:
		return &NumberValue{Value: float64(x.Len())}, nil
	case *DictValue:
		return &NumberValue{Value: float64(len(x.Entries))}, nil
	case *VectorValue:
		return &NumberValue{Value: float64(len(x.Elements))}, nil
	}
	return nil, methodTargetError("len", recv, pos)
}

func methodTrim(_ *Interpreter, _ *Context, recv Value, args []Value, pos token.Position) (Value, error) {
	s, err := wantString("trim", recv, pos)
	if err != nil {
		return nil, err
	}
	if len(args) != 0 {
		return nil, arityError("trim", 0, len(args), pos)
	}
	return &StringValue{Value: strings.TrimSpace(s.Value)}, nil
}

func methodHead(i *Interpreter, ctx *Context, recv Value, args []Value, pos token.Position) (Value, error) {
	if len(args) != 0 {
		return nil, arityError("head", 0, len(args), pos)
	}
	elems, err := i.collectionElements(recv, pos, ctx)
	if err != nil {
		return nil, methodTargetError("head", recv, pos)
	}
	if len(elems) == 0 {
		return EmptyString(), nil
	}
	return elems[0], nil
}

func methodTail(i *Interpreter, ctx *Context, recv Value, args []Value, pos token.Position) (Value, error) {
	if len(args) != 0 {
		return nil, arityError("tail", 0, len(args), pos)
	}
	if s, ok := recv.(*StringValue); ok {
		runes := []rune(s.Value)
		if len(runes) == 0 {
			return EmptyString(), nil
		}
		return &StringValue{Value: string(runes[1:])}, nil
	}
	elems, err := i.collectionElements(recv, pos, ctx)
	if err != nil {
		return nil, methodTargetError("tail", recv, pos)
	}
	if len(elems) == 0 {
		return &TupleValue{}, nil
	}
	return &TupleValue{Elements: elems[1:]}, nil
}

func methodAt(i *Interpreter, _ *Context, recv Value, args []Value, pos token.Position) (Value, error) {
	if len(args) != 1 {
		return nil, arityError("at", 1, len(args), pos)
	}
	return i.bracketAccess(recv, args[0], pos)
}

// methodFirst returns an iterator positioned at element zero of its
// receiver.
func methodFirst(i *Interpreter, ctx *Context, recv Value, args []Value, pos token.Position) (Value, error) {
	if len(args) != 0 {
		return nil, arityError("first", 0, len(args), pos)
	}
	elems, err := i.collectionElements(recv, pos, ctx)
	if err != nil {
		return nil, methodTargetError("first", recv, pos)
	}
	return elementsIterator(elems, 0), nil
}

func elementsIterator(elems []Value, index int) *DictValue {
	d := NewDict()
	d.Entries["done"] = &BoolValue{Value: index >= len(elems)}
	if index < len(elems) {
		d.Entries["value"] = elems[index]
	}
	d.Entries["next"] = &RuntimeCallable{
		Name: "first.next",
		Fn: func(_ *Interpreter, _ *Context, _ []Value, _ token.Position) (Value, error) {
			return elementsIterator(elems, index+1), nil
		},
	}
	return d
}

func methodSplit(_ *Interpreter, _ *Context, recv Value, args []Value, pos token.Position) (Value, error) {
	s, err := wantString("split", recv, pos)
	if err != nil {
		return nil, err
	}
	sep, err := wantStringArg("split", args, 0, pos)
	if err != nil {
		return nil, err
	}
	parts := strings.Split(s.Value, sep)
	elems := make([]Value, len(parts))
	for i, p := range parts {
		elems[i] = &StringValue{Value: p}
	}
	return &TupleValue{Elements: elems}, nil
}

func methodJoin(i *Interpreter, ctx *Context, recv Value, args []Value, pos token.Position) (Value, error) {
	sep := ""
	if len(args) > 1 {
		return nil, arityError("join", 1, len(args), pos)
	}
	if len(args) == 1 {
		v, err := wantStringArg("join", args, 0, pos)
		if err != nil {
			return nil, err
		}
		sep = v
	}
	elems, err := i.collectionElements(recv, pos, ctx)
	if err != nil {
		return nil, methodTargetError("join", recv, pos)
	}
	parts := make([]string, len(elems))
	for idx, e := range elems {
		parts[idx] = Format(e)
	}
	return &StringValue{Value: strings.Join(parts, sep)}, nil
}

func methodLines(_ *Interpreter, _ *Context, recv Value, args []Value, pos token.Position) (Value, error) {
	s, err := wantString("lines", recv, pos)
	if err != nil {
		return nil, err
	}
	if len(args) != 0 {
		return nil, arityError("lines", 0, len(args), pos)
	}
	normalized := strings.ReplaceAll(s.Value, "\r\n", "\n")
	parts := strings.Split(normalized, "\n")
	elems := make([]Value, len(parts))
	for i, p := range parts {
		elems[i] = &StringValue{Value: p}
	}
	return &TupleValue{Elements: elems}, nil
}

func methodStartsWith(_ *Interpreter, _ *Context, recv Value, args []Value, pos token.Position) (Value, error) {
	s, err := wantString("starts_with", recv, pos)
	if err != nil {
		return nil, err
	}
	prefix, err := wantStringArg("starts_with", args, 0, pos)
	if err != nil {
		return nil, err
	}
	return &BoolValue{Value: strings.HasPrefix(s.Value, prefix)}, nil
}

func methodEndsWith(_ *Interpreter, _ *Context, recv Value, args []Value, pos token.Position) (Value, error) {
	s, err := wantString("ends_with", recv, pos)
	if err != nil {
		return nil, err
	}
	suffix, err := wantStringArg("ends_with", args, 0, pos)
	if err != nil {
		return nil, err
	}
	return &BoolValue{Value: strings.HasSuffix(s.Value, suffix)}, nil
}

func methodLower(_ *Interpreter, _ *Context, recv Value, args []Value, pos token.Position) (Value, error) {
	s, err := wantString("lower", recv, pos)
	if err != nil {
		return nil, err
	}
	if len(args) != 0 {
		return nil, arityError("lower", 0, len(args), pos)
	}
	return &StringValue{Value: strings.ToLower(s.Value)}, nil
}

func methodUpper(_ *Interpreter, _ *Context, recv Value, args []Value, pos token.Position) (Value, error) {
	s, err := wantString("upper", recv, pos)
	if err != nil {
		return nil, err
	}
	if len(args) != 0 {
		return nil, arityError("upper", 0, len(args), pos)
	}
	return &StringValue{Value: strings.ToUpper(s.Value)}, nil
}

// compilePattern builds a PCRE-like regex for the match and replace
// methods.
func compilePattern(pattern string, pos token.Position) (*regexp2.Regexp, error) {
	re, err := regexp2.Compile(pattern, 0)
	if err != nil {
		return nil, rillerr.NewRuntimeError(rillerr.RunTypeMismatch, pos,
			"invalid pattern %q: %v", pattern, err)
	}
	return re, nil
}

func methodReplace(_ *Interpreter, _ *Context, recv Value, args []Value, pos token.Position) (Value, error) {
	s, err := wantString("replace", recv, pos)
	if err != nil {
		return nil, err
	}
	pattern, err := wantStringArg("replace", args, 0, pos)
	if err != nil {
		return nil, err
	}
	repl, err := wantStringArg("replace", args, 1, pos)
	if err != nil {
		return nil, err
	}
	re, err := compilePattern(pattern, pos)
	if err != nil {
		return nil, err
	}
	out, rerr := re.Replace(s.Value, repl, -1, 1)
	if rerr != nil {
		return nil, rillerr.NewRuntimeError(rillerr.RunHostFailure, pos, "replace failed: %v", rerr)
	}
	return &StringValue{Value: out}, nil
}

func methodReplaceAll(_ *Interpreter, _ *Context, recv Value, args []Value, pos token.Position) (Value, error) {
	s, err := wantString("replace_all", recv, pos)
	if err != nil {
		return nil, err
	}
	pattern, err := wantStringArg("replace_all", args, 0, pos)
	if err != nil {
		return nil, err
	}
	repl, err := wantStringArg("replace_all", args, 1, pos)
	if err != nil {
		return nil, err
	}
	re, err := compilePattern(pattern, pos)
	if err != nil {
		return nil, err
	}
	out, rerr := re.Replace(s.Value, repl, -1, -1)
	if rerr != nil {
		return nil, rillerr.NewRuntimeError(rillerr.RunHostFailure, pos, "replace_all failed: %v", rerr)
	}
	return &StringValue{Value: out}, nil
}

func methodContains(i *Interpreter, ctx *Context, recv Value, args []Value, pos token.Position) (Value, error) {
	if len(args) != 1 {
		return nil, arityError("contains", 1, len(args), pos)
	}
	switch x := recv.(type) {
	case *StringValue:
		needle, err := wantStringArg("contains", args, 0, pos)
		if err != nil {
			return nil, err
		}
		return &BoolValue{Value: strings.Contains(x.Value, needle)}, nil
	case *DictValue:
		_, ok := x.Entries[Format(args[0])]
		return &BoolValue{Value: ok}, nil
	case *TupleValue, *ArgsValue:
		elems, _ := i.collectionElements(recv, pos, ctx)
		for _, e := range elems {
			if DeepEqual(e, args[0]) {
				return &BoolValue{Value: true}, nil
			}
		}
		return &BoolValue{Value: false}, nil
	}
	return nil, methodTargetError("contains", recv, pos)
}

// methodMatch returns the first match as a tuple: the full match
// followed by its capturing groups; no match yields an empty tuple.
func methodMatch(_ *Interpreter, _ *Context, recv Value, args []Value, pos token.Position) (Value, error) {
	s, err := wantString("match", recv, pos)
	if err != nil {
		return nil, err
	}
	pattern, err := wantStringArg("match", args, 0, pos)
	if err != nil {
		return nil, err
	}
	re, err := compilePattern(pattern, pos)
	if err != nil {
		return nil, err
	}
	m, merr := re.FindStringMatch(s.Value)
	if merr != nil {
		return nil, rillerr.NewRuntimeError(rillerr.RunHostFailure, pos, "match failed: %v", merr)
	}
	if m == nil {
		return &TupleValue{}, nil
	}
	groups := m.Groups()
	elems := make([]Value, len(groups))
	for i, g := range groups {
		elems[i] = &StringValue{Value: g.String()}
	}
	return &TupleValue{Elements: elems}, nil
}

func methodIsMatch(_ *Interpreter, _ *Context, recv Value, args []Value, pos token.Position) (Value, error) {
	s, err := wantString("is_match", recv, pos)
	if err != nil {
		return nil, err
	}
	pattern, err := wantStringArg("is_match", args, 0, pos)
	if err != nil {
		return nil, err
	}
	re, err := compilePattern(pattern, pos)
	if err != nil {
		return nil, err
	}
	ok, merr := re.MatchString(s.Value)
	if merr != nil {
		return nil, rillerr.NewRuntimeError(rillerr.RunHostFailure, pos, "is_match failed: %v", merr)
	}
	return &BoolValue{Value: ok}, nil
}

func methodIndexOf(i *Interpreter, ctx *Context, recv Value, args []Value, pos token.Position) (Value, error) {
	if len(args) != 1 {
		return nil, arityError("index_of", 1, len(args), pos)
	}
	switch x := recv.(type) {
	case *StringValue:
		needle, err := wantStringArg("index_of", args, 0, pos)
		if err != nil {
			return nil, err
		}
		byteIdx := strings.Index(x.Value, needle)
		if byteIdx < 0 {
			return &NumberValue{Value: -1}, nil
		}
		return &NumberValue{Value: float64(len([]rune(x.Value[:byteIdx])))}, nil
	case *TupleValue, *ArgsValue:
		elems, _ := i.collectionElements(recv, pos, ctx)
		for idx, e := range elems {
			if DeepEqual(e, args[0]) {
				return &NumberValue{Value: float64(idx)}, nil
			}
		}
		return &NumberValue{Value: -1}, nil
	}
	return nil, methodTargetError("index_of", recv, pos)
}

func methodRepeatStr(_ *Interpreter, _ *Context, recv Value, args []Value, pos token.Position) (Value, error) {
	s, err := wantString("repeat", recv, pos)
	if err != nil {
		return nil, err
	}
	if len(args) != 1 {
		return nil, arityError("repeat", 1, len(args), pos)
	}
	n, ok := args[0].(*NumberValue)
	if !ok {
		return nil, rillerr.NewRuntimeError(rillerr.RunTypeMismatch, pos,
			"repeat expects a number, got %s", InferType(args[0]))
	}
	count := int(math.Floor(n.Value))
	if count < 0 {
		count = 0
	}
	return &StringValue{Value: strings.Repeat(s.Value, count)}, nil
}

func padArgs(name string, args []Value, pos token.Position) (int, string, error) {
	if len(args) < 1 || len(args) > 2 {
		return 0, "", rillerr.NewRuntimeError(rillerr.RunTypeMismatch, pos,
			"%s expects 1 or 2 arguments, got %d", name, len(args))
	}
	n, ok := args[0].(*NumberValue)
	if !ok {
		return 0, "", rillerr.NewRuntimeError(rillerr.RunTypeMismatch, pos,
			"%s expects a number, got %s", name, InferType(args[0]))
	}
	pad := " "
	if len(args) == 2 {
		s, ok := args[1].(*StringValue)
		if !ok || s.Value == "" {
			return 0, "", rillerr.NewRuntimeError(rillerr.RunTypeMismatch, pos,
				"%s pad must be a non-empty string", name)
		}
		pad = s.Value
	}
	return int(math.Floor(n.Value)), pad, nil
}

func padTo(s, pad string, width int) string {
	have := len([]rune(s))
	if have >= width {
		return ""
	}
	need := width - have
	padRunes := []rune(pad)
	out := make([]rune, 0, need)
	for len(out) < need {
		remaining := need - len(out)
		if remaining >= len(padRunes) {
			out = append(out, padRunes...)
		} else {
			out = append(out, padRunes[:remaining]...)
		}
	}
	return string(out)
}

func methodPadStart(_ *Interpreter, _ *Context, recv Value, args []Value, pos token.Position) (Value, error) {
	s, err := wantString("pad_start", recv, pos)
	if err != nil {
		return nil, err
	}
	width, pad, err := padArgs("pad_start", args, pos)
	if err != nil {
		return nil, err
	}
	return &StringValue{Value: padTo(s.Value, pad, width) + s.Value}, nil
}

func methodPadEnd(_ *Interpreter, _ *Context, recv Value, args []Value, pos token.Position) (Value, error) {
	s, err := wantString("pad_end", recv, pos)
	if err != nil {
		return nil, err
	}
	width, pad, err := padArgs("pad_end", args, pos)
	if err != nil {
		return nil, err
	}
	return &StringValue{Value: s.Value + padTo(s.Value, pad, width)}, nil
}

func methodEmpty(_ *Interpreter, _ *Context, recv Value, args []Value, pos token.Position) (Value, error) {
	if len(args) != 0 {
		return nil, arityError("empty", 0, len(args), pos)
	}
	return &BoolValue{Value: IsEmpty(recv)}, nil
}

// comparisonMethod builds eq/ne/lt/gt/le/ge. Equality uses deep
// equality; ordering requires two numbers or two strings.
func comparisonMethod(op string) func(i *Interpreter, ctx *Context, recv Value, args []Value, pos token.Position) (Value, error) {
	return func(_ *Interpreter, _ *Context, recv Value, args []Value, pos token.Position) (Value, error) {
		if len(args) != 1 {
			return nil, arityError(op, 1, len(args), pos)
		}
		other := args[0]
		switch op {
		case "eq":
			return &BoolValue{Value: DeepEqual(recv, other)}, nil
		case "ne":
			return &BoolValue{Value: !DeepEqual(recv, other)}, nil
		}

		var cmp int
		switch l := recv.(type) {
		case *NumberValue:
			r, ok := other.(*NumberValue)
			if !ok {
				return nil, rillerr.NewRuntimeError(rillerr.RunTypeMismatch, pos,
					"%s requires matching types, got %s and %s", op, InferType(recv), InferType(other))
			}
			switch {
			case l.Value < r.Value:
				cmp = -1
			case l.Value > r.Value:
				cmp = 1
			}
		case *StringValue:
			r, ok := other.(*StringValue)
			if !ok {
				return nil, rillerr.NewRuntimeError(rillerr.RunTypeMismatch, pos,
					"%s requires matching types, got %s and %s", op, InferType(recv), InferType(other))
			}
			cmp = strings.Compare(l.Value, r.Value)
		default:
			return nil, methodTargetError(op, recv, pos)
		}

		switch op {
		case "lt":
			return &BoolValue{Value: cmp < 0}, nil
		case "gt":
			return &BoolValue{Value: cmp > 0}, nil
		case "le":
			return &BoolValue{Value: cmp <= 0}, nil
		default: // ge
			return &BoolValue{Value: cmp >= 0}, nil
		}
	}
}

func methodKeys(_ *Interpreter, _ *Context, recv Value, args []Value, pos token.Position) (Value, error) {
	d, ok := recv.(*DictValue)
	if !ok {
		return nil, methodTargetError("keys", recv, pos)
	}
	if len(args) != 0 {
		return nil, arityError("keys", 0, len(args), pos)
	}
	keys := d.Keys()
	elems := make([]Value, len(keys))
	for i, k := range keys {
		elems[i] = &StringValue{Value: k}
	}
	return &TupleValue{Elements: elems}, nil
}

func methodValues(_ *Interpreter, _ *Context, recv Value, args []Value, pos token.Position) (Value, error) {
	d, ok := recv.(*DictValue)
	if !ok {
		return nil, methodTargetError("values", recv, pos)
	}
	if len(args) != 0 {
		return nil, arityError("values", 0, len(args), pos)
	}
	keys := d.Keys()
	elems := make([]Value, len(keys))
	for i, k := range keys {
		elems[i] = d.Entries[k]
	}
	return &TupleValue{Elements: elems}, nil
}

func methodEntries(_ *Interpreter, _ *Context, recv Value, args []Value, pos token.Position) (Value, error) {
	d, ok := recv.(*DictValue)
	if !ok {
		return nil, methodTargetError("entries", recv, pos)
	}
	if len(args) != 0 {
		return nil, arityError("entries", 0, len(args), pos)
	}
	keys := d.Keys()
	elems := make([]Value, len(keys))
	for i, k := range keys {
		elems[i] = &TupleValue{Elements: []Value{&StringValue{Value: k}, d.Entries[k]}}
	}
	return &TupleValue{Elements: elems}, nil
}
