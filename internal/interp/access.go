package interp

import (
	"math"

	"github.com/rcrsr/rill/internal/ast"
	rillerr "github.com/rcrsr/rill/internal/errors"
	"github.com/rcrsr/rill/pkg/token"
)

// evalVariable resolves a variable (or the pipe value) and applies its
// access chain. Name resolution walks the scope chain rooted at the
// defining scope of the innermost enclosing closure.
func (i *Interpreter) evalVariable(e *ast.Variable, ctx *Context) (Value, error) {
	var base Value
	switch {
	case e.IsPipe:
		base = ctx.pipeValue
		if base == nil {
			base = EmptyString()
		}
	case e.Name == "@":
		v, ok := ctx.Get("@")
		if !ok {
			return nil, rillerr.NewRuntimeError(rillerr.RunUndefinedVariable, e.Span().Start,
				"$@ is only available inside fold and each with an accumulator")
		}
		base = v
	default:
		v, ok := ctx.Get(e.Name)
		if !ok {
			return nil, rillerr.NewRuntimeError(rillerr.RunUndefinedVariable, e.Span().Start,
				"undefined variable $%s", e.Name)
		}
		base = v
	}

	return i.applyAccessChain(base, e.Access, ctx)
}

// applyAccessChain walks field, bracket and reflection accessors.
func (i *Interpreter) applyAccessChain(base Value, access []ast.Accessor, ctx *Context) (Value, error) {
	v := base
	for _, acc := range access {
		var err error
		v, err = i.applyAccessor(v, acc, ctx)
		if err != nil {
			return nil, err
		}
	}
	return v, nil
}

func (i *Interpreter) applyAccessor(recv Value, acc ast.Accessor, ctx *Context) (Value, error) {
	switch a := acc.(type) {
	case *ast.FieldAccess:
		return i.fieldAccess(recv, a.Name, a.Span().Start)

	case *ast.FieldVarAccess:
		kv, ok := ctx.Get(a.VarName)
		if !ok {
			return nil, rillerr.NewRuntimeError(rillerr.RunUndefinedVariable, a.Span().Start,
				"undefined variable $%s", a.VarName)
		}
		return i.fieldAccess(recv, Format(kv), a.Span().Start)

	case *ast.FieldComputedAccess:
		kv, err := i.evalExpression(a.Expr, ctx)
		if err != nil {
			return nil, err
		}
		return i.fieldAccess(recv, Format(kv), a.Span().Start)

	case *ast.ExistsAccess:
		d, ok := recv.(*DictValue)
		if !ok {
			return &BoolValue{Value: false}, nil
		}
		_, exists := d.Entries[a.Name]
		return &BoolValue{Value: exists}, nil

	case *ast.AnnotationAccess:
		sc, ok := recv.(*ScriptCallable)
		if !ok {
			return nil, rillerr.NewRuntimeError(rillerr.RunNotCallable, a.Span().Start,
				"annotation access requires a script callable, got %s", InferType(recv))
		}
		v, ok := sc.Annotations[a.Key]
		if !ok {
			return nil, rillerr.NewRuntimeError(rillerr.RunUndefinedAnnotation, a.Span().Start,
				"undefined annotation %q", a.Key)
		}
		return v, nil

	case *ast.BracketAccess:
		idx, err := i.evalExpression(a.Index, ctx)
		if err != nil {
			return nil, err
		}
		return i.bracketAccess(recv, idx, a.Span().Start)

	case *ast.BracketSlice:
		return i.sliceValue(recv, a.Start, a.Stop, a.Step, a.Span().Start, ctx)
	}

	return nil, rillerr.NewRuntimeError(rillerr.RunNotCallable, acc.Span().Start, "unsupported accessor")
}

// fieldAccess reads a dict entry, with ".params" reflection on script
// callables.
func (i *Interpreter) fieldAccess(recv Value, name string, pos token.Position) (Value, error) {
	if sc, ok := recv.(*ScriptCallable); ok {
		if name == "params" {
			return scriptParamsDict(sc), nil
		}
		return nil, rillerr.NewRuntimeError(rillerr.RunMissingField, pos,
			"closures have no field %q", name)
	}

	d, ok := recv.(*DictValue)
	if !ok {
		return nil, rillerr.NewRuntimeError(rillerr.RunNotCallable, pos,
			"cannot access field %q on %s", name, InferType(recv))
	}
	v, ok := d.Entries[name]
	if !ok {
		return nil, rillerr.NewRuntimeError(rillerr.RunMissingField, pos, "missing field %q", name)
	}
	return v, nil
}

// scriptParamsDict renders a callable's parameter list as a mapping of
// parameter name to {type?, __annotations?}.
func scriptParamsDict(sc *ScriptCallable) *DictValue {
	out := NewDict()
	for _, p := range sc.Params {
		info := NewDict()
		if p.TypeName != "" {
			info.Entries["type"] = &StringValue{Value: p.TypeName}
		}
		if anns, ok := sc.ParamAnns[p.Name]; ok {
			info.Entries["__annotations"] = anns
		}
		out.Entries[p.Name] = info
	}
	return out
}

// bracketAccess indexes tuples, args, dicts and strings. Negative
// indexes count from the end.
func (i *Interpreter) bracketAccess(recv Value, index Value, pos token.Position) (Value, error) {
	switch r := recv.(type) {
	case *TupleValue:
		idx, err := indexFor(index, len(r.Elements), pos)
		if err != nil {
			return nil, err
		}
		return r.Elements[idx], nil
	case *ArgsValue:
		if len(r.Named) > 0 {
			key := Format(index)
			v, ok := r.Named[key]
			if !ok {
				return nil, rillerr.NewRuntimeError(rillerr.RunMissingField, pos, "missing key %q", key)
			}
			return v, nil
		}
		idx, err := indexFor(index, len(r.Positional), pos)
		if err != nil {
			return nil, err
		}
		return r.Positional[idx], nil
	case *DictValue:
		key := Format(index)
		v, ok := r.Entries[key]
		if !ok {
			return nil, rillerr.NewRuntimeError(rillerr.RunMissingField, pos, "missing key %q", key)
		}
		return v, nil
	case *StringValue:
		runes := []rune(r.Value)
		idx, err := indexFor(index, len(runes), pos)
		if err != nil {
			return nil, err
		}
		return &StringValue{Value: string(runes[idx])}, nil
	case *VectorValue:
		idx, err := indexFor(index, len(r.Elements), pos)
		if err != nil {
			return nil, err
		}
		return &NumberValue{Value: r.Elements[idx]}, nil
	}
	return nil, rillerr.NewRuntimeError(rillerr.RunNotCallable, pos,
		"cannot index %s", InferType(recv))
}

func indexFor(index Value, length int, pos token.Position) (int, error) {
	n, ok := index.(*NumberValue)
	if !ok {
		return 0, rillerr.NewRuntimeError(rillerr.RunTypeMismatch, pos,
			"index must be a number, got %s", InferType(index))
	}
	idx := int(math.Trunc(n.Value))
	if idx < 0 {
		idx += length
	}
	if idx < 0 || idx >= length {
		return 0, rillerr.NewRuntimeError(rillerr.RunMissingField, pos,
			"index %s out of range (length %d)", FormatNumber(n.Value), length)
	}
	return idx, nil
}

// sliceValue applies [start:stop:step] to tuples, strings, args and
// vectors with Python-style bounds.
func (i *Interpreter) sliceValue(recv Value, startE, stopE, stepE ast.Expression, pos token.Position, ctx *Context) (Value, error) {
	bound := func(e ast.Expression, def int) (int, error) {
		if e == nil {
			return def, nil
		}
		v, err := i.evalExpression(e, ctx)
		if err != nil {
			return 0, err
		}
		n, ok := v.(*NumberValue)
		if !ok {
			return 0, rillerr.NewRuntimeError(rillerr.RunTypeMismatch, pos,
				"slice bound must be a number, got %s", InferType(v))
		}
		return int(math.Trunc(n.Value)), nil
	}

	slice := func(length int) ([]int, error) {
		step, err := bound(stepE, 1)
		if err != nil {
			return nil, err
		}
		if step == 0 {
			return nil, rillerr.NewRuntimeError(rillerr.RunTypeMismatch, pos, "slice step must not be zero")
		}
		defStart, defStop := 0, length
		if step < 0 {
			defStart, defStop = length-1, -1
		}
		start, err := bound(startE, defStart)
		if err != nil {
			return nil, err
		}
		stop, err := bound(stopE, defStop)
		if err != nil {
			return nil, err
		}
		clamp := func(v int, low, high int) int {
			if v < 0 {
				v += length
			}
			if v < low {
				return low
			}
			if v > high {
				return high
			}
			return v
		}
		var idxs []int
		if step > 0 {
			start = clamp(start, 0, length)
			if stopE != nil {
				stop = clamp(stop, 0, length)
			}
			for k := start; k < stop; k += step {
				idxs = append(idxs, k)
			}
		} else {
			start = clamp(start, -1, length-1)
			if stopE != nil {
				stop = clamp(stop, -1, length-1)
			}
			for k := start; k > stop; k += step {
				idxs = append(idxs, k)
			}
		}
		return idxs, nil
	}

	switch r := recv.(type) {
	case *TupleValue:
		idxs, err := slice(len(r.Elements))
		if err != nil {
			return nil, err
		}
		out := make([]Value, 0, len(idxs))
		for _, k := range idxs {
			out = append(out, r.Elements[k])
		}
		return &TupleValue{Elements: out}, nil
	case *StringValue:
		runes := []rune(r.Value)
		idxs, err := slice(len(runes))
		if err != nil {
			return nil, err
		}
		out := make([]rune, 0, len(idxs))
		for _, k := range idxs {
			out = append(out, runes[k])
		}
		return &StringValue{Value: string(out)}, nil
	case *ArgsValue:
		if len(r.Named) == 0 {
			idxs, err := slice(len(r.Positional))
			if err != nil {
				return nil, err
			}
			out := make([]Value, 0, len(idxs))
			for _, k := range idxs {
				out = append(out, r.Positional[k])
			}
			return &TupleValue{Elements: out}, nil
		}
	case *VectorValue:
		idxs, err := slice(len(r.Elements))
		if err != nil {
			return nil, err
		}
		out := make([]float64, 0, len(idxs))
		for _, k := range idxs {
			out = append(out, r.Elements[k])
		}
		return &VectorValue{Elements: out}, nil
	}
	return nil, rillerr.NewRuntimeError(rillerr.RunTypeMismatch, pos,
		"cannot slice %s", InferType(recv))
}
