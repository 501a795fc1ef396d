package interp

import (
	"errors"

	"github.com/rcrsr/rill/internal/ast"
	rillerr "github.com/rcrsr/rill/internal/errors"
	"github.com/rcrsr/rill/pkg/token"
)

// isIterator reports whether a value follows the iterator protocol: a
// dict with a bool "done" and a callable "next".
func isIterator(v Value) (*DictValue, bool) {
	d, ok := v.(*DictValue)
	if !ok {
		return nil, false
	}
	done, ok := d.Entries["done"]
	if !ok {
		return nil, false
	}
	if _, ok := done.(*BoolValue); !ok {
		return nil, false
	}
	next, ok := d.Entries["next"]
	if !ok {
		return nil, false
	}
	_, ok = next.(Callable)
	return d, ok
}

// collectionElements expands the pipe value into the element sequence
// the collection operators iterate: tuples and args by position,
// strings by character, dicts as [key, value] pairs in ascending key
// order, vectors by component, and iterator dicts by driving the
// protocol.
func (i *Interpreter) collectionElements(v Value, pos token.Position, ctx *Context) ([]Value, error) {
	if it, ok := isIterator(v); ok {
		return i.driveIterator(it, pos, ctx)
	}

	switch x := v.(type) {
	case *TupleValue:
		return x.Elements, nil
	case *ArgsValue:
		if len(x.Named) > 0 {
			var out []Value
			for _, k := range sortedKeys(x.Named) {
				out = append(out, &TupleValue{Elements: []Value{&StringValue{Value: k}, x.Named[k]}})
			}
			return out, nil
		}
		return x.Positional, nil
	case *StringValue:
		var out []Value
		for _, r := range x.Value {
			out = append(out, &StringValue{Value: string(r)})
		}
		return out, nil
	case *DictValue:
		var out []Value
		for _, k := range x.Keys() {
			out = append(out, &TupleValue{Elements: []Value{&StringValue{Value: k}, x.Entries[k]}})
		}
		return out, nil
	case *VectorValue:
		var out []Value
		for _, n := range x.Elements {
			out = append(out, &NumberValue{Value: n})
		}
		return out, nil
	}
	return nil, rillerr.NewRuntimeError(rillerr.RunTypeMismatch, pos,
		"cannot iterate %s", InferType(v))
}

// driveIterator calls next() until done, collecting each state's value.
func (i *Interpreter) driveIterator(it *DictValue, pos token.Position, ctx *Context) ([]Value, error) {
	limit := i.iterationLimit(ctx)
	var out []Value
	iterations := 0
	current := it
	for {
		done := current.Entries["done"].(*BoolValue)
		if done.Value {
			return out, nil
		}
		if v, ok := current.Entries["value"]; ok {
			out = append(out, v)
		}

		iterations++
		if iterations > limit {
			return nil, rillerr.NewRuntimeError(rillerr.RunIterationLimit, pos,
				"iterator exceeded its iteration limit").
				WithContext("limit", limit).
				WithContext("iterations", iterations)
		}

		next := current.Entries["next"].(Callable)
		nv, err := i.invokeCallable(next, nil, pos, ctx)
		if err != nil {
			return nil, err
		}
		nd, ok := isIterator(nv)
		if !ok {
			return nil, rillerr.NewRuntimeError(rillerr.RunTypeMismatch, pos,
				"iterator next() must return an iterator, got %s", InferType(nv))
		}
		current = nd
	}
}

// runOperatorBody applies a collection-operator body to one element.
// Block bodies see the element as $ (and the accumulator as $@);
// closure bodies receive the element (and the accumulator when they
// take a second parameter).
func (i *Interpreter) runOperatorBody(body ast.Expression, elem Value, acc Value, hasAcc bool, ctx *Context) (Value, error) {
	switch b := body.(type) {
	case *ast.BlockExpr:
		scope := ctx.NewChild()
		scope.pipeValue = elem
		if hasAcc {
			scope.Define("@", acc)
		}
		return i.evalBody(b.Body, scope)
	case *ast.ClosureLit:
		callee := i.evalClosureLit(b, ctx)
		args := []Value{elem}
		if hasAcc && len(callee.Params) >= 2 {
			args = append(args, acc)
		}
		return i.invokeScript(callee, args, b.Span().Start, ctx)
	}
	return nil, rillerr.NewRuntimeError(rillerr.RunNotCallable, body.Span().Start,
		"collection operator body must be a block or closure")
}

// evalEach runs the body per element in order. Without an accumulator
// the results collect into a tuple; with one, the body's value threads
// through $@ and the final accumulator is the result. A break inside
// the body stops the iteration with the signal's value.
func (i *Interpreter) evalEach(e *ast.EachExpr, ctx *Context) (Value, error) {
	elems, err := i.collectionElements(ctx.pipeValue, e.Span().Start, ctx)
	if err != nil {
		return nil, err
	}

	if e.Init != nil {
		acc, err := i.evalExpression(e.Init, ctx)
		if err != nil {
			return nil, err
		}
		for _, elem := range elems {
			if err := ctx.checkCancelled(e.Span().Start); err != nil {
				return nil, err
			}
			v, err := i.runOperatorBody(e.Body, elem, acc, true, ctx)
			if err != nil {
				var brk *BreakSignal
				if errors.As(err, &brk) {
					return brk.Value, nil
				}
				return nil, err
			}
			acc = v
		}
		return acc, nil
	}

	var results []Value
	for _, elem := range elems {
		if err := ctx.checkCancelled(e.Span().Start); err != nil {
			return nil, err
		}
		v, err := i.runOperatorBody(e.Body, elem, nil, false, ctx)
		if err != nil {
			var brk *BreakSignal
			if errors.As(err, &brk) {
				return brk.Value, nil
			}
			return nil, err
		}
		results = append(results, v)
	}
	return &TupleValue{Elements: results}, nil
}

// evalMap runs the body per element with parallel semantics: results
// keep element order and a break is not caught (the static checker
// rejects it; under bare evaluation the signal escapes).
func (i *Interpreter) evalMap(e *ast.MapExpr, ctx *Context) (Value, error) {
	elems, err := i.collectionElements(ctx.pipeValue, e.Span().Start, ctx)
	if err != nil {
		return nil, err
	}
	results := make([]Value, 0, len(elems))
	for _, elem := range elems {
		if err := ctx.checkCancelled(e.Span().Start); err != nil {
			return nil, err
		}
		v, err := i.runOperatorBody(e.Body, elem, nil, false, ctx)
		if err != nil {
			return nil, err
		}
		results = append(results, v)
	}
	return &TupleValue{Elements: results}, nil
}

// evalFilter retains elements whose body is truthy; like map, break is
// not caught.
func (i *Interpreter) evalFilter(e *ast.FilterExpr, ctx *Context) (Value, error) {
	elems, err := i.collectionElements(ctx.pipeValue, e.Span().Start, ctx)
	if err != nil {
		return nil, err
	}
	var kept []Value
	for _, elem := range elems {
		if err := ctx.checkCancelled(e.Span().Start); err != nil {
			return nil, err
		}
		v, err := i.runOperatorBody(e.Body, elem, nil, false, ctx)
		if err != nil {
			return nil, err
		}
		if IsTruthy(v) {
			kept = append(kept, elem)
		}
	}
	return &TupleValue{Elements: kept}, nil
}

// evalFold threads an accumulator through the body; the value is the
// final accumulator. Without an init the accumulator starts empty.
func (i *Interpreter) evalFold(e *ast.FoldExpr, ctx *Context) (Value, error) {
	var acc Value = EmptyString()
	if e.Init != nil {
		v, err := i.evalExpression(e.Init, ctx)
		if err != nil {
			return nil, err
		}
		acc = v
	}

	elems, err := i.collectionElements(ctx.pipeValue, e.Span().Start, ctx)
	if err != nil {
		return nil, err
	}
	for _, elem := range elems {
		if err := ctx.checkCancelled(e.Span().Start); err != nil {
			return nil, err
		}
		v, err := i.runOperatorBody(e.Body, elem, acc, true, ctx)
		if err != nil {
			var brk *BreakSignal
			if errors.As(err, &brk) {
				return brk.Value, nil
			}
			return nil, err
		}
		acc = v
	}
	return acc, nil
}

// evalDestructure unpacks the pipe value into variables and passes the
// value through unchanged.
func (i *Interpreter) evalDestructure(e *ast.DestructureExpr, ctx *Context) (Value, error) {
	if err := i.bindDestructure(e, ctx.pipeValue, ctx); err != nil {
		return nil, err
	}
	return ctx.pipeValue, nil
}

func (i *Interpreter) bindDestructure(pat *ast.DestructureExpr, v Value, ctx *Context) error {
	// Named binds read dict keys; everything else is positional.
	named := false
	for _, el := range pat.Elements {
		if el.Kind == ast.DestructureNamed {
			named = true
			break
		}
	}

	if named {
		d, ok := v.(*DictValue)
		if !ok {
			return rillerr.NewRuntimeError(rillerr.RunTypeMismatch, pat.Span().Start,
				"named destructure requires a dict, got %s", InferType(v))
		}
		taken := make(map[string]bool)
		var rest *ast.DestructureElement
		for idx := range pat.Elements {
			el := &pat.Elements[idx]
			switch el.Kind {
			case ast.DestructureNamed:
				dv, ok := d.Entries[el.Key]
				if !ok {
					return rillerr.NewRuntimeError(rillerr.RunMissingField, el.Sp.Start,
						"missing field %q", el.Key)
				}
				taken[el.Key] = true
				if err := ctx.Capture(el.Name, dv, el.Sp.Start); err != nil {
					return err
				}
			case ast.DestructureRest:
				rest = el
			case ast.DestructureIgnore:
				// nothing bound
			default:
				return rillerr.NewRuntimeError(rillerr.RunTypeMismatch, el.Sp.Start,
					"cannot mix positional and named destructure elements")
			}
		}
		if rest != nil {
			remainder := NewDict()
			for k, dv := range d.Entries {
				if !taken[k] {
					remainder.Entries[k] = dv
				}
			}
			return ctx.Capture(rest.Name, remainder, rest.Sp.Start)
		}
		return nil
	}

	elems, err := i.collectionElements(v, pat.Span().Start, ctx)
	if err != nil {
		return err
	}
	pos := 0
	for idx := range pat.Elements {
		el := &pat.Elements[idx]
		if el.Kind == ast.DestructureRest {
			restLen := len(elems) - (len(pat.Elements) - idx - 1)
			if restLen < pos {
				restLen = pos
			}
			if err := ctx.Capture(el.Name, &TupleValue{Elements: append([]Value{}, elems[pos:restLen]...)}, el.Sp.Start); err != nil {
				return err
			}
			pos = restLen
			continue
		}
		if pos >= len(elems) {
			return rillerr.NewRuntimeError(rillerr.RunMissingField, el.Sp.Start,
				"not enough elements to destructure: need %d, have %d", len(pat.Elements), len(elems))
		}
		switch el.Kind {
		case ast.DestructurePositional:
			if err := ctx.Capture(el.Name, elems[pos], el.Sp.Start); err != nil {
				return err
			}
		case ast.DestructureIgnore:
			// skipped
		case ast.DestructureNested:
			if err := i.bindDestructure(el.Nested, elems[pos], ctx); err != nil {
				return err
			}
		}
		pos++
	}
	return nil
}
