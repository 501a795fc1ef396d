package interp

import (
	"strings"

	"github.com/rcrsr/rill/internal/ast"
	rillerr "github.com/rcrsr/rill/internal/errors"
)

// evalStringLit concatenates text chunks and formatted interpolation
// results.
func (i *Interpreter) evalStringLit(e *ast.StringLit, ctx *Context) (Value, error) {
	var sb strings.Builder
	for _, part := range e.Parts {
		if part.Expr == nil {
			sb.WriteString(part.Text)
			continue
		}
		v, err := i.evalExpression(part.Expr, ctx)
		if err != nil {
			return nil, err
		}
		sb.WriteString(Format(v))
	}
	return &StringValue{Value: sb.String(), Multiline: e.Multiline}, nil
}

// evalTupleLit builds an ordered sequence, expanding spreads. Brackets
// holding only dict spreads merge into a dict.
func (i *Interpreter) evalTupleLit(e *ast.TupleLit, ctx *Context) (Value, error) {
	allSpread := len(e.Elements) > 0
	for _, el := range e.Elements {
		if _, ok := el.(*ast.SpreadExpr); !ok {
			allSpread = false
			break
		}
	}
	if allSpread {
		if d, ok, err := i.trySpreadDictMerge(e, ctx); err != nil {
			return nil, err
		} else if ok {
			return d, nil
		}
	}

	var elems []Value
	for _, el := range e.Elements {
		if sp, ok := el.(*ast.SpreadExpr); ok {
			v, err := i.evalExpression(sp.Operand, ctx)
			if err != nil {
				return nil, err
			}
			expanded, err := spreadToValues(v, sp.Span().Start)
			if err != nil {
				return nil, err
			}
			elems = append(elems, expanded...)
			continue
		}
		v, err := i.evalExpression(el, ctx)
		if err != nil {
			return nil, err
		}
		elems = append(elems, v)
	}
	return &TupleValue{Elements: elems}, nil
}

// trySpreadDictMerge handles "[*$a, *$b]" where every operand is a
// dict: the result is a merged dict, later keys winning.
func (i *Interpreter) trySpreadDictMerge(e *ast.TupleLit, ctx *Context) (Value, bool, error) {
	values := make([]Value, 0, len(e.Elements))
	for _, el := range e.Elements {
		sp := el.(*ast.SpreadExpr)
		v, err := i.evalExpression(sp.Operand, ctx)
		if err != nil {
			return nil, false, err
		}
		values = append(values, v)
	}
	for _, v := range values {
		if _, ok := v.(*DictValue); !ok {
			// Not a dict merge; re-expand as a tuple.
			var elems []Value
			for idx, v := range values {
				expanded, err := spreadToValues(v, e.Elements[idx].Span().Start)
				if err != nil {
					return nil, false, err
				}
				elems = append(elems, expanded...)
			}
			return &TupleValue{Elements: elems}, true, nil
		}
	}
	merged := NewDict()
	for _, v := range values {
		for k, dv := range v.(*DictValue).Entries {
			merged.Entries[k] = dv
		}
	}
	i.bindDictCallables(merged)
	return merged, true, nil
}

// evalDictLit builds a mapping. Callable values are shallow-cloned with
// a back-reference to the containing dict, so methods stored in the
// dict can reach it as $.
func (i *Interpreter) evalDictLit(e *ast.DictLit, ctx *Context) (Value, error) {
	d := NewDict()
	for _, entry := range e.Entries {
		if entry.Spread != nil {
			v, err := i.evalExpression(entry.Spread, ctx)
			if err != nil {
				return nil, err
			}
			src, ok := v.(*DictValue)
			if !ok {
				return nil, rillerr.NewRuntimeError(rillerr.RunTypeMismatch, entry.Sp.Start,
					"dict spread requires a dict, got %s", InferType(v))
			}
			for k, dv := range src.Entries {
				d.Entries[k] = dv
			}
			continue
		}

		key := entry.Key
		if entry.KeyExpr != nil {
			kv, err := i.evalExpression(entry.KeyExpr, ctx)
			if err != nil {
				return nil, err
			}
			key = Format(kv)
		}
		v, err := i.evalExpression(entry.Value, ctx)
		if err != nil {
			return nil, err
		}
		d.Entries[key] = v
	}
	i.bindDictCallables(d)
	return d, nil
}

// bindDictCallables rebinds every callable entry to its containing
// dict.
func (i *Interpreter) bindDictCallables(d *DictValue) {
	for k, v := range d.Entries {
		if c, ok := v.(Callable); ok {
			d.Entries[k] = bindToDict(c, d)
		}
	}
}

// evalClosureLit produces a script callable. The defining scope is a
// snapshot of the current scope; closure-level annotations come from
// the active annotation frame; parameter annotations are evaluated now.
func (i *Interpreter) evalClosureLit(e *ast.ClosureLit, ctx *Context) *ScriptCallable {
	anns := make(map[string]Value)
	for k, v := range ctx.annotationTop() {
		anns[k] = v
	}

	paramAnns := make(map[string]*DictValue)
	for _, p := range e.Params {
		if len(p.Annotations) == 0 {
			continue
		}
		frame, err := i.evalAnnotationArgs(p.Annotations, ctx)
		if err != nil {
			continue
		}
		d := NewDict()
		for k, v := range frame {
			d.Entries[k] = v
		}
		paramAnns[p.Name] = d
	}

	return &ScriptCallable{
		Params:      e.Params,
		Body:        e.Body,
		Defining:    ctx.Snapshot(),
		Annotations: anns,
		ParamAnns:   paramAnns,
	}
}

// evalDictDispatch routes the pipe value through a dict pipe target:
// the formatted pipe value selects a key; the matched entry's value is
// the result, or is invoked with $ when callable. A missing key falls
// through to "default".
func (i *Interpreter) evalDictDispatch(e *ast.DictLit, ctx *Context) (Value, error) {
	key := Format(ctx.pipeValue)

	lookup := func(wanted string) (Value, bool, error) {
		for _, entry := range e.Entries {
			switch {
			case entry.Spread != nil:
				v, err := i.evalExpression(entry.Spread, ctx)
				if err != nil {
					return nil, false, err
				}
				if d, ok := v.(*DictValue); ok {
					if dv, ok := d.Entries[wanted]; ok {
						return dv, true, nil
					}
				}
			case entry.KeyExpr != nil:
				kv, err := i.evalExpression(entry.KeyExpr, ctx)
				if err != nil {
					return nil, false, err
				}
				if Format(kv) == wanted {
					v, err := i.evalExpression(entry.Value, ctx)
					return v, err == nil, err
				}
			case entry.Key == wanted:
				v, err := i.evalExpression(entry.Value, ctx)
				return v, err == nil, err
			}
		}
		return nil, false, nil
	}

	v, found, err := lookup(key)
	if err != nil {
		return nil, err
	}
	if !found {
		v, found, err = lookup("default")
		if err != nil {
			return nil, err
		}
	}
	if !found {
		return nil, rillerr.NewRuntimeError(rillerr.RunMissingField, e.Span().Start,
			"no dispatch entry for %q and no default", key)
	}

	if callee, ok := v.(Callable); ok {
		return i.invokeCallable(callee, []Value{ctx.pipeValue}, e.Span().Start, ctx)
	}
	return v, nil
}
