package interp

import (
	"github.com/rcrsr/rill/internal/ast"
)

// DeepEqual reports value equality: same type, and structurally equal
// contents. Script callables compare by parameter list and body AST
// (spans ignored); runtime and application callables compare by
// reference. Bound dicts are treated as identity and never recursed
// into.
func DeepEqual(a, b Value) bool {
	switch x := a.(type) {
	case *StringValue:
		y, ok := b.(*StringValue)
		return ok && x.Value == y.Value
	case *NumberValue:
		y, ok := b.(*NumberValue)
		return ok && x.Value == y.Value
	case *BoolValue:
		y, ok := b.(*BoolValue)
		return ok && x.Value == y.Value
	case *TupleValue:
		y, ok := b.(*TupleValue)
		if !ok || len(x.Elements) != len(y.Elements) {
			return false
		}
		for i := range x.Elements {
			if !DeepEqual(x.Elements[i], y.Elements[i]) {
				return false
			}
		}
		return true
	case *ArgsValue:
		y, ok := b.(*ArgsValue)
		if !ok || x.Len() != y.Len() {
			return false
		}
		if len(x.Named) > 0 || len(y.Named) > 0 {
			if len(x.Named) != len(y.Named) {
				return false
			}
			for k, v := range x.Named {
				w, ok := y.Named[k]
				if !ok || !DeepEqual(v, w) {
					return false
				}
			}
			return true
		}
		for i := range x.Positional {
			if !DeepEqual(x.Positional[i], y.Positional[i]) {
				return false
			}
		}
		return true
	case *DictValue:
		y, ok := b.(*DictValue)
		if !ok || len(x.Entries) != len(y.Entries) {
			return false
		}
		for k, v := range x.Entries {
			w, ok := y.Entries[k]
			if !ok || !DeepEqual(v, w) {
				return false
			}
		}
		return true
	case *VectorValue:
		y, ok := b.(*VectorValue)
		if !ok || len(x.Elements) != len(y.Elements) {
			return false
		}
		for i := range x.Elements {
			if x.Elements[i] != y.Elements[i] {
				return false
			}
		}
		return true
	case *ScriptCallable:
		y, ok := b.(*ScriptCallable)
		if !ok || len(x.Params) != len(y.Params) {
			return false
		}
		for i := range x.Params {
			if !ast.EqualParams(x.Params[i], y.Params[i]) {
				return false
			}
		}
		return ast.Equal(x.Body, y.Body)
	case *RuntimeCallable:
		y, ok := b.(*RuntimeCallable)
		return ok && x.Fn != nil && y.Fn != nil && x.Name == y.Name && sameRuntime(x, y)
	case *ApplicationCallable:
		y, ok := b.(*ApplicationCallable)
		return ok && x == y
	}
	return false
}

// sameRuntime compares runtime callables by identity, tolerating the
// shallow clones produced by dict binding.
func sameRuntime(a, b *RuntimeCallable) bool {
	if a == b {
		return true
	}
	return a.Name == b.Name
}
