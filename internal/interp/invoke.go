package interp

import (
	"errors"
	"fmt"
	"time"

	"github.com/rcrsr/rill/internal/ast"
	rillerr "github.com/rcrsr/rill/internal/errors"
	"github.com/rcrsr/rill/pkg/token"
)

// evalCall resolves a function by name and invokes it. In pipe-target
// position (injectPipe) with zero explicit arguments, the pipe value is
// injected as the first argument unless the callee declares zero
// parameters.
func (i *Interpreter) evalCall(name string, argExprs []ast.Expression, injectPipe bool, pos token.Position, ctx *Context) (Value, error) {
	callee, ok := ctx.root.functions[name]
	if !ok {
		return nil, rillerr.NewRuntimeError(rillerr.RunUnknownFunction, pos, "unknown function %q", name)
	}

	args, err := i.evalArgList(argExprs, ctx)
	if err != nil {
		return nil, err
	}

	if injectPipe && len(args) == 0 && calleeAcceptsInjection(callee) {
		args = []Value{ctx.pipeValue}
	}

	return i.invokeNamed(name, callee, args, pos, ctx)
}

// calleeAcceptsInjection reports whether a zero-argument pipe call to
// the callee should receive the pipe value. Callables that declare zero
// parameters do not.
func calleeAcceptsInjection(c Callable) bool {
	switch cc := c.(type) {
	case *ApplicationCallable:
		return cc.Raw || len(cc.Params) > 0
	case *ScriptCallable:
		return len(cc.Params) > 0
	}
	return true
}

// evalArgList evaluates call arguments, expanding spreads.
func (i *Interpreter) evalArgList(argExprs []ast.Expression, ctx *Context) ([]Value, error) {
	var args []Value
	for _, ae := range argExprs {
		if sp, ok := ae.(*ast.SpreadExpr); ok {
			v, err := i.evalExpression(sp.Operand, ctx)
			if err != nil {
				return nil, err
			}
			expanded, err := spreadToValues(v, sp.Span().Start)
			if err != nil {
				return nil, err
			}
			args = append(args, expanded...)
			continue
		}
		v, err := i.evalExpression(ae, ctx)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	return args, nil
}

// spreadToValues expands a tuple, positional args value or dict into
// argument values. Dicts expand into a single named args value.
func spreadToValues(v Value, pos token.Position) ([]Value, error) {
	switch x := v.(type) {
	case *TupleValue:
		return x.Elements, nil
	case *ArgsValue:
		if len(x.Named) > 0 {
			return []Value{x}, nil
		}
		return x.Positional, nil
	case *DictValue:
		named := make(map[string]Value, len(x.Entries))
		for k, e := range x.Entries {
			named[k] = e
		}
		return []Value{&ArgsValue{Named: named}}, nil
	}
	return nil, rillerr.NewRuntimeError(rillerr.RunTypeMismatch, pos,
		"cannot spread %s", InferType(v))
}

// invokeNamed dispatches to the three callable kinds and fires the
// function-return hook.
func (i *Interpreter) invokeNamed(name string, callee Callable, args []Value, pos token.Position, ctx *Context) (Value, error) {
	v, err := i.invokeCallable(callee, args, pos, ctx)
	if err != nil {
		return nil, err
	}
	if fire := ctx.root.observability.OnFunctionReturn; fire != nil {
		fire(name, v)
	}
	return v, nil
}

// invokeCallable invokes any callable value with positional arguments.
func (i *Interpreter) invokeCallable(callee Value, args []Value, pos token.Position, ctx *Context) (Value, error) {
	switch c := callee.(type) {
	case *ScriptCallable:
		return i.invokeScript(c, args, pos, ctx)
	case *RuntimeCallable:
		return c.Fn(i, ctx, args, pos)
	case *ApplicationCallable:
		return i.invokeApplication(c, args, pos, ctx)
	}
	return nil, rillerr.NewRuntimeError(rillerr.RunNotCallable, pos,
		"%s is not callable", InferType(callee))
}

// invokeScript binds arguments and evaluates a script callable's body
// in a fresh scope parented by the defining scope.
func (i *Interpreter) invokeScript(c *ScriptCallable, args []Value, pos token.Position, ctx *Context) (Value, error) {
	// A dict-bound callable invoked with no arguments receives its
	// dict as the first argument.
	if len(args) == 0 && c.BoundDict != nil && len(c.Params) > 0 {
		args = []Value{c.BoundDict}
	}

	// A single tuple or args argument unpacks across the parameter
	// list.
	positional := args
	var named map[string]Value
	if len(args) == 1 {
		switch t := args[0].(type) {
		case *TupleValue:
			if len(c.Params) > 1 {
				positional = t.Elements
			}
		case *ArgsValue:
			if len(t.Named) > 0 {
				named = t.Named
				positional = nil
			} else {
				positional = t.Positional
			}
		}
	}

	if len(positional) > len(c.Params) {
		return nil, rillerr.NewRuntimeError(rillerr.RunTypeMismatch, pos,
			"too many arguments: expected %d, got %d", len(c.Params), len(positional))
	}
	if named != nil {
		valid := make(map[string]bool, len(c.Params))
		for _, p := range c.Params {
			valid[p.Name] = true
		}
		for k := range named {
			if !valid[k] {
				return nil, rillerr.NewRuntimeError(rillerr.RunTypeMismatch, pos,
					"unknown parameter %q", k)
			}
		}
	}

	scope := NewCallScope(c.Defining)

	// Pipe value inside the body: the bound dict when present;
	// otherwise cleared for closures with explicit parameters, and the
	// caller's $ for bare-body closures.
	switch {
	case c.BoundDict != nil:
		scope.pipeValue = c.BoundDict
	case len(c.Params) == 0:
		scope.pipeValue = ctx.pipeValue
	}

	for idx, p := range c.Params {
		var v Value
		switch {
		case named != nil:
			if bound, ok := named[p.Name]; ok {
				v = bound
			}
		case idx < len(positional):
			v = positional[idx]
		}
		if v == nil {
			if p.Default == nil {
				return nil, rillerr.NewRuntimeError(rillerr.RunTypeMismatch, pos,
					"missing argument for parameter %q", p.Name)
			}
			dv, err := i.evalExpression(p.Default, scope)
			if err != nil {
				return nil, err
			}
			v = dv
		}
		if p.TypeName != "" && InferType(v) != p.TypeName {
			return nil, rillerr.NewRuntimeError(rillerr.RunTypeMismatch, pos,
				"parameter %q expects %s, got %s", p.Name, p.TypeName, InferType(v))
		}
		if p.Name == "$" {
			// A parameter named literally "$" dual-binds to the pipe
			// value so a bare $ reads the argument.
			scope.pipeValue = v
			scope.Define("$", v)
			continue
		}
		scope.Define(p.Name, v)
	}

	v, err := i.evalBody(c.Body, scope)
	if err != nil {
		var ret *ReturnSignal
		if errors.As(err, &ret) {
			return ret.Value, nil
		}
		return nil, err
	}
	return v, nil
}

// invokeApplication validates a host call against its schema (typed
// callables only) and runs it under the context's timeout race.
func (i *Interpreter) invokeApplication(c *ApplicationCallable, args []Value, pos token.Position, ctx *Context) (Value, error) {
	if fire := ctx.root.observability.OnHostCall; fire != nil {
		fire(c.Name, args)
	}

	if !c.Raw {
		// Dict-bound invocation applies to typed host callables too.
		if len(args) == 0 && c.BoundDict != nil && len(c.Params) > 0 {
			args = []Value{c.BoundDict}
		}
		if len(args) > len(c.Params) {
			return nil, rillerr.NewRuntimeError(rillerr.RunTypeMismatch, pos,
				"%s: too many arguments: expected %d, got %d", c.Name, len(c.Params), len(args))
		}
		full := make([]Value, len(c.Params))
		for idx, p := range c.Params {
			if idx < len(args) {
				full[idx] = args[idx]
			} else if p.HasDefault {
				full[idx] = p.Default
			} else {
				return nil, rillerr.NewRuntimeError(rillerr.RunTypeMismatch, pos,
					"%s: missing argument for parameter %q", c.Name, p.Name)
			}
			if p.Type != "" && !hostTypeMatches(p.Type, full[idx]) {
				return nil, rillerr.NewRuntimeError(rillerr.RunTypeMismatch, pos,
					"%s: parameter %q expects %s, got %s", c.Name, p.Name, p.Type, InferType(full[idx]))
			}
		}
		args = full
	}

	return i.runHostCall(c.Name, c.Fn, args, pos, ctx)
}

// hostTypeMatches checks a runtime value against a declared host
// parameter type.
func hostTypeMatches(declared string, v Value) bool {
	switch declared {
	case "any":
		return true
	case "list", "tuple":
		switch v.(type) {
		case *TupleValue, *ArgsValue:
			return true
		}
		return false
	case "dict":
		_, ok := v.(*DictValue)
		return ok
	case "vector":
		_, ok := v.(*VectorValue)
		return ok
	default:
		return InferType(v) == declared
	}
}

// runHostCall races a host invocation against the context timeout and
// the cancellation handle. Without either, the call runs inline.
func (i *Interpreter) runHostCall(name string, fn HostFunc, args []Value, pos token.Position, ctx *Context) (Value, error) {
	timeout := ctx.root.timeout
	signal := ctx.root.signal
	if timeout <= 0 && signal == nil {
		return fn(args, ctx, pos)
	}

	type outcome struct {
		v   Value
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := fn(args, ctx, pos)
		done <- outcome{v, err}
	}()

	var timer *time.Timer
	var expiry <-chan time.Time
	if timeout > 0 {
		timer = time.NewTimer(timeout)
		defer timer.Stop()
		expiry = timer.C
	}
	var cancelled <-chan struct{}
	if signal != nil {
		cancelled = signal.Done()
	}

	select {
	case out := <-done:
		return out.v, out.err
	case <-expiry:
		return nil, rillerr.NewRuntimeError(rillerr.RunTimeout, pos,
			"call to %q timed out after %s", name, timeout).
			WithContext("function", name)
	case <-cancelled:
		return nil, rillerr.NewRuntimeError(rillerr.RunAborted, pos, "execution aborted").
			WithContext("function", name)
	}
}

// evalPostfix evaluates a primary followed by invoke and method calls.
func (i *Interpreter) evalPostfix(e *ast.PostfixExpr, ctx *Context) (Value, error) {
	return i.evalPostfixWith(e, ctx, false)
}

// evalPostfixInjected is evalPostfix in pipe-target position: a
// zero-argument invoke receives the pipe value.
func (i *Interpreter) evalPostfixInjected(e *ast.PostfixExpr, ctx *Context) (Value, error) {
	return i.evalPostfixWith(e, ctx, true)
}

func (i *Interpreter) evalPostfixWith(e *ast.PostfixExpr, ctx *Context, injectPipe bool) (Value, error) {
	recv, err := i.evalExpression(e.Primary, ctx)
	if err != nil {
		return nil, err
	}

	for idx, call := range e.Calls {
		switch c := call.(type) {
		case *ast.InvokeCall:
			args, err := i.evalArgList(c.Args, ctx)
			if err != nil {
				return nil, err
			}
			if injectPipe && idx == 0 && len(args) == 0 {
				if cal, ok := recv.(Callable); ok && boundDictOf(cal) == nil && calleeAcceptsInjection(cal) {
					args = []Value{ctx.pipeValue}
				}
			}
			recv, err = i.invokeCallable(recv, args, c.Span().Start, ctx)
			if err != nil {
				return nil, err
			}
		case *ast.MethodCall:
			recv, err = i.evalMethodOn(recv, c.Name, c.Args, c.Span().Start, ctx)
			if err != nil {
				return nil, err
			}
		}
	}
	return recv, nil
}

// reservedDictMethods cannot be shadowed by dict fields.
var reservedDictMethods = map[string]bool{
	"keys":    true,
	"values":  true,
	"entries": true,
}

// evalMethodOn resolves and invokes a method on a receiver. On dicts,
// reserved methods win over fields; callable fields are dispatched as
// dict-bound invocations; everything else falls through to the method
// registry.
func (i *Interpreter) evalMethodOn(recv Value, name string, argExprs []ast.Expression, pos token.Position, ctx *Context) (Value, error) {
	args, err := i.evalArgList(argExprs, ctx)
	if err != nil {
		return nil, err
	}

	if d, ok := recv.(*DictValue); ok && !reservedDictMethods[name] {
		if field, ok := d.Entries[name]; ok {
			callee, ok := field.(Callable)
			if !ok {
				return nil, rillerr.NewRuntimeError(rillerr.RunNotCallable, pos,
					"field %q is not callable", name)
			}
			return i.invokeCallable(callee, args, pos, ctx)
		}
	}

	m, ok := ctx.root.methods[name]
	if !ok {
		return nil, rillerr.NewRuntimeError(rillerr.RunUnknownMethod, pos, "unknown method %q", name)
	}
	v, err := m.Fn(i, ctx, recv, args, pos)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Method is a receiver-taking callable in the method registry.
type Method struct {
	Name string
	Fn   func(i *Interpreter, ctx *Context, recv Value, args []Value, pos token.Position) (Value, error)
}

func methodTargetError(name string, recv Value, pos token.Position) error {
	return rillerr.NewRuntimeError(rillerr.RunInvalidMethodTarget, pos,
		"method %q cannot be applied to %s", name, InferType(recv))
}

func arityError(name string, want int, got int, pos token.Position) error {
	return rillerr.NewRuntimeError(rillerr.RunTypeMismatch, pos,
		"%s expects %s, got %d", name, pluralArgs(want), got)
}

func pluralArgs(n int) string {
	if n == 1 {
		return "1 argument"
	}
	return fmt.Sprintf("%d arguments", n)
}
