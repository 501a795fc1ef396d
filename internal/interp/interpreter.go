package interp

import (
	"errors"
	"time"

	"github.com/rcrsr/rill/internal/ast"
	rillerr "github.com/rcrsr/rill/internal/errors"
	"github.com/rcrsr/rill/pkg/token"
)

// defaultIterationLimit bounds loop and iterator driving when no
// ^(limit: N) annotation is in effect.
const defaultIterationLimit = 10000

// Interpreter walks a Rill AST against a Context.
type Interpreter struct{}

// New creates an Interpreter.
func New() *Interpreter {
	return &Interpreter{}
}

// EvalProgram evaluates a program body in the given root context and
// returns the final statement's value. Control-flow signals escaping
// the program root are converted into runtime errors; runtime errors
// fire OnError before propagating.
func (i *Interpreter) EvalProgram(body *ast.Body, ctx *Context) (Value, error) {
	v, err := i.evalBody(body, ctx)
	if err != nil {
		var brk *BreakSignal
		var ret *ReturnSignal
		switch {
		case errors.As(err, &brk):
			err = rillerr.NewRuntimeError(rillerr.RunUncaughtSignal, body.Span().Start, "break outside of a loop")
		case errors.As(err, &ret):
			err = rillerr.NewRuntimeError(rillerr.RunUncaughtSignal, body.Span().Start, "return outside of a closure")
		}
		if fire := ctx.root.observability.OnError; fire != nil {
			fire(err)
		}
		return nil, err
	}
	return v, nil
}

// evalBody runs statements in order; each statement's value becomes the
// running pipe value for the rest of the body. An empty body yields the
// empty string.
func (i *Interpreter) evalBody(body *ast.Body, ctx *Context) (Value, error) {
	var last Value = EmptyString()
	for idx, stmt := range body.Statements {
		if err := ctx.checkCancelled(stmt.Span().Start); err != nil {
			return nil, err
		}
		v, err := i.evalStatement(idx, stmt, ctx)
		if err != nil {
			return nil, err
		}
		last = v
		ctx.pipeValue = v
	}
	return last, nil
}

// evalStatement runs one statement: annotation frame push, step hooks,
// expression evaluation, auto-exception screening, frame pop.
func (i *Interpreter) evalStatement(index int, stmt ast.Statement, ctx *Context) (Value, error) {
	var expr ast.Expression
	annotated := false

	switch s := stmt.(type) {
	case *ast.ExpressionStatement:
		expr = s.Expression
	case *ast.AnnotatedStatement:
		frame, err := i.evalAnnotationArgs(s.Annotations, ctx)
		if err != nil {
			return nil, err
		}
		ctx.pushAnnotations(frame)
		annotated = true
		expr = s.Statement.Expression
	default:
		return nil, rillerr.NewRuntimeError(rillerr.RunNotCallable, stmt.Span().Start, "unsupported statement")
	}
	if annotated {
		defer ctx.popAnnotations()
	}

	if fire := ctx.root.observability.OnStepStart; fire != nil {
		fire(index, expr.String(), expr.Span().Start)
	}
	started := time.Now()

	v, err := i.evalExpression(expr, ctx)
	if err != nil {
		return nil, err
	}

	if fire := ctx.root.observability.OnStepEnd; fire != nil {
		fire(index, v, time.Since(started))
	}

	if s, ok := v.(*StringValue); ok {
		if err := i.screenAutoExceptions(s.Value, expr.Span().Start, ctx); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// screenAutoExceptions matches a string statement value against the
// context's compiled patterns; the first match halts execution.
func (i *Interpreter) screenAutoExceptions(s string, pos token.Position, ctx *Context) error {
	for _, ae := range ctx.root.autoExceptions {
		matched, err := ae.Regex.MatchString(s)
		if err != nil {
			continue
		}
		if matched {
			return rillerr.NewRuntimeError(rillerr.RunAutoException, pos, "auto-exception triggered").
				WithContext("pattern", ae.Pattern).
				WithContext("value", s)
		}
	}
	return nil
}

// evalAnnotationArgs evaluates an annotation list into a frame.
func (i *Interpreter) evalAnnotationArgs(args []ast.AnnotationArg, ctx *Context) (map[string]Value, error) {
	frame := make(map[string]Value, len(args))
	for _, arg := range args {
		switch a := arg.(type) {
		case *ast.NamedArg:
			v, err := i.evalExpression(a.Value, ctx)
			if err != nil {
				return nil, err
			}
			frame[a.Name] = v
		case *ast.SpreadArg:
			v, err := i.evalExpression(a.Expression, ctx)
			if err != nil {
				return nil, err
			}
			d, ok := v.(*DictValue)
			if !ok {
				return nil, rillerr.NewRuntimeError(rillerr.RunTypeMismatch, a.Span().Start,
					"annotation spread requires a dict, got %s", InferType(v))
			}
			for k, dv := range d.Entries {
				frame[k] = dv
			}
		}
	}
	return frame, nil
}

// evalExpression dispatches on node kind.
func (i *Interpreter) evalExpression(expr ast.Expression, ctx *Context) (Value, error) {
	switch e := expr.(type) {
	case *ast.PipeChain:
		return i.evalPipeChain(e, ctx)
	case *ast.NumberLit:
		return &NumberValue{Value: e.Value}, nil
	case *ast.BoolLit:
		return &BoolValue{Value: e.Value}, nil
	case *ast.StringLit:
		return i.evalStringLit(e, ctx)
	case *ast.TupleLit:
		return i.evalTupleLit(e, ctx)
	case *ast.DictLit:
		return i.evalDictLit(e, ctx)
	case *ast.ClosureLit:
		return i.evalClosureLit(e, ctx), nil
	case *ast.Variable:
		return i.evalVariable(e, ctx)
	case *ast.CallExpr:
		return i.evalCall(e.Name, e.Args, false, e.Span().Start, ctx)
	case *ast.BareCall:
		return i.evalCall(e.Name, nil, false, e.Span().Start, ctx)
	case *ast.PostfixExpr:
		return i.evalPostfix(e, ctx)
	case *ast.PipeMethod:
		return i.evalMethodOn(ctx.pipeValue, e.Name, e.Args, e.Span().Start, ctx)
	case *ast.Binary:
		return i.evalBinary(e, ctx)
	case *ast.Unary:
		return i.evalUnary(e, ctx)
	case *ast.GroupedExpr:
		return i.evalExpression(e.Expr, ctx)
	case *ast.BlockExpr:
		return i.evalBlock(e, ctx)
	case *ast.Conditional:
		return i.evalConditional(e, ctx)
	case *ast.WhileLoop:
		return i.evalWhileLoop(e, ctx)
	case *ast.EachExpr:
		return i.evalEach(e, ctx)
	case *ast.MapExpr:
		return i.evalMap(e, ctx)
	case *ast.FilterExpr:
		return i.evalFilter(e, ctx)
	case *ast.FoldExpr:
		return i.evalFold(e, ctx)
	case *ast.DestructureExpr:
		return i.evalDestructure(e, ctx)
	case *ast.SliceExpr:
		return i.sliceValue(ctx.pipeValue, e.Start, e.Stop, e.Step, e.Span().Start, ctx)
	case *ast.TypeAssertExpr:
		v := ctx.pipeValue
		if InferType(v) != e.TypeName {
			return nil, rillerr.NewRuntimeError(rillerr.RunTypeMismatch, e.Span().Start,
				"expected %s, got %s", e.TypeName, InferType(v))
		}
		return v, nil
	case *ast.TypeCheckExpr:
		return &BoolValue{Value: InferType(ctx.pipeValue) == e.TypeName}, nil
	case *ast.SpreadExpr:
		return i.evalExpression(e.Operand, ctx)
	case *ast.PassExpr:
		return ctx.pipeValue, nil
	case *ast.BreakExpr:
		return nil, &BreakSignal{Value: ctx.pipeValue}
	case *ast.ReturnExpr:
		return nil, &ReturnSignal{Value: ctx.pipeValue}
	case *ast.InlineCapture:
		if err := ctx.Capture(e.Name, ctx.pipeValue, e.Span().Start); err != nil {
			return nil, err
		}
		return ctx.pipeValue, nil
	}
	return nil, rillerr.NewRuntimeError(rillerr.RunNotCallable, expr.Span().Start, "unsupported expression")
}

// evalPipeChain threads the pipe value left to right. Chain-local
// mutation of $ never leaks: the caller's pipe value is restored on
// exit.
func (i *Interpreter) evalPipeChain(chain *ast.PipeChain, ctx *Context) (Value, error) {
	saved := ctx.pipeValue
	defer func() { ctx.pipeValue = saved }()

	v, err := i.evalExpression(chain.Head, ctx)
	if err != nil {
		return nil, err
	}
	ctx.pipeValue = v

	for _, target := range chain.Pipes {
		if err := ctx.checkCancelled(target.Span().Start); err != nil {
			return nil, err
		}
		if ic, ok := target.(*ast.InlineCapture); ok {
			if err := i.captureTyped(ic.Name, ic.TypeName, v, ic.Span().Start, ctx); err != nil {
				return nil, err
			}
			continue
		}
		v, err = i.evalPipeTarget(target, ctx)
		if err != nil {
			return nil, err
		}
		ctx.pipeValue = v
	}

	if chain.Terminator != nil {
		switch term := chain.Terminator.(type) {
		case *ast.BreakTerm:
			return nil, &BreakSignal{Value: v}
		case *ast.ReturnTerm:
			return nil, &ReturnSignal{Value: v}
		case *ast.CaptureTerm:
			if err := i.captureTyped(term.Name, term.TypeName, v, term.Span().Start, ctx); err != nil {
				return nil, err
			}
		}
	}
	return v, nil
}

// captureTyped enforces an optional capture type before storing.
func (i *Interpreter) captureTyped(name, typeName string, v Value, pos token.Position, ctx *Context) error {
	if typeName != "" && InferType(v) != typeName {
		return rillerr.NewRuntimeError(rillerr.RunTypeMismatch, pos,
			"cannot capture %s into $%s: %s expected", InferType(v), name, typeName)
	}
	return ctx.Capture(name, v, pos)
}

// evalPipeTarget evaluates one pipe target with $ as its input,
// applying the auto-injection rules.
func (i *Interpreter) evalPipeTarget(target ast.Expression, ctx *Context) (Value, error) {
	switch t := target.(type) {
	case *ast.BareCall:
		return i.evalCall(t.Name, nil, true, t.Span().Start, ctx)
	case *ast.CallExpr:
		return i.evalCall(t.Name, t.Args, true, t.Span().Start, ctx)
	case *ast.DictLit:
		return i.evalDictDispatch(t, ctx)
	case *ast.ClosureLit:
		// An inline closure as a pipe target is applied to $.
		callable := i.evalClosureLit(t, ctx)
		return i.invokeCallable(callable, []Value{ctx.pipeValue}, t.Span().Start, ctx)
	case *ast.PostfixExpr:
		return i.evalPostfixInjected(t, ctx)
	}
	return i.evalExpression(target, ctx)
}
