package interp

import (
	"errors"
	"math"

	"github.com/rcrsr/rill/internal/ast"
	rillerr "github.com/rcrsr/rill/internal/errors"
)

// evalBlock evaluates a block in a child scope; the pipe value is
// inherited and the block's value is its last statement's value.
func (i *Interpreter) evalBlock(e *ast.BlockExpr, ctx *Context) (Value, error) {
	return i.evalBody(e.Body, ctx.NewChild())
}

// evalConditional evaluates "cond ? then ! else". Without an else
// branch a falsy condition yields the zero value matching the then
// branch's statically inferred type.
func (i *Interpreter) evalConditional(e *ast.Conditional, ctx *Context) (Value, error) {
	cond, err := i.evalExpression(e.Cond, ctx)
	if err != nil {
		return nil, err
	}
	if IsTruthy(cond) {
		return i.evalExpression(e.Then, ctx)
	}
	if e.Else != nil {
		return i.evalExpression(e.Else, ctx)
	}
	// A guard branch (break/return/pass, or a chain ending in -> break
	// or -> return) leaves $ untouched when the condition does not fire.
	switch t := e.Then.(type) {
	case *ast.BreakExpr, *ast.ReturnExpr, *ast.PassExpr:
		return ctx.pipeValue, nil
	case *ast.PipeChain:
		switch t.Terminator.(type) {
		case *ast.BreakTerm, *ast.ReturnTerm:
			return ctx.pipeValue, nil
		}
	}
	return zeroForBranch(e.Then), nil
}

// zeroForBranch infers the absent-else result from the then branch's
// literal shape; non-literal branches default to the empty string.
func zeroForBranch(e ast.Expression) Value {
	switch e.(type) {
	case *ast.NumberLit:
		return &NumberValue{}
	case *ast.BoolLit:
		return &BoolValue{}
	case *ast.TupleLit:
		return &TupleValue{}
	case *ast.DictLit:
		return NewDict()
	}
	return EmptyString()
}

// iterationLimit reads ^(limit: N) from the active annotation frame.
// Non-numeric or non-positive limits fall back to the default.
func (i *Interpreter) iterationLimit(ctx *Context) int {
	v, ok := ctx.annotationTop()["limit"]
	if !ok {
		return defaultIterationLimit
	}
	n, ok := v.(*NumberValue)
	if !ok {
		return defaultIterationLimit
	}
	limit := int(math.Floor(n.Value))
	if limit <= 0 {
		return defaultIterationLimit
	}
	return limit
}

// evalWhileLoop runs "(cond) @ { body }" (or the do-while form). The
// incoming pipe value seeds the loop; the body's result becomes the
// next pipe value; the loop's value is the final pipe value. Each body
// iteration runs in a fresh child scope.
func (i *Interpreter) evalWhileLoop(e *ast.WhileLoop, ctx *Context) (Value, error) {
	limit := i.iterationLimit(ctx)
	value := ctx.pipeValue
	iterations := 0

	runBody := func() (Value, bool, error) {
		scope := ctx.NewChild()
		scope.pipeValue = value
		v, err := i.evalExpression(e.Body, scope)
		if err != nil {
			var brk *BreakSignal
			if errors.As(err, &brk) {
				return brk.Value, true, nil
			}
			return nil, false, err
		}
		return v, false, nil
	}

	checkCond := func() (bool, error) {
		scope := ctx.NewChild()
		scope.pipeValue = value
		c, err := i.evalExpression(e.Cond, scope)
		if err != nil {
			return false, err
		}
		return IsTruthy(c), nil
	}

	for {
		if err := ctx.checkCancelled(e.Span().Start); err != nil {
			return nil, err
		}

		if !e.DoWhile {
			ok, err := checkCond()
			if err != nil {
				return nil, err
			}
			if !ok {
				break
			}
		}

		iterations++
		if iterations > limit {
			return nil, rillerr.NewRuntimeError(rillerr.RunIterationLimit, e.Span().Start,
				"loop exceeded its iteration limit").
				WithContext("limit", limit).
				WithContext("iterations", iterations)
		}

		v, broke, err := runBody()
		if err != nil {
			return nil, err
		}
		value = v
		if broke {
			return value, nil
		}

		if e.DoWhile {
			ok, err := checkCond()
			if err != nil {
				return nil, err
			}
			if !ok {
				break
			}
		}
	}
	return value, nil
}
