package interp

import (
	"errors"
	"math"
	"strings"

	"github.com/rcrsr/rill/internal/ast"
	rillerr "github.com/rcrsr/rill/internal/errors"
)

// evalBinary evaluates infix operators. There is no implicit coercion:
// arithmetic requires numbers (with + additionally defined on strings
// and tuples), comparisons require matching operand types.
func (i *Interpreter) evalBinary(e *ast.Binary, ctx *Context) (Value, error) {
	if e.Operator == "??" {
		return i.evalCoalesce(e, ctx)
	}
	if e.Operator == "&&" || e.Operator == "||" {
		return i.evalLogical(e, ctx)
	}

	left, err := i.evalExpression(e.Left, ctx)
	if err != nil {
		return nil, err
	}
	right, err := i.evalExpression(e.Right, ctx)
	if err != nil {
		return nil, err
	}

	switch e.Operator {
	case "==":
		return &BoolValue{Value: DeepEqual(left, right)}, nil
	case "!=":
		return &BoolValue{Value: !DeepEqual(left, right)}, nil
	}

	if ln, lok := left.(*NumberValue); lok {
		rn, rok := right.(*NumberValue)
		if !rok {
			return nil, i.typeOpError(e, left, right)
		}
		switch e.Operator {
		case "+":
			return &NumberValue{Value: ln.Value + rn.Value}, nil
		case "-":
			return &NumberValue{Value: ln.Value - rn.Value}, nil
		case "*":
			return &NumberValue{Value: ln.Value * rn.Value}, nil
		case "/":
			if rn.Value == 0 {
				return nil, rillerr.NewRuntimeError(rillerr.RunTypeMismatch, e.Span().Start, "division by zero")
			}
			return &NumberValue{Value: ln.Value / rn.Value}, nil
		case "%":
			if rn.Value == 0 {
				return nil, rillerr.NewRuntimeError(rillerr.RunTypeMismatch, e.Span().Start, "division by zero")
			}
			return &NumberValue{Value: math.Mod(ln.Value, rn.Value)}, nil
		case "<":
			return &BoolValue{Value: ln.Value < rn.Value}, nil
		case ">":
			return &BoolValue{Value: ln.Value > rn.Value}, nil
		case "<=":
			return &BoolValue{Value: ln.Value <= rn.Value}, nil
		case ">=":
			return &BoolValue{Value: ln.Value >= rn.Value}, nil
		}
	}

	if ls, lok := left.(*StringValue); lok {
		rs, rok := right.(*StringValue)
		if !rok {
			return nil, i.typeOpError(e, left, right)
		}
		switch e.Operator {
		case "+":
			return &StringValue{Value: ls.Value + rs.Value}, nil
		case "<":
			return &BoolValue{Value: strings.Compare(ls.Value, rs.Value) < 0}, nil
		case ">":
			return &BoolValue{Value: strings.Compare(ls.Value, rs.Value) > 0}, nil
		case "<=":
			return &BoolValue{Value: strings.Compare(ls.Value, rs.Value) <= 0}, nil
		case ">=":
			return &BoolValue{Value: strings.Compare(ls.Value, rs.Value) >= 0}, nil
		}
	}

	if lt, lok := left.(*TupleValue); lok && e.Operator == "+" {
		rt, rok := right.(*TupleValue)
		if !rok {
			return nil, i.typeOpError(e, left, right)
		}
		elems := make([]Value, 0, len(lt.Elements)+len(rt.Elements))
		elems = append(elems, lt.Elements...)
		elems = append(elems, rt.Elements...)
		return &TupleValue{Elements: elems}, nil
	}

	return nil, i.typeOpError(e, left, right)
}

func (i *Interpreter) typeOpError(e *ast.Binary, left, right Value) error {
	return rillerr.NewRuntimeError(rillerr.RunNotCallable, e.Span().Start,
		"operator %q is not defined for %s and %s", e.Operator, InferType(left), InferType(right))
}

// evalLogical short-circuits && and ||; the result is a boolean.
func (i *Interpreter) evalLogical(e *ast.Binary, ctx *Context) (Value, error) {
	left, err := i.evalExpression(e.Left, ctx)
	if err != nil {
		return nil, err
	}
	lt := IsTruthy(left)
	if e.Operator == "&&" && !lt {
		return &BoolValue{Value: false}, nil
	}
	if e.Operator == "||" && lt {
		return &BoolValue{Value: true}, nil
	}
	right, err := i.evalExpression(e.Right, ctx)
	if err != nil {
		return nil, err
	}
	return &BoolValue{Value: IsTruthy(right)}, nil
}

// evalCoalesce implements "lhs ?? fallback". The fallback is evaluated
// only when the left side resolves to its type's empty form, or when
// resolution fails with a missing field or missing annotation.
// Undefined variables and other failures still propagate.
func (i *Interpreter) evalCoalesce(e *ast.Binary, ctx *Context) (Value, error) {
	left, err := i.evalExpression(e.Left, ctx)
	if err != nil {
		var re *rillerr.RuntimeError
		if errors.As(err, &re) && (re.ID == rillerr.RunMissingField || re.ID == rillerr.RunUndefinedAnnotation) {
			return i.evalExpression(e.Right, ctx)
		}
		return nil, err
	}
	if IsEmpty(left) {
		return i.evalExpression(e.Right, ctx)
	}
	return left, nil
}

// evalUnary evaluates prefix - and !.
func (i *Interpreter) evalUnary(e *ast.Unary, ctx *Context) (Value, error) {
	v, err := i.evalExpression(e.Right, ctx)
	if err != nil {
		return nil, err
	}
	switch e.Operator {
	case "-":
		n, ok := v.(*NumberValue)
		if !ok {
			return nil, rillerr.NewRuntimeError(rillerr.RunNotCallable, e.Span().Start,
				"operator %q is not defined for %s", e.Operator, InferType(v))
		}
		return &NumberValue{Value: -n.Value}, nil
	case "!":
		return &BoolValue{Value: !IsTruthy(v)}, nil
	}
	return nil, rillerr.NewRuntimeError(rillerr.RunNotCallable, e.Span().Start,
		"unknown operator %q", e.Operator)
}
