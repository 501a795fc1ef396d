package ast

// Equal reports whether two nodes are structurally equal. Source spans
// are ignored; everything else — node kind, names, operators, literal
// values, child order — must match.
func Equal(a, b Node) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	switch x := a.(type) {
	case *Body:
		y, ok := b.(*Body)
		if !ok || len(x.Statements) != len(y.Statements) {
			return false
		}
		for i := range x.Statements {
			if !Equal(x.Statements[i], y.Statements[i]) {
				return false
			}
		}
		return true

	case *ExpressionStatement:
		y, ok := b.(*ExpressionStatement)
		return ok && Equal(x.Expression, y.Expression)

	case *AnnotatedStatement:
		y, ok := b.(*AnnotatedStatement)
		if !ok || len(x.Annotations) != len(y.Annotations) {
			return false
		}
		for i := range x.Annotations {
			if !Equal(x.Annotations[i], y.Annotations[i]) {
				return false
			}
		}
		return Equal(x.Statement, y.Statement)

	case *NamedArg:
		y, ok := b.(*NamedArg)
		return ok && x.Name == y.Name && Equal(x.Value, y.Value)

	case *SpreadArg:
		y, ok := b.(*SpreadArg)
		return ok && Equal(x.Expression, y.Expression)

	case *PipeChain:
		y, ok := b.(*PipeChain)
		if !ok || !Equal(x.Head, y.Head) || len(x.Pipes) != len(y.Pipes) {
			return false
		}
		for i := range x.Pipes {
			if !Equal(x.Pipes[i], y.Pipes[i]) {
				return false
			}
		}
		if (x.Terminator == nil) != (y.Terminator == nil) {
			return false
		}
		if x.Terminator != nil && !Equal(x.Terminator, y.Terminator) {
			return false
		}
		return true

	case *CaptureTerm:
		y, ok := b.(*CaptureTerm)
		return ok && x.Name == y.Name && x.TypeName == y.TypeName

	case *BreakTerm:
		_, ok := b.(*BreakTerm)
		return ok

	case *ReturnTerm:
		_, ok := b.(*ReturnTerm)
		return ok

	case *InlineCapture:
		y, ok := b.(*InlineCapture)
		return ok && x.Name == y.Name && x.TypeName == y.TypeName

	case *Binary:
		y, ok := b.(*Binary)
		return ok && x.Operator == y.Operator && Equal(x.Left, y.Left) && Equal(x.Right, y.Right)

	case *Unary:
		y, ok := b.(*Unary)
		return ok && x.Operator == y.Operator && Equal(x.Right, y.Right)

	case *PostfixExpr:
		y, ok := b.(*PostfixExpr)
		if !ok || !Equal(x.Primary, y.Primary) || len(x.Calls) != len(y.Calls) {
			return false
		}
		for i := range x.Calls {
			if !Equal(x.Calls[i], y.Calls[i]) {
				return false
			}
		}
		return true

	case *MethodCall:
		y, ok := b.(*MethodCall)
		return ok && x.Name == y.Name && equalExprs(x.Args, y.Args)

	case *InvokeCall:
		y, ok := b.(*InvokeCall)
		return ok && equalExprs(x.Args, y.Args)

	case *PipeMethod:
		y, ok := b.(*PipeMethod)
		return ok && x.Name == y.Name && equalExprs(x.Args, y.Args)

	case *StringLit:
		y, ok := b.(*StringLit)
		if !ok || x.Multiline != y.Multiline || len(x.Parts) != len(y.Parts) {
			return false
		}
		for i := range x.Parts {
			px, py := x.Parts[i], y.Parts[i]
			if (px.Expr == nil) != (py.Expr == nil) {
				return false
			}
			if px.Expr != nil {
				if !Equal(px.Expr, py.Expr) {
					return false
				}
			} else if px.Text != py.Text {
				return false
			}
		}
		return true

	case *NumberLit:
		y, ok := b.(*NumberLit)
		return ok && x.Value == y.Value

	case *BoolLit:
		y, ok := b.(*BoolLit)
		return ok && x.Value == y.Value

	case *TupleLit:
		y, ok := b.(*TupleLit)
		return ok && equalExprs(x.Elements, y.Elements)

	case *DictLit:
		y, ok := b.(*DictLit)
		if !ok || len(x.Entries) != len(y.Entries) {
			return false
		}
		for i := range x.Entries {
			ex, ey := x.Entries[i], y.Entries[i]
			if ex.Key != ey.Key {
				return false
			}
			if (ex.KeyExpr == nil) != (ey.KeyExpr == nil) ||
				(ex.Value == nil) != (ey.Value == nil) ||
				(ex.Spread == nil) != (ey.Spread == nil) {
				return false
			}
			if ex.KeyExpr != nil && !Equal(ex.KeyExpr, ey.KeyExpr) {
				return false
			}
			if ex.Value != nil && !Equal(ex.Value, ey.Value) {
				return false
			}
			if ex.Spread != nil && !Equal(ex.Spread, ey.Spread) {
				return false
			}
		}
		return true

	case *ClosureLit:
		y, ok := b.(*ClosureLit)
		if !ok || len(x.Params) != len(y.Params) {
			return false
		}
		for i := range x.Params {
			if !EqualParams(x.Params[i], y.Params[i]) {
				return false
			}
		}
		return Equal(x.Body, y.Body)

	case *Variable:
		y, ok := b.(*Variable)
		if !ok || x.Name != y.Name || x.IsPipe != y.IsPipe || len(x.Access) != len(y.Access) {
			return false
		}
		for i := range x.Access {
			if !Equal(x.Access[i], y.Access[i]) {
				return false
			}
		}
		return true

	case *FieldAccess:
		y, ok := b.(*FieldAccess)
		return ok && x.Name == y.Name

	case *FieldVarAccess:
		y, ok := b.(*FieldVarAccess)
		return ok && x.VarName == y.VarName

	case *FieldComputedAccess:
		y, ok := b.(*FieldComputedAccess)
		return ok && Equal(x.Expr, y.Expr)

	case *ExistsAccess:
		y, ok := b.(*ExistsAccess)
		return ok && x.Name == y.Name

	case *AnnotationAccess:
		y, ok := b.(*AnnotationAccess)
		return ok && x.Key == y.Key

	case *BracketAccess:
		y, ok := b.(*BracketAccess)
		return ok && Equal(x.Index, y.Index)

	case *BracketSlice:
		y, ok := b.(*BracketSlice)
		return ok && equalOpt(x.Start, y.Start) && equalOpt(x.Stop, y.Stop) && equalOpt(x.Step, y.Step)

	case *CallExpr:
		y, ok := b.(*CallExpr)
		return ok && x.Name == y.Name && equalExprs(x.Args, y.Args)

	case *BareCall:
		y, ok := b.(*BareCall)
		return ok && x.Name == y.Name

	case *Conditional:
		y, ok := b.(*Conditional)
		return ok && Equal(x.Cond, y.Cond) && Equal(x.Then, y.Then) && equalOpt(x.Else, y.Else)

	case *WhileLoop:
		y, ok := b.(*WhileLoop)
		return ok && x.DoWhile == y.DoWhile && Equal(x.Cond, y.Cond) && Equal(x.Body, y.Body)

	case *BlockExpr:
		y, ok := b.(*BlockExpr)
		return ok && Equal(x.Body, y.Body)

	case *GroupedExpr:
		y, ok := b.(*GroupedExpr)
		return ok && Equal(x.Expr, y.Expr)

	case *EachExpr:
		y, ok := b.(*EachExpr)
		return ok && equalOpt(x.Init, y.Init) && Equal(x.Body, y.Body)

	case *MapExpr:
		y, ok := b.(*MapExpr)
		return ok && Equal(x.Body, y.Body)

	case *FilterExpr:
		y, ok := b.(*FilterExpr)
		return ok && Equal(x.Body, y.Body)

	case *FoldExpr:
		y, ok := b.(*FoldExpr)
		return ok && equalOpt(x.Init, y.Init) && Equal(x.Body, y.Body)

	case *DestructureExpr:
		y, ok := b.(*DestructureExpr)
		if !ok || len(x.Elements) != len(y.Elements) {
			return false
		}
		for i := range x.Elements {
			ex, ey := x.Elements[i], y.Elements[i]
			if ex.Kind != ey.Kind || ex.Name != ey.Name || ex.Key != ey.Key {
				return false
			}
			if (ex.Nested == nil) != (ey.Nested == nil) {
				return false
			}
			if ex.Nested != nil && !Equal(ex.Nested, ey.Nested) {
				return false
			}
		}
		return true

	case *SliceExpr:
		y, ok := b.(*SliceExpr)
		return ok && equalOpt(x.Start, y.Start) && equalOpt(x.Stop, y.Stop) && equalOpt(x.Step, y.Step)

	case *SpreadExpr:
		y, ok := b.(*SpreadExpr)
		return ok && Equal(x.Operand, y.Operand)

	case *TypeAssertExpr:
		y, ok := b.(*TypeAssertExpr)
		return ok && x.TypeName == y.TypeName

	case *TypeCheckExpr:
		y, ok := b.(*TypeCheckExpr)
		return ok && x.TypeName == y.TypeName

	case *BreakExpr:
		_, ok := b.(*BreakExpr)
		return ok

	case *ReturnExpr:
		_, ok := b.(*ReturnExpr)
		return ok

	case *PassExpr:
		_, ok := b.(*PassExpr)
		return ok
	}

	return false
}

// EqualParams reports whether two closure parameters are structurally
// equal: same name, type name and default value. Parameter annotations
// participate as well.
func EqualParams(a, b ClosureParam) bool {
	if a.Name != b.Name || a.TypeName != b.TypeName {
		return false
	}
	if (a.Default == nil) != (b.Default == nil) {
		return false
	}
	if a.Default != nil && !Equal(a.Default, b.Default) {
		return false
	}
	if len(a.Annotations) != len(b.Annotations) {
		return false
	}
	for i := range a.Annotations {
		if !Equal(a.Annotations[i], b.Annotations[i]) {
			return false
		}
	}
	return true
}

func equalExprs(a, b []Expression) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

func equalOpt(a, b Expression) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return Equal(a, b)
}
