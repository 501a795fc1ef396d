package parser

import (
	"strconv"
	"strings"

	"github.com/rcrsr/rill/internal/ast"
	rillerr "github.com/rcrsr/rill/internal/errors"
	"github.com/rcrsr/rill/pkg/token"
)

// Binary operator precedence, lowest first.
const (
	precLowest = iota
	precCoalesce
	precOr
	precAnd
	precEquality
	precComparison
	precSum
	precProduct
	precPrefix
)

var binaryPrec = map[token.Type]int{
	token.COALESCE: precCoalesce,
	token.OR:       precOr,
	token.AND:      precAnd,
	token.EQ:       precEquality,
	token.NEQ:      precEquality,
	token.LT:       precComparison,
	token.GT:       precComparison,
	token.LE:       precComparison,
	token.GE:       precComparison,
	token.PLUS:     precSum,
	token.MINUS:    precSum,
	token.STAR:     precProduct,
	token.SLASH:    precProduct,
	token.PERCENT:  precProduct,
}

// parseExpression parses a binary expression with precedence climbing.
func (p *Parser) parseExpression(prec int) (ast.Expression, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for {
		opPrec, ok := binaryPrec[p.cur().Type]
		if !ok || opPrec <= prec {
			return left, nil
		}
		opTok := p.next()
		p.skipNewlines()
		right, err := p.parseExpression(opPrec)
		if err != nil {
			return nil, err
		}
		left = &ast.Binary{
			Left:     left,
			Operator: opTok.Literal,
			Right:    right,
			Sp:       spanFrom(left.Span().Start, p.endPos()),
		}
	}
}

func (p *Parser) parseUnary() (ast.Expression, error) {
	start := p.cur().Pos()
	switch p.cur().Type {
	case token.MINUS, token.BANG:
		opTok := p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &ast.Unary{Operator: opTok.Literal, Right: right, Sp: spanFrom(start, p.endPos())}, nil
	}
	return p.parsePostfix()
}

// parsePostfix parses a primary followed by method and invoke calls.
func (p *Parser) parsePostfix() (ast.Expression, error) {
	start := p.cur().Pos()
	primary, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	var calls []ast.PostfixCall
	for {
		switch {
		case p.cur().Type == token.LPAREN:
			// Bare identifiers consume their own argument list in
			// parsePrimary; an LPAREN here invokes a callable value.
			callStart := p.cur().Pos()
			args, err := p.parseCallArgs()
			if err != nil {
				return nil, err
			}
			calls = append(calls, &ast.InvokeCall{Args: args, Sp: spanFrom(callStart, p.endPos())})
		case p.cur().Type == token.DOT && p.peek(1).Type == token.IDENT && p.peek(2).Type == token.LPAREN:
			callStart := p.cur().Pos()
			p.next() // .
			name := p.next().Literal
			args, err := p.parseCallArgs()
			if err != nil {
				return nil, err
			}
			calls = append(calls, &ast.MethodCall{Name: name, Args: args, Sp: spanFrom(callStart, p.endPos())})
		default:
			if len(calls) == 0 {
				return primary, nil
			}
			return &ast.PostfixExpr{Primary: primary, Calls: calls, Sp: spanFrom(start, p.endPos())}, nil
		}
	}
}

func (p *Parser) parsePrimary() (ast.Expression, error) {
	start := p.cur().Pos()

	switch p.cur().Type {
	case token.NUMBER:
		tok := p.next()
		v, err := strconv.ParseFloat(tok.Literal, 64)
		if err != nil {
			return nil, rillerr.NewParseError(rillerr.ParseInvalidNumber, tok.Pos(), "invalid number literal %q", tok.Literal)
		}
		return &ast.NumberLit{Value: v, Literal: tok.Literal, Sp: tok.Span}, nil

	case token.STRING:
		return p.parseStringLit()

	case token.TRUE:
		tok := p.next()
		return &ast.BoolLit{Value: true, Sp: tok.Span}, nil

	case token.FALSE:
		tok := p.next()
		return &ast.BoolLit{Value: false, Sp: tok.Span}, nil

	case token.PIPEVAR:
		return p.parseVariable()

	case token.IDENT:
		tok := p.next()
		if p.cur().Type == token.LPAREN {
			args, err := p.parseCallArgs()
			if err != nil {
				return nil, err
			}
			return &ast.CallExpr{Name: tok.Literal, Args: args, Sp: spanFrom(start, p.endPos())}, nil
		}
		return &ast.BareCall{Name: tok.Literal, Sp: tok.Span}, nil

	case token.LPAREN:
		p.next()
		p.skipNewlines()
		inner, err := p.parsePipeChainExpr()
		if err != nil {
			return nil, err
		}
		p.skipNewlines()
		if _, err := p.expect(token.RPAREN); err != nil {
			return nil, err
		}
		return &ast.GroupedExpr{Expr: inner, Sp: spanFrom(start, p.endPos())}, nil

	case token.LBRACKET:
		return p.parseBrackets()

	case token.PIPE:
		return p.parseClosure()

	case token.OR:
		// "||" is an empty closure parameter list.
		p.next()
		p.skipNewlines()
		block, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		return &ast.ClosureLit{Body: block.(*ast.BlockExpr).Body, Sp: spanFrom(start, p.endPos())}, nil

	case token.LBRACE:
		return p.parseBlock()

	case token.PASS:
		tok := p.next()
		return &ast.PassExpr{Sp: tok.Span}, nil

	case token.BREAK:
		tok := p.next()
		return &ast.BreakExpr{Sp: tok.Span}, nil

	case token.RETURN:
		tok := p.next()
		return &ast.ReturnExpr{Sp: tok.Span}, nil
	}

	return nil, p.errUnexpected("unexpected %q", p.cur().Literal)
}

// parseVariable parses "$", "$@" or "$name" with its access chain.
func (p *Parser) parseVariable() (ast.Expression, error) {
	tok := p.next()
	v := &ast.Variable{Sp: tok.Span}
	switch tok.Literal {
	case "":
		v.IsPipe = true
	default:
		v.Name = tok.Literal
	}

	for {
		switch {
		case p.cur().Type == token.DOT && p.peek(1).Type == token.IDENT:
			// A trailing argument list makes this a method call, which
			// belongs to the postfix layer.
			if p.peek(2).Type == token.LPAREN {
				v.Sp = spanFrom(tok.Pos(), p.endPos())
				return v, nil
			}
			aStart := p.cur().Pos()
			p.next()
			name := p.next().Literal
			v.Access = append(v.Access, &ast.FieldAccess{Name: name, Sp: spanFrom(aStart, p.endPos())})
		case p.cur().Type == token.DOT && p.peek(1).Type == token.PIPEVAR:
			aStart := p.cur().Pos()
			p.next()
			key := p.next().Literal
			if key == "" || key == "@" {
				return nil, rillerr.NewParseError(rillerr.ParseUnexpectedToken, aStart, "variable-keyed access requires a named variable")
			}
			v.Access = append(v.Access, &ast.FieldVarAccess{VarName: key, Sp: spanFrom(aStart, p.endPos())})
		case p.cur().Type == token.DOT && p.peek(1).Type == token.LPAREN:
			aStart := p.cur().Pos()
			p.next()
			p.next() // (
			p.skipNewlines()
			expr, err := p.parsePipeChainExpr()
			if err != nil {
				return nil, err
			}
			p.skipNewlines()
			if _, err := p.expect(token.RPAREN); err != nil {
				return nil, err
			}
			v.Access = append(v.Access, &ast.FieldComputedAccess{Expr: expr, Sp: spanFrom(aStart, p.endPos())})
		case p.cur().Type == token.DOTQ && p.peek(1).Type == token.IDENT:
			aStart := p.cur().Pos()
			p.next()
			name := p.next().Literal
			v.Access = append(v.Access, &ast.ExistsAccess{Name: name, Sp: spanFrom(aStart, p.endPos())})
		case p.cur().Type == token.DOTCARET && p.peek(1).Type == token.IDENT:
			aStart := p.cur().Pos()
			p.next()
			key := p.next().Literal
			v.Access = append(v.Access, &ast.AnnotationAccess{Key: key, Sp: spanFrom(aStart, p.endPos())})
		case p.cur().Type == token.LBRACKET:
			acc, err := p.parseBracketAccessor()
			if err != nil {
				return nil, err
			}
			v.Access = append(v.Access, acc)
		default:
			v.Sp = spanFrom(tok.Pos(), p.endPos())
			return v, nil
		}
	}
}

// parseBracketAccessor parses "[expr]" or "[start:stop:step]" after a
// variable.
func (p *Parser) parseBracketAccessor() (ast.Accessor, error) {
	mark := p.save()
	start := p.cur().Pos()
	p.next() // [
	p.skipNewlines()

	if sl, err := p.parseSliceBounds(start); err == nil {
		return sl, nil
	}
	p.restore(mark)

	p.next() // [
	p.skipNewlines()
	idx, err := p.parsePipeChainExpr()
	if err != nil {
		return nil, err
	}
	p.skipNewlines()
	if _, err := p.expect(token.RBRACKET); err != nil {
		return nil, err
	}
	return &ast.BracketAccess{Index: idx, Sp: spanFrom(start, p.endPos())}, nil
}

// parseBrackets parses a tuple or dict literal. Dicts need at least one
// keyed entry; "[:]" is the empty dict and "[]" the empty tuple.
// Spread-only brackets parse as tuples and are reinterpreted as a dict
// merge at evaluation time when every operand is a dict.
func (p *Parser) parseBrackets() (ast.Expression, error) {
	start := p.cur().Pos()
	p.next() // [
	p.skipNewlines()

	if p.cur().Type == token.COLON && p.peek(1).Type == token.RBRACKET {
		p.next()
		p.next()
		return &ast.DictLit{Sp: spanFrom(start, p.endPos())}, nil
	}
	if p.cur().Type == token.RBRACKET {
		p.next()
		return &ast.TupleLit{Sp: spanFrom(start, p.endPos())}, nil
	}

	type element struct {
		entry   *ast.DictEntry
		expr    ast.Expression
		isEntry bool
	}
	var elems []element
	keyed := false

	for p.cur().Type != token.RBRACKET {
		if p.cur().Type == token.EOF {
			return nil, rillerr.NewParseError(rillerr.ParseUnterminatedElement, p.cur().Pos(), "unterminated collection literal")
		}
		elStart := p.cur().Pos()
		switch {
		case p.cur().Type == token.STAR:
			p.next()
			operand, err := p.parseExpression(precLowest)
			if err != nil {
				return nil, err
			}
			elems = append(elems, element{
				entry:   &ast.DictEntry{Spread: operand, Sp: spanFrom(elStart, p.endPos())},
				expr:    &ast.SpreadExpr{Operand: operand, Sp: spanFrom(elStart, p.endPos())},
				isEntry: true,
			})
		case isKeyToken(p.cur()) && p.peek(1).Type == token.COLON:
			key := p.next().Literal
			p.next() // :
			p.skipNewlines()
			value, err := p.parsePipeChainExpr()
			if err != nil {
				return nil, err
			}
			elems = append(elems, element{
				entry:   &ast.DictEntry{Key: key, Value: value, Sp: spanFrom(elStart, p.endPos())},
				isEntry: true,
			})
			keyed = true
		default:
			expr, err := p.parsePipeChainExpr()
			if err != nil {
				return nil, err
			}
			if g, ok := expr.(*ast.GroupedExpr); ok && p.cur().Type == token.COLON {
				p.next()
				p.skipNewlines()
				value, err := p.parsePipeChainExpr()
				if err != nil {
					return nil, err
				}
				elems = append(elems, element{
					entry:   &ast.DictEntry{KeyExpr: g.Expr, Value: value, Sp: spanFrom(elStart, p.endPos())},
					isEntry: true,
				})
				keyed = true
			} else {
				elems = append(elems, element{expr: expr})
			}
		}
		p.skipNewlines()
		if p.cur().Type == token.COMMA {
			p.next()
			p.skipNewlines()
			continue
		}
		break
	}
	if _, err := p.expect(token.RBRACKET); err != nil {
		return nil, err
	}
	sp := spanFrom(start, p.endPos())

	if keyed {
		entries := make([]ast.DictEntry, 0, len(elems))
		for _, el := range elems {
			if !el.isEntry {
				return nil, rillerr.NewParseError(rillerr.ParseUnexpectedToken, el.expr.Span().Start,
					"dict entry requires a key")
			}
			entries = append(entries, *el.entry)
		}
		return &ast.DictLit{Entries: entries, Sp: sp}, nil
	}

	exprs := make([]ast.Expression, 0, len(elems))
	for _, el := range elems {
		exprs = append(exprs, el.expr)
	}
	return &ast.TupleLit{Elements: exprs, Sp: sp}, nil
}

// isKeyToken reports whether a token can serve as a literal dict key.
// Keywords and numbers are permitted so dispatch tables can use keys
// like "if", "default" or "5".
func isKeyToken(tok token.Token) bool {
	switch tok.Type {
	case token.IDENT, token.NUMBER, token.IF, token.ELSE, token.WHILE, token.DO,
		token.EACH, token.MAP, token.FILTER, token.FOLD, token.BREAK, token.RETURN,
		token.PASS, token.TRUE, token.FALSE:
		return true
	}
	return false
}

// parseClosure parses "|params| { body }".
func (p *Parser) parseClosure() (ast.Expression, error) {
	start := p.cur().Pos()
	p.next() // |

	var params []ast.ClosureParam
	for p.cur().Type != token.PIPE {
		if p.cur().Type == token.EOF {
			return nil, rillerr.NewParseError(rillerr.ParseUnterminatedElement, p.cur().Pos(), "unterminated closure parameter list")
		}
		param, err := p.parseClosureParam()
		if err != nil {
			return nil, err
		}
		params = append(params, param)
		if p.cur().Type == token.COMMA {
			p.next()
			p.skipNewlines()
			continue
		}
		break
	}
	if _, err := p.expect(token.PIPE); err != nil {
		return nil, err
	}

	p.skipNewlines()
	block, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ast.ClosureLit{Params: params, Body: block.(*ast.BlockExpr).Body, Sp: spanFrom(start, p.endPos())}, nil
}

func (p *Parser) parseClosureParam() (ast.ClosureParam, error) {
	start := p.cur().Pos()
	var name string
	switch {
	case p.cur().Type == token.IDENT:
		name = p.next().Literal
	case p.cur().Type == token.PIPEVAR && p.cur().Literal == "":
		// A parameter named literally "$" dual-binds to the pipe value.
		p.next()
		name = "$"
	default:
		return ast.ClosureParam{}, rillerr.NewParseError(rillerr.ParseExpectedToken, p.cur().Pos(),
			"expected parameter name, found %q", p.cur().Literal)
	}

	param := ast.ClosureParam{Name: name, Sp: spanFrom(start, p.endPos())}

	if p.cur().Type == token.COLON {
		p.next()
		typeTok, err := p.expect(token.IDENT)
		if err != nil {
			return ast.ClosureParam{}, err
		}
		if !typeNames[typeTok.Literal] {
			return ast.ClosureParam{}, rillerr.NewParseError(rillerr.ParseExpectedToken, typeTok.Pos(),
				"unknown type name %q", typeTok.Literal)
		}
		param.TypeName = typeTok.Literal
	}

	if p.cur().Type == token.ASSIGN {
		p.next()
		p.skipNewlines()
		def, err := p.parseExpression(precLowest)
		if err != nil {
			return ast.ClosureParam{}, err
		}
		param.Default = def
	}

	if p.cur().Type == token.CARET && p.peek(1).Type == token.LPAREN {
		anns, err := p.parseAnnotationList()
		if err != nil {
			return ast.ClosureParam{}, err
		}
		param.Annotations = anns
	}

	param.Sp = spanFrom(start, p.endPos())
	return param, nil
}

// parseBlock parses "{ statements }".
func (p *Parser) parseBlock() (ast.Expression, error) {
	start := p.cur().Pos()
	if _, err := p.expect(token.LBRACE); err != nil {
		return nil, err
	}
	body, err := p.parseBody()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RBRACE); err != nil {
		return nil, err
	}
	return &ast.BlockExpr{Body: body, Sp: spanFrom(start, p.endPos())}, nil
}

// parseStringLit converts a STRING token's parts into a literal node,
// sub-parsing each interpolation segment.
func (p *Parser) parseStringLit() (ast.Expression, error) {
	tok := p.next()
	lit := &ast.StringLit{Multiline: tok.Multiline, Sp: tok.Span}

	for _, part := range tok.Parts {
		if !part.Interp {
			lit.Parts = append(lit.Parts, ast.StringPart{Text: part.Text})
			continue
		}
		if part.Unterminated {
			return nil, rillerr.NewParseError(rillerr.ParseUnterminatedInterp, part.Pos, "unterminated interpolation")
		}
		if strings.TrimSpace(part.Source) == "" {
			return nil, rillerr.NewParseError(rillerr.ParseEmptyInterpolation, part.Pos, "interpolation must not be empty")
		}
		expr, err := ParseExpressionSource(part.Source, part.Pos)
		if err != nil {
			return nil, err
		}
		lit.Parts = append(lit.Parts, ast.StringPart{Expr: expr})
	}
	return lit, nil
}
