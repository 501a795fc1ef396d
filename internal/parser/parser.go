// Package parser builds Rill ASTs from token streams using recursive
// descent. Parsing stops at the first syntax error; the error carries a
// stable RILL-P ID and the offending position.
package parser

import (
	"github.com/rcrsr/rill/internal/ast"
	rillerr "github.com/rcrsr/rill/internal/errors"
	"github.com/rcrsr/rill/internal/lexer"
	"github.com/rcrsr/rill/pkg/token"
)

// typeNames is the closed set of type names usable in captures, closure
// parameters and type assertions.
var typeNames = map[string]bool{
	"string":  true,
	"number":  true,
	"bool":    true,
	"tuple":   true,
	"dict":    true,
	"args":    true,
	"closure": true,
	"vector":  true,
}

// Parser consumes a buffered token stream.
type Parser struct {
	tokens []token.Token
	pos    int
}

// Parse tokenizes and parses a complete program.
func Parse(input string) (*ast.Body, error) {
	toks, lexErrs := lexer.Tokenize(input)
	if len(lexErrs) > 0 {
		return nil, lexErrs[0]
	}
	p := &Parser{tokens: toks}
	return p.parseProgram()
}

// ParseExpressionSource parses a single expression from source text; used
// for string interpolation segments. Positions inside err are offset by
// base so spans land within the enclosing source.
func ParseExpressionSource(input string, base token.Position) (ast.Expression, error) {
	toks, lexErrs := lexer.Tokenize(input)
	if len(lexErrs) > 0 {
		return nil, offsetError(&lexErrs[0].ScriptError, lexErrs[0], base)
	}
	p := &Parser{tokens: toks}
	expr, err := p.parsePipeChainExpr()
	if err != nil {
		if pe, ok := err.(*rillerr.ParseError); ok {
			return nil, offsetError(&pe.ScriptError, pe, base)
		}
		return nil, err
	}
	p.skipNewlines()
	if p.cur().Type != token.EOF {
		return nil, p.errUnexpected("unexpected %s after interpolated expression", p.cur().Type)
	}
	return expr, nil
}

// offsetError shifts an error position produced by a sub-parse into the
// coordinate space of the enclosing source.
func offsetError(se *rillerr.ScriptError, err error, base token.Position) error {
	if se.Pos.Line <= 1 {
		se.Pos.Column += base.Column
	}
	se.Pos.Line += base.Line - 1
	se.Pos.Offset += base.Offset
	return err
}

func (p *Parser) cur() token.Token {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	return p.tokens[len(p.tokens)-1] // EOF
}

func (p *Parser) peek(n int) token.Token {
	idx := p.pos + n
	if idx < len(p.tokens) {
		return p.tokens[idx]
	}
	return p.tokens[len(p.tokens)-1]
}

func (p *Parser) next() token.Token {
	tok := p.cur()
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return tok
}

func (p *Parser) save() int        { return p.pos }
func (p *Parser) restore(mark int) { p.pos = mark }

func (p *Parser) skipNewlines() {
	for p.cur().Type == token.NEWLINE {
		p.next()
	}
}

func (p *Parser) expect(t token.Type) (token.Token, error) {
	if p.cur().Type != t {
		return token.Token{}, rillerr.NewParseError(rillerr.ParseExpectedToken, p.cur().Pos(),
			"expected %q, found %q", t.String(), p.cur().Literal)
	}
	return p.next(), nil
}

func (p *Parser) errUnexpected(format string, args ...any) error {
	return rillerr.NewParseError(rillerr.ParseUnexpectedToken, p.cur().Pos(), format, args...)
}

func spanFrom(start token.Position, end token.Position) token.Span {
	return token.Span{Start: start, End: end}
}

func (p *Parser) endPos() token.Position {
	if p.pos == 0 {
		return p.cur().Pos()
	}
	return p.tokens[p.pos-1].Span.End
}

// parseProgram parses statements until EOF.
func (p *Parser) parseProgram() (*ast.Body, error) {
	start := p.cur().Pos()
	var stmts []ast.Statement
	p.skipNewlines()
	for p.cur().Type != token.EOF {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
		if p.cur().Type != token.EOF {
			if p.cur().Type != token.NEWLINE {
				return nil, p.errUnexpected("unexpected %q after statement", p.cur().Literal)
			}
			p.skipNewlines()
		}
	}
	return &ast.Body{Statements: stmts, Sp: spanFrom(start, p.endPos())}, nil
}

// parseBody parses statements until the closing brace of a block.
func (p *Parser) parseBody() (*ast.Body, error) {
	start := p.cur().Pos()
	var stmts []ast.Statement
	p.skipNewlines()
	for p.cur().Type != token.RBRACE && p.cur().Type != token.EOF {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
		if p.cur().Type == token.NEWLINE {
			p.skipNewlines()
		} else {
			break
		}
	}
	return &ast.Body{Statements: stmts, Sp: spanFrom(start, p.endPos())}, nil
}

// parseStatement parses an optionally annotated expression statement.
func (p *Parser) parseStatement() (ast.Statement, error) {
	start := p.cur().Pos()

	if p.cur().Type == token.CARET && p.peek(1).Type == token.LPAREN {
		anns, err := p.parseAnnotationList()
		if err != nil {
			return nil, err
		}
		p.skipNewlines()
		inner, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		// Nested annotations collapse onto the same statement.
		switch s := inner.(type) {
		case *ast.ExpressionStatement:
			return &ast.AnnotatedStatement{Annotations: anns, Statement: s, Sp: spanFrom(start, p.endPos())}, nil
		case *ast.AnnotatedStatement:
			merged := append(anns, s.Annotations...)
			return &ast.AnnotatedStatement{Annotations: merged, Statement: s.Statement, Sp: spanFrom(start, p.endPos())}, nil
		}
	}

	expr, err := p.parsePipeChainExpr()
	if err != nil {
		return nil, err
	}
	return &ast.ExpressionStatement{Expression: expr, Sp: spanFrom(start, p.endPos())}, nil
}

// parseAnnotationList parses "^(name: value, *spread, …)".
func (p *Parser) parseAnnotationList() ([]ast.AnnotationArg, error) {
	p.next() // ^
	p.next() // (
	p.skipNewlines()

	var args []ast.AnnotationArg
	for p.cur().Type != token.RPAREN {
		start := p.cur().Pos()
		switch p.cur().Type {
		case token.STAR:
			p.next()
			expr, err := p.parseExpression(precLowest)
			if err != nil {
				return nil, err
			}
			args = append(args, &ast.SpreadArg{Expression: expr, Sp: spanFrom(start, p.endPos())})
		case token.IDENT, token.MAP, token.FILTER, token.FOLD, token.EACH, token.IF, token.ELSE, token.WHILE, token.DO:
			name := p.next().Literal
			if _, err := p.expect(token.COLON); err != nil {
				return nil, err
			}
			p.skipNewlines()
			value, err := p.parseExpression(precLowest)
			if err != nil {
				return nil, err
			}
			args = append(args, &ast.NamedArg{Name: name, Value: value, Sp: spanFrom(start, p.endPos())})
		default:
			return nil, rillerr.NewParseError(rillerr.ParseInvalidAnnotation, p.cur().Pos(),
				"annotation key must be an identifier, found %q", p.cur().Literal)
		}
		p.skipNewlines()
		if p.cur().Type == token.COMMA {
			p.next()
			p.skipNewlines()
			continue
		}
		break
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	return args, nil
}

// parsePipeChainExpr parses "head (-> target | :> $name)* terminator?".
func (p *Parser) parsePipeChainExpr() (ast.Expression, error) {
	start := p.cur().Pos()

	head, err := p.parseTargetExpr()
	if err != nil {
		return nil, err
	}

	var pipes []ast.Expression
	var term ast.Terminator

chain:
	for {
		switch p.cur().Type {
		case token.ARROW:
			p.next()
			p.skipNewlines()
			switch p.cur().Type {
			case token.BREAK:
				p.next()
				term = &ast.BreakTerm{Sp: spanFrom(p.endPos(), p.endPos())}
				break chain
			case token.RETURN:
				p.next()
				term = &ast.ReturnTerm{Sp: spanFrom(p.endPos(), p.endPos())}
				break chain
			}
			target, err := p.parsePipeTarget()
			if err != nil {
				return nil, err
			}
			pipes = append(pipes, target)
		case token.CAPTURE, token.FATARROW:
			capStart := p.cur().Pos()
			p.next()
			name, typeName, err := p.parseCaptureName()
			if err != nil {
				return nil, err
			}
			if p.cur().Type == token.ARROW || p.cur().Type == token.CAPTURE || p.cur().Type == token.FATARROW {
				pipes = append(pipes, &ast.InlineCapture{Name: name, TypeName: typeName, Sp: spanFrom(capStart, p.endPos())})
				continue
			}
			term = &ast.CaptureTerm{Name: name, TypeName: typeName, Sp: spanFrom(capStart, p.endPos())}
			break chain
		default:
			break chain
		}
	}

	if len(pipes) == 0 && term == nil {
		return head, nil
	}
	return &ast.PipeChain{Head: head, Pipes: pipes, Terminator: term, Sp: spanFrom(start, p.endPos())}, nil
}

// parseCaptureName parses "$name" or "$name: type" after a capture
// operator.
func (p *Parser) parseCaptureName() (string, string, error) {
	tok := p.cur()
	if tok.Type != token.PIPEVAR || tok.Literal == "" || tok.Literal == "@" {
		return "", "", rillerr.NewParseError(rillerr.ParseExpectedToken, tok.Pos(),
			"capture requires a named variable, found %q", tok.Literal)
	}
	p.next()
	typeName := ""
	if p.cur().Type == token.COLON && p.peek(1).Type == token.IDENT && typeNames[p.peek(1).Literal] {
		p.next()
		typeName = p.next().Literal
	}
	return tok.Literal, typeName, nil
}

// parsePipeTarget parses the grammar of what may appear after "->".
func (p *Parser) parsePipeTarget() (ast.Expression, error) {
	start := p.cur().Pos()

	switch p.cur().Type {
	case token.AT:
		return p.parseDoWhile(start)
	case token.EACH:
		p.next()
		init, err := p.parseOptionalInit()
		if err != nil {
			return nil, err
		}
		body, err := p.parseLoopBody()
		if err != nil {
			return nil, err
		}
		return &ast.EachExpr{Init: init, Body: body, Sp: spanFrom(start, p.endPos())}, nil
	case token.MAP:
		p.next()
		body, err := p.parseLoopBody()
		if err != nil {
			return nil, err
		}
		return &ast.MapExpr{Body: body, Sp: spanFrom(start, p.endPos())}, nil
	case token.FILTER:
		p.next()
		body, err := p.parseLoopBody()
		if err != nil {
			return nil, err
		}
		return &ast.FilterExpr{Body: body, Sp: spanFrom(start, p.endPos())}, nil
	case token.FOLD:
		p.next()
		init, err := p.parseOptionalInit()
		if err != nil {
			return nil, err
		}
		body, err := p.parseLoopBody()
		if err != nil {
			return nil, err
		}
		return &ast.FoldExpr{Init: init, Body: body, Sp: spanFrom(start, p.endPos())}, nil
	case token.DOT:
		return p.parsePipeMethod(start)
	case token.BANG:
		if p.peek(1).Type == token.IDENT && typeNames[p.peek(1).Literal] {
			p.next()
			name := p.next().Literal
			return &ast.TypeAssertExpr{TypeName: name, Sp: spanFrom(start, p.endPos())}, nil
		}
	case token.QUESTION:
		if p.peek(1).Type == token.IDENT && typeNames[p.peek(1).Literal] {
			p.next()
			name := p.next().Literal
			return &ast.TypeCheckExpr{TypeName: name, Sp: spanFrom(start, p.endPos())}, nil
		}
	case token.LBRACKET:
		if dest, ok, err := p.tryParseDestructure(); err != nil {
			return nil, err
		} else if ok {
			return dest, nil
		}
		if slice, ok, err := p.tryParseSliceTarget(); err != nil {
			return nil, err
		} else if ok {
			return slice, nil
		}
	}

	return p.parseTargetExpr()
}

// parseTargetExpr parses a full expression including conditionals and
// loop forms; used for chain heads and for pipe targets that are not one
// of the dedicated target shapes.
func (p *Parser) parseTargetExpr() (ast.Expression, error) {
	start := p.cur().Pos()

	if p.cur().Type == token.AT {
		return p.parseDoWhile(start)
	}

	expr, err := p.parseExpression(precLowest)
	if err != nil {
		return nil, err
	}

	// "(cond) @ { body }" — a while loop keyed by the marker after the
	// condition expression.
	if p.cur().Type == token.AT {
		p.next()
		body, err := p.parseLoopBody()
		if err != nil {
			return nil, err
		}
		cond := expr
		if g, ok := cond.(*ast.GroupedExpr); ok {
			cond = g.Expr
		}
		return &ast.WhileLoop{Cond: cond, Body: body, Sp: spanFrom(start, p.endPos())}, nil
	}

	// "cond ? then ! else"
	if p.cur().Type == token.QUESTION {
		return p.parseConditional(expr, start)
	}

	return expr, nil
}

// parseDoWhile parses "@ { body } ? (cond)".
func (p *Parser) parseDoWhile(start token.Position) (ast.Expression, error) {
	p.next() // @
	body, err := p.parseLoopBody()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.QUESTION); err != nil {
		return nil, err
	}
	if _, err := p.expect(token.LPAREN); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression(precLowest)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	return &ast.WhileLoop{Cond: cond, Body: body, DoWhile: true, Sp: spanFrom(start, p.endPos())}, nil
}

// parseConditional parses "? then ! else" after the condition.
func (p *Parser) parseConditional(cond ast.Expression, start token.Position) (ast.Expression, error) {
	p.next() // ?
	p.skipNewlines()
	then, err := p.parseConditionalArm()
	if err != nil {
		return nil, err
	}
	var elseArm ast.Expression
	if p.cur().Type == token.BANG {
		p.next()
		p.skipNewlines()
		elseArm, err = p.parseConditionalArm()
		if err != nil {
			return nil, err
		}
	}
	return &ast.Conditional{Cond: cond, Then: then, Else: elseArm, Sp: spanFrom(start, p.endPos())}, nil
}

// parseConditionalArm parses a branch of a conditional. Break and
// return are legal branch bodies, and an arm may be a pipe chain, so
// "cond ? value -> return" unwinds only when the condition fires.
func (p *Parser) parseConditionalArm() (ast.Expression, error) {
	start := p.cur().Pos()
	switch p.cur().Type {
	case token.BREAK:
		p.next()
		return &ast.BreakExpr{Sp: spanFrom(start, p.endPos())}, nil
	case token.RETURN:
		p.next()
		return &ast.ReturnExpr{Sp: spanFrom(start, p.endPos())}, nil
	}
	return p.parsePipeChainExpr()
}

// parsePipeMethod parses "-> .name(args)" or the bare "-> .name".
func (p *Parser) parsePipeMethod(start token.Position) (ast.Expression, error) {
	p.next() // .
	nameTok, err := p.expect(token.IDENT)
	if err != nil {
		return nil, err
	}
	var args []ast.Expression
	if p.cur().Type == token.LPAREN {
		args, err = p.parseCallArgs()
		if err != nil {
			return nil, err
		}
	}
	return &ast.PipeMethod{Name: nameTok.Literal, Args: args, Sp: spanFrom(start, p.endPos())}, nil
}

// parseOptionalInit parses "(expr)" after each/fold, if present.
func (p *Parser) parseOptionalInit() (ast.Expression, error) {
	if p.cur().Type != token.LPAREN {
		return nil, nil
	}
	p.next()
	p.skipNewlines()
	init, err := p.parseExpression(precLowest)
	if err != nil {
		return nil, err
	}
	p.skipNewlines()
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	return init, nil
}

// parseLoopBody parses the body of a loop or collection operator: a
// block or a closure literal.
func (p *Parser) parseLoopBody() (ast.Expression, error) {
	p.skipNewlines()
	switch p.cur().Type {
	case token.LBRACE:
		return p.parseBlock()
	case token.PIPE:
		return p.parseClosure()
	}
	return nil, p.errUnexpected("expected a block or closure body, found %q", p.cur().Literal)
}

// parseCallArgs parses "(a, b, *c)".
func (p *Parser) parseCallArgs() ([]ast.Expression, error) {
	p.next() // (
	p.skipNewlines()
	args := []ast.Expression{}
	for p.cur().Type != token.RPAREN {
		if p.cur().Type == token.EOF {
			return nil, rillerr.NewParseError(rillerr.ParseUnterminatedElement, p.cur().Pos(), "unterminated argument list")
		}
		var arg ast.Expression
		var err error
		if p.cur().Type == token.STAR {
			start := p.cur().Pos()
			p.next()
			operand, err2 := p.parseExpression(precLowest)
			if err2 != nil {
				return nil, err2
			}
			arg = &ast.SpreadExpr{Operand: operand, Sp: spanFrom(start, p.endPos())}
		} else {
			arg, err = p.parsePipeChainExpr()
			if err != nil {
				return nil, err
			}
		}
		args = append(args, arg)
		p.skipNewlines()
		if p.cur().Type == token.COMMA {
			p.next()
			p.skipNewlines()
			continue
		}
		break
	}
	if _, err := p.expect(token.RPAREN); err != nil {
		return nil, err
	}
	return args, nil
}

// tryParseDestructure attempts to parse a destructure pattern at the
// current "[". It backtracks and reports ok=false when the brackets do
// not form a pattern (plain collection literals and slices).
func (p *Parser) tryParseDestructure() (*ast.DestructureExpr, bool, error) {
	mark := p.save()
	dest, err := p.parseDestructurePattern()
	if err != nil {
		p.restore(mark)
		return nil, false, nil
	}
	return dest, true, nil
}

func (p *Parser) parseDestructurePattern() (*ast.DestructureExpr, error) {
	start := p.cur().Pos()
	if _, err := p.expect(token.LBRACKET); err != nil {
		return nil, err
	}
	p.skipNewlines()

	var elements []ast.DestructureElement
	for p.cur().Type != token.RBRACKET {
		elStart := p.cur().Pos()
		switch {
		case p.cur().Type == token.UNDER:
			p.next()
			elements = append(elements, ast.DestructureElement{Kind: ast.DestructureIgnore, Sp: spanFrom(elStart, p.endPos())})
		case p.cur().Type == token.STAR && p.peek(1).Type == token.PIPEVAR:
			p.next()
			name := p.next().Literal
			if name == "" || name == "@" {
				return nil, rillerr.NewParseError(rillerr.ParseInvalidDestructure, elStart, "rest element requires a named variable")
			}
			elements = append(elements, ast.DestructureElement{Kind: ast.DestructureRest, Name: name, Sp: spanFrom(elStart, p.endPos())})
		case p.cur().Type == token.IDENT && p.peek(1).Type == token.COLON && p.peek(2).Type == token.PIPEVAR:
			key := p.next().Literal
			p.next() // :
			name := p.next().Literal
			if name == "" || name == "@" {
				return nil, rillerr.NewParseError(rillerr.ParseInvalidDestructure, elStart, "named bind requires a named variable")
			}
			elements = append(elements, ast.DestructureElement{Kind: ast.DestructureNamed, Key: key, Name: name, Sp: spanFrom(elStart, p.endPos())})
		case p.cur().Type == token.PIPEVAR:
			name := p.next().Literal
			if name == "" || name == "@" {
				return nil, rillerr.NewParseError(rillerr.ParseInvalidDestructure, elStart, "positional bind requires a named variable")
			}
			// An access chain after a pattern variable means this is an
			// ordinary collection, not a pattern.
			if p.cur().Type == token.DOT || p.cur().Type == token.DOTQ || p.cur().Type == token.LBRACKET || p.cur().Type == token.LPAREN {
				return nil, rillerr.NewParseError(rillerr.ParseInvalidDestructure, elStart, "not a destructure pattern")
			}
			elements = append(elements, ast.DestructureElement{Kind: ast.DestructurePositional, Name: name, Sp: spanFrom(elStart, p.endPos())})
		case p.cur().Type == token.LBRACKET:
			nested, err := p.parseDestructurePattern()
			if err != nil {
				return nil, err
			}
			elements = append(elements, ast.DestructureElement{Kind: ast.DestructureNested, Nested: nested, Sp: spanFrom(elStart, p.endPos())})
		default:
			return nil, rillerr.NewParseError(rillerr.ParseInvalidDestructure, elStart, "not a destructure pattern")
		}
		p.skipNewlines()
		if p.cur().Type == token.COMMA {
			p.next()
			p.skipNewlines()
			continue
		}
		break
	}
	if len(elements) == 0 {
		return nil, rillerr.NewParseError(rillerr.ParseInvalidDestructure, start, "empty destructure pattern")
	}
	if _, err := p.expect(token.RBRACKET); err != nil {
		return nil, err
	}
	return &ast.DestructureExpr{Elements: elements, Sp: spanFrom(start, p.endPos())}, nil
}

// tryParseSliceTarget attempts "[start:stop:step]" in pipe-target
// position. Backtracks when the brackets hold a collection literal.
func (p *Parser) tryParseSliceTarget() (ast.Expression, bool, error) {
	mark := p.save()
	start := p.cur().Pos()
	p.next() // [
	p.skipNewlines()

	// An identifier followed by ":" is a dict key, not a slice bound.
	if p.cur().Type == token.IDENT && p.peek(1).Type == token.COLON {
		p.restore(mark)
		return nil, false, nil
	}

	sl, err := p.parseSliceBounds(start)
	if err != nil {
		p.restore(mark)
		return nil, false, nil
	}
	return &ast.SliceExpr{Start: sl.Start, Stop: sl.Stop, Step: sl.Step, Sp: sl.Sp}, true, nil
}

// parseSliceBounds parses "start?:stop?(:step)?]" with the opening
// bracket already consumed. Returns an error when the contents are not
// slice-shaped (no top-level colon).
func (p *Parser) parseSliceBounds(start token.Position) (*ast.BracketSlice, error) {
	var startE, stopE, stepE ast.Expression
	var err error

	if p.cur().Type != token.COLON {
		startE, err = p.parseExpression(precLowest)
		if err != nil {
			return nil, err
		}
	}
	if p.cur().Type != token.COLON {
		return nil, rillerr.NewParseError(rillerr.ParseUnexpectedToken, p.cur().Pos(), "not a slice")
	}
	p.next() // :
	if p.cur().Type != token.COLON && p.cur().Type != token.RBRACKET {
		stopE, err = p.parseExpression(precLowest)
		if err != nil {
			return nil, err
		}
	}
	if p.cur().Type == token.COLON {
		p.next()
		if p.cur().Type != token.RBRACKET {
			stepE, err = p.parseExpression(precLowest)
			if err != nil {
				return nil, err
			}
		}
	}
	if _, err := p.expect(token.RBRACKET); err != nil {
		return nil, err
	}
	return &ast.BracketSlice{Start: startE, Stop: stopE, Step: stepE, Sp: spanFrom(start, p.endPos())}, nil
}
