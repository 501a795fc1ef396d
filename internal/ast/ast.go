// Package ast defines the Abstract Syntax Tree node types for Rill.
//
// Nodes are immutable once produced by the parser. Every node carries a
// source span for diagnostics; spans are ignored by structural equality
// (see Equal).
package ast

import (
	"strings"

	"github.com/rcrsr/rill/pkg/token"
)

// Node is the base interface for all AST nodes.
type Node interface {
	// Span returns the source range covered by the node.
	Span() token.Span

	// String returns a source-like rendering for debugging and testing.
	String() string
}

// Expression is any node that produces a value.
type Expression interface {
	Node
	expressionNode()
}

// Body is an ordered sequence of statements; it is the root of a parsed
// program and also the body of blocks, closures and loops.
type Body struct {
	Statements []Statement
	Sp         token.Span
}

func (b *Body) Span() token.Span { return b.Sp }
func (b *Body) String() string {
	var out []string
	for _, s := range b.Statements {
		out = append(out, s.String())
	}
	return strings.Join(out, "\n")
}

// Statement is a single step of a body: an expression statement,
// optionally wrapped with annotations.
type Statement interface {
	Node
	statementNode()
}

// ExpressionStatement wraps an expression evaluated for its value, which
// becomes the running pipe value of the enclosing body.
type ExpressionStatement struct {
	Expression Expression
	Sp         token.Span
}

func (s *ExpressionStatement) statementNode()   {}
func (s *ExpressionStatement) Span() token.Span { return s.Sp }
func (s *ExpressionStatement) String() string   { return s.Expression.String() }

// AnnotationArg is one argument of a ^(…) annotation list: either a
// named key/value pair or a spread of a dict.
type AnnotationArg interface {
	Node
	annotationArgNode()
}

// NamedArg is "key: value" inside an annotation list.
type NamedArg struct {
	Name  string
	Value Expression
	Sp    token.Span
}

func (a *NamedArg) annotationArgNode() {}
func (a *NamedArg) Span() token.Span   { return a.Sp }
func (a *NamedArg) String() string     { return a.Name + ": " + a.Value.String() }

// SpreadArg is "*expr" inside an annotation list; the expression must
// evaluate to a dict whose keys become annotation names.
type SpreadArg struct {
	Expression Expression
	Sp         token.Span
}

func (a *SpreadArg) annotationArgNode() {}
func (a *SpreadArg) Span() token.Span   { return a.Sp }
func (a *SpreadArg) String() string     { return "*" + a.Expression.String() }

// AnnotatedStatement is a statement prefixed with ^(…) annotations. The
// annotations are pushed as a frame for the dynamic extent of the
// statement.
type AnnotatedStatement struct {
	Annotations []AnnotationArg
	Statement   *ExpressionStatement
	Sp          token.Span
}

func (s *AnnotatedStatement) statementNode()   {}
func (s *AnnotatedStatement) Span() token.Span { return s.Sp }
func (s *AnnotatedStatement) String() string {
	var args []string
	for _, a := range s.Annotations {
		args = append(args, a.String())
	}
	return "^(" + strings.Join(args, ", ") + ") " + s.Statement.String()
}
