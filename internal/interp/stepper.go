package interp

import (
	"errors"

	"github.com/rcrsr/rill/internal/ast"
	rillerr "github.com/rcrsr/rill/internal/errors"
)

// Stepper executes a program one top-level statement at a time, for
// debugger-style hosts.
type Stepper struct {
	interp *Interpreter
	body   *ast.Body
	ctx    *Context
	index  int
	result Value
	err    error
}

// NewStepper creates a stepper over the program's top-level statements.
func NewStepper(body *ast.Body, ctx *Context) *Stepper {
	return &Stepper{interp: New(), body: body, ctx: ctx, result: EmptyString()}
}

// Done reports whether every statement has run (or a step failed).
func (s *Stepper) Done() bool {
	return s.err != nil || s.index >= len(s.body.Statements)
}

// Index returns the index of the next statement to run.
func (s *Stepper) Index() int { return s.index }

// Total returns the number of top-level statements.
func (s *Stepper) Total() int { return len(s.body.Statements) }

// Result returns the value of the last executed statement.
func (s *Stepper) Result() Value { return s.result }

// Err returns the first error a step produced, if any.
func (s *Stepper) Err() error { return s.err }

// Step executes the next statement and returns its value.
func (s *Stepper) Step() (Value, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.index >= len(s.body.Statements) {
		return s.result, nil
	}

	stmt := s.body.Statements[s.index]
	if err := s.ctx.checkCancelled(stmt.Span().Start); err != nil {
		s.err = err
		return nil, err
	}

	v, err := s.interp.evalStatement(s.index, stmt, s.ctx)
	if err != nil {
		var brk *BreakSignal
		var ret *ReturnSignal
		switch {
		case errors.As(err, &brk):
			err = rillerr.NewRuntimeError(rillerr.RunUncaughtSignal, stmt.Span().Start, "break outside of a loop")
		case errors.As(err, &ret):
			err = rillerr.NewRuntimeError(rillerr.RunUncaughtSignal, stmt.Span().Start, "return outside of a closure")
		}
		if fire := s.ctx.root.observability.OnError; fire != nil {
			fire(err)
		}
		s.err = err
		return nil, err
	}

	s.result = v
	s.ctx.pipeValue = v
	s.index++
	return v, nil
}
