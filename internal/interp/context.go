package interp

import (
	"context"
	"time"

	"github.com/dlclark/regexp2"

	rillerr "github.com/rcrsr/rill/internal/errors"
	"github.com/rcrsr/rill/pkg/token"
)

// Observability bundles the optional event hooks a host may install.
// Every hook runs synchronously on the evaluation goroutine.
type Observability struct {
	OnStepStart      func(index int, source string, pos token.Position)
	OnStepEnd        func(index int, value Value, elapsed time.Duration)
	OnHostCall       func(name string, args []Value)
	OnFunctionReturn func(name string, value Value)
	OnCapture        func(name string, value Value)
	OnError          func(err error)
}

// Callbacks holds the plain host callbacks.
type Callbacks struct {
	// OnLog receives the argument of every log() call.
	OnLog func(value Value)
}

// AutoException is a compiled pattern matched against string-typed
// statement values; a match halts execution.
type AutoException struct {
	Pattern string
	Regex   *regexp2.Regexp
}

// rootState is the execution-wide state shared by every scope in one
// context tree: registries, hooks, budget limits and the annotation
// stack.
type rootState struct {
	functions      map[string]Callable
	methods        map[string]*Method
	callbacks      Callbacks
	observability  Observability
	timeout        time.Duration
	autoExceptions []AutoException
	signal         context.Context
	annotations    []map[string]Value
}

// Context is a runtime scope: a stack-linked record of variables with
// their type locks, plus the shared execution state. Closures capture a
// Context as their defining scope.
type Context struct {
	parent *Context
	// barrier marks a closure-invocation boundary: captures never
	// cross it, which keeps a callable's defining scope immutable
	// during invocation.
	barrier bool

	variables     map[string]Value
	variableTypes map[string]string

	pipeValue Value
	root      *rootState
}

// NewContext creates a fresh root context with the builtin registries
// installed.
func NewContext() *Context {
	root := &rootState{
		functions:   make(map[string]Callable),
		methods:     make(map[string]*Method),
		annotations: []map[string]Value{{}},
	}
	ctx := &Context{
		variables:     make(map[string]Value),
		variableTypes: make(map[string]string),
		pipeValue:     EmptyString(),
		root:          root,
	}
	registerBuiltins(root)
	registerBuiltinMethods(root)
	return ctx
}

// Configuration ---------------------------------------------------------

// SetCallbacks installs the host callbacks.
func (c *Context) SetCallbacks(cb Callbacks) { c.root.callbacks = cb }

// SetObservability installs the event hooks.
func (c *Context) SetObservability(o Observability) { c.root.observability = o }

// SetTimeout sets the per-host-call budget. Zero disables it.
func (c *Context) SetTimeout(d time.Duration) { c.root.timeout = d }

// Timeout returns the per-host-call budget.
func (c *Context) Timeout() time.Duration { return c.root.timeout }

// SetSignal installs the cooperative cancellation handle.
func (c *Context) SetSignal(sig context.Context) { c.root.signal = sig }

// AddAutoException compiles and installs a pattern matched against
// string-typed statement values. Returns an error for invalid patterns.
func (c *Context) AddAutoException(pattern string) error {
	re, err := regexp2.Compile(pattern, regexp2.RE2)
	if err != nil {
		return err
	}
	c.root.autoExceptions = append(c.root.autoExceptions, AutoException{Pattern: pattern, Regex: re})
	return nil
}

// RegisterFunction installs a callable under name, replacing any
// builtin of the same name.
func (c *Context) RegisterFunction(name string, fn Callable) {
	c.root.functions[name] = fn
}

// RegisterMethod installs a receiver-taking callable under name.
func (c *Context) RegisterMethod(name string, m *Method) {
	c.root.methods[name] = m
}

// Functions returns the flattened function registry.
func (c *Context) Functions() map[string]Callable { return c.root.functions }

// Define sets an initial variable binding with its type lock.
func (c *Context) Define(name string, v Value) {
	c.variables[name] = v
	c.variableTypes[name] = InferType(v)
}

// Scoping ---------------------------------------------------------------

// NewChild creates a nested scope (block or loop-iteration scope). The
// pipe value is inherited.
func (c *Context) NewChild() *Context {
	return &Context{
		parent:        c,
		variables:     make(map[string]Value),
		variableTypes: make(map[string]string),
		pipeValue:     c.pipeValue,
		root:          c.root,
	}
}

// NewCallScope creates the scope for a script-callable invocation. Its
// parent is the callable's defining scope and it is a capture barrier.
func NewCallScope(defining *Context) *Context {
	return &Context{
		parent:        defining,
		barrier:       true,
		variables:     make(map[string]Value),
		variableTypes: make(map[string]string),
		pipeValue:     EmptyString(),
		root:          defining.root,
	}
}

// Snapshot copies the scope's local bindings, preserving the parent
// chain. Closure literals capture a snapshot so that later captures
// into the defining scope stay invisible to the closure.
func (c *Context) Snapshot() *Context {
	vars := make(map[string]Value, len(c.variables))
	for k, v := range c.variables {
		vars[k] = v
	}
	types := make(map[string]string, len(c.variableTypes))
	for k, v := range c.variableTypes {
		types[k] = v
	}
	return &Context{
		parent:        c.parent,
		barrier:       c.barrier,
		variables:     vars,
		variableTypes: types,
		pipeValue:     c.pipeValue,
		root:          c.root,
	}
}

// Get resolves a name through the scope chain.
func (c *Context) Get(name string) (Value, bool) {
	for s := c; s != nil; s = s.parent {
		if v, ok := s.variables[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// Capture stores a value under name: in the innermost scope that
// already holds the name (never crossing a call barrier), otherwise in
// the current scope. The name's type locks on first assignment;
// subsequent captures must carry the same type.
func (c *Context) Capture(name string, v Value, pos token.Position) error {
	target := c
	for s := c; s != nil; s = s.parent {
		if _, ok := s.variables[name]; ok {
			target = s
			break
		}
		if s.barrier {
			break
		}
	}

	actual := InferType(v)
	if locked, ok := target.variableTypes[name]; ok && locked != actual {
		return rillerr.NewRuntimeError(rillerr.RunTypeMismatch, pos,
			"cannot capture %s into $%s: variable is locked to %s", actual, name, locked)
	}
	target.variables[name] = v
	target.variableTypes[name] = actual
	if fire := c.root.observability.OnCapture; fire != nil {
		fire(name, v)
	}
	return nil
}

// Annotations -----------------------------------------------------------

// annotationTop returns the current annotation frame.
func (c *Context) annotationTop() map[string]Value {
	stack := c.root.annotations
	return stack[len(stack)-1]
}

// pushAnnotations merges a new frame over the current one (inner keys
// override outer) and pushes it.
func (c *Context) pushAnnotations(frame map[string]Value) {
	merged := make(map[string]Value, len(c.annotationTop())+len(frame))
	for k, v := range c.annotationTop() {
		merged[k] = v
	}
	for k, v := range frame {
		merged[k] = v
	}
	c.root.annotations = append(c.root.annotations, merged)
}

func (c *Context) popAnnotations() {
	if len(c.root.annotations) > 1 {
		c.root.annotations = c.root.annotations[:len(c.root.annotations)-1]
	}
}

// Cancellation ----------------------------------------------------------

// checkCancelled returns an abort error when the cancellation handle
// has fired.
func (c *Context) checkCancelled(pos token.Position) error {
	if sig := c.root.signal; sig != nil {
		if err := sig.Err(); err != nil {
			return rillerr.NewRuntimeError(rillerr.RunAborted, pos, "execution aborted").
				WithContext("cause", err.Error())
		}
	}
	return nil
}

// PipeValue returns the current pipe value.
func (c *Context) PipeValue() Value { return c.pipeValue }

// SetPipeValue replaces the current pipe value.
func (c *Context) SetPipeValue(v Value) { c.pipeValue = v }

// VariablesSnapshot returns a copy of the scope's local bindings; the
// host receives this as the result of execute.
func (c *Context) VariablesSnapshot() map[string]Value {
	out := make(map[string]Value, len(c.variables))
	for k, v := range c.variables {
		out[k] = v
	}
	return out
}
