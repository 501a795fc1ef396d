// Package rill is the public embedding API of the Rill language core.
//
// A host creates a runtime context with NewContext, parses a program
// with Parse, and runs it with Execute (or statement by statement with
// NewStepper). Host capability enters the language exclusively through
// the context: functions, methods, variables, observability hooks,
// cancellation, timeouts and auto-exceptions.
package rill

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rcrsr/rill/internal/ast"
	"github.com/rcrsr/rill/internal/interp"
	"github.com/rcrsr/rill/internal/parser"
	"github.com/rcrsr/rill/pkg/token"
)

// Value is a Rill runtime value.
type Value = interp.Value

// Context is a Rill runtime context. A fresh context is required per
// top-level Execute.
type Context = interp.Context

// Program is a parsed Rill program.
type Program = ast.Body

// Callbacks carries the plain host callbacks.
type Callbacks = interp.Callbacks

// Observability carries the optional event hooks.
type Observability = interp.Observability

// HostFunc is a raw host function: it receives the evaluated arguments
// and returns any Go value, which is converted into a runtime value.
type HostFunc func(args []Value, ctx *Context) (any, error)

// MethodFunc is a host method: a HostFunc that additionally receives
// the receiver.
type MethodFunc func(recv Value, args []Value, ctx *Context) (any, error)

// ParamDef declares one parameter of a typed host function.
type ParamDef struct {
	Name         string
	Type         string // one of string, number, bool, list, dict, tuple, vector; empty accepts any
	Description  string
	DefaultValue any
	HasDefault   bool
}

// FunctionDef declares a typed host function with a parameter schema
// and an optional declared return type.
type FunctionDef struct {
	Description string
	Params      []ParamDef
	ReturnType  string // one of string, number, bool, list, dict, vector, any; empty means any
	Fn          HostFunc
}

// Options configures a new runtime context.
type Options struct {
	// Variables seeds initial name → value bindings; values are
	// converted from Go.
	Variables map[string]any
	// Functions maps names to either a HostFunc (raw) or a FunctionDef
	// (typed).
	Functions map[string]any
	// Methods maps names to receiver-taking host methods.
	Methods map[string]MethodFunc
	// Callbacks carries the host callbacks.
	Callbacks Callbacks
	// Observability carries any subset of the event hooks.
	Observability Observability
	// Timeout bounds each host invocation; zero disables it.
	Timeout time.Duration
	// AutoExceptions is a list of regex patterns matched against
	// string-typed statement values; a match halts execution.
	AutoExceptions []string
	// Signal is the cooperative cancellation handle.
	Signal context.Context
	// RequireDescriptions makes construction fail unless every
	// registered function and parameter carries a non-whitespace
	// description.
	RequireDescriptions bool
}

var validReturnTypes = map[string]bool{
	"string": true,
	"number": true,
	"bool":   true,
	"list":   true,
	"dict":   true,
	"vector": true,
	"any":    true,
}

var validParamTypes = map[string]bool{
	"string": true,
	"number": true,
	"bool":   true,
	"list":   true,
	"dict":   true,
	"tuple":  true,
	"vector": true,
}

// NewContext validates the options and builds a runtime context with
// the builtins plus all host registrations installed.
func NewContext(opts Options) (*Context, error) {
	ctx := interp.NewContext()
	ctx.SetCallbacks(opts.Callbacks)
	ctx.SetObservability(opts.Observability)
	ctx.SetTimeout(opts.Timeout)
	if opts.Signal != nil {
		ctx.SetSignal(opts.Signal)
	}

	for _, pattern := range opts.AutoExceptions {
		if err := ctx.AddAutoException(pattern); err != nil {
			return nil, fmt.Errorf("rill: invalid auto-exception pattern %q: %w", pattern, err)
		}
	}

	for name, raw := range opts.Variables {
		v, err := interp.FromGo(raw)
		if err != nil {
			return nil, fmt.Errorf("rill: variable %q: %w", name, err)
		}
		ctx.Define(name, v)
	}

	for name, def := range opts.Functions {
		callable, err := buildFunction(name, def, opts.RequireDescriptions)
		if err != nil {
			return nil, err
		}
		ctx.RegisterFunction(name, callable)
	}

	for name, fn := range opts.Methods {
		ctx.RegisterMethod(name, hostMethod(name, fn))
	}

	return ctx, nil
}

// buildFunction turns a registration value into an application
// callable, enforcing the option-validation rules.
func buildFunction(name string, def any, requireDescriptions bool) (*interp.ApplicationCallable, error) {
	switch d := def.(type) {
	case HostFunc:
		return buildRawFunction(name, d, requireDescriptions)
	case func(args []Value, ctx *Context) (any, error):
		return buildRawFunction(name, d, requireDescriptions)
	case FunctionDef:
		return buildTypedFunction(name, &d, requireDescriptions)
	case *FunctionDef:
		return buildTypedFunction(name, d, requireDescriptions)
	}
	return nil, fmt.Errorf("rill: function %q: unsupported registration type %T", name, def)
}

func buildRawFunction(name string, fn HostFunc, requireDescriptions bool) (*interp.ApplicationCallable, error) {
	if requireDescriptions {
		return nil, fmt.Errorf("rill: function %q requires a description", name)
	}
	return &interp.ApplicationCallable{
		Name:       name,
		ReturnType: "any",
		Raw:        true,
		Fn:         adaptHostFunc(fn),
	}, nil
}

func buildTypedFunction(name string, def *FunctionDef, requireDescriptions bool) (*interp.ApplicationCallable, error) {
	if def.Fn == nil {
		return nil, fmt.Errorf("rill: function %q has no implementation", name)
	}

	returnType := def.ReturnType
	if returnType == "" {
		returnType = "any"
	}
	if !validReturnTypes[returnType] {
		return nil, fmt.Errorf("rill: function %q declares invalid return type %q", name, def.ReturnType)
	}

	if requireDescriptions && strings.TrimSpace(def.Description) == "" {
		return nil, fmt.Errorf("rill: function %q requires a description", name)
	}

	params := make([]interp.HostParam, len(def.Params))
	for i, p := range def.Params {
		if p.Name == "" {
			return nil, fmt.Errorf("rill: function %q declares an unnamed parameter", name)
		}
		if p.Type != "" && !validParamTypes[p.Type] {
			return nil, fmt.Errorf("rill: function %q parameter %q declares invalid type %q", name, p.Name, p.Type)
		}
		if requireDescriptions && strings.TrimSpace(p.Description) == "" {
			return nil, fmt.Errorf("rill: function %q parameter %q requires a description", name, p.Name)
		}
		hp := interp.HostParam{
			Name:        p.Name,
			Type:        p.Type,
			Description: p.Description,
		}
		if p.HasDefault || p.DefaultValue != nil {
			dv, err := interp.FromGo(p.DefaultValue)
			if err != nil {
				return nil, fmt.Errorf("rill: function %q parameter %q: %w", name, p.Name, err)
			}
			hp.Default = dv
			hp.HasDefault = true
		}
		params[i] = hp
	}

	return &interp.ApplicationCallable{
		Name:        name,
		Description: def.Description,
		Params:      params,
		ReturnType:  returnType,
		Fn:          adaptHostFunc(def.Fn),
	}, nil
}

func adaptHostFunc(fn HostFunc) interp.HostFunc {
	return func(args []Value, ctx *Context, _ token.Position) (Value, error) {
		out, err := fn(args, ctx)
		if err != nil {
			return nil, err
		}
		return interp.FromGo(out)
	}
}

func hostMethod(name string, fn MethodFunc) *interp.Method {
	return &interp.Method{
		Name: name,
		Fn: func(_ *interp.Interpreter, ctx *Context, recv Value, args []Value, _ token.Position) (Value, error) {
			out, err := fn(recv, args, ctx)
			if err != nil {
				return nil, err
			}
			return interp.FromGo(out)
		},
	}
}

// Parse builds a program from source.
func Parse(source string) (*Program, error) {
	return parser.Parse(source)
}

// Result is the outcome of executing a program: the final statement's
// value and a snapshot of the top-level captured variables.
type Result struct {
	Value     Value
	Variables map[string]Value
}

// Execute runs a parsed program against a context.
func Execute(program *Program, ctx *Context) (*Result, error) {
	v, err := interp.New().EvalProgram(program, ctx)
	if err != nil {
		return nil, err
	}
	return &Result{Value: v, Variables: ctx.VariablesSnapshot()}, nil
}

// Run parses and executes source in one call.
func Run(source string, ctx *Context) (*Result, error) {
	program, err := Parse(source)
	if err != nil {
		return nil, err
	}
	return Execute(program, ctx)
}

// FormatValue renders a value for user-facing output: strings bare,
// everything else in literal form.
func FormatValue(v Value) string {
	return interp.Format(v)
}

// DeepEqual reports deep value equality.
func DeepEqual(a, b Value) bool {
	return interp.DeepEqual(a, b)
}

// FromGo converts a native Go value into a runtime value.
func FromGo(v any) (Value, error) {
	return interp.FromGo(v)
}

// ToGo converts a runtime value into a plain Go value.
func ToGo(v Value) any {
	return interp.ToGo(v)
}

// Stepper executes a program one top-level statement at a time.
type Stepper = interp.Stepper

// NewStepper creates a stepper for debugger-style execution.
func NewStepper(program *Program, ctx *Context) *Stepper {
	return interp.NewStepper(program, ctx)
}
