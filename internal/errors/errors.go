// Package errors defines the stable diagnostic surface of the Rill engine.
//
// Every error the engine can surface carries a stable ID in one of four
// namespaces: RILL-L (lexer), RILL-P (parser), RILL-C (checker, reserved
// for the external linter) and RILL-R (runtime). IDs are validated at
// construction: building an error value with an unknown ID, or with an ID
// from the wrong namespace for its category, is a programmer error and
// panics.
package errors

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rcrsr/rill/pkg/token"
)

// ID is a stable error identifier such as "RILL-R005".
type ID string

// Lexer error IDs.
const (
	LexUnexpectedChar      ID = "RILL-L001"
	LexUnterminatedString  ID = "RILL-L002"
	LexInvalidNumber       ID = "RILL-L003"
	LexTripleQuoteInInterp ID = "RILL-L004"
	LexInvalidUTF8         ID = "RILL-L005"
)

// Parser error IDs.
const (
	ParseUnexpectedToken     ID = "RILL-P001"
	ParseEmptyInterpolation  ID = "RILL-P002"
	ParseUnterminatedInterp  ID = "RILL-P003"
	ParseInvalidDestructure  ID = "RILL-P004"
	ParseExpectedToken       ID = "RILL-P005"
	ParseInvalidAnnotation   ID = "RILL-P006"
	ParseInvalidNumber       ID = "RILL-P007"
	ParseUnterminatedElement ID = "RILL-P008"
)

// Checker error IDs. The static checker lives outside the core; only its
// namespace is reserved here.
const (
	CheckBreakInParallel ID = "RILL-C001"
)

// Runtime error IDs.
const (
	RunTypeMismatch        ID = "RILL-R001"
	RunNotCallable         ID = "RILL-R002"
	RunInvalidMethodTarget ID = "RILL-R003"
	RunUncaughtSignal      ID = "RILL-R004"
	RunUndefinedVariable   ID = "RILL-R005"
	RunUnknownFunction     ID = "RILL-R006"
	RunUnknownMethod       ID = "RILL-R007"
	RunUndefinedAnnotation ID = "RILL-R008"
	RunMissingField        ID = "RILL-R009"
	RunTimeout             ID = "RILL-R010"
	RunAborted             ID = "RILL-R011"
	RunAutoException       ID = "RILL-R012"
	RunIterationLimit      ID = "RILL-R013"
	RunHostFailure         ID = "RILL-R014"
)

var registry = map[ID]string{
	LexUnexpectedChar:      "L",
	LexUnterminatedString:  "L",
	LexInvalidNumber:       "L",
	LexTripleQuoteInInterp: "L",
	LexInvalidUTF8:         "L",

	ParseUnexpectedToken:     "P",
	ParseEmptyInterpolation:  "P",
	ParseUnterminatedInterp:  "P",
	ParseInvalidDestructure:  "P",
	ParseExpectedToken:       "P",
	ParseInvalidAnnotation:   "P",
	ParseInvalidNumber:       "P",
	ParseUnterminatedElement: "P",

	CheckBreakInParallel: "C",

	RunTypeMismatch:        "R",
	RunNotCallable:         "R",
	RunInvalidMethodTarget: "R",
	RunUncaughtSignal:      "R",
	RunUndefinedVariable:   "R",
	RunUnknownFunction:     "R",
	RunUnknownMethod:       "R",
	RunUndefinedAnnotation: "R",
	RunMissingField:        "R",
	RunTimeout:             "R",
	RunAborted:             "R",
	RunAutoException:       "R",
	RunIterationLimit:      "R",
	RunHostFailure:         "R",
}

// Category returns the namespace letter of a registered ID ("L", "P",
// "C" or "R") and whether the ID is known at all.
func (id ID) Category() (string, bool) {
	cat, ok := registry[id]
	return cat, ok
}

func mustCategory(id ID, want string) {
	cat, ok := registry[id]
	if !ok {
		panic(fmt.Sprintf("errors: unknown error ID %q", id))
	}
	if cat != want {
		panic(fmt.Sprintf("errors: ID %q belongs to category %s, not %s", id, cat, want))
	}
}

// ScriptError is the shape shared by every diagnostic the engine emits.
type ScriptError struct {
	ID      ID
	Message string
	Pos     token.Position
	// Context carries structured details about the failure, such as the
	// matched auto-exception pattern or the iteration limit that tripped.
	Context map[string]any
	// Optional presentation metadata the host may render.
	Cause      string
	Resolution string
	HelpURL    string
}

// Error implements the error interface.
func (e *ScriptError) Error() string {
	if e.Pos.Line > 0 {
		return fmt.Sprintf("%s: %s at %s", e.ID, e.Message, e.Pos)
	}
	return fmt.Sprintf("%s: %s", e.ID, e.Message)
}

// WithContext attaches a structured context entry and returns the error.
func (e *ScriptError) WithContext(key string, value any) *ScriptError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// LexerError is a tokenization failure (RILL-L namespace).
type LexerError struct{ ScriptError }

// ParseError is a syntax failure (RILL-P namespace).
type ParseError struct{ ScriptError }

// CheckerError is a static-analysis failure (RILL-C namespace).
type CheckerError struct{ ScriptError }

// RuntimeError is an evaluation failure (RILL-R namespace).
type RuntimeError struct{ ScriptError }

// NewLexerError builds a lexer error. The ID must be in the RILL-L
// namespace.
func NewLexerError(id ID, pos token.Position, format string, args ...any) *LexerError {
	mustCategory(id, "L")
	return &LexerError{ScriptError{ID: id, Message: fmt.Sprintf(format, args...), Pos: pos}}
}

// NewParseError builds a parse error. The ID must be in the RILL-P
// namespace.
func NewParseError(id ID, pos token.Position, format string, args ...any) *ParseError {
	mustCategory(id, "P")
	return &ParseError{ScriptError{ID: id, Message: fmt.Sprintf(format, args...), Pos: pos}}
}

// NewCheckerError builds a checker error. The ID must be in the RILL-C
// namespace.
func NewCheckerError(id ID, pos token.Position, format string, args ...any) *CheckerError {
	mustCategory(id, "C")
	return &CheckerError{ScriptError{ID: id, Message: fmt.Sprintf(format, args...), Pos: pos}}
}

// NewRuntimeError builds a runtime error. The ID must be in the RILL-R
// namespace.
func NewRuntimeError(id ID, pos token.Position, format string, args ...any) *RuntimeError {
	mustCategory(id, "R")
	return &RuntimeError{ScriptError{ID: id, Message: fmt.Sprintf(format, args...), Pos: pos}}
}

// WithContext attaches a structured context entry and returns the error.
func (e *RuntimeError) WithContext(key string, value any) *RuntimeError {
	e.ScriptError.WithContext(key, value)
	return e
}

// Format renders the error with source context: the offending line, a
// caret under the failing column, and the message. When color is true,
// ANSI escapes highlight the caret and message for terminal output.
func Format(err *ScriptError, source string, color bool) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("[%s] error at %s\n", err.ID, err.Pos))

	line := sourceLine(source, err.Pos.Line)
	if line != "" {
		lineNum := fmt.Sprintf("%4d | ", err.Pos.Line)
		sb.WriteString(lineNum)
		sb.WriteString(line)
		sb.WriteString("\n")

		col := err.Pos.Column
		if col < 1 {
			col = 1
		}
		sb.WriteString(strings.Repeat(" ", len(lineNum)+col-1))
		if color {
			sb.WriteString("\033[1;31m")
		}
		sb.WriteString("^")
		if color {
			sb.WriteString("\033[0m")
		}
		sb.WriteString("\n")
	}

	if color {
		sb.WriteString("\033[1m")
	}
	sb.WriteString(err.Message)
	if color {
		sb.WriteString("\033[0m")
	}

	if len(err.Context) > 0 {
		keys := make([]string, 0, len(err.Context))
		for k := range err.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sb.WriteString(fmt.Sprintf("\n  %s: %v", k, err.Context[k]))
		}
	}

	return sb.String()
}

func sourceLine(source string, lineNum int) string {
	if source == "" {
		return ""
	}
	lines := strings.Split(source, "\n")
	if lineNum < 1 || lineNum > len(lines) {
		return ""
	}
	return lines[lineNum-1]
}
