package errors

import (
	"strings"
	"testing"

	"github.com/rcrsr/rill/pkg/token"
)

func TestCategoryLookup(t *testing.T) {
	tests := []struct {
		id   ID
		cat  string
		know bool
	}{
		{LexUnterminatedString, "L", true},
		{ParseUnexpectedToken, "P", true},
		{CheckBreakInParallel, "C", true},
		{RunUndefinedVariable, "R", true},
		{ID("RILL-X999"), "", false},
	}
	for _, tt := range tests {
		cat, ok := tt.id.Category()
		if ok != tt.know || cat != tt.cat {
			t.Errorf("%s: got (%q, %v), want (%q, %v)", tt.id, cat, ok, tt.cat, tt.know)
		}
	}
}

func TestConstructorsAcceptMatchingIDs(t *testing.T) {
	pos := token.Position{Line: 2, Column: 3}

	le := NewLexerError(LexUnexpectedChar, pos, "bad char %q", "~")
	if le.ID != LexUnexpectedChar || le.Pos != pos {
		t.Errorf("lexer error: %+v", le)
	}
	pe := NewParseError(ParseExpectedToken, pos, "expected )")
	if pe.ID != ParseExpectedToken {
		t.Errorf("parse error: %+v", pe)
	}
	ce := NewCheckerError(CheckBreakInParallel, pos, "break in map")
	if ce.ID != CheckBreakInParallel {
		t.Errorf("checker error: %+v", ce)
	}
	re := NewRuntimeError(RunUnknownFunction, pos, "unknown function")
	if re.ID != RunUnknownFunction {
		t.Errorf("runtime error: %+v", re)
	}
}

func mustPanic(t *testing.T, name string, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Errorf("%s: expected panic", name)
		}
	}()
	fn()
}

func TestConstructorsRejectWrongCategory(t *testing.T) {
	pos := token.Position{Line: 1, Column: 1}

	mustPanic(t, "runtime ID in lexer error", func() {
		NewLexerError(RunUndefinedVariable, pos, "x")
	})
	mustPanic(t, "lexer ID in parse error", func() {
		NewParseError(LexUnexpectedChar, pos, "x")
	})
	mustPanic(t, "parse ID in runtime error", func() {
		NewRuntimeError(ParseUnexpectedToken, pos, "x")
	})
	mustPanic(t, "unknown ID", func() {
		NewRuntimeError(ID("RILL-R999"), pos, "x")
	})
}

func TestErrorString(t *testing.T) {
	re := NewRuntimeError(RunUndefinedVariable, token.Position{Line: 3, Column: 7}, "undefined variable $x")
	got := re.Error()
	if !strings.Contains(got, "RILL-R005") || !strings.Contains(got, "3:7") {
		t.Errorf("error string: %q", got)
	}
}

func TestWithContext(t *testing.T) {
	re := NewRuntimeError(RunIterationLimit, token.Position{}, "limit").
		WithContext("limit", 3).
		WithContext("iterations", 4)
	if re.Context["limit"] != 3 || re.Context["iterations"] != 4 {
		t.Errorf("context: %#v", re.Context)
	}
}

func TestFormatShowsSourceAndCaret(t *testing.T) {
	source := "1 + 2\n3 ~ 4\n5"
	le := NewLexerError(LexUnexpectedChar, token.Position{Line: 2, Column: 3}, "unexpected character %q", "~")

	out := Format(&le.ScriptError, source, false)
	if !strings.Contains(out, "3 ~ 4") {
		t.Errorf("missing source line:\n%s", out)
	}
	if !strings.Contains(out, "^") {
		t.Errorf("missing caret:\n%s", out)
	}
	if !strings.Contains(out, "RILL-L001") {
		t.Errorf("missing error ID:\n%s", out)
	}

	caretLine := ""
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "^") {
			caretLine = line
		}
	}
	srcLine := "   2 | 3 ~ 4"
	caretCol := strings.Index(caretLine, "^")
	tildeCol := strings.Index(srcLine, "~")
	if caretCol != tildeCol {
		t.Errorf("caret at %d, tilde at %d:\n%s", caretCol, tildeCol, out)
	}
}

func TestFormatIncludesContext(t *testing.T) {
	re := NewRuntimeError(RunAutoException, token.Position{Line: 1, Column: 1}, "halted").
		WithContext("pattern", "^Error")
	out := Format(&re.ScriptError, "x", false)
	if !strings.Contains(out, "pattern: ^Error") {
		t.Errorf("missing context:\n%s", out)
	}
}
