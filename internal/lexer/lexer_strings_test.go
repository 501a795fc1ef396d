package lexer

import (
	"testing"

	rillerr "github.com/rcrsr/rill/internal/errors"
	"github.com/rcrsr/rill/pkg/token"
)

func firstString(t *testing.T, input string) token.Token {
	t.Helper()
	toks := tokenize(t, input)
	if toks[0].Type != token.STRING {
		t.Fatalf("%q: got %s, want STRING", input, toks[0].Type)
	}
	return toks[0]
}

func TestSimpleStringEscapes(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{`"hello"`, "hello"},
		{`""`, ""},
		{`"a\nb"`, "a\nb"},
		{`"a\tb"`, "a\tb"},
		{`"a\rb"`, "a\rb"},
		{`"a\\b"`, `a\b`},
		{`"say \"hi\""`, `say "hi"`},
		{`"it\'s"`, "it's"},
	}

	for _, tt := range tests {
		tok := firstString(t, tt.input)
		if tt.want == "" {
			// An empty literal carries no parts at all.
			if len(tok.Parts) != 0 {
				t.Fatalf("%q: expected no parts, got %#v", tt.input, tok.Parts)
			}
			continue
		}
		if len(tok.Parts) != 1 || tok.Parts[0].Interp {
			t.Fatalf("%q: expected one text part", tt.input)
		}
		if tok.Parts[0].Text != tt.want {
			t.Errorf("%q: got %q, want %q", tt.input, tok.Parts[0].Text, tt.want)
		}
	}
}

func TestEmptyStringHasNoParts(t *testing.T) {
	tok := firstString(t, `""`)
	if len(tok.Parts) != 0 && (len(tok.Parts) != 1 || tok.Parts[0].Text != "") {
		t.Fatalf("expected no content, got %#v", tok.Parts)
	}
}

func TestBraceEscapes(t *testing.T) {
	tok := firstString(t, `"a {{b}} c"`)
	if len(tok.Parts) != 1 || tok.Parts[0].Text != "a {b} c" {
		t.Fatalf("got %#v", tok.Parts)
	}
}

func TestInterpolationParts(t *testing.T) {
	tok := firstString(t, `"x: {$x}, y: {$y}"`)
	wantInterp := []bool{false, true, false, true}
	if len(tok.Parts) != 4 {
		t.Fatalf("part count: got %d, want 4", len(tok.Parts))
	}
	for i, want := range wantInterp {
		if tok.Parts[i].Interp != want {
			t.Errorf("part %d: interp=%v, want %v", i, tok.Parts[i].Interp, want)
		}
	}
	if tok.Parts[1].Source != "$x" || tok.Parts[3].Source != "$y" {
		t.Errorf("interp sources: %q, %q", tok.Parts[1].Source, tok.Parts[3].Source)
	}
}

func TestInterpolationNestedBraces(t *testing.T) {
	tok := firstString(t, `"v: {[a: 1] -> {pass}}"`)
	if len(tok.Parts) != 2 || !tok.Parts[1].Interp {
		t.Fatalf("got %#v", tok.Parts)
	}
	if tok.Parts[1].Source != "[a: 1] -> {pass}" {
		t.Errorf("source: %q", tok.Parts[1].Source)
	}
}

func TestTripleQuoted(t *testing.T) {
	tok := firstString(t, "\"\"\"hello\"\"\"")
	if !tok.Multiline {
		t.Fatal("expected multiline flag")
	}
	if tok.Parts[0].Text != "hello" {
		t.Errorf("got %q", tok.Parts[0].Text)
	}
}

func TestTripleQuotedOpeningNewlineSkip(t *testing.T) {
	tok := firstString(t, "\"\"\"\nhello\n\"\"\"")
	if tok.Parts[0].Text != "hello\n" {
		t.Errorf("got %q, want %q", tok.Parts[0].Text, "hello\n")
	}
}

func TestTripleQuotedVerbatim(t *testing.T) {
	// Quotes and backslashes need no escaping inside triple quotes.
	tok := firstString(t, "\"\"\"a \"quote\" and \\ slash\"\"\"")
	if tok.Parts[0].Text != "a \"quote\" and \\ slash" {
		t.Errorf("got %q", tok.Parts[0].Text)
	}
}

func TestTripleQuotedInterpolation(t *testing.T) {
	tok := firstString(t, "\"\"\"\nvalue: {$v}\n\"\"\"")
	if len(tok.Parts) != 3 || !tok.Parts[1].Interp || tok.Parts[1].Source != "$v" {
		t.Fatalf("got %#v", tok.Parts)
	}
}

func TestUnterminatedString(t *testing.T) {
	for _, input := range []string{`"abc`, "\"abc\ndef\"", "\"\"\"abc"} {
		_, errs := Tokenize(input)
		if len(errs) == 0 {
			t.Errorf("%q: expected a lexer error", input)
			continue
		}
		if errs[0].ID != rillerr.LexUnterminatedString {
			t.Errorf("%q: got %s, want %s", input, errs[0].ID, rillerr.LexUnterminatedString)
		}
	}
}

func TestTripleQuoteInsideInterpolation(t *testing.T) {
	_, errs := Tokenize("\"\"\"x {\"\"\"} y\"\"\"")
	if len(errs) == 0 {
		t.Fatal("expected a lexer error")
	}
	if errs[0].ID != rillerr.LexTripleQuoteInInterp {
		t.Errorf("got %s, want %s", errs[0].ID, rillerr.LexTripleQuoteInInterp)
	}
}

func TestUnterminatedInterpolationIsMarked(t *testing.T) {
	// The closing quote cuts the interpolation short; the lexer marks
	// the part and leaves the diagnosis to the parser.
	toks, _ := Tokenize(`"a {1 + 2" -> x`)
	if toks[0].Type != token.STRING {
		t.Fatalf("got %s", toks[0].Type)
	}
	var found bool
	for _, p := range toks[0].Parts {
		if p.Interp && p.Unterminated {
			found = true
		}
	}
	if !found {
		t.Fatal("expected an unterminated interpolation part")
	}
}

func TestInvalidEscape(t *testing.T) {
	_, errs := Tokenize(`"a\qb"`)
	if len(errs) == 0 {
		t.Fatal("expected a lexer error")
	}
	if errs[0].ID != rillerr.LexUnexpectedChar {
		t.Errorf("got %s", errs[0].ID)
	}
}
