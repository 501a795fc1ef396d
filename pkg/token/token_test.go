package token

import "testing"

func TestLookupIdent(t *testing.T) {
	tests := []struct {
		ident string
		want  Type
	}{
		{"if", IF},
		{"while", WHILE},
		{"fold", FOLD},
		{"pass", PASS},
		{"true", TRUE},
		{"log", IDENT},
		{"iffy", IDENT},
		{"Map", IDENT}, // keywords are case-sensitive
	}
	for _, tt := range tests {
		if got := LookupIdent(tt.ident); got != tt.want {
			t.Errorf("LookupIdent(%q): got %s, want %s", tt.ident, got, tt.want)
		}
	}
}

func TestTypeString(t *testing.T) {
	tests := []struct {
		t    Type
		want string
	}{
		{ARROW, "->"},
		{CAPTURE, ":>"},
		{DOTCARET, ".^"},
		{COALESCE, "??"},
		{EOF, "EOF"},
		{PIPEVAR, "PIPEVAR"},
	}
	for _, tt := range tests {
		if got := tt.t.String(); got != tt.want {
			t.Errorf("got %q, want %q", got, tt.want)
		}
	}
}

func TestPositionString(t *testing.T) {
	p := Position{Line: 3, Column: 14, Offset: 42}
	if got := p.String(); got != "3:14" {
		t.Errorf("got %q", got)
	}
	s := Span{Start: p, End: Position{Line: 3, Column: 20}}
	if got := s.String(); got != "3:14-3:20" {
		t.Errorf("got %q", got)
	}
}
