package interp

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/gkampitakis/go-snaps/snaps"

	"github.com/rcrsr/rill/internal/parser"
)

// TestFixtures runs every program under testdata/fixtures and snapshots
// its final value (or error) with go-snaps. Fixtures whose name ends in
// _err are expected to fail.
func TestFixtures(t *testing.T) {
	pattern := filepath.Join("..", "..", "testdata", "fixtures", "*.rill")
	files, err := filepath.Glob(pattern)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) == 0 {
		t.Skip("no fixtures found")
	}
	sort.Strings(files)

	for _, file := range files {
		name := strings.TrimSuffix(filepath.Base(file), ".rill")
		t.Run(name, func(t *testing.T) {
			source, err := os.ReadFile(file)
			if err != nil {
				t.Fatal(err)
			}

			expectErr := strings.HasSuffix(name, "_err")

			program, err := parser.Parse(string(source))
			if err != nil {
				if !expectErr {
					t.Fatalf("parse: %v", err)
				}
				snaps.MatchSnapshot(t, fmt.Sprintf("error: %v", err))
				return
			}

			var logged []string
			ctx := NewContext()
			ctx.SetCallbacks(Callbacks{OnLog: func(v Value) {
				logged = append(logged, Format(v))
			}})

			v, err := New().EvalProgram(program, ctx)
			if err != nil {
				if !expectErr {
					t.Fatalf("eval: %v", err)
				}
				snaps.MatchSnapshot(t, fmt.Sprintf("error: %v", err))
				return
			}
			if expectErr {
				t.Fatalf("expected an error, got %s", v.Inspect())
			}

			var out strings.Builder
			for _, line := range logged {
				out.WriteString("log: " + line + "\n")
			}
			out.WriteString("value: " + v.Inspect())
			snaps.MatchSnapshot(t, out.String())
		})
	}
}

func TestMain(m *testing.M) {
	code := m.Run()
	snaps.Clean(m)
	os.Exit(code)
}
