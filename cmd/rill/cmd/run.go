package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	rillerr "github.com/rcrsr/rill/internal/errors"
	"github.com/rcrsr/rill/pkg/rill"
)

var (
	evalExpr string
	dumpAST  bool
)

var runCmd = &cobra.Command{
	Use:   "run [file]",
	Short: "Run a Rill file or expression",
	Long: `Execute a Rill program from a file or inline expression.

Examples:
  # Run a script file
  rill run pipeline.rill

  # Evaluate an inline expression
  rill run -e '"hello" -> .upper'

  # Run with AST dump (for debugging)
  rill run --dump-ast pipeline.rill`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScript,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&evalExpr, "eval", "e", "", "evaluate inline code instead of reading from file")
	runCmd.Flags().BoolVar(&dumpAST, "dump-ast", false, "dump the parsed AST (for debugging)")
}

// readInput resolves the program source from the -e flag or a file
// argument.
func readInput(args []string) (source, filename string, err error) {
	if evalExpr != "" {
		return evalExpr, "<eval>", nil
	}
	if len(args) == 1 {
		content, err := os.ReadFile(args[0])
		if err != nil {
			return "", "", fmt.Errorf("failed to read file %s: %w", args[0], err)
		}
		return string(content), args[0], nil
	}
	return "", "", fmt.Errorf("either provide a file path or use -e flag for inline code")
}

func runScript(_ *cobra.Command, args []string) error {
	source, filename, err := readInput(args)
	if err != nil {
		return err
	}

	program, err := rill.Parse(source)
	if err != nil {
		printScriptError(err, source, filename)
		return err
	}

	if dumpAST {
		fmt.Println("AST:")
		fmt.Println(program.String())
	}

	ctx, err := rill.NewContext(rill.Options{
		Callbacks: rill.Callbacks{
			OnLog: func(v rill.Value) {
				fmt.Fprintln(os.Stderr, rill.FormatValue(v))
			},
		},
	})
	if err != nil {
		return err
	}

	result, err := rill.Execute(program, ctx)
	if err != nil {
		printScriptError(err, source, filename)
		return err
	}

	fmt.Println(rill.FormatValue(result.Value))
	if verbose {
		for name, v := range result.Variables {
			fmt.Fprintf(os.Stderr, "$%s = %s\n", name, v.Inspect())
		}
	}
	return nil
}

// printScriptError renders engine diagnostics with source context and
// caret.
func printScriptError(err error, source, filename string) {
	var le *rillerr.LexerError
	var pe *rillerr.ParseError
	var re *rillerr.RuntimeError
	var script *rillerr.ScriptError
	switch {
	case errors.As(err, &le):
		script = &le.ScriptError
	case errors.As(err, &pe):
		script = &pe.ScriptError
	case errors.As(err, &re):
		script = &re.ScriptError
	default:
		fmt.Fprintln(os.Stderr, err)
		return
	}
	if filename != "" {
		fmt.Fprintf(os.Stderr, "%s:\n", filename)
	}
	fmt.Fprintln(os.Stderr, rillerr.Format(script, source, true))
}
