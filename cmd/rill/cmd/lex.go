package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	rillerr "github.com/rcrsr/rill/internal/errors"
	"github.com/rcrsr/rill/internal/lexer"
	"github.com/rcrsr/rill/pkg/token"
)

var lexCmd = &cobra.Command{
	Use:   "lex [file]",
	Short: "Tokenize a Rill file and print the token stream",
	Args:  cobra.MaximumNArgs(1),
	RunE:  lexScript,
}

func init() {
	rootCmd.AddCommand(lexCmd)
	lexCmd.Flags().StringVarP(&evalExpr, "eval", "e", "", "tokenize inline code instead of reading from file")
}

func lexScript(_ *cobra.Command, args []string) error {
	source, filename, err := readInput(args)
	if err != nil {
		return err
	}

	toks, lexErrs := lexer.Tokenize(source)
	for _, tok := range toks {
		if tok.Type == token.NEWLINE {
			fmt.Printf("%-12s %s\n", tok.Type, tok.Span.Start)
			continue
		}
		fmt.Printf("%-12s %-20q %s\n", tok.Type, tok.Literal, tok.Span.Start)
	}

	if len(lexErrs) > 0 {
		for _, le := range lexErrs {
			fmt.Fprintf(os.Stderr, "%s:\n%s\n", filename, rillerr.Format(&le.ScriptError, source, true))
		}
		return fmt.Errorf("lexing failed with %d error(s)", len(lexErrs))
	}
	return nil
}
