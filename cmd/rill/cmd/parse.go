package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcrsr/rill/pkg/rill"
)

var parseCmd = &cobra.Command{
	Use:   "parse [file]",
	Short: "Parse a Rill file and print the AST",
	Args:  cobra.MaximumNArgs(1),
	RunE:  parseScript,
}

func init() {
	rootCmd.AddCommand(parseCmd)
	parseCmd.Flags().StringVarP(&evalExpr, "eval", "e", "", "parse inline code instead of reading from file")
}

func parseScript(_ *cobra.Command, args []string) error {
	source, filename, err := readInput(args)
	if err != nil {
		return err
	}

	program, err := rill.Parse(source)
	if err != nil {
		printScriptError(err, source, filename)
		return err
	}
	fmt.Println(program.String())
	return nil
}
