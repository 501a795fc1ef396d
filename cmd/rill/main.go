// Command rill is the command-line driver for the Rill scripting
// language.
package main

import (
	"os"

	"github.com/rcrsr/rill/cmd/rill/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
