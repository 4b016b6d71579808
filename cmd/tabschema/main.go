// Command tabschema reads, validates and re-composes delimited text files
// described by a YAML schema.
package main

import (
	"os"

	"github.com/oleg578/tabschema/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
