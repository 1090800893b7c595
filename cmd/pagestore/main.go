// Command pagestore is a thin, SQL-free command-line front end to the page
// store: raw insert/get-page/checkpoint operations against a heap file,
// useful for exercising the engine without a query layer. Structured as a
// cobra command tree.
package main

import (
	"os"

	"github.com/rennervale/pagestore/cmd/pagestore/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
