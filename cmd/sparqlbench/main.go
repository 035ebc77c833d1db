package main

import (
	"fmt"
	"os"

	"sparqlbench/cmd/sparqlbench/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}
