// ylai runs the console gateway and a local mock backend, and drives the
// automation backend from the terminal.
//
// Usage:
//
//	ylai serve [--dev]
//	ylai mock
//	ylai login -u <user> -p <password>
//	ylai health
//	ylai modules list | routes <name>
//	ylai pipeline validate|payload|svg <file>
//	ylai pipeline run <file> [--engine ws|simple] [--watch] [--tui] [--local]
//	ylai pipeline suggest <prompt>
//	ylai logs tail [--filter kw]
//	ylai version
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
