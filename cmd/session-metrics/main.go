// Package main provides the session-metrics CLI application.
//
// session-metrics extracts normalized metrics from recorded agent task
// segments, stores them, and compares MCP-assisted sessions against a
// control cohort.
package main

import (
	"fmt"
	"io"
	"os"
)

// version is set during build time.
var version = "dev"

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run executes the CLI with the given arguments.
func run(args []string, stdout, stderr io.Writer) error {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.Execute()
}
