// ./main.go
package main

import (
	"github.com/bigl34/zapctl/cmd"
)

// main is the entry point for the zapctl application.
func main() {
	// Execute the root command defined in the cmd package.
	// This handles all command-line parsing, configuration, and execution.
	cmd.Execute()
}
