// Package main is the entry point for the forgerun CLI.
// The CLI is the developer terminal tool for interacting with the forgerun API.
package main

import (
	"os"

	"forgerun/cmd/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
