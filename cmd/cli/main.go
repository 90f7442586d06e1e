// Package main is the entry point for taskctl.
// taskctl is the operator's terminal tool for the taskplane controller API.
package main

import (
	"os"

	"taskplane/cmd/cli/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
