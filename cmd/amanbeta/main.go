// Package main provides the entry point for the amanbeta CLI.
package main

import (
	"os"

	"github.com/Aman-CERP/amanbeta/cmd/amanbeta/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
