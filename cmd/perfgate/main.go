// Package main is the entry point for the perfgate application
package main

import (
	"github.com/ethpandaops/perfgate/cmd"
)

func main() {
	cmd.Execute()
}
