// Package main provides the entry point for M8Sim.
// M8Sim is a cycle-accurate simulator of an 8-stage in-order MIPS pipeline
// built on Akita.
//
// For the full CLI, use: go run ./cmd/m8sim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("M8Sim - 8-stage MIPS pipeline simulator")
	fmt.Println("Built on Akita simulation framework")
	fmt.Println("")
	fmt.Println("Usage: m8sim [options] <program.txt> [more.txt ...]")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -config          Path to run configuration (JSON or YAML)")
	fmt.Println("  -max-cycles      Maximum cycles to simulate")
	fmt.Println("  -start           Address of the first instruction")
	fmt.Println("  -skip-malformed  Skip malformed program lines")
	fmt.Println("  -q               Print only the final summary")
	fmt.Println("  -check           Compare with functional execution")
	fmt.Println("  -v               Log verbosity")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/m8sim' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/m8sim' instead.")
	}
}
