// Command benchmark runs the M8Sim timing benchmark harness.
//
// Usage:
//
//	go run ./cmd/benchmark [flags]
//
// Flags:
//
//	-csv        Output results in CSV format (default: human-readable)
//	-json       Output results in JSON format
//	-core       Run only the core benchmark subset
//	-config     Machine configuration file (JSON or YAML)
//	-v          Print forwarding paths per benchmark
//
// Example:
//
//	# Compare CPI under a slower multiplier
//	go run ./cmd/benchmark -config slow_mul.yaml -csv > results.csv
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/sarchlab/m8sim/benchmarks"
	"github.com/sarchlab/m8sim/config"
)

func main() {
	csvOutput := flag.Bool("csv", false, "Output results in CSV format")
	jsonOutput := flag.Bool("json", false, "Output results in JSON format")
	coreOnly := flag.Bool("core", false, "Run only the core benchmarks")
	configPath := flag.String("config", "", "Machine configuration file")
	verbose := flag.Bool("v", false, "Print forwarding paths")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	hc := benchmarks.DefaultConfig()
	hc.Verbose = *verbose
	if *configPath != "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(2)
		}
		hc.Base = cfg
	}

	harness := benchmarks.NewHarness(hc)
	if *coreOnly {
		harness.AddBenchmarks(benchmarks.GetCoreBenchmarks())
	} else {
		harness.AddBenchmarks(benchmarks.GetMicrobenchmarks())
	}

	if !*csvOutput && !*jsonOutput {
		fmt.Println("M8Sim Timing Benchmark Harness")
		fmt.Println("==============================")
		fmt.Printf("ALU latency:      %d\n", hc.Base.Timing.ALULatency)
		fmt.Printf("Multiply latency: %d\n", hc.Base.Timing.MultiplyLatency)
		fmt.Printf("Branch latency:   %d\n", hc.Base.Timing.BranchLatency)
		fmt.Println("")
	}

	results := harness.RunAll(ctx)

	switch {
	case *jsonOutput:
		if err := harness.PrintJSON(results); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case *csvOutput:
		harness.PrintCSV(results)
	default:
		harness.PrintResults(results)

		summary := benchmarks.Summarize(results)
		fmt.Println("=== Summary ===")
		fmt.Printf("Benchmarks: %d (%d failed)\n", summary.TotalBenchmarks, summary.Failed)
		fmt.Printf("Average CPI: %.3f\n", summary.AverageCPI)
	}

	if benchmarks.Summarize(results).Failed > 0 {
		os.Exit(1)
	}
}
