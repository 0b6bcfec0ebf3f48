// Package benchmarks provides a timing benchmark harness for the M8Sim
// pipeline.
package benchmarks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-logr/logr"

	"github.com/sarchlab/m8sim/config"
	"github.com/sarchlab/m8sim/timing/core"
	"github.com/sarchlab/m8sim/timing/latency"
	"github.com/sarchlab/m8sim/timing/pipeline"
)

// BenchmarkResult holds the timing results of one benchmark run.
type BenchmarkResult struct {
	// Name identifies the benchmark
	Name string `json:"name"`

	// Description explains what the benchmark measures
	Description string `json:"description"`

	// SimulatedCycles is the total number of cycles simulated
	SimulatedCycles uint64 `json:"simulated_cycles"`

	// InstructionsRetired is the number of instructions completed
	InstructionsRetired uint64 `json:"instructions_retired"`

	// CPI is cycles per instruction
	CPI float64 `json:"cpi"`

	// Stall statistics by cause
	StallCycles  uint64 `json:"stall_cycles"`
	LoadStalls   uint64 `json:"load_stalls"`
	BranchStalls uint64 `json:"branch_stalls"`
	OtherStalls  uint64 `json:"other_stalls"`

	// Forwards counts forwarded operands by path name.
	Forwards      map[string]uint64 `json:"forwards,omitempty"`
	TotalForwards uint64            `json:"total_forwards"`

	// Faults is the number of squashed unaligned accesses
	Faults uint64 `json:"faults"`

	// Verified is true when every expected register and memory value matched
	Verified bool `json:"verified"`

	// Error is the simulation or verification failure, if any
	Error string `json:"error,omitempty"`

	// WallTime is the actual time taken to run the simulation
	WallTime time.Duration `json:"wall_time_ns"`
}

// Benchmark defines a single benchmark program.
type Benchmark struct {
	// Name identifies the benchmark
	Name string

	// Description explains what the benchmark measures
	Description string

	// Setup prepares the initial machine state (registers, memory)
	Setup func(cfg *config.Config)

	// Program is the MIPS machine code to execute
	Program []uint32

	// ExpectedRegs and ExpectedMemory are checked after the run
	ExpectedRegs   map[uint8]int32
	ExpectedMemory map[uint32]int32
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	// Base is the machine configuration each benchmark starts from.
	Base *config.Config

	// Output is where to write results (default: os.Stdout)
	Output io.Writer

	// Log receives per-cycle pipeline logging
	Log logr.Logger

	// Verbose enables detailed output
	Verbose bool
}

// DefaultConfig returns a default harness configuration.
func DefaultConfig() HarnessConfig {
	return HarnessConfig{
		Base:    config.Default(),
		Output:  os.Stdout,
		Log:     logr.Discard(),
		Verbose: false,
	}
}

// Harness runs timing benchmarks and reports results.
type Harness struct {
	config     HarnessConfig
	benchmarks []Benchmark
}

// NewHarness creates a new benchmark harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.Base == nil {
		config.Base = DefaultConfig().Base
	}
	if config.Log.GetSink() == nil {
		config.Log = logr.Discard()
	}
	return &Harness{
		config:     config,
		benchmarks: []Benchmark{},
	}
}

// AddBenchmark adds a benchmark to the harness.
func (h *Harness) AddBenchmark(b Benchmark) {
	h.benchmarks = append(h.benchmarks, b)
}

// AddBenchmarks adds multiple benchmarks to the harness.
func (h *Harness) AddBenchmarks(benchmarks []Benchmark) {
	h.benchmarks = append(h.benchmarks, benchmarks...)
}

// RunAll executes all benchmarks and returns results.
func (h *Harness) RunAll(ctx context.Context) []BenchmarkResult {
	results := make([]BenchmarkResult, 0, len(h.benchmarks))

	for _, bench := range h.benchmarks {
		result := h.runBenchmark(ctx, bench)
		results = append(results, result)
	}

	return results
}

// runBenchmark executes a single benchmark on a fresh core.
func (h *Harness) runBenchmark(ctx context.Context, bench Benchmark) BenchmarkResult {
	result := BenchmarkResult{
		Name:        bench.Name,
		Description: bench.Description,
	}

	cfg := h.config.Base.Clone()
	if bench.Setup != nil {
		bench.Setup(cfg)
	}

	c, err := core.NewCore(cfg, core.WithLogger(h.config.Log.WithValues("benchmark", bench.Name)))
	if err != nil {
		result.Error = err.Error()
		return result
	}
	c.LoadProgram(bench.Program)

	start := time.Now()
	err = c.Run(ctx)
	result.WallTime = time.Since(start)

	stats := c.Pipeline.Stats()
	result.SimulatedCycles = stats.Cycles
	result.InstructionsRetired = stats.Instructions
	result.CPI = stats.CPI()
	result.StallCycles = stats.TotalStalls()
	result.LoadStalls = stats.Stalls[pipeline.StallLoads]
	result.BranchStalls = stats.Stalls[pipeline.StallBranches]
	result.OtherStalls = stats.Stalls[pipeline.StallOther]
	result.TotalForwards = stats.TotalForwards()
	result.Faults = stats.Faults
	result.Forwards = make(map[string]uint64)
	for path, n := range stats.Forwards {
		if n > 0 {
			result.Forwards[pipeline.ForwardPath(path).String()] = n
		}
	}

	if err != nil {
		result.Error = err.Error()
		return result
	}

	if err := verify(c, bench); err != nil {
		result.Error = err.Error()
		return result
	}
	result.Verified = true

	return result
}

func verify(c *core.Core, bench Benchmark) error {
	for reg, want := range bench.ExpectedRegs {
		if got := c.RegFile().ReadReg(reg); got != want {
			return fmt.Errorf("R%d = %d, want %d", reg, got, want)
		}
	}
	for addr, want := range bench.ExpectedMemory {
		got, err := c.Memory().Load(addr)
		if err != nil {
			return err
		}
		if got != want {
			return fmt.Errorf("memory[%d] = %d, want %d", addr, got, want)
		}
	}
	return nil
}

// PrintResults outputs benchmark results in a human-readable format.
func (h *Harness) PrintResults(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output, "=== M8Sim Timing Benchmark Results ===")
	_, _ = fmt.Fprintln(h.config.Output, "")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "Benchmark: %s\n", r.Name)
		_, _ = fmt.Fprintf(h.config.Output, "  Description: %s\n", r.Description)
		if r.Error != "" {
			_, _ = fmt.Fprintf(h.config.Output, "  Error: %s\n", r.Error)
		} else {
			_, _ = fmt.Fprintln(h.config.Output, "  Verified: yes")
		}
		_, _ = fmt.Fprintln(h.config.Output, "  --- Timing ---")
		_, _ = fmt.Fprintf(h.config.Output, "  Simulated Cycles:     %d\n", r.SimulatedCycles)
		_, _ = fmt.Fprintf(h.config.Output, "  Instructions Retired: %d\n", r.InstructionsRetired)
		_, _ = fmt.Fprintf(h.config.Output, "  CPI:                  %.3f\n", r.CPI)
		_, _ = fmt.Fprintf(h.config.Output, "  Stall Cycles:         %d\n", r.StallCycles)
		_, _ = fmt.Fprintf(h.config.Output, "  Load Stalls:          %d\n", r.LoadStalls)
		_, _ = fmt.Fprintf(h.config.Output, "  Branch Stalls:        %d\n", r.BranchStalls)
		_, _ = fmt.Fprintf(h.config.Output, "  Other Stalls:         %d\n", r.OtherStalls)
		_, _ = fmt.Fprintf(h.config.Output, "  Forwardings:          %d\n", r.TotalForwards)
		if r.Faults > 0 {
			_, _ = fmt.Fprintf(h.config.Output, "  Faults:               %d\n", r.Faults)
		}

		if h.config.Verbose && len(r.Forwards) > 0 {
			_, _ = fmt.Fprintln(h.config.Output, "  --- Forwarding Paths ---")
			for path := pipeline.ForwardPath(0); path < pipeline.NumForwardPaths; path++ {
				if n, ok := r.Forwards[path.String()]; ok {
					_, _ = fmt.Fprintf(h.config.Output, "  %-16s %d\n", path.String()+":", n)
				}
			}
		}

		_, _ = fmt.Fprintf(h.config.Output, "  Wall Time: %v\n", r.WallTime)
		_, _ = fmt.Fprintln(h.config.Output, "")
	}
}

// PrintCSV outputs benchmark results in CSV format for easy comparison.
func (h *Harness) PrintCSV(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output,
		"name,cycles,instructions,cpi,stalls,load_stalls,branch_stalls,other_stalls,forwards,faults,verified")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "%s,%d,%d,%.3f,%d,%d,%d,%d,%d,%d,%t\n",
			r.Name,
			r.SimulatedCycles,
			r.InstructionsRetired,
			r.CPI,
			r.StallCycles,
			r.LoadStalls,
			r.BranchStalls,
			r.OtherStalls,
			r.TotalForwards,
			r.Faults,
			r.Verified,
		)
	}
}

// BenchmarkReport is the complete output format for benchmark results.
type BenchmarkReport struct {
	// Metadata about the benchmark run
	Metadata ReportMetadata `json:"metadata"`

	// Results is the list of individual benchmark results
	Results []BenchmarkResult `json:"results"`

	// Summary contains aggregate statistics
	Summary ReportSummary `json:"summary"`
}

// ReportMetadata contains information about the benchmark run.
type ReportMetadata struct {
	// Timestamp when the benchmark was run
	Timestamp string `json:"timestamp"`

	// Timing is the latency configuration the benchmarks ran with
	Timing latency.TimingConfig `json:"timing"`
}

// ReportSummary contains aggregate statistics across all benchmarks.
type ReportSummary struct {
	// TotalBenchmarks is the number of benchmarks run
	TotalBenchmarks int `json:"total_benchmarks"`

	// Failed is the number of benchmarks that errored or failed verification
	Failed int `json:"failed"`

	// TotalCycles is the sum of all simulated cycles
	TotalCycles uint64 `json:"total_cycles"`

	// TotalInstructions is the sum of all instructions retired
	TotalInstructions uint64 `json:"total_instructions"`

	// AverageCPI is the average cycles per instruction
	AverageCPI float64 `json:"average_cpi"`

	// TotalWallTime is the total wall clock time for all benchmarks
	TotalWallTime time.Duration `json:"total_wall_time_ns"`
}

// Summarize computes aggregate statistics over results.
func Summarize(results []BenchmarkResult) ReportSummary {
	summary := ReportSummary{TotalBenchmarks: len(results)}
	for _, r := range results {
		summary.TotalCycles += r.SimulatedCycles
		summary.TotalInstructions += r.InstructionsRetired
		summary.TotalWallTime += r.WallTime
		if !r.Verified {
			summary.Failed++
		}
	}

	if summary.TotalInstructions > 0 {
		summary.AverageCPI = float64(summary.TotalCycles) / float64(summary.TotalInstructions)
	}

	return summary
}

// PrintJSON outputs benchmark results in JSON format for automated comparison.
func (h *Harness) PrintJSON(results []BenchmarkResult) error {
	report := BenchmarkReport{
		Metadata: ReportMetadata{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Timing:    h.config.Base.Timing,
		},
		Results: results,
		Summary: Summarize(results),
	}

	encoder := json.NewEncoder(h.config.Output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
