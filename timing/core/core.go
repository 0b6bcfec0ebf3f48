// Package core provides the cycle-accurate CPU core model.
// It wraps the pipeline implementation to provide a high-level interface.
package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/google/go-cmp/cmp"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/m8sim/config"
	"github.com/sarchlab/m8sim/emu"
	"github.com/sarchlab/m8sim/timing/latency"
	"github.com/sarchlab/m8sim/timing/pipeline"
)

// ErrNoProgram is returned when running a core with no program loaded.
var ErrNoProgram = errors.New("no program loaded")

// MismatchError reports architectural state that differs between the
// pipeline and functional execution of the same program.
type MismatchError struct {
	Diff string
}

func (e *MismatchError) Error() string {
	return "pipeline state differs from functional execution (-functional +pipeline):\n" + e.Diff
}

// Stats holds performance statistics for the core.
type Stats struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Instructions is the number of instructions retired.
	Instructions uint64
	// Stalls is the number of stall cycles of any kind.
	Stalls uint64
	// Forwards is the number of forwarded operands.
	Forwards uint64
	// Faults is the number of squashed data accesses.
	Faults uint64
}

// CoreOption is a functional option for configuring the Core.
type CoreOption func(*coreOptions)

type coreOptions struct {
	log   logr.Logger
	hooks []sim.Hook
}

// WithLogger sets the logger passed to the pipeline.
func WithLogger(log logr.Logger) CoreOption {
	return func(o *coreOptions) {
		o.log = log
	}
}

// WithHook attaches a hook to the pipeline.
func WithHook(hook sim.Hook) CoreOption {
	return func(o *coreOptions) {
		o.hooks = append(o.hooks, hook)
	}
}

// Core represents a cycle-accurate CPU core model.
// It owns the register file and data memory and wraps an 8-stage pipeline.
type Core struct {
	// Pipeline is the underlying 8-stage pipeline.
	Pipeline *pipeline.Pipeline

	// Shared resources
	regFile *emu.RegFile
	memory  *emu.Memory

	config  *config.Config
	program []uint32
	loaded  bool
}

// NewCore creates a Core with its initial machine state taken from cfg.
func NewCore(cfg *config.Config, opts ...CoreOption) (*Core, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	o := coreOptions{log: logr.Discard()}
	for _, opt := range opts {
		opt(&o)
	}

	cfg = cfg.Clone()
	regFile := &emu.RegFile{}
	memory := emu.NewMemory()
	if err := cfg.Apply(regFile, memory); err != nil {
		return nil, err
	}

	c := &Core{
		Pipeline: pipeline.NewPipeline(regFile, memory,
			pipeline.WithLatencyTable(latency.NewTableWithConfig(cfg.Timing.Clone())),
			pipeline.WithMaxCycles(cfg.MaxCycles),
			pipeline.WithLogger(o.log),
		),
		regFile: regFile,
		memory:  memory,
		config:  cfg,
	}

	for _, hook := range o.hooks {
		c.Pipeline.AcceptHook(hook)
	}

	return c, nil
}

// LoadProgram installs the program at the configured start address.
func (c *Core) LoadProgram(program []uint32) {
	c.program = program
	c.loaded = true
	c.Pipeline.LoadProgram(c.config.StartAddress, program)
}

// RegFile returns the core's register file.
func (c *Core) RegFile() *emu.RegFile {
	return c.regFile
}

// Memory returns the core's data memory.
func (c *Core) Memory() *emu.Memory {
	return c.memory
}

// Tick executes one pipeline cycle.
func (c *Core) Tick() error {
	if !c.loaded {
		return ErrNoProgram
	}
	return c.Pipeline.Tick()
}

// Drained returns true once the program has run to completion.
func (c *Core) Drained() bool {
	return c.Pipeline.Drained()
}

// Snapshot returns the machine state after the last cycle.
func (c *Core) Snapshot() pipeline.Snapshot {
	return c.Pipeline.Snapshot()
}

// Stats returns performance statistics for the core.
func (c *Core) Stats() Stats {
	pipeStats := c.Pipeline.Stats()
	return Stats{
		Cycles:       pipeStats.Cycles,
		Instructions: pipeStats.Instructions,
		Stalls:       pipeStats.TotalStalls(),
		Forwards:     pipeStats.TotalForwards(),
		Faults:       pipeStats.Faults,
	}
}

// Run executes the core until the pipeline drains. Cancelling ctx aborts
// the pipeline between cycles.
func (c *Core) Run(ctx context.Context) error {
	if !c.loaded {
		return ErrNoProgram
	}

	for !c.Pipeline.Drained() {
		if err := ctx.Err(); err != nil {
			c.Pipeline.Abort(err)
			return fmt.Errorf("%w: %w", pipeline.ErrAborted, err)
		}
		if err := c.Pipeline.Tick(); err != nil {
			return err
		}
	}

	return nil
}

// RunCycles executes the core for the specified number of cycles.
// Returns true if still running, false if drained.
func (c *Core) RunCycles(cycles uint64) (bool, error) {
	if !c.loaded {
		return false, ErrNoProgram
	}
	return c.Pipeline.RunCycles(cycles)
}

// Check runs the program on the functional emulator from the same initial
// state and compares registers and memory with the core's. It returns a
// *MismatchError when they differ.
func (c *Core) Check() error {
	if !c.loaded {
		return ErrNoProgram
	}

	regFile := &emu.RegFile{}
	memory := emu.NewMemory()
	if err := c.config.Apply(regFile, memory); err != nil {
		return err
	}

	ref := emu.NewEmulator(
		emu.WithRegFile(regFile),
		emu.WithMemory(memory),
		emu.WithMaxInstructions(c.config.MaxCycles),
	)
	ref.LoadProgram(c.config.StartAddress, c.program)
	if err := ref.Run(); err != nil {
		return fmt.Errorf("functional execution failed: %w", err)
	}

	diff := cmp.Diff(regFile.Values(), c.regFile.Values()) +
		cmp.Diff(memory.Words(), c.memory.Words())
	if diff != "" {
		return &MismatchError{Diff: diff}
	}

	return nil
}
