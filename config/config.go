// Package config holds the run configuration of the simulator: where the
// program is placed, the cycle bound, and the initial machine state.
package config

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/sarchlab/m8sim/emu"
	"github.com/sarchlab/m8sim/timing/latency"
)

// Defaults for a run.
const (
	DefaultStartAddress uint32 = 496
	DefaultMaxCycles    uint64 = 10000

	// The default data memory holds zeroed words at these addresses.
	defaultMemoryFirst uint32 = 600
	defaultMemoryLast  uint32 = 636
)

// Config describes one simulation run.
type Config struct {
	// StartAddress is the address of the first program word.
	StartAddress uint32 `json:"start_address" yaml:"start_address"`

	// MaxCycles is the safety bound on simulated cycles. 0 means no bound.
	MaxCycles uint64 `json:"max_cycles" yaml:"max_cycles"`

	// SkipMalformed makes the loader drop malformed lines instead of
	// failing.
	SkipMalformed bool `json:"skip_malformed" yaml:"skip_malformed"`

	// Registers holds initial register values by index.
	Registers map[uint8]int32 `json:"registers,omitempty" yaml:"registers,omitempty"`

	// Memory holds the initial data memory by word address. When present
	// in a file it replaces the default contents.
	Memory map[uint32]int32 `json:"memory" yaml:"memory"`

	// Timing holds the execute-stage latencies.
	Timing latency.TimingConfig `json:"timing" yaml:"timing"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		StartAddress: DefaultStartAddress,
		MaxCycles:    DefaultMaxCycles,
		Memory:       defaultMemory(),
		Timing:       *latency.DefaultTimingConfig(),
	}
}

func defaultMemory() map[uint32]int32 {
	mem := make(map[uint32]int32)
	for addr := defaultMemoryFirst; addr <= defaultMemoryLast; addr += emu.WordSize {
		mem[addr] = 0
	}
	return mem
}

// isYAML reports whether path names a YAML file.
func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

// Load reads a Config from a JSON or YAML file, chosen by extension.
// Fields absent from the file keep their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	config.Memory = nil

	if isYAML(path) {
		err = yaml.Unmarshal(data, config)
	} else {
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if config.Memory == nil {
		config.Memory = defaultMemory()
	}

	return config, nil
}

// Save writes the Config to a JSON or YAML file, chosen by extension.
func (c *Config) Save(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks that the configuration describes a runnable machine.
func (c *Config) Validate() error {
	if c.StartAddress%emu.WordSize != 0 {
		return fmt.Errorf("start_address %d is not word aligned", c.StartAddress)
	}

	for reg := range c.Registers {
		if reg == 0 || reg >= emu.NumRegs {
			return fmt.Errorf("registers: R%d cannot be initialized", reg)
		}
	}

	for addr := range c.Memory {
		if err := emu.CheckAlignment(addr, true); err != nil {
			return fmt.Errorf("memory: %w", err)
		}
	}

	if err := c.Timing.Validate(); err != nil {
		return fmt.Errorf("timing: %w", err)
	}

	return nil
}

// Clone returns a deep copy of the Config.
func (c *Config) Clone() *Config {
	clone := *c
	clone.Registers = maps.Clone(c.Registers)
	clone.Memory = maps.Clone(c.Memory)
	return &clone
}

// Apply writes the initial register and memory contents into a machine.
func (c *Config) Apply(regFile *emu.RegFile, memory *emu.Memory) error {
	for reg, v := range c.Registers {
		regFile.WriteReg(reg, v)
	}

	for addr, v := range c.Memory {
		if err := memory.Store(addr, v); err != nil {
			return fmt.Errorf("memory: %w", err)
		}
	}

	return nil
}
