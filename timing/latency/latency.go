// Package latency provides execute-stage timing for cycle-accurate simulation.
//
// The latency values can be configured via TimingConfig.
package latency

import (
	"github.com/sarchlab/m8sim/insts"
)

// Table provides instruction latency lookups.
type Table struct {
	config *TimingConfig
}

// NewTable creates a new latency table with default timing values.
func NewTable() *Table {
	return &Table{
		config: DefaultTimingConfig(),
	}
}

// NewTableWithConfig creates a new latency table with custom timing configuration.
func NewTableWithConfig(config *TimingConfig) *Table {
	return &Table{
		config: config,
	}
}

// GetLatency returns the number of cycles the instruction occupies the
// execute stage.
func (t *Table) GetLatency(inst *insts.Instruction) uint64 {
	if inst == nil {
		return 1
	}

	switch inst.Class {
	case insts.ClassALUReg:
		if inst.Op == insts.OpMUL {
			return t.config.MultiplyLatency
		}
		return t.config.ALULatency

	case insts.ClassALUImm, insts.ClassLoad, insts.ClassStore:
		return t.config.ALULatency

	case insts.ClassBranch, insts.ClassJump, insts.ClassJumpReg:
		return t.config.BranchLatency

	default:
		return 1
	}
}

// Config returns the current timing configuration.
func (t *Table) Config() *TimingConfig {
	return t.config
}
