package pipeline

import (
	"maps"
	"slices"

	"github.com/sarchlab/m8sim/emu"
)

// Statistics holds pipeline performance statistics.
type Statistics struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Instructions is the number of instructions retired at WB.
	Instructions uint64
	// Stalls counts stall cycles by cause.
	Stalls [NumStallKinds]uint64
	// Forwards counts forwarded operands by path.
	Forwards [NumForwardPaths]uint64
	// Faults is the number of instructions squashed by unaligned accesses.
	Faults uint64
}

// TotalStalls returns the number of stall cycles of any kind.
func (s Statistics) TotalStalls() uint64 {
	var total uint64
	for _, n := range s.Stalls {
		total += n
	}
	return total
}

// TotalForwards returns the number of forwarded operands over all paths.
func (s Statistics) TotalForwards() uint64 {
	var total uint64
	for _, n := range s.Forwards {
		total += n
	}
	return total
}

// CPI returns the cycles per instruction.
func (s Statistics) CPI() float64 {
	if s.Instructions == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Instructions)
}

// ForwardEvent records one operand supplied from a pipeline register.
type ForwardEvent struct {
	Path       ForwardPath
	Reg        uint8
	Value      int32
	ProducerPC uint32
	ConsumerPC uint32
}

// CycleEvents is what happened during the most recent cycle.
type CycleEvents struct {
	// Stalled is true when the cycle counted as a stall.
	Stalled   bool
	StallKind StallKind
	// StalledPC and StalledText identify the instruction held in place.
	// For a branch stall this is the unresolved branch.
	StalledPC   uint32
	StalledText string

	// Detected lists the dependences of the instruction in RF.
	Detected []Dependency
	// Forwards lists the operands forwarded this cycle.
	Forwards []ForwardEvent

	// Fault is the unaligned access raised this cycle, if any.
	Fault error
}

// State is the complete mutable state of one pipeline instance, apart from
// the register file and data memory it is attached to.
type State struct {
	Cycle uint64
	PC    uint32

	// Latches holds the pipeline registers as they stand at the end of the
	// last cycle.
	Latches [NumLatches]Latch

	// FetchHeld is set while a fetched branch or jump is unresolved.
	FetchHeld bool
	// HeldPC is the address of the branch fetch is waiting on.
	HeldPC uint32

	Stats     Statistics
	LastCycle CycleEvents
}

// StageView describes the instruction occupying a stage during a cycle.
type StageView struct {
	Valid bool
	PC    uint32
	Text  string
}

// Snapshot is a read-only copy of the machine state after a cycle.
type Snapshot struct {
	Cycle     uint64
	PC        uint32
	Stages    [NumStages]StageView
	Latches   [NumLatches]Latch
	Registers [emu.NumRegs]int32
	Memory    map[uint32]int32
	Stats     Statistics
	Events    CycleEvents
	Drained   bool
}

// MemoryAddresses returns the snapshot's memory addresses in ascending order.
func (s *Snapshot) MemoryAddresses() []uint32 {
	return slices.Sorted(maps.Keys(s.Memory))
}
