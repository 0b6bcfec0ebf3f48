// Package pipeline provides the 8-stage pipeline implementation for timing simulation.
package pipeline

import "github.com/sarchlab/m8sim/insts"

// Latch is a pipeline register. The whole latch moves one boundary forward
// each cycle the pipe is not frozen, so it carries an instruction's state
// from fetch to write-back.
type Latch struct {
	// Valid indicates if this pipeline register holds an instruction.
	// An invalid latch is a bubble.
	Valid bool

	// PC is the program counter of the instruction.
	PC uint32

	// NPC is the address of the next sequential instruction. EX replaces it
	// with the resolved target for branches and jumps.
	NPC uint32

	// IR is the raw 32-bit instruction word.
	IR uint32

	// Inst is the decoded instruction. Nil until the instruction leaves ID.
	Inst *insts.Instruction

	// A and B are the operand values for Inst.Src1 and Inst.Src2, read in RF
	// and replaced by forwarded values in EX. For stores B is the store data.
	A int32
	B int32

	// StorePending is set when a store leaves EX before its data was
	// produced; the value is forwarded into EX/DF while the store is in DF.
	StorePending bool

	// ALUOut is the ALU result, effective address or link address.
	ALUOut int32

	// LMD is the load memory data.
	LMD int32

	// ExecStarted and ExecLeft track execute-stage occupancy.
	ExecStarted bool
	ExecLeft    uint64

	// Fault is set when a data access was unaligned. A faulted instruction
	// is carried to WB without touching memory or registers and never
	// forwards a value.
	Fault error
}

// Clear resets the latch to a bubble.
func (l *Latch) Clear() {
	*l = Latch{}
}

// IsBubble returns true if the latch holds no instruction.
func (l *Latch) IsBubble() bool {
	return !l.Valid
}

// Produces reports whether the latch holds an instruction that will write reg.
// Bubbles, faulted instructions and writes to R0 never produce a value.
func (l *Latch) Produces(reg uint8) bool {
	if !l.Valid || l.Fault != nil || l.Inst == nil {
		return false
	}
	if reg == 0 || reg == insts.NoReg {
		return false
	}
	return l.Inst.HasDest() && l.Inst.Dest == reg
}

// Result returns the value the instruction writes back.
func (l *Latch) Result() int32 {
	if l.Inst != nil && l.Inst.IsLoad() {
		return l.LMD
	}
	return l.ALUOut
}
