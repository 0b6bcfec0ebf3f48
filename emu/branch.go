// Package emu provides functional MIPS emulation.
package emu

import "github.com/sarchlab/m8sim/insts"

// BranchResult is the outcome of resolving a branch or jump.
type BranchResult struct {
	// Taken is true when control leaves the fall-through path.
	Taken bool
	// Target is the address execution continues at (fall-through if not taken).
	Target uint32
	// Link is the return address written by JAL/JALR.
	Link int32
}

// BranchUnit resolves MIPS branches and jumps. There are no delay slots:
// the fall-through address is PC+4 and taken branches go straight to the
// target.
type BranchUnit struct{}

// NewBranchUnit creates a new BranchUnit.
func NewBranchUnit() *BranchUnit {
	return &BranchUnit{}
}

// Resolve evaluates the control instruction at pc. op1 and op2 are the values
// of inst.Src1 and inst.Src2.
func (b *BranchUnit) Resolve(inst *insts.Instruction, pc uint32, op1, op2 int32) BranchResult {
	next := pc + insts.WordSize
	result := BranchResult{Target: next, Link: int32(next)}

	var taken bool
	var target uint32

	switch inst.Op {
	case insts.OpBEQ:
		taken = op1 == op2
		target = uint32(int32(next) + inst.BranchOffset)
	case insts.OpBNE:
		taken = op1 != op2
		target = uint32(int32(next) + inst.BranchOffset)
	case insts.OpBLEZ:
		taken = op1 <= 0
		target = uint32(int32(next) + inst.BranchOffset)
	case insts.OpBGTZ:
		taken = op1 > 0
		target = uint32(int32(next) + inst.BranchOffset)
	case insts.OpJ, insts.OpJAL:
		taken = true
		target = (next & 0xF0000000) | inst.Target<<2
	case insts.OpJR, insts.OpJALR:
		taken = true
		target = uint32(op1)
	default:
		return result
	}

	if taken {
		result.Taken = true
		result.Target = target
	}
	return result
}
