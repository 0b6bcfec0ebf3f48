// Package emu provides functional MIPS emulation.
package emu

import "github.com/sarchlab/m8sim/insts"

// ALU implements MIPS arithmetic and logic operations. It is stateless and
// shared by the functional emulator and the timing pipeline's execute stage.
type ALU struct{}

// NewALU creates a new ALU.
func NewALU() *ALU {
	return &ALU{}
}

// Compute returns the result of an ALU-reg or ALU-imm instruction.
// op1 is the value of inst.Src1 and op2 the value of inst.Src2.
// Arithmetic wraps; there are no overflow exceptions.
func (a *ALU) Compute(inst *insts.Instruction, op1, op2 int32) int32 {
	switch inst.Op {
	case insts.OpADD, insts.OpADDU:
		return op1 + op2
	case insts.OpSUB, insts.OpSUBU:
		return op1 - op2
	case insts.OpAND:
		return op1 & op2
	case insts.OpOR:
		return op1 | op2
	case insts.OpXOR:
		return op1 ^ op2
	case insts.OpNOR:
		return ^(op1 | op2)
	case insts.OpSLT:
		return boolToWord(op1 < op2)
	case insts.OpSLTU:
		return boolToWord(uint32(op1) < uint32(op2))
	case insts.OpSLL:
		return op1 << inst.Shamt
	case insts.OpSRL:
		return int32(uint32(op1) >> inst.Shamt)
	case insts.OpSRA:
		return op1 >> inst.Shamt
	case insts.OpSLLV:
		return op1 << (uint32(op2) & 0x1F)
	case insts.OpSRLV:
		return int32(uint32(op1) >> (uint32(op2) & 0x1F))
	case insts.OpSRAV:
		return op1 >> (uint32(op2) & 0x1F)
	case insts.OpMUL:
		return op1 * op2
	case insts.OpADDI, insts.OpADDIU:
		return op1 + inst.Imm
	case insts.OpSLTI:
		return boolToWord(op1 < inst.Imm)
	case insts.OpSLTIU:
		return boolToWord(uint32(op1) < uint32(inst.Imm))
	case insts.OpANDI:
		return op1 & inst.Imm
	case insts.OpORI:
		return op1 | inst.Imm
	case insts.OpXORI:
		return op1 ^ inst.Imm
	case insts.OpLUI:
		return inst.Imm
	default:
		return 0
	}
}

// EffectiveAddress returns base + offset for loads and stores.
func (a *ALU) EffectiveAddress(inst *insts.Instruction, base int32) uint32 {
	return uint32(base + inst.Imm)
}

func boolToWord(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
