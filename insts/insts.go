// Package insts provides MIPS32 instruction definitions and decoding.
//
// This package implements decoding of 32-bit MIPS machine words into
// structured instruction representations. It supports:
//   - Register arithmetic/logic: ADD, ADDU, SUB, SUBU, AND, OR, XOR, NOR,
//     SLT, SLTU, shifts, and MUL
//   - Immediate arithmetic/logic: ADDI, ADDIU, SLTI, SLTIU, ANDI, ORI,
//     XORI, LUI
//   - Memory: LW, SW
//   - Control flow: BEQ, BNE, BLEZ, BGTZ, J, JAL, JR, JALR
//
// Decoding is total. Words that do not map to a supported instruction decode
// to OpIllegal rather than to a no-op.
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst := decoder.Decode(0x20010005) // ADDI R1, R0, 5
//	fmt.Printf("Op: %v, Dest: %d, Src1: %d, Imm: %d\n", inst.Op, inst.Dest, inst.Src1, inst.Imm)
package insts
