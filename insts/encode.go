package insts

// Instruction encoding helpers, used to build programs in tests and tools.

// EncodeR encodes an R-type instruction under opcode SPECIAL.
func EncodeR(funct, rd, rs, rt, shamt uint8) uint32 {
	return uint32(rs&0x1F)<<21 | uint32(rt&0x1F)<<16 | uint32(rd&0x1F)<<11 |
		uint32(shamt&0x1F)<<6 | uint32(funct&0x3F)
}

// EncodeI encodes an I-type instruction.
func EncodeI(opcode, rt, rs uint8, imm int32) uint32 {
	return uint32(opcode&0x3F)<<26 | uint32(rs&0x1F)<<21 | uint32(rt&0x1F)<<16 |
		uint32(imm)&0xFFFF
}

// EncodeJ encodes a J-type instruction. addr is the byte address of the
// target; only bits [27:2] are encoded.
func EncodeJ(opcode uint8, addr uint32) uint32 {
	return uint32(opcode&0x3F)<<26 | (addr>>2)&0x3FFFFFF
}

// NOP encodes the canonical no-op.
func NOP() uint32 { return 0 }

// ADD encodes ADD rd, rs, rt.
func ADD(rd, rs, rt uint8) uint32 { return EncodeR(fnADD, rd, rs, rt, 0) }

// SUB encodes SUB rd, rs, rt.
func SUB(rd, rs, rt uint8) uint32 { return EncodeR(fnSUB, rd, rs, rt, 0) }

// AND encodes AND rd, rs, rt.
func AND(rd, rs, rt uint8) uint32 { return EncodeR(fnAND, rd, rs, rt, 0) }

// OR encodes OR rd, rs, rt.
func OR(rd, rs, rt uint8) uint32 { return EncodeR(fnOR, rd, rs, rt, 0) }

// SLT encodes SLT rd, rs, rt.
func SLT(rd, rs, rt uint8) uint32 { return EncodeR(fnSLT, rd, rs, rt, 0) }

// SLL encodes SLL rd, rt, shamt.
func SLL(rd, rt, shamt uint8) uint32 { return EncodeR(fnSLL, rd, 0, rt, shamt) }

// JR encodes JR rs.
func JR(rs uint8) uint32 { return EncodeR(fnJR, 0, rs, 0, 0) }

// JALR encodes JALR rd, rs.
func JALR(rd, rs uint8) uint32 { return EncodeR(fnJALR, rd, rs, 0, 0) }

// MUL encodes MUL rd, rs, rt.
func MUL(rd, rs, rt uint8) uint32 {
	return uint32(opcSpecial2)<<26 | EncodeR(fnMUL, rd, rs, rt, 0)
}

// ADDI encodes ADDI rt, rs, imm.
func ADDI(rt, rs uint8, imm int32) uint32 { return EncodeI(opcADDI, rt, rs, imm) }

// ORI encodes ORI rt, rs, imm.
func ORI(rt, rs uint8, imm int32) uint32 { return EncodeI(opcORI, rt, rs, imm) }

// LUI encodes LUI rt, imm.
func LUI(rt uint8, imm int32) uint32 { return EncodeI(opcLUI, rt, 0, imm) }

// LW encodes LW rt, offset(base).
func LW(rt uint8, offset int32, base uint8) uint32 { return EncodeI(opcLW, rt, base, offset) }

// SW encodes SW rt, offset(base).
func SW(rt uint8, offset int32, base uint8) uint32 { return EncodeI(opcSW, rt, base, offset) }

// BEQ encodes BEQ rs, rt, offset where offset counts words from PC+4.
func BEQ(rs, rt uint8, offset int32) uint32 { return EncodeI(opcBEQ, rt, rs, offset) }

// BNE encodes BNE rs, rt, offset where offset counts words from PC+4.
func BNE(rs, rt uint8, offset int32) uint32 { return EncodeI(opcBNE, rt, rs, offset) }

// BLEZ encodes BLEZ rs, offset.
func BLEZ(rs uint8, offset int32) uint32 { return EncodeI(opcBLEZ, 0, rs, offset) }

// BGTZ encodes BGTZ rs, offset.
func BGTZ(rs uint8, offset int32) uint32 { return EncodeI(opcBGTZ, 0, rs, offset) }

// J encodes J addr.
func J(addr uint32) uint32 { return EncodeJ(opcJ, addr) }

// JAL encodes JAL addr.
func JAL(addr uint32) uint32 { return EncodeJ(opcJAL, addr) }
