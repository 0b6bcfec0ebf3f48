// Package insts provides MIPS32 instruction definitions and decoding.
package insts

// Op represents a MIPS opcode.
type Op uint8

// MIPS opcodes.
const (
	OpIllegal Op = iota
	OpNOP
	OpADD
	OpADDU
	OpSUB
	OpSUBU
	OpAND
	OpOR
	OpXOR
	OpNOR
	OpSLT
	OpSLTU
	OpSLL
	OpSRL
	OpSRA
	OpSLLV
	OpSRLV
	OpSRAV
	OpMUL
	OpADDI
	OpADDIU
	OpSLTI
	OpSLTIU
	OpANDI
	OpORI
	OpXORI
	OpLUI
	OpLW
	OpSW
	OpBEQ
	OpBNE
	OpBLEZ
	OpBGTZ
	OpJ
	OpJAL
	OpJR
	OpJALR
)

// Class is the operation kind the pipeline dispatches on.
type Class uint8

// Instruction classes.
const (
	ClassIllegal Class = iota
	ClassNOP
	ClassALUReg
	ClassALUImm
	ClassLoad
	ClassStore
	ClassBranch
	ClassJump
	ClassJumpReg
)

// Format represents an instruction encoding format.
type Format uint8

// Instruction formats.
const (
	FormatUnknown Format = iota
	FormatR              // opcode | rs | rt | rd | shamt | funct
	FormatI              // opcode | rs | rt | imm16
	FormatJ              // opcode | target26
)

// NoReg marks an absent register operand.
const NoReg uint8 = 0xFF

// WordSize is the instruction and data word width in bytes.
const WordSize = 4

// Primary opcode field values, bits [31:26].
const (
	opcSpecial  = 0x00
	opcJ        = 0x02
	opcJAL      = 0x03
	opcBEQ      = 0x04
	opcBNE      = 0x05
	opcBLEZ     = 0x06
	opcBGTZ     = 0x07
	opcADDI     = 0x08
	opcADDIU    = 0x09
	opcSLTI     = 0x0A
	opcSLTIU    = 0x0B
	opcANDI     = 0x0C
	opcORI      = 0x0D
	opcXORI     = 0x0E
	opcLUI      = 0x0F
	opcSpecial2 = 0x1C
	opcLW       = 0x23
	opcSW       = 0x2B
)

// Function field values, bits [5:0], for opcode SPECIAL.
const (
	fnSLL  = 0x00
	fnSRL  = 0x02
	fnSRA  = 0x03
	fnSLLV = 0x04
	fnSRLV = 0x06
	fnSRAV = 0x07
	fnJR   = 0x08
	fnJALR = 0x09
	fnADD  = 0x20
	fnADDU = 0x21
	fnSUB  = 0x22
	fnSUBU = 0x23
	fnAND  = 0x24
	fnOR   = 0x25
	fnXOR  = 0x26
	fnNOR  = 0x27
	fnSLT  = 0x2A
	fnSLTU = 0x2B

	// fnMUL is under opcode SPECIAL2.
	fnMUL = 0x02
)

// Instruction represents a decoded MIPS instruction.
type Instruction struct {
	Op     Op     // Operation code
	Class  Class  // Operation kind
	Format Format // Encoding format

	// Word is the raw instruction word.
	Word uint32
	// PC is the address the instruction was fetched from.
	PC uint32

	// Register operands. NoReg when the operand is absent.
	Dest uint8 // Destination register
	Src1 uint8 // First source register (rs, or rt for shifts by shamt)
	Src2 uint8 // Second source register (rt); store data for SW

	// Raw fields, kept for disassembly.
	Rs, Rt, Rd uint8
	Shamt      uint8
	Funct      uint8

	// Imm is the immediate, sign- or zero-extended per opcode.
	// For loads and stores it is the memory offset.
	Imm int32

	// BranchOffset is the signed byte offset from PC+4 for BEQ/BNE/BLEZ/BGTZ.
	BranchOffset int32

	// Target is the 26-bit word index of J/JAL.
	Target uint32
}

// HasDest reports whether the instruction writes a non-zero register.
// R0 is hardwired to zero, so writes to it never produce a value.
func (i *Instruction) HasDest() bool {
	return i.Dest != NoReg && i.Dest != 0
}

// IsLoad returns true for memory loads.
func (i *Instruction) IsLoad() bool { return i.Class == ClassLoad }

// IsStore returns true for memory stores.
func (i *Instruction) IsStore() bool { return i.Class == ClassStore }

// IsControl returns true for branches and jumps.
func (i *Instruction) IsControl() bool {
	switch i.Class {
	case ClassBranch, ClassJump, ClassJumpReg:
		return true
	default:
		return false
	}
}

// Decoder decodes MIPS machine code into instructions.
type Decoder struct{}

// NewDecoder creates a new MIPS instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes a 32-bit MIPS instruction word. It never fails: words that
// do not map to a supported instruction decode to OpIllegal.
func (d *Decoder) Decode(word uint32) *Instruction {
	inst := &Instruction{
		Op:     OpIllegal,
		Class:  ClassIllegal,
		Format: FormatUnknown,
		Word:   word,
		Dest:   NoReg,
		Src1:   NoReg,
		Src2:   NoReg,
	}

	if word == 0 {
		// SLL R0, R0, 0 is the canonical NOP.
		inst.Op = OpNOP
		inst.Class = ClassNOP
		inst.Format = FormatR
		return inst
	}

	opcode := (word >> 26) & 0x3F // bits [31:26]

	switch opcode {
	case opcSpecial:
		d.decodeSpecial(word, inst)
	case opcSpecial2:
		d.decodeSpecial2(word, inst)
	case opcJ, opcJAL:
		d.decodeJump(word, opcode, inst)
	default:
		d.decodeImm(word, opcode, inst)
	}

	return inst
}

// DecodeAt decodes the word fetched from pc. It returns an
// *IllegalInstructionError when the word is not a supported instruction.
func (d *Decoder) DecodeAt(word, pc uint32) (*Instruction, error) {
	inst := d.Decode(word)
	inst.PC = pc
	if inst.Op == OpIllegal {
		return inst, &IllegalInstructionError{Word: word, PC: pc}
	}
	return inst, nil
}

func fields(word uint32) (rs, rt, rd, shamt, funct uint8) {
	rs = uint8((word >> 21) & 0x1F)   // bits [25:21]
	rt = uint8((word >> 16) & 0x1F)   // bits [20:16]
	rd = uint8((word >> 11) & 0x1F)   // bits [15:11]
	shamt = uint8((word >> 6) & 0x1F) // bits [10:6]
	funct = uint8(word & 0x3F)        // bits [5:0]
	return
}

// decodeSpecial decodes opcode SPECIAL (R-type) instructions.
// Format: 000000 | rs | rt | rd | shamt | funct
func (d *Decoder) decodeSpecial(word uint32, inst *Instruction) {
	rs, rt, rd, shamt, funct := fields(word)
	inst.Format = FormatR
	inst.Rs, inst.Rt, inst.Rd = rs, rt, rd
	inst.Shamt, inst.Funct = shamt, funct

	switch funct {
	case fnADD, fnADDU, fnSUB, fnSUBU, fnAND, fnOR, fnXOR, fnNOR, fnSLT, fnSLTU,
		fnSLLV, fnSRLV, fnSRAV:
		if shamt != 0 {
			return
		}
		inst.Op = specialOps[funct]
		inst.Class = ClassALUReg
		inst.Dest = rd
		if funct == fnSLLV || funct == fnSRLV || funct == fnSRAV {
			// Shift amount comes from rs, value from rt.
			inst.Src1 = rt
			inst.Src2 = rs
		} else {
			inst.Src1 = rs
			inst.Src2 = rt
		}

	case fnSLL, fnSRL, fnSRA:
		if rs != 0 {
			return
		}
		inst.Op = specialOps[funct]
		inst.Class = ClassALUReg
		inst.Dest = rd
		inst.Src1 = rt

	case fnJR:
		if rt != 0 || rd != 0 || shamt != 0 {
			return
		}
		inst.Op = OpJR
		inst.Class = ClassJumpReg
		inst.Src1 = rs

	case fnJALR:
		if rt != 0 || shamt != 0 {
			return
		}
		inst.Op = OpJALR
		inst.Class = ClassJumpReg
		inst.Src1 = rs
		inst.Dest = rd
	}
}

var specialOps = map[uint8]Op{
	fnADD:  OpADD,
	fnADDU: OpADDU,
	fnSUB:  OpSUB,
	fnSUBU: OpSUBU,
	fnAND:  OpAND,
	fnOR:   OpOR,
	fnXOR:  OpXOR,
	fnNOR:  OpNOR,
	fnSLT:  OpSLT,
	fnSLTU: OpSLTU,
	fnSLL:  OpSLL,
	fnSRL:  OpSRL,
	fnSRA:  OpSRA,
	fnSLLV: OpSLLV,
	fnSRLV: OpSRLV,
	fnSRAV: OpSRAV,
}

// decodeSpecial2 decodes MUL.
// Format: 011100 | rs | rt | rd | 00000 | 000010
func (d *Decoder) decodeSpecial2(word uint32, inst *Instruction) {
	rs, rt, rd, shamt, funct := fields(word)
	if funct != fnMUL || shamt != 0 {
		return
	}
	inst.Format = FormatR
	inst.Rs, inst.Rt, inst.Rd = rs, rt, rd
	inst.Funct = funct
	inst.Op = OpMUL
	inst.Class = ClassALUReg
	inst.Dest = rd
	inst.Src1 = rs
	inst.Src2 = rt
}

// decodeJump decodes J and JAL.
// Format: op | target26
func (d *Decoder) decodeJump(word, opcode uint32, inst *Instruction) {
	inst.Format = FormatJ
	inst.Class = ClassJump
	inst.Target = word & 0x3FFFFFF // bits [25:0]

	if opcode == opcJ {
		inst.Op = OpJ
		return
	}
	inst.Op = OpJAL
	inst.Dest = 31
}

// decodeImm decodes I-type instructions.
// Format: op | rs | rt | imm16
func (d *Decoder) decodeImm(word, opcode uint32, inst *Instruction) {
	rs, rt, _, _, _ := fields(word)
	imm16 := uint16(word & 0xFFFF) // bits [15:0]
	simm := signExtend16(imm16)

	inst.Format = FormatI
	inst.Rs, inst.Rt = rs, rt

	switch opcode {
	case opcADDI, opcADDIU, opcSLTI, opcSLTIU:
		inst.Op = immOps[opcode]
		inst.Class = ClassALUImm
		inst.Dest = rt
		inst.Src1 = rs
		inst.Imm = simm

	case opcANDI, opcORI, opcXORI:
		inst.Op = immOps[opcode]
		inst.Class = ClassALUImm
		inst.Dest = rt
		inst.Src1 = rs
		inst.Imm = int32(imm16) // zero-extended

	case opcLUI:
		if rs != 0 {
			break
		}
		inst.Op = OpLUI
		inst.Class = ClassALUImm
		inst.Dest = rt
		inst.Imm = int32(uint32(imm16) << 16)

	case opcLW:
		inst.Op = OpLW
		inst.Class = ClassLoad
		inst.Dest = rt
		inst.Src1 = rs
		inst.Imm = simm

	case opcSW:
		inst.Op = OpSW
		inst.Class = ClassStore
		inst.Src1 = rs
		inst.Src2 = rt
		inst.Imm = simm

	case opcBEQ, opcBNE:
		inst.Op = OpBEQ
		if opcode == opcBNE {
			inst.Op = OpBNE
		}
		inst.Class = ClassBranch
		inst.Src1 = rs
		inst.Src2 = rt
		inst.Imm = simm
		inst.BranchOffset = simm << 2

	case opcBLEZ, opcBGTZ:
		if rt != 0 {
			break
		}
		inst.Op = OpBLEZ
		if opcode == opcBGTZ {
			inst.Op = OpBGTZ
		}
		inst.Class = ClassBranch
		inst.Src1 = rs
		inst.Imm = simm
		inst.BranchOffset = simm << 2

	default:
		inst.Format = FormatUnknown
	}
}

var immOps = map[uint32]Op{
	opcADDI:  OpADDI,
	opcADDIU: OpADDIU,
	opcSLTI:  OpSLTI,
	opcSLTIU: OpSLTIU,
	opcANDI:  OpANDI,
	opcORI:   OpORI,
	opcXORI:  OpXORI,
}

// signExtend16 sign-extends a 16-bit immediate from bit 15.
func signExtend16(v uint16) int32 {
	return int32(int16(v))
}

// IsControlWord reports whether word encodes a branch or jump, looking only
// at the opcode and function fields. The fetch stage uses it to hold fetch
// before the instruction is fully decoded.
func IsControlWord(word uint32) bool {
	opcode := (word >> 26) & 0x3F
	switch opcode {
	case opcJ, opcJAL, opcBEQ, opcBNE, opcBLEZ, opcBGTZ:
		return true
	case opcSpecial:
		funct := word & 0x3F
		return word != 0 && (funct == fnJR || funct == fnJALR)
	default:
		return false
	}
}
