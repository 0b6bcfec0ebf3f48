package insts

import "fmt"

var opNames = [...]string{
	OpIllegal: "ILLEGAL",
	OpNOP:     "NOP",
	OpADD:     "ADD",
	OpADDU:    "ADDU",
	OpSUB:     "SUB",
	OpSUBU:    "SUBU",
	OpAND:     "AND",
	OpOR:      "OR",
	OpXOR:     "XOR",
	OpNOR:     "NOR",
	OpSLT:     "SLT",
	OpSLTU:    "SLTU",
	OpSLL:     "SLL",
	OpSRL:     "SRL",
	OpSRA:     "SRA",
	OpSLLV:    "SLLV",
	OpSRLV:    "SRLV",
	OpSRAV:    "SRAV",
	OpMUL:     "MUL",
	OpADDI:    "ADDI",
	OpADDIU:   "ADDIU",
	OpSLTI:    "SLTI",
	OpSLTIU:   "SLTIU",
	OpANDI:    "ANDI",
	OpORI:     "ORI",
	OpXORI:    "XORI",
	OpLUI:     "LUI",
	OpLW:      "LW",
	OpSW:      "SW",
	OpBEQ:     "BEQ",
	OpBNE:     "BNE",
	OpBLEZ:    "BLEZ",
	OpBGTZ:    "BGTZ",
	OpJ:       "J",
	OpJAL:     "JAL",
	OpJR:      "JR",
	OpJALR:    "JALR",
}

// String returns the mnemonic.
func (op Op) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return fmt.Sprintf("Op(%d)", uint8(op))
}

// String returns the assembly form of the instruction, e.g. "LW R1, 0(R0)".
func (i *Instruction) String() string {
	switch i.Op {
	case OpIllegal:
		return fmt.Sprintf("ILLEGAL 0x%08X", i.Word)
	case OpNOP:
		return "NOP"
	case OpSLL, OpSRL, OpSRA:
		return fmt.Sprintf("%s R%d, R%d, %d", i.Op, i.Rd, i.Rt, i.Shamt)
	case OpSLLV, OpSRLV, OpSRAV:
		return fmt.Sprintf("%s R%d, R%d, R%d", i.Op, i.Rd, i.Rt, i.Rs)
	case OpJR:
		return fmt.Sprintf("JR R%d", i.Rs)
	case OpJALR:
		return fmt.Sprintf("JALR R%d, R%d", i.Rd, i.Rs)
	case OpLUI:
		return fmt.Sprintf("LUI R%d, %d", i.Rt, uint32(i.Imm)>>16)
	case OpLW, OpSW:
		return fmt.Sprintf("%s R%d, %d(R%d)", i.Op, i.Rt, i.Imm, i.Rs)
	case OpBEQ, OpBNE:
		return fmt.Sprintf("%s R%d, R%d, %d", i.Op, i.Rs, i.Rt, i.Imm)
	case OpBLEZ, OpBGTZ:
		return fmt.Sprintf("%s R%d, %d", i.Op, i.Rs, i.Imm)
	case OpJ, OpJAL:
		return fmt.Sprintf("%s %d", i.Op, i.Target<<2)
	}

	switch i.Class {
	case ClassALUReg:
		return fmt.Sprintf("%s R%d, R%d, R%d", i.Op, i.Rd, i.Rs, i.Rt)
	case ClassALUImm:
		return fmt.Sprintf("%s R%d, R%d, %d", i.Op, i.Rt, i.Rs, i.Imm)
	}

	return i.Op.String()
}
