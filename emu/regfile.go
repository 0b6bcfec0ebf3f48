// Package emu provides functional MIPS emulation.
package emu

// NumRegs is the number of general-purpose registers.
const NumRegs = 32

// RegFile represents the MIPS integer register file.
type RegFile struct {
	// R holds general-purpose registers R0-R31.
	// R[0] is hardwired to zero: it always reads as 0 and writes are dropped.
	R [NumRegs]int32

	// PC is the program counter used by functional emulation.
	PC uint32
}

// ReadReg reads a register value. Register 0 returns 0.
// Registers >= 32 (e.g., the insts.NoReg sentinel) return 0.
func (r *RegFile) ReadReg(reg uint8) int32 {
	if reg == 0 || reg >= NumRegs {
		return 0
	}
	return r.R[reg]
}

// WriteReg writes a value to a register. Writes to register 0 or to
// out-of-range registers are ignored.
func (r *RegFile) WriteReg(reg uint8, value int32) {
	if reg == 0 || reg >= NumRegs {
		return
	}
	r.R[reg] = value
}

// Values returns a copy of all register values.
func (r *RegFile) Values() [NumRegs]int32 {
	return r.R
}
