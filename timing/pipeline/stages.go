// Package pipeline provides an 8-stage in-order pipeline model for
// cycle-accurate timing simulation.
package pipeline

import (
	"github.com/sarchlab/m8sim/emu"
	"github.com/sarchlab/m8sim/insts"
)

// FetchStage handles instruction fetch from the program stream.
// Instructions live in a separate read-only image, not in data memory.
type FetchStage struct {
	program []uint32
	start   uint32
}

// NewFetchStage creates a new fetch stage with no program.
func NewFetchStage() *FetchStage {
	return &FetchStage{}
}

// Load installs the program image at start.
func (s *FetchStage) Load(start uint32, program []uint32) {
	s.start = start
	s.program = program
}

// Fetch reads the instruction at the given PC. It returns false when pc is
// outside the program.
func (s *FetchStage) Fetch(pc uint32) (uint32, bool) {
	if pc < s.start || (pc-s.start)%insts.WordSize != 0 {
		return 0, false
	}
	index := (pc - s.start) / insts.WordSize
	if index >= uint32(len(s.program)) {
		return 0, false
	}
	return s.program[index], true
}

// Len returns the number of words in the program.
func (s *FetchStage) Len() int {
	return len(s.program)
}

// DecodeStage handles instruction decode.
type DecodeStage struct {
	decoder *insts.Decoder
}

// NewDecodeStage creates a new decode stage.
func NewDecodeStage() *DecodeStage {
	return &DecodeStage{
		decoder: insts.NewDecoder(),
	}
}

// Decode decodes the latched instruction word. An unsupported word is kept
// as an OpIllegal instruction; the error is raised when it reaches EX.
func (s *DecodeStage) Decode(l *Latch) {
	inst, _ := s.decoder.DecodeAt(l.IR, l.PC)
	l.Inst = inst
}

// RegisterStage reads source operands from the register file.
type RegisterStage struct {
	regFile *emu.RegFile
}

// NewRegisterStage creates a new register-fetch stage.
func NewRegisterStage(regFile *emu.RegFile) *RegisterStage {
	return &RegisterStage{
		regFile: regFile,
	}
}

// Read latches the register file values of the instruction's sources.
// Values still in flight are corrected by forwarding in EX.
func (s *RegisterStage) Read(l *Latch) {
	l.A = s.regFile.ReadReg(l.Inst.Src1)
	l.B = s.regFile.ReadReg(l.Inst.Src2)
}

// ExecuteStage handles ALU operations, address calculation and branch
// resolution.
type ExecuteStage struct {
	alu        *emu.ALU
	branchUnit *emu.BranchUnit
}

// NewExecuteStage creates a new execute stage.
func NewExecuteStage() *ExecuteStage {
	return &ExecuteStage{
		alu:        emu.NewALU(),
		branchUnit: emu.NewBranchUnit(),
	}
}

// ExecuteResult holds the branch outcome of the execute stage.
type ExecuteResult struct {
	BranchTaken  bool
	BranchTarget uint32
}

// Execute computes the latch's ALUOut from its (already forwarded) operands.
// For branches and jumps NPC is set to the resolved next address.
func (s *ExecuteStage) Execute(l *Latch) ExecuteResult {
	result := ExecuteResult{}
	inst := l.Inst

	switch inst.Class {
	case insts.ClassALUReg, insts.ClassALUImm:
		l.ALUOut = s.alu.Compute(inst, l.A, l.B)

	case insts.ClassLoad, insts.ClassStore:
		l.ALUOut = int32(s.alu.EffectiveAddress(inst, l.A))

	case insts.ClassBranch, insts.ClassJump, insts.ClassJumpReg:
		br := s.branchUnit.Resolve(inst, l.PC, l.A, l.B)
		l.ALUOut = br.Link
		l.NPC = br.Target
		result.BranchTaken = br.Taken
		result.BranchTarget = br.Target
	}

	return result
}

// MemoryStage handles the two halves of a data access: DF reads memory and
// checks alignment, DS commits stores.
type MemoryStage struct {
	memory *emu.Memory
}

// NewMemoryStage creates a new memory stage.
func NewMemoryStage(memory *emu.Memory) *MemoryStage {
	return &MemoryStage{
		memory: memory,
	}
}

// Fetch performs the DF half of an access. Loads read LMD. An unaligned
// load or store marks the latch faulted and the error is returned.
func (s *MemoryStage) Fetch(l *Latch) error {
	if !l.Valid || l.Inst == nil {
		return nil
	}

	addr := uint32(l.ALUOut)
	switch {
	case l.Inst.IsLoad():
		value, err := s.memory.Load(addr)
		if err != nil {
			l.Fault = err
			return err
		}
		l.LMD = value
	case l.Inst.IsStore():
		if err := emu.CheckAlignment(addr, true); err != nil {
			l.Fault = err
			return err
		}
	}

	return nil
}

// Store performs the DS half of an access, writing store data to memory.
func (s *MemoryStage) Store(l *Latch) {
	if !l.Valid || l.Fault != nil || l.Inst == nil || !l.Inst.IsStore() {
		return
	}

	// Alignment was checked in DF.
	_ = s.memory.Store(uint32(l.ALUOut), l.B)
}

// WritebackStage handles register file writeback.
type WritebackStage struct {
	regFile *emu.RegFile
}

// NewWritebackStage creates a new writeback stage.
func NewWritebackStage(regFile *emu.RegFile) *WritebackStage {
	return &WritebackStage{
		regFile: regFile,
	}
}

// Writeback writes the result to the register file. It returns true if the
// latch held an instruction that retires.
func (s *WritebackStage) Writeback(l *Latch) bool {
	if !l.Valid || l.Fault != nil || l.Inst == nil {
		return false
	}

	if l.Inst.HasDest() {
		s.regFile.WriteReg(l.Inst.Dest, l.Result())
	}

	return true
}
