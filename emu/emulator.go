// Package emu provides functional MIPS emulation.
package emu

import (
	"errors"
	"fmt"

	"github.com/sarchlab/m8sim/insts"
)

// ErrInstructionLimit is returned by Run when the instruction limit is hit
// before the program runs off its end.
var ErrInstructionLimit = errors.New("max instructions reached")

// StepResult represents the result of executing a single instruction.
type StepResult struct {
	// Exited is true if the PC has left the program.
	Exited bool

	// Inst is the instruction executed by this step, nil if Exited.
	Inst *insts.Instruction

	// Fault is set when the instruction was squashed by an unaligned access.
	Fault error

	// Err is set if a fatal error occurred during execution.
	Err error
}

// Emulator executes MIPS instructions functionally, one instruction per step,
// with no pipeline timing. It is the reference the timing pipeline is checked
// against.
type Emulator struct {
	regFile *RegFile
	memory  *Memory
	decoder *insts.Decoder

	// Execution units
	alu        *ALU
	branchUnit *BranchUnit

	// Program image
	program []uint32
	start   uint32

	// Execution state
	instructionCount uint64
	maxInstructions  uint64 // 0 means no limit
	faults           uint64
}

// EmulatorOption is a functional option for configuring the Emulator.
type EmulatorOption func(*Emulator)

// WithRegFile makes the emulator operate on the given register file.
func WithRegFile(regFile *RegFile) EmulatorOption {
	return func(e *Emulator) {
		e.regFile = regFile
	}
}

// WithMemory makes the emulator operate on the given data memory.
func WithMemory(memory *Memory) EmulatorOption {
	return func(e *Emulator) {
		e.memory = memory
	}
}

// WithMaxInstructions sets the maximum number of instructions to execute.
// A value of 0 means no limit.
func WithMaxInstructions(max uint64) EmulatorOption {
	return func(e *Emulator) {
		e.maxInstructions = max
	}
}

// NewEmulator creates a new MIPS emulator.
func NewEmulator(opts ...EmulatorOption) *Emulator {
	e := &Emulator{
		decoder:    insts.NewDecoder(),
		alu:        NewALU(),
		branchUnit: NewBranchUnit(),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.regFile == nil {
		e.regFile = &RegFile{}
	}
	if e.memory == nil {
		e.memory = NewMemory()
	}

	return e
}

// RegFile returns the emulator's register file.
func (e *Emulator) RegFile() *RegFile {
	return e.regFile
}

// Memory returns the emulator's memory.
func (e *Emulator) Memory() *Memory {
	return e.memory
}

// InstructionCount returns the number of instructions executed, including
// squashed ones.
func (e *Emulator) InstructionCount() uint64 {
	return e.instructionCount
}

// Faults returns the number of instructions squashed by unaligned accesses.
func (e *Emulator) Faults() uint64 {
	return e.faults
}

// LoadProgram installs the program words at start and sets the PC to start.
func (e *Emulator) LoadProgram(start uint32, program []uint32) {
	e.program = program
	e.start = start
	e.regFile.PC = start
	e.instructionCount = 0
	e.faults = 0
}

// fetch returns the program word at pc.
func (e *Emulator) fetch(pc uint32) (uint32, bool) {
	if pc < e.start || pc%insts.WordSize != 0 {
		return 0, false
	}
	index := (pc - e.start) / insts.WordSize
	if index >= uint32(len(e.program)) {
		return 0, false
	}
	return e.program[index], true
}

// Step executes a single instruction.
// Returns a StepResult indicating whether execution should continue.
func (e *Emulator) Step() StepResult {
	if e.maxInstructions > 0 && e.instructionCount >= e.maxInstructions {
		return StepResult{Err: ErrInstructionLimit}
	}

	pc := e.regFile.PC

	// 1. Fetch
	word, ok := e.fetch(pc)
	if !ok {
		return StepResult{Exited: true}
	}

	// 2. Decode
	inst, err := e.decoder.DecodeAt(word, pc)
	if err != nil {
		return StepResult{Inst: inst, Err: err}
	}

	// 3. Execute
	result := e.execute(inst)
	e.instructionCount++

	return result
}

// Run executes instructions until the PC leaves the program or an error
// occurs.
func (e *Emulator) Run() error {
	for {
		result := e.Step()
		if result.Exited {
			return nil
		}
		if result.Err != nil {
			return fmt.Errorf("emulation stopped at PC=%d: %w", e.regFile.PC, result.Err)
		}
	}
}

// execute performs one decoded instruction and advances the PC.
func (e *Emulator) execute(inst *insts.Instruction) StepResult {
	pc := e.regFile.PC
	op1 := e.regFile.ReadReg(inst.Src1)
	op2 := e.regFile.ReadReg(inst.Src2)
	result := StepResult{Inst: inst}

	e.regFile.PC = pc + insts.WordSize

	switch inst.Class {
	case insts.ClassNOP:
	case insts.ClassALUReg, insts.ClassALUImm:
		e.regFile.WriteReg(inst.Dest, e.alu.Compute(inst, op1, op2))
	case insts.ClassLoad:
		value, err := e.memory.Load(e.alu.EffectiveAddress(inst, op1))
		if err != nil {
			e.faults++
			result.Fault = err
			break
		}
		e.regFile.WriteReg(inst.Dest, value)
	case insts.ClassStore:
		if err := e.memory.Store(e.alu.EffectiveAddress(inst, op1), op2); err != nil {
			e.faults++
			result.Fault = err
		}
	case insts.ClassBranch, insts.ClassJump, insts.ClassJumpReg:
		br := e.branchUnit.Resolve(inst, pc, op1, op2)
		if inst.HasDest() {
			e.regFile.WriteReg(inst.Dest, br.Link)
		}
		e.regFile.PC = br.Target
	default:
		result.Err = &insts.IllegalInstructionError{Word: inst.Word, PC: pc}
	}

	return result
}
