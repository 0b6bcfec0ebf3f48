package pipeline

import "github.com/sarchlab/m8sim/insts"

// ForwardCandidate is a pipeline register that may supply a forwarded value.
type ForwardCandidate struct {
	ID    LatchID
	Latch *Latch
}

// OperandResult is the outcome of resolving one source operand.
type OperandResult struct {
	// Value is the operand value to use.
	Value int32
	// Ready is false when the nearest producer has not computed its value yet.
	Ready bool
	// Forwarded is true when Value came from a pipeline register.
	Forwarded bool
	// Path is the forwarding path used, valid when Forwarded is true.
	Path ForwardPath
	// ProducerPC is the PC of the producing instruction when one was found.
	ProducerPC uint32
}

// Dependency is a read-after-write dependence between the instruction in RF
// and an older instruction still in the pipe.
type Dependency struct {
	Reg        uint8
	ConsumerPC uint32
	ProducerPC uint32
	// Producer is the stage the producing instruction occupies.
	Producer Stage
}

// HazardUnit detects data hazards and determines forwarding/stall signals.
type HazardUnit struct{}

// NewHazardUnit creates a new hazard detection unit.
func NewHazardUnit() *HazardUnit {
	return &HazardUnit{}
}

// execSources returns the registers an instruction reads at the start of EX.
// Store data is not needed until DS and is excluded.
func execSources(inst *insts.Instruction) []uint8 {
	regs := make([]uint8, 0, 2)
	if inst.Src1 != insts.NoReg {
		regs = append(regs, inst.Src1)
	}
	if inst.Src2 != insts.NoReg && !inst.IsStore() {
		regs = append(regs, inst.Src2)
	}
	return regs
}

// allSources returns every register an instruction reads.
func allSources(inst *insts.Instruction) []uint8 {
	regs := make([]uint8, 0, 2)
	if inst.Src1 != insts.NoReg {
		regs = append(regs, inst.Src1)
	}
	if inst.Src2 != insts.NoReg {
		regs = append(regs, inst.Src2)
	}
	return regs
}

// valueReady reports whether a producer sitting in latch id has its result.
// Loads have their data only once they have passed DF.
func valueReady(id LatchID, l *Latch) bool {
	if l.Inst.IsLoad() {
		return id >= LatchDFDS
	}
	return true
}

// DetectLoadUse detects a load-use hazard: the instruction in RF reads, at
// the start of EX, a register loaded by the instruction currently in EX.
// The load's data does not exist until the end of DF, so the consumer must
// wait one cycle in RF.
func (h *HazardUnit) DetectLoadUse(rf, ex *Latch) bool {
	if !rf.Valid || rf.Inst == nil || !ex.Valid || ex.Inst == nil {
		return false
	}
	if !ex.Inst.IsLoad() {
		return false
	}

	for _, reg := range execSources(rf.Inst) {
		if ex.Produces(reg) {
			return true
		}
	}
	return false
}

// DetectDependencies lists the RAW dependences of the instruction in RF on
// instructions in EX, DF and DS. Only the nearest producer of each source
// register is reported.
func (h *HazardUnit) DetectDependencies(rf *Latch, ex, df, ds *Latch) []Dependency {
	if !rf.Valid || rf.Inst == nil {
		return nil
	}

	ahead := []struct {
		stage Stage
		latch *Latch
	}{
		{StageEX, ex},
		{StageDF, df},
		{StageDS, ds},
	}

	var deps []Dependency
	for _, reg := range allSources(rf.Inst) {
		if reg == 0 || containsReg(deps, reg) {
			continue
		}
		for _, a := range ahead {
			if a.latch.Produces(reg) {
				deps = append(deps, Dependency{
					Reg:        reg,
					ConsumerPC: rf.PC,
					ProducerPC: a.latch.PC,
					Producer:   a.stage,
				})
				break
			}
		}
	}
	return deps
}

func containsReg(deps []Dependency, reg uint8) bool {
	for _, d := range deps {
		if d.Reg == reg {
			return true
		}
	}
	return false
}

// ResolveOperand finds the value of reg for an instruction whose operands
// live in latch dst. Candidates must be ordered nearest producer first; the
// first one that writes reg decides the outcome. If none does, latched is
// the register file value read earlier and is returned unchanged.
func (h *HazardUnit) ResolveOperand(
	reg uint8,
	latched int32,
	dst LatchID,
	candidates ...ForwardCandidate,
) OperandResult {
	result := OperandResult{Value: latched, Ready: true}

	// R0 always reads as 0, no need to forward
	if reg == 0 || reg == insts.NoReg {
		return result
	}

	for _, c := range candidates {
		if !c.Latch.Produces(reg) {
			continue
		}

		result.ProducerPC = c.Latch.PC
		if !valueReady(c.ID, c.Latch) {
			result.Ready = false
			return result
		}

		result.Value = c.Latch.Result()
		result.Forwarded = true
		result.Path = forwardPathInto(c.ID, dst)
		return result
	}

	return result
}
