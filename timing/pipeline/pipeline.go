package pipeline

import (
	"errors"
	"fmt"

	"github.com/go-logr/logr"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/m8sim/emu"
	"github.com/sarchlab/m8sim/insts"
	"github.com/sarchlab/m8sim/timing/latency"
)

var (
	// ErrAborted is returned by Tick and Run after the run was aborted.
	ErrAborted = errors.New("pipeline aborted")

	// ErrCycleLimit is returned when the maximum cycle count is reached
	// before the pipeline drains.
	ErrCycleLimit = errors.New("max cycles reached")
)

// Hook positions invoked by the pipeline.
var (
	// HookPosCycle fires after every cycle. The item is a *Snapshot.
	HookPosCycle = &sim.HookPos{Name: "Pipeline Cycle"}

	// HookPosRetire fires when an instruction leaves WB. The item is the
	// retired *insts.Instruction.
	HookPosRetire = &sim.HookPos{Name: "Pipeline Retire"}

	// HookPosFault fires when a data access faults. The item is the error.
	HookPosFault = &sim.HookPos{Name: "Pipeline Fault"}

	// HookPosAbort fires once when the run is aborted. The item is the
	// abort reason.
	HookPosAbort = &sim.HookPos{Name: "Pipeline Abort"}
)

// PipelineOption is a functional option for configuring the Pipeline.
type PipelineOption func(*Pipeline)

// WithLatencyTable sets a custom latency table for instruction timing.
// Instructions whose latency exceeds one cycle hold EX and freeze the stages
// behind it.
func WithLatencyTable(table *latency.Table) PipelineOption {
	return func(p *Pipeline) {
		p.latencyTable = table
	}
}

// WithMaxCycles sets the safety bound on the number of simulated cycles.
// A value of 0 means no limit.
func WithMaxCycles(maxCycles uint64) PipelineOption {
	return func(p *Pipeline) {
		p.maxCycles = maxCycles
	}
}

// WithLogger sets the logger used for per-cycle tracing.
func WithLogger(log logr.Logger) PipelineOption {
	return func(p *Pipeline) {
		p.log = log
	}
}

// Pipeline implements an 8-stage in-order pipelined CPU model.
// Stages: IF -> IS -> ID -> RF -> EX -> DF -> DS -> WB.
//
// Each cycle the stages are evaluated from WB back to IF, reading the latches
// as they stood at the end of the previous cycle and building the next set.
// WB writes registers before RF reads them, so a producer four or more
// stages ahead never needs forwarding.
type Pipeline struct {
	*sim.HookableBase

	// Pipeline stages
	fetchStage     *FetchStage
	decodeStage    *DecodeStage
	registerStage  *RegisterStage
	executeStage   *ExecuteStage
	memoryStage    *MemoryStage
	writebackStage *WritebackStage

	// Hazard detection
	hazardUnit *HazardUnit

	// Instruction timing
	latencyTable *latency.Table

	// Shared resources
	regFile *emu.RegFile
	memory  *emu.Memory

	state     State
	stages    [NumStages]StageView
	maxCycles uint64
	abortErr  error

	decoder *insts.Decoder
	log     logr.Logger
}

// NewPipeline creates a new pipeline attached to the given register file and
// data memory.
func NewPipeline(regFile *emu.RegFile, memory *emu.Memory, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		HookableBase:   sim.NewHookableBase(),
		fetchStage:     NewFetchStage(),
		decodeStage:    NewDecodeStage(),
		registerStage:  NewRegisterStage(regFile),
		executeStage:   NewExecuteStage(),
		memoryStage:    NewMemoryStage(memory),
		writebackStage: NewWritebackStage(regFile),
		hazardUnit:     NewHazardUnit(),
		latencyTable:   latency.NewTable(),
		regFile:        regFile,
		memory:         memory,
		decoder:        insts.NewDecoder(),
		log:            logr.Discard(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// LoadProgram installs the program at start and resets the pipeline to an
// empty state with the PC at start. The register file and memory are left
// untouched.
func (p *Pipeline) LoadProgram(start uint32, program []uint32) {
	p.fetchStage.Load(start, program)
	p.state = State{PC: start}
	p.stages = [NumStages]StageView{}
	p.abortErr = nil

	p.log.V(1).Info("program loaded", "start", start, "words", len(program))
}

// PC returns the address of the next instruction to fetch.
func (p *Pipeline) PC() uint32 {
	return p.state.PC
}

// Stats returns the pipeline statistics.
func (p *Pipeline) Stats() Statistics {
	return p.state.Stats
}

// State returns a copy of the pipeline state.
func (p *Pipeline) State() State {
	return p.state
}

// RegFile returns the register file.
func (p *Pipeline) RegFile() *emu.RegFile {
	return p.regFile
}

// Memory returns the data memory.
func (p *Pipeline) Memory() *emu.Memory {
	return p.memory
}

// Err returns the abort reason, or nil if the run was not aborted.
func (p *Pipeline) Err() error {
	return p.abortErr
}

// Drained returns true once the program is exhausted, no branch is pending
// and every latch holds a bubble.
func (p *Pipeline) Drained() bool {
	if p.state.FetchHeld {
		return false
	}
	if _, ok := p.fetchStage.Fetch(p.state.PC); ok {
		return false
	}
	for i := range p.state.Latches {
		if p.state.Latches[i].Valid {
			return false
		}
	}
	return true
}

// Abort stops the run. Later calls to Tick return an error wrapping
// ErrAborted and the last snapshot is left as it was. Only the first reason
// is kept.
func (p *Pipeline) Abort(reason error) {
	if p.abortErr != nil {
		return
	}
	if reason == nil {
		reason = ErrAborted
	}

	p.abortErr = reason
	p.log.Error(reason, "pipeline aborted", "cycle", p.state.Cycle, "pc", p.state.PC)
	p.InvokeHook(sim.HookCtx{Domain: p, Pos: HookPosAbort, Item: reason})
}

// Run ticks the pipeline until it drains, the cycle limit is reached or the
// run is aborted.
func (p *Pipeline) Run() error {
	for {
		if err := p.Tick(); err != nil {
			return err
		}
		if p.Drained() {
			return nil
		}
	}
}

// RunCycles executes up to n cycles, stopping early when the pipeline
// drains. Returns true if the pipeline is still running.
func (p *Pipeline) RunCycles(n uint64) (bool, error) {
	for i := uint64(0); i < n; i++ {
		if p.Drained() {
			return false, nil
		}
		if err := p.Tick(); err != nil {
			return false, err
		}
	}
	return !p.Drained(), nil
}

// Tick executes one pipeline cycle. It is a no-op on a drained pipeline.
// An illegal instruction reaching EX aborts the run before any state is
// changed and the *insts.IllegalInstructionError is returned.
func (p *Pipeline) Tick() error {
	if p.abortErr != nil {
		return fmt.Errorf("%w: %w", ErrAborted, p.abortErr)
	}
	if p.Drained() {
		return nil
	}

	cur := &p.state.Latches
	if ex := &cur[LatchRFEX]; ex.Valid && ex.Inst != nil && ex.Inst.Op == insts.OpIllegal {
		err := &insts.IllegalInstructionError{Word: ex.IR, PC: ex.PC}
		p.Abort(err)
		return err
	}

	if p.maxCycles > 0 && p.state.Cycle >= p.maxCycles {
		return ErrCycleLimit
	}

	var next [NumLatches]Latch
	var views [NumStages]StageView
	events := CycleEvents{}

	for s := StageIS; s < NumStages; s++ {
		views[s] = p.stageView(&cur[s-1])
	}

	p.tickWriteback(cur)
	p.tickDataStore(cur, &next)
	p.tickDataFetch(cur, &next, &events)
	exHold := p.tickExecute(cur, &next, &events)

	events.Detected = p.hazardUnit.DetectDependencies(
		&cur[LatchIDRF], &cur[LatchRFEX], &cur[LatchEXDF], &cur[LatchDFDS])

	switch {
	case exHold:
		p.freezeFrom(LatchIDRF, cur, &next)
		p.recordStall(&events, StallOther, &cur[LatchRFEX])

	case p.hazardUnit.DetectLoadUse(&cur[LatchIDRF], &cur[LatchRFEX]):
		// Bubble into EX, hold RF and everything behind it.
		next[LatchRFEX].Clear()
		p.freezeFrom(LatchIDRF, cur, &next)
		p.recordStall(&events, StallLoads, &cur[LatchIDRF])

	default:
		p.advanceFront(cur, &next, &views, &events)
	}

	p.state.Latches = next
	p.state.Cycle++
	p.state.Stats.Cycles = p.state.Cycle
	p.state.LastCycle = events
	p.stages = views

	for _, f := range events.Forwards {
		p.state.Stats.Forwards[f.Path]++
	}

	p.logCycle(&events)

	if p.NumHooks() > 0 {
		snapshot := p.Snapshot()
		p.InvokeHook(sim.HookCtx{Domain: p, Pos: HookPosCycle, Item: &snapshot})
	}

	return nil
}

// tickWriteback retires the instruction in WB.
func (p *Pipeline) tickWriteback(cur *[NumLatches]Latch) {
	wb := &cur[LatchDSWB]
	if !p.writebackStage.Writeback(wb) {
		return
	}

	p.state.Stats.Instructions++
	p.InvokeHook(sim.HookCtx{Domain: p, Pos: HookPosRetire, Item: wb.Inst})
}

// tickDataStore commits the store in DS and passes its latch to DS/WB.
func (p *Pipeline) tickDataStore(cur, next *[NumLatches]Latch) {
	ds := cur[LatchDFDS]
	p.memoryStage.Store(&ds)
	next[LatchDSWB] = ds
}

// tickDataFetch performs the DF half of the access for the instruction in
// DF, resolving store data that was not available in EX.
func (p *Pipeline) tickDataFetch(cur, next *[NumLatches]Latch, events *CycleEvents) {
	df := cur[LatchEXDF]
	if !df.Valid {
		next[LatchDFDS] = df
		return
	}

	if df.Inst.IsStore() && df.StorePending {
		p.resolveStoreData(&df, cur, events)
	}

	if err := p.memoryStage.Fetch(&df); err != nil {
		p.state.Stats.Faults++
		events.Fault = err
		p.log.V(1).Info("data access fault", "pc", df.PC, "error", err.Error())
		p.InvokeHook(sim.HookCtx{Domain: p, Pos: HookPosFault, Item: err})
	}

	next[LatchDFDS] = df
}

// resolveStoreData forwards the data of a store whose producer was a load
// still in DF when the store was in EX.
func (p *Pipeline) resolveStoreData(df *Latch, cur *[NumLatches]Latch, events *CycleEvents) {
	reg := df.Inst.Src2
	res := p.hazardUnit.ResolveOperand(reg, p.regFile.ReadReg(reg), LatchEXDF,
		ForwardCandidate{ID: LatchDFDS, Latch: &cur[LatchDFDS]},
		ForwardCandidate{ID: LatchDSWB, Latch: &cur[LatchDSWB]},
	)

	df.B = res.Value
	df.StorePending = false
	if res.Forwarded {
		events.Forwards = append(events.Forwards, ForwardEvent{
			Path:       res.Path,
			Reg:        reg,
			Value:      res.Value,
			ProducerPC: res.ProducerPC,
			ConsumerPC: df.PC,
		})
	}
}

// tickExecute runs the instruction in EX. It returns true when the
// instruction needs more cycles and holds EX.
func (p *Pipeline) tickExecute(cur, next *[NumLatches]Latch, events *CycleEvents) bool {
	ex := cur[LatchRFEX]
	if !ex.Valid {
		next[LatchEXDF] = ex
		return false
	}

	if !ex.ExecStarted {
		p.forwardOperands(&ex, cur, events)
		result := p.executeStage.Execute(&ex)
		if ex.Inst.IsControl() {
			p.log.V(2).Info("branch resolved",
				"pc", ex.PC, "taken", result.BranchTaken, "target", result.BranchTarget)
		}

		ex.ExecStarted = true
		ex.ExecLeft = p.latencyTable.GetLatency(ex.Inst)
		if ex.ExecLeft == 0 {
			ex.ExecLeft = 1
		}
	}
	ex.ExecLeft--

	if ex.ExecLeft > 0 {
		next[LatchRFEX] = ex
		next[LatchEXDF].Clear()
		return true
	}

	if ex.Inst.IsControl() {
		p.state.PC = ex.NPC
		p.state.FetchHeld = false
	}
	next[LatchEXDF] = ex
	return false
}

// forwardOperands replaces the operands read in RF with values from the
// pipeline registers ahead, nearest producer first.
func (p *Pipeline) forwardOperands(ex *Latch, cur *[NumLatches]Latch, events *CycleEvents) {
	candidates := []ForwardCandidate{
		{ID: LatchEXDF, Latch: &cur[LatchEXDF]},
		{ID: LatchDFDS, Latch: &cur[LatchDFDS]},
		{ID: LatchDSWB, Latch: &cur[LatchDSWB]},
	}

	inst := ex.Inst
	operands := []struct {
		reg   uint8
		value *int32
		store bool
	}{
		{inst.Src1, &ex.A, false},
		{inst.Src2, &ex.B, inst.IsStore()},
	}

	for _, op := range operands {
		res := p.hazardUnit.ResolveOperand(op.reg, *op.value, LatchRFEX, candidates...)
		if !res.Ready {
			// Only store data may wait on a load; load-use interlock in RF
			// keeps every other operand ready.
			if op.store {
				ex.StorePending = true
			}
			continue
		}
		if !res.Forwarded {
			continue
		}

		*op.value = res.Value
		events.Forwards = append(events.Forwards, ForwardEvent{
			Path:       res.Path,
			Reg:        op.reg,
			Value:      res.Value,
			ProducerPC: res.ProducerPC,
			ConsumerPC: ex.PC,
		})
	}
}

// freezeFrom holds latch id and every latch behind it.
func (p *Pipeline) freezeFrom(id LatchID, cur, next *[NumLatches]Latch) {
	for i := LatchIFIS; i <= id; i++ {
		next[i] = cur[i]
	}
}

// advanceFront moves RF, ID and IS forward one stage and fetches.
func (p *Pipeline) advanceFront(
	cur, next *[NumLatches]Latch,
	views *[NumStages]StageView,
	events *CycleEvents,
) {
	rf := cur[LatchIDRF]
	if rf.Valid {
		p.registerStage.Read(&rf)
	}
	next[LatchRFEX] = rf

	id := cur[LatchISID]
	if id.Valid {
		p.decodeStage.Decode(&id)
	}
	next[LatchIDRF] = id

	next[LatchISID] = cur[LatchIFIS]

	p.tickFetch(next, views, events)
}

// tickFetch fetches the next instruction unless fetch is held behind an
// unresolved branch or the program is exhausted.
func (p *Pipeline) tickFetch(next *[NumLatches]Latch, views *[NumStages]StageView, events *CycleEvents) {
	next[LatchIFIS].Clear()

	if p.state.FetchHeld {
		p.recordStall(events, StallBranches, nil)
		return
	}

	pc := p.state.PC
	word, ok := p.fetchStage.Fetch(pc)
	if !ok {
		return
	}

	next[LatchIFIS] = Latch{
		Valid: true,
		PC:    pc,
		NPC:   pc + insts.WordSize,
		IR:    word,
	}
	views[StageIF] = p.stageView(&next[LatchIFIS])
	p.state.PC = pc + insts.WordSize

	if insts.IsControlWord(word) {
		p.state.FetchHeld = true
		p.state.HeldPC = pc
	}
}

// recordStall counts one stall cycle. held is the instruction kept in place,
// or nil for a branch stall.
func (p *Pipeline) recordStall(events *CycleEvents, kind StallKind, held *Latch) {
	p.state.Stats.Stalls[kind]++
	events.Stalled = true
	events.StallKind = kind

	if held == nil {
		events.StalledPC = p.state.HeldPC
		if word, ok := p.fetchStage.Fetch(p.state.HeldPC); ok {
			events.StalledText = p.decoder.Decode(word).String()
		}
		return
	}

	events.StalledPC = held.PC
	events.StalledText = p.stageView(held).Text
}

// stageView describes the occupant of a latch for display.
func (p *Pipeline) stageView(l *Latch) StageView {
	if !l.Valid {
		return StageView{}
	}

	inst := l.Inst
	if inst == nil {
		inst = p.decoder.Decode(l.IR)
	}
	return StageView{Valid: true, PC: l.PC, Text: inst.String()}
}

func (p *Pipeline) logCycle(events *CycleEvents) {
	if !p.log.V(1).Enabled() {
		return
	}

	p.log.V(1).Info("cycle",
		"cycle", p.state.Cycle,
		"pc", p.state.PC,
		"stalled", events.Stalled,
		"forwards", len(events.Forwards))

	if events.Stalled {
		p.log.V(2).Info("stall", "kind", events.StallKind.String(), "pc", events.StalledPC)
	}
	for _, f := range events.Forwards {
		p.log.V(2).Info("forward",
			"path", f.Path.String(), "reg", f.Reg, "value", f.Value,
			"from", f.ProducerPC, "to", f.ConsumerPC)
	}
}

// Snapshot returns a read-only copy of the machine state after the last
// cycle.
func (p *Pipeline) Snapshot() Snapshot {
	return Snapshot{
		Cycle:     p.state.Cycle,
		PC:        p.state.PC,
		Stages:    p.stages,
		Latches:   p.state.Latches,
		Registers: p.regFile.Values(),
		Memory:    p.memory.Words(),
		Stats:     p.state.Stats,
		Events:    p.state.LastCycle,
		Drained:   p.Drained(),
	}
}
