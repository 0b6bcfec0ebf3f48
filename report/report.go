// Package report renders pipeline snapshots as text.
package report

import (
	"fmt"
	"io"

	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/m8sim/emu"
	"github.com/sarchlab/m8sim/timing/pipeline"
)

// Mode selects how much the Reporter prints.
type Mode int

const (
	// ModeCycles prints the full machine state after every cycle.
	ModeCycles Mode = iota
	// ModeSummary prints only the final summary.
	ModeSummary
)

const bubble = "(bubble)"

// Reporter writes a text dump of the pipeline. It is a sim.Hook: attach it
// to a pipeline with AcceptHook and it renders every cycle.
type Reporter struct {
	w    io.Writer
	mode Mode
	err  error
}

// ReporterOption is a functional option for configuring the Reporter.
type ReporterOption func(*Reporter)

// WithMode sets the report mode.
func WithMode(mode Mode) ReporterOption {
	return func(r *Reporter) {
		r.mode = mode
	}
}

// NewReporter creates a Reporter writing to w.
func NewReporter(w io.Writer, opts ...ReporterOption) *Reporter {
	r := &Reporter{w: w, mode: ModeCycles}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Err returns the first write error, if any.
func (r *Reporter) Err() error {
	return r.err
}

// Func renders each cycle snapshot when in ModeCycles.
func (r *Reporter) Func(ctx sim.HookCtx) {
	if ctx.Pos != pipeline.HookPosCycle || r.mode != ModeCycles {
		return
	}

	snapshot, ok := ctx.Item.(*pipeline.Snapshot)
	if !ok {
		return
	}
	r.Cycle(snapshot)
}

func (r *Reporter) printf(format string, args ...any) {
	if r.err != nil {
		return
	}
	_, r.err = fmt.Fprintf(r.w, format, args...)
}

// Cycle renders the full machine state of one cycle.
func (r *Reporter) Cycle(s *pipeline.Snapshot) {
	r.printf("\n***** Cycle #%d***********************************************\n", s.Cycle)
	r.printf("Current PC = %d:\n", s.PC)

	r.printf("Pipeline Status:\n")
	for stage := pipeline.StageIF; stage < pipeline.NumStages; stage++ {
		view := s.Stages[stage]
		if !view.Valid {
			r.printf("* %s : %s\n", stage, bubble)
			continue
		}
		r.printf("* %s : %s\n", stage, view.Text)
	}

	r.stall(&s.Events)
	r.forwarding(&s.Events)
	r.latches(s)
	r.registers(s.Registers)
	r.memory(s)
	r.totals(&s.Stats)
}

func (r *Reporter) stall(ev *pipeline.CycleEvents) {
	if !ev.Stalled {
		r.printf("Stall Instruction: (none)\n")
		return
	}
	r.printf("Stall Instruction: %s (%s)\n", ev.StalledText, ev.StallKind)
}

func (r *Reporter) forwarding(ev *pipeline.CycleEvents) {
	r.printf("Forwarding:\n")

	if len(ev.Detected) == 0 {
		r.printf(" Detected: (none)\n")
	} else {
		r.printf(" Detected:\n")
		for _, d := range ev.Detected {
			r.printf(" * R%d : %d (%s) -> %d\n", d.Reg, d.ProducerPC, d.Producer, d.ConsumerPC)
		}
	}

	r.printf(" Forwarded:\n")
	for path := pipeline.ForwardPath(0); path < pipeline.NumForwardPaths; path++ {
		found := false
		for _, f := range ev.Forwards {
			if f.Path != path {
				continue
			}
			found = true
			r.printf(" * %s : R%d = %d (%d -> %d)\n", path, f.Reg, f.Value, f.ProducerPC, f.ConsumerPC)
		}
		if !found {
			r.printf(" * %s : (none)\n", path)
		}
	}
}

func (r *Reporter) latches(s *pipeline.Snapshot) {
	l := &s.Latches

	r.printf("Pipeline Registers:\n")
	r.printf("* IF/IS.NPC : %d\n", l[pipeline.LatchIFIS].NPC)
	r.printf("* IS/ID.IR : 0x%08X\n", l[pipeline.LatchISID].IR)
	r.printf("* RF/EX.A : %d\n", l[pipeline.LatchRFEX].A)
	r.printf("* RF/EX.B : %d\n", l[pipeline.LatchRFEX].B)
	r.printf("* EX/DF.ALUout : %d\n", l[pipeline.LatchEXDF].ALUOut)
	r.printf("* EX/DF.B : %d\n", l[pipeline.LatchEXDF].B)
	r.printf("* DS/WB.ALUout-LMD : %d\n", l[pipeline.LatchDSWB].Result())
}

func (r *Reporter) registers(regs [emu.NumRegs]int32) {
	r.printf("Integer registers:\n")
	for i := 0; i < emu.NumRegs; i += 4 {
		r.printf("R%d %d R%d %d R%d %d R%d %d\n",
			i, regs[i], i+1, regs[i+1], i+2, regs[i+2], i+3, regs[i+3])
	}
}

func (r *Reporter) memory(s *pipeline.Snapshot) {
	r.printf("Data memory:\n")
	for _, addr := range s.MemoryAddresses() {
		r.printf("%d: %d\n", addr, s.Memory[addr])
	}
}

func (r *Reporter) totals(stats *pipeline.Statistics) {
	r.printf("Total Stalls:\n")
	for kind := pipeline.StallKind(0); kind < pipeline.NumStallKinds; kind++ {
		r.printf("* %s : %d\n", kind, stats.Stalls[kind])
	}

	r.printf("Total Forwardings:\n")
	for path := pipeline.ForwardPath(0); path < pipeline.NumForwardPaths; path++ {
		r.printf("* %s : %d\n", path, stats.Forwards[path])
	}
}

// Summary renders the final counters and architectural state.
func (r *Reporter) Summary(s *pipeline.Snapshot) {
	stats := &s.Stats

	r.printf("\n===== Summary =====\n")
	r.printf("Cycles: %d\n", stats.Cycles)
	r.printf("Instructions: %d\n", stats.Instructions)
	r.printf("CPI: %.3f\n", stats.CPI())
	r.printf("Faults: %d\n", stats.Faults)
	r.printf("Stalls: %d\n", stats.TotalStalls())
	r.printf("Forwardings: %d\n", stats.TotalForwards())

	r.registers(s.Registers)
	r.memory(s)
	r.totals(stats)
}

// Abort renders the last valid snapshot followed by the abort reason.
// In ModeCycles the snapshot was already printed by the cycle hook.
func (r *Reporter) Abort(s *pipeline.Snapshot, reason error) {
	if r.mode == ModeSummary {
		r.Cycle(s)
	}
	r.printf("\nSimulation aborted after cycle %d: %v\n", s.Cycle, reason)
}
