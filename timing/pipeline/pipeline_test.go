package pipeline_test

import (
	"errors"

	"github.com/google/go-cmp/cmp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/m8sim/emu"
	"github.com/sarchlab/m8sim/insts"
	"github.com/sarchlab/m8sim/timing/latency"
	"github.com/sarchlab/m8sim/timing/pipeline"
)

const start = uint32(496)

// retireRecorder collects the PCs of retired instructions.
type retireRecorder struct {
	pcs []uint32
}

func (r *retireRecorder) Func(ctx sim.HookCtx) {
	if ctx.Pos != pipeline.HookPosRetire {
		return
	}
	r.pcs = append(r.pcs, ctx.Item.(*insts.Instruction).PC)
}

// snapshotRecorder collects every per-cycle snapshot.
type snapshotRecorder struct {
	snapshots []*pipeline.Snapshot
}

func (r *snapshotRecorder) Func(ctx sim.HookCtx) {
	if ctx.Pos != pipeline.HookPosCycle {
		return
	}
	r.snapshots = append(r.snapshots, ctx.Item.(*pipeline.Snapshot))
}

var _ = Describe("Pipeline", func() {
	var (
		regFile *emu.RegFile
		memory  *emu.Memory
		pipe    *pipeline.Pipeline
	)

	BeforeEach(func() {
		regFile = &emu.RegFile{}
		memory = emu.NewMemory()
		pipe = pipeline.NewPipeline(regFile, memory)
	})

	Describe("empty program", func() {
		It("should be drained at cycle 0", func() {
			pipe.LoadProgram(start, nil)

			Expect(pipe.Drained()).To(BeTrue())
			Expect(pipe.Run()).To(Succeed())

			stats := pipe.Stats()
			Expect(stats.Cycles).To(BeZero())
			Expect(stats.Instructions).To(BeZero())
			Expect(stats.TotalStalls()).To(BeZero())
			Expect(stats.TotalForwards()).To(BeZero())
		})

		It("should treat Tick as a no-op", func() {
			pipe.LoadProgram(start, nil)

			Expect(pipe.Tick()).To(Succeed())
			Expect(pipe.Snapshot().Cycle).To(BeZero())
		})
	})

	Describe("filling the pipe", func() {
		It("should retire a single instruction after eight cycles", func() {
			pipe.LoadProgram(start, []uint32{insts.ADDI(1, 0, 5)})

			Expect(pipe.Run()).To(Succeed())
			Expect(pipe.Stats().Cycles).To(Equal(uint64(8)))
			Expect(regFile.ReadReg(1)).To(Equal(int32(5)))
		})

		It("should show each stage's occupant", func() {
			pipe.LoadProgram(start, []uint32{insts.ADDI(1, 0, 5), insts.ADDI(2, 0, 6)})

			Expect(pipe.Tick()).To(Succeed())
			snap := pipe.Snapshot()
			Expect(snap.Stages[pipeline.StageIF]).To(Equal(pipeline.StageView{
				Valid: true, PC: 496, Text: "ADDI R1, R0, 5",
			}))
			Expect(snap.PC).To(Equal(uint32(500)))

			Expect(pipe.Tick()).To(Succeed())
			snap = pipe.Snapshot()
			Expect(snap.Stages[pipeline.StageIF].PC).To(Equal(uint32(500)))
			Expect(snap.Stages[pipeline.StageIS].PC).To(Equal(uint32(496)))
			Expect(snap.Stages[pipeline.StageID].Valid).To(BeFalse())
		})
	})

	Describe("forwarding", func() {
		It("should forward back-to-back ALU results without stalling", func() {
			pipe.LoadProgram(start, []uint32{
				insts.ADDI(1, 0, 5),
				insts.ADDI(2, 1, 3),
			})

			Expect(pipe.Run()).To(Succeed())

			Expect(regFile.ReadReg(1)).To(Equal(int32(5)))
			Expect(regFile.ReadReg(2)).To(Equal(int32(8)))

			stats := pipe.Stats()
			Expect(stats.TotalStalls()).To(BeZero())
			Expect(stats.Forwards[pipeline.ForwardEXDFToRFEX]).To(Equal(uint64(1)))
			Expect(stats.TotalForwards()).To(Equal(uint64(1)))
			Expect(stats.Cycles).To(Equal(uint64(9)))
		})

		It("should record the forwarding event with both PCs", func() {
			recorder := &snapshotRecorder{}
			pipe.AcceptHook(recorder)
			pipe.LoadProgram(start, []uint32{
				insts.ADDI(1, 0, 5),
				insts.ADDI(2, 1, 3),
			})

			Expect(pipe.Run()).To(Succeed())

			// The consumer is in EX in cycle 6.
			events := recorder.snapshots[5].Events
			Expect(events.Forwards).To(ConsistOf(pipeline.ForwardEvent{
				Path:       pipeline.ForwardEXDFToRFEX,
				Reg:        1,
				Value:      5,
				ProducerPC: 496,
				ConsumerPC: 500,
			}))

			// The dependence is detected one cycle earlier, with the
			// consumer in RF.
			Expect(recorder.snapshots[4].Events.Detected).To(ConsistOf(pipeline.Dependency{
				Reg: 1, ConsumerPC: 500, ProducerPC: 496, Producer: pipeline.StageEX,
			}))
		})

		It("should forward from DF/DS across one instruction", func() {
			pipe.LoadProgram(start, []uint32{
				insts.ADDI(1, 0, 5),
				insts.NOP(),
				insts.ADD(2, 1, 1),
			})

			Expect(pipe.Run()).To(Succeed())

			Expect(regFile.ReadReg(2)).To(Equal(int32(10)))
			Expect(pipe.Stats().Forwards[pipeline.ForwardDFDSToRFEX]).To(Equal(uint64(2)))
		})

		It("should forward from DS/WB across two instructions", func() {
			pipe.LoadProgram(start, []uint32{
				insts.ADDI(1, 0, 5),
				insts.NOP(),
				insts.NOP(),
				insts.ADD(2, 1, 1),
			})

			Expect(pipe.Run()).To(Succeed())

			Expect(regFile.ReadReg(2)).To(Equal(int32(10)))
			Expect(pipe.Stats().Forwards[pipeline.ForwardDSWBToRFEX]).To(Equal(uint64(2)))
		})

		It("should read the register file when the producer is far enough ahead", func() {
			pipe.LoadProgram(start, []uint32{
				insts.ADDI(1, 0, 5),
				insts.NOP(),
				insts.NOP(),
				insts.NOP(),
				insts.ADD(2, 1, 1),
			})

			Expect(pipe.Run()).To(Succeed())

			Expect(regFile.ReadReg(2)).To(Equal(int32(10)))
			Expect(pipe.Stats().TotalForwards()).To(BeZero())
		})

		It("should never forward a write to R0", func() {
			regFile.WriteReg(1, 4)
			pipe.LoadProgram(start, []uint32{
				insts.ADDI(0, 0, 5),
				insts.ADD(2, 0, 1),
			})

			Expect(pipe.Run()).To(Succeed())

			Expect(regFile.ReadReg(0)).To(BeZero())
			Expect(regFile.ReadReg(2)).To(Equal(int32(4)))
			Expect(pipe.Stats().TotalForwards()).To(BeZero())
		})
	})

	Describe("load-use hazards", func() {
		It("should insert exactly one load stall", func() {
			Expect(memory.Store(0, 42)).To(Succeed())
			pipe.LoadProgram(start, []uint32{
				insts.LW(1, 0, 0),
				insts.ADD(2, 1, 1),
			})

			Expect(pipe.Run()).To(Succeed())

			Expect(regFile.ReadReg(2)).To(Equal(int32(84)))

			stats := pipe.Stats()
			Expect(stats.Stalls[pipeline.StallLoads]).To(Equal(uint64(1)))
			Expect(stats.TotalStalls()).To(Equal(uint64(1)))
			Expect(stats.Forwards[pipeline.ForwardDFDSToRFEX]).To(Equal(uint64(2)))
			Expect(stats.Forwards[pipeline.ForwardEXDFToRFEX]).To(BeZero())
		})

		It("should report the stalled instruction", func() {
			recorder := &snapshotRecorder{}
			pipe.AcceptHook(recorder)
			Expect(memory.Store(0, 42)).To(Succeed())
			pipe.LoadProgram(start, []uint32{
				insts.LW(1, 0, 0),
				insts.ADD(2, 1, 1),
			})

			Expect(pipe.Run()).To(Succeed())

			events := recorder.snapshots[4].Events
			Expect(events.Stalled).To(BeTrue())
			Expect(events.StallKind).To(Equal(pipeline.StallLoads))
			Expect(events.StalledPC).To(Equal(uint32(500)))
			Expect(events.StalledText).To(Equal("ADD R2, R1, R1"))

			snap := recorder.snapshots[4]
			Expect(snap.Latches[pipeline.LatchRFEX].IsBubble()).To(BeTrue())
			Expect(snap.Latches[pipeline.LatchIDRF].PC).To(Equal(uint32(500)))
		})

		It("should forward store data from a load without stalling", func() {
			Expect(memory.Store(0, 42)).To(Succeed())
			pipe.LoadProgram(start, []uint32{
				insts.LW(1, 0, 0),
				insts.SW(1, 4, 0),
			})

			Expect(pipe.Run()).To(Succeed())

			Expect(memory.Load(4)).To(Equal(int32(42)))
			stats := pipe.Stats()
			Expect(stats.TotalStalls()).To(BeZero())
			Expect(stats.Forwards[pipeline.ForwardDFDSToEXDF]).To(Equal(uint64(1)))
		})

		It("should forward store data from DS/WB when the store is slow in EX", func() {
			config := latency.DefaultTimingConfig()
			config.ALULatency = 2
			pipe = pipeline.NewPipeline(regFile, memory,
				pipeline.WithLatencyTable(latency.NewTableWithConfig(config)))

			Expect(memory.Store(0, 42)).To(Succeed())
			pipe.LoadProgram(start, []uint32{
				insts.LW(1, 0, 0),
				insts.SW(1, 4, 0),
			})

			Expect(pipe.Run()).To(Succeed())

			Expect(memory.Load(4)).To(Equal(int32(42)))
			stats := pipe.Stats()
			Expect(stats.Forwards[pipeline.ForwardDSWBToEXDF]).To(Equal(uint64(1)))
			Expect(stats.Stalls[pipeline.StallOther]).To(Equal(uint64(2)))
		})
	})

	Describe("multi-cycle execute", func() {
		It("should hold EX and count other stalls", func() {
			pipe.LoadProgram(start, []uint32{
				insts.ADDI(1, 0, 6),
				insts.ADDI(2, 0, 7),
				insts.MUL(3, 1, 2),
				insts.ADD(4, 3, 0),
			})

			Expect(pipe.Run()).To(Succeed())

			Expect(regFile.ReadReg(3)).To(Equal(int32(42)))
			Expect(regFile.ReadReg(4)).To(Equal(int32(42)))

			stats := pipe.Stats()
			Expect(stats.Stalls[pipeline.StallOther]).To(Equal(uint64(2)))
			Expect(stats.Stalls[pipeline.StallLoads]).To(BeZero())
			Expect(stats.Instructions).To(Equal(uint64(4)))
		})
	})

	Describe("branches", func() {
		It("should hold fetch for three cycles behind a taken branch", func() {
			pipe.LoadProgram(start, []uint32{
				insts.ADDI(1, 0, 1),
				insts.BEQ(0, 0, 1),
				insts.ADDI(2, 0, 7),
				insts.ADDI(3, 0, 9),
			})

			Expect(pipe.Run()).To(Succeed())

			Expect(regFile.ReadReg(2)).To(BeZero())
			Expect(regFile.ReadReg(3)).To(Equal(int32(9)))

			stats := pipe.Stats()
			Expect(stats.Stalls[pipeline.StallBranches]).To(Equal(uint64(3)))
			Expect(stats.Instructions).To(Equal(uint64(3)))
		})

		It("should fall through a branch that is not taken", func() {
			pipe.LoadProgram(start, []uint32{
				insts.ADDI(1, 0, 1),
				insts.BEQ(1, 0, 1),
				insts.ADDI(2, 0, 7),
			})

			Expect(pipe.Run()).To(Succeed())

			Expect(regFile.ReadReg(2)).To(Equal(int32(7)))
			Expect(pipe.Stats().Stalls[pipeline.StallBranches]).To(Equal(uint64(3)))
		})

		It("should retire PCs in program order, following taken branches", func() {
			recorder := &retireRecorder{}
			pipe.AcceptHook(recorder)
			pipe.LoadProgram(start, []uint32{
				insts.ADDI(1, 0, 1),
				insts.BEQ(0, 0, 1),
				insts.ADDI(2, 0, 7),
				insts.ADDI(3, 0, 9),
			})

			Expect(pipe.Run()).To(Succeed())

			Expect(recorder.pcs).To(Equal([]uint32{496, 500, 508}))
		})

		It("should link and return through JAL and JR", func() {
			pipe.LoadProgram(start, []uint32{
				insts.JAL(508),
				insts.J(516),
				insts.ADDI(6, 0, 99),
				insts.ADDI(5, 0, 1),
				insts.JR(31),
			})

			Expect(pipe.Run()).To(Succeed())

			Expect(regFile.ReadReg(31)).To(Equal(int32(500)))
			Expect(regFile.ReadReg(5)).To(Equal(int32(1)))
			Expect(regFile.ReadReg(6)).To(BeZero())
			Expect(pipe.Stats().Instructions).To(Equal(uint64(4)))
		})
	})

	Describe("retirement", func() {
		It("should retire every instruction of a straight-line program once", func() {
			recorder := &retireRecorder{}
			pipe.AcceptHook(recorder)
			program := []uint32{
				insts.ADDI(1, 0, 5),
				insts.LW(2, 0, 0),
				insts.ADD(3, 2, 1),
				insts.NOP(),
				insts.SW(3, 8, 0),
				insts.MUL(4, 3, 3),
			}
			pipe.LoadProgram(start, program)

			Expect(pipe.Run()).To(Succeed())

			Expect(pipe.Stats().Instructions).To(Equal(uint64(len(program))))
			for i, pc := range recorder.pcs {
				Expect(pc).To(Equal(start + uint32(i)*insts.WordSize))
			}
		})
	})

	Describe("agreement with functional execution", func() {
		runBoth := func(program []uint32, initMem map[uint32]int32) {
			ref := emu.NewEmulator()
			for addr, v := range initMem {
				Expect(memory.Store(addr, v)).To(Succeed())
				Expect(ref.Memory().Store(addr, v)).To(Succeed())
			}

			ref.LoadProgram(start, program)
			Expect(ref.Run()).To(Succeed())

			pipe.LoadProgram(start, program)
			Expect(pipe.Run()).To(Succeed())

			Expect(cmp.Diff(ref.RegFile().Values(), regFile.Values())).To(BeEmpty())
			Expect(cmp.Diff(ref.Memory().Words(), memory.Words())).To(BeEmpty())
			Expect(pipe.Stats().Instructions + pipe.Stats().Faults).
				To(Equal(ref.InstructionCount()))
		}

		It("should match a summing loop", func() {
			runBoth([]uint32{
				insts.ADDI(1, 0, 5),
				insts.ADDI(2, 0, 0),
				insts.ADD(2, 2, 1),
				insts.ADDI(1, 1, -1),
				insts.BNE(1, 0, -3),
				insts.SW(2, 600, 0),
				insts.LW(3, 600, 0),
				insts.ADD(4, 3, 3),
			}, map[uint32]int32{600: 0})

			Expect(regFile.ReadReg(2)).To(Equal(int32(15)))
			Expect(regFile.ReadReg(4)).To(Equal(int32(30)))
		})

		It("should match a mix of hazards", func() {
			runBoth([]uint32{
				insts.LW(1, 0, 0),
				insts.LW(2, 4, 0),
				insts.MUL(3, 1, 2),
				insts.SUB(4, 3, 1),
				insts.SW(4, 8, 0),
				insts.LW(5, 8, 0),
				insts.SLT(6, 5, 3),
				insts.OR(7, 6, 4),
				insts.SLL(8, 7, 2),
				insts.LUI(9, 1),
				insts.ORI(9, 9, 3),
			}, map[uint32]int32{0: 6, 4: -3})
		})
	})

	Describe("unaligned accesses", func() {
		It("should squash the access and keep running", func() {
			pipe.LoadProgram(start, []uint32{
				insts.ADDI(1, 0, 2),
				insts.LW(2, 0, 1),
				insts.ADDI(3, 0, 1),
			})

			Expect(pipe.Run()).To(Succeed())

			stats := pipe.Stats()
			Expect(stats.Faults).To(Equal(uint64(1)))
			Expect(stats.Instructions).To(Equal(uint64(2)))
			Expect(regFile.ReadReg(2)).To(BeZero())
			Expect(regFile.ReadReg(3)).To(Equal(int32(1)))
		})

		It("should not write memory for an unaligned store", func() {
			pipe.LoadProgram(start, []uint32{
				insts.ADDI(1, 0, 7),
				insts.SW(1, 3, 0),
			})

			Expect(pipe.Run()).To(Succeed())

			Expect(memory.Addresses()).To(BeEmpty())
			Expect(pipe.Stats().Faults).To(Equal(uint64(1)))
		})
	})

	Describe("illegal instructions", func() {
		It("should abort with the word and address", func() {
			pipe.LoadProgram(start, []uint32{
				insts.ADDI(1, 0, 5),
				0xFC000000,
			})

			err := pipe.Run()

			var illegal *insts.IllegalInstructionError
			Expect(errors.As(err, &illegal)).To(BeTrue())
			Expect(illegal.Word).To(Equal(uint32(0xFC000000)))
			Expect(illegal.PC).To(Equal(uint32(500)))
			Expect(pipe.Stats().Instructions).To(BeZero())
		})

		It("should keep the last snapshot and refuse to continue", func() {
			pipe.LoadProgram(start, []uint32{0x00000001})

			Expect(pipe.Run()).NotTo(Succeed())
			before := pipe.Snapshot()

			err := pipe.Tick()
			Expect(errors.Is(err, pipeline.ErrAborted)).To(BeTrue())
			Expect(pipe.Snapshot().Cycle).To(Equal(before.Cycle))
			Expect(before.Latches[pipeline.LatchRFEX].PC).To(Equal(start))
		})
	})

	Describe("Abort", func() {
		It("should stop further cycles", func() {
			reason := errors.New("stop")
			pipe.LoadProgram(start, []uint32{insts.ADDI(1, 0, 5)})
			Expect(pipe.Tick()).To(Succeed())

			pipe.Abort(reason)
			err := pipe.Tick()

			Expect(errors.Is(err, pipeline.ErrAborted)).To(BeTrue())
			Expect(errors.Is(err, reason)).To(BeTrue())
			Expect(pipe.Snapshot().Cycle).To(Equal(uint64(1)))
		})
	})

	Describe("cycle limit", func() {
		It("should stop at the limit", func() {
			pipe = pipeline.NewPipeline(regFile, memory, pipeline.WithMaxCycles(3))
			pipe.LoadProgram(start, []uint32{insts.ADDI(1, 0, 5)})

			err := pipe.Run()

			Expect(err).To(MatchError(pipeline.ErrCycleLimit))
			Expect(pipe.Stats().Cycles).To(Equal(uint64(3)))
		})
	})

	Describe("RunCycles", func() {
		It("should report whether the pipeline is still running", func() {
			pipe.LoadProgram(start, []uint32{insts.ADDI(1, 0, 5)})

			running, err := pipe.RunCycles(4)
			Expect(err).NotTo(HaveOccurred())
			Expect(running).To(BeTrue())

			running, err = pipe.RunCycles(100)
			Expect(err).NotTo(HaveOccurred())
			Expect(running).To(BeFalse())
			Expect(pipe.Stats().Cycles).To(Equal(uint64(8)))
		})
	})
})
