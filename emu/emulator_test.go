package emu_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/m8sim/emu"
	"github.com/sarchlab/m8sim/insts"
)

var _ = Describe("Emulator", func() {
	var e *emu.Emulator

	BeforeEach(func() {
		e = emu.NewEmulator()
	})

	Describe("NewEmulator", func() {
		It("should create an emulator with initialized components", func() {
			Expect(e).NotTo(BeNil())
			Expect(e.RegFile()).NotTo(BeNil())
			Expect(e.Memory()).NotTo(BeNil())
		})

		It("should use the register file and memory it is given", func() {
			regFile := &emu.RegFile{}
			memory := emu.NewMemory()
			e = emu.NewEmulator(emu.WithRegFile(regFile), emu.WithMemory(memory))

			Expect(e.RegFile()).To(BeIdenticalTo(regFile))
			Expect(e.Memory()).To(BeIdenticalTo(memory))
		})
	})

	Describe("LoadProgram", func() {
		It("should set the PC to the start address", func() {
			e.LoadProgram(496, []uint32{insts.NOP()})
			Expect(e.RegFile().PC).To(Equal(uint32(496)))
		})
	})

	Describe("Run", func() {
		It("should exit immediately for an empty program", func() {
			e.LoadProgram(496, nil)

			Expect(e.Run()).To(Succeed())
			Expect(e.InstructionCount()).To(BeZero())
		})

		It("should run dependent immediates", func() {
			e.LoadProgram(496, []uint32{
				insts.ADDI(1, 0, 5),
				insts.ADDI(2, 1, 3),
			})

			Expect(e.Run()).To(Succeed())
			Expect(e.RegFile().ReadReg(1)).To(Equal(int32(5)))
			Expect(e.RegFile().ReadReg(2)).To(Equal(int32(8)))
			Expect(e.InstructionCount()).To(Equal(uint64(2)))
		})

		It("should load and store words", func() {
			Expect(e.Memory().Store(0, 42)).To(Succeed())
			e.LoadProgram(496, []uint32{
				insts.LW(1, 0, 0),
				insts.ADD(2, 1, 1),
				insts.SW(2, 600, 0),
			})

			Expect(e.Run()).To(Succeed())
			Expect(e.RegFile().ReadReg(2)).To(Equal(int32(84)))
			value, err := e.Memory().Load(600)
			Expect(err).NotTo(HaveOccurred())
			Expect(value).To(Equal(int32(84)))
		})

		It("should follow a counted loop", func() {
			// R1 = 3; loop: R2 += 2; R1 -= 1; BNE R1, R0, loop
			e.LoadProgram(0, []uint32{
				insts.ADDI(1, 0, 3),
				insts.ADDI(2, 2, 2),
				insts.ADDI(1, 1, -1),
				insts.BNE(1, 0, -3),
			})

			Expect(e.Run()).To(Succeed())
			Expect(e.RegFile().ReadReg(2)).To(Equal(int32(6)))
			Expect(e.InstructionCount()).To(Equal(uint64(10)))
		})

		It("should squash unaligned accesses and continue", func() {
			e.LoadProgram(0, []uint32{
				insts.ADDI(1, 0, 7),
				insts.LW(2, 0, 1),
				insts.ADDI(3, 0, 1),
			})

			Expect(e.Run()).To(Succeed())
			Expect(e.Faults()).To(Equal(uint64(1)))
			Expect(e.RegFile().ReadReg(2)).To(BeZero())
			Expect(e.RegFile().ReadReg(3)).To(Equal(int32(1)))
		})

		It("should stop on an illegal instruction", func() {
			e.LoadProgram(496, []uint32{insts.ADDI(1, 0, 1), 0xFC000000})

			err := e.Run()

			var illegal *insts.IllegalInstructionError
			Expect(errors.As(err, &illegal)).To(BeTrue())
			Expect(illegal.PC).To(Equal(uint32(500)))
			Expect(e.RegFile().ReadReg(1)).To(Equal(int32(1)))
		})

		It("should honour the instruction limit", func() {
			e = emu.NewEmulator(emu.WithMaxInstructions(5))
			e.LoadProgram(0, []uint32{insts.J(0)})

			Expect(errors.Is(e.Run(), emu.ErrInstructionLimit)).To(BeTrue())
		})

		It("should link JAL into R31", func() {
			e.LoadProgram(0, []uint32{
				insts.JAL(8),
				insts.ADDI(1, 0, 1),
				insts.ADDI(2, 0, 2),
			})

			Expect(e.Run()).To(Succeed())
			Expect(e.RegFile().ReadReg(31)).To(Equal(int32(4)))
			Expect(e.RegFile().ReadReg(1)).To(BeZero())
			Expect(e.RegFile().ReadReg(2)).To(Equal(int32(2)))
		})
	})
})
