package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/m8sim/emu"
	"github.com/sarchlab/m8sim/insts"
)

var _ = Describe("ALU", func() {
	var (
		alu     *emu.ALU
		decoder *insts.Decoder
	)

	BeforeEach(func() {
		alu = emu.NewALU()
		decoder = insts.NewDecoder()
	})

	DescribeTable("Compute",
		func(word uint32, op1, op2, want int32) {
			Expect(alu.Compute(decoder.Decode(word), op1, op2)).To(Equal(want))
		},
		Entry("ADD", insts.ADD(3, 1, 2), int32(5), int32(-7), int32(-2)),
		Entry("ADD wraps", insts.ADD(3, 1, 2), int32(0x7FFFFFFF), int32(1), int32(-0x80000000)),
		Entry("SUB", insts.SUB(3, 1, 2), int32(5), int32(7), int32(-2)),
		Entry("AND", insts.AND(3, 1, 2), int32(0b1100), int32(0b1010), int32(0b1000)),
		Entry("OR", insts.OR(3, 1, 2), int32(0b1100), int32(0b1010), int32(0b1110)),
		Entry("SLT true", insts.SLT(3, 1, 2), int32(-1), int32(0), int32(1)),
		Entry("SLT false", insts.SLT(3, 1, 2), int32(4), int32(0), int32(0)),
		Entry("SLL", insts.SLL(2, 1, 4), int32(3), int32(0), int32(48)),
		Entry("MUL", insts.MUL(4, 2, 3), int32(-6), int32(7), int32(-42)),
		Entry("ADDI", insts.ADDI(1, 0, -5), int32(10), int32(0), int32(5)),
		Entry("ORI", insts.ORI(1, 2, 0xF0), int32(0x0F), int32(0), int32(0xFF)),
		Entry("LUI", insts.LUI(1, 0x10), int32(0), int32(0), int32(0x100000)),
	)

	It("should compute effective addresses with signed offsets", func() {
		inst := decoder.Decode(insts.LW(1, -4, 2))
		Expect(alu.EffectiveAddress(inst, 608)).To(Equal(uint32(604)))
	})
})

var _ = Describe("BranchUnit", func() {
	var (
		unit    *emu.BranchUnit
		decoder *insts.Decoder
	)

	BeforeEach(func() {
		unit = emu.NewBranchUnit()
		decoder = insts.NewDecoder()
	})

	It("should take BEQ when operands are equal", func() {
		result := unit.Resolve(decoder.Decode(insts.BEQ(1, 2, 2)), 500, 3, 3)

		Expect(result.Taken).To(BeTrue())
		Expect(result.Target).To(Equal(uint32(512)))
	})

	It("should fall through BEQ when operands differ", func() {
		result := unit.Resolve(decoder.Decode(insts.BEQ(1, 2, 2)), 500, 3, 4)

		Expect(result.Taken).To(BeFalse())
		Expect(result.Target).To(Equal(uint32(504)))
	})

	It("should branch backwards", func() {
		result := unit.Resolve(decoder.Decode(insts.BNE(1, 0, -3)), 508, 1, 0)

		Expect(result.Taken).To(BeTrue())
		Expect(result.Target).To(Equal(uint32(500)))
	})

	It("should evaluate BLEZ and BGTZ against zero", func() {
		Expect(unit.Resolve(decoder.Decode(insts.BLEZ(1, 1)), 0, 0, 0).Taken).To(BeTrue())
		Expect(unit.Resolve(decoder.Decode(insts.BGTZ(1, 1)), 0, 0, 0).Taken).To(BeFalse())
		Expect(unit.Resolve(decoder.Decode(insts.BGTZ(1, 1)), 0, 5, 0).Taken).To(BeTrue())
	})

	It("should jump with link for JAL", func() {
		result := unit.Resolve(decoder.Decode(insts.JAL(0x200)), 496, 0, 0)

		Expect(result.Taken).To(BeTrue())
		Expect(result.Target).To(Equal(uint32(0x200)))
		Expect(result.Link).To(Equal(int32(500)))
	})

	It("should jump to the register value for JR", func() {
		result := unit.Resolve(decoder.Decode(insts.JR(31)), 600, 520, 0)

		Expect(result.Target).To(Equal(uint32(520)))
	})
})
