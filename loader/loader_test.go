package loader_test

import (
	"errors"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/m8sim/insts"
	"github.com/sarchlab/m8sim/loader"
)

var _ = Describe("Loader", func() {
	Describe("ParseWord", func() {
		DescribeTable("valid words",
			func(text string, want uint32) {
				word, err := loader.ParseWord(text)
				Expect(err).NotTo(HaveOccurred())
				Expect(word).To(Equal(want))
			},
			Entry("binary", "00100000000000010000000000000101", insts.ADDI(1, 0, 5)),
			Entry("binary with separators", "001000_00000_00001_0000000000000101", insts.ADDI(1, 0, 5)),
			Entry("hex", "20010005", insts.ADDI(1, 0, 5)),
			Entry("hex with prefix", "0x8C010000", insts.LW(1, 0, 0)),
			Entry("upper-case prefix", "0XFC000000", uint32(0xFC000000)),
		)

		DescribeTable("malformed words",
			func(text string) {
				_, err := loader.ParseWord(text)
				Expect(err).To(HaveOccurred())
			},
			Entry("too short binary", "0010000000000001000000000000010"),
			Entry("too long binary", "001000000000000100000000000001011"),
			Entry("bad binary digit", "00100000000000010000000000000102"),
			Entry("short hex", "0x2001"),
			Entry("bad hex digit", "2001000G"),
			Entry("assembly", "ADDI R1, R0, 5"),
		)
	})

	Describe("Read", func() {
		It("should skip blank lines and comments", func() {
			prog, err := loader.Read(strings.NewReader("\n# header\n20010005 // ADDI\n\n00000000\n"), loader.Options{})

			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Words).To(Equal([]uint32{insts.ADDI(1, 0, 5), 0}))
			Expect(prog.Lines).To(Equal([]int{3, 5}))
		})

		It("should report the line number of a malformed line", func() {
			_, err := loader.Read(strings.NewReader("20010005\nnot-a-word\n"), loader.Options{})

			var malformed *loader.MalformedLineError
			Expect(errors.As(err, &malformed)).To(BeTrue())
			Expect(malformed.Line).To(Equal(2))
			Expect(malformed.Text).To(Equal("not-a-word"))
			Expect(err.Error()).To(HavePrefix("line 2: malformed instruction"))
		})

		It("should drop malformed lines when asked to", func() {
			prog, err := loader.Read(strings.NewReader("bad\n20010005\n101\n"),
				loader.Options{SkipMalformed: true})

			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Words).To(Equal([]uint32{insts.ADDI(1, 0, 5)}))
			Expect(prog.Skipped).To(HaveLen(2))
			Expect(prog.Skipped[0].Line).To(Equal(1))
			Expect(prog.Skipped[1].Line).To(Equal(3))
		})

		It("should return an empty program for empty input", func() {
			prog, err := loader.Read(strings.NewReader(""), loader.Options{})

			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Words).To(BeEmpty())
		})
	})

	Describe("Load", func() {
		It("should load binary programs", func() {
			prog, err := loader.Load("testdata/load_use.txt", loader.Options{})

			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Words).To(Equal([]uint32{insts.LW(1, 0, 0), insts.ADD(2, 1, 1)}))
		})

		It("should load mixed binary and hex programs", func() {
			prog, err := loader.Load("testdata/mixed.txt", loader.Options{})

			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Words).To(Equal([]uint32{
				insts.ADDI(1, 0, 5),
				insts.ADDI(2, 1, 3),
				insts.NOP(),
			}))
		})

		It("should name the file in errors", func() {
			_, err := loader.Load("testdata/missing.txt", loader.Options{})

			Expect(err).To(MatchError(ContainSubstring("failed to open program file")))
		})
	})
})
