package benchmarks

import (
	"github.com/sarchlab/m8sim/config"
	"github.com/sarchlab/m8sim/insts"
)

// GetMicrobenchmarks returns the standard set of microbenchmarks.
// Each benchmark targets one pipeline characteristic.
func GetMicrobenchmarks() []Benchmark {
	return []Benchmark{
		arithmeticSequential(),
		dependencyChain(),
		loadUse(),
		storeForward(),
		branchLoop(),
		multiplyChain(),
		functionCalls(),
		memorySum(),
	}
}

// GetCoreBenchmarks returns a minimal set of benchmarks for quick validation.
func GetCoreBenchmarks() []Benchmark {
	return []Benchmark{
		dependencyChain(),
		loadUse(),
		branchLoop(),
	}
}

func setMemory(values map[uint32]int32) func(*config.Config) {
	return func(cfg *config.Config) {
		if cfg.Memory == nil {
			cfg.Memory = make(map[uint32]int32)
		}
		for addr, v := range values {
			cfg.Memory[addr] = v
		}
	}
}

// 1. Arithmetic Sequential - no dependence closer than five instructions
func arithmeticSequential() Benchmark {
	program := make([]uint32, 0, 20)
	for i := 0; i < 4; i++ {
		for reg := uint8(1); reg <= 5; reg++ {
			program = append(program, insts.ADDI(reg, reg, 1))
		}
	}

	return Benchmark{
		Name:        "arithmetic_sequential",
		Description: "20 ADDIs over five registers - measures ideal throughput",
		Program:     program,
		ExpectedRegs: map[uint8]int32{
			1: 4, 2: 4, 3: 4, 4: 4, 5: 4,
		},
	}
}

// 2. Dependency Chain - every instruction needs the previous result
func dependencyChain() Benchmark {
	program := []uint32{insts.ADDI(1, 0, 1)}
	for i := 0; i < 9; i++ {
		program = append(program, insts.ADDI(1, 1, 1))
	}

	return Benchmark{
		Name:         "dependency_chain",
		Description:  "10 back-to-back dependent ADDIs - measures EX/DF forwarding",
		Program:      program,
		ExpectedRegs: map[uint8]int32{1: 10},
	}
}

// 3. Load Use - each load is consumed by the next instruction
func loadUse() Benchmark {
	return Benchmark{
		Name:        "load_use",
		Description: "3 loads each followed by a dependent ADD - measures load interlocks",
		Setup:       setMemory(map[uint32]int32{600: 1, 604: 2, 608: 3}),
		Program: []uint32{
			insts.LW(1, 600, 0),
			insts.ADD(2, 1, 1),
			insts.LW(3, 604, 0),
			insts.ADD(4, 3, 3),
			insts.LW(5, 608, 0),
			insts.ADD(6, 5, 5),
		},
		ExpectedRegs: map[uint8]int32{2: 2, 4: 4, 6: 6},
	}
}

// 4. Store Forward - a load reads back a word stored just before it
func storeForward() Benchmark {
	return Benchmark{
		Name:        "store_forward",
		Description: "store then load of the same word - measures memory ordering",
		Program: []uint32{
			insts.ADDI(1, 0, 42),
			insts.SW(1, 600, 0),
			insts.LW(2, 600, 0),
			insts.ADD(3, 2, 2),
		},
		ExpectedRegs:   map[uint8]int32{2: 42, 3: 84},
		ExpectedMemory: map[uint32]int32{600: 42},
	}
}

// 5. Branch Loop - a counted loop closed by BNE
func branchLoop() Benchmark {
	return Benchmark{
		Name:        "branch_loop",
		Description: "5-iteration countdown loop - measures branch fetch stalls",
		Program: []uint32{
			insts.ADDI(1, 0, 5),
			insts.ADDI(1, 1, -1),
			insts.BNE(1, 0, -2),
			insts.ADDI(2, 0, 1),
		},
		ExpectedRegs: map[uint8]int32{1: 0, 2: 1},
	}
}

// 6. Multiply Chain - dependent multi-cycle multiplies
func multiplyChain() Benchmark {
	return Benchmark{
		Name:        "multiply_chain",
		Description: "two dependent MULs - measures multi-cycle execute stalls",
		Program: []uint32{
			insts.ADDI(1, 0, 3),
			insts.MUL(2, 1, 1),
			insts.MUL(3, 2, 2),
		},
		ExpectedRegs: map[uint8]int32{2: 9, 3: 81},
	}
}

// 7. Function Calls - JAL into a leaf and JR back, twice
func functionCalls() Benchmark {
	const start = config.DefaultStartAddress
	leaf := uint32(start + 4*insts.WordSize)

	return Benchmark{
		Name:        "function_calls",
		Description: "two JAL/JR round trips - measures jump stalls",
		Program: []uint32{
			insts.JAL(leaf),
			insts.JAL(leaf),
			insts.J(leaf + 2*insts.WordSize),
			insts.NOP(),
			insts.ADDI(2, 2, 1),
			insts.JR(31),
			insts.ADDI(3, 2, 0),
		},
		ExpectedRegs: map[uint8]int32{2: 2, 3: 2, 31: int32(start + 2*insts.WordSize)},
	}
}

// 8. Memory Sum - loop summing an array into memory
func memorySum() Benchmark {
	return Benchmark{
		Name:        "memory_sum",
		Description: "sums four words with a load/add loop and stores the total",
		Setup: setMemory(map[uint32]int32{
			600: 10, 604: 20, 608: 30, 612: 40,
		}),
		Program: []uint32{
			insts.ADDI(1, 0, 600),
			insts.ADDI(2, 0, 616),
			insts.LW(4, 0, 1),
			insts.ADD(3, 3, 4),
			insts.ADDI(1, 1, 4),
			insts.BNE(1, 2, -4),
			insts.SW(3, 620, 0),
		},
		ExpectedRegs:   map[uint8]int32{3: 100},
		ExpectedMemory: map[uint32]int32{620: 100},
	}
}
