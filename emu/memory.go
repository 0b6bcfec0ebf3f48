package emu

import (
	"fmt"
	"maps"
	"slices"
)

// WordSize is the data memory word width in bytes.
const WordSize = 4

// UnalignedAccessError reports a load or store at an address that is not a
// multiple of WordSize.
type UnalignedAccessError struct {
	Addr  uint32
	Write bool
}

func (e *UnalignedAccessError) Error() string {
	kind := "load"
	if e.Write {
		kind = "store"
	}
	return fmt.Sprintf("unaligned %s at address %d", kind, e.Addr)
}

// CheckAlignment returns an *UnalignedAccessError if addr is not word aligned.
func CheckAlignment(addr uint32, write bool) error {
	if addr%WordSize != 0 {
		return &UnalignedAccessError{Addr: addr, Write: write}
	}
	return nil
}

// Memory is a sparse word-addressed data memory. Addresses never written
// read as zero.
type Memory struct {
	words map[uint32]int32
}

// NewMemory creates an empty data memory.
func NewMemory() *Memory {
	return &Memory{words: make(map[uint32]int32)}
}

// Load reads the word at addr.
func (m *Memory) Load(addr uint32) (int32, error) {
	if err := CheckAlignment(addr, false); err != nil {
		return 0, err
	}
	return m.words[addr], nil
}

// Store writes value to the word at addr.
func (m *Memory) Store(addr uint32, value int32) error {
	if err := CheckAlignment(addr, true); err != nil {
		return err
	}
	m.words[addr] = value
	return nil
}

// Addresses returns every address that holds a word, in ascending order.
func (m *Memory) Addresses() []uint32 {
	return slices.Sorted(maps.Keys(m.words))
}

// Words returns a copy of the memory contents.
func (m *Memory) Words() map[uint32]int32 {
	return maps.Clone(m.words)
}

// Clone returns a deep copy of the memory.
func (m *Memory) Clone() *Memory {
	return &Memory{words: maps.Clone(m.words)}
}
