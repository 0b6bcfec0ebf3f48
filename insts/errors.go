package insts

import "fmt"

// IllegalInstructionError reports a word that does not decode to a
// supported instruction.
type IllegalInstructionError struct {
	Word uint32
	PC   uint32
}

func (e *IllegalInstructionError) Error() string {
	return fmt.Sprintf("illegal instruction 0x%08X at PC=%d", e.Word, e.PC)
}
