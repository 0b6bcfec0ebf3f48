// Package loader reads program text files: one 32-bit instruction word per
// line, written as 32 binary digits or 8 hex digits.
package loader

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// Options controls how malformed lines are handled.
type Options struct {
	// SkipMalformed drops malformed lines and records them in
	// Program.Skipped instead of failing the load.
	SkipMalformed bool
}

// MalformedLineError reports a line that is not a valid instruction word.
type MalformedLineError struct {
	Line   int
	Text   string
	Reason string
}

func (e *MalformedLineError) Error() string {
	return fmt.Sprintf("line %d: malformed instruction %q: %s", e.Line, e.Text, e.Reason)
}

// Program is a loaded instruction stream.
type Program struct {
	// Words holds the instruction words in program order.
	Words []uint32
	// Lines holds the source line number of each word.
	Lines []int
	// Skipped lists the malformed lines dropped with SkipMalformed.
	Skipped []*MalformedLineError
}

// Load reads a program file.
func Load(path string, opts Options) (*Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open program file: %w", err)
	}
	defer func() { _ = f.Close() }()

	prog, err := Read(f, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return prog, nil
}

// Read parses a program from r. Blank lines and comments starting with
// '#' or "//" are ignored.
func Read(r io.Reader, opts Options) (*Program, error) {
	prog := &Program{}
	scanner := bufio.NewScanner(r)

	lineNum := 0
	for scanner.Scan() {
		lineNum++

		text := stripComment(scanner.Text())
		if text == "" {
			continue
		}

		word, err := ParseWord(text)
		if err != nil {
			malformed := &MalformedLineError{Line: lineNum, Text: text, Reason: err.Error()}
			if !opts.SkipMalformed {
				return nil, malformed
			}
			prog.Skipped = append(prog.Skipped, malformed)
			continue
		}

		prog.Words = append(prog.Words, word)
		prog.Lines = append(prog.Lines, lineNum)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read program: %w", err)
	}

	return prog, nil
}

func stripComment(line string) string {
	if i := strings.Index(line, "//"); i >= 0 {
		line = line[:i]
	}
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	return strings.TrimSpace(line)
}

// ParseWord parses one instruction word. Binary words have exactly 32
// digits and may use '_' as a separator. Hex words have exactly 8 digits
// with an optional 0x prefix.
func ParseWord(text string) (uint32, error) {
	if hex, ok := strings.CutPrefix(strings.ToLower(text), "0x"); ok {
		return parseDigits(hex, 16, 8)
	}

	bin := strings.ReplaceAll(text, "_", "")
	if len(bin) == 32 {
		return parseDigits(bin, 2, 32)
	}

	if len(text) == 8 {
		return parseDigits(text, 16, 8)
	}

	return 0, fmt.Errorf("expected 32 binary digits or 8 hex digits, got %d characters", len(bin))
}

func parseDigits(digits string, base, width int) (uint32, error) {
	if len(digits) != width {
		return 0, fmt.Errorf("expected %d digits, got %d", width, len(digits))
	}

	v, err := strconv.ParseUint(digits, base, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid base-%d digits", base)
	}
	return uint32(v), nil
}
