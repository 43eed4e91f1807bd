// Package udc implements the UDC plan dialect: a line-oriented assembly for a
// tape machine with named registers. It provides the parser, a bounded virtual
// machine, and a static halting-risk analyzer.
package udc

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Opcode is a UDC instruction mnemonic.
type Opcode string

// Supported opcodes.
const (
	OpLeft  Opcode = "LEFT"
	OpRight Opcode = "RIGHT"
	OpRead  Opcode = "READ"
	OpWrite Opcode = "WRITE"
	OpMov   Opcode = "MOV"
	OpAdd   Opcode = "ADD"
	OpSub   Opcode = "SUB"
	OpInc   Opcode = "INC"
	OpDec   Opcode = "DEC"
	OpJmp   Opcode = "JMP"
	OpJe    Opcode = "JE"
	OpJne   Opcode = "JNE"
	OpJg    Opcode = "JG"
	OpJl    Opcode = "JL"
	OpJge   Opcode = "JGE"
	OpJle   Opcode = "JLE"
	OpCmp   Opcode = "CMP"
	OpHalt  Opcode = "HALT"
	OpCall  Opcode = "CALL"
)

// labelKeyword introduces a label binding; it is not an instruction.
const labelKeyword = "LABEL"

// arity is the accepted argument count range per opcode. A max of -1 means unbounded.
var arity = map[Opcode][2]int{
	OpLeft:  {0, 0},
	OpRight: {0, 0},
	OpRead:  {1, 1},
	OpWrite: {1, 1},
	OpMov:   {2, 2},
	OpAdd:   {2, 2},
	OpSub:   {2, 2},
	OpInc:   {1, 1},
	OpDec:   {1, 1},
	OpJmp:   {1, 1},
	OpJe:    {1, 1},
	OpJne:   {1, 1},
	OpJg:    {1, 1},
	OpJl:    {1, 1},
	OpJge:   {1, 1},
	OpJle:   {1, 1},
	OpCmp:   {2, 2},
	OpHalt:  {0, 0},
	OpCall:  {1, -1},
}

// IsJump reports whether op transfers control to a label.
func (op Opcode) IsJump() bool {
	switch op {
	case OpJmp, OpJe, OpJne, OpJg, OpJl, OpJge, OpJle:
		return true
	}
	return false
}

// IsConditionalJump reports whether op is a jump that depends on the compare flags.
func (op Opcode) IsConditionalJump() bool {
	return op.IsJump() && op != OpJmp
}

// writesRegister reports whether op stores into the register named by its first argument.
func (op Opcode) writesRegister() bool {
	switch op {
	case OpMov, OpAdd, OpSub, OpInc, OpDec, OpRead:
		return true
	}
	return false
}

// Instruction is one executable statement.
type Instruction struct {
	// Line is the 1-based source line number.
	Line   int
	Opcode Opcode
	// Args holds operands; register names are upper-cased, literals kept verbatim.
	Args []string
}

func (in Instruction) String() string {
	if len(in.Args) == 0 {
		return string(in.Opcode)
	}
	return string(in.Opcode) + " " + strings.Join(in.Args, ", ")
}

// Program is a parsed UDC plan.
type Program struct {
	// Name is the source the program was parsed from.
	Name         string
	Instructions []Instruction
	// Labels maps label name to the index of the instruction that follows it.
	// A label at the end of the file maps to len(Instructions).
	Labels map[string]int
}

// LabelIndex resolves a label to an instruction index.
func (p *Program) LabelIndex(name string) (int, bool) {
	idx, ok := p.Labels[name]
	return idx, ok
}

// LabelAt returns the label names bound to instruction index idx, sorted.
func (p *Program) LabelAt(idx int) []string {
	var names []string
	for name, i := range p.Labels {
		if i == idx {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// IsIntegerLiteral reports whether tok is a decimal integer, optionally signed.
func IsIntegerLiteral(tok string) bool {
	s := tok
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		s = s[1:]
	}
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// IsRegisterName reports whether tok is a valid register identifier.
func IsRegisterName(tok string) bool {
	if tok == "" {
		return false
	}
	for i, r := range tok {
		switch {
		case r == '_', r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

func parseLiteral(tok string) (int64, error) {
	return strconv.ParseInt(tok, 10, 64)
}

// ParseError reports a malformed UDC statement.
type ParseError struct {
	File   string
	Line   int
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	file := e.File
	if file == "" {
		file = "<udc>"
	}
	return fmt.Sprintf("%s:%d: %s: %q", file, e.Line, e.Reason, e.Text)
}
