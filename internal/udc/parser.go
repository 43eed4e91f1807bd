package udc

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// ParseFile reads and parses the UDC plan at path.
func ParseFile(path string) (*Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening UDC plan: %w", err)
	}
	defer f.Close()
	return ParseProgram(f, path)
}

// ParseString parses UDC source held in memory.
func ParseString(src string) (*Program, error) {
	return ParseProgram(strings.NewReader(src), "")
}

// ParseProgram parses UDC source. Statements are one per line; '#' starts a
// comment; operands are separated by whitespace and/or commas. Opcodes and
// register names are case-insensitive. Every jump target must name a label.
func ParseProgram(r io.Reader, name string) (*Program, error) {
	prog := &Program{
		Name:         name,
		Instructions: []Instruction{},
		Labels:       make(map[string]int),
	}
	labelLines := make(map[string]int)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		raw := scanner.Text()

		text := raw
		if i := strings.Index(text, "#"); i >= 0 {
			text = text[:i]
		}
		fields := strings.Fields(strings.ReplaceAll(text, ",", " "))
		if len(fields) == 0 {
			continue
		}

		perr := func(format string, args ...interface{}) error {
			return &ParseError{File: name, Line: lineNum, Text: strings.TrimSpace(raw), Reason: fmt.Sprintf(format, args...)}
		}

		head := strings.ToUpper(fields[0])
		if head == labelKeyword {
			if len(fields) != 2 {
				return nil, perr("LABEL takes exactly one name")
			}
			label := fields[1]
			if !IsRegisterName(label) {
				return nil, perr("invalid label name %q", label)
			}
			if prev, dup := labelLines[label]; dup {
				return nil, perr("label %q already defined on line %d", label, prev)
			}
			labelLines[label] = lineNum
			prog.Labels[label] = len(prog.Instructions)
			continue
		}

		op := Opcode(head)
		bounds, known := arity[op]
		if !known {
			return nil, perr("unknown opcode %q", fields[0])
		}
		args := fields[1:]
		if len(args) < bounds[0] || (bounds[1] >= 0 && len(args) > bounds[1]) {
			return nil, perr("%s expects %s, got %d", op, describeArity(bounds), len(args))
		}

		normalized, err := normalizeArgs(op, args)
		if err != nil {
			return nil, perr("%v", err)
		}

		prog.Instructions = append(prog.Instructions, Instruction{
			Line:   lineNum,
			Opcode: op,
			Args:   normalized,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading UDC plan: %w", err)
	}

	for _, in := range prog.Instructions {
		if !in.Opcode.IsJump() {
			continue
		}
		if _, ok := prog.Labels[in.Args[0]]; !ok {
			return nil, &ParseError{File: name, Line: in.Line, Text: in.String(), Reason: fmt.Sprintf("undefined label %q", in.Args[0])}
		}
	}

	return prog, nil
}

// normalizeArgs validates operands by position and upper-cases register names.
func normalizeArgs(op Opcode, args []string) ([]string, error) {
	out := make([]string, len(args))
	for i, a := range args {
		switch {
		case op.IsJump():
			if !IsRegisterName(a) {
				return nil, fmt.Errorf("invalid label reference %q", a)
			}
			out[i] = a
		case op == OpCall:
			out[i] = a
		case i == 0 && op.writesRegister():
			if !IsRegisterName(a) {
				return nil, fmt.Errorf("%s destination must be a register, got %q", op, a)
			}
			out[i] = strings.ToUpper(a)
		default:
			v, err := normalizeValue(a)
			if err != nil {
				return nil, err
			}
			out[i] = v
		}
	}
	return out, nil
}

func normalizeValue(tok string) (string, error) {
	if IsIntegerLiteral(tok) {
		if _, err := parseLiteral(tok); err != nil {
			return "", fmt.Errorf("integer literal out of range: %q", tok)
		}
		return tok, nil
	}
	if IsRegisterName(tok) {
		return strings.ToUpper(tok), nil
	}
	return "", fmt.Errorf("operand %q is neither an integer nor a register", tok)
}

func describeArity(b [2]int) string {
	switch {
	case b[1] < 0:
		return fmt.Sprintf("at least %d argument(s)", b[0])
	case b[0] == b[1]:
		return fmt.Sprintf("%d argument(s)", b[0])
	default:
		return fmt.Sprintf("%d-%d arguments", b[0], b[1])
	}
}
