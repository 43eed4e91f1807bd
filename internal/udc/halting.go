package udc

import (
	"fmt"
	"strings"
)

// Risk is a termination-risk estimate.
type Risk string

const (
	RiskLow     Risk = "LOW"
	RiskMedium  Risk = "MEDIUM"
	RiskHigh    Risk = "HIGH"
	RiskUnknown Risk = "UNKNOWN"
	RiskError   Risk = "ERROR"
)

// riskRank orders risks for aggregation: HIGH > MEDIUM > UNKNOWN > LOW.
var riskRank = map[Risk]int{
	RiskLow:     0,
	RiskUnknown: 1,
	RiskMedium:  2,
	RiskHigh:    3,
}

// Loop is a backward jump found in a program.
type Loop struct {
	Label     string `json:"label"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	// ExitCondition is the conditional jump that can leave the loop, or nil for
	// an unconditional loop with no detectable break.
	ExitCondition *Instruction `json:"exit_condition"`
	Risk          Risk         `json:"risk"`
	Reason        string       `json:"reason"`
}

// Report is the analyzer's verdict for a program.
type Report struct {
	EstimatedRisk          Risk   `json:"estimated_risk"`
	Reason                 string `json:"reason"`
	PotentialInfiniteLoops []Loop `json:"potential_infinite_loops"`
}

// Analyze parses the UDC plan at path and estimates its termination risk.
// File and parse failures produce an ERROR report carrying the cause.
func Analyze(path string) *Report {
	prog, err := ParseFile(path)
	if err != nil {
		return &Report{
			EstimatedRisk:          RiskError,
			Reason:                 err.Error(),
			PotentialInfiniteLoops: []Loop{},
		}
	}
	return AnalyzeProgram(prog)
}

// AnalyzeProgram classifies every backward jump in prog. The analysis is a
// heuristic: LOW means the loop's exit register changes by constant steps and
// never reads input, not that the program provably halts.
func AnalyzeProgram(prog *Program) *Report {
	loops := []Loop{}

	for idx, in := range prog.Instructions {
		if !in.Opcode.IsJump() {
			continue
		}
		// A label bound to the jump itself is a loop: the jump re-executes.
		target, ok := prog.LabelIndex(in.Args[0])
		if !ok || target > idx {
			continue
		}

		loop := Loop{
			Label:     in.Args[0],
			StartLine: prog.Instructions[target].Line,
			EndLine:   in.Line,
		}
		exit, risk, reason := classifyLoop(prog, target, idx)
		loop.ExitCondition = exit
		loop.Risk = risk
		loop.Reason = reason
		loops = append(loops, loop)
	}

	if len(loops) == 0 {
		return &Report{
			EstimatedRisk:          RiskLow,
			Reason:                 "no loops detected",
			PotentialInfiniteLoops: loops,
		}
	}

	worst := 0
	for i, l := range loops {
		if riskRank[l.Risk] > riskRank[loops[worst].Risk] {
			worst = i
		}
	}
	w := loops[worst]
	return &Report{
		EstimatedRisk: w.Risk,
		Reason: fmt.Sprintf("%d loop(s) detected; highest risk %s for loop '%s' (lines %d-%d): %s",
			len(loops), w.Risk, w.Label, w.StartLine, w.EndLine, w.Reason),
		PotentialInfiniteLoops: loops,
	}
}

// classifyLoop judges the loop whose body spans instructions [start, jump].
func classifyLoop(prog *Program, start, jump int) (*Instruction, Risk, string) {
	ins := prog.Instructions
	exitIdx := jump

	if ins[jump].Opcode == OpJmp {
		exitIdx = findBreak(prog, start, jump)
		if exitIdx < 0 {
			return nil, RiskHigh, "unconditional, no detectable break"
		}
	}
	exit := ins[exitIdx]

	cmpIdx := -1
	for i := exitIdx - 1; i >= start; i-- {
		if ins[i].Opcode == OpCmp {
			cmpIdx = i
			break
		}
	}
	if cmpIdx < 0 {
		return &exit, RiskMedium, fmt.Sprintf("no CMP precedes exit jump %s", exit)
	}
	cmp := ins[cmpIdx]
	if len(cmp.Args) != 2 {
		return &exit, RiskMedium, fmt.Sprintf("malformed comparison %s", cmp)
	}

	reg := ""
	for _, a := range cmp.Args {
		if !IsIntegerLiteral(a) {
			reg = a
			break
		}
	}
	if reg == "" {
		return &exit, RiskUnknown, fmt.Sprintf("constant comparison %s", cmp)
	}

	var mods []Instruction
	for i := start; i < jump; i++ {
		in := ins[i]
		if !in.Opcode.writesRegister() || len(in.Args) == 0 || in.Args[0] != reg {
			continue
		}
		if in.Opcode == OpRead {
			return &exit, RiskHigh, fmt.Sprintf("unpredictable input: READ into %s on line %d", reg, in.Line)
		}
		mods = append(mods, in)
	}

	if len(mods) == 0 {
		return &exit, RiskHigh, fmt.Sprintf("register %s never modified in loop body", reg)
	}

	ops := make([]string, 0, len(mods))
	for _, m := range mods {
		if len(m.Args) > 1 && !IsIntegerLiteral(m.Args[1]) {
			return &exit, RiskMedium, fmt.Sprintf("complex modification of %s: %s on line %d", reg, m, m.Line)
		}
		ops = append(ops, m.String())
	}
	return &exit, RiskLow, fmt.Sprintf("predictable modification of %s (%s) with no input", reg, strings.Join(ops, "; "))
}

// findBreak returns the index of the first conditional jump inside [start, jump)
// whose target lies outside the loop, or -1.
func findBreak(prog *Program, start, jump int) int {
	for i := start; i < jump; i++ {
		in := prog.Instructions[i]
		if !in.Opcode.IsConditionalJump() {
			continue
		}
		target, ok := prog.LabelIndex(in.Args[0])
		if !ok {
			continue
		}
		if target < start || target > jump {
			return i
		}
	}
	return -1
}
