package udc

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Limits bound a VM run. Every bound is checked before each step.
type Limits struct {
	MaxInstructions int
	MaxMemoryCells  int
	MaxTime         time.Duration
}

// DefaultLimits returns the default VM bounds.
func DefaultLimits() Limits {
	return Limits{
		MaxInstructions: 10000,
		MaxMemoryCells:  1000,
		MaxTime:         5 * time.Second,
	}
}

// LimitKind names the bound a run exceeded.
type LimitKind string

const (
	LimitInstructions LimitKind = "instruction-limit exceeded"
	LimitTime         LimitKind = "time-limit exceeded"
	LimitMemory       LimitKind = "memory-limit exceeded"
)

// ResourceLimitError terminates a run that exceeded one of its bounds.
// It is never retried.
type ResourceLimitError struct {
	Kind     LimitKind
	Limit    string
	Observed string
	IP       int
}

func (e *ResourceLimitError) Error() string {
	return fmt.Sprintf("%s (limit %s, observed %s, ip %d)", e.Kind, e.Limit, e.Observed, e.IP)
}

// Status is the state of a VM run.
type Status string

const (
	StatusRunning      Status = "running"
	StatusHalted       Status = "halted"
	StatusEndOfProgram Status = "end-of-program"
	StatusLimited      Status = "limit-exceeded"
)

// State is the complete machine state.
type State struct {
	Tape             map[int64]int64  `json:"tape"`
	HeadPos          int64            `json:"head_pos"`
	Registers        map[string]int64 `json:"registers"`
	IP               int              `json:"ip"`
	CmpFlagEqual     bool             `json:"cmp_flag_equal"`
	CmpFlagGreater   bool             `json:"cmp_flag_greater"`
	InstructionCount int              `json:"instruction_count"`
	StartTime        time.Time        `json:"start_time"`
}

func newState(start time.Time) State {
	return State{
		Tape:      make(map[int64]int64),
		Registers: make(map[string]int64),
		StartTime: start,
	}
}

// Result summarizes a finished run.
type Result struct {
	Status Status
	State  State
	// Warning is set when the run ended without HALT.
	Warning string
}

// VM executes a Program on a tape machine. A VM is single-threaded; it yields
// only at its bound check between instructions.
type VM struct {
	prog   *Program
	limits Limits
	state  State
	status Status
	now    func() time.Time
	logger *zap.Logger
}

// Option configures a VM.
type Option func(*VM)

// WithClock replaces the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(v *VM) { v.now = now }
}

// WithLogger sets the logger used for CALL and end-of-program warnings.
func WithLogger(l *zap.Logger) Option {
	return func(v *VM) {
		if l != nil {
			v.logger = l
		}
	}
}

// NewVM creates a VM for prog with the given bounds. Zero-valued bounds fall
// back to DefaultLimits.
func NewVM(prog *Program, limits Limits, opts ...Option) *VM {
	def := DefaultLimits()
	if limits.MaxInstructions <= 0 {
		limits.MaxInstructions = def.MaxInstructions
	}
	if limits.MaxMemoryCells <= 0 {
		limits.MaxMemoryCells = def.MaxMemoryCells
	}
	if limits.MaxTime <= 0 {
		limits.MaxTime = def.MaxTime
	}

	v := &VM{
		prog:   prog,
		limits: limits,
		status: StatusRunning,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	v.state = newState(v.now())
	return v
}

// State returns the current machine state. The maps are shared with the VM.
func (v *VM) State() State { return v.state }

// Status returns the current run status.
func (v *VM) Status() Status { return v.status }

// Reset clears all machine state and restarts the clock.
func (v *VM) Reset() {
	v.state = newState(v.now())
	v.status = StatusRunning
}

// RestartBudget zeroes the instruction count and restarts the clock while
// keeping tape, registers, and ip. Interactive sessions call it before each
// input so the bounds apply per input.
func (v *VM) RestartBudget() {
	v.state.InstructionCount = 0
	v.state.StartTime = v.now()
}

// SetProgram swaps the program while keeping machine state. A VM that ran off
// the end of the previous program resumes at its current ip; a halted VM stays
// halted until Reset.
func (v *VM) SetProgram(prog *Program) {
	v.prog = prog
	if v.status == StatusEndOfProgram {
		v.status = StatusRunning
	}
}

// Run executes until HALT, the end of the program, a bound violation, or ctx
// cancellation.
func (v *VM) Run(ctx context.Context) (*Result, error) {
	for v.status == StatusRunning {
		if err := ctx.Err(); err != nil {
			return v.result(), err
		}
		if err := v.Step(); err != nil {
			return v.result(), err
		}
	}
	return v.result(), nil
}

func (v *VM) result() *Result {
	r := &Result{Status: v.status, State: v.state}
	if v.status == StatusEndOfProgram {
		r.Warning = "reached end of program without HALT"
	}
	return r
}

// Step checks the bounds and executes one instruction.
func (v *VM) Step() error {
	if v.status != StatusRunning {
		return nil
	}

	if v.state.IP < 0 || v.state.IP >= len(v.prog.Instructions) {
		if err := v.checkMemory(); err != nil {
			return err
		}
		v.status = StatusEndOfProgram
		v.logger.Warn("UDC program ended without HALT",
			zap.String("program", v.prog.Name), zap.Int("ip", v.state.IP))
		return nil
	}

	if err := v.checkBounds(); err != nil {
		return err
	}

	in := v.prog.Instructions[v.state.IP]
	v.state.InstructionCount++
	jumped, err := v.exec(in)
	if err != nil {
		return fmt.Errorf("line %d (%s): %w", in.Line, in, err)
	}
	if !jumped {
		v.state.IP++
	}
	return nil
}

func (v *VM) checkBounds() error {
	s := &v.state
	if s.InstructionCount >= v.limits.MaxInstructions {
		return v.limit(LimitInstructions, fmt.Sprint(v.limits.MaxInstructions), fmt.Sprint(s.InstructionCount))
	}
	if elapsed := v.now().Sub(s.StartTime); elapsed >= v.limits.MaxTime {
		return v.limit(LimitTime, v.limits.MaxTime.String(), elapsed.String())
	}
	return v.checkMemory()
}

func (v *VM) checkMemory() error {
	if n := len(v.state.Tape); n > v.limits.MaxMemoryCells {
		return v.limit(LimitMemory, fmt.Sprint(v.limits.MaxMemoryCells), fmt.Sprint(n))
	}
	return nil
}

func (v *VM) limit(kind LimitKind, limit, observed string) error {
	v.status = StatusLimited
	return &ResourceLimitError{Kind: kind, Limit: limit, Observed: observed, IP: v.state.IP}
}

// exec runs one instruction and reports whether it set ip itself.
func (v *VM) exec(in Instruction) (bool, error) {
	s := &v.state

	switch in.Opcode {
	case OpLeft:
		s.HeadPos--

	case OpRight:
		s.HeadPos++

	case OpRead:
		s.Registers[in.Args[0]] = s.Tape[s.HeadPos]

	case OpWrite:
		val, err := v.value(in.Args[0])
		if err != nil {
			return false, err
		}
		s.Tape[s.HeadPos] = val

	case OpMov, OpAdd, OpSub:
		val, err := v.value(in.Args[1])
		if err != nil {
			return false, err
		}
		reg := in.Args[0]
		switch in.Opcode {
		case OpMov:
			s.Registers[reg] = val
		case OpAdd:
			s.Registers[reg] += val
		case OpSub:
			s.Registers[reg] -= val
		}

	case OpInc:
		s.Registers[in.Args[0]]++

	case OpDec:
		s.Registers[in.Args[0]]--

	case OpCmp:
		a, err := v.value(in.Args[0])
		if err != nil {
			return false, err
		}
		b, err := v.value(in.Args[1])
		if err != nil {
			return false, err
		}
		s.CmpFlagEqual = a == b
		s.CmpFlagGreater = a > b

	case OpJmp, OpJe, OpJne, OpJg, OpJl, OpJge, OpJle:
		if !v.conditionHolds(in.Opcode) {
			return false, nil
		}
		target, ok := v.prog.LabelIndex(in.Args[0])
		if !ok {
			return false, fmt.Errorf("undefined label %q", in.Args[0])
		}
		s.IP = target
		return true, nil

	case OpHalt:
		v.status = StatusHalted

	case OpCall:
		v.logger.Info("UDC CALL (no-op)",
			zap.String("tool", in.Args[0]),
			zap.Strings("args", in.Args[1:]),
			zap.Int("line", in.Line))

	default:
		return false, fmt.Errorf("unsupported opcode %s", in.Opcode)
	}

	return false, nil
}

func (v *VM) conditionHolds(op Opcode) bool {
	eq, gt := v.state.CmpFlagEqual, v.state.CmpFlagGreater
	switch op {
	case OpJmp:
		return true
	case OpJe:
		return eq
	case OpJne:
		return !eq
	case OpJg:
		return gt
	case OpJl:
		return !gt && !eq
	case OpJge:
		return gt || eq
	case OpJle:
		return !gt
	}
	return false
}

// value dereferences an operand: integer literals evaluate to themselves,
// register names to the register's value (default 0).
func (v *VM) value(tok string) (int64, error) {
	if IsIntegerLiteral(tok) {
		return parseLiteral(tok)
	}
	return v.state.Registers[tok], nil
}
