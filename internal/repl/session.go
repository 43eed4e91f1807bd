package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/steveyegge/govern/internal/logging"
	"github.com/steveyegge/govern/internal/udc"
)

// Session is an interactive UDC machine. Every accepted statement is appended
// to the session program and the VM runs until it needs more input. Machine
// state persists across inputs; the bounds apply to each input separately.
type Session struct {
	limits udc.Limits
	vm     *udc.VM
	lines  []string
	out    io.Writer
	logger *zap.Logger
}

// NewSession creates a session that prints to out.
func NewSession(limits udc.Limits, out io.Writer, logger *zap.Logger) *Session {
	s := &Session{
		limits: limits,
		out:    out,
		logger: logging.OrNop(logger),
	}
	s.reset()
	return s
}

func (s *Session) reset() {
	s.lines = nil
	s.vm = udc.NewVM(&udc.Program{Labels: map[string]int{}}, s.limits)
}

// Eval handles one line of input. It returns io.EOF when the user quits;
// other errors are user mistakes or run failures worth printing.
func (s *Session) Eval(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if strings.HasPrefix(line, ":") {
		return s.command(ctx, line)
	}
	return s.statement(ctx, line)
}

func (s *Session) command(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	switch fields[0] {
	case ":regs":
		s.printRegisters()
	case ":tape":
		s.printTape()
	case ":list":
		for i, l := range s.lines {
			fmt.Fprintf(s.out, "%4d  %s\n", i+1, l)
		}
	case ":reset":
		s.reset()
		fmt.Fprintln(s.out, "machine reset")
	case ":load":
		if len(fields) != 2 {
			return fmt.Errorf("usage: :load <file>")
		}
		return s.load(ctx, fields[1])
	case ":help":
		s.printHelp()
	case ":quit", ":exit":
		return io.EOF
	default:
		return fmt.Errorf("unknown command %s (try :help)", fields[0])
	}
	return nil
}

func (s *Session) statement(ctx context.Context, line string) error {
	candidate := append(append([]string{}, s.lines...), line)
	prog, err := udc.ParseString(strings.Join(candidate, "\n"))
	if err != nil {
		return err
	}
	s.lines = candidate
	return s.run(ctx, prog)
}

func (s *Session) load(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	text := strings.TrimRight(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	prog, err := udc.ParseProgram(strings.NewReader(text), path)
	if err != nil {
		return err
	}
	s.reset()
	s.lines = strings.Split(text, "\n")
	fmt.Fprintf(s.out, "loaded %s (%d instructions)\n", path, len(prog.Instructions))
	return s.run(ctx, prog)
}

func (s *Session) run(ctx context.Context, prog *udc.Program) error {
	s.vm.SetProgram(prog)
	switch s.vm.Status() {
	case udc.StatusHalted:
		fmt.Fprintln(s.out, color.YellowString("machine halted; :reset to start over"))
		return nil
	case udc.StatusLimited:
		fmt.Fprintln(s.out, color.YellowString("machine stopped at a resource limit; :reset to start over"))
		return nil
	}

	s.vm.RestartBudget()
	res, err := s.vm.Run(ctx)
	if err != nil {
		var limitErr *udc.ResourceLimitError
		if errors.As(err, &limitErr) {
			s.logger.Debug("UDC input hit a bound", zap.String("kind", string(limitErr.Kind)))
		}
		return err
	}
	if res.Status == udc.StatusHalted {
		fmt.Fprintln(s.out, color.GreenString("halted"))
	}
	return nil
}

func (s *Session) printRegisters() {
	regs := s.vm.State().Registers
	if len(regs) == 0 {
		fmt.Fprintln(s.out, "(no registers set)")
		return
	}
	names := make([]string, 0, len(regs))
	for name := range regs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(s.out, "%s = %d\n", name, regs[name])
	}
}

func (s *Session) printTape() {
	st := s.vm.State()
	cells := make([]int64, 0, len(st.Tape)+1)
	seen := false
	for pos := range st.Tape {
		cells = append(cells, pos)
		if pos == st.HeadPos {
			seen = true
		}
	}
	if !seen {
		cells = append(cells, st.HeadPos)
	}
	sort.Slice(cells, func(i, j int) bool { return cells[i] < cells[j] })

	for _, pos := range cells {
		marker := ""
		if pos == st.HeadPos {
			marker = "  <- head"
		}
		fmt.Fprintf(s.out, "[%d] %d%s\n", pos, st.Tape[pos], marker)
	}
}

func (s *Session) printHelp() {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Fprintf(s.out, "\n%s\n", cyan("Commands:"))
	for _, c := range []struct{ name, desc string }{
		{":regs", "Show registers"},
		{":tape", "Show non-empty tape cells and the head"},
		{":list", "Show the session program"},
		{":load <file>", "Reset and run a UDC plan file"},
		{":reset", "Clear the machine and the session program"},
		{":help", "Show this help message"},
		{":quit", "Exit"},
	} {
		fmt.Fprintf(s.out, "  %-14s %s\n", green(c.name), c.desc)
	}
	fmt.Fprintln(s.out, "\nAny other input is a UDC statement. Jumps may only target labels already entered.")
	fmt.Fprintln(s.out)
}
