// Package repl is an interactive shell over a persistent UDC virtual machine.
package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"
	"go.uber.org/zap"

	"github.com/steveyegge/govern/internal/udc"
)

// Config holds REPL configuration
type Config struct {
	Limits udc.Limits
	// HistoryFile persists input history; "" keeps it in memory.
	HistoryFile string
	Logger      *zap.Logger
}

// REPL represents the interactive shell
type REPL struct {
	cfg Config
}

// New creates a new REPL instance
func New(cfg Config) *REPL {
	return &REPL{cfg: cfg}
}

var completer = readline.NewPrefixCompleter(
	readline.PcItem(":regs"),
	readline.PcItem(":tape"),
	readline.PcItem(":list"),
	readline.PcItem(":load"),
	readline.PcItem(":reset"),
	readline.PcItem(":help"),
	readline.PcItem(":quit"),
)

// Run starts the REPL loop
func (r *REPL) Run(ctx context.Context) error {
	cyan := color.New(color.FgCyan).SprintFunc()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            cyan("udc> "),
		HistoryFile:       r.cfg.HistoryFile,
		AutoComplete:      completer,
		InterruptPrompt:   "^C",
		EOFPrompt:         ":quit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	out := rl.Stdout()
	session := NewSession(r.cfg.Limits, out, r.cfg.Logger)
	printWelcome(out)

	red := color.New(color.FgRed).SprintFunc()
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		line, err := rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(out, "\nGoodbye!")
				return nil
			}
			return err
		}

		if err := session.Eval(ctx, line); err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(out, "Goodbye!")
				return nil
			}
			fmt.Fprintf(out, "%s %v\n", red("Error:"), err)
		}
	}
}

func printWelcome(out io.Writer) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Fprintf(out, "\n%s\n", cyan("UDC interactive machine"))
	fmt.Fprintln(out, strings.TrimSpace(`
Statements run as soon as they are entered; machine state persists.
Type :help for commands, :quit to exit.`))
	fmt.Fprintln(out)
}
