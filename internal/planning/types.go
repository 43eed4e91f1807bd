// Package planning parses agent plans, validates them against whole-plan rules,
// and drives their execution through a pluggable Executor.
//
// Plan text format:
//
//	tool_name
//	argument lines...
//	---
//	# comments are dropped
//	next_tool
//
// Blocks are separated by lines consisting exactly of "---".
package planning

import (
	"fmt"
	"strings"
)

// Command is a single parsed plan step. Commands are immutable after parsing.
type Command struct {
	// ToolName is the first non-comment, non-empty line of the block.
	ToolName string `json:"tool_name"`

	// ArgsText is the rest of the block, possibly multi-line, possibly empty.
	ArgsText string `json:"args_text"`
}

// String renders the command as "tool_name(args)" for messages.
func (c Command) String() string {
	if c.ArgsText == "" {
		return c.ToolName
	}
	first, _, multi := strings.Cut(c.ArgsText, "\n")
	if multi {
		first += " ..."
	}
	return fmt.Sprintf("%s(%s)", c.ToolName, first)
}

// Plan is an ordered sequence of commands.
type Plan struct {
	// Source names where the plan text came from (a path, or "" for inline text).
	Source string `json:"source,omitempty"`

	Commands []Command `json:"commands"`
}

// ToolNames returns the tool name of every command, in plan order.
func (p *Plan) ToolNames() []string {
	names := make([]string, len(p.Commands))
	for i, c := range p.Commands {
		names[i] = c.ToolName
	}
	return names
}

// Contains reports whether any command invokes toolName.
func (p *Plan) Contains(toolName string) bool {
	for _, c := range p.Commands {
		if c.ToolName == toolName {
			return true
		}
	}
	return false
}

// Serialize renders the plan back to text: tool name, a blank line, the args,
// blocks joined by "---". Parsing the result yields the same commands.
//
// A tool name or an outer args line that reads exactly "---" is padded with a
// space so it is not taken for a separator; Parse trims the padding away.
func (p *Plan) Serialize() string {
	blocks := make([]string, len(p.Commands))
	for i, c := range p.Commands {
		tool := c.ToolName
		if tool == BlockSeparator {
			tool = " " + tool
		}
		if c.ArgsText == "" {
			blocks[i] = tool
			continue
		}
		lines := strings.Split(c.ArgsText, "\n")
		if lines[0] == BlockSeparator {
			lines[0] = " " + lines[0]
		}
		if last := len(lines) - 1; last > 0 && lines[last] == BlockSeparator {
			lines[last] += " "
		}
		blocks[i] = tool + "\n\n" + strings.Join(lines, "\n")
	}
	return strings.Join(blocks, "\n"+BlockSeparator+"\n") + "\n"
}

// ParseError reports a malformed plan block.
type ParseError struct {
	File   string
	Line   int
	Text   string
	Reason string
}

func (e *ParseError) Error() string {
	file := e.File
	if file == "" {
		file = "<plan>"
	}
	return fmt.Sprintf("%s:%d: %s: %q", file, e.Line, e.Reason, e.Text)
}
