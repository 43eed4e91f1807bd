package planning

import (
	"fmt"
	"os"
	"strings"
	"unicode/utf8"
)

// BlockSeparator is the line that separates plan blocks.
const BlockSeparator = "---"

// Parse splits plan text into commands. It performs no semantic validation.
func Parse(text string) (*Plan, error) {
	return ParseNamed("", text)
}

// ParseFile reads and parses the plan at path.
func ParseFile(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading plan: %w", err)
	}
	return ParseNamed(path, string(data))
}

// ParseNamed parses text, reporting errors against the given source name.
func ParseNamed(source, text string) (*Plan, error) {
	if !utf8.ValidString(text) {
		return nil, &ParseError{File: source, Line: 1, Reason: "plan is not valid UTF-8"}
	}

	plan := &Plan{Source: source, Commands: []Command{}}

	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	var block []numberedLine
	flush := func() error {
		cmd, ok, err := parseBlock(source, block)
		block = block[:0]
		if err != nil {
			return err
		}
		if ok {
			plan.Commands = append(plan.Commands, cmd)
		}
		return nil
	}

	for i, line := range lines {
		if line == BlockSeparator {
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		}
		block = append(block, numberedLine{num: i + 1, text: line})
	}
	if err := flush(); err != nil {
		return nil, err
	}

	return plan, nil
}

type numberedLine struct {
	num  int
	text string
}

// parseBlock turns one block into a command. ok is false for blocks that hold
// only comments and blank lines.
func parseBlock(source string, block []numberedLine) (Command, bool, error) {
	content := make([]numberedLine, 0, len(block))
	for _, l := range block {
		if strings.HasPrefix(strings.TrimLeft(l.text, " \t"), "#") {
			continue
		}
		content = append(content, l)
	}

	// Leading blank lines are not part of the block.
	for len(content) > 0 && strings.TrimSpace(content[0].text) == "" {
		content = content[1:]
	}
	if len(content) == 0 {
		return Command{}, false, nil
	}

	head := content[0]
	toolName := strings.TrimSpace(head.text)
	if toolName == "" {
		return Command{}, false, &ParseError{File: source, Line: head.num, Text: head.text, Reason: "empty tool name"}
	}

	args := make([]string, 0, len(content)-1)
	for _, l := range content[1:] {
		args = append(args, l.text)
	}

	return Command{
		ToolName: toolName,
		ArgsText: strings.TrimSpace(strings.Join(args, "\n")),
	}, true, nil
}
