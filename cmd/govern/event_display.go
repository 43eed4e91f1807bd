package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"

	"github.com/steveyegge/govern/internal/events"
)

// displayLogEntry prints one activity log entry in a two-line format.
func displayLogEntry(e *events.LogEntry) {
	statusColor := color.New(color.FgGreen)
	icon := "✓"
	if e.Outcome.Status == events.StatusFailure {
		statusColor = color.New(color.FgRed)
		icon = "✗"
	}

	task := e.Task.ID
	if task == "" {
		task = "-"
	}
	fmt.Printf("%s [%s] %s %s: %s\n",
		statusColor.Sprint(icon),
		e.Timestamp.Local().Format("2006-01-02 15:04:05"),
		color.New(color.FgCyan).Sprint(e.Phase),
		color.New(color.FgMagenta).Sprint(e.Action.Type),
		truncateString(e.Outcome.Message, 80),
	)

	gray := color.New(color.FgHiBlack)
	fmt.Printf("  %s\n", gray.Sprint(entryMetadata(e, task)))
}

// entryMetadata renders the second display line: task, step, error, details.
func entryMetadata(e *events.LogEntry, task string) string {
	fields := []string{"task " + task}
	if e.Task.PlanStep > 0 {
		fields = append(fields, fmt.Sprintf("step %d", e.Task.PlanStep))
	}
	if e.Outcome.Error != "" {
		fields = append(fields, "error: "+truncateString(e.Outcome.Error, 60))
	}

	keys := make([]string, 0, len(e.Action.Details))
	for k := range e.Action.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fields = append(fields, fmt.Sprintf("%s=%s", k, truncateString(fmt.Sprint(e.Action.Details[k]), 40)))
	}
	return strings.Join(fields, " | ")
}

func truncateString(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return "..."
	}
	return s[:maxLen-3] + "..."
}
