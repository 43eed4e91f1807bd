package events

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// ReadEntries decodes every entry in a JSONL activity log. Blank lines are
// skipped; a malformed line fails the read with its line number.
func ReadEntries(path string) ([]*LogEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening activity log: %w", err)
	}
	defer f.Close()

	var entries []*LogEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var entry LogEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, lineNum, err)
		}
		entries = append(entries, &entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading activity log: %w", err)
	}
	return entries, nil
}

// Filter returns the entries matching f, most recent last. f.Limit keeps the
// newest entries.
func Filter(entries []*LogEntry, f EntryFilter) []*LogEntry {
	var out []*LogEntry
	for _, e := range entries {
		if f.SessionID != "" && e.SessionID != f.SessionID {
			continue
		}
		if f.Phase != "" && e.Phase != f.Phase {
			continue
		}
		if f.Status != "" && e.Outcome.Status != f.Status {
			continue
		}
		if f.TaskID != "" && e.Task.ID != f.TaskID {
			continue
		}
		if !f.AfterTime.IsZero() && !e.Timestamp.After(f.AfterTime) {
			continue
		}
		out = append(out, e)
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[len(out)-f.Limit:]
	}
	return out
}
