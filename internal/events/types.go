// Package events is the activity log: a session-scoped, schema-validated,
// append-only JSONL journal of what the agent did and how it turned out.
package events

import (
	"context"
	"time"
)

// Phase names the stage of work an entry belongs to.
const (
	PhaseValidation     = "validation"
	PhaseExecution      = "execution"
	PhaseSelfCorrection = "self-correction"
	PhaseCompilation    = "compilation"
	PhaseExtraction     = "extraction"
)

// Status is the outcome of a logged action.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"
)

// LogEntry is one line of the activity log.
type LogEntry struct {
	// LogID is unique per entry.
	LogID string `json:"log_id"`
	// SessionID is constant for the lifetime of the writer that produced the entry.
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
	Phase     string    `json:"phase"`
	Task      Task      `json:"task"`
	Action    Action    `json:"action"`
	Outcome   Outcome   `json:"outcome"`
	// EvidenceCitation points at whatever justifies the action (a file, a
	// report section, a command output).
	EvidenceCitation string `json:"evidence_citation"`
}

// Task identifies the unit of work and the plan step within it.
type Task struct {
	ID       string `json:"id"`
	PlanStep int    `json:"plan_step"`
}

// Action is what was attempted.
type Action struct {
	Type    string                 `json:"type"`
	Details map[string]interface{} `json:"details"`
}

// Outcome is how the action turned out.
type Outcome struct {
	Status  Status `json:"status"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// Record is the caller-supplied part of a LogEntry; the writer fills in the
// identifiers and timestamp.
type Record struct {
	Phase            string
	TaskID           string
	PlanStep         int
	ActionType       string
	Details          map[string]interface{}
	Status           Status
	Message          string
	Err              error
	EvidenceCitation string
}

// Index receives every entry written to the log, typically a SQLite index
// used for querying.
type Index interface {
	StoreLogEntry(ctx context.Context, entry *LogEntry) error
}

// EntryFilter selects entries when querying an index.
type EntryFilter struct {
	SessionID string
	Phase     string
	Status    Status
	TaskID    string
	// AfterTime filters entries that occurred after this time
	AfterTime time.Time
	// Limit limits the number of entries returned
	Limit int
}
