package events

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/steveyegge/govern/internal/logging"
	"go.uber.org/zap"
)

// Config configures a Writer.
type Config struct {
	// SchemaPath is the Markdown document holding the logging schema. Empty
	// disables validation.
	SchemaPath string
	// LogPath is the JSONL journal. Required.
	LogPath string
	// Index, when set, receives every written entry.
	Index  Index
	Logger *zap.Logger
	// Clock replaces time.Now, for tests.
	Clock func() time.Time
	// SessionID overrides the generated session id.
	SessionID string
}

// Writer appends entries to the activity log. A Writer serializes its own
// writes; separate Writers on one file are not supported.
type Writer struct {
	logPath   string
	sessionID string
	schema    *jsonschema.Schema
	schemaErr error
	index     Index
	logger    *zap.Logger
	now       func() time.Time

	warnOnce sync.Once
	mu       sync.Mutex
}

// NewWriter creates a writer with a fresh session id. A missing or malformed
// schema does not fail construction: the writer logs unvalidated and warns
// once on first use.
func NewWriter(cfg Config) (*Writer, error) {
	if cfg.LogPath == "" {
		return nil, fmt.Errorf("activity log path is required")
	}

	w := &Writer{
		logPath:   cfg.LogPath,
		sessionID: cfg.SessionID,
		index:     cfg.Index,
		logger:    logging.OrNop(cfg.Logger),
		now:       cfg.Clock,
	}
	if w.sessionID == "" {
		w.sessionID = uuid.New().String()
	}
	if w.now == nil {
		w.now = time.Now
	}

	if cfg.SchemaPath == "" {
		w.schemaErr = fmt.Errorf("no logging schema configured")
	} else {
		w.schema, w.schemaErr = LoadSchema(cfg.SchemaPath)
	}
	return w, nil
}

// SessionID returns the id shared by every entry this writer produces.
func (w *Writer) SessionID() string { return w.sessionID }

// Path returns the journal path.
func (w *Writer) Path() string { return w.logPath }

// Validating reports whether entries are checked against a schema.
func (w *Writer) Validating() bool { return w.schema != nil }

// Log builds an entry from rec, validates it, and appends it to the journal.
// A *SchemaError means nothing was written.
func (w *Writer) Log(ctx context.Context, rec Record) (*LogEntry, error) {
	entry := w.newEntry(rec)

	line, err := marshalEntry(entry)
	if err != nil {
		return nil, err
	}

	if w.schema != nil {
		if err := validateEntry(w.schema, entry, line); err != nil {
			return nil, err
		}
	} else {
		w.warnOnce.Do(func() {
			w.logger.Warn("activity log schema unavailable; writing entries without validation",
				zap.Error(w.schemaErr))
		})
	}

	if err := w.append(line); err != nil {
		return nil, err
	}

	if w.index != nil {
		if err := w.index.StoreLogEntry(ctx, entry); err != nil {
			w.logger.Warn("failed to index activity log entry",
				zap.String("log_id", entry.LogID), zap.Error(err))
		}
	}
	return entry, nil
}

func (w *Writer) newEntry(rec Record) *LogEntry {
	details := rec.Details
	if details == nil {
		details = map[string]interface{}{}
	}
	status := rec.Status
	if status == "" {
		status = StatusSuccess
		if rec.Err != nil {
			status = StatusFailure
		}
	}

	entry := &LogEntry{
		LogID:     uuid.New().String(),
		SessionID: w.sessionID,
		Timestamp: w.now().UTC(),
		Phase:     rec.Phase,
		Task:      Task{ID: rec.TaskID, PlanStep: rec.PlanStep},
		Action:    Action{Type: rec.ActionType, Details: details},
		Outcome: Outcome{
			Status:  status,
			Message: rec.Message,
		},
		EvidenceCitation: rec.EvidenceCitation,
	}
	if rec.Err != nil {
		entry.Outcome.Error = rec.Err.Error()
	}
	return entry
}

func (w *Writer) append(line []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(w.logPath), 0755); err != nil {
		return fmt.Errorf("creating activity log directory: %w", err)
	}
	f, err := os.OpenFile(w.logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening activity log: %w", err)
	}
	defer f.Close()

	buf := make([]byte, 0, len(line)+1)
	buf = append(buf, line...)
	buf = append(buf, '\n')
	if _, err := f.Write(buf); err != nil {
		return fmt.Errorf("writing activity log: %w", err)
	}
	return nil
}
