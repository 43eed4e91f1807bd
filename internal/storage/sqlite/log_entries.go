package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/steveyegge/govern/internal/events"
)

const timeLayout = time.RFC3339Nano

// StoreLogEntry indexes one activity log entry. Re-indexing the same log_id
// replaces the row.
func (s *Index) StoreLogEntry(ctx context.Context, e *events.LogEntry) error {
	details, err := json.Marshal(e.Action.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal entry details: %w", err)
	}

	query := `
		INSERT OR REPLACE INTO log_entries (
			log_id, session_id, timestamp, phase, task_id, plan_step,
			action_type, details, status, message, error, evidence_citation
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = s.db.ExecContext(ctx, query,
		e.LogID,
		e.SessionID,
		e.Timestamp.UTC().Format(timeLayout),
		e.Phase,
		e.Task.ID,
		e.Task.PlanStep,
		e.Action.Type,
		string(details),
		string(e.Outcome.Status),
		e.Outcome.Message,
		e.Outcome.Error,
		e.EvidenceCitation,
	)
	if err != nil {
		return fmt.Errorf("failed to store log entry (phase=%s, task=%s): %w", e.Phase, e.Task.ID, err)
	}
	return nil
}

// RecentEntries returns entries matching filter, most recent first.
func (s *Index) RecentEntries(ctx context.Context, filter events.EntryFilter) ([]*events.LogEntry, error) {
	query := `
		SELECT log_id, session_id, timestamp, phase, task_id, plan_step,
		       action_type, details, status, message, error, evidence_citation
		FROM log_entries
		WHERE 1=1
	`
	args := []interface{}{}

	if filter.SessionID != "" {
		query += " AND session_id = ?"
		args = append(args, filter.SessionID)
	}
	if filter.Phase != "" {
		query += " AND phase = ?"
		args = append(args, filter.Phase)
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	if filter.TaskID != "" {
		query += " AND task_id = ?"
		args = append(args, filter.TaskID)
	}
	if !filter.AfterTime.IsZero() {
		query += " AND timestamp > ?"
		args = append(args, filter.AfterTime.UTC().Format(timeLayout))
	}

	query += " ORDER BY timestamp DESC, rowid DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query log entries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// CountEntries returns the number of indexed entries per status.
func (s *Index) CountEntries(ctx context.Context) (map[events.Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM log_entries GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count log entries: %w", err)
	}
	defer rows.Close()

	counts := make(map[events.Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[events.Status(status)] = n
	}
	return counts, rows.Err()
}

func scanEntries(rows *sql.Rows) ([]*events.LogEntry, error) {
	var result []*events.LogEntry

	for rows.Next() {
		var e events.LogEntry
		var ts, details, status string

		err := rows.Scan(
			&e.LogID,
			&e.SessionID,
			&ts,
			&e.Phase,
			&e.Task.ID,
			&e.Task.PlanStep,
			&e.Action.Type,
			&details,
			&status,
			&e.Outcome.Message,
			&e.Outcome.Error,
			&e.EvidenceCitation,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan log entry: %w", err)
		}

		e.Timestamp, err = time.Parse(timeLayout, ts)
		if err != nil {
			return nil, fmt.Errorf("failed to parse timestamp %q: %w", ts, err)
		}
		e.Outcome.Status = events.Status(status)

		e.Action.Details = make(map[string]interface{})
		if details != "" && details != "{}" && details != "null" {
			if err := json.Unmarshal([]byte(details), &e.Action.Details); err != nil {
				return nil, fmt.Errorf("failed to unmarshal entry details: %w", err)
			}
		}

		result = append(result, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating log entry rows: %w", err)
	}
	return result, nil
}

var _ events.Index = (*Index)(nil)
