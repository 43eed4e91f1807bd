package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/steveyegge/govern/internal/lessons"
)

// RecordTransition implements lessons.TransitionRecorder.
func (s *Index) RecordTransition(ctx context.Context, t lessons.Transition) error {
	return s.StoreLessonTransition(ctx, t)
}

// StoreLessonTransition indexes one lesson status change.
func (s *Index) StoreLessonTransition(ctx context.Context, t lessons.Transition) error {
	at := t.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO lesson_transitions (lesson_id, task_id, from_status, to_status, reason, at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, t.LessonID, t.TaskID, string(t.From), string(t.To), t.Reason, at.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to store lesson transition (lesson=%s): %w", t.LessonID, err)
	}
	return nil
}

// LessonHistory returns a lesson's transitions in the order they happened.
func (s *Index) LessonHistory(ctx context.Context, lessonID string) ([]lessons.Transition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT lesson_id, task_id, from_status, to_status, reason, at
		FROM lesson_transitions
		WHERE lesson_id = ?
		ORDER BY id ASC
	`, lessonID)
	if err != nil {
		return nil, fmt.Errorf("failed to query lesson history: %w", err)
	}
	defer rows.Close()

	var history []lessons.Transition
	for rows.Next() {
		var t lessons.Transition
		var from, to, at string
		if err := rows.Scan(&t.LessonID, &t.TaskID, &from, &to, &t.Reason, &at); err != nil {
			return nil, fmt.Errorf("failed to scan lesson transition: %w", err)
		}
		t.From, t.To = lessons.Status(from), lessons.Status(to)
		if t.At, err = time.Parse(timeLayout, at); err != nil {
			return nil, fmt.Errorf("failed to parse transition time %q: %w", at, err)
		}
		history = append(history, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lesson transitions: %w", err)
	}
	return history, nil
}

var _ lessons.TransitionRecorder = (*Index)(nil)
