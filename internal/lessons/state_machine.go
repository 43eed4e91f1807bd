package lessons

import (
	"context"
	"fmt"
	"time"
)

// Transition is one recorded lesson status change.
type Transition struct {
	LessonID string    `json:"lesson_id"`
	TaskID   string    `json:"task_id"`
	From     Status    `json:"from"`
	To       Status    `json:"to"`
	Reason   string    `json:"reason"`
	At       time.Time `json:"at"`
}

// TransitionRecorder persists transitions for auditing.
type TransitionRecorder interface {
	RecordTransition(ctx context.Context, t Transition) error
}

// InvalidTransitionError rejects a status change the lifecycle forbids.
type InvalidTransitionError struct {
	LessonID string
	From     Status
	To       Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("lesson %s: invalid transition %s → %s", e.LessonID, e.From, e.To)
}

// CanTransition reports whether from → to is allowed. Only pending lessons
// move, and only to a terminal state.
func CanTransition(from, to Status) bool {
	return from == StatusPending && (to == StatusApplied || to == StatusFailed)
}

// TransitionStatus moves l to the status to and records the change. The
// lesson is updated before recording, so a recorder failure is returned as a
// warning about the record, not about the transition.
func TransitionStatus(ctx context.Context, l *Lesson, to Status, reason string, recorder TransitionRecorder, at time.Time) error {
	if !CanTransition(l.Status, to) {
		return &InvalidTransitionError{LessonID: l.LessonID, From: l.Status, To: to}
	}

	from := l.Status
	l.Status = to

	if recorder == nil {
		return nil
	}
	t := Transition{
		LessonID: l.LessonID,
		TaskID:   l.TaskID,
		From:     from,
		To:       to,
		Reason:   reason,
		At:       at.UTC(),
	}
	if err := recorder.RecordTransition(ctx, t); err != nil {
		return fmt.Errorf("warning: lesson transition succeeded but failed to record it: %w", err)
	}
	return nil
}

// MultiRecorder fans a transition out to several recorders, returning the
// first error after trying all of them.
type MultiRecorder []TransitionRecorder

// RecordTransition implements TransitionRecorder.
func (m MultiRecorder) RecordTransition(ctx context.Context, t Transition) error {
	var first error
	for _, r := range m {
		if r == nil {
			continue
		}
		if err := r.RecordTransition(ctx, t); err != nil && first == nil {
			first = err
		}
	}
	return first
}
