package lessons

import (
	"context"
	"errors"
	"testing"
	"time"
)

// mockRecorder implements TransitionRecorder for testing
type mockRecorder struct {
	transitions []Transition
	err         error
}

func (m *mockRecorder) RecordTransition(ctx context.Context, t Transition) error {
	if m.err != nil {
		return m.err
	}
	m.transitions = append(m.transitions, t)
	return nil
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusApplied, true},
		{StatusPending, StatusFailed, true},
		{StatusPending, StatusPending, false},
		{StatusApplied, StatusFailed, false},
		{StatusApplied, StatusPending, false},
		{StatusFailed, StatusApplied, false},
		{StatusFailed, StatusPending, false},
		{Status("archived"), StatusApplied, false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestTransitionStatus(t *testing.T) {
	ctx := context.Background()
	rec := &mockRecorder{}
	at := time.Date(2025, 1, 1, 10, 0, 0, 0, time.FixedZone("X", 7200))
	l := &Lesson{LessonID: "l1", TaskID: "t1", Status: StatusPending}

	if err := TransitionStatus(ctx, l, StatusApplied, "tool added", rec, at); err != nil {
		t.Fatalf("TransitionStatus failed: %v", err)
	}
	if l.Status != StatusApplied {
		t.Errorf("expected status applied, got %s", l.Status)
	}
	if len(rec.transitions) != 1 {
		t.Fatalf("expected 1 recorded transition, got %d", len(rec.transitions))
	}
	got := rec.transitions[0]
	if got.From != StatusPending || got.To != StatusApplied || got.Reason != "tool added" || got.TaskID != "t1" {
		t.Errorf("unexpected transition: %+v", got)
	}
	if got.At.Location() != time.UTC {
		t.Errorf("expected UTC timestamp, got %v", got.At.Location())
	}

	// Terminal states never move again.
	err := TransitionStatus(ctx, l, StatusFailed, "", rec, at)
	var invalid *InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
	if invalid.From != StatusApplied || invalid.To != StatusFailed {
		t.Errorf("unexpected error fields: %+v", invalid)
	}
	if l.Status != StatusApplied {
		t.Errorf("status changed on invalid transition: %s", l.Status)
	}
}

func TestTransitionStatus_RecorderFailure(t *testing.T) {
	rec := &mockRecorder{err: errors.New("db locked")}
	l := &Lesson{LessonID: "l1", Status: StatusPending}

	err := TransitionStatus(context.Background(), l, StatusFailed, "", rec, time.Now())
	if err == nil {
		t.Fatal("expected recorder error")
	}
	if l.Status != StatusFailed {
		t.Errorf("transition should stand despite recorder failure, got %s", l.Status)
	}
}

func TestTransitionStatus_NilRecorder(t *testing.T) {
	l := &Lesson{LessonID: "l1", Status: StatusPending}
	if err := TransitionStatus(context.Background(), l, StatusApplied, "", nil, time.Now()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestMultiRecorder(t *testing.T) {
	a := &mockRecorder{}
	b := &mockRecorder{err: errors.New("boom")}
	c := &mockRecorder{}

	err := MultiRecorder{a, nil, b, c}.RecordTransition(context.Background(), Transition{LessonID: "x"})
	if err == nil || err.Error() != "boom" {
		t.Errorf("expected first error 'boom', got %v", err)
	}
	if len(a.transitions) != 1 || len(c.transitions) != 1 {
		t.Errorf("every recorder should be tried: a=%d c=%d", len(a.transitions), len(c.transitions))
	}
}
