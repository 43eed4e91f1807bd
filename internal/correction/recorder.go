package correction

import (
	"context"
	"errors"
	"fmt"

	"github.com/steveyegge/govern/internal/events"
	"github.com/steveyegge/govern/internal/lessons"
)

// activityRecorder writes lesson transitions to the activity log.
type activityRecorder struct {
	log *events.Writer
}

func (r activityRecorder) RecordTransition(ctx context.Context, t lessons.Transition) error {
	var cause error
	if t.To == lessons.StatusFailed && t.Reason != "" {
		cause = errors.New(t.Reason)
	}
	msg := fmt.Sprintf("lesson %s: %s -> %s", t.LessonID, t.From, t.To)
	if t.Reason != "" && cause == nil {
		msg += ": " + t.Reason
	}
	_, err := r.log.Log(ctx, events.NewLessonTransitionRecord(t.LessonID, t.TaskID, string(t.From), string(t.To), msg, cause))
	return err
}
