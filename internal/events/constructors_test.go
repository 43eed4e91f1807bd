package events

import (
	"errors"
	"testing"

	"github.com/steveyegge/govern/internal/planning"
	"github.com/stretchr/testify/assert"
)

func TestNewStepRecord(t *testing.T) {
	cmd := planning.Command{ToolName: "write_file", ArgsText: "a.go"}

	rec := NewStepRecord("t", 3, cmd, "done", nil)
	assert.Equal(t, PhaseExecution, rec.Phase)
	assert.Equal(t, 3, rec.PlanStep)
	assert.Equal(t, "done", rec.Details["output"])
	assert.Equal(t, "executed write_file", rec.Message)

	rec = NewStepRecord("t", 3, cmd, "", errors.New("denied"))
	assert.Equal(t, "write_file failed", rec.Message)
	_, hasOutput := rec.Details["output"]
	assert.False(t, hasOutput)
}

func TestNewLessonTransitionRecord(t *testing.T) {
	rec := NewLessonTransitionRecord("l1", "task", "pending", "failed", "protocol missing", errors.New("x"))
	assert.Equal(t, PhaseSelfCorrection, rec.Phase)
	assert.Equal(t, StatusFailure, rec.Status)
	assert.Equal(t, "lesson l1", rec.EvidenceCitation)

	rec = NewLessonTransitionRecord("l1", "task", "pending", "applied", "ok", nil)
	assert.Equal(t, StatusSuccess, rec.Status)
}

func TestNewCompileRecord(t *testing.T) {
	rec := NewCompileRecord("AGENTS.md", 4, false, nil)
	assert.Equal(t, "compiled 4 protocol(s) to AGENTS.md", rec.Message)
	assert.Equal(t, Status(""), rec.Status)

	rec = NewCompileRecord("AGENTS.md", 0, true, errors.New("render"))
	assert.Equal(t, StatusFailure, rec.Status)
	assert.Equal(t, true, rec.Details["used_fallback"])
}

func TestNewValidationRecord(t *testing.T) {
	rec := NewValidationRecord("t", "plan.txt", "A", false, "Validation Error")
	assert.Equal(t, StatusFailure, rec.Status)
	assert.Equal(t, "plan.txt", rec.EvidenceCitation)
}

func TestNewExtractionRecord(t *testing.T) {
	rec := NewExtractionRecord("reports/pm.md", "T-9", 2, nil)
	assert.Equal(t, PhaseExtraction, rec.Phase)
	assert.Equal(t, ActionLessonExtraction, rec.ActionType)
	assert.Equal(t, 2, rec.Details["lessons"])
	assert.Equal(t, "extracted 2 lesson(s)", rec.Message)
	assert.Equal(t, "reports/pm.md", rec.EvidenceCitation)
}
