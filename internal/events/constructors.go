package events

import (
	"context"
	"fmt"

	"github.com/steveyegge/govern/internal/planning"
)

// Action types written by this repository's components.
const (
	ActionPlanStep         = "plan_step"
	ActionPlanValidation   = "plan_validation"
	ActionLessonTransition = "lesson_transition"
	ActionProtocolCompile  = "protocol_compile"
	ActionLessonExtraction = "lesson_extraction"
)

// NewStepRecord builds the record for one executed plan command.
func NewStepRecord(taskID string, step int, cmd planning.Command, output string, stepErr error) Record {
	rec := Record{
		Phase:      PhaseExecution,
		TaskID:     taskID,
		PlanStep:   step,
		ActionType: ActionPlanStep,
		Details: map[string]interface{}{
			"tool_name": cmd.ToolName,
			"args_text": cmd.ArgsText,
		},
		Message:          fmt.Sprintf("executed %s", cmd.ToolName),
		Err:              stepErr,
		EvidenceCitation: fmt.Sprintf("plan step %d", step),
	}
	if output != "" {
		rec.Details["output"] = output
	}
	if stepErr != nil {
		rec.Message = fmt.Sprintf("%s failed", cmd.ToolName)
	}
	return rec
}

// NewValidationRecord builds the record for a plan validation verdict.
func NewValidationRecord(taskID, source, model string, valid bool, message string) Record {
	status := StatusSuccess
	if !valid {
		status = StatusFailure
	}
	return Record{
		Phase:      PhaseValidation,
		TaskID:     taskID,
		ActionType: ActionPlanValidation,
		Details: map[string]interface{}{
			"model": model,
		},
		Status:           status,
		Message:          message,
		EvidenceCitation: source,
	}
}

// NewLessonTransitionRecord builds the record for a lesson status change.
func NewLessonTransitionRecord(lessonID, taskID, from, to, message string, cause error) Record {
	rec := Record{
		Phase:      PhaseSelfCorrection,
		TaskID:     taskID,
		ActionType: ActionLessonTransition,
		Details: map[string]interface{}{
			"lesson_id": lessonID,
			"from":      from,
			"to":        to,
		},
		Status:           StatusSuccess,
		Message:          message,
		Err:              cause,
		EvidenceCitation: "lesson " + lessonID,
	}
	if to == "failed" {
		rec.Status = StatusFailure
	}
	return rec
}

// NewCompileRecord builds the record for a protocol compilation.
func NewCompileRecord(output string, protocols int, usedFallback bool, cause error) Record {
	rec := Record{
		Phase:      PhaseCompilation,
		ActionType: ActionProtocolCompile,
		Details: map[string]interface{}{
			"output_file":   output,
			"protocols":     protocols,
			"used_fallback": usedFallback,
		},
		Message:          fmt.Sprintf("compiled %d protocol(s) to %s", protocols, output),
		Err:              cause,
		EvidenceCitation: output,
	}
	if usedFallback {
		rec.Message = fmt.Sprintf("wrote safe fallback to %s", output)
		rec.Status = StatusFailure
	}
	return rec
}

// NewExtractionRecord builds the record for a post-mortem extraction run.
func NewExtractionRecord(source, taskID string, lessons int, cause error) Record {
	return Record{
		Phase:      PhaseExtraction,
		TaskID:     taskID,
		ActionType: ActionLessonExtraction,
		Details: map[string]interface{}{
			"postmortem": source,
			"lessons":    lessons,
		},
		Message:          fmt.Sprintf("extracted %d lesson(s)", lessons),
		Err:              cause,
		EvidenceCitation: source,
	}
}

// RecordStep implements planning.StepRecorder.
func (w *Writer) RecordStep(ctx context.Context, taskID string, step int, cmd planning.Command, output string, stepErr error) error {
	_, err := w.Log(ctx, NewStepRecord(taskID, step, cmd, output, stepErr))
	return err
}

var _ planning.StepRecorder = (*Writer)(nil)
