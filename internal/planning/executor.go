package planning

import (
	"context"
	"fmt"
)

// Executor carries out a single plan command. Implementations live outside this
// package (tool runners, sandboxes); the planning package only sequences them.
type Executor interface {
	Execute(ctx context.Context, cmd Command) (output string, err error)
}

// StepRecorder receives the outcome of every executed step. The activity log
// writer implements it.
type StepRecorder interface {
	RecordStep(ctx context.Context, taskID string, step int, cmd Command, output string, stepErr error) error
}

// RunOptions configures Run.
type RunOptions struct {
	// TaskID identifies the task the plan belongs to in recorded steps.
	TaskID string
}

// StepResult is the outcome of one executed command.
type StepResult struct {
	Step    int
	Command Command
	Output  string
	Err     error
}

// RunError reports the step at which a plan stopped.
type RunError struct {
	Step    int
	Command Command
	Err     error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("step %d (%s) failed: %v", e.Step, e.Command.ToolName, e.Err)
}

func (e *RunError) Unwrap() error { return e.Err }

// Run executes the plan's commands strictly in order and stops at the first
// failure. Every attempted step is passed to recorder when it is non-nil; a
// recorder failure aborts the run because the step would otherwise go unlogged.
func Run(ctx context.Context, plan *Plan, exec Executor, recorder StepRecorder, opts RunOptions) ([]StepResult, error) {
	results := make([]StepResult, 0, len(plan.Commands))

	for i, cmd := range plan.Commands {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		step := i + 1
		output, execErr := exec.Execute(ctx, cmd)
		results = append(results, StepResult{Step: step, Command: cmd, Output: output, Err: execErr})

		if recorder != nil {
			if err := recorder.RecordStep(ctx, opts.TaskID, step, cmd, output, execErr); err != nil {
				return results, fmt.Errorf("recording step %d: %w", step, err)
			}
		}

		if execErr != nil {
			return results, &RunError{Step: step, Command: cmd, Err: execErr}
		}
	}

	return results, nil
}

// DryRunExecutor echoes commands without side effects.
type DryRunExecutor struct{}

// Execute returns a description of the command.
func (DryRunExecutor) Execute(ctx context.Context, cmd Command) (string, error) {
	return fmt.Sprintf("dry-run: %s", cmd.String()), nil
}
