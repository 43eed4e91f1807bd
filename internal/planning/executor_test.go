package planning

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedExecutor struct {
	failOn string
	seen   []string
}

func (e *scriptedExecutor) Execute(ctx context.Context, cmd Command) (string, error) {
	e.seen = append(e.seen, cmd.ToolName)
	if cmd.ToolName == e.failOn {
		return "", errors.New("boom")
	}
	return "ok:" + cmd.ToolName, nil
}

type recordedStep struct {
	taskID string
	step   int
	tool   string
	failed bool
}

type memoryRecorder struct {
	steps []recordedStep
	err   error
}

func (r *memoryRecorder) RecordStep(ctx context.Context, taskID string, step int, cmd Command, output string, stepErr error) error {
	if r.err != nil {
		return r.err
	}
	r.steps = append(r.steps, recordedStep{taskID: taskID, step: step, tool: cmd.ToolName, failed: stepErr != nil})
	return nil
}

func TestRun_ExecutesInOrder(t *testing.T) {
	plan := planOf("a", "b", "c")
	exec := &scriptedExecutor{}
	rec := &memoryRecorder{}

	results, err := Run(context.Background(), plan, exec, rec, RunOptions{TaskID: "task-1"})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, exec.seen)
	require.Len(t, results, 3)
	assert.Equal(t, "ok:b", results[1].Output)
	assert.Equal(t, []recordedStep{
		{"task-1", 1, "a", false},
		{"task-1", 2, "b", false},
		{"task-1", 3, "c", false},
	}, rec.steps)
}

func TestRun_StopsAtFirstFailure(t *testing.T) {
	plan := planOf("a", "b", "c")
	exec := &scriptedExecutor{failOn: "b"}
	rec := &memoryRecorder{}

	results, err := Run(context.Background(), plan, exec, rec, RunOptions{})
	require.Error(t, err)

	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	assert.Equal(t, 2, runErr.Step)
	assert.Equal(t, []string{"a", "b"}, exec.seen)
	assert.Len(t, results, 2)
	require.Len(t, rec.steps, 2)
	assert.True(t, rec.steps[1].failed)
}

func TestRun_RecorderFailureAborts(t *testing.T) {
	exec := &scriptedExecutor{}
	_, err := Run(context.Background(), planOf("a", "b"), exec, &memoryRecorder{err: errors.New("disk full")}, RunOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recording step 1")
	assert.Equal(t, []string{"a"}, exec.seen)
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exec := &scriptedExecutor{}
	_, err := Run(ctx, planOf("a"), exec, nil, RunOptions{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, exec.seen)
}

func TestDryRunExecutor(t *testing.T) {
	out, err := DryRunExecutor{}.Execute(context.Background(), Command{ToolName: "ls", ArgsText: "-la"})
	require.NoError(t, err)
	assert.Equal(t, "dry-run: ls(-la)", out)
}
