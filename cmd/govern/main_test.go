package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/govern/internal/config"
	"github.com/steveyegge/govern/internal/correction"
	"github.com/steveyegge/govern/internal/events"
	"github.com/steveyegge/govern/internal/lessons"
	"github.com/steveyegge/govern/internal/planning"
	"github.com/steveyegge/govern/internal/storage"
	"github.com/steveyegge/govern/internal/udc"
)

func TestExitCode(t *testing.T) {
	limit := &udc.ResourceLimitError{Kind: udc.LimitInstructions, Limit: "10", Observed: "10"}

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, exitOK},
		{"plain failure", errors.New("boom"), exitFailure},
		{"resource limit", limit, exitResourceLimit},
		{"wrapped resource limit", fmt.Errorf("run: %w", limit), exitResourceLimit},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestResolveAndPick(t *testing.T) {
	old := projectRoot
	t.Cleanup(func() { projectRoot = old })
	projectRoot = "/work"

	assert.Equal(t, "", resolve(""))
	assert.Equal(t, "/abs/x", resolve("/abs/x"))
	assert.Equal(t, filepath.Join("/work", "rel/x"), resolve("rel/x"))

	assert.Equal(t, "flag.json", pick("flag.json", "cfg.json"), "flag wins unresolved")
	assert.Equal(t, filepath.Join("/work", "cfg.json"), pick("", "cfg.json"))
}

func TestEntryMetadata(t *testing.T) {
	e := &events.LogEntry{
		Task:    events.Task{ID: "T-1", PlanStep: 3},
		Action:  events.Action{Type: "validate", Details: map[string]interface{}{"b": 2, "a": "x"}},
		Outcome: events.Outcome{Status: events.StatusFailure, Error: "bad\nthing"},
	}
	assert.Equal(t, "task T-1 | step 3 | error: bad thing | a=x | b=2", entryMetadata(e, "T-1"))

	bare := &events.LogEntry{Outcome: events.Outcome{Status: events.StatusSuccess}}
	assert.Equal(t, "task -", entryMetadata(bare, "-"))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", truncateString("short", 10))
	assert.Equal(t, "exactly10!", truncateString("exactly10!", 10))
	assert.Equal(t, "abcdefg...", truncateString("abcdefghijklmnop", 10))
	assert.Equal(t, "...", truncateString("abcdef", 2))
	assert.Equal(t, "a b", truncateString("a\nb", 10))
}

func TestUDCLimits(t *testing.T) {
	old := cfg
	t.Cleanup(func() { cfg = old })
	cfg = config.Default()
	cfg.UDC.MaxInstructions = 50
	cfg.UDC.MaxMemory = 7
	cfg.UDC.MaxTime = time.Second

	newCmd := func() *cobra.Command {
		c := &cobra.Command{Use: "x"}
		c.Flags().Int("max-instructions", 0, "")
		c.Flags().Int("max-memory", 0, "")
		c.Flags().Duration("max-time", 0, "")
		return c
	}

	c := newCmd()
	assert.Equal(t, udc.Limits{MaxInstructions: 50, MaxMemoryCells: 7, MaxTime: time.Second}, udcLimits(c))

	c = newCmd()
	require.NoError(t, c.Flags().Set("max-instructions", "5"))
	require.NoError(t, c.Flags().Set("max-time", "2s"))
	assert.Equal(t, udc.Limits{MaxInstructions: 5, MaxMemoryCells: 7, MaxTime: 2 * time.Second}, udcLimits(c))
}

func TestSubcommandsRegistered(t *testing.T) {
	want := []string{"plan", "protocol", "activity", "log", "udc", "lessons", "correct", "suggest"}
	for _, name := range want {
		c, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, c.Name())
	}
}

func TestValidatePlan(t *testing.T) {
	ctx := context.Background()

	var warn bytes.Buffer
	ok, msg := validatePlan(ctx, &warn, &planning.Plan{}, "b")
	assert.True(t, ok)
	assert.Equal(t, "Plan is valid for Model B.", msg)
	assert.Contains(t, warn.String(), "Plan contains no commands (EMPTY_PLAN, plan)")

	plan, err := planning.Parse("define_set_of_names\n---\ndo_x\n---\ndefine_diagonalization_function\n")
	require.NoError(t, err)
	warn.Reset()
	ok, msg = validatePlan(ctx, &warn, plan, "A")
	assert.False(t, ok)
	assert.Equal(t, "Validation Error: `define_diagonalization_function` is forbidden in Model A.", msg)
	assert.Empty(t, warn.String())

	ok, msg = validatePlan(ctx, &warn, plan, "C")
	assert.False(t, ok)
	assert.Equal(t, "Validation Error: unknown model 'C'.", msg)
}

func TestAppendLessons_RespectsJournalLock(t *testing.T) {
	journal := lessons.NewJournal(filepath.Join(t.TempDir(), "lessons.jsonl"))
	l := &lessons.Lesson{
		LessonID: "L1",
		TaskID:   "T1",
		Action: lessons.Action{
			Type:       lessons.ActionUpdateProtocol,
			Command:    lessons.CommandAddTool,
			Parameters: map[string]string{lessons.ParamProtocolID: "p", lessons.ParamToolName: "t"},
		},
		Status: lessons.StatusPending,
	}

	lockPath, err := storage.AcquireExclusiveLock(journal.Path(), "govern self-correction")
	require.NoError(t, err)

	err = appendLessons(journal, []*lessons.Lesson{l})
	var held *storage.LockHeldError
	require.ErrorAs(t, err, &held)
	assert.Equal(t, "govern self-correction", held.Lock.Holder)

	all, err := journal.ReadAll()
	require.NoError(t, err)
	assert.Empty(t, all, "nothing appended while the lock is held")

	require.NoError(t, storage.ReleaseExclusiveLock(lockPath))
	require.NoError(t, appendLessons(journal, []*lessons.Lesson{l}))

	all, err = journal.ReadAll()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "L1", all[0].LessonID)
	assert.NoFileExists(t, storage.LockPath(journal.Path()), "lock released after append")
}

func TestPrintCorrectionReport_PlanPathsOnlyOnStdout(t *testing.T) {
	r := &correction.Report{
		Outcomes: []correction.Outcome{
			{LessonID: "L1", Action: "UPDATE_PROTOCOL/add-tool", Status: lessons.StatusApplied},
			{LessonID: "L2", Action: "PROPOSE_CODE_CHANGE", Status: lessons.StatusApplied, PlanPath: "/tmp/plan-1.txt"},
			{LessonID: "L3", Action: "UPDATE_PROTOCOL/placeholder", Status: lessons.StatusPending, Err: errors.New("unhandled")},
		},
		Applied: 2,
		Skipped: 1,
	}

	var out, status bytes.Buffer
	printCorrectionReport(&out, &status, r)

	assert.Equal(t, "/tmp/plan-1.txt\n", out.String())
	assert.Contains(t, status.String(), "L1")
	assert.Contains(t, status.String(), "unhandled")
	assert.Contains(t, status.String(), "applied 2, failed 0, left pending 1")
}
